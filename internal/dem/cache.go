package dem

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/banshee-data/viewshed/internal/fsutil"
	"github.com/banshee-data/viewshed/internal/security"
)

// TileCache stores encoded tiles by coordinate. Get reports a miss with
// ok == false and a nil error. Deleting an absent tile is not an error.
type TileCache interface {
	Get(ctx context.Context, t Tile) (data []byte, ok bool, err error)
	Put(ctx context.Context, t Tile, data []byte) error
	Delete(ctx context.Context, t Tile) error
}

// TileKey is the slash-separated cache key for t.
func TileKey(t Tile) string {
	return fmt.Sprintf("terrarium/%d/%d/%d.png", t.Z, t.X, t.Y)
}

// DiskCache keeps tiles under Root as terrarium/{z}/{x}/{y}.png.
type DiskCache struct {
	Root string
	FS   fsutil.FileSystem

	// confine enables symlink-aware containment checks, which need a real
	// directory on disk.
	confine bool
}

// NewDiskCache returns a cache rooted at root. A nil fsys uses the OS.
func NewDiskCache(root string, fsys fsutil.FileSystem) (*DiskCache, error) {
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}
	_, onDisk := fsys.(fsutil.OSFileSystem)
	if err := fsys.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create dem cache dir %s: %w", root, err)
	}
	return &DiskCache{Root: root, FS: fsys, confine: onDisk}, nil
}

func (c *DiskCache) path(t Tile) (string, error) {
	key := TileKey(t)
	if err := security.ValidateObjectKey(key); err != nil {
		return "", err
	}
	p := filepath.Join(c.Root, filepath.FromSlash(key))
	if c.confine {
		if err := security.ValidatePathWithinDirectory(p, c.Root); err != nil {
			return "", err
		}
	}
	return p, nil
}

// Get implements TileCache.
func (c *DiskCache) Get(_ context.Context, t Tile) ([]byte, bool, error) {
	p, err := c.path(t)
	if err != nil {
		return nil, false, err
	}
	data, err := c.FS.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read cached tile %s: %w", t, err)
	}
	return data, true, nil
}

// Put implements TileCache. Writes are atomic.
func (c *DiskCache) Put(_ context.Context, t Tile, data []byte) error {
	p, err := c.path(t)
	if err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(c.FS, p, data, 0o644)
}

// Delete implements TileCache.
func (c *DiskCache) Delete(_ context.Context, t Tile) error {
	p, err := c.path(t)
	if err != nil {
		return err
	}
	if err := c.FS.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove cached tile %s: %w", t, err)
	}
	return nil
}

// ObjectCacheOptions configures an S3-compatible tile bucket.
type ObjectCacheOptions struct {
	Endpoint        string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	Region          string
}

// ObjectCache keeps tiles in an S3-compatible bucket, creating the bucket
// on first write.
type ObjectCache struct {
	client *minio.Client
	bucket string
	region string

	mu          sync.Mutex
	bucketReady bool
}

// NewObjectCache builds a minio client for opts.
func NewObjectCache(opts ObjectCacheOptions) (*ObjectCache, error) {
	if opts.Endpoint == "" || opts.Bucket == "" {
		return nil, fmt.Errorf("object cache: endpoint and bucket are required")
	}
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKeyID, opts.SecretAccessKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("object cache: %w", err)
	}
	return &ObjectCache{client: client, bucket: opts.Bucket, region: opts.Region}, nil
}

// Get implements TileCache.
func (c *ObjectCache) Get(ctx context.Context, t Tile) ([]byte, bool, error) {
	obj, err := c.client.GetObject(ctx, c.bucket, TileKey(t), minio.GetObjectOptions{})
	if err == nil {
		defer obj.Close()
		var data []byte
		data, err = io.ReadAll(obj)
		if err == nil {
			return data, true, nil
		}
	}
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return nil, false, nil
	}
	return nil, false, fmt.Errorf("get object %s: %w", TileKey(t), err)
}

// Put implements TileCache.
func (c *ObjectCache) Put(ctx context.Context, t Tile, data []byte) error {
	if err := c.ensureBucket(ctx); err != nil {
		return err
	}
	key := TileKey(t)
	_, err := c.client.PutObject(ctx, c.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "image/png"})
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}

// Delete implements TileCache.
func (c *ObjectCache) Delete(ctx context.Context, t Tile) error {
	key := TileKey(t)
	err := c.client.RemoveObject(ctx, c.bucket, key, minio.RemoveObjectOptions{})
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return nil
	}
	if err != nil {
		return fmt.Errorf("remove object %s: %w", key, err)
	}
	return nil
}

func (c *ObjectCache) ensureBucket(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bucketReady {
		return nil
	}
	exists, err := c.client.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", c.bucket, err)
	}
	if !exists {
		if err := c.client.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{Region: c.region}); err != nil {
			return fmt.Errorf("create bucket %s: %w", c.bucket, err)
		}
	}
	c.bucketReady = true
	return nil
}

// OpenCache picks the object store when opts is non-nil, else a disk
// cache under dir.
func OpenCache(dir string, opts *ObjectCacheOptions) (TileCache, error) {
	if opts != nil {
		oc, err := NewObjectCache(*opts)
		if err != nil {
			return nil, err
		}
		return oc, nil
	}
	if dir == "" {
		return nil, fmt.Errorf("dem cache dir is empty")
	}
	dc, err := NewDiskCache(dir, fsutil.OSFileSystem{})
	if err != nil {
		return nil, err
	}
	return dc, nil
}
