package fsutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
)

func TestOSFileSystem_Exists(t *testing.T) {
	fsys := OSFileSystem{}

	if !fsys.Exists("filesystem.go") {
		t.Error("expected filesystem.go to exist")
	}
	if fsys.Exists("nonexistent_file_xyz.go") {
		t.Error("expected nonexistent file to not exist")
	}
}

func TestOSFileSystem_WriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	fsys := OSFileSystem{}
	target := filepath.Join(dir, "12", "654", "1583.png")

	if err := WriteFileAtomic(fsys, target, []byte("tile"), 0o644); err != nil {
		t.Fatalf("WriteFileAtomic failed: %v", err)
	}

	data, err := fsys.ReadFile(target)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "tile" {
		t.Errorf("expected %q, got %q", "tile", data)
	}
	entries, err := os.ReadDir(filepath.Dir(target))
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the target file, found %d entries", len(entries))
	}

	info, err := fsys.Stat(target)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Size() != 4 {
		t.Errorf("expected size 4, got %d", info.Size())
	}
}

// writeRecorder records the names passed to WriteFile.
type writeRecorder struct {
	*MemoryFileSystem
	mu     sync.Mutex
	writes []string
}

func (w *writeRecorder) WriteFile(name string, data []byte, perm os.FileMode) error {
	w.mu.Lock()
	w.writes = append(w.writes, name)
	w.mu.Unlock()
	return w.MemoryFileSystem.WriteFile(name, data, perm)
}

func TestWriteFileAtomic_UniqueTempNames(t *testing.T) {
	rec := &writeRecorder{MemoryFileSystem: NewMemoryFileSystem()}
	for i := 0; i < 2; i++ {
		if err := WriteFileAtomic(rec, "/cache/3/1/2.png", []byte("abc"), 0o644); err != nil {
			t.Fatalf("WriteFileAtomic failed: %v", err)
		}
	}
	if len(rec.writes) != 2 {
		t.Fatalf("expected 2 writes, got %v", rec.writes)
	}
	if rec.writes[0] == rec.writes[1] {
		t.Errorf("temp name reused: %s", rec.writes[0])
	}
	for _, name := range rec.writes {
		if filepath.Dir(name) != "/cache/3/1" || !strings.HasSuffix(name, ".tmp") {
			t.Errorf("unexpected temp name %s", name)
		}
	}
}

func TestOSFileSystem_WriteFileAtomicConcurrent(t *testing.T) {
	dir := t.TempDir()
	fsys := OSFileSystem{}
	target := filepath.Join(dir, "0", "0", "0.png")

	const writers = 16
	payloads := make(map[string]bool, writers)
	errs := make(chan error, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		payload := fmt.Sprintf("tile-%02d", i)
		payloads[payload] = true
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- WriteFileAtomic(fsys, target, []byte(payload), 0o644)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Errorf("WriteFileAtomic failed: %v", err)
		}
	}

	data, err := fsys.ReadFile(target)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if !payloads[string(data)] {
		t.Errorf("target holds %q, not one complete payload", data)
	}
	entries, err := os.ReadDir(filepath.Dir(target))
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the target file, found %d entries", len(entries))
	}
}

func TestMemoryFileSystem_WriteAndRead(t *testing.T) {
	mfs := NewMemoryFileSystem()

	if err := mfs.WriteFile("/cache/test.png", []byte("hello"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	data, err := mfs.ReadFile("/cache/test.png")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("expected %q, got %q", "hello", data)
	}

	// Returned slices must not alias stored data.
	data[0] = 'j'
	again, _ := mfs.ReadFile("/cache/test.png")
	if string(again) != "hello" {
		t.Errorf("stored data mutated: %q", again)
	}
}

func TestMemoryFileSystem_ReadMissing(t *testing.T) {
	mfs := NewMemoryFileSystem()

	_, err := mfs.ReadFile("/nope")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected ErrNotExist, got %v", err)
	}
	if _, err := mfs.Stat("/nope"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected ErrNotExist from Stat, got %v", err)
	}
}

func TestMemoryFileSystem_WriteFileAtomic(t *testing.T) {
	mfs := NewMemoryFileSystem()

	if err := WriteFileAtomic(mfs, "/cache/3/1/2.png", []byte("abc"), 0o644); err != nil {
		t.Fatalf("WriteFileAtomic failed: %v", err)
	}

	files := mfs.Files()
	sort.Strings(files)
	if len(files) != 1 || files[0] != "/cache/3/1/2.png" {
		t.Errorf("unexpected files: %v", files)
	}
	for _, dir := range []string{"/cache", "/cache/3", "/cache/3/1"} {
		if !mfs.Exists(dir) {
			t.Errorf("expected directory %s to exist", dir)
		}
	}
}

func TestMemoryFileSystem_FailWrites(t *testing.T) {
	mfs := NewMemoryFileSystem()
	mfs.FailWrites = errors.New("disk full")

	err := WriteFileAtomic(mfs, "/cache/x.png", []byte("abc"), 0o644)
	if err == nil {
		t.Fatal("expected error")
	}
	if mfs.Exists("/cache/x.png") {
		t.Error("file should not exist after failed write")
	}
}

func TestMemoryFileSystem_Rename(t *testing.T) {
	mfs := NewMemoryFileSystem()
	_ = mfs.WriteFile("/a", []byte("1"), 0o644)
	_ = mfs.WriteFile("/b", []byte("2"), 0o644)

	if err := mfs.Rename("/a", "/b"); err != nil {
		t.Fatalf("Rename failed: %v", err)
	}
	if mfs.Exists("/a") {
		t.Error("old path still exists")
	}
	data, _ := mfs.ReadFile("/b")
	if string(data) != "1" {
		t.Errorf("expected replaced contents %q, got %q", "1", data)
	}

	if err := mfs.Rename("/missing", "/c"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected ErrNotExist, got %v", err)
	}
}

func TestMemoryFileSystem_Remove(t *testing.T) {
	mfs := NewMemoryFileSystem()
	_ = mfs.MkdirAll("/dir", 0o755)
	_ = mfs.WriteFile("/dir/file", []byte("x"), 0o644)

	if err := mfs.Remove("/dir"); !errors.Is(err, fs.ErrExist) {
		t.Errorf("expected non-empty dir error, got %v", err)
	}
	if err := mfs.Remove("/dir/file"); err != nil {
		t.Fatalf("Remove file failed: %v", err)
	}
	if err := mfs.Remove("/dir"); err != nil {
		t.Fatalf("Remove dir failed: %v", err)
	}
	if err := mfs.Remove("/dir"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected ErrNotExist, got %v", err)
	}
}

func TestEnsureParentDir(t *testing.T) {
	fsys := NewMemoryFileSystem()
	if err := EnsureParentDir(fsys, "/data/db/scenarios.db"); err != nil {
		t.Fatalf("EnsureParentDir failed: %v", err)
	}
	if !fsys.Exists("/data/db") {
		t.Error("expected parent directory to exist")
	}
	if fsys.Exists("/data/db/scenarios.db") {
		t.Error("EnsureParentDir must not create the file itself")
	}
}
