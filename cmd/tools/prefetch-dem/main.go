// Command prefetch-dem warms the Terrarium tile cache for a bounding box so
// later viewshed requests in that area are served without network access.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/banshee-data/viewshed/internal/config"
	"github.com/banshee-data/viewshed/internal/dem"
	"github.com/banshee-data/viewshed/internal/httputil"
)

// utahBBox approximates the Utah state extremes in degrees.
var utahBBox = dem.BBox{MinLat: 37.0, MinLon: -114.05, MaxLat: 42.0, MaxLon: -109.0}

var statePresets = map[string]dem.BBox{
	"utah": utahBBox,
}

// resolutionPresets map preset names to metres per cell.
var resolutionPresets = map[string]float64{
	"fast":   90,
	"medium": 60,
	"high":   30,
}

// Options holds the parsed command line.
type Options struct {
	ConfigPath  string
	CacheDir    string
	BBox        dem.BBox
	ResolutionM float64
	Concurrency int
	JSON        bool
}

func presetNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func parseFlags(args []string) (*Options, error) {
	fs := flag.NewFlagSet("prefetch-dem", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to a JSON or YAML config file")
	cacheDir := fs.String("cache-dir", "", "Tile cache directory (overrides config)")
	minLat := fs.Float64("min-lat", math.NaN(), "Minimum latitude")
	minLon := fs.Float64("min-lon", math.NaN(), "Minimum longitude")
	maxLat := fs.Float64("max-lat", math.NaN(), "Maximum latitude")
	maxLon := fs.Float64("max-lon", math.NaN(), "Maximum longitude")
	state := fs.String("state", "utah", fmt.Sprintf("Bounding box preset when no explicit box is given %v", presetNames(statePresets)))
	preset := fs.String("preset", "fast", fmt.Sprintf("Resolution preset %v", presetNames(resolutionPresets)))
	resolutionM := fs.Float64("resolution-m", 0, "Resolution in metres per cell (overrides -preset)")
	concurrency := fs.Int("concurrency", dem.DefaultFetchConcurrency, "Concurrent tile downloads")
	asJSON := fs.Bool("json", false, "Print stats as JSON")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	opts := &Options{
		ConfigPath:  *configPath,
		CacheDir:    *cacheDir,
		Concurrency: *concurrency,
		JSON:        *asJSON,
	}

	explicit := []float64{*minLat, *minLon, *maxLat, *maxLon}
	set := 0
	for _, v := range explicit {
		if !math.IsNaN(v) {
			set++
		}
	}
	switch set {
	case 4:
		opts.BBox = dem.BBox{MinLat: *minLat, MinLon: *minLon, MaxLat: *maxLat, MaxLon: *maxLon}
	case 0:
		b, ok := statePresets[*state]
		if !ok {
			return nil, fmt.Errorf("unknown state %q; provide -min-lat/-min-lon/-max-lat/-max-lon", *state)
		}
		opts.BBox = b
	default:
		return nil, errors.New("bounding box needs all of -min-lat, -min-lon, -max-lat and -max-lon")
	}

	if *resolutionM > 0 {
		opts.ResolutionM = *resolutionM
	} else {
		r, ok := resolutionPresets[*preset]
		if !ok {
			return nil, fmt.Errorf("unknown preset %q", *preset)
		}
		opts.ResolutionM = r
	}
	return opts, nil
}

func run(ctx context.Context, opts *Options, client httputil.HTTPClient, out io.Writer) error {
	cfg := config.EmptyConfig()
	if opts.ConfigPath != "" {
		loaded, err := config.LoadConfig(opts.ConfigPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	cacheDir := cfg.GetDEMCacheDir()
	if opts.CacheDir != "" {
		cacheDir = opts.CacheDir
	}

	var oc *dem.ObjectCacheOptions
	if c := cfg.ObjectCache; c != nil && opts.CacheDir == "" {
		oc = &dem.ObjectCacheOptions{
			Endpoint:        c.Endpoint,
			Bucket:          c.Bucket,
			AccessKeyID:     c.AccessKeyID,
			SecretAccessKey: c.SecretAccessKey,
			UseSSL:          c.UseSSL,
			Region:          c.Region,
		}
	}
	cache, err := dem.OpenCache(cacheDir, oc)
	if err != nil {
		return err
	}
	if client == nil {
		client = httputil.NewStandardClient(cfg.GetRequestTimeout())
	}

	provider := dem.NewTerrariumProvider(client, cache, cfg.GetTileURLTemplate())
	if opts.Concurrency > 0 {
		provider.Concurrency = opts.Concurrency
	}

	stats, err := provider.PrefetchBBox(ctx, opts.BBox, opts.ResolutionM)
	if err != nil {
		return err
	}

	if opts.JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}
	fmt.Fprintln(out, "Prefetch complete:")
	fmt.Fprintf(out, "  zoom: %d\n", stats.Zoom)
	fmt.Fprintf(out, "  total: %d\n", stats.Total)
	fmt.Fprintf(out, "  fetched: %d\n", stats.Fetched)
	fmt.Fprintf(out, "  cached: %d\n", stats.Cached)
	fmt.Fprintf(out, "  missing: %d\n", stats.Missing)
	fmt.Fprintf(out, "  failed: %d\n", stats.Failed)
	return nil
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Printf("prefetching %+v at %.0f m", opts.BBox, opts.ResolutionM)
	if err := run(ctx, opts, nil, os.Stdout); err != nil {
		log.Fatalf("prefetch failed: %v", err)
	}
}
