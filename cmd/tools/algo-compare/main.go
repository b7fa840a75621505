// Package main compares the radial sweep viewshed against the exhaustive
// baseline on synthetic terrain, reporting timing and mask agreement.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/banshee-data/viewshed/internal/dem"
	"github.com/banshee-data/viewshed/internal/security"
	"github.com/banshee-data/viewshed/internal/viewshed"
)

// Config holds configuration for the algorithm comparison.
type Config struct {
	Size       int
	Repeats    int
	Seed       uint64
	CellSizeM  float64
	HeightM    float64
	Curvature  bool
	Workers    int
	OutputJSON string
}

// ComparisonResult is the exported report.
type ComparisonResult struct {
	Size       int                  `json:"size"`
	Seed       uint64               `json:"seed"`
	Repeats    int                  `json:"repeats"`
	CellSizeM  float64              `json:"cell_size_m"`
	Curvature  bool                 `json:"curvature"`
	Evaluation *viewshed.Evaluation `json:"evaluation"`
}

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		log.Fatal(err)
	}

	result, err := runComparison(cfg)
	if err != nil {
		log.Fatalf("Comparison failed: %v", err)
	}
	printResults(os.Stdout, result)

	if cfg.OutputJSON != "" {
		if err := exportJSON(result, cfg.OutputJSON); err != nil {
			log.Printf("Warning: failed to export JSON: %v", err)
		} else {
			log.Printf("Results exported to: %s", cfg.OutputJSON)
		}
	}
}

func parseFlags(args []string) (Config, error) {
	cfg := Config{}
	fs := flag.NewFlagSet("algo-compare", flag.ContinueOnError)

	fs.IntVar(&cfg.Size, "size", 200, "Synthetic grid edge length in cells")
	fs.IntVar(&cfg.Repeats, "repeats", 3, "Timed runs per algorithm")
	fs.Uint64Var(&cfg.Seed, "seed", 42, "Terrain seed")
	fs.Float64Var(&cfg.CellSizeM, "cell-size", 30, "Cell size in metres")
	fs.Float64Var(&cfg.HeightM, "height", 1.7, "Observer height above ground in metres")
	fs.BoolVar(&cfg.Curvature, "curvature", true, "Apply earth curvature correction")
	fs.IntVar(&cfg.Workers, "workers", 0, "Goroutines per engine (0 = GOMAXPROCS)")
	fs.StringVar(&cfg.OutputJSON, "json", "", "Output JSON filename (e.g., results.json)")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if cfg.Size < 1 {
		return Config{}, fmt.Errorf("size must be positive, got %d", cfg.Size)
	}
	return cfg, nil
}

func runComparison(cfg Config) (*ComparisonResult, error) {
	log.Printf("Starting algorithm comparison on %dx%d synthetic terrain (seed %d)", cfg.Size, cfg.Size, cfg.Seed)

	grid := dem.Synthetic(cfg.Size, cfg.Seed)
	p := viewshed.Params{
		ObserverRow:      cfg.Size / 2,
		ObserverCol:      cfg.Size / 2,
		ObserverHeightM:  cfg.HeightM,
		CellSizeM:        cfg.CellSizeM,
		CurvatureEnabled: cfg.Curvature,
	}

	eval, err := viewshed.Evaluate(grid, p, cfg.Repeats,
		&viewshed.BaselineEngine{Workers: cfg.Workers},
		&viewshed.RadialEngine{Workers: cfg.Workers},
	)
	if err != nil {
		return nil, err
	}

	return &ComparisonResult{
		Size:       cfg.Size,
		Seed:       cfg.Seed,
		Repeats:    max(cfg.Repeats, 1),
		CellSizeM:  cfg.CellSizeM,
		Curvature:  cfg.Curvature,
		Evaluation: eval,
	}, nil
}

func printResults(w io.Writer, result *ComparisonResult) {
	fmt.Fprintln(w, "\n=== Algorithm Comparison Results ===")
	fmt.Fprintf(w, "Grid: %dx%d at %.1f m (seed %d)\n", result.Size, result.Size, result.CellSizeM, result.Seed)
	fmt.Fprintf(w, "Repeats: %d\n", result.Repeats)
	fmt.Fprintf(w, "Curvature: %t\n", result.Curvature)

	fmt.Fprintln(w, "\n--- Per-Algorithm Statistics ---")
	all := append([]viewshed.EngineResult{result.Evaluation.Reference}, result.Evaluation.Candidates...)
	for _, r := range all {
		fmt.Fprintf(w, "\n%s:\n", r.Algorithm)
		fmt.Fprintf(w, "  Visible: %d / %d\n", r.Visible, r.Total)
		fmt.Fprintf(w, "  Mean Time: %.3f ms (stddev %.3f)\n", r.MeanMs, r.StdDevMs)
	}

	fmt.Fprintln(w, "\n--- Agreement vs "+result.Evaluation.Reference.Algorithm+" ---")
	for _, r := range result.Evaluation.Candidates {
		fmt.Fprintf(w, "%s: agreement %.2f%%, precision %.4f, recall %.4f\n",
			r.Algorithm, r.AgreementPct, r.Precision, r.Recall)
	}
}

func exportJSON(result *ComparisonResult, path string) error {
	if err := security.ValidateExportPath(path); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}
