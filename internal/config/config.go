// Package config loads viewshed service configuration from JSON or YAML.
//
// Every field is optional: a nil pointer means "use the default", and the
// Get* accessors apply those defaults, so partial files are safe.
package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/viewshed/internal/viewshed"
)

// DefaultConfigPath is the path to the canonical defaults file.
const DefaultConfigPath = "config/viewshed.defaults.json"

// DefaultTileURLTemplate is the public AWS Terrarium terrain tile set.
const DefaultTileURLTemplate = "https://s3.amazonaws.com/elevation-tiles-prod/terrarium/{z}/{x}/{y}.png"

const maxFileSize = 1 * 1024 * 1024 // 1MB

// Config is the root service configuration.
type Config struct {
	// Engine
	Algorithm          *string `json:"algorithm,omitempty" yaml:"algorithm,omitempty"`
	SmoothingPasses    *int    `json:"smoothing_passes,omitempty" yaml:"smoothing_passes,omitempty"`
	SmoothingThreshold *int    `json:"smoothing_threshold,omitempty" yaml:"smoothing_threshold,omitempty"`
	CurvatureEnabled   *bool   `json:"curvature_enabled,omitempty" yaml:"curvature_enabled,omitempty"`
	Workers            *int    `json:"workers,omitempty" yaml:"workers,omitempty"`

	// Request defaults
	ObserverHeightM *float64 `json:"observer_height_m,omitempty" yaml:"observer_height_m,omitempty"`
	MaxRadiusKm     *float64 `json:"max_radius_km,omitempty" yaml:"max_radius_km,omitempty"`
	ResolutionM     *float64 `json:"resolution_m,omitempty" yaml:"resolution_m,omitempty"`

	// DEM
	DEMCacheDir     *string            `json:"dem_cache_dir,omitempty" yaml:"dem_cache_dir,omitempty"`
	TileURLTemplate *string            `json:"tile_url_template,omitempty" yaml:"tile_url_template,omitempty"`
	ObjectCache     *ObjectCacheConfig `json:"object_cache,omitempty" yaml:"object_cache,omitempty"`

	// Events
	KafkaBrokers []string `json:"kafka_brokers,omitempty" yaml:"kafka_brokers,omitempty"`
	KafkaTopic   *string  `json:"kafka_topic,omitempty" yaml:"kafka_topic,omitempty"`

	// Service
	ScenarioDBPath *string `json:"scenario_db_path,omitempty" yaml:"scenario_db_path,omitempty"`
	Listen         *string `json:"listen,omitempty" yaml:"listen,omitempty"`
	GRPCListen     *string `json:"grpc_listen,omitempty" yaml:"grpc_listen,omitempty"`
	RequestTimeout *string `json:"request_timeout,omitempty" yaml:"request_timeout,omitempty"` // duration string like "30s"
}

// ObjectCacheConfig points the DEM tile cache at an S3-compatible bucket.
type ObjectCacheConfig struct {
	Endpoint        string `json:"endpoint" yaml:"endpoint"`
	Bucket          string `json:"bucket" yaml:"bucket"`
	AccessKeyID     string `json:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key" yaml:"secret_access_key"`
	UseSSL          bool   `json:"use_ssl" yaml:"use_ssl"`
	Region          string `json:"region,omitempty" yaml:"region,omitempty"`
}

// EmptyConfig returns a Config with all fields unset.
func EmptyConfig() *Config {
	return &Config{}
}

// LoadConfig loads a Config from a .json, .yaml or .yml file no larger
// than 1MB, then validates it.
func LoadConfig(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(cleanPath))
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyConfig()
	if ext == ".json" {
		err = json.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", ext, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical defaults from DefaultConfigPath.
// It searches the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *Config {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from cmd/tools/prefetch-dem/
		"../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *Config) Validate() error {
	if c.Algorithm != nil {
		if _, err := viewshed.ParseAlgorithm(*c.Algorithm); err != nil {
			return err
		}
	}
	if c.SmoothingPasses != nil && *c.SmoothingPasses < 0 {
		return fmt.Errorf("smoothing_passes must be non-negative, got %d", *c.SmoothingPasses)
	}
	if c.SmoothingThreshold != nil && (*c.SmoothingThreshold < 1 || *c.SmoothingThreshold > 9) {
		return fmt.Errorf("smoothing_threshold must be between 1 and 9, got %d", *c.SmoothingThreshold)
	}
	if c.Workers != nil && *c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", *c.Workers)
	}
	if c.ObserverHeightM != nil && !(*c.ObserverHeightM >= 0 && !math.IsInf(*c.ObserverHeightM, 0)) {
		return fmt.Errorf("observer_height_m must be a finite non-negative number, got %v", *c.ObserverHeightM)
	}
	if c.MaxRadiusKm != nil && !(*c.MaxRadiusKm > 0) {
		return fmt.Errorf("max_radius_km must be positive, got %v", *c.MaxRadiusKm)
	}
	if c.ResolutionM != nil && !(*c.ResolutionM > 0) {
		return fmt.Errorf("resolution_m must be positive, got %v", *c.ResolutionM)
	}
	if c.TileURLTemplate != nil && *c.TileURLTemplate != "" {
		for _, ph := range []string{"{z}", "{x}", "{y}"} {
			if !strings.Contains(*c.TileURLTemplate, ph) {
				return fmt.Errorf("tile_url_template must contain %s, got %q", ph, *c.TileURLTemplate)
			}
		}
	}
	if oc := c.ObjectCache; oc != nil && (oc.Endpoint == "" || oc.Bucket == "") {
		return fmt.Errorf("object_cache requires endpoint and bucket")
	}
	if c.RequestTimeout != nil && *c.RequestTimeout != "" {
		if _, err := time.ParseDuration(*c.RequestTimeout); err != nil {
			return fmt.Errorf("invalid request_timeout '%s': %w", *c.RequestTimeout, err)
		}
	}
	return nil
}

// GetAlgorithm returns the configured engine or viewshed.DefaultAlgorithm.
func (c *Config) GetAlgorithm() viewshed.Algorithm {
	if c.Algorithm == nil {
		return viewshed.DefaultAlgorithm
	}
	alg, err := viewshed.ParseAlgorithm(*c.Algorithm)
	if err != nil {
		return viewshed.DefaultAlgorithm
	}
	return alg
}

// GetSmoothingPasses returns the smoothing_passes value or the default.
func (c *Config) GetSmoothingPasses() int {
	if c.SmoothingPasses == nil {
		return 1
	}
	return *c.SmoothingPasses
}

// GetSmoothingThreshold returns the smoothing_threshold value or the default.
func (c *Config) GetSmoothingThreshold() int {
	if c.SmoothingThreshold == nil {
		return viewshed.DefaultSmoothThreshold
	}
	return *c.SmoothingThreshold
}

// GetCurvatureEnabled returns the curvature_enabled value or the default.
func (c *Config) GetCurvatureEnabled() bool {
	if c.CurvatureEnabled == nil {
		return true
	}
	return *c.CurvatureEnabled
}

// GetWorkers returns the workers value or the default (0, all CPUs).
func (c *Config) GetWorkers() int {
	if c.Workers == nil {
		return 0
	}
	return *c.Workers
}

// GetObserverHeightM returns the observer_height_m value or the default.
func (c *Config) GetObserverHeightM() float64 {
	if c.ObserverHeightM == nil {
		return 1.7
	}
	return *c.ObserverHeightM
}

// GetMaxRadiusKm returns the max_radius_km value or the default.
func (c *Config) GetMaxRadiusKm() float64 {
	if c.MaxRadiusKm == nil {
		return 10
	}
	return *c.MaxRadiusKm
}

// GetResolutionM returns the resolution_m value or the default.
func (c *Config) GetResolutionM() float64 {
	if c.ResolutionM == nil {
		return 90
	}
	return *c.ResolutionM
}

// GetDEMCacheDir returns the dem_cache_dir value or the default.
func (c *Config) GetDEMCacheDir() string {
	if c.DEMCacheDir == nil || *c.DEMCacheDir == "" {
		return "data/dem"
	}
	return *c.DEMCacheDir
}

// GetTileURLTemplate returns the tile_url_template value or the default.
func (c *Config) GetTileURLTemplate() string {
	if c.TileURLTemplate == nil || *c.TileURLTemplate == "" {
		return DefaultTileURLTemplate
	}
	return *c.TileURLTemplate
}

// GetKafkaTopic returns the kafka_topic value or the default.
func (c *Config) GetKafkaTopic() string {
	if c.KafkaTopic == nil || *c.KafkaTopic == "" {
		return "viewshed-events"
	}
	return *c.KafkaTopic
}

// GetScenarioDBPath returns the scenario_db_path value or the default.
func (c *Config) GetScenarioDBPath() string {
	if c.ScenarioDBPath == nil || *c.ScenarioDBPath == "" {
		return "data/scenarios.db"
	}
	return *c.ScenarioDBPath
}

// GetListen returns the listen value or the default.
func (c *Config) GetListen() string {
	if c.Listen == nil || *c.Listen == "" {
		return "127.0.0.1:8000"
	}
	return *c.Listen
}

// GetGRPCListen returns the grpc_listen value; empty disables the gRPC
// health endpoint.
func (c *Config) GetGRPCListen() string {
	if c.GRPCListen == nil {
		return ""
	}
	return *c.GRPCListen
}

// GetRequestTimeout parses and returns RequestTimeout as a time.Duration.
func (c *Config) GetRequestTimeout() time.Duration {
	if c.RequestTimeout == nil || *c.RequestTimeout == "" {
		return 60 * time.Second
	}
	d, err := time.ParseDuration(*c.RequestTimeout)
	if err != nil {
		return 60 * time.Second
	}
	return d
}
