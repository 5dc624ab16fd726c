// Package config loads sheet-detect settings from a TOML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/ironsheep/sheet-detect/internal/detection"
	"github.com/ironsheep/sheet-detect/internal/imaging"
	"github.com/ironsheep/sheet-detect/internal/logging"
)

// Config holds the application configuration
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Detection DetectionConfig `toml:"detection"`
	Log       LogConfig       `toml:"log"`
}

// ServerConfig holds the HTTP server settings
type ServerConfig struct {
	Addr              string   `toml:"addr"`
	MaxUploadBytes    int64    `toml:"max_upload_bytes"`
	MaxConnections    int      `toml:"max_connections"`
	MaxConcurrent     int      `toml:"max_concurrent"`
	DetectTimeout     Duration `toml:"detect_timeout"`
	ShutdownTimeout   Duration `toml:"shutdown_timeout"`
	AllowedExtensions []string `toml:"allowed_extensions"`
}

// DetectionConfig mirrors detection.Params in file form
type DetectionConfig struct {
	Backend           string  `toml:"backend"`
	Strategy          string  `toml:"strategy"`
	MaxDimension      int     `toml:"max_dimension"`
	CannyLow          float64 `toml:"canny_low"`
	CannyHigh         float64 `toml:"canny_high"`
	HoughThreshold    int     `toml:"hough_threshold"`
	MinLineLength     float64 `toml:"min_line_length"`
	MaxLineGap        float64 `toml:"max_line_gap"`
	MinSegments       int     `toml:"min_segments"`
	ClusterEps        float64 `toml:"cluster_eps"`
	ClusterMinSamples int     `toml:"cluster_min_samples"`
	MinCorners        int     `toml:"min_corners"`
	BandThickness     float64 `toml:"band_thickness"`
	DilateSize        int     `toml:"dilate_size"`
	DilateIterations  int     `toml:"dilate_iterations"`
	MinBlobArea       float64 `toml:"min_blob_area"`
	MaxBlobArea       float64 `toml:"max_blob_area"`
	QuadEpsilon       float64 `toml:"quad_epsilon"`
	MinQuadArea       float64 `toml:"min_quad_area"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level      string `toml:"level"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Compress   bool   `toml:"compress"`
}

// Duration is a time.Duration written as "30s" or "1m30s" in the file.
type Duration struct {
	time.Duration
}

// UnmarshalText parses a Go duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText writes the duration in Go syntax.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns a configuration with default values
func Default() *Config {
	p := detection.DefaultParams()
	return &Config{
		Server: ServerConfig{
			Addr:              ":5000",
			MaxUploadBytes:    16 << 20,
			MaxConnections:    64,
			MaxConcurrent:     4,
			DetectTimeout:     Duration{30 * time.Second},
			ShutdownTimeout:   Duration{10 * time.Second},
			AllowedExtensions: append([]string(nil), imaging.DefaultExtensions...),
		},
		Detection: fromParams(p),
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 2,
			MaxAgeDays: 28,
			Compress:   true,
		},
	}
}

// Load returns Default() overlaid with the file at path (if path is not
// empty) and then with the environment.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		var err error
		if cfg, err = LoadFromFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a TOML file. Keys missing from the
// file keep their default values; unknown keys are an error.
func LoadFromFile(filename string) (*Config, error) {
	cfg := Default()
	md, err := toml.DecodeFile(filename, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown config keys in %s: %s", filename, strings.Join(keys, ", "))
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Addr = getEnv("SHEET_ADDR", c.Server.Addr)
	c.Log.Level = getEnv("SHEET_LOG_LEVEL", c.Log.Level)
	c.Log.File = getEnv("SHEET_LOG_FILE", c.Log.File)
	c.Detection.Backend = getEnv("SHEET_BACKEND", c.Detection.Backend)
	c.Detection.Strategy = getEnv("SHEET_STRATEGY", c.Detection.Strategy)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr cannot be empty"))
	}
	if c.Server.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("server.max_upload_bytes must be positive"))
	}
	if c.Server.MaxConnections < 0 {
		errs = append(errs, errors.New("server.max_connections cannot be negative"))
	}
	if c.Server.MaxConcurrent < 1 {
		errs = append(errs, errors.New("server.max_concurrent must be at least 1"))
	}
	if c.Server.DetectTimeout.Duration <= 0 {
		errs = append(errs, errors.New("server.detect_timeout must be positive"))
	}
	if len(c.Server.AllowedExtensions) == 0 {
		errs = append(errs, errors.New("server.allowed_extensions cannot be empty"))
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Log.File != "" && c.Log.MaxSizeMB <= 0 {
		errs = append(errs, errors.New("log.max_size_mb must be positive when log.file is set"))
	}

	if _, err := c.Detection.Params(); err != nil {
		errs = append(errs, fmt.Errorf("detection: %w", err))
	}

	return errors.Join(errs...)
}

// Params converts the section into validated detection parameters.
func (d DetectionConfig) Params() (detection.Params, error) {
	backend, err := detection.ParseBackend(d.Backend)
	if err != nil {
		return detection.Params{}, err
	}
	strategy, err := detection.ParseStrategy(d.Strategy)
	if err != nil {
		return detection.Params{}, err
	}

	p := detection.Params{
		Backend:           backend,
		Strategy:          strategy,
		MaxDimension:      d.MaxDimension,
		CannyLow:          d.CannyLow,
		CannyHigh:         d.CannyHigh,
		HoughThreshold:    d.HoughThreshold,
		MinLineLength:     d.MinLineLength,
		MaxLineGap:        d.MaxLineGap,
		MinSegments:       d.MinSegments,
		ClusterEps:        d.ClusterEps,
		ClusterMinSamples: d.ClusterMinSamples,
		MinCorners:        d.MinCorners,
		BandThickness:     d.BandThickness,
		DilateSize:        d.DilateSize,
		DilateIterations:  d.DilateIterations,
		MinBlobArea:       d.MinBlobArea,
		MaxBlobArea:       d.MaxBlobArea,
		QuadEpsilon:       d.QuadEpsilon,
		MinQuadArea:       d.MinQuadArea,
	}
	if err := p.Validate(); err != nil {
		return detection.Params{}, err
	}
	return p, nil
}

func fromParams(p detection.Params) DetectionConfig {
	return DetectionConfig{
		Backend:           string(p.Backend),
		Strategy:          string(p.Strategy),
		MaxDimension:      p.MaxDimension,
		CannyLow:          p.CannyLow,
		CannyHigh:         p.CannyHigh,
		HoughThreshold:    p.HoughThreshold,
		MinLineLength:     p.MinLineLength,
		MaxLineGap:        p.MaxLineGap,
		MinSegments:       p.MinSegments,
		ClusterEps:        p.ClusterEps,
		ClusterMinSamples: p.ClusterMinSamples,
		MinCorners:        p.MinCorners,
		BandThickness:     p.BandThickness,
		DilateSize:        p.DilateSize,
		DilateIterations:  p.DilateIterations,
		MinBlobArea:       p.MinBlobArea,
		MaxBlobArea:       p.MaxBlobArea,
		QuadEpsilon:       p.QuadEpsilon,
		MinQuadArea:       p.MinQuadArea,
	}
}

// LogOptions converts the log section for logging.Setup.
func (l LogConfig) LogOptions() logging.Options {
	return logging.Options{
		Level:      l.Level,
		File:       l.File,
		MaxSizeMB:  l.MaxSizeMB,
		MaxBackups: l.MaxBackups,
		MaxAgeDays: l.MaxAgeDays,
		Compress:   l.Compress,
	}
}
