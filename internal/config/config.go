// Package config loads run settings from defaults, an optional YAML file and
// the environment, in that order. A .env file seeds the environment first.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is wrapped by every validation and parse failure.
var ErrInvalidConfig = errors.New("invalid config")

// DefaultSource is the GeoNames US postal code dump.
const DefaultSource = "https://download.geonames.org/export/zip/US.zip"

type Config struct {
	// Source is a TSV, a zip holding one, or an http(s) URL to either.
	Source string `yaml:"source"`
	// Queries optionally lists query points in the same TSV formats. When
	// empty every loaded driver is used as a query point.
	Queries     string  `yaml:"queries"`
	Output      string  `yaml:"output"`
	K           int     `yaml:"k"`
	RadiusKm    float64 `yaml:"radius_km"`
	Workers     int     `yaml:"workers"`
	Scan        bool    `yaml:"scan"`
	MetricsAddr string  `yaml:"metrics_addr"`
}

func Default() Config {
	return Config{
		Source:   DefaultSource,
		Output:   "./NearestDrivers.json",
		K:        5,
		RadiusKm: 25,
		// Start with 4x cores, downloads and output are I/O bound
		Workers: runtime.NumCPU() * 4,
	}
}

// LoadDotEnv loads each existing .env file into the process environment.
// Variables already set win.
func LoadDotEnv(paths ...string) {
	for _, p := range paths {
		_ = godotenv.Load(p)
	}
}

// Load returns Default overlaid with the YAML file at path (if non-empty)
// and then with NEAREST_* environment variables.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return cfg, fmt.Errorf("open config: %w", err)
		}
		defer f.Close()
		dec := yaml.NewDecoder(f)
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return cfg, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("NEAREST_SOURCE"); v != "" {
		c.Source = v
	}
	if v := os.Getenv("NEAREST_QUERIES"); v != "" {
		c.Queries = v
	}
	if v := os.Getenv("NEAREST_OUTPUT"); v != "" {
		c.Output = v
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		c.MetricsAddr = v
	}
	if v := os.Getenv("NEAREST_K"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: NEAREST_K: %w", ErrInvalidConfig, err)
		}
		c.K = n
	}
	if v := os.Getenv("NEAREST_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: NEAREST_WORKERS: %w", ErrInvalidConfig, err)
		}
		c.Workers = n
	}
	if v := os.Getenv("NEAREST_RADIUS_KM"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: NEAREST_RADIUS_KM: %w", ErrInvalidConfig, err)
		}
		c.RadiusKm = f
	}
	if v := os.Getenv("NEAREST_SCAN"); v != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%w: NEAREST_SCAN: %w", ErrInvalidConfig, err)
		}
		c.Scan = b
	}
	return nil
}

// Validate reports the first out-of-range setting.
func (c Config) Validate() error {
	switch {
	case c.Source == "":
		return fmt.Errorf("%w: source is empty", ErrInvalidConfig)
	case c.Output == "":
		return fmt.Errorf("%w: output is empty", ErrInvalidConfig)
	case c.K <= 0:
		return fmt.Errorf("%w: k must be positive, got %d", ErrInvalidConfig, c.K)
	case c.Workers <= 0:
		return fmt.Errorf("%w: workers must be positive, got %d", ErrInvalidConfig, c.Workers)
	case c.RadiusKm < 0:
		return fmt.Errorf("%w: radius_km must not be negative, got %v", ErrInvalidConfig, c.RadiusKm)
	}
	return nil
}
