// Package config loads the fleetguard configuration file and applies
// environment overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dd0wney/cluso-fleetguard/pkg/logging"
	"github.com/dd0wney/cluso-fleetguard/pkg/monitor"
	"github.com/dd0wney/cluso-fleetguard/pkg/topology"
	"github.com/dd0wney/cluso-fleetguard/pkg/validation"
	"gopkg.in/yaml.v3"
)

// Environment variables that override file values.
const (
	EnvMinScore    = "FLEETGUARD_MIN_SCORE"
	EnvMaxCritical = "FLEETGUARD_MAX_CRITICAL"
	EnvTimeout     = "FLEETGUARD_TIMEOUT"
	EnvInterval    = "FLEETGUARD_INTERVAL"
)

var (
	// ErrInvalidEnv wraps an unparsable environment override.
	ErrInvalidEnv = errors.New("invalid environment override")

	// ErrInvalidConfig wraps server, topology and logging validation failures.
	ErrInvalidConfig = errors.New("invalid config")
)

// Config is the fleetguard configuration file.
type Config struct {
	// Analysis holds the thresholds, tuning and monitor schedule.
	Analysis monitor.Config `yaml:"analysis" json:"analysis"`
	Server   ServerConfig   `yaml:"server" json:"server"`
	Topology TopologyConfig `yaml:"topology" json:"topology"`
	LogLevel string         `yaml:"logLevel" json:"logLevel"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr            string        `yaml:"addr" json:"addr"`                       // Listen address (default: :8080)
	ReadTimeout     time.Duration `yaml:"readTimeout" json:"readTimeout"`         // (default: 10s)
	WriteTimeout    time.Duration `yaml:"writeTimeout" json:"writeTimeout"`       // (default: 60s)
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" json:"shutdownTimeout"` // (default: 15s)
	MaxBodyBytes    int64         `yaml:"maxBodyBytes" json:"maxBodyBytes"`       // Request body limit (default: 8 MiB)
	HealthTimeout   time.Duration `yaml:"healthTimeout" json:"healthTimeout"`     // Per-probe check budget (default: 2s)
}

// TopologyConfig names the topology file the monitor watches.
type TopologyConfig struct {
	Path     string        `yaml:"path" json:"path"`
	Debounce time.Duration `yaml:"debounce" json:"debounce"`
}

// Default returns the documented defaults
func Default() Config {
	return Config{
		Analysis: monitor.DefaultConfig(),
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			MaxBodyBytes:    8 << 20,
			HealthTimeout:   2 * time.Second,
		},
		Topology: TopologyConfig{
			Debounce: topology.DefaultDebounce,
		},
		LogLevel: "INFO",
	}
}

// Load reads the YAML file at path over the defaults, applies environment
// overrides and validates. An empty path loads defaults plus environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := decode(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := ApplyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates. Environment variables
// are not consulted.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := decode(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ApplyEnv overrides thresholds and timings from the environment.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvMinScore); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %w", ErrInvalidEnv, EnvMinScore, v, err)
		}
		cfg.Analysis.MinResilienceScore = f
	}
	if v, ok := lookup(EnvMaxCritical); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %w", ErrInvalidEnv, EnvMaxCritical, v, err)
		}
		cfg.Analysis.MaxCriticalSpofs = n
	}
	if v, ok := lookup(EnvTimeout); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %w", ErrInvalidEnv, EnvTimeout, v, err)
		}
		cfg.Analysis.Timeout = d
	}
	if v, ok := lookup(EnvInterval); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %w", ErrInvalidEnv, EnvInterval, v, err)
		}
		cfg.Analysis.Interval = d
	}
	return nil
}

// Validate checks if configuration is valid
func (c Config) Validate() error {
	if err := c.Analysis.Validate(); err != nil {
		return err
	}
	err := validation.NewConfigValidator("config").
		Required("Server.Addr", c.Server.Addr).
		MinDuration("Server.ReadTimeout", c.Server.ReadTimeout, 0).
		MinDuration("Server.WriteTimeout", c.Server.WriteTimeout, 0).
		MinDuration("Server.ShutdownTimeout", c.Server.ShutdownTimeout, 0).
		MinDuration("Server.HealthTimeout", c.Server.HealthTimeout, 0).
		Custom("Server.MaxBodyBytes", func() error {
			if c.Server.MaxBodyBytes <= 0 {
				return fmt.Errorf("must be positive, got %d", c.Server.MaxBodyBytes)
			}
			return nil
		}).
		MinDuration("Topology.Debounce", c.Topology.Debounce, 0).
		OneOf("LogLevel", strings.ToUpper(c.LogLevel), []string{"DEBUG", "INFO", "WARN", "WARNING", "ERROR"}).
		Validate()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// Level returns the configured log level.
func (c Config) Level() logging.Level {
	return logging.ParseLevel(c.LogLevel)
}
