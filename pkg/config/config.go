// Package config loads the worker configuration from a YAML file and the
// environment. Values left unset in the file keep their defaults; BALLOT_*
// variables override both.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultInterval       = 5 * time.Minute
	DefaultMaxConcurrency = 2
	DefaultThrottleDelay  = 3 * time.Second
	DefaultDatabasePath   = "ballot.db"
	DefaultHTTPAddr       = ":8080"
	DefaultServiceTimeout = 30 * time.Second
)

type Config struct {
	Worker   WorkerConfig   `yaml:"worker"`
	Database DatabaseConfig `yaml:"database"`
	HTTP     HTTPConfig     `yaml:"http"`
	Services ServicesConfig `yaml:"services"`
}

type WorkerConfig struct {
	Enabled        *bool         `yaml:"enabled"`
	Interval       time.Duration `yaml:"interval"`
	MaxConcurrency float64       `yaml:"maxConcurrency"`
	DryRun         bool          `yaml:"dryRun"`
	// ThrottleDelay is optional so that an explicit 0 can be told apart from
	// "not set".
	ThrottleDelay *time.Duration `yaml:"throttleDelay"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

type ServiceConfig struct {
	URL     string        `yaml:"url"`
	APIKey  string        `yaml:"apiKey"`
	Timeout time.Duration `yaml:"timeout"`
}

type ServicesConfig struct {
	Proposals ServiceConfig `yaml:"proposals"`
	Analysis  ServiceConfig `yaml:"analysis"`
	TxBuilder ServiceConfig `yaml:"txBuilder"`
	Signer    ServiceConfig `yaml:"signer"`
	Social    ServiceConfig `yaml:"social"`
}

func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads path if it exists. A missing file is not an error.
func Load(path string) (*Config, error) {
	c := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, c); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}
	c.applyDefaults()
	if err := c.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Worker.Enabled == nil {
		enabled := true
		c.Worker.Enabled = &enabled
	}
	if c.Worker.Interval <= 0 {
		c.Worker.Interval = DefaultInterval
	}
	if c.Worker.MaxConcurrency == 0 {
		c.Worker.MaxConcurrency = DefaultMaxConcurrency
	}
	if c.Worker.ThrottleDelay == nil {
		d := DefaultThrottleDelay
		c.Worker.ThrottleDelay = &d
	}
	if c.Database.Path == "" {
		c.Database.Path = DefaultDatabasePath
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = DefaultHTTPAddr
	}
	for _, svc := range c.Services.all() {
		if svc.Timeout <= 0 {
			svc.Timeout = DefaultServiceTimeout
		}
	}
}

func (s *ServicesConfig) all() []*ServiceConfig {
	return []*ServiceConfig{&s.Proposals, &s.Analysis, &s.TxBuilder, &s.Signer, &s.Social}
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("BALLOT_WORKER_ENABLED"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: BALLOT_WORKER_ENABLED: %w", err)
		}
		c.Worker.Enabled = &b
	}
	if v, ok := lookup("BALLOT_WORKER_INTERVAL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: BALLOT_WORKER_INTERVAL: %w", err)
		}
		c.Worker.Interval = d
	}
	if v, ok := lookup("BALLOT_WORKER_MAX_CONCURRENCY"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("config: BALLOT_WORKER_MAX_CONCURRENCY: %w", err)
		}
		c.Worker.MaxConcurrency = f
	}
	if v, ok := lookup("BALLOT_WORKER_DRY_RUN"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: BALLOT_WORKER_DRY_RUN: %w", err)
		}
		c.Worker.DryRun = b
	}
	if v, ok := lookup("BALLOT_WORKER_THROTTLE_DELAY"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: BALLOT_WORKER_THROTTLE_DELAY: %w", err)
		}
		c.Worker.ThrottleDelay = &d
	}
	if v, ok := lookup("BALLOT_DATABASE_PATH"); ok && v != "" {
		c.Database.Path = v
	}
	if v, ok := lookup("BALLOT_HTTP_ADDR"); ok && v != "" {
		c.HTTP.Addr = v
	}

	services := map[string]*ServiceConfig{
		"PROPOSALS":  &c.Services.Proposals,
		"ANALYSIS":   &c.Services.Analysis,
		"TX_BUILDER": &c.Services.TxBuilder,
		"SIGNER":     &c.Services.Signer,
		"SOCIAL":     &c.Services.Social,
	}
	for name, svc := range services {
		if v, ok := lookup("BALLOT_" + name + "_URL"); ok {
			svc.URL = strings.TrimSpace(v)
		}
		if v, ok := lookup("BALLOT_" + name + "_API_KEY"); ok {
			svc.APIKey = v
		}
	}
	return nil
}

func (w WorkerConfig) IsEnabled() bool {
	return w.Enabled == nil || *w.Enabled
}

// Concurrency is MaxConcurrency floored to an integer and clamped to >= 1.
func (w WorkerConfig) Concurrency() int {
	if math.IsNaN(w.MaxConcurrency) || w.MaxConcurrency < 1 {
		return 1
	}
	return int(math.Floor(w.MaxConcurrency))
}

func (w WorkerConfig) Throttle() time.Duration {
	if w.ThrottleDelay == nil {
		return DefaultThrottleDelay
	}
	if *w.ThrottleDelay < 0 {
		return 0
	}
	return *w.ThrottleDelay
}
