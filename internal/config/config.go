// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads SDK configuration from the environment and an optional
// YAML file. Environment variables take precedence over file values so that
// deployments can override checked-in defaults without editing files.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned when configuration validation fails.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Environment variable names consumed by FromEnv.
const (
	EnvAPIKey          = "SPYGLASS_API_KEY"
	EnvEndpoint        = "SPYGLASS_ENDPOINT"
	EnvAppName         = "SPYGLASS_APP_NAME"
	EnvBatch           = "SPYGLASS_BATCH"
	EnvLogLevel        = "SPYGLASS_LOG_LEVEL"
	EnvCaptureContent  = "SPYGLASS_CAPTURE_CONTENT"
	EnvDisabledModules = "SPYGLASS_DISABLED_INSTRUMENTATIONS"
	EnvStorePath       = "SPYGLASS_STORE_PATH"
)

// DefaultEndpoint is the ingestion URL used when none is configured.
const DefaultEndpoint = "https://ingest.spyglass.dev/v1/logs"

// Config is the complete SDK configuration.
type Config struct {
	// APIKey authenticates against the ingestion endpoint (Bearer token).
	APIKey string `yaml:"api_key"`

	// Endpoint is the base ingestion URL.
	Endpoint string `yaml:"endpoint"`

	// AppName identifies the application in exported traces.
	AppName string `yaml:"app_name"`

	// Batch controls whether spans are buffered and exported in batches.
	// When false, every span is exported as it ends.
	Batch bool `yaml:"batch"`

	// BatchSize is the maximum number of spans per export batch.
	BatchSize int `yaml:"batch_size"`

	// BatchInterval is how often the batch buffer is flushed.
	BatchInterval time.Duration `yaml:"batch_interval"`

	// LogLevel sets SDK log verbosity (trace, debug, info, warn, error).
	LogLevel string `yaml:"log_level"`

	// CaptureContent controls whether prompt/completion text is exported.
	// When false, usage, cost, and timing are still captured but content
	// attributes are scrubbed before any destination sees them.
	CaptureContent bool `yaml:"capture_content"`

	// DisabledInstrumentations lists instrumentation module names to skip.
	DisabledInstrumentations []string `yaml:"disabled_instrumentations"`

	// Delivery configures the HTTP delivery layer.
	Delivery DeliveryConfig `yaml:"delivery"`

	// StorePath, when set, enables the local SQLite trace store destination.
	StorePath string `yaml:"store_path"`

	// Sampling configures trace sampling.
	Sampling SamplingConfig `yaml:"sampling"`
}

// DeliveryConfig controls batching, retry, and backpressure for the
// ingestion HTTP path.
type DeliveryConfig struct {
	// Timeout bounds a single HTTP attempt.
	Timeout time.Duration `yaml:"timeout"`

	// MaxRetries is the maximum number of retries after the initial attempt.
	MaxRetries int `yaml:"max_retries"`

	// BaseDelay is the first retry delay; it doubles on every retry.
	BaseDelay time.Duration `yaml:"base_delay"`

	// MaxDelay caps the per-retry delay.
	MaxDelay time.Duration `yaml:"max_delay"`

	// RequestsPerSecond rate-limits ingestion POSTs. Zero disables limiting.
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// SamplingConfig controls which traces are recorded.
type SamplingConfig struct {
	// Enabled activates sampling (default: false, record everything).
	Enabled bool `yaml:"enabled"`

	// Rate is the fraction of traces to record (0.0 - 1.0).
	Rate float64 `yaml:"rate"`

	// AlwaysSampleErrors records error spans regardless of the rate.
	AlwaysSampleErrors bool `yaml:"always_sample_errors"`
}

// Default returns configuration with sensible defaults.
func Default() Config {
	return Config{
		Endpoint:       DefaultEndpoint,
		AppName:        "default",
		Batch:          true,
		BatchSize:      512,
		BatchInterval:  5 * time.Second,
		LogLevel:       "warn",
		CaptureContent: true,
		Delivery: DeliveryConfig{
			Timeout:    20 * time.Second,
			MaxRetries: 3,
			BaseDelay:  1 * time.Second,
			MaxDelay:   30 * time.Second,
		},
		Sampling: SamplingConfig{
			Enabled:            false,
			Rate:               1.0,
			AlwaysSampleErrors: true,
		},
	}
}

// FromEnv returns the default configuration overlaid with environment values.
func FromEnv() Config {
	cfg := Default()
	applyEnv(&cfg)
	return cfg
}

// Load reads a YAML configuration file and overlays environment values.
// A missing file is not an error; the defaults plus environment apply.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}

	applyEnv(&cfg)
	return cfg, cfg.Validate()
}

func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvAPIKey); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv(EnvEndpoint); v != "" {
		cfg.Endpoint = v
	}
	if v := os.Getenv(EnvAppName); v != "" {
		cfg.AppName = v
	}
	if v := os.Getenv(EnvBatch); v != "" {
		cfg.Batch = parseBool(v, cfg.Batch)
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v := os.Getenv(EnvCaptureContent); v != "" {
		cfg.CaptureContent = parseBool(v, cfg.CaptureContent)
	}
	if v := os.Getenv(EnvDisabledModules); v != "" {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				cfg.DisabledInstrumentations = append(cfg.DisabledInstrumentations, name)
			}
		}
	}
	if v := os.Getenv(EnvStorePath); v != "" {
		cfg.StorePath = v
	}
}

func parseBool(s string, fallback bool) bool {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return fallback
	}
	return b
}

// Validate checks the configuration for contradictions.
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("%w: endpoint is required", ErrInvalidConfig)
	}
	if c.BatchSize < 0 {
		return fmt.Errorf("%w: batch_size must be >= 0, got %d", ErrInvalidConfig, c.BatchSize)
	}
	if c.Delivery.Timeout <= 0 {
		return fmt.Errorf("%w: delivery.timeout must be > 0, got %v", ErrInvalidConfig, c.Delivery.Timeout)
	}
	if c.Delivery.MaxRetries < 0 {
		return fmt.Errorf("%w: delivery.max_retries must be >= 0, got %d", ErrInvalidConfig, c.Delivery.MaxRetries)
	}
	if c.Delivery.MaxRetries > 0 {
		if c.Delivery.BaseDelay <= 0 {
			return fmt.Errorf("%w: delivery.base_delay must be > 0 when retries are enabled", ErrInvalidConfig)
		}
		if c.Delivery.MaxDelay < c.Delivery.BaseDelay {
			return fmt.Errorf("%w: delivery.max_delay (%v) must be >= delivery.base_delay (%v)",
				ErrInvalidConfig, c.Delivery.MaxDelay, c.Delivery.BaseDelay)
		}
	}
	if c.Sampling.Rate < 0 || c.Sampling.Rate > 1 {
		return fmt.Errorf("%w: sampling.rate must be in [0,1], got %v", ErrInvalidConfig, c.Sampling.Rate)
	}
	return nil
}

// InstrumentationDisabled reports whether the named module is on the
// disable-list.
func (c *Config) InstrumentationDisabled(name string) bool {
	for _, n := range c.DisabledInstrumentations {
		if strings.EqualFold(n, name) {
			return true
		}
	}
	return false
}
