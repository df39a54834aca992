// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads symlens configuration.
//
// Values are resolved with priority env > file > defaults and validated
// with struct tags:
//
//	verification:
//	  enabled: true
//	  parallelism: 8
//	lens:
//	  array_cache_capacity: 4096
//	logging:
//	  level: info
//	  format: text
//	telemetry:
//	  trace_exporter: none
//	  metric_exporter: prometheus
//	  otlp_endpoint: localhost:4317
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/symlens/pkg/logging"
	"github.com/AleutianAI/symlens/services/lens/lens"
	"github.com/AleutianAI/symlens/services/lens/telemetry"
	"github.com/AleutianAI/symlens/services/lens/verify"
)

// Environment variables that override file values.
const (
	EnvVerify   = "SYMLENS_VERIFY"
	EnvLogLevel = "SYMLENS_LOG_LEVEL"
)

// ErrInvalidConfig wraps validation failures.
var ErrInvalidConfig = errors.New("invalid config")

var validate = validator.New()

// Config is the top-level configuration.
//
// Thread Safety: Safe to read concurrently. Not safe to modify after Load.
type Config struct {
	Verification VerificationConfig `yaml:"verification"`
	Lens         LensConfig         `yaml:"lens"`
	Logging      LoggingConfig      `yaml:"logging"`
	Telemetry    TelemetryConfig    `yaml:"telemetry"`
}

// VerificationConfig controls the consistency checks.
type VerificationConfig struct {
	// Enabled turns whole-program checks on. Disabled checks pass.
	Enabled bool `yaml:"enabled"`

	// Parallelism is the worker count for whole-program checks.
	Parallelism int `yaml:"parallelism" validate:"gte=1,lte=1024"`
}

// LensConfig controls lens construction.
type LensConfig struct {
	// ArrayCacheCapacity bounds each node's array-type memo.
	ArrayCacheCapacity int `yaml:"array_cache_capacity" validate:"gte=1"`
}

// LoggingConfig controls the process logger.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn warning error"`
	Format string `yaml:"format" validate:"oneof=text json"`
	Dir    string `yaml:"dir"`
}

// TelemetryConfig selects OpenTelemetry exporters.
type TelemetryConfig struct {
	TraceExporter  string `yaml:"trace_exporter" validate:"oneof=none stdout otlp"`
	MetricExporter string `yaml:"metric_exporter" validate:"oneof=none stdout prometheus"`
	OTLPEndpoint   string `yaml:"otlp_endpoint" validate:"required_if=TraceExporter otlp"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Verification: VerificationConfig{
			Enabled:     true,
			Parallelism: runtime.GOMAXPROCS(0),
		},
		Lens: LensConfig{
			ArrayCacheCapacity: lens.DefaultArrayCacheCapacity,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Telemetry: TelemetryConfig{
			TraceExporter:  "none",
			MetricExporter: "prometheus",
			OTLPEndpoint:   "localhost:4317",
		},
	}
}

// Load reads configuration with priority env > file > defaults.
//
// Inputs:
//   - path: YAML file. Empty means defaults only. A missing file is not an
//     error.
//
// Outputs:
//   - Config: The merged configuration.
//   - error: Non-nil if the file is malformed or validation fails.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	loadFromEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func loadFromEnv(cfg *Config) {
	if v := os.Getenv(EnvVerify); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Verification.Enabled = b
		}
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks struct tags.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// VerifyOptions returns verifier options for this configuration.
func (c Config) VerifyOptions() []verify.Option {
	return []verify.Option{
		verify.WithEnabled(c.Verification.Enabled),
		verify.WithParallelism(c.Verification.Parallelism),
	}
}

// LensOptions returns builder options shared by every pass.
func (c Config) LensOptions() []lens.BuilderOption {
	return []lens.BuilderOption{
		lens.WithArrayCacheCapacity(c.Lens.ArrayCacheCapacity),
	}
}

// ToTelemetry maps the telemetry section onto telemetry.Config.
func (c Config) ToTelemetry(out io.Writer) telemetry.Config {
	tc := telemetry.DefaultConfig()
	tc.TraceExporter = c.Telemetry.TraceExporter
	tc.MetricExporter = c.Telemetry.MetricExporter
	tc.OTLPEndpoint = c.Telemetry.OTLPEndpoint
	tc.Output = out
	return tc
}

// NewLogger builds the process logger. The level was validated by Load.
func (c Config) NewLogger(out io.Writer, service string) *logging.Logger {
	level, _ := logging.ParseLevel(c.Logging.Level)
	return logging.New(logging.Config{
		Level:   level,
		Service: service,
		JSON:    c.Logging.Format == "json",
		Output:  out,
		LogDir:  c.Logging.Dir,
	})
}
