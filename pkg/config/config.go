// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads CodeGuardian configuration.
//
// Values are layered: built-in defaults, then an optional YAML or TOML file,
// then CODEGUARDIAN_* environment variables. The result is validated with
// struct tags before use.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ConfigEnv names the environment variable holding the config file path.
const ConfigEnv = "CODEGUARDIAN_CONFIG"

// MaxConfigFileSize bounds the config file read.
const MaxConfigFileSize = 256 * 1024

// ErrInvalidConfig wraps every load or validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

var validate = validator.New()

// Config is the full CodeGuardian configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Scanner   ScannerConfig   `yaml:"scanner" toml:"scanner"`
	Store     StoreConfig     `yaml:"store" toml:"store"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry" toml:"telemetry"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Host string `yaml:"host" toml:"host"`
	Port int    `yaml:"port" toml:"port" validate:"min=1,max=65535"`

	// MaxContentBytes bounds a request body. Larger bodies get 413.
	MaxContentBytes int64 `yaml:"max_content_bytes" toml:"max_content_bytes" validate:"min=1"`

	// RateLimitRPS is the sustained request rate. Zero disables limiting.
	RateLimitRPS   float64 `yaml:"rate_limit_rps" toml:"rate_limit_rps" validate:"gte=0"`
	RateLimitBurst int     `yaml:"rate_limit_burst" toml:"rate_limit_burst" validate:"gte=0"`

	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" toml:"shutdown_timeout" validate:"gte=0"`
}

// ScannerConfig configures the scan engine.
type ScannerConfig struct {
	MaxContentBytes int `yaml:"max_content_bytes" toml:"max_content_bytes" validate:"min=1"`
	MaxMatchLength  int `yaml:"max_match_length" toml:"max_match_length" validate:"min=1"`
	ContextLines    int `yaml:"context_lines" toml:"context_lines" validate:"min=0,max=20"`

	// Parallelism bounds concurrent file scans. Zero uses the CPU count.
	Parallelism   int  `yaml:"parallelism" toml:"parallelism" validate:"min=0,max=256"`
	MaxBatchFiles int  `yaml:"max_batch_files" toml:"max_batch_files" validate:"min=1"`
	MaskSecrets   bool `yaml:"mask_secrets" toml:"mask_secrets"`

	// PatternsFile is an organization pattern file merged into the
	// built-in registry.
	PatternsFile  string `yaml:"patterns_file" toml:"patterns_file"`
	WatchPatterns bool   `yaml:"watch_patterns" toml:"watch_patterns"`
}

// StoreConfig configures report persistence.
type StoreConfig struct {
	Enabled       bool   `yaml:"enabled" toml:"enabled"`
	Path          string `yaml:"path" toml:"path" validate:"required_if=Enabled true InMemory false"`
	InMemory      bool   `yaml:"in_memory" toml:"in_memory"`
	RetentionDays int    `yaml:"retention_days" toml:"retention_days" validate:"min=0"`
}

// LoggingConfig configures pkg/logging.
type LoggingConfig struct {
	Level string `yaml:"level" toml:"level" validate:"oneof=debug info warn warning error"`
	Dir   string `yaml:"dir" toml:"dir"`
	JSON  bool   `yaml:"json" toml:"json"`
}

// TelemetryConfig configures services/telemetry.
type TelemetryConfig struct {
	TraceExporter  string `yaml:"trace_exporter" toml:"trace_exporter" validate:"oneof=otlp stdout none"`
	MetricExporter string `yaml:"metric_exporter" toml:"metric_exporter" validate:"oneof=prometheus stdout none"`
	OTLPEndpoint   string `yaml:"otlp_endpoint" toml:"otlp_endpoint" validate:"required_if=TraceExporter otlp"`
	Environment    string `yaml:"environment" toml:"environment"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            8088,
			MaxContentBytes: 10 << 20,
			RateLimitRPS:    50,
			RateLimitBurst:  100,
			ShutdownTimeout: 15 * time.Second,
		},
		Scanner: ScannerConfig{
			MaxContentBytes: 5 << 20,
			MaxMatchLength:  200,
			ContextLines:    1,
			MaxBatchFiles:   1000,
		},
		Store: StoreConfig{
			Path:          "~/.codeguardian/reports",
			RetentionDays: 30,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Telemetry: TelemetryConfig{
			TraceExporter:  "none",
			MetricExporter: "prometheus",
			OTLPEndpoint:   "localhost:4317",
			Environment:    "development",
		},
	}
}

// Load builds the configuration.
//
// Description:
//
//	Starts from Default(), overlays the file at path (or at
//	$CODEGUARDIAN_CONFIG when path is empty), applies environment
//	overrides, expands "~" in paths and validates the result. A ".toml"
//	file is decoded as TOML, anything else as YAML. Unknown keys are
//	rejected in both. With no file configured only defaults and
//	environment apply.
//
// Inputs:
//
//	path - Config file path, or "".
//
// Outputs:
//
//	Config - The validated configuration.
//	error - Wraps ErrInvalidConfig, or an I/O error for an unreadable file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(ConfigEnv)
	}
	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	cfg.Store.Path = expandHome(cfg.Store.Path)
	cfg.Logging.Dir = expandHome(cfg.Logging.Dir)
	cfg.Scanner.PatternsFile = expandHome(cfg.Scanner.PatternsFile)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse overlays YAML data onto c.
func (c *Config) Parse(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// ParseTOML overlays TOML data onto c.
func (c *Config) ParseTOML(data []byte) error {
	md, err := toml.Decode(string(data), c)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if extra := md.Undecoded(); len(extra) > 0 {
		keys := make([]string, len(extra))
		for i, k := range extra {
			keys[i] = k.String()
		}
		return fmt.Errorf("%w: unknown keys %s", ErrInvalidConfig, strings.Join(keys, ", "))
	}
	return nil
}

func (c *Config) mergeFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("config file: %w", err)
	}
	if info.Size() > MaxConfigFileSize {
		return fmt.Errorf("%w: %s is %d bytes (max %d)", ErrInvalidConfig, path, info.Size(), MaxConfigFileSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	parse := c.Parse
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		parse = c.ParseTOML
	}
	if err := parse(data); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// applyEnv applies CODEGUARDIAN_* overrides read through lookup.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	overrides := []struct {
		key string
		set func(string) error
	}{
		{"CODEGUARDIAN_HOST", setString(&c.Server.Host)},
		{"CODEGUARDIAN_PORT", setInt(&c.Server.Port)},
		{"CODEGUARDIAN_RATE_LIMIT_RPS", setFloat(&c.Server.RateLimitRPS)},
		{"CODEGUARDIAN_MAX_CONTENT_BYTES", setInt(&c.Scanner.MaxContentBytes)},
		{"CODEGUARDIAN_PARALLELISM", setInt(&c.Scanner.Parallelism)},
		{"CODEGUARDIAN_MASK_SECRETS", setBool(&c.Scanner.MaskSecrets)},
		{"CODEGUARDIAN_PATTERNS", setString(&c.Scanner.PatternsFile)},
		{"CODEGUARDIAN_STORE_ENABLED", setBool(&c.Store.Enabled)},
		{"CODEGUARDIAN_STORE_PATH", setString(&c.Store.Path)},
		{"CODEGUARDIAN_LOG_LEVEL", setString(&c.Logging.Level)},
		{"CODEGUARDIAN_LOG_DIR", setString(&c.Logging.Dir)},
		{"CODEGUARDIAN_LOG_JSON", setBool(&c.Logging.JSON)},
		{"CODEGUARDIAN_ENV", setString(&c.Telemetry.Environment)},
		{"OTEL_TRACES_EXPORTER", setString(&c.Telemetry.TraceExporter)},
		{"OTEL_METRICS_EXPORTER", setString(&c.Telemetry.MetricExporter)},
		{"OTEL_EXPORTER_OTLP_ENDPOINT", setString(&c.Telemetry.OTLPEndpoint)},
	}
	for _, o := range overrides {
		v, ok := lookup(o.key)
		if !ok || v == "" {
			continue
		}
		if err := o.set(strings.TrimSpace(v)); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, o.key, err)
		}
	}
	return nil
}

// Validate checks the configuration against its struct tags.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
}

// Retention returns the store retention as a duration.
func (s StoreConfig) Retention() time.Duration {
	return time.Duration(s.RetentionDays) * 24 * time.Hour
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

func setString(dst *string) func(string) error {
	return func(v string) error {
		*dst = v
		return nil
	}
}

func setInt(dst *int) func(string) error {
	return func(v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*dst = n
		return nil
	}
}

func setFloat(dst *float64) func(string) error {
	return func(v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		*dst = f
		return nil
	}
}

func setBool(dst *bool) func(string) error {
	return func(v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*dst = b
		return nil
	}
}

// expandHome replaces a leading "~" with the user's home directory.
func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
