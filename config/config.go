// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

// Package config loads the pairing controller's process configuration from
// YAML or JSON, with environment-variable overrides via godotenv.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for a pairing controller
// process.
type Config struct {
	Environment string         `yaml:"environment" json:"environment"`
	Relay       *RelayConfig   `yaml:"relay" json:"relay"`
	Pairing     *PairingConfig `yaml:"pairing" json:"pairing"`
	Logging     *LoggingConfig `yaml:"logging" json:"logging"`
	Metrics     *MetricsConfig `yaml:"metrics" json:"metrics"`
}

// RelayConfig configures the relay client used to publish to and subscribe
// from the untrusted relay.
type RelayConfig struct {
	URL            string        `yaml:"url" json:"url"`
	ProjectID      string        `yaml:"project_id" json:"project_id"`
	DialTimeout    time.Duration `yaml:"dial_timeout" json:"dial_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`
	MaxRetries     int           `yaml:"max_retries" json:"max_retries"`
	RetryDelay     time.Duration `yaml:"retry_delay" json:"retry_delay"`
}

// PairingConfig configures pairing lifecycle defaults.
type PairingConfig struct {
	// ProposalExpiry bounds how long a proposal stays in the pending
	// store awaiting a response before it is eligible for expiry.
	ProposalExpiry time.Duration `yaml:"proposal_expiry" json:"proposal_expiry"`
	// KeepAlive bounds the lifetime of a settled pairing absent any
	// metadata update.
	KeepAlive time.Duration `yaml:"keep_alive" json:"keep_alive"`
	// Protocol and Version are embedded verbatim into generated URIs.
	Protocol string `yaml:"protocol" json:"protocol"`
	Version  int    `yaml:"version" json:"version"`
}

// LoggingConfig represents logging configuration.
type LoggingConfig struct {
	Level    string `yaml:"level" json:"level"`
	Format   string `yaml:"format" json:"format"`
	Output   string `yaml:"output" json:"output"`
	FilePath string `yaml:"file_path" json:"file_path"`
}

// MetricsConfig represents the Prometheus metrics endpoint configuration.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Addr    string `yaml:"addr" json:"addr"`
	Path    string `yaml:"path" json:"path"`
}

// LoadFromFile loads configuration from a YAML or JSON file, then applies
// PAIRING_-prefixed environment overrides loaded via godotenv.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jsonErr := json.Unmarshal(data, cfg); jsonErr != nil {
			return nil, fmt.Errorf("failed to parse config file (tried YAML and JSON): %w", err)
		}
	}

	setDefaults(cfg)
	applyEnvOverrides(cfg)

	return cfg, nil
}

// SaveToFile saves configuration to a file, choosing the format from the
// file extension.
func SaveToFile(cfg *Config, path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".json") {
		data, err = json.MarshalIndent(cfg, "", "  ")
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// applyEnvOverrides loads a .env file if present (ignoring its absence) and
// overrides select fields from the process environment. Environment
// variables take precedence over file contents, matching the teacher's
// layered-config convention.
func applyEnvOverrides(cfg *Config) {
	_ = godotenv.Load()

	if v := os.Getenv("PAIRING_RELAY_URL"); v != "" && cfg.Relay != nil {
		cfg.Relay.URL = v
	}
	if v := os.Getenv("PAIRING_RELAY_PROJECT_ID"); v != "" && cfg.Relay != nil {
		cfg.Relay.ProjectID = v
	}
	if v := os.Getenv("PAIRING_LOG_LEVEL"); v != "" && cfg.Logging != nil {
		cfg.Logging.Level = v
	}
}

// setDefaults fills in zero-valued fields with the controller's defaults.
func setDefaults(cfg *Config) {
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	if cfg.Relay != nil {
		if cfg.Relay.DialTimeout == 0 {
			cfg.Relay.DialTimeout = 10 * time.Second
		}
		if cfg.Relay.RequestTimeout == 0 {
			cfg.Relay.RequestTimeout = 30 * time.Second
		}
		if cfg.Relay.MaxRetries == 0 {
			cfg.Relay.MaxRetries = 3
		}
		if cfg.Relay.RetryDelay == 0 {
			cfg.Relay.RetryDelay = 1 * time.Second
		}
	}

	if cfg.Pairing != nil {
		if cfg.Pairing.ProposalExpiry == 0 {
			cfg.Pairing.ProposalExpiry = 5 * time.Minute
		}
		if cfg.Pairing.KeepAlive == 0 {
			cfg.Pairing.KeepAlive = 30 * 24 * time.Hour
		}
		if cfg.Pairing.Protocol == "" {
			cfg.Pairing.Protocol = "pairing"
		}
		if cfg.Pairing.Version == 0 {
			cfg.Pairing.Version = 2
		}
	}

	if cfg.Logging != nil {
		if cfg.Logging.Level == "" {
			cfg.Logging.Level = "info"
		}
		if cfg.Logging.Format == "" {
			cfg.Logging.Format = "json"
		}
		if cfg.Logging.Output == "" {
			cfg.Logging.Output = "stdout"
		}
	}

	if cfg.Metrics != nil {
		if cfg.Metrics.Addr == "" {
			cfg.Metrics.Addr = ":9090"
		}
		if cfg.Metrics.Path == "" {
			cfg.Metrics.Path = "/metrics"
		}
	}
}
