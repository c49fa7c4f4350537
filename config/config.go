// Copyright (C) 2026 waku-a2a contributors
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

// Package config loads the construction-time options a node.Config (or
// a transport) needs from a YAML file, with "${VAR}"/"${VAR:default}"
// substitution against the process environment and an optional .env
// file for local development.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the on-disk shape of a node's construction-time options.
// Durations are YAML strings ("10s") parsed via time.ParseDuration.
type Config struct {
	Environment string          `yaml:"environment" json:"environment"`
	Identity    IdentityConfig  `yaml:"identity" json:"identity"`
	Relay       RelayConfig     `yaml:"relay" json:"relay"`
	Reliability ReliabilityYAML `yaml:"reliability" json:"reliability"`
	Logging     LoggingConfig   `yaml:"logging" json:"logging"`
	Metrics     MetricsConfig   `yaml:"metrics" json:"metrics"`
}

// IdentityConfig controls key material loading and the encryption layer.
type IdentityConfig struct {
	// PrivateKeyPath points at a hex-encoded secp256k1 private key file.
	// Empty generates a fresh identity on every start.
	PrivateKeyPath string `yaml:"private_key_path" json:"private_key_path"`
	Encrypted      bool   `yaml:"encrypted" json:"encrypted"`
}

// RelayConfig addresses the REST transport backend.
type RelayConfig struct {
	BaseURL     string `yaml:"base_url" json:"base_url"`
	WebSocket   string `yaml:"websocket_url" json:"websocket_url"`
	TopicPrefix string `yaml:"topic_prefix" json:"topic_prefix"`
}

// ReliabilityYAML is the YAML-friendly mirror of reliability.Config:
// durations are strings here, parsed by Parse into time.Duration.
type ReliabilityYAML struct {
	AckTimeout       string `yaml:"ack_timeout" json:"ack_timeout"`
	MaxAttempts      int    `yaml:"max_attempts" json:"max_attempts"`
	SessionCacheSize int    `yaml:"session_cache_size" json:"session_cache_size"`
}

// LoggingConfig mirrors internal/logger's construction options.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"` // "json" or "text"
}

// MetricsConfig controls whether/where internal/metrics.Handler is served.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Addr    string `yaml:"addr" json:"addr"`
}

// Parsed is the Config with its duration strings resolved, ready to
// feed directly into node.Config/reliability.Config.
type Parsed struct {
	AckTimeout       time.Duration
	MaxAttempts      int
	SessionCacheSize int
}

// Parse resolves the YAML-friendly duration strings in cfg. A malformed
// duration string is a configuration error, not silently defaulted.
func (c *Config) Parse() (Parsed, error) {
	var p Parsed
	if c.Reliability.AckTimeout != "" {
		d, err := time.ParseDuration(c.Reliability.AckTimeout)
		if err != nil {
			return Parsed{}, fmt.Errorf("config: reliability.ack_timeout: %w", err)
		}
		p.AckTimeout = d
	}
	p.MaxAttempts = c.Reliability.MaxAttempts
	p.SessionCacheSize = c.Reliability.SessionCacheSize
	return p, nil
}

// LoadFromFile reads path, substitutes environment variables, and
// unmarshals it as YAML.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	substituted := SubstituteEnvVars(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(substituted), cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	setDefaults(cfg)
	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.Relay.TopicPrefix == "" {
		cfg.Relay.TopicPrefix = "/waku-a2a"
	}
	if cfg.Reliability.AckTimeout == "" {
		cfg.Reliability.AckTimeout = "10s"
	}
	if cfg.Reliability.MaxAttempts == 0 {
		cfg.Reliability.MaxAttempts = 3
	}
	if cfg.Reliability.SessionCacheSize == 0 {
		cfg.Reliability.SessionCacheSize = 128
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}
