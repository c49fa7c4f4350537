// SPDX-License-Identifier: LGPL-3.0-or-later

package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// LoaderOptions configures Load.
type LoaderOptions struct {
	// ConfigDir is the directory holding "<environment>.yaml" and
	// "default.yaml". Defaults to "config".
	ConfigDir string
	// Environment overrides GetEnvironment()'s detection.
	Environment string
	// DotEnvPath, when non-empty, is loaded into the process
	// environment (without overriding variables already set) before
	// the config file's ${VAR} substitution runs. Missing is not an
	// error — local developer convenience only, never required in
	// production.
	DotEnvPath string
}

// DefaultLoaderOptions mirrors the defaults Load falls back to.
func DefaultLoaderOptions() LoaderOptions {
	return LoaderOptions{ConfigDir: "config", DotEnvPath: ".env"}
}

// Load resolves the environment, optionally loads a .env file into the
// process environment, then reads "<ConfigDir>/<environment>.yaml",
// falling back to "<ConfigDir>/default.yaml" if the former does not
// exist.
func Load(opts ...LoaderOptions) (*Config, error) {
	options := DefaultLoaderOptions()
	if len(opts) > 0 {
		options = opts[0]
	}

	if options.DotEnvPath != "" {
		if err := godotenv.Load(options.DotEnvPath); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: load %s: %w", options.DotEnvPath, err)
		}
	}

	env := options.Environment
	if env == "" {
		env = GetEnvironment()
	}

	envPath := filepath.Join(options.ConfigDir, env+".yaml")
	if _, err := os.Stat(envPath); err == nil {
		return LoadFromFile(envPath)
	}

	defaultPath := filepath.Join(options.ConfigDir, "default.yaml")
	if _, err := os.Stat(defaultPath); err == nil {
		return LoadFromFile(defaultPath)
	}

	cfg := &Config{}
	setDefaults(cfg)
	cfg.Environment = env
	return cfg, nil
}
