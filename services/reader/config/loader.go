// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// DefaultPath returns ~/.aleutian/reader.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not find the user's home directory: %w", err)
	}
	return filepath.Join(home, ".aleutian", "reader.yaml"), nil
}

// Load reads the configuration.
//
// Description:
//
//	An empty path selects DefaultPath. A missing file is created with the
//	defaults on first run. A .env file in the working directory is loaded
//	if present, without overriding variables already set. READER_*
//	variables are applied last, then the result is validated.
//
// Outputs:
//
//	*Config - The validated configuration.
//	error - Non-nil if the file cannot be read or parsed, or validation fails.
func Load(path string) (*Config, error) {
	if path == "" {
		var err error
		if path, err = DefaultPath(); err != nil {
			return nil, err
		}
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := createDefault(path); err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read the config file %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse the config file %s: %w", path, err)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks struct constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func createDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create the config directory: %w", err)
	}
	data, err := yaml.Marshal(Default())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// lookupFunc matches os.LookupEnv.
type lookupFunc func(string) (string, bool)

// applyEnv overlays READER_* variables and the API key.
func applyEnv(cfg *Config, lookup lookupFunc) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	float := func(key string, dst *float64) {
		if v, ok := lookup(key); ok && v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = f
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	str("READER_ADDR", &cfg.Server.Addr)
	str("READER_LLM_PROVIDER", &cfg.LLM.Provider)
	str("READER_LLM_MODEL", &cfg.LLM.Model)
	str("READER_VISION_MODEL", &cfg.LLM.VisionModel)
	str("READER_LLM_BASE_URL", &cfg.LLM.BaseURL)
	float("READER_LLM_RPS", &cfg.LLM.RequestsPerSecond)
	num("READER_MAX_ITERATIONS", &cfg.Agent.MaxIterations)
	num("READER_MAX_TOKENS", &cfg.Agent.MaxTokens)
	duration("READER_SEARCH_TIMEOUT", &cfg.Agent.SearchTimeout)
	str("READER_REDIS_ADDR", &cfg.Cache.RedisAddr)
	boolean("READER_ARCHIVE_ENABLED", &cfg.Archive.Enabled)
	str("READER_ARCHIVE_PATH", &cfg.Archive.Path)
	str("READER_NATS_URL", &cfg.Events.NATSURL)
	str("READER_LOG_LEVEL", &cfg.Logging.Level)
	str("READER_LOG_DIR", &cfg.Logging.Dir)
	boolean("READER_LOG_JSON", &cfg.Logging.JSON)

	cfg.Logging.Level = strings.ToLower(cfg.Logging.Level)

	for _, key := range []string{"READER_API_KEY", "OPENAI_API_KEY"} {
		if v, ok := lookup(key); ok && v != "" {
			cfg.APIKey = NewSecret(v)
			break
		}
	}
	if v, ok := lookup("READER_AUTH_TOKEN"); ok && v != "" {
		cfg.AuthToken = NewSecret(v)
	}
	return errors.Join(errs...)
}
