// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads reader configuration from ~/.aleutian/reader.yaml,
// an optional .env file and READER_* environment variables, in that order
// of increasing precedence.
package config

import (
	"time"

	"github.com/AleutianAI/AleutianReader/services/reader/telemetry"
)

// Config is the full reader configuration.
type Config struct {
	Server    ServerConfig     `yaml:"server"`
	LLM       LLMConfig        `yaml:"llm"`
	Agent     AgentConfig      `yaml:"agent"`
	Cache     CacheConfig      `yaml:"cache"`
	Archive   ArchiveConfig    `yaml:"archive"`
	Events    EventsConfig     `yaml:"events"`
	Logging   LoggingConfig    `yaml:"logging"`
	Telemetry telemetry.Config `yaml:"telemetry"`

	// APIKey and AuthToken are never read from or written to the YAML file.
	APIKey *Secret `yaml:"-"`
	// AuthToken, when set, is required as a bearer token on /v1 routes.
	AuthToken *Secret `yaml:"-"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr" validate:"required"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gte=0"`
	// MaxBodyBytes caps request bodies, which carry whole documents.
	MaxBodyBytes int64 `yaml:"max_body_bytes" validate:"gte=0"`
}

type LLMConfig struct {
	// Provider is "openai" or "ollama".
	Provider          string  `yaml:"provider" validate:"oneof=openai ollama"`
	Model             string  `yaml:"model"`
	VisionModel       string  `yaml:"vision_model"`
	BaseURL           string  `yaml:"base_url" validate:"omitempty,url"`
	RequestsPerSecond float64 `yaml:"requests_per_second" validate:"gte=0"`
	Burst             int     `yaml:"burst" validate:"gte=0"`
}

type AgentConfig struct {
	MaxIterations      int           `yaml:"max_iterations" validate:"gte=1,lte=200"`
	MaxTokens          int           `yaml:"max_tokens" validate:"gte=0"`
	Temperature        float64       `yaml:"temperature" validate:"gte=0,lte=2"`
	SingleDocThreshold int           `yaml:"single_doc_threshold" validate:"gte=1"`
	MultiDocThreshold  int           `yaml:"multi_doc_threshold" validate:"gte=1"`
	PreviewRadius      int           `yaml:"preview_radius" validate:"gte=0"`
	SearchTimeout      time.Duration `yaml:"search_timeout" validate:"gte=0"`
}

type CacheConfig struct {
	// RedisAddr enables the shared preview cache tier when set. Either
	// host:port or a redis:// URL, which may select a database.
	RedisAddr string        `yaml:"redis_addr"`
	TTL       time.Duration `yaml:"ttl" validate:"gte=0"`
}

type ArchiveConfig struct {
	Enabled bool          `yaml:"enabled"`
	Path    string        `yaml:"path" validate:"required_if=Enabled true"`
	TTL     time.Duration `yaml:"ttl" validate:"gte=0"`
}

type EventsConfig struct {
	// NATSURL enables event forwarding when set.
	NATSURL       string `yaml:"nats_url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
	// Dir enables rotated file logs when set.
	Dir  string `yaml:"dir"`
	JSON bool   `yaml:"json"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":12230",
			ShutdownTimeout: 15 * time.Second,
			MaxBodyBytes:    32 << 20,
		},
		LLM: LLMConfig{
			Provider:          "ollama",
			Model:             "llama3.1",
			VisionModel:       "llava",
			BaseURL:           "http://localhost:11434",
			RequestsPerSecond: 0,
			Burst:             1,
		},
		Agent: AgentConfig{
			MaxIterations:      20,
			MaxTokens:          4096,
			Temperature:        0.2,
			SingleDocThreshold: 30,
			MultiDocThreshold:  50,
			PreviewRadius:      100,
			SearchTimeout:      2 * time.Second,
		},
		Cache: CacheConfig{
			TTL: time.Hour,
		},
		Archive: ArchiveConfig{
			Enabled: false,
			Path:    "~/.aleutian/reader/runs",
			TTL:     7 * 24 * time.Hour,
		},
		Events: EventsConfig{
			SubjectPrefix: "reader.events",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Telemetry: telemetry.DefaultConfig(),
	}
}
