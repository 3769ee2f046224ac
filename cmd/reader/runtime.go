// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianReader/pkg/logging"
	"github.com/AleutianAI/AleutianReader/services/reader/agent"
	"github.com/AleutianAI/AleutianReader/services/reader/archive"
	"github.com/AleutianAI/AleutianReader/services/reader/cache"
	"github.com/AleutianAI/AleutianReader/services/reader/config"
	"github.com/AleutianAI/AleutianReader/services/reader/events"
	"github.com/AleutianAI/AleutianReader/services/reader/llm"
	"github.com/AleutianAI/AleutianReader/services/reader/preview"
	"github.com/AleutianAI/AleutianReader/services/reader/telemetry"
)

// runtime holds the wired services for one process.
type runtime struct {
	cfg       *config.Config
	logger    *logging.Logger
	explorer  *agent.Orchestrator
	previews  *preview.Builder
	archive   *archive.Store
	telemetry *telemetry.Providers

	closers []io.Closer
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// newLogger builds the process logger from config. Console output goes to
// stderr so stdout stays clean for answers.
func newLogger(cfg *config.Config, quiet bool) *logging.Logger {
	return logging.New(logging.Config{
		Level:    logging.ParseLevel(cfg.Logging.Level),
		LogDir:   cfg.Logging.Dir,
		Service:  "reader",
		JSON:     cfg.Logging.JSON,
		Quiet:    quiet,
		Output:   os.Stderr,
		Compress: true,
	})
}

// newRuntime wires every service named in cfg. Optional backends that
// fail to connect (Redis, NATS) are logged and skipped.
func newRuntime(ctx context.Context, cfg *config.Config, logger *logging.Logger, withTelemetry bool) (*runtime, error) {
	rt := &runtime{cfg: cfg, logger: logger}
	log := logger.Slog()

	var metrics *telemetry.Metrics
	if withTelemetry {
		tcfg := cfg.Telemetry
		tcfg.LLMProvider = cfg.LLM.Provider
		tcfg.LLMModel = cfg.LLM.Model
		providers, err := telemetry.Init(ctx, tcfg)
		if err != nil {
			return nil, fmt.Errorf("telemetry: %w", err)
		}
		rt.telemetry = providers
		metrics, err = telemetry.NewMetrics(providers.Meter())
		if err != nil {
			log.Warn("metrics disabled", slog.String("error", err.Error()))
			metrics = nil
		}
	}

	apiKey, err := revealOrEmpty(cfg.APIKey)
	if err != nil {
		rt.Close()
		return nil, err
	}
	client, vision, err := llm.New(llm.Settings{
		Provider:          cfg.LLM.Provider,
		Model:             cfg.LLM.Model,
		VisionModel:       cfg.LLM.VisionModel,
		BaseURL:           cfg.LLM.BaseURL,
		APIKey:            apiKey,
		RequestsPerSecond: cfg.LLM.RequestsPerSecond,
		Burst:             cfg.LLM.Burst,
	}, log)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("llm: %w", err)
	}

	rt.previews = preview.NewBuilder(
		preview.WithRadius(cfg.Agent.PreviewRadius),
		preview.WithCache(rt.previewCache(ctx, log), cfg.Cache.TTL),
		preview.WithLogger(log),
	)

	opts := []agent.Option{
		agent.WithVision(vision),
		agent.WithPreviewBuilder(rt.previews),
		agent.WithWindowPolicy(agent.WindowPolicy{
			SingleDocThreshold: cfg.Agent.SingleDocThreshold,
			MultiDocThreshold:  cfg.Agent.MultiDocThreshold,
		}),
		agent.WithMaxIterations(cfg.Agent.MaxIterations),
		agent.WithMaxTokens(cfg.Agent.MaxTokens),
		agent.WithTemperature(cfg.Agent.Temperature),
		agent.WithSearchTimeout(cfg.Agent.SearchTimeout),
		agent.WithMetrics(metrics),
		agent.WithLogger(log),
	}

	if cfg.Archive.Enabled {
		store, err := archive.Open(archive.Config{
			Path:   expandHome(cfg.Archive.Path),
			TTL:    cfg.Archive.TTL,
			Logger: log,
		})
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("archive: %w", err)
		}
		rt.archive = store
		rt.closers = append(rt.closers, store)
		opts = append(opts, agent.WithArchiver(store))
	}

	if cfg.Events.NATSURL != "" {
		conn, err := events.ConnectNATS(cfg.Events.NATSURL, "aleutian-reader")
		if err != nil {
			log.Warn("event forwarding disabled", slog.String("error", err.Error()))
		} else {
			rt.closers = append(rt.closers, closerFunc(func() error { return conn.Drain() }))
			fwd := events.NewNATSForwarder(conn, cfg.Events.SubjectPrefix, log)
			opts = append(opts, agent.WithSubscriber(fwd.Handle))
		}
	}

	explorer, err := agent.New(client, opts...)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.explorer = explorer
	return rt, nil
}

// previewCache returns a memory cache, fronted by Redis when configured
// and reachable.
func (rt *runtime) previewCache(ctx context.Context, log *slog.Logger) cache.Cache {
	memory := cache.NewMemoryCache(rt.cfg.Cache.TTL, 10*time.Minute)
	if rt.cfg.Cache.RedisAddr == "" {
		return memory
	}
	redisCache, err := cache.NewRedisCache(rt.cfg.Cache.RedisAddr, rt.cfg.Cache.TTL)
	if err != nil {
		log.Warn("redis cache disabled", slog.String("error", err.Error()))
		return memory
	}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := redisCache.Ping(pingCtx); err != nil {
		log.Warn("redis unreachable, caching previews in memory only", slog.String("error", err.Error()))
		_ = redisCache.Close()
		return memory
	}
	rt.closers = append(rt.closers, redisCache)
	return cache.NewTiered(redisCache, memory, log)
}

// Close releases backends in reverse order of creation.
func (rt *runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	if rt.telemetry != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rt.telemetry.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
		rt.telemetry = nil
	}
	return errors.Join(errs...)
}

func revealOrEmpty(s *config.Secret) (string, error) {
	if !s.IsSet() {
		return "", nil
	}
	v, err := s.Reveal()
	if err != nil {
		return "", fmt.Errorf("api key: %w", err)
	}
	return v, nil
}

// expandHome replaces a leading "~/" with the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
