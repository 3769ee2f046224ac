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
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AleutianReader/pkg/logging"
	"github.com/AleutianAI/AleutianReader/services/reader/config"
	"github.com/AleutianAI/AleutianReader/services/reader/handlers"
	"github.com/AleutianAI/AleutianReader/services/reader/middleware"
	"github.com/AleutianAI/AleutianReader/services/reader/observability"
	"github.com/AleutianAI/AleutianReader/services/reader/routes"
)

func newServeCmd(g *globalOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve explorations over HTTP",
		Long: `Serve explorations over HTTP.

  POST /v1/explore        stream events as Server-Sent Events
  POST /v1/explore/sync   return the result and all events as JSON
  GET  /v1/explore/ws     run explorations over a WebSocket
  POST /v1/preview        structural previews only
  GET  /v1/runs[/:runId]  archived runs
  GET  /health, /metrics

When READER_AUTH_TOKEN is set, /v1 requires "Authorization: Bearer <token>".
Changes to the log level in the config file apply without a restart.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				g.cfg.Server.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, g.cfg, g.configPath)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config)")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, configPath string) error {
	logger := newLogger(cfg, false)
	defer logger.Close()
	log := logger.Slog()
	slog.SetDefault(log)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	cfg.Telemetry.Registry = reg

	rt, err := newRuntime(ctx, cfg, logger, true)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			log.Warn("shutdown incomplete", slog.String("error", err.Error()))
		}
	}()

	var auth middleware.Authenticator
	if cfg.AuthToken.IsSet() {
		auth = middleware.NewTokenAuthenticator(cfg.AuthToken.Reveal)
	}

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.Telemetry.ServiceName))

	metricsHandler := rt.telemetry.MetricsHandler()
	if metricsHandler == nil {
		metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
	}
	deps := routes.Deps{
		Explorer:       rt.explorer,
		Previews:       rt.previews,
		Metrics:        observability.NewHTTPMetrics(reg),
		MetricsHandler: metricsHandler,
		Auth:           auth,
		KeepAlive:      handlers.DefaultKeepAlive,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
	}
	if rt.archive != nil {
		deps.Runs = rt.archive
	}
	routes.SetupRoutes(router, deps)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("reader listening", slog.String("addr", cfg.Server.Addr),
			slog.String("provider", cfg.LLM.Provider), slog.String("model", cfg.LLM.Model))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen %s: %w", cfg.Server.Addr, err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down, waiting for streams to finish")
		return srv.Shutdown(shutdownCtx)
	})
	if path := resolveConfigPath(configPath); path != "" {
		watcher, err := config.NewWatcher(path, func(next *config.Config) {
			logger.SetLevel(logging.ParseLevel(next.Logging.Level))
		}, log)
		if err != nil {
			log.Warn("config hot reload disabled", slog.String("error", err.Error()))
		} else {
			g.Go(func() error {
				watcher.Start(gctx)
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				return watcher.Stop()
			})
		}
	}
	return g.Wait()
}

func resolveConfigPath(path string) string {
	if path != "" {
		return path
	}
	p, err := config.DefaultPath()
	if err != nil {
		return ""
	}
	return p
}
