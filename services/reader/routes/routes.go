// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianReader/services/reader/handlers"
	"github.com/AleutianAI/AleutianReader/services/reader/middleware"
	"github.com/AleutianAI/AleutianReader/services/reader/observability"
	"github.com/AleutianAI/AleutianReader/services/reader/preview"
)

// Deps are the services the routes are wired to.
type Deps struct {
	Explorer handlers.Explorer
	Previews *preview.Builder
	// Runs may be nil when the archive is disabled.
	Runs    handlers.RunStore
	Metrics *observability.HTTPMetrics
	// MetricsHandler serves /metrics when set.
	MetricsHandler http.Handler
	// Auth guards the /v1 group. Nil means no authentication.
	Auth         middleware.Authenticator
	KeepAlive    time.Duration
	MaxBodyBytes int64
}

func SetupRoutes(router *gin.Engine, deps Deps) {
	router.GET("/health", handlers.HealthCheck)
	if deps.MetricsHandler != nil {
		router.GET("/metrics", gin.WrapH(deps.MetricsHandler))
	}

	auth := deps.Auth
	if auth == nil {
		auth = middleware.NopAuthenticator{}
	}

	// API version 1 group
	v1 := router.Group("/v1")
	v1.Use(middleware.AuthMiddleware(auth), middleware.BodyLimit(deps.MaxBodyBytes))
	{
		v1.POST("/explore", handlers.HandleExploreStream(deps.Explorer, deps.Metrics, deps.KeepAlive))
		v1.POST("/explore/sync", handlers.HandleExploreSync(deps.Explorer, deps.Metrics))
		v1.GET("/explore/ws", handlers.HandleExploreWebSocket(deps.Explorer, deps.Metrics))
		v1.POST("/preview", handlers.HandlePreview(deps.Previews, deps.Metrics))

		runs := v1.Group("/runs")
		{
			runs.GET("", handlers.ListRuns(deps.Runs, deps.Metrics))
			runs.GET("/:runId", handlers.GetRun(deps.Runs, deps.Metrics))
		}
	}
}
