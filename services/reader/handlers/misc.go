// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianReader/services/reader/archive"
	"github.com/AleutianAI/AleutianReader/services/reader/document"
	"github.com/AleutianAI/AleutianReader/services/reader/observability"
	"github.com/AleutianAI/AleutianReader/services/reader/preview"
)

// RunStore reads archived runs.
type RunStore interface {
	Get(ctx context.Context, id string) (*archive.Record, error)
	List(ctx context.Context, limit int) ([]archive.Summary, error)
}

// DefaultListLimit caps GET /v1/runs when no limit is given.
const DefaultListLimit = 20

// HealthCheck reports liveness.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "aleutian-reader"})
}

// PreviewRequest is the body of POST /v1/preview.
type PreviewRequest struct {
	Documents document.Input `json:"documents" validate:"required,min=1"`
}

// HandlePreview returns the structural preview of each document without
// running an exploration.
func HandlePreview(builder *preview.Builder, metrics *observability.HTTPMetrics) gin.HandlerFunc {
	const ep = observability.EndpointPreview

	return func(c *gin.Context) {
		var req PreviewRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			metrics.RecordError(ep, observability.ErrorCodeBadRequest)
			metrics.RecordRequest(ep, false)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
			return
		}
		if err := requestValidate.Struct(req); err != nil {
			metrics.RecordError(ep, observability.ErrorCodeBadRequest)
			metrics.RecordRequest(ep, false)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
			return
		}

		set, err := document.NewSet(req.Documents)
		if err != nil {
			metrics.RecordError(ep, observability.ErrorCodeBadRequest)
			metrics.RecordRequest(ep, false)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		previews, err := builder.BuildAll(c.Request.Context(), set)
		if err != nil {
			metrics.RecordError(ep, observability.ErrorCodeInternal)
			metrics.RecordRequest(ep, false)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		metrics.RecordRequest(ep, true)
		c.JSON(http.StatusOK, gin.H{"previews": previews})
	}
}

// ListRuns returns archived run summaries, newest first.
func ListRuns(store RunStore, metrics *observability.HTTPMetrics) gin.HandlerFunc {
	const ep = observability.EndpointRuns

	return func(c *gin.Context) {
		if store == nil {
			metrics.RecordError(ep, observability.ErrorCodeUnavailable)
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "run archive is disabled"})
			return
		}
		limit := DefaultListLimit
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				metrics.RecordError(ep, observability.ErrorCodeBadRequest)
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
				return
			}
			limit = n
		}
		runs, err := store.List(c.Request.Context(), limit)
		if err != nil {
			metrics.RecordError(ep, observability.ErrorCodeInternal)
			metrics.RecordRequest(ep, false)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if runs == nil {
			runs = []archive.Summary{}
		}
		metrics.RecordRequest(ep, true)
		c.JSON(http.StatusOK, gin.H{"runs": runs})
	}
}

// GetRun returns one archived run with its event log.
func GetRun(store RunStore, metrics *observability.HTTPMetrics) gin.HandlerFunc {
	const ep = observability.EndpointRuns

	return func(c *gin.Context) {
		if store == nil {
			metrics.RecordError(ep, observability.ErrorCodeUnavailable)
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "run archive is disabled"})
			return
		}
		rec, err := store.Get(c.Request.Context(), c.Param("runId"))
		if errors.Is(err, archive.ErrNotFound) {
			metrics.RecordError(ep, observability.ErrorCodeNotFound)
			metrics.RecordRequest(ep, false)
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		if err != nil {
			metrics.RecordError(ep, observability.ErrorCodeInternal)
			metrics.RecordRequest(ep, false)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		metrics.RecordRequest(ep, true)
		c.JSON(http.StatusOK, rec)
	}
}
