// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers serves explorations over HTTP: streamed as Server-Sent
// Events, synchronously as JSON, or over a WebSocket.
//
// Every exploration runs on a context detached from the request, so a
// client that disconnects does not stop its run; the remaining events are
// dropped and the run is still archived.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/AleutianAI/AleutianReader/services/reader/agent"
	"github.com/AleutianAI/AleutianReader/services/reader/events"
	"github.com/AleutianAI/AleutianReader/services/reader/observability"
)

// Explorer runs one exploration.
type Explorer interface {
	Run(ctx context.Context, req agent.Request, sink events.Sink) (*agent.RunResult, error)
}

// DefaultKeepAlive is the SSE keepalive interval.
const DefaultKeepAlive = 15 * time.Second

var requestValidate = validator.New()

// Frame is one event in a synchronous or WebSocket response.
type Frame struct {
	Event events.Type `json:"event"`
	Data  any         `json:"data"`
}

// SyncResponse is the body of a synchronous exploration.
type SyncResponse struct {
	Result *agent.RunResult `json:"result"`
	Events []Frame          `json:"events"`
}

// bindRequest decodes and validates an exploration request, answering 400
// on failure.
func bindRequest(c *gin.Context, metrics *observability.HTTPMetrics, ep observability.Endpoint) (agent.Request, bool) {
	var req agent.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		metrics.RecordError(ep, observability.ErrorCodeBadRequest)
		metrics.RecordRequest(ep, false)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return req, false
	}
	if err := requestValidate.Struct(req); err != nil {
		metrics.RecordError(ep, observability.ErrorCodeBadRequest)
		metrics.RecordRequest(ep, false)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return req, false
	}
	return req, true
}

// HandleExploreStream streams an exploration as Server-Sent Events.
//
// Each event is framed as "event: <type>" with a hash-chained JSON body.
// An SSE comment is sent every keepAlive while the run is between events.
func HandleExploreStream(explorer Explorer, metrics *observability.HTTPMetrics, keepAlive time.Duration) gin.HandlerFunc {
	const ep = observability.EndpointExploreStream

	return func(c *gin.Context) {
		req, ok := bindRequest(c, metrics, ep)
		if !ok {
			return
		}

		SetSSEHeaders(c.Writer)
		writer, err := NewSSEWriter(c.Writer)
		if err != nil {
			metrics.RecordError(ep, observability.ErrorCodeInternal)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
			return
		}
		c.Status(http.StatusOK)

		metrics.StreamStarted(ep)
		start := time.Now()

		done := make(chan struct{})
		var wg sync.WaitGroup
		if keepAlive > 0 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				keepAliveLoop(c.Request.Context(), writer, keepAlive, done, metrics, ep)
			}()
		}

		sink := func(name events.Type, payload any) {
			if writer.Failed() {
				return
			}
			if err := writer.WriteEvent(name, payload); err != nil {
				slog.Debug("sse write failed", "event", name, "error", err)
			}
		}
		res, runErr := explorer.Run(context.WithoutCancel(c.Request.Context()), req, sink)
		close(done)
		wg.Wait()

		success := runErr == nil
		metrics.StreamEnded(ep, time.Since(start).Seconds(), success)
		metrics.RecordRequest(ep, success)
		if !success {
			metrics.RecordError(ep, observability.ErrorCodeRunFailed)
		}
		if writer.Failed() {
			metrics.RecordClientDisconnect(ep)
			metrics.RecordError(ep, observability.ErrorCodeStreamWrite)
			slog.Info("client disconnected before exploration finished",
				"session_id", res.SessionID, "state", res.State)
		}
	}
}

func keepAliveLoop(ctx context.Context, writer SSEWriter, interval time.Duration, done <-chan struct{},
	metrics *observability.HTTPMetrics, ep observability.Endpoint) {

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := writer.WriteKeepAlive(); err != nil {
				return
			}
			metrics.RecordKeepAlive(ep)
		}
	}
}

// HandleExploreSync runs an exploration and returns the result with its
// full event log. A failed run answers 502 with the same body.
func HandleExploreSync(explorer Explorer, metrics *observability.HTTPMetrics) gin.HandlerFunc {
	const ep = observability.EndpointExploreSync

	return func(c *gin.Context) {
		req, ok := bindRequest(c, metrics, ep)
		if !ok {
			return
		}

		rec := events.NewRecorder()
		res, err := explorer.Run(context.WithoutCancel(c.Request.Context()), req, rec.Sink())

		recorded := rec.Events()
		frames := make([]Frame, len(recorded))
		for i, r := range recorded {
			frames[i] = Frame{Event: r.Name, Data: r.Payload}
		}

		status := http.StatusOK
		if err != nil {
			status = http.StatusBadGateway
			metrics.RecordError(ep, observability.ErrorCodeRunFailed)
		}
		metrics.RecordRequest(ep, err == nil)
		c.JSON(status, SyncResponse{Result: res, Events: frames})
	}
}
