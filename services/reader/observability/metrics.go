// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability holds Prometheus metrics for the reader's HTTP
// surface: request outcomes, live streams, stream duration, keepalives and
// client disconnects.
//
// Run-level metrics (steps, tools, tokens) live in the telemetry package.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
// Every method is a no-op on a nil *HTTPMetrics.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "aleutian"
	httpSubsystem    = "reader_http"
)

// Endpoint labels.
type Endpoint string

const (
	EndpointExploreStream Endpoint = "explore_stream"
	EndpointExploreSync   Endpoint = "explore_sync"
	EndpointExploreWS     Endpoint = "explore_ws"
	EndpointPreview       Endpoint = "preview"
	EndpointRuns          Endpoint = "runs"
)

// ErrorCode labels.
type ErrorCode string

const (
	ErrorCodeBadRequest   ErrorCode = "bad_request"
	ErrorCodeRunFailed    ErrorCode = "run_failed"
	ErrorCodeNotFound     ErrorCode = "not_found"
	ErrorCodeInternal     ErrorCode = "internal"
	ErrorCodeStreamWrite  ErrorCode = "stream_write"
	ErrorCodeUnavailable  ErrorCode = "unavailable"
	ErrorCodeUpgradeError ErrorCode = "upgrade"
)

// HTTPMetrics groups the HTTP collectors.
type HTTPMetrics struct {
	// RequestsTotal labels: endpoint, status (success, error).
	RequestsTotal *prometheus.CounterVec

	// ErrorsTotal labels: endpoint, error_code.
	ErrorsTotal *prometheus.CounterVec

	// ActiveStreams labels: endpoint.
	ActiveStreams *prometheus.GaugeVec

	// StreamDurationSeconds labels: endpoint, status.
	StreamDurationSeconds *prometheus.HistogramVec

	// KeepAlivesTotal labels: endpoint.
	KeepAlivesTotal *prometheus.CounterVec

	// ClientDisconnectsTotal labels: endpoint.
	ClientDisconnectsTotal *prometheus.CounterVec
}

// NewHTTPMetrics registers the collectors with reg. A nil reg selects the
// default registerer, which panics on a second call.
func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &HTTPMetrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: httpSubsystem,
				Name:      "requests_total",
				Help:      "Total reader HTTP requests by endpoint and status",
			},
			[]string{"endpoint", "status"},
		),
		ErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: httpSubsystem,
				Name:      "errors_total",
				Help:      "Total reader HTTP errors by endpoint and error code",
			},
			[]string{"endpoint", "error_code"},
		),
		ActiveStreams: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: httpSubsystem,
				Name:      "active_streams",
				Help:      "Explorations currently streaming to a client",
			},
			[]string{"endpoint"},
		),
		StreamDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: httpSubsystem,
				Name:      "stream_duration_seconds",
				Help:      "Total exploration stream duration in seconds",
				Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
			},
			[]string{"endpoint", "status"},
		),
		KeepAlivesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: httpSubsystem,
				Name:      "keepalives_total",
				Help:      "SSE keepalive comments sent",
			},
			[]string{"endpoint"},
		),
		ClientDisconnectsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: httpSubsystem,
				Name:      "client_disconnects_total",
				Help:      "Clients that disconnected while their exploration kept running",
			},
			[]string{"endpoint"},
		),
	}
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// RecordRequest counts a finished request.
func (m *HTTPMetrics) RecordRequest(endpoint Endpoint, success bool) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(string(endpoint), statusLabel(success)).Inc()
}

// RecordError counts an error.
func (m *HTTPMetrics) RecordError(endpoint Endpoint, code ErrorCode) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(string(endpoint), string(code)).Inc()
}

// StreamStarted increments the active streams gauge.
func (m *HTTPMetrics) StreamStarted(endpoint Endpoint) {
	if m == nil {
		return
	}
	m.ActiveStreams.WithLabelValues(string(endpoint)).Inc()
}

// StreamEnded decrements the active streams gauge and records duration.
func (m *HTTPMetrics) StreamEnded(endpoint Endpoint, seconds float64, success bool) {
	if m == nil {
		return
	}
	m.ActiveStreams.WithLabelValues(string(endpoint)).Dec()
	m.StreamDurationSeconds.WithLabelValues(string(endpoint), statusLabel(success)).Observe(seconds)
}

// RecordKeepAlive counts a keepalive.
func (m *HTTPMetrics) RecordKeepAlive(endpoint Endpoint) {
	if m == nil {
		return
	}
	m.KeepAlivesTotal.WithLabelValues(string(endpoint)).Inc()
}

// RecordClientDisconnect counts a disconnect.
func (m *HTTPMetrics) RecordClientDisconnect(endpoint Endpoint) {
	if m == nil {
		return
	}
	m.ClientDisconnectsTotal.WithLabelValues(string(endpoint)).Inc()
}
