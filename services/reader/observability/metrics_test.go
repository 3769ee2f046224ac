// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestHTTPMetrics_Record(t *testing.T) {
	m := NewHTTPMetrics(prometheus.NewRegistry())

	m.RecordRequest(EndpointExploreSync, true)
	m.RecordRequest(EndpointExploreSync, false)
	m.RecordError(EndpointPreview, ErrorCodeBadRequest)
	m.StreamStarted(EndpointExploreStream)
	m.StreamStarted(EndpointExploreStream)
	m.StreamEnded(EndpointExploreStream, 1.5, true)
	m.RecordKeepAlive(EndpointExploreStream)
	m.RecordClientDisconnect(EndpointExploreStream)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("explore_sync", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("explore_sync", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ErrorsTotal.WithLabelValues("preview", "bad_request")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActiveStreams.WithLabelValues("explore_stream")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.KeepAlivesTotal.WithLabelValues("explore_stream")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ClientDisconnectsTotal.WithLabelValues("explore_stream")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.StreamDurationSeconds))
}

func TestHTTPMetrics_NilSafe(t *testing.T) {
	var m *HTTPMetrics
	assert.NotPanics(t, func() {
		m.RecordRequest(EndpointRuns, true)
		m.RecordError(EndpointRuns, ErrorCodeNotFound)
		m.StreamStarted(EndpointExploreWS)
		m.StreamEnded(EndpointExploreWS, 1, false)
		m.RecordKeepAlive(EndpointExploreWS)
		m.RecordClientDisconnect(EndpointExploreWS)
	})
}

func TestNewHTTPMetrics_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		NewHTTPMetrics(prometheus.NewRegistry())
		NewHTTPMetrics(prometheus.NewRegistry())
	})
}
