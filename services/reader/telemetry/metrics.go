// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the exploration instruments. All record methods are safe
// on a nil *Metrics.
//
// Thread Safety: Safe for concurrent use after creation.
type Metrics struct {
	// RunsTotal counts finished runs by terminal state.
	RunsTotal metric.Int64Counter

	// RunDuration records run wall time in seconds.
	RunDuration metric.Float64Histogram

	// RunSteps records reasoning steps per run.
	RunSteps metric.Int64Histogram

	// ToolCallsTotal counts tool dispatches by tool and outcome.
	ToolCallsTotal metric.Int64Counter

	// ToolDuration records tool execution time in seconds.
	ToolDuration metric.Float64Histogram

	// LLMCallsTotal counts reasoning engine calls by provider and outcome.
	LLMCallsTotal metric.Int64Counter

	// LLMTokensTotal counts tokens by direction (input, output).
	LLMTokensTotal metric.Int64Counter

	// CompactionsTotal counts conversation compactions.
	CompactionsTotal metric.Int64Counter
}

// NewMetrics registers every instrument with meter.
//
// Example:
//
//	metrics, err := telemetry.NewMetrics(providers.Meter())
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	if m.RunsTotal, err = meter.Int64Counter("reader_runs_total",
		metric.WithDescription("Exploration runs by terminal state"),
		metric.WithUnit("{run}"),
	); err != nil {
		return nil, fmt.Errorf("create runs_total: %w", err)
	}

	if m.RunDuration, err = meter.Float64Histogram("reader_run_duration_seconds",
		metric.WithDescription("Exploration run duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.5, 1, 2.5, 5, 10, 30, 60, 120, 300),
	); err != nil {
		return nil, fmt.Errorf("create run_duration: %w", err)
	}

	if m.RunSteps, err = meter.Int64Histogram("reader_run_steps",
		metric.WithDescription("Reasoning steps per run"),
		metric.WithUnit("{step}"),
		metric.WithExplicitBucketBoundaries(1, 2, 5, 10, 20, 50, 100),
	); err != nil {
		return nil, fmt.Errorf("create run_steps: %w", err)
	}

	if m.ToolCallsTotal, err = meter.Int64Counter("reader_tool_calls_total",
		metric.WithDescription("Tool dispatches by tool and outcome"),
		metric.WithUnit("{call}"),
	); err != nil {
		return nil, fmt.Errorf("create tool_calls_total: %w", err)
	}

	if m.ToolDuration, err = meter.Float64Histogram("reader_tool_duration_seconds",
		metric.WithDescription("Tool execution time in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30),
	); err != nil {
		return nil, fmt.Errorf("create tool_duration: %w", err)
	}

	if m.LLMCallsTotal, err = meter.Int64Counter("reader_llm_calls_total",
		metric.WithDescription("Reasoning engine calls by provider and outcome"),
		metric.WithUnit("{call}"),
	); err != nil {
		return nil, fmt.Errorf("create llm_calls_total: %w", err)
	}

	if m.LLMTokensTotal, err = meter.Int64Counter("reader_llm_tokens_total",
		metric.WithDescription("Tokens consumed by direction"),
		metric.WithUnit("{token}"),
	); err != nil {
		return nil, fmt.Errorf("create llm_tokens_total: %w", err)
	}

	if m.CompactionsTotal, err = meter.Int64Counter("reader_compactions_total",
		metric.WithDescription("Conversation compactions"),
		metric.WithUnit("{compaction}"),
	); err != nil {
		return nil, fmt.Errorf("create compactions_total: %w", err)
	}

	return m, nil
}

// RecordRun records a finished run.
func (m *Metrics) RecordRun(ctx context.Context, state string, steps int, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("state", state))
	m.RunsTotal.Add(ctx, 1, attrs)
	m.RunDuration.Record(ctx, d.Seconds(), attrs)
	m.RunSteps.Record(ctx, int64(steps), attrs)
}

// RecordTool records one tool dispatch.
func (m *Metrics) RecordTool(ctx context.Context, tool string, success bool, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("tool", tool),
		attribute.Bool("success", success),
	)
	m.ToolCallsTotal.Add(ctx, 1, attrs)
	m.ToolDuration.Record(ctx, d.Seconds(), attrs)
}

// RecordLLM records one reasoning engine call.
func (m *Metrics) RecordLLM(ctx context.Context, provider string, inputTokens, outputTokens int, err error) {
	if m == nil {
		return
	}
	m.LLMCallsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.Bool("success", err == nil),
	))
	if inputTokens > 0 {
		m.LLMTokensTotal.Add(ctx, int64(inputTokens), metric.WithAttributes(attribute.String("direction", "input")))
	}
	if outputTokens > 0 {
		m.LLMTokensTotal.Add(ctx, int64(outputTokens), metric.WithAttributes(attribute.String("direction", "output")))
	}
}

// RecordCompaction records one compaction.
func (m *Metrics) RecordCompaction(ctx context.Context) {
	if m == nil {
		return
	}
	m.CompactionsTotal.Add(ctx, 1)
}
