// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianReader/services/reader/archive"
	"github.com/AleutianAI/AleutianReader/services/reader/document"
	"github.com/AleutianAI/AleutianReader/services/reader/events"
	"github.com/AleutianAI/AleutianReader/services/reader/llm"
	"github.com/AleutianAI/AleutianReader/services/reader/preview"
	"github.com/AleutianAI/AleutianReader/services/reader/session"
	"github.com/AleutianAI/AleutianReader/services/reader/telemetry"
	"github.com/AleutianAI/AleutianReader/services/reader/tools"
)

// Archiver persists finished runs.
type Archiver interface {
	Save(ctx context.Context, rec *archive.Record) error
}

// subscription is an observer attached to every run's emitter.
type subscription struct {
	handler events.Handler
	types   []events.Type
}

// Orchestrator runs explorations.
//
// Thread Safety: Safe for concurrent use. Every Run owns its own session,
// emitter and conversation; only configuration, the preview builder, the
// metrics instruments and the archiver are shared.
type Orchestrator struct {
	client        llm.Client
	vision        tools.VisionAnalyzer
	previews      *preview.Builder
	prompts       *PromptBuilder
	sm            *StateMachine
	window        WindowPolicy
	maxIterations int
	maxTokens     int
	temperature   float64
	searchTimeout time.Duration
	metrics       *telemetry.Metrics
	archiver      Archiver
	subscriptions []subscription
	logger        *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithVision sets the figure analysis backend.
func WithVision(vision tools.VisionAnalyzer) Option {
	return func(o *Orchestrator) {
		o.vision = vision
	}
}

// WithPreviewBuilder replaces the default preview builder.
func WithPreviewBuilder(b *preview.Builder) Option {
	return func(o *Orchestrator) {
		if b != nil {
			o.previews = b
		}
	}
}

// WithWindowPolicy sets the compaction thresholds.
func WithWindowPolicy(p WindowPolicy) Option {
	return func(o *Orchestrator) {
		if p.SingleDocThreshold > 0 {
			o.window.SingleDocThreshold = p.SingleDocThreshold
		}
		if p.MultiDocThreshold > 0 {
			o.window.MultiDocThreshold = p.MultiDocThreshold
		}
	}
}

// WithMaxIterations sets the default step cap.
func WithMaxIterations(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxIterations = n
		}
	}
}

// WithMaxTokens limits each engine response.
func WithMaxTokens(n int) Option {
	return func(o *Orchestrator) {
		o.maxTokens = n
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(o *Orchestrator) {
		o.temperature = t
	}
}

// WithSearchTimeout bounds a single regex match in searchContent.
func WithSearchTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.searchTimeout = d
	}
}

// WithMetrics records run, step and tool metrics.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithArchiver persists every finished run.
func WithArchiver(a Archiver) Option {
	return func(o *Orchestrator) {
		o.archiver = a
	}
}

// WithSubscriber attaches an observer to every run. Nil types means all.
func WithSubscriber(handler events.Handler, types ...events.Type) Option {
	return func(o *Orchestrator) {
		if handler != nil {
			o.subscriptions = append(o.subscriptions, subscription{handler: handler, types: types})
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// New creates an orchestrator around a reasoning engine.
func New(client llm.Client, opts ...Option) (*Orchestrator, error) {
	if client == nil {
		return nil, ErrNoClient
	}
	prompts, err := NewPromptBuilder()
	if err != nil {
		return nil, err
	}
	o := &Orchestrator{
		client:        client,
		prompts:       prompts,
		sm:            NewStateMachine(),
		window:        DefaultWindowPolicy(),
		maxIterations: DefaultMaxIterations,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.previews == nil {
		o.previews = preview.NewBuilder(preview.WithLogger(o.logger))
	}
	return o, nil
}

// Previews exposes the preview builder so callers can preview without
// exploring.
func (o *Orchestrator) Previews() *preview.Builder {
	return o.previews
}

// Run explores the documents until the engine answers, the step cap is
// reached or something fails.
//
// Description:
//
//	Events are delivered to sink synchronously and in order. A successful
//	run ends with answer, optional metadata and complete. A failed run
//	ends with exactly one error event and no complete. Nothing panics out
//	of Run.
//
// Inputs:
//
//	ctx - Forwarded to the reasoning engine, vision and preview calls.
//	req - Question, documents and per-run options.
//	sink - Event sink. Nil discards events.
//
// Outputs:
//
//	*RunResult - Never nil.
//	error - Non-nil when the run ended in FAILED.
func (o *Orchestrator) Run(ctx context.Context, req Request, sink events.Sink) (result *RunResult, err error) {
	sess := session.New(req.Question, nil)
	emitter := events.NewEmitter(
		events.WithSink(sink),
		events.WithSessionID(sess.ID),
		events.WithLogger(o.logger),
	)
	for _, sub := range o.subscriptions {
		emitter.Subscribe(sub.handler, sub.types...)
	}

	r := &run{
		o:             o,
		req:           req,
		sess:          sess,
		emitter:       emitter,
		tracker:       newTracker(o.sm),
		maxIterations: o.maxIterations,
		logger:        o.logger.With(slog.String("session_id", sess.ID)),
	}
	if req.Options.MaxIterations > 0 {
		r.maxIterations = req.Options.MaxIterations
	}
	r.registry = tools.NewRunRegistry(&tools.Env{
		Session:       sess,
		Emitter:       emitter,
		Vision:        o.vision,
		SearchTimeout: o.searchTimeout,
	})

	ctx, span := telemetry.StartSpan(ctx, "reader.Run",
		trace.WithAttributes(
			attribute.String("reader.session_id", sess.ID),
			attribute.Int("reader.documents", len(req.Documents)),
			attribute.Int("reader.max_iterations", r.maxIterations),
		),
	)

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, rec)
			r.logger.Error("exploration panicked",
				slog.Any("panic", rec),
				slog.String("stack", string(debug.Stack())))
			result = r.fail(err)
			if result.State != StateFailed {
				err = nil
			}
		}
		r.finish(ctx, span, result)
		span.End()
	}()

	if err := r.execute(ctx); err != nil {
		return r.fail(err), err
	}
	return r.result(), nil
}

// run is the state of one Run call.
type run struct {
	o             *Orchestrator
	req           Request
	sess          *session.Session
	emitter       *events.Emitter
	tracker       *tracker
	registry      *tools.Registry
	logger        *slog.Logger
	maxIterations int

	systemPrompt string
	conversation []llm.Message
	steps        int
	usage        llm.Usage
	lastText     string
	answer       string
	failure      string
	terminated   bool
}

func (r *run) execute(ctx context.Context) error {
	r.emitter.Emit(events.TypeStatus, events.StatusData{
		Stage:   events.StageStarting,
		Message: "Starting document exploration",
	})

	if strings.TrimSpace(r.req.Question) == "" {
		return ErrEmptyQuestion
	}
	set, err := document.NewSet(r.req.Documents)
	if err != nil {
		return err
	}
	r.sess.Documents = set
	if err := r.tracker.to(StatePreview, 0, "documents normalized"); err != nil {
		return err
	}
	r.emitter.Emit(events.TypeStatus, events.StatusData{
		Stage:         events.StageDocumentLoaded,
		Message:       fmt.Sprintf("Loaded %d document(s), %d characters", set.Len(), set.TotalLength()),
		DocumentCount: set.Len(),
		TotalLength:   set.TotalLength(),
	})

	previews, err := r.o.previews.BuildAll(ctx, set)
	if err != nil {
		return fmt.Errorf("build previews: %w", err)
	}
	payload := events.DocumentsPreviewData{Previews: make([]events.DocumentPreview, len(previews))}
	for i, p := range previews {
		payload.Previews[i] = events.DocumentPreview{
			DocumentID: p.DocumentID,
			Length:     p.Length,
			Landmarks:  p.Landmarks,
			Preview:    p.Text,
		}
	}
	r.emitter.Emit(events.TypeDocumentsPreview, payload)

	r.systemPrompt, err = r.o.prompts.Build(PromptData{
		Question:      r.req.Question,
		Previews:      previews,
		Tools:         r.registry.Definitions(),
		MultiDocument: set.IsMulti(),
		MaxIterations: r.maxIterations,
	})
	if err != nil {
		return err
	}
	r.conversation = []llm.Message{{Role: llm.RoleUser, Content: r.req.Question}}

	if err := r.tracker.to(StateExploring, 0, "system prompt assembled"); err != nil {
		return err
	}
	r.emitter.Emit(events.TypeStatus, events.StatusData{
		Stage:         events.StageExploring,
		Message:       "Exploring documents",
		DocumentCount: set.Len(),
		MaxIterations: r.maxIterations,
	})

	if err := r.explore(ctx); err != nil {
		return err
	}
	r.finalize()
	return nil
}

// explore is the bounded step loop.
func (r *run) explore(ctx context.Context) error {
	threshold := r.o.window.ThresholdFor(r.sess.Documents.IsMulti())
	defs := r.registry.Definitions()

	for step := 1; step <= r.maxIterations; step++ {
		r.steps = step
		r.emitter.SetStep(step)
		if err := r.tracker.to(StateModelCall, step, "step started"); err != nil {
			return err
		}

		resp, err := r.step(ctx, step, threshold, defs)
		if err != nil {
			return err
		}
		if !resp.HasToolCalls() {
			r.answer = resp.Content
			if r.answer == "" {
				r.answer = r.lastText
			}
			return r.tracker.to(StateAnswered, step, "engine answered")
		}
	}

	r.answer = r.lastText
	if r.answer == "" {
		r.answer = fmt.Sprintf("Reached the limit of %d exploration steps without a final answer.", r.maxIterations)
	}
	return r.tracker.to(StateIterationCapReached, r.steps, "step cap reached")
}

// step compacts, calls the engine and dispatches any requested tools.
func (r *run) step(ctx context.Context, step, threshold int, defs []tools.ToolDefinition) (*llm.Response, error) {
	ctx, span := telemetry.StartSpan(ctx, "reader.Step",
		trace.WithAttributes(attribute.Int("reader.step", step)))
	defer span.End()

	if compacted, dropped := Compact(r.conversation, threshold); dropped > 0 {
		r.conversation = compacted
		r.o.metrics.RecordCompaction(ctx)
		r.logger.Debug("conversation compacted",
			slog.Int("step", step),
			slog.Int("dropped", dropped),
			slog.Int("kept", len(compacted)))
	}

	request := &llm.Request{
		SystemPrompt:  r.systemPrompt,
		Messages:      WithMemo(r.conversation, r.sess.Memo.Text()),
		Tools:         defs,
		ModelOverride: r.req.Options.Model,
		MaxTokens:     r.o.maxTokens,
		Temperature:   r.o.temperature,
	}
	resp, err := r.o.client.Complete(ctx, request)
	if resp != nil {
		r.o.metrics.RecordLLM(ctx, r.o.client.Name(), resp.Usage.InputTokens, resp.Usage.OutputTokens, err)
	} else {
		r.o.metrics.RecordLLM(ctx, r.o.client.Name(), 0, 0, err)
	}
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("reasoning engine call at step %d: %w", step, err)
	}
	if resp == nil {
		return nil, fmt.Errorf("reasoning engine call at step %d: %w", step, llm.ErrEmptyResponse)
	}

	r.usage.Add(resp.Usage)
	r.conversation = append(r.conversation, resp.AssistantMessage())
	if resp.Content != "" {
		r.lastText = resp.Content
	}
	span.SetAttributes(attribute.Int("reader.tool_calls", len(resp.ToolCalls)))

	if !resp.HasToolCalls() {
		telemetry.SetSpanOK(span)
		return resp, nil
	}
	if err := r.tracker.to(StateToolDispatch, step, fmt.Sprintf("%d tool call(s)", len(resp.ToolCalls))); err != nil {
		return nil, err
	}
	for _, call := range resp.ToolCalls {
		r.dispatch(ctx, call)
	}
	telemetry.SetSpanOK(span)
	return resp, nil
}

// dispatch executes one tool call and appends its result.
func (r *run) dispatch(ctx context.Context, call llm.ToolCall) {
	ctx, span := telemetry.StartSpan(ctx, "reader.Tool."+call.Name)
	defer span.End()

	res := r.registry.Execute(ctx, call.Name, call.Arguments)
	r.o.metrics.RecordTool(ctx, call.Name, res.Success, res.Duration)
	if res.Success {
		telemetry.SetSpanOK(span)
	} else {
		span.SetAttributes(attribute.String("reader.tool_error", res.Error))
		r.logger.Debug("tool failed",
			slog.String("tool", call.Name),
			slog.String("error", res.Error))
	}

	r.conversation = append(r.conversation, llm.Message{
		Role:       llm.RoleTool,
		Content:    res.ModelContent(),
		ToolCallID: call.ID,
		Name:       call.Name,
	})
}

// finalize emits the answer, optional metadata and complete.
func (r *run) finalize() {
	r.sess.Stats.SearchIterations = r.steps

	answer := events.AnswerData{
		Answer: r.answer,
		State:  r.tracker.current.String(),
		Steps:  r.steps,
	}
	if !r.usage.IsZero() {
		answer.Usage = &events.Usage{
			InputTokens:  r.usage.InputTokens,
			OutputTokens: r.usage.OutputTokens,
			TotalTokens:  r.usage.TotalTokens,
		}
	}
	r.emitter.Emit(events.TypeAnswer, answer)

	if r.req.Options.IncludeMetadata {
		r.emitter.Emit(events.TypeMetadata, events.MetadataData{
			ProcessingTimeMs: r.sess.Elapsed().Milliseconds(),
			Stats:            r.sess.Snapshot(),
		})
	}
	r.emitter.Emit(events.TypeComplete, events.CompleteData{Message: "Exploration complete"})
	r.terminated = true
}

// fail moves the run to FAILED and emits the single error event. A run
// that already emitted its terminal event keeps its state.
func (r *run) fail(err error) *RunResult {
	if !r.terminated {
		r.tracker.fail(r.steps, err.Error())
		r.sess.Stats.SearchIterations = r.steps
		r.failure = err.Error()
		r.emitter.Emit(events.TypeError, events.ErrorData{Message: err.Error()})
		r.terminated = true
	}
	return r.result()
}

func (r *run) result() *RunResult {
	history := make([]Transition, len(r.tracker.history))
	copy(history, r.tracker.history)
	return &RunResult{
		SessionID:   r.sess.ID,
		State:       r.tracker.current,
		Answer:      r.answer,
		Steps:       r.steps,
		Stats:       r.sess.Snapshot(),
		Usage:       r.usage,
		Memo:        r.sess.Memo.Text(),
		Error:       r.failure,
		Duration:    r.sess.Elapsed(),
		Transitions: history,
	}
}

// finish records metrics and archives the run. It must not panic.
func (r *run) finish(ctx context.Context, span trace.Span, res *RunResult) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("run finalization panicked", slog.Any("panic", rec))
		}
	}()
	if res == nil {
		return
	}

	span.SetAttributes(
		attribute.String("reader.state", res.State.String()),
		attribute.Int("reader.steps", res.Steps),
	)
	if res.State == StateFailed {
		telemetry.RecordError(span, errors.New(res.Error))
	} else {
		telemetry.SetSpanOK(span)
	}
	r.o.metrics.RecordRun(ctx, res.State.String(), res.Steps, res.Duration)

	r.logger.Info("exploration finished",
		slog.String("state", res.State.String()),
		slog.Int("steps", res.Steps),
		slog.Int("tool_calls", res.Stats.ToolCalls),
		slog.Duration("duration", res.Duration))

	if r.o.archiver == nil {
		return
	}
	rec := &archive.Record{
		ID:            res.SessionID,
		Question:      r.req.Question,
		DocumentCount: len(r.req.Documents),
		State:         res.State.String(),
		Answer:        res.Answer,
		Error:         res.Error,
		Steps:         res.Steps,
		Stats:         res.Stats,
		Usage: events.Usage{
			InputTokens:  res.Usage.InputTokens,
			OutputTokens: res.Usage.OutputTokens,
			TotalTokens:  res.Usage.TotalTokens,
		},
		Memo:       res.Memo,
		StartedAt:  r.sess.StartedAt,
		DurationMs: res.Duration.Milliseconds(),
		Events:     r.emitter.Buffer(),
	}
	if err := r.o.archiver.Save(context.WithoutCancel(ctx), rec); err != nil {
		r.logger.Warn("archive run failed", slog.String("error", err.Error()))
	}
}
