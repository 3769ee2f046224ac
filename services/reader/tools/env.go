// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tools

import (
	"context"
	"maps"
	"time"

	"github.com/AleutianAI/AleutianReader/services/reader/events"
	"github.com/AleutianAI/AleutianReader/services/reader/session"
)

// VisionAnalyzer answers a question about an image.
//
// imageRef is an http(s) URL or a data: URI. Implementations live in the
// llm package.
type VisionAnalyzer interface {
	Analyze(ctx context.Context, instruction, imageRef string) (string, error)
}

// Env is the per-run state every tool closes over.
type Env struct {
	// Session holds the documents, memo and counters. Required.
	Session *session.Session

	// Emitter receives tool events. Nil disables emission.
	Emitter *events.Emitter

	// Vision backs readFigure. Nil makes readFigure fail cleanly.
	Vision VisionAnalyzer

	// SearchTimeout bounds one regex match attempt. Zero selects the
	// document package default.
	SearchTimeout time.Duration
}

// begin records the call and emits tool_call. Every tool calls it first,
// before validating anything.
func (e *Env) begin(name Name, params map[string]any) {
	e.Session.Stats.ToolCalls++
	e.emit(events.TypeToolCall, events.ToolCallData{Tool: string(name), Args: maps.Clone(params)})
}

func (e *Env) emit(t events.Type, data any) {
	if e.Emitter != nil {
		e.Emitter.Emit(t, data)
	}
}

// NewRunRegistry returns a registry holding the four exploration tools
// bound to env.
func NewRunRegistry(env *Env) *Registry {
	r := NewRegistry()
	r.Register(NewReadContentTool(env))
	r.Register(NewSearchContentTool(env))
	r.Register(NewReadFigureTool(env))
	r.Register(NewUpdateMemoTool(env))
	return r
}
