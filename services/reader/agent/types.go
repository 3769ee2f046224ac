// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package agent runs the exploration loop: it previews the documents,
// then alternates reasoning engine calls and tool dispatches until the
// engine answers or the step cap is reached.
package agent

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/AleutianAI/AleutianReader/services/reader/document"
	"github.com/AleutianAI/AleutianReader/services/reader/llm"
	"github.com/AleutianAI/AleutianReader/services/reader/session"
)

// RunState is a node of the exploration state machine.
type RunState string

const (
	StateInit                RunState = "INIT"
	StatePreview             RunState = "PREVIEW"
	StateExploring           RunState = "EXPLORING"
	StateModelCall           RunState = "MODEL_CALL"
	StateToolDispatch        RunState = "TOOL_DISPATCH"
	StateAnswered            RunState = "ANSWERED"
	StateIterationCapReached RunState = "ITERATION_CAP_REACHED"
	StateFailed              RunState = "FAILED"
)

// String returns the state name.
func (s RunState) String() string {
	return string(s)
}

// IsTerminal reports whether no transition leaves s.
func (s RunState) IsTerminal() bool {
	return s == StateAnswered || s == StateIterationCapReached || s == StateFailed
}

// AllStates returns every state.
func AllStates() []RunState {
	return []RunState{
		StateInit, StatePreview, StateExploring, StateModelCall, StateToolDispatch,
		StateAnswered, StateIterationCapReached, StateFailed,
	}
}

// Sentinel errors for the exploration loop.
var (
	// ErrInvalidTransition indicates an invalid state transition was attempted.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrEmptyQuestion indicates the question is blank.
	ErrEmptyQuestion = errors.New("question must not be empty")

	// ErrNoClient indicates the orchestrator was built without a reasoning engine.
	ErrNoClient = errors.New("reasoning engine is required")

	// ErrPanic wraps a panic recovered at the run boundary.
	ErrPanic = errors.New("exploration panicked")
)

// DefaultMaxIterations is the step cap when none is given.
const DefaultMaxIterations = 20

// RunOptions tune one run.
type RunOptions struct {
	// MaxIterations caps reasoning steps. Zero selects the orchestrator
	// default.
	MaxIterations int `json:"maxIterations,omitempty" yaml:"max_iterations" validate:"gte=0,lte=200"`

	// Model overrides the engine's default model.
	Model string `json:"model,omitempty" yaml:"model"`

	// IncludeMetadata emits a metadata event before completion.
	IncludeMetadata bool `json:"includeMetadata,omitempty" yaml:"include_metadata"`
}

// Request is one exploration. In JSON the documents may be given as
// "documents" (a string or an array) or as a single "document" string.
type Request struct {
	Question  string         `json:"question" validate:"required"`
	Documents document.Input `json:"documents" validate:"required,min=1"`
	Options   RunOptions     `json:"options"`
}

// ErrAmbiguousDocuments rejects a request carrying both "document" and
// "documents".
var ErrAmbiguousDocuments = errors.New(`request sets both "document" and "documents"`)

// UnmarshalJSON folds the singular "document" field into Documents.
func (r *Request) UnmarshalJSON(data []byte) error {
	type plain Request
	var raw struct {
		plain
		Document *string `json:"document"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Document != nil {
		if raw.Documents != nil {
			return ErrAmbiguousDocuments
		}
		raw.Documents = document.Input{*raw.Document}
	}
	*r = Request(raw.plain)
	return nil
}

// Transition is one recorded state change.
type Transition struct {
	From   RunState  `json:"from"`
	To     RunState  `json:"to"`
	Step   int       `json:"step"`
	Reason string    `json:"reason"`
	At     time.Time `json:"at"`
}

// RunResult summarizes a finished run.
type RunResult struct {
	SessionID   string        `json:"sessionId"`
	State       RunState      `json:"state"`
	Answer      string        `json:"answer"`
	Steps       int           `json:"steps"`
	Stats       session.Stats `json:"stats"`
	Usage       llm.Usage     `json:"usage"`
	Memo        string        `json:"memo,omitempty"`
	Error       string        `json:"error,omitempty"`
	Duration    time.Duration `json:"duration"`
	Transitions []Transition  `json:"transitions"`
}
