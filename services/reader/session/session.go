// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package session holds the state owned by a single exploration run: its
// documents, memo cell and counters.
//
// Thread Safety:
//
//	A Session is owned by exactly one run and written from the goroutine
//	driving that run. Concurrent runs must each create their own Session.
//	Nothing in this package is shared across runs.
package session

import (
	"time"
	"unicode/utf8"

	"github.com/AleutianAI/AleutianReader/services/reader/document"
	"github.com/google/uuid"
)

// Stats are the per-run counters reported in the final events.
//
// All counters are monotonically non-decreasing during a run.
type Stats struct {
	ToolCalls        int `json:"tool_calls"`
	ContentReads     int `json:"content_reads"`
	FigureAnalyses   int `json:"figure_analyses"`
	SearchIterations int `json:"search_iterations"`
}

// Memo is the single overwrite-only scratch text the exploring policy
// maintains across context compaction.
type Memo struct {
	text string
}

// Set replaces the memo text and returns its new length in characters.
func (m *Memo) Set(text string) int {
	m.text = text
	return m.Len()
}

// Text returns the current memo.
func (m *Memo) Text() string {
	return m.text
}

// Len returns the memo length in characters.
func (m *Memo) Len() int {
	return utf8.RuneCountInString(m.text)
}

// IsEmpty reports whether the memo has no text.
func (m *Memo) IsEmpty() bool {
	return m.text == ""
}

// Session is the per-run state threaded through the tools.
type Session struct {
	ID        string
	Question  string
	Documents *document.Set
	Memo      *Memo
	Stats     *Stats
	StartedAt time.Time
}

// New creates a session with a fresh id, empty memo and zeroed stats.
func New(question string, docs *document.Set) *Session {
	return &Session{
		ID:        uuid.NewString(),
		Question:  question,
		Documents: docs,
		Memo:      &Memo{},
		Stats:     &Stats{},
		StartedAt: time.Now(),
	}
}

// Snapshot returns a copy of the current counters.
func (s *Session) Snapshot() Stats {
	return *s.Stats
}

// Elapsed returns the time since the session started.
func (s *Session) Elapsed() time.Duration {
	return time.Since(s.StartedAt)
}
