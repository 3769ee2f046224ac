// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package events defines the progress events an exploration run reports and
// the emitter that delivers them.
//
// Events are fire-and-forget: the run never reads a return value from a
// sink or subscriber, and a panicking sink is recovered and logged without
// affecting the run.
package events

import (
	"encoding/json"
	"time"

	"github.com/AleutianAI/AleutianReader/services/reader/session"
)

// Type identifies the kind of event. The string value is the wire name.
type Type string

const (
	// TypeStatus reports a lifecycle stage.
	TypeStatus Type = "status"

	// TypeDocumentsPreview carries the structural preview of every document.
	TypeDocumentsPreview Type = "documents_preview"

	// TypeToolCall is emitted before a tool executes.
	TypeToolCall Type = "tool_call"

	// TypeContentRead is emitted after a successful readContent.
	TypeContentRead Type = "content_read"

	// TypeFigureAnalyzed is emitted after readFigure completes.
	TypeFigureAnalyzed Type = "figure_analyzed"

	// TypeSearchComplete is emitted after a successful searchContent.
	TypeSearchComplete Type = "search_complete"

	// TypeMemoUpdated is emitted after updateMemo overwrites the memo.
	TypeMemoUpdated Type = "memo_updated"

	// TypeAnswer carries the final answer.
	TypeAnswer Type = "answer"

	// TypeMetadata carries timing and counters when requested.
	TypeMetadata Type = "metadata"

	// TypeComplete terminates a successful run.
	TypeComplete Type = "complete"

	// TypeError terminates a failed run.
	TypeError Type = "error"
)

// IsTerminal reports whether no further events follow this one.
func (t Type) IsTerminal() bool {
	return t == TypeComplete || t == TypeError
}

// AllTypes returns every event type in protocol order.
func AllTypes() []Type {
	return []Type{
		TypeStatus, TypeDocumentsPreview, TypeToolCall, TypeContentRead,
		TypeFigureAnalyzed, TypeSearchComplete, TypeMemoUpdated,
		TypeAnswer, TypeMetadata, TypeComplete, TypeError,
	}
}

// Status stages.
const (
	StageStarting       = "starting"
	StageDocumentLoaded = "document_loaded"
	StageExploring      = "exploring"
)

// Event is one emitted event as seen by subscribers.
type Event struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	SessionID string    `json:"sessionId,omitempty"`
	Seq       int       `json:"seq"`
	Step      int       `json:"step"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// =============================================================================
// Payloads
// =============================================================================

// StatusData is the payload for TypeStatus.
type StatusData struct {
	Stage         string `json:"stage"`
	Message       string `json:"message"`
	DocumentCount int    `json:"documentCount,omitempty"`
	TotalLength   int    `json:"totalLength,omitempty"`
	MaxIterations int    `json:"maxIterations,omitempty"`
}

// DocumentPreview is one document's entry in DocumentsPreviewData.
type DocumentPreview struct {
	DocumentID int    `json:"documentId"`
	Length     int    `json:"length"`
	Landmarks  int    `json:"landmarks"`
	Preview    string `json:"preview"`
}

// DocumentsPreviewData is the payload for TypeDocumentsPreview.
type DocumentsPreviewData struct {
	Previews []DocumentPreview `json:"previews"`
}

// ToolCallData is the payload for TypeToolCall.
//
// It serializes flat: {"tool": name, <arg>: <value>, ...}.
type ToolCallData struct {
	Tool string
	Args map[string]any
}

// MarshalJSON flattens Args next to the tool name.
func (d ToolCallData) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(d.Args)+1)
	for k, v := range d.Args {
		flat[k] = v
	}
	flat["tool"] = d.Tool
	return json.Marshal(flat)
}

// ContentReadData is the payload for TypeContentRead.
type ContentReadData struct {
	DocumentID    int  `json:"documentId"`
	StartPosition int  `json:"startPosition"`
	EndPosition   int  `json:"endPosition"`
	ContentLength int  `json:"contentLength"`
	Truncated     bool `json:"truncated,omitempty"`
}

// FigureAnalyzedData is the payload for TypeFigureAnalyzed.
type FigureAnalyzedData struct {
	ImageURL       string `json:"imageUrl"`
	Query          string `json:"query"`
	Result         string `json:"result"`
	AnalysisLength int    `json:"analysisLength"`
}

// SearchCompleteData is the payload for TypeSearchComplete.
type SearchCompleteData struct {
	DocumentID    int    `json:"documentId"`
	SearchPattern string `json:"searchPattern"`
	ResultsFound  int    `json:"resultsFound"`
	HasMore       bool   `json:"hasMore"`
}

// MemoUpdatedData is the payload for TypeMemoUpdated.
type MemoUpdatedData struct {
	MemoLength  int    `json:"memoLength"`
	MemoContent string `json:"memoContent"`
}

// Usage is token accounting reported with the answer.
type Usage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
	TotalTokens  int `json:"totalTokens"`
}

// AnswerData is the payload for TypeAnswer.
type AnswerData struct {
	Answer string `json:"answer"`
	Usage  *Usage `json:"usage,omitempty"`
	State  string `json:"state"`
	Steps  int    `json:"steps"`
}

// MetadataData is the payload for TypeMetadata.
type MetadataData struct {
	ProcessingTimeMs int64         `json:"processing_time_ms"`
	Stats            session.Stats `json:"stats"`
}

// CompleteData is the payload for TypeComplete.
type CompleteData struct {
	Message string `json:"message"`
}

// ErrorData is the payload for TypeError.
type ErrorData struct {
	Message string `json:"message"`
}
