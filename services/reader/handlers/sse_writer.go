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
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianReader/services/reader/events"
)

// ErrStreamingUnsupported is returned when the ResponseWriter cannot flush.
var ErrStreamingUnsupported = errors.New("ResponseWriter does not support http.Flusher")

// StreamEvent is one SSE frame body.
//
// Hash covers Id, Type, CreatedAt, PrevHash and the JSON of Data, so a
// client can verify that no frame was dropped or altered.
type StreamEvent struct {
	Id        string          `json:"id"`
	Type      events.Type     `json:"type"`
	CreatedAt int64           `json:"createdAt"`
	Data      json.RawMessage `json:"data"`
	Hash      string          `json:"hash"`
	PrevHash  string          `json:"prevHash,omitempty"`
}

// SSEWriter writes exploration events as Server-Sent Events.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use: the run goroutine
// writes events while the keepalive ticker writes comments.
type SSEWriter interface {
	// WriteEvent writes one frame as "event: <type>\ndata: <json>\n\n" and
	// flushes.
	WriteEvent(eventType events.Type, payload any) error

	// WriteKeepAlive writes an SSE comment. It does not touch the hash chain.
	WriteKeepAlive() error

	// Failed reports whether a write has failed, which means the client
	// has gone away.
	Failed() bool
}

type sseWriter struct {
	writer   http.ResponseWriter
	flusher  http.Flusher
	prevHash string
	failed   bool
	mu       sync.Mutex
}

// NewSSEWriter wraps w. The caller must have called SetSSEHeaders.
func NewSSEWriter(w http.ResponseWriter) (SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingUnsupported
	}
	return &sseWriter{writer: w, flusher: flusher}, nil
}

func (w *sseWriter) WriteEvent(eventType events.Type, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", eventType, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	event := StreamEvent{
		Id:        uuid.New().String(),
		Type:      eventType,
		CreatedAt: time.Now().UnixMilli(),
		Data:      data,
		PrevHash:  w.prevHash,
	}
	event.Hash = computeEventHash(event)
	w.prevHash = event.Hash

	frame, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(w.writer, "event: %s\ndata: %s\n\n", event.Type, frame); err != nil {
		w.failed = true
		return fmt.Errorf("write event: %w", err)
	}
	w.flusher.Flush()
	return nil
}

// computeEventHash hashes the event content with Hash unset.
func computeEventHash(event StreamEvent) string {
	hashInput := fmt.Sprintf("%s|%s|%d|%s|%s",
		event.Id,
		event.Type,
		event.CreatedAt,
		event.PrevHash,
		event.Data,
	)
	hash := sha256.Sum256([]byte(hashInput))
	return hex.EncodeToString(hash[:])
}

// VerifyChain checks that every frame's hash matches its content and links
// to the previous frame.
func VerifyChain(frames []StreamEvent) error {
	prev := ""
	for i, f := range frames {
		if f.PrevHash != prev {
			return fmt.Errorf("frame %d: chain broken", i)
		}
		if computeEventHash(StreamEvent{
			Id: f.Id, Type: f.Type, CreatedAt: f.CreatedAt, Data: f.Data, PrevHash: f.PrevHash,
		}) != f.Hash {
			return fmt.Errorf("frame %d: hash mismatch", i)
		}
		prev = f.Hash
	}
	return nil
}

func (w *sseWriter) WriteKeepAlive() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := fmt.Fprintf(w.writer, ": ping\n\n"); err != nil {
		w.failed = true
		return fmt.Errorf("write keepalive: %w", err)
	}
	w.flusher.Flush()
	return nil
}

func (w *sseWriter) Failed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.failed
}

// SetSSEHeaders sets the Server-Sent Events response headers. Must be
// called before writing any response body.
func SetSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

var _ SSEWriter = (*sseWriter)(nil)
