// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package events

import "sync"

// Recorded is one (name, payload) pair captured by a Recorder.
type Recorded struct {
	Name    Type
	Payload any
}

// Recorder is a Sink that keeps every event it receives.
//
// Used by tests and by the synchronous HTTP endpoint to return the full
// event log with the result.
type Recorder struct {
	mu     sync.Mutex
	events []Recorded
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Sink returns the recording sink.
func (r *Recorder) Sink() Sink {
	return func(name Type, payload any) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.events = append(r.events, Recorded{Name: name, Payload: payload})
	}
}

// Events returns a copy of everything recorded.
func (r *Recorder) Events() []Recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Recorded, len(r.events))
	copy(out, r.events)
	return out
}

// Names returns the recorded event names in order.
func (r *Recorder) Names() []Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]Type, len(r.events))
	for i, e := range r.events {
		names[i] = e.Name
	}
	return names
}

// ByType returns the payloads of one event type in order.
func (r *Recorder) ByType(name Type) []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []any
	for _, e := range r.events {
		if e.Name == name {
			out = append(out, e.Payload)
		}
	}
	return out
}

// Count returns how many events of a type were recorded.
func (r *Recorder) Count(name Type) int {
	return len(r.ByType(name))
}
