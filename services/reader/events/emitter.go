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

import (
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Sink receives (name, payload) pairs synchronously in emission order.
//
// The payload is one of the *Data structs in this package and is JSON
// serializable. A sink's failures, including panics, never reach the run.
type Sink func(name Type, payload any)

// Handler processes full events, including id, sequence and step.
type Handler func(event *Event)

// Subscription represents a subscription to events.
type Subscription struct {
	// ID uniquely identifies this subscription.
	ID string

	// Handler processes matching events.
	Handler Handler

	// Types limits which event types to handle (nil = all types).
	Types []Type
}

// Emitter delivers events to a sink and to subscribers.
//
// Thread Safety: Emitter is safe for concurrent use. Delivery order matches
// Emit call order when Emit is called from a single goroutine, which is how
// a run uses it.
type Emitter struct {
	mu            sync.RWMutex
	sink          Sink
	subscriptions map[string]*Subscription
	order         []string
	buffer        []Event
	bufferSize    int
	sessionID     string
	currentStep   int
	seq           int
	logger        *slog.Logger
}

// EmitterOption configures an Emitter.
type EmitterOption func(*Emitter)

// WithSink sets the primary sink.
func WithSink(sink Sink) EmitterOption {
	return func(e *Emitter) {
		e.sink = sink
	}
}

// WithBufferSize sets how many recent events are retained.
func WithBufferSize(size int) EmitterOption {
	return func(e *Emitter) {
		if size > 0 {
			e.bufferSize = size
		}
	}
}

// WithSessionID sets the session ID for all events.
func WithSessionID(id string) EmitterOption {
	return func(e *Emitter) {
		e.sessionID = id
	}
}

// WithLogger sets the logger used to report recovered panics.
func WithLogger(logger *slog.Logger) EmitterOption {
	return func(e *Emitter) {
		e.logger = logger
	}
}

// NewEmitter creates a new event emitter.
func NewEmitter(opts ...EmitterOption) *Emitter {
	e := &Emitter{
		subscriptions: make(map[string]*Subscription),
		bufferSize:    1000,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.buffer = make([]Event, 0, min(e.bufferSize, 64))
	return e
}

// Subscribe registers a handler for events.
//
// Inputs:
//
//	handler - Function to call for each event.
//	types - Event types to subscribe to (nil = all types).
//
// Outputs:
//
//	string - Subscription ID for unsubscribing.
func (e *Emitter) Subscribe(handler Handler, types ...Type) string {
	e.mu.Lock()
	defer e.mu.Unlock()

	sub := &Subscription{
		ID:      uuid.NewString(),
		Handler: handler,
		Types:   types,
	}
	e.subscriptions[sub.ID] = sub
	e.order = append(e.order, sub.ID)
	return sub.ID
}

// Unsubscribe removes a subscription.
func (e *Emitter) Unsubscribe(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.subscriptions[id]; !ok {
		return false
	}
	delete(e.subscriptions, id)
	e.order = slices.DeleteFunc(e.order, func(s string) bool { return s == id })
	return true
}

// Emit delivers an event to the sink and then to matching subscribers.
//
// Description:
//
//	Assigns the next sequence number, stamps the current step and session,
//	buffers the event and invokes each receiver with panic recovery.
//
// Inputs:
//
//	eventType - The type of event.
//	data - Event payload (use the typed *Data structs from types.go).
func (e *Emitter) Emit(eventType Type, data any) {
	e.mu.Lock()
	e.seq++
	event := Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		SessionID: e.sessionID,
		Seq:       e.seq,
		Step:      e.currentStep,
		Timestamp: time.Now(),
		Data:      data,
	}
	if len(e.buffer) >= e.bufferSize {
		e.buffer = e.buffer[1:]
	}
	e.buffer = append(e.buffer, event)
	sink := e.sink
	subs := make([]*Subscription, 0, len(e.order))
	for _, id := range e.order {
		subs = append(subs, e.subscriptions[id])
	}
	e.mu.Unlock()

	if sink != nil {
		e.safeInvoke(&event, func() { sink(event.Type, event.Data) })
	}
	for _, sub := range subs {
		if len(sub.Types) > 0 && !slices.Contains(sub.Types, event.Type) {
			continue
		}
		e.safeInvoke(&event, func() { sub.Handler(&event) })
	}
}

// safeInvoke runs fn, recovering and logging any panic.
func (e *Emitter) safeInvoke(event *Event, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("event receiver panicked",
				slog.String("event_type", string(event.Type)),
				slog.String("event_id", event.ID),
				slog.Any("panic", r),
			)
		}
	}()
	fn()
}

// SessionID returns the session stamped on events.
func (e *Emitter) SessionID() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.sessionID
}

// SetSessionID updates the session ID for future events.
func (e *Emitter) SetSessionID(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sessionID = id
}

// SetStep updates the current step number.
func (e *Emitter) SetStep(step int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.currentStep = step
}

// CurrentStep returns the current step number.
func (e *Emitter) CurrentStep() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.currentStep
}

// Buffer returns a copy of the retained events.
func (e *Emitter) Buffer() []Event {
	e.mu.RLock()
	defer e.mu.RUnlock()

	events := make([]Event, len(e.buffer))
	copy(events, e.buffer)
	return events
}

// BufferByType returns retained events of a specific type.
func (e *Emitter) BufferByType(eventType Type) []Event {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var events []Event
	for _, event := range e.buffer {
		if event.Type == eventType {
			events = append(events, event)
		}
	}
	return events
}

// SubscriptionCount returns the number of active subscriptions.
func (e *Emitter) SubscriptionCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.subscriptions)
}
