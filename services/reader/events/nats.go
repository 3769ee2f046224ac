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
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// DefaultSubjectPrefix is the subject root events are published under.
const DefaultSubjectPrefix = "reader.events"

// Publisher is the subset of *nats.Conn used for forwarding.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSForwarder publishes every event it handles to NATS.
//
// Subjects have the form "<prefix>.<sessionID>.<type>", so a consumer can
// follow one run with "<prefix>.<sessionID>.>" or every answer with
// "<prefix>.*.answer".
type NATSForwarder struct {
	conn   Publisher
	prefix string
	logger *slog.Logger
}

// NewNATSForwarder creates a forwarder. An empty prefix selects
// DefaultSubjectPrefix.
func NewNATSForwarder(conn Publisher, prefix string, logger *slog.Logger) *NATSForwarder {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &NATSForwarder{conn: conn, prefix: prefix, logger: logger}
}

// ConnectNATS dials the NATS server at url with reconnects enabled.
func ConnectNATS(url, clientName string) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name(clientName),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	return conn, nil
}

// Subject returns the subject an event is published to.
func (f *NATSForwarder) Subject(event *Event) string {
	session := event.SessionID
	if session == "" {
		session = "unknown"
	}
	return fmt.Sprintf("%s.%s.%s", f.prefix, session, event.Type)
}

// Handle is an events.Handler. Publish failures are logged and dropped.
func (f *NATSForwarder) Handle(event *Event) {
	raw, err := json.Marshal(event)
	if err != nil {
		f.logger.Warn("event marshal failed", slog.String("event_type", string(event.Type)), slog.String("error", err.Error()))
		return
	}
	if err := f.conn.Publish(f.Subject(event), raw); err != nil {
		f.logger.Warn("event publish failed", slog.String("event_type", string(event.Type)), slog.String("error", err.Error()))
	}
}
