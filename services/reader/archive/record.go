// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package archive persists finished exploration runs in BadgerDB so they
// can be fetched after the event stream has closed.
package archive

import (
	"time"

	"github.com/AleutianAI/AleutianReader/services/reader/events"
	"github.com/AleutianAI/AleutianReader/services/reader/session"
)

// Record is a finished run.
type Record struct {
	ID            string         `json:"id"`
	Question      string         `json:"question"`
	DocumentCount int            `json:"documentCount"`
	State         string         `json:"state"`
	Answer        string         `json:"answer"`
	Error         string         `json:"error,omitempty"`
	Steps         int            `json:"steps"`
	Stats         session.Stats  `json:"stats"`
	Usage         events.Usage   `json:"usage"`
	Memo          string         `json:"memo,omitempty"`
	StartedAt     time.Time      `json:"startedAt"`
	DurationMs    int64          `json:"durationMs"`
	Events        []events.Event `json:"events,omitempty"`
}
