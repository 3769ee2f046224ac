// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package preview

import (
	"slices"

	"github.com/dlclark/regexp2"
)

// Kind classifies a structural landmark.
type Kind string

const (
	KindHeading Kind = "heading"
	KindFigure  Kind = "figure"
	KindTable   Kind = "table"
)

// KeyPosition is a structurally significant span found in document text.
type KeyPosition struct {
	Type    Kind   `json:"type"`
	Start   int    `json:"start"`
	End     int    `json:"end"`
	Content string `json:"content"`
}

type scanner struct {
	kind    Kind
	pattern *regexp2.Regexp
}

// scanners run in this order; ties at the same start keep this order.
var scanners = []scanner{
	{KindHeading, regexp2.MustCompile(`^#{1,6}[ \t]+\S[^\r\n]*`, regexp2.Multiline)},
	{KindFigure, regexp2.MustCompile(`!\[[^\]\r\n]*\]\([^)\s]+(?:[ \t]+"[^"\r\n]*")?\)`, regexp2.None)},
	{KindTable, regexp2.MustCompile(`<table\b[\s\S]*?</table\s*>`, regexp2.IgnoreCase)},
	{KindTable, regexp2.MustCompile(`^[ \t]*\|[^\r\n]*\|[ \t]*\r?(?:\n[ \t]*\|[^\r\n]*\|[ \t]*\r?)+`, regexp2.Multiline)},
}

// FindKeyPositions scans text for headings, image references, HTML tables
// and pipe-table line runs, returning them stably sorted by start offset.
func FindKeyPositions(text []rune) []KeyPosition {
	var positions []KeyPosition
	for _, sc := range scanners {
		positions = append(positions, scan(sc, text)...)
	}
	slices.SortStableFunc(positions, func(a, b KeyPosition) int {
		return a.Start - b.Start
	})
	return positions
}

func scan(sc scanner, text []rune) []KeyPosition {
	var out []KeyPosition
	m, err := sc.pattern.FindRunesMatchStartingAt(text, 0)
	for err == nil && m != nil {
		end := trimLineEnd(text, m.Index, m.Index+m.Length)
		if end > m.Index {
			out = append(out, KeyPosition{
				Type:    sc.kind,
				Start:   m.Index,
				End:     end,
				Content: string(text[m.Index:end]),
			})
		}
		m, err = sc.pattern.FindNextMatch(m)
	}
	return out
}

// trimLineEnd drops a trailing carriage return captured by line patterns.
func trimLineEnd(text []rune, start, end int) int {
	for end > start && (text[end-1] == '\r' || text[end-1] == '\n') {
		end--
	}
	return end
}
