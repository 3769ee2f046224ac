// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package document

import "fmt"

const (
	// MaxReadSpan is the largest range returned in full by Read.
	MaxReadSpan = 10000

	// TruncatedReadLength is how many characters Read returns for a range
	// wider than MaxReadSpan.
	TruncatedReadLength = MaxReadSpan - 100
)

// ReadResult is the outcome of a successful Read.
type ReadResult struct {
	DocumentID int    `json:"documentId"`
	Content    string `json:"content"`

	// Start and End echo the requested range.
	Start int `json:"start"`
	End   int `json:"end"`

	// EffectiveEnd is the offset where returned document text stops. It
	// differs from End only when Truncated is set.
	EffectiveEnd int `json:"effectiveEnd"`

	// ContentLength counts the characters in Content, marker included.
	ContentLength int  `json:"contentLength"`
	TotalLength   int  `json:"totalLength"`
	HasMoreBefore bool `json:"hasMoreBefore"`
	HasMoreAfter  bool `json:"hasMoreAfter"`
	Truncated     bool `json:"truncated"`
}

// Read returns the characters in [start, end) of document id.
//
// Description:
//
//	Validates 0 <= start <= length, 0 <= end <= length and start < end,
//	in that order, after resolving the document. Ranges wider than
//	MaxReadSpan return the first TruncatedReadLength characters followed
//	by an inline marker naming the offset to resume from.
//
// Inputs:
//
//	id - 1-based document id.
//	start - First character offset, inclusive.
//	end - Last character offset, exclusive.
//
// Outputs:
//
//	*ReadResult - Content and position metadata.
//	error - *RangeError wrapping ErrDocumentNotFound or ErrInvalidRange.
func (s *Set) Read(id, start, end int) (*ReadResult, error) {
	doc, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if err := validateRange(doc.Length, start, end); err != nil {
		return nil, err
	}

	effectiveEnd := end
	truncated := end-start > MaxReadSpan
	if truncated {
		effectiveEnd = start + TruncatedReadLength
	}

	content := string(doc.runes[start:effectiveEnd])
	if truncated {
		content += fmt.Sprintf(
			"\n\n[Content truncated: showing characters %d-%d. Request a smaller range starting at %d to continue.]",
			start, effectiveEnd, effectiveEnd)
	}

	return &ReadResult{
		DocumentID:    id,
		Content:       content,
		Start:         start,
		End:           end,
		EffectiveEnd:  effectiveEnd,
		ContentLength: runeLen(content),
		TotalLength:   doc.Length,
		HasMoreBefore: start > 0,
		HasMoreAfter:  end < doc.Length,
		Truncated:     truncated,
	}, nil
}

func validateRange(length, start, end int) error {
	switch {
	case start < 0:
		return rangeErr("start", start, length,
			"start position %d is negative: must be between 0 and %d", start, length)
	case start > length:
		return rangeErr("start", start, length,
			"start position %d exceeds document length %d", start, length)
	case end < 0:
		return rangeErr("end", end, length,
			"end position %d is negative: must be between 0 and %d", end, length)
	case end > length:
		return rangeErr("end", end, length,
			"end position %d exceeds document length %d", end, length)
	case start >= end:
		return rangeErr("start", start, end,
			"start position %d must be less than end position %d", start, end)
	}
	return nil
}

func rangeErr(field string, value, bound int, format string, args ...any) *RangeError {
	return &RangeError{
		Kind:  ErrInvalidRange,
		Field: field,
		Value: value,
		Bound: bound,
		msg:   fmt.Sprintf(format, args...),
	}
}
