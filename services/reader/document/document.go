// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package document holds the immutable, position-addressed document set an
// exploration run works against.
//
// Every offset in this package counts Unicode code points, not bytes. A
// document's Length is the number of characters in its content and every
// read or search result reports positions on that same scale, so offsets
// returned by Search can be fed straight back into Read.
package document

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"
)

// Document is one caller-supplied text addressed by character offset.
//
// Thread Safety: Immutable after construction; safe for concurrent reads.
type Document struct {
	// ID is the 1-based position of this document in the run's input.
	ID int `json:"id"`

	// Content is the full document text.
	Content string `json:"content"`

	// Length is the number of characters in Content.
	Length int `json:"length"`

	runes []rune
}

// New creates a document with the given id.
func New(id int, content string) *Document {
	runes := []rune(content)
	return &Document{
		ID:      id,
		Content: content,
		Length:  len(runes),
		runes:   runes,
	}
}

// Runes returns the document's characters. Callers must not modify the slice.
func (d *Document) Runes() []rune {
	return d.runes
}

// Slice returns the characters in [start, end) clipped to the document.
func (d *Document) Slice(start, end int) string {
	start = clamp(start, 0, d.Length)
	end = clamp(end, start, d.Length)
	return string(d.runes[start:end])
}

// Set is the ordered collection of documents for a single run.
//
// Thread Safety: Immutable after construction; safe for concurrent reads.
type Set struct {
	docs []*Document
}

// NewSet assigns sequential ids starting at 1 in input order.
//
// Outputs:
//
//	*Set - The document set.
//	error - ErrNoDocuments when input is empty.
func NewSet(input Input) (*Set, error) {
	if len(input) == 0 {
		return nil, ErrNoDocuments
	}
	docs := make([]*Document, len(input))
	for i, text := range input {
		docs[i] = New(i+1, text)
	}
	return &Set{docs: docs}, nil
}

// Len returns the number of documents.
func (s *Set) Len() int {
	return len(s.docs)
}

// IsMulti reports whether the run explores more than one document.
func (s *Set) IsMulti() bool {
	return len(s.docs) > 1
}

// All returns the documents in id order.
func (s *Set) All() []*Document {
	out := make([]*Document, len(s.docs))
	copy(out, s.docs)
	return out
}

// TotalLength sums the lengths of all documents.
func (s *Set) TotalLength() int {
	total := 0
	for _, d := range s.docs {
		total += d.Length
	}
	return total
}

// Get returns the document with the given id.
func (s *Set) Get(id int) (*Document, error) {
	if id < 1 || id > len(s.docs) {
		return nil, &RangeError{
			Kind:  ErrDocumentNotFound,
			Field: "documentId",
			Value: id,
			Bound: len(s.docs),
			msg:   fmt.Sprintf("document %d not found: valid document ids are 1-%d", id, len(s.docs)),
		}
	}
	return s.docs[id-1], nil
}

// Input is caller-supplied text: either a single document or an ordered list.
//
// Input decodes from a JSON string or a JSON array of strings, so request
// bodies may carry "documents": "text" or "documents": ["a", "b"].
type Input []string

// Single wraps one text as an Input.
func Single(text string) Input {
	return Input{text}
}

// UnmarshalJSON accepts a string or an array of strings.
func (in *Input) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*in = Input{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("documents must be a string or an array of strings: %w", err)
	}
	*in = Input(many)
	return nil
}

// runeLen counts characters without allocating.
func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
