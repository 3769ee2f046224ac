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

import (
	"fmt"
	"time"

	"github.com/dlclark/regexp2"
)

const (
	// DefaultSearchFlags is global + case-insensitive.
	DefaultSearchFlags = "gi"

	// DefaultMaxResults caps matches returned by one search.
	DefaultMaxResults = 5

	// MaxSearchResults is the largest result limit a search accepts.
	MaxSearchResults = 100

	// SearchContextRadius is the number of characters of context kept on
	// each side of a match.
	SearchContextRadius = 50

	// DefaultMatchTimeout bounds a single match attempt.
	DefaultMatchTimeout = 2 * time.Second
)

// SearchOptions tunes Search. Zero values select the defaults.
type SearchOptions struct {
	Flags      string
	MaxResults int
	Timeout    time.Duration
}

// Match is one search hit.
type Match struct {
	// Position is the character offset of the match start.
	Position int    `json:"position"`
	Length   int    `json:"length"`
	Text     string `json:"match"`

	// Context is the surrounding text, SearchContextRadius characters on
	// each side, clipped to the document.
	Context      string `json:"context"`
	ContextStart int    `json:"contextStart"`
	ContextEnd   int    `json:"contextEnd"`
}

// SearchResult is the outcome of a successful Search.
type SearchResult struct {
	DocumentID   int     `json:"documentId"`
	Pattern      string  `json:"pattern"`
	Flags        string  `json:"flags"`
	Matches      []Match `json:"matches"`
	ResultsFound int     `json:"resultsFound"`

	// HasMore reports whether at least one match exists past the cap.
	HasMore bool `json:"hasMore"`
}

// CompilePattern compiles pattern with JavaScript-style flag letters.
//
// Description:
//
//	Accepts g (implicit, every search is global), i (case-insensitive),
//	m (multiline anchors) and s (dot matches newline). Any other letter is
//	rejected with ErrInvalidFlags. Compile errors wrap ErrInvalidPattern
//	and carry the regex engine's message.
func CompilePattern(pattern, flags string, timeout time.Duration) (*regexp2.Regexp, error) {
	opts := regexp2.None
	for _, f := range flags {
		switch f {
		case 'g':
		case 'i':
			opts |= regexp2.IgnoreCase
		case 'm':
			opts |= regexp2.Multiline
		case 's':
			opts |= regexp2.Singleline
		default:
			return nil, fmt.Errorf("%w: unsupported flag %q in %q (supported: g, i, m, s)", ErrInvalidFlags, f, flags)
		}
	}

	re, err := regexp2.Compile(pattern, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPattern, err)
	}
	if timeout <= 0 {
		timeout = DefaultMatchTimeout
	}
	re.MatchTimeout = timeout
	return re, nil
}

// Search scans document id for pattern from offset 0.
//
// Description:
//
//	Collects matches until MaxResults is reached. A zero-width match
//	advances the cursor by one character so the scan always terminates.
//	After the cap, one further match is attempted only to set HasMore.
//
// Inputs:
//
//	id - 1-based document id.
//	pattern - Regular expression source.
//	opts - Flags, result cap and per-match timeout.
//
// Outputs:
//
//	*SearchResult - Matches with context.
//	error - *RangeError for an unknown id, ErrInvalidFlags, or
//	ErrInvalidPattern for compile errors and match timeouts.
func (s *Set) Search(id int, pattern string, opts SearchOptions) (*SearchResult, error) {
	doc, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if opts.Flags == "" {
		opts.Flags = DefaultSearchFlags
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = DefaultMaxResults
	}
	opts.MaxResults = min(opts.MaxResults, MaxSearchResults)

	re, err := CompilePattern(pattern, opts.Flags, opts.Timeout)
	if err != nil {
		return nil, err
	}

	runes := doc.runes
	matches := make([]Match, 0, min(opts.MaxResults, 16))
	cursor := 0
	for len(matches) < opts.MaxResults && cursor <= len(runes) {
		m, err := re.FindRunesMatchStartingAt(runes, cursor)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPattern, err)
		}
		if m == nil {
			break
		}
		matches = append(matches, newMatch(runes, m.Index, m.Length))
		cursor = advance(m.Index, m.Length)
	}

	hasMore := false
	if len(matches) == opts.MaxResults && cursor <= len(runes) {
		m, err := re.FindRunesMatchStartingAt(runes, cursor)
		hasMore = err == nil && m != nil
	}

	return &SearchResult{
		DocumentID:   id,
		Pattern:      pattern,
		Flags:        opts.Flags,
		Matches:      matches,
		ResultsFound: len(matches),
		HasMore:      hasMore,
	}, nil
}

// advance returns the next scan position after a match.
func advance(index, length int) int {
	if length == 0 {
		return index + 1
	}
	return index + length
}

func newMatch(runes []rune, index, length int) Match {
	ctxStart := max(0, index-SearchContextRadius)
	ctxEnd := min(len(runes), index+length+SearchContextRadius)
	return Match{
		Position:     index,
		Length:       length,
		Text:         string(runes[index : index+length]),
		Context:      string(runes[ctxStart:ctxEnd]),
		ContextStart: ctxStart,
		ContextEnd:   ctxEnd,
	}
}
