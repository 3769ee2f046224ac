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

import "errors"

// Sentinel errors for document operations.
var (
	// ErrNoDocuments indicates a run was started without any document text.
	ErrNoDocuments = errors.New("no documents supplied")

	// ErrDocumentNotFound indicates a document id outside the run's set.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrInvalidRange indicates a read whose offsets violate the range contract.
	ErrInvalidRange = errors.New("invalid range")

	// ErrInvalidPattern indicates a search pattern that failed to compile or run.
	ErrInvalidPattern = errors.New("invalid search pattern")

	// ErrInvalidFlags indicates unsupported search flag letters.
	ErrInvalidFlags = errors.New("invalid search flags")
)

// RangeError describes a rejected read or lookup.
//
// The message echoes the offending value and the valid bound so the
// exploring policy can correct its next request without seeing the source.
type RangeError struct {
	// Kind is ErrDocumentNotFound or ErrInvalidRange.
	Kind error

	// Field names the offending parameter.
	Field string

	// Value is the rejected value.
	Value int

	// Bound is the limit the value was checked against.
	Bound int

	msg string
}

func (e *RangeError) Error() string {
	return e.msg
}

func (e *RangeError) Unwrap() error {
	return e.Kind
}
