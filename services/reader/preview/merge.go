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

// Span is a padded, merged region around one or more landmarks.
type Span struct {
	// Type is the kind of the first landmark that contributed to the span.
	Type  Kind `json:"type"`
	Start int  `json:"start"`
	End   int  `json:"end"`
}

// Pad expands each landmark by radius characters on both sides, clipped to
// [0, length]. Input order is preserved.
func Pad(positions []KeyPosition, radius, length int) []Span {
	spans := make([]Span, len(positions))
	for i, p := range positions {
		spans[i] = Span{
			Type:  p.Type,
			Start: max(0, p.Start-radius),
			End:   min(length, p.End+radius),
		}
	}
	return spans
}

// Merge folds sorted spans in a single greedy pass.
//
// Each span is compared only with the most recently emitted merged span:
// it extends that span when it starts at or before its end, otherwise it
// opens a new one. An earlier merged span is never revisited.
func Merge(spans []Span) []Span {
	if len(spans) == 0 {
		return nil
	}
	merged := []Span{spans[0]}
	for _, next := range spans[1:] {
		last := &merged[len(merged)-1]
		if next.Start <= last.End {
			last.End = max(last.End, next.End)
			continue
		}
		merged = append(merged, next)
	}
	return merged
}
