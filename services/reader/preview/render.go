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
	"fmt"
	"strings"
)

// Separator joins rendered spans.
const Separator = "\n\n---\n\n"

// Ellipsis marks text elided before or after a span.
const Ellipsis = "..."

// Render formats spans as position-labelled excerpts of text.
//
// Each block is a header line "[<type> @ <start>-<end>]" followed by the
// excerpt, prefixed with Ellipsis when the span starts after offset 0 and
// suffixed with Ellipsis when it ends before the document does.
func Render(text []rune, spans []Span) string {
	if len(text) == 0 || len(spans) == 0 {
		return ""
	}
	blocks := make([]string, 0, len(spans))
	for _, s := range spans {
		var sb strings.Builder
		fmt.Fprintf(&sb, "[%s @ %d-%d]\n", s.Type, s.Start, s.End)
		if s.Start > 0 {
			sb.WriteString(Ellipsis)
		}
		sb.WriteString(string(text[s.Start:s.End]))
		if s.End < len(text) {
			sb.WriteString(Ellipsis)
		}
		blocks = append(blocks, sb.String())
	}
	return strings.Join(blocks, Separator)
}
