// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/AleutianAI/AleutianReader/services/reader/document"
	"github.com/AleutianAI/AleutianReader/services/reader/events"
)

// ReadContentTool returns a character range of one document.
type ReadContentTool struct {
	env *Env
}

// NewReadContentTool creates the readContent tool.
func NewReadContentTool(env *Env) *ReadContentTool {
	return &ReadContentTool{env: env}
}

// Name implements Tool.
func (t *ReadContentTool) Name() string { return string(NameReadContent) }

// Category implements Tool.
func (t *ReadContentTool) Category() ToolCategory { return CategoryDocument }

// Definition implements Tool.
func (t *ReadContentTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name: string(NameReadContent),
		Description: fmt.Sprintf("Read characters [start, end) of a document. Offsets are character positions "+
			"taken from the preview headers or search results. Ranges wider than %d characters are truncated "+
			"and tell you where to continue.", document.MaxReadSpan),
		Parameters: map[string]ParamDef{
			"documentId": {
				Type:        ParamTypeInt,
				Description: "1-based document id",
				Default:     1,
			},
			"start": {
				Type:        ParamTypeInt,
				Description: "First character offset, inclusive",
				Required:    true,
			},
			"end": {
				Type:        ParamTypeInt,
				Description: "Last character offset, exclusive; must be greater than start",
				Required:    true,
			},
		},
		Category: CategoryDocument,
		Priority: 100,
	}
}

// Execute implements Tool.
//
// content_reads is incremented for every attempt, including rejected
// ranges.
func (t *ReadContentTool) Execute(_ context.Context, params map[string]any) (*Result, error) {
	start := time.Now()
	t.env.begin(NameReadContent, params)
	t.env.Session.Stats.ContentReads++

	if err := ValidateParams(t.Definition(), params); err != nil {
		return Failure(start, err.Error()), nil
	}

	docID := getIntParam(params, "documentId", 1)
	from := getIntParam(params, "start", 0)
	to := getIntParam(params, "end", 0)

	res, err := t.env.Session.Documents.Read(docID, from, to)
	if err != nil {
		return Failure(start, err.Error()), nil
	}

	t.env.emit(events.TypeContentRead, events.ContentReadData{
		DocumentID:    res.DocumentID,
		StartPosition: res.Start,
		EndPosition:   res.EffectiveEnd,
		ContentLength: res.ContentLength,
		Truncated:     res.Truncated,
	})
	return Succeeded(start, res), nil
}
