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
	"time"

	"github.com/AleutianAI/AleutianReader/services/reader/document"
	"github.com/AleutianAI/AleutianReader/services/reader/events"
)

// SearchContentTool runs a regular expression over one document.
type SearchContentTool struct {
	env *Env
}

// NewSearchContentTool creates the searchContent tool.
func NewSearchContentTool(env *Env) *SearchContentTool {
	return &SearchContentTool{env: env}
}

// Name implements Tool.
func (t *SearchContentTool) Name() string { return string(NameSearchContent) }

// Category implements Tool.
func (t *SearchContentTool) Category() ToolCategory { return CategoryDocument }

// Definition implements Tool.
func (t *SearchContentTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name: string(NameSearchContent),
		Description: "Search a document with a regular expression. Returns each match's character position " +
			"with 50 characters of context on both sides, and whether more matches exist past the limit.",
		Parameters: map[string]ParamDef{
			"documentId": {
				Type:        ParamTypeInt,
				Description: "1-based document id",
				Default:     1,
			},
			"pattern": {
				Type:        ParamTypeString,
				Description: "Regular expression to search for",
				Required:    true,
			},
			"flags": {
				Type:        ParamTypeString,
				Description: "Regex flags: g (global), i (case-insensitive), m (multiline), s (dot matches newline)",
				Default:     document.DefaultSearchFlags,
			},
			"maxResults": {
				Type:        ParamTypeInt,
				Description: "Maximum matches to return",
				Default:     document.DefaultMaxResults,
				Minimum:     intPtr(1),
				Maximum:     intPtr(document.MaxSearchResults),
			},
		},
		Category: CategoryDocument,
		Priority: 90,
	}
}

// Execute implements Tool.
func (t *SearchContentTool) Execute(_ context.Context, params map[string]any) (*Result, error) {
	start := time.Now()
	t.env.begin(NameSearchContent, params)

	if err := ValidateParams(t.Definition(), params); err != nil {
		return Failure(start, err.Error()), nil
	}

	docID := getIntParam(params, "documentId", 1)
	pattern := getStringParam(params, "pattern", "")

	res, err := t.env.Session.Documents.Search(docID, pattern, document.SearchOptions{
		Flags:      getStringParam(params, "flags", ""),
		MaxResults: getIntParam(params, "maxResults", 0),
		Timeout:    t.env.SearchTimeout,
	})
	if err != nil {
		return Failure(start, err.Error()), nil
	}

	t.env.emit(events.TypeSearchComplete, events.SearchCompleteData{
		DocumentID:    res.DocumentID,
		SearchPattern: res.Pattern,
		ResultsFound:  res.ResultsFound,
		HasMore:       res.HasMore,
	})
	return Succeeded(start, res), nil
}
