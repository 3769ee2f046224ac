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
	"strings"
	"time"
	"unicode/utf8"

	"github.com/AleutianAI/AleutianReader/services/reader/events"
)

// FigureInstruction is sent with every image. It must keep the vision
// model from inventing content the query presumes.
const FigureInstruction = "Answer the question using only what is visibly present in the image. " +
	"If the question assumes something the image does not show (a value, label, axis, trend or entity), " +
	"say plainly that it is not visible instead of guessing. Do not fabricate numbers or text.\n\nQuestion: %s"

// FigureAnalysis is the readFigure output.
type FigureAnalysis struct {
	ImageURL       string `json:"imageUrl"`
	Query          string `json:"query"`
	Analysis       string `json:"analysis"`
	AnalysisLength int    `json:"analysisLength"`
}

// ReadFigureTool asks the vision capability about an image referenced in
// a document.
type ReadFigureTool struct {
	env *Env
}

// NewReadFigureTool creates the readFigure tool.
func NewReadFigureTool(env *Env) *ReadFigureTool {
	return &ReadFigureTool{env: env}
}

// Name implements Tool.
func (t *ReadFigureTool) Name() string { return string(NameReadFigure) }

// Category implements Tool.
func (t *ReadFigureTool) Category() ToolCategory { return CategoryVision }

// Definition implements Tool.
func (t *ReadFigureTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name: string(NameReadFigure),
		Description: "Ask a question about an image referenced in a document. Pass the image URL or data URI " +
			"exactly as it appears in the figure syntax.",
		Parameters: map[string]ParamDef{
			"imageUrl": {
				Type:        ParamTypeString,
				Description: "Image URL or data: URI",
				Required:    true,
			},
			"query": {
				Type:        ParamTypeString,
				Description: "What to look for in the image",
				Required:    true,
			},
		},
		Category: CategoryVision,
		Priority: 50,
	}
}

// Execute implements Tool. Vision failures come back as failed results so
// exploration can continue.
func (t *ReadFigureTool) Execute(ctx context.Context, params map[string]any) (*Result, error) {
	start := time.Now()
	t.env.begin(NameReadFigure, params)
	t.env.Session.Stats.FigureAnalyses++

	if err := ValidateParams(t.Definition(), params); err != nil {
		return Failure(start, err.Error()), nil
	}

	imageURL := strings.TrimSpace(getStringParam(params, "imageUrl", ""))
	query := strings.TrimSpace(getStringParam(params, "query", ""))
	if imageURL == "" {
		return Failure(start, "imageUrl must not be empty"), nil
	}
	if t.env.Vision == nil {
		return Failure(start, "figure analysis failed: no vision model is configured"), nil
	}

	analysis, err := t.env.Vision.Analyze(ctx, fmt.Sprintf(FigureInstruction, query), imageURL)
	if err != nil {
		return Failure(start, fmt.Sprintf("figure analysis failed: %v", err)), nil
	}

	out := FigureAnalysis{
		ImageURL:       imageURL,
		Query:          query,
		Analysis:       analysis,
		AnalysisLength: utf8.RuneCountInString(analysis),
	}
	t.env.emit(events.TypeFigureAnalyzed, events.FigureAnalyzedData{
		ImageURL:       out.ImageURL,
		Query:          out.Query,
		Result:         out.Analysis,
		AnalysisLength: out.AnalysisLength,
	})
	return Succeeded(start, out), nil
}
