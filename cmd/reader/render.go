// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/AleutianAI/AleutianReader/pkg/ux"
	"github.com/AleutianAI/AleutianReader/services/reader/events"
)

// eventPrinter renders exploration events for a terminal. Its Sink method
// is an events.Sink.
type eventPrinter struct {
	out           *ux.Output
	verbose       bool
	maxIterations int
	steps         int
}

func newEventPrinter(out *ux.Output, verbose bool) *eventPrinter {
	return &eventPrinter{out: out, verbose: verbose}
}

func (p *eventPrinter) Sink(name events.Type, payload any) {
	if p.out.Mode() == ux.ModeMachine {
		line, err := json.Marshal(struct {
			Event events.Type `json:"event"`
			Data  any         `json:"data"`
		}{name, payload})
		if err == nil {
			fmt.Fprintln(p.out.Writer(), string(line))
		}
		return
	}

	switch d := payload.(type) {
	case events.StatusData:
		p.status(d)
	case events.DocumentsPreviewData:
		for _, doc := range d.Previews {
			p.out.Info(fmt.Sprintf("document %d: %d characters, %d landmarks", doc.DocumentID, doc.Length, doc.Landmarks))
			if p.verbose {
				p.out.Muted(doc.Preview)
			}
		}
	case events.ToolCallData:
		p.steps++
		p.out.Line(ux.IconArrow, fmt.Sprintf("%s(%s)", d.Tool, formatArgs(d.Args)))
	case events.ContentReadData:
		suffix := ""
		if d.Truncated {
			suffix = ", truncated"
		}
		p.out.Info(fmt.Sprintf("read document %d [%d:%d] (%d characters%s)",
			d.DocumentID, d.StartPosition, d.EndPosition, d.ContentLength, suffix))
	case events.SearchCompleteData:
		more := ""
		if d.HasMore {
			more = ", more available"
		}
		p.out.Info(fmt.Sprintf("search /%s/ in document %d: %d matches%s", d.SearchPattern, d.DocumentID, d.ResultsFound, more))
	case events.FigureAnalyzedData:
		p.out.Info(fmt.Sprintf("figure %s: %s", d.ImageURL, ux.Truncate(d.Result, 120)))
	case events.MemoUpdatedData:
		p.out.Info(fmt.Sprintf("memo updated (%d characters)", d.MemoLength))
		if p.verbose {
			p.out.Muted(d.MemoContent)
		}
	case events.AnswerData:
		p.out.Box("Answer", d.Answer)
		if d.Usage != nil {
			p.out.Muted(fmt.Sprintf("%d steps, %d tokens (%d in, %d out)",
				d.Steps, d.Usage.TotalTokens, d.Usage.InputTokens, d.Usage.OutputTokens))
		}
	case events.MetadataData:
		p.out.Muted(fmt.Sprintf("processed in %dms: %d tool calls, %d reads, %d figures, %d iterations",
			d.ProcessingTimeMs, d.Stats.ToolCalls, d.Stats.ContentReads, d.Stats.FigureAnalyses, d.Stats.SearchIterations))
	case events.CompleteData:
		p.out.Line(ux.IconSuccess, d.Message)
	case events.ErrorData:
		p.out.ErrorBox("Exploration failed", d.Message)
	}
}

func (p *eventPrinter) status(d events.StatusData) {
	switch d.Stage {
	case events.StageExploring:
		p.maxIterations = d.MaxIterations
		p.out.Line(ux.IconPending, fmt.Sprintf("%s (up to %d steps)", d.Message, d.MaxIterations))
	case events.StageDocumentLoaded:
		p.out.Line(ux.IconPending, fmt.Sprintf("%s: %d documents, %d characters", d.Message, d.DocumentCount, d.TotalLength))
	default:
		p.out.Line(ux.IconPending, d.Message)
	}
}

// progress renders how many tool calls have run against the step cap.
func (p *eventPrinter) progress() string {
	return fmt.Sprintf("%s %d tool calls", ux.ProgressBar(p.steps, p.maxIterations, 20), p.steps)
}

// formatArgs renders tool arguments as sorted key=value pairs.
func formatArgs(args map[string]any) string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		v := fmt.Sprint(args[k])
		if s, ok := args[k].(string); ok {
			v = fmt.Sprintf("%q", ux.Truncate(s, 60))
		}
		parts[i] = k + "=" + v
	}
	return strings.Join(parts, ", ")
}
