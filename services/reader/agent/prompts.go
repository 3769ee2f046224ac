// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package agent

import (
	"bytes"
	"fmt"
	"slices"
	"strings"
	"text/template"

	"github.com/AleutianAI/AleutianReader/services/reader/preview"
	"github.com/AleutianAI/AleutianReader/services/reader/tools"
)

// =============================================================================
// Prompt Builder
// =============================================================================

// PromptBuilder renders the bootstrap system prompt.
//
// Thread Safety: Safe for concurrent use.
type PromptBuilder struct {
	tmpl *template.Template
}

// PromptData is the template input.
type PromptData struct {
	Question      string
	Previews      []*preview.Preview
	Tools         []tools.ToolDefinition
	MultiDocument bool
	MaxIterations int
}

const systemPromptTemplate = `You are a document exploration agent. Answer the user's question using only what you find in the documents below. You cannot see the documents in full: read, search and inspect figures with the tools until you have enough evidence.

## Documents
{{- range .Previews}}

### Document {{.DocumentID}} ({{.Length}} characters, {{.Landmarks}} landmarks)
{{if .Text}}{{.Text}}{{else}}(no headings, figures or tables detected){{end}}
{{- end}}

## Tools
{{- range .Tools}}
- {{.Name}}({{params .}}): {{.Description}}
{{- end}}

## Instructions
1. Positions are character offsets. Use the [start-end] labels in the previews to decide where to read.
{{- if .MultiDocument}}
2. Every read and search names a documentId. Compare documents explicitly when the question spans several.
{{- else}}
2. There is one document; its documentId is 1.
{{- end}}
3. Prefer searchContent to locate terms before reading large ranges. A single read returns at most 10000 characters.
4. Older messages are dropped as the conversation grows. Record findings and your plan with updateMemo; the memo is shown to you on every turn.
5. You have at most {{.MaxIterations}} turns. When you can answer, reply with the answer text and no tool calls.
6. If the documents do not contain the answer, say so. Do not guess.

## Question
{{.Question}}`

// NewPromptBuilder parses the system prompt template.
func NewPromptBuilder() (*PromptBuilder, error) {
	funcMap := template.FuncMap{
		"params": paramList,
	}
	tmpl, err := template.New("system").Funcs(funcMap).Parse(systemPromptTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse system prompt: %w", err)
	}
	return &PromptBuilder{tmpl: tmpl}, nil
}

// Build renders the system prompt.
func (b *PromptBuilder) Build(data PromptData) (string, error) {
	var buf bytes.Buffer
	if err := b.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render system prompt: %w", err)
	}
	return buf.String(), nil
}

// paramList renders "name, name?" with optional parameters marked.
func paramList(def tools.ToolDefinition) string {
	required := make(map[string]bool)
	for _, name := range def.RequiredParams() {
		required[name] = true
	}
	names := make([]string, 0, len(def.Parameters))
	for name := range def.Parameters {
		names = append(names, name)
	}
	slices.Sort(names)

	parts := make([]string, len(names))
	for i, name := range names {
		if required[name] {
			parts[i] = name
		} else {
			parts[i] = name + "?"
		}
	}
	return strings.Join(parts, ", ")
}

// memoMessage wraps the memo for re-injection.
func memoMessage(memo string) string {
	return "[Your memo from earlier turns]\n" + memo
}
