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

	"github.com/AleutianAI/AleutianReader/services/reader/events"
)

// MemoUpdate is the updateMemo output.
type MemoUpdate struct {
	MemoLength int `json:"memoLength"`
}

// UpdateMemoTool overwrites the run's memo.
type UpdateMemoTool struct {
	env *Env
}

// NewUpdateMemoTool creates the updateMemo tool.
func NewUpdateMemoTool(env *Env) *UpdateMemoTool {
	return &UpdateMemoTool{env: env}
}

// Name implements Tool.
func (t *UpdateMemoTool) Name() string { return string(NameUpdateMemo) }

// Category implements Tool.
func (t *UpdateMemoTool) Category() ToolCategory { return CategoryMemory }

// Definition implements Tool.
func (t *UpdateMemoTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name: string(NameUpdateMemo),
		Description: "Replace your working memo with new text. Older conversation turns are dropped on long " +
			"explorations; the memo is always shown to you, so keep findings, offsets and your plan in it. " +
			"The new text replaces the old memo entirely.",
		Parameters: map[string]ParamDef{
			"memo": {
				Type:        ParamTypeString,
				Description: "Full memo text",
				Required:    true,
			},
		},
		Category:    CategoryMemory,
		Priority:    10,
		SideEffects: true,
	}
}

// Execute implements Tool.
func (t *UpdateMemoTool) Execute(_ context.Context, params map[string]any) (*Result, error) {
	start := time.Now()
	t.env.begin(NameUpdateMemo, params)

	if err := ValidateParams(t.Definition(), params); err != nil {
		return Failure(start, err.Error()), nil
	}

	memo := t.env.Session.Memo
	length := memo.Set(getStringParam(params, "memo", ""))

	t.env.emit(events.TypeMemoUpdated, events.MemoUpdatedData{
		MemoLength:  length,
		MemoContent: memo.Text(),
	})
	return Succeeded(start, MemoUpdate{MemoLength: length}), nil
}
