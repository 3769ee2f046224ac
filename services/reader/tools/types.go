// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package tools implements the operations the reasoning engine can invoke
// during exploration: readContent, searchContent, readFigure and updateMemo.
//
// Every tool validates its parameters and reports input or capability
// failures as a Result with Success=false. A Go error from Execute is
// reserved for programming errors and is converted to a failed Result by
// the Registry, so nothing is thrown across the tool boundary.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"
)

// Sentinel errors for tool dispatch.
var (
	// ErrToolNotFound indicates a call to a tool that is not registered.
	ErrToolNotFound = errors.New("tool not found")

	// ErrInvalidArguments indicates malformed or missing parameters.
	ErrInvalidArguments = errors.New("invalid arguments")
)

// Name identifies one of the exploration tools.
type Name string

const (
	NameReadContent   Name = "readContent"
	NameSearchContent Name = "searchContent"
	NameReadFigure    Name = "readFigure"
	NameUpdateMemo    Name = "updateMemo"
)

// AllNames returns the closed set of tool names.
func AllNames() []Name {
	return []Name{NameReadContent, NameSearchContent, NameReadFigure, NameUpdateMemo}
}

// ToolCategory groups tools by what they touch.
type ToolCategory string

const (
	// CategoryDocument tools read the document set.
	CategoryDocument ToolCategory = "document"

	// CategoryVision tools call the vision capability.
	CategoryVision ToolCategory = "vision"

	// CategoryMemory tools mutate run state.
	CategoryMemory ToolCategory = "memory"
)

// String returns the string representation of the category.
func (c ToolCategory) String() string {
	return string(c)
}

// ParamType defines the type of a tool parameter.
type ParamType string

const (
	ParamTypeString ParamType = "string"
	ParamTypeInt    ParamType = "integer"
)

// ParamDef defines a tool parameter.
type ParamDef struct {
	// Type is the parameter type.
	Type ParamType `json:"type"`

	// Description explains the parameter's purpose to the model.
	Description string `json:"description"`

	// Required indicates if the parameter must be provided.
	Required bool `json:"required"`

	// Default is used when the parameter is omitted.
	Default any `json:"default,omitempty"`

	// Minimum and Maximum bound integer parameters.
	Minimum *int `json:"minimum,omitempty"`
	Maximum *int `json:"maximum,omitempty"`
}

// ToolDefinition describes a tool to the reasoning engine.
type ToolDefinition struct {
	// Name is the tool identifier.
	Name string `json:"name"`

	// Description explains what the tool does and when to use it.
	Description string `json:"description"`

	// Parameters defines the tool's input parameters.
	Parameters map[string]ParamDef `json:"parameters"`

	// Category classifies the tool.
	Category ToolCategory `json:"category"`

	// Priority orders definitions in the prompt (higher first).
	Priority int `json:"priority"`

	// SideEffects indicates the tool mutates run state.
	SideEffects bool `json:"side_effects"`
}

// RequiredParams returns the names of required parameters, sorted.
func (d *ToolDefinition) RequiredParams() []string {
	var required []string
	for name, param := range d.Parameters {
		if param.Required {
			required = append(required, name)
		}
	}
	sort.Strings(required)
	return required
}

// JSONSchema renders the parameters as a JSON Schema object, the shape
// function-calling APIs expect.
func (d *ToolDefinition) JSONSchema() map[string]any {
	props := make(map[string]any, len(d.Parameters))
	for name, p := range d.Parameters {
		prop := map[string]any{
			"type":        string(p.Type),
			"description": p.Description,
		}
		if p.Default != nil {
			prop["default"] = p.Default
		}
		if p.Minimum != nil {
			prop["minimum"] = *p.Minimum
		}
		if p.Maximum != nil {
			prop["maximum"] = *p.Maximum
		}
		props[name] = prop
	}
	required := d.RequiredParams()
	if required == nil {
		required = []string{}
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

// Tool is an operation the reasoning engine can invoke.
//
// Thread Safety: A tool instance is bound to one run and called from that
// run's goroutine only.
type Tool interface {
	// Name returns the tool identifier.
	Name() string

	// Category returns the tool category.
	Category() ToolCategory

	// Definition returns the tool's parameter schema.
	Definition() ToolDefinition

	// Execute runs the tool with decoded JSON parameters.
	Execute(ctx context.Context, params map[string]any) (*Result, error)
}

// Result is the outcome of a tool execution.
type Result struct {
	// Success indicates the tool completed without a validation or
	// capability failure.
	Success bool `json:"success"`

	// Output is the tool-specific payload on success.
	Output any `json:"output,omitempty"`

	// Error describes the failure when Success is false.
	Error string `json:"error,omitempty"`

	// Duration is how long the tool took.
	Duration time.Duration `json:"duration"`
}

// Failure builds a failed result.
func Failure(start time.Time, message string) *Result {
	return &Result{
		Success:  false,
		Error:    message,
		Duration: time.Since(start),
	}
}

// Succeeded builds a successful result.
func Succeeded(start time.Time, output any) *Result {
	return &Result{
		Success:  true,
		Output:   output,
		Duration: time.Since(start),
	}
}

// ModelContent serializes the result as the reasoning engine sees it:
// {"success":true, ...output fields} or {"success":false,"error":"..."}.
func (r *Result) ModelContent() string {
	if !r.Success {
		raw, _ := json.Marshal(map[string]any{"success": false, "error": r.Error})
		return string(raw)
	}

	payload := map[string]any{}
	if r.Output != nil {
		raw, err := json.Marshal(r.Output)
		if err == nil {
			if err := json.Unmarshal(raw, &payload); err != nil {
				payload = map[string]any{"result": json.RawMessage(raw)}
			}
		}
	}
	payload["success"] = true
	raw, _ := json.Marshal(payload)
	return string(raw)
}
