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
	"sort"
	"strings"
	"sync"
	"time"
)

// Registry is the dispatch table of tools available to one run.
//
// Thread Safety: Safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	byName     map[string]Tool
	byCategory map[ToolCategory][]Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName:     make(map[string]Tool),
		byCategory: make(map[ToolCategory][]Tool),
	}
}

// Register adds or replaces a tool.
func (r *Registry) Register(tool Tool) {
	if tool == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	name := tool.Name()
	if existing, ok := r.byName[name]; ok {
		r.removeFromCategory(existing.Category(), name)
	}
	r.byName[name] = tool
	r.byCategory[tool.Category()] = append(r.byCategory[tool.Category()], tool)
}

func (r *Registry) removeFromCategory(category ToolCategory, name string) {
	tools := r.byCategory[category]
	for i, t := range tools {
		if t.Name() == name {
			r.byCategory[category] = append(tools[:i], tools[i+1:]...)
			return
		}
	}
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, ok := r.byName[name]
	return tool, ok
}

// GetByCategory returns the tools in a category.
func (r *Registry) GetByCategory(category ToolCategory) []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Tool, len(r.byCategory[category]))
	copy(result, r.byCategory[category])
	return result
}

// Names returns registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Definitions returns every tool definition, ordered by priority
// (highest first) then name.
func (r *Registry) Definitions() []ToolDefinition {
	r.mu.RLock()
	defs := make([]ToolDefinition, 0, len(r.byName))
	for _, tool := range r.byName {
		defs = append(defs, tool.Definition())
	}
	r.mu.RUnlock()

	sort.Slice(defs, func(i, j int) bool {
		if defs[i].Priority != defs[j].Priority {
			return defs[i].Priority > defs[j].Priority
		}
		return defs[i].Name < defs[j].Name
	})
	return defs
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byName)
}

// Execute dispatches one tool call.
//
// Description:
//
//	Resolves the tool, decodes the JSON arguments and runs it. Unknown
//	tools, malformed arguments and Go errors returned by the tool all
//	become failed Results, never errors.
//
// Inputs:
//
//	ctx - Context forwarded to the tool.
//	name - Tool name as emitted by the reasoning engine.
//	rawArgs - JSON object of arguments.
//
// Outputs:
//
//	*Result - Never nil.
func (r *Registry) Execute(ctx context.Context, name, rawArgs string) *Result {
	start := time.Now()

	tool, ok := r.Get(name)
	if !ok {
		return Failure(start, fmt.Sprintf("%v: %q (available tools: %s)",
			ErrToolNotFound, name, strings.Join(r.Names(), ", ")))
	}

	params, err := ParseArguments(rawArgs)
	if err != nil {
		return Failure(start, fmt.Sprintf("%s: %v", name, err))
	}

	result, err := tool.Execute(ctx, params)
	if err != nil {
		return Failure(start, fmt.Sprintf("%s failed: %v", name, err))
	}
	if result == nil {
		return Failure(start, fmt.Sprintf("%s returned no result", name))
	}
	return result
}
