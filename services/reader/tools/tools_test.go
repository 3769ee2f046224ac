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
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/AleutianAI/AleutianReader/services/reader/document"
	"github.com/AleutianAI/AleutianReader/services/reader/events"
	"github.com/AleutianAI/AleutianReader/services/reader/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeVision struct {
	answer      string
	err         error
	instruction string
	imageRef    string
}

func (f *fakeVision) Analyze(_ context.Context, instruction, imageRef string) (string, error) {
	f.instruction = instruction
	f.imageRef = imageRef
	return f.answer, f.err
}

func newTestEnv(t *testing.T, texts ...string) (*Env, *events.Recorder) {
	t.Helper()
	docs, err := document.NewSet(document.Input(texts))
	require.NoError(t, err)
	rec := events.NewRecorder()
	env := &Env{
		Session: session.New("question", docs),
		Emitter: events.NewEmitter(events.WithSink(rec.Sink())),
	}
	return env, rec
}

func decode(t *testing.T, r *Result) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(r.ModelContent()), &m))
	return m
}

// =============================================================================
// Registry
// =============================================================================

func TestNewRunRegistry_HasAllTools(t *testing.T) {
	env, _ := newTestEnv(t, "abc")
	reg := NewRunRegistry(env)

	assert.Equal(t, 4, reg.Len())
	for _, name := range AllNames() {
		_, ok := reg.Get(string(name))
		assert.True(t, ok, name)
	}

	defs := reg.Definitions()
	require.Len(t, defs, 4)
	assert.Equal(t, "readContent", defs[0].Name)
	assert.Equal(t, "updateMemo", defs[3].Name)
	assert.Len(t, reg.GetByCategory(CategoryDocument), 2)
}

func TestRegistry_UnknownTool(t *testing.T) {
	env, rec := newTestEnv(t, "abc")
	reg := NewRunRegistry(env)

	res := reg.Execute(context.Background(), "deleteEverything", `{}`)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "deleteEverything")
	assert.Contains(t, res.Error, "readContent")
	assert.Equal(t, 0, env.Session.Stats.ToolCalls)
	assert.Empty(t, rec.Events())
}

func TestRegistry_MalformedArguments(t *testing.T) {
	env, _ := newTestEnv(t, "abc")
	reg := NewRunRegistry(env)

	res := reg.Execute(context.Background(), "readContent", `{"start": 0,`)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "JSON object")
}

func TestToolDefinition_JSONSchema(t *testing.T) {
	def := NewSearchContentTool(nil).Definition()
	schema := def.JSONSchema()

	assert.Equal(t, "object", schema["type"])
	assert.Equal(t, []string{"pattern"}, schema["required"])
	props := schema["properties"].(map[string]any)
	flags := props["flags"].(map[string]any)
	assert.Equal(t, "gi", flags["default"])
	maxResults := props["maxResults"].(map[string]any)
	assert.Equal(t, 1, maxResults["minimum"])
	assert.Equal(t, document.MaxSearchResults, maxResults["maximum"])
}

func TestValidateParams(t *testing.T) {
	def := NewReadContentTool(nil).Definition()

	tests := []struct {
		name    string
		params  map[string]any
		wantErr string
	}{
		{"ok", map[string]any{"start": 0.0, "end": 10.0}, ""},
		{"numeric string", map[string]any{"start": "5", "end": 10.0}, ""},
		{"missing end", map[string]any{"start": 0.0}, `missing required parameter "end"`},
		{"fractional", map[string]any{"start": 1.5, "end": 10.0}, "must be an integer"},
		{"wrong type", map[string]any{"start": true, "end": 10.0}, "must be an integer"},
		{"beyond int range", map[string]any{"start": 1e20, "end": 10.0}, "out of range"},
		{"negative beyond int range", map[string]any{"start": -1e20, "end": 10.0}, "out of range"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateParams(def, tt.params)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidArguments))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

// =============================================================================
// readContent
// =============================================================================

func TestReadContent_Success(t *testing.T) {
	env, rec := newTestEnv(t, strings.Repeat("a", 500))
	reg := NewRunRegistry(env)

	res := reg.Execute(context.Background(), "readContent", `{"documentId":1,"start":0,"end":500}`)
	require.True(t, res.Success, res.Error)

	out := decode(t, res)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, float64(500), out["contentLength"])
	assert.Equal(t, false, out["hasMoreBefore"])
	assert.Equal(t, false, out["hasMoreAfter"])

	assert.Equal(t, []events.Type{events.TypeToolCall, events.TypeContentRead}, rec.Names())
	read := rec.ByType(events.TypeContentRead)[0].(events.ContentReadData)
	assert.Equal(t, 0, read.StartPosition)
	assert.Equal(t, 500, read.EndPosition)
	assert.Equal(t, 1, env.Session.Stats.ToolCalls)
	assert.Equal(t, 1, env.Session.Stats.ContentReads)
}

func TestReadContent_DefaultsToFirstDocument(t *testing.T) {
	env, _ := newTestEnv(t, "hello world", "other")
	res := runTool(t, NewReadContentTool(env), map[string]any{"start": 0.0, "end": 5.0})
	require.True(t, res.Success)
	assert.Equal(t, "hello", res.Output.(*document.ReadResult).Content)
}

func TestReadContent_InvalidRangeCountsAttempt(t *testing.T) {
	env, rec := newTestEnv(t, strings.Repeat("b", 100))
	reg := NewRunRegistry(env)

	res := reg.Execute(context.Background(), "readContent", `{"start":50,"end":50}`)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "start position 50 must be less than end position 50")

	out := decode(t, res)
	assert.Equal(t, false, out["success"])
	assert.Equal(t, 1, env.Session.Stats.ContentReads)
	assert.Equal(t, 1, env.Session.Stats.ToolCalls)
	assert.Equal(t, []events.Type{events.TypeToolCall}, rec.Names())
}

func TestReadContent_UnknownDocument(t *testing.T) {
	env, _ := newTestEnv(t, "one", "two")
	reg := NewRunRegistry(env)

	res := reg.Execute(context.Background(), "readContent", `{"documentId":3,"start":0,"end":1}`)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "valid document ids are 1-2")
}

// =============================================================================
// searchContent
// =============================================================================

func TestSearchContent_EmitsSearchComplete(t *testing.T) {
	env, rec := newTestEnv(t, "Revenue grew. revenue fell. REVENUE flat.")
	reg := NewRunRegistry(env)

	res := reg.Execute(context.Background(), "searchContent", `{"pattern":"revenue","maxResults":2}`)
	require.True(t, res.Success, res.Error)

	sr := res.Output.(*document.SearchResult)
	assert.Equal(t, 2, sr.ResultsFound)
	assert.True(t, sr.HasMore)

	assert.Equal(t, []events.Type{events.TypeToolCall, events.TypeSearchComplete}, rec.Names())
	done := rec.ByType(events.TypeSearchComplete)[0].(events.SearchCompleteData)
	assert.Equal(t, "revenue", done.SearchPattern)
	assert.Equal(t, 2, done.ResultsFound)
	assert.Equal(t, 1, env.Session.Stats.ToolCalls)
	assert.Equal(t, 0, env.Session.Stats.ContentReads)
}

func TestSearchContent_OversizedMaxResultsIsStructured(t *testing.T) {
	env, rec := newTestEnv(t, "foo foo foo")
	reg := NewRunRegistry(env)

	res := reg.Execute(context.Background(), "searchContent", `{"pattern":"foo","maxResults":1000000000000}`)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "must be at most 100")
	assert.Equal(t, 0, rec.Count(events.TypeSearchComplete))

	res = reg.Execute(context.Background(), "searchContent", `{"pattern":"foo","maxResults":100}`)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, 3, res.Output.(*document.SearchResult).ResultsFound)
}

func TestSearchContent_BadPatternIsStructured(t *testing.T) {
	env, rec := newTestEnv(t, "text")
	reg := NewRunRegistry(env)

	res := reg.Execute(context.Background(), "searchContent", `{"pattern":"(unclosed"}`)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "invalid search pattern")
	assert.Equal(t, 0, rec.Count(events.TypeSearchComplete))
}

// =============================================================================
// readFigure
// =============================================================================

func TestReadFigure_Success(t *testing.T) {
	env, rec := newTestEnv(t, "![chart](http://x/c.png)")
	vision := &fakeVision{answer: "A bar chart with three bars."}
	env.Vision = vision
	reg := NewRunRegistry(env)

	res := reg.Execute(context.Background(), "readFigure", `{"imageUrl":"http://x/c.png","query":"how many bars?"}`)
	require.True(t, res.Success, res.Error)

	assert.Equal(t, "http://x/c.png", vision.imageRef)
	assert.Contains(t, vision.instruction, "how many bars?")
	assert.Contains(t, vision.instruction, "Do not fabricate")

	fig := rec.ByType(events.TypeFigureAnalyzed)[0].(events.FigureAnalyzedData)
	assert.Equal(t, "A bar chart with three bars.", fig.Result)
	assert.Equal(t, 28, fig.AnalysisLength)
	assert.Equal(t, 1, env.Session.Stats.FigureAnalyses)
}

func TestReadFigure_VisionFailureIsStructured(t *testing.T) {
	env, rec := newTestEnv(t, "doc")
	env.Vision = &fakeVision{err: errors.New("model overloaded")}
	reg := NewRunRegistry(env)

	res := reg.Execute(context.Background(), "readFigure", `{"imageUrl":"http://x/a.png","query":"q"}`)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "model overloaded")
	assert.Equal(t, 1, env.Session.Stats.FigureAnalyses)
	assert.Equal(t, 0, rec.Count(events.TypeFigureAnalyzed))

	// The next call still works.
	res = reg.Execute(context.Background(), "readContent", `{"start":0,"end":3}`)
	assert.True(t, res.Success)
}

func TestReadFigure_NoVisionConfigured(t *testing.T) {
	env, _ := newTestEnv(t, "doc")
	res := runTool(t, NewReadFigureTool(env), map[string]any{"imageUrl": "http://x/a.png", "query": "q"})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "no vision model")
}

// =============================================================================
// updateMemo
// =============================================================================

func TestUpdateMemo_Overwrites(t *testing.T) {
	env, rec := newTestEnv(t, "doc")
	reg := NewRunRegistry(env)

	res := reg.Execute(context.Background(), "updateMemo", `{"memo":"A"}`)
	require.True(t, res.Success)
	res = reg.Execute(context.Background(), "updateMemo", `{"memo":"Bé"}`)
	require.True(t, res.Success)

	assert.Equal(t, "Bé", env.Session.Memo.Text())
	assert.Equal(t, 2, res.Output.(MemoUpdate).MemoLength)

	updates := rec.ByType(events.TypeMemoUpdated)
	require.Len(t, updates, 2)
	assert.Equal(t, "Bé", updates[1].(events.MemoUpdatedData).MemoContent)
	assert.Equal(t, 2, env.Session.Stats.ToolCalls)
}

func TestUpdateMemo_MissingText(t *testing.T) {
	env, _ := newTestEnv(t, "doc")
	env.Session.Memo.Set("keep")

	res := runTool(t, NewUpdateMemoTool(env), map[string]any{})
	assert.False(t, res.Success)
	assert.Equal(t, "keep", env.Session.Memo.Text())
}

// =============================================================================
// Result serialization
// =============================================================================

func TestResult_ModelContent(t *testing.T) {
	ok := &Result{Success: true, Output: MemoUpdate{MemoLength: 3}}
	assert.JSONEq(t, `{"success":true,"memoLength":3}`, ok.ModelContent())

	failed := &Result{Success: false, Error: "bad"}
	assert.JSONEq(t, `{"success":false,"error":"bad"}`, failed.ModelContent())

	scalar := &Result{Success: true, Output: "plain"}
	assert.JSONEq(t, `{"success":true,"result":"plain"}`, scalar.ModelContent())
}

// runTool executes a tool directly, bypassing the registry.
func runTool(tb testing.TB, tool Tool, params map[string]any) *Result {
	tb.Helper()
	res, err := tool.Execute(context.Background(), params)
	require.NoError(tb, err)
	require.NotNil(tb, res)
	return res
}
