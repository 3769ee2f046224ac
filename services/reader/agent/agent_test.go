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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianReader/services/reader/archive"
	"github.com/AleutianAI/AleutianReader/services/reader/document"
	"github.com/AleutianAI/AleutianReader/services/reader/events"
	"github.com/AleutianAI/AleutianReader/services/reader/llm"
)

// titledDocument returns a 500-character document with a heading.
func titledDocument() string {
	head := "# Alpha Report\n\n"
	return head + strings.Repeat("x", 500-len(head))
}

func newOrchestrator(t *testing.T, client llm.Client, opts ...Option) *Orchestrator {
	t.Helper()
	o, err := New(client, opts...)
	require.NoError(t, err)
	return o
}

// assertSubsequence checks that want appears in got in order.
func assertSubsequence(t *testing.T, got, want []events.Type) {
	t.Helper()
	i := 0
	for _, name := range got {
		if i < len(want) && name == want[i] {
			i++
		}
	}
	assert.Equal(t, len(want), i, "events %v do not contain %v in order", got, want)
}

func alwaysToolCall(content string) func(*llm.Request) (*llm.Response, error) {
	n := 0
	return func(*llm.Request) (*llm.Response, error) {
		n++
		return &llm.Response{
			Content:    content,
			StopReason: llm.StopToolUse,
			ToolCalls: []llm.ToolCall{{
				ID:        fmt.Sprintf("call_%d", n),
				Name:      "searchContent",
				Arguments: `{"pattern":"x"}`,
			}},
		}, nil
	}
}

func TestNew_RequiresClient(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrNoClient)
}

func TestRun_SingleDocumentScenario(t *testing.T) {
	client := llm.NewMockClient().
		QueueToolCall("readContent", map[string]any{"documentId": 1, "start": 0, "end": 500}).
		QueueFinalResponse("The title is Alpha Report")
	rec := events.NewRecorder()

	res, err := newOrchestrator(t, client).Run(context.Background(), Request{
		Question:  "what is the title",
		Documents: document.Single(titledDocument()),
	}, rec.Sink())
	require.NoError(t, err)

	assert.Equal(t, StateAnswered, res.State)
	assert.Equal(t, "The title is Alpha Report", res.Answer)
	assert.Equal(t, 2, res.Steps)
	assert.Equal(t, 1, res.Stats.ContentReads)
	assert.Equal(t, 1, res.Stats.ToolCalls)
	assert.Equal(t, 2, res.Stats.SearchIterations)

	assertSubsequence(t, rec.Names(), []events.Type{
		events.TypeStatus, events.TypeStatus, events.TypeDocumentsPreview, events.TypeStatus,
		events.TypeToolCall, events.TypeContentRead, events.TypeAnswer, events.TypeComplete,
	})
	assert.Equal(t, events.TypeComplete, rec.Names()[len(rec.Names())-1])
	assert.Zero(t, rec.Count(events.TypeError))
	assert.Zero(t, rec.Count(events.TypeMetadata))

	statuses := rec.ByType(events.TypeStatus)
	require.Len(t, statuses, 3)
	assert.Equal(t, events.StageStarting, statuses[0].(events.StatusData).Stage)
	assert.Equal(t, events.StageDocumentLoaded, statuses[1].(events.StatusData).Stage)
	assert.Equal(t, events.StageExploring, statuses[2].(events.StatusData).Stage)

	read := rec.ByType(events.TypeContentRead)[0].(events.ContentReadData)
	assert.Equal(t, 500, read.EndPosition)
	assert.Equal(t, 500, read.ContentLength)

	answer := rec.ByType(events.TypeAnswer)[0].(events.AnswerData)
	assert.Equal(t, "ANSWERED", answer.State)
	require.NotNil(t, answer.Usage)
	assert.Equal(t, 130, answer.Usage.TotalTokens)
}

func TestRun_SystemPromptAndFirstMessage(t *testing.T) {
	client := llm.NewMockClient().QueueFinalResponse("done")
	_, err := newOrchestrator(t, client).Run(context.Background(), Request{
		Question:  "what is the title",
		Documents: document.Single(titledDocument()),
		Options:   RunOptions{Model: "override-model"},
	}, nil)
	require.NoError(t, err)

	req := client.LastRequest()
	require.NotNil(t, req)
	assert.Contains(t, req.SystemPrompt, "what is the title")
	assert.Contains(t, req.SystemPrompt, "Document 1 (500 characters")
	assert.Contains(t, req.SystemPrompt, "Alpha Report")
	assert.Contains(t, req.SystemPrompt, "readContent(documentId?, end, start)")
	assert.Equal(t, "override-model", req.ModelOverride)
	assert.Len(t, req.Tools, 4)
	require.Len(t, req.Messages, 1)
	assert.Equal(t, llm.RoleUser, req.Messages[0].Role)
	assert.Equal(t, "what is the title", req.Messages[0].Content)
}

func TestRun_IterationCap(t *testing.T) {
	t.Run("reports last text", func(t *testing.T) {
		client := llm.NewMockClient().WithResponseFunc(alwaysToolCall("still looking"))
		rec := events.NewRecorder()

		res, err := newOrchestrator(t, client).Run(context.Background(), Request{
			Question:  "q",
			Documents: document.Single("xxx"),
			Options:   RunOptions{MaxIterations: 3},
		}, rec.Sink())
		require.NoError(t, err)

		assert.Equal(t, StateIterationCapReached, res.State)
		assert.Equal(t, 3, res.Steps)
		assert.Equal(t, 3, client.CallCount())
		assert.Equal(t, "still looking", res.Answer)
		assert.Equal(t, 3, res.Stats.SearchIterations)
		assert.Equal(t, 1, rec.Count(events.TypeComplete))

		answer := rec.ByType(events.TypeAnswer)[0].(events.AnswerData)
		assert.Equal(t, "ITERATION_CAP_REACHED", answer.State)
	})

	t.Run("fallback when no text", func(t *testing.T) {
		client := llm.NewMockClient().WithResponseFunc(alwaysToolCall(""))
		res, err := newOrchestrator(t, client, WithMaxIterations(2)).Run(context.Background(), Request{
			Question:  "q",
			Documents: document.Single("xxx"),
		}, nil)
		require.NoError(t, err)

		assert.Equal(t, StateIterationCapReached, res.State)
		assert.Equal(t, 2, res.Steps)
		assert.Contains(t, res.Answer, "2 exploration steps")
	})
}

func TestRun_CompactionBoundsRequests(t *testing.T) {
	client := llm.NewMockClient().WithResponseFunc(alwaysToolCall(""))
	o := newOrchestrator(t, client, WithWindowPolicy(WindowPolicy{SingleDocThreshold: 4}))

	res, err := o.Run(context.Background(), Request{
		Question:  "the question",
		Documents: document.Single("xxx"),
		Options:   RunOptions{MaxIterations: 10},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 10, res.Steps)

	for i, call := range client.Calls() {
		msgs := call.Request.Messages
		assert.LessOrEqual(t, len(msgs), 5, "call %d", i)
		assert.Equal(t, "the question", msgs[0].Content, "call %d", i)
	}
	last := client.LastRequest().Messages
	assert.Len(t, last, 5)
}

func TestRun_MemoReinjectedOnRequestOnly(t *testing.T) {
	client := llm.NewMockClient().
		QueueToolCall("updateMemo", map[string]any{"memo": "title is on line 1"}).
		QueueFinalResponse("Alpha")
	rec := events.NewRecorder()

	res, err := newOrchestrator(t, client).Run(context.Background(), Request{
		Question:  "q",
		Documents: document.Single(titledDocument()),
	}, rec.Sink())
	require.NoError(t, err)
	assert.Equal(t, "title is on line 1", res.Memo)

	calls := client.Calls()
	require.Len(t, calls, 2)
	assert.Len(t, calls[0].Request.Messages, 1)

	second := calls[1].Request.Messages
	require.Len(t, second, 4)
	assert.Equal(t, llm.RoleAssistant, second[1].Role)
	assert.Equal(t, llm.RoleTool, second[2].Role)
	assert.Equal(t, "updateMemo", second[2].Name)
	assert.Equal(t, llm.RoleUser, second[3].Role)
	assert.Contains(t, second[3].Content, "title is on line 1")

	memo := rec.ByType(events.TypeMemoUpdated)[0].(events.MemoUpdatedData)
	assert.Equal(t, "title is on line 1", memo.MemoContent)
}

func TestRun_MultiDocumentSearch(t *testing.T) {
	doc2 := strings.Repeat("a", 10) + "foo" + strings.Repeat("b", 187) + "foo" + strings.Repeat("c", 50)
	client := llm.NewMockClient().
		QueueToolCall("searchContent", map[string]any{"documentId": 2, "pattern": "foo"}).
		QueueFinalResponse("found twice")
	rec := events.NewRecorder()

	res, err := newOrchestrator(t, client).Run(context.Background(), Request{
		Question:  "how often is foo mentioned",
		Documents: document.Input{"first document", doc2},
	}, rec.Sink())
	require.NoError(t, err)
	assert.Equal(t, StateAnswered, res.State)

	search := rec.ByType(events.TypeSearchComplete)[0].(events.SearchCompleteData)
	assert.Equal(t, 2, search.DocumentID)
	assert.Equal(t, 2, search.ResultsFound)
	assert.False(t, search.HasMore)

	preview := rec.ByType(events.TypeDocumentsPreview)[0].(events.DocumentsPreviewData)
	assert.Len(t, preview.Previews, 2)
	assert.Contains(t, client.Calls()[0].Request.SystemPrompt, "Document 2")
}

func TestRun_ToolFailuresDoNotAbort(t *testing.T) {
	client := llm.NewMockClient().
		QueueToolCall("deleteEverything", map[string]any{}).
		QueueToolCall("readContent", map[string]any{"documentId": 1, "start": 10, "end": 5}).
		QueueFinalResponse("ok")

	res, err := newOrchestrator(t, client).Run(context.Background(), Request{
		Question:  "q",
		Documents: document.Single(titledDocument()),
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, StateAnswered, res.State)
	assert.Equal(t, 1, res.Stats.ContentReads)

	msgs := client.LastRequest().Messages
	require.Len(t, msgs, 5)
	assert.Contains(t, msgs[2].Content, `"success":false`)
	assert.Contains(t, msgs[2].Content, "deleteEverything")
	assert.Contains(t, msgs[4].Content, "must be less than")
}

func TestRun_Metadata(t *testing.T) {
	client := llm.NewMockClient().QueueFinalResponse("answer")
	rec := events.NewRecorder()

	_, err := newOrchestrator(t, client).Run(context.Background(), Request{
		Question:  "q",
		Documents: document.Single("text"),
		Options:   RunOptions{IncludeMetadata: true},
	}, rec.Sink())
	require.NoError(t, err)

	names := rec.Names()
	n := len(names)
	require.GreaterOrEqual(t, n, 3)
	assert.Equal(t, []events.Type{events.TypeAnswer, events.TypeMetadata, events.TypeComplete}, names[n-3:])

	meta := rec.ByType(events.TypeMetadata)[0].(events.MetadataData)
	assert.Equal(t, 1, meta.Stats.SearchIterations)
	assert.GreaterOrEqual(t, meta.ProcessingTimeMs, int64(0))
}

func TestRun_Failures(t *testing.T) {
	tests := []struct {
		name    string
		client  *llm.MockClient
		req     Request
		wantErr error
	}{
		{
			name:    "engine error",
			client:  llm.NewMockClient().WithError(errors.New("connection refused")),
			req:     Request{Question: "q", Documents: document.Single("text")},
			wantErr: nil,
		},
		{
			name:    "empty question",
			client:  llm.NewMockClient(),
			req:     Request{Question: "  ", Documents: document.Single("text")},
			wantErr: ErrEmptyQuestion,
		},
		{
			name:    "no documents",
			client:  llm.NewMockClient(),
			req:     Request{Question: "q"},
			wantErr: document.ErrNoDocuments,
		},
		{
			name: "engine panic",
			client: llm.NewMockClient().WithResponseFunc(func(*llm.Request) (*llm.Response, error) {
				panic("engine exploded")
			}),
			req:     Request{Question: "q", Documents: document.Single("text")},
			wantErr: ErrPanic,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := events.NewRecorder()
			res, err := newOrchestrator(t, tt.client).Run(context.Background(), tt.req, rec.Sink())

			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			require.NotNil(t, res)
			assert.Equal(t, StateFailed, res.State)
			assert.NotEmpty(t, res.Error)

			assert.Equal(t, 1, rec.Count(events.TypeError))
			assert.Zero(t, rec.Count(events.TypeComplete))
			assert.Zero(t, rec.Count(events.TypeAnswer))
			assert.Equal(t, events.TypeError, rec.Names()[len(rec.Names())-1])
			assert.Equal(t, events.TypeStatus, rec.Names()[0])
		})
	}
}

func TestRun_SinkPanicIsContained(t *testing.T) {
	client := llm.NewMockClient().
		QueueToolCall("readContent", map[string]any{"start": 0, "end": 10}).
		QueueFinalResponse("fine")
	sink := func(events.Type, any) { panic("sink broke") }

	res, err := newOrchestrator(t, client).Run(context.Background(), Request{
		Question:  "q",
		Documents: document.Single(titledDocument()),
	}, sink)
	require.NoError(t, err)
	assert.Equal(t, StateAnswered, res.State)
	assert.Equal(t, "fine", res.Answer)
}

func TestRun_SubscriberSeesSessionEvents(t *testing.T) {
	var got []*events.Event
	client := llm.NewMockClient().QueueFinalResponse("a")
	o := newOrchestrator(t, client, WithSubscriber(func(e *events.Event) { got = append(got, e) }, events.TypeAnswer))

	res, err := o.Run(context.Background(), Request{Question: "q", Documents: document.Single("t")}, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, res.SessionID, got[0].SessionID)
	assert.Equal(t, 1, got[0].Step)
}

func TestRun_ArchivesResult(t *testing.T) {
	store, err := archive.Open(archive.InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	client := llm.NewMockClient().QueueFinalResponse("archived answer")
	res, err := newOrchestrator(t, client, WithArchiver(store)).Run(context.Background(), Request{
		Question:  "q",
		Documents: document.Input{"a", "b"},
	}, nil)
	require.NoError(t, err)

	got, err := store.Get(context.Background(), res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "archived answer", got.Answer)
	assert.Equal(t, "ANSWERED", got.State)
	assert.Equal(t, 2, got.DocumentCount)
	assert.NotEmpty(t, got.Events)
}

func TestRun_ConcurrentRunsAreIndependent(t *testing.T) {
	o := newOrchestrator(t, llm.NewMockClient())
	results := make(chan *RunResult, 4)
	for i := 0; i < 4; i++ {
		go func() {
			res, _ := o.Run(context.Background(), Request{Question: "q", Documents: document.Single("t")}, nil)
			results <- res
		}()
	}
	seen := make(map[string]bool)
	for i := 0; i < 4; i++ {
		res := <-results
		assert.Equal(t, StateAnswered, res.State)
		assert.Equal(t, 1, res.Stats.SearchIterations)
		seen[res.SessionID] = true
	}
	assert.Len(t, seen, 4)
}

func TestRun_TransitionsRecorded(t *testing.T) {
	client := llm.NewMockClient().
		QueueToolCall("searchContent", map[string]any{"pattern": "x"}).
		QueueFinalResponse("done")
	res, err := newOrchestrator(t, client).Run(context.Background(), Request{Question: "q", Documents: document.Single("xx")}, nil)
	require.NoError(t, err)

	var path []RunState
	for _, tr := range res.Transitions {
		path = append(path, tr.To)
	}
	assert.Equal(t, []RunState{
		StatePreview, StateExploring, StateModelCall, StateToolDispatch, StateModelCall, StateAnswered,
	}, path)
}

func TestRequest_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    document.Input
		wantErr error
	}{
		{"singular document", `{"question":"q","document":"only"}`, document.Input{"only"}, nil},
		{"documents string", `{"question":"q","documents":"one"}`, document.Input{"one"}, nil},
		{"documents array", `{"question":"q","documents":["a","b"]}`, document.Input{"a", "b"}, nil},
		{"both forms", `{"question":"q","document":"a","documents":["b"]}`, nil, ErrAmbiguousDocuments},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req Request
			err := json.Unmarshal([]byte(tt.body), &req)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "q", req.Question)
			assert.Equal(t, tt.want, req.Documents)
		})
	}
}
