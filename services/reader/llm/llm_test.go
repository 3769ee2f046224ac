// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/AleutianAI/AleutianReader/services/reader/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

var testTools = []tools.ToolDefinition{{
	Name:        "readContent",
	Description: "Read a range",
	Parameters: map[string]tools.ParamDef{
		"start": {Type: tools.ParamTypeInt, Description: "start", Required: true},
		"end":   {Type: tools.ParamTypeInt, Description: "end", Required: true},
	},
}}

// =============================================================================
// OpenAI
// =============================================================================

func newOpenAIServer(t *testing.T, reply string, captured *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		if captured != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(captured))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv
}

const toolCallReply = `{
  "id": "chatcmpl-1", "object": "chat.completion", "model": "gpt-test",
  "choices": [{
    "index": 0,
    "message": {"role": "assistant", "content": "",
      "tool_calls": [{"id": "call_1", "type": "function",
        "function": {"name": "readContent", "arguments": "{\"start\":0,\"end\":10}"}}]},
    "finish_reason": "tool_calls"
  }],
  "usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
}`

const textReply = `{
  "id": "chatcmpl-2", "object": "chat.completion", "model": "gpt-test",
  "choices": [{"index": 0, "message": {"role": "assistant", "content": "The title is Alpha."}, "finish_reason": "stop"}],
  "usage": {"prompt_tokens": 20, "completion_tokens": 6, "total_tokens": 26}
}`

func TestNewOpenAIClient_RequiresKey(t *testing.T) {
	_, err := NewOpenAIClient(OpenAIConfig{})
	assert.Error(t, err)
}

func TestOpenAIClient_ToolCall(t *testing.T) {
	var body map[string]any
	srv := newOpenAIServer(t, toolCallReply, &body)

	c, err := NewOpenAIClient(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1", Model: "gpt-test"})
	require.NoError(t, err)

	resp, err := c.Complete(context.Background(), &Request{
		SystemPrompt: "system",
		Messages:     []Message{{Role: RoleUser, Content: "what is the title"}},
		Tools:        testTools,
	})
	require.NoError(t, err)

	assert.Equal(t, StopToolUse, resp.StopReason)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "call_1", resp.ToolCalls[0].ID)
	assert.Equal(t, "readContent", resp.ToolCalls[0].Name)
	assert.JSONEq(t, `{"start":0,"end":10}`, resp.ToolCalls[0].Arguments)
	assert.Equal(t, Usage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15}, resp.Usage)

	assert.Equal(t, "gpt-test", body["model"])
	msgs := body["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])

	sentTools := body["tools"].([]any)
	require.Len(t, sentTools, 1)
	fn := sentTools[0].(map[string]any)["function"].(map[string]any)
	assert.Equal(t, "readContent", fn["name"])
	params := fn["parameters"].(map[string]any)
	assert.ElementsMatch(t, []any{"end", "start"}, params["required"])
}

func TestOpenAIClient_FinalText(t *testing.T) {
	srv := newOpenAIServer(t, textReply, nil)
	c, err := NewOpenAIClient(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1"})
	require.NoError(t, err)

	resp, err := c.Complete(context.Background(), &Request{Messages: []Message{{Role: RoleUser, Content: "q"}}})
	require.NoError(t, err)
	assert.False(t, resp.HasToolCalls())
	assert.Equal(t, StopEnd, resp.StopReason)
	assert.Equal(t, "The title is Alpha.", resp.Content)
}

func TestOpenAIClient_Vision(t *testing.T) {
	var body map[string]any
	srv := newOpenAIServer(t, textReply, &body)
	c, err := NewOpenAIClient(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1"})
	require.NoError(t, err)

	out, err := c.Analyze(context.Background(), "describe", "https://example.com/a.png")
	require.NoError(t, err)
	assert.Equal(t, "The title is Alpha.", out)

	msg := body["messages"].([]any)[0].(map[string]any)
	parts := msg["content"].([]any)
	require.Len(t, parts, 2)
	image := parts[1].(map[string]any)
	assert.Equal(t, "image_url", image["type"])
	assert.Equal(t, "https://example.com/a.png", image["image_url"].(map[string]any)["url"])
}

func TestToOpenAIMessages_OrphanToolResult(t *testing.T) {
	msgs := toOpenAIMessages(&Request{Messages: []Message{
		{Role: RoleUser, Content: "question"},
		{Role: RoleTool, ToolCallID: "call_gone", Name: "readContent", Content: `{"success":true}`},
		{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "call_2", Name: "searchContent", Arguments: "{}"}}},
		{Role: RoleTool, ToolCallID: "call_2", Name: "searchContent", Content: `{"success":true}`},
	}})

	require.Len(t, msgs, 4)
	assert.Equal(t, "user", msgs[1].Role)
	assert.Contains(t, msgs[1].Content, "readContent")
	assert.Equal(t, "tool", msgs[3].Role)
	assert.Equal(t, "call_2", msgs[3].ToolCallID)
}

// =============================================================================
// LangChain / Ollama
// =============================================================================

type fakeModel struct {
	resp *llms.ContentResponse
	err  error
	got  []llms.MessageContent
	opts llms.CallOptions
}

func (f *fakeModel) GenerateContent(_ context.Context, msgs []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.got = msgs
	for _, o := range options {
		o(&f.opts)
	}
	return f.resp, f.err
}

func (f *fakeModel) Call(context.Context, string, ...llms.CallOption) (string, error) {
	return "", errors.New("not used")
}

func TestLangChainClient_ToolCalls(t *testing.T) {
	model := &fakeModel{resp: &llms.ContentResponse{Choices: []*llms.ContentChoice{{
		ToolCalls: []llms.ToolCall{{
			Type:         "function",
			FunctionCall: &llms.FunctionCall{Name: "readContent", Arguments: `{"start":0,"end":5}`},
		}},
		GenerationInfo: map[string]any{"PromptTokens": 12, "CompletionTokens": 3},
	}}}}
	c := NewLangChainClient(model, nil, "ollama", "llama-test", nil)

	resp, err := c.Complete(context.Background(), &Request{
		SystemPrompt: "sys",
		Messages: []Message{
			{Role: RoleUser, Content: "q"},
			{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "c1", Name: "updateMemo", Arguments: `{"memo":"x"}`}}},
			{Role: RoleTool, ToolCallID: "c1", Name: "updateMemo", Content: `{"success":true}`},
		},
		Tools:     testTools,
		MaxTokens: 256,
	})
	require.NoError(t, err)

	require.Len(t, resp.ToolCalls, 1)
	assert.NotEmpty(t, resp.ToolCalls[0].ID)
	assert.Equal(t, "readContent", resp.ToolCalls[0].Name)
	assert.Equal(t, StopToolUse, resp.StopReason)
	assert.Equal(t, Usage{InputTokens: 12, OutputTokens: 3, TotalTokens: 15}, resp.Usage)

	require.Len(t, model.got, 4)
	assert.Equal(t, llms.ChatMessageTypeSystem, model.got[0].Role)
	assert.Equal(t, llms.ChatMessageTypeAI, model.got[2].Role)
	assert.Contains(t, model.got[2].Parts[0].(llms.TextContent).Text, "[called updateMemo")
	assert.Equal(t, llms.ChatMessageTypeHuman, model.got[3].Role)
	assert.Len(t, model.opts.Tools, 1)
	assert.Equal(t, 256, model.opts.MaxTokens)
	assert.Equal(t, "llama-test", model.opts.Model)
}

func TestLangChainClient_Error(t *testing.T) {
	c := NewLangChainClient(&fakeModel{err: errors.New("connection refused")}, nil, "ollama", "m", nil)
	_, err := c.Complete(context.Background(), &Request{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")

	c = NewLangChainClient(&fakeModel{resp: &llms.ContentResponse{}}, nil, "ollama", "m", nil)
	_, err = c.Complete(context.Background(), &Request{})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestLangChainClient_VisionDataURI(t *testing.T) {
	model := &fakeModel{resp: &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: "a cat"}}}}
	c := NewLangChainClient(nil, model, "ollama", "m", nil)

	ref := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("pngbytes"))
	out, err := c.Analyze(context.Background(), "what animal?", ref)
	require.NoError(t, err)
	assert.Equal(t, "a cat", out)

	require.Len(t, model.got, 1)
	img := model.got[0].Parts[0].(llms.BinaryContent)
	assert.Equal(t, "image/png", img.MIMEType)
	assert.Equal(t, []byte("pngbytes"), img.Data)
}

func TestLangChainClient_VisionFetchesURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.png" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte("jpegbytes"))
	}))
	defer srv.Close()

	model := &fakeModel{resp: &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: "a chart"}}}}
	c := NewLangChainClient(model, nil, "ollama", "m", nil)

	_, err := c.Analyze(context.Background(), "q", srv.URL+"/chart.jpg")
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", model.got[0].Parts[0].(llms.BinaryContent).MIMEType)

	_, err = c.Analyze(context.Background(), "q", srv.URL+"/missing.png")
	assert.ErrorContains(t, err, "status 404")

	_, err = c.Analyze(context.Background(), "q", "figure1.png")
	assert.ErrorContains(t, err, "unsupported image reference")
}

func TestDecodeDataURI_Errors(t *testing.T) {
	_, _, err := decodeDataURI("data:image/png;base64")
	assert.Error(t, err)
	_, _, err = decodeDataURI("data:image/png,raw")
	assert.Error(t, err)
	_, _, err = decodeDataURI("data:image/png;base64,!!!")
	assert.Error(t, err)
}

// =============================================================================
// Rate limiting, factory, mock
// =============================================================================

func TestRateLimitedClient(t *testing.T) {
	mock := NewMockClient()
	assert.Same(t, Client(mock), NewRateLimitedClient(mock, 0, 0))

	limited := NewRateLimitedClient(mock, 1, 1)
	_, err := limited.Complete(context.Background(), &Request{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = limited.Complete(ctx, &Request{})
	assert.Error(t, err)
	assert.Equal(t, 1, mock.CallCount())
}

func TestRateLimitedVision(t *testing.T) {
	v := &MockVision{Answer: "ok"}
	limited := NewRateLimitedVision(v, 100, 2)
	out, err := limited.Analyze(context.Background(), "i", "r")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Nil(t, NewRateLimitedVision(nil, 1, 1))
}

func TestNew_UnknownProvider(t *testing.T) {
	_, _, err := New(Settings{Provider: "bogus"}, nil)
	assert.ErrorContains(t, err, "unknown llm provider")
}

func TestNew_OpenAI(t *testing.T) {
	client, vision, err := New(Settings{Provider: ProviderOpenAI, APIKey: "sk", Model: "m", RequestsPerSecond: 5}, nil)
	require.NoError(t, err)
	assert.Equal(t, "openai", client.Name())
	assert.Equal(t, "m", client.Model())
	assert.NotNil(t, vision)
}

func TestMockClient_Queue(t *testing.T) {
	mock := NewMockClient().
		QueueToolCall("readContent", map[string]any{"start": 0, "end": 1}).
		QueueFinalResponse("done")

	r1, err := mock.Complete(context.Background(), &Request{})
	require.NoError(t, err)
	assert.True(t, r1.HasToolCalls())

	r2, err := mock.Complete(context.Background(), &Request{})
	require.NoError(t, err)
	assert.Equal(t, "done", r2.Content)

	r3, err := mock.Complete(context.Background(), &Request{})
	require.NoError(t, err)
	assert.Equal(t, "Mock response", r3.Content)
	assert.Equal(t, 3, mock.CallCount())
}
