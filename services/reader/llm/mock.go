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
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// MockClient is a scripted reasoning engine for tests.
//
// Thread Safety:
//
//	MockClient is safe for concurrent use.
type MockClient struct {
	mu sync.Mutex

	model string

	// responses are returned in order, then defaultResponse.
	responses       []*Response
	defaultResponse *Response

	calls []CompletionCall

	responseFunc  func(*Request) (*Response, error)
	errorToReturn error
	callCount     int
}

// CompletionCall records a call to Complete.
type CompletionCall struct {
	Request   *Request
	Timestamp time.Time
}

// NewMockClient creates a mock whose default response is a final answer.
func NewMockClient() *MockClient {
	return &MockClient{
		model: "mock-model",
		defaultResponse: &Response{
			Content:    "Mock response",
			StopReason: StopEnd,
			Usage:      Usage{InputTokens: 50, OutputTokens: 50, TotalTokens: 100},
		},
	}
}

// WithModel sets the model name.
func (c *MockClient) WithModel(model string) *MockClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.model = model
	return c
}

// WithError configures the client to fail every call.
func (c *MockClient) WithError(err error) *MockClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errorToReturn = err
	return c
}

// WithResponseFunc sets a dynamic response function.
func (c *MockClient) WithResponseFunc(f func(*Request) (*Response, error)) *MockClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responseFunc = f
	return c
}

// QueueResponse adds a response to the queue.
func (c *MockClient) QueueResponse(response *Response) *MockClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responses = append(c.responses, response)
	return c
}

// QueueToolCall queues a turn that invokes one tool.
func (c *MockClient) QueueToolCall(toolName string, arguments map[string]any) *MockClient {
	argsJSON, _ := json.Marshal(arguments)

	c.mu.Lock()
	id := fmt.Sprintf("call_%d", len(c.responses))
	c.mu.Unlock()

	return c.QueueResponse(&Response{
		StopReason: StopToolUse,
		ToolCalls: []ToolCall{{
			ID:        id,
			Name:      toolName,
			Arguments: string(argsJSON),
		}},
		Usage: Usage{InputTokens: 50, OutputTokens: 10, TotalTokens: 60},
	})
}

// QueueFinalResponse queues a turn with text and no tool calls.
func (c *MockClient) QueueFinalResponse(content string) *MockClient {
	return c.QueueResponse(&Response{
		Content:    content,
		StopReason: StopEnd,
		Usage:      Usage{InputTokens: 50, OutputTokens: 20, TotalTokens: 70},
	})
}

// SetDefaultResponse sets the response returned once the queue is empty.
func (c *MockClient) SetDefaultResponse(response *Response) *MockClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.defaultResponse = response
	return c
}

// Complete implements Client.
func (c *MockClient) Complete(ctx context.Context, request *Request) (*Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls = append(c.calls, CompletionCall{Request: cloneRequest(request), Timestamp: time.Now()})
	c.callCount++

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.errorToReturn != nil {
		return nil, c.errorToReturn
	}
	if c.responseFunc != nil {
		return c.responseFunc(request)
	}

	if len(c.responses) > 0 {
		response := c.responses[0]
		c.responses = c.responses[1:]
		response.Model = c.model
		return response, nil
	}

	if c.defaultResponse != nil {
		resp := *c.defaultResponse
		resp.Model = c.model
		return &resp, nil
	}
	return nil, ErrEmptyResponse
}

// Name implements Client.
func (c *MockClient) Name() string { return "mock" }

// Model implements Client.
func (c *MockClient) Model() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.model
}

// Calls returns the recorded calls.
func (c *MockClient) Calls() []CompletionCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]CompletionCall, len(c.calls))
	copy(out, c.calls)
	return out
}

// CallCount returns how many times Complete was called.
func (c *MockClient) CallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.callCount
}

// LastRequest returns the most recent request, or nil.
func (c *MockClient) LastRequest() *Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.calls) == 0 {
		return nil
	}
	return c.calls[len(c.calls)-1].Request
}

// cloneRequest copies the message slice so later appends by the caller do
// not change what was recorded.
func cloneRequest(r *Request) *Request {
	if r == nil {
		return nil
	}
	cp := *r
	cp.Messages = append([]Message(nil), r.Messages...)
	return &cp
}

// MockVision is a scripted vision capability for tests.
type MockVision struct {
	mu     sync.Mutex
	Answer string
	Err    error
	calls  []VisionCall
}

// VisionCall records a call to Analyze.
type VisionCall struct {
	Instruction string
	ImageRef    string
}

// Analyze implements tools.VisionAnalyzer.
func (m *MockVision) Analyze(ctx context.Context, instruction, imageRef string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, VisionCall{Instruction: instruction, ImageRef: imageRef})
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return m.Answer, m.Err
}

// Calls returns the recorded calls.
func (m *MockVision) Calls() []VisionCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]VisionCall(nil), m.calls...)
}
