// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llm provides the reasoning engine and vision interfaces used by
// the exploration loop, plus OpenAI and Ollama implementations.
//
// Thread Safety:
//
//	All clients in this package are safe for concurrent use.
package llm

import (
	"context"
	"errors"
	"time"

	"github.com/AleutianAI/AleutianReader/services/reader/tools"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Stop reasons reported in Response.StopReason.
const (
	StopEnd       = "end"
	StopToolUse   = "tool_use"
	StopMaxTokens = "max_tokens"
)

// ErrEmptyResponse is returned when a provider answers with no choices.
var ErrEmptyResponse = errors.New("llm returned no choices")

// Client is the reasoning engine: a conversation plus tool definitions in,
// text and/or tool calls out.
//
// Implementations must be safe for concurrent use.
type Client interface {
	// Complete sends the conversation and returns the next turn.
	Complete(ctx context.Context, request *Request) (*Response, error)

	// Name returns the provider name (e.g., "openai", "ollama").
	Name() string

	// Model returns the default model.
	Model() string
}

// Request is one reasoning engine call.
type Request struct {
	// SystemPrompt is sent as the leading system message.
	SystemPrompt string `json:"system_prompt,omitempty"`

	// Messages is the conversation, oldest first.
	Messages []Message `json:"messages"`

	// Tools are the operations the engine may invoke.
	Tools []tools.ToolDefinition `json:"tools,omitempty"`

	// ModelOverride replaces the client's default model for this call.
	ModelOverride string `json:"model_override,omitempty"`

	// MaxTokens limits the response length.
	MaxTokens int `json:"max_tokens,omitempty"`

	// Temperature controls randomness (0.0-1.0).
	Temperature float64 `json:"temperature,omitempty"`
}

// Message is one conversation entry.
type Message struct {
	// Role is RoleUser, RoleAssistant or RoleTool.
	Role string `json:"role"`

	// Content is the text content.
	Content string `json:"content"`

	// ToolCalls are the invocations an assistant turn requested.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID links a tool message to the call it answers.
	ToolCallID string `json:"tool_call_id,omitempty"`

	// Name is the tool name on tool messages.
	Name string `json:"name,omitempty"`
}

// ToolCall is a tool invocation requested by the engine.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Usage is token accounting for one or more calls.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Add accumulates other into u.
func (u *Usage) Add(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.TotalTokens += other.TotalTokens
}

// IsZero reports whether no tokens were recorded.
func (u Usage) IsZero() bool {
	return u.InputTokens == 0 && u.OutputTokens == 0 && u.TotalTokens == 0
}

// Response is the engine's next turn.
type Response struct {
	// Content is the text response.
	Content string `json:"content"`

	// ToolCalls are the invocations to dispatch, in order.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// StopReason is StopEnd, StopToolUse or StopMaxTokens.
	StopReason string `json:"stop_reason"`

	// Usage is token accounting when the provider reports it.
	Usage Usage `json:"usage"`

	// Duration is how long the request took.
	Duration time.Duration `json:"duration"`

	// Model is the model that generated this response.
	Model string `json:"model,omitempty"`
}

// HasToolCalls returns true if the response contains tool calls.
func (r *Response) HasToolCalls() bool {
	return len(r.ToolCalls) > 0
}

// AssistantMessage converts the response into the conversation entry
// that records it.
func (r *Response) AssistantMessage() Message {
	return Message{
		Role:      RoleAssistant,
		Content:   r.Content,
		ToolCalls: r.ToolCalls,
	}
}

// modelFor returns the override when set, else the default.
func modelFor(request *Request, def string) string {
	if request.ModelOverride != "" {
		return request.ModelOverride
	}
	return def
}

// truncate truncates a string to maxLen bytes for logging.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
