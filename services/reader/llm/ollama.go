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
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianReader/services/reader/tools"
	"github.com/google/uuid"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

const (
	// DefaultOllamaURL is the local Ollama server.
	DefaultOllamaURL = "http://localhost:11434"

	// DefaultOllamaModel is used when no model is configured.
	DefaultOllamaModel = "llama3.1"

	// maxImageBytes bounds images fetched for vision calls.
	maxImageBytes = 20 << 20
)

// OllamaConfig configures the Ollama client.
type OllamaConfig struct {
	// BaseURL is the Ollama server. Empty selects DefaultOllamaURL.
	BaseURL string

	// Model is the chat model.
	Model string

	// VisionModel is used for figure analysis. Empty selects Model.
	VisionModel string

	// HTTPClient fetches remote images for vision calls.
	HTTPClient *http.Client

	// Logger receives request logs. Nil selects slog.Default().
	Logger *slog.Logger
}

// LangChainClient adapts a langchaingo llms.Model to Client and
// tools.VisionAnalyzer.
//
// Description:
//
//	Every message is sent as a single text part. Assistant tool calls and
//	tool results are rendered inline as text, which every langchaingo
//	backend accepts; native tool definitions are still passed with
//	llms.WithTools and native tool calls are read back from the choice.
//
// Thread Safety:
//
//	LangChainClient is safe for concurrent use.
type LangChainClient struct {
	chat       llms.Model
	vision     llms.Model
	name       string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewOllamaClient creates a LangChainClient backed by Ollama.
func NewOllamaClient(cfg OllamaConfig) (*LangChainClient, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOllamaURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOllamaModel
	}
	if cfg.VisionModel == "" {
		cfg.VisionModel = cfg.Model
	}

	chat, err := ollama.New(ollama.WithServerURL(cfg.BaseURL), ollama.WithModel(cfg.Model))
	if err != nil {
		return nil, fmt.Errorf("create ollama client: %w", err)
	}
	vision := chat
	if cfg.VisionModel != cfg.Model {
		vision, err = ollama.New(ollama.WithServerURL(cfg.BaseURL), ollama.WithModel(cfg.VisionModel))
		if err != nil {
			return nil, fmt.Errorf("create ollama vision client: %w", err)
		}
	}

	c := NewLangChainClient(chat, vision, "ollama", cfg.Model, cfg.Logger)
	if cfg.HTTPClient != nil {
		c.httpClient = cfg.HTTPClient
	}
	return c, nil
}

// NewLangChainClient wraps arbitrary langchaingo models. vision may be nil
// to reuse chat.
func NewLangChainClient(chat, vision llms.Model, name, model string, logger *slog.Logger) *LangChainClient {
	if vision == nil {
		vision = chat
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LangChainClient{
		chat:       chat,
		vision:     vision,
		name:       name,
		model:      model,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

// Name implements Client.
func (c *LangChainClient) Name() string { return c.name }

// Model implements Client.
func (c *LangChainClient) Model() string { return c.model }

// Complete implements Client.
func (c *LangChainClient) Complete(ctx context.Context, request *Request) (*Response, error) {
	if request == nil {
		return nil, errors.New("nil request")
	}

	messages := toLangChainMessages(request)
	opts := []llms.CallOption{llms.WithModel(modelFor(request, c.model))}
	if lt := toLangChainTools(request.Tools); len(lt) > 0 {
		opts = append(opts, llms.WithTools(lt))
	}
	if request.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(request.MaxTokens))
	}
	if request.Temperature > 0 {
		opts = append(opts, llms.WithTemperature(request.Temperature))
	}

	c.logger.Debug("LangChain request",
		slog.String("provider", c.name),
		slog.Int("message_count", len(messages)),
	)

	start := time.Now()
	resp, err := c.chat.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s generate: %w", c.name, err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	choice := resp.Choices[0]
	out := &Response{
		Content:  choice.Content,
		Usage:    usageFromInfo(choice.GenerationInfo),
		Duration: time.Since(start),
		Model:    modelFor(request, c.model),
	}
	for _, tc := range choice.ToolCalls {
		if tc.FunctionCall == nil {
			continue
		}
		id := tc.ID
		if id == "" {
			id = "call_" + uuid.NewString()
		}
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:        id,
			Name:      tc.FunctionCall.Name,
			Arguments: tc.FunctionCall.Arguments,
		})
	}
	if out.HasToolCalls() {
		out.StopReason = StopToolUse
	} else {
		out.StopReason = StopEnd
	}

	c.logger.Debug("LangChain response",
		slog.String("provider", c.name),
		slog.Int("tool_calls", len(out.ToolCalls)),
		slog.String("content_preview", truncate(out.Content, 200)),
		slog.Duration("duration", out.Duration),
	)
	return out, nil
}

// Analyze implements tools.VisionAnalyzer. Remote images are fetched and
// sent inline; data URIs are decoded.
func (c *LangChainClient) Analyze(ctx context.Context, instruction, imageRef string) (string, error) {
	mime, data, err := c.loadImage(ctx, imageRef)
	if err != nil {
		return "", err
	}

	resp, err := c.vision.GenerateContent(ctx, []llms.MessageContent{{
		Role: llms.ChatMessageTypeHuman,
		Parts: []llms.ContentPart{
			llms.BinaryContent{MIMEType: mime, Data: data},
			llms.TextContent{Text: instruction},
		},
	}})
	if err != nil {
		return "", fmt.Errorf("%s vision: %w", c.name, err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Content, nil
}

func (c *LangChainClient) loadImage(ctx context.Context, ref string) (string, []byte, error) {
	if strings.HasPrefix(ref, "data:") {
		return decodeDataURI(ref)
	}
	if !strings.HasPrefix(ref, "http://") && !strings.HasPrefix(ref, "https://") {
		return "", nil, fmt.Errorf("unsupported image reference %q: expected http(s) URL or data URI", truncate(ref, 80))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return "", nil, fmt.Errorf("build image request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", nil, fmt.Errorf("fetch image: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return "", nil, fmt.Errorf("read image: %w", err)
	}
	if len(data) > maxImageBytes {
		return "", nil, fmt.Errorf("image exceeds %d bytes", maxImageBytes)
	}

	mime := resp.Header.Get("Content-Type")
	if mime == "" {
		mime = http.DetectContentType(data)
	}
	return mime, data, nil
}

// decodeDataURI parses data:<mime>;base64,<payload>.
func decodeDataURI(ref string) (string, []byte, error) {
	header, payload, ok := strings.Cut(strings.TrimPrefix(ref, "data:"), ",")
	if !ok {
		return "", nil, errors.New("malformed data URI: missing ','")
	}
	mime, encoding, _ := strings.Cut(header, ";")
	if encoding != "base64" {
		return "", nil, fmt.Errorf("unsupported data URI encoding %q", encoding)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("decode data URI: %w", err)
	}
	if mime == "" {
		mime = http.DetectContentType(data)
	}
	return mime, data, nil
}

func toLangChainMessages(request *Request) []llms.MessageContent {
	out := make([]llms.MessageContent, 0, len(request.Messages)+1)
	if request.SystemPrompt != "" {
		out = append(out, llms.TextParts(llms.ChatMessageTypeSystem, request.SystemPrompt))
	}
	for _, msg := range request.Messages {
		switch msg.Role {
		case RoleAssistant:
			out = append(out, llms.TextParts(llms.ChatMessageTypeAI, renderAssistant(msg)))
		case RoleTool:
			out = append(out, llms.TextParts(llms.ChatMessageTypeHuman,
				fmt.Sprintf("[%s result]\n%s", msg.Name, msg.Content)))
		default:
			out = append(out, llms.TextParts(llms.ChatMessageTypeHuman, msg.Content))
		}
	}
	return out
}

func renderAssistant(msg Message) string {
	if len(msg.ToolCalls) == 0 {
		return msg.Content
	}
	var sb strings.Builder
	sb.WriteString(msg.Content)
	for _, tc := range msg.ToolCalls {
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "[called %s %s]", tc.Name, tc.Arguments)
	}
	return sb.String()
}

func toLangChainTools(defs []tools.ToolDefinition) []llms.Tool {
	if len(defs) == 0 {
		return nil
	}
	out := make([]llms.Tool, 0, len(defs))
	for _, def := range defs {
		out = append(out, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  def.JSONSchema(),
			},
		})
	}
	return out
}

// usageFromInfo reads token counts from langchaingo generation info.
func usageFromInfo(info map[string]any) Usage {
	u := Usage{
		InputTokens:  intFromInfo(info, "PromptTokens"),
		OutputTokens: intFromInfo(info, "CompletionTokens"),
		TotalTokens:  intFromInfo(info, "TotalTokens"),
	}
	if u.TotalTokens == 0 {
		u.TotalTokens = u.InputTokens + u.OutputTokens
	}
	return u
}

func intFromInfo(info map[string]any, key string) int {
	switch v := info[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
