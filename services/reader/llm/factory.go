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
	"fmt"
	"log/slog"

	"github.com/AleutianAI/AleutianReader/services/reader/tools"
)

// Provider names accepted by New.
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

// Settings selects and configures a provider.
type Settings struct {
	Provider    string
	Model       string
	VisionModel string
	BaseURL     string
	APIKey      string

	// RequestsPerSecond throttles both engines. Zero disables throttling.
	RequestsPerSecond float64
	Burst             int
}

// New builds the reasoning engine and vision capability for settings.
func New(s Settings, logger *slog.Logger) (Client, tools.VisionAnalyzer, error) {
	var (
		client Client
		vision tools.VisionAnalyzer
	)

	switch s.Provider {
	case ProviderOpenAI:
		c, err := NewOpenAIClient(OpenAIConfig{APIKey: s.APIKey, BaseURL: s.BaseURL, Model: s.Model, Logger: logger})
		if err != nil {
			return nil, nil, err
		}
		client, vision = c, c
		if s.VisionModel != "" && s.VisionModel != c.Model() {
			v, err := NewOpenAIClient(OpenAIConfig{APIKey: s.APIKey, BaseURL: s.BaseURL, Model: s.VisionModel, Logger: logger})
			if err != nil {
				return nil, nil, err
			}
			vision = v
		}
	case ProviderOllama:
		c, err := NewOllamaClient(OllamaConfig{BaseURL: s.BaseURL, Model: s.Model, VisionModel: s.VisionModel, Logger: logger})
		if err != nil {
			return nil, nil, err
		}
		client, vision = c, c
	default:
		return nil, nil, fmt.Errorf("unknown llm provider %q (expected %s or %s)", s.Provider, ProviderOpenAI, ProviderOllama)
	}

	return NewRateLimitedClient(client, s.RequestsPerSecond, s.Burst),
		NewRateLimitedVision(vision, s.RequestsPerSecond, s.Burst),
		nil
}
