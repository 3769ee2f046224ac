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
	"github.com/AleutianAI/AleutianReader/services/reader/llm"
)

// Compaction thresholds.
const (
	DefaultSingleDocThreshold = 30
	DefaultMultiDocThreshold  = 50
)

// WindowPolicy bounds conversation length.
type WindowPolicy struct {
	SingleDocThreshold int `yaml:"single_doc_threshold" validate:"gte=1"`
	MultiDocThreshold  int `yaml:"multi_doc_threshold" validate:"gte=1"`
}

// DefaultWindowPolicy returns the 30/50 policy.
func DefaultWindowPolicy() WindowPolicy {
	return WindowPolicy{
		SingleDocThreshold: DefaultSingleDocThreshold,
		MultiDocThreshold:  DefaultMultiDocThreshold,
	}
}

// ThresholdFor returns the threshold for a single- or multi-document run.
func (p WindowPolicy) ThresholdFor(multi bool) int {
	if multi {
		return p.MultiDocThreshold
	}
	return p.SingleDocThreshold
}

// Compact keeps the first message plus the last threshold messages when
// the conversation is longer than threshold. The second return value is
// the number of messages dropped.
func Compact(messages []llm.Message, threshold int) ([]llm.Message, int) {
	if threshold < 1 || len(messages) <= threshold {
		return messages, 0
	}
	dropped := len(messages) - threshold - 1
	if dropped <= 0 {
		return messages, 0
	}
	out := make([]llm.Message, 0, threshold+1)
	out = append(out, messages[0])
	out = append(out, messages[len(messages)-threshold:]...)
	return out, dropped
}

// WithMemo returns the messages to send for one call: the conversation
// plus, when memo is non-empty, a trailing message carrying it. The
// conversation itself is not modified.
func WithMemo(messages []llm.Message, memo string) []llm.Message {
	if memo == "" {
		return messages
	}
	out := make([]llm.Message, len(messages), len(messages)+1)
	copy(out, messages)
	return append(out, llm.Message{Role: llm.RoleUser, Content: memoMessage(memo)})
}
