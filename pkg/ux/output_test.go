// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIcon_Render(t *testing.T) {
	for _, icon := range []Icon{IconSuccess, IconWarning, IconError, IconPending, IconArrow} {
		assert.Contains(t, icon.Render(), string(icon))
	}
}

func TestParseMode(t *testing.T) {
	tests := map[string]Mode{
		"rich":    ModeRich,
		"FULL":    ModeRich,
		"plain":   ModePlain,
		"json":    ModeMachine,
		"machine": ModeMachine,
		"":        "",
		"sparkly": "",
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseMode(in), in)
	}
}

func TestDetectMode(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "out")
	assert.NoError(t, err)
	defer f.Close()

	t.Setenv("READER_OUTPUT", "")
	assert.Equal(t, ModePlain, DetectMode(f), "a regular file is not a terminal")
	assert.False(t, IsTerminal(nil))

	t.Setenv("READER_OUTPUT", "machine")
	assert.Equal(t, ModeMachine, DetectMode(f))
}

func TestOutput_Plain(t *testing.T) {
	var buf bytes.Buffer
	out := NewOutput(&buf, "")
	assert.Equal(t, ModePlain, out.Mode())

	out.Line(IconSuccess, "done")
	out.Info("detail")
	out.Box("Answer", "forty-two")
	out.ErrorBox("Failed", "engine down")

	assert.Equal(t, "✓ done\n| detail\nAnswer:\nforty-two\nERROR Failed: engine down\n", buf.String())
}

func TestOutput_RichBox(t *testing.T) {
	var buf bytes.Buffer
	out := NewOutput(&buf, ModeRich)
	out.Box("Answer", "forty-two")
	assert.Contains(t, buf.String(), "forty-two")
	assert.Contains(t, buf.String(), "╭")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "hello", Truncate("hello", 5))
	assert.Equal(t, "hel…", Truncate("hello", 4))
	assert.Equal(t, "…", Truncate("hello", 1))
	assert.Equal(t, "hello", Truncate("hello", 0))
	assert.Equal(t, "日本…", Truncate("日本語です", 3))
}

func TestProgressBar(t *testing.T) {
	assert.Equal(t, "█████░░░░░  50%", ProgressBar(5, 10, 10))
	assert.Equal(t, "██████████ 100%", ProgressBar(12, 10, 10))
	assert.Equal(t, "░░░░   0%", ProgressBar(0, 0, 4))
}
