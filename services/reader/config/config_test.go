// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func envMap(m map[string]string) lookupFunc {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 20, cfg.Agent.MaxIterations)
	assert.Equal(t, 30, cfg.Agent.SingleDocThreshold)
	assert.Equal(t, 50, cfg.Agent.MultiDocThreshold)
	assert.Equal(t, 100, cfg.Agent.PreviewRadius)
}

func TestLoad_CreatesDefaultOnFirstRun(t *testing.T) {
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "deep", ".aleutian", "reader.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ollama", cfg.LLM.Provider)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var onDisk Config
	require.NoError(t, yaml.Unmarshal(data, &onDisk))
	assert.Equal(t, 2*time.Second, onDisk.Agent.SearchTimeout)
	assert.NotContains(t, string(data), "api_key")
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "reader.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
llm:
  provider: openai
  model: gpt-4o
agent:
  max_iterations: 8
  search_timeout: 500ms
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
	assert.Equal(t, 8, cfg.Agent.MaxIterations)
	assert.Equal(t, 500*time.Millisecond, cfg.Agent.SearchTimeout)
	assert.Equal(t, 30, cfg.Agent.SingleDocThreshold)
}

func TestLoad_RejectsInvalid(t *testing.T) {
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "reader.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm:\n  provider: carrier-pigeon\n"), 0644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "invalid configuration")
}

func TestLoad_MalformedYAML(t *testing.T) {
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "reader.yaml")
	require.NoError(t, os.WriteFile(path, []byte("agent: [unclosed"), 0644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "failed to parse")
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("READER_LLM_MODEL=from-dotenv\n"), 0644))
	t.Cleanup(func() { _ = os.Unsetenv("READER_LLM_MODEL") })

	cfg, err := Load(filepath.Join(t.TempDir(), "reader.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.LLM.Model)
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := applyEnv(&cfg, envMap(map[string]string{
		"READER_ADDR":            ":9000",
		"READER_MAX_ITERATIONS":  "5",
		"READER_SEARCH_TIMEOUT":  "3s",
		"READER_LLM_RPS":         "2.5",
		"READER_ARCHIVE_ENABLED": "true",
		"READER_LOG_LEVEL":       "DEBUG",
		"OPENAI_API_KEY":         "sk-test",
		"READER_AUTH_TOKEN":      "hunter2",
	}))
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, 5, cfg.Agent.MaxIterations)
	assert.Equal(t, 3*time.Second, cfg.Agent.SearchTimeout)
	assert.InDelta(t, 2.5, cfg.LLM.RequestsPerSecond, 1e-9)
	assert.True(t, cfg.Archive.Enabled)
	assert.Equal(t, "debug", cfg.Logging.Level)

	key, err := cfg.APIKey.Reveal()
	require.NoError(t, err)
	assert.Equal(t, "sk-test", key)

	token, err := cfg.AuthToken.Reveal()
	require.NoError(t, err)
	assert.Equal(t, "hunter2", token)
}

func TestApplyEnv_ReportsBadValues(t *testing.T) {
	cfg := Default()
	err := applyEnv(&cfg, envMap(map[string]string{
		"READER_MAX_ITERATIONS": "many",
		"READER_SEARCH_TIMEOUT": "soon",
	}))
	require.Error(t, err)
	assert.ErrorContains(t, err, "READER_MAX_ITERATIONS")
	assert.ErrorContains(t, err, "READER_SEARCH_TIMEOUT")
	assert.Equal(t, 20, cfg.Agent.MaxIterations)
}

func TestValidate_ArchivePathRequiredWhenEnabled(t *testing.T) {
	cfg := Default()
	cfg.Archive.Enabled = true
	cfg.Archive.Path = ""
	assert.ErrorContains(t, cfg.Validate(), "required_if")

	cfg.Archive.Path = t.TempDir()
	assert.NoError(t, cfg.Validate())
}

func TestSecret(t *testing.T) {
	assert.Nil(t, NewSecret(""))

	var unset *Secret
	v, err := unset.Reveal()
	require.NoError(t, err)
	assert.Empty(t, v)
	assert.Equal(t, "<unset>", unset.String())

	s := NewSecret("hunter2")
	assert.True(t, s.IsSet())
	assert.Equal(t, "<redacted>", s.String())
	v, err = s.Reveal()
	require.NoError(t, err)
	assert.Equal(t, "hunter2", v)

	v, err = s.Reveal()
	require.NoError(t, err)
	assert.Equal(t, "hunter2", v, "reveal is repeatable")
}
