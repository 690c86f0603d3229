// Copyright (C) 2025 CodeGuard Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, ":8085", cfg.Server.Listen)
	assert.Equal(t, "python:3.10-slim", cfg.Sandbox.Image)
	assert.Equal(t, 10*time.Second, cfg.Sandbox.Timeout())
	assert.True(t, cfg.LLM.Ollama.Enabled)
	assert.Equal(t, 30, cfg.RateLimit.PerMinute)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  listen: ":9000"
sandbox:
  image: python:3.12-slim
  timeout_seconds: 20
llm:
  ollama:
    model: llama3
    enabled: false
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Server.Listen)
	assert.Equal(t, "python:3.12-slim", cfg.Sandbox.Image)
	assert.Equal(t, 20, cfg.Sandbox.TimeoutSeconds)
	assert.Equal(t, "llama3", cfg.LLM.Ollama.Model)
	assert.False(t, cfg.LLM.Ollama.Enabled)
	// Untouched keys keep their defaults.
	assert.Equal(t, 30, cfg.RateLimit.PerMinute)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  listen: \":9000\"\n"), 0644))

	t.Setenv("CODEGUARD_LISTEN", ":7777")
	t.Setenv("CODEGUARD_DISABLE_DOCKER", "true")
	t.Setenv("CODEGUARD_RATE_LIMIT", "5")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7777", cfg.Server.Listen)
	assert.True(t, cfg.Sandbox.DisableDocker)
	assert.Equal(t, 5, cfg.RateLimit.PerMinute)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	require.Error(t, err)
}

func TestOpenAIConfig_APIKey(t *testing.T) {
	t.Setenv("TEST_OPENAI_KEY", "sk-test")
	cfg := OpenAIConfig{APIKeyEnv: "TEST_OPENAI_KEY"}
	assert.Equal(t, "sk-test", cfg.APIKey())

	assert.Empty(t, OpenAIConfig{}.APIKey())
}
