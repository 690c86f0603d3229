// Copyright (C) 2025 CodeGuard Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package llm provides the language-model clients used by the semantic
// analysis layer: a local Ollama backend, an OpenAI-compatible remote
// backend, and a failover wrapper that chains them.
package llm

import (
	"context"
	"errors"
)

// GenerationParams carries per-call sampling knobs. Nil pointers mean
// "use the backend default".
type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopK        *int     `json:"top_k"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
}

// LLMClient is the interface every backend implements.
type LLMClient interface {
	// Generate produces a completion for the prompt.
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)

	// Name identifies the backend in logs and verdict attribution.
	Name() string
}

// ErrAllProvidersFailed is returned by the failover client when every
// configured backend has been exhausted.
var ErrAllProvidersFailed = errors.New("llm: all providers failed")

// ErrRateLimited marks a transient quota rejection; callers back off
// and retry instead of failing over immediately.
var ErrRateLimited = errors.New("llm: rate limited")

// ErrDisabled is returned by a backend that was constructed with its
// enabled flag off.
var ErrDisabled = errors.New("llm: provider disabled")

// Temp returns a pointer to t, for building GenerationParams inline.
func Temp(t float32) *float32 { return &t }

// Tokens returns a pointer to n, for building GenerationParams inline.
func Tokens(n int) *int { return &n }
