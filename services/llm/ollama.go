// Copyright (C) 2025 CodeGuard Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rony31416/codeguard-test/pkg/logging"
)

var tracer trace.Tracer = otel.Tracer("codeguard/services/llm")

// OllamaConfig configures the local Ollama backend.
type OllamaConfig struct {
	BaseURL string
	Model   string
	Enabled bool
	Timeout time.Duration
}

// OllamaClient talks to a local Ollama server over its native HTTP API.
//
// Thread Safety: safe for concurrent use; the embedded http.Client
// handles its own connection pooling.
type OllamaClient struct {
	cfg        OllamaConfig
	httpClient *http.Client
	logger     *logging.Logger
}

// NewOllamaClient constructs the client. The enabled flag is decided at
// construction; a disabled client fails every call with ErrDisabled so
// the failover chain moves on without probing a dead socket.
func NewOllamaClient(cfg OllamaConfig, logger *logging.Logger) *OllamaClient {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-oss:20b"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &OllamaClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

func (c *OllamaClient) Name() string { return "ollama" }

type ollamaGenerateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

// Generate calls /api/generate with streaming disabled and returns the
// whole completion.
func (c *OllamaClient) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	ctx, span := tracer.Start(ctx, "OllamaClient.Generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.provider", c.Name()),
		attribute.String("llm.model", c.cfg.Model),
	)

	if !c.cfg.Enabled {
		return "", ErrDisabled
	}

	options := make(map[string]any)
	if params.Temperature != nil {
		options["temperature"] = *params.Temperature
	}
	if params.TopK != nil {
		options["top_k"] = *params.TopK
	}
	if params.TopP != nil {
		options["top_p"] = *params.TopP
	}
	if params.MaxTokens != nil {
		options["num_predict"] = *params.MaxTokens
	}
	if len(params.Stop) > 0 {
		options["stop"] = params.Stop
	}

	payload := ollamaGenerateRequest{
		Model:   c.cfg.Model,
		Prompt:  prompt,
		Stream:  false,
		Options: options,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("marshal ollama request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("build ollama request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "ollama request failed")
		return "", fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("read ollama response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		span.SetStatus(codes.Error, "model not found")
		return "", fmt.Errorf("ollama model %q not found, pull it first", c.cfg.Model)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return "", fmt.Errorf("ollama: %w", ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		span.SetStatus(codes.Error, fmt.Sprintf("ollama status %d", resp.StatusCode))
		return "", fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var gen ollamaGenerateResponse
	if err := json.Unmarshal(respBody, &gen); err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("decode ollama response: %w", err)
	}
	if gen.Error != "" {
		span.SetStatus(codes.Error, gen.Error)
		return "", fmt.Errorf("ollama error: %s", gen.Error)
	}

	c.logger.Debug("ollama generation complete", "model", c.cfg.Model, "chars", len(gen.Response))
	return gen.Response, nil
}

// Alive probes /api/tags with a short deadline. Used by readiness
// checks, never on the request path.
func (c *OllamaClient) Alive(ctx context.Context) bool {
	if !c.cfg.Enabled {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

var _ LLMClient = (*OllamaClient)(nil)
