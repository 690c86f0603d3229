// Copyright (C) 2025 CodeGuard Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/rony31416/codeguard-test/pkg/logging"
)

// OpenAIConfig configures the remote OpenAI-compatible backend. BaseURL
// lets the same client speak to OpenRouter or any other compatible
// gateway.
type OpenAIConfig struct {
	APIKey     string
	Model      string
	BaseURL    string
	Enabled    bool
	SystemRole string
}

// OpenAIClient wraps the go-openai SDK behind the LLMClient interface.
//
// Thread Safety: safe for concurrent use.
type OpenAIClient struct {
	cfg    OpenAIConfig
	client *openai.Client
	logger *logging.Logger
}

// NewOpenAIClient constructs the client from explicit config; there is
// no package-level singleton, callers own the instance.
func NewOpenAIClient(cfg OpenAIConfig, logger *logging.Logger) (*OpenAIClient, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.Enabled && cfg.APIKey == "" {
		return nil, errors.New("llm: openai backend enabled without an API key")
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.SystemRole == "" {
		cfg.SystemRole = "You are a careful code reviewer. Answer only with the JSON requested."
	}

	sdkCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		sdkCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAIClient{
		cfg:    cfg,
		client: openai.NewClientWithConfig(sdkCfg),
		logger: logger,
	}, nil
}

func (c *OpenAIClient) Name() string { return "openai" }

// Generate implements LLMClient via the chat completions endpoint.
func (c *OpenAIClient) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	ctx, span := tracer.Start(ctx, "OpenAIClient.Generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.provider", c.Name()),
		attribute.String("llm.model", c.cfg.Model),
	)

	if !c.cfg.Enabled {
		return "", ErrDisabled
	}

	req := openai.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: c.cfg.SystemRole},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	if params.Temperature != nil {
		req.Temperature = *params.Temperature
	}
	if params.MaxTokens != nil {
		req.MaxCompletionTokens = *params.MaxTokens
	}
	if params.TopP != nil {
		req.TopP = *params.TopP
	}
	if len(params.Stop) > 0 {
		req.Stop = params.Stop
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "chat completion failed")
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
			return "", fmt.Errorf("openai: %w", ErrRateLimited)
		}
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai returned no choices")
	}

	c.logger.Debug("openai generation complete",
		"model", c.cfg.Model,
		"finish_reason", resp.Choices[0].FinishReason)
	return resp.Choices[0].Message.Content, nil
}

var _ LLMClient = (*OpenAIClient)(nil)
