// Copyright (C) 2025 CodeGuard Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/rony31416/codeguard-test/pkg/logging"
	"github.com/rony31416/codeguard-test/services/analysis"
	"github.com/rony31416/codeguard-test/services/analysis/cascade"
	"github.com/rony31416/codeguard-test/services/analysis/config"
	"github.com/rony31416/codeguard-test/services/analysis/routes"
	"github.com/rony31416/codeguard-test/services/analysis/sandbox"
	"github.com/rony31416/codeguard-test/services/llm"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the analysis HTTP service",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := logging.New(logging.Config{
		Level:   logging.ParseLevel(cfg.Logging.Level),
		LogDir:  cfg.Logging.Dir,
		Service: "codeguard",
		JSON:    cfg.Logging.JSON,
	})
	defer logger.Close()

	cleanup, err := initTracer(context.Background(), logger)
	if err != nil {
		return err
	}
	defer cleanup(context.Background())

	executor := sandbox.NewExecutor(sandbox.Config{
		Image:         cfg.Sandbox.Image,
		Timeout:       cfg.Sandbox.Timeout(),
		MemoryMB:      cfg.Sandbox.MemoryMB,
		CPUQuota:      cfg.Sandbox.CPUQuota,
		PidsLimit:     cfg.Sandbox.PidsLimit,
		PythonBin:     cfg.Sandbox.PythonBin,
		DisableDocker: cfg.Sandbox.DisableDocker,
	}, logger)

	reasoner := buildReasoner(cfg, logger)
	analyzer := cascade.NewAnalyzer(reasoner, logger,
		cascade.WithSemanticConcurrency(cfg.LLM.Concurrency),
		cascade.WithSemanticTimeout(time.Duration(cfg.LLM.Timeout)*time.Second))

	svc := analysis.NewService(executor, analyzer, logger, nil)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	routes.SetupRoutes(router, svc, logger, routes.Options{
		RateLimitPerMinute: cfg.RateLimit.PerMinute,
		RateLimitBurst:     cfg.RateLimit.Burst,
		LLMAlive: func() bool {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			return reasoner.Alive(ctx)
		},
	})

	srv := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("analysis service listening", "addr", cfg.Server.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}
	if err := svc.Shutdown(shutdownCtx); err != nil {
		logger.Error("background tasks did not drain", "error", err)
	}
	return nil
}

// buildReasoner assembles the provider chain: local Ollama first, the
// OpenAI-compatible remote second. Enabled state is fixed here, at
// construction.
func buildReasoner(cfg config.Config, logger *logging.Logger) *llm.Failover {
	providers := []llm.LLMClient{
		llm.NewOllamaClient(llm.OllamaConfig{
			BaseURL: cfg.LLM.Ollama.BaseURL,
			Model:   cfg.LLM.Ollama.Model,
			Enabled: cfg.LLM.Ollama.Enabled,
		}, logger),
	}

	openaiEnabled := cfg.LLM.OpenAI.Enabled && cfg.LLM.OpenAI.APIKey() != ""
	if client, err := llm.NewOpenAIClient(llm.OpenAIConfig{
		APIKey:  cfg.LLM.OpenAI.APIKey(),
		Model:   cfg.LLM.OpenAI.Model,
		BaseURL: cfg.LLM.OpenAI.BaseURL,
		Enabled: openaiEnabled,
	}, logger); err != nil {
		logger.Warn("secondary reasoning provider unavailable", "error", err)
	} else {
		providers = append(providers, client)
	}

	return llm.NewFailover(logger, providers, llm.WithAttempts(cfg.LLM.Attempts))
}
