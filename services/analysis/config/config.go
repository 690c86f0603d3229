// Copyright (C) 2025 CodeGuard Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package config loads the analysis service configuration from a YAML
// file with environment-variable overrides on top.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full service configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	Sandbox   SandboxConfig   `yaml:"sandbox"`
	LLM       LLMConfig       `yaml:"llm"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

type ServerConfig struct {
	Listen string `yaml:"listen"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	Dir   string `yaml:"dir"`
	JSON  bool   `yaml:"json"`
}

type SandboxConfig struct {
	Image          string `yaml:"image"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MemoryMB       int    `yaml:"memory_mb"`
	CPUQuota       int    `yaml:"cpu_quota"`
	PidsLimit      int    `yaml:"pids_limit"`
	DisableDocker  bool   `yaml:"disable_docker"`
	PythonBin      string `yaml:"python_bin"`
}

// Timeout returns the sandbox deadline as a duration.
func (s SandboxConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

type LLMConfig struct {
	Ollama      OllamaConfig `yaml:"ollama"`
	OpenAI      OpenAIConfig `yaml:"openai"`
	Attempts    int          `yaml:"attempts"`
	Timeout     int          `yaml:"timeout_seconds"`
	Concurrency int64        `yaml:"concurrency"`
}

type OllamaConfig struct {
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
	Enabled bool   `yaml:"enabled"`
}

type OpenAIConfig struct {
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
	// APIKeyEnv names the environment variable holding the key; the
	// key itself never lives in the file.
	APIKeyEnv string `yaml:"api_key_env"`
	Enabled   bool   `yaml:"enabled"`
}

// APIKey resolves the key from the configured environment variable.
func (o OpenAIConfig) APIKey() string {
	if o.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(o.APIKeyEnv)
}

type RateLimitConfig struct {
	PerMinute int `yaml:"per_minute"`
	Burst     int `yaml:"burst"`
}

// Default returns the configuration used when no file is supplied.
func Default() Config {
	return Config{
		Server:  ServerConfig{Listen: ":8085"},
		Logging: LoggingConfig{Level: "info", JSON: true},
		Sandbox: SandboxConfig{
			Image:          "python:3.10-slim",
			TimeoutSeconds: 10,
			MemoryMB:       128,
			CPUQuota:       50000,
			PidsLimit:      64,
			PythonBin:      "python3",
		},
		LLM: LLMConfig{
			Ollama:      OllamaConfig{BaseURL: "http://localhost:11434", Model: "gpt-oss:20b", Enabled: true},
			OpenAI:      OpenAIConfig{Model: "gpt-4o-mini", APIKeyEnv: "OPENAI_API_KEY"},
			Attempts:    2,
			Timeout:     60,
			Concurrency: 4,
		},
		RateLimit: RateLimitConfig{PerMinute: 30, Burst: 5},
	}
}

// Load reads the YAML file at path (skipped when path is empty) and
// applies environment overrides on top of the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Server.Listen, "CODEGUARD_LISTEN")
	setString(&cfg.Logging.Level, "CODEGUARD_LOG_LEVEL")
	setString(&cfg.Logging.Dir, "CODEGUARD_LOG_DIR")
	setString(&cfg.Sandbox.Image, "CODEGUARD_SANDBOX_IMAGE")
	setBool(&cfg.Sandbox.DisableDocker, "CODEGUARD_DISABLE_DOCKER")
	setInt(&cfg.Sandbox.TimeoutSeconds, "CODEGUARD_SANDBOX_TIMEOUT")
	setString(&cfg.LLM.Ollama.BaseURL, "CODEGUARD_OLLAMA_URL")
	setString(&cfg.LLM.Ollama.Model, "CODEGUARD_OLLAMA_MODEL")
	setBool(&cfg.LLM.Ollama.Enabled, "CODEGUARD_OLLAMA_ENABLED")
	setString(&cfg.LLM.OpenAI.BaseURL, "CODEGUARD_OPENAI_URL")
	setString(&cfg.LLM.OpenAI.Model, "CODEGUARD_OPENAI_MODEL")
	setBool(&cfg.LLM.OpenAI.Enabled, "CODEGUARD_OPENAI_ENABLED")
	setInt(&cfg.RateLimit.PerMinute, "CODEGUARD_RATE_LIMIT")
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
