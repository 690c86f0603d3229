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
	"sync"
	"time"

	"github.com/rony31416/codeguard-test/pkg/logging"
)

const (
	defaultAttempts = 2
	baseBackoff     = 500 * time.Millisecond
)

// Failover chains backends in order. Each backend gets a bounded number
// of attempts, with exponential backoff on rate-limit rejections, before
// the next one is tried. A disabled backend is skipped without
// consuming attempts.
//
// Thread Safety: safe for concurrent use; the last-used provider name
// is guarded by a mutex.
type Failover struct {
	providers []LLMClient
	attempts  int
	logger    *logging.Logger

	mu      sync.Mutex
	apiUsed string
}

// FailoverOption customizes a Failover.
type FailoverOption func(*Failover)

// WithAttempts sets the per-provider attempt count.
func WithAttempts(n int) FailoverOption {
	return func(f *Failover) {
		if n > 0 {
			f.attempts = n
		}
	}
}

// NewFailover builds the chain in the given priority order.
func NewFailover(logger *logging.Logger, providers []LLMClient, opts ...FailoverOption) *Failover {
	if logger == nil {
		logger = logging.Default()
	}
	f := &Failover{
		providers: providers,
		attempts:  defaultAttempts,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Failover) Name() string { return "failover" }

// Generate walks the provider chain and returns the first successful
// completion. The winning provider is recorded for APIUsed.
func (f *Failover) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	var lastErr error
	for _, p := range f.providers {
		for attempt := 1; attempt <= f.attempts; attempt++ {
			out, err := p.Generate(ctx, prompt, params)
			if err == nil {
				f.setAPIUsed(p.Name())
				return out, nil
			}
			if errors.Is(err, ErrDisabled) {
				lastErr = err
				break
			}
			lastErr = err
			f.logger.Warn("llm provider attempt failed",
				"provider", p.Name(),
				"attempt", attempt,
				"error", err)
			if attempt == f.attempts {
				break
			}
			if errors.Is(err, ErrRateLimited) {
				backoff := baseBackoff * time.Duration(1<<(attempt-1))
				select {
				case <-ctx.Done():
					return "", ctx.Err()
				case <-time.After(backoff):
				}
			}
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
		}
	}
	if lastErr != nil {
		return "", errors.Join(ErrAllProvidersFailed, lastErr)
	}
	return "", ErrAllProvidersFailed
}

// APIUsed reports which backend produced the most recent successful
// completion, empty before the first success.
func (f *Failover) APIUsed() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.apiUsed
}

func (f *Failover) setAPIUsed(name string) {
	f.mu.Lock()
	f.apiUsed = name
	f.mu.Unlock()
}

// Alive reports whether any backend in the chain is reachable. Backends
// without a liveness probe count as alive when enabled.
func (f *Failover) Alive(ctx context.Context) bool {
	type prober interface {
		Alive(ctx context.Context) bool
	}
	for _, p := range f.providers {
		if pr, ok := p.(prober); ok {
			if pr.Alive(ctx) {
				return true
			}
			continue
		}
		return true
	}
	return false
}

var _ LLMClient = (*Failover)(nil)
