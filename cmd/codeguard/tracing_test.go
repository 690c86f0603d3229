// Copyright (C) 2025 CodeGuard Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/rony31416/codeguard-test/pkg/logging"
)

func TestInitTracer_InstallsGlobalProvider(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")

	cleanup, err := initTracer(context.Background(), logging.Default())
	require.NoError(t, err)
	defer cleanup(context.Background())

	// The global provider must be the SDK one, not the API's no-op
	// default, or every span in the service is inert.
	_, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider)
	assert.True(t, ok)
	assert.NotNil(t, otel.GetTextMapPropagator())
}
