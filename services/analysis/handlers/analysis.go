// Copyright (C) 2025 CodeGuard Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers exposes the analysis pipeline over HTTP.
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/rony31416/codeguard-test/pkg/logging"
	"github.com/rony31416/codeguard-test/pkg/validation"
	"github.com/rony31416/codeguard-test/services/analysis"
	"github.com/rony31416/codeguard-test/services/analysis/classify"
)

var tracer = otel.Tracer("codeguard.analysis.handlers")

// maxCodeBytes bounds submitted snippets; the pipeline targets short
// generated code, not repositories.
const maxCodeBytes = 50 * 1024

// AnalyzeRequest is the submit-analysis body.
type AnalyzeRequest struct {
	Prompt string `json:"prompt" binding:"required"`
	Code   string `json:"code" binding:"required"`
}

// Analyze accepts a snippet, runs the synchronous stages, and returns
// 202 with the preliminary result while the linguistic stage continues
// in the background.
func Analyze(svc *analysis.Service, logger *logging.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = logging.Default()
	}
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "Analyze")
		defer span.End()

		var req AnalyzeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			c.JSON(http.StatusBadRequest, gin.H{"error": bindErrorMessage(err), "code": "invalid_request"})
			return
		}
		if len(req.Code) > maxCodeBytes {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "code exceeds the 50KB limit", "code": "code_too_large"})
			return
		}
		if err := validation.ValidateSnippet(req.Code, maxCodeBytes); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "invalid_code"})
			return
		}

		snap, err := svc.Analyze(ctx, req.Prompt, req.Code)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			logger.Error("analysis failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "code": "analysis_failed"})
			return
		}

		c.JSON(http.StatusAccepted, snap)
	}
}

// bindErrorMessage names the failed fields when the bind error carries
// validator details, so callers learn which key was missing.
func bindErrorMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, strings.ToLower(fe.Field()))
		}
		return "missing or invalid fields: " + strings.Join(fields, ", ")
	}
	return "prompt and code are required"
}

// GetAnalysis polls a run by id. A malformed id cannot name a run, so
// it gets the same 404 a missing one does.
func GetAnalysis(svc *analysis.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if err := validation.ValidateAnalysisID(id); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "analysis not found", "code": "not_found"})
			return
		}
		snap, err := svc.Get(id)
		if err != nil {
			if errors.Is(err, analysis.ErrRunNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "code": "not_found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "code": "internal"})
			return
		}
		c.JSON(http.StatusOK, snap)
	}
}

// ListPatterns serves the static taxonomy reference.
func ListPatterns() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"patterns": classify.Catalog()})
	}
}

// Health reports liveness.
func Health() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// Ready reports whether the pipeline's collaborators are usable. The
// reasoning service being down is not fatal; the fallback verdict
// still answers, so readiness only degrades to a detail field.
func Ready(svc *analysis.Service, llmAlive func() bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		body := gin.H{"status": "ok"}
		if llmAlive != nil {
			body["llm"] = llmAlive()
		}
		c.JSON(http.StatusOK, body)
	}
}
