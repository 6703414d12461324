// Marketscope - Market Segment Aggregation and Psychographic Inference
// Copyright 2026 R. C. Passos (rcpassos)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rcpassos/marketscope

// Package api exposes the engine over HTTP: POST /api/v1/analyze plus
// health and metrics endpoints. Every response uses the same envelope.
package api

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/rcpassos/marketscope/internal/logging"
)

// APIResponse is the envelope for all API responses.
type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
}

// APIError carries a machine-readable code and a human-readable message.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// Error codes for API responses.
const (
	ErrCodeBadRequest         = "BAD_REQUEST"
	ErrCodeValidationFailed   = "VALIDATION_FAILED"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeTooManyRequests    = "TOO_MANY_REQUESTS"
	ErrCodeUpstreamFailed     = "UPSTREAM_FAILED"
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

func respondJSON(w http.ResponseWriter, status int, body APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Error().Err(err).Msg("failed to encode API response")
	}
}

func respondSuccess(w http.ResponseWriter, status int, data any) {
	respondJSON(w, status, APIResponse{Success: true, Data: data})
}

func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	respondJSON(w, status, APIResponse{
		Success: false,
		Error: &APIError{
			Code:      code,
			Message:   message,
			RequestID: GetRequestID(r.Context()),
		},
	})
}
