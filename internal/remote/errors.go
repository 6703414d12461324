// Marketscope - Market Segment Aggregation and Psychographic Inference
// Copyright 2026 R. C. Passos (rcpassos)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rcpassos/marketscope

package remote

import (
	"errors"
	"fmt"

	"github.com/rcpassos/marketscope/internal/models"
)

var (
	// ErrRateLimited reports that the provider's call budget is exhausted
	// and the configured policy is to fail rather than wait.
	ErrRateLimited = errors.New("rate limited")

	// ErrCircuitOpen reports that the provider's circuit breaker is open.
	// No network call was made; callers should not retry.
	ErrCircuitOpen = errors.New("circuit open")

	// ErrTimeout reports that a provider call exceeded its connect or read
	// timeout.
	ErrTimeout = errors.New("provider timeout")

	// ErrAllProvidersFailed is returned by the orchestrator when every
	// dispatched provider failed. Partial failure never produces it.
	ErrAllProvidersFailed = errors.New("all providers failed")
)

// ProviderError is the terminal error after a provider's retry budget is
// exhausted. It wraps the last cause.
type ProviderError struct {
	Provider   models.Provider
	Attempts   int
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s failed after %d attempt(s): %v", e.Provider, e.Attempts, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// httpStatusError is the internal per-attempt failure carrying the HTTP
// status. Terminal client errors (4xx other than 429) skip the retry loop.
type httpStatusError struct {
	status int
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("unexpected HTTP status %d", e.status)
}

func retryable(status int) bool {
	return status == 429 || status >= 500
}
