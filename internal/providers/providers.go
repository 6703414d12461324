// Marketscope - Market Segment Aggregation and Psychographic Inference
// Copyright 2026 R. C. Passos (rcpassos)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rcpassos/marketscope

// Package providers contains the three provider adapters: the SIDRA
// statistical-table adapter, the search-interest adapter and the news
// scraper. Adapters translate QuerySpecs into provider-specific HTTP
// requests and parse raw responses into provider-neutral results; all
// transport concerns live in the remote client.
//
// Parse never returns an error: a malformed payload degrades to an empty
// NormalizedResult with Partial set, so one bad item cannot abort a
// provider call.
package providers

import (
	"context"
	"net/http"

	"github.com/rcpassos/marketscope/internal/models"
)

// Adapter is the common capability of all three provider variants.
type Adapter interface {
	// Provider identifies the adapter's provider.
	Provider() models.Provider

	// BuildRequest turns a QuerySpec into the provider's HTTP request.
	// Used as the remote client's RequestBuilder.
	BuildRequest(ctx context.Context, spec models.QuerySpec) (*http.Request, error)

	// Parse converts a raw response into a NormalizedResult.
	Parse(raw models.RawResponse) models.NormalizedResult
}

// partial returns the degraded empty result for a provider.
func partial(p models.Provider) models.NormalizedResult {
	return models.NormalizedResult{Provider: p, Partial: true}
}
