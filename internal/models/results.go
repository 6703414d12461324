// Marketscope - Market Segment Aggregation and Psychographic Inference
// Copyright 2026 R. C. Passos (rcpassos)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rcpassos/marketscope

package models

import (
	"time"
)

// RawResponse is an opaque provider payload returned by the remote client.
type RawResponse struct {
	Provider   Provider     `json:"provider"`
	Category   DataCategory `json:"category"`
	URL        string       `json:"url,omitempty"`
	StatusCode int          `json:"status_code"`
	Body       []byte       `json:"body"`
	FromCache  bool         `json:"from_cache"`
	FetchedAt  time.Time    `json:"fetched_at"`
}

// ProviderStatus reports how one provider's dispatch settled.
type ProviderStatus string

const (
	StatusOK      ProviderStatus = "ok"
	StatusPartial ProviderStatus = "partial"
	StatusFailed  ProviderStatus = "failed"
)

// TableCell is one variable value for one geographic/demographic cell of a
// statistical table.
type TableCell struct {
	Table        string            `json:"table"`
	Variable     string            `json:"variable"`
	VariableName string            `json:"variable_name,omitempty"`
	Value        float64           `json:"value"`
	Unit         string            `json:"unit,omitempty"`
	Location     string            `json:"location,omitempty"`
	Dimensions   map[string]string `json:"dimensions,omitempty"`
	ExtractedAt  time.Time         `json:"extracted_at"`
}

// InterestPoint is one sample of a relative search-interest series.
// Score is 0-100, relative within the series, not absolute volume.
type InterestPoint struct {
	Time  time.Time `json:"time"`
	Score int       `json:"score"`
}

// RelatedQuery is a related search term with its relative value.
type RelatedQuery struct {
	Term  string `json:"term"`
	Value int    `json:"value"`
}

// Article is one scraped news item. Only allow-listed source domains ever
// appear here.
type Article struct {
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	URL         string    `json:"url"`
	Source      string    `json:"source"`
	PublishedAt time.Time `json:"published_at,omitempty"`
}

// NormalizedResult is the provider-neutral parse output of one dispatch.
// Partial marks results degraded by a parse failure; a malformed payload
// yields an empty Partial result, never an error.
type NormalizedResult struct {
	Provider Provider `json:"provider"`
	Partial  bool     `json:"partial"`

	Cells         []TableCell     `json:"cells,omitempty"`
	Series        []InterestPoint `json:"series,omitempty"`
	RelatedTop    []RelatedQuery  `json:"related_top,omitempty"`
	RelatedRising []RelatedQuery  `json:"related_rising,omitempty"`
	Articles      []Article       `json:"articles,omitempty"`
}

// SampleCount reports how many data points the result carries, used to
// weight per-provider confidence.
func (r NormalizedResult) SampleCount() int {
	return len(r.Cells) + len(r.Series) + len(r.Articles)
}

// ProviderOutcome summarizes one provider's contribution to an estimate.
type ProviderOutcome struct {
	Status      ProviderStatus `json:"status"`
	Summary     string         `json:"summary,omitempty"`
	SampleCount int            `json:"sample_count"`
	Error       string         `json:"error,omitempty"`
}

// SegmentEstimate is the merged output of one orchestrator run.
// Immutable once returned.
type SegmentEstimate struct {
	RequestID string `json:"request_id"`

	DemographicBase     float64 `json:"demographic_base"`
	InterestMultiplier  float64 `json:"interest_multiplier"`
	SentimentMultiplier float64 `json:"sentiment_multiplier"`
	MarketSize          float64 `json:"market_size"`
	Confidence          float64 `json:"confidence"`

	PerProvider map[Provider]ProviderOutcome `json:"per_provider"`
	GeneratedAt time.Time                    `json:"generated_at"`
}
