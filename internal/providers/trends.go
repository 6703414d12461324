// Marketscope - Market Segment Aggregation and Psychographic Inference
// Copyright 2026 R. C. Passos (rcpassos)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rcpassos/marketscope

package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/rcpassos/marketscope/internal/logging"
	"github.com/rcpassos/marketscope/internal/models"
)

// MaxInterestTerms is the provider's hard cap on terms per call.
const MaxInterestTerms = 5

// NewInterestQuery builds a search-interest QuerySpec. Terms beyond the
// provider's 5-term cap are dropped, keeping the highest-priority ones
// (callers pass terms in priority order).
func NewInterestQuery(terms []string, timeframe models.Timeframe, geo string) models.QuerySpec {
	if len(terms) > MaxInterestTerms {
		terms = terms[:MaxInterestTerms]
	}
	if timeframe == "" {
		timeframe = models.TimeframeQuarter
	}
	if geo == "" {
		geo = "BR"
	}
	return models.QuerySpec{
		Provider:  models.ProviderTrends,
		Role:      models.RoleSupporting,
		Category:  models.CategoryMetadata,
		Terms:     terms,
		Timeframe: timeframe,
		Geo:       geo,
	}
}

// interestPayload is the wire shape of an interest response: a columns/data
// frame whose first column is the date, one column per term, plus optional
// related-query lists keyed by term.
type interestPayload struct {
	Columns        []string                `json:"columns"`
	Data           [][]json.RawMessage     `json:"data"`
	RelatedQueries map[string]relatedLists `json:"related_queries"`
}

type relatedLists struct {
	Top    []relatedEntry `json:"top"`
	Rising []relatedEntry `json:"rising"`
}

type relatedEntry struct {
	Query string `json:"query"`
	Value int    `json:"value"`
}

// TrendsAdapter is the search-interest adapter.
type TrendsAdapter struct {
	baseURL string
}

// NewTrendsAdapter creates a search-interest adapter against the given base
// URL.
func NewTrendsAdapter(baseURL string) *TrendsAdapter {
	return &TrendsAdapter{baseURL: strings.TrimRight(baseURL, "/")}
}

func (a *TrendsAdapter) Provider() models.Provider {
	return models.ProviderTrends
}

func (a *TrendsAdapter) BuildRequest(ctx context.Context, spec models.QuerySpec) (*http.Request, error) {
	if len(spec.Terms) == 0 {
		return nil, fmt.Errorf("interest query needs at least one term")
	}
	if len(spec.Terms) > MaxInterestTerms {
		return nil, fmt.Errorf("interest query allows at most %d terms, got %d", MaxInterestTerms, len(spec.Terms))
	}

	q := url.Values{}
	q.Set("terms", strings.Join(spec.Terms, ","))
	q.Set("timeframe", string(spec.Timeframe))
	q.Set("geo", spec.Geo)

	return http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/api/interest?"+q.Encode(), nil)
}

// Parse converts an interest frame into a score series plus related-query
// lists. Scores are 0-100 and relative within the series, never absolute
// volume. A frame with fewer than two columns is malformed.
func (a *TrendsAdapter) Parse(raw models.RawResponse) models.NormalizedResult {
	var payload interestPayload
	if err := json.Unmarshal(raw.Body, &payload); err != nil || len(payload.Columns) < 2 {
		logging.Warn().Err(err).Msg("malformed interest response, degrading to partial")
		return partial(models.ProviderTrends)
	}

	result := models.NormalizedResult{Provider: models.ProviderTrends}

	for _, row := range payload.Data {
		if len(row) != len(payload.Columns) {
			result.Partial = true
			continue
		}
		var dateStr string
		if err := json.Unmarshal(row[0], &dateStr); err != nil {
			result.Partial = true
			continue
		}
		ts, ok := parseInterestDate(dateStr)
		if !ok {
			result.Partial = true
			continue
		}
		for i := 1; i < len(row); i++ {
			var score int
			if err := json.Unmarshal(row[i], &score); err != nil {
				result.Partial = true
				continue
			}
			if score < 0 || score > 100 {
				result.Partial = true
				continue
			}
			result.Series = append(result.Series, models.InterestPoint{Time: ts, Score: score})
		}
	}

	for _, term := range payload.Columns[1:] {
		lists, ok := payload.RelatedQueries[term]
		if !ok {
			continue
		}
		for _, e := range lists.Top {
			result.RelatedTop = append(result.RelatedTop, models.RelatedQuery{Term: e.Query, Value: e.Value})
		}
		for _, e := range lists.Rising {
			result.RelatedRising = append(result.RelatedRising, models.RelatedQuery{Term: e.Query, Value: e.Value})
		}
	}

	if len(result.Series) == 0 {
		return partial(models.ProviderTrends)
	}
	return result
}

var interestDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseInterestDate(s string) (time.Time, bool) {
	for _, layout := range interestDateLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
