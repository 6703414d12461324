// Marketscope - Market Segment Aggregation and Psychographic Inference
// Copyright 2026 R. C. Passos (rcpassos)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rcpassos/marketscope

package providers

import (
	"context"
	"testing"

	"github.com/rcpassos/marketscope/internal/models"
)

func TestNewInterestQueryCapsTerms(t *testing.T) {
	terms := []string{"a", "b", "c", "d", "e", "f", "g"}
	spec := NewInterestQuery(terms, "", "")

	if len(spec.Terms) != MaxInterestTerms {
		t.Errorf("terms = %d, want capped at %d", len(spec.Terms), MaxInterestTerms)
	}
	if spec.Terms[0] != "a" || spec.Terms[4] != "e" {
		t.Errorf("cap must keep the highest-priority terms, got %v", spec.Terms)
	}
	if spec.Geo != "BR" {
		t.Errorf("geo default = %s, want BR", spec.Geo)
	}
	if spec.Timeframe != models.TimeframeQuarter {
		t.Errorf("timeframe default = %s, want quarter", spec.Timeframe)
	}
}

func TestTrendsBuildRequest(t *testing.T) {
	adapter := NewTrendsAdapter("https://trends.example.com")

	spec := NewInterestQuery([]string{"tenis de corrida", "corrida de rua"}, models.TimeframeYear, "BR")
	req, err := adapter.BuildRequest(context.Background(), spec)
	if err != nil {
		t.Fatalf("BuildRequest: %v", err)
	}
	q := req.URL.Query()
	if q.Get("terms") != "tenis de corrida,corrida de rua" {
		t.Errorf("terms = %q", q.Get("terms"))
	}
	if q.Get("timeframe") != string(models.TimeframeYear) {
		t.Errorf("timeframe = %q", q.Get("timeframe"))
	}

	if _, err := adapter.BuildRequest(context.Background(), models.QuerySpec{Provider: models.ProviderTrends}); err == nil {
		t.Error("empty term list must be rejected")
	}
}

const interestResponse = `{
  "columns": ["date", "tenis de corrida"],
  "data": [
    ["2026-05-03", 41],
    ["2026-05-10", 55],
    ["2026-05-17", 62]
  ],
  "related_queries": {
    "tenis de corrida": {
      "top": [{"query": "tenis corrida masculino", "value": 100}],
      "rising": [{"query": "tenis corrida barato", "value": 250}]
    }
  }
}`

func TestTrendsParse(t *testing.T) {
	adapter := NewTrendsAdapter("https://trends.example.com")

	result := adapter.Parse(models.RawResponse{Provider: models.ProviderTrends, Body: []byte(interestResponse)})
	if result.Partial {
		t.Error("well-formed response should not be partial")
	}
	if len(result.Series) != 3 {
		t.Fatalf("series = %d, want 3", len(result.Series))
	}
	if result.Series[1].Score != 55 {
		t.Errorf("score[1] = %d, want 55", result.Series[1].Score)
	}
	if len(result.RelatedTop) != 1 || result.RelatedTop[0].Term != "tenis corrida masculino" {
		t.Errorf("related top = %v", result.RelatedTop)
	}
	if len(result.RelatedRising) != 1 || result.RelatedRising[0].Value != 250 {
		t.Errorf("related rising = %v", result.RelatedRising)
	}
}

func TestTrendsParseDegradesPerRow(t *testing.T) {
	adapter := NewTrendsAdapter("https://trends.example.com")

	// One bad score and one bad date; the good rows survive.
	body := `{
	  "columns": ["date", "t"],
	  "data": [
	    ["2026-05-03", 41],
	    ["2026-05-10", 180],
	    ["not a date", 12],
	    ["2026-05-24", 33]
	  ]
	}`
	result := adapter.Parse(models.RawResponse{Body: []byte(body)})
	if !result.Partial {
		t.Error("bad rows must mark the result partial")
	}
	if len(result.Series) != 2 {
		t.Errorf("series = %d, want the 2 valid rows", len(result.Series))
	}
}

func TestTrendsParseMalformedIsPartial(t *testing.T) {
	adapter := NewTrendsAdapter("https://trends.example.com")

	for _, body := range []string{"not json", `{"columns":["date"]}`, `{"columns":["date","t"],"data":[]}`} {
		result := adapter.Parse(models.RawResponse{Body: []byte(body)})
		if !result.Partial || len(result.Series) != 0 {
			t.Errorf("body %q: want empty partial result, got %+v", body, result)
		}
	}
}
