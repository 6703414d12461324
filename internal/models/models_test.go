// Marketscope - Market Segment Aggregation and Psychographic Inference
// Copyright 2026 R. C. Passos (rcpassos)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rcpassos/marketscope

package models

import (
	"reflect"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func TestCacheKeyIsDeterministic(t *testing.T) {
	spec := QuerySpec{
		Provider: ProviderSidra,
		Role:     RolePrimary,
		Category: CategoryDemographic,
		Table:    "6407",
		Location: Location{Level: 1, Code: "all"},
		Variables: []string{
			"93",
		},
		Classifications: map[string][]string{
			"2":   {"4", "5"},
			"287": {"93087", "93088"},
		},
		Period: "last",
	}

	first := spec.CacheKey()
	for i := 0; i < 10; i++ {
		if got := spec.CacheKey(); got != first {
			t.Fatalf("cache key changed between calls: %s vs %s", first, got)
		}
	}
	if len(first) != 64 {
		t.Errorf("cache key should be a hex sha256 digest, got %q", first)
	}
}

func TestCacheKeyDistinguishesSpecs(t *testing.T) {
	base := QuerySpec{Provider: ProviderSidra, Table: "6407", Period: "last"}

	changed := base
	changed.Period = "2022"
	if base.CacheKey() == changed.CacheKey() {
		t.Error("different periods must produce different cache keys")
	}

	otherProvider := base
	otherProvider.Provider = ProviderTrends
	if base.CacheKey() == otherProvider.CacheKey() {
		t.Error("different providers must produce different cache keys")
	}
}

func TestSegmentEstimateRoundTrip(t *testing.T) {
	est := SegmentEstimate{
		RequestID:           "8b9d2c4e-0000-4000-8000-00805f9b34fb",
		DemographicBase:     1250000,
		InterestMultiplier:  0.42,
		SentimentMultiplier: 1.15,
		MarketSize:          603750,
		Confidence:          0.67,
		PerProvider: map[Provider]ProviderOutcome{
			ProviderSidra:  {Status: StatusOK, SampleCount: 12},
			ProviderTrends: {Status: StatusPartial, SampleCount: 3, Summary: "related queries missing"},
			ProviderNews:   {Status: StatusFailed, Error: "circuit open"},
		},
		GeneratedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}

	data, err := json.Marshal(est)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got SegmentEstimate
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(est, got) {
		t.Errorf("round trip changed value:\nbefore: %+v\nafter:  %+v", est, got)
	}
}

func TestPsychographicProfileRoundTrip(t *testing.T) {
	profile := PsychographicProfile{
		Archetype:      ArchetypeExperiencial,
		Confidence:     0.71,
		SentimentIndex: 0.58,
		Expenditure: ExpenditureVector{
			Categories: map[string]float64{"travel": 0.12, "culture": 0.08},
			Filter:     "age:25-34",
		},
		DominantEmotions: []string{"curiosidade", "otimismo"},
		BehavioralTrends: []string{"consumo de experiencias"},
		GeneratedAt:      time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}

	data, err := json.Marshal(profile)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got PsychographicProfile
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(profile, got) {
		t.Errorf("round trip changed value:\nbefore: %+v\nafter:  %+v", profile, got)
	}
}

func TestExpenditureVectorValidate(t *testing.T) {
	tests := []struct {
		name    string
		vector  ExpenditureVector
		wantErr bool
	}{
		{
			name:   "empty vector is valid",
			vector: ExpenditureVector{},
		},
		{
			name: "proportions within bounds",
			vector: ExpenditureVector{
				Categories: map[string]float64{"food": 0.2, "housing": 0.35, "transport": 0.15},
			},
		},
		{
			name: "sum exactly one",
			vector: ExpenditureVector{
				Categories: map[string]float64{"a": 0.5, "b": 0.5},
			},
		},
		{
			name: "negative proportion",
			vector: ExpenditureVector{
				Categories: map[string]float64{"food": -0.1},
			},
			wantErr: true,
		},
		{
			name: "proportion above one",
			vector: ExpenditureVector{
				Categories: map[string]float64{"food": 1.2},
			},
			wantErr: true,
		},
		{
			name: "sum above one",
			vector: ExpenditureVector{
				Categories: map[string]float64{"a": 0.7, "b": 0.6},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.vector.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSampleCount(t *testing.T) {
	result := NormalizedResult{
		Cells:    []TableCell{{Table: "6407"}, {Table: "7482"}},
		Series:   []InterestPoint{{Score: 40}},
		Articles: []Article{{Title: "t"}},
	}
	if got := result.SampleCount(); got != 4 {
		t.Errorf("SampleCount() = %d, want 4", got)
	}
}
