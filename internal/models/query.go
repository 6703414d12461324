// Marketscope - Market Segment Aggregation and Psychographic Inference
// Copyright 2026 R. C. Passos (rcpassos)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rcpassos/marketscope

// Package models defines data structures shared across the Marketscope engine:
// query plans, provider results, segment estimates and psychographic profiles.
package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/goccy/go-json"
)

// Provider identifies one of the external data providers.
type Provider string

const (
	ProviderSidra  Provider = "sidra"
	ProviderTrends Provider = "trends"
	ProviderNews   Provider = "news"
)

// DataCategory classifies a response for cache TTL selection. Census data
// moves yearly; economic indicators weekly.
type DataCategory string

const (
	CategoryDemographic DataCategory = "demographic"
	CategoryEconomic    DataCategory = "economic"
	CategorySurvey      DataCategory = "survey"
	CategoryCensus      DataCategory = "census"
	CategoryMetadata    DataCategory = "metadata"
)

// Role marks how consequential a spec's result is during aggregation.
// Primary failures cost more confidence than supporting failures.
type Role string

const (
	RolePrimary    Role = "primary"
	RoleSupporting Role = "supporting"
)

// Timeframe is the search-interest window.
type Timeframe string

const (
	TimeframeHour     Timeframe = "now 1-H"
	TimeframeDay      Timeframe = "now 1-d"
	TimeframeWeek     Timeframe = "now 7-d"
	TimeframeMonth    Timeframe = "today 1-m"
	TimeframeQuarter  Timeframe = "today 3-m"
	TimeframeYear     Timeframe = "today 12-m"
	TimeframeFiveYear Timeframe = "today 5-y"
	TimeframeAll      Timeframe = "all"
)

// ConceptKind distinguishes how a concept was extracted upstream.
type ConceptKind string

const (
	KindKeyword ConceptKind = "keyword"
	KindEntity  ConceptKind = "entity"
	KindTopic   ConceptKind = "topic"
)

// Concept is one normalized term produced by the upstream feature extractor.
type Concept struct {
	Term   string      `json:"term"`
	Kind   ConceptKind `json:"kind"`
	Weight float64     `json:"weight"`
}

// Hints carries optional structured hints alongside the concept sequence.
type Hints struct {
	AgeRange string `json:"age_range,omitempty"`
	Location string `json:"location,omitempty"`
}

// Location scopes a statistical query to an IBGE territorial unit.
// Level follows SIDRA territorial levels: 1=nation, 2=region, 3=state,
// 6=municipality, 8/9=district.
type Location struct {
	Level int    `json:"level"`
	Code  string `json:"code"`
}

// QuerySpec is an immutable description of one provider request. Created by
// the concept mapper, dispatched once, discarded after use. Only the fields
// relevant to the spec's Provider are populated.
type QuerySpec struct {
	Provider Provider     `json:"provider"`
	Role     Role         `json:"role"`
	Category DataCategory `json:"category"`

	// Statistical-table fields.
	Table           string              `json:"table,omitempty"`
	Location        Location            `json:"location,omitempty"`
	Variables       []string            `json:"variables,omitempty"`
	Classifications map[string][]string `json:"classifications,omitempty"`
	Period          string              `json:"period,omitempty"`

	// Search-interest fields.
	Terms     []string  `json:"terms,omitempty"`
	Timeframe Timeframe `json:"timeframe,omitempty"`
	Geo       string    `json:"geo,omitempty"`

	// News-scraper fields.
	Domains  []string `json:"domains,omitempty"`
	Query    string   `json:"query,omitempty"`
	DaysBack int      `json:"days_back,omitempty"`
}

// CacheKey returns the canonical cache key for this spec: a sha256 digest of
// the spec's sorted-key JSON form. Field order in struct literals and map
// iteration order cannot change the key.
func (q QuerySpec) CacheKey() string {
	canonical := map[string]any{
		"provider":        q.Provider,
		"role":            q.Role,
		"category":        q.Category,
		"table":           q.Table,
		"location":        q.Location,
		"variables":       q.Variables,
		"classifications": q.Classifications,
		"period":          q.Period,
		"terms":           q.Terms,
		"timeframe":       q.Timeframe,
		"geo":             q.Geo,
		"domains":         q.Domains,
		"query":           q.Query,
		"days_back":       q.DaysBack,
	}
	data, err := json.Marshal(canonical)
	if err != nil {
		// Marshal of plain strings/slices/maps cannot fail; keep a usable
		// key anyway instead of propagating an error through every caller.
		data = []byte(fmt.Sprintf("%v", canonical))
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
