// Marketscope - Market Segment Aggregation and Psychographic Inference
// Copyright 2026 R. C. Passos (rcpassos)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rcpassos/marketscope

package api

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/rcpassos/marketscope/internal/models"
)

var validate = validator.New()

// AnalyzeRequest is the request body for POST /api/v1/analyze. Concepts come
// from the upstream feature extractor; signals are optional categorical
// life-evaluation answers feeding the sentiment index.
type AnalyzeRequest struct {
	Concepts []ConceptRequest  `json:"concepts" validate:"required,min=1,max=50,dive"`
	Hints    HintsRequest      `json:"hints"`
	Signals  map[string]string `json:"signals" validate:"omitempty,max=8"`
}

// ConceptRequest is one concept term in an analyze request.
type ConceptRequest struct {
	Term   string  `json:"term" validate:"required,min=1,max=200"`
	Kind   string  `json:"kind" validate:"omitempty,oneof=keyword entity topic"`
	Weight float64 `json:"weight" validate:"min=0,max=1"`
}

// HintsRequest carries the optional structured hints.
type HintsRequest struct {
	AgeRange string `json:"age_range" validate:"omitempty,max=20"`
	Location string `json:"location" validate:"omitempty,max=100"`
}

// Validate checks the request against its validation tags.
func (r *AnalyzeRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("invalid analyze request: %w", err)
	}
	return nil
}

// ToConcepts converts the request terms to model concepts. A missing kind
// defaults to keyword; a missing weight defaults to 1.
func (r *AnalyzeRequest) ToConcepts() []models.Concept {
	concepts := make([]models.Concept, 0, len(r.Concepts))
	for _, c := range r.Concepts {
		kind := models.ConceptKind(c.Kind)
		if kind == "" {
			kind = models.KindKeyword
		}
		weight := c.Weight
		if weight == 0 {
			weight = 1
		}
		concepts = append(concepts, models.Concept{Term: c.Term, Kind: kind, Weight: weight})
	}
	return concepts
}

// ToHints converts the request hints to model hints.
func (r *AnalyzeRequest) ToHints() models.Hints {
	return models.Hints{AgeRange: r.Hints.AgeRange, Location: r.Hints.Location}
}
