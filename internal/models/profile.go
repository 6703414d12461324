// Marketscope - Market Segment Aggregation and Psychographic Inference
// Copyright 2026 R. C. Passos (rcpassos)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rcpassos/marketscope

package models

import (
	"fmt"
	"time"
)

// ExpenditureVector maps expenditure-category identifiers to the proportion
// of total household spending, tagged with the demographic filter it was
// computed for. Each proportion is in [0,1] and the proportions sum to <= 1.
type ExpenditureVector struct {
	Categories map[string]float64 `json:"categories"`
	Filter     string             `json:"filter,omitempty"`
}

// proportionSlack absorbs float accumulation error when checking the sum.
const proportionSlack = 1e-9

// Validate reports whether the vector honors its contract. A violation means
// the upstream producer is broken, not that data is merely missing.
func (v ExpenditureVector) Validate() error {
	sum := 0.0
	for category, proportion := range v.Categories {
		if proportion < 0 || proportion > 1 {
			return fmt.Errorf("expenditure category %q has proportion %f outside [0,1]", category, proportion)
		}
		sum += proportion
	}
	if sum > 1+proportionSlack {
		return fmt.Errorf("expenditure proportions sum to %f, must not exceed 1", sum)
	}
	return nil
}

// Archetype identifies one of the five behavioral classifications, plus the
// neutral default used when no expenditure signal exists.
type Archetype string

const (
	ArchetypeConsciente      Archetype = "consciente"
	ArchetypeExperiencial    Archetype = "experiencialista"
	ArchetypePragmatico      Archetype = "pragmatico"
	ArchetypeStatus          Archetype = "status"
	ArchetypeTradicionalista Archetype = "tradicionalista"

	// ArchetypeNeutral is returned with confidence 0 when the segment vector
	// is empty. Consumers must treat it as "no signal", not as an error.
	ArchetypeNeutral Archetype = "equilibrado"
)

// PsychographicProfile is the analyzer's output for one segment.
// Immutable once returned.
type PsychographicProfile struct {
	Archetype      Archetype `json:"archetype"`
	Confidence     float64   `json:"confidence"`
	SentimentIndex float64   `json:"sentiment_index"`

	Expenditure ExpenditureVector `json:"expenditure_vector"`

	DominantEmotions []string `json:"dominant_emotions,omitempty"`
	BehavioralTrends []string `json:"behavioral_trends,omitempty"`

	GeneratedAt time.Time `json:"generated_at"`
}
