// Marketscope - Market Segment Aggregation and Psychographic Inference
// Copyright 2026 R. C. Passos (rcpassos)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rcpassos/marketscope

package psychographic

import (
	"math"
	"testing"

	"github.com/rcpassos/marketscope/internal/models"
)

func nationalBaseline() models.ExpenditureVector {
	return models.ExpenditureVector{
		Categories: map[string]float64{
			CategoryFood:   0.20,
			CategoryTech:   0.05,
			CategoryTravel: 0.03,
		},
		Filter: "national",
	}
}

func TestTechTravelSegmentIsExperiencial(t *testing.T) {
	segment := models.ExpenditureVector{
		Categories: map[string]float64{
			CategoryFood:   0.15,
			CategoryTech:   0.18,
			CategoryTravel: 0.12,
		},
		Filter: "age:25-34",
	}

	profile, err := New().Analyze(segment, nationalBaseline(), nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if profile.Archetype != models.ArchetypeExperiencial {
		t.Errorf("archetype = %s, want %s", profile.Archetype, models.ArchetypeExperiencial)
	}
	if profile.Confidence <= 0.5 {
		t.Errorf("confidence = %f, want > 0.5", profile.Confidence)
	}
	if len(profile.DominantEmotions) == 0 || len(profile.BehavioralTrends) == 0 {
		t.Error("profile should carry dominant emotions and behavioral trends")
	}
}

func TestEmptyVectorIsNeutralWithZeroConfidence(t *testing.T) {
	profile, err := New().Analyze(models.ExpenditureVector{}, nationalBaseline(), nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if profile.Archetype != models.ArchetypeNeutral {
		t.Errorf("archetype = %s, want %s", profile.Archetype, models.ArchetypeNeutral)
	}
	if profile.Confidence != 0.0 {
		t.Errorf("confidence = %f, want exactly 0.0", profile.Confidence)
	}
}

func TestMalformedVectorsError(t *testing.T) {
	negative := models.ExpenditureVector{Categories: map[string]float64{CategoryFood: -0.1}}
	if _, err := New().Analyze(negative, nationalBaseline(), nil); err == nil {
		t.Error("negative segment proportion must error")
	}
	if _, err := New().Analyze(nationalBaseline(), negative, nil); err == nil {
		t.Error("negative baseline proportion must error")
	}
	overflow := models.ExpenditureVector{Categories: map[string]float64{CategoryFood: 0.7, CategoryTech: 0.6}}
	if _, err := New().Analyze(overflow, nationalBaseline(), nil); err == nil {
		t.Error("proportions summing above 1 must error")
	}
}

func TestTieResolvesLexicographically(t *testing.T) {
	// A segment identical to the baseline scores every archetype 0.5, an
	// all-way tie.
	segment := nationalBaseline()

	for i := 0; i < 20; i++ {
		profile, err := New().Analyze(segment, nationalBaseline(), nil)
		if err != nil {
			t.Fatalf("Analyze: %v", err)
		}
		if profile.Archetype != models.ArchetypeConsciente {
			t.Fatalf("run %d: archetype = %s, want lexicographically smallest (%s)",
				i, profile.Archetype, models.ArchetypeConsciente)
		}
	}
}

func TestNearTieWithinEpsilonPrefersSmallestID(t *testing.T) {
	// Tiny durables delta puts several archetypes within the tie margin of
	// the top score.
	deltas := map[string]float64{CategoryDurables: 0.004}
	archetype, _ := classify(deltas)
	if archetype != models.ArchetypeConsciente {
		t.Errorf("archetype = %s, want %s within epsilon", archetype, models.ArchetypeConsciente)
	}
}

func TestClearWinnerIgnoresEpsilon(t *testing.T) {
	deltas := map[string]float64{CategoryApparel: 0.15, CategoryTransport: 0.10}
	archetype, score := classify(deltas)
	if archetype != models.ArchetypeStatus {
		t.Errorf("archetype = %s, want %s", archetype, models.ArchetypeStatus)
	}
	if score <= 0.5 {
		t.Errorf("score = %f, want > 0.5", score)
	}
}

func TestSentimentIndexAllSignals(t *testing.T) {
	signals := map[Signal]string{
		SignalSituationVsYear:   "melhor",
		SignalFutureExpectation: "otimista",
		SignalIncomeAdequacy:    "suficiente",
		SignalFinancialStress:   "baixo",
	}
	// Every signal scores 0.5, so the weighted mean is 0.5 and the index
	// rescales to 0.75.
	if got := SentimentIndex(signals); math.Abs(got-0.75) > 1e-9 {
		t.Errorf("SentimentIndex = %f, want 0.75", got)
	}
}

func TestSentimentExcludesMissingSignals(t *testing.T) {
	only := map[Signal]string{SignalFutureExpectation: "otimista"}
	if got := SentimentIndex(only); math.Abs(got-0.75) > 1e-9 {
		t.Errorf("single-signal index = %f, want 0.75 (missing signals excluded, not neutral)", got)
	}

	unknown := map[Signal]string{SignalFutureExpectation: "talvez"}
	if got := SentimentIndex(unknown); got != 0.5 {
		t.Errorf("unknown label index = %f, want neutral 0.5", got)
	}

	if got := SentimentIndex(nil); got != 0.5 {
		t.Errorf("no-signal index = %f, want neutral 0.5", got)
	}
}

func TestSentimentBounds(t *testing.T) {
	best := map[Signal]string{
		SignalSituationVsYear:   "muito melhor",
		SignalFutureExpectation: "muito otimista",
		SignalIncomeAdequacy:    "sobra dinheiro",
		SignalFinancialStress:   "nenhum",
	}
	if got := SentimentIndex(best); math.Abs(got-1.0) > 1e-9 {
		t.Errorf("best-case index = %f, want 1.0", got)
	}

	worst := map[Signal]string{
		SignalSituationVsYear:   "muito pior",
		SignalFutureExpectation: "muito pessimista",
		SignalIncomeAdequacy:    "muito insuficiente",
		SignalFinancialStress:   "muito alto",
	}
	if got := SentimentIndex(worst); math.Abs(got) > 1e-9 {
		t.Errorf("worst-case index = %f, want 0.0", got)
	}
}

func TestEmotionsFollowSentimentBand(t *testing.T) {
	high := emotions(models.ArchetypeExperiencial, 0.9)
	if high[0] != "otimismo" {
		t.Errorf("high sentiment emotions = %v", high)
	}
	low := emotions(models.ArchetypeTradicionalista, 0.1)
	if low[0] != "preocupacao" {
		t.Errorf("low sentiment emotions = %v", low)
	}
	mid := emotions(models.ArchetypeNeutral, 0.5)
	if mid[0] != "moderacao" {
		t.Errorf("mid sentiment emotions = %v", mid)
	}
}
