// Marketscope - Market Segment Aggregation and Psychographic Inference
// Copyright 2026 R. C. Passos (rcpassos)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rcpassos/marketscope

// Package psychographic classifies market segments into behavioral
// archetypes and computes a sentiment index from life-evaluation signals.
// The analyzer is pure computation: it never suspends and never errors on
// missing-but-plausible data, only on malformed input.
package psychographic

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rcpassos/marketscope/internal/models"
)

// Expenditure category identifiers shared with the mapper's POF category
// resolution.
const (
	CategoryFood          = "food"
	CategoryHousing       = "housing"
	CategoryHealth        = "health"
	CategoryDurables      = "durables"
	CategoryCulture       = "culture"
	CategorySports        = "sports"
	CategoryEducation     = "education"
	CategoryApparel       = "apparel"
	CategoryTransport     = "transport"
	CategoryCommunication = "communication"
	CategoryTech          = "tech"
	CategoryTravel        = "travel"
)

// tieEpsilon is the score margin within which archetypes are considered
// tied; ties resolve to the lexicographically smallest identifier.
const tieEpsilon = 0.02

// logisticSteepness scales raw dot-product scores before squashing so a
// single dominant category cannot saturate the score.
const logisticSteepness = 3.0

// archetypeWeights defines each archetype as a weight vector over
// expenditure-delta categories.
var archetypeWeights = map[models.Archetype]map[string]float64{
	models.ArchetypeExperiencial: {
		CategoryTravel:    3.0,
		CategoryCulture:   2.5,
		CategoryTech:      2.0,
		CategorySports:    1.5,
		CategoryEducation: 1.0,
		CategoryFood:      -0.5,
	},
	models.ArchetypeTradicionalista: {
		CategoryFood:    2.5,
		CategoryHousing: 2.0,
		CategoryHealth:  1.0,
		CategoryTravel:  -1.0,
		CategoryTech:    -1.0,
	},
	models.ArchetypePragmatico: {
		CategoryHousing:   1.5,
		CategoryHealth:    2.0,
		CategoryTransport: 1.5,
		CategoryDurables:  1.0,
		CategoryApparel:   -0.5,
	},
	models.ArchetypeConsciente: {
		CategoryHealth:    2.0,
		CategoryEducation: 2.0,
		CategoryFood:      1.0,
		CategoryCulture:   0.5,
		CategoryDurables:  -1.0,
		CategoryApparel:   -1.5,
	},
	models.ArchetypeStatus: {
		CategoryApparel:       2.5,
		CategoryTransport:     2.0,
		CategoryTech:          1.5,
		CategoryDurables:      1.5,
		CategoryCommunication: 1.0,
		CategoryFood:          -1.0,
	},
}

// Signal identifies one categorical life-evaluation question.
type Signal string

const (
	SignalSituationVsYear   Signal = "situacao_12_meses"
	SignalFutureExpectation Signal = "perspectiva_futuro"
	SignalIncomeAdequacy    Signal = "adequacao_renda"
	SignalFinancialStress   Signal = "estresse_financeiro"
)

// signalScores maps each signal's categorical labels to [-1,1].
var signalScores = map[Signal]map[string]float64{
	SignalSituationVsYear: {
		"muito melhor": 1.0,
		"melhor":       0.5,
		"igual":        0.0,
		"pior":         -0.5,
		"muito pior":   -1.0,
	},
	SignalFutureExpectation: {
		"muito otimista":   1.0,
		"otimista":         0.5,
		"neutra":           0.0,
		"pessimista":       -0.5,
		"muito pessimista": -1.0,
	},
	SignalIncomeAdequacy: {
		"sobra dinheiro":     1.0,
		"suficiente":         0.5,
		"justa":              0.0,
		"insuficiente":       -0.5,
		"muito insuficiente": -1.0,
	},
	SignalFinancialStress: {
		"nenhum":     1.0,
		"baixo":      0.5,
		"moderado":   0.0,
		"alto":       -0.5,
		"muito alto": -1.0,
	},
}

// signalWeights carries the relative weight of each signal in the index.
var signalWeights = map[Signal]float64{
	SignalSituationVsYear:   0.3,
	SignalFutureExpectation: 0.3,
	SignalIncomeAdequacy:    0.2,
	SignalFinancialStress:   0.2,
}

// sentimentEmotions and archetypeEmotions feed the profile's
// dominant-emotion list.
var archetypeEmotions = map[models.Archetype][]string{
	models.ArchetypeExperiencial:    {"curiosidade", "entusiasmo", "aventura"},
	models.ArchetypeTradicionalista: {"estabilidade", "seguranca", "nostalgia"},
	models.ArchetypePragmatico:      {"praticidade", "eficiencia", "racionalidade"},
	models.ArchetypeConsciente:      {"responsabilidade", "proposito", "cuidado"},
	models.ArchetypeStatus:          {"ambicao", "aspiracao", "determinacao"},
	models.ArchetypeNeutral:         {"harmonia", "equilibrio", "moderacao"},
}

var archetypeTrends = map[models.Archetype][]string{
	models.ArchetypeExperiencial:    {"consumo de experiencias", "digitalizacao avancada"},
	models.ArchetypeTradicionalista: {"consumo domestico", "fidelidade a marcas"},
	models.ArchetypePragmatico:      {"compra racional", "busca de custo-beneficio"},
	models.ArchetypeConsciente:      {"consumo consciente", "preferencia por sustentaveis"},
	models.ArchetypeStatus:          {"consumo aspiracional", "sensibilidade a marcas"},
	models.ArchetypeNeutral:         {"consumo equilibrado"},
}

// Analyzer computes psychographic profiles.
type Analyzer struct{}

// New creates an Analyzer.
func New() *Analyzer {
	return &Analyzer{}
}

// Analyze classifies a segment's expenditure vector against the national
// baseline and computes its sentiment index.
//
// An empty segment vector yields the neutral archetype with confidence 0,
// never an error; downstream consumers treat confidence 0 as "no signal".
// Malformed vectors (negative proportions, sum above 1) are upstream
// contract violations and do error.
func (a *Analyzer) Analyze(segment, baseline models.ExpenditureVector, signals map[Signal]string) (models.PsychographicProfile, error) {
	if err := segment.Validate(); err != nil {
		return models.PsychographicProfile{}, fmt.Errorf("segment vector: %w", err)
	}
	if err := baseline.Validate(); err != nil {
		return models.PsychographicProfile{}, fmt.Errorf("baseline vector: %w", err)
	}

	sentiment := SentimentIndex(signals)

	if len(segment.Categories) == 0 {
		profile := models.PsychographicProfile{
			Archetype:        models.ArchetypeNeutral,
			Confidence:       0.0,
			SentimentIndex:   sentiment,
			Expenditure:      segment,
			DominantEmotions: emotions(models.ArchetypeNeutral, sentiment),
			BehavioralTrends: trends(models.ArchetypeNeutral, sentiment),
			GeneratedAt:      time.Now().UTC(),
		}
		return profile, nil
	}

	deltas := expenditureDeltas(segment, baseline)
	archetype, confidence := classify(deltas)

	return models.PsychographicProfile{
		Archetype:        archetype,
		Confidence:       confidence,
		SentimentIndex:   sentiment,
		Expenditure:      segment,
		DominantEmotions: emotions(archetype, sentiment),
		BehavioralTrends: trends(archetype, sentiment),
		GeneratedAt:      time.Now().UTC(),
	}, nil
}

// expenditureDeltas computes segment-minus-baseline per category.
// Categories absent from the segment contribute delta 0: no evidence
// either way, not missing data.
func expenditureDeltas(segment, baseline models.ExpenditureVector) map[string]float64 {
	deltas := make(map[string]float64, len(segment.Categories))
	for category, proportion := range segment.Categories {
		deltas[category] = proportion - baseline.Categories[category]
	}
	return deltas
}

// classify scores every archetype against the delta vector and picks the
// winner. Scores within tieEpsilon of the maximum resolve to the
// lexicographically smallest archetype identifier, an explicit tie-break
// rather than map iteration order.
func classify(deltas map[string]float64) (models.Archetype, float64) {
	scores := make(map[models.Archetype]float64, len(archetypeWeights))
	for archetype, weights := range archetypeWeights {
		dot := 0.0
		for category, weight := range weights {
			dot += weight * deltas[category]
		}
		scores[archetype] = logistic(dot)
	}

	ids := make([]models.Archetype, 0, len(scores))
	maxScore := math.Inf(-1)
	for archetype, score := range scores {
		ids = append(ids, archetype)
		if score > maxScore {
			maxScore = score
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, archetype := range ids {
		if maxScore-scores[archetype] <= tieEpsilon {
			return archetype, scores[archetype]
		}
	}
	// Unreachable: the maximum always satisfies the margin.
	return models.ArchetypeNeutral, 0
}

func logistic(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-logisticSteepness*x))
}

// SentimentIndex maps categorical life-evaluation signals to [0,1].
// Unknown labels and absent signals are excluded from the weighted mean
// rather than scored neutral, so partial data does not bias the index.
// With no usable signal at all the index is neutral 0.5.
func SentimentIndex(signals map[Signal]string) float64 {
	weightedSum := 0.0
	weightTotal := 0.0
	for signal, label := range signals {
		table, ok := signalScores[signal]
		if !ok {
			continue
		}
		score, ok := table[label]
		if !ok {
			continue
		}
		w := signalWeights[signal]
		weightedSum += score * w
		weightTotal += w
	}
	if weightTotal == 0 {
		return 0.5
	}
	mean := weightedSum / weightTotal
	return (mean + 1.0) / 2.0
}

// emotions combines the sentiment band's emotions with the archetype's.
func emotions(archetype models.Archetype, sentiment float64) []string {
	var out []string
	switch {
	case sentiment > 0.7:
		out = append(out, "otimismo", "confianca")
	case sentiment < 0.3:
		out = append(out, "preocupacao", "cautela")
	default:
		out = append(out, "moderacao")
	}
	return appendMissing(out, archetypeEmotions[archetype])
}

func trends(archetype models.Archetype, sentiment float64) []string {
	out := append([]string(nil), archetypeTrends[archetype]...)
	switch {
	case sentiment > 0.6:
		out = append(out, "disposicao a gastar")
	case sentiment < 0.4:
		out = append(out, "retracao de consumo")
	}
	return out
}

func appendMissing(list, extra []string) []string {
	for _, v := range extra {
		seen := false
		for _, existing := range list {
			if existing == v {
				seen = true
				break
			}
		}
		if !seen {
			list = append(list, v)
		}
	}
	return list
}
