// Marketscope - Market Segment Aggregation and Psychographic Inference
// Copyright 2026 R. C. Passos (rcpassos)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rcpassos/marketscope

package orchestrator

import (
	"strings"
	"unicode"

	"github.com/rcpassos/marketscope/internal/models"
)

// Economic-news tone lexicon, Portuguese. Coarse on purpose: the sentiment
// multiplier only nudges the estimate, it does not need phrase-level NLP.
var positiveTerms = map[string]struct{}{
	"crescimento":  {},
	"alta":         {},
	"avanço":       {},
	"melhora":      {},
	"recorde":      {},
	"expansão":     {},
	"otimismo":     {},
	"recuperação":  {},
	"ganho":        {},
	"aumento":      {},
	"valorização":  {},
	"emprego":      {},
	"superávit":    {},
	"aquecimento":  {},
	"confiança":    {},
}

var negativeTerms = map[string]struct{}{
	"queda":         {},
	"crise":         {},
	"recessão":      {},
	"desemprego":    {},
	"inflação":      {},
	"perda":         {},
	"retração":      {},
	"pessimismo":    {},
	"endividamento": {},
	"inadimplência": {},
	"déficit":       {},
	"fechamento":    {},
	"desaceleração": {},
	"calote":        {},
}

// averageSentiment scores each article by its lexicon hits and averages the
// per-article scores into [-1,1]. Articles with no lexicon hit are skipped
// rather than scored neutral; ok is false when nothing was scorable.
func averageSentiment(articles []models.Article) (avg float64, ok bool) {
	sum := 0.0
	scored := 0
	for _, article := range articles {
		score, hit := articleSentiment(article)
		if !hit {
			continue
		}
		sum += score
		scored++
	}
	if scored == 0 {
		return 0, false
	}
	return sum / float64(scored), true
}

// articleSentiment scores one article as (positive-negative)/(positive+negative)
// over its lexicon hits.
func articleSentiment(article models.Article) (float64, bool) {
	positive := 0
	negative := 0
	for _, word := range tokenize(article.Title + " " + article.Body) {
		if _, ok := positiveTerms[word]; ok {
			positive++
		}
		if _, ok := negativeTerms[word]; ok {
			negative++
		}
	}
	total := positive + negative
	if total == 0 {
		return 0, false
	}
	return float64(positive-negative) / float64(total), true
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
}
