// Marketscope - Market Segment Aggregation and Psychographic Inference
// Copyright 2026 R. C. Passos (rcpassos)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rcpassos/marketscope

// Package orchestrator dispatches query plans to the providers concurrently
// and merges whatever settled into one SegmentEstimate.
//
// Failures are isolated per provider: a failed or unsettled provider
// contributes neutral multipliers and lowers confidence, it never aborts the
// run. Only the total loss of every provider raises ErrAllProvidersFailed.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rcpassos/marketscope/internal/config"
	"github.com/rcpassos/marketscope/internal/logging"
	"github.com/rcpassos/marketscope/internal/metrics"
	"github.com/rcpassos/marketscope/internal/models"
	"github.com/rcpassos/marketscope/internal/providers"
	"github.com/rcpassos/marketscope/internal/remote"
)

// Fetcher resolves one QuerySpec into a raw provider response. Satisfied by
// *remote.Client.
type Fetcher interface {
	Fetch(ctx context.Context, spec models.QuerySpec) (models.RawResponse, error)
}

// Orchestrator fans query specs out to the providers and merges the results.
type Orchestrator struct {
	cfg      config.OrchestratorConfig
	fetchers map[models.Provider]Fetcher
	adapters map[models.Provider]providers.Adapter

	log zerolog.Logger
}

// New builds an Orchestrator over the given per-provider fetchers and
// adapters.
func New(cfg config.OrchestratorConfig, fetchers map[models.Provider]Fetcher, adapters map[models.Provider]providers.Adapter) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		fetchers: fetchers,
		adapters: adapters,
		log:      logging.With().Str("component", "orchestrator").Logger(),
	}
}

// SpecResult pairs one settled spec with its parsed result.
type SpecResult struct {
	Spec   models.QuerySpec
	Result models.NormalizedResult
}

// Results carries the merged estimate together with the settled per-spec
// results for downstream analysis.
type Results struct {
	Estimate models.SegmentEstimate
	Settled  []SpecResult
}

// providerRun collects everything one provider produced during a run.
type providerRun struct {
	outcome models.ProviderOutcome
	results []SpecResult
}

// Run dispatches the specs and returns the merged estimate. It fails only
// with ErrAllProvidersFailed; any partial success produces an estimate.
func (o *Orchestrator) Run(ctx context.Context, specs []models.QuerySpec) (models.SegmentEstimate, error) {
	results, err := o.RunCollect(ctx, specs)
	if err != nil {
		return models.SegmentEstimate{}, err
	}
	return results.Estimate, nil
}

// RunCollect dispatches the specs grouped by provider, joins under the
// configured deadline and merges the settled results into a SegmentEstimate,
// keeping the per-spec results alongside it.
func (o *Orchestrator) RunCollect(ctx context.Context, specs []models.QuerySpec) (Results, error) {
	start := time.Now()
	requestID := uuid.NewString()
	log := o.log.With().Str("request_id", requestID).Logger()

	if len(specs) == 0 {
		metrics.AnalysisRuns.WithLabelValues("failed").Inc()
		return Results{}, fmt.Errorf("%w: empty query plan", remote.ErrAllProvidersFailed)
	}

	runCtx, cancel := context.WithTimeout(ctx, o.cfg.Deadline)
	defer cancel()

	groups := groupByProvider(specs)
	log.Info().Int("specs", len(specs)).Int("providers", len(groups)).Msg("analysis run started")

	var (
		mu   sync.Mutex
		runs = make(map[models.Provider]*providerRun, len(groups))
		wg   sync.WaitGroup
	)
	for provider, group := range groups {
		wg.Add(1)
		go func(provider models.Provider, group []models.QuerySpec) {
			defer wg.Done()
			run := o.dispatch(runCtx, provider, group)
			mu.Lock()
			runs[provider] = run
			mu.Unlock()
		}(provider, group)
	}
	wg.Wait()

	estimate, err := o.merge(requestID, runs)
	elapsed := time.Since(start)
	if err != nil {
		metrics.AnalysisRuns.WithLabelValues("failed").Inc()
		log.Error().Err(err).Dur("elapsed", elapsed).Msg("analysis run failed")
		return Results{}, err
	}

	metrics.AnalysisDuration.Observe(elapsed.Seconds())
	metrics.AnalysisConfidence.Observe(estimate.Confidence)
	metrics.AnalysisRuns.WithLabelValues(completeness(runs)).Inc()
	log.Info().
		Dur("elapsed", elapsed).
		Float64("market_size", estimate.MarketSize).
		Float64("confidence", estimate.Confidence).
		Msg("analysis run finished")

	return Results{Estimate: estimate, Settled: settledResults(runs)}, nil
}

// dispatch settles every spec of one provider sequentially. The remote
// client already paces individual calls; per-provider parallelism would only
// fight its limiter.
func (o *Orchestrator) dispatch(ctx context.Context, provider models.Provider, specs []models.QuerySpec) *providerRun {
	fetcher, okF := o.fetchers[provider]
	adapter, okA := o.adapters[provider]
	if !okF || !okA {
		return &providerRun{outcome: models.ProviderOutcome{
			Status: models.StatusFailed,
			Error:  fmt.Sprintf("provider %s not configured", provider),
		}}
	}

	run := &providerRun{}
	var (
		succeeded   int
		failed      int
		partialSeen bool
		lastErr     error
		samples     int
	)

	for _, spec := range specs {
		raw, err := fetcher.Fetch(ctx, spec)
		if err != nil {
			failed++
			lastErr = err
			o.log.Warn().Err(err).Str("provider", string(provider)).Msg("spec dispatch failed")
			continue
		}

		result := adapter.Parse(raw)
		stampTable(&result, spec)
		// Stale articles must not drive the sentiment multiplier.
		result.Articles = providers.WithinWindow(result.Articles, spec.DaysBack, time.Now())
		if result.Partial {
			partialSeen = true
		}
		succeeded++
		samples += result.SampleCount()
		run.results = append(run.results, SpecResult{Spec: spec, Result: result})
	}

	switch {
	case succeeded == 0:
		run.outcome = models.ProviderOutcome{
			Status: models.StatusFailed,
			Error:  lastErr.Error(),
		}
	case failed > 0 || partialSeen:
		run.outcome = models.ProviderOutcome{
			Status:      models.StatusPartial,
			Summary:     fmt.Sprintf("%d/%d queries settled", succeeded, len(specs)),
			SampleCount: samples,
		}
		if lastErr != nil {
			run.outcome.Error = lastErr.Error()
		}
	default:
		run.outcome = models.ProviderOutcome{
			Status:      models.StatusOK,
			Summary:     fmt.Sprintf("%d/%d queries settled", succeeded, len(specs)),
			SampleCount: samples,
		}
	}
	return run
}

// merge folds the per-provider runs into the final estimate.
func (o *Orchestrator) merge(requestID string, runs map[models.Provider]*providerRun) (models.SegmentEstimate, error) {
	perProvider := make(map[models.Provider]models.ProviderOutcome, len(runs))
	anySuccess := false
	anyDegraded := false
	for provider, run := range runs {
		perProvider[provider] = run.outcome
		switch run.outcome.Status {
		case models.StatusFailed:
			anyDegraded = true
		case models.StatusPartial:
			anySuccess = true
			anyDegraded = true
		default:
			anySuccess = true
		}
	}
	if !anySuccess {
		return models.SegmentEstimate{}, fmt.Errorf("%w: %d provider(s) dispatched", remote.ErrAllProvidersFailed, len(runs))
	}

	base := demographicBase(runs[models.ProviderSidra])
	interest := o.interestMultiplier(runs[models.ProviderTrends])
	sentiment := o.sentimentMultiplier(runs[models.ProviderNews])

	confidence := 1.0
	for _, run := range runs {
		confidence *= outcomeWeight(run.outcome)
	}
	confidence = clamp(confidence, 0, 1)
	if anyDegraded && confidence < o.cfg.PartialConfidenceFloor {
		confidence = o.cfg.PartialConfidenceFloor
	}

	return models.SegmentEstimate{
		RequestID:           requestID,
		DemographicBase:     base,
		InterestMultiplier:  interest,
		SentimentMultiplier: sentiment,
		MarketSize:          base * interest * sentiment,
		Confidence:          confidence,
		PerProvider:         perProvider,
		GeneratedAt:         time.Now().UTC(),
	}, nil
}

// demographicBase sums the cell values of the primary statistical results.
func demographicBase(run *providerRun) float64 {
	if run == nil {
		return 0
	}
	total := 0.0
	for _, sr := range run.results {
		if sr.Spec.Role != models.RolePrimary {
			continue
		}
		for _, cell := range sr.Result.Cells {
			total += cell.Value
		}
	}
	return total
}

// interestMultiplier is the mean relative interest score scaled to [0,1].
// Without usable series the multiplier is neutral.
func (o *Orchestrator) interestMultiplier(run *providerRun) float64 {
	if run == nil {
		return 1.0
	}
	sum := 0
	n := 0
	for _, sr := range run.results {
		for _, point := range sr.Result.Series {
			sum += point.Score
			n++
		}
	}
	if n == 0 {
		return 1.0
	}
	return clamp(float64(sum)/float64(n)/100.0, 0, o.cfg.InterestClampMax)
}

// sentimentMultiplier converts the average article sentiment in [-1,1] to a
// bounded multiplier. Without scorable articles the multiplier is neutral.
func (o *Orchestrator) sentimentMultiplier(run *providerRun) float64 {
	if run == nil {
		return 1.0
	}
	var articles []models.Article
	for _, sr := range run.results {
		articles = append(articles, sr.Result.Articles...)
	}
	avg, ok := averageSentiment(articles)
	if !ok {
		return 1.0
	}
	m := 1.0 + avg
	if m < 0.5 {
		m = 0.5
	}
	return clamp(m, 0.5, o.cfg.SentimentClampMax)
}

// outcomeWeight derives a confidence factor from one provider outcome.
// Sample-rich successes approach 1; failures carry a fixed penalty.
func outcomeWeight(o models.ProviderOutcome) float64 {
	switch o.Status {
	case models.StatusOK:
		return 0.7 + 0.3*sampleSaturation(o.SampleCount)
	case models.StatusPartial:
		return 0.4 + 0.3*sampleSaturation(o.SampleCount)
	default:
		return 0.25
	}
}

// sampleSaturation grows toward 1 with the sample count, half-saturating at
// ten samples.
func sampleSaturation(n int) float64 {
	if n <= 0 {
		return 0
	}
	return float64(n) / float64(n+10)
}

// stampTable tags statistical cells with the spec's table code; the parser
// cannot know it because the payload does not echo the table.
func stampTable(result *models.NormalizedResult, spec models.QuerySpec) {
	for i := range result.Cells {
		if result.Cells[i].Table == "" {
			result.Cells[i].Table = spec.Table
		}
	}
}

// settledResults flattens the per-provider runs in a fixed provider order.
func settledResults(runs map[models.Provider]*providerRun) []SpecResult {
	var settled []SpecResult
	for _, provider := range []models.Provider{models.ProviderSidra, models.ProviderTrends, models.ProviderNews} {
		if run, ok := runs[provider]; ok {
			settled = append(settled, run.results...)
		}
	}
	return settled
}

func groupByProvider(specs []models.QuerySpec) map[models.Provider][]models.QuerySpec {
	groups := make(map[models.Provider][]models.QuerySpec)
	for _, spec := range specs {
		groups[spec.Provider] = append(groups[spec.Provider], spec)
	}
	return groups
}

func completeness(runs map[models.Provider]*providerRun) string {
	for _, run := range runs {
		if run.outcome.Status != models.StatusOK {
			return "partial"
		}
	}
	return "complete"
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
