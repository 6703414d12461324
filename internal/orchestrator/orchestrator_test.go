// Marketscope - Market Segment Aggregation and Psychographic Inference
// Copyright 2026 R. C. Passos (rcpassos)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rcpassos/marketscope

package orchestrator

import (
	"context"
	"errors"
	"math"
	"net/http"
	"testing"
	"time"

	"github.com/rcpassos/marketscope/internal/config"
	"github.com/rcpassos/marketscope/internal/models"
	"github.com/rcpassos/marketscope/internal/providers"
	"github.com/rcpassos/marketscope/internal/remote"
)

func testConfig() config.OrchestratorConfig {
	return config.OrchestratorConfig{
		Deadline:               5 * time.Second,
		InterestClampMax:       1.0,
		SentimentClampMax:      2.0,
		PartialConfidenceFloor: 0.1,
	}
}

type fakeFetcher struct {
	err   error
	calls int
}

func (f *fakeFetcher) Fetch(_ context.Context, spec models.QuerySpec) (models.RawResponse, error) {
	f.calls++
	if f.err != nil {
		return models.RawResponse{}, f.err
	}
	return models.RawResponse{Provider: spec.Provider, Category: spec.Category, StatusCode: 200}, nil
}

type fakeAdapter struct {
	provider models.Provider
	result   models.NormalizedResult
}

func (a fakeAdapter) Provider() models.Provider { return a.provider }

func (a fakeAdapter) BuildRequest(ctx context.Context, _ models.QuerySpec) (*http.Request, error) {
	return http.NewRequestWithContext(ctx, http.MethodGet, "http://unused.invalid", nil)
}

func (a fakeAdapter) Parse(models.RawResponse) models.NormalizedResult { return a.result }

func threeProviderSpecs() []models.QuerySpec {
	return []models.QuerySpec{
		{Provider: models.ProviderSidra, Table: providers.TablePopulation, Role: models.RolePrimary, Category: models.CategoryDemographic},
		{Provider: models.ProviderTrends, Terms: []string{"tênis"}, Category: models.CategoryMetadata},
		{Provider: models.ProviderNews, Query: "economia", Category: models.CategoryMetadata},
	}
}

func healthyResults() map[models.Provider]models.NormalizedResult {
	return map[models.Provider]models.NormalizedResult{
		models.ProviderSidra: {
			Provider: models.ProviderSidra,
			Cells:    []models.TableCell{{Variable: "93", Value: 1000000}, {Variable: "93", Value: 500000}},
		},
		models.ProviderTrends: {
			Provider: models.ProviderTrends,
			Series:   []models.InterestPoint{{Score: 40}, {Score: 60}},
		},
		models.ProviderNews: {
			Provider: models.ProviderNews,
			Articles: []models.Article{{Title: "Crescimento do emprego", Body: "alta na confiança"}},
		},
	}
}

func buildOrchestrator(results map[models.Provider]models.NormalizedResult, errs map[models.Provider]error) (*Orchestrator, map[models.Provider]*fakeFetcher) {
	fetchers := map[models.Provider]Fetcher{}
	raw := map[models.Provider]*fakeFetcher{}
	adapters := map[models.Provider]providers.Adapter{}
	for _, p := range []models.Provider{models.ProviderSidra, models.ProviderTrends, models.ProviderNews} {
		f := &fakeFetcher{err: errs[p]}
		fetchers[p] = f
		raw[p] = f
		adapters[p] = fakeAdapter{provider: p, result: results[p]}
	}
	return New(testConfig(), fetchers, adapters), raw
}

func TestRunMergesAllProviders(t *testing.T) {
	o, _ := buildOrchestrator(healthyResults(), nil)

	estimate, err := o.Run(context.Background(), threeProviderSpecs())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if estimate.RequestID == "" {
		t.Error("estimate must carry a request ID")
	}
	if estimate.DemographicBase != 1500000 {
		t.Errorf("demographic base = %f, want sum of primary cells", estimate.DemographicBase)
	}
	if math.Abs(estimate.InterestMultiplier-0.5) > 1e-9 {
		t.Errorf("interest multiplier = %f, want mean score / 100", estimate.InterestMultiplier)
	}
	if estimate.SentimentMultiplier != 2.0 {
		t.Errorf("sentiment multiplier = %f, want all-positive articles clamped at 2.0", estimate.SentimentMultiplier)
	}
	want := 1500000 * 0.5 * 2.0
	if math.Abs(estimate.MarketSize-want) > 1e-6 {
		t.Errorf("market size = %f, want %f", estimate.MarketSize, want)
	}

	for p, outcome := range estimate.PerProvider {
		if outcome.Status != models.StatusOK {
			t.Errorf("provider %s status = %s, want ok", p, outcome.Status)
		}
	}
	if estimate.Confidence <= 0 || estimate.Confidence > 1 {
		t.Errorf("confidence = %f, want within (0,1]", estimate.Confidence)
	}
}

func TestAllProvidersFailing(t *testing.T) {
	boom := errors.New("boom")
	o, _ := buildOrchestrator(nil, map[models.Provider]error{
		models.ProviderSidra:  boom,
		models.ProviderTrends: boom,
		models.ProviderNews:   boom,
	})

	_, err := o.Run(context.Background(), threeProviderSpecs())
	if !errors.Is(err, remote.ErrAllProvidersFailed) {
		t.Fatalf("err = %v, want ErrAllProvidersFailed", err)
	}
}

func TestEmptyPlanFails(t *testing.T) {
	o, _ := buildOrchestrator(healthyResults(), nil)
	if _, err := o.Run(context.Background(), nil); !errors.Is(err, remote.ErrAllProvidersFailed) {
		t.Fatalf("err = %v, want ErrAllProvidersFailed", err)
	}
}

func TestFailedProvidersContributeNeutralMultipliers(t *testing.T) {
	results := healthyResults()
	o, _ := buildOrchestrator(results, map[models.Provider]error{
		models.ProviderTrends: remote.ErrRateLimited,
		models.ProviderNews:   remote.ErrCircuitOpen,
	})

	estimate, err := o.Run(context.Background(), threeProviderSpecs())
	if err != nil {
		t.Fatalf("partial failure must still produce an estimate: %v", err)
	}

	if estimate.InterestMultiplier != 1.0 || estimate.SentimentMultiplier != 1.0 {
		t.Errorf("failed providers must be neutral, got interest=%f sentiment=%f",
			estimate.InterestMultiplier, estimate.SentimentMultiplier)
	}
	if estimate.MarketSize != estimate.DemographicBase {
		t.Errorf("market size = %f, want the unadjusted base %f", estimate.MarketSize, estimate.DemographicBase)
	}
	if estimate.PerProvider[models.ProviderTrends].Status != models.StatusFailed {
		t.Errorf("trends status = %s, want failed", estimate.PerProvider[models.ProviderTrends].Status)
	}
	if estimate.PerProvider[models.ProviderSidra].Status != models.StatusOK {
		t.Errorf("sidra status = %s, want ok", estimate.PerProvider[models.ProviderSidra].Status)
	}
}

func TestConfidenceMonotonicity(t *testing.T) {
	allOK, _ := buildOrchestrator(healthyResults(), nil)
	oneDown, _ := buildOrchestrator(healthyResults(), map[models.Provider]error{
		models.ProviderNews: errors.New("unreachable"),
	})

	full, err := allOK.Run(context.Background(), threeProviderSpecs())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	degraded, err := oneDown.Run(context.Background(), threeProviderSpecs())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if full.Confidence < degraded.Confidence {
		t.Errorf("confidence with 3 providers ok (%f) must not be below 2 ok (%f)",
			full.Confidence, degraded.Confidence)
	}
}

func TestPartialConfidenceFloor(t *testing.T) {
	results := map[models.Provider]models.NormalizedResult{
		models.ProviderSidra:  {Provider: models.ProviderSidra, Partial: true},
		models.ProviderTrends: {Provider: models.ProviderTrends, Partial: true},
		models.ProviderNews:   {Provider: models.ProviderNews, Partial: true},
	}
	o, _ := buildOrchestrator(results, nil)

	estimate, err := o.Run(context.Background(), threeProviderSpecs())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if estimate.Confidence != 0.1 {
		t.Errorf("confidence = %f, want the 0.1 floor for partial-but-settled runs", estimate.Confidence)
	}
}

func TestInterestScoreOutOfRangeIsClamped(t *testing.T) {
	results := healthyResults()
	results[models.ProviderTrends] = models.NormalizedResult{
		Provider: models.ProviderTrends,
		Series:   []models.InterestPoint{{Score: 100}, {Score: 100}},
	}
	o, _ := buildOrchestrator(results, nil)

	estimate, err := o.Run(context.Background(), threeProviderSpecs())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if estimate.InterestMultiplier > 1.0 {
		t.Errorf("interest multiplier = %f, must never exceed 1.0", estimate.InterestMultiplier)
	}
}

func TestNegativeSentimentIsFloored(t *testing.T) {
	results := healthyResults()
	results[models.ProviderNews] = models.NormalizedResult{
		Provider: models.ProviderNews,
		Articles: []models.Article{
			{Title: "Crise e desemprego", Body: "queda na renda, inflação em alta de preços"},
			{Title: "Recessão confirmada", Body: "retração do consumo"},
		},
	}
	o, _ := buildOrchestrator(results, nil)

	estimate, err := o.Run(context.Background(), threeProviderSpecs())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if estimate.SentimentMultiplier < 0.5 {
		t.Errorf("sentiment multiplier = %f, must never drop below 0.5", estimate.SentimentMultiplier)
	}
	if estimate.SentimentMultiplier >= 1.0 {
		t.Errorf("sentiment multiplier = %f, want below neutral for negative coverage", estimate.SentimentMultiplier)
	}
}

func TestStaleArticlesDoNotDriveSentiment(t *testing.T) {
	results := healthyResults()
	results[models.ProviderNews] = models.NormalizedResult{
		Provider: models.ProviderNews,
		Articles: []models.Article{{
			Title:       "Crise e desemprego",
			Body:        "queda na renda e recessão",
			PublishedAt: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		}},
	}
	o, _ := buildOrchestrator(results, nil)

	specs := threeProviderSpecs()
	specs[2].DaysBack = 1

	estimate, err := o.Run(context.Background(), specs)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if estimate.SentimentMultiplier != 1.0 {
		t.Errorf("sentiment multiplier = %f, want neutral once articles outside the window are dropped",
			estimate.SentimentMultiplier)
	}
	if estimate.MarketSize != estimate.DemographicBase*estimate.InterestMultiplier {
		t.Errorf("market size = %f, must not be scaled by stale coverage", estimate.MarketSize)
	}
}

func TestRecentArticlesSurviveTheWindow(t *testing.T) {
	results := healthyResults()
	results[models.ProviderNews] = models.NormalizedResult{
		Provider: models.ProviderNews,
		Articles: []models.Article{
			{Title: "Crise e desemprego", Body: "queda na renda", PublishedAt: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)},
			{Title: "Crescimento do emprego", Body: "alta na confiança", PublishedAt: time.Now().Add(-time.Hour)},
		},
	}
	o, _ := buildOrchestrator(results, nil)

	specs := threeProviderSpecs()
	specs[2].DaysBack = 7

	estimate, err := o.Run(context.Background(), specs)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if estimate.SentimentMultiplier != 2.0 {
		t.Errorf("sentiment multiplier = %f, want only the recent positive article scored",
			estimate.SentimentMultiplier)
	}
}

type blockingFetcher struct{}

func (blockingFetcher) Fetch(ctx context.Context, _ models.QuerySpec) (models.RawResponse, error) {
	<-ctx.Done()
	return models.RawResponse{}, ctx.Err()
}

func TestDeadlineFailsUnsettledProviders(t *testing.T) {
	o, _ := buildOrchestrator(healthyResults(), nil)
	o.cfg.Deadline = 50 * time.Millisecond
	o.fetchers[models.ProviderTrends] = blockingFetcher{}

	start := time.Now()
	estimate, err := o.Run(context.Background(), threeProviderSpecs())
	if err != nil {
		t.Fatalf("a hung provider must not abort the run: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("run took %s, want a return shortly after the deadline", elapsed)
	}

	if estimate.PerProvider[models.ProviderTrends].Status != models.StatusFailed {
		t.Errorf("unsettled provider status = %s, want failed", estimate.PerProvider[models.ProviderTrends].Status)
	}
	if estimate.InterestMultiplier != 1.0 {
		t.Errorf("interest multiplier = %f, want neutral for an unsettled provider", estimate.InterestMultiplier)
	}
	if estimate.PerProvider[models.ProviderSidra].Status != models.StatusOK {
		t.Errorf("sidra status = %s, settled providers must be unaffected", estimate.PerProvider[models.ProviderSidra].Status)
	}
}

func TestRunCollectKeepsSettledResults(t *testing.T) {
	o, _ := buildOrchestrator(healthyResults(), nil)

	results, err := o.RunCollect(context.Background(), threeProviderSpecs())
	if err != nil {
		t.Fatalf("RunCollect: %v", err)
	}
	if len(results.Settled) != 3 {
		t.Fatalf("settled = %d, want one result per spec", len(results.Settled))
	}
	first := results.Settled[0]
	if first.Spec.Provider != models.ProviderSidra {
		t.Errorf("settled order starts with %s, want sidra first", first.Spec.Provider)
	}
	for _, cell := range first.Result.Cells {
		if cell.Table != providers.TablePopulation {
			t.Errorf("cell table = %q, want stamped from the spec", cell.Table)
		}
	}
}

func TestStampTableTagsCells(t *testing.T) {
	result := models.NormalizedResult{
		Cells: []models.TableCell{{Variable: "93", Value: 10}, {Table: "already", Variable: "93", Value: 20}},
	}
	stampTable(&result, models.QuerySpec{Table: providers.TablePopulation})

	if result.Cells[0].Table != providers.TablePopulation {
		t.Errorf("untagged cell table = %q", result.Cells[0].Table)
	}
	if result.Cells[1].Table != "already" {
		t.Error("cells already tagged must not be overwritten")
	}
}

func TestArticleSentiment(t *testing.T) {
	tests := []struct {
		name    string
		article models.Article
		want    float64
		scored  bool
	}{
		{"positive", models.Article{Title: "Crescimento recorde", Body: "otimismo e recuperação"}, 1.0, true},
		{"negative", models.Article{Title: "Crise", Body: "desemprego e queda"}, -1.0, true},
		{"mixed", models.Article{Title: "Alta do emprego, queda da renda", Body: "inflação em alta"}, 1.0 / 5.0, true},
		{"no signal", models.Article{Title: "Evento cultural", Body: "programação do fim de semana"}, 0, false},
	}
	for _, tt := range tests {
		got, scored := articleSentiment(tt.article)
		if scored != tt.scored {
			t.Errorf("%s: scored = %v, want %v", tt.name, scored, tt.scored)
			continue
		}
		if scored && math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("%s: sentiment = %f, want %f", tt.name, got, tt.want)
		}
	}
}
