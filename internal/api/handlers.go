// Marketscope - Market Segment Aggregation and Psychographic Inference
// Copyright 2026 R. C. Passos (rcpassos)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rcpassos/marketscope

package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/rcpassos/marketscope/internal/logging"
	"github.com/rcpassos/marketscope/internal/mapper"
	"github.com/rcpassos/marketscope/internal/models"
	"github.com/rcpassos/marketscope/internal/orchestrator"
	"github.com/rcpassos/marketscope/internal/providers"
	"github.com/rcpassos/marketscope/internal/psychographic"
	"github.com/rcpassos/marketscope/internal/remote"
)

// maxRequestBytes caps analyze request bodies.
const maxRequestBytes = 1 << 20

// Planner builds the provider query plan from concepts. Satisfied by
// *mapper.Mapper.
type Planner interface {
	Map(concepts []models.Concept, hints models.Hints) mapper.Result
}

// Runner executes a query plan. Satisfied by *orchestrator.Orchestrator.
type Runner interface {
	RunCollect(ctx context.Context, specs []models.QuerySpec) (orchestrator.Results, error)
}

// Handler serves the analysis endpoints.
type Handler struct {
	planner  Planner
	runner   Runner
	analyzer *psychographic.Analyzer
}

// NewHandler wires the analysis pipeline behind the HTTP surface.
func NewHandler(planner Planner, runner Runner, analyzer *psychographic.Analyzer) *Handler {
	return &Handler{planner: planner, runner: runner, analyzer: analyzer}
}

// AnalyzeResponse is the payload of a successful analyze call.
type AnalyzeResponse struct {
	Estimate models.SegmentEstimate      `json:"estimate"`
	Profile  models.PsychographicProfile `json:"profile"`
	Unmapped []string                    `json:"unmapped_concepts,omitempty"`
}

// Analyze handles POST /api/v1/analyze: map concepts to a query plan, run it
// against the providers and infer the psychographic profile.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	body := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "malformed JSON body")
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeValidationFailed, err.Error())
		return
	}

	plan := h.planner.Map(req.ToConcepts(), req.ToHints())
	results, err := h.runner.RunCollect(r.Context(), plan.Specs)
	if err != nil {
		if errors.Is(err, remote.ErrAllProvidersFailed) {
			respondError(w, r, http.StatusBadGateway, ErrCodeUpstreamFailed, "no provider returned data")
			return
		}
		logging.Error().Err(err).Msg("analysis run failed")
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "analysis failed")
		return
	}

	segment := psychographic.VectorFromCells(expenditureCells(results.Settled), filterTag(req.ToHints()))
	profile, err := h.analyzer.Analyze(segment, psychographic.NationalBaseline(), signalMap(req.Signals))
	if err != nil {
		logging.Error().Err(err).Msg("psychographic analysis failed")
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "profile inference failed")
		return
	}

	respondSuccess(w, http.StatusOK, AnalyzeResponse{
		Estimate: results.Estimate,
		Profile:  profile,
		Unmapped: plan.Unmapped,
	})
}

// Health handles GET /healthz.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, http.StatusOK, map[string]string{"status": "ok"})
}

// expenditureCells selects the household-expenditure cells from the settled
// results.
func expenditureCells(settled []orchestrator.SpecResult) []models.TableCell {
	var cells []models.TableCell
	for _, sr := range settled {
		if sr.Spec.Table != providers.TableExpenditure {
			continue
		}
		cells = append(cells, sr.Result.Cells...)
	}
	return cells
}

// filterTag labels the segment vector with the hints that scoped it.
func filterTag(hints models.Hints) string {
	var parts []string
	if hints.AgeRange != "" {
		parts = append(parts, "age:"+hints.AgeRange)
	}
	if hints.Location != "" {
		parts = append(parts, "loc:"+hints.Location)
	}
	if len(parts) == 0 {
		return "segment"
	}
	return strings.Join(parts, "|")
}

func signalMap(signals map[string]string) map[psychographic.Signal]string {
	if len(signals) == 0 {
		return nil
	}
	out := make(map[psychographic.Signal]string, len(signals))
	for k, v := range signals {
		out[psychographic.Signal(k)] = v
	}
	return out
}
