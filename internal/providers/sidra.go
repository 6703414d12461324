// Marketscope - Market Segment Aggregation and Psychographic Inference
// Copyright 2026 R. C. Passos (rcpassos)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rcpassos/marketscope

package providers

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/rcpassos/marketscope/internal/logging"
	"github.com/rcpassos/marketscope/internal/models"
)

// SIDRA statistical tables used by the engine.
const (
	// TablePopulation is population by sex and age group (PNAD Contínua).
	TablePopulation = "6407"
	// TableExpenditure is average household expenditure by category (POF).
	TableExpenditure = "7482"
	// TableIncome is household income distribution (PNAD Contínua).
	TableIncome = "5437"
	// TableCensus is resident population from the demographic census.
	TableCensus = "9514"
)

// VarPopulation is the SIDRA variable code for resident population.
const VarPopulation = "93"

// CategoryForTable selects the cache data category for a SIDRA table, which
// drives the TTL: census tables are stable for a year, survey tables for a
// quarter's worth of releases.
func CategoryForTable(table string) models.DataCategory {
	switch table {
	case TableCensus:
		return models.CategoryCensus
	case TableExpenditure:
		return models.CategorySurvey
	case TableIncome:
		return models.CategoryEconomic
	case TablePopulation:
		return models.CategoryDemographic
	default:
		return models.CategoryMetadata
	}
}

// NewTableQuery builds a QuerySpec for one SIDRA table.
func NewTableQuery(table string, role models.Role, loc models.Location, variables []string, classifications map[string][]string, period string) models.QuerySpec {
	if loc.Level == 0 {
		loc = models.Location{Level: 1, Code: "all"}
	}
	if period == "" {
		period = "last"
	}
	return models.QuerySpec{
		Provider:        models.ProviderSidra,
		Role:            role,
		Category:        CategoryForTable(table),
		Table:           table,
		Location:        loc,
		Variables:       variables,
		Classifications: classifications,
		Period:          period,
	}
}

// SidraAdapter is the statistical-table adapter for the IBGE SIDRA API.
type SidraAdapter struct {
	baseURL string
}

// NewSidraAdapter creates a SIDRA adapter against the given base URL.
func NewSidraAdapter(baseURL string) *SidraAdapter {
	return &SidraAdapter{baseURL: strings.TrimRight(baseURL, "/")}
}

func (a *SidraAdapter) Provider() models.Provider {
	return models.ProviderSidra
}

// BuildRequest composes the SIDRA values URL:
//
//	/values/t/{table}/n{level}/{code}/v/{vars}/p/{period}/c{class}/{cats}
//
// Classification segments are emitted in sorted key order so the same spec
// always yields the same URL.
func (a *SidraAdapter) BuildRequest(ctx context.Context, spec models.QuerySpec) (*http.Request, error) {
	if spec.Table == "" {
		return nil, fmt.Errorf("sidra query needs a table code")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s/values/t/%s/n%d/%s", a.baseURL, spec.Table, spec.Location.Level, spec.Location.Code)

	vars := "all"
	if len(spec.Variables) > 0 {
		vars = strings.Join(spec.Variables, ",")
	}
	fmt.Fprintf(&b, "/v/%s/p/%s", vars, spec.Period)

	keys := make([]string, 0, len(spec.Classifications))
	for k := range spec.Classifications {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "/c%s/%s", k, strings.Join(spec.Classifications[k], ","))
	}
	b.WriteString("?formato=json")

	return http.NewRequestWithContext(ctx, http.MethodGet, b.String(), nil)
}

// Parse converts a SIDRA values response into table cells. The response is a
// JSON array of string maps whose first element maps column ids to column
// names; the remaining elements are data rows. Values use Brazilian number
// format with '.' as the thousands separator and ',' as the decimal mark.
func (a *SidraAdapter) Parse(raw models.RawResponse) models.NormalizedResult {
	var rows []map[string]string
	if err := json.Unmarshal(raw.Body, &rows); err != nil || len(rows) < 2 {
		logging.Warn().Err(err).Int("rows", len(rows)).Msg("malformed sidra response, degrading to partial")
		return partial(models.ProviderSidra)
	}

	header := rows[0]
	varColumn := ""
	for id, name := range header {
		if strings.EqualFold(name, "Variável") && strings.HasSuffix(id, "N") {
			varColumn = id
		}
	}

	result := models.NormalizedResult{Provider: models.ProviderSidra}

	for _, row := range rows[1:] {
		value, ok := parseBrazilianNumber(row["V"])
		if !ok {
			// Suppressed or unavailable cells ("-", "...", "X") are
			// skipped, matching how the source tables publish them.
			continue
		}

		cell := models.TableCell{
			Value:       value,
			Unit:        row["MN"],
			Location:    row["D1N"],
			ExtractedAt: raw.FetchedAt,
			Dimensions:  map[string]string{},
		}
		if varColumn != "" {
			cell.VariableName = row[varColumn]
			cell.Variable = row[strings.TrimSuffix(varColumn, "N")+"C"]
		}
		for id, name := range header {
			if id == "D1N" || id == varColumn || len(id) != 3 || id[0] != 'D' || id[2] != 'N' {
				continue
			}
			if v := row[id]; v != "" {
				cell.Dimensions[name] = v
			}
		}
		result.Cells = append(result.Cells, cell)
	}

	if len(result.Cells) == 0 {
		return partial(models.ProviderSidra)
	}
	return result
}

// parseBrazilianNumber parses "1.234.567,89" into 1234567.89.
func parseBrazilianNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" || s == "-" || s == ".." || s == "..." || strings.EqualFold(s, "X") {
		return 0, false
	}
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
