// Marketscope - Market Segment Aggregation and Psychographic Inference
// Copyright 2026 R. C. Passos (rcpassos)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rcpassos/marketscope

package psychographic

import (
	"strings"

	"github.com/rcpassos/marketscope/internal/models"
)

// expenseCategoryNames maps the expense category names published by the
// household-budget table (classification 11046) to analyzer categories.
// Categories without a behavioral reading (taxes, savings, donations,
// miscellaneous) are left out and their cells ignored.
var expenseCategoryNames = map[string]string{
	"habitação":           CategoryHousing,
	"alimentação":         CategoryFood,
	"saúde":               CategoryHealth,
	"bens duráveis":       CategoryDurables,
	"recreação e cultura": CategoryCulture,
	"esportes":            CategorySports,
	"educação":            CategoryEducation,
	"vestuário":           CategoryApparel,
	"transporte":          CategoryTransport,
	"comunicação":         CategoryCommunication,
}

// nationalAverages is the national average monthly household expenditure in
// BRL per category, from the latest household budget survey. Used as the
// comparison baseline when no baseline query ran.
var nationalAverages = map[string]float64{
	CategoryHousing:       1425.50,
	CategoryFood:          1085.30,
	CategoryTransport:     891.40,
	CategoryHealth:        283.80,
	CategoryApparel:       176.20,
	CategoryCulture:       134.60,
	CategoryCommunication: 119.30,
	CategoryEducation:     89.70,
}

// NationalBaseline returns the national expenditure proportions.
func NationalBaseline() models.ExpenditureVector {
	return normalizeVector(nationalAverages, "national")
}

// VectorFromCells builds an expenditure vector from expenditure-table cells.
// Cell dimension values carry the expense category names; cells whose
// category has no analyzer mapping are skipped. Monetary values are
// normalized into proportions of the recognized total.
func VectorFromCells(cells []models.TableCell, filter string) models.ExpenditureVector {
	sums := make(map[string]float64)
	for _, cell := range cells {
		category, ok := expenseCategory(cell)
		if !ok {
			continue
		}
		sums[category] += cell.Value
	}
	return normalizeVector(sums, filter)
}

// expenseCategory finds the analyzer category named by one of the cell's
// dimension values.
func expenseCategory(cell models.TableCell) (string, bool) {
	for _, value := range cell.Dimensions {
		if category, ok := expenseCategoryNames[strings.ToLower(strings.TrimSpace(value))]; ok {
			return category, true
		}
	}
	return "", false
}

func normalizeVector(sums map[string]float64, filter string) models.ExpenditureVector {
	total := 0.0
	for _, v := range sums {
		if v > 0 {
			total += v
		}
	}
	vector := models.ExpenditureVector{Filter: filter}
	if total == 0 {
		return vector
	}
	vector.Categories = make(map[string]float64, len(sums))
	for category, v := range sums {
		if v > 0 {
			vector.Categories[category] = v / total
		}
	}
	return vector
}
