// Marketscope - Market Segment Aggregation and Psychographic Inference
// Copyright 2026 R. C. Passos (rcpassos)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rcpassos/marketscope

// Package mapper translates extracted market concepts into provider query
// plans. Concepts resolve into four non-exclusive facets (demographic,
// sectoral, value/attribute, geographic) through normalized-term lookup with
// a substring fallback. Mapping is deterministic and never fails outright:
// when nothing resolves, the mapper degrades to a national unfiltered
// population query.
package mapper

import (
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/rcpassos/marketscope/internal/logging"
	"github.com/rcpassos/marketscope/internal/models"
	"github.com/rcpassos/marketscope/internal/providers"
)

// SIDRA classification codes used for demographic filters.
const (
	ClassAge       = "200"
	ClassSex       = "143"
	ClassEducation = "276"
	ClassIncome    = "6793"
	ClassExpense   = "11046"
)

// Age bracket category codes for classification 200.
var ageBrackets = []struct {
	code   string
	lo, hi int
}{
	{"1933", 14, 17},
	{"1934", 18, 24},
	{"1935", 25, 39},
	{"1936", 40, 59},
	{"1937", 60, 200},
}

// demoFilter is one demographic classification filter.
type demoFilter struct {
	class string
	codes []string
}

// demographicTable maps normalized terms to classification filters.
var demographicTable = map[string]demoFilter{
	"adolescente": {ClassAge, []string{"1933"}},
	"jovem":       {ClassAge, []string{"1934"}},
	"adulto":      {ClassAge, []string{"1935", "1936"}},
	"idoso":       {ClassAge, []string{"1937"}},
	"homem":       {ClassSex, []string{"M"}},
	"masculino":   {ClassSex, []string{"M"}},
	"mulher":      {ClassSex, []string{"F"}},
	"feminino":    {ClassSex, []string{"F"}},
	"universitario": {ClassEducation, []string{"29578", "29579"}},
	"superior":      {ClassEducation, []string{"29579"}},
	"pos-graduacao": {ClassEducation, []string{"29580"}},
	"alta renda":    {ClassIncome, []string{"5", "6", "7"}},
	"classe media":  {ClassIncome, []string{"3", "4", "5"}},
	"baixa renda":   {ClassIncome, []string{"1", "2"}},
}

// locationTable maps normalized place names to IBGE territorial units.
var locationTable = map[string]models.Location{
	"brasil":       {Level: 1, Code: "all"},
	"norte":        {Level: 2, Code: "1"},
	"nordeste":     {Level: 2, Code: "2"},
	"sudeste":      {Level: 2, Code: "3"},
	"sul":          {Level: 2, Code: "4"},
	"centro-oeste": {Level: 2, Code: "5"},

	"sao paulo":          {Level: 3, Code: "35"},
	"rio de janeiro":     {Level: 3, Code: "33"},
	"minas gerais":       {Level: 3, Code: "31"},
	"bahia":              {Level: 3, Code: "29"},
	"parana":             {Level: 3, Code: "41"},
	"rio grande do sul":  {Level: 3, Code: "43"},
	"pernambuco":         {Level: 3, Code: "26"},
	"ceara":              {Level: 3, Code: "23"},
	"santa catarina":     {Level: 3, Code: "42"},
	"goias":              {Level: 3, Code: "52"},
	"distrito federal":   {Level: 3, Code: "53"},
}

// sector groups the provider parameters a sectoral concept selects: POF
// expense categories for the supporting table, and the news query.
type sector struct {
	name         string
	expenseCodes []string
}

// sectorTable maps normalized terms to sectors. Expense category codes are
// from POF classification 11046.
var sectorTable = map[string]sector{
	"esporte":  {"esporte", []string{"114027", "114028"}},
	"tenis":    {"esporte", []string{"114027", "114028"}},
	"corrida":  {"esporte", []string{"114027", "114028"}},
	"academia": {"esporte", []string{"114027", "114028"}},
	"fitness":  {"esporte", []string{"114027", "114028"}},

	"tecnologia": {"tecnologia", []string{"114026", "114032"}},
	"eletronico": {"tecnologia", []string{"114026", "114032"}},
	"celular":    {"tecnologia", []string{"114026", "114032"}},
	"smartphone": {"tecnologia", []string{"114026", "114032"}},
	"computador": {"tecnologia", []string{"114026", "114032"}},

	"viagem":  {"viagem", []string{"114027"}},
	"turismo": {"viagem", []string{"114027"}},
	"lazer":   {"viagem", []string{"114027"}},
	"cultura": {"viagem", []string{"114027"}},

	"alimentacao": {"alimentacao", []string{"114024"}},
	"alimento":    {"alimentacao", []string{"114024"}},
	"comida":      {"alimentacao", []string{"114024"}},
	"restaurante": {"alimentacao", []string{"114024"}},

	"moda":      {"moda", []string{"114030"}},
	"roupa":     {"moda", []string{"114030"}},
	"vestuario": {"moda", []string{"114030"}},
	"calcado":   {"moda", []string{"114030"}},

	"saude":       {"saude", []string{"114025"}},
	"farmacia":    {"saude", []string{"114025"}},
	"medicamento": {"saude", []string{"114025"}},

	"educacao":  {"educacao", []string{"114029"}},
	"curso":     {"educacao", []string{"114029"}},
	"faculdade": {"educacao", []string{"114029"}},

	"transporte": {"transporte", []string{"114031"}},
	"veiculo":    {"transporte", []string{"114031"}},
	"carro":      {"transporte", []string{"114031"}},

	"moradia":   {"moradia", []string{"114023"}},
	"habitacao": {"moradia", []string{"114023"}},
	"imovel":    {"moradia", []string{"114023"}},
}

// attributeTable lists value/attribute terms. They refine search-interest
// terms but map to no statistical filter.
var attributeTable = map[string]bool{
	"sustentavel": true,
	"ecologico":   true,
	"organico":    true,
	"premium":     true,
	"luxo":        true,
	"barato":      true,
	"economico":   true,
	"artesanal":   true,
	"importado":   true,
}

// accentFold strips the Portuguese diacritics that appear in concept terms.
var accentFold = strings.NewReplacer(
	"á", "a", "à", "a", "â", "a", "ã", "a",
	"é", "e", "ê", "e",
	"í", "i",
	"ó", "o", "ô", "o", "õ", "o",
	"ú", "u", "ü", "u",
	"ç", "c",
)

func normalize(term string) string {
	return accentFold.Replace(strings.ToLower(strings.TrimSpace(term)))
}

// Result is one mapping outcome: the query plans plus the concepts that
// resolved to no facet. Unmapped concepts never block plan generation.
type Result struct {
	Specs    []models.QuerySpec
	Unmapped []string
}

// Mapper builds provider query plans from concept sequences.
type Mapper struct {
	newsDomains  []string
	newsDaysBack int
}

// New creates a Mapper emitting news plans for the given allow-listed
// domains.
func New(newsDomains []string, newsDaysBack int) *Mapper {
	return &Mapper{newsDomains: newsDomains, newsDaysBack: newsDaysBack}
}

// Map resolves an ordered concept sequence plus hints into QuerySpecs. The
// same input sequence always yields identical specs.
func (m *Mapper) Map(concepts []models.Concept, hints models.Hints) Result {
	var (
		result        Result
		loc           models.Location
		classFilters  = map[string]map[string]bool{}
		expenseCodes  = map[string]bool{}
		sectorMatched bool
		newsQuery     string
		interestTerms []string
	)

	addFilter := func(class string, codes []string) {
		if classFilters[class] == nil {
			classFilters[class] = map[string]bool{}
		}
		for _, c := range codes {
			classFilters[class][c] = true
		}
	}

	for _, concept := range concepts {
		term := normalize(concept.Term)
		matched := false

		if l, ok := lookupLocation(term); ok {
			// The last geographic concept wins; it narrows every spec.
			loc = l
			matched = true
		}
		if d, ok := lookupDemographic(term); ok {
			addFilter(d.class, d.codes)
			matched = true
		}
		if s, ok := lookupSector(term); ok {
			sectorMatched = true
			for _, c := range s.expenseCodes {
				expenseCodes[c] = true
			}
			if newsQuery == "" {
				newsQuery = concept.Term
			}
			interestTerms = appendUnique(interestTerms, concept.Term)
			matched = true
		}
		if attributeTable[term] {
			interestTerms = appendUnique(interestTerms, concept.Term)
			matched = true
		}

		if !matched {
			result.Unmapped = append(result.Unmapped, concept.Term)
		}
	}

	if hints.Location != "" {
		if l, ok := lookupLocation(normalize(hints.Location)); ok {
			loc = l
		}
	}
	if codes := ageCodesForRange(hints.AgeRange); len(codes) > 0 {
		addFilter(ClassAge, codes)
	}

	if loc.Level == 0 {
		loc = models.Location{Level: 1, Code: "all"}
	}

	if len(result.Unmapped) > 0 {
		logging.Debug().Strs("unmapped", result.Unmapped).Msg("concepts without facet mapping")
	}

	// Primary population query, always emitted.
	result.Specs = append(result.Specs, providers.NewTableQuery(
		providers.TablePopulation,
		models.RolePrimary,
		loc,
		[]string{providers.VarPopulation},
		flattenFilters(classFilters),
		"last",
	))

	// Supporting expenditure query when a sector resolved. POF publishes at
	// the national level only.
	if sectorMatched {
		result.Specs = append(result.Specs, providers.NewTableQuery(
			providers.TableExpenditure,
			models.RoleSupporting,
			models.Location{Level: 1, Code: "all"},
			nil,
			map[string][]string{ClassExpense: sortedKeys(expenseCodes)},
			"last",
		))
	}

	if len(interestTerms) > 0 {
		result.Specs = append(result.Specs, providers.NewInterestQuery(interestTerms, models.TimeframeQuarter, "BR"))
	}

	if newsQuery != "" {
		for _, domain := range m.newsDomains {
			result.Specs = append(result.Specs, providers.NewSearchQuery(domain, newsQuery, m.newsDaysBack))
		}
	}

	return result
}

// lookupLocation resolves a place name, falling back to substring matching
// in sorted key order so the fallback is deterministic.
func lookupLocation(term string) (models.Location, bool) {
	return lookup(term, locationTable)
}

func lookupDemographic(term string) (demoFilter, bool) {
	return lookup(term, demographicTable)
}

func lookupSector(term string) (sector, bool) {
	return lookup(term, sectorTable)
}

// lookup tries an exact hit, a naive singular form, then the substring
// fallback.
func lookup[V any](term string, table map[string]V) (V, bool) {
	if v, ok := table[term]; ok {
		return v, true
	}
	if v, ok := table[strings.TrimSuffix(term, "s")]; ok {
		return v, true
	}
	return substringLookup(term, table)
}

// substringLookup scans table keys in sorted order and matches when the
// term contains the key or the key contains the term.
func substringLookup[V any](term string, table map[string]V) (V, bool) {
	keys := make([]string, 0, len(table))
	for k := range table {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	// Short fragments match too eagerly ("sul" inside "consultoria"), so
	// the contained side must be at least 4 runes.
	termRunes := utf8.RuneCountInString(term)
	for _, k := range keys {
		if (utf8.RuneCountInString(k) >= 4 && strings.Contains(term, k)) || (termRunes >= 4 && strings.Contains(k, term)) {
			return table[k], true
		}
	}
	var zero V
	return zero, false
}

// ageCodesForRange maps an "lo-hi" age hint to the bracket codes it
// overlaps.
func ageCodesForRange(ageRange string) []string {
	lo, hi, ok := parseAgeRange(ageRange)
	if !ok {
		return nil
	}
	var codes []string
	for _, b := range ageBrackets {
		if lo <= b.hi && hi >= b.lo {
			codes = append(codes, b.code)
		}
	}
	return codes
}

func parseAgeRange(s string) (lo, hi int, ok bool) {
	parts := strings.SplitN(strings.TrimSpace(s), "-", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	lo, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	hi, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err1 != nil || err2 != nil || lo < 0 || lo > hi {
		return 0, 0, false
	}
	return lo, hi, true
}

func flattenFilters(filters map[string]map[string]bool) map[string][]string {
	if len(filters) == 0 {
		return nil
	}
	out := make(map[string][]string, len(filters))
	for class, codes := range filters {
		out[class] = sortedKeys(codes)
	}
	return out
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
