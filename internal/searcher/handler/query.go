package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Adithya-Monish-Kumar-K/search-core/internal/index"
	"github.com/Adithya-Monish-Kumar-K/search-core/internal/index/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/search-core/internal/search"
	apperrors "github.com/Adithya-Monish-Kumar-K/search-core/pkg/errors"
)

const (
	maxQueryDepth        = 32
	defaultMinSimilarity = 0.5
)

// QuerySpec is the JSON form of a query. Type selects the query and decides
// which of the other fields apply:
//
//	term       field, text (matched verbatim)
//	match      field, text (analyzed), operator "or" | "and"
//	phrase     field, terms + optional positions, or text (analyzed), slop
//	bool       must, should, must_not, disable_coord
//	match_all
//	range      field, lower, upper, inclusive
//	prefix     field, text
//	fuzzy      field, text, min_similarity (default 0.5), prefix_length
//	constant   filter
//	filtered   query, filter
//
// Field defaults to the handler's default field.
type QuerySpec struct {
	Type          string      `json:"type"`
	Field         string      `json:"field,omitempty"`
	Text          string      `json:"text,omitempty"`
	Operator      string      `json:"operator,omitempty"`
	Terms         []string    `json:"terms,omitempty"`
	Positions     []int       `json:"positions,omitempty"`
	Slop          int         `json:"slop,omitempty"`
	Lower         string      `json:"lower,omitempty"`
	Upper         string      `json:"upper,omitempty"`
	Inclusive     bool        `json:"inclusive,omitempty"`
	MinSimilarity float32     `json:"min_similarity,omitempty"`
	PrefixLength  int         `json:"prefix_length,omitempty"`
	Must          []QuerySpec `json:"must,omitempty"`
	Should        []QuerySpec `json:"should,omitempty"`
	MustNot       []QuerySpec `json:"must_not,omitempty"`
	DisableCoord  bool        `json:"disable_coord,omitempty"`
	Query         *QuerySpec  `json:"query,omitempty"`
	Filter        *FilterSpec `json:"filter,omitempty"`
	Boost         float32     `json:"boost,omitempty"`
}

// FilterSpec is the JSON form of a filter: "range" admits documents whose
// field value lies between lower and upper (an empty bound is open), and
// "query" admits the documents a query matches.
type FilterSpec struct {
	Type         string     `json:"type"`
	Field        string     `json:"field,omitempty"`
	Lower        string     `json:"lower,omitempty"`
	Upper        string     `json:"upper,omitempty"`
	IncludeLower bool       `json:"include_lower,omitempty"`
	IncludeUpper bool       `json:"include_upper,omitempty"`
	Query        *QuerySpec `json:"query,omitempty"`
}

// queryBuilder turns specs into engine queries. Filters are memoized by
// their JSON form so the per-reader bitmaps of a CachingWrapperFilter
// survive across requests.
type queryBuilder struct {
	defaultField string
	analyzer     tokenizer.Analyzer
	filters      *lru.Cache[string, *search.CachingWrapperFilter]
	readers      int
}

func newQueryBuilder(defaultField string, analyzer tokenizer.Analyzer, filterCacheSize, readers int) (*queryBuilder, error) {
	if analyzer == nil {
		analyzer = tokenizer.Simple{}
	}
	if filterCacheSize <= 0 {
		filterCacheSize = 128
	}
	if readers <= 0 {
		readers = 1
	}
	filters, err := lru.New[string, *search.CachingWrapperFilter](filterCacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating filter cache: %w", err)
	}
	return &queryBuilder{
		defaultField: defaultField,
		analyzer:     analyzer,
		filters:      filters,
		readers:      readers,
	}, nil
}

func invalidf(format string, args ...any) error {
	return apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, format, args...)
}

func (b *queryBuilder) Query(spec *QuerySpec) (search.Query, error) {
	if spec == nil {
		return nil, invalidf("query is required")
	}
	return b.query(spec, 0)
}

func (b *queryBuilder) query(spec *QuerySpec, depth int) (search.Query, error) {
	if depth > maxQueryDepth {
		return nil, invalidf("query nested deeper than %d levels", maxQueryDepth)
	}
	if spec.Boost < 0 {
		return nil, invalidf("boost must not be negative, got %v", spec.Boost)
	}
	q, err := b.build(spec, depth)
	if err != nil {
		return nil, err
	}
	if spec.Boost != 0 {
		q.SetBoost(spec.Boost)
	}
	return q, nil
}

func (b *queryBuilder) build(spec *QuerySpec, depth int) (search.Query, error) {
	switch spec.Type {
	case "term":
		t, err := b.term(spec)
		if err != nil {
			return nil, err
		}
		return search.NewTermQuery(t), nil
	case "match":
		return b.match(spec)
	case "phrase":
		return b.phrase(spec)
	case "bool":
		return b.boolean(spec, depth)
	case "match_all":
		return search.NewMatchAllDocsQuery(), nil
	case "range":
		field := b.field(spec.Field)
		var lower, upper *index.Term
		if spec.Lower != "" {
			t := index.NewTerm(field, spec.Lower)
			lower = &t
		}
		if spec.Upper != "" {
			t := index.NewTerm(field, spec.Upper)
			upper = &t
		}
		return search.NewRangeQuery(lower, upper, spec.Inclusive)
	case "prefix":
		t, err := b.term(spec)
		if err != nil {
			return nil, err
		}
		return search.NewPrefixQuery(t), nil
	case "fuzzy":
		t, err := b.term(spec)
		if err != nil {
			return nil, err
		}
		minSim := spec.MinSimilarity
		if minSim == 0 {
			minSim = defaultMinSimilarity
		}
		return search.NewFuzzyQuery(t, minSim, spec.PrefixLength)
	case "constant":
		f, err := b.filter(spec.Filter, depth+1)
		if err != nil {
			return nil, err
		}
		return search.NewConstantScoreQuery(f), nil
	case "filtered":
		if spec.Query == nil {
			return nil, invalidf("filtered query needs a query")
		}
		inner, err := b.query(spec.Query, depth+1)
		if err != nil {
			return nil, err
		}
		f, err := b.filter(spec.Filter, depth+1)
		if err != nil {
			return nil, err
		}
		return search.NewFilteredQuery(inner, f), nil
	case "":
		return nil, invalidf("query type is required")
	default:
		return nil, invalidf("unknown query type %q", spec.Type)
	}
}

func (b *queryBuilder) field(name string) string {
	if name == "" {
		return b.defaultField
	}
	return name
}

func (b *queryBuilder) term(spec *QuerySpec) (index.Term, error) {
	field := b.field(spec.Field)
	if field == "" {
		return index.Term{}, invalidf("%s query needs a field", spec.Type)
	}
	if spec.Text == "" {
		return index.Term{}, invalidf("%s query needs text", spec.Type)
	}
	return index.NewTerm(field, spec.Text), nil
}

func (b *queryBuilder) analyze(spec *QuerySpec) ([]tokenizer.Token, string, error) {
	field := b.field(spec.Field)
	if field == "" {
		return nil, "", invalidf("%s query needs a field", spec.Type)
	}
	tokens := b.analyzer.Tokenize(spec.Text)
	if len(tokens) == 0 {
		return nil, "", invalidf("%s text %q has no searchable terms", spec.Type, spec.Text)
	}
	return tokens, field, nil
}

func (b *queryBuilder) match(spec *QuerySpec) (search.Query, error) {
	occur := search.Should
	switch strings.ToLower(spec.Operator) {
	case "", "or":
	case "and":
		occur = search.Must
	default:
		return nil, invalidf("unknown match operator %q", spec.Operator)
	}
	tokens, field, err := b.analyze(spec)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 1 {
		return search.NewTermQuery(index.NewTerm(field, tokens[0].Term)), nil
	}
	bq := search.NewBooleanQuery(false)
	for _, tok := range tokens {
		if err := bq.Add(search.NewTermQuery(index.NewTerm(field, tok.Term)), occur); err != nil {
			return nil, err
		}
	}
	return bq, nil
}

func (b *queryBuilder) phrase(spec *QuerySpec) (search.Query, error) {
	if spec.Slop < 0 {
		return nil, invalidf("slop must not be negative, got %d", spec.Slop)
	}
	pq := search.NewPhraseQuery()
	pq.SetSlop(spec.Slop)
	if len(spec.Terms) == 0 {
		tokens, field, err := b.analyze(spec)
		if err != nil {
			return nil, err
		}
		// Gaps left by removed stop words are kept.
		for _, tok := range tokens {
			if err := pq.AddAt(index.NewTerm(field, tok.Term), tok.Position-tokens[0].Position); err != nil {
				return nil, err
			}
		}
		return pq, nil
	}

	field := b.field(spec.Field)
	if field == "" {
		return nil, invalidf("phrase query needs a field")
	}
	if spec.Positions != nil && len(spec.Positions) != len(spec.Terms) {
		return nil, invalidf("phrase has %d terms but %d positions", len(spec.Terms), len(spec.Positions))
	}
	for i, text := range spec.Terms {
		t := index.NewTerm(field, text)
		var err error
		if spec.Positions != nil {
			err = pq.AddAt(t, spec.Positions[i])
		} else {
			err = pq.Add(t)
		}
		if err != nil {
			return nil, err
		}
	}
	return pq, nil
}

func (b *queryBuilder) boolean(spec *QuerySpec, depth int) (search.Query, error) {
	if len(spec.Must)+len(spec.Should)+len(spec.MustNot) == 0 {
		return nil, invalidf("bool query needs at least one clause")
	}
	bq := search.NewBooleanQuery(spec.DisableCoord)
	groups := []struct {
		specs []QuerySpec
		occur search.Occur
	}{
		{spec.Must, search.Must},
		{spec.Should, search.Should},
		{spec.MustNot, search.MustNot},
	}
	for _, g := range groups {
		for i := range g.specs {
			sub, err := b.query(&g.specs[i], depth+1)
			if err != nil {
				return nil, err
			}
			if err := bq.Add(sub, g.occur); err != nil {
				return nil, err
			}
		}
	}
	return bq, nil
}

// Filter builds the filter of spec, or returns nil for a nil spec.
func (b *queryBuilder) Filter(spec *FilterSpec) (search.Filter, error) {
	if spec == nil {
		return nil, nil
	}
	return b.filter(spec, 0)
}

func (b *queryBuilder) filter(spec *FilterSpec, depth int) (search.Filter, error) {
	if spec == nil {
		return nil, invalidf("filter is required")
	}
	key, err := json.Marshal(spec)
	if err != nil {
		return nil, fmt.Errorf("encoding filter: %w", err)
	}
	if f, ok := b.filters.Get(string(key)); ok {
		return f, nil
	}

	var inner search.Filter
	switch spec.Type {
	case "range":
		field := b.field(spec.Field)
		if field == "" {
			return nil, invalidf("range filter needs a field")
		}
		inner, err = search.NewRangeFilter(field, spec.Lower, spec.Upper, spec.IncludeLower, spec.IncludeUpper)
	case "query":
		if spec.Query == nil {
			return nil, invalidf("query filter needs a query")
		}
		var q search.Query
		q, err = b.query(spec.Query, depth+1)
		if err == nil {
			inner = search.NewQueryFilter(q)
		}
	case "":
		return nil, invalidf("filter type is required")
	default:
		return nil, invalidf("unknown filter type %q", spec.Type)
	}
	if err != nil {
		return nil, err
	}

	cached, err := search.NewCachingWrapperFilter(inner, b.readers)
	if err != nil {
		return nil, err
	}
	b.filters.Add(string(key), cached)
	return cached, nil
}

// parseSort validates the requested sort keys. No keys means relevance order.
func parseSort(fields []search.SortField) (*search.Sort, error) {
	if len(fields) == 0 {
		return nil, nil
	}
	return search.NewSort(fields...)
}
