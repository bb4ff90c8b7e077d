package search

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/Adithya-Monish-Kumar-K/search-core/internal/index"
	"github.com/Adithya-Monish-Kumar-K/search-core/internal/search/explain"
)

// FilteredQuery scores documents with its query but zeroes the score of
// documents the filter does not admit. Enumeration is left to the query, so
// rejected documents are still visited.
type FilteredQuery struct {
	boostable
	query  Query
	filter Filter
}

func NewFilteredQuery(q Query, f Filter) *FilteredQuery {
	return &FilteredQuery{boostable: boostable{boost: 1}, query: q, filter: f}
}

func (q *FilteredQuery) Query() Query { return q.query }

func (q *FilteredQuery) Filter() Filter { return q.filter }

func (q *FilteredQuery) CreateWeight(s Searcher) (Weight, error) {
	inner, err := q.query.CreateWeight(s)
	if err != nil {
		return nil, err
	}
	return &filteredWeight{query: q, inner: inner}, nil
}

func (q *FilteredQuery) Rewrite(r index.Reader) (Query, error) {
	rewritten, err := q.query.Rewrite(r)
	if err != nil {
		return nil, err
	}
	if rewritten == q.query {
		return q, nil
	}
	c := q.Clone().(*FilteredQuery)
	c.query = rewritten
	return c, nil
}

func (q *FilteredQuery) ExtractTerms(terms map[index.Term]struct{}) {
	q.query.ExtractTerms(terms)
}

func (q *FilteredQuery) Clone() Query {
	c := *q
	return &c
}

func (q *FilteredQuery) String(field string) string {
	return "filtered(" + q.query.String(field) + ")->" + q.filter.String() + boostString(q.boost)
}

type filteredWeight struct {
	query *FilteredQuery
	inner Weight
	value float32
}

func (w *filteredWeight) Query() Query   { return w.query }
func (w *filteredWeight) Value() float32 { return w.value }

func (w *filteredWeight) SumOfSquaredWeights() float32 {
	b := w.query.Boost()
	return w.inner.SumOfSquaredWeights() * b * b
}

func (w *filteredWeight) Normalize(norm float32) {
	w.inner.Normalize(norm)
	w.value = w.inner.Value() * w.query.Boost()
}

func (w *filteredWeight) Scorer(r index.Reader) (Scorer, error) {
	bits, err := w.query.filter.Bits(r)
	if err != nil {
		return nil, fmt.Errorf("filter %s: %w", w.query.filter, err)
	}
	inner, err := w.inner.Scorer(r)
	if err != nil {
		return nil, err
	}
	return &filteredScorer{inner: inner, bits: bits, boost: w.query.Boost()}, nil
}

func (w *filteredWeight) Explain(r index.Reader, doc uint32) (*explain.Explanation, error) {
	inner, err := w.inner.Explain(r, doc)
	if err != nil {
		return nil, err
	}
	if b := w.query.Boost(); b != 1 {
		preBoost := inner
		inner = explain.New(preBoost.Value*b, "product of:")
		inner.AddDetail(explain.New(b, "boost"))
		inner.AddDetail(preBoost)
	}
	bits, err := w.query.filter.Bits(r)
	if err != nil {
		return nil, fmt.Errorf("filter %s: %w", w.query.filter, err)
	}
	if bits.Contains(doc) {
		return inner, nil
	}
	result := explain.New(0, "failure to match filter: "+w.query.filter.String())
	result.AddDetail(inner)
	return result, nil
}

// filteredScorer passes enumeration through to inner and reports a zero
// score for documents outside bits.
type filteredScorer struct {
	inner Scorer
	bits  *roaring.Bitmap
	boost float32
}

func (s *filteredScorer) Next() bool                { return s.inner.Next() }
func (s *filteredScorer) SkipTo(target uint32) bool { return s.inner.SkipTo(target) }
func (s *filteredScorer) Doc() uint32               { return s.inner.Doc() }
func (s *filteredScorer) Err() error                { return s.inner.Err() }
func (s *filteredScorer) release()                  { release(s.inner) }

func (s *filteredScorer) Score() float32 {
	if !s.bits.Contains(s.inner.Doc()) {
		return 0
	}
	return s.inner.Score() * s.boost
}

func (s *filteredScorer) Explain(doc uint32) (*explain.Explanation, error) {
	e, err := s.inner.Explain(doc)
	if err != nil {
		return nil, err
	}
	if s.bits.Contains(doc) {
		e.Description = "allowed by filter: " + e.Description
	} else {
		e.Description = "removed by filter: " + e.Description
	}
	return e, nil
}
