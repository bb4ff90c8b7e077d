package search

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/Adithya-Monish-Kumar-K/search-core/internal/index"
	"github.com/Adithya-Monish-Kumar-K/search-core/internal/search/explain"
)

// MatchAllDocsQuery matches every document with a score equal to its
// normalized boost.
type MatchAllDocsQuery struct {
	boostable
}

func NewMatchAllDocsQuery() *MatchAllDocsQuery {
	return &MatchAllDocsQuery{boostable: boostable{boost: 1}}
}

func (q *MatchAllDocsQuery) CreateWeight(Searcher) (Weight, error) {
	return &constantWeight{
		query: q,
		bits: func(r index.Reader) (*roaring.Bitmap, error) {
			all := roaring.New()
			all.AddRange(0, uint64(r.MaxDoc()))
			return all, nil
		},
		describe: "MatchAllDocsQuery",
	}, nil
}

func (q *MatchAllDocsQuery) Rewrite(index.Reader) (Query, error) { return q, nil }

func (q *MatchAllDocsQuery) ExtractTerms(map[index.Term]struct{}) {}

func (q *MatchAllDocsQuery) Clone() Query {
	c := *q
	return &c
}

func (q *MatchAllDocsQuery) String(string) string {
	return "*:*" + boostString(q.boost)
}

// ConstantScoreQuery matches the documents a filter admits, all with the
// same score.
type ConstantScoreQuery struct {
	boostable
	filter Filter
}

func NewConstantScoreQuery(f Filter) *ConstantScoreQuery {
	return &ConstantScoreQuery{boostable: boostable{boost: 1}, filter: f}
}

func (q *ConstantScoreQuery) Filter() Filter { return q.filter }

func (q *ConstantScoreQuery) CreateWeight(Searcher) (Weight, error) {
	return &constantWeight{
		query:    q,
		bits:     q.filter.Bits,
		describe: "ConstantScoreQuery(" + q.filter.String() + ")",
	}, nil
}

func (q *ConstantScoreQuery) Rewrite(index.Reader) (Query, error) { return q, nil }

func (q *ConstantScoreQuery) ExtractTerms(map[index.Term]struct{}) {}

func (q *ConstantScoreQuery) Clone() Query {
	c := *q
	return &c
}

func (q *ConstantScoreQuery) String(string) string {
	return "ConstantScore(" + q.filter.String() + ")" + boostString(q.boost)
}

type constantWeight struct {
	query       Query
	bits        func(index.Reader) (*roaring.Bitmap, error)
	describe    string
	queryNorm   float32
	queryWeight float32
}

func (w *constantWeight) Query() Query   { return w.query }
func (w *constantWeight) Value() float32 { return w.queryWeight }

func (w *constantWeight) SumOfSquaredWeights() float32 {
	w.queryWeight = w.query.Boost()
	return w.queryWeight * w.queryWeight
}

func (w *constantWeight) Normalize(norm float32) {
	w.queryNorm = norm
	w.queryWeight *= norm
}

func (w *constantWeight) Scorer(r index.Reader) (Scorer, error) {
	bits, err := w.bits(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", w.describe, err)
	}
	return &constantScorer{weight: w, it: bits.Iterator(), score: w.queryWeight}, nil
}

func (w *constantWeight) Explain(r index.Reader, doc uint32) (*explain.Explanation, error) {
	bits, err := w.bits(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", w.describe, err)
	}
	if !bits.Contains(doc) {
		return explain.New(0, fmt.Sprintf("%s doesn't match id %d", w.describe, doc)), nil
	}
	result := explain.New(w.queryWeight, w.describe+", product of:")
	if b := w.query.Boost(); b != 1 {
		result.AddDetail(explain.New(b, "boost"))
	}
	result.AddDetail(explain.New(w.queryNorm, "queryNorm"))
	return result, nil
}

// constantScorer walks a bitmap of matching docs.
type constantScorer struct {
	weight    *constantWeight
	it        roaring.IntPeekable
	doc       uint32
	score     float32
	started   bool
	exhausted bool
}

func (s *constantScorer) Next() bool {
	if s.exhausted || !s.it.HasNext() {
		s.exhausted = true
		return false
	}
	s.started = true
	s.doc = s.it.Next()
	return true
}

func (s *constantScorer) SkipTo(target uint32) bool {
	if s.exhausted {
		return false
	}
	s.it.AdvanceIfNeeded(skipTarget(s.started, s.doc, target))
	return s.Next()
}

func (s *constantScorer) Doc() uint32    { return s.doc }
func (s *constantScorer) Score() float32 { return s.score }
func (s *constantScorer) Err() error     { return nil }

func (s *constantScorer) Explain(doc uint32) (*explain.Explanation, error) {
	for s.Next() && s.doc < doc {
	}
	if s.exhausted || s.doc != doc {
		return explain.New(0, fmt.Sprintf("%s doesn't match id %d", s.weight.describe, doc)), nil
	}
	return explain.New(s.score, s.weight.describe), nil
}
