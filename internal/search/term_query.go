package search

import (
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/search-core/internal/index"
	"github.com/Adithya-Monish-Kumar-K/search-core/internal/search/explain"
	"github.com/Adithya-Monish-Kumar-K/search-core/internal/search/similarity"
)

// TermQuery matches documents containing a term.
type TermQuery struct {
	boostable
	term index.Term
}

func NewTermQuery(t index.Term) *TermQuery {
	return &TermQuery{boostable: boostable{boost: 1}, term: t}
}

func (q *TermQuery) Term() index.Term { return q.term }

func (q *TermQuery) CreateWeight(s Searcher) (Weight, error) {
	sim := s.Similarity()
	idf, err := IdfTerms(sim, s, []index.Term{q.term})
	if err != nil {
		return nil, err
	}
	return &termWeight{query: q, searcher: s, sim: sim, idf: idf}, nil
}

func (q *TermQuery) Rewrite(index.Reader) (Query, error) { return q, nil }

func (q *TermQuery) ExtractTerms(terms map[index.Term]struct{}) {
	terms[q.term] = struct{}{}
}

func (q *TermQuery) Clone() Query {
	c := *q
	return &c
}

func (q *TermQuery) String(field string) string {
	s := q.term.Text
	if q.term.Field != field {
		s = q.term.Field + ":" + s
	}
	return s + boostString(q.boost)
}

type termWeight struct {
	query       *TermQuery
	searcher    Searcher
	sim         similarity.Similarity
	idf         float32
	queryNorm   float32
	queryWeight float32
	value       float32
}

func (w *termWeight) Query() Query   { return w.query }
func (w *termWeight) Value() float32 { return w.value }

func (w *termWeight) SumOfSquaredWeights() float32 {
	w.queryWeight = w.idf * w.query.Boost()
	return w.queryWeight * w.queryWeight
}

func (w *termWeight) Normalize(norm float32) {
	w.queryNorm = norm
	w.queryWeight *= norm
	w.value = w.queryWeight * w.idf
}

func (w *termWeight) Scorer(r index.Reader) (Scorer, error) {
	td, err := r.TermDocs(w.query.term)
	if err != nil {
		return nil, fmt.Errorf("opening postings of %s: %w", w.query.term, err)
	}
	norms, err := r.Norms(w.query.term.Field)
	if err != nil {
		td.Close()
		return nil, fmt.Errorf("reading norms of %q: %w", w.query.term.Field, err)
	}
	return newTermScorer(w, td, w.sim, norms), nil
}

func (w *termWeight) Explain(r index.Reader, doc uint32) (*explain.Explanation, error) {
	q := w.query
	df, err := w.searcher.DocFreq(q.term)
	if err != nil {
		return nil, fmt.Errorf("doc freq of %s: %w", q.term, err)
	}
	result := explain.New(0, fmt.Sprintf("weight(%s in %d), product of:", q.String(""), doc))
	idfExpl := explain.New(w.idf, fmt.Sprintf("idf(docFreq=%d)", df))

	queryExpl := explain.New(0, fmt.Sprintf("queryWeight(%s), product of:", q.String("")))
	boostExpl := explain.New(q.Boost(), "boost")
	if q.Boost() != 1 {
		queryExpl.AddDetail(boostExpl)
	}
	queryExpl.AddDetail(idfExpl)
	queryExpl.AddDetail(explain.New(w.queryNorm, "queryNorm"))
	queryExpl.Value = boostExpl.Value * idfExpl.Value * w.queryNorm
	result.AddDetail(queryExpl)

	field := q.term.Field
	fieldExpl := explain.New(0, fmt.Sprintf("fieldWeight(%s in %d), product of:", q.term, doc))
	sc, err := w.Scorer(r)
	if err != nil {
		return nil, err
	}
	defer release(sc)
	tfExpl, err := sc.Explain(doc)
	if err != nil {
		return nil, err
	}
	fieldExpl.AddDetail(tfExpl)
	fieldExpl.AddDetail(idfExpl)

	norms, err := r.Norms(field)
	if err != nil {
		return nil, fmt.Errorf("reading norms of %q: %w", field, err)
	}
	fieldNorm := normAt(norms, doc)
	fieldExpl.AddDetail(explain.New(fieldNorm, fmt.Sprintf("fieldNorm(field=%s, doc=%d)", field, doc)))
	fieldExpl.Value = tfExpl.Value * idfExpl.Value * fieldNorm
	result.AddDetail(fieldExpl)

	result.Value = queryExpl.Value * fieldExpl.Value
	if queryExpl.Value == 1 {
		return fieldExpl, nil
	}
	return result, nil
}

// normAt decodes the norm of doc. Fields without norms weigh 1.
func normAt(norms []byte, doc uint32) float32 {
	if norms == nil || int(doc) >= len(norms) {
		return 1
	}
	return similarity.DecodeNorm(norms[doc])
}
