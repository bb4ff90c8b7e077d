package search

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/search-core/internal/index"
	"github.com/Adithya-Monish-Kumar-K/search-core/internal/search/explain"
	"github.com/Adithya-Monish-Kumar-K/search-core/internal/search/similarity"
)

// PhraseQuery matches documents containing its terms at the given relative
// positions. With a non-zero slop the terms may be up to slop moves apart
// in total, and closer matches score higher.
type PhraseQuery struct {
	boostable
	field     string
	terms     []index.Term
	positions []int
	slop      int
}

func NewPhraseQuery() *PhraseQuery {
	return &PhraseQuery{boostable: boostable{boost: 1}}
}

// Add appends t one position after the previous term.
func (q *PhraseQuery) Add(t index.Term) error {
	pos := 0
	if n := len(q.positions); n > 0 {
		pos = q.positions[n-1] + 1
	}
	return q.AddAt(t, pos)
}

// AddAt adds t at an explicit position. All terms must share a field.
func (q *PhraseQuery) AddAt(t index.Term, position int) error {
	if len(q.terms) == 0 {
		q.field = t.Field
	} else if t.Field != q.field {
		return argError("phrase term", "all terms must be in field %q, got %q", q.field, t.Field)
	}
	q.terms = append(q.terms, t)
	q.positions = append(q.positions, position)
	return nil
}

func (q *PhraseQuery) Terms() []index.Term { return q.terms }

func (q *PhraseQuery) Positions() []int { return q.positions }

func (q *PhraseQuery) Slop() int { return q.slop }

func (q *PhraseQuery) SetSlop(slop int) { q.slop = slop }

func (q *PhraseQuery) CreateWeight(s Searcher) (Weight, error) {
	if len(q.terms) == 1 {
		tq := NewTermQuery(q.terms[0])
		tq.SetBoost(q.Boost())
		return tq.CreateWeight(s)
	}
	sim := s.Similarity()
	idf, err := IdfTerms(sim, s, q.terms)
	if err != nil {
		return nil, err
	}
	return &phraseWeight{query: q, searcher: s, sim: sim, idf: idf}, nil
}

func (q *PhraseQuery) Rewrite(index.Reader) (Query, error) { return q, nil }

func (q *PhraseQuery) ExtractTerms(terms map[index.Term]struct{}) {
	for _, t := range q.terms {
		terms[t] = struct{}{}
	}
}

func (q *PhraseQuery) Clone() Query {
	c := *q
	c.terms = append([]index.Term(nil), q.terms...)
	c.positions = append([]int(nil), q.positions...)
	return &c
}

func (q *PhraseQuery) String(field string) string {
	var b strings.Builder
	if q.field != field {
		b.WriteString(q.field)
		b.WriteByte(':')
	}
	b.WriteByte('"')
	for i, t := range q.terms {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(t.Text)
	}
	b.WriteByte('"')
	if q.slop != 0 {
		b.WriteByte('~')
		b.WriteString(strconv.Itoa(q.slop))
	}
	b.WriteString(boostString(q.boost))
	return b.String()
}

type phraseWeight struct {
	query       *PhraseQuery
	searcher    Searcher
	sim         similarity.Similarity
	idf         float32
	queryNorm   float32
	queryWeight float32
	value       float32
}

func (w *phraseWeight) Query() Query   { return w.query }
func (w *phraseWeight) Value() float32 { return w.value }

func (w *phraseWeight) SumOfSquaredWeights() float32 {
	w.queryWeight = w.idf * w.query.Boost()
	return w.queryWeight * w.queryWeight
}

func (w *phraseWeight) Normalize(norm float32) {
	w.queryNorm = norm
	w.queryWeight *= norm
	w.value = w.queryWeight * w.idf
}

func (w *phraseWeight) Scorer(r index.Reader) (Scorer, error) {
	q := w.query
	if len(q.terms) == 0 {
		return emptyScorer{}, nil
	}
	tps := make([]index.TermPositions, 0, len(q.terms))
	for _, t := range q.terms {
		tp, err := r.TermPositions(t)
		if err != nil {
			for _, open := range tps {
				open.Close()
			}
			return nil, fmt.Errorf("opening positions of %s: %w", t, err)
		}
		tps = append(tps, tp)
	}
	norms, err := r.Norms(q.field)
	if err != nil {
		for _, open := range tps {
			open.Close()
		}
		return nil, fmt.Errorf("reading norms of %q: %w", q.field, err)
	}
	if q.slop == 0 {
		return newExactPhraseScorer(w, tps, q.positions, w.sim, norms), nil
	}
	return newSloppyPhraseScorer(w, tps, q.positions, w.sim, norms, q.slop), nil
}

func (w *phraseWeight) Explain(r index.Reader, doc uint32) (*explain.Explanation, error) {
	q := w.query
	result := explain.New(0, fmt.Sprintf("weight(%s in %d), product of:", q.String(""), doc))

	var docFreqs strings.Builder
	for i, t := range q.terms {
		if i > 0 {
			docFreqs.WriteByte(' ')
		}
		df, err := w.searcher.DocFreq(t)
		if err != nil {
			return nil, fmt.Errorf("doc freq of %s: %w", t, err)
		}
		docFreqs.WriteString(t.Text)
		docFreqs.WriteByte('=')
		docFreqs.WriteString(strconv.FormatUint(uint64(df), 10))
	}
	idfExpl := explain.New(w.idf, fmt.Sprintf("idf(%s: %s)", q.field, docFreqs.String()))

	queryExpl := explain.New(0, fmt.Sprintf("queryWeight(%s), product of:", q.String("")))
	boostExpl := explain.New(q.Boost(), "boost")
	if q.Boost() != 1 {
		queryExpl.AddDetail(boostExpl)
	}
	queryExpl.AddDetail(idfExpl)
	queryExpl.AddDetail(explain.New(w.queryNorm, "queryNorm"))
	queryExpl.Value = boostExpl.Value * idfExpl.Value * w.queryNorm
	result.AddDetail(queryExpl)

	fieldExpl := explain.New(0, fmt.Sprintf("fieldWeight(%s:%s in %d), product of:", q.field, q.String(q.field), doc))
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

	norms, err := r.Norms(q.field)
	if err != nil {
		return nil, fmt.Errorf("reading norms of %q: %w", q.field, err)
	}
	fieldNorm := normAt(norms, doc)
	fieldExpl.AddDetail(explain.New(fieldNorm, fmt.Sprintf("fieldNorm(field=%s, doc=%d)", q.field, doc)))
	fieldExpl.Value = tfExpl.Value * idfExpl.Value * fieldNorm
	result.AddDetail(fieldExpl)

	result.Value = queryExpl.Value * fieldExpl.Value
	if queryExpl.Value == 1 {
		return fieldExpl, nil
	}
	return result, nil
}
