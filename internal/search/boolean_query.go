package search

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/Adithya-Monish-Kumar-K/search-core/internal/index"
	"github.com/Adithya-Monish-Kumar-K/search-core/internal/search/explain"
	"github.com/Adithya-Monish-Kumar-K/search-core/internal/search/similarity"
)

// Occur says how a clause takes part in a boolean query.
type Occur uint8

const (
	Should Occur = iota
	Must
	MustNot
)

func (o Occur) String() string {
	switch o {
	case Must:
		return "+"
	case MustNot:
		return "-"
	default:
		return ""
	}
}

// DefaultMaxClauseCount is the initial limit on the clauses of a boolean
// query.
const DefaultMaxClauseCount = 1024

var maxClauseCount atomic.Int64

func init() {
	maxClauseCount.Store(DefaultMaxClauseCount)
}

// MaxClauseCount returns the process-wide clause limit.
func MaxClauseCount() int { return int(maxClauseCount.Load()) }

// SetMaxClauseCount changes the process-wide clause limit. Values below 1
// are ignored.
func SetMaxClauseCount(n int) {
	if n >= 1 {
		maxClauseCount.Store(int64(n))
	}
}

type BooleanClause struct {
	Query Query
	Occur Occur
}

// BooleanQuery combines clauses. A document matches when it matches every
// Must clause, no MustNot clause and, if there are no Must clauses, at least
// one Should clause. Its score is the sum of the matching clause scores
// times coord(matching, total), unless coord is disabled.
type BooleanQuery struct {
	boostable
	clauses      []BooleanClause
	disableCoord bool
}

func NewBooleanQuery(disableCoord bool) *BooleanQuery {
	return &BooleanQuery{boostable: boostable{boost: 1}, disableCoord: disableCoord}
}

func (q *BooleanQuery) Add(sub Query, occur Occur) error {
	if len(q.clauses) >= MaxClauseCount() {
		return fmt.Errorf("%w (limit %d)", ErrTooManyClauses, MaxClauseCount())
	}
	q.clauses = append(q.clauses, BooleanClause{Query: sub, Occur: occur})
	return nil
}

func (q *BooleanQuery) Clauses() []BooleanClause { return q.clauses }

func (q *BooleanQuery) CoordDisabled() bool { return q.disableCoord }

func (q *BooleanQuery) splittable() bool {
	if !q.disableCoord || q.boost != 1 {
		return false
	}
	for _, c := range q.clauses {
		if c.Occur != Should {
			return false
		}
	}
	return true
}

func (q *BooleanQuery) CreateWeight(s Searcher) (Weight, error) {
	w := &booleanWeight{query: q, sim: s.Similarity(), weights: make([]Weight, 0, len(q.clauses))}
	for _, c := range q.clauses {
		cw, err := c.Query.CreateWeight(s)
		if err != nil {
			return nil, err
		}
		w.weights = append(w.weights, cw)
	}
	return w, nil
}

// Rewrite unwraps a single non-prohibited clause and rewrites every clause.
func (q *BooleanQuery) Rewrite(r index.Reader) (Query, error) {
	if len(q.clauses) == 1 && q.clauses[0].Occur != MustNot {
		c := q.clauses[0]
		rewritten, err := c.Query.Rewrite(r)
		if err != nil {
			return nil, err
		}
		if q.Boost() != 1 {
			if rewritten == c.Query {
				rewritten = rewritten.Clone()
			}
			rewritten.SetBoost(q.Boost() * rewritten.Boost())
		}
		return rewritten, nil
	}

	var clone *BooleanQuery
	for i, c := range q.clauses {
		rewritten, err := c.Query.Rewrite(r)
		if err != nil {
			return nil, err
		}
		if rewritten != c.Query {
			if clone == nil {
				clone = q.Clone().(*BooleanQuery)
			}
			clone.clauses[i] = BooleanClause{Query: rewritten, Occur: c.Occur}
		}
	}
	if clone != nil {
		return clone, nil
	}
	return q, nil
}

func (q *BooleanQuery) ExtractTerms(terms map[index.Term]struct{}) {
	for _, c := range q.clauses {
		c.Query.ExtractTerms(terms)
	}
}

func (q *BooleanQuery) Clone() Query {
	c := *q
	c.clauses = append([]BooleanClause(nil), q.clauses...)
	return &c
}

func (q *BooleanQuery) String(field string) string {
	var b strings.Builder
	if q.boost != 1 {
		b.WriteByte('(')
	}
	for i, c := range q.clauses {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(c.Occur.String())
		if _, nested := c.Query.(*BooleanQuery); nested {
			b.WriteByte('(')
			b.WriteString(c.Query.String(field))
			b.WriteByte(')')
		} else {
			b.WriteString(c.Query.String(field))
		}
	}
	if q.boost != 1 {
		b.WriteByte(')')
		b.WriteString(boostString(q.boost))
	}
	return b.String()
}

type booleanWeight struct {
	query   *BooleanQuery
	sim     similarity.Similarity
	weights []Weight
}

func (w *booleanWeight) Query() Query   { return w.query }
func (w *booleanWeight) Value() float32 { return w.query.Boost() }

func (w *booleanWeight) SumOfSquaredWeights() float32 {
	var sum float32
	for i, cw := range w.weights {
		if w.query.clauses[i].Occur != MustNot {
			sum += cw.SumOfSquaredWeights()
		}
	}
	b := w.query.Boost()
	return sum * b * b
}

func (w *booleanWeight) Normalize(norm float32) {
	norm *= w.query.Boost()
	for _, cw := range w.weights {
		cw.Normalize(norm)
	}
}

func (w *booleanWeight) coord(overlap, maxOverlap int) float32 {
	if w.query.disableCoord {
		return 1
	}
	return w.sim.Coord(overlap, maxOverlap)
}

func (w *booleanWeight) Scorer(r index.Reader) (Scorer, error) {
	s := &booleanScorer{weight: w, reader: r}
	for i, cw := range w.weights {
		sc, err := cw.Scorer(r)
		if err != nil {
			s.release()
			return nil, err
		}
		sub := &subScorer{scorer: sc}
		switch w.query.clauses[i].Occur {
		case Must:
			s.required = append(s.required, sub)
		case MustNot:
			s.prohibited = append(s.prohibited, sub)
		default:
			s.optional = append(s.optional, sub)
		}
	}
	if len(s.required) == 0 && len(s.optional) == 0 {
		return emptyScorer{}, nil
	}
	maxCoord := len(s.required) + len(s.optional)
	s.coordFactors = make([]float32, maxCoord+1)
	for i := range s.coordFactors {
		s.coordFactors[i] = w.coord(i, maxCoord)
	}
	return s, nil
}

func (w *booleanWeight) Explain(r index.Reader, doc uint32) (*explain.Explanation, error) {
	sumExpl := explain.New(0, "sum of:")
	coord, maxCoord := 0, 0
	var sum float32
	for i, cw := range w.weights {
		c := w.query.clauses[i]
		e, err := cw.Explain(r, doc)
		if err != nil {
			return nil, err
		}
		if c.Occur != MustNot {
			maxCoord++
		}
		if e.Value > 0 {
			if c.Occur == MustNot {
				return explain.New(0, "match prohibited"), nil
			}
			sumExpl.AddDetail(e)
			sum += e.Value
			coord++
		} else if c.Occur == Must {
			return explain.New(0, "match required"), nil
		}
	}
	if coord == 0 {
		return explain.New(0, "no matching clauses"), nil
	}
	sumExpl.Value = sum
	if coord == 1 {
		sumExpl = sumExpl.Details[0]
	}
	coordFactor := w.coord(coord, maxCoord)
	if coordFactor == 1 {
		return sumExpl, nil
	}
	result := explain.New(sum*coordFactor, "product of:")
	result.AddDetail(sumExpl)
	result.AddDetail(explain.New(coordFactor, fmt.Sprintf("coord(%d/%d)", coord, maxCoord)))
	return result, nil
}
