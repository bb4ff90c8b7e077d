package search

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/search-core/internal/index"
	"github.com/Adithya-Monish-Kumar-K/search-core/internal/search/pqueue"
)

// RangeQuery matches documents with a term of a field between two bounds.
// It rewrites into a coord-disabled boolean query of term queries.
type RangeQuery struct {
	boostable
	field     string
	lower     string
	upper     string
	inclusive bool
}

// NewRangeQuery builds a range over the field of the given bounds. Either
// bound may be nil for an open range, but not both.
func NewRangeQuery(lower, upper *index.Term, inclusive bool) (*RangeQuery, error) {
	if lower == nil && upper == nil {
		return nil, argError("range", "at least one bound must be set")
	}
	if lower != nil && upper != nil && lower.Field != upper.Field {
		return nil, argError("range", "bounds must be in the same field, got %q and %q", lower.Field, upper.Field)
	}
	q := &RangeQuery{boostable: boostable{boost: 1}, inclusive: inclusive}
	if lower != nil {
		q.field, q.lower = lower.Field, lower.Text
	}
	if upper != nil {
		q.field, q.upper = upper.Field, upper.Text
	}
	return q, nil
}

func (q *RangeQuery) Field() string { return q.field }

func (q *RangeQuery) Rewrite(r index.Reader) (Query, error) {
	bq := NewBooleanQuery(true)
	err := eachTermInRange(r, q.field, q.lower, q.upper, q.inclusive, q.inclusive, func(t index.Term, _ uint32) error {
		tq := NewTermQuery(t)
		tq.SetBoost(q.Boost())
		return bq.Add(tq, Should)
	})
	if err != nil {
		return nil, fmt.Errorf("rewriting %s: %w", q.String(""), err)
	}
	return bq, nil
}

func (q *RangeQuery) CreateWeight(Searcher) (Weight, error) { return nil, errNotRewritten }

func (q *RangeQuery) ExtractTerms(map[index.Term]struct{}) {}

func (q *RangeQuery) Clone() Query {
	c := *q
	return &c
}

func (q *RangeQuery) String(field string) string {
	var b strings.Builder
	if q.field != field {
		b.WriteString(q.field)
		b.WriteByte(':')
	}
	if q.inclusive {
		b.WriteByte('[')
	} else {
		b.WriteByte('{')
	}
	b.WriteString(orNull(q.lower))
	b.WriteString(" TO ")
	b.WriteString(orNull(q.upper))
	if q.inclusive {
		b.WriteByte(']')
	} else {
		b.WriteByte('}')
	}
	b.WriteString(boostString(q.boost))
	return b.String()
}

func orNull(s string) string {
	if s == "" {
		return "null"
	}
	return s
}

// PrefixQuery matches documents with a term starting with a prefix.
type PrefixQuery struct {
	boostable
	prefix index.Term
}

func NewPrefixQuery(prefix index.Term) *PrefixQuery {
	return &PrefixQuery{boostable: boostable{boost: 1}, prefix: prefix}
}

func (q *PrefixQuery) Rewrite(r index.Reader) (Query, error) {
	bq := NewBooleanQuery(true)
	err := eachTermInRange(r, q.prefix.Field, q.prefix.Text, "", true, false, func(t index.Term, _ uint32) error {
		if !strings.HasPrefix(t.Text, q.prefix.Text) {
			return errStopEnum
		}
		tq := NewTermQuery(t)
		tq.SetBoost(q.Boost())
		return bq.Add(tq, Should)
	})
	if err != nil && !errors.Is(err, errStopEnum) {
		return nil, fmt.Errorf("rewriting %s: %w", q.String(""), err)
	}
	return bq, nil
}

func (q *PrefixQuery) CreateWeight(Searcher) (Weight, error) { return nil, errNotRewritten }

func (q *PrefixQuery) ExtractTerms(map[index.Term]struct{}) {}

func (q *PrefixQuery) Clone() Query {
	c := *q
	return &c
}

func (q *PrefixQuery) String(field string) string {
	s := q.prefix.Text + "*"
	if q.prefix.Field != field {
		s = q.prefix.Field + ":" + s
	}
	return s + boostString(q.boost)
}

const (
	DefaultFuzzyMinSimilarity = 0.5
	DefaultFuzzyPrefixLength  = 0
)

// FuzzyQuery matches terms within an edit distance of a target term. The
// similarity of a candidate is 1 - distance/length; candidates above
// minSimilarity are kept, the best MaxClauseCount of them, each boosted by
// how similar it is.
type FuzzyQuery struct {
	boostable
	term          index.Term
	minSimilarity float32
	prefixLength  int
}

func NewFuzzyQuery(t index.Term, minSimilarity float32, prefixLength int) (*FuzzyQuery, error) {
	if minSimilarity >= 1 {
		return nil, argError("minimum similarity", "must be below 1, got %g", minSimilarity)
	}
	if minSimilarity < 0 {
		return nil, argError("minimum similarity", "must not be negative, got %g", minSimilarity)
	}
	if prefixLength < 0 {
		return nil, argError("prefix length", "must not be negative, got %d", prefixLength)
	}
	return &FuzzyQuery{
		boostable:     boostable{boost: 1},
		term:          t,
		minSimilarity: minSimilarity,
		prefixLength:  prefixLength,
	}, nil
}

type scoredTerm struct {
	term  index.Term
	score float32
}

func (q *FuzzyQuery) Rewrite(r index.Reader) (Query, error) {
	target := []rune(q.term.Text)
	prefixLen := min(q.prefixLength, len(target))
	prefix := string(target[:prefixLen])
	text := target[prefixLen:]
	scale := 1 / (1 - q.minSimilarity)

	limit := MaxClauseCount()
	best := pqueue.New(limit, func(a, b scoredTerm) bool {
		if a.score == b.score {
			return a.term.Compare(b.term) > 0
		}
		return a.score < b.score
	})

	te, err := r.Terms(q.term.Field)
	if err != nil {
		return nil, fmt.Errorf("rewriting %s: %w", q.String(""), err)
	}
	defer te.Close()
	var minScore float32
	for te.Next() {
		t := te.Term()
		if !strings.HasPrefix(t.Text, prefix) {
			continue
		}
		sim := fuzzySimilarity(text, []rune(t.Text[len(prefix):]), utf8.RuneCountInString(prefix), q.minSimilarity)
		if sim <= q.minSimilarity {
			continue
		}
		score := (sim - q.minSimilarity) * scale
		if best.Len() < limit || score > minScore {
			best.Insert(scoredTerm{term: t, score: score})
			top, _ := best.Top()
			minScore = top.score
		}
	}
	if err := te.Err(); err != nil {
		return nil, fmt.Errorf("rewriting %s: %w", q.String(""), err)
	}

	bq := NewBooleanQuery(true)
	for best.Len() > 0 {
		st, _ := best.Pop()
		tq := NewTermQuery(st.term)
		tq.SetBoost(q.Boost() * st.score)
		if err := bq.Add(tq, Should); err != nil {
			return nil, err
		}
	}
	return bq, nil
}

// fuzzySimilarity returns 1 - levenshtein(text, target) / (prefixLen +
// min(len(text), len(target))), or 0 when the lengths alone rule out a match.
func fuzzySimilarity(text, target []rune, prefixLen int, minSimilarity float32) float32 {
	n, m := len(text), len(target)
	if n == 0 {
		if prefixLen == 0 {
			return 0
		}
		return 1 - float32(m)/float32(prefixLen)
	}
	if m == 0 {
		if prefixLen == 0 {
			return 0
		}
		return 1 - float32(n)/float32(prefixLen)
	}
	maxDistance := int((1 - minSimilarity) * float32(min(n, m)+prefixLen))
	if diff := n - m; diff > maxDistance || -diff > maxDistance {
		return 0
	}

	prev := make([]int, m+1)
	cur := make([]int, m+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= n; i++ {
		cur[0] = i
		for j := 1; j <= m; j++ {
			cost := 1
			if text[i-1] == target[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return 1 - float32(prev[m])/float32(prefixLen+min(n, m))
}

func (q *FuzzyQuery) CreateWeight(Searcher) (Weight, error) { return nil, errNotRewritten }

func (q *FuzzyQuery) ExtractTerms(map[index.Term]struct{}) {}

func (q *FuzzyQuery) Clone() Query {
	c := *q
	return &c
}

func (q *FuzzyQuery) String(field string) string {
	s := q.term.Text
	if q.term.Field != field {
		s = q.term.Field + ":" + s
	}
	return s + "~" + strconv.FormatFloat(float64(q.minSimilarity), 'g', -1, 32) + boostString(q.boost)
}
