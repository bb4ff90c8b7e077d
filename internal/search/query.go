// Package search executes queries against an index.Reader and ranks the
// matching documents.
//
// A Query is first rewritten into primitive queries, then turned into a
// Weight holding the normalization computed against a Searcher. The Weight
// builds one Scorer per index; the Scorer enumerates matching documents in
// increasing doc order and is drained into a HitQueue (relevance order), a
// FieldSortedHitQueue (stored field order) or a caller's HitCollector.
//
// IndexSearcher searches a single reader. MultiSearcher and
// ParallelMultiSearcher search several and merge the results into one doc
// id space, scoring as if the readers formed a single index.
package search

import (
	"fmt"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/search-core/internal/index"
	"github.com/Adithya-Monish-Kumar-K/search-core/internal/search/explain"
	"github.com/Adithya-Monish-Kumar-K/search-core/internal/search/similarity"
)

// Query describes what to match. Implementations are pointers; Rewrite
// returns the receiver itself when nothing changed.
type Query interface {
	Boost() float32
	SetBoost(b float32)
	// CreateWeight builds the weight of an already rewritten query. Use
	// BuildWeight to get a normalized weight.
	CreateWeight(s Searcher) (Weight, error)
	// Rewrite expands the query into primitive queries against r.
	Rewrite(r index.Reader) (Query, error)
	// ExtractTerms adds every term of a rewritten query to terms.
	ExtractTerms(terms map[index.Term]struct{})
	// Clone returns a shallow copy.
	Clone() Query
	// String renders the query; field is the default field and is omitted
	// from terms of that field.
	String(field string) string
}

// Searcher is what a Weight needs to compute collection statistics.
type Searcher interface {
	DocFreq(t index.Term) (uint32, error)
	MaxDoc() uint32
	Similarity() similarity.Similarity
	Rewrite(q Query) (Query, error)
}

// Searchable is implemented by IndexSearcher, MultiSearcher and
// ParallelMultiSearcher. The Weight based methods are the low-level
// entry points the multi searchers fan out to.
type Searchable interface {
	Searcher
	CreateWeight(q Query) (Weight, error)
	SearchWeight(w Weight, filter Filter, n int) (*TopDocs, error)
	SearchWeightSorted(w Weight, filter Filter, n int, sort *Sort) (*TopFieldDocs, error)
	CollectWeight(w Weight, filter Filter, c HitCollector) error
	ExplainWeight(w Weight, doc uint32) (*explain.Explanation, error)
	Doc(doc uint32) (*index.Document, error)
	Close() error
}

// Weight is the per-search state of a query: its normalization and the
// statistics it was computed from.
type Weight interface {
	Query() Query
	Value() float32
	SumOfSquaredWeights() float32
	Normalize(norm float32)
	Scorer(r index.Reader) (Scorer, error)
	Explain(r index.Reader, doc uint32) (*explain.Explanation, error)
}

// BuildWeight rewrites q with s, creates its weight and normalizes it with
// the query norm.
func BuildWeight(q Query, s Searcher) (Weight, error) {
	rewritten, err := s.Rewrite(q)
	if err != nil {
		return nil, err
	}
	w, err := rewritten.CreateWeight(s)
	if err != nil {
		return nil, err
	}
	w.Normalize(s.Similarity().QueryNorm(w.SumOfSquaredWeights()))
	return w, nil
}

// IdfTerms sums the idf of every term.
func IdfTerms(sim similarity.Similarity, s Searcher, terms []index.Term) (float32, error) {
	numDocs := s.MaxDoc()
	var idf float32
	for _, t := range terms {
		df, err := s.DocFreq(t)
		if err != nil {
			return 0, fmt.Errorf("doc freq of %s: %w", t, err)
		}
		idf += sim.Idf(df, numDocs)
	}
	return idf, nil
}

// Combine merges the rewrites of one query produced by different readers.
// Boolean queries that only hold SHOULD clauses and have coord disabled are
// split into their clauses; duplicates are dropped and the survivors are
// joined as SHOULD clauses of a new coord-disabled boolean query.
func Combine(queries []Query) (Query, error) {
	seen := make(map[string]struct{})
	var uniques []Query
	add := func(q Query) {
		k := queryKey(q)
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		uniques = append(uniques, q)
	}
	for _, q := range queries {
		if bq, ok := q.(*BooleanQuery); ok && bq.splittable() {
			for _, c := range bq.clauses {
				add(c.Query)
			}
			continue
		}
		add(q)
	}
	if len(uniques) == 1 {
		return uniques[0], nil
	}
	result := NewBooleanQuery(true)
	for _, q := range uniques {
		if err := result.Add(q, Should); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func queryKey(q Query) string {
	return fmt.Sprintf("%T|%s", q, q.String(""))
}

type boostable struct {
	boost float32
}

func (b *boostable) Boost() float32 { return b.boost }

func (b *boostable) SetBoost(v float32) { b.boost = v }

func boostString(b float32) string {
	if b == 1 {
		return ""
	}
	return "^" + strconv.FormatFloat(float64(b), 'g', -1, 32)
}
