package search

import (
	"github.com/Adithya-Monish-Kumar-K/search-core/internal/search/explain"
)

// Scorer is a single-use cursor over the documents matching a query, in
// increasing doc order. It starts before the first match. Next and SkipTo
// return false once the matches are exhausted and keep returning false
// afterwards. Doc and Score are only valid after a call returned true.
//
// A false return may also mean the postings could not be read; Err reports
// that failure.
type Scorer interface {
	Next() bool
	// SkipTo moves to the first match whose doc is >= target. A positioned
	// scorer always moves past its current doc.
	SkipTo(target uint32) bool
	Doc() uint32
	Score() float32
	// Explain consumes the scorer to describe the score of doc.
	Explain(doc uint32) (*explain.Explanation, error)
	Err() error
}

// scoreAll drives s to exhaustion, handing positive scores to collect.
func scoreAll(s Scorer, collect func(doc uint32, score float32)) error {
	for s.Next() {
		if score := s.Score(); score > 0 {
			collect(s.Doc(), score)
		}
	}
	return s.Err()
}

// releaser is implemented by scorers holding posting cursors. release
// closes those that are still open; the scorer is exhausted afterwards.
type releaser interface {
	release()
}

// release frees the cursors of a scorer that will not be driven to
// exhaustion.
func release(s Scorer) {
	if r, ok := s.(releaser); ok {
		r.release()
	}
}

type emptyScorer struct{}

func (emptyScorer) Next() bool         { return false }
func (emptyScorer) SkipTo(uint32) bool { return false }
func (emptyScorer) Doc() uint32        { return 0 }
func (emptyScorer) Score() float32     { return 0 }
func (emptyScorer) Err() error         { return nil }
func (emptyScorer) Explain(uint32) (*explain.Explanation, error) {
	return explain.New(0, "no matching terms"), nil
}

// skipTarget returns the target SkipTo must use so that a positioned cursor
// never stays on its current doc.
func skipTarget(started bool, current, target uint32) uint32 {
	if started && target <= current {
		return current + 1
	}
	return target
}
