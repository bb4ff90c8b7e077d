package search

import (
	"github.com/Adithya-Monish-Kumar-K/search-core/internal/index"
	"github.com/Adithya-Monish-Kumar-K/search-core/internal/search/explain"
)

// subScorer remembers where a clause scorer stands so that it is never
// skipped past a doc it is already on.
type subScorer struct {
	scorer  Scorer
	started bool
	more    bool
}

// advanceTo positions the clause on its first doc >= target.
func (s *subScorer) advanceTo(target uint32) bool {
	if !s.started {
		s.started = true
		s.more = s.scorer.Next()
	}
	if s.more && s.scorer.Doc() < target {
		s.more = s.scorer.SkipTo(target)
	}
	return s.more
}

func (s *subScorer) doc() uint32 { return s.scorer.Doc() }

// booleanScorer evaluates clauses document at a time. Required clauses are
// leapfrogged onto a common doc; without required clauses the candidate is
// the smallest doc any optional clause is on.
type booleanScorer struct {
	weight       *booleanWeight
	reader       index.Reader
	required     []*subScorer
	optional     []*subScorer
	prohibited   []*subScorer
	coordFactors []float32
	doc          uint32
	score        float32
	started      bool
	exhausted    bool
}

func (s *booleanScorer) Next() bool {
	if s.exhausted {
		return false
	}
	target := uint32(0)
	if s.started {
		target = s.doc + 1
	}
	return s.findFrom(target)
}

func (s *booleanScorer) SkipTo(target uint32) bool {
	if s.exhausted {
		return false
	}
	return s.findFrom(skipTarget(s.started, s.doc, target))
}

func (s *booleanScorer) findFrom(target uint32) bool {
	s.started = true
	for {
		candidate, ok := s.candidate(target)
		if !ok {
			s.exhausted = true
			return false
		}
		if s.isProhibited(candidate) {
			target = candidate + 1
			continue
		}
		// Only positive-scoring clauses count toward coord, as in Explain.
		var sum float32
		matched := 0
		for _, r := range s.required {
			if score := r.scorer.Score(); score > 0 {
				sum += score
				matched++
			}
		}
		for _, o := range s.optional {
			if o.advanceTo(candidate) && o.doc() == candidate {
				if score := o.scorer.Score(); score > 0 {
					sum += score
					matched++
				}
			}
		}
		s.doc = candidate
		s.score = sum * s.coordFactors[matched]
		return true
	}
}

func (s *booleanScorer) candidate(target uint32) (uint32, bool) {
	if len(s.required) > 0 {
		candidate := target
		for {
			agreed := true
			for _, r := range s.required {
				if !r.advanceTo(candidate) {
					return 0, false
				}
				if d := r.doc(); d > candidate {
					candidate = d
					agreed = false
				}
			}
			if agreed {
				return candidate, true
			}
		}
	}
	found := false
	var candidate uint32
	for _, o := range s.optional {
		if o.advanceTo(target) {
			if d := o.doc(); !found || d < candidate {
				candidate = d
				found = true
			}
		}
	}
	return candidate, found
}

func (s *booleanScorer) isProhibited(doc uint32) bool {
	for _, p := range s.prohibited {
		if p.advanceTo(doc) && p.doc() == doc {
			return true
		}
	}
	return false
}

func (s *booleanScorer) Doc() uint32 { return s.doc }

func (s *booleanScorer) Score() float32 { return s.score }

func (s *booleanScorer) Err() error {
	for _, group := range [][]*subScorer{s.required, s.optional, s.prohibited} {
		for _, sub := range group {
			if err := sub.scorer.Err(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *booleanScorer) release() {
	s.exhausted = true
	for _, group := range [][]*subScorer{s.required, s.optional, s.prohibited} {
		for _, sub := range group {
			release(sub.scorer)
		}
	}
}

func (s *booleanScorer) Explain(doc uint32) (*explain.Explanation, error) {
	return s.weight.Explain(s.reader, doc)
}
