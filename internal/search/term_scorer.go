package search

import (
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/search-core/internal/index"
	"github.com/Adithya-Monish-Kumar-K/search-core/internal/search/explain"
	"github.com/Adithya-Monish-Kumar-K/search-core/internal/search/similarity"
)

const (
	termBatchSize      = 32
	termScoreCacheSize = 32
)

// termScorer reads postings in batches and scores them as
// tf(freq) * weight * norm.
type termScorer struct {
	weight     *termWeight
	termDocs   index.TermDocs
	sim        similarity.Similarity
	norms      []byte
	normTable  *[256]float32
	value      float32
	docs       [termBatchSize]uint32
	freqs      [termBatchSize]uint32
	pointer    int
	pointerMax int
	doc        uint32
	started    bool
	exhausted  bool
	scoreCache [termScoreCacheSize]float32
}

func newTermScorer(w *termWeight, td index.TermDocs, sim similarity.Similarity, norms []byte) *termScorer {
	s := &termScorer{
		weight:    w,
		termDocs:  td,
		sim:       sim,
		norms:     norms,
		normTable: similarity.NormDecoder(),
		value:     w.Value(),
	}
	for i := range s.scoreCache {
		s.scoreCache[i] = sim.Tf(float32(i)) * s.value
	}
	return s
}

func (s *termScorer) Next() bool {
	if s.exhausted {
		return false
	}
	s.started = true
	s.pointer++
	if s.pointer >= s.pointerMax {
		s.pointerMax = s.termDocs.Read(s.docs[:], s.freqs[:])
		if s.pointerMax == 0 {
			s.exhaust()
			return false
		}
		s.pointer = 0
	}
	s.doc = s.docs[s.pointer]
	return true
}

func (s *termScorer) SkipTo(target uint32) bool {
	if s.exhausted {
		return false
	}
	target = skipTarget(s.started, s.doc, target)
	s.started = true
	for s.pointer++; s.pointer < s.pointerMax; s.pointer++ {
		if s.docs[s.pointer] >= target {
			s.doc = s.docs[s.pointer]
			return true
		}
	}
	if !s.termDocs.SkipTo(target) {
		s.exhaust()
		return false
	}
	s.pointerMax = 1
	s.pointer = 0
	s.doc = s.termDocs.Doc()
	s.docs[0] = s.doc
	s.freqs[0] = s.termDocs.Freq()
	return true
}

func (s *termScorer) exhaust() {
	if !s.exhausted {
		s.exhausted = true
		s.termDocs.Close()
	}
	s.pointer = s.pointerMax
}

func (s *termScorer) release() { s.exhaust() }

func (s *termScorer) Doc() uint32 { return s.doc }

func (s *termScorer) Score() float32 {
	f := s.freqs[s.pointer]
	var raw float32
	if f < termScoreCacheSize {
		raw = s.scoreCache[f]
	} else {
		raw = s.sim.Tf(float32(f)) * s.value
	}
	if s.norms == nil {
		return raw
	}
	return raw * s.normTable[s.norms[s.doc]]
}

func (s *termScorer) Err() error { return s.termDocs.Err() }

// Explain reports the term frequency of doc. The buffered postings are
// searched first, then the rest of the cursor.
func (s *termScorer) Explain(doc uint32) (*explain.Explanation, error) {
	var tf uint32
	for ; s.pointer < s.pointerMax; s.pointer++ {
		if s.docs[s.pointer] == doc {
			tf = s.freqs[s.pointer]
		}
	}
	if tf == 0 && !s.exhausted {
		for s.termDocs.Next() {
			if s.termDocs.Doc() == doc {
				tf = s.termDocs.Freq()
			}
		}
	}
	if err := s.termDocs.Err(); err != nil {
		return nil, fmt.Errorf("reading postings of %s: %w", s.weight.query.term, err)
	}
	s.exhaust()
	return explain.New(s.sim.Tf(float32(tf)),
		fmt.Sprintf("tf(termFreq(%s)=%d)", s.weight.query.term, tf)), nil
}
