package search

import (
	"fmt"
	"math"

	"github.com/Adithya-Monish-Kumar-K/search-core/internal/index"
	"github.com/Adithya-Monish-Kumar-K/search-core/internal/search/explain"
	"github.com/Adithya-Monish-Kumar-K/search-core/internal/search/pqueue"
	"github.com/Adithya-Monish-Kumar-K/search-core/internal/search/similarity"
)

const noSlot = -1

// phrasePositions tracks one term of a phrase: the doc its cursor is on and
// the current position, shifted by the term's offset in the phrase so that
// a match puts every term on the same position.
type phrasePositions struct {
	tp       index.TermPositions
	doc      uint32
	position int
	count    uint32
	offset   int
	next     int
}

func (pp *phrasePositions) advance() bool {
	if !pp.tp.Next() {
		pp.tp.Close()
		pp.doc = math.MaxUint32
		return false
	}
	pp.doc = pp.tp.Doc()
	pp.position = 0
	return true
}

func (pp *phrasePositions) skipTo(target uint32) bool {
	if !pp.tp.SkipTo(target) {
		pp.tp.Close()
		pp.doc = math.MaxUint32
		return false
	}
	pp.doc = pp.tp.Doc()
	pp.position = 0
	return true
}

func (pp *phrasePositions) firstPosition() {
	pp.count = pp.tp.Freq()
	pp.nextPosition()
}

func (pp *phrasePositions) nextPosition() bool {
	if pp.count == 0 {
		return false
	}
	pp.count--
	pp.position = int(pp.tp.NextPosition()) - pp.offset
	return true
}

// phraseScorer keeps its term cursors in an arena. The slots form a linked
// list through next, ordered by (doc, position) whenever the list is rebuilt
// from the queue. The list is first..last; last is on the greatest doc.
type phraseScorer struct {
	weight     Weight
	sim        similarity.Similarity
	norms      []byte
	value      float32
	pps        []phrasePositions
	pq         *pqueue.PriorityQueue[int]
	first      int
	last       int
	started    bool
	more       bool
	freq       float32
	phraseFreq func() float32
}

func newPhraseScorer(w Weight, tps []index.TermPositions, positions []int, sim similarity.Similarity, norms []byte) *phraseScorer {
	s := &phraseScorer{
		weight: w,
		sim:    sim,
		norms:  norms,
		value:  w.Value(),
		pps:    make([]phrasePositions, len(tps)),
		first:  noSlot,
		last:   noSlot,
		more:   true,
	}
	for i, tp := range tps {
		s.pps[i] = phrasePositions{tp: tp, offset: positions[i], next: noSlot}
		if s.last != noSlot {
			s.pps[s.last].next = i
		} else {
			s.first = i
		}
		s.last = i
	}
	s.pq = pqueue.New(0, func(a, b int) bool {
		pa, pb := &s.pps[a], &s.pps[b]
		if pa.doc == pb.doc {
			return pa.position < pb.position
		}
		return pa.doc < pb.doc
	})
	return s
}

func newExactPhraseScorer(w Weight, tps []index.TermPositions, positions []int, sim similarity.Similarity, norms []byte) *phraseScorer {
	s := newPhraseScorer(w, tps, positions, sim, norms)
	s.phraseFreq = s.exactPhraseFreq
	return s
}

func newSloppyPhraseScorer(w Weight, tps []index.TermPositions, positions []int, sim similarity.Similarity, norms []byte, slop int) *phraseScorer {
	s := newPhraseScorer(w, tps, positions, sim, norms)
	s.phraseFreq = func() float32 { return s.sloppyPhraseFreq(slop) }
	return s
}

func (s *phraseScorer) release() {
	s.started = true
	s.more = false
	for i := range s.pps {
		if pp := &s.pps[i]; pp.doc != math.MaxUint32 {
			pp.tp.Close()
			pp.doc = math.MaxUint32
		}
	}
}

func (s *phraseScorer) Doc() uint32 { return s.pps[s.first].doc }

func (s *phraseScorer) Next() bool {
	if !s.started {
		s.started = true
		s.init()
	} else if s.more {
		s.more = s.pps[s.last].advance()
	}
	return s.doNext()
}

func (s *phraseScorer) SkipTo(target uint32) bool {
	if s.more {
		target = skipTarget(s.started, s.Doc(), target)
	}
	s.started = true
	for i := s.first; s.more && i != noSlot; i = s.pps[i].next {
		s.more = s.pps[i].skipTo(target)
	}
	if s.more {
		s.sort()
	}
	return s.doNext()
}

// doNext aligns every term on one doc and keeps scanning while the aligned
// doc has no phrase match.
func (s *phraseScorer) doNext() bool {
	for s.more {
		for s.more && s.pps[s.first].doc < s.pps[s.last].doc {
			s.more = s.pps[s.first].skipTo(s.pps[s.last].doc)
			s.firstToLast()
		}
		if s.more {
			s.freq = s.phraseFreq()
			if s.freq == 0 {
				s.more = s.pps[s.last].advance()
			} else {
				return true
			}
		}
	}
	return false
}

func (s *phraseScorer) Score() float32 {
	raw := s.sim.Tf(s.freq) * s.value
	return raw * normAt(s.norms, s.Doc())
}

func (s *phraseScorer) Err() error {
	for i := range s.pps {
		if err := s.pps[i].tp.Err(); err != nil {
			return err
		}
	}
	return nil
}

func (s *phraseScorer) Explain(doc uint32) (*explain.Explanation, error) {
	for s.Next() && s.Doc() < doc {
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("reading phrase positions: %w", err)
	}
	var phraseFreq float32
	if s.more && s.Doc() == doc {
		phraseFreq = s.freq
	}
	return explain.New(s.sim.Tf(phraseFreq), fmt.Sprintf("tf(phraseFreq=%g)", phraseFreq)), nil
}

func (s *phraseScorer) init() {
	for i := s.first; s.more && i != noSlot; i = s.pps[i].next {
		s.more = s.pps[i].advance()
	}
	if s.more {
		s.sort()
	}
}

func (s *phraseScorer) sort() {
	s.pq.Clear()
	for i := s.first; i != noSlot; i = s.pps[i].next {
		s.pq.Put(i)
	}
	s.pqToList()
}

func (s *phraseScorer) pqToList() {
	s.first, s.last = noSlot, noSlot
	for s.pq.Len() > 0 {
		i, _ := s.pq.Pop()
		if s.last != noSlot {
			s.pps[s.last].next = i
		} else {
			s.first = i
		}
		s.last = i
		s.pps[i].next = noSlot
	}
}

func (s *phraseScorer) firstToLast() {
	s.pps[s.last].next = s.first
	s.last = s.first
	s.first = s.pps[s.first].next
	s.pps[s.last].next = noSlot
}

// exactPhraseFreq counts the positions at which every term lines up.
func (s *phraseScorer) exactPhraseFreq() float32 {
	s.pq.Clear()
	for i := s.first; i != noSlot; i = s.pps[i].next {
		s.pps[i].firstPosition()
		s.pq.Put(i)
	}
	s.pqToList()

	freq := 0
	for {
		for s.pps[s.first].position < s.pps[s.last].position {
			for {
				if !s.pps[s.first].nextPosition() {
					return float32(freq)
				}
				if s.pps[s.first].position >= s.pps[s.last].position {
					break
				}
			}
			s.firstToLast()
		}
		freq++
		if !s.pps[s.last].nextPosition() {
			break
		}
	}
	return float32(freq)
}

// sloppyPhraseFreq slides a window over the term positions and adds
// sloppyFreq(distance) for every window no wider than slop.
func (s *phraseScorer) sloppyPhraseFreq(slop int) float32 {
	s.pq.Clear()
	end := math.MinInt
	for i := s.first; i != noSlot; i = s.pps[i].next {
		pp := &s.pps[i]
		pp.firstPosition()
		if pp.position > end {
			end = pp.position
		}
		s.pq.Put(i)
	}

	var freq float32
	done := false
	for !done {
		i, _ := s.pq.Pop()
		pp := &s.pps[i]
		start := pp.position
		next := start
		if top, ok := s.pq.Top(); ok {
			next = s.pps[top].position
		}
		for pos := start; pos <= next; pos = pp.position {
			start = pos
			if !pp.nextPosition() {
				done = true
				break
			}
		}
		if matchLength := end - start; matchLength <= slop {
			freq += s.sim.SloppyFreq(matchLength)
		}
		if pp.position > end {
			end = pp.position
		}
		s.pq.Put(i)
	}
	return freq
}
