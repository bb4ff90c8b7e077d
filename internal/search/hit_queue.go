package search

import (
	"github.com/Adithya-Monish-Kumar-K/search-core/internal/search/pqueue"
)

// weaker reports whether a ranks below b: lower score, or the same score
// and a larger doc id.
func weaker(a, b ScoreDoc) bool {
	if a.Score == b.Score {
		return a.Doc > b.Doc
	}
	return a.Score < b.Score
}

// HitQueue keeps the best n hits by relevance. Its top is the weakest hit
// retained.
type HitQueue struct {
	pq       *pqueue.PriorityQueue[ScoreDoc]
	maxScore float32
}

func NewHitQueue(n int) *HitQueue {
	return &HitQueue{pq: pqueue.New(n, weaker), maxScore: 1}
}

// Insert adds d while the queue has room, and afterwards only when d ranks
// above the weakest hit, which it then replaces. It reports whether d was
// kept.
func (q *HitQueue) Insert(d ScoreDoc) bool {
	if d.Score > q.maxScore {
		q.maxScore = d.Score
	}
	return q.pq.Insert(d)
}

func (q *HitQueue) Len() int { return q.pq.Len() }

// MaxScore is the highest score inserted, or 1 when none exceeded 1.
func (q *HitQueue) MaxScore() float32 { return q.maxScore }

// Drain empties the queue into a slice ordered best first.
func (q *HitQueue) Drain() []ScoreDoc {
	out := make([]ScoreDoc, q.pq.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i], _ = q.pq.Pop()
	}
	return out
}
