// Package similarity defines the scoring model used by the search engine.
//
// A Similarity turns raw statistics (term frequency, document frequency,
// field length, matched clause count) into the float factors multiplied
// together by scorers. All methods are pure functions of their arguments, so
// one instance can be shared by any number of concurrent searches.
//
// The package also owns the one-byte norm codec. Per-document field norms are
// persisted as a single byte (see EncodeNorm) and decoded through a 256-entry
// table built on first use.
package similarity

import (
	"math"
	"sync/atomic"
)

// Similarity computes the scoring factors of the vector space model.
type Similarity interface {
	// LengthNorm is the normalization factor stored for a field holding
	// numTerms tokens. Shorter fields get larger values.
	LengthNorm(field string, numTerms int) float32

	// QueryNorm makes scores from different queries comparable. It receives
	// the sum of squared weights of the query clauses.
	QueryNorm(sumOfSquaredWeights float32) float32

	// Tf scores a term (or phrase) that occurs freq times in a document.
	Tf(freq float32) float32

	// SloppyFreq is the amount a sloppy phrase match of the given edit
	// distance contributes to the phrase frequency.
	SloppyFreq(distance int) float32

	// Idf scores a term by how rare it is in the collection.
	Idf(docFreq, numDocs uint32) float32

	// Coord rewards documents that match more of the query's clauses.
	Coord(overlap, maxOverlap int) float32
}

// DefaultSimilarity is the classic tf-idf implementation.
type DefaultSimilarity struct{}

var _ Similarity = DefaultSimilarity{}

// LengthNorm returns 1/sqrt(numTerms).
func (DefaultSimilarity) LengthNorm(_ string, numTerms int) float32 {
	return float32(1.0 / math.Sqrt(float64(numTerms)))
}

// QueryNorm returns 1/sqrt(sumOfSquaredWeights), or 1 when the sum is not
// positive.
func (DefaultSimilarity) QueryNorm(sumOfSquaredWeights float32) float32 {
	if sumOfSquaredWeights <= 0 || math.IsNaN(float64(sumOfSquaredWeights)) {
		return 1
	}
	return float32(1.0 / math.Sqrt(float64(sumOfSquaredWeights)))
}

// Tf returns sqrt(freq).
func (DefaultSimilarity) Tf(freq float32) float32 {
	if freq <= 0 {
		return 0
	}
	return float32(math.Sqrt(float64(freq)))
}

// SloppyFreq returns 1/(distance+1).
func (DefaultSimilarity) SloppyFreq(distance int) float32 {
	if distance < 0 {
		distance = 0
	}
	return 1.0 / float32(distance+1)
}

// Idf returns ln(numDocs/(docFreq+1)) + 1. An empty collection is treated as
// holding one document so the result stays finite.
func (DefaultSimilarity) Idf(docFreq, numDocs uint32) float32 {
	n := float64(numDocs)
	if n < 1 {
		n = 1
	}
	return float32(math.Log(n/float64(uint64(docFreq)+1)) + 1.0)
}

// Coord returns overlap/maxOverlap.
func (DefaultSimilarity) Coord(overlap, maxOverlap int) float32 {
	if maxOverlap <= 0 {
		return 1
	}
	return float32(overlap) / float32(maxOverlap)
}

type holder struct{ sim Similarity }

var defaultSim atomic.Pointer[holder]

func init() {
	defaultSim.Store(&holder{sim: DefaultSimilarity{}})
}

// Default returns the process-wide Similarity used by searchers that were not
// given one explicitly.
func Default() Similarity {
	return defaultSim.Load().sim
}

// SetDefault replaces the process-wide Similarity. A nil value restores
// DefaultSimilarity.
func SetDefault(s Similarity) {
	if s == nil {
		s = DefaultSimilarity{}
	}
	defaultSim.Store(&holder{sim: s})
}
