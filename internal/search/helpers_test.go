package search

import (
	"errors"
	"testing"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/search-core/internal/index"
	"github.com/Adithya-Monish-Kumar-K/search-core/internal/index/memory"
)

var errDiskGone = errors.New("disk gone")

func buildReader(docs ...[]memory.Field) *memory.Reader {
	b := memory.NewBuilder(nil, nil)
	for _, fields := range docs {
		b.Add(fields...)
	}
	return b.Build()
}

func newSearcher(t testing.TB, docs ...[]memory.Field) *IndexSearcher {
	t.Helper()
	s, err := NewIndexSearcher(buildReader(docs...))
	require.NoError(t, err)
	return s
}

// bodies builds one document per text, indexed under "body".
func bodies(texts ...string) [][]memory.Field {
	docs := make([][]memory.Field, len(texts))
	for i, text := range texts {
		docs[i] = []memory.Field{memory.Text("body", text)}
	}
	return docs
}

func body(text string) index.Term { return index.NewTerm("body", text) }

func termQuery(text string) *TermQuery { return NewTermQuery(body(text)) }

func phrase(t testing.TB, slop int, words ...string) *PhraseQuery {
	t.Helper()
	q := NewPhraseQuery()
	for _, w := range words {
		require.NoError(t, q.Add(body(w)))
	}
	q.SetSlop(slop)
	return q
}

func boolQuery(t testing.TB, clauses ...BooleanClause) *BooleanQuery {
	t.Helper()
	q := NewBooleanQuery(false)
	for _, c := range clauses {
		require.NoError(t, q.Add(c.Query, c.Occur))
	}
	return q
}

func docIDs(hits []ScoreDoc) []uint32 {
	ids := make([]uint32, len(hits))
	for i, h := range hits {
		ids[i] = h.Doc
	}
	return ids
}

func fieldDocIDs(hits []FieldDoc) []uint32 {
	ids := make([]uint32, len(hits))
	for i, h := range hits {
		ids[i] = h.Doc
	}
	return ids
}

// scorerFor builds the normalized weight of q against s and returns its
// scorer over the searcher's reader.
func scorerFor(t testing.TB, s *IndexSearcher, q Query) Scorer {
	t.Helper()
	w, err := s.CreateWeight(q)
	require.NoError(t, err)
	sc, err := w.Scorer(s.Reader())
	require.NoError(t, err)
	return sc
}

// drain returns every doc and score a scorer produces, zero scores included.
func drain(t testing.TB, sc Scorer) ([]uint32, []float32) {
	t.Helper()
	var docs []uint32
	var scores []float32
	for sc.Next() {
		docs = append(docs, sc.Doc())
		scores = append(scores, sc.Score())
	}
	require.NoError(t, sc.Err())
	return docs, scores
}

// faultyReader fails every posting read with errDiskGone.
type faultyReader struct {
	index.Reader
}

func (r *faultyReader) TermDocs(t index.Term) (index.TermDocs, error) {
	return r.TermPositions(t)
}

func (r *faultyReader) TermPositions(t index.Term) (index.TermPositions, error) {
	tp, err := r.Reader.TermPositions(t)
	if err != nil {
		return nil, err
	}
	return &faultyPostings{TermPositions: tp}, nil
}

type faultyPostings struct {
	index.TermPositions
}

func (p *faultyPostings) Next() bool             { return false }
func (p *faultyPostings) SkipTo(uint32) bool     { return false }
func (p *faultyPostings) Read(_, _ []uint32) int { return 0 }
func (p *faultyPostings) Err() error             { return errDiskGone }

// countingFilter counts how often its bits are computed.
type countingFilter struct {
	Filter
	calls int
}

func (f *countingFilter) Bits(r index.Reader) (*roaring.Bitmap, error) {
	f.calls++
	return f.Filter.Bits(r)
}

// trackingReader records every posting cursor it hands out.
type trackingReader struct {
	index.Reader
	cursors []*trackedPostings
}

func (r *trackingReader) TermDocs(t index.Term) (index.TermDocs, error) {
	return r.TermPositions(t)
}

func (r *trackingReader) TermPositions(t index.Term) (index.TermPositions, error) {
	tp, err := r.Reader.TermPositions(t)
	if err != nil {
		return nil, err
	}
	c := &trackedPostings{TermPositions: tp}
	r.cursors = append(r.cursors, c)
	return c, nil
}

// open returns how many cursors were never closed.
func (r *trackingReader) open() int {
	n := 0
	for _, c := range r.cursors {
		if !c.closed {
			n++
		}
	}
	return n
}

type trackedPostings struct {
	index.TermPositions
	closed bool
}

func (p *trackedPostings) Close() error {
	p.closed = true
	return p.TermPositions.Close()
}

// brokenFilter fails every Bits call.
type brokenFilter struct{}

func (brokenFilter) Bits(index.Reader) (*roaring.Bitmap, error) { return nil, errDiskGone }
func (brokenFilter) String() string                            { return "broken" }
