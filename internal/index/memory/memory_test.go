package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/search-core/internal/index"
	"github.com/Adithya-Monish-Kumar-K/search-core/internal/search/similarity"
	apperrors "github.com/Adithya-Monish-Kumar-K/search-core/pkg/errors"
)

func build(t *testing.T) *Reader {
	t.Helper()
	b := NewBuilder(nil, nil)
	b.Add(Text("body", "a b c a"), Keyword("id", "d0"))
	b.Add(Text("body", "b c"), Keyword("id", "d1"))
	b.Add(Stored("note", "only stored"))
	b.Add(Text("body", "a"), Text("body", "c"), Keyword("id", "d3"))
	return b.Build()
}

func TestPostings(t *testing.T) {
	r := build(t)
	require.Equal(t, uint32(4), r.MaxDoc())

	df, err := r.DocFreq(index.NewTerm("body", "a"))
	require.NoError(t, err)
	assert.Equal(t, uint32(2), df)

	tp, err := r.TermPositions(index.NewTerm("body", "a"))
	require.NoError(t, err)
	require.True(t, tp.Next())
	assert.Equal(t, uint32(0), tp.Doc())
	assert.Equal(t, uint32(2), tp.Freq())
	assert.Equal(t, uint32(0), tp.NextPosition())
	assert.Equal(t, uint32(3), tp.NextPosition())
	require.True(t, tp.Next())
	assert.Equal(t, uint32(3), tp.Doc())
	assert.Equal(t, uint32(0), tp.NextPosition())
	assert.False(t, tp.Next())
	assert.False(t, tp.Next())
}

func TestMultiValuedFieldPositionsContinue(t *testing.T) {
	r := build(t)
	tp, err := r.TermPositions(index.NewTerm("body", "c"))
	require.NoError(t, err)
	require.True(t, tp.SkipTo(3))
	assert.Equal(t, uint32(3), tp.Doc())
	assert.Equal(t, uint32(1), tp.NextPosition())
}

func TestMissingTermIsEmptyCursor(t *testing.T) {
	r := build(t)
	td, err := r.TermDocs(index.NewTerm("body", "zzz"))
	require.NoError(t, err)
	require.NotNil(t, td)
	assert.False(t, td.Next())
	assert.False(t, td.SkipTo(0))
	assert.Zero(t, td.Read(make([]uint32, 4), make([]uint32, 4)))
}

func TestSkipToAlwaysAdvances(t *testing.T) {
	r := build(t)
	td, err := r.TermDocs(index.NewTerm("body", "c"))
	require.NoError(t, err)
	require.True(t, td.SkipTo(0))
	assert.Equal(t, uint32(0), td.Doc())
	require.True(t, td.SkipTo(0))
	assert.Equal(t, uint32(1), td.Doc())
	assert.False(t, td.SkipTo(10))
	assert.False(t, td.Next())
}

func TestRead(t *testing.T) {
	r := build(t)
	td, err := r.TermDocs(index.NewTerm("body", "c"))
	require.NoError(t, err)

	docs := make([]uint32, 2)
	freqs := make([]uint32, 2)
	require.Equal(t, 2, td.Read(docs, freqs))
	assert.Equal(t, []uint32{0, 1}, docs)
	assert.Equal(t, []uint32{1, 1}, freqs)
	require.Equal(t, 1, td.Read(docs, freqs))
	assert.Equal(t, uint32(3), docs[0])
	assert.Equal(t, 0, td.Read(docs, freqs))
}

func TestTermsSorted(t *testing.T) {
	r := build(t)
	te, err := r.Terms("body")
	require.NoError(t, err)
	var got []string
	for te.Next() {
		got = append(got, te.Term().Text)
	}
	assert.Equal(t, []string{"a", "b", "c"}, got)
	assert.Equal(t, []string{"body", "id"}, r.Fields())
}

func TestNorms(t *testing.T) {
	r := build(t)
	norms, err := r.Norms("body")
	require.NoError(t, err)
	require.Len(t, norms, 4)
	assert.Equal(t, similarity.EncodeNorm(0.5), norms[0])
	assert.Equal(t, similarity.EncodeNorm(1), norms[2])

	none, err := r.Norms("note")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestBoostedNorms(t *testing.T) {
	b := NewBuilder(nil, nil)
	f := Text("body", "x y y y")
	f.Boost = 2
	b.AddWithBoost(2, f)
	r := b.Build()
	norms, err := r.Norms("body")
	require.NoError(t, err)
	assert.Equal(t, similarity.EncodeNorm(2), norms[0])
}

func TestDocumentAndClose(t *testing.T) {
	r := build(t)
	d, err := r.Document(2)
	require.NoError(t, err)
	v, _ := d.Get("note")
	assert.Equal(t, "only stored", v)

	_, err = r.Document(9)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	require.NoError(t, r.Close())
	_, err = r.TermDocs(index.NewTerm("body", "a"))
	assert.ErrorIs(t, err, apperrors.ErrClosed)
	assert.ErrorIs(t, r.Close(), apperrors.ErrClosed)
}

func TestReaderIDsUnique(t *testing.T) {
	b := NewBuilder(nil, nil)
	b.Add(Text("body", "a"))
	assert.NotEqual(t, b.Build().ID(), b.Build().ID())
}
