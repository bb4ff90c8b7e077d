package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/search-core/internal/index/memory"
	apperrors "github.com/Adithya-Monish-Kumar-K/search-core/pkg/errors"
)

func datedDocs() [][]memory.Field {
	dates := []string{"20050101", "20050615", "20051231", "20060101"}
	docs := make([][]memory.Field, len(dates))
	for i, d := range dates {
		docs[i] = []memory.Field{memory.Keyword("date", d), memory.Text("body", "report")}
	}
	return docs
}

func TestRangeFilter(t *testing.T) {
	r := buildReader(datedDocs()...)
	tests := []struct {
		name         string
		lower, upper string
		incL, incU   bool
		want         []uint32
		str          string
	}{
		{"inclusive", "20050101", "20051231", true, true, []uint32{0, 1, 2}, "date:[20050101 TO 20051231]"},
		{"exclusive", "20050101", "20051231", false, false, []uint32{1}, "date:{20050101 TO 20051231}"},
		{"open lower", "", "20050615", false, true, []uint32{0, 1}, "date:{ TO 20050615]"},
		{"open upper", "20051231", "", false, false, []uint32{3}, "date:{20051231 TO }"},
		{"nothing inside", "2007", "2008", true, true, nil, "date:[2007 TO 2008]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := NewRangeFilter("date", tt.lower, tt.upper, tt.incL, tt.incU)
			require.NoError(t, err)
			bits, err := f.Bits(r)
			require.NoError(t, err)
			if tt.want == nil {
				assert.True(t, bits.IsEmpty())
			} else {
				assert.Equal(t, tt.want, bits.ToArray())
			}
			assert.Equal(t, tt.str, f.String())
		})
	}
}

func TestRangeFilterValidation(t *testing.T) {
	_, err := NewRangeFilter("date", "", "", false, false)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	_, err = NewRangeFilter("date", "", "2005", true, false)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	_, err = NewRangeFilter("date", "2005", "", false, true)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestRangeFilterRestrictsSearch(t *testing.T) {
	s := newSearcher(t, datedDocs()...)
	f, err := NewRangeFilter("date", "20050601", "20051231", true, true)
	require.NoError(t, err)
	docs, err := s.Search(termQuery("report"), f, 10)
	require.NoError(t, err)
	assert.Equal(t, []uint32{1, 2}, docIDs(docs.ScoreDocs))
	assert.Equal(t, 2, docs.TotalHits)
}

func TestQueryFilter(t *testing.T) {
	r := buildReader(bodies("red apple", "green apple", "red car")...)
	f := NewQueryFilter(termQuery("red"))
	bits, err := f.Bits(r)
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 2}, bits.ToArray())
	assert.Equal(t, "QueryFilter(body:red)", f.String())

	s, err := NewIndexSearcher(r)
	require.NoError(t, err)
	docs, err := s.Search(termQuery("apple"), f, 10)
	require.NoError(t, err)
	assert.Equal(t, []uint32{0}, docIDs(docs.ScoreDocs))
}

func TestQueryFilterPropagatesReadFailure(t *testing.T) {
	r := &faultyReader{Reader: buildReader(bodies("red apple")...)}
	_, err := NewQueryFilter(termQuery("red")).Bits(r)
	assert.ErrorIs(t, err, errDiskGone)
}

func TestCachingWrapperFilter(t *testing.T) {
	inner, err := NewRangeFilter("date", "20050101", "20051231", true, true)
	require.NoError(t, err)
	counting := &countingFilter{Filter: inner}
	f, err := NewCachingWrapperFilter(counting, 4)
	require.NoError(t, err)

	r1, r2 := buildReader(datedDocs()...), buildReader(datedDocs()[:2]...)
	for range 3 {
		bits, err := f.Bits(r1)
		require.NoError(t, err)
		assert.Equal(t, []uint32{0, 1, 2}, bits.ToArray())
	}
	assert.Equal(t, 1, counting.calls)

	bits, err := f.Bits(r2)
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 1}, bits.ToArray())
	assert.Equal(t, 2, counting.calls)

	f.Purge(r1.ID())
	_, err = f.Bits(r1)
	require.NoError(t, err)
	assert.Equal(t, 3, counting.calls)
	assert.Equal(t, "CachingWrapperFilter(date:[20050101 TO 20051231])", f.String())
}

func TestCachingWrapperFilterDoesNotCacheFailures(t *testing.T) {
	counting := &countingFilter{Filter: NewQueryFilter(termQuery("red"))}
	f, err := NewCachingWrapperFilter(counting, 4)
	require.NoError(t, err)
	r := &faultyReader{Reader: buildReader(bodies("red")...)}

	_, err = f.Bits(r)
	assert.ErrorIs(t, err, errDiskGone)
	_, err = f.Bits(r)
	assert.ErrorIs(t, err, errDiskGone)
	assert.Equal(t, 2, counting.calls)
}

func TestBitmapFilter(t *testing.T) {
	f := NewBitmapFilter(3, 1, 3)
	bits, err := f.Bits(nil)
	require.NoError(t, err)
	assert.Equal(t, []uint32{1, 3}, bits.ToArray())
	assert.Equal(t, "BitmapFilter(2 docs)", f.String())
}
