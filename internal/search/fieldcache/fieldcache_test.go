package fieldcache

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/search-core/internal/index/memory"
	apperrors "github.com/Adithya-Monish-Kumar-K/search-core/pkg/errors"
)

func testReader(t *testing.T) *memory.Reader {
	t.Helper()
	b := memory.NewBuilder(nil, nil)
	b.Add(memory.Keyword("n", "30"), memory.Keyword("f", "1.5"), memory.Keyword("s", "pear"))
	b.Add(memory.Keyword("n", "-4"), memory.Keyword("f", "0.25"), memory.Keyword("s", "apple"))
	b.Add(memory.Keyword("s", "fig"))
	return b.Build()
}

func newCache(t *testing.T) *Cache {
	t.Helper()
	c, err := New(16)
	require.NoError(t, err)
	return c
}

func TestTypedArrays(t *testing.T) {
	r := testReader(t)
	c := newCache(t)

	ints, err := c.Ints(r, "n")
	require.NoError(t, err)
	assert.Equal(t, []int32{30, -4, 0}, ints)

	floats, err := c.Floats(r, "f")
	require.NoError(t, err)
	assert.Equal(t, []float32{1.5, 0.25, 0}, floats)

	strs, err := c.Strings(r, "s")
	require.NoError(t, err)
	assert.Equal(t, []string{"pear", "apple", "fig"}, strs)

	si, err := c.StringIndex(r, "s")
	require.NoError(t, err)
	assert.Equal(t, []string{"", "apple", "fig", "pear"}, si.Lookup)
	assert.Equal(t, []int32{3, 1, 2}, si.Order)

	si, err = c.StringIndex(r, "n")
	require.NoError(t, err)
	assert.Equal(t, int32(0), si.Order[2])
}

func TestCustom(t *testing.T) {
	r := testReader(t)
	c := newCache(t)
	vals, err := c.Custom(r, "s", "upper", func(s string) any { return strings.ToUpper(s) })
	require.NoError(t, err)
	assert.Equal(t, []any{"PEAR", "APPLE", "FIG"}, vals)
}

func TestAuto(t *testing.T) {
	r := testReader(t)
	c := newCache(t)

	kind, vals, err := c.Auto(r, "n")
	require.NoError(t, err)
	assert.Equal(t, KindInt, kind)
	assert.IsType(t, []int32{}, vals)

	kind, _, err = c.Auto(r, "f")
	require.NoError(t, err)
	assert.Equal(t, KindFloat, kind)

	kind, vals, err = c.Auto(r, "s")
	require.NoError(t, err)
	assert.Equal(t, KindStringIndex, kind)
	assert.IsType(t, &StringIndex{}, vals)

	_, _, err = c.Auto(r, "missing")
	assert.ErrorIs(t, err, ErrUnknownFieldType)
	assert.ErrorIs(t, err, apperrors.ErrInternal)
}

func TestParseFailure(t *testing.T) {
	r := testReader(t)
	c := newCache(t)
	_, err := c.Ints(r, "s")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestHitsAndPurge(t *testing.T) {
	r1 := testReader(t)
	r2 := testReader(t)
	c := newCache(t)

	_, err := c.Ints(r1, "n")
	require.NoError(t, err)
	_, err = c.Ints(r1, "n")
	require.NoError(t, err)
	_, err = c.Strings(r2, "s")
	require.NoError(t, err)

	st := c.Stats()
	assert.Equal(t, int64(1), st.Hits)
	assert.Equal(t, int64(2), st.Misses)
	assert.Equal(t, 2, st.Entries)

	assert.Equal(t, 1, c.Purge(r1.ID()))
	assert.Equal(t, 1, c.Stats().Entries)
}
