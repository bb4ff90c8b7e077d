package search

import (
	"cmp"
	"fmt"
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/Adithya-Monish-Kumar-K/search-core/internal/index"
	"github.com/Adithya-Monish-Kumar-K/search-core/internal/search/fieldcache"
)

// ScoreDocComparator orders hits by one sort key of one reader.
type ScoreDocComparator interface {
	// Compare returns a negative number when a sorts before b.
	Compare(a, b ScoreDoc) int
	// SortValue is the value stored in FieldDoc.Fields for d.
	SortValue(d ScoreDoc) any
	SortType() SortType
}

// Comparable is implemented by the values of CUSTOM sort keys so that hits
// from different readers can be merged.
type Comparable interface {
	CompareTo(other any) int
}

type relevanceComparator struct{}

func (relevanceComparator) Compare(a, b ScoreDoc) int { return cmp.Compare(b.Score, a.Score) }
func (relevanceComparator) SortValue(d ScoreDoc) any  { return d.Score }
func (relevanceComparator) SortType() SortType        { return SortScore }

type indexOrderComparator struct{}

func (indexOrderComparator) Compare(a, b ScoreDoc) int { return cmp.Compare(a.Doc, b.Doc) }
func (indexOrderComparator) SortValue(d ScoreDoc) any  { return d.Doc }
func (indexOrderComparator) SortType() SortType        { return SortDoc }

type intComparator struct {
	values []int32
}

func (c *intComparator) Compare(a, b ScoreDoc) int {
	return cmp.Compare(c.values[a.Doc], c.values[b.Doc])
}

func (c *intComparator) SortValue(d ScoreDoc) any { return c.values[d.Doc] }
func (c *intComparator) SortType() SortType       { return SortInt }

type floatComparator struct {
	values []float32
}

func (c *floatComparator) Compare(a, b ScoreDoc) int {
	return cmp.Compare(c.values[a.Doc], c.values[b.Doc])
}

func (c *floatComparator) SortValue(d ScoreDoc) any { return c.values[d.Doc] }
func (c *floatComparator) SortType() SortType       { return SortFloat }

// stringComparator compares term ordinals, which follow term order.
type stringComparator struct {
	index *fieldcache.StringIndex
}

func (c *stringComparator) Compare(a, b ScoreDoc) int {
	return cmp.Compare(c.index.Order[a.Doc], c.index.Order[b.Doc])
}

func (c *stringComparator) SortValue(d ScoreDoc) any {
	return c.index.Lookup[c.index.Order[d.Doc]]
}

func (c *stringComparator) SortType() SortType { return SortString }

// localeComparator collates the terms of a field for a language. A Collator
// keeps scratch buffers, so calls are serialized.
type localeComparator struct {
	values []string
	mu     sync.Mutex
	col    *collate.Collator
}

func newCollator(locale string) (*collate.Collator, error) {
	tag, err := language.Parse(locale)
	if err != nil {
		return nil, argError("sort field", "bad locale %q: %v", locale, err)
	}
	return collate.New(tag), nil
}

func (c *localeComparator) Compare(a, b ScoreDoc) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.col.CompareString(c.values[a.Doc], c.values[b.Doc])
}

func (c *localeComparator) SortValue(d ScoreDoc) any { return c.values[d.Doc] }
func (c *localeComparator) SortType() SortType       { return SortString }

// TermValueSource is a SortComparatorSource that maps each term of a field
// to a Comparable through a function. A doc without a term gets a nil
// value, which sorts first.
type TermValueSource struct {
	name string
	fn   func(text string) Comparable
}

func NewTermValueSource(name string, fn func(text string) Comparable) *TermValueSource {
	return &TermValueSource{name: name, fn: fn}
}

func (s *TermValueSource) Name() string { return s.name }

func (s *TermValueSource) NewComparator(r index.Reader, field string, fields *fieldcache.Cache) (ScoreDocComparator, error) {
	values, err := fields.Custom(r, field, s.name, func(text string) any { return s.fn(text) })
	if err != nil {
		return nil, err
	}
	return &customComparator{values: values}, nil
}

type customComparator struct {
	values []any
}

func (c *customComparator) Compare(a, b ScoreDoc) int {
	return compareComparable(c.values[a.Doc], c.values[b.Doc])
}

func (c *customComparator) SortValue(d ScoreDoc) any { return c.values[d.Doc] }
func (c *customComparator) SortType() SortType       { return SortCustom }

func compareComparable(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return a.(Comparable).CompareTo(b)
}

// buildComparator creates the comparator of a field-typed sort key.
func buildComparator(r index.Reader, f SortField, fields *fieldcache.Cache) (ScoreDocComparator, error) {
	switch f.Type {
	case SortInt:
		values, err := fields.Ints(r, f.Field)
		if err != nil {
			return nil, err
		}
		return &intComparator{values: values}, nil
	case SortFloat:
		values, err := fields.Floats(r, f.Field)
		if err != nil {
			return nil, err
		}
		return &floatComparator{values: values}, nil
	case SortString:
		if f.Locale != "" {
			col, err := newCollator(f.Locale)
			if err != nil {
				return nil, err
			}
			values, err := fields.Strings(r, f.Field)
			if err != nil {
				return nil, err
			}
			return &localeComparator{values: values, col: col}, nil
		}
		si, err := fields.StringIndex(r, f.Field)
		if err != nil {
			return nil, err
		}
		return &stringComparator{index: si}, nil
	case SortCustom:
		return f.Factory.NewComparator(r, f.Field, fields)
	case SortAuto:
		kind, values, err := fields.Auto(r, f.Field)
		if err != nil {
			return nil, err
		}
		switch kind {
		case fieldcache.KindInt:
			return &intComparator{values: values.([]int32)}, nil
		case fieldcache.KindFloat:
			return &floatComparator{values: values.([]float32)}, nil
		case fieldcache.KindStringIndex:
			return &stringComparator{index: values.(*fieldcache.StringIndex)}, nil
		}
		return nil, fmt.Errorf("field %q detected as %s: %w", f.Field, kind, fieldcache.ErrUnknownFieldType)
	}
	return nil, fmt.Errorf("sort field %q of type %s: %w", f.Field, f.Type, ErrUnknownSortType)
}
