package search

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/search-core/internal/index"
)

// Filter restricts a search to a set of admitted documents of a reader.
// The returned bitmap must not be modified by the caller.
type Filter interface {
	Bits(r index.Reader) (*roaring.Bitmap, error)
	String() string
}

// BitmapFilter admits a fixed set of doc ids in every reader.
type BitmapFilter struct {
	bits *roaring.Bitmap
}

func NewBitmapFilter(docs ...uint32) *BitmapFilter {
	return &BitmapFilter{bits: roaring.BitmapOf(docs...)}
}

// NewBitmapFilterFrom wraps an existing bitmap without copying it.
func NewBitmapFilterFrom(bits *roaring.Bitmap) *BitmapFilter {
	return &BitmapFilter{bits: bits}
}

func (f *BitmapFilter) Bits(index.Reader) (*roaring.Bitmap, error) { return f.bits, nil }

func (f *BitmapFilter) String() string {
	return fmt.Sprintf("BitmapFilter(%d docs)", f.bits.GetCardinality())
}

// QueryFilter admits the documents a query matches with a positive score.
type QueryFilter struct {
	query Query
}

func NewQueryFilter(q Query) *QueryFilter {
	return &QueryFilter{query: q}
}

func (f *QueryFilter) Bits(r index.Reader) (*roaring.Bitmap, error) {
	s := newBareSearcher(r)
	w, err := BuildWeight(f.query, s)
	if err != nil {
		return nil, fmt.Errorf("query filter %s: %w", f.query.String(""), err)
	}
	bits := roaring.New()
	err = s.CollectWeight(w, nil, HitCollectorFunc(func(doc uint32, _ float32) {
		bits.Add(doc)
	}))
	if err != nil {
		return nil, fmt.Errorf("query filter %s: %w", f.query.String(""), err)
	}
	return bits, nil
}

func (f *QueryFilter) String() string {
	return "QueryFilter(" + f.query.String("") + ")"
}

// RangeFilter admits documents with a term of field between lower and
// upper. An empty bound is open; an open bound cannot be inclusive.
type RangeFilter struct {
	field        string
	lower        string
	upper        string
	includeLower bool
	includeUpper bool
}

func NewRangeFilter(field, lower, upper string, includeLower, includeUpper bool) (*RangeFilter, error) {
	if lower == "" && upper == "" {
		return nil, argError("range filter", "at least one bound must be set")
	}
	if includeLower && lower == "" {
		return nil, argError("range filter", "the lower bound must be set to be inclusive")
	}
	if includeUpper && upper == "" {
		return nil, argError("range filter", "the upper bound must be set to be inclusive")
	}
	return &RangeFilter{
		field:        field,
		lower:        lower,
		upper:        upper,
		includeLower: includeLower,
		includeUpper: includeUpper,
	}, nil
}

func (f *RangeFilter) Bits(r index.Reader) (*roaring.Bitmap, error) {
	bits := roaring.New()
	err := eachTermInRange(r, f.field, f.lower, f.upper, f.includeLower, f.includeUpper, func(t index.Term, _ uint32) error {
		td, err := r.TermDocs(t)
		if err != nil {
			return err
		}
		defer td.Close()
		for td.Next() {
			bits.Add(td.Doc())
		}
		return td.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("range filter %s: %w", f, err)
	}
	return bits, nil
}

func (f *RangeFilter) String() string {
	open, closing := "{", "}"
	if f.includeLower {
		open = "["
	}
	if f.includeUpper {
		closing = "]"
	}
	return fmt.Sprintf("%s:%s%s TO %s%s", f.field, open, f.lower, f.upper, closing)
}

// CachingWrapperFilter remembers the bits of another filter per reader.
// Concurrent misses for one reader compute the bits once.
type CachingWrapperFilter struct {
	filter Filter
	cache  *lru.Cache[uint64, *roaring.Bitmap]
	group  singleflight.Group
}

func NewCachingWrapperFilter(f Filter, size int) (*CachingWrapperFilter, error) {
	cache, err := lru.New[uint64, *roaring.Bitmap](size)
	if err != nil {
		return nil, fmt.Errorf("creating filter cache: %w", err)
	}
	return &CachingWrapperFilter{filter: f, cache: cache}, nil
}

func (f *CachingWrapperFilter) Bits(r index.Reader) (*roaring.Bitmap, error) {
	if bits, ok := f.cache.Get(r.ID()); ok {
		return bits, nil
	}
	v, err, _ := f.group.Do(fmt.Sprint(r.ID()), func() (any, error) {
		bits, err := f.filter.Bits(r)
		if err != nil {
			return nil, err
		}
		f.cache.Add(r.ID(), bits)
		return bits, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*roaring.Bitmap), nil
}

// Purge forgets the bits computed for a reader.
func (f *CachingWrapperFilter) Purge(readerID uint64) {
	f.cache.Remove(readerID)
}

func (f *CachingWrapperFilter) String() string {
	return "CachingWrapperFilter(" + f.filter.String() + ")"
}

// eachTermInRange calls fn for every term of field inside the bounds, in
// term order. Empty bounds are open.
func eachTermInRange(r index.Reader, field, lower, upper string, includeLower, includeUpper bool, fn func(t index.Term, docFreq uint32) error) error {
	te, err := r.Terms(field)
	if err != nil {
		return err
	}
	defer te.Close()
	for te.Next() {
		t := te.Term()
		if lower != "" {
			if t.Text < lower || (!includeLower && t.Text == lower) {
				continue
			}
		}
		if upper != "" {
			if t.Text > upper || (!includeUpper && t.Text == upper) {
				break
			}
		}
		if err := fn(t, te.DocFreq()); err != nil {
			return err
		}
	}
	return te.Err()
}
