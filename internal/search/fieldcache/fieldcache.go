// Package fieldcache loads the indexed values of a field into arrays indexed
// by doc id. Sort comparators read values from these arrays instead of
// walking postings per comparison.
//
// Arrays are built by enumerating the field's terms once and are kept in an
// LRU keyed by reader id, so entries for a closed reader must be dropped
// with Purge.
package fieldcache

import (
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Adithya-Monish-Kumar-K/search-core/internal/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/search-core/pkg/errors"
)

// ErrUnknownFieldType is returned when the type of a field cannot be
// detected, for example because it has no indexed terms.
var ErrUnknownFieldType = fmt.Errorf("unknown field type: %w", apperrors.ErrInternal)

type Kind uint8

const (
	KindInt Kind = iota + 1
	KindFloat
	KindString
	KindStringIndex
	KindCustom
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindStringIndex:
		return "string_index"
	case KindCustom:
		return "custom"
	default:
		return "unknown"
	}
}

// StringIndex maps each doc to the ordinal of its term. Lookup[0] is the
// empty string and Order[doc] == 0 means the doc has no term in the field.
// Ordinals follow term order, so comparing ordinals compares terms.
type StringIndex struct {
	Order  []int32
	Lookup []string
}

// ValueFunc converts a term into a custom sort value.
type ValueFunc func(text string) any

type key struct {
	reader uint64
	field  string
	kind   Kind
	custom string
}

type Stats struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Entries int   `json:"entries"`
}

// Cache is safe for concurrent use. Two goroutines that miss on the same key
// may both build the array; the later one wins.
type Cache struct {
	entries *lru.Cache[key, any]
	hits    atomic.Int64
	misses  atomic.Int64
}

func New(size int) (*Cache, error) {
	entries, err := lru.New[key, any](size)
	if err != nil {
		return nil, fmt.Errorf("creating field cache: %w", err)
	}
	return &Cache{entries: entries}, nil
}

func (c *Cache) lookup(k key, build func() (any, error)) (any, error) {
	if v, ok := c.entries.Get(k); ok {
		c.hits.Add(1)
		return v, nil
	}
	c.misses.Add(1)
	v, err := build()
	if err != nil {
		return nil, err
	}
	c.entries.Add(k, v)
	return v, nil
}

// Ints parses every term of field as a 32 bit integer.
func (c *Cache) Ints(r index.Reader, field string) ([]int32, error) {
	v, err := c.lookup(key{reader: r.ID(), field: field, kind: KindInt}, func() (any, error) {
		out := make([]int32, r.MaxDoc())
		err := eachTerm(r, field, func(text string, docs []uint32) error {
			n, err := strconv.ParseInt(text, 10, 32)
			if err != nil {
				return fmt.Errorf("field %q term %q is not an int: %w", field, text, apperrors.ErrInvalidInput)
			}
			for _, d := range docs {
				out[d] = int32(n)
			}
			return nil
		})
		return out, err
	})
	if err != nil {
		return nil, err
	}
	return v.([]int32), nil
}

// Floats parses every term of field as a 32 bit float.
func (c *Cache) Floats(r index.Reader, field string) ([]float32, error) {
	v, err := c.lookup(key{reader: r.ID(), field: field, kind: KindFloat}, func() (any, error) {
		out := make([]float32, r.MaxDoc())
		err := eachTerm(r, field, func(text string, docs []uint32) error {
			f, err := strconv.ParseFloat(text, 32)
			if err != nil {
				return fmt.Errorf("field %q term %q is not a float: %w", field, text, apperrors.ErrInvalidInput)
			}
			for _, d := range docs {
				out[d] = float32(f)
			}
			return nil
		})
		return out, err
	})
	if err != nil {
		return nil, err
	}
	return v.([]float32), nil
}

// Strings returns the term of each doc. A doc with several terms keeps the
// greatest one.
func (c *Cache) Strings(r index.Reader, field string) ([]string, error) {
	v, err := c.lookup(key{reader: r.ID(), field: field, kind: KindString}, func() (any, error) {
		out := make([]string, r.MaxDoc())
		err := eachTerm(r, field, func(text string, docs []uint32) error {
			for _, d := range docs {
				out[d] = text
			}
			return nil
		})
		return out, err
	})
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}

func (c *Cache) StringIndex(r index.Reader, field string) (*StringIndex, error) {
	v, err := c.lookup(key{reader: r.ID(), field: field, kind: KindStringIndex}, func() (any, error) {
		si := &StringIndex{
			Order:  make([]int32, r.MaxDoc()),
			Lookup: []string{""},
		}
		err := eachTerm(r, field, func(text string, docs []uint32) error {
			ord := int32(len(si.Lookup))
			si.Lookup = append(si.Lookup, text)
			for _, d := range docs {
				si.Order[d] = ord
			}
			return nil
		})
		return si, err
	})
	if err != nil {
		return nil, err
	}
	return v.(*StringIndex), nil
}

// Custom maps every term of field through fn. name identifies fn in the
// cache key.
func (c *Cache) Custom(r index.Reader, field, name string, fn ValueFunc) ([]any, error) {
	v, err := c.lookup(key{reader: r.ID(), field: field, kind: KindCustom, custom: name}, func() (any, error) {
		out := make([]any, r.MaxDoc())
		err := eachTerm(r, field, func(text string, docs []uint32) error {
			val := fn(text)
			for _, d := range docs {
				out[d] = val
			}
			return nil
		})
		return out, err
	})
	if err != nil {
		return nil, err
	}
	return v.([]any), nil
}

// Auto inspects the first term of field and returns Ints when it parses as
// an int, Floats when it parses as a float, and a StringIndex otherwise. The
// detected kind is returned with the values.
func (c *Cache) Auto(r index.Reader, field string) (Kind, any, error) {
	first, err := firstTerm(r, field)
	if err != nil {
		return 0, nil, err
	}
	if _, err := strconv.ParseInt(first, 10, 32); err == nil {
		vals, err := c.Ints(r, field)
		if err == nil {
			return KindInt, vals, nil
		}
		if !errors.Is(err, apperrors.ErrInvalidInput) {
			return 0, nil, err
		}
	}
	if _, err := strconv.ParseFloat(first, 32); err == nil {
		vals, err := c.Floats(r, field)
		if err == nil {
			return KindFloat, vals, nil
		}
		if !errors.Is(err, apperrors.ErrInvalidInput) {
			return 0, nil, err
		}
	}
	si, err := c.StringIndex(r, field)
	if err != nil {
		return 0, nil, err
	}
	return KindStringIndex, si, nil
}

// Purge drops every entry built from the reader with the given id.
func (c *Cache) Purge(readerID uint64) int {
	removed := 0
	for _, k := range c.entries.Keys() {
		if k.reader == readerID && c.entries.Remove(k) {
			removed++
		}
	}
	return removed
}

func (c *Cache) Stats() Stats {
	return Stats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Entries: c.entries.Len(),
	}
}

func firstTerm(r index.Reader, field string) (string, error) {
	te, err := r.Terms(field)
	if err != nil {
		return "", fmt.Errorf("enumerating terms of %q: %w", field, err)
	}
	defer te.Close()
	if !te.Next() {
		if err := te.Err(); err != nil {
			return "", fmt.Errorf("enumerating terms of %q: %w", field, err)
		}
		return "", fmt.Errorf("field %q does not appear to be indexed: %w", field, ErrUnknownFieldType)
	}
	return te.Term().Text, nil
}

// eachTerm calls fn with every term of field and the docs containing it.
func eachTerm(r index.Reader, field string, fn func(text string, docs []uint32) error) error {
	te, err := r.Terms(field)
	if err != nil {
		return fmt.Errorf("enumerating terms of %q: %w", field, err)
	}
	defer te.Close()

	var docs []uint32
	for te.Next() {
		t := te.Term()
		td, err := r.TermDocs(t)
		if err != nil {
			return fmt.Errorf("reading postings of %s: %w", t, err)
		}
		docs = docs[:0]
		for td.Next() {
			docs = append(docs, td.Doc())
		}
		err = td.Err()
		td.Close()
		if err != nil {
			return fmt.Errorf("reading postings of %s: %w", t, err)
		}
		if err := fn(t.Text, docs); err != nil {
			return err
		}
	}
	if err := te.Err(); err != nil {
		return fmt.Errorf("enumerating terms of %q: %w", field, err)
	}
	return nil
}
