package search

import (
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Adithya-Monish-Kumar-K/search-core/internal/index"
	"github.com/Adithya-Monish-Kumar-K/search-core/internal/search/fieldcache"
)

const (
	DefaultFieldCacheSize      = 256
	DefaultComparatorCacheSize = 256
)

type comparatorKey struct {
	reader  uint64
	field   string
	typ     SortType
	locale  string
	factory string
}

// CacheContext holds the field values and sort comparators built for the
// readers of one or more searchers. Searchers drop the entries of their
// reader when they are closed.
type CacheContext struct {
	fields      *fieldcache.Cache
	comparators *lru.Cache[comparatorKey, ScoreDocComparator]
	hits        atomic.Int64
	misses      atomic.Int64
}

type CacheStats struct {
	Fields      fieldcache.Stats `json:"fields"`
	Comparators fieldcache.Stats `json:"comparators"`
}

func NewCacheContext(fieldCacheSize, comparatorCacheSize int) (*CacheContext, error) {
	fields, err := fieldcache.New(fieldCacheSize)
	if err != nil {
		return nil, err
	}
	comparators, err := lru.New[comparatorKey, ScoreDocComparator](comparatorCacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating comparator cache: %w", err)
	}
	return &CacheContext{fields: fields, comparators: comparators}, nil
}

func (c *CacheContext) Fields() *fieldcache.Cache { return c.fields }

// Comparator returns the comparator of f for r, building it on first use.
func (c *CacheContext) Comparator(r index.Reader, f SortField) (ScoreDocComparator, error) {
	switch f.Type {
	case SortScore:
		return relevanceComparator{}, nil
	case SortDoc:
		return indexOrderComparator{}, nil
	}
	k := comparatorKey{reader: r.ID(), field: f.Field, typ: f.Type, locale: f.Locale}
	if f.Factory != nil {
		k.factory = f.Factory.Name()
	}
	if comp, ok := c.comparators.Get(k); ok {
		c.hits.Add(1)
		return comp, nil
	}
	c.misses.Add(1)
	comp, err := buildComparator(r, f, c.fields)
	if err != nil {
		return nil, fmt.Errorf("building comparator for %s: %w", f, err)
	}
	c.comparators.Add(k, comp)
	return comp, nil
}

// Purge drops everything built from the reader with the given id.
func (c *CacheContext) Purge(readerID uint64) int {
	removed := c.fields.Purge(readerID)
	for _, k := range c.comparators.Keys() {
		if k.reader == readerID && c.comparators.Remove(k) {
			removed++
		}
	}
	return removed
}

func (c *CacheContext) Stats() CacheStats {
	return CacheStats{
		Fields: c.fields.Stats(),
		Comparators: fieldcache.Stats{
			Hits:    c.hits.Load(),
			Misses:  c.misses.Load(),
			Entries: c.comparators.Len(),
		},
	}
}
