package search

import (
	"cmp"
	"fmt"

	"golang.org/x/text/collate"

	"github.com/Adithya-Monish-Kumar-K/search-core/internal/index"
	"github.com/Adithya-Monish-Kumar-K/search-core/internal/search/pqueue"
)

// FieldSortedHitQueue keeps the best n hits of one reader under a sort.
// Sort values are only read into FieldDocs when the queue is drained.
type FieldSortedHitQueue struct {
	pq          *pqueue.PriorityQueue[ScoreDoc]
	comparators []ScoreDocComparator
	fields      []SortField
	maxScore    float32
}

func NewFieldSortedHitQueue(caches *CacheContext, r index.Reader, fields []SortField, n int) (*FieldSortedHitQueue, error) {
	q := &FieldSortedHitQueue{
		comparators: make([]ScoreDocComparator, len(fields)),
		fields:      make([]SortField, len(fields)),
		maxScore:    1,
	}
	for i, f := range fields {
		comp, err := caches.Comparator(r, f)
		if err != nil {
			return nil, err
		}
		q.comparators[i] = comp
		q.fields[i] = f
		q.fields[i].Type = comp.SortType()
	}
	q.pq = pqueue.New(n, q.lessThan)
	return q, nil
}

// lessThan reports whether a sorts after b.
func (q *FieldSortedHitQueue) lessThan(a, b ScoreDoc) bool {
	for i, comp := range q.comparators {
		c := comp.Compare(a, b)
		if q.fields[i].Reverse {
			c = -c
		}
		if c != 0 {
			return c > 0
		}
	}
	return a.Doc > b.Doc
}

func (q *FieldSortedHitQueue) Insert(d ScoreDoc) bool {
	if d.Score > q.maxScore {
		q.maxScore = d.Score
	}
	return q.pq.Insert(d)
}

func (q *FieldSortedHitQueue) Len() int { return q.pq.Len() }

// Fields returns the sort keys with AUTO replaced by the detected type.
func (q *FieldSortedHitQueue) Fields() []SortField {
	return append([]SortField(nil), q.fields...)
}

func (q *FieldSortedHitQueue) MaxScore() float32 { return q.maxScore }

// FillFields reads the sort values of d and scales its score by the highest
// score seen, when that exceeds 1.
func (q *FieldSortedHitQueue) FillFields(d ScoreDoc) FieldDoc {
	values := make([]any, len(q.comparators))
	for i, comp := range q.comparators {
		values[i] = comp.SortValue(d)
	}
	if q.maxScore > 1 {
		d.Score /= q.maxScore
	}
	return FieldDoc{ScoreDoc: d, Fields: values}
}

// Drain empties the queue into filled FieldDocs in sort order.
func (q *FieldSortedHitQueue) Drain() []FieldDoc {
	out := make([]FieldDoc, q.pq.Len())
	for i := len(out) - 1; i >= 0; i-- {
		d, _ := q.pq.Pop()
		out[i] = q.FillFields(d)
	}
	return out
}

// FieldDocSortedHitQueue merges FieldDocs produced by several readers by
// comparing the sort values they carry.
type FieldDocSortedHitQueue struct {
	pq        *pqueue.PriorityQueue[FieldDoc]
	fields    []SortField
	collators []*collate.Collator
	fieldsSet bool
}

func NewFieldDocSortedHitQueue(n int) *FieldDocSortedHitQueue {
	q := &FieldDocSortedHitQueue{}
	q.pq = pqueue.New(n, q.lessThan)
	return q
}

// SetFields fixes the resolved sort keys on the first call. Later calls
// must carry the same keys and types.
func (q *FieldDocSortedHitQueue) SetFields(fields []SortField) error {
	if q.fieldsSet {
		if len(fields) != len(q.fields) {
			return fmt.Errorf("got %d sort fields, want %d: %w", len(fields), len(q.fields), ErrSortMismatch)
		}
		for i, f := range fields {
			if f.Type != q.fields[i].Type || f.Field != q.fields[i].Field {
				return fmt.Errorf("sort field %d is %s, want %s: %w", i, f, q.fields[i], ErrSortMismatch)
			}
		}
		return nil
	}
	collators := make([]*collate.Collator, len(fields))
	for i, f := range fields {
		switch f.Type {
		case SortScore, SortDoc, SortString, SortInt, SortFloat, SortCustom:
		default:
			return fmt.Errorf("merging on %s: %w", f, ErrUnknownSortType)
		}
		if f.Type == SortString && f.Locale != "" {
			col, err := newCollator(f.Locale)
			if err != nil {
				return err
			}
			collators[i] = col
		}
	}
	q.fields = append([]SortField(nil), fields...)
	q.collators = collators
	q.fieldsSet = true
	return nil
}

func (q *FieldDocSortedHitQueue) Fields() []SortField {
	return append([]SortField(nil), q.fields...)
}

// lessThan reports whether a sorts after b. Values of a key always have the
// dynamic type its SortType produces; anything else is a bug.
func (q *FieldDocSortedHitQueue) lessThan(a, b FieldDoc) bool {
	for i, f := range q.fields {
		var c int
		switch f.Type {
		case SortScore:
			c = cmp.Compare(b.Fields[i].(float32), a.Fields[i].(float32))
		case SortDoc:
			c = cmp.Compare(a.Fields[i].(uint32), b.Fields[i].(uint32))
		case SortInt:
			c = cmp.Compare(a.Fields[i].(int32), b.Fields[i].(int32))
		case SortFloat:
			c = cmp.Compare(a.Fields[i].(float32), b.Fields[i].(float32))
		case SortString:
			sa, sb := a.Fields[i].(string), b.Fields[i].(string)
			if col := q.collators[i]; col != nil {
				c = col.CompareString(sa, sb)
			} else {
				c = cmp.Compare(sa, sb)
			}
		case SortCustom:
			c = compareComparable(a.Fields[i], b.Fields[i])
		}
		if f.Reverse {
			c = -c
		}
		if c != 0 {
			return c > 0
		}
	}
	return a.Doc > b.Doc
}

// Insert must only be called after SetFields.
func (q *FieldDocSortedHitQueue) Insert(d FieldDoc) bool {
	return q.pq.Insert(d)
}

func (q *FieldDocSortedHitQueue) Len() int { return q.pq.Len() }

func (q *FieldDocSortedHitQueue) Drain() []FieldDoc {
	out := make([]FieldDoc, q.pq.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i], _ = q.pq.Pop()
	}
	return out
}
