package memory

import (
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/Adithya-Monish-Kumar-K/search-core/internal/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/search-core/pkg/errors"
)

type termEntry struct {
	text    string
	docFreq uint32
}

// Reader is an immutable in-memory index. It is safe for concurrent use.
type Reader struct {
	id       uint64
	maxDoc   uint32
	postings map[index.Term]*postingList
	fields   map[string][]termEntry
	norms    map[string][]byte
	docs     []*index.Document
	closed   atomic.Bool
}

var _ index.Reader = (*Reader)(nil)

var emptyPostings = &postingList{}

func (r *Reader) ID() uint64 { return r.id }

func (r *Reader) MaxDoc() uint32 { return r.maxDoc }

func (r *Reader) NumDocs() uint32 { return r.maxDoc }

func (r *Reader) checkOpen() error {
	if r.closed.Load() {
		return fmt.Errorf("reader %d: %w", r.id, apperrors.ErrClosed)
	}
	return nil
}

func (r *Reader) DocFreq(t index.Term) (uint32, error) {
	if err := r.checkOpen(); err != nil {
		return 0, err
	}
	pl, ok := r.postings[t]
	if !ok {
		return 0, nil
	}
	return uint32(len(pl.docs)), nil
}

func (r *Reader) TermDocs(t index.Term) (index.TermDocs, error) {
	return r.TermPositions(t)
}

func (r *Reader) TermPositions(t index.Term) (index.TermPositions, error) {
	if err := r.checkOpen(); err != nil {
		return nil, err
	}
	pl, ok := r.postings[t]
	if !ok {
		pl = emptyPostings
	}
	return &cursor{list: pl, pos: -1}, nil
}

func (r *Reader) Terms(field string) (index.TermEnum, error) {
	if err := r.checkOpen(); err != nil {
		return nil, err
	}
	return &termEnum{field: field, entries: r.fields[field], pos: -1}, nil
}

func (r *Reader) Norms(field string) ([]byte, error) {
	if err := r.checkOpen(); err != nil {
		return nil, err
	}
	return r.norms[field], nil
}

func (r *Reader) Document(doc uint32) (*index.Document, error) {
	if err := r.checkOpen(); err != nil {
		return nil, err
	}
	if doc >= r.maxDoc {
		return nil, fmt.Errorf("doc %d of %d: %w", doc, r.maxDoc, apperrors.ErrNotFound)
	}
	return r.docs[doc], nil
}

// Fields lists the indexed field names in sorted order.
func (r *Reader) Fields() []string {
	names := make([]string, 0, len(r.fields))
	for name := range r.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Reader) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return fmt.Errorf("reader %d: %w", r.id, apperrors.ErrClosed)
	}
	return nil
}

type cursor struct {
	list   *postingList
	pos    int
	posIdx int
}

func (c *cursor) Next() bool {
	if c.pos+1 >= len(c.list.docs) {
		c.pos = len(c.list.docs)
		return false
	}
	c.pos++
	c.posIdx = 0
	return true
}

func (c *cursor) Doc() uint32 { return c.list.docs[c.pos] }

func (c *cursor) Freq() uint32 { return c.list.freqs[c.pos] }

func (c *cursor) SkipTo(target uint32) bool {
	start := c.pos + 1
	n := len(c.list.docs)
	if start >= n {
		c.pos = n
		return false
	}
	rest := c.list.docs[start:]
	i := sort.Search(len(rest), func(i int) bool { return rest[i] >= target })
	c.pos = start + i
	c.posIdx = 0
	return c.pos < n
}

func (c *cursor) Read(docs, freqs []uint32) int {
	start := c.pos + 1
	if start >= len(c.list.docs) {
		c.pos = len(c.list.docs)
		return 0
	}
	n := min(len(docs), len(freqs))
	n = copy(docs[:n], c.list.docs[start:])
	copy(freqs[:n], c.list.freqs[start:start+n])
	c.pos = start + n - 1
	c.posIdx = 0
	return n
}

func (c *cursor) NextPosition() uint32 {
	p := c.list.positions[c.pos][c.posIdx]
	c.posIdx++
	return p
}

func (c *cursor) Err() error { return nil }

func (c *cursor) Close() error { return nil }

type termEnum struct {
	field   string
	entries []termEntry
	pos     int
}

func (e *termEnum) Next() bool {
	if e.pos+1 >= len(e.entries) {
		e.pos = len(e.entries)
		return false
	}
	e.pos++
	return true
}

func (e *termEnum) Term() index.Term {
	return index.NewTerm(e.field, e.entries[e.pos].text)
}

func (e *termEnum) DocFreq() uint32 { return e.entries[e.pos].docFreq }

func (e *termEnum) Err() error { return nil }

func (e *termEnum) Close() error { return nil }
