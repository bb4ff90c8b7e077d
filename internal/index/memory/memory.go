// Package memory implements index.Reader over postings held in memory. A
// Builder accumulates documents and Build freezes them into an immutable
// Reader that any number of searches may share.
package memory

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/Adithya-Monish-Kumar-K/search-core/internal/index"
	"github.com/Adithya-Monish-Kumar-K/search-core/internal/index/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/search-core/internal/search/similarity"
)

// Field is one field of a document being added. A zero Boost means 1.
type Field struct {
	Name      string
	Value     string
	Indexed   bool
	Tokenized bool
	Stored    bool
	Boost     float32
}

// Text is indexed, tokenized and stored.
func Text(name, value string) Field {
	return Field{Name: name, Value: value, Indexed: true, Tokenized: true, Stored: true}
}

// Keyword is indexed as a single term and stored.
func Keyword(name, value string) Field {
	return Field{Name: name, Value: value, Indexed: true, Stored: true}
}

// Stored is kept for retrieval only.
func Stored(name, value string) Field {
	return Field{Name: name, Value: value, Stored: true}
}

type posting struct {
	doc       uint32
	positions []uint32
}

type postingList struct {
	docs      []uint32
	freqs     []uint32
	positions [][]uint32
}

type Builder struct {
	mu       sync.Mutex
	analyzer tokenizer.Analyzer
	sim      similarity.Similarity
	postings map[index.Term][]posting
	norms    map[string]map[uint32]float32
	docs     []*index.Document
}

// NewBuilder returns a Builder that tokenizes with analyzer and computes
// norms with sim. Nil arguments select tokenizer.Simple and the process
// default similarity.
func NewBuilder(analyzer tokenizer.Analyzer, sim similarity.Similarity) *Builder {
	if analyzer == nil {
		analyzer = tokenizer.Simple{}
	}
	if sim == nil {
		sim = similarity.Default()
	}
	return &Builder{
		analyzer: analyzer,
		sim:      sim,
		postings: make(map[index.Term][]posting),
		norms:    make(map[string]map[uint32]float32),
	}
}

// Add appends a document and returns its doc id.
func (b *Builder) Add(fields ...Field) uint32 {
	return b.AddWithBoost(1, fields...)
}

// AddWithBoost appends a document whose indexed fields have their norms
// multiplied by boost.
func (b *Builder) AddWithBoost(boost float32, fields ...Field) uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()

	doc := uint32(len(b.docs))
	stored := &index.Document{}
	termPositions := make(map[index.Term][]uint32)
	fieldLength := make(map[string]int)
	fieldBoost := make(map[string]float32)
	nextPosition := make(map[string]int)

	for _, f := range fields {
		if f.Stored {
			stored.Fields = append(stored.Fields, index.Field{Name: f.Name, Value: f.Value})
		}
		if !f.Indexed {
			continue
		}
		fb := f.Boost
		if fb == 0 {
			fb = 1
		}
		if prev, ok := fieldBoost[f.Name]; ok {
			fieldBoost[f.Name] = prev * fb
		} else {
			fieldBoost[f.Name] = fb
		}

		base := nextPosition[f.Name]
		if !f.Tokenized {
			t := index.NewTerm(f.Name, f.Value)
			termPositions[t] = append(termPositions[t], uint32(base))
			fieldLength[f.Name]++
			nextPosition[f.Name] = base + 1
			continue
		}
		last := base - 1
		for _, tok := range b.analyzer.Tokenize(f.Value) {
			p := base + tok.Position
			t := index.NewTerm(f.Name, tok.Term)
			termPositions[t] = append(termPositions[t], uint32(p))
			fieldLength[f.Name]++
			last = p
		}
		nextPosition[f.Name] = last + 1
	}

	for t, positions := range termPositions {
		b.postings[t] = append(b.postings[t], posting{doc: doc, positions: positions})
	}
	for name, n := range fieldLength {
		m, ok := b.norms[name]
		if !ok {
			m = make(map[uint32]float32)
			b.norms[name] = m
		}
		m[doc] = b.sim.LengthNorm(name, n) * fieldBoost[name] * boost
	}
	for name := range fieldBoost {
		if _, ok := fieldLength[name]; !ok {
			// indexed but produced no tokens
			m, ok := b.norms[name]
			if !ok {
				m = make(map[uint32]float32)
				b.norms[name] = m
			}
			m[doc] = b.sim.LengthNorm(name, 0) * fieldBoost[name] * boost
		}
	}
	b.docs = append(b.docs, stored)
	return doc
}

func (b *Builder) NumDocs() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.docs)
}

// Build freezes the documents added so far into a Reader. The Builder may
// keep accepting documents; later Builds see them too.
func (b *Builder) Build() *Reader {
	b.mu.Lock()
	defer b.mu.Unlock()

	maxDoc := uint32(len(b.docs))
	r := &Reader{
		id:       nextReaderID.Add(1),
		maxDoc:   maxDoc,
		postings: make(map[index.Term]*postingList, len(b.postings)),
		fields:   make(map[string][]termEntry),
		norms:    make(map[string][]byte, len(b.norms)),
		docs:     append([]*index.Document(nil), b.docs...),
	}

	for t, ps := range b.postings {
		pl := &postingList{
			docs:      make([]uint32, len(ps)),
			freqs:     make([]uint32, len(ps)),
			positions: make([][]uint32, len(ps)),
		}
		for i, p := range ps {
			pl.docs[i] = p.doc
			pl.freqs[i] = uint32(len(p.positions))
			pl.positions[i] = p.positions
		}
		r.postings[t] = pl
		r.fields[t.Field] = append(r.fields[t.Field], termEntry{text: t.Text, docFreq: uint32(len(ps))})
	}
	for field, entries := range r.fields {
		sort.Slice(entries, func(i, j int) bool { return entries[i].text < entries[j].text })
		r.fields[field] = entries
	}

	one := similarity.EncodeNorm(1)
	for field, values := range b.norms {
		bytes := make([]byte, maxDoc)
		for i := range bytes {
			bytes[i] = one
		}
		for doc, v := range values {
			bytes[doc] = similarity.EncodeNorm(v)
		}
		r.norms[field] = bytes
	}
	return r
}

var nextReaderID atomic.Uint64
