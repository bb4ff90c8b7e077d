// Package index defines the contracts the search engine consumes from an
// inverted index: posting cursors, the sorted term dictionary, per-field
// norms and stored documents. Implementations live in sub-packages.
package index

import "strings"

// Term is a word of text scoped to a field.
type Term struct {
	Field string
	Text  string
}

func NewTerm(field, text string) Term {
	return Term{Field: field, Text: text}
}

// Compare orders terms by field, then by text.
func (t Term) Compare(o Term) int {
	if c := strings.Compare(t.Field, o.Field); c != 0 {
		return c
	}
	return strings.Compare(t.Text, o.Text)
}

func (t Term) String() string {
	return t.Field + ":" + t.Text
}

// TermDocs iterates over the postings of one term in increasing doc order.
// A cursor starts before its first posting. Next and SkipTo return false both
// at the end of the list and on failure; Err tells the two apart.
type TermDocs interface {
	Next() bool
	Doc() uint32
	Freq() uint32
	// SkipTo advances to the first posting whose doc is >= target. It always
	// moves at least one posting forward.
	SkipTo(target uint32) bool
	// Read fills docs and freqs with the postings after the current one and
	// returns how many were read. Zero means the list is exhausted.
	Read(docs, freqs []uint32) int
	Err() error
	Close() error
}

// TermPositions extends TermDocs with the positions of the term inside the
// current document. NextPosition may be called Freq times per document.
type TermPositions interface {
	TermDocs
	NextPosition() uint32
}

// TermEnum walks the term dictionary of one field in sorted order. Like a
// posting cursor it starts before the first term.
type TermEnum interface {
	Next() bool
	Term() Term
	DocFreq() uint32
	Err() error
	Close() error
}

// Field is a stored field value.
type Field struct {
	Name  string
	Value string
}

// Document holds the stored fields of a document.
type Document struct {
	Fields []Field
}

// Get returns the first value stored under name.
func (d *Document) Get(name string) (string, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// Values returns every value stored under name.
func (d *Document) Values(name string) []string {
	var out []string
	for _, f := range d.Fields {
		if f.Name == name {
			out = append(out, f.Value)
		}
	}
	return out
}

// Reader is a read-only view of one index. Doc ids are dense in [0, MaxDoc).
// A term that does not occur yields an empty cursor, never nil.
type Reader interface {
	// ID identifies the reader for cache keys. It is unique per process.
	ID() uint64
	MaxDoc() uint32
	NumDocs() uint32
	DocFreq(t Term) (uint32, error)
	TermDocs(t Term) (TermDocs, error)
	TermPositions(t Term) (TermPositions, error)
	// Terms enumerates the terms of field in ascending text order.
	Terms(field string) (TermEnum, error)
	// Norms returns one encoded norm byte per doc, or nil when the field has
	// no norms.
	Norms(field string) ([]byte, error)
	Document(doc uint32) (*Document, error)
	Close() error
}
