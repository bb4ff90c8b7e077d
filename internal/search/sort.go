package search

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"

	"github.com/Adithya-Monish-Kumar-K/search-core/internal/index"
	"github.com/Adithya-Monish-Kumar-K/search-core/internal/search/fieldcache"
)

// SortType selects how the values of a sort key are compared.
type SortType uint8

const (
	SortScore SortType = iota
	SortDoc
	SortAuto
	SortString
	SortInt
	SortFloat
	SortCustom
)

var sortTypeNames = [...]string{
	SortScore:  "SCORE",
	SortDoc:    "DOC",
	SortAuto:   "AUTO",
	SortString: "STRING",
	SortInt:    "INT",
	SortFloat:  "FLOAT",
	SortCustom: "CUSTOM",
}

func (t SortType) String() string {
	if int(t) < len(sortTypeNames) {
		return sortTypeNames[t]
	}
	return fmt.Sprintf("SortType(%d)", uint8(t))
}

// ParseSortType accepts the names printed by String, in any case.
func ParseSortType(s string) (SortType, error) {
	for i, name := range sortTypeNames {
		if strings.EqualFold(s, name) {
			return SortType(i), nil
		}
	}
	return 0, argError("sort type", "unknown type %q", s)
}

func (t SortType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *SortType) UnmarshalText(b []byte) error {
	parsed, err := ParseSortType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// SortComparatorSource builds comparators for CUSTOM sort keys. Name must
// identify the source; it is part of the comparator cache key.
type SortComparatorSource interface {
	Name() string
	NewComparator(r index.Reader, field string, fields *fieldcache.Cache) (ScoreDocComparator, error)
}

// SortField is one key of a sort. Field is ignored for SCORE and DOC keys.
// Locale, when set, collates a STRING key for that language.
type SortField struct {
	Field   string               `json:"field,omitempty"`
	Type    SortType             `json:"type"`
	Reverse bool                 `json:"reverse,omitempty"`
	Locale  string               `json:"locale,omitempty"`
	Factory SortComparatorSource `json:"-"`
}

var (
	// ScoreField sorts by descending relevance.
	ScoreField = SortField{Type: SortScore}
	// DocField sorts by ascending doc id.
	DocField = SortField{Type: SortDoc}
)

func (f SortField) validate() error {
	switch f.Type {
	case SortScore, SortDoc:
		return nil
	case SortAuto, SortString, SortInt, SortFloat, SortCustom:
	default:
		return fmt.Errorf("sort field %q: %w", f.Field, ErrUnknownSortType)
	}
	if f.Field == "" {
		return argError("sort field", "%s keys need a field name", f.Type)
	}
	if f.Type == SortCustom && f.Factory == nil {
		return argError("sort field", "custom key %q has no comparator source", f.Field)
	}
	if f.Locale != "" {
		if f.Type != SortString {
			return argError("sort field", "locale %q only applies to STRING keys, %q is %s", f.Locale, f.Field, f.Type)
		}
		if _, err := language.Parse(f.Locale); err != nil {
			return argError("sort field", "bad locale %q: %v", f.Locale, err)
		}
	}
	return nil
}

func (f SortField) String() string {
	var b strings.Builder
	switch f.Type {
	case SortScore:
		b.WriteString("<score>")
	case SortDoc:
		b.WriteString("<doc>")
	case SortCustom:
		b.WriteString("<custom:\"" + f.Field + "\"")
		if f.Factory != nil {
			b.WriteString(": " + f.Factory.Name())
		}
		b.WriteByte('>')
	default:
		b.WriteString("\"" + f.Field + "\"")
	}
	if f.Locale != "" {
		b.WriteString("(" + f.Locale + ")")
	}
	if f.Reverse {
		b.WriteByte('!')
	}
	return b.String()
}

// Sort is an ordered list of sort keys. Documents tied on every key are
// ordered by ascending doc id.
type Sort struct {
	fields []SortField
}

// NewSort validates the keys and builds a sort.
func NewSort(fields ...SortField) (*Sort, error) {
	if len(fields) == 0 {
		return nil, argError("sort", "no sort fields")
	}
	for _, f := range fields {
		if err := f.validate(); err != nil {
			return nil, err
		}
	}
	return &Sort{fields: append([]SortField(nil), fields...)}, nil
}

// ByField sorts by the values of one field, detecting their type.
func ByField(field string, reverse bool) (*Sort, error) {
	return NewSort(SortField{Field: field, Type: SortAuto, Reverse: reverse})
}

var (
	// Relevance orders by descending score. It is the order of Search.
	Relevance = &Sort{fields: []SortField{ScoreField, DocField}}
	// IndexOrder orders by doc id.
	IndexOrder = &Sort{fields: []SortField{DocField}}
)

func (s *Sort) Fields() []SortField {
	return append([]SortField(nil), s.fields...)
}

func (s *Sort) String() string {
	parts := make([]string, len(s.fields))
	for i, f := range s.fields {
		parts[i] = f.String()
	}
	return strings.Join(parts, ",")
}
