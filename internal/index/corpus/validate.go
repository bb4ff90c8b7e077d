package corpus

import (
	"fmt"
	"sort"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/search-core/pkg/errors"
)

const (
	maxIDLength        = 255
	maxFieldNameLength = 128
	maxFieldLength     = 1 << 20
)

// ValidationError holds one message per offending part of a record. It
// matches apperrors.ErrInvalidInput.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s: %s", name, e.Fields[name])
	}
	return strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return apperrors.ErrInvalidInput }

// Validate checks a record before it is indexed.
func Validate(rec Record) error {
	errs := make(map[string]string)
	switch {
	case strings.TrimSpace(rec.ID) == "":
		errs[IDField] = "id is required"
	case len(rec.ID) > maxIDLength:
		errs[IDField] = fmt.Sprintf("id must be at most %d bytes", maxIDLength)
	}
	for name, value := range rec.Fields {
		switch {
		case name == "":
			errs["fields"] = "field names must not be empty"
		case name == IDField:
			errs[name] = "the id field is reserved"
		case len(name) > maxFieldNameLength:
			errs[name] = fmt.Sprintf("field name must be at most %d bytes", maxFieldNameLength)
		case len(value) > maxFieldLength:
			errs[name] = fmt.Sprintf("value must be at most %d bytes", maxFieldLength)
		}
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
