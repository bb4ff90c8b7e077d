package search

import (
	"errors"
	"fmt"

	apperrors "github.com/Adithya-Monish-Kumar-K/search-core/pkg/errors"
)

// ArgumentError reports an invalid argument detected while a query, filter
// or sort is being built. It matches apperrors.ErrInvalidInput.
type ArgumentError struct {
	Arg    string
	Reason string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Arg, e.Reason)
}

func (e *ArgumentError) Unwrap() error {
	return apperrors.ErrInvalidInput
}

func argError(arg, format string, args ...any) error {
	return &ArgumentError{Arg: arg, Reason: fmt.Sprintf(format, args...)}
}

var (
	// ErrTooManyClauses is returned when a boolean query, or the rewrite of
	// a multi-term query, would exceed MaxClauseCount.
	ErrTooManyClauses = &ArgumentError{Arg: "clauses", Reason: "too many boolean clauses"}

	// ErrUnknownSortType is returned when a sort key carries a type no
	// comparator exists for.
	ErrUnknownSortType = fmt.Errorf("unknown sort type: %w", apperrors.ErrInternal)

	// ErrSortMismatch is returned when the sub-searchers of a sorted
	// multi search resolve the sort keys to different types.
	ErrSortMismatch = fmt.Errorf("sort fields of sub-searchers disagree: %w", apperrors.ErrInternal)

	errNotRewritten = fmt.Errorf("query must be rewritten before a weight is created: %w", apperrors.ErrInternal)

	errStopEnum = errors.New("stop term enumeration")
)
