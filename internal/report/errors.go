package report

import (
	"context"
	"errors"

	"github.com/nixlim/grouptop/internal/engine"
	"github.com/nixlim/grouptop/internal/format"
	"github.com/nixlim/grouptop/internal/grouptree"
)

// Kind classifies an error by how the view recovers from it.
type Kind int

const (
	KindNone Kind = iota
	// KindInput errors are rejected before a request is sent.
	KindInput
	// KindMalformedTree means the response broke the group invariants.
	KindMalformedTree
	// KindFormatting errors stay inside a single cell.
	KindFormatting
	// KindNetwork covers transport failures and non-200 engine answers.
	KindNetwork
	// KindCanceled is a fetch abandoned by the caller.
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindInput:
		return "input"
	case KindMalformedTree:
		return "malformed_tree"
	case KindFormatting:
		return "formatting"
	case KindNetwork:
		return "network"
	case KindCanceled:
		return "canceled"
	}
	return "unknown"
}

// Classify maps err onto the error taxonomy. Anything unrecognised is
// treated as a network error.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case engine.IsInputError(err):
		return KindInput
	case errors.Is(err, grouptree.ErrMalformedTree):
		return KindMalformedTree
	case errors.Is(err, format.ErrNotNumeric),
		errors.Is(err, format.ErrBadTimestamp),
		errors.Is(err, format.ErrUnknownOperator):
		return KindFormatting
	case errors.Is(err, context.Canceled):
		return KindCanceled
	}
	return KindNetwork
}

// Title is the heading shown above an error state.
func Title(err error) string {
	switch Classify(err) {
	case KindInput:
		return "Invalid query"
	case KindMalformedTree:
		return "Malformed response"
	case KindCanceled:
		return "Request canceled"
	}
	if errors.Is(err, engine.ErrReportNotFound) {
		return "Report not found"
	}
	return "Engine error"
}
