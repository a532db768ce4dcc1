package convert

import (
	"context"
	"errors"
	"fmt"

	"pdf2png/internal/domain"
)

var (
	// ErrSelectionTooLarge signals more pages than the service admits per request.
	ErrSelectionTooLarge = errors.New("too many pages requested")
	// ErrDocumentTooLarge signals a document over the configured size limit.
	ErrDocumentTooLarge = errors.New("document too large")
	// ErrEmptyDocument signals a request without document bytes.
	ErrEmptyDocument = errors.New("document is empty")
	// ErrInvalidOptions signals out-of-range render options.
	ErrInvalidOptions = errors.New("invalid render options")
)

// Kind is the category of a request-level failure at the service boundary.
type Kind int

const (
	KindInternal Kind = iota
	KindBadRequest
	KindTooLarge
	KindUnprocessableDocument
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindBadRequest:
		return "bad_request"
	case KindTooLarge:
		return "too_large"
	case KindUnprocessableDocument:
		return "unprocessable_document"
	case KindTimeout:
		return "timeout"
	default:
		return "internal"
	}
}

// BoundaryError is the only error type ConvertDocument returns.
type BoundaryError struct {
	Kind Kind
	Err  error
}

func (e *BoundaryError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *BoundaryError) Unwrap() error { return e.Err }

// KindOf returns the boundary kind of err, KindInternal if it carries none.
func KindOf(err error) Kind {
	var be *BoundaryError
	if errors.As(err, &be) {
		return be.Kind
	}
	return KindInternal
}

func classify(err error) *BoundaryError {
	var be *BoundaryError
	if errors.As(err, &be) {
		return be
	}
	kind := KindInternal
	switch {
	case errors.Is(err, domain.ErrInvalidSelection),
		errors.Is(err, ErrSelectionTooLarge),
		errors.Is(err, ErrInvalidOptions):
		kind = KindBadRequest
	case errors.Is(err, ErrDocumentTooLarge):
		kind = KindTooLarge
	case errors.Is(err, domain.ErrUnprocessableDocument),
		errors.Is(err, domain.ErrNothingToRender),
		errors.Is(err, ErrEmptyDocument):
		kind = KindUnprocessableDocument
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		kind = KindTimeout
	}
	return &BoundaryError{Kind: kind, Err: err}
}
