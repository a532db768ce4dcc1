package domain

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrInvalidSelection signals a malformed or empty page selection.
	ErrInvalidSelection = errors.New("invalid page selection")
	// ErrUnprocessableDocument signals that the document could not be opened at all.
	ErrUnprocessableDocument = errors.New("document cannot be processed")
	// ErrNothingToRender signals that no page could be scheduled.
	ErrNothingToRender = errors.New("no pages to render")

	// ErrPageOutOfRange is returned by renderers for pages past the end of the document.
	ErrPageOutOfRange = errors.New("page exceeds document length")
	// ErrCorruptDocument is returned by renderers for unreadable document or page data.
	ErrCorruptDocument = errors.New("corrupt or unsupported document")
	// ErrRendererFailure covers any other renderer-internal failure.
	ErrRendererFailure = errors.New("renderer failure")
	// ErrEncoding signals a rendered page that cannot be put on the wire.
	ErrEncoding = errors.New("image encoding failed")
)

// Reason classifies why a single page failed.
type Reason string

const (
	ReasonOutOfRange Reason = "out_of_range"
	ReasonCorrupt    Reason = "corrupt"
	ReasonInternal   Reason = "internal"
	ReasonEncoding   Reason = "encoding"
	ReasonCanceled   Reason = "canceled"
)

// ReasonOf maps a per-page error to its failure reason.
func ReasonOf(err error) Reason {
	switch {
	case errors.Is(err, ErrPageOutOfRange):
		return ReasonOutOfRange
	case errors.Is(err, ErrCorruptDocument):
		return ReasonCorrupt
	case errors.Is(err, ErrEncoding):
		return ReasonEncoding
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ReasonCanceled
	default:
		return ReasonInternal
	}
}

// RenderError is a per-page failure carrying the page number it belongs to.
type RenderError struct {
	Page int
	Err  error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("page %d: %v", e.Page, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }
