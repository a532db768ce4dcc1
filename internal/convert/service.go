package convert

import (
	"context"
	"fmt"
	"time"

	"pdf2png/internal/domain"
	"pdf2png/internal/infra/logging"
)

// Limits bound what a single request may ask for. Zero values disable a limit.
type Limits struct {
	MaxPages         int
	MaxDocumentBytes int
	DefaultDPI       float64
	MaxDPI           float64
	// MaxConcurrency caps the per-request render bound a client may ask for.
	MaxConcurrency int
	Timeout        time.Duration
}

// Options are the per-request knobs exposed to clients.
type Options struct {
	Grayscale bool
	DPI       float64
	MaxWidth  int
	// Concurrency overrides the coordinator default when positive. It is
	// capped by Limits.MaxConcurrency.
	Concurrency int
}

// Service converts a document and a raw page selection into page images.
type Service struct {
	coord  *Coordinator
	limits Limits
}

// NewService creates the conversion facade.
func NewService(coord *Coordinator, limits Limits) *Service {
	return &Service{coord: coord, limits: limits}
}

// ConvertDocument parses rawPageSpec, renders the selected pages of raw and
// assembles the keyed result. It returns either a result or a *BoundaryError.
func (s *Service) ConvertDocument(ctx context.Context, raw []byte, rawPageSpec string, opts Options) (res domain.ConversionResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = domain.ConversionResult{}, &BoundaryError{Kind: KindInternal, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	sel, err := domain.ParseSelection(rawPageSpec)
	if err != nil {
		return domain.ConversionResult{}, classify(err)
	}
	if s.limits.MaxPages > 0 && sel.Len() > s.limits.MaxPages {
		return domain.ConversionResult{}, classify(fmt.Errorf("%w: %d pages, limit is %d", ErrSelectionTooLarge, sel.Len(), s.limits.MaxPages))
	}
	if len(raw) == 0 {
		return domain.ConversionResult{}, classify(ErrEmptyDocument)
	}
	if s.limits.MaxDocumentBytes > 0 && len(raw) > s.limits.MaxDocumentBytes {
		return domain.ConversionResult{}, classify(fmt.Errorf("%w: %d bytes, limit is %d", ErrDocumentTooLarge, len(raw), s.limits.MaxDocumentBytes))
	}
	renderOpts, err := s.renderOptions(opts)
	if err != nil {
		return domain.ConversionResult{}, classify(err)
	}

	if s.limits.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.limits.Timeout)
		defer cancel()
	}

	limit := s.concurrency(opts.Concurrency)
	logging.Debug("Rendering pages", "pages", sel.String(), "concurrency", limit, "dpi", renderOpts.DPI)

	batch, err := s.coord.Convert(ctx, domain.NewDocument(raw), sel, limit, renderOpts)
	if err != nil {
		return domain.ConversionResult{}, classify(err)
	}

	res = Assemble(batch.Outcomes)
	res.PageCount = batch.PageCount
	return res, nil
}

func (s *Service) renderOptions(opts Options) (domain.RenderOptions, error) {
	dpi := opts.DPI
	if dpi == 0 {
		dpi = s.limits.DefaultDPI
	}
	if dpi < 1 || (s.limits.MaxDPI > 0 && dpi > s.limits.MaxDPI) {
		return domain.RenderOptions{}, fmt.Errorf("%w: dpi must be between 1 and %v", ErrInvalidOptions, s.limits.MaxDPI)
	}
	if opts.MaxWidth < 0 {
		return domain.RenderOptions{}, fmt.Errorf("%w: max_width must not be negative", ErrInvalidOptions)
	}
	if opts.Concurrency < 0 {
		return domain.RenderOptions{}, fmt.Errorf("%w: concurrency must not be negative", ErrInvalidOptions)
	}
	return domain.RenderOptions{Grayscale: opts.Grayscale, DPI: dpi, MaxWidth: opts.MaxWidth}, nil
}

// concurrency resolves the requested bound; 0 leaves the coordinator default.
func (s *Service) concurrency(requested int) int {
	if s.limits.MaxConcurrency > 0 && requested > s.limits.MaxConcurrency {
		return s.limits.MaxConcurrency
	}
	return requested
}
