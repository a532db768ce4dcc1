package render

import (
	"context"
	"fmt"

	"pdf2png/internal/config"
	"pdf2png/internal/domain"
)

// Renderer rasterizes single pages of a PDF document.
//
// Implementations must be safe for concurrent use against the same
// Document and must never modify its bytes. Errors wrap one of
// domain.ErrPageOutOfRange, domain.ErrCorruptDocument or domain.ErrRendererFailure.
type Renderer interface {
	// PageCount opens the document once and reports how many pages it has.
	PageCount(ctx context.Context, doc *domain.Document) (int, error)
	// Render rasterizes page (1-based) and returns it encoded as PNG.
	Render(ctx context.Context, doc *domain.Document, page int, opts domain.RenderOptions) (domain.Image, error)
	// Close releases engine resources.
	Close() error
}

// New builds the renderer selected by cfg.Render.Engine.
func New(cfg config.Config) (Renderer, error) {
	limits := Limits{MaxPixels: cfg.Render.MaxPixels}
	switch cfg.Render.Engine {
	case config.EngineFitz, "":
		return NewFitzRenderer(limits), nil
	case config.EnginePDFium:
		return NewPDFiumRenderer(cfg.Render.PoolSize, cfg.AcquireTimeout(), limits)
	case config.EnginePoppler:
		return NewPopplerRenderer(cfg.Render.PdftoppmPath, limits), nil
	default:
		return nil, fmt.Errorf("unknown render engine %q", cfg.Render.Engine)
	}
}

func outOfRange(page, count int) error {
	return &domain.RenderError{
		Page: page,
		Err:  fmt.Errorf("%w: page %d of %d", domain.ErrPageOutOfRange, page, count),
	}
}

func corrupt(err error) error {
	return fmt.Errorf("%w: %v", domain.ErrCorruptDocument, err)
}

func failure(page int, err error) error {
	return &domain.RenderError{Page: page, Err: fmt.Errorf("%w: %v", domain.ErrRendererFailure, err)}
}
