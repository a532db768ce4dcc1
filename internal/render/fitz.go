package render

import (
	"context"
	"errors"
	"image"

	"github.com/gen2brain/go-fitz"

	"pdf2png/internal/domain"
)

// fitzDocument is the subset of *fitz.Document used here.
type fitzDocument interface {
	NumPage() int
	Bound(pageNumber int) (image.Rectangle, error)
	ImageDPI(pageNumber int, dpi float64) (*image.RGBA, error)
	Close() error
}

var openFitz = func(data []byte) (fitzDocument, error) {
	return fitz.NewFromMemory(data)
}

// FitzRenderer renders pages with MuPDF through go-fitz.
//
// A fitz document serializes all calls on an internal mutex, so every
// render opens its own handle over the shared bytes to run in parallel.
type FitzRenderer struct {
	limits Limits
}

// NewFitzRenderer creates a MuPDF-backed renderer.
func NewFitzRenderer(limits Limits) *FitzRenderer {
	return &FitzRenderer{limits: limits}
}

// PageCount opens the document and reports its number of pages.
func (r *FitzRenderer) PageCount(ctx context.Context, doc *domain.Document) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	d, err := openFitz(doc.Bytes())
	if err != nil {
		return 0, corrupt(err)
	}
	defer d.Close()
	return d.NumPage(), nil
}

// Render rasterizes one page at opts.DPI.
func (r *FitzRenderer) Render(ctx context.Context, doc *domain.Document, page int, opts domain.RenderOptions) (domain.Image, error) {
	if err := ctx.Err(); err != nil {
		return domain.Image{}, err
	}
	d, err := openFitz(doc.Bytes())
	if err != nil {
		return domain.Image{}, &domain.RenderError{Page: page, Err: corrupt(err)}
	}
	defer d.Close()

	if n := d.NumPage(); page < 1 || page > n {
		return domain.Image{}, outOfRange(page, n)
	}

	// Bound is in points, so the raster size is known before ImageDPI allocates it.
	bound, err := d.Bound(page - 1)
	if err != nil {
		return domain.Image{}, fitzError(page, d.NumPage(), err)
	}
	if err := r.limits.checkPage(page, float64(bound.Dx()), float64(bound.Dy()), opts.DPI); err != nil {
		return domain.Image{}, err
	}

	img, err := d.ImageDPI(page-1, opts.DPI)
	if err != nil {
		return domain.Image{}, fitzError(page, d.NumPage(), err)
	}
	return finishPage(img, opts, r.limits)
}

func fitzError(page, count int, err error) error {
	switch {
	case errors.Is(err, fitz.ErrPageMissing):
		return outOfRange(page, count)
	case errors.Is(err, fitz.ErrLoadPage):
		return &domain.RenderError{Page: page, Err: corrupt(err)}
	default:
		return failure(page, err)
	}
}

// Close is a no-op; documents are closed after every call.
func (r *FitzRenderer) Close() error {
	return nil
}
