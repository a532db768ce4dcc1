package render

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/klippa-app/go-pdfium"
	"github.com/klippa-app/go-pdfium/references"
	"github.com/klippa-app/go-pdfium/requests"
	"github.com/klippa-app/go-pdfium/webassembly"

	"pdf2png/internal/domain"
)

// PDFiumRenderer renders pages with PDFium compiled to WebAssembly (no CGo).
// Each call borrows an instance from a worker pool sized to the render pool.
type PDFiumRenderer struct {
	pool    pdfium.Pool
	timeout time.Duration
	limits  Limits
}

// NewPDFiumRenderer starts a WebAssembly pool with up to workers instances.
func NewPDFiumRenderer(workers int, acquireTimeout time.Duration, limits Limits) (*PDFiumRenderer, error) {
	if workers < 1 {
		workers = 1
	}
	if acquireTimeout <= 0 {
		acquireTimeout = 30 * time.Second
	}
	pool, err := webassembly.Init(webassembly.Config{
		MinIdle:  1,
		MaxIdle:  workers,
		MaxTotal: workers,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PDFium WebAssembly: %w", err)
	}
	return &PDFiumRenderer{pool: pool, timeout: acquireTimeout, limits: limits}, nil
}

// withDocument opens doc on a pooled instance and runs fn against it.
func (r *PDFiumRenderer) withDocument(ctx context.Context, doc *domain.Document, fn func(instance pdfium.Pdfium, document references.FPDF_DOCUMENT, count int) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	instance, err := r.pool.GetInstance(r.timeout)
	if err != nil {
		return fmt.Errorf("%w: no PDFium instance: %v", domain.ErrRendererFailure, err)
	}
	defer instance.Close()

	data := doc.Bytes()
	opened, err := instance.OpenDocument(&requests.OpenDocument{File: &data})
	if err != nil {
		return corrupt(err)
	}
	defer instance.FPDF_CloseDocument(&requests.FPDF_CloseDocument{Document: opened.Document})

	count, err := instance.FPDF_GetPageCount(&requests.FPDF_GetPageCount{Document: opened.Document})
	if err != nil {
		return corrupt(err)
	}
	return fn(instance, opened.Document, count.PageCount)
}

// PageCount opens the document once and reports its number of pages.
func (r *PDFiumRenderer) PageCount(ctx context.Context, doc *domain.Document) (int, error) {
	var n int
	err := r.withDocument(ctx, doc, func(_ pdfium.Pdfium, _ references.FPDF_DOCUMENT, count int) error {
		n = count
		return nil
	})
	return n, err
}

// Render rasterizes one page at opts.DPI.
func (r *PDFiumRenderer) Render(ctx context.Context, doc *domain.Document, page int, opts domain.RenderOptions) (domain.Image, error) {
	var out domain.Image
	err := r.withDocument(ctx, doc, func(instance pdfium.Pdfium, document references.FPDF_DOCUMENT, count int) error {
		if page < 1 || page > count {
			return outOfRange(page, count)
		}
		size, err := instance.FPDF_GetPageSizeByIndexF(&requests.FPDF_GetPageSizeByIndexF{
			Document: document,
			Index:    page - 1,
		})
		if err != nil {
			return &domain.RenderError{Page: page, Err: corrupt(err)}
		}
		dpi := int(math.Round(opts.DPI))
		if err := r.limits.checkPage(page, float64(size.Size.Width), float64(size.Size.Height), float64(dpi)); err != nil {
			return err
		}

		rendered, err := instance.RenderPageInDPI(&requests.RenderPageInDPI{
			DPI: dpi,
			Page: requests.Page{
				ByIndex: &requests.PageByIndex{
					Document: document,
					Index:    page - 1,
				},
			},
		})
		if err != nil {
			return failure(page, err)
		}
		defer rendered.Cleanup()

		img, err := finishPage(rendered.Result.Image, opts, r.limits)
		if err != nil {
			return err
		}
		out = img
		return nil
	})
	if err != nil {
		return domain.Image{}, err
	}
	return out, nil
}

// Close shuts down the WebAssembly pool.
func (r *PDFiumRenderer) Close() error {
	if r.pool == nil {
		return nil
	}
	err := r.pool.Close()
	r.pool = nil
	return err
}
