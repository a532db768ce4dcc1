package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"

	"pdf2png/internal/domain"
)

// PopplerRenderer shells out to pdftoppm, one process per page.
// The process is killed when the request context is canceled.
type PopplerRenderer struct {
	bin    string
	limits Limits
}

// NewPopplerRenderer uses the pdftoppm binary at bin.
func NewPopplerRenderer(bin string, limits Limits) *PopplerRenderer {
	if bin == "" {
		bin = "pdftoppm"
	}
	return &PopplerRenderer{bin: bin, limits: limits}
}

// PageCount parses the document with the pure-Go inspector.
func (r *PopplerRenderer) PageCount(ctx context.Context, doc *domain.Document) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return Inspect(doc.Bytes())
}

// Render runs pdftoppm for a single page, reading the PDF from stdin and the PNG from stdout.
func (r *PopplerRenderer) Render(ctx context.Context, doc *domain.Document, page int, opts domain.RenderOptions) (domain.Image, error) {
	if page < 1 {
		return domain.Image{}, outOfRange(page, 0)
	}
	if err := ctx.Err(); err != nil {
		return domain.Image{}, err
	}
	// pdftoppm has no pixel cap of its own; size the page before starting it.
	w, h, err := PageSize(doc.Bytes(), page)
	if err != nil {
		var re *domain.RenderError
		if errors.As(err, &re) {
			return domain.Image{}, err
		}
		return domain.Image{}, &domain.RenderError{Page: page, Err: err}
	}
	dpi := opts.DPI
	if dpi <= 0 {
		dpi = 150
	}
	if err := r.limits.checkPage(page, w, h, dpi); err != nil {
		return domain.Image{}, err
	}

	p := strconv.Itoa(page)
	args := []string{"-f", p, "-l", p, "-png", "-singlefile"}
	if opts.DPI > 0 {
		args = append(args, "-r", strconv.FormatFloat(opts.DPI, 'f', -1, 64))
	}
	if opts.Grayscale {
		args = append(args, "-gray")
	}
	args = append(args, "-")

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.bin, args...)
	cmd.Stdin = bytes.NewReader(doc.Bytes())
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.Image{}, ctxErr
		}
		return domain.Image{}, classifyPoppler(page, err, stderr.String())
	}

	img, err := imaging.Decode(&stdout)
	if err != nil {
		return domain.Image{}, failure(page, fmt.Errorf("decode pdftoppm output: %w", err))
	}
	return finishPage(img, opts, r.limits)
}

func classifyPoppler(page int, err error, stderr string) error {
	msg := strings.TrimSpace(stderr)
	lower := strings.ToLower(msg)
	var exitErr *exec.ExitError
	switch {
	case strings.Contains(lower, "wrong page range"):
		return &domain.RenderError{Page: page, Err: fmt.Errorf("%w: %s", domain.ErrPageOutOfRange, msg)}
	case strings.Contains(lower, "syntax error"), strings.Contains(lower, "couldn't read xref"),
		strings.Contains(lower, "may not be a pdf"), strings.Contains(lower, "couldn't find trailer"):
		return &domain.RenderError{Page: page, Err: fmt.Errorf("%w: %s", domain.ErrCorruptDocument, msg)}
	case errors.As(err, &exitErr):
		return failure(page, fmt.Errorf("pdftoppm exited with %d: %s", exitErr.ExitCode(), msg))
	default:
		return failure(page, err)
	}
}

// Close is a no-op.
func (r *PopplerRenderer) Close() error {
	return nil
}
