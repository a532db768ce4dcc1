package render

import (
	"bytes"
	"fmt"
	"math"

	"github.com/ledongthuc/pdf"

	"pdf2png/internal/domain"
)

// Inspect parses the document structure in pure Go and returns its page count.
// The parser panics on some malformed input; that is reported as a corrupt document.
func Inspect(data []byte) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			n, err = 0, fmt.Errorf("%w: %v", domain.ErrCorruptDocument, r)
		}
	}()

	if len(data) == 0 {
		return 0, fmt.Errorf("%w: empty document", domain.ErrCorruptDocument)
	}
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, corrupt(err)
	}
	n = reader.NumPage()
	if n <= 0 {
		return 0, fmt.Errorf("%w: document has no pages", domain.ErrCorruptDocument)
	}
	return n, nil
}

// PageSize returns the media box of page (1-based) in points, following
// inheritance up the page tree. Pages without a box default to US Letter.
func PageSize(data []byte, page int) (width, height float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			width, height, err = 0, 0, fmt.Errorf("%w: %v", domain.ErrCorruptDocument, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, 0, corrupt(err)
	}
	if n := reader.NumPage(); page < 1 || page > n {
		return 0, 0, outOfRange(page, n)
	}
	p := reader.Page(page)
	if p.V.IsNull() {
		return 0, 0, outOfRange(page, reader.NumPage())
	}

	box := pdf.Value{}
	for v := p.V; !v.IsNull(); v = v.Key("Parent") {
		if b := v.Key("MediaBox"); !b.IsNull() {
			box = b
			break
		}
	}
	if box.IsNull() {
		return 612, 792, nil
	}
	if box.Len() != 4 {
		return 0, 0, fmt.Errorf("%w: malformed MediaBox on page %d", domain.ErrCorruptDocument, page)
	}
	width = math.Abs(box.Index(2).Float64() - box.Index(0).Float64())
	height = math.Abs(box.Index(3).Float64() - box.Index(1).Float64())
	return width, height, nil
}
