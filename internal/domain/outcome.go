package domain

import "fmt"

// FormatPNG is the only image format produced.
const FormatPNG = "png"

// RenderOptions tune how a single page is rasterized.
type RenderOptions struct {
	Grayscale bool
	DPI       float64
	MaxWidth  int
}

// Image is one rasterized, encoded page.
type Image struct {
	Data   []byte
	Format string
	Width  int
	Height int
}

// RenderTask is one unit of work: render Page of Document.
type RenderTask struct {
	Document *Document
	Page     int
	Options  RenderOptions
}

// RenderOutcome is the tagged result for one page: either Image is set,
// or Reason/Message describe the failure.
type RenderOutcome struct {
	Page    int
	Image   *Image
	Reason  Reason
	Message string
}

// Rendered builds a successful outcome.
func Rendered(page int, img Image) RenderOutcome {
	return RenderOutcome{Page: page, Image: &img}
}

// Failed builds a failed outcome from err.
func Failed(page int, err error) RenderOutcome {
	return RenderOutcome{Page: page, Reason: ReasonOf(err), Message: err.Error()}
}

// OK reports whether the page rendered.
func (o RenderOutcome) OK() bool { return o.Image != nil }

// Failure describes why a page is missing from the result images.
type Failure struct {
	Reason  Reason `json:"reason"`
	Message string `json:"message"`
}

// ConversionResult maps page numbers to base64 PNGs and failed pages to their failure.
type ConversionResult struct {
	Images   map[int]string
	Failures map[int]Failure
	// PageCount is the document length reported by the pre-flight check.
	PageCount int
}

// PageLabel is the wire key for a page, e.g. "page_3".
func PageLabel(page int) string {
	return fmt.Sprintf("page_%d", page)
}
