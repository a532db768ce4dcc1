package convert

import (
	"encoding/base64"
	"fmt"

	"pdf2png/internal/domain"
)

// Assemble partitions outcomes into base64 images and failures, keyed by page.
// A rendered page that cannot be put on the wire is moved to the failures.
func Assemble(outcomes []domain.RenderOutcome) domain.ConversionResult {
	res := domain.ConversionResult{
		Images:   make(map[int]string, len(outcomes)),
		Failures: make(map[int]domain.Failure),
	}
	for _, o := range outcomes {
		if !o.OK() {
			res.Failures[o.Page] = domain.Failure{Reason: o.Reason, Message: o.Message}
			continue
		}
		encoded, err := encodeImage(*o.Image)
		if err != nil {
			res.Failures[o.Page] = domain.Failure{Reason: domain.ReasonEncoding, Message: err.Error()}
			continue
		}
		res.Images[o.Page] = encoded
	}
	return res
}

func encodeImage(img domain.Image) (string, error) {
	if img.Format != domain.FormatPNG {
		return "", fmt.Errorf("%w: unsupported format %q", domain.ErrEncoding, img.Format)
	}
	if len(img.Data) == 0 {
		return "", fmt.Errorf("%w: empty image", domain.ErrEncoding)
	}
	return base64.StdEncoding.EncodeToString(img.Data), nil
}
