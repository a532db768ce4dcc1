package render

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"math"

	"github.com/disintegration/imaging"

	"pdf2png/internal/domain"
)

// maxDimension caps width/height of a rasterized page.
const maxDimension = 32768

// Limits bound the rasters a renderer is allowed to produce.
type Limits struct {
	MaxPixels int64
}

func (l Limits) check(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("image bounds invalid (%d x %d)", width, height)
	}
	if width > maxDimension || height > maxDimension {
		return fmt.Errorf("image dimension exceeds limit (%d x %d)", width, height)
	}
	if l.MaxPixels > 0 {
		if pixels := int64(width) * int64(height); pixels > l.MaxPixels {
			return fmt.Errorf("image pixel count %d exceeds limit %d", pixels, l.MaxPixels)
		}
	}
	return nil
}

// checkPage bounds the raster a page of widthPt x heightPt points would
// produce at dpi. Engines call it before allocating the bitmap.
func (l Limits) checkPage(page int, widthPt, heightPt, dpi float64) error {
	w := math.Ceil(math.Abs(widthPt) * dpi / 72)
	h := math.Ceil(math.Abs(heightPt) * dpi / 72)
	if math.IsNaN(w) || math.IsNaN(h) {
		return failure(page, fmt.Errorf("page size invalid (%v x %v pt)", widthPt, heightPt))
	}
	// Clamp before converting so absurd boxes cannot overflow int.
	w = math.Min(w, maxDimension+1)
	h = math.Min(h, maxDimension+1)
	if err := l.check(int(w), int(h)); err != nil {
		return failure(page, fmt.Errorf("page %d at %v dpi: %v", page, dpi, err))
	}
	return nil
}

// finishPage applies the per-request options to a raw raster and encodes it as PNG.
func finishPage(src image.Image, opts domain.RenderOptions, limits Limits) (domain.Image, error) {
	if src == nil {
		return domain.Image{}, fmt.Errorf("%w: renderer returned no image", domain.ErrRendererFailure)
	}
	b := src.Bounds()
	if err := limits.check(b.Dx(), b.Dy()); err != nil {
		return domain.Image{}, fmt.Errorf("%w: %v", domain.ErrRendererFailure, err)
	}

	var img image.Image = src
	if opts.MaxWidth > 0 && b.Dx() > opts.MaxWidth {
		img = imaging.Resize(img, opts.MaxWidth, 0, imaging.Lanczos)
	}
	if opts.Grayscale {
		img = toGray(imaging.Grayscale(img))
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG, imaging.PNGCompressionLevel(png.BestSpeed)); err != nil {
		return domain.Image{}, fmt.Errorf("%w: %v", domain.ErrEncoding, err)
	}

	out := img.Bounds()
	return domain.Image{
		Data:   buf.Bytes(),
		Format: domain.FormatPNG,
		Width:  out.Dx(),
		Height: out.Dy(),
	}, nil
}

// toGray collapses an image to a single 8-bit channel.
func toGray(src image.Image) *image.Gray {
	b := src.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}
