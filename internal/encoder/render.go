package encoder

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// Render draws the whole of img into a new surface of exactly width x height.
// The source is stretched to fit; there is no cropping or letterboxing.
func Render(img image.Image, width, height, maxPixels int) (*image.NRGBA, error) {
	if img == nil {
		return nil, fmt.Errorf("render: nil source image")
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("render surface unavailable: invalid size %dx%d", width, height)
	}
	// Division keeps the area check from overflowing on huge targets.
	if maxPixels > 0 && (width > maxPixels || height > maxPixels/width) {
		return nil, fmt.Errorf("render surface unavailable: %dx%d exceeds %d pixels", width, height, maxPixels)
	}

	// imaging.Resize returns a clone when the size is unchanged, so the
	// result never aliases the source pixels.
	dst := imaging.Resize(img, width, height, imaging.Lanczos)
	if dst.Bounds().Dx() != width || dst.Bounds().Dy() != height {
		return nil, fmt.Errorf("render surface unavailable: got %dx%d, want %dx%d",
			dst.Bounds().Dx(), dst.Bounds().Dy(), width, height)
	}
	return dst, nil
}
