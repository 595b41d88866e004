// Package mapload reads obstacle maps from image files.
//
// Any format registered with image.Decode is accepted (PNG, JPEG, GIF, BMP,
// TIFF). Pixels are converted to 8-bit luminance; the caller decides which
// values are free.
package mapload

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// ErrEmptyMask is returned for images with no pixels.
var ErrEmptyMask = errors.New("map image has no pixels")

// Bitmap is a row-major single channel image.
type Bitmap struct {
	W, H   int
	Pixels []byte
	Format string
}

// Load decodes the image at path.
func Load(path string) (*Bitmap, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening map: %w", err)
	}
	defer f.Close()

	bm, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return bm, nil
}

// Decode reads an image from r and converts it to grayscale.
func Decode(r io.Reader) (*Bitmap, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decoding map: %w", err)
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil, ErrEmptyMask
	}

	bm := &Bitmap{W: w, H: h, Pixels: make([]byte, w*h), Format: format}

	// Fast path for images that are already 8-bit gray
	if g, ok := img.(*image.Gray); ok {
		for y := 0; y < h; y++ {
			row := g.Pix[y*g.Stride : y*g.Stride+w]
			copy(bm.Pixels[y*w:], row)
		}
		return bm, nil
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray)
			bm.Pixels[y*w+x] = c.Y
		}
	}
	return bm, nil
}
