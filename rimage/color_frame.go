package rimage

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// BytesPerPixel is the stride of a ColorFrame pixel: red, green, blue and one extra byte.
const BytesPerPixel = 4

// ColorFrame is a row-major RGBX buffer aligned with a DepthMap.
type ColorFrame struct {
	width  int
	height int

	pix []uint8
}

// NewColorFrame wraps a packed RGBX buffer. The buffer is not copied.
func NewColorFrame(width, height int, pix []uint8) (*ColorFrame, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("invalid color frame size (%d, %d)", width, height)
	}
	if len(pix) != BytesPerPixel*width*height {
		return nil, errors.Errorf("color buffer has %d bytes, need %d for %dx%d",
			len(pix), BytesPerPixel*width*height, width, height)
	}
	return &ColorFrame{width: width, height: height, pix: pix}, nil
}

// ColorFrameFromImage converts a decoded image into a ColorFrame. The fourth byte of every pixel
// is the alpha channel of the source.
func ColorFrameFromImage(img image.Image) *ColorFrame {
	b := img.Bounds()
	nrgba, ok := img.(*image.NRGBA)
	if !ok || b.Min != (image.Point{}) || nrgba.Stride != BytesPerPixel*b.Dx() {
		nrgba = imaging.Clone(img)
	}
	return &ColorFrame{width: b.Dx(), height: b.Dy(), pix: nrgba.Pix}
}

// Width returns the width of the frame in pixels.
func (cf *ColorFrame) Width() int {
	return cf.width
}

// Height returns the height of the frame in pixels.
func (cf *ColorFrame) Height() int {
	return cf.height
}

// At returns the four bytes of the i'th pixel verbatim.
func (cf *ColorFrame) At(i int) color.NRGBA {
	p := cf.pix[i*BytesPerPixel : i*BytesPerPixel+BytesPerPixel]
	return color.NRGBA{R: p[0], G: p[1], B: p[2], A: p[3]}
}

// AtXY returns the pixel at (x, y).
func (cf *ColorFrame) AtXY(x, y int) color.NRGBA {
	return cf.At(y*cf.width + x)
}

// Pix returns the underlying buffer.
func (cf *ColorFrame) Pix() []uint8 {
	return cf.pix
}

// Image returns the frame as an *image.NRGBA sharing the same buffer.
func (cf *ColorFrame) Image() *image.NRGBA {
	return &image.NRGBA{Pix: cf.pix, Stride: BytesPerPixel * cf.width, Rect: image.Rect(0, 0, cf.width, cf.height)}
}

// NewUniformColorFrame fills a frame with a single color.
func NewUniformColorFrame(width, height int, c color.NRGBA) *ColorFrame {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{c}, image.Point{}, draw.Src)
	return &ColorFrame{width: width, height: height, pix: img.Pix}
}
