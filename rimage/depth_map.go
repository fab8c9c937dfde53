// Package rimage holds the raw frame buffers produced by an RGB-D sensor and the grid that
// addresses them.
package rimage

import (
	"image"
	"image/color"
	"math"

	"github.com/pkg/errors"
)

// InvalidDepth marks a pixel with no depth measurement.
var InvalidDepth = float32(math.Inf(-1))

// DepthMap is a row-major grid of metric depths. Pixels without a measurement hold InvalidDepth.
type DepthMap struct {
	width  int
	height int

	data []float32
}

// NewDepthMap wraps a row-major depth buffer. The buffer is not copied.
func NewDepthMap(width, height int, data []float32) (*DepthMap, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("invalid depth map size (%d, %d)", width, height)
	}
	if len(data) != width*height {
		return nil, errors.Errorf("depth buffer has %d values, need %d for %dx%d", len(data), width*height, width, height)
	}
	return &DepthMap{width: width, height: height, data: data}, nil
}

// NewEmptyDepthMap returns a depth map where every pixel is invalid.
func NewEmptyDepthMap(width, height int) *DepthMap {
	data := make([]float32, width*height)
	for i := range data {
		data[i] = InvalidDepth
	}
	return &DepthMap{width: width, height: height, data: data}
}

// Width returns the width of the map in pixels.
func (dm *DepthMap) Width() int {
	return dm.width
}

// Height returns the height of the map in pixels.
func (dm *DepthMap) Height() int {
	return dm.height
}

// At returns the depth at (x, y).
func (dm *DepthMap) At(x, y int) float32 {
	return dm.data[y*dm.width+x]
}

// Index returns the depth of the i'th pixel in row-major order.
func (dm *DepthMap) Index(i int) float32 {
	return dm.data[i]
}

// Set sets the depth at (x, y).
func (dm *DepthMap) Set(x, y int, d float32) {
	dm.data[y*dm.width+x] = d
}

// IsValid reports whether (x, y) holds a measurement.
func (dm *DepthMap) IsValid(x, y int) bool {
	return IsValidDepth(dm.At(x, y))
}

// Data returns the underlying buffer.
func (dm *DepthMap) Data() []float32 {
	return dm.data
}

// Grid returns the pixel grid of the map.
func (dm *DepthMap) Grid() Grid {
	return NewGrid(dm.width, dm.height)
}

// IsValidDepth is false for the sentinel and anything that is not a finite number.
func IsValidDepth(d float32) bool {
	return !math.IsInf(float64(d), 0) && !math.IsNaN(float64(d))
}

// ConvertImageToDepthMap reads a 16-bit depth image into a DepthMap, dividing every raw value by
// scale. A raw value of zero means no measurement.
func ConvertImageToDepthMap(img image.Image, scale float32) (*DepthMap, error) {
	if scale <= 0 {
		return nil, errors.Errorf("depth scale must be positive, got %v", scale)
	}
	b := img.Bounds()
	dm := NewEmptyDepthMap(b.Dx(), b.Dy())
	gray, isGray16 := img.(*image.Gray16)
	for y := 0; y < dm.height; y++ {
		for x := 0; x < dm.width; x++ {
			var raw uint16
			if isGray16 {
				raw = gray.Gray16At(b.Min.X+x, b.Min.Y+y).Y
			} else {
				raw = color.Gray16Model.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray16).Y
			}
			if raw == 0 {
				continue
			}
			dm.Set(x, y, float32(raw)/scale)
		}
	}
	return dm, nil
}
