// Package transform holds the camera models used to lift depth pixels into world space.
package transform

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// ErrNoIntrinsics is wrapped by every error about a missing or unusable camera model.
var ErrNoIntrinsics = errors.New("camera intrinsic parameters are not available")

// NewNoIntrinsicsError wraps ErrNoIntrinsics with msg.
func NewNoIntrinsicsError(msg string) error {
	return errors.Wrap(ErrNoIntrinsics, msg)
}

// PinholeCameraIntrinsics is a calibrated pinhole model: image size, focal lengths and principal
// point, all in pixels.
type PinholeCameraIntrinsics struct {
	Width  int     `json:"width_px"`
	Height int     `json:"height_px"`
	Fx     float64 `json:"fx"`
	Fy     float64 `json:"fy"`
	Ppx    float64 `json:"ppx"`
	Ppy    float64 `json:"ppy"`
}

// CheckValid reports a wrapped ErrNoIntrinsics when the size or focal lengths are not positive or
// the principal point is negative.
func (params *PinholeCameraIntrinsics) CheckValid() error {
	if params == nil {
		return NewNoIntrinsicsError("intrinsics do not exist")
	}
	if params.Width <= 0 || params.Height <= 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("invalid size %dx%d", params.Width, params.Height))
	}
	for _, field := range []struct {
		name     string
		value    float64
		positive bool
	}{
		{"fx", params.Fx, true},
		{"fy", params.Fy, true},
		{"ppx", params.Ppx, false},
		{"ppy", params.Ppy, false},
	} {
		if field.value < 0 || (field.positive && field.value == 0) {
			return NewNoIntrinsicsError(fmt.Sprintf("invalid %s = %v", field.name, field.value))
		}
	}
	return nil
}

// GetCameraMatrix returns K with the focal lengths on the diagonal and the principal point in the
// last column.
func (params *PinholeCameraIntrinsics) GetCameraMatrix() mgl64.Mat3 {
	return mgl64.Mat3FromRows(
		mgl64.Vec3{params.Fx, 0, params.Ppx},
		mgl64.Vec3{0, params.Fy, params.Ppy},
		mgl64.Vec3{0, 0, 1},
	)
}

// NewPinholeCameraIntrinsicsFromMatrix reads the focal lengths and principal point out of a
// camera matrix. Skew and the bottom row are ignored.
func NewPinholeCameraIntrinsicsFromMatrix(width, height int, k mgl64.Mat3) *PinholeCameraIntrinsics {
	return &PinholeCameraIntrinsics{
		Width:  width,
		Height: height,
		Fx:     k.At(0, 0),
		Fy:     k.At(1, 1),
		Ppx:    k.At(0, 2),
		Ppy:    k.At(1, 2),
	}
}

// NewPinholeCameraIntrinsicsFromJSONFile reads and validates a calibration written as
// {"width_px", "height_px", "fx", "fy", "ppx", "ppy"}.
func NewPinholeCameraIntrinsicsFromJSONFile(jsonPath string) (*PinholeCameraIntrinsics, error) {
	//nolint:gosec
	jsonFile, err := os.Open(jsonPath)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open intrinsics %q", jsonPath)
	}
	defer utils.UncheckedErrorFunc(jsonFile.Close)
	intrinsics := &PinholeCameraIntrinsics{}
	if err := json.NewDecoder(jsonFile).Decode(intrinsics); err != nil {
		return nil, errors.Wrapf(err, "cannot parse intrinsics %q", jsonPath)
	}
	if err := intrinsics.CheckValid(); err != nil {
		return nil, err
	}
	return intrinsics, nil
}

// PixelToPoint transforms a pixel with depth to a 3D point in the camera frame.
func (params *PinholeCameraIntrinsics) PixelToPoint(x, y, z float64) (float64, float64, float64) {
	if params == nil {
		return 0, 0, 0
	}
	xm := (x - params.Ppx) / params.Fx * z
	ym := (y - params.Ppy) / params.Fy * z
	return xm, ym, z
}
