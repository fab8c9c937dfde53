package spatialmath

import (
	"math"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// ParseFloatFields splits a whitespace-delimited line, such as a row of a point or trajectory
// file, into floats.
func ParseFloatFields(s string) ([]float64, error) {
	fields := strings.Fields(s)
	converted := make([]float64, 0, len(fields))
	for _, field := range fields {
		value, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid number %q", field)
		}
		converted = append(converted, value)
	}
	return converted, nil
}

// R3VectorAlmostEqual compares two r3.Vector objects and returns if the all elementwise differences are less than epsilon.
func R3VectorAlmostEqual(a, b r3.Vector, epsilon float64) bool {
	return math.Abs(a.X-b.X) < epsilon && math.Abs(a.Y-b.Y) < epsilon && math.Abs(a.Z-b.Z) < epsilon
}
