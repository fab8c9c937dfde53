package registration

import (
	"bufio"
	"io"
	"os"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/rgbdrecon/spatialmath"
)

// readRecords parses one whitespace-separated record of exactly width numbers per non-blank line.
func readRecords(r io.Reader, width int) ([][]float64, error) {
	var records [][]float64
	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		vals, err := spatialmath.ParseFloatFields(scanner.Text())
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", lineNum)
		}
		if len(vals) == 0 {
			continue
		}
		if len(vals) != width {
			return nil, errors.Errorf("line %d: expected %d values, got %d", lineNum, width, len(vals))
		}
		records = append(records, vals)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func readRecordsFile(path string, width int) ([][]float64, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open %q", path)
	}
	defer utils.UncheckedErrorFunc(f.Close)
	records, err := readRecords(f, width)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %q", path)
	}
	return records, nil
}

// ReadPoints2D reads a file of "x y" lines.
func ReadPoints2D(path string) ([]r2.Point, error) {
	records, err := readRecordsFile(path, 2)
	if err != nil {
		return nil, err
	}
	pts := make([]r2.Point, len(records))
	for i, rec := range records {
		pts[i] = r2.Point{X: rec[0], Y: rec[1]}
	}
	return pts, nil
}

// ReadPoints3D reads a file of "x y z" lines.
func ReadPoints3D(path string) ([]r3.Vector, error) {
	records, err := readRecordsFile(path, 3)
	if err != nil {
		return nil, err
	}
	pts := make([]r3.Vector, len(records))
	for i, rec := range records {
		pts[i] = r3.Vector{X: rec[0], Y: rec[1], Z: rec[2]}
	}
	return pts, nil
}

// ReadWeights reads a file with one weight per line.
func ReadWeights(path string) ([]float64, error) {
	records, err := readRecordsFile(path, 1)
	if err != nil {
		return nil, err
	}
	weights := make([]float64, len(records))
	for i, rec := range records {
		weights[i] = rec[0]
	}
	return weights, nil
}
