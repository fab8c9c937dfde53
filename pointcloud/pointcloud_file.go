package pointcloud

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"image/color"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// PCDType is the format of a pcd file.
type PCDType int

const (
	// PCDAscii ascii format for pcd.
	PCDAscii PCDType = 0
	// PCDBinary binary format for pcd.
	PCDBinary PCDType = 1
)

const pcdCommentChar = "#"

var pcdHeaderFields = []string{"VERSION", "FIELDS", "SIZE", "TYPE", "COUNT", "WIDTH", "HEIGHT", "VIEWPOINT", "POINTS", "DATA"}

func colorToPCDInt(c color.NRGBA) int {
	return int(c.R)<<16 | int(c.G)<<8 | int(c.B)
}

func pcdIntToColor(c int) color.NRGBA {
	return color.NRGBA{uint8(c >> 16), uint8(c >> 8), uint8(c), 255}
}

// ToPCD writes the valid vertices of the cloud as an unorganized x y z rgb PCD file.
func ToPCD(cloud *Organized, out io.Writer, outputType PCDType) error {
	var data string
	switch outputType {
	case PCDAscii:
		data = "ascii"
	case PCDBinary:
		data = "binary"
	default:
		return errors.Errorf("unsupported pcd output type %d", outputType)
	}
	n := strconv.Itoa(cloud.ValidCount())
	values := map[string]string{
		"VERSION":   ".7",
		"FIELDS":    "x y z rgb",
		"SIZE":      "4 4 4 4",
		"TYPE":      "F F F I",
		"COUNT":     "1 1 1 1",
		"WIDTH":     n,
		"HEIGHT":    "1",
		"VIEWPOINT": "0 0 0 1 0 0 0",
		"POINTS":    n,
		"DATA":      data,
	}
	for _, key := range pcdHeaderFields {
		if _, err := fmt.Fprintf(out, "%s %s\n", key, values[key]); err != nil {
			return err
		}
	}
	return writePCDData(cloud, out, outputType)
}

func writePCDData(cloud *Organized, out io.Writer, pcdtype PCDType) error {
	var err error
	buf := make([]byte, 16)
	cloud.Iterate(func(_ int, p r3.Vector, v Vertex) bool {
		c := colorToPCDInt(v.Color)
		switch pcdtype {
		case PCDBinary:
			binary.LittleEndian.PutUint32(buf, math.Float32bits(float32(p.X)))
			binary.LittleEndian.PutUint32(buf[4:], math.Float32bits(float32(p.Y)))
			binary.LittleEndian.PutUint32(buf[8:], math.Float32bits(float32(p.Z)))
			binary.LittleEndian.PutUint32(buf[12:], uint32(c))
			_, err = out.Write(buf)
		case PCDAscii:
			_, err = fmt.Fprintf(out, "%f %f %f %d\n", p.X, p.Y, p.Z, c)
		}
		return err == nil
	})
	return err
}

// WriteToPCDFile writes the cloud to a pcd file.
func WriteToPCDFile(cloud *Organized, fn string, outputType PCDType) (err error) {
	//nolint:gosec
	f, err := os.Create(fn)
	if err != nil {
		return errors.Wrapf(err, "cannot create pcd file %q", fn)
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	w := bufio.NewWriter(f)
	if err := ToPCD(cloud, w, outputType); err != nil {
		return err
	}
	return w.Flush()
}

type pcdHeader struct {
	fields int
	points int
	data   PCDType
}

// readPCDHeader reads the ten header keys in their fixed order, skipping comments and blank lines.
func readPCDHeader(in *bufio.Reader) (pcdHeader, error) {
	values := make(map[string]string, len(pcdHeaderFields))
	for next := 0; next < len(pcdHeaderFields); {
		line, err := in.ReadString('\n')
		if err != nil {
			return pcdHeader{}, errors.Wrapf(err, "reading pcd header %s", pcdHeaderFields[next])
		}
		line, _, _ = strings.Cut(line, pcdCommentChar)
		key, value, _ := strings.Cut(strings.TrimSpace(line), " ")
		if key == "" {
			continue
		}
		if key != pcdHeaderFields[next] {
			return pcdHeader{}, errors.Errorf("expected pcd header %s, got %q", pcdHeaderFields[next], line)
		}
		values[key] = value
		next++
	}

	var header pcdHeader
	if values["VERSION"] != ".7" {
		return header, errors.Errorf("unsupported pcd version %s", values["VERSION"])
	}
	switch values["FIELDS"] {
	case "x y z":
		header.fields = 3
	case "x y z rgb":
		header.fields = 4
	default:
		return header, errors.Errorf("unsupported pcd fields %s", values["FIELDS"])
	}
	switch values["DATA"] {
	case "ascii":
		header.data = PCDAscii
	case "binary":
		header.data = PCDBinary
	default:
		return header, errors.Errorf("unsupported pcd data type %s", values["DATA"])
	}
	counts := map[string]int{}
	for _, key := range []string{"WIDTH", "HEIGHT", "POINTS"} {
		v, err := strconv.Atoi(values[key])
		if err != nil || v < 0 {
			return header, errors.Errorf("invalid %s field %q", key, values[key])
		}
		counts[key] = v
	}
	if counts["POINTS"] != counts["WIDTH"]*counts["HEIGHT"] {
		return header, errors.Errorf("POINTS field %d does not match WIDTH*HEIGHT %d",
			counts["POINTS"], counts["WIDTH"]*counts["HEIGHT"])
	}
	header.points = counts["POINTS"]
	return header, nil
}

// ReadPCD reads a pcd file written by ToPCD into a cloud with a single row of valid vertices.
func ReadPCD(inRaw io.Reader) (*Organized, error) {
	in := bufio.NewReader(inRaw)
	header, err := readPCDHeader(in)
	if err != nil {
		return nil, err
	}

	vs := make([]Vertex, 0, header.points)
	for i := 0; i < header.points; i++ {
		var vals []float64
		if header.data == PCDAscii {
			vals, err = readPCDAsciiPoint(in, header.fields)
		} else {
			vals, err = readPCDBinaryPoint(in, header.fields)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "point %d", i)
		}
		c := color.NRGBA{255, 255, 255, 255}
		if header.fields == 4 {
			c = pcdIntToColor(int(vals[3]))
		}
		vs = append(vs, NewVertex(mgl64.Vec4{vals[0], vals[1], vals[2], 1}, c))
	}
	return NewOrganizedFromVertices(len(vs), 1, vs)
}

func readPCDAsciiPoint(in *bufio.Reader, fields int) ([]float64, error) {
	line, err := in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return nil, err
	}
	tokens := strings.Fields(line)
	if len(tokens) != fields {
		return nil, errors.Errorf("expected %d fields, got %d", fields, len(tokens))
	}
	vals := make([]float64, fields)
	for j, token := range tokens {
		vals[j], err = strconv.ParseFloat(token, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid field %s", token)
		}
	}
	return vals, nil
}

func readPCDBinaryPoint(in *bufio.Reader, fields int) ([]float64, error) {
	buf := make([]byte, 4*fields)
	if _, err := io.ReadFull(in, buf); err != nil {
		return nil, err
	}
	vals := make([]float64, fields)
	for j := 0; j < 3; j++ {
		vals[j] = float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[4*j:])))
	}
	if fields == 4 {
		vals[3] = float64(binary.LittleEndian.Uint32(buf[12:]))
	}
	return vals, nil
}
