package mesh

import (
	"bufio"
	"image/color"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"go.viam.com/rgbdrecon/pointcloud"
)

// invalidVertexLine stands in for vertices without depth so that indices stay aligned with pixels.
const invalidVertexLine = "0 0 0 255 255 255 255"

func appendFloat(b []byte, f float64) []byte {
	return strconv.AppendFloat(b, f, 'g', -1, 64)
}

func appendVertex(b []byte, v pointcloud.Vertex) []byte {
	if !v.IsValid() {
		return append(b, invalidVertexLine...)
	}
	p, _ := v.Point()
	b = appendFloat(b, p.X)
	b = append(b, ' ')
	b = appendFloat(b, p.Y)
	b = append(b, ' ')
	b = appendFloat(b, p.Z)
	for _, c := range []uint8{v.Color.R, v.Color.G, v.Color.B, v.Color.A} {
		b = append(b, ' ')
		b = strconv.AppendUint(b, uint64(c), 10)
	}
	return b
}

// WriteOFF writes the mesh in colored OFF format: a COFF header, the vertex and face counts, one
// dehomogenized "x y z r g b a" line per vertex and one "3 i0 i1 i2" line per triangle.
func WriteOFF(w io.Writer, m *Mesh) error {
	bw := bufio.NewWriter(w)
	line := make([]byte, 0, 128)

	line = append(line, "COFF\n"...)
	line = strconv.AppendInt(line, int64(m.NumVertices()), 10)
	line = append(line, ' ')
	line = strconv.AppendInt(line, int64(m.NumFaces()), 10)
	line = append(line, " 0\n"...)
	if _, err := bw.Write(line); err != nil {
		return err
	}

	for _, v := range m.Vertices {
		line = appendVertex(line[:0], v)
		line = append(line, '\n')
		if _, err := bw.Write(line); err != nil {
			return err
		}
	}
	for _, t := range m.Triangles {
		line = append(line[:0], '3')
		for _, idx := range t {
			line = append(line, ' ')
			line = strconv.AppendInt(line, int64(idx), 10)
		}
		line = append(line, '\n')
		if _, err := bw.Write(line); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteOFFFile creates (or truncates) path and writes the mesh into it.
func WriteOFFFile(path string, m *Mesh) (err error) {
	//nolint:gosec
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "cannot open mesh file %q", path)
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	if err := WriteOFF(f, m); err != nil {
		return errors.Wrapf(err, "cannot write mesh file %q", path)
	}
	return nil
}

type lineReader struct {
	scanner *bufio.Scanner
	lineNum int
}

// next returns the fields of the next line that is neither blank nor a comment.
func (lr *lineReader) next() ([]string, error) {
	for lr.scanner.Scan() {
		lr.lineNum++
		line, _, _ := strings.Cut(lr.scanner.Text(), "#")
		fields := strings.Fields(line)
		if len(fields) > 0 {
			return fields, nil
		}
	}
	if err := lr.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.ErrUnexpectedEOF
}

func parseInts(fields []string) ([]int, error) {
	out := make([]int, len(fields))
	for i, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// ReadOFF reads an OFF or COFF triangle mesh. Every vertex read back is valid; the placeholder
// lines written for invalid vertices become white points at the origin.
func ReadOFF(r io.Reader) (*Mesh, error) {
	lr := &lineReader{scanner: bufio.NewScanner(r)}
	fields, err := lr.next()
	if err != nil {
		return nil, errors.Wrap(err, "missing OFF header")
	}
	colored := false
	switch fields[0] {
	case "OFF":
	case "COFF":
		colored = true
	default:
		return nil, errors.Errorf("unsupported mesh header %q", fields[0])
	}

	fields, err = lr.next()
	if err != nil {
		return nil, errors.Wrap(err, "missing OFF counts")
	}
	counts, err := parseInts(fields)
	if err != nil || len(counts) != 3 || counts[0] < 0 || counts[1] < 0 {
		return nil, errors.Errorf("line %d: invalid counts %q", lr.lineNum, strings.Join(fields, " "))
	}

	m := &Mesh{
		Vertices:  make([]pointcloud.Vertex, 0, counts[0]),
		Triangles: make([]Triangle, 0, counts[1]),
	}
	for i := 0; i < counts[0]; i++ {
		fields, err := lr.next()
		if err != nil {
			return nil, errors.Wrapf(err, "reading vertex %d", i)
		}
		v, err := parseVertex(fields, colored)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", lr.lineNum)
		}
		m.Vertices = append(m.Vertices, v)
	}
	for i := 0; i < counts[1]; i++ {
		fields, err := lr.next()
		if err != nil {
			return nil, errors.Wrapf(err, "reading face %d", i)
		}
		idx, err := parseInts(fields)
		if err != nil || len(idx) != 4 || idx[0] != 3 {
			return nil, errors.Errorf("line %d: only triangular faces are supported", lr.lineNum)
		}
		t := Triangle{idx[1], idx[2], idx[3]}
		for _, vi := range t {
			if vi < 0 || vi >= len(m.Vertices) {
				return nil, errors.Errorf("line %d: vertex index %d out of range", lr.lineNum, vi)
			}
		}
		m.Triangles = append(m.Triangles, t)
	}
	return m, nil
}

// ReadOFFFile reads a mesh from path.
func ReadOFFFile(path string) (*Mesh, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer goutils.UncheckedErrorFunc(f.Close)
	return ReadOFF(f)
}

func parseVertex(fields []string, colored bool) (pointcloud.Vertex, error) {
	want := 3
	if colored {
		want = 7
	}
	if len(fields) < want {
		return pointcloud.Vertex{}, errors.Errorf("vertex has %d fields, need %d", len(fields), want)
	}
	var pos mgl64.Vec4
	pos[3] = 1
	for i := 0; i < 3; i++ {
		f, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return pointcloud.Vertex{}, err
		}
		pos[i] = f
	}
	c := color.NRGBA{255, 255, 255, 255}
	if colored {
		var rgba [4]uint8
		for i := range rgba {
			v, err := strconv.ParseUint(fields[3+i], 10, 8)
			if err != nil {
				return pointcloud.Vertex{}, err
			}
			rgba[i] = uint8(v)
		}
		c = color.NRGBA{rgba[0], rgba[1], rgba[2], rgba[3]}
	}
	return pointcloud.NewVertex(pos, c), nil
}
