package mesh

import (
	"bufio"
	"fmt"
	"image/color"
	"io"
	"os"
	"reflect"

	"github.com/chenzhekl/goply"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"go.viam.com/rgbdrecon/pointcloud"
)

// WritePLY writes the mesh as an ASCII PLY file with per-vertex RGBA. Invalid vertices are written
// the same way WriteOFF writes them.
func WritePLY(w io.Writer, m *Mesh) error {
	bw := bufio.NewWriter(w)
	_, err := fmt.Fprintf(bw, "ply\n"+
		"format ascii 1.0\n"+
		"element vertex %d\n"+
		"property double x\n"+
		"property double y\n"+
		"property double z\n"+
		"property uchar red\n"+
		"property uchar green\n"+
		"property uchar blue\n"+
		"property uchar alpha\n"+
		"element face %d\n"+
		"property list uchar int vertex_indices\n"+
		"end_header\n",
		m.NumVertices(), m.NumFaces())
	if err != nil {
		return err
	}
	line := make([]byte, 0, 128)
	for _, v := range m.Vertices {
		line = appendVertex(line[:0], v)
		line = append(line, '\n')
		if _, err := bw.Write(line); err != nil {
			return err
		}
	}
	for _, t := range m.Triangles {
		if _, err := fmt.Fprintf(bw, "3 %d %d %d\n", t[0], t[1], t[2]); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WritePLYFile creates (or truncates) path and writes the mesh into it.
func WritePLYFile(path string, m *Mesh) (err error) {
	//nolint:gosec
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "cannot open mesh file %q", path)
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	if err := WritePLY(f, m); err != nil {
		return errors.Wrapf(err, "cannot write mesh file %q", path)
	}
	return nil
}

// ReadPLYFile reads a triangle mesh from a PLY file. Vertex colors are optional and default to
// opaque white.
func ReadPLYFile(path string) (m *Mesh, err error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer goutils.UncheckedErrorFunc(f.Close)
	return ReadPLY(f)
}

// ReadPLY reads a triangle mesh from a PLY stream.
func ReadPLY(r io.Reader) (m *Mesh, err error) {
	defer func() {
		if thePanic := recover(); thePanic != nil {
			err = errors.Errorf("malformed ply data: %v", thePanic)
		}
	}()
	ply := goply.New(r)
	vertices := ply.Elements("vertex")
	faces := ply.Elements("face")

	m = &Mesh{
		Vertices:  make([]pointcloud.Vertex, 0, len(vertices)),
		Triangles: make([]Triangle, 0, len(faces)),
	}
	for i, vertex := range vertices {
		var pos mgl64.Vec4
		pos[3] = 1
		for j, name := range []string{"x", "y", "z"} {
			val, err := plyNumber(vertex[name])
			if err != nil {
				return nil, errors.Wrapf(err, "vertex %d property %s", i, name)
			}
			pos[j] = val
		}
		c := color.NRGBA{255, 255, 255, 255}
		for j, name := range []string{"red", "green", "blue", "alpha"} {
			raw, ok := vertex[name]
			if !ok {
				continue
			}
			val, err := plyNumber(raw)
			if err != nil {
				return nil, errors.Wrapf(err, "vertex %d property %s", i, name)
			}
			switch j {
			case 0:
				c.R = uint8(val)
			case 1:
				c.G = uint8(val)
			case 2:
				c.B = uint8(val)
			case 3:
				c.A = uint8(val)
			}
		}
		m.Vertices = append(m.Vertices, pointcloud.NewVertex(pos, c))
	}
	for i, face := range faces {
		raw, ok := face["vertex_indices"]
		if !ok {
			raw = face["vertex_index"]
		}
		idx, err := plyIndices(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "face %d", i)
		}
		if len(idx) != 3 {
			return nil, errors.Errorf("face %d has %d vertices, only triangles are supported", i, len(idx))
		}
		t := Triangle{idx[0], idx[1], idx[2]}
		for _, vi := range t {
			if vi < 0 || vi >= len(m.Vertices) {
				return nil, errors.Errorf("face %d: vertex index %d out of range", i, vi)
			}
		}
		m.Triangles = append(m.Triangles, t)
	}
	return m, nil
}

// plyNumber converts any scalar property value the decoder produces into a float64.
func plyNumber(v interface{}) (float64, error) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), nil
	default:
		return 0, errors.Errorf("unsupported ply value %v (%T)", v, v)
	}
}

// plyIndices converts a list property into vertex indices.
func plyIndices(v interface{}) ([]int, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, errors.Errorf("vertex indices are %T, not a list", v)
	}
	out := make([]int, rv.Len())
	for i := range out {
		f, err := plyNumber(rv.Index(i).Interface())
		if err != nil {
			return nil, err
		}
		out[i] = int(f)
	}
	return out, nil
}
