package mesh

import (
	"github.com/montanaflynn/stats"

	"go.viam.com/rgbdrecon/pointcloud"
)

// EdgeStats summarizes the edge lengths of the triangles in a mesh. Shared edges are counted once
// per triangle.
type EdgeStats struct {
	Count  int
	Mean   float64
	Median float64
	P95    float64
	Max    float64
}

// ComputeEdgeStats measures every triangle edge of the mesh. A mesh without triangles yields the
// zero value.
func ComputeEdgeStats(m *Mesh) (EdgeStats, error) {
	if len(m.Triangles) == 0 {
		return EdgeStats{}, nil
	}
	lengths := make(stats.Float64Data, 0, 3*len(m.Triangles))
	for _, t := range m.Triangles {
		a, b, c := m.Vertices[t[0]], m.Vertices[t[1]], m.Vertices[t[2]]
		lengths = append(lengths, pointcloud.Distance(a, b), pointcloud.Distance(b, c), pointcloud.Distance(c, a))
	}

	var es EdgeStats
	var err error
	es.Count = len(lengths)
	if es.Mean, err = lengths.Mean(); err != nil {
		return EdgeStats{}, err
	}
	if es.Median, err = lengths.Median(); err != nil {
		return EdgeStats{}, err
	}
	if es.P95, err = lengths.Percentile(95); err != nil {
		return EdgeStats{}, err
	}
	if es.Max, err = lengths.Max(); err != nil {
		return EdgeStats{}, err
	}
	return es, nil
}
