package registration

import (
	"image/color"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// SaveRegistrationPlot draws the target points and the source points moved by params as two
// scatter series and saves the figure. The image format follows the file extension.
func SaveRegistrationPlot(path string, source, target []r2.Point, params []float64) error {
	p := plot.New()
	p.Title.Text = "2D registration"
	p.X.Label.Text = "x"
	p.Y.Label.Text = "y"

	targetPts := make(plotter.XYs, 0, len(target))
	for _, pt := range target {
		targetPts = append(targetPts, plotter.XY{X: pt.X, Y: pt.Y})
	}
	movedPts := make(plotter.XYs, 0, len(source))
	for _, pt := range source {
		moved := ApplyRigid2D(params, pt)
		movedPts = append(movedPts, plotter.XY{X: moved.X, Y: moved.Y})
	}

	targetScatter, err := plotter.NewScatter(targetPts)
	if err != nil {
		return errors.Wrap(err, "target series")
	}
	targetScatter.GlyphStyle.Color = color.RGBA{R: 30, G: 90, B: 200, A: 255}
	targetScatter.GlyphStyle.Radius = vg.Points(2)

	movedScatter, err := plotter.NewScatter(movedPts)
	if err != nil {
		return errors.Wrap(err, "source series")
	}
	movedScatter.GlyphStyle.Color = color.RGBA{R: 220, G: 60, B: 30, A: 255}
	movedScatter.GlyphStyle.Radius = vg.Points(1)

	p.Add(targetScatter, movedScatter)
	p.Legend.Add("target", targetScatter)
	p.Legend.Add("aligned source", movedScatter)

	if err := p.Save(6*vg.Inch, 6*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "cannot save plot %q", path)
	}
	return nil
}
