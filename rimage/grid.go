package rimage

// Direction names one of the four grid neighbors of a pixel.
type Direction int

// The four neighbor directions. Up is toward row 0.
const (
	Left Direction = iota
	Right
	Up
	Down
)

// Grid addresses a width x height pixel lattice stored in row-major order.
type Grid struct {
	width  int
	height int
}

// NewGrid returns the grid for a width x height frame.
func NewGrid(width, height int) Grid {
	return Grid{width: width, height: height}
}

// Width returns the number of columns.
func (g Grid) Width() int {
	return g.width
}

// Height returns the number of rows.
func (g Grid) Height() int {
	return g.height
}

// Size is the number of pixels.
func (g Grid) Size() int {
	return g.width * g.height
}

// In reports whether (x, y) is inside the grid.
func (g Grid) In(x, y int) bool {
	return x >= 0 && y >= 0 && x < g.width && y < g.height
}

// Index returns the row-major index of (x, y).
func (g Grid) Index(x, y int) int {
	return y*g.width + x
}

// Coords returns the column and row of a row-major index.
func (g Grid) Coords(i int) (x, y int) {
	return i % g.width, i / g.width
}

// Neighbor returns the index next to i in the given direction, or false when that step leaves
// the grid.
func (g Grid) Neighbor(i int, dir Direction) (int, bool) {
	x, y := g.Coords(i)
	switch dir {
	case Left:
		x--
	case Right:
		x++
	case Up:
		y--
	case Down:
		y++
	default:
		return 0, false
	}
	if !g.In(x, y) {
		return 0, false
	}
	return g.Index(x, y), true
}

// Cell returns the corner indices of the cell whose top-left pixel is (x, y).
func (g Grid) Cell(x, y int) (tl, tr, bl, br int, ok bool) {
	if !g.In(x, y) {
		return 0, 0, 0, 0, false
	}
	tl = g.Index(x, y)
	if tr, ok = g.Neighbor(tl, Right); !ok {
		return 0, 0, 0, 0, false
	}
	if bl, ok = g.Neighbor(tl, Down); !ok {
		return 0, 0, 0, 0, false
	}
	br, _ = g.Neighbor(tr, Down)
	return tl, tr, bl, br, true
}

// Cells is the number of quads between adjacent pixels.
func (g Grid) Cells() int {
	if g.width < 2 || g.height < 2 {
		return 0
	}
	return (g.width - 1) * (g.height - 1)
}
