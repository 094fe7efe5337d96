package pathing

import (
	"errors"
	"fmt"
	"sort"
)

// Cell is a discrete grid coordinate. Two-dimensional grids leave Z at zero.
type Cell struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

// String provides a string representation of Cell
func (c Cell) String() string {
	return fmt.Sprintf("(%d,%d,%d)", c.X, c.Y, c.Z)
}

func (c Cell) axis(i int) int {
	switch i {
	case 0:
		return c.X
	case 1:
		return c.Y
	default:
		return c.Z
	}
}

func (c Cell) add(off offset) Cell {
	return Cell{X: c.X + off[0], Y: c.Y + off[1], Z: c.Z + off[2]}
}

type offset [3]int

func (o offset) changed() int {
	n := 0
	for _, v := range o {
		if v != 0 {
			n++
		}
	}
	return n
}

var errBadExtent = errors.New("grid extent must have 2 or 3 positive axes")

// Grid is a finite lattice of 2 or 3 dimensions, optionally periodic.
type Grid struct {
	extent   [3]int
	dims     int
	periodic bool

	orthogonal []offset
	full       []offset
}

// NewGrid creates a new grid with the given per-axis extent
func NewGrid(extent []int, periodic bool) (*Grid, error) {
	if len(extent) < 2 || len(extent) > 3 {
		return nil, fmt.Errorf("%w: got %d axes", errBadExtent, len(extent))
	}
	g := &Grid{dims: len(extent), periodic: periodic, extent: [3]int{1, 1, 1}}
	for i, n := range extent {
		if n <= 0 {
			return nil, fmt.Errorf("%w: axis %d is %d", errBadExtent, i, n)
		}
		g.extent[i] = n
	}
	g.full = neighborOffsets(g.dims)
	for _, off := range g.full {
		if off.changed() == 1 {
			g.orthogonal = append(g.orthogonal, off)
		}
	}
	return g, nil
}

// neighborOffsets enumerates every non-zero offset in {-1,0,1}^dims, orthogonal
// offsets first, then by number of changed axes, then lexicographically.
func neighborOffsets(dims int) []offset {
	var out []offset
	var walk func(axis int, cur offset)
	walk = func(axis int, cur offset) {
		if axis == dims {
			if cur.changed() > 0 {
				out = append(out, cur)
			}
			return
		}
		for _, d := range [...]int{-1, 0, 1} {
			cur[axis] = d
			walk(axis+1, cur)
		}
	}
	walk(0, offset{})
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].changed() < out[j].changed()
	})
	return out
}

// Dims returns the dimensionality of the grid (2 or 3).
func (g *Grid) Dims() int { return g.dims }

// Periodic reports whether coordinates wrap around the extent.
func (g *Grid) Periodic() bool { return g.periodic }

// Extent returns the size of each axis.
func (g *Grid) Extent() []int {
	return append([]int(nil), g.extent[:g.dims]...)
}

// Size returns the total number of cells.
func (g *Grid) Size() int {
	return g.extent[0] * g.extent[1] * g.extent[2]
}

// Contains reports whether c lies within the grid boundaries.
func (g *Grid) Contains(c Cell) bool {
	for i := 0; i < 3; i++ {
		v := c.axis(i)
		if v < 0 || v >= g.extent[i] {
			return false
		}
	}
	return true
}

// Index maps an in-bounds cell to a dense offset in [0, Size()).
func (g *Grid) Index(c Cell) int {
	return (c.Z*g.extent[1]+c.Y)*g.extent[0] + c.X
}

// Wrap brings c back into the extent on periodic grids. On bounded grids it only
// reports whether c is inside.
func (g *Grid) Wrap(c Cell) (Cell, bool) {
	if !g.periodic {
		return c, g.Contains(c)
	}
	return Cell{
		X: mod(c.X, g.extent[0]),
		Y: mod(c.Y, g.extent[1]),
		Z: mod(c.Z, g.extent[2]),
	}, true
}

// Neighbors returns the cells adjacent to c: von Neumann when diagonal is false,
// Moore otherwise. The order is fixed for a given grid.
func (g *Grid) Neighbors(c Cell, diagonal bool) []Cell {
	offsets := g.orthogonal
	if diagonal {
		offsets = g.full
	}
	out := make([]Cell, 0, len(offsets))
	for _, off := range offsets {
		n, ok := g.Wrap(c.add(off))
		if !ok || n == c {
			continue
		}
		// tiny periodic axes map +1 and -1 onto the same cell
		if g.periodic && containsCell(out, n) {
			continue
		}
		out = append(out, n)
	}
	return out
}

// Delta returns the absolute per-axis distance between a and b, taking the short
// way around periodic axes.
func (g *Grid) Delta(a, b Cell) [3]int {
	var d [3]int
	for i := 0; i < 3; i++ {
		v := abs(a.axis(i) - b.axis(i))
		if g.periodic && g.extent[i]-v < v {
			v = g.extent[i] - v
		}
		d[i] = v
	}
	return d
}

// components returns the single-axis steps that make up the hop from a to b.
func (g *Grid) components(a, b Cell) []Cell {
	var out []Cell
	for i := 0; i < g.dims; i++ {
		step := g.stepToward(a.axis(i), b.axis(i), g.extent[i])
		if step == 0 {
			continue
		}
		var off offset
		off[i] = step
		if n, ok := g.Wrap(a.add(off)); ok {
			out = append(out, n)
		}
	}
	return out
}

func (g *Grid) stepToward(from, to, extent int) int {
	d := to - from
	if g.periodic {
		if d > extent/2 {
			d -= extent
		} else if d < -extent/2 {
			d += extent
		}
	}
	switch {
	case d > 0:
		return 1
	case d < 0:
		return -1
	}
	return 0
}

// Adjacent reports whether b is one hop away from a under the given neighbor mode.
func (g *Grid) Adjacent(a, b Cell, diagonal bool) bool {
	for _, n := range g.Neighbors(a, diagonal) {
		if n == b {
			return true
		}
	}
	return false
}

func containsCell(cells []Cell, c Cell) bool {
	for _, x := range cells {
		if x == c {
			return true
		}
	}
	return false
}

func mod(v, n int) int {
	v %= n
	if v < 0 {
		v += n
	}
	return v
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
