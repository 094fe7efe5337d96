package pathing

import "errors"

var (
	// ErrInvalidCell is returned for a cell outside the grid extent.
	ErrInvalidCell = errors.New("cell outside grid extent")
	// ErrNoPath means the goal cannot be reached under the current walkability.
	// It is an ordinary outcome, not a failure of the engine.
	ErrNoPath = errors.New("no path found")
)

// Walkability marks the cells that may be entered. Implementations are owned by
// the host; the Pathfinder reads them during a single FindPath call and callers
// must not mutate them while a search is running.
type Walkability interface {
	Walkable(c Cell) bool
}

// WalkableFunc adapts a plain function to Walkability.
type WalkableFunc func(c Cell) bool

func (f WalkableFunc) Walkable(c Cell) bool { return f(c) }

// Occupancy reports cells temporarily held by other entities.
type Occupancy interface {
	Occupied(c Cell) bool
}

// OccupancyFunc adapts a plain function to Occupancy.
type OccupancyFunc func(c Cell) bool

func (f OccupancyFunc) Occupied(c Cell) bool { return f(c) }

// BoolGrid is a dense walkability table. Cells start out walkable.
type BoolGrid struct {
	grid    *Grid
	blocked []bool
}

// NewBoolGrid creates a fully walkable table covering g.
func NewBoolGrid(g *Grid) *BoolGrid {
	return &BoolGrid{grid: g, blocked: make([]bool, g.Size())}
}

// Walkable reports whether c is inside the grid and not blocked.
func (b *BoolGrid) Walkable(c Cell) bool {
	if !b.grid.Contains(c) {
		return false
	}
	return !b.blocked[b.grid.Index(c)]
}

// Set marks c walkable or blocked. Cells outside the grid are ignored.
func (b *BoolGrid) Set(c Cell, walkable bool) {
	if !b.grid.Contains(c) {
		return
	}
	b.blocked[b.grid.Index(c)] = !walkable
}

// HeightTable is a dense HeightField covering a grid.
type HeightTable struct {
	grid    *Grid
	heights []float64
}

// NewHeightTable wraps heights laid out by Grid.Index. It panics if the slice
// does not cover the grid exactly.
func NewHeightTable(g *Grid, heights []float64) *HeightTable {
	if len(heights) != g.Size() {
		panic("pathing: height table size does not match grid")
	}
	return &HeightTable{grid: g, heights: heights}
}

func (h *HeightTable) Height(c Cell) float64 {
	if !h.grid.Contains(c) {
		return 0
	}
	return h.heights[h.grid.Index(c)]
}
