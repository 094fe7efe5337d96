package pathing

import "fmt"

// Route is an ordered list of cells from an exclusive start to an inclusive
// destination, together with the metric cost of each hop. It only shrinks from
// the front.
type Route struct {
	cells []Cell
	hops  []float64
}

// RouteFrom rebuilds a route, e.g. from a snapshot. cells and hops must have
// the same length.
func RouteFrom(cells []Cell, hops []float64) (Route, error) {
	if len(cells) != len(hops) {
		return Route{}, fmt.Errorf("route has %d cells but %d hop costs", len(cells), len(hops))
	}
	for i, h := range hops {
		if h < 0 {
			return Route{}, fmt.Errorf("hop %d has negative cost %v", i, h)
		}
	}
	return Route{
		cells: append([]Cell(nil), cells...),
		hops:  append([]float64(nil), hops...),
	}, nil
}

// Len returns the number of hops left.
func (r Route) Len() int { return len(r.cells) }

// Empty reports whether no hops are left.
func (r Route) Empty() bool { return len(r.cells) == 0 }

// Cells returns a copy of the remaining cells.
func (r Route) Cells() []Cell {
	return append([]Cell(nil), r.cells...)
}

// HopCosts returns a copy of the remaining hop costs.
func (r Route) HopCosts() []float64 {
	return append([]float64(nil), r.hops...)
}

// Next returns the cell the next hop enters.
func (r Route) Next() (Cell, bool) {
	if r.Empty() {
		return Cell{}, false
	}
	return r.cells[0], true
}

// Destination returns the final cell.
func (r Route) Destination() (Cell, bool) {
	if r.Empty() {
		return Cell{}, false
	}
	return r.cells[len(r.cells)-1], true
}

// Hop returns the i-th remaining cell and the cost of entering it.
func (r Route) Hop(i int) (Cell, float64) {
	return r.cells[i], r.hops[i]
}

// Cost is the summed cost of the remaining hops.
func (r Route) Cost() float64 {
	total := 0.0
	for _, h := range r.hops {
		total += h
	}
	return total
}

// Clone returns a route that shares no storage with r.
func (r Route) Clone() Route {
	return Route{cells: r.Cells(), hops: r.HopCosts()}
}

// Pop removes and returns the first hop.
func (r *Route) Pop() (Cell, float64, bool) {
	if r.Empty() {
		return Cell{}, 0, false
	}
	c, h := r.cells[0], r.hops[0]
	r.cells = r.cells[1:]
	r.hops = r.hops[1:]
	if len(r.cells) == 0 {
		r.cells, r.hops = nil, nil
	}
	return c, h, true
}
