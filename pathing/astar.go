package pathing

import (
	"container/heap"
	"fmt"

	"github.com/zyedidia/generic/mapset"
)

// Options configures a Pathfinder.
type Options struct {
	// Diagonal selects the Moore neighborhood instead of von Neumann.
	Diagonal bool
	// StrictDiagonals forbids diagonal hops that cut a blocked corner: every
	// single-axis component of the hop must be walkable.
	StrictDiagonals bool
	// MaxExpansions bounds the number of finalized cells per search. Zero means
	// unbounded. Hitting the bound reports ErrNoPath.
	MaxExpansions int
}

// Pathfinder computes shortest routes over a grid with A*. It holds no state
// between calls and may be reused for any number of searches.
type Pathfinder struct {
	grid     *Grid
	walkable Walkability
	metric   Metric
	opts     Options
}

// NewPathfinder wires a pathfinder. Nil collaborators are programming errors and
// panic.
func NewPathfinder(grid *Grid, walkable Walkability, metric Metric, opts Options) *Pathfinder {
	if grid == nil || walkable == nil || metric == nil {
		panic("pathing: NewPathfinder needs a grid, a walkability map and a metric")
	}
	return &Pathfinder{grid: grid, walkable: walkable, metric: metric, opts: opts}
}

func (p *Pathfinder) context() MetricContext {
	return MetricContext{Grid: p.grid, Diagonal: p.opts.Diagonal}
}

// Cost evaluates the configured metric between two cells.
func (p *Pathfinder) Cost(a, b Cell) float64 {
	return p.metric.Cost(a, b, p.context())
}

// SearchResult carries a route together with search diagnostics.
type SearchResult struct {
	Route    Route
	Found    bool
	Expanded int
}

// FindPath returns the route from start (exclusive) to goal (inclusive). A start
// equal to the goal yields an empty route and no error. An unreachable goal
// yields ErrNoPath.
func (p *Pathfinder) FindPath(start, goal Cell) (Route, error) {
	res, err := p.Search(start, goal)
	if err != nil {
		return Route{}, err
	}
	if !res.Found {
		return Route{}, ErrNoPath
	}
	return res.Route, nil
}

// Search runs A* and reports how many cells were finalized. Only cells outside
// the extent are errors.
func (p *Pathfinder) Search(start, goal Cell) (SearchResult, error) {
	if !p.grid.Contains(start) {
		return SearchResult{}, fmt.Errorf("start %v: %w", start, ErrInvalidCell)
	}
	if !p.grid.Contains(goal) {
		return SearchResult{}, fmt.Errorf("goal %v: %w", goal, ErrInvalidCell)
	}
	if start == goal {
		return SearchResult{Found: true}, nil
	}

	ctx := p.context()
	open := &openQueue{}
	heap.Init(open)
	nodes := make(map[Cell]*openNode)
	closed := mapset.New[Cell]()
	var seq uint64

	startNode := &openNode{cell: start, h: p.metric.Cost(start, goal, ctx), seq: seq}
	startNode.f = startNode.h
	nodes[start] = startNode
	heap.Push(open, startNode)

	expanded := 0
	for open.Len() > 0 {
		current := heap.Pop(open).(*openNode)
		if current.cell == goal {
			return SearchResult{Route: reconstructRoute(current), Found: true, Expanded: expanded}, nil
		}
		if p.opts.MaxExpansions > 0 && expanded >= p.opts.MaxExpansions {
			break
		}
		closed.Put(current.cell)
		expanded++

		for _, next := range p.grid.Neighbors(current.cell, p.opts.Diagonal) {
			if closed.Has(next) || !p.walkable.Walkable(next) {
				continue
			}
			if p.opts.StrictDiagonals && !p.canTraverse(current.cell, next) {
				continue
			}
			hop := p.metric.Cost(current.cell, next, ctx)
			tentativeG := current.g + hop
			if node, ok := nodes[next]; ok {
				if tentativeG >= node.g {
					continue
				}
				node.g = tentativeG
				node.f = tentativeG + node.h
				node.hop = hop
				node.parent = current
				heap.Fix(open, node.index)
				continue
			}
			seq++
			node := &openNode{
				cell:   next,
				g:      tentativeG,
				h:      p.metric.Cost(next, goal, ctx),
				hop:    hop,
				seq:    seq,
				parent: current,
			}
			node.f = node.g + node.h
			nodes[next] = node
			heap.Push(open, node)
		}
	}
	return SearchResult{Expanded: expanded}, nil
}

func (p *Pathfinder) canTraverse(from, to Cell) bool {
	parts := p.grid.components(from, to)
	if len(parts) < 2 {
		return true
	}
	for _, c := range parts {
		if !p.walkable.Walkable(c) {
			return false
		}
	}
	return true
}

func reconstructRoute(end *openNode) Route {
	n := 0
	for node := end; node.parent != nil; node = node.parent {
		n++
	}
	cells := make([]Cell, n)
	hops := make([]float64, n)
	for node := end; node.parent != nil; node = node.parent {
		n--
		cells[n] = node.cell
		hops[n] = node.hop
	}
	return Route{cells: cells, hops: hops}
}

type openNode struct {
	cell   Cell
	g      float64
	h      float64
	f      float64
	hop    float64
	seq    uint64
	index  int
	parent *openNode
}

// openQueue orders by f, then by discovery sequence so equal-f entries pop in
// the order they were first found.
type openQueue []*openNode

func (q openQueue) Len() int { return len(q) }

func (q openQueue) Less(i, j int) bool {
	if q[i].f != q[j].f {
		return q[i].f < q[j].f
	}
	return q[i].seq < q[j].seq
}

func (q openQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *openQueue) Push(x any) {
	n := len(*q)
	item := x.(*openNode)
	item.index = n
	*q = append(*q, item)
}

func (q *openQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*q = old[:n-1]
	return item
}
