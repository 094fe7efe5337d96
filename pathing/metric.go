package pathing

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// MetricContext is what a Metric may consult besides the two cells.
type MetricContext struct {
	Grid     *Grid
	Diagonal bool
}

// Metric computes a non-negative traversal cost between two cells. The
// Pathfinder uses the same metric for hop costs and for the estimate to the goal.
type Metric interface {
	Cost(a, b Cell, ctx MetricContext) float64
}

// HeightField is an auxiliary per-cell scalar, e.g. terrain height.
type HeightField interface {
	Height(c Cell) float64
}

// DirectDistance is the obstacle-free shortest distance. With diagonal movement
// a hop changing k axes costs sqrt(k); without it, the distance is Manhattan.
type DirectDistance struct{}

func (DirectDistance) Cost(a, b Cell, ctx MetricContext) float64 {
	d := ctx.Grid.Delta(a, b)
	if !ctx.Diagonal {
		return float64(d[0] + d[1] + d[2])
	}
	axes := d[:ctx.Grid.Dims()]
	sorted := append([]int(nil), axes...)
	sort.Ints(sorted)
	total := 0.0
	prev := 0
	for i, v := range sorted {
		// the remaining len(sorted)-i axes all still need v-prev diagonal hops
		total += float64(v-prev) * math.Sqrt(float64(len(sorted)-i))
		prev = v
	}
	return total
}

// MaxDistance counts hops: Chebyshev distance with diagonal movement, Manhattan
// without.
type MaxDistance struct{}

func (MaxDistance) Cost(a, b Cell, ctx MetricContext) float64 {
	d := ctx.Grid.Delta(a, b)
	if !ctx.Diagonal {
		return float64(d[0] + d[1] + d[2])
	}
	m := d[0]
	for _, v := range d[1:] {
		if v > m {
			m = v
		}
	}
	return float64(m)
}

// HeightMapMetric adds Scale times the absolute height difference to the Base
// cost. It is also used as the estimate to the goal, where it can overestimate
// the remaining cost, so routes found with it are not guaranteed to be the
// cheapest. A zero Scale turns the height penalty off.
type HeightMapMetric struct {
	Base    Metric
	Heights HeightField
	Scale   float64
}

func (m HeightMapMetric) Cost(a, b Cell, ctx MetricContext) float64 {
	base := m.Base
	if base == nil {
		base = DirectDistance{}
	}
	c := base.Cost(a, b, ctx)
	if m.Heights != nil && m.Scale != 0 {
		c += m.Scale * math.Abs(m.Heights.Height(a)-m.Heights.Height(b))
	}
	return c
}

// Metric names accepted by MetricByName.
const (
	MetricDirect    = "direct"
	MetricMax       = "max"
	MetricHeightMap = "heightmap"
)

// MetricByName builds a metric from its configuration name. heights is only
// consulted for the heightmap metric.
func MetricByName(name string, heights HeightField, scale float64) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", MetricDirect:
		return DirectDistance{}, nil
	case MetricMax:
		return MaxDistance{}, nil
	case MetricHeightMap:
		if heights == nil {
			return nil, fmt.Errorf("metric %q needs a height field", name)
		}
		return HeightMapMetric{Base: DirectDistance{}, Heights: heights, Scale: scale}, nil
	}
	return nil, fmt.Errorf("unknown metric %q", name)
}
