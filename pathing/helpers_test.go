package pathing

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// gridFromRows builds a 2D grid where '#' is blocked. rows[0] is y=0.
func gridFromRows(t *testing.T, periodic bool, rows ...string) (*Grid, *BoolGrid) {
	t.Helper()
	require.NotEmpty(t, rows)
	g, err := NewGrid([]int{len(rows[0]), len(rows)}, periodic)
	require.NoError(t, err)
	walk := NewBoolGrid(g)
	for y, row := range rows {
		require.Len(t, row, len(rows[0]), "ragged row %d", y)
		for x, ch := range row {
			if ch == '#' {
				walk.Set(Cell{X: x, Y: y}, false)
			}
		}
	}
	return g, walk
}

// bruteForceCost is a plain Dijkstra over the same neighbor rule and hop costs.
func bruteForceCost(g *Grid, walk Walkability, m Metric, diagonal bool, start, goal Cell) (float64, bool) {
	ctx := MetricContext{Grid: g, Diagonal: diagonal}
	dist := map[Cell]float64{start: 0}
	done := map[Cell]bool{}
	for {
		best, bestCost, found := Cell{}, math.Inf(1), false
		for c, d := range dist {
			if !done[c] && d < bestCost {
				best, bestCost, found = c, d, true
			}
		}
		if !found {
			return 0, false
		}
		if best == goal {
			return bestCost, true
		}
		done[best] = true
		for _, n := range g.Neighbors(best, diagonal) {
			if !walk.Walkable(n) {
				continue
			}
			nd := bestCost + m.Cost(best, n, ctx)
			if old, ok := dist[n]; !ok || nd < old {
				dist[n] = nd
			}
		}
	}
}

func routeString(r Route) string {
	parts := make([]string, 0, r.Len())
	for _, c := range r.Cells() {
		parts = append(parts, c.String())
	}
	return strings.Join(parts, "->")
}
