package pathing

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindPathThroughSingleOpening(t *testing.T) {
	g, walk := gridFromRows(t, false,
		".....",
		"..#..",
		"..#..",
		"..#..",
		"..#..",
	)
	pf := NewPathfinder(g, walk, DirectDistance{}, Options{})

	route, err := pf.FindPath(Cell{X: 0, Y: 0}, Cell{X: 4, Y: 0})
	require.NoError(t, err)
	assert.Equal(t, []Cell{{X: 1}, {X: 2}, {X: 3}, {X: 4}}, route.Cells())
	assert.Equal(t, 4, route.Len())
	assert.Equal(t, 4.0, route.Cost())
}

func TestFindPathWallWithoutOpening(t *testing.T) {
	g, walk := gridFromRows(t, false,
		"..#..",
		"..#..",
		"..#..",
		"..#..",
		"..#..",
	)
	for _, diagonal := range []bool{false, true} {
		pf := NewPathfinder(g, walk, DirectDistance{}, Options{Diagonal: diagonal})
		route, err := pf.FindPath(Cell{X: 0, Y: 0}, Cell{X: 4, Y: 0})
		assert.ErrorIs(t, err, ErrNoPath)
		assert.True(t, route.Empty())
	}
}

func TestFindPathEnclosedGoal(t *testing.T) {
	g, walk := gridFromRows(t, false,
		".....",
		".###.",
		".#.#.",
		".###.",
		".....",
	)
	pf := NewPathfinder(g, walk, MaxDistance{}, Options{Diagonal: true})

	_, err := pf.FindPath(Cell{}, Cell{X: 2, Y: 2})
	assert.ErrorIs(t, err, ErrNoPath)
}

func TestFindPathDegenerateTarget(t *testing.T) {
	g, walk := gridFromRows(t, false, "...", "...")
	pf := NewPathfinder(g, walk, DirectDistance{}, Options{})

	route, err := pf.FindPath(Cell{X: 1, Y: 1}, Cell{X: 1, Y: 1})
	require.NoError(t, err)
	assert.True(t, route.Empty())
}

func TestFindPathInvalidCell(t *testing.T) {
	g, walk := gridFromRows(t, false, "...", "...")
	pf := NewPathfinder(g, walk, DirectDistance{}, Options{})

	_, err := pf.FindPath(Cell{X: -1}, Cell{X: 1})
	assert.ErrorIs(t, err, ErrInvalidCell)
	_, err = pf.FindPath(Cell{}, Cell{X: 1, Y: 2})
	assert.ErrorIs(t, err, ErrInvalidCell)
	_, err = pf.FindPath(Cell{}, Cell{X: 1, Z: 1})
	assert.ErrorIs(t, err, ErrInvalidCell)
}

func TestFindPathBlockedGoalIsNotSpecialCased(t *testing.T) {
	g, walk := gridFromRows(t, false,
		"....",
		"...#",
	)
	pf := NewPathfinder(g, walk, DirectDistance{}, Options{})

	res, err := pf.Search(Cell{}, Cell{X: 3, Y: 1})
	require.NoError(t, err)
	assert.False(t, res.Found)
	assert.Equal(t, 7, res.Expanded, "every walkable cell is finalized before giving up")
}

func TestTieBreakPrefersFirstDiscovered(t *testing.T) {
	g, walk := gridFromRows(t, false, "...", "...", "...")
	pf := NewPathfinder(g, walk, DirectDistance{}, Options{})

	// (0,1) is discovered before (1,0), both with f=2
	route, err := pf.FindPath(Cell{}, Cell{X: 1, Y: 1})
	require.NoError(t, err)
	assert.Equal(t, []Cell{{Y: 1}, {X: 1, Y: 1}}, route.Cells())
}

func TestFindPathIsDeterministic(t *testing.T) {
	g, walk := gridFromRows(t, false,
		"........",
		".##.###.",
		"....#...",
		".#.##.#.",
		"........",
	)
	for _, diagonal := range []bool{false, true} {
		first := NewPathfinder(g, walk, DirectDistance{}, Options{Diagonal: diagonal})
		second := NewPathfinder(g, walk, DirectDistance{}, Options{Diagonal: diagonal})

		want, err := first.FindPath(Cell{}, Cell{X: 7, Y: 4})
		require.NoError(t, err)
		for i := 0; i < 20; i++ {
			got, err := second.FindPath(Cell{}, Cell{X: 7, Y: 4})
			require.NoError(t, err)
			require.Equal(t, routeString(want), routeString(got))
		}
	}
}

func TestRoutesAreValid(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 50; trial++ {
		g, err := NewGrid([]int{6, 6}, trial%2 == 1)
		require.NoError(t, err)
		walk := randomWalkability(rng, g, 0.3)
		start, goal := Cell{X: 0, Y: 0}, Cell{X: 5, Y: 5}
		walk.Set(start, true)
		walk.Set(goal, true)
		diagonal := trial%3 == 0

		pf := NewPathfinder(g, walk, DirectDistance{}, Options{Diagonal: diagonal})
		route, err := pf.FindPath(start, goal)
		if err != nil {
			require.ErrorIs(t, err, ErrNoPath)
			continue
		}
		prev := start
		for _, c := range route.Cells() {
			require.True(t, walk.Walkable(c), "trial %d: %v not walkable", trial, c)
			require.True(t, g.Adjacent(prev, c, diagonal), "trial %d: %v -> %v not adjacent", trial, prev, c)
			prev = c
		}
		dest, ok := route.Destination()
		require.True(t, ok)
		require.Equal(t, goal, dest)
	}
}

func TestOptimalUnderAdmissibleMetrics(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	metrics := []Metric{DirectDistance{}, MaxDistance{}}
	for trial := 0; trial < 200; trial++ {
		g, err := NewGrid([]int{5, 5}, trial%4 == 3)
		require.NoError(t, err)
		walk := randomWalkability(rng, g, 0.35)
		start := Cell{X: rng.Intn(5), Y: rng.Intn(5)}
		goal := Cell{X: rng.Intn(5), Y: rng.Intn(5)}
		walk.Set(start, true)
		walk.Set(goal, true)
		diagonal := rng.Intn(2) == 0
		metric := metrics[trial%len(metrics)]

		pf := NewPathfinder(g, walk, metric, Options{Diagonal: diagonal})
		route, err := pf.FindPath(start, goal)
		want, reachable := bruteForceCost(g, walk, metric, diagonal, start, goal)

		if !reachable {
			require.ErrorIs(t, err, ErrNoPath, "trial %d", trial)
			continue
		}
		require.NoError(t, err, "trial %d", trial)
		require.InDelta(t, want, route.Cost(), 1e-9, "trial %d: %T diagonal=%v %v -> %v", trial, metric, diagonal, start, goal)
	}
}

func TestOptimalIn3D(t *testing.T) {
	g, err := NewGrid([]int{4, 4, 3}, false)
	require.NoError(t, err)
	walk := NewBoolGrid(g)
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			if x != 3 || y != 3 {
				walk.Set(Cell{X: x, Y: y, Z: 1}, false)
			}
		}
	}
	pf := NewPathfinder(g, walk, DirectDistance{}, Options{Diagonal: true})

	start, goal := Cell{}, Cell{Z: 2}
	route, err := pf.FindPath(start, goal)
	require.NoError(t, err)
	want, ok := bruteForceCost(g, walk, DirectDistance{}, true, start, goal)
	require.True(t, ok)
	assert.InDelta(t, want, route.Cost(), 1e-9)
	assert.Contains(t, route.Cells(), Cell{X: 3, Y: 3, Z: 1})
}

func TestPeriodicGridUsesWrap(t *testing.T) {
	g, walk := gridFromRows(t, true, "......")
	pf := NewPathfinder(g, walk, MaxDistance{}, Options{})

	route, err := pf.FindPath(Cell{X: 0}, Cell{X: 5})
	require.NoError(t, err)
	assert.Equal(t, []Cell{{X: 5}}, route.Cells())
}

func TestStrictDiagonalsAvoidCornerCutting(t *testing.T) {
	g, walk := gridFromRows(t, false,
		".#",
		"..",
	)
	loose := NewPathfinder(g, walk, DirectDistance{}, Options{Diagonal: true})
	strict := NewPathfinder(g, walk, DirectDistance{}, Options{Diagonal: true, StrictDiagonals: true})

	route, err := loose.FindPath(Cell{}, Cell{X: 1, Y: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, route.Len())

	route, err = strict.FindPath(Cell{}, Cell{X: 1, Y: 1})
	require.NoError(t, err)
	assert.Equal(t, []Cell{{Y: 1}, {X: 1, Y: 1}}, route.Cells())
}

func TestMaxExpansionsReportsNoPath(t *testing.T) {
	g, walk := gridFromRows(t, false,
		"..........",
		"..........",
	)
	pf := NewPathfinder(g, walk, DirectDistance{}, Options{MaxExpansions: 3})

	_, err := pf.FindPath(Cell{}, Cell{X: 9, Y: 1})
	assert.ErrorIs(t, err, ErrNoPath)

	route, err := pf.FindPath(Cell{}, Cell{X: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, route.Len())
}

func TestHeightMapMetricRoutesAroundHighTerrain(t *testing.T) {
	g, walk := gridFromRows(t, false,
		".....",
		".....",
		".....",
	)
	heights := make([]float64, g.Size())
	heights[g.Index(Cell{X: 2, Y: 0})] = 100
	heights[g.Index(Cell{X: 2, Y: 1})] = 100
	metric := HeightMapMetric{Base: DirectDistance{}, Heights: NewHeightTable(g, heights), Scale: 1}
	pf := NewPathfinder(g, walk, metric, Options{})

	route, err := pf.FindPath(Cell{}, Cell{X: 4})
	require.NoError(t, err)
	assert.Contains(t, route.Cells(), Cell{X: 2, Y: 2})
	assert.NotContains(t, route.Cells(), Cell{X: 2, Y: 0})
}

func TestWalkabilityChangesBetweenCalls(t *testing.T) {
	g, walk := gridFromRows(t, false, "...", "...")
	pf := NewPathfinder(g, walk, DirectDistance{}, Options{})

	_, err := pf.FindPath(Cell{}, Cell{X: 2})
	require.NoError(t, err)

	walk.Set(Cell{X: 1}, false)
	walk.Set(Cell{X: 1, Y: 1}, false)
	_, err = pf.FindPath(Cell{}, Cell{X: 2})
	assert.ErrorIs(t, err, ErrNoPath)
}

func TestNewPathfinderPanicsOnMissingCollaborators(t *testing.T) {
	g, walk := gridFromRows(t, false, "..")
	assert.Panics(t, func() { NewPathfinder(nil, walk, DirectDistance{}, Options{}) })
	assert.Panics(t, func() { NewPathfinder(g, nil, DirectDistance{}, Options{}) })
	assert.Panics(t, func() { NewPathfinder(g, walk, nil, Options{}) })
}

func randomWalkability(rng *rand.Rand, g *Grid, blockedRatio float64) *BoolGrid {
	walk := NewBoolGrid(g)
	ext := g.Extent()
	for x := 0; x < ext[0]; x++ {
		for y := 0; y < ext[1]; y++ {
			if rng.Float64() < blockedRatio {
				walk.Set(Cell{X: x, Y: y}, false)
			}
		}
	}
	return walk
}

func TestMaxExpansionsCountsExpandedCells(t *testing.T) {
	g, walk := gridFromRows(t, false, "...")
	pf := NewPathfinder(g, walk, DirectDistance{}, Options{MaxExpansions: 1})

	res, err := pf.Search(Cell{}, Cell{X: 1})
	require.NoError(t, err)
	assert.True(t, res.Found)
	assert.Equal(t, 1, res.Expanded)

	_, err = pf.FindPath(Cell{}, Cell{X: 2})
	assert.ErrorIs(t, err, ErrNoPath)
}

func TestWalkableFuncAdapter(t *testing.T) {
	g, err := NewGrid([]int{4, 1}, false)
	require.NoError(t, err)
	open := WalkableFunc(func(c Cell) bool { return c.X != 2 })
	pf := NewPathfinder(g, open, DirectDistance{}, Options{})

	_, err = pf.FindPath(Cell{}, Cell{X: 3})
	assert.ErrorIs(t, err, ErrNoPath)
	route, err := pf.FindPath(Cell{}, Cell{X: 1})
	require.NoError(t, err)
	assert.Equal(t, []Cell{{X: 1}}, route.Cells())
}
