package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"burrow/server/pathing"
)

func TestGameMapTiles(t *testing.T) {
	m := NewGameMap("test", 4, 3, 1, TileGrass)
	require.NoError(t, m.Validate())
	assert.Equal(t, 2, m.Dims())
	assert.Equal(t, []int{4, 3}, m.Extent())

	require.NoError(t, m.SetTile(pathing.Cell{X: 1, Y: 2}, TileWall))
	assert.Equal(t, TileWall, m.TileAt(pathing.Cell{X: 1, Y: 2}))
	assert.Equal(t, TileWall, m.TileAt(pathing.Cell{X: 9}), "outside reads as wall")

	assert.ErrorIs(t, m.SetTile(pathing.Cell{X: 4}, TileFloor), pathing.ErrInvalidCell)
	assert.Error(t, m.SetTile(pathing.Cell{}, 999))
}

func TestGameMapValidateShape(t *testing.T) {
	m := NewGameMap("bad", 3, 3, 2, TileFloor)
	assert.Equal(t, 3, m.Dims())
	m.Tiles[1][2] = m.Tiles[1][2][:2]
	assert.ErrorIs(t, m.Validate(), ErrBadMapShape)

	m = NewGameMap("heights", 2, 2, 1, TileFloor)
	m.Heights = [][][]float64{{{1, 2}}}
	assert.ErrorIs(t, m.Validate(), ErrBadMapShape)
}

func TestHeightAtFallsBackToElevation(t *testing.T) {
	m := NewGameMap("h", 2, 1, 1, TileFloor)
	require.NoError(t, m.SetTile(pathing.Cell{X: 1}, TileWall))
	assert.Equal(t, 100.0, m.HeightAt(pathing.Cell{X: 1}))

	m.Heights = [][][]float64{{{5, 6}}}
	assert.Equal(t, 6.0, m.HeightAt(pathing.Cell{X: 1}))
}

func TestWalkerIsNavigable(t *testing.T) {
	var e Entity = NewWalker("w1", "hare", pathing.Cell{X: 2, Y: 3}, 1.5)
	nav, ok := e.(Navigable)
	require.True(t, ok)
	assert.Equal(t, Position{X: 2, Y: 3}, nav.GetPosition())
	assert.Equal(t, 1.5, nav.Speed())

	var b Entity = &Beacon{ID: "b1", X: 1}
	_, ok = b.(Navigable)
	assert.False(t, ok)
}
