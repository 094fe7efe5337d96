package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"burrow/server/models"
	"burrow/server/pathing"
)

func TestChunkManagerLoadExport(t *testing.T) {
	m := models.NewGameMap("big", 70, 40, 2, models.TileGrass)
	require.NoError(t, m.SetTile(pathing.Cell{X: 69, Y: 39, Z: 1}, models.TileLava))
	require.NoError(t, m.SetTile(pathing.Cell{X: 33, Y: 0}, models.TileWall))

	cm := NewChunkManager(32)
	require.NoError(t, cm.Load(m))
	assert.Len(t, cm.chunks, 3*2*2)

	assert.Equal(t, models.TileLava, cm.Tile(pathing.Cell{X: 69, Y: 39, Z: 1}))
	assert.False(t, cm.Walkable(pathing.Cell{X: 33, Y: 0}))
	assert.True(t, cm.Walkable(pathing.Cell{X: 32, Y: 0}))
	assert.False(t, cm.Walkable(pathing.Cell{X: 70, Y: 0}), "off the map")
	assert.Equal(t, models.TileWall, cm.Tile(pathing.Cell{X: -1}))

	out := cm.Export("big", false)
	assert.Equal(t, m.Tiles, out.Tiles)
	assert.Nil(t, out.Heights)
}

func TestChunkManagerHeights(t *testing.T) {
	m := models.NewGameMap("hills", 3, 1, 1, models.TileFloor)
	require.NoError(t, m.SetTile(pathing.Cell{X: 2}, models.TileWall))

	cm := NewChunkManager(2)
	require.NoError(t, cm.Load(m))
	assert.Equal(t, 100.0, cm.Height(pathing.Cell{X: 2}), "tile elevation")

	m.Heights = [][][]float64{{{1, 2, 3}}}
	require.NoError(t, cm.Load(m))
	assert.Equal(t, 3.0, cm.Height(pathing.Cell{X: 2}))
	assert.Equal(t, m.Heights, cm.Export("hills", false).Heights)
}

func TestChunkManagerSetTile(t *testing.T) {
	cm := NewChunkManager(4)
	require.NoError(t, cm.Load(models.NewGameMap("m", 6, 6, 1, models.TileFloor)))

	require.NoError(t, cm.SetTile(pathing.Cell{X: 5, Y: 5}, models.TileTree))
	assert.False(t, cm.Walkable(pathing.Cell{X: 5, Y: 5}))
	assert.ErrorIs(t, cm.SetTile(pathing.Cell{X: 6}, models.TileTree), pathing.ErrInvalidCell)
	assert.Error(t, cm.SetTile(pathing.Cell{}, -1))
}
