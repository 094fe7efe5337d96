package models

import (
	"errors"
	"fmt"

	"burrow/server/pathing"
)

// GameMap represents the game world map
type GameMap struct {
	Name     string        `json:"name"`
	Width    int           `json:"width"`
	Height   int           `json:"height"`
	Depth    int           `json:"depth"` // For multi-level maps
	Periodic bool          `json:"periodic,omitempty"`
	Tiles    [][][]int     `json:"tiles"`             // tile types indexed [z][y][x]
	Heights  [][][]float64 `json:"heights,omitempty"` // optional terrain heights, same layout as Tiles
}

// Tile types represented as integers for memory efficiency
const (
	TileFloor = iota
	TileWall
	TileDoor
	TileWater
	TileGrass
	TileTree
	TileStairsUp
	TileStairsDown
	TileSand
	TilePavement
	TileSnow
	TileLava
	TileAsh
	TileCactus
	TileIce
	tileCount
)

var ErrBadMapShape = errors.New("map shape mismatch")

// NewGameMap creates a map of the given size filled with tile.
func NewGameMap(name string, width, height, depth, tile int) *GameMap {
	if depth < 1 {
		depth = 1
	}
	m := &GameMap{Name: name, Width: width, Height: height, Depth: depth}
	m.Tiles = make([][][]int, depth)
	for z := range m.Tiles {
		m.Tiles[z] = make([][]int, height)
		for y := range m.Tiles[z] {
			row := make([]int, width)
			for x := range row {
				row[x] = tile
			}
			m.Tiles[z][y] = row
		}
	}
	return m
}

// ValidTile reports whether t is a known tile type.
func ValidTile(t int) bool {
	return t >= 0 && t < tileCount
}

// Walkable reports whether an entity may stand on a tile.
func Walkable(tile int) bool {
	switch tile {
	case TileWall, TileWater, TileTree, TileLava, TileCactus:
		return false
	}
	return true
}

// Elevation is the terrain height used when a map carries no explicit heights.
// Walls count as height 100 so that a height-aware metric routes around them.
func Elevation(tile int) float64 {
	switch tile {
	case TileWall:
		return 100
	case TileTree, TileCactus:
		return 20
	case TileWater, TileLava:
		return 10
	case TileSnow, TileIce:
		return 3
	case TileSand:
		return 1
	}
	return 0
}

// Dims returns 3 for multi-level maps and 2 otherwise.
func (m *GameMap) Dims() int {
	if m.Depth > 1 {
		return 3
	}
	return 2
}

// Extent returns the grid extent matching Dims.
func (m *GameMap) Extent() []int {
	if m.Dims() == 3 {
		return []int{m.Width, m.Height, m.Depth}
	}
	return []int{m.Width, m.Height}
}

// Contains reports whether c lies on the map.
func (m *GameMap) Contains(c pathing.Cell) bool {
	return c.X >= 0 && c.X < m.Width && c.Y >= 0 && c.Y < m.Height && c.Z >= 0 && c.Z < m.depth()
}

// TileAt returns the tile at c, or TileWall outside the map.
func (m *GameMap) TileAt(c pathing.Cell) int {
	if !m.Contains(c) {
		return TileWall
	}
	return m.Tiles[c.Z][c.Y][c.X]
}

// SetTile changes the tile at c.
func (m *GameMap) SetTile(c pathing.Cell, tile int) error {
	if !m.Contains(c) {
		return fmt.Errorf("set tile %v: %w", c, pathing.ErrInvalidCell)
	}
	if !ValidTile(tile) {
		return fmt.Errorf("set tile %v: unknown tile %d", c, tile)
	}
	m.Tiles[c.Z][c.Y][c.X] = tile
	return nil
}

// HeightAt returns the explicit height at c, falling back to the tile elevation.
func (m *GameMap) HeightAt(c pathing.Cell) float64 {
	if !m.Contains(c) {
		return 0
	}
	if len(m.Heights) > 0 {
		return m.Heights[c.Z][c.Y][c.X]
	}
	return Elevation(m.Tiles[c.Z][c.Y][c.X])
}

// Validate checks that the tile and height layers match the declared size.
func (m *GameMap) Validate() error {
	if m.Width <= 0 || m.Height <= 0 {
		return fmt.Errorf("%w: size %dx%d", ErrBadMapShape, m.Width, m.Height)
	}
	if len(m.Tiles) != m.depth() {
		return fmt.Errorf("%w: %d tile levels for depth %d", ErrBadMapShape, len(m.Tiles), m.depth())
	}
	for z, level := range m.Tiles {
		if len(level) != m.Height {
			return fmt.Errorf("%w: level %d has %d rows", ErrBadMapShape, z, len(level))
		}
		for y, row := range level {
			if len(row) != m.Width {
				return fmt.Errorf("%w: level %d row %d has %d tiles", ErrBadMapShape, z, y, len(row))
			}
			for x, t := range row {
				if !ValidTile(t) {
					return fmt.Errorf("unknown tile %d at (%d,%d,%d)", t, x, y, z)
				}
			}
		}
	}
	if len(m.Heights) == 0 {
		return nil
	}
	if len(m.Heights) != m.depth() {
		return fmt.Errorf("%w: %d height levels for depth %d", ErrBadMapShape, len(m.Heights), m.depth())
	}
	for z, level := range m.Heights {
		if len(level) != m.Height {
			return fmt.Errorf("%w: height level %d has %d rows", ErrBadMapShape, z, len(level))
		}
		for y, row := range level {
			if len(row) != m.Width {
				return fmt.Errorf("%w: height level %d row %d has %d values", ErrBadMapShape, z, y, len(row))
			}
		}
	}
	return nil
}

func (m *GameMap) depth() int {
	if m.Depth < 1 {
		return 1
	}
	return m.Depth
}

// Entity interface for anything that can exist on the map
type Entity interface {
	GetPosition() Position
	GetID() string
}

// Navigable is implemented by entities that follow routes.
type Navigable interface {
	Entity
	Traveler() *pathing.Traveler
	Speed() float64
}
