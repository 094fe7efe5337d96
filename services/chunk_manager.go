package services

import (
	"fmt"
	"sync"

	"burrow/server/models"
	"burrow/server/pathing"
)

// Chunk represents a section of one map level. Edge chunks are cut to the map size.
type Chunk struct {
	X       int         `json:"x"`
	Y       int         `json:"y"`
	Z       int         `json:"z"`
	Tiles   [][]int     `json:"tiles"`
	Heights [][]float64 `json:"heights,omitempty"`
}

// ChunkManager stores a bounded map split into square chunks. It serves as the
// walkability and height source for path searches.
type ChunkManager struct {
	chunkSize  int
	width      int
	height     int
	depth      int
	heights    bool
	chunks     map[string]*Chunk
	worldMutex sync.RWMutex
}

// NewChunkManager creates a new chunk manager
func NewChunkManager(chunkSize int) *ChunkManager {
	if chunkSize <= 0 {
		chunkSize = 32
	}
	return &ChunkManager{
		chunkSize: chunkSize,
		chunks:    make(map[string]*Chunk),
	}
}

// getChunkCoordinates calculates the chunk coordinates for a given position
func (cm *ChunkManager) getChunkCoordinates(x, y int) (int, int) {
	return x / cm.chunkSize, y / cm.chunkSize
}

// getChunkKey generates a unique key for a chunk
func (cm *ChunkManager) getChunkKey(chunkX, chunkY, z int) string {
	return fmt.Sprintf("%d,%d,%d", chunkX, chunkY, z)
}

// Load replaces the stored tiles with the contents of m.
func (cm *ChunkManager) Load(m *models.GameMap) error {
	if err := m.Validate(); err != nil {
		return err
	}
	depth := len(m.Tiles)

	chunks := make(map[string]*Chunk)
	for z := 0; z < depth; z++ {
		for cy := 0; cy*cm.chunkSize < m.Height; cy++ {
			for cx := 0; cx*cm.chunkSize < m.Width; cx++ {
				chunks[cm.getChunkKey(cx, cy, z)] = cm.cutChunk(m, cx, cy, z)
			}
		}
	}

	cm.worldMutex.Lock()
	defer cm.worldMutex.Unlock()
	cm.width, cm.height, cm.depth = m.Width, m.Height, depth
	cm.heights = len(m.Heights) > 0
	cm.chunks = chunks
	return nil
}

func (cm *ChunkManager) cutChunk(m *models.GameMap, cx, cy, z int) *Chunk {
	x0, y0 := cx*cm.chunkSize, cy*cm.chunkSize
	w := min(cm.chunkSize, m.Width-x0)
	h := min(cm.chunkSize, m.Height-y0)

	chunk := &Chunk{X: cx, Y: cy, Z: z, Tiles: make([][]int, h)}
	for ly := 0; ly < h; ly++ {
		chunk.Tiles[ly] = append([]int(nil), m.Tiles[z][y0+ly][x0:x0+w]...)
	}
	if len(m.Heights) > 0 {
		chunk.Heights = make([][]float64, h)
		for ly := 0; ly < h; ly++ {
			chunk.Heights[ly] = append([]float64(nil), m.Heights[z][y0+ly][x0:x0+w]...)
		}
	}
	return chunk
}

// Contains reports whether c lies on the loaded map.
func (cm *ChunkManager) Contains(c pathing.Cell) bool {
	cm.worldMutex.RLock()
	defer cm.worldMutex.RUnlock()
	return cm.containsLocked(c)
}

func (cm *ChunkManager) containsLocked(c pathing.Cell) bool {
	return c.X >= 0 && c.X < cm.width && c.Y >= 0 && c.Y < cm.height && c.Z >= 0 && c.Z < cm.depth
}

// locate returns the chunk holding c and the local coordinates inside it.
func (cm *ChunkManager) locate(c pathing.Cell) (*Chunk, int, int, bool) {
	if !cm.containsLocked(c) {
		return nil, 0, 0, false
	}
	chunkX, chunkY := cm.getChunkCoordinates(c.X, c.Y)
	chunk, exists := cm.chunks[cm.getChunkKey(chunkX, chunkY, c.Z)]
	if !exists {
		return nil, 0, 0, false
	}
	return chunk, c.X - chunkX*cm.chunkSize, c.Y - chunkY*cm.chunkSize, true
}

// Tile returns the tile at c. Cells off the map read as walls.
func (cm *ChunkManager) Tile(c pathing.Cell) int {
	cm.worldMutex.RLock()
	defer cm.worldMutex.RUnlock()
	chunk, lx, ly, ok := cm.locate(c)
	if !ok {
		return models.TileWall
	}
	return chunk.Tiles[ly][lx]
}

// SetTile changes one tile.
func (cm *ChunkManager) SetTile(c pathing.Cell, tile int) error {
	if !models.ValidTile(tile) {
		return fmt.Errorf("set tile %v: unknown tile %d", c, tile)
	}
	cm.worldMutex.Lock()
	defer cm.worldMutex.Unlock()
	chunk, lx, ly, ok := cm.locate(c)
	if !ok {
		return fmt.Errorf("set tile %v: %w", c, pathing.ErrInvalidCell)
	}
	chunk.Tiles[ly][lx] = tile
	return nil
}

// Walkable implements pathing.Walkability.
func (cm *ChunkManager) Walkable(c pathing.Cell) bool {
	cm.worldMutex.RLock()
	defer cm.worldMutex.RUnlock()
	chunk, lx, ly, ok := cm.locate(c)
	return ok && models.Walkable(chunk.Tiles[ly][lx])
}

// Height implements pathing.HeightField. Maps without explicit heights use
// the per-tile elevation.
func (cm *ChunkManager) Height(c pathing.Cell) float64 {
	cm.worldMutex.RLock()
	defer cm.worldMutex.RUnlock()
	chunk, lx, ly, ok := cm.locate(c)
	if !ok {
		return 0
	}
	if cm.heights {
		return chunk.Heights[ly][lx]
	}
	return models.Elevation(chunk.Tiles[ly][lx])
}

// Export assembles the chunks back into a map.
func (cm *ChunkManager) Export(name string, periodic bool) *models.GameMap {
	cm.worldMutex.RLock()
	defer cm.worldMutex.RUnlock()

	m := models.NewGameMap(name, cm.width, cm.height, cm.depth, models.TileFloor)
	m.Periodic = periodic
	if cm.heights {
		m.Heights = make([][][]float64, cm.depth)
		for z := range m.Heights {
			m.Heights[z] = make([][]float64, cm.height)
			for y := range m.Heights[z] {
				m.Heights[z][y] = make([]float64, cm.width)
			}
		}
	}
	for _, chunk := range cm.chunks {
		x0, y0 := chunk.X*cm.chunkSize, chunk.Y*cm.chunkSize
		for ly, row := range chunk.Tiles {
			copy(m.Tiles[chunk.Z][y0+ly][x0:], row)
		}
		for ly, row := range chunk.Heights {
			copy(m.Heights[chunk.Z][y0+ly][x0:], row)
		}
	}
	return m
}
