package models

import (
	"time"

	"burrow/server/pathing"
)

// Walker is an entity that moves across the map along computed routes.
type Walker struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Icon      string           `json:"icon"`
	Color     []int            `json:"color"` // RGB values
	Pace      float64          `json:"speed"` // cells per second
	Nav       pathing.Traveler `json:"nav"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// NewWalker creates a walker standing at c.
func NewWalker(id, name string, c pathing.Cell, speed float64) *Walker {
	now := time.Now()
	return &Walker{
		ID:        id,
		Name:      name,
		Icon:      "🐇",
		Color:     []int{255, 255, 255},
		Pace:      speed,
		Nav:       pathing.NewTraveler(c),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (w *Walker) GetID() string { return w.ID }

func (w *Walker) GetPosition() Position { return PositionOf(w.Nav.Cell()) }

func (w *Walker) Traveler() *pathing.Traveler { return &w.Nav }

func (w *Walker) Speed() float64 { return w.Pace }

// Clone returns a copy that can be read while the original keeps moving.
// Routes are never modified in place, so the traveler is copied by value.
func (w *Walker) Clone() *Walker {
	cp := *w
	cp.Color = append([]int(nil), w.Color...)
	return &cp
}

// Beacon is a static marker, e.g. a goal or point of interest shown to clients.
type Beacon struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Char  string `json:"char"`
	Color []int  `json:"color"` // RGB values
	X     int    `json:"x"`
	Y     int    `json:"y"`
	Z     int    `json:"z"` // For multi-level maps
}

func (b *Beacon) GetID() string { return b.ID }

func (b *Beacon) GetPosition() Position { return Position{X: b.X, Y: b.Y, Z: b.Z} }

type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

// PositionOf converts a grid cell into a Position.
func PositionOf(c pathing.Cell) Position {
	return Position{X: c.X, Y: c.Y, Z: c.Z}
}

// Cell converts the position back into a grid cell.
func (p Position) Cell() pathing.Cell {
	return pathing.Cell{X: p.X, Y: p.Y, Z: p.Z}
}
