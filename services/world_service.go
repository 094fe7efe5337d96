package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"burrow/server/config"
	"burrow/server/messages"
	"burrow/server/models"
	"burrow/server/pathing"
	"burrow/server/persistence"
)

var ErrUnknownWalker = errors.New("unknown walker")

type EventKind string

const (
	EventArrived EventKind = "arrived"
	EventBlocked EventKind = "blocked"
	EventTile    EventKind = "tile"
)

// Event is something a tick produced that clients may want to hear about.
type Event struct {
	Kind     EventKind
	WalkerID string
	Cell     pathing.Cell
	Tile     int
	Tick     uint64
}

type tileEdit struct {
	cell pathing.Cell
	tile int
}

// WorldService manages the map, the entities on it and their movement. All
// methods are safe for concurrent use.
type WorldService struct {
	cfg      config.World
	name     string
	periodic bool
	grid     *pathing.Grid
	chunks   *ChunkManager
	finder   *pathing.Pathfinder
	nav      *pathing.Navigator
	entities map[string]models.Entity
	occupied map[pathing.Cell]int
	pending  []tileEdit
	tick     uint64
	logger   *log.Logger

	worldMutex sync.Mutex
}

// NewWorldService creates a new world service around m.
func NewWorldService(m *models.GameMap, cfg config.World, logger *log.Logger) (*WorldService, error) {
	if logger == nil {
		logger = log.Default()
	}
	ws := &WorldService{
		cfg:      cfg,
		chunks:   NewChunkManager(32),
		entities: make(map[string]models.Entity),
		occupied: make(map[pathing.Cell]int),
		logger:   logger,
	}
	if err := ws.install(m); err != nil {
		return nil, err
	}
	for _, b := range cfg.Beacons {
		beacon := &models.Beacon{ID: "beacon-" + b.Name, Name: b.Name, Char: b.Char, Color: b.Color, X: b.X, Y: b.Y, Z: b.Z}
		if err := ws.AddBeacon(beacon); err != nil {
			return nil, err
		}
	}
	ws.logger.Printf("world %q loaded: %v periodic=%t metric=%s", ws.name, ws.grid.Extent(), ws.periodic, cfg.Metric)
	return ws, nil
}

// install swaps in a new map and rebuilds the search stack around it.
func (ws *WorldService) install(m *models.GameMap) error {
	grid, err := pathing.NewGrid(m.Extent(), m.Periodic)
	if err != nil {
		return fmt.Errorf("world %q: %w", m.Name, err)
	}
	if err := ws.chunks.Load(m); err != nil {
		return fmt.Errorf("world %q: %w", m.Name, err)
	}
	metric, err := pathing.MetricByName(ws.cfg.Metric, ws.chunks, ws.cfg.HeightScale)
	if err != nil {
		return err
	}
	ws.name = m.Name
	ws.periodic = m.Periodic
	ws.grid = grid
	ws.finder = pathing.NewPathfinder(grid, ws.chunks, metric, pathing.Options{
		Diagonal:        ws.cfg.Diagonal,
		StrictDiagonals: ws.cfg.StrictDiagonals,
		MaxExpansions:   ws.cfg.MaxExpansions,
	})
	ws.nav = pathing.NewNavigator(ws.finder,
		pathing.WithOccupancy(pathing.OccupancyFunc(ws.isOccupied)),
		pathing.WithReplanOnBlock(ws.cfg.ReplanOnBlock),
	)
	ws.pending = nil
	return nil
}

// isOccupied runs under worldMutex. A traveler never steps onto its own cell,
// so counting every navigable entity is enough.
func (ws *WorldService) isOccupied(c pathing.Cell) bool {
	return ws.occupied[c] > 0
}

func (ws *WorldService) Name() string {
	ws.worldMutex.Lock()
	defer ws.worldMutex.Unlock()
	return ws.name
}

// Extent returns the grid extent of the current map.
func (ws *WorldService) Extent() []int {
	ws.worldMutex.Lock()
	defer ws.worldMutex.Unlock()
	return ws.grid.Extent()
}

func (ws *WorldService) Periodic() bool {
	ws.worldMutex.Lock()
	defer ws.worldMutex.Unlock()
	return ws.periodic
}

// CurrentTick returns the number of ticks run so far.
func (ws *WorldService) CurrentTick() uint64 {
	ws.worldMutex.Lock()
	defer ws.worldMutex.Unlock()
	return ws.tick
}

// SpawnWalker adds w to the world. A walker whose cell is off the map or not
// walkable is moved to the spawn point and loses its route.
func (ws *WorldService) SpawnWalker(w *models.Walker) error {
	ws.worldMutex.Lock()
	defer ws.worldMutex.Unlock()

	if _, exists := ws.entities[w.ID]; exists {
		return fmt.Errorf("walker %s already in world", w.ID)
	}
	if at := w.Nav.Cell(); !ws.grid.Contains(at) || !ws.chunks.Walkable(at) {
		spawn, ok := ws.spawnPoint()
		if !ok {
			return fmt.Errorf("world %q has no free walkable cell", ws.name)
		}
		w.Nav.Place(spawn)
	}
	ws.entities[w.ID] = w
	ws.occupied[w.Nav.Cell()]++
	return nil
}

// AddBeacon places a static marker.
func (ws *WorldService) AddBeacon(b *models.Beacon) error {
	ws.worldMutex.Lock()
	defer ws.worldMutex.Unlock()

	if !ws.grid.Contains(b.GetPosition().Cell()) {
		return fmt.Errorf("beacon %s at %v: %w", b.ID, b.GetPosition(), pathing.ErrInvalidCell)
	}
	ws.entities[b.ID] = b
	return nil
}

// RemoveEntity removes a walker or beacon from the world.
func (ws *WorldService) RemoveEntity(id string) {
	ws.worldMutex.Lock()
	defer ws.worldMutex.Unlock()

	ent, exists := ws.entities[id]
	if !exists {
		return
	}
	if nav, ok := ent.(models.Navigable); ok {
		ws.release(nav.Traveler().Cell())
	}
	delete(ws.entities, id)
}

func (ws *WorldService) release(c pathing.Cell) {
	if ws.occupied[c] <= 1 {
		delete(ws.occupied, c)
		return
	}
	ws.occupied[c]--
}

// spawnPoint scans rings around the centre of level 0 for a walkable cell
// nobody stands on.
func (ws *WorldService) spawnPoint() (pathing.Cell, bool) {
	extent := ws.grid.Extent()
	cx, cy := extent[0]/2, extent[1]/2
	for r := 0; r <= max(extent[0], extent[1]); r++ {
		for y := cy - r; y <= cy+r; y++ {
			for x := cx - r; x <= cx+r; x++ {
				if abs(x-cx) != r && abs(y-cy) != r {
					continue
				}
				c := pathing.Cell{X: x, Y: y}
				if ws.grid.Contains(c) && ws.chunks.Walkable(c) && !ws.isOccupied(c) {
					return c, true
				}
			}
		}
	}
	return pathing.Cell{}, false
}

func (ws *WorldService) navigable(id string) (models.Navigable, error) {
	ent, exists := ws.entities[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnknownWalker, id)
	}
	nav, ok := ent.(models.Navigable)
	if !ok {
		return nil, fmt.Errorf("%w: %s cannot move", ErrUnknownWalker, id)
	}
	return nav, nil
}

// move runs fn on the traveler and keeps the occupancy table in step.
func (ws *WorldService) move(nav models.Navigable, fn func(t *pathing.Traveler)) {
	t := nav.Traveler()
	before := t.Cell()
	fn(t)
	if after := t.Cell(); after != before {
		ws.release(before)
		ws.occupied[after]++
	}
}

// SetTarget routes walker id to dest. It reports false when dest cannot be reached.
func (ws *WorldService) SetTarget(id string, dest pathing.Cell) (bool, error) {
	ws.worldMutex.Lock()
	defer ws.worldMutex.Unlock()

	nav, err := ws.navigable(id)
	if err != nil {
		return false, err
	}
	found, err := ws.nav.SetTarget(nav.Traveler(), dest)
	if err != nil {
		return false, err
	}
	if !found {
		ws.logger.Printf("no path for %s from %v to %v", id, nav.Traveler().Cell(), dest)
	}
	return found, nil
}

// Advance moves walker id by budget metric units right away.
func (ws *WorldService) Advance(id string, budget float64) (pathing.Progress, error) {
	ws.worldMutex.Lock()
	defer ws.worldMutex.Unlock()

	nav, err := ws.navigable(id)
	if err != nil {
		return pathing.Progress{}, err
	}
	var p pathing.Progress
	ws.move(nav, func(t *pathing.Traveler) { p = ws.nav.AdvanceReport(t, budget) })
	return p, nil
}

// Step moves walker id by whole hops and returns the hops left over.
func (ws *WorldService) Step(id string, hops int) (int, error) {
	ws.worldMutex.Lock()
	defer ws.worldMutex.Unlock()

	nav, err := ws.navigable(id)
	if err != nil {
		return 0, err
	}
	left := hops
	ws.move(nav, func(t *pathing.Traveler) { left = ws.nav.Step(t, hops) })
	return left, nil
}

func (ws *WorldService) Stationary(id string) (bool, error) {
	ws.worldMutex.Lock()
	defer ws.worldMutex.Unlock()

	nav, err := ws.navigable(id)
	if err != nil {
		return false, err
	}
	return ws.nav.IsStationary(nav.Traveler()), nil
}

// Route returns a copy of walker id's remaining route.
func (ws *WorldService) Route(id string) (pathing.Route, error) {
	ws.worldMutex.Lock()
	defer ws.worldMutex.Unlock()

	nav, err := ws.navigable(id)
	if err != nil {
		return pathing.Route{}, err
	}
	return nav.Traveler().Route(), nil
}

// Describe builds the route message for walker id.
func (ws *WorldService) Describe(id string) (*messages.RouteMessage, error) {
	ws.worldMutex.Lock()
	defer ws.worldMutex.Unlock()

	nav, err := ws.navigable(id)
	if err != nil {
		return nil, err
	}
	t := nav.Traveler()
	route := t.Route()
	return &messages.RouteMessage{
		WalkerID:   id,
		Cell:       t.Cell(),
		Position:   t.Position(),
		Route:      route.Cells(),
		Cost:       route.Cost() - t.Progress(),
		Stationary: t.Stationary(),
	}, nil
}

// SetTile queues a tile change. Edits are applied at the start of the next
// tick so no search ever sees a half-updated map.
func (ws *WorldService) SetTile(c pathing.Cell, tile int) error {
	ws.worldMutex.Lock()
	defer ws.worldMutex.Unlock()

	if !ws.grid.Contains(c) {
		return fmt.Errorf("set tile %v: %w", c, pathing.ErrInvalidCell)
	}
	if !models.ValidTile(tile) {
		return fmt.Errorf("set tile %v: unknown tile %d", c, tile)
	}
	ws.pending = append(ws.pending, tileEdit{cell: c, tile: tile})
	return nil
}

func (ws *WorldService) sortedIDs() []string {
	ids := make([]string, 0, len(ws.entities))
	for id := range ws.entities {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Tick applies queued tile edits and advances every moving entity by its
// speed times dt. Entities move in ID order.
func (ws *WorldService) Tick(dt time.Duration) []Event {
	ws.worldMutex.Lock()
	defer ws.worldMutex.Unlock()

	ws.tick++
	var events []Event
	for _, edit := range ws.pending {
		if err := ws.chunks.SetTile(edit.cell, edit.tile); err != nil {
			ws.logger.Printf("tile edit dropped: %v", err)
			continue
		}
		events = append(events, Event{Kind: EventTile, Cell: edit.cell, Tile: edit.tile, Tick: ws.tick})
	}
	ws.pending = nil

	for _, id := range ws.sortedIDs() {
		nav, ok := ws.entities[id].(models.Navigable)
		if !ok || nav.Traveler().Stationary() {
			continue
		}
		var p pathing.Progress
		budget := nav.Speed() * dt.Seconds()
		ws.move(nav, func(t *pathing.Traveler) { p = ws.nav.AdvanceReport(t, budget) })

		switch {
		case p.Blocked:
			events = append(events, Event{Kind: EventBlocked, WalkerID: id, Cell: nav.Traveler().Cell(), Tick: ws.tick})
		case p.Arrived:
			events = append(events, Event{Kind: EventArrived, WalkerID: id, Cell: nav.Traveler().Cell(), Tick: ws.tick})
		}
	}
	return events
}

// Run ticks the world at hz until ctx is cancelled. onTick, if set, receives
// every tick's events outside the world lock.
func (ws *WorldService) Run(ctx context.Context, hz int, onTick func(tick uint64, events []Event)) error {
	if hz <= 0 {
		return fmt.Errorf("tick rate must be positive, got %d", hz)
	}
	interval := time.Second / time.Duration(hz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	ws.logger.Printf("tick loop started at %d Hz", hz)
	for {
		select {
		case <-ctx.Done():
			ws.logger.Println("tick loop stopped")
			return nil
		case <-ticker.C:
			events := ws.Tick(interval)
			if onTick != nil {
				onTick(ws.CurrentTick(), events)
			}
		}
	}
}

// View gets the world state around walker id
func (ws *WorldService) View(id string, viewRadius int) (*messages.UpdateMessage, error) {
	ws.worldMutex.Lock()
	defer ws.worldMutex.Unlock()

	self, err := ws.navigable(id)
	if err != nil {
		return nil, err
	}
	center := self.Traveler().Cell()

	update := &messages.UpdateMessage{
		Tick:    ws.tick,
		Walkers: make([]messages.WalkerView, 0),
		Beacons: make([]messages.BeaconView, 0),
		Route:   self.Traveler().Route().Cells(),
	}

	for _, eid := range ws.sortedIDs() {
		ent := ws.entities[eid]
		pos := ent.GetPosition().Cell()
		if !ws.withinView(center, pos, viewRadius) {
			continue
		}
		switch e := ent.(type) {
		case *models.Walker:
			update.Walkers = append(update.Walkers, messages.WalkerView{
				ID:       e.ID,
				Name:     e.Name,
				Icon:     e.Icon,
				Color:    e.Color,
				Position: e.Nav.Position(),
				Moving:   !e.Nav.Stationary(),
			})
		case *models.Beacon:
			update.Beacons = append(update.Beacons, messages.BeaconView{
				ID: e.ID, Name: e.Name, Char: e.Char, Color: e.Color, X: e.X, Y: e.Y, Z: e.Z,
			})
		}
	}

	viewDiameter := viewRadius*2 + 1
	tiles := make([][]int, viewDiameter)
	for i := range tiles {
		tiles[i] = make([]int, viewDiameter)
		for j := range tiles[i] {
			c := pathing.Cell{X: center.X - viewRadius + j, Y: center.Y - viewRadius + i, Z: center.Z}
			if wrapped, ok := ws.grid.Wrap(c); ok {
				tiles[i][j] = ws.chunks.Tile(wrapped)
			} else {
				tiles[i][j] = models.TileWall
			}
		}
	}
	update.Map = messages.MapView{
		CenterX: center.X,
		CenterY: center.Y,
		Z:       center.Z,
		Radius:  viewRadius,
		Tiles:   tiles,
	}
	return update, nil
}

func (ws *WorldService) withinView(center, c pathing.Cell, radius int) bool {
	if c.Z != center.Z {
		return false
	}
	d := ws.grid.Delta(center, c)
	return d[0] <= radius && d[1] <= radius
}

// Walker returns the live walker with the given ID.
func (ws *WorldService) Walker(id string) (*models.Walker, error) {
	ws.worldMutex.Lock()
	defer ws.worldMutex.Unlock()

	w, ok := ws.entities[id].(*models.Walker)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownWalker, id)
	}
	return w, nil
}

// WalkerCopy returns a copy of walker id that is safe to read while the world ticks.
func (ws *WorldService) WalkerCopy(id string) (*models.Walker, error) {
	ws.worldMutex.Lock()
	defer ws.worldMutex.Unlock()

	w, ok := ws.entities[id].(*models.Walker)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownWalker, id)
	}
	return w.Clone(), nil
}

// Walkers returns copies of every walker in ID order.
func (ws *WorldService) Walkers() []*models.Walker {
	ws.worldMutex.Lock()
	defer ws.worldMutex.Unlock()
	return ws.walkersLocked()
}

func (ws *WorldService) walkersLocked() []*models.Walker {
	var walkers []*models.Walker
	for _, id := range ws.sortedIDs() {
		if w, ok := ws.entities[id].(*models.Walker); ok {
			walkers = append(walkers, w.Clone())
		}
	}
	return walkers
}

// Snapshot captures the map, the tick counter and every walker.
func (ws *WorldService) Snapshot() persistence.Snapshot {
	ws.worldMutex.Lock()
	defer ws.worldMutex.Unlock()

	return persistence.Snapshot{
		Header:  persistence.SnapshotHeader{World: ws.name, Tick: ws.tick},
		Map:     ws.chunks.Export(ws.name, ws.periodic),
		Walkers: ws.walkersLocked(),
	}
}

// Restore replaces the map, tick counter and walkers with the snapshot's.
// Beacons stay in place. Queued tile edits are dropped.
func (ws *WorldService) Restore(snap persistence.Snapshot) error {
	if snap.Map == nil {
		return errors.New("restore: snapshot has no map")
	}
	ws.worldMutex.Lock()
	defer ws.worldMutex.Unlock()

	if err := ws.install(snap.Map); err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	ws.tick = snap.Header.Tick
	for id, ent := range ws.entities {
		if _, ok := ent.(models.Navigable); ok {
			delete(ws.entities, id)
		}
	}
	ws.occupied = make(map[pathing.Cell]int)
	for _, w := range snap.Walkers {
		if !ws.grid.Contains(w.Nav.Cell()) {
			ws.logger.Printf("restore: walker %s at %v is off the map, skipped", w.ID, w.Nav.Cell())
			continue
		}
		ws.entities[w.ID] = w
		ws.occupied[w.Nav.Cell()]++
	}
	ws.logger.Printf("restored world %q at tick %d with %d walkers", ws.name, ws.tick, len(snap.Walkers))
	return nil
}

// Helper function to calculate absolute value
func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
