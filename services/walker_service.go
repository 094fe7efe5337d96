package services

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"burrow/server/models"
	"burrow/server/pathing"
	"burrow/server/persistence"
)

// WalkerService manages walker identities and their persistence
type WalkerService struct {
	walkers map[string]*models.Walker
	world   *WorldService
	db      persistence.Storage
	speed   float64
	logger  *log.Logger
	mutex   sync.RWMutex
}

// NewWalkerService creates a walker service and puts every stored walker back
// into the world.
func NewWalkerService(world *WorldService, db persistence.Storage, speed float64, logger *log.Logger) (*WalkerService, error) {
	if logger == nil {
		logger = log.Default()
	}
	ws := &WalkerService{
		walkers: make(map[string]*models.Walker),
		world:   world,
		db:      db,
		speed:   speed,
		logger:  logger,
	}
	if err := ws.loadWalkersFromDB(); err != nil {
		return nil, err
	}
	return ws, nil
}

// loadWalkersFromDB spawns stored walkers. Walkers already in the world, e.g.
// restored from a snapshot, keep their snapshot state.
func (ws *WalkerService) loadWalkersFromDB() error {
	stored, err := ws.db.ListWalkers()
	if err != nil {
		return fmt.Errorf("list walkers: %w", err)
	}
	for _, w := range stored {
		if live, err := ws.world.Walker(w.ID); err == nil {
			ws.walkers[w.ID] = live
			continue
		}
		if err := ws.world.SpawnWalker(w); err != nil {
			ws.logger.Printf("walker %s (%s) not spawned: %v", w.Name, w.ID, err)
			continue
		}
		ws.walkers[w.ID] = w
	}
	ws.logger.Printf("%d walkers loaded", len(ws.walkers))
	return nil
}

// GetOrCreateWalker gets an existing walker or creates a new one
func (ws *WalkerService) GetOrCreateWalker(name string) (*models.Walker, error) {
	ws.mutex.Lock()
	defer ws.mutex.Unlock()

	for _, w := range ws.walkers {
		if w.Name == name {
			return w, nil
		}
	}

	walker, err := ws.db.LoadWalkerByName(name)
	switch {
	case errors.Is(err, persistence.ErrNotFound):
		walker = models.NewWalker(uuid.NewString(), name, pathing.Cell{X: -1, Y: -1}, ws.speed)
	case err != nil:
		return nil, fmt.Errorf("load walker %q: %w", name, err)
	}

	// SpawnWalker moves walkers off unusable cells, including the sentinel above.
	if err := ws.world.SpawnWalker(walker); err != nil {
		return nil, err
	}
	saved, err := ws.world.WalkerCopy(walker.ID)
	if err == nil {
		err = ws.db.SaveWalker(saved)
	}
	if err != nil {
		ws.world.RemoveEntity(walker.ID)
		return nil, fmt.Errorf("save new walker %q: %w", name, err)
	}
	ws.walkers[walker.ID] = walker
	return walker, nil
}

// GetWalker retrieves a walker by ID
func (ws *WalkerService) GetWalker(id string) (*models.Walker, error) {
	ws.mutex.RLock()
	defer ws.mutex.RUnlock()

	w, exists := ws.walkers[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnknownWalker, id)
	}
	return w, nil
}

// SaveAll writes the current state of every walker to storage.
func (ws *WalkerService) SaveAll() error {
	var errs []error
	now := time.Now()
	for _, w := range ws.world.Walkers() {
		w.UpdatedAt = now
		if err := ws.db.SaveWalker(w); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Save writes walker id's current state to storage.
func (ws *WalkerService) Save(id string) error {
	snapshot, err := ws.world.WalkerCopy(id)
	if err != nil {
		return err
	}
	snapshot.UpdatedAt = time.Now()
	return ws.db.SaveWalker(snapshot)
}

// RemoveWalker saves walker id and takes it out of the world.
func (ws *WalkerService) RemoveWalker(id string) error {
	ws.mutex.Lock()
	defer ws.mutex.Unlock()

	if _, exists := ws.walkers[id]; !exists {
		return fmt.Errorf("%w: %s", ErrUnknownWalker, id)
	}
	var saveErr error
	if snapshot, err := ws.world.WalkerCopy(id); err == nil {
		snapshot.UpdatedAt = time.Now()
		saveErr = ws.db.SaveWalker(snapshot)
	}
	ws.world.RemoveEntity(id)
	delete(ws.walkers, id)
	return saveErr
}
