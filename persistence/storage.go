package persistence

import (
	"errors"
	"fmt"
	"log"

	"burrow/server/config"
	"burrow/server/models"
)

// ErrNotFound is returned when a walker or world does not exist in the store.
var ErrNotFound = errors.New("not found")

// Storage defines the interface for data persistence
type Storage interface {
	SaveWalker(walker *models.Walker) error
	LoadWalker(id string) (*models.Walker, error)
	LoadWalkerByName(name string) (*models.Walker, error)
	ListWalkers() ([]*models.Walker, error)
	SaveWorld(name string, gameMap *models.GameMap) error
	LoadWorld(name string) (*models.GameMap, error)
	Close() error
}

// Open returns the backend selected by cfg.Driver.
func Open(cfg config.Storage, logger *log.Logger) (Storage, error) {
	if logger == nil {
		logger = log.Default()
	}
	switch cfg.Driver {
	case "postgres":
		logger.Println("Using PostgreSQL storage")
		return NewPostgresStore(cfg.DSN, logger)
	case "sqlite":
		logger.Printf("Using SQLite storage: %s", cfg.File)
		return NewSQLiteStore(cfg.File)
	case "json", "":
		logger.Printf("Using JSON file storage: %s", cfg.File)
		return NewJSONStore(cfg.File)
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
}
