package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"burrow/server/models"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// PostgresStore handles database operations using PostgreSQL
type PostgresStore struct {
	db     *sql.DB
	logger *log.Logger
}

// NewPostgresStore creates a new PostgreSQL storage manager
func NewPostgresStore(connectionString string, logger *log.Logger) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if logger == nil {
		logger = log.Default()
	}
	store := &PostgresStore{db: db, logger: logger}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (dm *PostgresStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS walkers (
		id TEXT PRIMARY KEY,
		name TEXT UNIQUE NOT NULL,
		icon TEXT NOT NULL,
		color JSONB NOT NULL,
		speed DOUBLE PRECISION NOT NULL,
		x INTEGER NOT NULL,
		y INTEGER NOT NULL,
		z INTEGER NOT NULL,
		nav JSONB NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS worlds (
		id SERIAL PRIMARY KEY,
		name TEXT UNIQUE NOT NULL,
		width INTEGER NOT NULL,
		height INTEGER NOT NULL,
		depth INTEGER NOT NULL,
		periodic BOOLEAN NOT NULL DEFAULT FALSE,
		tiles JSONB NOT NULL,
		heights JSONB,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);
	`

	_, err := dm.db.Exec(schema)
	return err
}

// SaveWalker upserts a walker. The x/y/z columns mirror the traveler cell for ad-hoc queries.
func (dm *PostgresStore) SaveWalker(walker *models.Walker) error {
	colorJSON, err := json.Marshal(walker.Color)
	if err != nil {
		return fmt.Errorf("marshal walker color: %w", err)
	}
	navJSON, err := json.Marshal(walker.Nav)
	if err != nil {
		return fmt.Errorf("marshal walker route: %w", err)
	}
	at := walker.Nav.Cell()

	query := `
	INSERT INTO walkers (id, name, icon, color, speed, x, y, z, nav, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (id)
	DO UPDATE SET
		name = $2, icon = $3, color = $4, speed = $5,
		x = $6, y = $7, z = $8, nav = $9,
		updated_at = NOW()
	`

	_, err = dm.db.Exec(query,
		walker.ID, walker.Name, walker.Icon, string(colorJSON), walker.Pace,
		at.X, at.Y, at.Z, string(navJSON), walker.CreatedAt)
	if err != nil {
		return fmt.Errorf("save walker %s: %w", walker.ID, err)
	}
	return nil
}

const walkerColumns = `id, name, icon, color, speed, nav, created_at, updated_at`

// LoadWalker loads a walker from the database by ID
func (dm *PostgresStore) LoadWalker(id string) (*models.Walker, error) {
	row := dm.db.QueryRow(`SELECT `+walkerColumns+` FROM walkers WHERE id = $1`, id)
	walker, err := scanWalker(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("walker %s: %w", id, ErrNotFound)
	}
	return walker, err
}

// LoadWalkerByName loads a walker from the database by name
func (dm *PostgresStore) LoadWalkerByName(name string) (*models.Walker, error) {
	row := dm.db.QueryRow(`SELECT `+walkerColumns+` FROM walkers WHERE name = $1`, name)
	walker, err := scanWalker(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("walker named %q: %w", name, ErrNotFound)
	}
	return walker, err
}

// ListWalkers returns every stored walker ordered by name.
func (dm *PostgresStore) ListWalkers() ([]*models.Walker, error) {
	rows, err := dm.db.Query(`SELECT ` + walkerColumns + ` FROM walkers ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list walkers: %w", err)
	}
	defer rows.Close()

	var walkers []*models.Walker
	for rows.Next() {
		walker, err := scanWalker(rows)
		if err != nil {
			return nil, err
		}
		walkers = append(walkers, walker)
	}
	return walkers, rows.Err()
}

// SaveWorld saves a world to the database
func (dm *PostgresStore) SaveWorld(name string, gameMap *models.GameMap) error {
	tilesJSON, err := json.Marshal(gameMap.Tiles)
	if err != nil {
		return fmt.Errorf("marshal world tiles: %w", err)
	}
	var heights any
	if len(gameMap.Heights) > 0 {
		raw, err := json.Marshal(gameMap.Heights)
		if err != nil {
			return fmt.Errorf("marshal world heights: %w", err)
		}
		heights = string(raw)
	}

	query := `
	INSERT INTO worlds (name, width, height, depth, periodic, tiles, heights)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (name)
	DO UPDATE SET
		width = $2, height = $3, depth = $4, periodic = $5, tiles = $6, heights = $7,
		updated_at = NOW()
	`

	_, err = dm.db.Exec(query,
		name, gameMap.Width, gameMap.Height, gameMap.Depth, gameMap.Periodic,
		string(tilesJSON), heights)
	if err != nil {
		return fmt.Errorf("save world %s: %w", name, err)
	}
	return nil
}

// LoadWorld loads a world from the database by name
func (dm *PostgresStore) LoadWorld(name string) (*models.GameMap, error) {
	query := `SELECT width, height, depth, periodic, tiles, heights FROM worlds WHERE name = $1`

	gameMap := models.GameMap{Name: name}
	var tilesJSON string
	var heightsJSON sql.NullString

	err := dm.db.QueryRow(query, name).Scan(
		&gameMap.Width, &gameMap.Height, &gameMap.Depth, &gameMap.Periodic,
		&tilesJSON, &heightsJSON,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("world %s: %w", name, ErrNotFound)
		}
		return nil, fmt.Errorf("load world %s: %w", name, err)
	}

	if err := json.Unmarshal([]byte(tilesJSON), &gameMap.Tiles); err != nil {
		return nil, fmt.Errorf("unmarshal world tiles: %w", err)
	}
	if heightsJSON.Valid {
		if err := json.Unmarshal([]byte(heightsJSON.String), &gameMap.Heights); err != nil {
			return nil, fmt.Errorf("unmarshal world heights: %w", err)
		}
	}
	return &gameMap, nil
}

// Close closes the database connection
func (dm *PostgresStore) Close() error {
	dm.logger.Println("Closing database connection...")
	return dm.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWalker(row rowScanner) (*models.Walker, error) {
	var walker models.Walker
	var colorJSON, navJSON string

	err := row.Scan(
		&walker.ID, &walker.Name, &walker.Icon, &colorJSON, &walker.Pace,
		&navJSON, &walker.CreatedAt, &walker.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan walker: %w", err)
	}
	if err := json.Unmarshal([]byte(colorJSON), &walker.Color); err != nil {
		return nil, fmt.Errorf("unmarshal walker color: %w", err)
	}
	if err := json.Unmarshal([]byte(navJSON), &walker.Nav); err != nil {
		return nil, fmt.Errorf("unmarshal walker route: %w", err)
	}
	return &walker, nil
}
