package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"burrow/server/models"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps walkers and worlds as JSON documents in a single-file
// SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initSQLitePragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSQLiteSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func initSQLitePragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSQLiteSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS walkers (
			id TEXT PRIMARY KEY,
			name TEXT UNIQUE NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			z INTEGER NOT NULL,
			data TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS worlds (
			name TEXT PRIMARY KEY,
			width INTEGER NOT NULL,
			height INTEGER NOT NULL,
			depth INTEGER NOT NULL,
			data TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) SaveWalker(walker *models.Walker) error {
	data, err := json.Marshal(walker)
	if err != nil {
		return fmt.Errorf("marshal walker %s: %w", walker.ID, err)
	}
	at := walker.Nav.Cell()
	_, err = s.db.Exec(`INSERT INTO walkers (id, name, x, y, z, data, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name, x = excluded.x, y = excluded.y, z = excluded.z,
			data = excluded.data, updated_at = excluded.updated_at`,
		walker.ID, walker.Name, at.X, at.Y, at.Z, string(data), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("save walker %s: %w", walker.ID, err)
	}
	return nil
}

func (s *SQLiteStore) LoadWalker(id string) (*models.Walker, error) {
	return s.loadWalker(`SELECT data FROM walkers WHERE id = ?`, id, fmt.Sprintf("walker %s", id))
}

func (s *SQLiteStore) LoadWalkerByName(name string) (*models.Walker, error) {
	return s.loadWalker(`SELECT data FROM walkers WHERE name = ?`, name, fmt.Sprintf("walker named %q", name))
}

func (s *SQLiteStore) loadWalker(query, arg, what string) (*models.Walker, error) {
	var data string
	if err := s.db.QueryRow(query, arg).Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", what, ErrNotFound)
		}
		return nil, fmt.Errorf("load %s: %w", what, err)
	}
	return decodeWalker([]byte(data))
}

func (s *SQLiteStore) ListWalkers() ([]*models.Walker, error) {
	rows, err := s.db.Query(`SELECT data FROM walkers ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list walkers: %w", err)
	}
	defer rows.Close()

	var walkers []*models.Walker
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		w, err := decodeWalker([]byte(data))
		if err != nil {
			return nil, err
		}
		walkers = append(walkers, w)
	}
	return walkers, rows.Err()
}

func (s *SQLiteStore) SaveWorld(name string, gameMap *models.GameMap) error {
	data, err := json.Marshal(gameMap)
	if err != nil {
		return fmt.Errorf("marshal world %s: %w", name, err)
	}
	_, err = s.db.Exec(`INSERT INTO worlds (name, width, height, depth, data, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			width = excluded.width, height = excluded.height, depth = excluded.depth,
			data = excluded.data, updated_at = excluded.updated_at`,
		name, gameMap.Width, gameMap.Height, gameMap.Depth, string(data), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("save world %s: %w", name, err)
	}
	return nil
}

func (s *SQLiteStore) LoadWorld(name string) (*models.GameMap, error) {
	var data string
	if err := s.db.QueryRow(`SELECT data FROM worlds WHERE name = ?`, name).Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("world %s: %w", name, ErrNotFound)
		}
		return nil, fmt.Errorf("load world %s: %w", name, err)
	}
	var m models.GameMap
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		return nil, fmt.Errorf("decode world %s: %w", name, err)
	}
	m.Name = name
	return &m, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
