package persistence

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"burrow/server/config"
	"burrow/server/models"
	"burrow/server/pathing"
)

// routedWalker returns a walker a quarter of the way into a two-hop route.
func routedWalker(t *testing.T, id, name string) *models.Walker {
	t.Helper()
	w := models.NewWalker(id, name, pathing.Cell{X: 1, Y: 1}, 2)
	nav := `{"at":{"x":1,"y":1,"z":0},"route":[{"x":2,"y":1,"z":0},{"x":3,"y":2,"z":0}],"hops":[1,1.5],"progress":0.25}`
	require.NoError(t, json.Unmarshal([]byte(nav), &w.Nav))
	return w
}

func exerciseStorage(t *testing.T, store Storage) {
	hare := routedWalker(t, "w-1", "hare")
	mole := models.NewWalker("w-2", "mole", pathing.Cell{}, 1)
	require.NoError(t, store.SaveWalker(hare))
	require.NoError(t, store.SaveWalker(mole))

	got, err := store.LoadWalker("w-1")
	require.NoError(t, err)
	assert.Equal(t, "hare", got.Name)
	assert.Equal(t, pathing.Cell{X: 1, Y: 1}, got.Nav.Cell())
	assert.Equal(t, hare.Nav.Route().Cells(), got.Nav.Route().Cells())
	assert.InDelta(t, 0.25, got.Nav.Progress(), 1e-12)

	byName, err := store.LoadWalkerByName("mole")
	require.NoError(t, err)
	assert.Equal(t, "w-2", byName.ID)
	assert.True(t, byName.Nav.Stationary())

	// loaded walkers are independent copies
	got.Name = "changed"
	again, err := store.LoadWalker("w-1")
	require.NoError(t, err)
	assert.Equal(t, "hare", again.Name)

	all, err := store.ListWalkers()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "hare", all[0].Name)
	assert.Equal(t, "mole", all[1].Name)

	_, err = store.LoadWalker("missing")
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = store.LoadWalkerByName("missing")
	assert.ErrorIs(t, err, ErrNotFound)

	m := models.NewGameMap("warren", 3, 2, 1, models.TileFloor)
	require.NoError(t, m.SetTile(pathing.Cell{X: 1}, models.TileWall))
	m.Periodic = true
	require.NoError(t, store.SaveWorld("warren", m))

	world, err := store.LoadWorld("warren")
	require.NoError(t, err)
	assert.Equal(t, "warren", world.Name)
	assert.True(t, world.Periodic)
	assert.Equal(t, models.TileWall, world.TileAt(pathing.Cell{X: 1}))
	require.NoError(t, world.Validate())

	_, err = store.LoadWorld("nowhere")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestJSONStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db", "burrow.json")
	store, err := NewJSONStore(path)
	require.NoError(t, err)
	exerciseStorage(t, store)
	require.NoError(t, store.Close())

	reopened, err := NewJSONStore(path)
	require.NoError(t, err)
	w, err := reopened.LoadWalkerByName("hare")
	require.NoError(t, err)
	assert.Equal(t, 2, w.Nav.Route().Len())
}

func TestJSONStoreRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "burrow.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	_, err := NewJSONStore(path)
	assert.Error(t, err)
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index", "burrow.sqlite")
	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer store.Close()
	exerciseStorage(t, store)
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("BURROW_TEST_POSTGRES")
	if dsn == "" {
		t.Skip("BURROW_TEST_POSTGRES not set")
	}
	store, err := NewPostgresStore(dsn, nil)
	require.NoError(t, err)
	defer store.Close()
	_, err = store.db.Exec(`DELETE FROM walkers; DELETE FROM worlds;`)
	require.NoError(t, err)
	exerciseStorage(t, store)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(config.Storage{Driver: "json", File: filepath.Join(dir, "a.json")}, nil)
	require.NoError(t, err)
	assert.IsType(t, &JSONStore{}, s)

	s, err = Open(config.Storage{Driver: "sqlite", File: filepath.Join(dir, "a.sqlite")}, nil)
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open(config.Storage{Driver: "etcd"}, nil)
	assert.Error(t, err)
}
