package persistence

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"burrow/server/models"
	"burrow/server/pathing"
)

func TestSnapshotRoundTrip(t *testing.T) {
	dir := t.TempDir()
	var logs strings.Builder
	snaps := NewSnapshotter(dir, log.New(&logs, "", 0))

	m := models.NewGameMap("warren", 8, 8, 1, models.TileGrass)
	require.NoError(t, m.SetTile(pathing.Cell{X: 4, Y: 4}, models.TileWall))
	hare := routedWalker(t, "w-1", "hare")

	path, err := snaps.Save(Snapshot{
		Header:  SnapshotHeader{World: "warren", Tick: 42},
		Map:     m,
		Walkers: []*models.Walker{hare},
	})
	require.NoError(t, err)
	assert.Contains(t, logs.String(), "tick=42")
	assert.Contains(t, logs.String(), "size=")

	snap, err := ReadSnapshot(path)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), snap.Header.Tick)
	assert.Equal(t, 1, snap.Header.Walkers)
	assert.Equal(t, models.TileWall, snap.Map.TileAt(pathing.Cell{X: 4, Y: 4}))
	require.Len(t, snap.Walkers, 1)
	dest, ok := snap.Walkers[0].Nav.Destination()
	require.True(t, ok)
	assert.Equal(t, pathing.Cell{X: 3, Y: 2}, dest)
	assert.InDelta(t, 0.25, snap.Walkers[0].Nav.Progress(), 1e-12)
}

func TestSnapshotterLatest(t *testing.T) {
	dir := t.TempDir()
	snaps := NewSnapshotter(dir, log.New(os.Stderr, "", 0))

	latest, err := snaps.Latest("warren")
	require.NoError(t, err)
	assert.Empty(t, latest)

	m := models.NewGameMap("warren", 2, 2, 1, models.TileFloor)
	for _, tick := range []uint64{9, 120, 33} {
		_, err := snaps.Save(Snapshot{Header: SnapshotHeader{World: "warren", Tick: tick}, Map: m})
		require.NoError(t, err)
	}
	_, err = snaps.Save(Snapshot{Header: SnapshotHeader{World: "other", Tick: 500}, Map: m})
	require.NoError(t, err)

	latest, err = snaps.Latest("warren")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "warren-000000000120.snap.zst"), latest)
}

func TestReadSnapshotRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.snap.zst")
	require.NoError(t, os.WriteFile(path, []byte("not zstd"), 0o644))
	_, err := ReadSnapshot(path)
	assert.Error(t, err)

	_, err = WriteSnapshot(path, Snapshot{Header: SnapshotHeader{Version: 99}})
	require.NoError(t, err)
	_, err = ReadSnapshot(path)
	assert.ErrorContains(t, err, "unsupported version")
}
