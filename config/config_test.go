package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().World, cfg.World)
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "burrow.yaml")
	raw := `
addr: ":9000"
storage:
  driver: sqlite
  file: data/burrow.db
world:
  name: maze
  width: 12
  height: 8
  diagonal: false
  metric: heightmap
  height_scale: 0.5
  beacons:
    - {name: exit, char: E, x: 11, y: 7}
sim:
  tick_rate_hz: 20
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, "maze", cfg.World.Name)
	assert.False(t, cfg.World.Diagonal)
	assert.Equal(t, 0.5, cfg.World.HeightScale)
	assert.Equal(t, []Beacon{{Name: "exit", Char: "E", X: 11, Y: 7}}, cfg.World.Beacons)
	assert.Equal(t, 20, cfg.Sim.TickRateHz)
	assert.Equal(t, Default().Sim.WalkerSpeed, cfg.Sim.WalkerSpeed, "unset keys keep defaults")
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	env := map[string]string{"PORT": "7000", "DB_TYPE": "postgres", "DATABASE_URL": "postgres://x"}
	cfg.ApplyEnv(func(k string) string { return env[k] })

	assert.Equal(t, ":7000", cfg.Addr)
	assert.Equal(t, "postgres", cfg.Storage.Driver)
	assert.Equal(t, "postgres://x", cfg.Storage.DSN)
	assert.Equal(t, "db.json", cfg.Storage.File)
}

func TestValidate(t *testing.T) {
	tests := map[string]func(*Config){
		"driver":     func(c *Config) { c.Storage.Driver = "mongo" },
		"file":       func(c *Config) { c.Storage.File = "" },
		"size":       func(c *Config) { c.World.Width = 0 },
		"metric":     func(c *Config) { c.World.Metric = "taxicab" },
		"expansions": func(c *Config) { c.World.MaxExpansions = -1 },
		"scale":      func(c *Config) { c.World.HeightScale = -1 },
		"beacon":     func(c *Config) { c.World.Beacons = []Beacon{{Name: "gate"}, {Name: "gate"}} },
		"tick rate":  func(c *Config) { c.Sim.TickRateHz = 0 },
		"speed":      func(c *Config) { c.Sim.WalkerSpeed = 0 },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
		})
	}

	cfg := Default()
	cfg.World.Width = 0
	cfg.World.MapFile = "maps/warren.txt"
	assert.NoError(t, cfg.Validate(), "size comes from the map file")
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("world: [unclosed"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
