package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"burrow/server/pathing"
)

type Config struct {
	Addr     string   `yaml:"addr"`
	Storage  Storage  `yaml:"storage"`
	World    World    `yaml:"world"`
	Sim      Sim      `yaml:"sim"`
	Snapshot Snapshot `yaml:"snapshot"`
}

type Storage struct {
	Driver string `yaml:"driver"` // json, postgres or sqlite
	DSN    string `yaml:"dsn"`
	File   string `yaml:"file"`
}

type World struct {
	Name            string   `yaml:"name"`
	MapFile         string   `yaml:"map_file"`
	Width           int      `yaml:"width"`
	Height          int      `yaml:"height"`
	Depth           int      `yaml:"depth"`
	Periodic        bool     `yaml:"periodic"`
	Diagonal        bool     `yaml:"diagonal"`
	StrictDiagonals bool     `yaml:"strict_diagonals"`
	Metric          string   `yaml:"metric"`
	HeightScale     float64  `yaml:"height_scale"`
	MaxExpansions   int      `yaml:"max_expansions"`
	ReplanOnBlock   bool     `yaml:"replan_on_block"`
	Beacons         []Beacon `yaml:"beacons"`
}

// Beacon is a static marker placed when the world loads.
type Beacon struct {
	Name  string `yaml:"name"`
	Char  string `yaml:"char"`
	Color []int  `yaml:"color"`
	X     int    `yaml:"x"`
	Y     int    `yaml:"y"`
	Z     int    `yaml:"z"`
}

type Sim struct {
	TickRateHz  int     `yaml:"tick_rate_hz"`
	WalkerSpeed float64 `yaml:"walker_speed"` // cells per second
	ViewRadius  int     `yaml:"view_radius"`
}

type Snapshot struct {
	Dir        string `yaml:"dir"`
	EveryTicks int    `yaml:"every_ticks"`
}

var ErrInvalid = errors.New("invalid config")

func Default() Config {
	return Config{
		Addr: ":8080",
		Storage: Storage{
			Driver: "json",
			File:   "db.json",
			DSN:    "host=localhost user=burrow password=burrow dbname=burrow sslmode=disable",
		},
		World: World{
			Name:          "warren",
			Width:         50,
			Height:        50,
			Depth:         1,
			Diagonal:      true,
			Metric:        pathing.MetricDirect,
			HeightScale:   1,
			MaxExpansions: 100000,
		},
		Sim: Sim{
			TickRateHz:  10,
			WalkerSpeed: 4,
			ViewRadius:  10,
		},
		Snapshot: Snapshot{
			Dir:        "data/snapshots",
			EveryTicks: 600,
		},
	}
}

// Load reads a YAML config on top of the defaults. An empty path or a missing
// file yields the defaults. Environment overrides are applied last.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) != "" {
		raw, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return cfg, fmt.Errorf("%s: %w", path, err)
			}
		case !os.IsNotExist(err):
			return cfg, err
		}
	}
	cfg.ApplyEnv(os.Getenv)
	return cfg, cfg.Validate()
}

// ApplyEnv applies the PORT, DB_TYPE, DATABASE_URL and DB_FILE overrides.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if port := getenv("PORT"); port != "" {
		c.Addr = ":" + port
	}
	if dbType := getenv("DB_TYPE"); dbType != "" {
		c.Storage.Driver = dbType
	}
	if dsn := getenv("DATABASE_URL"); dsn != "" {
		c.Storage.DSN = dsn
	}
	if file := getenv("DB_FILE"); file != "" {
		c.Storage.File = file
	}
}

func (c Config) Validate() error {
	switch c.Storage.Driver {
	case "json", "postgres", "sqlite":
	default:
		return fmt.Errorf("%w: storage.driver %q", ErrInvalid, c.Storage.Driver)
	}
	if c.Storage.Driver != "postgres" && strings.TrimSpace(c.Storage.File) == "" {
		return fmt.Errorf("%w: storage.file is required for %s", ErrInvalid, c.Storage.Driver)
	}
	if c.World.MapFile == "" {
		if c.World.Width <= 0 || c.World.Height <= 0 || c.World.Depth <= 0 {
			return fmt.Errorf("%w: world size %dx%dx%d", ErrInvalid, c.World.Width, c.World.Height, c.World.Depth)
		}
	}
	switch c.World.Metric {
	case pathing.MetricDirect, pathing.MetricMax, pathing.MetricHeightMap:
	default:
		return fmt.Errorf("%w: world.metric %q", ErrInvalid, c.World.Metric)
	}
	if c.World.HeightScale < 0 {
		return fmt.Errorf("%w: world.height_scale must not be negative", ErrInvalid)
	}
	seen := make(map[string]bool, len(c.World.Beacons))
	for _, b := range c.World.Beacons {
		if strings.TrimSpace(b.Name) == "" || seen[b.Name] {
			return fmt.Errorf("%w: beacon name %q missing or repeated", ErrInvalid, b.Name)
		}
		seen[b.Name] = true
	}
	if c.World.MaxExpansions < 0 {
		return fmt.Errorf("%w: world.max_expansions must not be negative", ErrInvalid)
	}
	if c.Sim.TickRateHz <= 0 {
		return fmt.Errorf("%w: sim.tick_rate_hz must be positive", ErrInvalid)
	}
	if c.Sim.WalkerSpeed <= 0 {
		return fmt.Errorf("%w: sim.walker_speed must be positive", ErrInvalid)
	}
	if c.Snapshot.EveryTicks < 0 {
		return fmt.Errorf("%w: snapshot.every_ticks must not be negative", ErrInvalid)
	}
	return nil
}
