package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"burrow/server/config"
	"burrow/server/handlers"
	"burrow/server/mapdoc"
	"burrow/server/models"
	"burrow/server/persistence"
	"burrow/server/services"
)

var upgrader = websocket.Upgrader{
	// Clients are served from anywhere during development.
	CheckOrigin: func(r *http.Request) bool { return true },
}

func main() {
	configPath := flag.String("config", os.Getenv("BURROW_CONFIG"), "path to a YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		log.Fatalf("server: %v", err)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	dbLog := log.New(os.Stderr, "[store] ", log.LstdFlags)
	worldLog := log.New(os.Stderr, "[world] ", log.LstdFlags)
	netLog := log.New(os.Stderr, "[net] ", log.LstdFlags)

	db, err := persistence.Open(cfg.Storage, dbLog)
	if err != nil {
		return err
	}
	defer db.Close()

	gameMap, err := loadMap(cfg.World, db, worldLog)
	if err != nil {
		return err
	}

	world, err := services.NewWorldService(gameMap, cfg.World, worldLog)
	if err != nil {
		return err
	}

	snapshots := persistence.NewSnapshotter(cfg.Snapshot.Dir, worldLog)
	if err := restoreLatest(world, snapshots, worldLog); err != nil {
		return err
	}

	walkers, err := services.NewWalkerService(world, db, cfg.Sim.WalkerSpeed, worldLog)
	if err != nil {
		return err
	}
	clients := handlers.NewClientManager(cfg.Sim.ViewRadius, netLog)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			netLog.Printf("Failed to upgrade connection: %v", err)
			return
		}
		handlers.HandleClientConnection(conn, walkers, world, clients)
	})
	server := &http.Server{Addr: cfg.Addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	checkpoint := func() {
		if _, err := snapshots.Save(world.Snapshot()); err != nil {
			worldLog.Printf("snapshot failed: %v", err)
		}
		if err := walkers.SaveAll(); err != nil {
			dbLog.Printf("saving walkers failed: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		netLog.Printf("Server listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		every := uint64(cfg.Snapshot.EveryTicks)
		return world.Run(ctx, cfg.Sim.TickRateHz, func(tick uint64, events []services.Event) {
			clients.PublishTick(tick, events)
			if every > 0 && tick%every == 0 {
				checkpoint()
			}
		})
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	worldLog.Println("shutting down")
	checkpoint()
	return err
}

// loadMap picks the map file when configured, then the stored world, then a
// fresh open map of the configured size. The result is written back to db.
func loadMap(cfg config.World, db persistence.Storage, logger *log.Logger) (*models.GameMap, error) {
	var (
		m   *models.GameMap
		err error
	)
	switch {
	case cfg.MapFile != "":
		if m, err = mapdoc.LoadFile(cfg.MapFile); err != nil {
			return nil, err
		}
		m.Name = cfg.Name
		logger.Printf("map %s loaded from %s", m.Name, cfg.MapFile)
	default:
		m, err = db.LoadWorld(cfg.Name)
		switch {
		case errors.Is(err, persistence.ErrNotFound):
			m = models.NewGameMap(cfg.Name, cfg.Width, cfg.Height, cfg.Depth, models.TileFloor)
			m.Periodic = cfg.Periodic
			logger.Printf("created empty map %s %dx%dx%d", m.Name, m.Width, m.Height, m.Depth)
		case err != nil:
			return nil, err
		}
	}
	if err := db.SaveWorld(m.Name, m); err != nil {
		return nil, err
	}
	return m, nil
}

func restoreLatest(world *services.WorldService, snapshots *persistence.Snapshotter, logger *log.Logger) error {
	path, err := snapshots.Latest(world.Name())
	if err != nil || path == "" {
		return err
	}
	snap, err := persistence.ReadSnapshot(path)
	if err != nil {
		return err
	}
	logger.Printf("restoring from %s", path)
	return world.Restore(snap)
}
