// Command hexmapd serves an editable hex map with river and road networks.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/talgya/hexmap/internal/api"
	"github.com/talgya/hexmap/internal/board"
	"github.com/talgya/hexmap/internal/document"
	"github.com/talgya/hexmap/internal/persistence"
	"github.com/talgya/hexmap/internal/world"
)

// config is read once from the environment.
type config struct {
	DBPath       string
	Port         int
	AdminKey     string
	MapName      string
	Width        int
	Height       int
	Seed         int64
	ImportPath   string
	SnapshotDir  string
	AutosaveEach time.Duration
	LogLevel     slog.Level
}

func loadConfig() config {
	cfg := config{
		DBPath:       envOr("HEXMAP_DB", "data/hexmap.db"),
		Port:         envInt("HEXMAP_PORT", 8080),
		AdminKey:     os.Getenv("HEXMAP_ADMIN_KEY"),
		MapName:      envOr("HEXMAP_MAP", "default"),
		Width:        envInt("HEXMAP_WIDTH", world.DefaultWidth),
		Height:       envInt("HEXMAP_HEIGHT", world.DefaultHeight),
		Seed:         int64(envInt("HEXMAP_SEED", 0)),
		ImportPath:   os.Getenv("HEXMAP_IMPORT"),
		SnapshotDir:  envOr("HEXMAP_SNAPSHOTS", "data/snapshots"),
		AutosaveEach: 5 * time.Minute,
		LogLevel:     slog.LevelInfo,
	}
	if d, err := time.ParseDuration(os.Getenv("HEXMAP_AUTOSAVE")); err == nil && d > 0 {
		cfg.AutosaveEach = d
	}
	if lvl := os.Getenv("HEXMAP_LOG_LEVEL"); lvl != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(lvl)); err != nil {
			cfg.LogLevel = slog.LevelInfo
		}
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

// newLogger uses readable text on a terminal and JSON lines otherwise.
func newLogger(w io.Writer, fd uintptr, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func main() {
	cfg := loadConfig()
	slog.SetDefault(newLogger(os.Stdout, os.Stdout.Fd(), cfg.LogLevel))

	slog.Info("hexmap: hex map flow network service")

	// ── Database ──────────────────────────────────────────────────────
	os.MkdirAll(filepath.Dir(cfg.DBPath), 0755)
	db, err := persistence.Open(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database opened", "path", cfg.DBPath)

	// ── Map ───────────────────────────────────────────────────────────
	info, b, err := openBoard(db, cfg)
	if err != nil {
		slog.Error("failed to open map", "error", err)
		os.Exit(1)
	}
	if err := db.SaveMeta("active_map", info.ID); err != nil {
		slog.Warn("could not record active map", "error", err)
	}

	stats := b.Stats()
	slog.Info("map ready",
		"name", info.Name,
		"id", info.ID,
		"grid", b.Grid().String(),
		"painted", stats.Painted,
		"rivers", stats.Rivers,
		"roads", stats.Roads,
		"events", stats.Events,
	)

	// ── HTTP API ──────────────────────────────────────────────────────
	if cfg.AdminKey == "" {
		slog.Warn("HEXMAP_ADMIN_KEY not set, admin POST endpoints will be disabled")
	}
	apiServer := &api.Server{
		Board:       b,
		DB:          db,
		MapID:       info.ID,
		Port:        cfg.Port,
		AdminKey:    cfg.AdminKey,
		SnapshotDir: cfg.SnapshotDir,
	}
	if err := apiServer.Save(); err != nil {
		slog.Error("initial save failed", "error", err)
	}
	apiServer.Start()

	// ── Run ───────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("\nMap %q is open: %d painted cells, %d river tiles, %d road tiles.\n",
		info.Name, stats.Painted, stats.Rivers, stats.Roads)
	fmt.Printf("API: http://localhost:%d/api/v1/status\n", cfg.Port)

	autosave := time.NewTicker(cfg.AutosaveEach)
	defer autosave.Stop()
	for running := true; running; {
		select {
		case <-ctx.Done():
			slog.Info("received signal, shutting down")
			running = false
		case <-autosave.C:
			if err := apiServer.Save(); err != nil {
				slog.Error("autosave failed", "error", err)
			}
		}
	}

	// Final save on shutdown.
	slog.Info("final save...")
	if err := apiServer.Save(); err != nil {
		slog.Error("final save failed", "error", err)
	}
	fmt.Println("Map saved.")
}

// openBoard finds or creates the configured map and loads it. A legacy
// import replaces the stored contents; an empty map is generated from the
// seed when one is set.
func openBoard(db *persistence.DB, cfg config) (persistence.MapInfo, *board.Board, error) {
	info, err := db.FindMapByName(cfg.MapName)
	if errors.Is(err, persistence.ErrMapNotFound) {
		g, gerr := world.NewGrid(cfg.Width, cfg.Height)
		if gerr != nil {
			return info, nil, gerr
		}
		info, err = db.CreateMap(cfg.MapName, g)
	}
	if err != nil {
		return info, nil, err
	}

	g, err := info.Grid()
	if err != nil {
		return info, nil, err
	}

	var doc *document.Document
	if cfg.ImportPath != "" {
		f, err := os.Open(cfg.ImportPath)
		if err != nil {
			return info, nil, fmt.Errorf("import: %w", err)
		}
		doc, err = document.DecodeLegacy(f)
		f.Close()
		if err != nil {
			return info, nil, fmt.Errorf("import %s: %w", cfg.ImportPath, err)
		}
		slog.Info("imported legacy map", "path", cfg.ImportPath, "terrain", len(doc.Terrain))
	} else {
		doc, err = db.LoadDocument(info.ID)
		if err != nil {
			return info, nil, err
		}
	}

	b, err := board.FromDocument(g, doc)
	if err != nil {
		return info, nil, err
	}

	if b.Stats().Painted == 0 && cfg.Seed != 0 {
		gen := world.DefaultGenConfig()
		gen.Seed = cfg.Seed
		slog.Info("generating map", "seed", cfg.Seed)
		b.Generate(gen)
	}
	return info, b, nil
}
