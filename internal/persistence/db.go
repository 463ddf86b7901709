// Package persistence provides SQLite-based map document storage.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/hexmap/internal/document"
	"github.com/talgya/hexmap/internal/world"
)

// ErrMapNotFound is returned when no stored map matches the id or name.
var ErrMapNotFound = errors.New("persistence: map not found")

// Network names used in the flow_tiles table.
const (
	networkRiver = "river"
	networkRoad  = "road"
)

// DB wraps a SQLite connection for map storage.
type DB struct {
	conn *sqlx.DB
}

// MapInfo describes one stored map.
type MapInfo struct {
	ID          string `db:"id" json:"id"`
	Name        string `db:"name" json:"name"`
	Width       int    `db:"width" json:"width"`
	Height      int    `db:"height" json:"height"`
	CreatedUnix int64  `db:"created_at" json:"createdAt"`
	UpdatedUnix int64  `db:"updated_at" json:"updatedAt"`
}

// Created returns the creation time.
func (m MapInfo) Created() time.Time { return time.Unix(m.CreatedUnix, 0) }

// Updated returns the time of the last save.
func (m MapInfo) Updated() time.Time { return time.Unix(m.UpdatedUnix, 0) }

// Grid returns the stored map's grid.
func (m MapInfo) Grid() (world.Grid, error) {
	return world.NewGrid(m.Width, m.Height)
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS maps (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		width INTEGER NOT NULL,
		height INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS terrain (
		map_id TEXT NOT NULL REFERENCES maps(id) ON DELETE CASCADE,
		pos_col INTEGER NOT NULL,
		pos_row INTEGER NOT NULL,
		kind TEXT NOT NULL,
		PRIMARY KEY (map_id, pos_col, pos_row)
	);

	CREATE TABLE IF NOT EXISTS flow_tiles (
		map_id TEXT NOT NULL REFERENCES maps(id) ON DELETE CASCADE,
		network TEXT NOT NULL,
		seq INTEGER NOT NULL,
		pos_col INTEGER NOT NULL,
		pos_row INTEGER NOT NULL,
		connections_json TEXT NOT NULL,
		PRIMARY KEY (map_id, network, seq)
	);

	CREATE TABLE IF NOT EXISTS events (
		map_id TEXT NOT NULL REFERENCES maps(id) ON DELETE CASCADE,
		pos_col INTEGER NOT NULL,
		pos_row INTEGER NOT NULL,
		event_type TEXT NOT NULL,
		description TEXT NOT NULL,
		PRIMARY KEY (map_id, pos_col, pos_row)
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_maps_updated ON maps(updated_at);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// CreateMap registers an empty map under a fresh id.
func (db *DB) CreateMap(name string, g world.Grid) (MapInfo, error) {
	now := time.Now().Unix()
	info := MapInfo{
		ID:          uuid.NewString(),
		Name:        name,
		Width:       g.Width,
		Height:      g.Height,
		CreatedUnix: now,
		UpdatedUnix: now,
	}
	_, err := db.conn.NamedExec(`INSERT INTO maps (id, name, width, height, created_at, updated_at)
		VALUES (:id, :name, :width, :height, :created_at, :updated_at)`, info)
	if err != nil {
		return MapInfo{}, fmt.Errorf("create map %q: %w", name, err)
	}
	slog.Info("map created", "id", info.ID, "name", name, "grid", g.String())
	return info, nil
}

// GetMap returns the map with the given id.
func (db *DB) GetMap(id string) (MapInfo, error) {
	var info MapInfo
	err := db.conn.Get(&info, "SELECT * FROM maps WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return MapInfo{}, fmt.Errorf("%w: id %s", ErrMapNotFound, id)
	}
	return info, err
}

// FindMapByName returns the map with the given name.
func (db *DB) FindMapByName(name string) (MapInfo, error) {
	var info MapInfo
	err := db.conn.Get(&info, "SELECT * FROM maps WHERE name = ?", name)
	if errors.Is(err, sql.ErrNoRows) {
		return MapInfo{}, fmt.Errorf("%w: %q", ErrMapNotFound, name)
	}
	return info, err
}

// ListMaps returns every stored map, most recently saved first.
func (db *DB) ListMaps() ([]MapInfo, error) {
	var maps []MapInfo
	err := db.conn.Select(&maps, "SELECT * FROM maps ORDER BY updated_at DESC, name")
	return maps, err
}

// SaveDocument replaces the stored contents of a map with doc.
func (db *DB) SaveDocument(id string, doc *document.Document) error {
	terrain, err := doc.TerrainCells()
	if err != nil {
		return fmt.Errorf("save terrain: %w", err)
	}
	events, err := doc.EventCells()
	if err != nil {
		return fmt.Errorf("save events: %w", err)
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec("UPDATE maps SET updated_at = ? WHERE id = ?", time.Now().Unix(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: id %s", ErrMapNotFound, id)
	}

	for _, table := range []string{"terrain", "flow_tiles", "events"} {
		if _, err := tx.Exec("DELETE FROM "+table+" WHERE map_id = ?", id); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	terrainStmt, err := tx.Preparex("INSERT INTO terrain (map_id, pos_col, pos_row, kind) VALUES (?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer terrainStmt.Close()
	for c, t := range terrain {
		if _, err := terrainStmt.Exec(id, c.Col, c.Row, world.TerrainName(t)); err != nil {
			return fmt.Errorf("insert terrain %s: %w", c, err)
		}
	}

	tileStmt, err := tx.Preparex(`INSERT INTO flow_tiles
		(map_id, network, seq, pos_col, pos_row, connections_json)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer tileStmt.Close()
	for _, set := range []struct {
		network string
		tiles   []document.TileRecord
	}{
		{networkRiver, doc.RiverTiles},
		{networkRoad, doc.RoadTiles},
	} {
		for seq, tile := range set.tiles {
			connsJSON, _ := json.Marshal(tile.Connections)
			_, err := tileStmt.Exec(id, set.network, seq, tile.Position.Col, tile.Position.Row, string(connsJSON))
			if err != nil {
				return fmt.Errorf("insert %s tile %s: %w", set.network, tile.Position, err)
			}
		}
	}

	for c, ev := range events {
		_, err := tx.Exec("INSERT INTO events (map_id, pos_col, pos_row, event_type, description) VALUES (?, ?, ?, ?, ?)",
			id, c.Col, c.Row, ev.Type, ev.Description)
		if err != nil {
			return fmt.Errorf("insert event %s: %w", c, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	slog.Info("map saved", "id", id, "terrain", len(terrain),
		"rivers", len(doc.RiverTiles), "roads", len(doc.RoadTiles), "events", len(events))
	return nil
}

type terrainRow struct {
	Col  int    `db:"pos_col"`
	Row  int    `db:"pos_row"`
	Kind string `db:"kind"`
}

type tileRow struct {
	Network     string `db:"network"`
	Col         int    `db:"pos_col"`
	Row         int    `db:"pos_row"`
	Connections string `db:"connections_json"`
}

type eventRow struct {
	Col         int    `db:"pos_col"`
	Row         int    `db:"pos_row"`
	Type        string `db:"event_type"`
	Description string `db:"description"`
}

// LoadDocument reads the stored contents of a map. Tiles come back in the
// order they were saved.
func (db *DB) LoadDocument(id string) (*document.Document, error) {
	if _, err := db.GetMap(id); err != nil {
		return nil, err
	}

	doc := document.New()

	var terrain []terrainRow
	if err := db.conn.Select(&terrain, "SELECT pos_col, pos_row, kind FROM terrain WHERE map_id = ?", id); err != nil {
		return nil, fmt.Errorf("load terrain: %w", err)
	}
	for _, r := range terrain {
		doc.Terrain[world.Cell{Col: r.Col, Row: r.Row}.String()] = r.Kind
	}

	var tiles []tileRow
	err := db.conn.Select(&tiles,
		"SELECT network, pos_col, pos_row, connections_json FROM flow_tiles WHERE map_id = ? ORDER BY network, seq", id)
	if err != nil {
		return nil, fmt.Errorf("load flow tiles: %w", err)
	}
	for _, r := range tiles {
		rec := document.TileRecord{Position: world.Cell{Col: r.Col, Row: r.Row}, Connections: []world.Cell{}}
		if err := json.Unmarshal([]byte(r.Connections), &rec.Connections); err != nil {
			return nil, fmt.Errorf("%w: tile %s: %v", document.ErrMalformed, rec.Position, err)
		}
		if rec.Connections == nil {
			rec.Connections = []world.Cell{}
		}
		switch r.Network {
		case networkRiver:
			doc.RiverTiles = append(doc.RiverTiles, rec)
		case networkRoad:
			doc.RoadTiles = append(doc.RoadTiles, rec)
		}
	}

	var events []eventRow
	if err := db.conn.Select(&events, "SELECT pos_col, pos_row, event_type, description FROM events WHERE map_id = ?", id); err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	if len(events) > 0 {
		doc.Events = make(map[string]document.Event, len(events))
		for _, r := range events {
			doc.Events[world.Cell{Col: r.Col, Row: r.Row}.String()] = document.Event{Type: r.Type, Description: r.Description}
		}
	}

	return doc, nil
}

// DeleteMap removes a map and everything stored for it.
func (db *DB) DeleteMap(id string) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"terrain", "flow_tiles", "events"} {
		if _, err := tx.Exec("DELETE FROM "+table+" WHERE map_id = ?", id); err != nil {
			return fmt.Errorf("delete %s: %w", table, err)
		}
	}
	res, err := tx.Exec("DELETE FROM maps WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: id %s", ErrMapNotFound, id)
	}
	return tx.Commit()
}

// SaveMeta stores a key-value pair.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM meta WHERE key = ?", key)
	return value, err
}
