package document

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/talgya/hexmap/internal/network"
	"github.com/talgya/hexmap/internal/world"
)

// legacyFile is the biomes.json layout written by the desktop editor.
type legacyFile struct {
	Biomes     map[string]string `json:"biomes"`
	RiverPaths struct {
		Rivers []TileRecord `json:"rivers"`
		Routes []TileRecord `json:"routes"`
	} `json:"river_paths"`
	Events map[string]Event `json:"events"`
}

// DecodeLegacy reads a biomes.json file. Terrain names are translated to
// their English form; unknown names are dropped.
func DecodeLegacy(r io.Reader) (*Document, error) {
	var lf legacyFile
	if err := json.NewDecoder(r).Decode(&lf); err != nil {
		return nil, fmt.Errorf("%w: legacy: %v", ErrMalformed, err)
	}

	doc := New()
	for key, name := range lf.Biomes {
		c, err := world.ParseCell(key)
		if err != nil {
			continue
		}
		t, err := world.ParseTerrain(name)
		if err != nil {
			continue
		}
		doc.Terrain[c.String()] = world.TerrainName(t)
	}
	doc.RiverTiles = lf.RiverPaths.Rivers
	doc.RoadTiles = lf.RiverPaths.Routes
	for key, ev := range lf.Events {
		if ev.Type == "" || ev.Type == "None" {
			continue
		}
		if doc.Events == nil {
			doc.Events = make(map[string]Event)
		}
		doc.Events[key] = ev
	}
	doc.normalize()
	return doc, nil
}

// FromTiles converts network tiles to records.
func FromTiles(tiles []network.Tile) []TileRecord {
	out := make([]TileRecord, len(tiles))
	for i, t := range tiles {
		conns := make([]world.Cell, len(t.Connections))
		copy(conns, t.Connections)
		out[i] = TileRecord{Position: t.Position, Connections: conns}
	}
	return out
}

// Tiles converts records back to network tiles.
func Tiles(records []TileRecord) []network.Tile {
	out := make([]network.Tile, len(records))
	for i, r := range records {
		conns := make([]world.Cell, len(r.Connections))
		copy(conns, r.Connections)
		out[i] = network.Tile{Position: r.Position, Connections: conns}
	}
	return out
}
