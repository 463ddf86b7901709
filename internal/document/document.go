// Package document defines the persisted shape of a map: painted terrain,
// the two flow collections and per-cell events.
package document

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/talgya/hexmap/internal/world"
)

// ErrMalformed indicates a document that cannot be decoded.
var ErrMalformed = errors.New("document: malformed map document")

// Event tiers recognised by the map renderer.
var EventTypes = []string{"None", "City", "Tier1", "Tier2", "Tier3", "Tier4"}

// Event is an opaque per-cell annotation carried through unchanged.
type Event struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

// TileRecord is the serialized form of a flow tile.
type TileRecord struct {
	Position    world.Cell   `json:"position"`
	Connections []world.Cell `json:"connections"`
}

// Document is a whole map. Terrain and events are keyed by "(col, row)".
type Document struct {
	Terrain    map[string]string `json:"terrain"`
	RiverTiles []TileRecord      `json:"riverTiles"`
	RoadTiles  []TileRecord      `json:"roadTiles"`
	Events     map[string]Event  `json:"events,omitempty"`
}

// New returns an empty document.
func New() *Document {
	return &Document{
		Terrain:    make(map[string]string),
		RiverTiles: []TileRecord{},
		RoadTiles:  []TileRecord{},
	}
}

// Decode reads a document from r.
func Decode(r io.Reader) (*Document, error) {
	doc := New()
	if err := json.NewDecoder(r).Decode(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	doc.normalize()
	return doc, nil
}

// Encode writes the document to w as indented JSON.
func (d *Document) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(d)
}

// ReadFile decodes the document stored at path.
func ReadFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// WriteFile encodes the document to path, replacing any existing file.
func (d *Document) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	if err := d.Encode(f); err != nil {
		f.Close()
		return fmt.Errorf("encode document: %w", err)
	}
	return f.Close()
}

// TerrainCells parses the terrain mapping. Entries with a malformed cell
// key or unknown terrain name are reported as an error.
func (d *Document) TerrainCells() (map[world.Cell]world.Terrain, error) {
	out := make(map[world.Cell]world.Terrain, len(d.Terrain))
	for key, name := range d.Terrain {
		c, err := world.ParseCell(key)
		if err != nil {
			return nil, err
		}
		t, err := world.ParseTerrain(name)
		if err != nil {
			return nil, fmt.Errorf("cell %s: %w", key, err)
		}
		out[c] = t
	}
	return out, nil
}

// EventCells parses the event mapping keys.
func (d *Document) EventCells() (map[world.Cell]Event, error) {
	out := make(map[world.Cell]Event, len(d.Events))
	for key, ev := range d.Events {
		c, err := world.ParseCell(key)
		if err != nil {
			return nil, err
		}
		out[c] = ev
	}
	return out, nil
}

// normalize replaces nil collections so documents compare and encode the
// same whether they were decoded or built in memory.
func (d *Document) normalize() {
	if d.Terrain == nil {
		d.Terrain = make(map[string]string)
	}
	if d.RiverTiles == nil {
		d.RiverTiles = []TileRecord{}
	}
	if d.RoadTiles == nil {
		d.RoadTiles = []TileRecord{}
	}
	for _, tiles := range [][]TileRecord{d.RiverTiles, d.RoadTiles} {
		for i := range tiles {
			if tiles[i].Connections == nil {
				tiles[i].Connections = []world.Cell{}
			}
		}
	}
	if len(d.Events) == 0 {
		d.Events = nil
	}
}
