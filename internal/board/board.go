// Package board ties painted terrain, the flow networks and per-cell events
// together behind the edit operations a map editor issues.
package board

import (
	"fmt"
	"log/slog"

	"github.com/talgya/hexmap/internal/document"
	"github.com/talgya/hexmap/internal/network"
	"github.com/talgya/hexmap/internal/world"
)

// Board is one editable map. It is not safe for concurrent use.
type Board struct {
	grid    world.Grid
	terrain *world.TerrainMap
	net     *network.Network
	events  map[world.Cell]document.Event

	selected    *world.Cell
	highlighted *world.Cell
}

// CityLinks lists the river and road cells next to a city, at most two of
// each.
type CityLinks struct {
	River []world.Cell `json:"river"`
	Road  []world.Cell `json:"road"`
}

// Stats summarizes the board for status reporting.
type Stats struct {
	Painted int `json:"painted"`
	Rivers  int `json:"rivers"`
	Roads   int `json:"roads"`
	Events  int `json:"events"`
}

// New creates an empty board over the grid.
func New(g world.Grid) *Board {
	terrain := world.NewTerrainMap(g)
	return &Board{
		grid:    g,
		terrain: terrain,
		net:     network.New(g, terrain),
		events:  make(map[world.Cell]document.Event),
	}
}

// FromDocument loads a board from a map document. Terrain and events
// outside the grid are skipped; the networks are taken as stored and
// repaired once.
func FromDocument(g world.Grid, doc *document.Document) (*Board, error) {
	cells, err := doc.TerrainCells()
	if err != nil {
		return nil, fmt.Errorf("load terrain: %w", err)
	}
	events, err := doc.EventCells()
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}

	b := New(g)
	skipped := 0
	for c, t := range cells {
		if !b.terrain.Set(c, t) {
			skipped++
		}
	}
	for c, ev := range events {
		if g.InBounds(c) {
			b.events[c] = ev
		} else {
			skipped++
		}
	}
	if skipped > 0 {
		slog.Warn("document entries outside the grid ignored", "grid", g.String(), "skipped", skipped)
	}

	b.net = network.Load(g, b.terrain, document.Tiles(doc.RiverTiles), document.Tiles(doc.RoadTiles))
	return b, nil
}

// Document exports terrain, both networks and events.
func (b *Board) Document() *document.Document {
	doc := document.New()
	for _, c := range b.terrain.Painted() {
		doc.Terrain[c.String()] = world.TerrainName(b.terrain.Terrain(c))
	}
	rivers, roads := b.net.Export()
	doc.RiverTiles = document.FromTiles(rivers)
	doc.RoadTiles = document.FromTiles(roads)
	if len(b.events) > 0 {
		doc.Events = make(map[string]document.Event, len(b.events))
		for c, ev := range b.events {
			doc.Events[c.String()] = ev
		}
	}
	return doc
}

// Grid returns the board's grid.
func (b *Board) Grid() world.Grid {
	return b.grid
}

// Terrain returns the terrain at c.
func (b *Board) Terrain(c world.Cell) world.Terrain {
	return b.terrain.Terrain(c)
}

// OnTerrainChanged repaints a cell. The cell's tiles are removed first,
// then the cell is rebuilt if it now carries a flow, and every neighboring
// flow tile is rebuilt so it can pick the cell up or let it go. Returns
// false for cells outside the grid or invalid terrain.
func (b *Board) OnTerrainChanged(c world.Cell, kind world.Terrain) bool {
	if !b.grid.InBounds(c) || !kind.Valid() {
		return false
	}

	b.net.RemoveTile(c)
	if kind == world.TerrainPlain {
		b.terrain.Unset(c)
	} else {
		b.terrain.Set(c, kind)
	}
	if kind.IsFlow() {
		b.net.Recompute(c, kind)
	}

	for _, nb := range b.grid.Neighbors(c) {
		nbKind := b.terrain.Terrain(nb)
		if !nbKind.IsFlow() {
			continue
		}
		if _, tracked := b.net.Tile(nbKind, nb); tracked {
			b.net.Recompute(nb, nbKind)
		}
	}
	for _, k := range network.Kinds {
		b.net.Reconcile(k)
	}

	slog.Debug("terrain changed", "cell", c.String(), "terrain", world.TerrainName(kind))
	return true
}

// Populate replaces the board's terrain with m, painting cell by cell so
// the networks are built the same way interactive edits build them.
func (b *Board) Populate(m *world.TerrainMap) {
	b.Clear()
	for _, c := range m.Painted() {
		b.OnTerrainChanged(c, m.Terrain(c))
	}
	slog.Info("board populated", "painted", b.terrain.PaintedCount(),
		"rivers", b.net.Len(world.TerrainRiver), "roads", b.net.Len(world.TerrainRoad))
}

// Generate replaces the board with a generated map and records each city's
// name as a City event.
func (b *Board) Generate(cfg world.GenConfig) []world.CitySite {
	m, sites := world.GenerateSites(b.grid, cfg)
	b.Populate(m)
	for _, site := range sites {
		b.events[site.Cell] = document.Event{Type: "City", Description: site.Name}
	}
	return sites
}

// Clear resets terrain, networks, events and selection.
func (b *Board) Clear() {
	b.terrain.Clear()
	b.net.Clear()
	b.events = make(map[world.Cell]document.Event)
	b.selected = nil
	b.highlighted = nil
}

// SegmentsFor returns the kind's network split into drawable chains.
func (b *Board) SegmentsFor(kind world.Terrain) []network.Segment {
	return b.net.AllSegments(kind)
}

// TraceSegment walks the kind's network from start.
func (b *Board) TraceSegment(kind world.Terrain, start world.Cell) network.Segment {
	return b.net.TraceSegment(kind, start)
}

// Connections returns the cells linked to c in the kind's network.
func (b *Board) Connections(kind world.Terrain, c world.Cell) []world.Cell {
	return b.net.Connections(kind, c)
}

// Tiles returns the kind's tiles in collection order.
func (b *Board) Tiles(kind world.Terrain) []network.Tile {
	return b.net.Tiles(kind)
}

// ValidMoves returns the neighbors of from painted with terrain.
func (b *Board) ValidMoves(from world.Cell, terrain world.Terrain) []world.Cell {
	var moves []world.Cell
	for _, nb := range b.grid.Neighbors(from) {
		if b.terrain.Terrain(nb) == terrain {
			moves = append(moves, nb)
		}
	}
	return moves
}

// CityConnections lists up to two river and two road neighbors of c.
func (b *Board) CityConnections(c world.Cell) CityLinks {
	links := CityLinks{River: []world.Cell{}, Road: []world.Cell{}}
	for _, nb := range b.grid.Neighbors(c) {
		switch b.terrain.Terrain(nb) {
		case world.TerrainRiver:
			if len(links.River) < network.MaxConnections {
				links.River = append(links.River, nb)
			}
		case world.TerrainRoad:
			if len(links.Road) < network.MaxConnections {
				links.Road = append(links.Road, nb)
			}
		}
	}
	return links
}

// Select marks c as the cell being edited.
func (b *Board) Select(c world.Cell) bool {
	if !b.grid.InBounds(c) {
		return false
	}
	b.selected = &c
	return true
}

// Selected returns the selected cell, if any.
func (b *Board) Selected() (world.Cell, bool) {
	if b.selected == nil {
		return world.Cell{}, false
	}
	return *b.selected, true
}

// Highlight marks c for the renderer to outline.
func (b *Board) Highlight(c world.Cell) bool {
	if !b.grid.InBounds(c) {
		return false
	}
	b.highlighted = &c
	return true
}

// Highlighted returns the highlighted cell, if any.
func (b *Board) Highlighted() (world.Cell, bool) {
	if b.highlighted == nil {
		return world.Cell{}, false
	}
	return *b.highlighted, true
}

// ClearHighlight removes the highlight.
func (b *Board) ClearHighlight() {
	b.highlighted = nil
}

// SetEvent attaches an event to c. An empty or "None" type removes it.
func (b *Board) SetEvent(c world.Cell, ev document.Event) bool {
	if !b.grid.InBounds(c) {
		return false
	}
	if ev.Type == "" || ev.Type == "None" {
		delete(b.events, c)
		return true
	}
	b.events[c] = ev
	return true
}

// Event returns the event attached to c.
func (b *Board) Event(c world.Cell) (document.Event, bool) {
	ev, ok := b.events[c]
	return ev, ok
}

// Stats returns painted, tile and event counts.
func (b *Board) Stats() Stats {
	return Stats{
		Painted: b.terrain.PaintedCount(),
		Rivers:  b.net.Len(world.TerrainRiver),
		Roads:   b.net.Len(world.TerrainRoad),
		Events:  len(b.events),
	}
}

func (b *Board) String() string {
	return fmt.Sprintf("Board(%s, %s)", b.grid, b.net)
}
