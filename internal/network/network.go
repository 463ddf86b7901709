// Package network maintains the river and road connection graphs of a hex
// map. Each flow tile links to at most two neighbors; links are kept
// symmetric where capacity allows, and every edit ends with a repair pass
// so the map always has a consistent, drawable network.
package network

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/talgya/hexmap/internal/world"
)

// Kinds lists the flow kinds in a stable order.
var Kinds = []world.Terrain{world.TerrainRiver, world.TerrainRoad}

// TerrainSource answers terrain lookups for the network.
type TerrainSource interface {
	Terrain(c world.Cell) world.Terrain
}

// Network holds the river and road collections of one map. All mutation
// goes through its methods; callers only ever see copies of tiles.
type Network struct {
	grid    world.Grid
	terrain TerrainSource
	rivers  *collection
	roads   *collection
}

// New creates an empty network over the grid.
func New(g world.Grid, terrain TerrainSource) *Network {
	return &Network{
		grid:    g,
		terrain: terrain,
		rivers:  newCollection(),
		roads:   newCollection(),
	}
}

// Load builds a network from persisted tiles without recomputing them,
// then runs one repair pass per network.
func Load(g world.Grid, terrain TerrainSource, rivers, roads []Tile) *Network {
	n := New(g, terrain)
	for _, t := range rivers {
		tile := t.clone()
		n.rivers.put(&tile)
	}
	for _, t := range roads {
		tile := t.clone()
		n.roads.put(&tile)
	}
	n.Reconcile(world.TerrainRiver)
	n.Reconcile(world.TerrainRoad)
	return n
}

// Export returns copies of both collections in collection order.
func (n *Network) Export() (rivers, roads []Tile) {
	return n.rivers.snapshot(), n.roads.snapshot()
}

// Grid returns the grid the network was built for.
func (n *Network) Grid() world.Grid {
	return n.grid
}

func (n *Network) collectionFor(kind world.Terrain) *collection {
	switch kind {
	case world.TerrainRiver:
		return n.rivers
	case world.TerrainRoad:
		return n.roads
	}
	return nil
}

// Tile returns a copy of the tile at c in the kind's network.
func (n *Network) Tile(kind world.Terrain, c world.Cell) (Tile, bool) {
	coll := n.collectionFor(kind)
	if coll == nil {
		return Tile{}, false
	}
	t := coll.get(c)
	if t == nil {
		return Tile{}, false
	}
	return t.clone(), true
}

// Tiles returns copies of the kind's tiles in collection order.
func (n *Network) Tiles(kind world.Terrain) []Tile {
	coll := n.collectionFor(kind)
	if coll == nil {
		return nil
	}
	return coll.snapshot()
}

// Connections returns the positions linked to c, or nil.
func (n *Network) Connections(kind world.Terrain, c world.Cell) []world.Cell {
	t, ok := n.Tile(kind, c)
	if !ok {
		return nil
	}
	return t.Connections
}

// Len returns the number of tiles in the kind's network.
func (n *Network) Len(kind world.Terrain) int {
	coll := n.collectionFor(kind)
	if coll == nil {
		return 0
	}
	return coll.len()
}

// Recompute rebuilds the tile at cell for the kind's network. Existing
// mutual links are kept; free slots are filled from compatible neighbors,
// horizontal neighbors first. Partners are then linked back and the whole
// network is repaired.
func (n *Network) Recompute(cell world.Cell, kind world.Terrain) {
	coll := n.collectionFor(kind)
	if coll == nil || !n.grid.InBounds(cell) {
		return
	}

	neighbors := n.grid.Neighbors(cell)

	kept := make([]world.Cell, 0, MaxConnections)
	for _, nb := range neighbors {
		if len(kept) == MaxConnections {
			break
		}
		if t := coll.get(nb); t != nil && t.Has(cell) {
			kept = append(kept, nb)
		}
	}

	conns := kept
	for _, nb := range n.candidates(coll, kind, cell, neighbors, kept) {
		if len(conns) == MaxConnections {
			break
		}
		conns = append(conns, nb)
	}

	coll.put(&Tile{Position: cell, Connections: conns})
	for _, target := range conns {
		n.ensureBidirectional(coll, kind, cell, target)
	}

	slog.Debug("flow tile recomputed", "kind", world.TerrainName(kind), "cell", cell.String(), "connections", len(conns))
	n.reconcile(coll, kind)
}

// candidates returns the neighbors that may take a new link from cell,
// ranked with same-row neighbors first and table order as tie-break.
func (n *Network) candidates(coll *collection, kind world.Terrain, cell world.Cell, neighbors, kept []world.Cell) []world.Cell {
	type ranked struct {
		cell world.Cell
		rank int
	}
	var out []ranked
	for _, nb := range neighbors {
		if contains(kept, nb) {
			continue
		}
		if !world.Compatible(kind, n.terrain.Terrain(nb)) {
			continue
		}
		// A full partner could never link back.
		if t := coll.get(nb); t != nil && !t.Has(cell) && t.Full() {
			continue
		}
		rank := 2
		if nb.Row == cell.Row {
			rank = 1
		}
		out = append(out, ranked{cell: nb, rank: rank})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].rank < out[j].rank
	})

	cells := make([]world.Cell, len(out))
	for i, r := range out {
		cells[i] = r.cell
	}
	return cells
}

// EnsureBidirectional links b back to a in the kind's network.
func (n *Network) EnsureBidirectional(kind world.Terrain, a, b world.Cell) {
	if coll := n.collectionFor(kind); coll != nil {
		n.ensureBidirectional(coll, kind, a, b)
	}
}

// ensureBidirectional creates a minimal tile for b when b carries the
// network's own terrain, otherwise appends a to b while b has room. It
// never evicts one of b's existing links. Cities and marshes stay
// positional endpoints.
func (n *Network) ensureBidirectional(coll *collection, kind world.Terrain, a, b world.Cell) {
	t := coll.get(b)
	if t == nil {
		if n.terrain.Terrain(b) == kind && n.grid.InBounds(b) {
			coll.put(&Tile{Position: b, Connections: []world.Cell{a}})
		}
		return
	}
	if t.Has(a) {
		return
	}
	if t.Full() {
		slog.Debug("flow link left one-way, partner full",
			"kind", world.TerrainName(kind), "from", a.String(), "to", b.String())
		return
	}
	t.Connections = append(t.Connections, a)
}

// RemoveTile deletes the tile at c from both networks and prunes every
// reference to c.
func (n *Network) RemoveTile(c world.Cell) {
	for _, coll := range []*collection{n.rivers, n.roads} {
		coll.remove(c)
		coll.each(func(t *Tile) {
			t.drop(c)
		})
	}
}

// Clear drops every tile from both networks.
func (n *Network) Clear() {
	n.rivers = newCollection()
	n.roads = newCollection()
}

func (n *Network) String() string {
	return fmt.Sprintf("Network(rivers=%d, roads=%d)", n.rivers.len(), n.roads.len())
}

func contains(cells []world.Cell, c world.Cell) bool {
	for _, x := range cells {
		if x == c {
			return true
		}
	}
	return false
}
