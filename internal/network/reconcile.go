package network

import (
	"log/slog"

	"github.com/talgya/hexmap/internal/world"
)

// Reconcile repairs the kind's network in place. Invalid links are pruned,
// dangling links to cells of the network's own terrain get a minimal tile,
// and a breadth-first walk links partners back where capacity allows.
// Existing links always win over newly discovered ones, so running it
// twice leaves the graph unchanged.
func (n *Network) Reconcile(kind world.Terrain) {
	if coll := n.collectionFor(kind); coll != nil {
		n.reconcile(coll, kind)
	}
}

func (n *Network) reconcile(coll *collection, kind world.Terrain) {
	n.prune(coll, kind)
	if coll.len() == 0 {
		return
	}

	// Endpoints first, then anything left so disjoint chains and loops are
	// covered too.
	var starts []world.Cell
	coll.each(func(t *Tile) {
		if t.Degree() == 1 {
			starts = append(starts, t.Position)
		}
	})
	starts = append(starts, coll.order...)

	visited := make(map[world.Cell]bool, coll.len())
	for _, start := range starts {
		if visited[start] {
			continue
		}
		visited[start] = true
		queue := []world.Cell{start}

		for qi := 0; qi < len(queue); qi++ {
			current := coll.get(queue[qi])
			for _, target := range current.Connections {
				next := coll.get(target)
				if next == nil {
					continue // positional endpoint
				}
				if !next.Has(current.Position) && n.validLink(kind, target, current.Position) {
					if next.Full() {
						slog.Debug("capacity conflict, keeping existing links",
							"kind", world.TerrainName(kind), "from", current.Position.String(), "to", target.String())
					} else {
						next.Connections = append(next.Connections, current.Position)
					}
				}
				if !visited[target] {
					visited[target] = true
					queue = append(queue, target)
				}
			}
		}
	}
}

// prune drops out-of-grid tiles and every link that is out of grid,
// self-referencing, duplicated, incompatible or over capacity, then
// synthesizes tiles for dangling links to the network's own terrain.
func (n *Network) prune(coll *collection, kind world.Terrain) {
	var outside []world.Cell
	coll.each(func(t *Tile) {
		if !n.grid.InBounds(t.Position) {
			outside = append(outside, t.Position)
		}
	})
	for _, pos := range outside {
		slog.Debug("dropping out-of-grid flow tile", "kind", world.TerrainName(kind), "cell", pos.String())
		coll.remove(pos)
	}

	coll.each(func(t *Tile) {
		conns := make([]world.Cell, 0, MaxConnections)
		for _, c := range t.Connections {
			if len(conns) == MaxConnections {
				break
			}
			if contains(conns, c) || !n.validLink(kind, t.Position, c) {
				continue
			}
			conns = append(conns, c)
		}
		if len(conns) != len(t.Connections) {
			slog.Debug("pruned flow links", "kind", world.TerrainName(kind), "cell", t.Position.String(),
				"before", len(t.Connections), "after", len(conns))
		}
		t.Connections = conns
	})

	// Tiles synthesized here are appended to the order and visited as well.
	for i := 0; i < len(coll.order); i++ {
		t := coll.get(coll.order[i])
		for _, c := range t.Connections {
			if coll.get(c) == nil && n.terrain.Terrain(c) == kind {
				slog.Debug("synthesized flow tile for dangling link", "kind", world.TerrainName(kind), "cell", c.String())
				coll.put(&Tile{Position: c, Connections: []world.Cell{t.Position}})
			}
		}
	}
}

// validLink reports whether from may reference to in the kind's network.
// The network kind stands in for from's own terrain so endpoint tiles kept
// by older documents retain their links.
func (n *Network) validLink(kind world.Terrain, from, to world.Cell) bool {
	if from == to || !n.grid.InBounds(to) {
		return false
	}
	return world.Compatible(kind, n.terrain.Terrain(to))
}
