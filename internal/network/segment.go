package network

import "github.com/talgya/hexmap/internal/world"

// Segment is an ordered walk of linked tiles, drawable as one polyline.
// A city or marsh that closes a segment without being tracked as a tile
// appears as a Tile with no connections.
type Segment []Tile

// Positions returns the cells of the segment in walk order.
func (s Segment) Positions() []world.Cell {
	out := make([]world.Cell, len(s))
	for i, t := range s {
		out[i] = t.Position
	}
	return out
}

// TraceSegment walks from start along the first unvisited link at each
// step. The walk ends when no unvisited link remains, after a city or
// marsh, or when it would revisit a cell.
func (n *Network) TraceSegment(kind world.Terrain, start world.Cell) Segment {
	coll := n.collectionFor(kind)
	if coll == nil {
		return nil
	}
	return n.trace(coll, start, make(map[world.Cell]bool))
}

// AllSegments traces from every not-yet-visited tile in collection order,
// partitioning the kind's tiles into chains.
func (n *Network) AllSegments(kind world.Terrain) []Segment {
	coll := n.collectionFor(kind)
	if coll == nil {
		return nil
	}

	var segments []Segment
	visited := make(map[world.Cell]bool, coll.len())
	for _, pos := range coll.order {
		if visited[pos] {
			continue
		}
		if seg := n.trace(coll, pos, visited); len(seg) > 0 {
			segments = append(segments, seg)
		}
	}
	return segments
}

func (n *Network) trace(coll *collection, start world.Cell, visited map[world.Cell]bool) Segment {
	var seg Segment
	current := start

	for !visited[current] {
		tile := coll.get(current)

		if n.terrain.Terrain(current).IsEndpoint() {
			// Untracked endpoints stay unvisited so other chains may end there too.
			if tile != nil {
				visited[current] = true
				seg = append(seg, tile.clone())
			} else {
				seg = append(seg, Tile{Position: current, Connections: []world.Cell{}})
			}
			break
		}
		if tile == nil {
			break
		}

		visited[current] = true
		seg = append(seg, tile.clone())

		next, found := world.Cell{}, false
		for _, c := range tile.Connections {
			if !visited[c] {
				next, found = c, true
				break
			}
		}
		if !found {
			break
		}
		current = next
	}
	return seg
}
