package network

import "github.com/talgya/hexmap/internal/world"

// MaxConnections bounds the degree of every flow tile.
const MaxConnections = 2

// Tile is a cell taking part in a river or road network, with up to
// MaxConnections linked neighbor positions.
type Tile struct {
	Position    world.Cell   `json:"position"`
	Connections []world.Cell `json:"connections"`
}

// Degree returns the number of connections held by the tile.
func (t *Tile) Degree() int {
	return len(t.Connections)
}

// Has reports whether c is among the tile's connections.
func (t *Tile) Has(c world.Cell) bool {
	for _, conn := range t.Connections {
		if conn == c {
			return true
		}
	}
	return false
}

// Full reports whether the tile is at capacity.
func (t *Tile) Full() bool {
	return len(t.Connections) >= MaxConnections
}

func (t *Tile) drop(c world.Cell) bool {
	for i, conn := range t.Connections {
		if conn == c {
			t.Connections = append(t.Connections[:i], t.Connections[i+1:]...)
			return true
		}
	}
	return false
}

func (t *Tile) clone() Tile {
	return Tile{
		Position:    t.Position,
		Connections: append([]world.Cell{}, t.Connections...),
	}
}

// collection is one flow network's tiles, keyed by position and kept in
// insertion order. Replacing a tile moves it to the end.
type collection struct {
	order []world.Cell
	tiles map[world.Cell]*Tile
}

func newCollection() *collection {
	return &collection{tiles: make(map[world.Cell]*Tile)}
}

func (c *collection) get(pos world.Cell) *Tile {
	return c.tiles[pos]
}

func (c *collection) put(t *Tile) {
	c.remove(t.Position)
	c.tiles[t.Position] = t
	c.order = append(c.order, t.Position)
}

func (c *collection) remove(pos world.Cell) bool {
	if _, ok := c.tiles[pos]; !ok {
		return false
	}
	delete(c.tiles, pos)
	for i, p := range c.order {
		if p == pos {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return true
}

// each visits the tiles in collection order.
func (c *collection) each(fn func(t *Tile)) {
	for _, pos := range c.order {
		fn(c.tiles[pos])
	}
}

func (c *collection) snapshot() []Tile {
	out := make([]Tile, 0, len(c.order))
	c.each(func(t *Tile) {
		out = append(out, t.clone())
	})
	return out
}

func (c *collection) len() int {
	return len(c.order)
}
