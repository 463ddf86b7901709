package world

import (
	"errors"
	"fmt"
)

// ErrInvalidGrid indicates non-positive grid dimensions.
var ErrInvalidGrid = errors.New("world: grid dimensions must be positive")

// Default dimensions of the companion map.
const (
	DefaultWidth  = 13
	DefaultHeight = 14
)

// Neighbor offsets by column parity. Order matters: the first two entries
// are the same-row horizontal neighbors that flows prefer.
var (
	EvenColumnOffsets = [6]Cell{
		{Col: -1, Row: 0},
		{Col: 1, Row: 0},
		{Col: 0, Row: -1},
		{Col: 0, Row: 1},
		{Col: -1, Row: -1},
		{Col: 1, Row: -1},
	}
	OddColumnOffsets = [6]Cell{
		{Col: -1, Row: 0},
		{Col: 1, Row: 0},
		{Col: -1, Row: 1},
		{Col: 1, Row: 1},
		{Col: 0, Row: -1},
		{Col: 0, Row: 1},
	}
)

// Grid is an immutable width × height rectangle of cells.
type Grid struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// NewGrid validates the dimensions and returns the grid.
func NewGrid(width, height int) (Grid, error) {
	if width <= 0 || height <= 0 {
		return Grid{}, fmt.Errorf("%w: %dx%d", ErrInvalidGrid, width, height)
	}
	return Grid{Width: width, Height: height}, nil
}

// InBounds returns true if the cell lies inside the grid.
func (g Grid) InBounds(c Cell) bool {
	return c.Col >= 0 && c.Col < g.Width && c.Row >= 0 && c.Row < g.Height
}

// OffsetsFor returns the neighbor offset table for the given column.
func OffsetsFor(col int) [6]Cell {
	if col&1 == 0 {
		return EvenColumnOffsets
	}
	return OddColumnOffsets
}

// Neighbors returns the in-bounds cells adjacent to c, in offset-table order.
func (g Grid) Neighbors(c Cell) []Cell {
	result := make([]Cell, 0, 6)
	for _, off := range OffsetsFor(c.Col) {
		n := Cell{Col: c.Col + off.Col, Row: c.Row + off.Row}
		if g.InBounds(n) {
			result = append(result, n)
		}
	}
	return result
}

// Adjacent reports whether b is one of a's neighbors.
func (g Grid) Adjacent(a, b Cell) bool {
	for _, n := range g.Neighbors(a) {
		if n == b {
			return true
		}
	}
	return false
}

// Cells lists every cell in row-major order.
func (g Grid) Cells() []Cell {
	cells := make([]Cell, 0, g.Width*g.Height)
	for row := 0; row < g.Height; row++ {
		for col := 0; col < g.Width; col++ {
			cells = append(cells, Cell{Col: col, Row: row})
		}
	}
	return cells
}

// IsEdge reports whether c lies on the outer ring of the grid.
func (g Grid) IsEdge(c Cell) bool {
	return c.Col == 0 || c.Col == g.Width-1 || c.Row == 0 || c.Row == g.Height-1
}

// EdgeSides names the grid borders c touches.
func (g Grid) EdgeSides(c Cell) []string {
	var sides []string
	if c.Col == 0 {
		sides = append(sides, "west")
	}
	if c.Col == g.Width-1 {
		sides = append(sides, "east")
	}
	if c.Row == 0 {
		sides = append(sides, "north")
	}
	if c.Row == g.Height-1 {
		sides = append(sides, "south")
	}
	return sides
}

func (g Grid) String() string {
	return fmt.Sprintf("Grid(%dx%d)", g.Width, g.Height)
}
