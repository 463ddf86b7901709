package world

import (
	"fmt"
	"sort"
)

// TerrainMap holds painted terrain per cell. Unpainted cells read as Plain.
type TerrainMap struct {
	Grid  Grid
	kinds map[Cell]Terrain
}

// NewTerrainMap creates an empty terrain map over the grid.
func NewTerrainMap(g Grid) *TerrainMap {
	return &TerrainMap{
		Grid:  g,
		kinds: make(map[Cell]Terrain),
	}
}

// Terrain returns the terrain at c, or Plain when nothing is stored.
func (m *TerrainMap) Terrain(c Cell) Terrain {
	if t, ok := m.kinds[c]; ok {
		return t
	}
	return TerrainPlain
}

// Lookup returns the stored terrain and whether the cell was painted.
func (m *TerrainMap) Lookup(c Cell) (Terrain, bool) {
	t, ok := m.kinds[c]
	return t, ok
}

// Set paints c. Returns false for out-of-grid cells or invalid terrain.
func (m *TerrainMap) Set(c Cell, t Terrain) bool {
	if !m.Grid.InBounds(c) || !t.Valid() {
		return false
	}
	m.kinds[c] = t
	return true
}

// Unset drops the stored terrain so c reads as Plain again.
func (m *TerrainMap) Unset(c Cell) {
	delete(m.kinds, c)
}

// Painted returns the stored cells in row-major order.
func (m *TerrainMap) Painted() []Cell {
	cells := make([]Cell, 0, len(m.kinds))
	for c := range m.kinds {
		cells = append(cells, c)
	}
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].Row != cells[j].Row {
			return cells[i].Row < cells[j].Row
		}
		return cells[i].Col < cells[j].Col
	})
	return cells
}

// Clear removes all painted terrain.
func (m *TerrainMap) Clear() {
	m.kinds = make(map[Cell]Terrain)
}

// PaintedCount returns the number of stored cells.
func (m *TerrainMap) PaintedCount() int {
	return len(m.kinds)
}

// Counts returns a summary of terrain distribution across the whole grid,
// counting unpainted cells as Plain.
func (m *TerrainMap) Counts() map[Terrain]int {
	counts := make(map[Terrain]int)
	for _, t := range m.kinds {
		counts[t]++
	}
	counts[TerrainPlain] += m.Grid.Width*m.Grid.Height - len(m.kinds)
	return counts
}

// String returns a summary of the map.
func (m *TerrainMap) String() string {
	return fmt.Sprintf("TerrainMap(%dx%d, painted=%d)", m.Grid.Width, m.Grid.Height, len(m.kinds))
}
