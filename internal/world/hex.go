// Package world provides the hex grid, terrain, and geometry of the map.
// Cells use offset coordinates (col, row) with odd columns shoved down by
// half a hex.
package world

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrBadCell indicates a cell literal that is not of the form "(col, row)".
	ErrBadCell = errors.New("world: malformed cell")
	// ErrUnknownTerrain indicates a terrain name outside the known set.
	ErrUnknownTerrain = errors.New("world: unknown terrain")
)

// Cell is a (column, row) position in the logical grid, 0-indexed.
type Cell struct {
	Col int
	Row int
}

// String renders the cell as "(col, row)", the key form used in map documents.
func (c Cell) String() string {
	return fmt.Sprintf("(%d, %d)", c.Col, c.Row)
}

// ParseCell parses the "(col, row)" form produced by String.
func ParseCell(s string) (Cell, error) {
	var c Cell
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "(") || !strings.HasSuffix(trimmed, ")") {
		return c, fmt.Errorf("%w: %q", ErrBadCell, s)
	}
	parts := strings.Split(trimmed[1:len(trimmed)-1], ",")
	if len(parts) != 2 {
		return c, fmt.Errorf("%w: %q", ErrBadCell, s)
	}
	if _, err := fmt.Sscanf(strings.TrimSpace(parts[0]), "%d", &c.Col); err != nil {
		return c, fmt.Errorf("%w: %q", ErrBadCell, s)
	}
	if _, err := fmt.Sscanf(strings.TrimSpace(parts[1]), "%d", &c.Row); err != nil {
		return c, fmt.Errorf("%w: %q", ErrBadCell, s)
	}
	return c, nil
}

// MarshalJSON encodes the cell as a [col, row] pair.
func (c Cell) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{c.Col, c.Row})
}

// UnmarshalJSON decodes a [col, row] pair.
func (c *Cell) UnmarshalJSON(data []byte) error {
	var pair []int
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("%w: %s", ErrBadCell, data)
	}
	if len(pair) != 2 {
		return fmt.Errorf("%w: %s", ErrBadCell, data)
	}
	c.Col, c.Row = pair[0], pair[1]
	return nil
}

// Terrain types for map cells.
type Terrain uint8

const (
	TerrainPlain    Terrain = iota // Default for unpainted cells
	TerrainHill                    // Rolling high ground
	TerrainMountain                // Impassable peaks
	TerrainForest                  // Woodland
	TerrainMarsh                   // Accepts rivers, does not carry them
	TerrainCity                    // Endpoint for rivers and roads
	TerrainRiver                   // Flow tile of the river network
	TerrainRoad                    // Flow tile of the road network

	terrainCount
)

var terrainNames = [terrainCount]string{
	"Plain", "Hill", "Mountain", "Forest", "Marsh", "City", "River", "Road",
}

// Names used by the first version of the companion app's biomes.json.
var terrainAliases = map[string]Terrain{
	"plaine":   TerrainPlain,
	"colline":  TerrainHill,
	"montagne": TerrainMountain,
	"foret":    TerrainForest,
	"marais":   TerrainMarsh,
	"ville":    TerrainCity,
	"riviere":  TerrainRiver,
	"route":    TerrainRoad,
}

// Valid reports whether t is one of the known terrain kinds.
func (t Terrain) Valid() bool {
	return t < terrainCount
}

// IsFlow reports whether t carries a flow network (river or road).
func (t Terrain) IsFlow() bool {
	return t == TerrainRiver || t == TerrainRoad
}

// IsEndpoint reports whether a flow stops at t (city or marsh).
func (t Terrain) IsEndpoint() bool {
	return t == TerrainCity || t == TerrainMarsh
}

func (t Terrain) String() string {
	return TerrainName(t)
}

// TerrainName returns a human-readable name for a terrain type.
func TerrainName(t Terrain) string {
	if !t.Valid() {
		return "Unknown"
	}
	return terrainNames[t]
}

// ParseTerrain resolves a terrain name, case-insensitively. The French biome
// names written by the desktop editor are accepted as aliases.
func ParseTerrain(name string) (Terrain, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	for i, n := range terrainNames {
		if strings.ToLower(n) == key {
			return Terrain(i), nil
		}
	}
	if t, ok := terrainAliases[key]; ok {
		return t, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownTerrain, name)
}

// AllTerrains lists every terrain kind in declaration order.
func AllTerrains() []Terrain {
	out := make([]Terrain, 0, terrainCount)
	for t := Terrain(0); t < terrainCount; t++ {
		out = append(out, t)
	}
	return out
}

// Compatible reports whether a flow may link a cell of terrain a to a
// neighbor of terrain b. Rivers join rivers, cities and marshes; roads join
// roads and cities.
func Compatible(a, b Terrain) bool {
	if !a.Valid() || !b.Valid() {
		return false
	}
	switch a {
	case TerrainRiver:
		return b == TerrainRiver || b == TerrainCity || b == TerrainMarsh
	case TerrainMarsh:
		return b == TerrainRiver
	case TerrainRoad:
		return b == TerrainRoad || b == TerrainCity
	}
	return false
}

// cube converts an offset cell to cube coordinates (odd columns shoved down).
func (c Cell) cube() (x, y, z int) {
	x = c.Col
	z = c.Row - (c.Col-(c.Col&1))/2
	y = -x - z
	return x, y, z
}

// Distance returns the hex distance between two cells.
func Distance(a, b Cell) int {
	ax, ay, az := a.cube()
	bx, by, bz := b.cube()
	dx, dy, dz := abs(ax-bx), abs(ay-by), abs(az-bz)
	d := dx
	if dy > d {
		d = dy
	}
	if dz > d {
		d = dz
	}
	return d
}

// Side names the compass direction of to as seen from from on screen.
// Odd columns sit half a hex lower, so rows are compared in half-hex
// units. Returns "" when from == to.
func Side(from, to Cell) string {
	dx := to.Col - from.Col
	dy := to.halfRow() - from.halfRow()
	var ns, ew string
	switch {
	case dy < 0:
		ns = "north"
	case dy > 0:
		ns = "south"
	}
	switch {
	case dx < 0:
		ew = "west"
	case dx > 0:
		ew = "east"
	}
	return ns + ew
}

// halfRow is the row in half-hex units, counting the odd-column shove.
func (c Cell) halfRow() int {
	return 2*c.Row + (c.Col & 1)
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
