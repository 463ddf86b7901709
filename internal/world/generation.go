// Map generation using layered simplex noise.
// Generates elevation and rainfall fields, derives terrain, then carves
// rivers downhill and links a handful of cities with roads.
package world

import (
	"math"
	"math/rand"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// GenConfig holds map generation parameters.
type GenConfig struct {
	Seed        int64   // Random seed (0 = random)
	MountainLvl float64 // Elevation threshold for mountains (0.0–1.0)
	HillLvl     float64 // Elevation threshold for hills (0.0–1.0)
	SourceLvl   float64 // Minimum elevation of a river source
	MarshRain   float64 // Rainfall above which low ground becomes marsh
	ForestRain  float64 // Rainfall above which mid ground becomes forest
	Rivers      int     // Maximum number of rivers
	Cities      int     // Number of cities to place
}

// DefaultGenConfig returns a reasonable configuration for the 13×14 map.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Seed:        0,
		MountainLvl: 0.78,
		HillLvl:     0.62,
		SourceLvl:   0.6,
		MarshRain:   0.72,
		ForestRain:  0.55,
		Rivers:      3,
		Cities:      4,
	}
}

// SmallTestConfig returns a deterministic configuration for tests.
func SmallTestConfig() GenConfig {
	cfg := DefaultGenConfig()
	cfg.Seed = 42
	cfg.Rivers = 2
	cfg.Cities = 2
	return cfg
}

// Generate paints a terrain map for the grid. The result only stores
// non-Plain cells.
func Generate(g Grid, cfg GenConfig) *TerrainMap {
	m, _ := GenerateSites(g, cfg)
	return m
}

// GenerateSites is Generate that also returns the named city sites, in the
// order their roads were traced.
func GenerateSites(g Grid, cfg GenConfig) (*TerrainMap, []CitySite) {
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Int63()
	}

	elevNoise := opensimplex.NewNormalized(seed)
	rainNoise := opensimplex.NewNormalized(seed + 1)

	m := NewTerrainMap(g)
	elevation := make(map[Cell]float64, g.Width*g.Height)

	for _, c := range g.Cells() {
		// Offset cell → continuous space, matching the shoved-column layout.
		x := float64(c.Col) * 0.75
		y := float64(c.Row) * sqrt3 / 2
		if c.Col&1 == 1 {
			y += sqrt3 / 4
		}

		elev := octaveNoise(elevNoise, x, y, 4, 0.35, 0.5)
		rain := octaveNoise(rainNoise, x, y, 3, 0.25, 0.5)
		elevation[c] = elev

		if t := deriveTerrain(elev, rain, cfg); t != TerrainPlain {
			m.Set(c, t)
		}
	}

	rng := rand.New(rand.NewSource(seed + 100))
	placeRivers(m, elevation, cfg, rng)
	sites := SiteCities(m, cfg.Cities, rng)
	for _, site := range sites {
		m.Set(site.Cell, TerrainCity)
	}
	for i := 1; i < len(sites); i++ {
		traceRoad(m, sites[i-1].Cell, sites[i].Cell)
	}

	return m, sites
}

// deriveTerrain determines terrain type from environmental parameters.
func deriveTerrain(elev, rain float64, cfg GenConfig) Terrain {
	if elev > cfg.MountainLvl {
		return TerrainMountain
	}
	if elev > cfg.HillLvl {
		return TerrainHill
	}
	if rain > cfg.MarshRain && elev < 0.4 {
		return TerrainMarsh
	}
	if rain > cfg.ForestRain {
		return TerrainForest
	}
	return TerrainPlain
}

// placeRivers picks highland sources and traces each one downhill.
func placeRivers(m *TerrainMap, elevation map[Cell]float64, cfg GenConfig, rng *rand.Rand) {
	var sources []Cell
	for _, c := range m.Grid.Cells() {
		if elevation[c] > cfg.SourceLvl && m.Terrain(c) != TerrainMountain {
			sources = append(sources, c)
		}
	}

	rng.Shuffle(len(sources), func(i, j int) {
		sources[i], sources[j] = sources[j], sources[i]
	})
	if len(sources) > cfg.Rivers {
		sources = sources[:cfg.Rivers]
	}

	for _, start := range sources {
		traceRiver(m, elevation, start)
	}
}

// traceRiver follows the steepest descent from a source cell until it
// reaches a marsh or runs out of downhill path.
func traceRiver(m *TerrainMap, elevation map[Cell]float64, start Cell) {
	current := start
	visited := make(map[Cell]bool)
	maxSteps := m.Grid.Width + m.Grid.Height

	for step := 0; step < maxSteps; step++ {
		visited[current] = true

		// Rivers drain into marshes.
		if m.Terrain(current) == TerrainMarsh {
			break
		}
		if m.Terrain(current) != TerrainMountain && m.Terrain(current) != TerrainCity {
			m.Set(current, TerrainRiver)
		}

		var best *Cell
		bestElev := elevation[current]
		for _, n := range m.Grid.Neighbors(current) {
			if visited[n] {
				continue
			}
			if elevation[n] < bestElev {
				bestElev = elevation[n]
				c := n // capture
				best = &c
			}
		}

		if best == nil {
			break // No downhill path, the river pools here
		}
		current = *best
	}
}

// traceRoad walks greedily from one city toward another over open ground.
func traceRoad(m *TerrainMap, from, to Cell) {
	current := from
	visited := map[Cell]bool{from: true}
	maxSteps := m.Grid.Width * m.Grid.Height

	for step := 0; step < maxSteps && current != to; step++ {
		var best *Cell
		bestDist := math.MaxInt
		for _, n := range m.Grid.Neighbors(current) {
			if visited[n] {
				continue
			}
			if n != to && !roadPassable(m.Terrain(n)) {
				continue
			}
			if d := Distance(n, to); d < bestDist {
				bestDist = d
				c := n
				best = &c
			}
		}
		if best == nil {
			return
		}
		current = *best
		visited[current] = true
		if current != to && m.Terrain(current) != TerrainCity {
			m.Set(current, TerrainRoad)
		}
	}
}

func roadPassable(t Terrain) bool {
	switch t {
	case TerrainPlain, TerrainHill, TerrainForest, TerrainRoad, TerrainCity:
		return true
	}
	return false
}

// octaveNoise generates fractal noise by layering multiple frequencies.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}
