// City siting: scores open ground and picks well-spaced city locations.
package world

import (
	"math/rand"
	"sort"
)

// CitySite is one chosen city location.
type CitySite struct {
	Cell  Cell
	Score float64 // Desirability score
	Name  string
}

// minCityDist is the smallest hex distance allowed between two cities.
const minCityDist = 3

// SiteCities picks up to n city sites on plain, non-edge cells, best first.
// Rivers should already be painted: water access raises a cell's score.
func SiteCities(m *TerrainMap, n int, rng *rand.Rand) []CitySite {
	type scored struct {
		cell  Cell
		score float64
	}
	var candidates []scored
	for _, c := range m.Grid.Cells() {
		if m.Terrain(c) != TerrainPlain || m.Grid.IsEdge(c) {
			continue
		}
		// Jitter keeps equal-scored plains from always resolving the same way.
		candidates = append(candidates, scored{c, citySiteScore(m, c) + rng.Float64()*0.5})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	var sites []CitySite
	for _, c := range candidates {
		if len(sites) >= n {
			break
		}
		if tooClose(c.cell, sites, minCityDist) {
			continue
		}
		sites = append(sites, CitySite{Cell: c.cell, Score: c.score})
	}

	names := cityNames(rng, len(sites))
	for i := range sites {
		sites[i].Name = names[i]
	}
	return sites
}

// citySiteScore rates a plain cell. Rivers (water and trade) count most,
// then varied surroundings and nearby forest or hills.
func citySiteScore(m *TerrainMap, c Cell) float64 {
	score := 3.0

	kinds := make(map[Terrain]bool)
	nearRiver, nearWoods := false, false
	for _, n := range m.Grid.Neighbors(c) {
		t := m.Terrain(n)
		kinds[t] = true
		switch t {
		case TerrainRiver:
			nearRiver = true
		case TerrainForest, TerrainHill:
			nearWoods = true
		case TerrainCity:
			score -= 2
		}
	}
	score += float64(len(kinds)) * 0.3
	if nearRiver {
		score += 1.5
	}
	if nearWoods {
		score += 0.5
	}
	return score
}

func tooClose(c Cell, existing []CitySite, minDist int) bool {
	for _, s := range existing {
		if Distance(c, s.Cell) < minDist {
			return true
		}
	}
	return false
}

// cityNames produces procedural names by combining syllables.
func cityNames(rng *rand.Rand, count int) []string {
	prefixes := []string{
		"Iron", "Green", "Ash", "Stone", "Mill", "Cross", "Black",
		"Silver", "Red", "White", "Dark", "Bright", "High", "Low",
		"Old", "New", "Far", "Deep", "Long", "Broad", "Gold", "Frost",
		"Storm", "Thorn", "Elm", "Oak", "Pine", "Copper", "River",
	}
	suffixes := []string{
		"haven", "ford", "hollow", "wick", "bridge", "gate", "keep",
		"stead", "wood", "field", "dale", "crest", "vale", "port",
		"town", "bury", "marsh", "well", "brook", "cliff", "moor",
		"ridge", "watch", "fall", "rest", "point", "reach", "helm",
	}

	used := make(map[string]bool)
	names := make([]string, 0, count)
	for len(names) < count {
		name := prefixes[rng.Intn(len(prefixes))] + suffixes[rng.Intn(len(suffixes))]
		if !used[name] {
			used[name] = true
			names = append(names, name)
		}
	}
	return names
}
