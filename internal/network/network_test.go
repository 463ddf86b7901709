package network_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/hexmap/internal/network"
	"github.com/talgya/hexmap/internal/world"
)

// checkInvariants asserts the degree bound, symmetry (unless the partner
// is full), terrain compatibility and bounds of every link.
func checkInvariants(t *testing.T, net *network.Network, terrain *world.TerrainMap) {
	t.Helper()
	for _, kind := range network.Kinds {
		for _, tile := range net.Tiles(kind) {
			require.LessOrEqual(t, len(tile.Connections), network.MaxConnections, "degree of %v", tile.Position)
			for _, c := range tile.Connections {
				assert.True(t, terrain.Grid.InBounds(c), "%v links out of grid to %v", tile.Position, c)
				assert.True(t, world.Compatible(kind, terrain.Terrain(c)), "%v links to incompatible %v", tile.Position, c)
				partner, ok := net.Tile(kind, c)
				if !ok {
					assert.True(t, terrain.Terrain(c).IsEndpoint(), "%v links to untracked %v", tile.Position, c)
					continue
				}
				if !partner.Has(tile.Position) {
					assert.Len(t, partner.Connections, network.MaxConnections,
						"%v -> %v is one-way although the partner has room", tile.Position, c)
				}
			}
		}
	}
}

func randomEdits(t *testing.T, seed int64, edits int, fn func(net *network.Network, terrain *world.TerrainMap)) {
	t.Helper()
	g, err := world.NewGrid(6, 6)
	require.NoError(t, err)
	terrain := world.NewTerrainMap(g)
	net := network.New(g, terrain)
	rng := rand.New(rand.NewSource(seed))

	// Bias toward flow terrain so the networks actually grow.
	palette := []world.Terrain{
		world.TerrainRiver, world.TerrainRiver, world.TerrainRiver,
		world.TerrainRoad, world.TerrainRoad,
		world.TerrainCity, world.TerrainMarsh, world.TerrainPlain, world.TerrainForest,
	}
	for i := 0; i < edits; i++ {
		c := cell(rng.Intn(g.Width), rng.Intn(g.Height))
		paint(net, terrain, c, palette[rng.Intn(len(palette))])
		fn(net, terrain)
	}
}

func TestRandomEditsKeepInvariants(t *testing.T) {
	for seed := int64(1); seed <= 20; seed++ {
		randomEdits(t, seed, 80, func(net *network.Network, terrain *world.TerrainMap) {
			checkInvariants(t, net, terrain)
		})
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	randomEdits(t, 7, 120, func(net *network.Network, terrain *world.TerrainMap) {
		for _, kind := range network.Kinds {
			net.Reconcile(kind)
			once := net.Tiles(kind)
			net.Reconcile(kind)
			assert.Equal(t, once, net.Tiles(kind))
		}
	})
}

func TestRemoveTilePrunesReferences(t *testing.T) {
	randomEdits(t, 11, 60, func(net *network.Network, terrain *world.TerrainMap) {
		for _, target := range net.Tiles(world.TerrainRiver) {
			net.RemoveTile(target.Position)
			for _, kind := range network.Kinds {
				for _, tile := range net.Tiles(kind) {
					assert.NotContains(t, tile.Connections, target.Position)
				}
			}
			return
		}
	})
}

func TestRecomputePrefersHorizontalNeighbors(t *testing.T) {
	g, _ := world.NewGrid(3, 3)
	terrain := world.NewTerrainMap(g)
	// Only one same-row neighbor is a river at first, so the second link
	// falls back to table order among the diagonals.
	for _, c := range []world.Cell{cell(1, 0), cell(1, 2), cell(0, 1), cell(2, 2), cell(1, 1)} {
		terrain.Set(c, world.TerrainRiver)
	}
	net := network.New(g, terrain)
	net.Recompute(cell(1, 1), world.TerrainRiver)

	assert.Equal(t, []world.Cell{cell(0, 1), cell(2, 2)}, net.Connections(world.TerrainRiver, cell(1, 1)))

	terrain.Set(cell(2, 1), world.TerrainRiver)
	net.RemoveTile(cell(1, 1))
	net.Recompute(cell(1, 1), world.TerrainRiver)

	assert.Equal(t, []world.Cell{cell(0, 1), cell(2, 1)}, net.Connections(world.TerrainRiver, cell(1, 1)))
}

func TestRecomputeKeepsMutualLinks(t *testing.T) {
	g, _ := world.NewGrid(4, 3)
	terrain := world.NewTerrainMap(g)
	for _, c := range []world.Cell{cell(0, 1), cell(1, 1), cell(2, 1), cell(1, 0)} {
		terrain.Set(c, world.TerrainRiver)
	}
	net := network.Load(g, terrain, []network.Tile{
		{Position: cell(1, 1), Connections: []world.Cell{cell(1, 0), cell(2, 1)}},
		{Position: cell(1, 0), Connections: []world.Cell{cell(1, 1)}},
		{Position: cell(2, 1), Connections: []world.Cell{cell(1, 1)}},
	}, nil)

	net.Recompute(cell(1, 1), world.TerrainRiver)

	conns := net.Connections(world.TerrainRiver, cell(1, 1))
	assert.ElementsMatch(t, []world.Cell{cell(1, 0), cell(2, 1)}, conns)
	assert.NotContains(t, conns, cell(0, 1))
}

func TestRoadsIgnoreRiversAndMarshes(t *testing.T) {
	g, _ := world.NewGrid(3, 1)
	terrain := world.NewTerrainMap(g)
	terrain.Set(cell(0, 0), world.TerrainRiver)
	terrain.Set(cell(1, 0), world.TerrainRoad)
	terrain.Set(cell(2, 0), world.TerrainMarsh)
	net := network.New(g, terrain)

	net.Recompute(cell(1, 0), world.TerrainRoad)

	assert.Empty(t, net.Connections(world.TerrainRoad, cell(1, 0)))
	assert.Zero(t, net.Len(world.TerrainRiver))
}

func TestLoadRepairsPersistedState(t *testing.T) {
	g, _ := world.NewGrid(4, 2)
	terrain := world.NewTerrainMap(g)
	terrain.Set(cell(0, 0), world.TerrainRiver)
	terrain.Set(cell(1, 0), world.TerrainRiver)
	terrain.Set(cell(2, 0), world.TerrainRiver)
	terrain.Set(cell(3, 0), world.TerrainForest)

	net := network.Load(g, terrain, []network.Tile{
		// out of grid, incompatible, duplicate and a dangling river link
		{Position: cell(0, 0), Connections: []world.Cell{cell(-1, 0), cell(1, 0), cell(1, 0)}},
		{Position: cell(1, 0), Connections: []world.Cell{cell(2, 0), cell(3, 0)}},
		{Position: cell(9, 9), Connections: nil},
	}, nil)

	assert.Equal(t, []world.Cell{cell(1, 0)}, net.Connections(world.TerrainRiver, cell(0, 0)))
	assert.Equal(t, []world.Cell{cell(2, 0), cell(0, 0)}, net.Connections(world.TerrainRiver, cell(1, 0)))
	assert.Equal(t, []world.Cell{cell(1, 0)}, net.Connections(world.TerrainRiver, cell(2, 0)))
	_, outside := net.Tile(world.TerrainRiver, cell(9, 9))
	assert.False(t, outside)
}

func TestCapacityConflictKeepsExistingPair(t *testing.T) {
	g, _ := world.NewGrid(3, 3)
	terrain := world.NewTerrainMap(g)
	for _, c := range []world.Cell{cell(0, 1), cell(1, 1), cell(2, 1), cell(1, 0)} {
		terrain.Set(c, world.TerrainRiver)
	}
	net := network.Load(g, terrain, []network.Tile{
		{Position: cell(1, 1), Connections: []world.Cell{cell(0, 1), cell(2, 1)}},
		{Position: cell(0, 1), Connections: []world.Cell{cell(1, 1)}},
		{Position: cell(2, 1), Connections: []world.Cell{cell(1, 1)}},
		{Position: cell(1, 0), Connections: []world.Cell{cell(1, 1)}},
	}, nil)

	assert.Equal(t, []world.Cell{cell(0, 1), cell(2, 1)}, net.Connections(world.TerrainRiver, cell(1, 1)))
	// The one-way link survives; the repair pass does not oscillate.
	assert.Equal(t, []world.Cell{cell(1, 1)}, net.Connections(world.TerrainRiver, cell(1, 0)))

	before := net.Tiles(world.TerrainRiver)
	net.Reconcile(world.TerrainRiver)
	assert.Equal(t, before, net.Tiles(world.TerrainRiver))
}

func TestAllSegmentsPartitionsTiles(t *testing.T) {
	g, _ := world.NewGrid(7, 3)
	terrain := world.NewTerrainMap(g)
	net := network.New(g, terrain)

	// Two rivers flowing into the same city, plus a lone road.
	paint(net, terrain, cell(3, 1), world.TerrainCity)
	for _, c := range []world.Cell{cell(0, 1), cell(1, 1), cell(2, 1)} {
		paint(net, terrain, c, world.TerrainRiver)
	}
	for _, c := range []world.Cell{cell(6, 1), cell(5, 1), cell(4, 1)} {
		paint(net, terrain, c, world.TerrainRiver)
	}
	paint(net, terrain, cell(0, 0), world.TerrainRoad)

	segments := net.AllSegments(world.TerrainRiver)
	seen := make(map[world.Cell]int)
	for _, seg := range segments {
		for _, tile := range seg {
			if terrain.Terrain(tile.Position) == world.TerrainRiver {
				seen[tile.Position]++
			}
		}
	}
	assert.Len(t, seen, 6)
	for c, count := range seen {
		assert.Equal(t, 1, count, "river %v appears in more than one segment", c)
	}

	cityEnds := 0
	for _, seg := range segments {
		if seg[len(seg)-1].Position == cell(3, 1) {
			cityEnds++
		}
	}
	assert.GreaterOrEqual(t, cityEnds, 1)

	roads := net.AllSegments(world.TerrainRoad)
	require.Len(t, roads, 1)
	assert.Equal(t, []world.Cell{cell(0, 0)}, roads[0].Positions())
}

func TestTraceSegmentStopsOnCycle(t *testing.T) {
	g, _ := world.NewGrid(3, 3)
	terrain := world.NewTerrainMap(g)
	for _, c := range []world.Cell{cell(0, 0), cell(1, 0), cell(0, 1)} {
		terrain.Set(c, world.TerrainRiver)
	}
	net := network.Load(g, terrain, []network.Tile{
		{Position: cell(0, 0), Connections: []world.Cell{cell(1, 0), cell(0, 1)}},
		{Position: cell(1, 0), Connections: []world.Cell{cell(0, 0), cell(0, 1)}},
		{Position: cell(0, 1), Connections: []world.Cell{cell(1, 0), cell(0, 0)}},
	}, nil)

	seg := net.TraceSegment(world.TerrainRiver, cell(0, 0))

	assert.Equal(t, []world.Cell{cell(0, 0), cell(1, 0), cell(0, 1)}, seg.Positions())
}

func TestExportReturnsCopies(t *testing.T) {
	g, _ := world.NewGrid(2, 1)
	terrain := world.NewTerrainMap(g)
	terrain.Set(cell(0, 0), world.TerrainRiver)
	terrain.Set(cell(1, 0), world.TerrainRiver)
	net := network.New(g, terrain)
	net.Recompute(cell(0, 0), world.TerrainRiver)

	rivers, roads := net.Export()
	require.Len(t, rivers, 2)
	assert.Empty(t, roads)

	rivers[0].Connections[0] = cell(5, 5)
	assert.Equal(t, []world.Cell{cell(1, 0)}, net.Connections(world.TerrainRiver, cell(0, 0)))
}

func TestClear(t *testing.T) {
	g, _ := world.NewGrid(2, 1)
	terrain := world.NewTerrainMap(g)
	terrain.Set(cell(0, 0), world.TerrainRoad)
	terrain.Set(cell(1, 0), world.TerrainRoad)
	net := network.New(g, terrain)
	net.Recompute(cell(0, 0), world.TerrainRoad)
	require.Equal(t, 2, net.Len(world.TerrainRoad))

	net.Clear()

	assert.Zero(t, net.Len(world.TerrainRoad))
	assert.Zero(t, net.Len(world.TerrainRiver))
}

func TestEnsureBidirectional(t *testing.T) {
	cases := []struct {
		name     string
		kind     world.Terrain
		painted  map[world.Cell]world.Terrain
		rivers   []network.Tile
		a, b     world.Cell
		wantTile bool
		want     []world.Cell
	}{
		{
			name: "full partner keeps its pair",
			kind: world.TerrainRiver,
			painted: map[world.Cell]world.Terrain{
				cell(0, 1): world.TerrainRiver, cell(1, 1): world.TerrainRiver,
				cell(2, 1): world.TerrainRiver, cell(1, 0): world.TerrainRiver,
			},
			rivers: []network.Tile{
				{Position: cell(0, 1), Connections: []world.Cell{cell(1, 1)}},
				{Position: cell(1, 1), Connections: []world.Cell{cell(0, 1), cell(2, 1)}},
				{Position: cell(2, 1), Connections: []world.Cell{cell(1, 1)}},
			},
			a: cell(1, 0), b: cell(1, 1),
			wantTile: true,
			want:     []world.Cell{cell(0, 1), cell(2, 1)},
		},
		{
			name: "partner with room gains the link",
			kind: world.TerrainRiver,
			painted: map[world.Cell]world.Terrain{
				cell(0, 0): world.TerrainRiver, cell(1, 0): world.TerrainRiver, cell(2, 0): world.TerrainRiver,
			},
			rivers: []network.Tile{
				{Position: cell(1, 0), Connections: []world.Cell{cell(2, 0)}},
				{Position: cell(2, 0), Connections: []world.Cell{cell(1, 0)}},
			},
			a: cell(0, 0), b: cell(1, 0),
			wantTile: true,
			want:     []world.Cell{cell(2, 0), cell(0, 0)},
		},
		{
			name: "missing river partner gets a minimal tile",
			kind: world.TerrainRiver,
			painted: map[world.Cell]world.Terrain{
				cell(0, 0): world.TerrainRiver, cell(1, 0): world.TerrainRiver,
			},
			a: cell(0, 0), b: cell(1, 0),
			wantTile: true,
			want:     []world.Cell{cell(0, 0)},
		},
		{
			name: "city stays positional",
			kind: world.TerrainRiver,
			painted: map[world.Cell]world.Terrain{
				cell(0, 0): world.TerrainRiver, cell(1, 0): world.TerrainCity,
			},
			a: cell(0, 0), b: cell(1, 0),
		},
		{
			name: "marsh stays positional",
			kind: world.TerrainRiver,
			painted: map[world.Cell]world.Terrain{
				cell(0, 0): world.TerrainRiver, cell(1, 0): world.TerrainMarsh,
			},
			a: cell(0, 0), b: cell(1, 0),
		},
		{
			name: "road never adopts a river cell",
			kind: world.TerrainRoad,
			painted: map[world.Cell]world.Terrain{
				cell(0, 0): world.TerrainRoad, cell(1, 0): world.TerrainRiver,
			},
			a: cell(0, 0), b: cell(1, 0),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g, err := world.NewGrid(3, 3)
			require.NoError(t, err)
			terrain := world.NewTerrainMap(g)
			for c, kind := range tc.painted {
				terrain.Set(c, kind)
			}
			net := network.Load(g, terrain, tc.rivers, nil)

			// Repeating the call must not add a duplicate link.
			for i := 0; i < 3; i++ {
				net.EnsureBidirectional(tc.kind, tc.a, tc.b)
			}

			tile, ok := net.Tile(tc.kind, tc.b)
			require.Equal(t, tc.wantTile, ok)
			if tc.wantTile {
				assert.Equal(t, tc.want, tile.Connections)
			}
			_, asRiver := net.Tile(world.TerrainRiver, tc.b)
			_, asRoad := net.Tile(world.TerrainRoad, tc.b)
			if !tc.wantTile {
				assert.False(t, asRiver || asRoad)
			}
			assertNoDuplicateLinks(t, net)
		})
	}
}

func assertNoDuplicateLinks(t *testing.T, net *network.Network) {
	t.Helper()
	for _, kind := range network.Kinds {
		for _, tile := range net.Tiles(kind) {
			assert.LessOrEqual(t, len(tile.Connections), network.MaxConnections)
			seen := make(map[world.Cell]bool)
			for _, c := range tile.Connections {
				assert.False(t, seen[c], "%v lists %v twice", tile.Position, c)
				seen[c] = true
			}
		}
	}
}
