package persistence

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/hexmap/internal/document"
	"github.com/talgya/hexmap/internal/world"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "hexmap.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleDocument() *document.Document {
	doc := document.New()
	doc.Terrain["(0, 0)"] = "River"
	doc.Terrain["(1, 0)"] = "River"
	doc.Terrain["(2, 0)"] = "City"
	doc.Terrain["(2, 1)"] = "Road"
	doc.RiverTiles = []document.TileRecord{
		{Position: world.Cell{Col: 1, Row: 0}, Connections: []world.Cell{{Col: 0, Row: 0}, {Col: 2, Row: 0}}},
		{Position: world.Cell{Col: 0, Row: 0}, Connections: []world.Cell{{Col: 1, Row: 0}}},
	}
	doc.RoadTiles = []document.TileRecord{
		{Position: world.Cell{Col: 2, Row: 1}, Connections: []world.Cell{}},
	}
	doc.Events = map[string]document.Event{
		"(2, 0)": {Type: "City", Description: "Harbor"},
	}
	return doc
}

func TestCreateAndFindMap(t *testing.T) {
	db := openTestDB(t)
	g, _ := world.NewGrid(13, 14)

	info, err := db.CreateMap("campaign", g)
	require.NoError(t, err)
	_, err = uuid.Parse(info.ID)
	assert.NoError(t, err)

	found, err := db.FindMapByName("campaign")
	require.NoError(t, err)
	assert.Equal(t, info, found)

	grid, err := found.Grid()
	require.NoError(t, err)
	assert.Equal(t, g, grid)

	_, err = db.CreateMap("campaign", g)
	assert.Error(t, err, "names are unique")

	_, err = db.FindMapByName("missing")
	assert.ErrorIs(t, err, ErrMapNotFound)
	_, err = db.GetMap(uuid.NewString())
	assert.ErrorIs(t, err, ErrMapNotFound)
}

func TestSaveAndLoadDocument(t *testing.T) {
	db := openTestDB(t)
	g, _ := world.NewGrid(3, 2)
	info, err := db.CreateMap("small", g)
	require.NoError(t, err)

	doc := sampleDocument()
	require.NoError(t, db.SaveDocument(info.ID, doc))

	loaded, err := db.LoadDocument(info.ID)
	require.NoError(t, err)
	assert.Equal(t, doc, loaded)
}

func TestSaveDocumentReplacesContents(t *testing.T) {
	db := openTestDB(t)
	g, _ := world.NewGrid(3, 2)
	info, err := db.CreateMap("small", g)
	require.NoError(t, err)
	require.NoError(t, db.SaveDocument(info.ID, sampleDocument()))

	smaller := document.New()
	smaller.Terrain["(1, 1)"] = "Mountain"
	require.NoError(t, db.SaveDocument(info.ID, smaller))

	loaded, err := db.LoadDocument(info.ID)
	require.NoError(t, err)
	assert.Equal(t, smaller, loaded)
}

func TestSaveDocumentRejectsUnknownMap(t *testing.T) {
	db := openTestDB(t)
	err := db.SaveDocument(uuid.NewString(), sampleDocument())
	assert.ErrorIs(t, err, ErrMapNotFound)

	_, err = db.LoadDocument("nope")
	assert.ErrorIs(t, err, ErrMapNotFound)
}

func TestSaveDocumentRejectsBadTerrain(t *testing.T) {
	db := openTestDB(t)
	g, _ := world.NewGrid(3, 2)
	info, err := db.CreateMap("small", g)
	require.NoError(t, err)

	doc := sampleDocument()
	doc.Terrain["(0, 1)"] = "Swamp-ish"
	assert.ErrorIs(t, db.SaveDocument(info.ID, doc), world.ErrUnknownTerrain)
}

func TestListAndDeleteMaps(t *testing.T) {
	db := openTestDB(t)
	g, _ := world.NewGrid(3, 3)

	a, err := db.CreateMap("alpha", g)
	require.NoError(t, err)
	b, err := db.CreateMap("beta", g)
	require.NoError(t, err)
	require.NoError(t, db.SaveDocument(b.ID, sampleDocument()))

	maps, err := db.ListMaps()
	require.NoError(t, err)
	require.Len(t, maps, 2)

	require.NoError(t, db.DeleteMap(b.ID))
	maps, err = db.ListMaps()
	require.NoError(t, err)
	require.Len(t, maps, 1)
	assert.Equal(t, a.ID, maps[0].ID)

	_, err = db.LoadDocument(b.ID)
	assert.ErrorIs(t, err, ErrMapNotFound)
	assert.ErrorIs(t, db.DeleteMap(b.ID), ErrMapNotFound)
}

func TestMeta(t *testing.T) {
	db := openTestDB(t)

	_, err := db.GetMeta("active_map")
	assert.Error(t, err)

	require.NoError(t, db.SaveMeta("active_map", "abc"))
	require.NoError(t, db.SaveMeta("active_map", "def"))
	value, err := db.GetMeta("active_map")
	require.NoError(t, err)
	assert.Equal(t, "def", value)
}
