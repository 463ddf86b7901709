// Package api provides the HTTP API for viewing and editing the hex map.
// GET endpoints are public (read-only), as is highlighting a cell.
// Other POST endpoints require a bearer token (admin control plane).
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/talgya/hexmap/internal/board"
	"github.com/talgya/hexmap/internal/persistence"
	"github.com/talgya/hexmap/internal/world"
)

// Terrain edits allowed per client per minute.
const editsPerMinute = 120

// Server serves one board over HTTP.
type Server struct {
	Board       *board.Board
	DB          *persistence.DB // Optional. Nil disables /maps and store snapshots.
	MapID       string          // Stored map the board is saved to.
	Port        int
	AdminKey    string // Bearer token for admin POST endpoints. Empty = admin disabled.
	SnapshotDir string // Directory for snapshot documents. Empty = no file snapshots.

	// Serializes every access to Board.
	mu sync.Mutex
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	addr := fmt.Sprintf(":%d", s.Port)
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "", "store", s.DB != nil)

	go func() {
		if err := http.ListenAndServe(addr, s.Handler()); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// Handler builds the routed handler with CORS applied.
func (s *Server) Handler() http.Handler {
	editLimiter := NewRateLimiter(editsPerMinute, time.Minute)

	mux := http.NewServeMux()

	// Public endpoints.
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/map", s.handleMapRoutes)
	mux.HandleFunc("/api/v1/map/", s.handleMapRoutes)
	mux.HandleFunc("/api/v1/segments", s.handleSegments)
	mux.HandleFunc("/api/v1/locate", s.handleLocate)
	mux.HandleFunc("/api/v1/maps", s.handleMaps)
	mux.HandleFunc("/api/v1/highlight", s.handleHighlight)
	mux.HandleFunc("/api/v1/select", s.handleSelect)

	// Admin endpoints (POST, require bearer token).
	mux.HandleFunc("/api/v1/terrain", s.adminOnly(RateLimitMiddleware(editLimiter, s.handleTerrain)))
	mux.HandleFunc("/api/v1/event", s.adminOnly(s.handleEvent))
	mux.HandleFunc("/api/v1/generate", s.adminOnly(s.handleGenerate))
	mux.HandleFunc("/api/v1/clear", s.adminOnly(s.handleClear))
	mux.HandleFunc("/api/v1/snapshot", s.adminOnly(s.handleSnapshot))

	return corsMiddleware(mux)
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS env var to a comma-separated list of allowed origins.
// Localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth on POST requests.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if s.AdminKey == "" {
				http.Error(w, "admin endpoints disabled (no HEXMAP_ADMIN_KEY set)", http.StatusForbidden)
				return
			}
			if !s.checkBearerToken(r) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g := s.Board.Grid()
	status := map[string]any{
		"name":  "hexmap",
		"grid":  g,
		"stats": s.Board.Stats(),
	}
	if c, ok := s.Board.Highlighted(); ok {
		status["highlighted"] = c
	}
	if c, ok := s.Board.Selected(); ok {
		status["selected"] = c
	}
	if s.MapID != "" {
		status["map_id"] = s.MapID
	}
	vw, errW := strconv.ParseFloat(r.URL.Query().Get("width"), 64)
	vh, errH := strconv.ParseFloat(r.URL.Query().Get("height"), 64)
	if errW == nil && errH == nil {
		status["hex_size"] = world.HexSize(vw, vh, g.Width, g.Height)
	}
	writeJSON(w, status)
}

// handleMapRoutes dispatches between the full document (GET /api/v1/map)
// and cell detail (GET /api/v1/map/:col/:row).
func (s *Server) handleMapRoutes(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/map")
	if path == "" || path == "/" {
		s.handleDocument(w, r)
		return
	}
	s.handleCellDetail(w, r)
}

func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	doc := s.Board.Document()
	s.mu.Unlock()
	writeJSON(w, doc)
}

type neighborEntry struct {
	Cell    world.Cell `json:"cell"`
	Side    string     `json:"side"`
	Terrain string     `json:"terrain"`
}

func (s *Server) handleCellDetail(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(r.URL.Path, "/")
	// /api/v1/map/:col/:row → parts[0]="" [1]="api" [2]="v1" [3]="map" [4]=col [5]=row
	if len(parts) < 6 {
		http.Error(w, "usage: /api/v1/map/:col/:row", http.StatusBadRequest)
		return
	}
	col, err1 := strconv.Atoi(parts[4])
	row, err2 := strconv.Atoi(parts[5])
	if err1 != nil || err2 != nil {
		http.Error(w, "invalid coordinates", http.StatusBadRequest)
		return
	}
	c := world.Cell{Col: col, Row: row}

	s.mu.Lock()
	defer s.mu.Unlock()

	g := s.Board.Grid()
	if !g.InBounds(c) {
		http.Error(w, "cell not found", http.StatusNotFound)
		return
	}
	writeJSON(w, s.cellDetail(c))
}

// cellDetail describes one cell. Callers hold s.mu.
func (s *Server) cellDetail(c world.Cell) map[string]any {
	g := s.Board.Grid()
	terrain := s.Board.Terrain(c)

	neighbors := make([]neighborEntry, 0, 6)
	for _, nb := range g.Neighbors(c) {
		neighbors = append(neighbors, neighborEntry{
			Cell:    nb,
			Side:    world.Side(c, nb),
			Terrain: world.TerrainName(s.Board.Terrain(nb)),
		})
	}

	detail := map[string]any{
		"cell":      c,
		"terrain":   world.TerrainName(terrain),
		"neighbors": neighbors,
		"rivers":    nonNil(s.Board.Connections(world.TerrainRiver, c)),
		"roads":     nonNil(s.Board.Connections(world.TerrainRoad, c)),
		"edges":     nonNilStrings(g.EdgeSides(c)),
	}
	if ev, ok := s.Board.Event(c); ok {
		detail["event"] = ev
	}
	if terrain == world.TerrainCity {
		detail["city_links"] = s.Board.CityConnections(c)
	}
	if terrain.IsFlow() {
		detail["valid_moves"] = nonNil(s.Board.ValidMoves(c, terrain))
	}
	return detail
}

func (s *Server) handleSegments(w http.ResponseWriter, r *http.Request) {
	kind, err := world.ParseTerrain(r.URL.Query().Get("kind"))
	if err != nil || !kind.IsFlow() {
		http.Error(w, "kind must be river or road", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	segments := s.Board.SegmentsFor(kind)
	s.mu.Unlock()

	result := make([][]world.Cell, 0, len(segments))
	for _, seg := range segments {
		result = append(result, seg.Positions())
	}
	writeJSON(w, map[string]any{
		"kind":     world.TerrainName(kind),
		"segments": result,
	})
}

// handleLocate hit-tests a canvas point for a viewport size.
func (s *Server) handleLocate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var vals [4]float64
	for i, key := range []string{"x", "y", "width", "height"} {
		v, err := strconv.ParseFloat(q.Get(key), 64)
		if err != nil {
			http.Error(w, "x, y, width and height are required numbers", http.StatusBadRequest)
			return
		}
		vals[i] = v
	}

	s.mu.Lock()
	g := s.Board.Grid()
	s.mu.Unlock()

	layout := world.NewLayout(g, 0)
	size := layout.Resize(vals[2], vals[3])
	c, ok := layout.CellAt(r2.Vec{X: vals[0], Y: vals[1]})
	if !ok {
		http.Error(w, "no cell at point", http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]any{
		"cell":     c,
		"hex_size": size,
		"center":   layout.Center(c),
	})
}

func (s *Server) handleMaps(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}
	maps, err := s.DB.ListMaps()
	if err != nil {
		slog.Error("list maps failed", "error", err)
		http.Error(w, "list maps failed", http.StatusInternalServerError)
		return
	}

	type mapEntry struct {
		persistence.MapInfo
		Updated string `json:"updated"`
		Active  bool   `json:"active"`
	}
	result := make([]mapEntry, 0, len(maps))
	for _, m := range maps {
		result = append(result, mapEntry{
			MapInfo: m,
			Updated: humanize.Time(m.Updated()),
			Active:  m.ID == s.MapID,
		})
	}
	writeJSON(w, result)
}

type cellRequest struct {
	Col int `json:"col"`
	Row int `json:"row"`
}

func (c cellRequest) cell() world.Cell {
	return world.Cell{Col: c.Col, Row: c.Row}
}

// handleHighlight sets the highlighted cell (POST) or clears it (DELETE).
func (s *Server) handleHighlight(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
	case http.MethodDelete:
		s.mu.Lock()
		s.Board.ClearHighlight()
		s.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
		return
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req cellRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.Board.Highlight(req.cell()) {
		http.Error(w, "cell not found", http.StatusNotFound)
		return
	}
	writeJSON(w, s.cellDetail(req.cell()))
}

// handleSelect returns the selected cell's detail (GET) or selects a cell
// (POST).
func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.mu.Lock()
		defer s.mu.Unlock()
		c, ok := s.Board.Selected()
		if !ok {
			http.Error(w, "no cell selected", http.StatusNotFound)
			return
		}
		writeJSON(w, s.cellDetail(c))
	case http.MethodPost:
		var req cellRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid JSON", http.StatusBadRequest)
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if !s.Board.Select(req.cell()) {
			http.Error(w, "cell not found", http.StatusNotFound)
			return
		}
		writeJSON(w, s.cellDetail(req.cell()))
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}

func nonNil(cells []world.Cell) []world.Cell {
	if cells == nil {
		return []world.Cell{}
	}
	return cells
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
