package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/ncruces/go-strftime"

	"github.com/talgya/hexmap/internal/document"
	"github.com/talgya/hexmap/internal/world"
)

// SnapshotNameFormat names snapshot files, in strftime notation.
const SnapshotNameFormat = "hexmap-%Y%m%d-%H%M%S.json"

var errNoSnapshotTarget = errors.New("no database or snapshot directory configured")

func (s *Server) handleTerrain(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		cellRequest
		Terrain string `json:"terrain"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	kind, err := world.ParseTerrain(req.Terrain)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.Board.OnTerrainChanged(req.cell(), kind) {
		http.Error(w, "cell not found", http.StatusNotFound)
		return
	}
	slog.Info("terrain painted", "cell", req.cell().String(), "terrain", world.TerrainName(kind))
	writeJSON(w, s.cellDetail(req.cell()))
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		cellRequest
		Type        string `json:"type"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if !validEventType(req.Type) {
		http.Error(w, fmt.Sprintf("unknown event type %q", req.Type), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ev := document.Event{Type: req.Type, Description: req.Description}
	if !s.Board.SetEvent(req.cell(), ev) {
		http.Error(w, "cell not found", http.StatusNotFound)
		return
	}
	writeJSON(w, s.cellDetail(req.cell()))
}

func validEventType(t string) bool {
	for _, known := range document.EventTypes {
		if t == known {
			return true
		}
	}
	return false
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Seed   int64 `json:"seed"`
		Rivers *int  `json:"rivers,omitempty"`
		Cities *int  `json:"cities,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	cfg := world.DefaultGenConfig()
	cfg.Seed = req.Seed
	if req.Rivers != nil {
		cfg.Rivers = *req.Rivers
	}
	if req.Cities != nil {
		cfg.Cities = *req.Cities
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sites := s.Board.Generate(cfg)
	names := make([]string, 0, len(sites))
	for _, site := range sites {
		names = append(names, site.Name)
	}
	writeJSON(w, map[string]any{
		"seed":   cfg.Seed,
		"cities": names,
		"stats":  s.Board.Stats(),
	})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.Board.Clear()
	slog.Info("board cleared")
	writeJSON(w, map[string]any{"message": "board cleared"})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path, err := s.Snapshot(time.Now())
	if errors.Is(err, errNoSnapshotTarget) {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}
	if err != nil {
		slog.Error("snapshot failed", "error", err)
		http.Error(w, "snapshot failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]any{
		"map_id":  s.MapID,
		"file":    path,
		"message": "snapshot saved",
	})
}

// Snapshot saves the board to the store and, when a snapshot directory is
// set, writes the document to a file named after now. It returns the file
// path, or "" when no file was written.
func (s *Server) Snapshot(now time.Time) (string, error) {
	s.mu.Lock()
	doc := s.Board.Document()
	s.mu.Unlock()

	if (s.DB == nil || s.MapID == "") && s.SnapshotDir == "" {
		return "", errNoSnapshotTarget
	}

	if s.DB != nil && s.MapID != "" {
		if err := s.DB.SaveDocument(s.MapID, doc); err != nil {
			return "", fmt.Errorf("save map: %w", err)
		}
	}

	if s.SnapshotDir == "" {
		return "", nil
	}
	if err := os.MkdirAll(s.SnapshotDir, 0o755); err != nil {
		return "", fmt.Errorf("snapshot dir: %w", err)
	}
	path := filepath.Join(s.SnapshotDir, strftime.Format(SnapshotNameFormat, now))
	if err := doc.WriteFile(path); err != nil {
		return "", err
	}
	slog.Info("snapshot written", "file", path)
	return path, nil
}

// Save writes the board to the store without touching snapshot files.
func (s *Server) Save() error {
	if s.DB == nil || s.MapID == "" {
		return errNoSnapshotTarget
	}
	s.mu.Lock()
	doc := s.Board.Document()
	s.mu.Unlock()
	return s.DB.SaveDocument(s.MapID, doc)
}
