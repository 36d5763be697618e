package main

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/CTAG07/stache/pkg/tokenstore"
	"github.com/gorilla/mux"
)

// SnapshotAPI holds the dependencies for the token snapshot handlers.
type SnapshotAPI struct {
	engine   *Engine
	store    *tokenstore.SQLStore
	maxBytes int64
	logger   *slog.Logger
}

// NewSnapshotAPI creates a new instance of the SnapshotAPI.
func NewSnapshotAPI(engine *Engine, store *tokenstore.SQLStore, maxBytes int64, logger *slog.Logger) *SnapshotAPI {
	return &SnapshotAPI{
		engine:   engine,
		store:    store,
		maxBytes: maxBytes,
		logger:   logger,
	}
}

// RegisterRoutes sets up the routing for all /api/snapshots endpoints.
func (s *SnapshotAPI) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/snapshots", s.handleList).Methods(http.MethodGet)
	r.HandleFunc("/api/snapshots/{name}", s.handleSave).Methods(http.MethodPut)
	r.HandleFunc("/api/snapshots/{name}", s.handleDelete).Methods(http.MethodDelete)
	r.HandleFunc("/api/snapshots/{name}/restore", s.handleRestore).Methods(http.MethodPost)
	r.HandleFunc("/api/snapshots/{name}/export", s.handleExport).Methods(http.MethodGet)
	r.HandleFunc("/api/snapshots/{name}/import", s.handleImport).Methods(http.MethodPost)
}

func (s *SnapshotAPI) handleList(w http.ResponseWriter, r *http.Request) {
	infos, err := s.store.List(r.Context())
	if err != nil {
		s.logger.Error("Failed to list snapshots", "error", err)
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if infos == nil {
		infos = []tokenstore.SnapshotInfo{}
	}
	respondWithJSON(w, http.StatusOK, infos)
}

// handleSave persists the current token cache. With ?warm=true every
// resolvable template is compiled first.
func (s *SnapshotAPI) handleSave(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if r.URL.Query().Get("warm") == "true" {
		if _, err := s.engine.Warm(r.Context()); err != nil {
			respondWithError(w, errorStatus(err), fmt.Sprintf("Failed to warm cache: %v", err))
			return
		}
	}
	if err := tokenstore.Persist(r.Context(), s.store, name, s.engine.Mustache); err != nil {
		s.logger.Error("Failed to save snapshot", "name", name, "error", err)
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"name": name, "templates": len(s.engine.GetAllTokens())})
}

// handleRestore replaces the token cache with a saved snapshot.
func (s *SnapshotAPI) handleRestore(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if err := tokenstore.Seed(r.Context(), s.store, name, s.engine.Mustache); err != nil {
		respondWithError(w, errorStatus(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *SnapshotAPI) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Remove(r.Context(), mux.Vars(r)["name"]); err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleExport streams a saved snapshot in the export format.
func (s *SnapshotAPI) handleExport(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	snap, err := s.store.Load(r.Context(), name)
	if err != nil {
		respondWithError(w, errorStatus(err), err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+".json"))
	if err = tokenstore.Export(w, snap); err != nil {
		s.logger.Error("Failed to export snapshot", "name", name, "error", err)
	}
}

// handleImport saves an exported snapshot under name.
func (s *SnapshotAPI) handleImport(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	snap, err := tokenstore.Import(http.MaxBytesReader(w, r.Body, s.maxBytes))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err = s.store.Save(r.Context(), name, snap); err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"name": name, "templates": len(snap)})
}
