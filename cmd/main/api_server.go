package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/CTAG07/stache/pkg/mustache"
	"github.com/CTAG07/stache/pkg/tokenstore"
	"github.com/gorilla/mux"
)

const (
	actionShutdown = "shutdown"
	actionRestart  = "restart"
)

// ServerAPI holds the dependencies for the main application API handlers.
type ServerAPI struct {
	cm         *ConfigManager
	actionChan chan string
	engine     *Engine
	logger     *slog.Logger
}

// VersionInfo defines the structure for build/version information.
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
}

// NewServerAPI creates a new instance of the ServerAPI.
func NewServerAPI(cm *ConfigManager, actionChan chan string, engine *Engine, logger *slog.Logger) *ServerAPI {
	return &ServerAPI{
		cm:         cm,
		actionChan: actionChan,
		engine:     engine,
		logger:     logger,
	}
}

// RegisterRoutes sets up the routing for the health check and all
// /api/server endpoints.
func (a *ServerAPI) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/health", a.handleHealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/api/server/config", a.handleGetConfig).Methods(http.MethodGet)
	r.HandleFunc("/api/server/config", a.handleUpdateConfig).Methods(http.MethodPut)
	r.HandleFunc("/api/server/version", a.handleVersion).Methods(http.MethodGet)
	r.HandleFunc("/api/server/shutdown", a.handleAction(actionShutdown)).Methods(http.MethodPost)
	r.HandleFunc("/api/server/restart", a.handleAction(actionRestart)).Methods(http.MethodPost)
}

// handleHealthCheck reports liveness along with the size of the token cache.
func (a *ServerAPI) handleHealthCheck(w http.ResponseWriter, _ *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"cached_tokens": a.engine.CachedCount(),
	})
}

func (a *ServerAPI) handleGetConfig(w http.ResponseWriter, _ *http.Request) {
	respondWithJSON(w, http.StatusOK, a.cm.Get())
}

// handleUpdateConfig replaces and persists the configuration. Only new
// template paths apply immediately; the rest needs a restart.
func (a *ServerAPI) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var newConfig Config
	if err := json.NewDecoder(r.Body).Decode(&newConfig); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid JSON request body")
		return
	}
	if err := a.cm.Update(newConfig); err != nil {
		a.logger.Error("Failed to update configuration", "error", err)
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	a.logger.Info("Application configuration updated and saved via API. Some changes may require a restart.")
	respondWithJSON(w, http.StatusOK, a.cm.Get())
}

// handleVersion returns the application's build information.
func (a *ServerAPI) handleVersion(w http.ResponseWriter, _ *http.Request) {
	respondWithJSON(w, http.StatusOK, VersionInfo{
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
	})
}

// handleAction asks the serve loop to shut down or restart.
func (a *ServerAPI) handleAction(action string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		a.logger.Warn("Server action initiated via API", "action", action)
		respondWithJSON(w, http.StatusAccepted, map[string]string{"message": "Server action accepted: " + action})
		go func() {
			a.actionChan <- action
		}()
	}
}

// errorStatus maps engine and store errors to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, mustache.ErrTemplateNotFound), errors.Is(err, tokenstore.ErrSnapshotNotFound):
		return http.StatusNotFound
	case errors.Is(err, mustache.ErrUnbalancedTag),
		errors.Is(err, mustache.ErrInvalidPragmaName),
		errors.Is(err, mustache.ErrInvalidPartials),
		errors.Is(err, mustache.ErrInvalidTemplateReference),
		errors.Is(err, mustache.ErrInvalidSubViewArgument):
		return http.StatusBadRequest
	case errors.Is(err, mustache.ErrTemplateCycle):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			slog.Default().Error("Failed to encode JSON response", "error", err)
		}
	}
}
