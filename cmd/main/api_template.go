package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"

	"github.com/gorilla/mux"
)

// TemplateAPI holds the dependencies for the template and render handlers.
type TemplateAPI struct {
	engine   *Engine
	maxBytes int64
	logger   *slog.Logger
}

// NewTemplateAPI creates a new instance of the TemplateAPI.
func NewTemplateAPI(engine *Engine, maxBytes int64, logger *slog.Logger) *TemplateAPI {
	return &TemplateAPI{
		engine:   engine,
		maxBytes: maxBytes,
		logger:   logger,
	}
}

// renderRequest is the body of a literal render.
type renderRequest struct {
	Template string            `json:"template"`
	View     map[string]any    `json:"view"`
	Partials map[string]string `json:"partials"`
}

// cacheEntry describes one compiled template held by the engine.
type cacheEntry struct {
	Name   string `json:"name"`
	Tokens int    `json:"tokens"`
}

// RegisterRoutes sets up the routing for the /api/templates, /api/cache and
// /api/render endpoints.
func (t *TemplateAPI) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/templates", t.handleList).Methods(http.MethodGet)
	r.HandleFunc("/api/cache", t.handleCache).Methods(http.MethodGet)
	r.HandleFunc("/api/templates/{name:.+}", t.handleGet).Methods(http.MethodGet)
	r.HandleFunc("/api/templates/{name:.+}", t.handlePut).Methods(http.MethodPut)
	r.HandleFunc("/api/templates/{name:.+}", t.handleDelete).Methods(http.MethodDelete)
	r.HandleFunc("/api/render", t.handleRenderLiteral).Methods(http.MethodPost)
	r.HandleFunc("/api/render/{name:.+}", t.handleRenderNamed).Methods(http.MethodPost)
}

// handleList returns the names of every resolvable template.
func (t *TemplateAPI) handleList(w http.ResponseWriter, r *http.Request) {
	names, err := t.engine.Names(r.Context())
	if err != nil {
		t.logger.Error("Failed to list templates", "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to list templates: %v", err))
		return
	}
	respondWithJSON(w, http.StatusOK, names)
}

// handleCache returns the compiled templates and partial aliases in the
// token cache.
func (t *TemplateAPI) handleCache(w http.ResponseWriter, _ *http.Request) {
	snap := t.engine.GetAllTokens()
	entries := make([]cacheEntry, 0, len(snap))
	for name, tokens := range snap {
		entries = append(entries, cacheEntry{Name: name, Tokens: len(tokens)})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	respondWithJSON(w, http.StatusOK, entries)
}

// handleGet returns the content of a template kept in the database.
func (t *TemplateAPI) handleGet(w http.ResponseWriter, r *http.Request) {
	stored := t.engine.Stored()
	if stored == nil {
		respondWithError(w, http.StatusNotFound, "Template storage is not configured")
		return
	}
	name := mux.Vars(r)["name"]
	if _, ok := stored.Resolve(name); !ok {
		respondWithError(w, http.StatusNotFound, fmt.Sprintf("Template '%s' not found", name))
		return
	}
	content, err := stored.Load(name)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, content)
}

// handlePut stores a template in the database after checking that it
// compiles, and evicts any cached tokens for it.
func (t *TemplateAPI) handlePut(w http.ResponseWriter, r *http.Request) {
	stored := t.engine.Stored()
	if stored == nil {
		respondWithError(w, http.StatusNotFound, "Template storage is not configured")
		return
	}
	name := mux.Vars(r)["name"]
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, t.maxBytes))
	if err != nil {
		respondWithError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("Failed to read request body: %v", err))
		return
	}
	if _, err = t.engine.Lexer().Compile(string(body), name); err != nil {
		respondWithError(w, errorStatus(err), fmt.Sprintf("Template does not compile: %v", err))
		return
	}
	if err = stored.Put(r.Context(), name, string(body)); err != nil {
		t.logger.Error("Failed to store template", "name", name, "error", err)
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	t.engine.Evict(name)
	w.WriteHeader(http.StatusNoContent)
}

// handleDelete removes a template from the database.
func (t *TemplateAPI) handleDelete(w http.ResponseWriter, r *http.Request) {
	stored := t.engine.Stored()
	if stored == nil {
		respondWithError(w, http.StatusNotFound, "Template storage is not configured")
		return
	}
	name := mux.Vars(r)["name"]
	if err := stored.Delete(r.Context(), name); err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	t.engine.Evict(name)
	w.WriteHeader(http.StatusNoContent)
}

// handleRenderLiteral renders the template reference in the request body,
// which may be literal template text or a name.
func (t *TemplateAPI) handleRenderLiteral(w http.ResponseWriter, r *http.Request) {
	var req renderRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, t.maxBytes)).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid JSON request body")
		return
	}
	if req.Template == "" {
		respondWithError(w, http.StatusBadRequest, "Field 'template' is required")
		return
	}
	var partials any
	if len(req.Partials) > 0 {
		partials = req.Partials
	}
	t.render(w, r, req.Template, req.View, partials)
}

// handleRenderNamed renders a named template against the JSON view in the
// request body.
func (t *TemplateAPI) handleRenderNamed(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, t.maxBytes))
	if err != nil {
		respondWithError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("Failed to read request body: %v", err))
		return
	}
	view, err := decodeJSONView(data)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	t.render(w, r, name, view, nil)
}

func (t *TemplateAPI) render(w http.ResponseWriter, r *http.Request, template string, view map[string]any, partials any) {
	out, err := t.engine.Render(r.Context(), template, view, partials)
	if err != nil {
		status := errorStatus(err)
		if status == http.StatusInternalServerError {
			t.logger.Error("Failed to render template", "error", err)
		}
		respondWithError(w, status, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, out)
}
