package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// newTestServer starts a server over a temporary data dir holding one
// template file, greet.mustache.
func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()
	templates := filepath.Join(dir, "templates")
	if err := os.MkdirAll(templates, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(templates, "greet.mustache"), []byte("Hello {{name}}!"), 0644); err != nil {
		t.Fatal(err)
	}

	config := DefaultConfig()
	config.Server.DataDir = dir
	config.Server.DatabasePath = filepath.Join(dir, "stache.db")
	config.Server.SnapshotDir = filepath.Join(dir, "snapshots")
	config.Templates.TemplatePaths = []string{templates}
	data, err := json.Marshal(config)
	if err != nil {
		t.Fatal(err)
	}
	configPath := filepath.Join(dir, "config.json")
	if err = os.WriteFile(configPath, data, 0644); err != nil {
		t.Fatal(err)
	}

	cm, err := NewConfigManager(configPath)
	if err != nil {
		t.Fatalf("NewConfigManager failed: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cm.SetLogger(logger)

	db, err := openDB(config.Server.DatabasePath)
	if err != nil {
		t.Fatalf("openDB failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	server, err := NewServer(cm, logger, db, make(chan string, 1))
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	t.Cleanup(server.Close)
	return server
}

func doRequest(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	return rr
}

func TestAPI_Health(t *testing.T) {
	s := newTestServer(t)
	rr := doRequest(t, s, http.MethodGet, "/api/health", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("expected status 'ok', got %v", body["status"])
	}

	rr = doRequest(t, s, http.MethodGet, "/api/nowhere", "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404 for unknown route, got %d", rr.Code)
	}
}

func TestAPI_Render(t *testing.T) {
	s := newTestServer(t)

	testCases := []struct {
		name       string
		path       string
		body       string
		wantStatus int
		wantBody   string
	}{
		{
			name:       "literal escapes",
			path:       "/api/render",
			body:       `{"template": "Hi {{name}}", "view": {"name": "<b>"}}`,
			wantStatus: http.StatusOK,
			wantBody:   "Hi &lt;b&gt;",
		},
		{
			name:       "literal with partials",
			path:       "/api/render",
			body:       `{"template": "{{#items}}{{>row}}{{/items}}", "view": {"items": [{"v": 1}, {"v": 2}]}, "partials": {"row": "[{{v}}]"}}`,
			wantStatus: http.StatusOK,
			wantBody:   "[1][2]",
		},
		{
			name:       "named file template",
			path:       "/api/render/greet",
			body:       `{"name": "Ann"}`,
			wantStatus: http.StatusOK,
			wantBody:   "Hello Ann!",
		},
		{
			name:       "named with empty body",
			path:       "/api/render/greet",
			body:       "",
			wantStatus: http.StatusOK,
			wantBody:   "Hello !",
		},
		{name: "missing template", path: "/api/render/nope", body: `{}`, wantStatus: http.StatusNotFound},
		{name: "unbalanced", path: "/api/render", body: `{"template": "{{#a}}"}`, wantStatus: http.StatusBadRequest},
		{name: "no template", path: "/api/render", body: `{"view": {}}`, wantStatus: http.StatusBadRequest},
		{name: "bad json", path: "/api/render", body: `{`, wantStatus: http.StatusBadRequest},
		{name: "bad view", path: "/api/render/greet", body: `[1]`, wantStatus: http.StatusBadRequest},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rr := doRequest(t, s, http.MethodPost, tc.path, tc.body)
			if rr.Code != tc.wantStatus {
				t.Fatalf("expected status %d, got %d: %s", tc.wantStatus, rr.Code, rr.Body.String())
			}
			if tc.wantBody != "" && rr.Body.String() != tc.wantBody {
				t.Errorf("expected body '%s', got '%s'", tc.wantBody, rr.Body.String())
			}
		})
	}
}

func TestAPI_StoredTemplates(t *testing.T) {
	s := newTestServer(t)

	rr := doRequest(t, s, http.MethodPut, "/api/templates/mail/welcome", "Welcome {{who}}")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status 204 on PUT, got %d: %s", rr.Code, rr.Body.String())
	}
	rr = doRequest(t, s, http.MethodGet, "/api/templates/mail/welcome", "")
	if rr.Code != http.StatusOK || rr.Body.String() != "Welcome {{who}}" {
		t.Errorf("unexpected GET response %d '%s'", rr.Code, rr.Body.String())
	}
	rr = doRequest(t, s, http.MethodPost, "/api/render/mail/welcome", `{"who": "Bo"}`)
	if rr.Body.String() != "Welcome Bo" {
		t.Errorf("unexpected render '%s'", rr.Body.String())
	}

	// A replaced template is picked up on the next render.
	rr = doRequest(t, s, http.MethodPut, "/api/templates/mail/welcome", "Hi {{who}}")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status 204 on replace, got %d", rr.Code)
	}
	rr = doRequest(t, s, http.MethodPost, "/api/render/mail/welcome", `{"who": "Bo"}`)
	if rr.Body.String() != "Hi Bo" {
		t.Errorf("expected replaced template to render, got '%s'", rr.Body.String())
	}

	rr = doRequest(t, s, http.MethodPut, "/api/templates/broken", "{{/x}}")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400 for a template that does not compile, got %d", rr.Code)
	}

	rr = doRequest(t, s, http.MethodGet, "/api/templates", "")
	var names []string
	if err := json.NewDecoder(rr.Body).Decode(&names); err != nil {
		t.Fatalf("failed to decode names: %v", err)
	}
	if diff := cmp.Diff([]string{"greet", "mail/welcome"}, names); diff != "" {
		t.Errorf("unexpected template names (-want +got):\n%s", diff)
	}

	rr = doRequest(t, s, http.MethodGet, "/api/cache", "")
	var entries []cacheEntry
	if err := json.NewDecoder(rr.Body).Decode(&entries); err != nil {
		t.Fatalf("failed to decode cache entries: %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "mail/welcome" {
		t.Errorf("unexpected cache entries %+v", entries)
	}

	rr = doRequest(t, s, http.MethodDelete, "/api/templates/mail/welcome", "")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status 204 on DELETE, got %d", rr.Code)
	}
	rr = doRequest(t, s, http.MethodPost, "/api/render/mail/welcome", `{}`)
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404 after DELETE, got %d", rr.Code)
	}
	rr = doRequest(t, s, http.MethodGet, "/api/templates/mail/welcome", "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404 on GET after DELETE, got %d", rr.Code)
	}
}

func TestAPI_TemplateNamedCache(t *testing.T) {
	s := newTestServer(t)

	rr := doRequest(t, s, http.MethodPut, "/api/templates/cache", "cached {{v}}")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status 204 on PUT, got %d: %s", rr.Code, rr.Body.String())
	}
	rr = doRequest(t, s, http.MethodGet, "/api/templates/cache", "")
	if rr.Code != http.StatusOK || rr.Body.String() != "cached {{v}}" {
		t.Errorf("expected the stored template, got %d '%s'", rr.Code, rr.Body.String())
	}

	rr = doRequest(t, s, http.MethodGet, "/api/cache", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200 for the cache listing, got %d", rr.Code)
	}
	var entries []cacheEntry
	if err := json.NewDecoder(rr.Body).Decode(&entries); err != nil {
		t.Fatalf("failed to decode cache entries: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected an empty cache, got %+v", entries)
	}
}

func TestAPI_Snapshots(t *testing.T) {
	s := newTestServer(t)

	rr := doRequest(t, s, http.MethodPut, "/api/snapshots/boot?warm=true", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200 on save, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = doRequest(t, s, http.MethodGet, "/api/snapshots", "")
	var infos []struct {
		Name      string
		Templates int
	}
	if err := json.NewDecoder(rr.Body).Decode(&infos); err != nil {
		t.Fatalf("failed to decode snapshot list: %v", err)
	}
	if len(infos) != 1 || infos[0].Name != "boot" || infos[0].Templates != 1 {
		t.Errorf("unexpected snapshot list %+v", infos)
	}

	rr = doRequest(t, s, http.MethodGet, "/api/snapshots/boot/export", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200 on export, got %d", rr.Code)
	}
	exported := rr.Body.String()
	if !strings.Contains(exported, `"version": 1`) || !strings.Contains(exported, `"greet"`) {
		t.Errorf("unexpected export body:\n%s", exported)
	}

	rr = doRequest(t, s, http.MethodPost, "/api/snapshots/copy/import", exported)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200 on import, got %d: %s", rr.Code, rr.Body.String())
	}
	rr = doRequest(t, s, http.MethodPost, "/api/snapshots/copy/import", `{"version": 7}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400 for a bad import, got %d", rr.Code)
	}

	s.engine.RestoreTokens(nil)
	rr = doRequest(t, s, http.MethodPost, "/api/snapshots/copy/restore", "")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status 204 on restore, got %d", rr.Code)
	}
	if n := s.engine.CachedCount(); n != 1 {
		t.Errorf("expected 1 cached template after restore, got %d", n)
	}

	rr = doRequest(t, s, http.MethodPost, "/api/snapshots/missing/restore", "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404 for a missing snapshot, got %d", rr.Code)
	}

	rr = doRequest(t, s, http.MethodDelete, "/api/snapshots/copy", "")
	if rr.Code != http.StatusNoContent {
		t.Errorf("expected status 204 on delete, got %d", rr.Code)
	}
}

func TestAPI_Metrics(t *testing.T) {
	s := newTestServer(t)
	doRequest(t, s, http.MethodPost, "/api/render/greet", `{"name": "Ann"}`)

	rr := doRequest(t, s, http.MethodGet, "/metrics", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "stache_renders_total") {
		t.Errorf("expected render counter in metrics output")
	}
}
