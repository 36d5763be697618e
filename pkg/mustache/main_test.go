package mustache

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

// setupTestMustache writes the given templates into a temporary directory
// and returns a coordinator resolving names from it.
func setupTestMustache(tb testing.TB, templates map[string]string) (*Mustache, string) {
	tb.Helper()

	dir := tb.TempDir()
	for name, content := range templates {
		path := filepath.Join(dir, filepath.FromSlash(name)+DefaultSuffix)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			tb.Fatalf("failed to create template dir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			tb.Fatalf("failed to write template %s: %v", name, err)
		}
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	config := DefaultConfig()
	config.TemplatePaths = []string{dir}
	return New(logger, config), dir
}

// countingResolver serves templates from memory and counts lookups.
type countingResolver struct {
	templates map[string]string
	resolves  int
	loads     int
	mu        sync.Mutex
}

func newCountingResolver(templates map[string]string) *countingResolver {
	return &countingResolver{templates: templates}
}

func (r *countingResolver) Resolve(name string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolves++
	_, ok := r.templates[name]
	return name, ok
}

func (r *countingResolver) Load(location string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loads++
	return r.templates[location], nil
}

func (r *countingResolver) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resolves, r.loads
}

// stubPragma claims the given kinds and replaces each token with
// "<out>:<value>", or declines every token.
type stubPragma struct {
	name    string
	kinds   []TokenKind
	out     string
	decline bool
}

func (s *stubPragma) Name() string {
	return s.name
}

func (s *stubPragma) HandlesTokenKind(kind TokenKind) bool {
	for _, k := range s.kinds {
		if k == kind {
			return true
		}
	}
	return false
}

func (s *stubPragma) Handle(_ *Pass, tok Token, opts Options) (string, bool, error) {
	if s.decline {
		return "", false, nil
	}
	return opts.Get("prefix", "") + s.out + ":" + tok.Value, true, nil
}
