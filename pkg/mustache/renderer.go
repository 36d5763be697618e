package mustache

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// DefaultRenderer interprets tokens produced by DefaultLexer. Pragmas are
// registered once with AddPragma and activated per render by pragma tags.
// All per-render state lives in a Pass, so one renderer and its pragmas can
// serve concurrent renders.
type DefaultRenderer struct {
	manager *Mustache
	pragmas map[string]Pragma
	mu      sync.RWMutex
}

// NewDefaultRenderer returns a renderer with the given pragmas registered.
func NewDefaultRenderer(pragmas ...Pragma) *DefaultRenderer {
	r := &DefaultRenderer{pragmas: make(map[string]Pragma)}
	for _, p := range pragmas {
		r.AddPragma(p)
	}
	return r
}

// SetManager binds the renderer to the coordinator used for partial lookups
// and nested renders.
func (r *DefaultRenderer) SetManager(m *Mustache) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.manager = m
}

// AddPragma registers p under its name, replacing any pragma of that name.
func (r *DefaultRenderer) AddPragma(p Pragma) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pragmas[p.Name()] = p
}

// Pragmas returns the names of the registered pragmas in sorted order.
func (r *DefaultRenderer) Pragmas() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.pragmas))
	for name := range r.pragmas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *DefaultRenderer) pragma(name string) (Pragma, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.pragmas[name]
	return p, ok
}

func (r *DefaultRenderer) coordinator() *Mustache {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.manager
}

func (r *DefaultRenderer) logger() *slog.Logger {
	m := r.coordinator()
	if m == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return m.Logger()
}

// Render renders tokens against view. Partials are consulted before the
// coordinator's cache when a partial tag is met.
func (r *DefaultRenderer) Render(ctx context.Context, tokens Tokens, view any, partials map[string]Tokens) (string, error) {
	p := &Pass{
		ctx:      ctx,
		renderer: r,
		stack:    []any{view},
		partials: partials,
	}
	var sb strings.Builder
	if err := p.renderTokens(&sb, tokens); err != nil {
		return "", err
	}
	return sb.String(), nil
}
