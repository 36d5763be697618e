package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/CTAG07/stache/pkg/metrics"
	"github.com/CTAG07/stache/pkg/mustache"
	"github.com/CTAG07/stache/pkg/pragma"
	"github.com/CTAG07/stache/pkg/resolver"
	"github.com/prometheus/client_golang/prometheus"
)

// knownPragmas maps pragma names accepted in enabled_pragmas to their
// constructors.
var knownPragmas = map[string]func() mustache.Pragma{
	pragma.SubViewsName:         func() mustache.Pragma { return pragma.NewSubViews() },
	pragma.ImplicitIteratorName: func() mustache.Pragma { return pragma.NewImplicitIterator() },
	pragma.MarkdownName:         func() mustache.Pragma { return pragma.NewMarkdown() },
}

// Engine bundles a coordinator with the stores backing it.
type Engine struct {
	*mustache.Mustache
	files   *resolver.FileResolver
	stored  *resolver.SQLResolver
	metrics *metrics.Collector
}

// newEngine wires a coordinator for config. Templates are looked up on disk
// first and in the database second; db may be nil for disk-only use. reg
// may be nil to skip metrics.
func newEngine(config *Config, logger *slog.Logger, db *sql.DB, reg prometheus.Registerer) (*Engine, error) {
	m := mustache.New(logger, config.Templates)
	e := &Engine{Mustache: m}

	renderer := mustache.NewDefaultRenderer()
	for _, name := range config.Server.EnabledPragmas {
		build, ok := knownPragmas[name]
		if !ok {
			return nil, fmt.Errorf("unknown pragma '%s'", name)
		}
		renderer.AddPragma(build())
	}
	m.SetRenderer(renderer)

	e.files = resolver.NewFileResolver(config.Templates.TemplatePaths, config.Templates.Suffix)
	var r mustache.Resolver = e.files
	if config.Templates.ResolverCacheSize > 0 {
		r = resolver.NewCachingResolver(e.files, config.Templates.ResolverCacheSize)
	}
	if db != nil {
		stored, err := resolver.NewSQLResolver(db)
		if err != nil {
			return nil, fmt.Errorf("failed to create sql resolver: %w", err)
		}
		stored.SetLogger(logger)
		e.stored = stored
		r = resolver.NewChain(r, stored)
	}
	m.SetResolver(r)

	if reg != nil {
		collector, err := metrics.NewCollector(reg)
		if err != nil {
			e.Close()
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
		e.metrics = collector
		m.SetObserver(collector)
	}

	logger.Debug("Template engine ready",
		"paths", e.files.Paths(),
		"pragmas", renderer.Pragmas(),
		"database", db != nil,
	)
	return e, nil
}

// Close releases the database statements held by the engine.
func (e *Engine) Close() {
	if e.stored != nil {
		e.stored.Close()
	}
}

// Stored returns the database template store, or nil for disk-only engines.
func (e *Engine) Stored() *resolver.SQLResolver {
	return e.stored
}

// Names lists every template the engine can resolve: files under the
// search paths plus stored templates, sorted and without duplicates.
func (e *Engine) Names(ctx context.Context) ([]string, error) {
	seen := make(map[string]bool)
	suffix := e.files.Suffix()
	for _, dir := range e.files.Paths() {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !strings.HasSuffix(path, suffix) {
				return nil
			}
			rel, err := filepath.Rel(dir, path)
			if err != nil {
				return err
			}
			seen[strings.TrimSuffix(filepath.ToSlash(rel), suffix)] = true
			return nil
		})
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to list templates in '%s': %w", dir, err)
		}
	}
	if e.stored != nil {
		stored, err := e.stored.Names(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list stored templates: %w", err)
		}
		for _, name := range stored {
			seen[name] = true
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Warm tokenizes names, or every template from Names when none are given,
// so a following snapshot holds them. It returns the number compiled.
func (e *Engine) Warm(ctx context.Context, names ...string) (int, error) {
	if len(names) == 0 {
		var err error
		if names, err = e.Names(ctx); err != nil {
			return 0, err
		}
	}
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if _, err := e.Tokenize(name); err != nil {
			return 0, fmt.Errorf("failed to compile '%s': %w", name, err)
		}
	}
	return len(names), nil
}

// Evict drops a template from the token cache so the next render fetches
// it again. Fetched but uncompiled content is dropped as well.
func (e *Engine) Evict(name string) {
	snap := e.GetAllTokens()
	delete(snap, name)
	e.RestoreTokens(snap)
}
