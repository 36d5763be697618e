package mustache

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/CTAG07/stache/pkg/resolver"
)

// openTag marks a template reference as literal template text.
const openTag = "{{"

// Mustache is the central coordinator of the engine. It owns the token
// cache, wires a Lexer, Renderer and Resolver together and drives the
// tokenize, resolve partials, render pipeline. Cache access is guarded, so
// concurrent calls are safe; two calls tokenizing the same name race and
// the last write wins.
type Mustache struct {
	logger   *slog.Logger
	config   *Config
	cache    *templateCache
	lexer    Lexer
	renderer Renderer
	resolver Resolver
	observer Observer
	mu       sync.Mutex
}

// New creates a coordinator. A nil logger discards all output and a nil
// config is replaced by DefaultConfig. Lexer, Renderer and Resolver are
// built lazily on first use unless set beforehand.
func New(logger *slog.Logger, config *Config) *Mustache {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if config == nil {
		config = DefaultConfig()
	}
	return &Mustache{
		logger:   logger,
		config:   config,
		cache:    newTemplateCache(),
		observer: nopObserver{},
	}
}

// SetLogger replaces the logger. Nil is ignored.
func (m *Mustache) SetLogger(logger *slog.Logger) {
	if logger == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logger = logger
}

// Logger returns the coordinator's logger.
func (m *Mustache) Logger() *slog.Logger {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.logger
}

// Config returns a copy of the current configuration.
func (m *Mustache) Config() Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.config
}

// SetObserver installs an event observer. Nil restores the no-op observer.
func (m *Mustache) SetObserver(o Observer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o == nil {
		o = nopObserver{}
	}
	m.observer = o
}

func (m *Mustache) events() Observer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.observer
}

// SetLexer sets the lexer used to compile templates and binds it to m.
func (m *Mustache) SetLexer(l Lexer) {
	m.mu.Lock()
	m.lexer = l
	m.mu.Unlock()
	if ma, ok := l.(ManagerAware); ok {
		ma.SetManager(m)
	}
}

// Lexer returns the configured lexer, creating a DefaultLexer if unset.
func (m *Mustache) Lexer() Lexer {
	m.mu.Lock()
	l := m.lexer
	m.mu.Unlock()
	if l == nil {
		l = NewDefaultLexer()
		m.SetLexer(l)
	}
	return l
}

// SetRenderer sets the renderer and binds it to m.
func (m *Mustache) SetRenderer(r Renderer) {
	m.mu.Lock()
	m.renderer = r
	m.mu.Unlock()
	if ma, ok := r.(ManagerAware); ok {
		ma.SetManager(m)
	}
}

// Renderer returns the configured renderer, creating a DefaultRenderer if unset.
func (m *Mustache) Renderer() Renderer {
	m.mu.Lock()
	r := m.renderer
	m.mu.Unlock()
	if r == nil {
		r = NewDefaultRenderer()
		m.SetRenderer(r)
	}
	return r
}

// SetResolver sets the template resolver.
func (m *Mustache) SetResolver(r Resolver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolver = r
}

// Resolver returns the configured resolver. When unset, a filesystem
// resolver over Config.TemplatePaths is created, wrapped in a location
// cache when Config.ResolverCacheSize is positive.
func (m *Mustache) Resolver() Resolver {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.resolver == nil {
		var r PathResolver = resolver.NewFileResolver(m.config.TemplatePaths, m.config.Suffix)
		if m.config.ResolverCacheSize > 0 {
			r = resolver.NewCachingResolver(r, m.config.ResolverCacheSize)
		}
		m.resolver = r
	}
	return m.resolver
}

// AddTemplatePath pushes a directory onto the resolver's search path stack.
func (m *Mustache) AddTemplatePath(path string) error {
	pr, ok := m.Resolver().(PathResolver)
	if !ok {
		return ErrResolverNotConfigurable
	}
	pr.AddTemplatePath(path)
	return nil
}

// SetSuffix sets the suffix the resolver appends to template names.
func (m *Mustache) SetSuffix(suffix string) error {
	pr, ok := m.Resolver().(PathResolver)
	if !ok {
		return ErrResolverNotConfigurable
	}
	pr.SetSuffix(suffix)
	return nil
}

// Suffix returns the resolver's template suffix, or the configured suffix
// when the resolver does not use one.
func (m *Mustache) Suffix() string {
	if pr, ok := m.Resolver().(PathResolver); ok {
		return pr.Suffix()
	}
	return m.Config().Suffix
}

// Render renders template against view. The template is literal template
// text when it contains "{{", otherwise the name of a template to resolve.
//
// Partials, when not nil, must be a map with string keys or a struct. Only
// string values are used: each is compiled as template text, cached under
// its alias for the lifetime of m and handed to the renderer. Other values
// are skipped.
//
// Nothing is returned on failure; errors from the lexer are returned as is.
func (m *Mustache) Render(ctx context.Context, template string, view any, partials any) (string, error) {
	start := time.Now()
	out, err := m.render(ctx, template, view, partials)
	m.events().RenderFinished(time.Since(start), err)
	if err != nil {
		return "", err
	}
	return out, nil
}

// RenderTo renders like Render and writes the result to w once the render
// has completed.
func (m *Mustache) RenderTo(ctx context.Context, w io.Writer, template string, view any, partials any) error {
	out, err := m.Render(ctx, template, view, partials)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, out)
	return err
}

func (m *Mustache) render(ctx context.Context, template string, view any, partials any) (string, error) {
	aliases, err := partialTemplates(partials)
	if err != nil {
		return "", err
	}

	var tokenized map[string]Tokens
	if len(aliases) > 0 {
		names := make([]string, 0, len(aliases))
		for alias := range aliases {
			names = append(names, alias)
		}
		sort.Strings(names)

		lexer := m.Lexer()
		tokenized = make(map[string]Tokens, len(aliases))
		for _, alias := range names {
			tokens, err := lexer.Compile(aliases[alias], alias)
			if err != nil {
				return "", err
			}
			tokenized[alias] = tokens
			m.cache.storeCompiled(alias, tokens)
		}
	}

	return m.renderNested(ctx, template, view, tokenized)
}

// renderNested tokenizes and renders template inside the cycle guard of the
// render call carried by ctx.
func (m *Mustache) renderNested(ctx context.Context, template string, view any, partials map[string]Tokens) (string, error) {
	tokens, err := m.Tokenize(template)
	if err != nil {
		return "", err
	}

	name := template
	if isLiteral(template) {
		name = ""
	}
	ctx, leave, err := enterTemplate(ctx, name, m.Config().MaxDepth)
	if err != nil {
		return "", err
	}
	defer leave()

	return m.Renderer().Render(ctx, tokens, view, partials)
}

// Tokenize returns the tokens for a template reference.
//
// Literal template text is compiled directly and never cached, since it has
// no stable identity. A name with compiled tokens in the cache returns them.
// Any other name is fetched through the resolver, compiled and cached.
func (m *Mustache) Tokenize(template string) (Tokens, error) {
	lexer := m.Lexer()
	if isLiteral(template) {
		return lexer.Compile(template, "")
	}

	var content string
	var fetched bool
	if e, ok := m.cache.get(template); ok {
		switch e := e.(type) {
		case compiledEntry:
			m.events().CacheHit(template)
			return e.tokens, nil
		case rawEntry:
			content, fetched = e.content, true
		}
	}
	m.events().CacheMiss(template)

	if !fetched {
		var err error
		if content, err = m.fetchTemplate(template); err != nil {
			return nil, err
		}
	}

	tokens, err := lexer.Compile(content, template)
	if err != nil {
		return nil, err
	}
	m.cache.storeCompiled(template, tokens)
	return tokens, nil
}

// fetchTemplate resolves and reads a named template and stores the raw
// content in the cache under that name.
func (m *Mustache) fetchTemplate(name string) (string, error) {
	r := m.Resolver()
	location, ok := r.Resolve(name)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrTemplateNotFound, name)
	}

	var content string
	if loader, isLoader := r.(Loader); isLoader {
		var err error
		if content, err = loader.Load(location); err != nil {
			return "", fmt.Errorf("failed to load template %q: %w", name, err)
		}
	} else {
		data, err := os.ReadFile(location)
		if err != nil {
			return "", fmt.Errorf("failed to read template %q: %w", name, err)
		}
		content = string(data)
	}

	m.cache.storeRaw(name, content)
	m.events().TemplateFetched(name)
	m.Logger().Debug("Fetched template", "name", name, "location", location)
	return content, nil
}

// GetAllTokens returns a snapshot of every compiled template and partial
// alias held by m, for seeding other instances with RestoreTokens.
func (m *Mustache) GetAllTokens() Snapshot {
	return m.cache.snapshot()
}

// RestoreTokens replaces the whole cache with the given snapshot.
func (m *Mustache) RestoreTokens(s Snapshot) {
	m.cache.restore(s)
	m.Logger().Info("Restored template tokens", "count", len(s))
}

// CachedCount returns the number of cache entries, raw or compiled.
func (m *Mustache) CachedCount() int {
	return m.cache.len()
}

func isLiteral(template string) bool {
	return strings.Contains(template, openTag)
}
