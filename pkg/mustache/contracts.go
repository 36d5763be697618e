package mustache

import (
	"context"
	"time"
)

// Resolver maps a template name to a location its content can be read from.
type Resolver interface {
	Resolve(name string) (location string, ok bool)
}

// Loader is implemented by resolvers whose locations are not filesystem
// paths. When the configured resolver is not a Loader, locations are read
// from disk.
type Loader interface {
	Load(location string) (string, error)
}

// PathResolver is implemented by resolvers that search a stack of
// directories for templates carrying a suffix.
type PathResolver interface {
	Resolver
	AddTemplatePath(path string)
	SetSuffix(suffix string)
	Suffix() string
}

// Lexer compiles raw template text into tokens. The name is empty for
// literal templates.
type Lexer interface {
	Compile(text, name string) (Tokens, error)
}

// Renderer interprets tokens against a view. Partials maps aliases passed
// to the current render call to their tokens.
type Renderer interface {
	Render(ctx context.Context, tokens Tokens, view any, partials map[string]Tokens) (string, error)
}

// PragmaRegistry is implemented by renderers that accept pragmas.
type PragmaRegistry interface {
	AddPragma(p Pragma)
}

// ManagerAware is implemented by lexers and renderers that need to resolve
// nested templates through the coordinator that wires them.
type ManagerAware interface {
	SetManager(m *Mustache)
}

// Observer receives coordinator events. Implementations must be safe for
// concurrent use.
type Observer interface {
	CacheHit(name string)
	CacheMiss(name string)
	TemplateFetched(name string)
	RenderFinished(elapsed time.Duration, err error)
}

type nopObserver struct{}

func (nopObserver) CacheHit(string)                     {}
func (nopObserver) CacheMiss(string)                    {}
func (nopObserver) TemplateFetched(string)              {}
func (nopObserver) RenderFinished(time.Duration, error) {}
