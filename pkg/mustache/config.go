package mustache

// Config holds the configuration for a Mustache coordinator.
type Config struct {
	// TemplatePaths is the search path stack handed to the default resolver.
	// Later entries take precedence.
	TemplatePaths []string `json:"template_paths"`

	// Suffix is appended to template names that do not already carry it.
	Suffix string `json:"suffix"`

	// MaxDepth caps how deeply partials and sub-views may nest in one render.
	MaxDepth int `json:"max_depth"`

	// ResolverCacheSize is the number of resolved template locations kept in
	// memory. Zero disables location caching.
	ResolverCacheSize int `json:"resolver_cache_size"`
}

const (
	// DefaultSuffix is the template file suffix used when none is configured.
	DefaultSuffix = ".mustache"

	defaultMaxDepth = 64
)

// DefaultConfig returns a Config with safe default values.
func DefaultConfig() *Config {
	return &Config{
		TemplatePaths:     []string{},
		Suffix:            DefaultSuffix,
		MaxDepth:          defaultMaxDepth,
		ResolverCacheSize: 128,
	}
}
