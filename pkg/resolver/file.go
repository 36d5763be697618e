package resolver

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Resolver maps a template name to a location.
type Resolver interface {
	Resolve(name string) (string, bool)
}

// FileResolver looks templates up in a stack of directories. The most
// recently added directory is searched first.
type FileResolver struct {
	paths  []string
	suffix string
	mu     sync.RWMutex
}

// NewFileResolver creates a resolver searching paths, in reverse order, for
// files named after the template plus suffix.
func NewFileResolver(paths []string, suffix string) *FileResolver {
	r := &FileResolver{suffix: suffix}
	for _, p := range paths {
		r.AddTemplatePath(p)
	}
	return r
}

// AddTemplatePath pushes a directory onto the search stack. Duplicates move
// to the top instead of being added twice.
func (r *FileResolver) AddTemplatePath(path string) {
	path = filepath.Clean(path)
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, p := range r.paths {
		if p == path {
			r.paths = append(r.paths[:i], r.paths[i+1:]...)
			break
		}
	}
	r.paths = append(r.paths, path)
}

// SetSuffix sets the suffix appended to template names.
func (r *FileResolver) SetSuffix(suffix string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.suffix = suffix
}

// Suffix returns the suffix appended to template names.
func (r *FileResolver) Suffix() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.suffix
}

// Paths returns the search stack, most recent last.
func (r *FileResolver) Paths() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.paths...)
}

// Resolve returns the path of the first regular file matching name. Names
// that would escape a search directory never resolve.
func (r *FileResolver) Resolve(name string) (string, bool) {
	if name == "" {
		return "", false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	file := filepath.FromSlash(name)
	if r.suffix != "" && !strings.HasSuffix(file, r.suffix) {
		file += r.suffix
	}

	for i := len(r.paths) - 1; i >= 0; i-- {
		dir := r.paths[i]
		candidate := filepath.Join(dir, file)
		rel, err := filepath.Rel(dir, candidate)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		info, err := os.Stat(candidate)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		return candidate, true
	}
	return "", false
}
