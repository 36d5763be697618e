package resolver

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Chain consults several resolvers in order and reads each location back
// through the resolver that produced it.
type Chain struct {
	resolvers []Resolver
}

// NewChain returns a chain trying resolvers in the given order.
func NewChain(resolvers ...Resolver) *Chain {
	return &Chain{resolvers: resolvers}
}

// Resolve returns the location from the first resolver that knows name,
// tagged with that resolver's position.
func (c *Chain) Resolve(name string) (string, bool) {
	for i, r := range c.resolvers {
		if location, ok := r.Resolve(name); ok {
			return strconv.Itoa(i) + ":" + location, true
		}
	}
	return "", false
}

// Load reads a location returned by Resolve.
func (c *Chain) Load(location string) (string, error) {
	index, inner, found := strings.Cut(location, ":")
	i, err := strconv.Atoi(index)
	if !found || err != nil || i < 0 || i >= len(c.resolvers) {
		return "", fmt.Errorf("invalid chained location '%s'", location)
	}
	if l, ok := c.resolvers[i].(interface {
		Load(string) (string, error)
	}); ok {
		return l.Load(inner)
	}
	data, err := os.ReadFile(inner)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// AddTemplatePath forwards to every member that searches directories.
func (c *Chain) AddTemplatePath(path string) {
	for _, r := range c.resolvers {
		if pr, ok := r.(interface{ AddTemplatePath(string) }); ok {
			pr.AddTemplatePath(path)
		}
	}
}

// SetSuffix forwards to every member that uses a suffix.
func (c *Chain) SetSuffix(suffix string) {
	for _, r := range c.resolvers {
		if pr, ok := r.(interface{ SetSuffix(string) }); ok {
			pr.SetSuffix(suffix)
		}
	}
}

// Suffix returns the suffix of the first member that has one.
func (c *Chain) Suffix() string {
	for _, r := range c.resolvers {
		if pr, ok := r.(interface{ Suffix() string }); ok {
			if s := pr.Suffix(); s != "" {
				return s
			}
		}
	}
	return ""
}
