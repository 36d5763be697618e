// Package resolver provides template resolvers for the mustache coordinator:
// a filesystem search path stack, a SQLite-backed template table and an LRU
// cache of resolved locations.
package resolver
