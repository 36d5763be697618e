package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/CTAG07/stache/pkg/mustache"
)

// FormatVersion is the version written into exported snapshots.
const FormatVersion = 1

// ErrSnapshotNotFound is returned when loading a snapshot that was never saved.
var ErrSnapshotNotFound = errors.New("tokenstore: snapshot not found")

// Store saves and loads named snapshots.
type Store interface {
	Save(ctx context.Context, name string, s mustache.Snapshot) error
	Load(ctx context.Context, name string) (mustache.Snapshot, error)
}

// ExportedSnapshot is the serialisable form of a snapshot.
type ExportedSnapshot struct {
	Version   int                        `json:"version"`
	Templates map[string]mustache.Tokens `json:"templates"`
}

// Export writes s to w as indented JSON.
func Export(w io.Writer, s mustache.Snapshot) error {
	exported := ExportedSnapshot{
		Version:   FormatVersion,
		Templates: s,
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(exported)
}

// Import reads a snapshot written by Export.
func Import(r io.Reader) (mustache.Snapshot, error) {
	var imported ExportedSnapshot
	if err := json.NewDecoder(r).Decode(&imported); err != nil {
		return nil, fmt.Errorf("failed to decode json snapshot: %w", err)
	}
	if imported.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", imported.Version)
	}
	if imported.Templates == nil {
		return mustache.Snapshot{}, nil
	}
	return mustache.Snapshot(imported.Templates), nil
}

// Persist saves the current cache of m under name.
func Persist(ctx context.Context, store Store, name string, m *mustache.Mustache) error {
	return store.Save(ctx, name, m.GetAllTokens())
}

// Seed replaces the cache of m with the snapshot saved under name.
func Seed(ctx context.Context, store Store, name string, m *mustache.Mustache) error {
	s, err := store.Load(ctx, name)
	if err != nil {
		return err
	}
	m.RestoreTokens(s)
	return nil
}
