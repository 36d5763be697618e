package tokenstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/CTAG07/stache/pkg/mustache"
	"github.com/natefinch/atomic"
)

// FileStore keeps each snapshot in <dir>/<name>.json. Writes replace the
// file atomically, so readers never see a partial snapshot.
type FileStore struct {
	dir    string
	logger *slog.Logger
}

// NewFileStore returns a store rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot dir: %w", err)
	}
	return &FileStore{
		dir:    dir,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, nil
}

// SetLogger sets the logger. By default, all logs are discarded.
func (f *FileStore) SetLogger(logger *slog.Logger) {
	if logger != nil {
		f.logger = logger
	}
}

func (f *FileStore) path(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return "", fmt.Errorf("invalid snapshot name '%s'", name)
	}
	return filepath.Join(f.dir, name+".json"), nil
}

// Save writes s under name.
func (f *FileStore) Save(ctx context.Context, name string, s mustache.Snapshot) error {
	path, err := f.path(name)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err = Export(&buf, s); err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err = atomic.WriteFile(path, &buf); err != nil {
		return fmt.Errorf("failed to write snapshot file: %w", err)
	}
	f.logger.InfoContext(ctx, "Snapshot saved",
		slog.String("name", name),
		slog.String("path", path),
		slog.Int("templates", len(s)),
	)
	return nil
}

// Load reads the snapshot saved under name.
func (f *FileStore) Load(ctx context.Context, name string) (mustache.Snapshot, error) {
	path, err := f.path(name)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, name)
		}
		return nil, fmt.Errorf("failed to open snapshot file: %w", err)
	}
	defer func(file *os.File) {
		_ = file.Close()
	}(file)

	s, err := Import(file)
	if err != nil {
		return nil, err
	}
	f.logger.InfoContext(ctx, "Snapshot loaded", slog.String("name", name), slog.Int("templates", len(s)))
	return s, nil
}

// Names lists the saved snapshots in order.
func (f *FileStore) Names() ([]string, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot dir: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), ".json"))
	}
	sort.Strings(names)
	return names, nil
}
