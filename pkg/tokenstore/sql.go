package tokenstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/CTAG07/stache/pkg/mustache"
)

// SetupSchema initializes the snapshot tables in db. It is idempotent and
// safe to call on an already-initialized database.
func SetupSchema(db *sql.DB) error {

	const (
		schemaSnapshots = `
CREATE TABLE IF NOT EXISTS mustache_snapshots (
    snapshot_id INTEGER PRIMARY KEY,
    snapshot_name TEXT NOT NULL UNIQUE,
    created_at INTEGER NOT NULL
);
`
		schemaTemplates = `
CREATE TABLE IF NOT EXISTS mustache_snapshot_templates (
    snapshot_id INTEGER NOT NULL,
    template_name TEXT NOT NULL,
    tokens TEXT NOT NULL,
    PRIMARY KEY (snapshot_id, template_name)
);
`
	)

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	if _, err = tx.Exec(schemaSnapshots); err != nil {
		return fmt.Errorf("could not create snapshots schema: %w", err)
	}
	if _, err = tx.Exec(schemaTemplates); err != nil {
		return fmt.Errorf("could not create snapshot templates schema: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("could not commit transaction: %w", err)
	}
	return nil
}

// SnapshotInfo describes a stored snapshot.
type SnapshotInfo struct {
	Id        int
	Name      string
	Templates int
	CreatedAt time.Time
}

// SQLStore keeps snapshots in a SQL database, one row per template.
type SQLStore struct {
	db              *sql.DB
	stmtGetSnapshot *sql.Stmt
	stmtGetTokens   *sql.Stmt
	stmtList        *sql.Stmt
	logger          *slog.Logger
}

// NewSQLStore prepares the statements used against db. SetupSchema must
// have been called on db beforehand.
func NewSQLStore(db *sql.DB) (*SQLStore, error) {
	stmtGetSnapshot, err := db.Prepare(`SELECT snapshot_id FROM mustache_snapshots WHERE snapshot_name = ?;`)
	if err != nil {
		return nil, err
	}

	stmtGetTokens, err := db.Prepare(`SELECT template_name, tokens FROM mustache_snapshot_templates WHERE snapshot_id = ?;`)
	if err != nil {
		return nil, err
	}

	stmtList, err := db.Prepare(`
		SELECT s.snapshot_id, s.snapshot_name, s.created_at, COUNT(t.template_name)
		FROM mustache_snapshots s
		LEFT JOIN mustache_snapshot_templates t ON t.snapshot_id = s.snapshot_id
		GROUP BY s.snapshot_id
		ORDER BY s.snapshot_name;
	`)
	if err != nil {
		return nil, err
	}

	return &SQLStore{
		db:              db,
		stmtGetSnapshot: stmtGetSnapshot,
		stmtGetTokens:   stmtGetTokens,
		stmtList:        stmtList,
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, nil
}

// Close releases the prepared statements.
func (s *SQLStore) Close() {
	_ = s.stmtGetSnapshot.Close()
	_ = s.stmtGetTokens.Close()
	_ = s.stmtList.Close()
}

// SetLogger sets the logger. By default, all logs are discarded.
func (s *SQLStore) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// Save stores snap under name, replacing any snapshot of that name. The
// operation is performed within a transaction.
func (s *SQLStore) Save(ctx context.Context, name string, snap mustache.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction for save: %w", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	if err = removeSnapshot(ctx, tx, name); err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, "INSERT INTO mustache_snapshots (snapshot_name, created_at) VALUES (?, ?)", name, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to insert snapshot '%s': %w", name, err)
	}
	snapshotID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read id of snapshot '%s': %w", name, err)
	}

	stmtInsert, err := tx.PrepareContext(ctx, `INSERT INTO mustache_snapshot_templates (snapshot_id, template_name, tokens) VALUES (?, ?, ?);`)
	if err != nil {
		return fmt.Errorf("failed to prepare template insert statement: %w", err)
	}
	defer func(stmt *sql.Stmt) {
		_ = stmt.Close()
	}(stmtInsert)

	for templateName, tokens := range snap {
		data, err := json.Marshal(tokens)
		if err != nil {
			return fmt.Errorf("failed to encode tokens of '%s': %w", templateName, err)
		}
		if _, err = stmtInsert.ExecContext(ctx, snapshotID, templateName, string(data)); err != nil {
			return fmt.Errorf("failed to insert tokens of '%s': %w", templateName, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Snapshot saved",
		slog.String("snapshot_name", name),
		slog.Int64("snapshot_id", snapshotID),
		slog.Int("templates", len(snap)),
	)
	return nil
}

// Load returns the snapshot stored under name.
func (s *SQLStore) Load(ctx context.Context, name string) (mustache.Snapshot, error) {
	var snapshotID int
	err := s.stmtGetSnapshot.QueryRowContext(ctx, name).Scan(&snapshotID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, name)
		}
		return nil, err
	}

	rows, err := s.stmtGetTokens.QueryContext(ctx, snapshotID)
	if err != nil {
		return nil, err
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	snap := make(mustache.Snapshot)
	for rows.Next() {
		var templateName, data string
		if err = rows.Scan(&templateName, &data); err != nil {
			return nil, err
		}
		var tokens mustache.Tokens
		if err = json.Unmarshal([]byte(data), &tokens); err != nil {
			return nil, fmt.Errorf("failed to decode tokens of '%s': %w", templateName, err)
		}
		snap[templateName] = tokens
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return snap, nil
}

// List returns metadata for every stored snapshot.
func (s *SQLStore) List(ctx context.Context) ([]SnapshotInfo, error) {
	rows, err := s.stmtList.QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	var infos []SnapshotInfo
	for rows.Next() {
		var info SnapshotInfo
		var created int64
		if err = rows.Scan(&info.Id, &info.Name, &created, &info.Templates); err != nil {
			return nil, err
		}
		info.CreatedAt = time.Unix(created, 0)
		infos = append(infos, info)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return infos, nil
}

// Remove deletes the snapshot stored under name. Removing a missing
// snapshot is not an error.
func (s *SQLStore) Remove(ctx context.Context, name string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	if err = removeSnapshot(ctx, tx, name); err != nil {
		return err
	}
	return tx.Commit()
}

func removeSnapshot(ctx context.Context, tx *sql.Tx, name string) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM mustache_snapshot_templates WHERE snapshot_id IN (SELECT snapshot_id FROM mustache_snapshots WHERE snapshot_name = ?)", name); err != nil {
		return fmt.Errorf("failed to remove templates of snapshot '%s': %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM mustache_snapshots WHERE snapshot_name = ?", name); err != nil {
		return fmt.Errorf("failed to remove snapshot '%s': %w", name, err)
	}
	return nil
}
