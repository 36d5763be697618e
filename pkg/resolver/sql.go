package resolver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// SetupSchema creates the template table used by SQLResolver. It is
// idempotent and safe to call on an already-initialized database.
func SetupSchema(db *sql.DB) error {
	const schemaTemplates = `
CREATE TABLE IF NOT EXISTS mustache_templates (
    template_name TEXT PRIMARY KEY,
    content TEXT NOT NULL,
    updated_at INTEGER NOT NULL
);
`
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	if _, err = tx.Exec(schemaTemplates); err != nil {
		return fmt.Errorf("could not create templates schema: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("could not commit transaction: %w", err)
	}
	return nil
}

// SQLResolver resolves templates stored in a SQL table. Locations are the
// template names themselves; Load reads the stored content.
type SQLResolver struct {
	db          *sql.DB
	stmtResolve *sql.Stmt
	stmtLoad    *sql.Stmt
	stmtPut     *sql.Stmt
	stmtDelete  *sql.Stmt
	stmtList    *sql.Stmt
	logger      *slog.Logger
}

// NewSQLResolver prepares the statements used against db. SetupSchema must
// have been called on db beforehand.
func NewSQLResolver(db *sql.DB) (*SQLResolver, error) {
	stmtResolve, err := db.Prepare(`SELECT template_name FROM mustache_templates WHERE template_name = ?;`)
	if err != nil {
		return nil, err
	}

	stmtLoad, err := db.Prepare(`SELECT content FROM mustache_templates WHERE template_name = ?;`)
	if err != nil {
		return nil, err
	}

	stmtPut, err := db.Prepare(`INSERT INTO mustache_templates (template_name, content, updated_at) VALUES (?, ?, ?) ON CONFLICT(template_name) DO UPDATE SET content = excluded.content, updated_at = excluded.updated_at;`)
	if err != nil {
		return nil, err
	}

	stmtDelete, err := db.Prepare(`DELETE FROM mustache_templates WHERE template_name = ?;`)
	if err != nil {
		return nil, err
	}

	stmtList, err := db.Prepare(`SELECT template_name FROM mustache_templates ORDER BY template_name;`)
	if err != nil {
		return nil, err
	}

	return &SQLResolver{
		db:          db,
		stmtResolve: stmtResolve,
		stmtLoad:    stmtLoad,
		stmtPut:     stmtPut,
		stmtDelete:  stmtDelete,
		stmtList:    stmtList,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, nil
}

// Close releases the prepared statements.
func (r *SQLResolver) Close() {
	_ = r.stmtResolve.Close()
	_ = r.stmtLoad.Close()
	_ = r.stmtPut.Close()
	_ = r.stmtDelete.Close()
	_ = r.stmtList.Close()
}

// SetLogger sets the logger. By default, all logs are discarded.
func (r *SQLResolver) SetLogger(logger *slog.Logger) {
	if logger != nil {
		r.logger = logger
	}
}

// Resolve reports whether a template called name is stored.
func (r *SQLResolver) Resolve(name string) (string, bool) {
	var found string
	err := r.stmtResolve.QueryRow(name).Scan(&found)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			r.logger.Error("failed to resolve template", "name", name, "error", err)
		}
		return "", false
	}
	return found, true
}

// Load returns the content stored for a resolved location.
func (r *SQLResolver) Load(location string) (string, error) {
	var content string
	if err := r.stmtLoad.QueryRow(location).Scan(&content); err != nil {
		return "", fmt.Errorf("could not load template '%s': %w", location, err)
	}
	return content, nil
}

// Put stores or replaces a template.
func (r *SQLResolver) Put(ctx context.Context, name, content string) error {
	if _, err := r.stmtPut.ExecContext(ctx, name, content, time.Now().Unix()); err != nil {
		return fmt.Errorf("could not store template '%s': %w", name, err)
	}
	r.logger.InfoContext(ctx, "Template stored", slog.String("name", name), slog.Int("bytes", len(content)))
	return nil
}

// Delete removes a template. Deleting a missing template is not an error.
func (r *SQLResolver) Delete(ctx context.Context, name string) error {
	if _, err := r.stmtDelete.ExecContext(ctx, name); err != nil {
		return fmt.Errorf("could not delete template '%s': %w", name, err)
	}
	return nil
}

// Names lists the stored template names in order.
func (r *SQLResolver) Names(ctx context.Context) ([]string, error) {
	rows, err := r.stmtList.QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	var names []string
	for rows.Next() {
		var name string
		if err = rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return names, nil
}
