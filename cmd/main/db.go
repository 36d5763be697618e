package main

import (
	"database/sql"
	"fmt"

	"github.com/CTAG07/stache/pkg/resolver"
	"github.com/CTAG07/stache/pkg/tokenstore"
)

// openDB opens the SQLite database at dataSource and makes sure the template
// and snapshot tables exist.
func openDB(dataSource string) (*sql.DB, error) {
	db, err := sql.Open(sqlDriver, dataSource)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err = resolver.SetupSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to setup template schema: %w", err)
	}
	if err = tokenstore.SetupSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to setup snapshot schema: %w", err)
	}
	return db, nil
}
