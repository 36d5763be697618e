//go:build !cgo_sqlite

package main

import (
	_ "modernc.org/sqlite"
)

// sqlDriver is the database/sql driver name of the pure Go SQLite build.
const sqlDriver = "sqlite"
