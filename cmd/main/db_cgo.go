//go:build cgo_sqlite

package main

import (
	_ "github.com/mattn/go-sqlite3"
)

// sqlDriver is the database/sql driver name of the cgo SQLite build.
const sqlDriver = "sqlite3"
