// Package db provides the embedded database schema and the default catalog.
package db

import _ "embed"

// Schema contains the DDL statements for all application tables.
//
//go:embed migrations/001_schema.sql
var Schema string

// Menu is the default catalog document: {"items": [...], "tables": [...]}.
// It seeds the in-memory catalog and is the default input of seed-db.
//
//go:embed seed/catalog.json
var Menu []byte
