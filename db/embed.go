// Package db provides the embedded database schema.
package db

import _ "embed"

// Schema contains the DDL for the cart snapshot table.
//
//go:embed migrations/001_schema.sql
var Schema string
