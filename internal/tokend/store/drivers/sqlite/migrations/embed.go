// Package migrations holds the embedded SQL schema for the SQLite store.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
