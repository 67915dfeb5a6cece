// Package migrations contains embedded SQL migrations for the SQLite store.
package migrations

import "embed"

//go:embed indexer/*.sql
var IndexerFS embed.FS
