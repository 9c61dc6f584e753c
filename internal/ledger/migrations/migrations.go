// Package migrations embeds the ledger schema for goose, one directory per
// SQL dialect.
package migrations

import "embed"

//go:embed postgres/*.sql
var Postgres embed.FS

//go:embed sqlite/*.sql
var SQLite embed.FS
