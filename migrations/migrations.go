// Package migrations embeds the PostgreSQL schema of the attempt service.
package migrations

import "embed"

// FS holds the numbered up/down SQL files.
//
//go:embed *.sql
var FS embed.FS
