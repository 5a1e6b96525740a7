// Package migrations embeds the SQLite schema so the server binary carries it.
package migrations

import "embed"

// FS holds the numbered .sql migrations
//
//go:embed *.sql
var FS embed.FS
