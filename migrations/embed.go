// Package migrations embeds the Postgres schema used by the postgres store backend.
package migrations

import "embed"

// FS holds the numbered golang-migrate files.
//
//go:embed *.sql
var FS embed.FS
