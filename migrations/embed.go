// Package migrations contains the embedded SQL migrations for the local project index.
package migrations

import "embed"

// FS exposes the compiled-in migration files.
//
//go:embed *.sql
var FS embed.FS
