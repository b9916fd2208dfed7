// Package migrations embeds the ordered goose SQL migrations for the local
// store. Migrations are additive and applied in strict order; re-running is
// idempotent (goose tracks the applied version in the database).
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
