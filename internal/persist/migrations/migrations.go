// Package migrations embeds the goose SQL migrations for internal/persist,
// the same embed.FS + goose.SetBaseFS pattern the teacher's
// internal/db/migrations package uses.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
