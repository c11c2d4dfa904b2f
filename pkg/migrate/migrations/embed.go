// Package migrations holds the goose SQL files for the Postgres schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
