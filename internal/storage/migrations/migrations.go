// Package migrations embeds the SQL schema applied by goose before the
// Postgres repository accepts traffic.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
