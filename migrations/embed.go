// Package migrations embeds the SQL migration files so that the queuectl
// binary carries its own schema and can initialize any data directory.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
