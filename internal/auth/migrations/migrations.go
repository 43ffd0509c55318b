// Package migrations embeds the SQL migrations for the accounts table
// backing PostgresAuthenticator, for goose.SetBaseFS.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
