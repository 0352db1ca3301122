// Package migrations embeds the SQL schema so the server and the migrate
// command run the same files regardless of the working directory.
package migrations

import "embed"

// FS holds every *.up.sql and *.down.sql file of this directory
//
//go:embed *.sql
var FS embed.FS
