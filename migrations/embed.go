// Package migrations ships the schema as versioned SQL files embedded in the
// binary. File names follow NNN_description.sql.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
