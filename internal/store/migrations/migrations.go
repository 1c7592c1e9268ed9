// Package migrations embeds the schema for every supported database driver.
// Files follow the golang-migrate naming scheme and live in one directory per
// driver.
package migrations

import "embed"

// FS holds sqlite/*.sql and postgres/*.sql.
//
//go:embed sqlite/*.sql postgres/*.sql
var FS embed.FS
