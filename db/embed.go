// Package db embeds the SQL migrations. Files are applied in name order and
// each must be safe to run again.
package db

import "embed"

//go:embed migrations/*.sql
var Migrations embed.FS
