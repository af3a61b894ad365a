// Package db embeds the SQL schema migrations.
package db

import "embed"

// Migrations holds the versioned schema files under migrations/.
//
//go:embed migrations/*.sql
var Migrations embed.FS
