// Package db embeds the SQL schema migrations for every supported dialect.
package db

import "embed"

// Migrations holds migrations/<dialect>/*.sql in golang-migrate layout
//
//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var Migrations embed.FS
