// Package schemas provides the embedded SQL migration files for the local store.
package schemas

import "embed"

// Migrations contains all goose migration files.
//
//go:embed migrations/*.sql
var Migrations embed.FS
