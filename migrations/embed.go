package migrations

import "embed"

// Files exposes the embedded schema files, one directory per SQL backend.
//
//go:embed postgres/*.sql sqlite/*.sql
var Files embed.FS
