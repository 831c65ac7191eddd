package dbcache

import "embed"

// sqlSchemas is an embedded file system containing the SQL migration files
// for the build export cache. The migrations are embedded at compile time
// for portability, the same way the teacher's main store embeds its schema.
//
//go:embed migrations/*.sql
var sqlSchemas embed.FS
