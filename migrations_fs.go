package bdpay

import (
	"embed"
	"io/fs"
)

// Postgres schema lives in data/sql/migrations, SQLite in its sqlite/ child.
//
//go:embed data/sql/migrations/*.sql data/sql/migrations/sqlite/*.sql
var schema embed.FS

// GetMigrationsFS exposes the embedded schema for migrations.Register.
func GetMigrationsFS() fs.FS {
	return schema
}
