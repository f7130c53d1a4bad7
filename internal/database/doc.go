// Package database provides the PostgreSQL connection pool and the
// database-backed skills manifest.
//
// The hub keeps its live state in memory. Postgres is used only when the
// skills manifest is managed in a table shared between hub instances.
package database
