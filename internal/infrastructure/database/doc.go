// Package database provides SQLite connection management and schema
// migrations for AuriHome Core.
//
// The database is opened with WAL mode and a busy timeout suitable for
// a single-writer embedded deployment. Migrations are embedded SQL
// files registered by the migrations package at init time; each is
// applied in its own transaction and recorded in schema_migrations.
package database
