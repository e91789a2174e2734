// SPDX-License-Identifier: MIT

// Package main provides migrate‑sqlite, the SQLite command‑line entry point
// for the migrate library.
//
// # Install
//
//	go install github.com/startup-os/migrate/sqlite@latest
//
// # Synopsis
//
//	migrate-sqlite
//
// Behaviour matches migrate-pg. The connection string is a database file
// path taken from SQLITE_URL, falling back to DATABASE_URL:
//
//	SQLITE_URL=./dev.db MIGRATIONS_DIR=./supabase/migrations migrate-sqlite
//
// The ledger table cannot be schema qualified for SQLite.
//
// # Exit status
//
// Same as migrate-pg: 0 on success, 1 on a failed migration, 2 on invalid
// configuration, 3 when the database cannot be opened.
package main
