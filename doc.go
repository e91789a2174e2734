// SPDX-License-Identifier: MIT

// Package migrate applies SQL migration files to a database exactly once
// each, in filename order, recording every applied file in a ledger table.
//
// Each file runs inside its own transaction together with the insert of its
// ledger row, so a file is either fully applied and recorded or leaves no
// trace at all. The first failure stops the run; files committed earlier in
// the same run stay applied.
//
// # Quick start
//
//	cfg, _ := migrate.LoadConfig(nil) // DATABASE_URL, MIGRATIONS_DIR, ...
//	db, err := migrate.Open(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	r, _ := migrate.NewRunner(cfg, db, migrate.WithLogger(log.Logger))
//	res, err := r.Run(ctx)
//
// # Configuration
//
//   - Driver        — "pg" (default) or "sqlite3"
//   - Conn          — connection string, required ($DATABASE_URL)
//   - MigrationsDir — directory of *.sql files (default "supabase/migrations")
//   - LedgerTable   — ledger table name (default "migrations")
//   - PoolSize      — maximum open connections (default 5)
//   - LogLevel      — zerolog level (default "info")
//
// LoadConfig reads defaults, then an optional YAML file named by
// $MIGRATE_CONFIG, then the environment.
//
// # Migration files
//
// Every regular file in MigrationsDir ending in ".sql" is a migration. Files
// are applied in byte-wise filename order, so names need a sortable prefix:
//
//	001_create_profiles.sql
//	002_add_tasks.sql
//	20240321093000_feature_flags.sql
//
// File content is passed to the database verbatim as one script.
// CreateMigration scaffolds a correctly prefixed empty file.
//
// # Ledger
//
//	id          auto-increment primary key
//	name        filename, unique
//	executed_at set by the database on insert
//
// # Exit codes
//
// The library returns errors; ExitCode maps them to process exit codes for
// the CLIs under pg/ and sqlite/. Zero means every pending file applied.
package migrate
