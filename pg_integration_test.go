package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pgTestDB connects to $MIGRATE_TEST_PG_URL with search_path pinned to a
// fresh schema, so the test tables never touch public.
func pgTestDB(t *testing.T) (*sql.DB, Config) {
	t.Helper()
	url := os.Getenv("MIGRATE_TEST_PG_URL")
	if url == "" {
		t.Skip("MIGRATE_TEST_PG_URL not set")
	}
	ctx := context.Background()
	schema := fmt.Sprintf("migrate_test_%d", os.Getpid())

	admin, err := sql.Open("pgx", url)
	require.NoError(t, err)
	_, err = admin.ExecContext(ctx, fmt.Sprintf(`DROP SCHEMA IF EXISTS %q CASCADE; CREATE SCHEMA %q`, schema, schema))
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = admin.ExecContext(ctx, fmt.Sprintf(`DROP SCHEMA IF EXISTS %q CASCADE`, schema))
		_ = admin.Close()
	})

	connCfg, err := pgx.ParseConfig(url)
	require.NoError(t, err)
	connCfg.RuntimeParams["search_path"] = schema

	cfg := Config{
		Driver:        "pg",
		Conn:          stdlib.RegisterConnConfig(connCfg),
		MigrationsDir: t.TempDir(),
		LedgerTable:   schema + ".migrations",
	}
	db, err := Open(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, cfg
}

func TestPostgres_RunAtomicAndResumable(t *testing.T) {
	db, cfg := pgTestDB(t)
	ctx := context.Background()

	writeMigration(t, cfg.MigrationsDir, "001_profiles.sql", `CREATE TABLE profiles (id SERIAL PRIMARY KEY, name TEXT NOT NULL);`)
	writeMigration(t, cfg.MigrationsDir, "002_tasks.sql", `
		CREATE TABLE tasks (id SERIAL PRIMARY KEY, title TEXT NOT NULL);
		INSERT INTO tasks (title) VALUES (NULL);
	`)
	writeMigration(t, cfg.MigrationsDir, "003_flags.sql", `CREATE TABLE flags (name TEXT PRIMARY KEY);`)

	r, err := NewRunner(cfg, db)
	require.NoError(t, err)

	res, err := r.Run(ctx)
	require.Error(t, err)
	assert.Equal(t, []string{"001_profiles.sql"}, names(res.Applied))

	var execErr *ExecError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "23502", execErr.Code) // not_null_violation

	var exists bool
	require.NoError(t, db.QueryRowContext(ctx, `SELECT to_regclass('tasks') IS NOT NULL`).Scan(&exists))
	assert.False(t, exists, "tasks must be rolled back with the failing insert")

	writeMigration(t, cfg.MigrationsDir, "002_tasks.sql", `CREATE TABLE tasks (id SERIAL PRIMARY KEY, title TEXT NOT NULL);`)
	res, err = r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"002_tasks.sql", "003_flags.sql"}, names(res.Applied))

	hist, err := r.History(ctx)
	require.NoError(t, err)
	require.Len(t, hist, 3)
	assert.Equal(t, "001_profiles.sql", hist[0].Name)
	assert.False(t, hist[2].ExecutedAt.IsZero())
}

func TestPostgres_DuplicateRecord(t *testing.T) {
	db, cfg := pgTestDB(t)
	ctx := context.Background()
	c := NewPostgresClient(cfg)

	require.NoError(t, c.EnsureLedger(ctx, db))
	require.NoError(t, c.Record(ctx, db, "001_a.sql"))

	err := c.Record(ctx, db, "001_a.sql")
	require.Error(t, err)
	execErr := newExecError("001_a.sql", StageRecord, err)
	assert.Equal(t, pgUniqueViolation, execErr.Code)
	assert.ErrorIs(t, execErr, ErrDuplicate)

	got, err := c.AppliedNames(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, []string{"001_a.sql"}, got)
}
