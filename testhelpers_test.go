package migrate

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// testDB opens a SQLite database in a temp dir together with an empty
// migrations directory next to it.
func testDB(t *testing.T) (*sql.DB, Config) {
	t.Helper()

	dir := t.TempDir()
	cfg := Config{
		Driver:        "sqlite3",
		Conn:          filepath.Join(dir, "test.db"),
		MigrationsDir: filepath.Join(dir, "migrations"),
		LedgerTable:   "migrations",
	}
	require.NoError(t, os.Mkdir(cfg.MigrationsDir, 0o755))

	db, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, cfg
}

func writeMigration(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var cnt int
	err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, name).Scan(&cnt)
	require.NoError(t, err)
	return cnt > 0
}

func ledgerNames(t *testing.T, db *sql.DB) []string {
	t.Helper()
	names, err := NewSqlite3Client(Config{LedgerTable: "migrations"}).AppliedNames(context.Background(), db)
	require.NoError(t, err)
	return names
}

func names(migs []Migration) []string {
	out := make([]string, 0, len(migs))
	for _, m := range migs {
		out = append(out, m.Name)
	}
	return out
}
