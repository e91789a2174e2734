package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/startup-os/migrate"
)

var sqliteOpts = Options{Name: "migrate-sqlite", Driver: "sqlite3", ConnEnv: "SQLITE_URL"}

func setEnv(t *testing.T, kv map[string]string) {
	t.Helper()
	for _, k := range []string{
		migrate.EnvConfigFile, migrate.EnvConn, migrate.EnvConnLegacy, migrate.EnvDriver,
		migrate.EnvDir, migrate.EnvTable, migrate.EnvPoolSize, migrate.EnvLogLevel, "SQLITE_URL",
	} {
		t.Setenv(k, kv[k])
	}
}

func TestMain_RejectsArguments(t *testing.T) {
	var out bytes.Buffer
	code := Main(context.Background(), []string{"up"}, &out, sqliteOpts)
	assert.Equal(t, migrate.ExitFailure, code)
	assert.Contains(t, out.String(), "takes no arguments")
	assert.Contains(t, out.String(), "Usage:")
}

func TestMain_HelpAndVersion(t *testing.T) {
	var out bytes.Buffer
	assert.Equal(t, migrate.ExitOK, Main(context.Background(), []string{"-help"}, &out, sqliteOpts))
	assert.Contains(t, out.String(), "SQLITE_URL")

	out.Reset()
	assert.Equal(t, migrate.ExitOK, Main(context.Background(), []string{"-version"}, &out, sqliteOpts))
	assert.Contains(t, out.String(), "migrate-sqlite version:")
}

func TestMain_MissingConnection(t *testing.T) {
	dir := t.TempDir()
	setEnv(t, map[string]string{migrate.EnvDir: dir})

	var out bytes.Buffer
	code := Main(context.Background(), nil, &out, sqliteOpts)
	assert.Equal(t, migrate.ExitConfig, code)
	assert.Contains(t, out.String(), "connection string is required")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "nothing may be created before the config is valid")
}

func TestMain_UnreachableDatabase(t *testing.T) {
	setEnv(t, map[string]string{
		"SQLITE_URL":   filepath.Join(t.TempDir(), "no", "such", "dir", "x.db"),
		migrate.EnvDir: t.TempDir(),
	})

	var out bytes.Buffer
	code := Main(context.Background(), nil, &out, sqliteOpts)
	assert.Equal(t, migrate.ExitConnection, code)
	assert.Contains(t, out.String(), "database connection failed")
}

func TestMain_AppliesThenSkips(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "app.db")
	setEnv(t, map[string]string{
		"SQLITE_URL":   dbPath,
		migrate.EnvDir: "../../testdata/migrations",
	})

	var out bytes.Buffer
	code := Main(context.Background(), nil, &out, sqliteOpts)
	require.Equal(t, migrate.ExitOK, code, out.String())
	assert.Contains(t, out.String(), "Running migration")
	assert.Contains(t, out.String(), "001_create_profiles.sql")
	assert.Contains(t, out.String(), "All migrations completed successfully")

	out.Reset()
	code = Main(context.Background(), nil, &out, sqliteOpts)
	require.Equal(t, migrate.ExitOK, code, out.String())
	assert.Contains(t, out.String(), "Database is up to date")
	assert.NotContains(t, out.String(), "Running migration")
}

func TestMain_FailedMigration(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "001_ok.sql"), []byte("CREATE TABLE ok (id INTEGER);"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "002_bad.sql"), []byte("CREATE TABLE;"), 0o644))
	setEnv(t, map[string]string{
		migrate.EnvConn: filepath.Join(t.TempDir(), "app.db"),
		migrate.EnvDir:  dir,
	})

	var out bytes.Buffer
	code := Main(context.Background(), nil, &out, sqliteOpts)
	assert.Equal(t, migrate.ExitFailure, code)
	assert.Contains(t, out.String(), "002_bad.sql")
	assert.Contains(t, out.String(), "Migration failed")
}
