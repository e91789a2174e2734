// Package main implements the SQLite migrate binary, used for local
// development databases. The connection string is a file path taken from
// SQLITE_URL or DATABASE_URL.
package main

import (
	"context"
	"os"

	"github.com/startup-os/migrate/internal/cli"
)

func main() {
	os.Exit(cli.Main(context.Background(), os.Args[1:], os.Stderr, cli.Options{
		Name:    "migrate-sqlite",
		Driver:  "sqlite3",
		ConnEnv: "SQLITE_URL",
	}))
}
