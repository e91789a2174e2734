package migrate

import (
	"context"
	"database/sql"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3"    // SQLite driver
)

// sqlDriverName maps a configured driver to its database/sql driver name.
func sqlDriverName(driver string) (string, error) {
	switch strings.ToLower(driver) {
	case "pg":
		return "pgx", nil
	case "sqlite3":
		return "sqlite3", nil
	default:
		return "", &ConfigError{Field: "driver", Reason: "db driver '" + driver + "' not supported. Must be one of: sqlite3 or pg"}
	}
}

// Open validates cfg, opens a small bounded pool and checks that the database
// answers. The caller owns the returned handle and must Close it.
func Open(ctx context.Context, cfg Config) (*sql.DB, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	name, err := sqlDriverName(cfg.Driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(name, cfg.Conn)
	if err != nil {
		return nil, &ConnectError{Err: err}
	}
	db.SetMaxOpenConns(cfg.PoolSize)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, &ConnectError{Err: err}
	}
	return db, nil
}
