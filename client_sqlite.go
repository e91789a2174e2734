package migrate

import (
	"fmt"
)

// Sqlite3Client implements Client for SQLite.
type Sqlite3Client struct {
	baseClient
}

// NewSqlite3Client creates a new Sqlite3Client.
func NewSqlite3Client(cfg Config) *Sqlite3Client {
	c := &Sqlite3Client{baseClient: baseClient{cfg: cfg}}
	c.quotedTableFn = c.QuotedLedgerTable
	c.createLedgerFn = c.createLedgerSql
	c.placeholderFn = func(int) string { return "?" }
	c.hasLedgerFn = func() (string, []any) {
		return `SELECT COUNT(*) > 0 FROM sqlite_master WHERE type = 'table' AND name = ?`, []any{c.cfg.LedgerTable}
	}
	return c
}

// QuotedLedgerTable returns the quoted ledger table name.
func (c *Sqlite3Client) QuotedLedgerTable() string {
	return fmt.Sprintf(`"%s"`, c.cfg.LedgerTable)
}

func (c *Sqlite3Client) createLedgerSql() []string {
	return []string{fmt.Sprintf(`
      CREATE TABLE IF NOT EXISTS %s (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        name TEXT NOT NULL UNIQUE,
        executed_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
      )`, c.QuotedLedgerTable())}
}
