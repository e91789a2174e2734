package migrate

import (
	"fmt"
	"strings"
)

// PostgresClient implements Client for PostgreSQL.
type PostgresClient struct {
	baseClient
}

// NewPostgresClient creates a new PostgresClient.
func NewPostgresClient(cfg Config) *PostgresClient {
	c := &PostgresClient{baseClient: baseClient{cfg: cfg}}
	c.quotedTableFn = c.QuotedLedgerTable
	c.createLedgerFn = c.createLedgerSql
	c.placeholderFn = func(n int) string { return fmt.Sprintf("$%d", n) }
	c.hasLedgerFn = func() (string, []any) {
		schema, table, ok := strings.Cut(c.cfg.LedgerTable, ".")
		if !ok {
			schema, table = "", c.cfg.LedgerTable
		}
		return `SELECT EXISTS (
          SELECT 1 FROM information_schema.tables
          WHERE table_schema = CASE WHEN $1::text = '' THEN current_schema() ELSE $1::text END
            AND table_name = $2::text)`, []any{schema, table}
	}
	return c
}

// QuotedLedgerTable returns the ledger table name with each part quoted.
func (c *PostgresClient) QuotedLedgerTable() string {
	parts := strings.Split(c.cfg.LedgerTable, ".")
	for i, part := range parts {
		parts[i] = fmt.Sprintf(`"%s"`, part)
	}
	return strings.Join(parts, ".")
}

func (c *PostgresClient) createLedgerSql() []string {
	var queries []string
	// If LedgerTable contains a dot, create the schema first.
	if schema, _, ok := strings.Cut(c.cfg.LedgerTable, "."); ok {
		queries = append(queries, fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS "%s"`, schema))
	}
	queries = append(queries, fmt.Sprintf(`
      CREATE TABLE IF NOT EXISTS %s (
        id SERIAL PRIMARY KEY,
        name VARCHAR(255) NOT NULL UNIQUE,
        executed_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
      )`, c.QuotedLedgerTable()))
	return queries
}
