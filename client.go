package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Execer is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Queryer is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Record is one row of the ledger.
type Record struct {
	ID         int64
	Name       string
	ExecutedAt time.Time
}

// Client defines the ledger operations for one SQL dialect.
type Client interface {
	HasLedger(ctx context.Context, q Queryer) (bool, error)
	EnsureLedger(ctx context.Context, e Execer) error
	AppliedNames(ctx context.Context, q Queryer) ([]string, error)
	History(ctx context.Context, q Queryer) ([]Record, error)
	Record(ctx context.Context, e Execer, name string) error
}

// NewClient creates a new Client based on the configured driver.
func NewClient(cfg Config) (Client, error) {
	switch strings.ToLower(cfg.Driver) {
	case "pg":
		return NewPostgresClient(cfg), nil
	case "sqlite3":
		return NewSqlite3Client(cfg), nil
	default:
		return nil, &ConfigError{Field: "driver", Reason: fmt.Sprintf("db driver '%s' not supported. Must be one of: sqlite3 or pg", cfg.Driver)}
	}
}

// baseClient holds the dialect independent parts. Concrete clients fill in
// the function fields.
type baseClient struct {
	cfg Config

	quotedTableFn  func() string
	createLedgerFn func() []string
	placeholderFn  func(n int) string
	hasLedgerFn    func() (string, []any)
}

// HasLedger reports whether the ledger table exists. It never creates it.
func (c *baseClient) HasLedger(ctx context.Context, q Queryer) (bool, error) {
	query, args := c.hasLedgerFn()
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	defer rows.Close()

	var exists bool
	if rows.Next() {
		if err := rows.Scan(&exists); err != nil {
			return false, err
		}
	}
	return exists, rows.Err()
}

func (c *baseClient) EnsureLedger(ctx context.Context, e Execer) error {
	for _, q := range c.createLedgerFn() {
		if _, err := e.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure ledger table %s: %w", c.cfg.LedgerTable, err)
		}
	}
	return nil
}

// AppliedNames returns the recorded names in the order they were applied.
func (c *baseClient) AppliedNames(ctx context.Context, q Queryer) ([]string, error) {
	rows, err := q.QueryContext(ctx, fmt.Sprintf(`SELECT name FROM %s ORDER BY id`, c.quotedTableFn()))
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// History returns every ledger row in application order.
func (c *baseClient) History(ctx context.Context, q Queryer) ([]Record, error) {
	rows, err := q.QueryContext(ctx, fmt.Sprintf(`SELECT id, name, executed_at FROM %s ORDER BY id`, c.quotedTableFn()))
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			r  Record
			at sql.NullTime
		)
		if err := rows.Scan(&r.ID, &r.Name, &at); err != nil {
			return nil, err
		}
		r.ExecutedAt = at.Time
		records = append(records, r)
	}
	return records, rows.Err()
}

// Record inserts a ledger row. executed_at is left to the column default.
func (c *baseClient) Record(ctx context.Context, e Execer, name string) error {
	q := fmt.Sprintf(`INSERT INTO %s (name) VALUES (%s)`, c.quotedTableFn(), c.placeholderFn(1))
	_, err := e.ExecContext(ctx, q, name)
	return err
}
