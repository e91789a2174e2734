package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// State is the position of a run in its lifecycle.
type State int

const (
	Idle State = iota
	Connecting
	LedgerEnsured
	Scanning
	Applying
	Committed
	RolledBack
	Aborted
	Done
)

var stateNames = [...]string{
	Idle:          "idle",
	Connecting:    "connecting",
	LedgerEnsured: "ledger_ensured",
	Scanning:      "scanning",
	Applying:      "applying",
	Committed:     "committed",
	RolledBack:    "rolled_back",
	Aborted:       "aborted",
	Done:          "done",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// Terminal reports whether no further transition can follow s.
func (s State) Terminal() bool {
	return s == Done || s == Aborted
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Runner) {
		r.log = l
	}
}

// WithObserver registers fn to be called on every state transition. The
// migration argument is the zero value outside of Applying, Committed and
// RolledBack.
func WithObserver(fn func(State, Migration)) Option {
	return func(r *Runner) {
		r.observe = fn
	}
}

// Result describes what a run did.
type Result struct {
	// Applied lists the migrations committed by this run, in order. On
	// failure it holds those committed before the failing file.
	Applied []Migration

	// Skipped counts files that were already recorded in the ledger.
	Skipped int
}

// Status is a read-only view of the ledger against the migrations directory.
type Status struct {
	Applied []string
	Pending []Migration
}

// Runner applies pending migration files in filename order, each inside its
// own transaction together with its ledger row.
//
// A Runner is not safe for concurrent use. Two processes running against the
// same database are not coordinated; the unique constraint on the ledger name
// makes the slower one fail.
type Runner struct {
	cfg     Config
	db      *sql.DB
	client  Client
	log     zerolog.Logger
	observe func(State, Migration)
	state   State
}

// NewRunner creates a Runner for db, which the caller keeps ownership of.
func NewRunner(cfg Config, db *sql.DB, opts ...Option) (*Runner, error) {
	if db == nil {
		return nil, errors.New("migrate: nil database handle")
	}
	cfg = cfg.withDefaults()
	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}
	r := &Runner{
		cfg:    cfg,
		db:     db,
		client: client,
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r, nil
}

// State returns the state the last transition left the runner in.
func (r *Runner) State() State {
	return r.state
}

func (r *Runner) transition(s State, m Migration) {
	r.state = s
	ev := r.log.Debug().Str("state", s.String())
	if m.Name != "" {
		ev = ev.Str("migration", m.Name)
	}
	ev.Msg("State change")
	if r.observe != nil {
		r.observe(s, m)
	}
}

// Run brings the database up to date. It stops at the first failure; files
// committed before it stay applied and are listed in the returned Result.
//
// Cancelling ctx takes effect between files only: a file whose transaction
// has begun always runs to commit or rollback.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	var res Result

	r.transition(Connecting, Migration{})
	conn, err := r.db.Conn(ctx)
	if err != nil {
		r.transition(Aborted, Migration{})
		return res, &ConnectError{Err: err}
	}
	defer conn.Close()

	if err := r.client.EnsureLedger(ctx, conn); err != nil {
		r.transition(Aborted, Migration{})
		return res, err
	}
	r.transition(LedgerEnsured, Migration{})

	names, err := r.client.AppliedNames(ctx, conn)
	if err != nil {
		r.transition(Aborted, Migration{})
		return res, err
	}
	applied := make(map[string]struct{}, len(names))
	for _, n := range names {
		applied[n] = struct{}{}
	}

	r.transition(Scanning, Migration{})
	all, err := LoadMigrations(r.cfg.MigrationsDir)
	if err != nil {
		r.transition(Aborted, Migration{})
		return res, err
	}
	pending := Pending(all, applied)
	res.Skipped = len(all) - len(pending)
	r.log.Info().
		Int("pending", len(pending)).
		Int("applied", res.Skipped).
		Str("dir", r.cfg.MigrationsDir).
		Msg("Scanned migrations")

	for _, m := range pending {
		if err := ctx.Err(); err != nil {
			r.transition(Aborted, Migration{})
			return res, fmt.Errorf("run interrupted before %s: %w", m.Name, err)
		}
		if err := r.apply(context.WithoutCancel(ctx), conn, m); err != nil {
			r.transition(Aborted, m)
			return res, err
		}
		res.Applied = append(res.Applied, m)
	}

	r.transition(Done, Migration{})
	return res, nil
}

// apply executes one file and records it, all inside one transaction.
func (r *Runner) apply(ctx context.Context, conn *sql.Conn, m Migration) error {
	r.transition(Applying, m)
	r.log.Info().Str("migration", m.Name).Msg("Running migration")

	script, err := m.SQL()
	if err != nil {
		r.transition(RolledBack, m)
		return newExecError(m.Name, StageExecute, fmt.Errorf("read %s: %w", m.Filename, err))
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		r.transition(RolledBack, m)
		return newExecError(m.Name, StageBegin, err)
	}
	if _, err := tx.ExecContext(ctx, script); err != nil {
		return r.rollback(tx, m, newExecError(m.Name, StageExecute, err))
	}
	if err := r.client.Record(ctx, tx, m.Name); err != nil {
		return r.rollback(tx, m, newExecError(m.Name, StageRecord, err))
	}
	if err := tx.Commit(); err != nil {
		r.transition(RolledBack, m)
		return newExecError(m.Name, StageCommit, err)
	}

	r.transition(Committed, m)
	r.log.Info().Str("migration", m.Name).Msg("Migration completed successfully")
	return nil
}

func (r *Runner) rollback(tx *sql.Tx, m Migration, cause *ExecError) error {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		r.log.Error().Err(err).Str("migration", m.Name).Msg("Rollback failed")
	}
	r.transition(RolledBack, m)
	r.log.Error().
		Err(cause.Err).
		Str("migration", m.Name).
		Str("stage", cause.Stage).
		Str("code", cause.Code).
		Msg("Migration rolled back")
	return cause
}

// Status compares the ledger with the migrations directory without changing
// either. A missing ledger table means nothing has been applied.
func (r *Runner) Status(ctx context.Context) (Status, error) {
	var st Status
	exists, err := r.client.HasLedger(ctx, r.db)
	if err != nil {
		return st, err
	}
	if exists {
		if st.Applied, err = r.client.AppliedNames(ctx, r.db); err != nil {
			return st, err
		}
	}
	applied := make(map[string]struct{}, len(st.Applied))
	for _, n := range st.Applied {
		applied[n] = struct{}{}
	}
	all, err := LoadMigrations(r.cfg.MigrationsDir)
	if err != nil {
		return st, err
	}
	st.Pending = Pending(all, applied)
	return st, nil
}

// History returns the ledger rows in the order they were applied.
func (r *Runner) History(ctx context.Context) ([]Record, error) {
	exists, err := r.client.HasLedger(ctx, r.db)
	if err != nil || !exists {
		return nil, err
	}
	return r.client.History(ctx, r.db)
}
