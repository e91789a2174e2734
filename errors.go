package migrate

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
)

// ErrDuplicate is matched by errors.Is when a ledger insert collides with an
// existing name.
var ErrDuplicate = errors.New("migration already recorded")

// pgUniqueViolation is the SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

// Stages of applying a single migration, reported in ExecError.
const (
	StageBegin   = "begin"
	StageExecute = "execute"
	StageRecord  = "record"
	StageCommit  = "commit"
)

// ConfigError reports an invalid or missing configuration value.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Field, e.Reason)
}

// ConnectError reports that the database could not be reached.
type ConnectError struct {
	Err error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("database connection failed: %v", e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// ExecError reports a failure while applying one migration file. The
// transaction for that file has been rolled back when this is returned.
type ExecError struct {
	Migration string
	Stage     string
	Err       error

	// Code is the database specific error code, if the driver exposed one.
	Code string

	duplicate bool
}

func newExecError(migration, stage string, err error) *ExecError {
	code, dup := classify(err)
	return &ExecError{
		Migration: migration,
		Stage:     stage,
		Code:      code,
		Err:       err,
		duplicate: dup && stage == StageRecord,
	}
}

func (e *ExecError) Error() string {
	msg := fmt.Sprintf("migration %s failed at %s", e.Migration, e.Stage)
	if e.Code != "" {
		msg += fmt.Sprintf(" (code %s)", e.Code)
	}
	if e.duplicate {
		msg += ": already recorded in ledger"
	}
	return fmt.Sprintf("%s: %v", msg, e.Err)
}

func (e *ExecError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrDuplicate) match unique violations on the ledger.
func (e *ExecError) Is(target error) bool {
	return target == ErrDuplicate && e.duplicate
}

// Duplicate reports whether the failure was a ledger uniqueness violation.
func (e *ExecError) Duplicate() bool { return e.duplicate }

// classify extracts a driver error code and whether it is a unique violation.
func classify(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, pgErr.Code == pgUniqueViolation
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return strconv.Itoa(int(liteErr.ExtendedCode)), liteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return "", false
}

// Exit codes returned by ExitCode.
const (
	ExitOK         = 0
	ExitFailure    = 1
	ExitConfig     = 2
	ExitConnection = 3
)

// ExitCode maps an error from a run to a process exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var cfgErr *ConfigError
	if errors.As(err, &cfgErr) {
		return ExitConfig
	}
	var connErr *ConnectError
	if errors.As(err, &connErr) {
		return ExitConnection
	}
	return ExitFailure
}
