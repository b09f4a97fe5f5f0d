package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Errors returned by the history store.
var (
	ErrNotFound   = errors.New("run not found")
	ErrDuplicate  = errors.New("run already recorded")
	ErrInvalidRun = errors.New("invalid run")
)

// SQLSTATE codes the task_runs constraints can raise.
const (
	codeUniqueViolation  = "23505"
	codeCheckViolation   = "23514"
	codeNotNullViolation = "23502"
)

// MapError translates errors from run history queries into the store
// sentinels, keeping the driver error in the message. Anything else is
// returned unchanged.
func MapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}

	pgErr, ok := asPgError(err)
	if !ok {
		return err
	}
	switch pgErr.Code {
	case codeUniqueViolation:
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	case codeCheckViolation:
		return fmt.Errorf("%w: check constraint violation (%s): %v", ErrInvalidRun, pgErr.ConstraintName, err)
	case codeNotNullViolation:
		return fmt.Errorf("%w: not null violation (%s): %v", ErrInvalidRun, pgErr.ColumnName, err)
	default:
		return err
	}
}

func asPgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

func hasCode(err error, code string) bool {
	pgErr, ok := asPgError(err)
	return ok && pgErr.Code == code
}

// IsUniqueViolation reports whether a run with the same task was already recorded.
func IsUniqueViolation(err error) bool { return hasCode(err, codeUniqueViolation) }

// IsCheckConstraintViolation reports whether a row failed a task_runs check.
func IsCheckConstraintViolation(err error) bool { return hasCode(err, codeCheckViolation) }

// IsNotFoundError reports whether err means the run does not exist.
func IsNotFoundError(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || errors.Is(err, ErrNotFound)
}
