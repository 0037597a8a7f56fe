package apperrors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Error kinds. Every error returned by repositories and services wraps
// exactly one of these so callers can branch with errors.Is.
var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation error")
	ErrConflict   = errors.New("conflict")
	ErrDatabase   = errors.New("database error")
)

// PostgreSQL SQLSTATE codes translated by FromPg.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
	pgNotNullViolation    = "23502"
	pgInvalidTextRep      = "22P02"
)

// NotFound returns an ErrNotFound naming the missing entity, e.g.
// "role not found: 6f1c...".
func NotFound(entity string, id any) error {
	return fmt.Errorf("%s %w: %v", entity, ErrNotFound, id)
}

// Validation returns an ErrValidation carrying message.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Conflict returns an ErrConflict carrying message.
func Conflict(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

// FromPg translates a datastore error raised while performing op.
// Constraint violations become Conflict/NotFound/Validation based on the
// SQLSTATE reported by PostgreSQL; anything else is wrapped as ErrDatabase.
// Errors that already carry a kind are returned unchanged.
func FromPg(op string, err error) error {
	if err == nil {
		return nil
	}
	if Kind(err) != nil {
		return err
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrNotFound, op)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return fmt.Errorf("%w: %s: %s already exists", ErrConflict, op, constraintSubject(pgErr))
		case pgForeignKeyViolation:
			return fmt.Errorf("%w: %s: referenced row does not exist", ErrNotFound, op)
		case pgCheckViolation, pgNotNullViolation, pgInvalidTextRep:
			return fmt.Errorf("%w: %s: %s", ErrValidation, op, pgErr.Message)
		}
	}

	return fmt.Errorf("%w: %s: %w", ErrDatabase, op, err)
}

// Kind returns the sentinel kind carried by err, or nil if err has none.
func Kind(err error) error {
	for _, kind := range []error{ErrNotFound, ErrValidation, ErrConflict, ErrDatabase} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// Code returns a stable snake_case code for err suitable for API responses.
func Code(err error) string {
	switch Kind(err) {
	case ErrNotFound:
		return "not_found"
	case ErrValidation:
		return "validation_error"
	case ErrConflict:
		return "conflict"
	default:
		return "database_error"
	}
}

func constraintSubject(pgErr *pgconn.PgError) string {
	if pgErr.ConstraintName != "" {
		return pgErr.ConstraintName
	}
	return "row"
}

// ConstraintName returns the violated constraint carried by a PostgreSQL
// error, or "" when err is not a constraint violation.
func ConstraintName(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.ConstraintName
	}
	return ""
}
