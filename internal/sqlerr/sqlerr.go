// Package sqlerr classifies database driver errors.
//
// PostgreSQL errors (pgconn.PgError, by SQLSTATE) and SQLite errors
// (sqlite3.Error, by extended result code) are mapped onto a small set of
// Codes so callers can react to constraint violations without knowing which
// driver produced them.
package sqlerr

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
)

// Code is a driver-independent error category.
type Code string

const (
	Other               Code = "other"
	UniqueViolation     Code = "unique_violation"
	NotNullViolation    Code = "not_null_violation"
	CheckViolation      Code = "check_violation"
	ForeignKeyViolation Code = "foreign_key_violation"
)

// PostgreSQL SQLSTATE values for integrity constraint violations (class 23).
const (
	pgUniqueViolation     = "23505"
	pgNotNullViolation    = "23502"
	pgCheckViolation      = "23514"
	pgForeignKeyViolation = "23503"
)

// Error is a classified driver error.
type Error struct {
	Code Code
	// DatabaseCode is the raw SQLSTATE or SQLite extended code.
	DatabaseCode string
	Table        string
	Constraint   string
	Message      string

	driverErr error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.driverErr
}

// Convert classifies err. It returns nil when err carries no recognized driver error.
func Convert(err error) *Error {
	if err == nil {
		return nil
	}
	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &Error{
			Code:         mapPgCode(pgErr.Code),
			DatabaseCode: pgErr.Code,
			Table:        pgErr.TableName,
			Constraint:   pgErr.ConstraintName,
			Message:      pgErr.Message,
			driverErr:    pgErr,
		}
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return &Error{
			Code:         mapSQLiteCode(liteErr),
			DatabaseCode: liteErr.ExtendedCode.Error(),
			Message:      liteErr.Error(),
			driverErr:    liteErr,
		}
	}
	return nil
}

// Classify returns the Code for err, or Other when it is not a recognized driver error.
func Classify(err error) Code {
	if e := Convert(err); e != nil {
		return e.Code
	}
	return Other
}

// IsConstraintViolation reports whether err is any integrity constraint failure.
func IsConstraintViolation(err error) bool {
	switch Classify(err) {
	case UniqueViolation, NotNullViolation, CheckViolation, ForeignKeyViolation:
		return true
	default:
		return false
	}
}

func mapPgCode(code string) Code {
	switch code {
	case pgUniqueViolation:
		return UniqueViolation
	case pgNotNullViolation:
		return NotNullViolation
	case pgCheckViolation:
		return CheckViolation
	case pgForeignKeyViolation:
		return ForeignKeyViolation
	default:
		return Other
	}
}

func mapSQLiteCode(e sqlite3.Error) Code {
	if e.Code != sqlite3.ErrConstraint {
		return Other
	}
	switch e.ExtendedCode {
	case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
		return UniqueViolation
	case sqlite3.ErrConstraintNotNull:
		return NotNullViolation
	case sqlite3.ErrConstraintCheck:
		return CheckViolation
	case sqlite3.ErrConstraintForeignKey:
		return ForeignKeyViolation
	default:
		return Other
	}
}
