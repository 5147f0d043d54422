package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	gomysql "github.com/go-sql-driver/mysql"

	"github.com/koustreak/dbkit/internal/errs"
)

// MySQL error numbers
// Full list: https://dev.mysql.com/doc/mysql-errors/8.0/en/server-error-reference.html
const (
	errDuplicateEntry  = 1062
	errNoReferencedRow = 1452
	errRowIsReferenced = 1451
	errBadFieldError   = 1054
	errParseError      = 1064
	errNoSuchTable     = 1146
	errDBAccessDenied  = 1044
	errAccessDenied    = 1045
	errTableAccessDeny = 1142
	errUnknownDatabase = 1049
	errTooManyConns    = 1040
	errUserConnLimit   = 1203
	errConnRefused     = 2003
)

// mapError translates go-sql-driver/mysql errors into *errs.Error.
func mapError(err error, msg string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}

	if errors.Is(err, sql.ErrNoRows) {
		return errs.Wrap(errs.ErrKindNotFound, msg, err)
	}

	var mysqlErr *gomysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return errs.Wrap(
			classifyMySQLCode(mysqlErr.Number),
			fmt.Sprintf("%s: %s", msg, mysqlErr.Message),
			err,
		)
	}

	return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
}

// classifyMySQLCode maps MySQL error numbers to ErrKind.
func classifyMySQLCode(code uint16) errs.ErrKind {
	switch code {
	case errDuplicateEntry, errNoReferencedRow, errRowIsReferenced:
		return errs.ErrKindConflict
	case errDBAccessDenied, errAccessDenied, errTableAccessDeny:
		return errs.ErrKindPermissionDenied
	case errUnknownDatabase, errTooManyConns, errUserConnLimit, errConnRefused:
		return errs.ErrKindConnectionFailed
	case errBadFieldError, errParseError, errNoSuchTable:
		return errs.ErrKindQueryFailed
	default:
		return errs.ErrKindQueryFailed
	}
}
