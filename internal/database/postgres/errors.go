package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/koustreak/dbkit/internal/errs"
)

// PostgreSQL SQLSTATE codes with a dedicated kind.
// Full list: https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	pgErrUniqueViolation     = "23505"
	pgErrForeignKeyViolation = "23503"
	pgErrInsufficientPriv    = "42501"
	pgErrInvalidPassword     = "28P01"
)

// mapError translates pgx / pgconn native errors into *errs.Error.
func mapError(err error, msg string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return errs.Wrap(errs.ErrKindNotFound, msg, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return errs.Wrap(classifyCode(pgErr.Code), fmt.Sprintf("%s: %s", msg, pgErr.Message), err)
	}

	// connection-level errors (TLS, network, auth)
	return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
}

func classifyCode(code string) errs.ErrKind {
	switch {
	case code == pgErrUniqueViolation, code == pgErrForeignKeyViolation:
		return errs.ErrKindConflict
	case code == pgErrInsufficientPriv, code == pgErrInvalidPassword:
		return errs.ErrKindPermissionDenied
	case len(code) >= 2 && code[:2] == "08":
		// Class 08: connection exception
		return errs.ErrKindConnectionFailed
	default:
		return errs.ErrKindQueryFailed
	}
}
