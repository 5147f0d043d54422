package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/koustreak/dbkit/internal/errs"
)

// Primary result codes, https://www.sqlite.org/rescode.html
const (
	codeError      = 1
	codePerm       = 3
	codeBusy       = 5
	codeLocked     = 6
	codeReadOnly   = 8
	codeCantOpen   = 14
	codeConstraint = 19
	codeAuth       = 23
)

// codedError is satisfied by the driver's *Error.
type codedError interface {
	error
	Code() int
}

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

	var coded codedError
	if errors.As(err, &coded) {
		return errs.Wrap(classifyCode(coded.Code()), fmt.Sprintf("%s: %s", msg, coded.Error()), err)
	}

	return errs.Wrap(errs.ErrKindQueryFailed, msg, err)
}

func classifyCode(code int) errs.ErrKind {
	switch code & 0xff {
	case codeConstraint:
		return errs.ErrKindConflict
	case codeBusy, codeLocked:
		return errs.ErrKindTimeout
	case codePerm, codeAuth, codeReadOnly:
		return errs.ErrKindPermissionDenied
	case codeCantOpen:
		return errs.ErrKindConnectionFailed
	default:
		return errs.ErrKindQueryFailed
	}
}
