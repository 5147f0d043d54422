package database

import "github.com/koustreak/dbkit/internal/errs"

// Constructor helpers shared by the builders in this package. Drivers map
// their native errors in their own packages.

func errQuery(msg string, cause error) *errs.Error {
	return errs.Wrap(errs.ErrKindQueryFailed, msg, cause)
}

func errInvalidInput(msg string) *errs.Error {
	return errs.New(errs.ErrKindInvalidInput, msg)
}

func errConfiguration(msg string) *errs.Error {
	return errs.New(errs.ErrKindConfiguration, msg)
}
