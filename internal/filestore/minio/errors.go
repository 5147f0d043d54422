package minio

import (
	"context"
	"errors"
	"net/http"

	miniogo "github.com/minio/minio-go/v7"

	"github.com/koustreak/dbkit/internal/errs"
)

// mapError translates an SDK error into an *errs.Error, the same way the
// database drivers classify theirs.
func mapError(err error, msg string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}

	var resp miniogo.ErrorResponse
	if errors.As(err, &resp) {
		return errs.Wrap(classifyResponse(resp), msg, err)
	}

	return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
}

func classifyResponse(resp miniogo.ErrorResponse) errs.ErrKind {
	switch resp.Code {
	case "NoSuchBucket", "NoSuchKey", "NoSuchUpload":
		return errs.ErrKindNotFound
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
		return errs.ErrKindPermissionDenied
	case "InvalidBucketName", "InvalidObjectName", "KeyTooLongError":
		return errs.ErrKindInvalidInput
	case "BucketAlreadyExists", "BucketAlreadyOwnedByYou":
		return errs.ErrKindConflict
	case "RequestTimeout", "SlowDown":
		return errs.ErrKindTimeout
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		return errs.ErrKindNotFound
	case http.StatusForbidden, http.StatusUnauthorized:
		return errs.ErrKindPermissionDenied
	case http.StatusBadRequest:
		return errs.ErrKindInvalidInput
	case http.StatusConflict:
		return errs.ErrKindConflict
	default:
		return errs.ErrKindQueryFailed
	}
}
