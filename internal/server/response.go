package server

import (
	"encoding/json"
	"net/http"

	"github.com/koustreak/dbkit/internal/errs"
	"github.com/koustreak/dbkit/internal/logger"
)

func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Global().Errorf("write json response: %v", err)
	}
}

func errorResponse(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

// statusFor maps an error kind to the HTTP status callers see.
func statusFor(err error) int {
	switch errs.KindOf(err) {
	case errs.ErrKindNotFound:
		return http.StatusNotFound
	case errs.ErrKindInvalidInput:
		return http.StatusBadRequest
	case errs.ErrKindValidation:
		return http.StatusUnprocessableEntity
	case errs.ErrKindConflict:
		return http.StatusConflict
	case errs.ErrKindTimeout:
		return http.StatusGatewayTimeout
	case errs.ErrKindConnectionFailed:
		return http.StatusServiceUnavailable
	case errs.ErrKindPermissionDenied:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
