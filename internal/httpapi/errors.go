package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"llamabind/internal/binding"
	"llamabind/internal/manager"
	"llamabind/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeError(w, status, msg, "")
}

func writeError(w http.ResponseWriter, status int, msg, kind string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status, Kind: kind})
}

// statusFor maps service errors to an HTTP status code and, for binding
// failures, the error kind reported to the client.
func statusFor(err error) (int, string) {
	var he HTTPError
	switch {
	case manager.IsModelNotFound(err):
		return http.StatusNotFound, ""
	case manager.IsTooBusy(err):
		return http.StatusTooManyRequests, ""
	case manager.IsDependencyUnavailable(err), binding.IsEngineUnavailable(err):
		return http.StatusServiceUnavailable, kindName(err)
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, ""
	case errors.As(err, &he):
		return he.StatusCode(), ""
	}
	switch binding.KindOf(err) {
	case binding.ConfigInvalid:
		return http.StatusBadRequest, kindName(err)
	case binding.StateSizeMismatch, binding.ShortRead, binding.ShortWrite:
		return http.StatusConflict, kindName(err)
	case binding.Unsupported:
		return http.StatusNotImplemented, kindName(err)
	case binding.HandleClosed:
		return http.StatusServiceUnavailable, kindName(err)
	default:
		return http.StatusInternalServerError, kindName(err)
	}
}

func kindName(err error) string {
	if k := binding.KindOf(err); k != binding.KindUnknown {
		return k.String()
	}
	return ""
}

// writeServiceError maps err and writes it, counting 429s as backpressure.
func writeServiceError(w http.ResponseWriter, err error) int {
	status, kind := statusFor(err)
	if status == http.StatusTooManyRequests {
		IncrementBackpressure("queue")
	}
	writeError(w, status, err.Error(), kind)
	return status
}
