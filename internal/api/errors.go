package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/nativehost/internal/dispatch"
)

// Error is the JSON error envelope.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes.
const (
	ErrCodeBadRequest           = "bad_request"
	ErrCodeUnauthorized         = "unauthorised"
	ErrCodeForbidden            = "forbidden"
	ErrCodeInternal             = "internal_error"
	ErrCodeUnsupportedOperation = "unsupported_operation"
	ErrCodeOperationFailed      = "operation_failed"
	ErrCodeUnavailable          = "unavailable"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{Status: status, Code: code, Message: message})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// classifyDispatchError maps a dispatcher error onto status and code.
func classifyDispatchError(err error) (int, string) {
	switch {
	case errors.Is(err, dispatch.ErrUnsupportedOperation):
		return http.StatusNotFound, ErrCodeUnsupportedOperation
	case errors.Is(err, dispatch.ErrInvalidArguments):
		return http.StatusBadRequest, ErrCodeBadRequest
	default:
		return http.StatusInternalServerError, ErrCodeOperationFailed
	}
}

func writeDispatchError(w http.ResponseWriter, err error) {
	status, code := classifyDispatchError(err)
	writeError(w, status, code, err.Error())
}
