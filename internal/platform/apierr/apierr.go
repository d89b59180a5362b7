package apierr

import (
	"fmt"
	"net/http"
)

// Codes surfaced in error envelopes.
const (
	CodeInvalidRequest        = "invalid_request"
	CodeMissingIdempotencyKey = "missing_idempotency_key"
	CodeIdempotencyConflict   = "idempotency_conflict"
	CodeSagaFailed            = "saga_failed"
	CodeSagaCompensated       = "saga_compensated"
	CodeStateMismatch         = "state_mismatch"
	CodeInternal              = "internal_error"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func BadRequest(code string, err error) *Error {
	return New(http.StatusBadRequest, code, err)
}
