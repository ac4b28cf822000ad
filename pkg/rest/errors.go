package rest

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgREST error codes produced by the mock.
const (
	CodeParseError     = "PGRST100"
	CodeInvalidBody    = "PGRST102"
	CodeSingularNone   = "PGRST116"
	CodeSingularMany   = "PGRST117"
	CodeInvalidText    = "22P02"
	CodeNotNull        = "23502"
	CodeUndefinedTable = "42P01"
)

// APIError is the JSON error body: {code, details, hint, message}.
type APIError struct {
	Details *string `json:"details"`
	Hint    *string `json:"hint"`
	Code    string  `json:"code"`
	Message string  `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// newError builds the PgError used internally for every failure.
func newError(code, message, details string) *pgconn.PgError {
	return &pgconn.PgError{
		Severity: "ERROR",
		Code:     code,
		Message:  message,
		Detail:   details,
	}
}

func logicTreeError(src string, pos int, details string) error {
	return newError(CodeParseError,
		fmt.Sprintf("%q (line 1, column %d)", src, pos+1),
		details)
}

func singularError(n int) error {
	if n == 0 {
		return newError(CodeSingularNone, "Results contain 0 rows", "")
	}
	return newError(CodeSingularMany, "Results contain more than one row", "")
}

// toAPIError maps err to a status and response body.
func toAPIError(err error) (int, *APIError) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return http.StatusInternalServerError, &APIError{
			Code:    "XX000",
			Message: err.Error(),
		}
	}
	return statusFor(pgErr.Code), &APIError{
		Code:    pgErr.Code,
		Message: pgErr.Message,
		Details: optional(pgErr.Detail),
		Hint:    optional(pgErr.Hint),
	}
}

func statusFor(code string) int {
	switch code {
	case CodeSingularNone, CodeSingularMany:
		return http.StatusNotAcceptable
	case CodeParseError, CodeInvalidBody, CodeInvalidText, CodeNotNull:
		return http.StatusBadRequest
	case CodeUndefinedTable:
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
