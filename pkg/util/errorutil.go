package util

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Error codes carried by DomainError.
const (
	CodeValidationFailed  = "VALIDATION_FAILED"
	CodeInvalidTarget     = "INVALID_TARGET"
	CodeIllegalTransition = "ILLEGAL_TRANSITION"
	CodeNotFound          = "NOT_FOUND"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeForbidden         = "FORBIDDEN"
	CodeConflictOnWrite   = "CONFLICT_ON_WRITE"
	CodeSinkUnavailable   = "SINK_UNAVAILABLE"
	CodeInternal          = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidationFailed, message, http.StatusBadRequest, details)
}

// NewInvalidTarget flags a malformed or unrecognized target state/user.
func NewInvalidTarget(message string, details map[string]any) error {
	return NewDomainError(CodeInvalidTarget, message, http.StatusBadRequest, details)
}

// NewIllegalTransition flags a status edge the state machine rejects.
func NewIllegalTransition(from, to string) error {
	return NewDomainError(CodeIllegalTransition,
		fmt.Sprintf("transition not allowed from %s to %s", from, to),
		http.StatusBadRequest,
		map[string]any{"from": from, "to": to})
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

// NewForbidden flags an actor lacking the capability for an operation.
func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

// NewConflictOnWrite flags a concurrent mutation racing the transaction;
// callers should retry the whole operation against fresh state.
func NewConflictOnWrite(message string, details map[string]any) error {
	return NewDomainError(CodeConflictOnWrite, message, http.StatusConflict, details)
}

// NewSinkUnavailable flags a notification delivery failure. Callers log it;
// it never propagates to the owning mutation.
func NewSinkUnavailable(err error) error {
	return &DomainError{
		Code:       CodeSinkUnavailable,
		Message:    "notification sink unavailable",
		HTTPStatus: http.StatusServiceUnavailable,
		Err:        err,
	}
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError, mapping pgx sentinel
// and SQLSTATE errors onto the taxonomy.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, pgx.ErrNoRows) {
		if de, ok := NewNotFound("resource", nil).(*DomainError); ok {
			return de
		}
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			de := NewDomainError(CodeConflictOnWrite, "duplicate write", http.StatusConflict,
				map[string]any{"constraint": pgErr.ConstraintName})
			de.Err = err
			return de
		case "40001", "40P01": // serialization_failure, deadlock_detected
			de := NewDomainError(CodeConflictOnWrite, "concurrent mutation, retry", http.StatusConflict, nil)
			de.Err = err
			return de
		}
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func MapError(err error) error {
	if err == nil {
		return nil
	}
	return ToDomainError(err)
}

// IsUniqueViolation reports whether err is a store-level duplicate write.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
