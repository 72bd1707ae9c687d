package errorutil

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/worksession-tracker/internal/domain"
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
	return NewDomainError("VALIDATION_FAILED", message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	return notFound(resource, details)
}

func notFound(resource string, details map[string]any) *DomainError {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError("UNAUTHORIZED", message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError("FORBIDDEN", message, http.StatusForbidden, nil)
}

func NewInternalError(err error) error {
	return internalError(err)
}

func internalError(err error) *DomainError {
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic and tracker errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	var transitionErr *domain.TransitionError
	if errors.As(err, &transitionErr) {
		return &DomainError{
			Code:       transitionCode(transitionErr.Kind),
			Message:    transitionErr.Error(),
			HTTPStatus: http.StatusConflict,
			Details: map[string]any{
				"state":   transitionErr.State,
				"command": transitionErr.Command,
			},
			Err: err,
		}
	}
	var ledgerErr *domain.LedgerError
	if errors.As(err, &ledgerErr) {
		return &DomainError{
			Code:       "LEDGER_INCONSISTENT",
			Message:    "work session ledger is inconsistent",
			HTTPStatus: http.StatusInternalServerError,
			Err:        err,
		}
	}
	if errors.Is(err, domain.ErrTicketNotFound) {
		return &DomainError{
			Code:       "TICKET_NOT_FOUND",
			Message:    "ticket not found",
			HTTPStatus: http.StatusNotFound,
			Details:    map[string]any{},
			Err:        err,
		}
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return notFound("resource", nil)
	}
	return internalError(err)
}

// MapError converts err to a DomainError, keeping nil as nil.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	return ToDomainError(err)
}

// Code returns the DomainError code err maps to.
func Code(err error) string {
	if err == nil {
		return ""
	}
	return ToDomainError(err).Code
}

func transitionCode(kind error) string {
	switch {
	case errors.Is(kind, domain.ErrAlreadyStarted):
		return "ALREADY_STARTED"
	case errors.Is(kind, domain.ErrTerminalState):
		return "TERMINAL_STATE"
	default:
		return "INVALID_TRANSITION"
	}
}
