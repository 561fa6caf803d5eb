package errorutil

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"sort"

	"github.com/jackc/pgx/v5"
)

// Error codes surfaced to callers.
const (
	CodeNotFound          = "NOT_FOUND"
	CodePermissionDenied  = "PERMISSION_DENIED"
	CodeStaleState        = "STALE_STATE"
	CodeIllegalTransition = "ILLEGAL_TRANSITION"
	CodeMissingField      = "MISSING_FIELD"
	CodeDuplicateOffer    = "DUPLICATE_OFFER"
	CodeValidation        = "VALIDATION_FAILED"
	CodeTransitionFailed  = "TRANSITION_FAILED"
	CodeUnauthorized      = "UNAUTHORIZED"
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
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, details)
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

func NewPermissionDenied(message string) error {
	return NewDomainError(CodePermissionDenied, message, http.StatusForbidden, nil)
}

// NewStaleState reports that the caller acted on an outdated view of the ticket.
func NewStaleState(expected, actual string) error {
	return NewDomainError(CodeStaleState, "ticket status has changed", http.StatusConflict, map[string]any{
		"expected": expected,
		"actual":   actual,
	})
}

func NewIllegalTransition(from, to string) error {
	return NewDomainError(CodeIllegalTransition, fmt.Sprintf("transition %s -> %s is not allowed", from, to),
		http.StatusUnprocessableEntity, map[string]any{"from": from, "to": to})
}

// NewMissingField lists the payload fields a transition needs but did not get.
func NewMissingField(fields ...string) error {
	sorted := append([]string(nil), fields...)
	sort.Strings(sorted)
	return NewDomainError(CodeMissingField, "required fields missing", http.StatusUnprocessableEntity,
		map[string]any{"fields": sorted})
}

func NewDuplicateOffer(ticketID, companyID string) error {
	return NewDomainError(CodeDuplicateOffer, "company already has an active offer on this damage", http.StatusConflict,
		map[string]any{"ticket_id": ticketID, "company_id": companyID})
}

// NewTransitionFailed hides the cause from the client but keeps it for logging.
func NewTransitionFailed(err error) error {
	return &DomainError{
		Code:       CodeTransitionFailed,
		Message:    "transition could not be applied",
		HTTPStatus: http.StatusInternalServerError,
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

// IsDomainError reports whether err carries one of the taxonomy codes.
func IsDomainError(err error) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr)
}

// HasCode reports whether err is a DomainError with the given code.
func HasCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// IsNoRows matches both pgx and database/sql empty results.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows)
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if IsNoRows(err) {
		return NewNotFound("resource", nil).(*DomainError)
	}
	return NewInternalError(err).(*DomainError)
}

// MapError is ToDomainError for call sites that return error.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	return ToDomainError(err)
}
