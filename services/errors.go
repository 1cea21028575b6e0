package services

import "net/http"

type ErrorKind string

const (
	KindValidation   ErrorKind = "validation"
	KindNotFound     ErrorKind = "not_found"
	KindInvalidState ErrorKind = "invalid_state"
	KindForbidden    ErrorKind = "forbidden"
	KindInternal     ErrorKind = "internal"
)

// ServiceError represents a typed error with an HTTP status code.
type ServiceError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
}

func (e *ServiceError) Error() string {
	return e.Message
}

// Is matches the kind sentinels below, so callers can use errors.Is(err, ErrNotFound).
func (e *ServiceError) Is(target error) bool {
	t, ok := target.(*ServiceError)
	if !ok {
		return false
	}
	return t.Message == "" && t.Kind == e.Kind
}

var (
	ErrValidation   = &ServiceError{Kind: KindValidation, StatusCode: http.StatusBadRequest}
	ErrNotFound     = &ServiceError{Kind: KindNotFound, StatusCode: http.StatusNotFound}
	ErrInvalidState = &ServiceError{Kind: KindInvalidState, StatusCode: http.StatusConflict}
	ErrForbidden    = &ServiceError{Kind: KindForbidden, StatusCode: http.StatusForbidden}
	ErrInternal     = &ServiceError{Kind: KindInternal, StatusCode: http.StatusInternalServerError}
)

func newError(kind *ServiceError, msg string) *ServiceError {
	return &ServiceError{Kind: kind.Kind, StatusCode: kind.StatusCode, Message: msg}
}

func validationError(msg string) *ServiceError   { return newError(ErrValidation, msg) }
func notFoundError(msg string) *ServiceError     { return newError(ErrNotFound, msg) }
func invalidStateError(msg string) *ServiceError { return newError(ErrInvalidState, msg) }
func forbiddenError(msg string) *ServiceError    { return newError(ErrForbidden, msg) }
func internalError(msg string) *ServiceError     { return newError(ErrInternal, msg) }
