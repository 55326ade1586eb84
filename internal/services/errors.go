package services

import (
	"errors"
	"fmt"
	"strings"
)

type ErrorCode string

const (
	ErrorInvalid     ErrorCode = "invalid"
	ErrorForbidden   ErrorCode = "forbidden"
	ErrorNotFound    ErrorCode = "not_found"
	ErrorInactive    ErrorCode = "inactive"
	ErrorPersistence ErrorCode = "persistence"
)

// ServiceError is the error type every service returns for caller-visible
// failures. Fields lists the offending input fields of an invalid request.
type ServiceError struct {
	Code    ErrorCode
	Message string
	Fields  []string
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error { return e.Err }

func NewInvalidError(msg string, fields ...string) error {
	return &ServiceError{Code: ErrorInvalid, Message: msg, Fields: fields}
}
func NewForbiddenError(msg string) error { return &ServiceError{Code: ErrorForbidden, Message: msg} }
func NewNotFoundError(msg string) error  { return &ServiceError{Code: ErrorNotFound, Message: msg} }
func NewInactiveError(msg string) error  { return &ServiceError{Code: ErrorInactive, Message: msg} }

// NewPersistenceError wraps a storage failure. The message stays generic;
// the cause is kept for logging.
func NewPersistenceError(op string, err error) error {
	return &ServiceError{Code: ErrorPersistence, Message: op + " failed", Err: err}
}

func AsServiceError(err error) (*ServiceError, bool) {
	var se *ServiceError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// IsCode reports whether err is a ServiceError with the given code.
func IsCode(err error, code ErrorCode) bool {
	se, ok := AsServiceError(err)
	return ok && se.Code == code
}

const (
	msgSurveyNotFound     = "survey not found"
	msgInvalidCredentials = "invalid credentials"
	msgSurveyInactive     = "survey is not accepting responses"
)

// fieldErrors collects invalid field names in the order they are found.
type fieldErrors []string

func (f *fieldErrors) add(field string) { *f = append(*f, field) }

func (f fieldErrors) err(prefix string) error {
	if len(f) == 0 {
		return nil
	}
	return NewInvalidError(prefix+": "+strings.Join(f, ", "), f...)
}
