package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies request failures.
type ErrorKind string

// Error kinds.
const (
	KindBadRequest           ErrorKind = "bad_request"
	KindNotFound             ErrorKind = "not_found"
	KindValidation           ErrorKind = "validation"
	KindReferentialIntegrity ErrorKind = "referential_integrity"
	KindInternal             ErrorKind = "internal"
)

// Error is a classified request failure.
type Error struct {
	Kind    ErrorKind
	Type    string
	Field   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg = msg + ": " + e.Err.Error()
		}
	}
	switch {
	case e.Type != "" && e.Field != "":
		return fmt.Sprintf("%s: %s (type=%s, field=%s)", e.Kind, msg, e.Type, e.Field)
	case e.Type != "":
		return fmt.Sprintf("%s: %s (type=%s)", e.Kind, msg, e.Type)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, msg)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// BadRequestf builds a bad-request error.
func BadRequestf(recordType, format string, args ...any) *Error {
	return &Error{Kind: KindBadRequest, Type: recordType, Message: fmt.Sprintf(format, args...)}
}

// NotFoundf builds a not-found error.
func NotFoundf(recordType, format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Type: recordType, Message: fmt.Sprintf(format, args...)}
}

// ValidationFailure builds a validation error for one field.
func ValidationFailure(recordType, field, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Type: recordType, Field: field, Message: fmt.Sprintf(format, args...)}
}

// DanglingLink builds a referential-integrity error.
func DanglingLink(recordType, field string, missing []string) *Error {
	return &Error{
		Kind:    KindReferentialIntegrity,
		Type:    recordType,
		Field:   field,
		Message: fmt.Sprintf("linked records do not exist: %v", missing),
	}
}

// Internalf builds an internal error, used for storage contract violations.
func Internalf(recordType, format string, args ...any) *Error {
	return &Error{Kind: KindInternal, Type: recordType, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of a classified error, or "" for anything else.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsBadRequest reports whether err is a bad-request failure.
func IsBadRequest(err error) bool { return KindOf(err) == KindBadRequest }

// IsNotFound reports whether err is a not-found failure.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool { return KindOf(err) == KindValidation }

// IsReferentialIntegrity reports whether err is a dangling-link failure.
func IsReferentialIntegrity(err error) bool { return KindOf(err) == KindReferentialIntegrity }

// IsInternal reports whether err is an internal failure.
func IsInternal(err error) bool { return KindOf(err) == KindInternal }

// IsUserError reports whether err was caused by the request rather than the
// system handling it.
func IsUserError(err error) bool {
	switch KindOf(err) {
	case KindBadRequest, KindNotFound, KindValidation, KindReferentialIntegrity:
		return true
	default:
		return false
	}
}
