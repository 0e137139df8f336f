package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for boundary mapping and caller retry decisions.
type Kind int

const (
	KindUnknown Kind = iota
	// KindValidation is malformed input or a schema violation. Never retried.
	KindValidation
	// KindConsistency is a cross-document or document/record mismatch (tamper detection).
	KindConsistency
	// KindState is an operation that is not legal in the entity's current state.
	KindState
	// KindConflict is a uniqueness violation; the caller may retry with different identifiers.
	KindConflict
	// KindNotFound is a missing resource.
	KindNotFound
	// KindPermission is a caller acting on a resource it does not own.
	KindPermission
	// KindInfra is a storage or transaction failure; the mutation was rolled back.
	KindInfra
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConsistency:
		return "consistency"
	case KindState:
		return "state"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindPermission:
		return "permission"
	case KindInfra:
		return "infra"
	default:
		return "unknown"
	}
}

type Error struct {
	Kind Kind
	Code string
	// Field names the offending input or document field, when one exists.
	Field string
	Err   error
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
	return fmt.Sprintf("%s error", e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, code string, err error) *Error {
	return &Error{Kind: kind, Code: code, Err: err}
}

func Validation(code, format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Code: code, Err: fmt.Errorf(format, args...)}
}

func ValidationField(code, field, format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Code: code, Field: field, Err: fmt.Errorf(format, args...)}
}

func Consistency(code, field, format string, args ...interface{}) *Error {
	return &Error{Kind: KindConsistency, Code: code, Field: field, Err: fmt.Errorf(format, args...)}
}

func State(code, format string, args ...interface{}) *Error {
	return &Error{Kind: KindState, Code: code, Err: fmt.Errorf(format, args...)}
}

func Conflict(code, format string, args ...interface{}) *Error {
	return &Error{Kind: KindConflict, Code: code, Err: fmt.Errorf(format, args...)}
}

func NotFound(code, format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Code: code, Err: fmt.Errorf(format, args...)}
}

func Permission(code, format string, args ...interface{}) *Error {
	return &Error{Kind: KindPermission, Code: code, Err: fmt.Errorf(format, args...)}
}

func Infra(code string, err error) *Error {
	return &Error{Kind: KindInfra, Code: code, Err: err}
}

// KindOf walks the error chain and returns the first Error's kind.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindUnknown
}

func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
