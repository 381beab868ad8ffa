package errs

import (
	"errors"
	"fmt"
	"maps"
)

// AppError is the only error shape that crosses a process boundary. It is immutable;
// the With* methods return modified copies.
type AppError struct {
	kind    Kind
	message string
	details map[string]any
	cause   error
}

// Representation is the externalized form of an AppError.
type Representation struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details"`
}

// New builds an error of the given kind. Arguments fill the kind's message template;
// without arguments the default message is used.
func New(kind Kind, args ...any) *AppError {
	s := kind.info()
	msg := s.message
	if len(args) > 0 && s.format != "" {
		msg = fmt.Sprintf(s.format, args...)
	}
	return &AppError{kind: kind, message: msg}
}

// Wrap builds an error of the given kind caused by err. The cause is kept for logging
// and errors.Is/As, never for the external representation.
func Wrap(err error, kind Kind, args ...any) *AppError {
	e := New(kind, args...)
	e.cause = err
	return e
}

func (e *AppError) clone() *AppError {
	c := *e
	c.details = maps.Clone(e.details)
	return &c
}

// WithDetail returns a copy with one extra detail.
func (e *AppError) WithDetail(key string, value any) *AppError {
	c := e.clone()
	if c.details == nil {
		c.details = make(map[string]any, 1)
	}
	c.details[key] = value
	return c
}

// WithDetails returns a copy with the given details merged in.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	c := e.clone()
	if c.details == nil {
		c.details = make(map[string]any, len(details))
	}
	maps.Copy(c.details, details)
	return c
}

// WithCause returns a copy caused by err.
func (e *AppError) WithCause(err error) *AppError {
	c := e.clone()
	c.cause = err
	return c
}

// Kind returns the taxonomy kind.
func (e *AppError) Kind() Kind { return e.kind }

// Code returns the rendered error code.
func (e *AppError) Code() string { return e.kind.Code().String() }

// HTTPStatus returns the HTTP status bound to the kind.
func (e *AppError) HTTPStatus() int { return e.kind.Code().HTTPStatus() }

// Severity returns the severity bound to the kind.
func (e *AppError) Severity() Severity { return e.kind.Code().Severity() }

// Layer returns the layer bound to the kind.
func (e *AppError) Layer() Layer { return e.kind.Code().Layer() }

// Message returns the human-readable message.
func (e *AppError) Message() string { return e.message }

// Details returns a copy of the diagnostic details; never nil.
func (e *AppError) Details() map[string]any {
	if len(e.details) == 0 {
		return map[string]any{}
	}
	return maps.Clone(e.details)
}

// Error implements error. The cause is deliberately not part of the text.
func (e *AppError) Error() string { return e.Code() + ": " + e.message }

// Unwrap exposes the cause.
func (e *AppError) Unwrap() error { return e.cause }

// Is matches any AppError of the same kind, so sentinels work with errors.Is.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.kind == e.kind
}

// External returns the representation sent to clients.
func (e *AppError) External() Representation {
	return Representation{Code: e.Code(), Message: e.message, Details: e.Details()}
}

// As returns the outermost AppError in err's chain.
func As(err error) (*AppError, bool) {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// KindOf returns the kind of the outermost AppError in err's chain.
func KindOf(err error) (Kind, bool) {
	if ae, ok := As(err); ok {
		return ae.kind, true
	}
	return KindUnknown, false
}

// IsKind reports whether any AppError in err's chain has the given kind.
func IsKind(err error, kind Kind) bool {
	return errors.Is(err, &AppError{kind: kind})
}

// Classify returns err as an AppError, mapping anything outside the taxonomy to
// KindInternal with err kept as the cause.
func Classify(err error) *AppError {
	if err == nil {
		return nil
	}
	if ae, ok := As(err); ok {
		return ae
	}
	return Wrap(err, KindInternal)
}

// External returns the client-facing representation of any error.
func External(err error) Representation {
	return Classify(err).External()
}
