package types

import (
	"errors"
	"fmt"
)

// Kind classifies a failure. Renderers map kinds to localized text; the
// core never formats user-facing sentences itself.
type Kind string

const (
	KindEmptyInput          Kind = "EmptyInput"
	KindEmptyAnalysisResult Kind = "EmptyAnalysisResult"
	KindMalformedResponse   Kind = "MalformedResponse"
	KindEmptyResponse       Kind = "EmptyResponse"
	KindNoImageReturned     Kind = "NoImageReturned"
	KindModelUnavailable    Kind = "ModelUnavailable"
	KindTransport           Kind = "TransportError"
	KindPersistenceRead     Kind = "PersistenceReadError"
	KindPersistenceWrite    Kind = "PersistenceWriteError"
	KindBusy                Kind = "Busy"
)

// Kinds returns every kind in the taxonomy.
func Kinds() []Kind {
	return []Kind{
		KindEmptyInput, KindEmptyAnalysisResult, KindMalformedResponse, KindEmptyResponse,
		KindNoImageReturned, KindModelUnavailable, KindTransport,
		KindPersistenceRead, KindPersistenceWrite, KindBusy,
	}
}

// Error is the structured error carried between packages.
type Error struct {
	Kind    Kind
	Message string // diagnostic detail, not shown verbatim unless the catalog asks for it
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Cause != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	case e.Cause != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return string(e.Kind)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error of the same kind, so sentinel comparisons work.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Cause == nil
}

// NewError creates an error of the given kind wrapping cause.
func NewError(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Cause: cause}
}

// Errorf creates an error of the given kind with a formatted detail message.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Sentinels for errors.Is checks.
var (
	ErrEmptyInput          = &Error{Kind: KindEmptyInput}
	ErrEmptyAnalysisResult = &Error{Kind: KindEmptyAnalysisResult}
	ErrBusy                = &Error{Kind: KindBusy}
)

// KindOf returns the kind of err. Errors outside the taxonomy are transport errors.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindTransport
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Detail returns the innermost human-readable message of err, used when a
// catalog entry wants to show what the remote side said.
func Detail(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		if err == nil {
			return ""
		}
		return err.Error()
	}
	if e.Cause != nil {
		return Detail(e.Cause)
	}
	return e.Message
}
