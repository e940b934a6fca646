package compiler

import "fmt"

// ErrorKind represents the category of a compilation error.
type ErrorKind int

const (
	// ErrParam indicates a malformed procedure parameter specifier.
	ErrParam ErrorKind = iota
	// ErrBody indicates that compiling a procedure body failed.
	ErrBody
	// ErrInvariant indicates corrupted compiler state or input, such as a
	// literal with no reference-count record.
	ErrInvariant
)

// String returns the string representation of the error kind.
func (k ErrorKind) String() string {
	switch k {
	case ErrParam:
		return "parameter error"
	case ErrBody:
		return "body error"
	case ErrInvariant:
		return "invariant error"
	default:
		return "error"
	}
}

// Error is a compilation error carrying the category of failure and, when
// the failure is tied to a procedure definition, the procedure's name and
// the source line of its defining command.
type Error struct {
	Message  string
	Kind     ErrorKind
	ProcName string
	Line     int
	Cause    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.ProcName == "" {
		return fmt.Sprintf("%s: %s", e.Kind.String(), e.Message)
	}
	if e.Line > 0 {
		return fmt.Sprintf("%s: %s (procedure %q, line %d)", e.Kind.String(), e.Message, e.ProcName, e.Line)
	}
	return fmt.Sprintf("%s: %s (procedure %q)", e.Kind.String(), e.Message, e.ProcName)
}

// Unwrap returns the underlying cause of the error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithCause wraps the error with a cause.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// NewError creates a new Error with the given kind and message.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// NewErrorf creates a new Error with a formatted message.
func NewErrorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// InProc attaches the procedure name and defining line to the error.
func (e *Error) InProc(name string, line int) *Error {
	e.ProcName = name
	e.Line = line
	return e
}
