// Package casaerr defines the error kinds shared by the scenario-analysis packages.
//
// Every failure carries a Code so callers can tell configuration mistakes,
// structural (programming) errors, numerical/provider errors and I/O errors apart
// without parsing messages.
package casaerr

import (
	"errors"
	"fmt"
)

// Code classifies an error.
type Code int

const (
	// UnknownError is used when a foreign error is wrapped without a better classification
	UnknownError Code = iota
	// AlreadyDefined is returned when a parameter, observable or experiment label is added twice
	AlreadyDefined
	// OutOfRange is returned for indices, counts or values outside their allowed range
	OutOfRange
	// UndefinedValue is returned when a required value was never set
	UndefinedValue
	// ValidationError is returned when a mutated case does not match its parameters
	ValidationError
	// IoError is returned when a project can not be read or written
	IoError
	// SolverError is returned by design/fit providers, the proxy and the MC/LM solvers
	SolverError
	// ConfigError is returned for unknown names and malformed configuration
	ConfigError
	// SerializationError is returned when state can not be written
	SerializationError
	// DeserializationError is returned when state can not be read back
	DeserializationError
	// VersionMismatch is returned when persisted state is newer than the reader
	VersionMismatch
	// RunManagerError is returned when the external run manager could not run a case
	RunManagerError
	// NotImplemented is returned for operations a backend does not support
	NotImplemented
)

var codeNames = map[Code]string{
	UnknownError:         "unknown error",
	AlreadyDefined:       "already defined",
	OutOfRange:           "out of range",
	UndefinedValue:       "undefined value",
	ValidationError:      "validation error",
	IoError:              "io error",
	SolverError:          "solver error",
	ConfigError:          "config error",
	SerializationError:   "serialization error",
	DeserializationError: "deserialization error",
	VersionMismatch:      "version mismatch",
	RunManagerError:      "run manager error",
	NotImplemented:       "not implemented",
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("code(%d)", int(c))
}

// Error is a classified error. Op names the operation that failed.
type Error struct {
	Code Code
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg = msg + ": " + e.Err.Error()
		}
	}
	if e.Op == "" {
		return fmt.Sprintf("%s: %s", e.Code, msg)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Code, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error carrying the same code, so the sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code && (t.Op == "" || t.Op == e.Op)
}

// Sentinels usable with errors.Is.
var (
	ErrAlreadyDefined  = &Error{Code: AlreadyDefined}
	ErrOutOfRange      = &Error{Code: OutOfRange}
	ErrUndefinedValue  = &Error{Code: UndefinedValue}
	ErrValidation      = &Error{Code: ValidationError}
	ErrIO              = &Error{Code: IoError}
	ErrSolver          = &Error{Code: SolverError}
	ErrConfig          = &Error{Code: ConfigError}
	ErrSerialization   = &Error{Code: SerializationError}
	ErrDeserialization = &Error{Code: DeserializationError}
	ErrVersionMismatch = &Error{Code: VersionMismatch}
	ErrRunManager      = &Error{Code: RunManagerError}
	ErrNotImplemented  = &Error{Code: NotImplemented}
)

// New creates a classified error with a formatted message.
func New(code Code, op string, format string, args ...any) *Error {
	return &Error{Code: code, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies err. A nil err yields nil.
func Wrap(code Code, op string, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Op: op, Msg: fmt.Sprintf(format, args...), Err: err}
}

// Is reports whether err (or anything it wraps) carries code.
func Is(err error, code Code) bool {
	var e *Error
	for err != nil {
		if errors.As(err, &e) {
			if e.Code == code {
				return true
			}
			err = e.Err
			continue
		}
		return false
	}
	return false
}

// CodeOf returns the code of the outermost classified error in err's chain.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return UnknownError
}
