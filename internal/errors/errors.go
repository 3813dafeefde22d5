package errors

import (
	stdErrors "errors"
	"fmt"
	"sync"
)

// Code identifies a class of relay error.
type Code string

// Severity describes how serious an error is, for logging decisions.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Attributes provide default behaviour for an error code.
type Attributes struct {
	Message   string
	Severity  Severity
	Retryable bool
}

const (
	CodeUnknown         Code = "UNKNOWN"
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeRemoteFetch     Code = "REMOTE_FETCH_FAILED"
	CodeNoClients       Code = "NO_CLIENTS"
	CodeTimeout         Code = "TIMEOUT"
	CodeWalletFile      Code = "WALLET_FILE_INVALID"
)

var (
	registryMu sync.RWMutex
	registry   = map[Code]Attributes{
		CodeUnknown: {
			Message:  "unknown error",
			Severity: SeverityCritical,
		},
		CodeInvalidArgument: {
			Message:  "invalid argument",
			Severity: SeverityInfo,
		},
		CodeRemoteFetch: {
			Message:   "remote fetch failed",
			Severity:  SeverityWarning,
			Retryable: true,
		},
		CodeNoClients: {
			Message:  "no connected clients",
			Severity: SeverityInfo,
		},
		CodeTimeout: {
			Message:   "operation timed out",
			Severity:  SeverityWarning,
			Retryable: true,
		},
		CodeWalletFile: {
			Message:  "wallet file invalid",
			Severity: SeverityWarning,
		},
	}
)

// Register lets a package add an error code description during init.
func Register(code Code, attr Attributes) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[code] = attr
}

// AttributesOf returns the attributes for a code, falling back to UNKNOWN.
func AttributesOf(code Code) Attributes {
	registryMu.RLock()
	defer registryMu.RUnlock()
	if attr, ok := registry[code]; ok {
		return attr
	}
	return registry[CodeUnknown]
}

// Error is the relay's unified error type.
type Error struct {
	code    Code
	message string
	cause   error
}

// New creates an error for the given code.
func New(code Code, message string) *Error {
	if message == "" {
		message = AttributesOf(code).Message
	}
	return &Error{code: code, message: message}
}

// Wrap attaches a cause to a new error.
func Wrap(code Code, cause error, message string) *Error {
	e := New(code, message)
	e.cause = cause
	return e
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.code, e.message)
}

// Unwrap implements errors.Unwrap.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is matches errors by code so errors.Is works across wrap layers.
func (e *Error) Is(target error) bool {
	if e == nil || target == nil {
		return false
	}
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.code == t.code
}

// Code returns the error code.
func (e *Error) Code() Code {
	if e == nil {
		return CodeUnknown
	}
	return e.code
}

// Message returns the error message without the cause chain.
func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

// From extracts the unified error type from any error.
func From(err error) (*Error, bool) {
	if err == nil {
		return nil, false
	}
	var target *Error
	if stdErrors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// CodeOf returns the code carried by err, or UNKNOWN.
func CodeOf(err error) Code {
	if e, ok := From(err); ok {
		return e.Code()
	}
	return CodeUnknown
}

// Retryable reports whether err is worth retrying on a later cycle.
func Retryable(err error) bool {
	if e, ok := From(err); ok {
		return AttributesOf(e.Code()).Retryable
	}
	return false
}
