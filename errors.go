package eventreg

import (
	"errors"
	"fmt"
)

// Code is a status code returned by the event and timer services.
// A Code is itself an error, so callers can test with errors.Is.
type Code int32

const (
	CodeOK           Code = 0
	CodeFail         Code = -1
	CodeNoMem        Code = 0x101
	CodeInvalidArg   Code = 0x102
	CodeInvalidState Code = 0x103
	CodeNotFound     Code = 0x105
	CodeTimeout      Code = 0x107
)

func (c Code) String() string {
	switch c {
	case CodeOK:
		return "ok"
	case CodeFail:
		return "failure"
	case CodeNoMem:
		return "out of memory"
	case CodeInvalidArg:
		return "invalid argument"
	case CodeInvalidState:
		return "invalid state"
	case CodeNotFound:
		return "not found"
	case CodeTimeout:
		return "timeout"
	default:
		return fmt.Sprintf("code 0x%x", int32(c))
	}
}

func (c Code) Error() string {
	return "eventreg: " + c.String()
}

// ErrClosed is returned when operating on a closed Loop, Bus or TimerService.
var ErrClosed = fmt.Errorf("%w: closed", CodeInvalidState)

// ArgumentError reports a rejected argument, e.g. a nil callback or a timeout
// below MinTimeout. It always matches CodeInvalidArg.
type ArgumentError struct {
	Op     string
	Arg    string
	Reason string
}

func (e *ArgumentError) Error() string {
	return "eventreg: " + e.Op + ": invalid argument " + e.Arg + ": " + e.Reason
}

func (e *ArgumentError) Unwrap() error {
	return CodeInvalidArg
}

// RegisterError is returned when the event or timer service rejects a
// registration. It carries the event key for diagnosis.
type RegisterError struct {
	Op   string
	Key  EventKey
	Code Code
}

func (e *RegisterError) Error() string {
	return fmt.Sprintf("eventreg: %s: event %s: %s", e.Op, e.Key, e.Code)
}

func (e *RegisterError) Unwrap() error {
	return e.Code
}

// TeardownError describes a failure while releasing a registration.
// It is never returned, only logged.
type TeardownError struct {
	Op  string
	Key EventKey
	Err error
}

func (e *TeardownError) Error() string {
	return fmt.Sprintf("eventreg: teardown %s: event %s: %v", e.Op, e.Key, e.Err)
}

func (e *TeardownError) Unwrap() error {
	return e.Err
}

// codeOf extracts the Code carried by err, defaulting to CodeFail.
func codeOf(err error) Code {
	var c Code
	if errors.As(err, &c) {
		return c
	}
	return CodeFail
}
