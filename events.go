package uvw

import (
	"github.com/sledgeh/uvw/internal/native"
)

// Errno is a native status code, as carried by [ErrorEvent].
type Errno = native.Errno

// Native status codes.
const (
	EBADF     = native.EBADF
	EBUSY     = native.EBUSY
	EINVAL    = native.EINVAL
	ECANCELED = native.ECANCELED
)

// ErrorEvent is published when a native operation fails.
type ErrorEvent struct {
	code Errno
}

// Code returns the native status code.
func (e ErrorEvent) Code() Errno { return e.code }

// Name returns the symbolic name of the code, e.g. "EINVAL".
func (e ErrorEvent) Name() string { return e.code.Name() }

// What returns a human-readable description of the failure.
func (e ErrorEvent) What() string { return e.code.Error() }

// Error implements the error interface, allowing an ErrorEvent to be
// returned or wrapped as a plain error.
func (e ErrorEvent) Error() string { return "uvw: " + e.code.Name() + ": " + e.code.Error() }

// Unwrap returns the underlying [Errno].
func (e ErrorEvent) Unwrap() error { return e.code }

// TimerEvent is published each time a [Timer] fires.
type TimerEvent struct{}

// CloseEvent is published once a handle has been fully closed.
type CloseEvent struct{}
