package native

import (
	"strconv"
)

// Errno is a native status code. Zero means success; failures are negative,
// mirroring the errno-style codes of the C event loops this package models.
type Errno int

const (
	// EBADF is returned when operating against a closed loop.
	EBADF Errno = -9
	// EBUSY is returned when closing a loop that still owns handles.
	EBUSY Errno = -16
	// EINVAL is returned for invalid arguments or invalid handle state.
	EINVAL Errno = -22
	// ECANCELED is returned for operations cancelled by a close.
	ECANCELED Errno = -125
)

// Name returns the symbolic name of the code, e.g. "EINVAL".
func (e Errno) Name() string {
	switch e {
	case 0:
		return "OK"
	case EBADF:
		return "EBADF"
	case EBUSY:
		return "EBUSY"
	case EINVAL:
		return "EINVAL"
	case ECANCELED:
		return "ECANCELED"
	default:
		return "E" + strconv.Itoa(int(e))
	}
}

// Error implements the error interface, returning a human-readable message.
func (e Errno) Error() string {
	switch e {
	case 0:
		return "success"
	case EBADF:
		return "bad file descriptor"
	case EBUSY:
		return "resource busy or locked"
	case EINVAL:
		return "invalid argument"
	case ECANCELED:
		return "operation canceled"
	default:
		return "unknown error " + strconv.Itoa(int(e))
	}
}
