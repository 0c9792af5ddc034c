// Package fserrors holds the typed error taxonomy shared by the storage and
// driver layers, and the one place where an error is translated to a POSIX
// errno for the kernel boundary.
package fserrors

import (
	"database/sql"
	"errors"
	"syscall"
)

// Kind identifies one of the fixed error categories the storage and driver
// layers can surface. Every Kind has exactly one errno mapping.
type Kind int

const (
	KindOther Kind = iota
	KindNotFound
	KindInvalidArgument
	KindNotEmpty
	KindOverflow
	KindInvalidCompression
	KindAlreadyExists
)

// Error is the concrete error type propagated out of the storage and driver
// layers. It never escapes to the kernel boundary as anything but an errno;
// internally it carries enough detail for logging.
type Error struct {
	Kind Kind
	Msg  string
	Wrapped error
}

func (e *Error) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	if e.Wrapped != nil {
		return e.Wrapped.Error()
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Wrapped }

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindInvalidArgument:
		return "invalid argument"
	case KindNotEmpty:
		return "not empty"
	case KindOverflow:
		return "overflow"
	case KindInvalidCompression:
		return "invalid compression"
	case KindAlreadyExists:
		return "already exists"
	default:
		return "other"
	}
}

// Constructors mirror a sentinel-variant error style (NotEmpty, NotFound,
// InvalidArgument, Overflow, Other(String)), with AlreadyExists added for
// rename-conflict handling.

func NotFound() error { return &Error{Kind: KindNotFound} }

func InvalidArgument(msg string) error { return &Error{Kind: KindInvalidArgument, Msg: msg} }

func NotEmpty() error { return &Error{Kind: KindNotEmpty} }

func Overflow() error { return &Error{Kind: KindOverflow} }

func InvalidCompression() error { return &Error{Kind: KindInvalidCompression} }

func AlreadyExists() error { return &Error{Kind: KindAlreadyExists} }

func Other(err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindOther, Wrapped: err}
}

// FromSQL converts a database/sql error raised by the query layer into the
// taxonomy above, the way the original's From<rusqlite::Error> maps
// QueryReturnedNoRows to NotFound and wraps everything else as Other.
func FromSQL(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return NotFound()
	}
	return Other(err)
}

// ToErrno translates an error produced by this package into the POSIX errno
// the kernel boundary must return. It is intentionally the only place in the
// codebase that performs this translation.
func ToErrno(err error) syscall.Errno {
	if err == nil {
		return 0
	}
	var fe *Error
	if !errors.As(err, &fe) {
		return syscall.ENOTSUP
	}
	switch fe.Kind {
	case KindNotFound:
		return syscall.ENOENT
	case KindInvalidArgument:
		return syscall.EINVAL
	case KindNotEmpty:
		return syscall.ENOTEMPTY
	case KindOverflow:
		return syscall.EOVERFLOW
	case KindAlreadyExists:
		return syscall.EEXIST
	case KindInvalidCompression:
		return syscall.ENOTSUP
	default:
		return syscall.ENOTSUP
	}
}

// ToError is ToErrno wrapped back into the error interface, returning a
// true nil on success rather than a zero-valued syscall.Errno. A bare
// syscall.Errno(0) boxed into an error interface is non-nil by Go's rules,
// which would make every successful kernel op look like a failure to
// callers that compare the returned error against nil.
func ToError(err error) error {
	errno := ToErrno(err)
	if errno == 0 {
		return nil
	}
	return errno
}

// Is reports whether err is an *Error of the given kind, for callers (like
// setattr's truncate special-case) that branch on NotFound without caring
// about the message.
func Is(err error, kind Kind) bool {
	var fe *Error
	if !errors.As(err, &fe) {
		return false
	}
	return fe.Kind == kind
}
