// File: api/errors.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Error taxonomy for the kdbus transport. Kernel-call failures carry the
// originating errno; framing and buffer violations are sentinel values so
// callers can branch with errors.Is. None of the transport error paths
// terminate the process.

package api

import (
	"errors"
	"fmt"
)

// Sentinel conditions surfaced by the transport.
var (
	// ErrWouldBlock reports EAGAIN on receive. Non-fatal: the caller should
	// wait for readiness and retry.
	ErrWouldBlock = errors.New("kdbus: operation would block")

	// ErrEndpointClosed is returned for any operation on a closed endpoint.
	ErrEndpointClosed = errors.New("kdbus: endpoint is closed")

	// ErrNotRegistered is returned when receive is attempted before the
	// hello handshake established the receive pool.
	ErrNotRegistered = errors.New("kdbus: endpoint is not registered")

	// ErrMalformedItem reports a kernel message item whose declared size is
	// not larger than the item header. Decoding of the current message stops;
	// the endpoint stays usable.
	ErrMalformedItem = errors.New("kdbus: malformed message item")

	// ErrBufferTooSmall reports that the caller-supplied output buffer cannot
	// hold the message payload. The decoder never overruns the buffer.
	ErrBufferTooSmall = errors.New("kdbus: output buffer too small")

	// ErrReleaseFailed reports a failed pool release after a completed
	// decode. The decoded bytes remain valid; release is pool housekeeping.
	ErrReleaseFailed = errors.New("kdbus: message release failed")

	// ErrNotSupported is returned by platform stubs.
	ErrNotSupported = errors.New("kdbus: not supported on this platform")
)

// ErrorCode identifies which kernel interaction failed.
type ErrorCode int

const (
	ErrCodeOpen ErrorCode = iota + 1
	ErrCodeRegister
	ErrCodeMap
	ErrCodeSend
	ErrCodeReceive
	ErrCodeRelease
)

// String returns the operation name for the code.
func (c ErrorCode) String() string {
	switch c {
	case ErrCodeOpen:
		return "open"
	case ErrCodeRegister:
		return "register"
	case ErrCodeMap:
		return "map"
	case ErrCodeSend:
		return "send"
	case ErrCodeReceive:
		return "receive"
	case ErrCodeRelease:
		return "release"
	default:
		return "unknown"
	}
}

// SysError couples a failed kernel call with its errno. Errno is wrapped, so
// errors.Is(err, unix.EACCES) and friends work on the returned error.
type SysError struct {
	Code  ErrorCode
	Op    string
	Errno error
}

// Error implements the error interface.
func (e *SysError) Error() string {
	return fmt.Sprintf("kdbus: %s: %s failed: %v", e.Code, e.Op, e.Errno)
}

// Unwrap exposes the underlying errno.
func (e *SysError) Unwrap() error { return e.Errno }

// NewSysError builds a SysError for a failed kernel call.
func NewSysError(code ErrorCode, op string, errno error) *SysError {
	return &SysError{Code: code, Op: op, Errno: errno}
}

// IsSysError reports whether err is a SysError with the given code.
func IsSysError(err error, code ErrorCode) bool {
	var se *SysError
	return errors.As(err, &se) && se.Code == code
}
