// File: api/device.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// Device abstracts the kernel bus device node. The endpoint performs all
// kernel interaction through this seam; package fake provides a scripted
// implementation for tests.
//
// Ioctl takes the command argument as a byte buffer. The real implementation
// passes the address of the first byte to the device-control syscall; the
// kernel reads and writes through that buffer in place.
type Device interface {
	// Open opens the device node read-write, non-blocking, close-on-exec.
	Open(path string) (fd int, err error)

	// Close closes a descriptor returned by Open.
	Close(fd int) error

	// Ioctl issues one device-control call. arg must be non-empty. The
	// caller handles EINTR retry; Ioctl itself performs a single call.
	Ioctl(fd int, req uint, arg []byte) error

	// Mmap maps length bytes of the descriptor read-only, shared, offset 0.
	Mmap(fd int, length int) ([]byte, error)

	// Munmap releases a mapping returned by Mmap.
	Munmap(b []byte) error
}
