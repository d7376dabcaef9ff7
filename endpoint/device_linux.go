//go:build linux

// File: endpoint/device_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Real kernel device implementation over golang.org/x/sys/unix.

package endpoint

import (
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/momentics/kdbus-go/api"
)

type sysDevice struct{}

// NewDevice returns the platform Device for the kernel bus node.
func NewDevice() api.Device { return sysDevice{} }

func (sysDevice) Open(path string) (int, error) {
	return unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC|unix.O_NONBLOCK, 0)
}

func (sysDevice) Close(fd int) error {
	return unix.Close(fd)
}

func (sysDevice) Ioctl(fd int, req uint, arg []byte) error {
	if len(arg) == 0 {
		return unix.EINVAL
	}
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(req), uintptr(unsafe.Pointer(&arg[0])))
	runtime.KeepAlive(arg)
	if errno != 0 {
		return errno
	}
	return nil
}

func (sysDevice) Mmap(fd int, length int) ([]byte, error) {
	return unix.Mmap(fd, 0, length, unix.PROT_READ, unix.MAP_SHARED)
}

func (sysDevice) Munmap(b []byte) error {
	return unix.Munmap(b)
}
