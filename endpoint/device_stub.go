//go:build !linux

// File: endpoint/device_stub.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package endpoint

import "github.com/momentics/kdbus-go/api"

type stubDevice struct{}

// NewDevice returns a stub on platforms without the kernel bus device.
func NewDevice() api.Device { return stubDevice{} }

func (stubDevice) Open(string) (int, error)        { return -1, api.ErrNotSupported }
func (stubDevice) Close(int) error                 { return api.ErrNotSupported }
func (stubDevice) Ioctl(int, uint, []byte) error   { return api.ErrNotSupported }
func (stubDevice) Mmap(int, int) ([]byte, error)   { return nil, api.ErrNotSupported }
func (stubDevice) Munmap([]byte) error             { return api.ErrNotSupported }
