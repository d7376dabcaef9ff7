//go:build !linux

// File: reactor/reactor_stub.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package reactor

import "github.com/momentics/kdbus-go/api"

func newPlatformReactor(options) (Reactor, error) {
	return nil, api.ErrNotSupported
}
