// File: api/conditions.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

import "strings"

// IOCondition is a readiness condition mask for a watched descriptor.
type IOCondition uint32

const (
	// CondIn indicates the descriptor is readable.
	CondIn IOCondition = 1 << iota
	// CondOut indicates the descriptor is writable.
	CondOut
	// CondHup indicates the peer hung up.
	CondHup
	// CondErr indicates an error condition on the descriptor.
	CondErr
)

// Has reports whether all bits of c2 are set in c.
func (c IOCondition) Has(c2 IOCondition) bool { return c&c2 == c2 }

// String renders the mask for logs.
func (c IOCondition) String() string {
	if c == 0 {
		return "none"
	}
	var parts []string
	if c&CondIn != 0 {
		parts = append(parts, "in")
	}
	if c&CondOut != 0 {
		parts = append(parts, "out")
	}
	if c&CondHup != 0 {
		parts = append(parts, "hup")
	}
	if c&CondErr != 0 {
		parts = append(parts, "err")
	}
	return strings.Join(parts, "|")
}

// DispatchFunc is invoked by the reactor when a watch becomes ready. The mask
// holds the observed conditions intersected with the requested ones. Returning
// false removes the watch.
type DispatchFunc func(cond IOCondition) bool
