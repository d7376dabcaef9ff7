// File: reactor/reactor.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Platform-independent reactor contract; the concrete implementation is
// selected per platform at build time.

package reactor

import "go.uber.org/zap"

// Reactor drives armed watches through readiness and dispatch.
type Reactor interface {
	// Add arms a watch. Safe to call from any goroutine; the running loop
	// is woken to pick it up.
	Add(w *Watch) error

	// Remove disarms a watch and releases its endpoint reference.
	Remove(w *Watch) error

	// Run executes the dispatch loop until Stop. It owns the calling
	// goroutine; all callbacks run on it.
	Run() error

	// Stop terminates Run. Idempotent.
	Stop()
}

// Option customizes reactor construction.
type Option func(*options)

type options struct {
	log *zap.Logger
}

// WithLogger attaches a zap logger; default is a nop logger.
func WithLogger(log *zap.Logger) Option {
	return func(o *options) {
		o.log = log
	}
}

func applyOptions(opts []Option) options {
	o := options{log: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// New creates the platform reactor.
func New(opts ...Option) (Reactor, error) {
	return newPlatformReactor(applyOptions(opts))
}
