// File: endpoint/options.go
// Package endpoint functional options.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package endpoint

import (
	"time"

	"go.uber.org/zap"

	"github.com/momentics/kdbus-go/api"
	"github.com/momentics/kdbus-go/control"
	"github.com/momentics/kdbus-go/pool"
)

// Option customizes endpoint construction.
type Option func(*Endpoint)

// WithDevice substitutes the kernel device implementation. Tests inject a
// fake here.
func WithDevice(dev api.Device) Option {
	return func(e *Endpoint) {
		e.dev = dev
	}
}

// WithLogger attaches a zap logger; default is a nop logger.
func WithLogger(log *zap.Logger) Option {
	return func(e *Endpoint) {
		e.log = log
	}
}

// WithMetrics attaches prometheus counters; default is unwired (nil-safe).
func WithMetrics(m *control.Metrics) Option {
	return func(e *Endpoint) {
		e.metrics = m
	}
}

// WithTimeout sets the idle timeout applied to event watches; 0 disables.
func WithTimeout(d time.Duration) Option {
	return func(e *Endpoint) {
		e.timeout = d
	}
}

// WithBufferPool overrides the receive staging buffer pool used by
// ReceiveMessage.
func WithBufferPool(bp *pool.BytePool) Option {
	return func(e *Endpoint) {
		e.bufs = bp
	}
}

// FromConfig derives options from a loaded configuration.
func FromConfig(cfg *control.Config) []Option {
	return []Option{
		WithTimeout(cfg.Timeout()),
	}
}
