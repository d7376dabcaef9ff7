// File: reactor/watch.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package reactor

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/momentics/kdbus-go/api"
	"github.com/momentics/kdbus-go/endpoint"
)

// WatchState is the lifecycle state of a watch.
type WatchState int32

const (
	StateIdle WatchState = iota
	StateArmed
	StateReady
	StateDispatched
	StateRemoved
)

// String renders the state for logs.
func (s WatchState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateArmed:
		return "armed"
	case StateReady:
		return "ready"
	case StateDispatched:
		return "dispatched"
	case StateRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Watch binds an endpoint's descriptor to a dispatch callback under a
// condition mask, an optional cancellation signal and a deadline derived from
// the endpoint's idle timeout. The watch holds a reference to the endpoint
// for as long as it is armed; removal drops it.
//
// Removal may happen from any goroutine while the reactor loop is between
// prepare and dispatch, so the mutable fields live under a mutex; fd and cond
// are fixed at construction.
type Watch struct {
	fd   int
	cond api.IOCondition

	mu       sync.Mutex
	ep       *endpoint.Endpoint
	fn       api.DispatchFunc
	cancel   <-chan struct{}
	deadline time.Time
	revents  api.IOCondition

	state atomic.Int32
}

// NewWatch creates a watch for the endpoint. Hang-up and error conditions are
// always monitored in addition to the requested mask. cancel may be nil.
func NewWatch(ep *endpoint.Endpoint, cond api.IOCondition, cancel <-chan struct{}, fn api.DispatchFunc) *Watch {
	w := &Watch{
		ep:     ep,
		fd:     ep.Fd(),
		cond:   cond | api.CondHup | api.CondErr,
		cancel: cancel,
		fn:     fn,
	}
	if t := ep.Timeout(); t > 0 {
		w.deadline = time.Now().Add(t)
	}
	return w
}

// Endpoint returns the watched endpoint; nil after removal.
func (w *Watch) Endpoint() *endpoint.Endpoint {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ep
}

// State returns the current lifecycle state.
func (w *Watch) State() WatchState { return WatchState(w.state.Load()) }

func (w *Watch) setState(s WatchState) { w.state.Store(int32(s)) }

// prepare reports whether the watch is ready without blocking and, if not,
// how long the poll may block. timeout < 0 means block indefinitely. An
// elapsed deadline marks the endpoint timed out and readies the watch. A
// removed watch is never ready and never bounds the poll.
func (w *Watch) prepare(now time.Time) (timeout time.Duration, ready bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.ep == nil {
		return -1, false
	}
	if w.cancel != nil {
		select {
		case <-w.cancel:
			return 0, true
		default:
		}
	}
	timeout = -1
	if !w.deadline.IsZero() {
		remaining := w.deadline.Sub(now)
		if remaining <= 0 {
			w.ep.MarkTimedOut()
			return 0, true
		}
		timeout = remaining
	}
	if w.revents&w.cond != 0 {
		return timeout, true
	}
	return timeout, false
}

// check is the post-poll readiness test; same conditions as prepare.
func (w *Watch) check(now time.Time) bool {
	_, ready := w.prepare(now)
	return ready
}

// observe accumulates observed readiness conditions from the poller.
func (w *Watch) observe(cond api.IOCondition) {
	w.mu.Lock()
	w.revents |= cond
	w.mu.Unlock()
}

// dispatch runs the callback with the observed condition mask and recomputes
// the deadline from the endpoint's idle timeout. Returns false when the
// callback requests removal or the watch was removed concurrently. The lock
// is not held across the callback, so the callback itself may remove the
// watch.
func (w *Watch) dispatch(now time.Time) bool {
	w.mu.Lock()
	ep, fn := w.ep, w.fn
	if ep == nil || fn == nil {
		w.mu.Unlock()
		return false
	}
	w.setState(StateDispatched)
	mask := w.revents
	if ep.TimedOut() {
		// A timeout forces the caller to observe it even without real IO
		// readiness.
		mask |= w.cond & (api.CondIn | api.CondOut)
	}
	mask &= w.cond
	w.revents = 0
	w.mu.Unlock()

	keep := fn(mask)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.ep == nil {
		return false
	}
	if t := w.ep.Timeout(); t > 0 {
		w.deadline = now.Add(t)
	} else {
		w.deadline = time.Time{}
	}
	if keep {
		w.setState(StateArmed)
	}
	return keep
}

// remove releases the endpoint reference and any cancellation resources.
func (w *Watch) remove() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.setState(StateRemoved)
	w.ep = nil
	w.cancel = nil
	w.fn = nil
}
