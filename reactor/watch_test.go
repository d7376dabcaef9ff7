// File: reactor/watch_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package reactor

import (
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/kdbus-go/api"
	"github.com/momentics/kdbus-go/endpoint"
	"github.com/momentics/kdbus-go/fake"
)

func testEndpoint(t *testing.T, opts ...endpoint.Option) *endpoint.Endpoint {
	t.Helper()
	opts = append([]endpoint.Option{endpoint.WithDevice(fake.NewDevice())}, opts...)
	ep, err := endpoint.Open("/dev/kdbus/0-system/bus", opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ep.Close() })
	return ep
}

func TestNewWatchMonitorsErrorConditions(t *testing.T) {
	ep := testEndpoint(t)
	w := NewWatch(ep, api.CondIn, nil, func(api.IOCondition) bool { return true })

	assert.Equal(t, api.CondIn|api.CondHup|api.CondErr, w.cond)
	assert.Equal(t, ep.Fd(), w.fd)
	assert.True(t, w.deadline.IsZero())
	assert.Equal(t, StateIdle, w.State())
}

func TestWatchPrepareBlocksWithoutReadiness(t *testing.T) {
	ep := testEndpoint(t)
	w := NewWatch(ep, api.CondIn, nil, func(api.IOCondition) bool { return true })

	timeout, ready := w.prepare(time.Now())
	assert.False(t, ready)
	assert.Negative(t, timeout)
}

func TestWatchPrepareObservedCondition(t *testing.T) {
	ep := testEndpoint(t)
	var got api.IOCondition
	w := NewWatch(ep, api.CondIn, nil, func(c api.IOCondition) bool {
		got = c
		return true
	})

	w.observe(api.CondIn)
	_, ready := w.prepare(time.Now())
	require.True(t, ready)

	require.True(t, w.dispatch(time.Now()))
	assert.Equal(t, api.CondIn, got)
	assert.Equal(t, StateArmed, w.State())
	// Observed conditions are consumed by dispatch.
	_, ready = w.prepare(time.Now())
	assert.False(t, ready)
}

func TestWatchObservedConditionOutsideMask(t *testing.T) {
	ep := testEndpoint(t)
	w := NewWatch(ep, api.CondIn, nil, func(api.IOCondition) bool { return true })

	// Writable readiness is not in the mask and must not ready the watch,
	// but hang-up always is.
	w.observe(api.CondOut)
	_, ready := w.prepare(time.Now())
	assert.False(t, ready)

	w.observe(api.CondHup)
	_, ready = w.prepare(time.Now())
	assert.True(t, ready)
}

func TestWatchCancellation(t *testing.T) {
	ep := testEndpoint(t)
	cancel := make(chan struct{})
	w := NewWatch(ep, api.CondIn, cancel, func(api.IOCondition) bool { return true })

	_, ready := w.prepare(time.Now())
	assert.False(t, ready)

	close(cancel)
	timeout, ready := w.prepare(time.Now())
	assert.True(t, ready)
	assert.Zero(t, timeout)
}

func TestWatchDeadline(t *testing.T) {
	ep := testEndpoint(t, endpoint.WithTimeout(50*time.Millisecond))
	dispatched := api.IOCondition(0xffff)
	w := NewWatch(ep, api.CondIn, nil, func(c api.IOCondition) bool {
		dispatched = c
		return true
	})
	require.False(t, w.deadline.IsZero())

	// Before the deadline: not ready, poll bounded by the remaining time.
	timeout, ready := w.prepare(time.Now())
	require.False(t, ready)
	assert.Positive(t, timeout)
	assert.LessOrEqual(t, timeout, 50*time.Millisecond)

	// Past the deadline: the endpoint is marked timed out and the watch
	// fires with synthetic input readiness.
	timeout, ready = w.prepare(time.Now().Add(100 * time.Millisecond))
	require.True(t, ready)
	assert.Zero(t, timeout)
	assert.True(t, ep.TimedOut())

	now := time.Now()
	require.True(t, w.dispatch(now))
	assert.Equal(t, api.CondIn, dispatched)
	// The deadline rearms from the idle timeout.
	assert.Equal(t, now.Add(50*time.Millisecond), w.deadline)
}

func TestWatchRemovedIsInert(t *testing.T) {
	// Removal can land between a loop's readiness snapshot and the calls
	// below; none of them may touch the dropped endpoint.
	ep := testEndpoint(t, endpoint.WithTimeout(time.Millisecond))
	w := NewWatch(ep, api.CondIn, nil, func(api.IOCondition) bool { return true })
	w.observe(api.CondIn)
	w.remove()

	timeout, ready := w.prepare(time.Now().Add(time.Hour))
	assert.False(t, ready)
	assert.Negative(t, timeout)
	assert.False(t, w.check(time.Now().Add(time.Hour)))
	assert.False(t, w.dispatch(time.Now()))
	assert.False(t, ep.TimedOut())
}

func TestWatchRemovedDuringCallback(t *testing.T) {
	ep := testEndpoint(t, endpoint.WithTimeout(time.Second))
	var w *Watch
	w = NewWatch(ep, api.CondIn, nil, func(api.IOCondition) bool {
		w.remove()
		return true
	})

	w.observe(api.CondIn)
	// The callback's removal wins over its keep result.
	assert.False(t, w.dispatch(time.Now()))
	assert.Equal(t, StateRemoved, w.State())
	assert.Nil(t, w.Endpoint())
}

func TestWatchDispatchRemoval(t *testing.T) {
	ep := testEndpoint(t)
	w := NewWatch(ep, api.CondIn, nil, func(api.IOCondition) bool { return false })

	w.observe(api.CondIn)
	assert.False(t, w.dispatch(time.Now()))

	w.remove()
	assert.Equal(t, StateRemoved, w.State())
	assert.Nil(t, w.Endpoint())
}

func TestWatchDispatchDrainsEndpoint(t *testing.T) {
	// The usual dispatcher shape: drain the endpoint until would-block.
	dev := fake.NewDevice()
	ep, err := endpoint.Open("/dev/kdbus/0-system/bus", endpoint.WithDevice(dev))
	require.NoError(t, err)
	t.Cleanup(func() { _ = ep.Close() })
	require.NoError(t, ep.Register())

	p := dev.Pool()
	copy(p[8192:], "one")
	_, err = fake.NewMessage(1).PayloadOff(8192, 3).WriteTo(p, 0)
	require.NoError(t, err)
	dev.QueueRecv(0)
	dev.QueueRecvError(syscall.EINTR)
	copy(p[9216:], "two")
	_, err = fake.NewMessage(2).PayloadOff(9216, 3).WriteTo(p, 1024)
	require.NoError(t, err)
	dev.QueueRecv(1024)

	var bodies []string
	w := NewWatch(ep, api.CondIn, nil, func(c api.IOCondition) bool {
		for {
			out, _, err := ep.ReceiveMessage()
			if err != nil {
				assert.ErrorIs(t, err, api.ErrWouldBlock)
				return true
			}
			bodies = append(bodies, string(out))
		}
	})

	w.observe(api.CondIn)
	require.True(t, w.dispatch(time.Now()))
	assert.Equal(t, []string{"one", "two"}, bodies)
}

func TestWatchStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "armed", StateArmed.String())
	assert.Equal(t, "ready", StateReady.String())
	assert.Equal(t, "dispatched", StateDispatched.String())
	assert.Equal(t, "removed", StateRemoved.String())
	assert.Equal(t, "unknown", WatchState(99).String())
}
