//go:build linux

// File: reactor/epoll_reactor.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Linux reactor: epoll readiness with an eventfd wakeup channel. Ready
// watches are dispatched in FIFO order; the poll timeout is the minimum
// remaining deadline across armed watches.

package reactor

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/eapache/queue"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/momentics/kdbus-go/api"
)

const maxEpollEvents = 32

type epollReactor struct {
	mu      sync.Mutex
	epfd    int
	wakefd  int
	running bool
	closed  bool
	watches map[int]*Watch

	ready    *queue.Queue // FIFO of *Watch pending dispatch
	events   []unix.EpollEvent
	stopCh   chan struct{}
	stopOnce sync.Once
	log      *zap.Logger
}

func newPlatformReactor(o options) (Reactor, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("reactor: epoll create: %w", err)
	}
	wakefd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		_ = unix.Close(epfd)
		return nil, fmt.Errorf("reactor: eventfd: %w", err)
	}
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wakefd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakefd, &ev); err != nil {
		_ = unix.Close(wakefd)
		_ = unix.Close(epfd)
		return nil, fmt.Errorf("reactor: epoll ctl add wakefd: %w", err)
	}
	return &epollReactor{
		epfd:    epfd,
		wakefd:  wakefd,
		watches: make(map[int]*Watch),
		ready:   queue.New(),
		events:  make([]unix.EpollEvent, maxEpollEvents),
		stopCh:  make(chan struct{}),
		log:     o.log,
	}, nil
}

// Add arms a watch on its endpoint descriptor.
func (r *epollReactor) Add(w *Watch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return fmt.Errorf("reactor: stopped")
	}
	if _, ok := r.watches[w.fd]; ok {
		return fmt.Errorf("reactor: descriptor %d already watched", w.fd)
	}
	ev := unix.EpollEvent{Events: epollEvents(w.cond), Fd: int32(w.fd)}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, w.fd, &ev); err != nil {
		return fmt.Errorf("reactor: epoll ctl add: %w", err)
	}
	r.watches[w.fd] = w
	w.setState(StateArmed)
	r.log.Debug("watch armed", zap.Int("fd", w.fd), zap.Stringer("cond", w.cond))
	r.wake()
	return nil
}

// Remove disarms a watch.
func (r *epollReactor) Remove(w *Watch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeLocked(w)
}

func (r *epollReactor) removeLocked(w *Watch) error {
	if _, ok := r.watches[w.fd]; !ok {
		return nil
	}
	delete(r.watches, w.fd)
	err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, w.fd, nil)
	w.remove()
	r.log.Debug("watch removed", zap.Int("fd", w.fd))
	r.wake()
	if err != nil && !errors.Is(err, unix.ENOENT) && !errors.Is(err, unix.EBADF) {
		return fmt.Errorf("reactor: epoll ctl del: %w", err)
	}
	return nil
}

// Run executes the prepare/poll/check/dispatch loop until Stop. A reactor
// that was stopped before Run returns immediately.
func (r *epollReactor) Run() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.running = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.closeLocked()
		r.mu.Unlock()
	}()
	for {
		select {
		case <-r.stopCh:
			return nil
		default:
		}

		now := time.Now()
		armed := r.armedWatches()
		timeoutMs := -1
		anyReady := false
		for _, w := range armed {
			t, ready := w.prepare(now)
			if ready {
				r.enqueueReady(w)
				anyReady = true
				continue
			}
			if t >= 0 {
				// Round up so an almost-elapsed deadline does not poll
				// with a zero timeout and spin.
				ms := int((t + time.Millisecond - 1) / time.Millisecond)
				if timeoutMs < 0 || ms < timeoutMs {
					timeoutMs = ms
				}
			}
		}

		if !anyReady {
			n, err := unix.EpollWait(r.epfd, r.events, timeoutMs)
			if err != nil {
				if errors.Is(err, unix.EINTR) {
					continue
				}
				return fmt.Errorf("reactor: epoll wait: %w", err)
			}
			r.collect(n)
			now = time.Now()
			for _, w := range armed {
				if w.State() == StateArmed && w.check(now) {
					r.enqueueReady(w)
				}
			}
		}

		r.dispatchReady()
	}
}

// Stop terminates Run. Idempotent. When the loop never started, the epoll and
// wakeup descriptors are released here instead of Run's teardown.
func (r *epollReactor) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopCh)
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.running {
			r.wake()
		} else {
			r.closeLocked()
		}
	})
}

// closeLocked releases the descriptors exactly once. Must be called with r.mu
// held.
func (r *epollReactor) closeLocked() {
	if r.closed {
		return
	}
	r.closed = true
	_ = unix.Close(r.wakefd)
	_ = unix.Close(r.epfd)
}

func (r *epollReactor) armedWatches() []*Watch {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Watch, 0, len(r.watches))
	for _, w := range r.watches {
		if w.State() == StateArmed {
			out = append(out, w)
		}
	}
	return out
}

// collect maps observed epoll events onto the corresponding watches.
func (r *epollReactor) collect(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := 0; i < n; i++ {
		ev := r.events[i]
		if int(ev.Fd) == r.wakefd {
			r.drainWake()
			continue
		}
		if w, ok := r.watches[int(ev.Fd)]; ok {
			w.observe(condFromEpoll(ev.Events))
		}
	}
}

// enqueueReady moves an armed watch into the dispatch queue. The transition
// is a compare-and-swap so a concurrently removed (or already queued) watch is
// never resurrected.
func (r *epollReactor) enqueueReady(w *Watch) {
	if !w.state.CompareAndSwap(int32(StateArmed), int32(StateReady)) {
		return
	}
	r.ready.Add(w)
}

func (r *epollReactor) dispatchReady() {
	for r.ready.Length() > 0 {
		w := r.ready.Remove().(*Watch)
		if w.State() == StateRemoved {
			continue
		}
		if !w.dispatch(time.Now()) {
			r.mu.Lock()
			_ = r.removeLocked(w)
			r.mu.Unlock()
		}
	}
}

// wake nudges the poll loop. Must be called with r.mu held so the wakeup
// descriptor cannot be written after closeLocked released it.
func (r *epollReactor) wake() {
	if r.closed {
		return
	}
	var one [8]byte
	binary.LittleEndian.PutUint64(one[:], 1)
	_, _ = unix.Write(r.wakefd, one[:])
}

func (r *epollReactor) drainWake() {
	var buf [8]byte
	_, _ = unix.Read(r.wakefd, buf[:])
}

func epollEvents(c api.IOCondition) uint32 {
	var ev uint32
	if c&api.CondIn != 0 {
		ev |= unix.EPOLLIN
	}
	if c&api.CondOut != 0 {
		ev |= unix.EPOLLOUT
	}
	// EPOLLHUP and EPOLLERR are always reported.
	return ev
}

func condFromEpoll(ev uint32) api.IOCondition {
	var c api.IOCondition
	if ev&unix.EPOLLIN != 0 {
		c |= api.CondIn
	}
	if ev&unix.EPOLLOUT != 0 {
		c |= api.CondOut
	}
	if ev&unix.EPOLLHUP != 0 {
		c |= api.CondHup
	}
	if ev&unix.EPOLLERR != 0 {
		c |= api.CondErr
	}
	return c
}
