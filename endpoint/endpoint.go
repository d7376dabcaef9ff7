// File: endpoint/endpoint.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package endpoint

import (
	"encoding/binary"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"syscall"
	"time"
	"unsafe"

	"go.uber.org/zap"

	"github.com/momentics/kdbus-go/api"
	"github.com/momentics/kdbus-go/control"
	"github.com/momentics/kdbus-go/pool"
	"github.com/momentics/kdbus-go/protocol"
)

// UnsetPeerID is the peer id sentinel before registration.
const UnsetPeerID = ^uint64(0)

// Endpoint is an open connection to the kernel bus device. It exclusively
// owns the descriptor and, after registration, the read-only mmapped receive
// pool. The zero value is not usable; construct with Open.
type Endpoint struct {
	mu  sync.Mutex
	dev api.Device
	fd  int

	pool      []byte
	peerID    uint64
	bloomSize uint64

	registered bool
	closed     bool
	timedOut   bool
	timeout    time.Duration

	log     *zap.Logger
	metrics *control.Metrics
	bufs    *pool.BytePool
}

// Message is one outbound message handed to Send.
type Message struct {
	// Destination is the bus name to address. Empty means broadcast;
	// ":1.<digits>" addresses the peer directly by numeric id.
	Destination string

	// Serial is the caller-supplied correlation cookie.
	Serial uint64

	// Interface seeds the bloom filter fill for broadcast messages.
	Interface string

	// Payload is the serialized message blob. The kernel reads it in place
	// during the send call; Send keeps it alive until the call returns.
	Payload []byte
}

// Open opens the bus device node read-write, non-blocking, close-on-exec.
func Open(path string, opts ...Option) (*Endpoint, error) {
	e := &Endpoint{
		fd:     -1,
		peerID: UnsetPeerID,
		dev:    NewDevice(),
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.bufs == nil {
		e.bufs = pool.NewBytePool(protocol.ReceivePoolSize)
	}

	fd, err := e.dev.Open(path)
	if err != nil {
		return nil, api.NewSysError(api.ErrCodeOpen, path, err)
	}
	e.fd = fd
	e.log.Debug("endpoint opened", zap.String("path", path), zap.Int("fd", fd))
	return e, nil
}

// Register performs the hello handshake: requests the accept-fd capability
// and a 10 MiB receive pool, stores the kernel-assigned peer id and bloom
// filter size, then maps the pool read-only shared. Registering an already
// registered endpoint is a no-op.
//
// A mapping failure leaves the connection registered but without a pool; the
// endpoint cannot usefully continue and callers must treat MapFailed as
// fatal.
func (e *Endpoint) Register() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registerLocked()
}

func (e *Endpoint) registerLocked() error {
	if e.closed {
		return api.ErrEndpointClosed
	}
	if e.registered {
		return nil
	}

	hello := protocol.EncodeHello(protocol.ReceivePoolSize)
	if err := e.ioctlRetry(protocol.CmdHello, hello); err != nil {
		return api.NewSysError(api.ErrCodeRegister, "HELLO", err)
	}

	id, bloom, err := protocol.ParseHelloReply(hello)
	if err != nil {
		return api.NewSysError(api.ErrCodeRegister, "HELLO", err)
	}
	e.registered = true
	e.peerID = id
	e.bloomSize = bloom
	e.log.Debug("registered on bus",
		zap.Uint64("peer_id", id),
		zap.Uint64("bloom_size", bloom))

	p, err := e.dev.Mmap(e.fd, protocol.ReceivePoolSize)
	if err != nil {
		return api.NewSysError(api.ErrCodeMap, "mmap receive pool", err)
	}
	e.pool = p
	return nil
}

// Close closes the endpoint. Idempotent: closing an already closed endpoint
// returns nil and changes nothing. The receive pool mapping is released
// before the descriptor so it cannot outlive it.
func (e *Endpoint) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	if e.pool != nil {
		if err := e.dev.Munmap(e.pool); err != nil {
			e.log.Warn("receive pool unmap failed", zap.Error(err))
		}
		e.pool = nil
	}
	if e.fd >= 0 {
		if err := e.dev.Close(e.fd); err != nil {
			e.log.Warn("descriptor close failed", zap.Error(err))
		}
	}
	e.fd = -1
	e.closed = true
	e.registered = false
	e.log.Debug("endpoint closed")
	return nil
}

// IsClosed reports whether the endpoint has been closed.
func (e *Endpoint) IsClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// IsRegistered reports whether the hello handshake completed.
func (e *Endpoint) IsRegistered() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registered
}

// Fd returns the device descriptor, or -1 when the endpoint is closed.
func (e *Endpoint) Fd() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fd
}

// PeerID returns the kernel-assigned peer id, UnsetPeerID before
// registration.
func (e *Endpoint) PeerID() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.peerID
}

// BloomSize returns the bloom filter size required for broadcasts.
func (e *Endpoint) BloomSize() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.bloomSize
}

// UniqueName formats the endpoint's unique bus name ":1.<peer id>".
func (e *Endpoint) UniqueName() string {
	return fmt.Sprintf(":1.%d", e.PeerID())
}

// SetTimeout configures the idle timeout applied to event watches on this
// endpoint; zero disables it. The original interface counts whole seconds,
// any duration is accepted here.
func (e *Endpoint) SetTimeout(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.timeout = d
}

// Timeout returns the configured idle timeout.
func (e *Endpoint) Timeout() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.timeout
}

// MarkTimedOut records that a watch deadline elapsed. Called by the reactor;
// the dispatcher observes it to synthesize readiness.
func (e *Endpoint) MarkTimedOut() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.timedOut = true
}

// TimedOut reports whether a watch deadline has elapsed on this endpoint.
func (e *Endpoint) TimedOut() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.timedOut
}

// Send encodes and submits one message. Registration happens lazily on the
// first send. The kernel reads the payload from the caller's buffer during
// the call; the buffer is kept alive and unmoved until the call returns.
func (e *Endpoint) Send(m Message) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return api.ErrEndpointClosed
	}
	if !e.registered {
		if err := e.registerLocked(); err != nil {
			return err
		}
	}

	var addr uint64
	if len(m.Payload) > 0 {
		addr = uint64(uintptr(unsafe.Pointer(&m.Payload[0])))
	}
	buf, err := protocol.EncodeSend(protocol.SendRequest{
		Destination: m.Destination,
		SrcID:       e.peerID,
		Cookie:      m.Serial,
		PayloadAddr: addr,
		PayloadSize: uint64(len(m.Payload)),
		BloomSize:   e.bloomSize,
		BloomFill:   []byte(m.Interface),
	})
	if err != nil {
		return err
	}

	err = e.ioctlRetry(protocol.CmdMsgSend, buf)
	runtime.KeepAlive(m.Payload)
	if err != nil {
		e.metrics.IncSendError()
		return api.NewSysError(api.ErrCodeSend, "MSG_SEND", err)
	}
	e.metrics.IncSent()
	e.log.Debug("message sent",
		zap.String("destination", m.Destination),
		zap.Uint64("serial", m.Serial),
		zap.Int("payload_bytes", len(m.Payload)))
	return nil
}

// Receive obtains the next message offset from the kernel, decodes the
// message out of the receive pool into buf, and releases the pool slice back
// to the kernel. The release happens regardless of the decode outcome.
//
// Returns api.ErrWouldBlock when no message is ready. When only the release
// fails, the decoded result is still valid; the error wraps
// api.ErrReleaseFailed so callers can keep the bytes and decide.
func (e *Endpoint) Receive(buf []byte) (protocol.Decoded, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	var dec protocol.Decoded
	if e.closed {
		return dec, api.ErrEndpointClosed
	}
	if e.pool == nil {
		return dec, api.ErrNotRegistered
	}

	var off [protocol.OffsetSize]byte
	for {
		err := e.dev.Ioctl(e.fd, protocol.CmdMsgRecv, off[:])
		if err == nil {
			break
		}
		if errors.Is(err, syscall.EINTR) {
			continue
		}
		if errors.Is(err, syscall.EAGAIN) {
			e.metrics.IncWouldBlock()
			return dec, api.ErrWouldBlock
		}
		e.metrics.IncReceiveError()
		return dec, api.NewSysError(api.ErrCodeReceive, "MSG_RECV", err)
	}
	offset := binary.LittleEndian.Uint64(off[:])

	var decErr error
	msg, decErr := protocol.ViewMessage(e.pool, offset)
	if decErr == nil {
		dec, decErr = protocol.Decode(e.pool, msg, buf)
	}

	// Must-release invariant: the slice goes back to the kernel exactly
	// once, whatever the decode outcome.
	relErr := e.ioctlRetry(protocol.CmdMsgRelease, off[:])
	if relErr != nil {
		e.metrics.IncReleaseFailure()
		e.log.Warn("message release failed",
			zap.Uint64("offset", offset), zap.Error(relErr))
	}

	if decErr != nil {
		e.metrics.IncDecodeError()
		return dec, decErr
	}
	e.metrics.IncReceived(dec.N)
	if relErr != nil {
		return dec, fmt.Errorf("%w: %v", api.ErrReleaseFailed, relErr)
	}
	return dec, nil
}

// ReceiveMessage receives one message through a staging buffer from the
// endpoint's buffer pool, so the output always fits whatever the kernel
// delivered. The returned slice is freshly allocated and owned by the caller.
func (e *Endpoint) ReceiveMessage() ([]byte, protocol.Decoded, error) {
	staging := e.bufs.GetBuffer()
	defer e.bufs.PutBuffer(staging)

	dec, err := e.Receive(staging)
	if err != nil {
		return nil, dec, err
	}
	out := make([]byte, dec.N)
	copy(out, staging[:dec.N])
	return out, dec, nil
}

// ioctlRetry issues one device-control call, retrying transparently on
// EINTR. Must be called with e.mu held.
func (e *Endpoint) ioctlRetry(req uint, arg []byte) error {
	for {
		err := e.dev.Ioctl(e.fd, req, arg)
		if err == nil || !errors.Is(err, syscall.EINTR) {
			return err
		}
	}
}
