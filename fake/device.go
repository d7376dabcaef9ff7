// Package fake
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Fake implementations for testing and development. The fake Device scripts
// kernel behavior: hello replies, queued receive offsets, errno injection and
// capture of sent command buffers.
package fake

import (
	"encoding/binary"
	"sync"
	"syscall"

	"github.com/momentics/kdbus-go/protocol"
)

// Device is a scripted implementation of api.Device.
type Device struct {
	mu sync.Mutex

	fd      int
	openErr error
	closed  []int

	helloID    uint64
	helloBloom uint64
	helloErrs  []error

	pool    []byte
	mmapErr error

	sent     [][]byte
	sendErrs []error

	recvQueue []recvEntry

	released    []uint64
	releaseErrs []error
}

type recvEntry struct {
	offset uint64
	err    error
}

// NewDevice creates a fake device with a registered-looking default script:
// peer id 1, bloom size 64, an empty receive queue (EAGAIN) and a lazily
// allocated pool of the standard size.
func NewDevice() *Device {
	return &Device{
		fd:         1000,
		helloID:    1,
		helloBloom: 64,
	}
}

// Open implements api.Device.
func (d *Device) Open(string) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.openErr != nil {
		return -1, d.openErr
	}
	return d.fd, nil
}

// Close implements api.Device.
func (d *Device) Close(fd int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = append(d.closed, fd)
	return nil
}

// Ioctl implements api.Device, dispatching on the command code.
func (d *Device) Ioctl(fd int, req uint, arg []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch req {
	case protocol.CmdHello:
		if err := pop(&d.helloErrs); err != nil {
			return err
		}
		return protocol.WriteHelloReply(arg, d.helloID, d.helloBloom)
	case protocol.CmdMsgSend:
		if err := pop(&d.sendErrs); err != nil {
			return err
		}
		cp := make([]byte, len(arg))
		copy(cp, arg)
		d.sent = append(d.sent, cp)
		return nil
	case protocol.CmdMsgRecv:
		if len(d.recvQueue) == 0 {
			return syscall.EAGAIN
		}
		entry := d.recvQueue[0]
		d.recvQueue = d.recvQueue[1:]
		if entry.err != nil {
			return entry.err
		}
		binary.LittleEndian.PutUint64(arg, entry.offset)
		return nil
	case protocol.CmdMsgRelease:
		if err := pop(&d.releaseErrs); err != nil {
			return err
		}
		d.released = append(d.released, binary.LittleEndian.Uint64(arg))
		return nil
	default:
		return syscall.EINVAL
	}
}

// Mmap implements api.Device, returning the scripted pool.
func (d *Device) Mmap(fd int, length int) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.mmapErr != nil {
		return nil, d.mmapErr
	}
	if d.pool == nil {
		d.pool = make([]byte, length)
	}
	return d.pool, nil
}

// Munmap implements api.Device.
func (d *Device) Munmap([]byte) error { return nil }

// SetFD sets the descriptor handed out by Open. Tests integrating with a
// real poller pass a real descriptor (e.g. a pipe end) here.
func (d *Device) SetFD(fd int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fd = fd
}

// SetOpenError makes Open fail.
func (d *Device) SetOpenError(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.openErr = err
}

// SetHelloReply scripts the kernel-assigned peer id and bloom size.
func (d *Device) SetHelloReply(id, bloomSize uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.helloID = id
	d.helloBloom = bloomSize
}

// QueueHelloError makes the next HELLO call fail with err.
func (d *Device) QueueHelloError(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.helloErrs = append(d.helloErrs, err)
}

// SetMmapError makes the pool mapping fail.
func (d *Device) SetMmapError(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mmapErr = err
}

// QueueSendError makes the next MSG_SEND call fail with err.
func (d *Device) QueueSendError(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sendErrs = append(d.sendErrs, err)
}

// QueueRecv makes the next MSG_RECV call report a message at offset. An
// empty queue reports EAGAIN.
func (d *Device) QueueRecv(offset uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.recvQueue = append(d.recvQueue, recvEntry{offset: offset})
}

// QueueRecvError makes the next MSG_RECV call fail with err.
func (d *Device) QueueRecvError(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.recvQueue = append(d.recvQueue, recvEntry{err: err})
}

// QueueReleaseError makes the next MSG_RELEASE call fail with err.
func (d *Device) QueueReleaseError(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.releaseErrs = append(d.releaseErrs, err)
}

// Pool returns the fake receive pool, allocating the standard size if the
// endpoint has not mapped it yet. Tests write synthetic messages into it.
func (d *Device) Pool() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pool == nil {
		d.pool = make([]byte, protocol.ReceivePoolSize)
	}
	return d.pool
}

// SentCommands returns the captured MSG_SEND buffers.
func (d *Device) SentCommands() [][]byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([][]byte, len(d.sent))
	copy(out, d.sent)
	return out
}

// Released returns the offsets handed back via MSG_RELEASE.
func (d *Device) Released() []uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]uint64, len(d.released))
	copy(out, d.released)
	return out
}

// ClosedFDs returns the descriptors passed to Close.
func (d *Device) ClosedFDs() []int {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]int, len(d.closed))
	copy(out, d.closed)
	return out
}

// pop removes and returns the first error of a script queue; nil when empty.
func pop(errs *[]error) error {
	if len(*errs) == 0 {
		return nil
	}
	err := (*errs)[0]
	*errs = (*errs)[1:]
	return err
}
