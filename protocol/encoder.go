// File: protocol/encoder.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Command buffer construction for the HELLO and MSG_SEND kernel calls.

package protocol

import (
	"errors"
	"strconv"
	"strings"
)

// EncodeHello builds the fixed-size hello command requesting the accept-fd
// capability and the given receive pool size. The kernel fills the id and
// bloom_size fields in place; read them back with ParseHelloReply.
func EncodeHello(poolSize uint64) []byte {
	buf := make([]byte, HelloSize)
	le.PutUint64(buf[0:], HelloSize)
	le.PutUint64(buf[8:], HelloAcceptFD)
	le.PutUint64(buf[48:], poolSize)
	return buf
}

// ParseHelloReply reads the kernel-assigned peer id and bloom filter size out
// of a hello buffer after the HELLO call returned.
func ParseHelloReply(buf []byte) (id, bloomSize uint64, err error) {
	if len(buf) < HelloSize {
		return 0, 0, errors.New("protocol: short hello buffer")
	}
	return le.Uint64(buf[32:]), le.Uint64(buf[40:]), nil
}

// WriteHelloReply fills the kernel-owned reply fields of a hello buffer.
// Used by fake devices in tests.
func WriteHelloReply(buf []byte, id, bloomSize uint64) error {
	if len(buf) < HelloSize {
		return errors.New("protocol: short hello buffer")
	}
	le.PutUint64(buf[32:], id)
	le.PutUint64(buf[40:], bloomSize)
	return nil
}

// ParseUniqueName extracts the numeric peer id from a unique name of the form
// ":1.<digits>".
func ParseUniqueName(name string) (uint64, bool) {
	rest, ok := strings.CutPrefix(name, ":1.")
	if !ok || rest == "" {
		return 0, false
	}
	id, err := strconv.ParseUint(rest, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// ResolveDestination maps a destination name onto the kernel addressing mode:
// empty name is broadcast, ":1.<digits>" is a direct numeric destination, and
// anything else is addressed by well-known name (numeric destination 0).
func ResolveDestination(name string) (dstID uint64, dstName string) {
	if name == "" {
		return DstIDBroadcast, ""
	}
	if id, ok := ParseUniqueName(name); ok {
		return id, ""
	}
	return DstIDName, name
}

// SendRequest carries everything needed to build one MSG_SEND buffer.
//
// PayloadAddr/PayloadSize describe the caller's existing payload buffer; the
// kernel reads from that address directly, so the buffer must remain valid
// and unmoved until the SEND call returns.
type SendRequest struct {
	Destination string // empty means broadcast
	SrcID       uint64
	Cookie      uint64

	PayloadAddr uint64
	PayloadSize uint64

	// BloomSize and BloomFill are consulted for broadcast only. The fill is
	// truncated or zero-padded to BloomSize.
	BloomSize uint64
	BloomFill []byte
}

// EncodeSend builds the send command buffer: fixed header, one payload vector
// item, and exactly one of a destination-name item or a bloom filter item.
// Direct numeric destinations carry no addressing item at all. Every item
// boundary is 8-byte aligned.
func EncodeSend(req SendRequest) ([]byte, error) {
	dstID, dstName := ResolveDestination(req.Destination)

	size := uint64(MsgHeaderSize)
	size += ItemSize(VecSize)
	switch {
	case dstName != "":
		size += ItemSize(uint64(len(dstName)) + 1)
	case dstID == DstIDBroadcast:
		if req.BloomSize == 0 {
			return nil, errors.New("protocol: broadcast requires a bloom filter size")
		}
		size += ItemSize(req.BloomSize)
	}

	buf := make([]byte, size)
	le.PutUint64(buf[0:], size)
	le.PutUint64(buf[16:], dstID)
	le.PutUint64(buf[24:], req.SrcID)
	le.PutUint64(buf[32:], PayloadDBus1)
	le.PutUint64(buf[40:], req.Cookie)

	// Payload vector item. Stores (address, length) of the caller's buffer,
	// not a copy.
	off := uint64(MsgHeaderSize)
	le.PutUint64(buf[off:], ItemHeaderSize+VecSize)
	le.PutUint64(buf[off+8:], ItemPayloadVec)
	le.PutUint64(buf[off+16:], req.PayloadAddr)
	le.PutUint64(buf[off+24:], req.PayloadSize)
	off += ItemSize(VecSize)

	switch {
	case dstName != "":
		le.PutUint64(buf[off:], ItemHeaderSize+uint64(len(dstName))+1)
		le.PutUint64(buf[off+8:], ItemDstName)
		copy(buf[off+16:], dstName) // trailing NUL is already zero
	case dstID == DstIDBroadcast:
		le.PutUint64(buf[off:], ItemHeaderSize+req.BloomSize)
		le.PutUint64(buf[off+8:], ItemBloom)
		n := uint64(len(req.BloomFill))
		if n > req.BloomSize {
			n = req.BloomSize
		}
		copy(buf[off+16:off+16+n], req.BloomFill)
	}

	return buf, nil
}
