// File: protocol/message.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Read-only views over kernel-written message bytes and the bounds-checked
// item-chain iterator shared by the decoder and the codec tests.

package protocol

import (
	"encoding/binary"

	"github.com/momentics/kdbus-go/api"
)

var le = binary.LittleEndian

// Item is one self-describing record of a message or command buffer. Data is
// a borrowed sub-slice; it must not be retained past the message release.
type Item struct {
	Type uint64
	Size uint64 // declared size including the header, unaligned
	Data []byte // body bytes, len == Size-ItemHeaderSize
}

// ItemIter walks an item chain, stepping by each item's aligned size. Every
// step is validated against the chain extent before any byte is read.
type ItemIter struct {
	buf []byte
	off uint64
}

// NewItemIter iterates the items region of a message or command buffer.
func NewItemIter(items []byte) *ItemIter {
	return &ItemIter{buf: items}
}

// Next returns the next item, nil at the end of the chain, or
// api.ErrMalformedItem when a declared size is no larger than the item header
// or runs past the chain extent.
func (it *ItemIter) Next() (*Item, error) {
	end := uint64(len(it.buf))
	if it.off >= end {
		return nil, nil
	}
	if end-it.off < ItemHeaderSize {
		return nil, api.ErrMalformedItem
	}
	size := le.Uint64(it.buf[it.off:])
	typ := le.Uint64(it.buf[it.off+8:])
	if size <= ItemHeaderSize {
		return nil, api.ErrMalformedItem
	}
	if size > end-it.off {
		return nil, api.ErrMalformedItem
	}
	item := &Item{
		Type: typ,
		Size: size,
		Data: it.buf[it.off+ItemHeaderSize : it.off+size],
	}
	it.off += Align8(size)
	return item, nil
}

// Message is a typed, borrowed view over kernel-written bytes at an offset
// inside the receive pool. It owns nothing; the underlying pool region is
// only valid until the corresponding release call.
type Message struct {
	data []byte
}

// ViewMessage validates the kernel-reported offset and declared size against
// the pool extent and returns a view over the message bytes.
func ViewMessage(pool []byte, offset uint64) (*Message, error) {
	poolLen := uint64(len(pool))
	if offset > poolLen || poolLen-offset < MsgHeaderSize {
		return nil, api.ErrMalformedItem
	}
	size := le.Uint64(pool[offset:])
	if size < MsgHeaderSize || size > poolLen-offset {
		return nil, api.ErrMalformedItem
	}
	return &Message{data: pool[offset : offset+size]}, nil
}

// Size returns the declared total message size.
func (m *Message) Size() uint64 { return le.Uint64(m.data[0:]) }

// Flags returns the message flags field.
func (m *Message) Flags() uint64 { return le.Uint64(m.data[8:]) }

// DstID returns the numeric destination.
func (m *Message) DstID() uint64 { return le.Uint64(m.data[16:]) }

// SrcID returns the sending peer id.
func (m *Message) SrcID() uint64 { return le.Uint64(m.data[24:]) }

// PayloadType returns the payload kind tag.
func (m *Message) PayloadType() uint64 { return le.Uint64(m.data[32:]) }

// Cookie returns the message correlation cookie.
func (m *Message) Cookie() uint64 { return le.Uint64(m.data[40:]) }

// CookieReply returns the cookie of the request this message replies to.
// Meaningful for reply-timeout and reply-dead notices.
func (m *Message) CookieReply() uint64 { return le.Uint64(m.data[48:]) }

// Items iterates the message's item chain.
func (m *Message) Items() *ItemIter {
	return NewItemIter(m.data[MsgHeaderSize:])
}
