// File: fake/message.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Builder for synthetic kernel messages, written into a fake receive pool
// the way the kernel would write them.

package fake

import (
	"encoding/binary"
	"errors"

	"github.com/momentics/kdbus-go/protocol"
)

var le = binary.LittleEndian

// MessageBuilder assembles one kernel message: header fields plus an ordered
// item chain.
type MessageBuilder struct {
	srcID       uint64
	cookie      uint64
	cookieReply uint64
	items       []byte
}

// NewMessage starts a message with the given correlation cookie.
func NewMessage(cookie uint64) *MessageBuilder {
	return &MessageBuilder{cookie: cookie}
}

// SrcID sets the sending peer id.
func (b *MessageBuilder) SrcID(id uint64) *MessageBuilder {
	b.srcID = id
	return b
}

// CookieReply sets the replied-to cookie reported by notice items.
func (b *MessageBuilder) CookieReply(cookie uint64) *MessageBuilder {
	b.cookieReply = cookie
	return b
}

// RawItem appends an item with the given type and body. The declared item
// size is header + body, unaligned; the chain is padded to the next 8-byte
// boundary the way the kernel lays items out.
func (b *MessageBuilder) RawItem(typ uint64, body []byte) *MessageBuilder {
	size := uint64(protocol.ItemHeaderSize + len(body))
	item := make([]byte, protocol.Align8(size))
	le.PutUint64(item[0:], size)
	le.PutUint64(item[8:], typ)
	copy(item[protocol.ItemHeaderSize:], body)
	b.items = append(b.items, item...)
	return b
}

// RawItemDeclared appends an item with an arbitrary declared size,
// independent of the actual body length. For malformed-framing tests.
func (b *MessageBuilder) RawItemDeclared(typ, declaredSize uint64, body []byte) *MessageBuilder {
	item := make([]byte, protocol.Align8(uint64(protocol.ItemHeaderSize+len(body))))
	le.PutUint64(item[0:], declaredSize)
	le.PutUint64(item[8:], typ)
	copy(item[protocol.ItemHeaderSize:], body)
	b.items = append(b.items, item...)
	return b
}

// PayloadOff appends a payload-offset-vector item pointing at pool bytes.
func (b *MessageBuilder) PayloadOff(offset, size uint64) *MessageBuilder {
	body := make([]byte, protocol.VecSize)
	le.PutUint64(body[0:], offset)
	le.PutUint64(body[8:], size)
	return b.RawItem(protocol.ItemPayloadOff, body)
}

// ReplyTimeout appends a reply-timeout notice.
func (b *MessageBuilder) ReplyTimeout() *MessageBuilder {
	return b.RawItem(protocol.ItemReplyTimeout, make([]byte, 8))
}

// ReplyDead appends a reply-peer-dead notice.
func (b *MessageBuilder) ReplyDead() *MessageBuilder {
	return b.RawItem(protocol.ItemReplyDead, make([]byte, 8))
}

// Bytes renders the full message.
func (b *MessageBuilder) Bytes() []byte {
	size := uint64(protocol.MsgHeaderSize + len(b.items))
	buf := make([]byte, size)
	le.PutUint64(buf[0:], size)
	le.PutUint64(buf[24:], b.srcID)
	le.PutUint64(buf[32:], protocol.PayloadDBus1)
	le.PutUint64(buf[40:], b.cookie)
	le.PutUint64(buf[48:], b.cookieReply)
	copy(buf[protocol.MsgHeaderSize:], b.items)
	return buf
}

// WriteTo copies the message into pool at offset, as the kernel would, and
// returns the message size.
func (b *MessageBuilder) WriteTo(pool []byte, offset uint64) (uint64, error) {
	msg := b.Bytes()
	if offset > uint64(len(pool)) || uint64(len(msg)) > uint64(len(pool))-offset {
		return 0, errors.New("fake: message does not fit in pool")
	}
	copy(pool[offset:], msg)
	return uint64(len(msg)), nil
}
