// File: protocol/decoder.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Item-chain decoding of kernel messages inside the mapped receive pool.

package protocol

import "github.com/momentics/kdbus-go/api"

// Condition is a local condition synthesized from a kernel notice item. The
// transport only reports the condition and the correlated cookie; turning it
// into a protocol-level error message is the bus layer's job.
type Condition int

const (
	CondNone Condition = iota
	// CondNoReply corresponds to a reply-timeout notice: no reply arrived
	// for the request identified by the cookie.
	CondNoReply
	// CondPeerGone corresponds to a reply-dead notice: the peer that should
	// have replied is gone.
	CondPeerGone
)

// String renders the condition for logs.
func (c Condition) String() string {
	switch c {
	case CondNoReply:
		return "no-reply"
	case CondPeerGone:
		return "peer-gone"
	default:
		return "none"
	}
}

// Decoded is the outcome of decoding one kernel message.
type Decoded struct {
	// N is the number of payload bytes copied into the output buffer.
	N int
	// Cond and Cookie report a synthesized local condition, if any.
	Cond   Condition
	Cookie uint64
}

// Decode walks the message's item chain. Payload-offset vectors are copied
// out of the pool into out; reply notices are reported as local conditions;
// unrecognized item types are skipped. Decoding stops with
// api.ErrMalformedItem on the first framing violation and with
// api.ErrBufferTooSmall rather than ever writing past len(out).
func Decode(pool []byte, msg *Message, out []byte) (Decoded, error) {
	var d Decoded
	poolLen := uint64(len(pool))
	it := msg.Items()
	for {
		item, err := it.Next()
		if err != nil {
			return d, err
		}
		if item == nil {
			return d, nil
		}
		switch item.Type {
		case ItemPayloadOff:
			if uint64(len(item.Data)) < VecSize {
				return d, api.ErrMalformedItem
			}
			off := le.Uint64(item.Data[0:])
			n := le.Uint64(item.Data[8:])
			// Never trust the kernel-declared vector blindly; clamp
			// against the pool extent.
			if off > poolLen || n > poolLen-off {
				return d, api.ErrMalformedItem
			}
			if n > uint64(len(out)-d.N) {
				return d, api.ErrBufferTooSmall
			}
			copy(out[d.N:], pool[off:off+n])
			d.N += int(n)
		case ItemReplyTimeout:
			d.Cond = CondNoReply
			d.Cookie = msg.CookieReply()
		case ItemReplyDead:
			d.Cond = CondPeerGone
			d.Cookie = msg.CookieReply()
		}
	}
}
