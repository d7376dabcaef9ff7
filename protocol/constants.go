// File: protocol/constants.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// kdbus ABI constants: command codes, item types, flags and layout sizes.

package protocol

// Layout sizes. The command and message headers are sequences of 64-bit
// little-endian fields; items are a 16-byte header (size, type) followed by
// a type-specific payload.
const (
	// HelloSize is the fixed size of the hello command buffer:
	// size, conn_flags, attach_flags, bus_flags, id, bloom_size, pool_size.
	HelloSize = 7 * 8

	// MsgHeaderSize is the fixed message header:
	// size, flags, dst_id, src_id, payload_type, cookie, cookie_reply.
	MsgHeaderSize = 7 * 8

	// ItemHeaderSize is the self-describing item header: size, type.
	ItemHeaderSize = 2 * 8

	// VecSize is the payload vector body: (address|offset, size).
	VecSize = 2 * 8

	// OffsetSize is the in/out argument of MSG_RECV and MSG_RELEASE.
	OffsetSize = 8
)

// ReceivePoolSize is the fixed receive pool requested at registration.
const ReceivePoolSize = 10 * 1024 * 1024

// Hello connection flags.
const (
	HelloAcceptFD uint64 = 1 << 0
)

// Destination sentinels.
const (
	// DstIDBroadcast addresses every peer on the bus; requires a bloom item.
	DstIDBroadcast = ^uint64(0)

	// DstIDName is the numeric destination used when addressing by name.
	DstIDName uint64 = 0
)

// PayloadDBus1 tags the message payload as a serialized D-Bus message blob.
const PayloadDBus1 uint64 = 0x4442757356657231

// Item types. Unlisted kernel types are skipped by the decoder.
const (
	ItemPayloadVec   uint64 = 0x1 // outbound: (address, size) of caller memory
	ItemPayloadOff   uint64 = 0x2 // inbound: (offset, size) into the pool
	ItemPayloadMemfd uint64 = 0x3
	ItemFds          uint64 = 0x4
	ItemBloom        uint64 = 0x5
	ItemDstName      uint64 = 0x6
	ItemTimestamp    uint64 = 0x7
	ItemReplyTimeout uint64 = 0x8
	ItemReplyDead    uint64 = 0x9
)

// Align8 rounds n up to the next 8-byte boundary.
func Align8(n uint64) uint64 { return (n + 7) &^ 7 }

// ItemSize is the aligned on-wire footprint of an item with a body of n bytes.
func ItemSize(n uint64) uint64 { return Align8(n + ItemHeaderSize) }

// ioctl request encoding, as the kernel's _IOW/_IOWR macros produce it.
const (
	iocNrShift   = 0
	iocTypeShift = 8
	iocSizeShift = 16
	iocDirShift  = 30

	iocWrite uint = 1
	iocRead  uint = 2

	iocMagic uint = 0x95
)

func ioc(dir, nr, size uint) uint {
	return dir<<iocDirShift | size<<iocSizeShift | iocMagic<<iocTypeShift | nr<<iocNrShift
}

func iow(nr, size uint) uint  { return ioc(iocWrite, nr, size) }
func iowr(nr, size uint) uint { return ioc(iocWrite|iocRead, nr, size) }

// Command codes for the device-control syscall.
var (
	CmdHello      = iowr(0x00, HelloSize)
	CmdMsgSend    = iow(0x10, MsgHeaderSize)
	CmdMsgRecv    = iowr(0x11, OffsetSize)
	CmdMsgRelease = iow(0x12, OffsetSize)
)
