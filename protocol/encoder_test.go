// File: protocol/encoder_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package protocol_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/kdbus-go/protocol"
)

func TestEncodeHelloRoundTrip(t *testing.T) {
	buf := protocol.EncodeHello(protocol.ReceivePoolSize)
	require.Len(t, buf, protocol.HelloSize)

	require.NoError(t, protocol.WriteHelloReply(buf, 42, 64))
	id, bloom, err := protocol.ParseHelloReply(buf)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), id)
	assert.Equal(t, uint64(64), bloom)
}

func TestParseHelloReplyShortBuffer(t *testing.T) {
	_, _, err := protocol.ParseHelloReply(make([]byte, 8))
	require.Error(t, err)
}

func TestParseUniqueName(t *testing.T) {
	cases := []struct {
		name string
		id   uint64
		ok   bool
	}{
		{":1.7", 7, true},
		{":1.0", 0, true},
		{":1.18446744073709551615", ^uint64(0), true},
		{":1.", 0, false},
		{":1.7x", 0, false},
		{":2.7", 0, false},
		{"org.freedesktop.DBus", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		id, ok := protocol.ParseUniqueName(tc.name)
		assert.Equal(t, tc.ok, ok, tc.name)
		if tc.ok {
			assert.Equal(t, tc.id, id, tc.name)
		}
	}
}

// walkItems parses an encoded command buffer back item by item and checks
// that the aligned item sizes land exactly on the declared end.
func walkItems(t *testing.T, buf []byte) []*protocol.Item {
	t.Helper()
	msg, err := protocol.ViewMessage(buf, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(len(buf)), msg.Size())

	var items []*protocol.Item
	it := msg.Items()
	for {
		item, err := it.Next()
		require.NoError(t, err)
		if item == nil {
			return items
		}
		items = append(items, item)
	}
}

func TestEncodeSendNamedDestination(t *testing.T) {
	payload := []byte("hello world")
	buf, err := protocol.EncodeSend(protocol.SendRequest{
		Destination: "org.example.Service",
		SrcID:       5,
		Cookie:      77,
		PayloadAddr: 0xdeadbeef,
		PayloadSize: uint64(len(payload)),
	})
	require.NoError(t, err)

	msg, err := protocol.ViewMessage(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, protocol.DstIDName, msg.DstID())
	assert.Equal(t, uint64(5), msg.SrcID())
	assert.Equal(t, uint64(77), msg.Cookie())
	assert.Equal(t, protocol.PayloadDBus1, msg.PayloadType())

	items := walkItems(t, buf)
	require.Len(t, items, 2)
	assert.Equal(t, protocol.ItemPayloadVec, items[0].Type)
	assert.Equal(t, protocol.ItemDstName, items[1].Type)
	// NUL-terminated destination name.
	assert.Equal(t, append([]byte("org.example.Service"), 0), items[1].Data)
}

func TestEncodeSendUniqueDestination(t *testing.T) {
	// ":1.7" addresses peer 7 directly: no addressing item at all.
	buf, err := protocol.EncodeSend(protocol.SendRequest{
		Destination: ":1.7",
		SrcID:       5,
		Cookie:      1,
		PayloadAddr: 0x1000,
		PayloadSize: 16,
	})
	require.NoError(t, err)

	msg, err := protocol.ViewMessage(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), msg.DstID())

	items := walkItems(t, buf)
	require.Len(t, items, 1)
	assert.Equal(t, protocol.ItemPayloadVec, items[0].Type)
	assert.Equal(t, protocol.MsgHeaderSize+protocol.ItemSize(protocol.VecSize), uint64(len(buf)))
}

func TestEncodeSendBroadcast(t *testing.T) {
	buf, err := protocol.EncodeSend(protocol.SendRequest{
		Destination: "",
		SrcID:       5,
		Cookie:      9,
		PayloadAddr: 0x1000,
		PayloadSize: 8,
		BloomSize:   64,
		BloomFill:   []byte("org.example.Interface"),
	})
	require.NoError(t, err)

	msg, err := protocol.ViewMessage(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, protocol.DstIDBroadcast, msg.DstID())

	items := walkItems(t, buf)
	require.Len(t, items, 2)
	assert.Equal(t, protocol.ItemBloom, items[1].Type)
	require.Len(t, items[1].Data, 64)
	assert.Equal(t, []byte("org.example.Interface"), items[1].Data[:21])
	// Rest of the bloom field stays zero-padded.
	for _, b := range items[1].Data[21:] {
		assert.Zero(t, b)
	}
}

func TestEncodeSendBroadcastFillTruncated(t *testing.T) {
	fill := []byte("org.example.a.very.long.interface.name.that.exceeds.the.filter")
	buf, err := protocol.EncodeSend(protocol.SendRequest{
		SrcID:       1,
		PayloadAddr: 0x1000,
		PayloadSize: 1,
		BloomSize:   8,
		BloomFill:   fill,
	})
	require.NoError(t, err)

	items := walkItems(t, buf)
	require.Len(t, items, 2)
	assert.Equal(t, fill[:8], items[1].Data)
}

func TestEncodeSendBroadcastRequiresBloomSize(t *testing.T) {
	_, err := protocol.EncodeSend(protocol.SendRequest{
		SrcID:       1,
		PayloadAddr: 0x1000,
		PayloadSize: 1,
	})
	require.Error(t, err)
}

func TestEncodeSendPayloadVector(t *testing.T) {
	buf, err := protocol.EncodeSend(protocol.SendRequest{
		Destination: ":1.3",
		PayloadAddr: 0xcafe0000,
		PayloadSize: 512,
	})
	require.NoError(t, err)

	items := walkItems(t, buf)
	require.Len(t, items, 1)
	require.Len(t, items[0].Data, protocol.VecSize)
	// The vec stores (address, length) of the caller's buffer, not a copy.
	assert.Equal(t, uint64(0xcafe0000), le64(items[0].Data[0:]))
	assert.Equal(t, uint64(512), le64(items[0].Data[8:]))
}

func TestEncodeSendAlignment(t *testing.T) {
	// Destination names of varying length exercise the aligned item
	// stepping; the walk must land exactly on the declared end.
	for _, name := range []string{"a", "ab", "abc.def", "org.example.Service1"} {
		buf, err := protocol.EncodeSend(protocol.SendRequest{
			Destination: name,
			PayloadAddr: 1,
			PayloadSize: 1,
		})
		require.NoError(t, err, name)
		assert.Zero(t, uint64(len(buf))%8, name)
		walkItems(t, buf)
	}
}

func le64(b []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}
