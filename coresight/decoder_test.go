// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package coresight

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sizeBits(n int) byte {
	switch n {
	case 1:
		return 0x1
	case 2:
		return 0x2
	default:
		return 0x3
	}
}

func softwarePacket(port uint8, payload ...byte) []byte {
	return append([]byte{port<<3 | sizeBits(len(payload))}, payload...)
}

func hardwarePacket(id uint8, payload ...byte) []byte {
	return append([]byte{id<<3 | 0x4 | sizeBits(len(payload))}, payload...)
}

func concat(chunks ...[]byte) []byte {
	var out []byte

	for _, c := range chunks {
		out = append(out, c...)
	}

	return out
}

func pullAll(d *Decoder) []Packet {
	var packets []Packet

	for {
		p, ok := d.Pull()
		if !ok {
			return packets
		}

		packets = append(packets, p)
	}
}

func TestDecoderRoundTripsSourcePackets(t *testing.T) {
	tests := []struct {
		name   string
		stream []byte
		kind   PacketKind
		source uint8
		value  uint32
	}{
		{"byte", softwarePacket(0, 0x41), PacketSoftware, 0, 0x41},
		{"half word", softwarePacket(7, 0x34, 0x12), PacketSoftware, 7, 0x1234},
		{"word", softwarePacket(31, 0x78, 0x56, 0x34, 0x12), PacketSoftware, 31, 0x12345678},
		{"zero payload", softwarePacket(2, 0x00, 0x00), PacketSoftware, 2, 0},
		{"dwt data value", hardwarePacket(17, 0xEF, 0xBE, 0xAD, 0xDE), PacketHardware, 17, 0xDEADBEEF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDecoder()
			d.Feed(tt.stream)

			packets := pullAll(d)
			require.Len(t, packets, 1)

			p := packets[0]
			assert.Equal(t, tt.kind, p.Kind)
			assert.Equal(t, tt.source, p.Source)
			assert.Equal(t, tt.stream[0], p.Header)
			assert.Equal(t, tt.stream[1:], p.Payload)
			assert.Equal(t, tt.value, p.Value())
			assert.Equal(t, 0, d.Faults())
		})
	}
}

func TestDecoderDataTracePackets(t *testing.T) {
	d := NewDecoder()
	d.Feed(concat(hardwarePacket(17, 1, 0, 0, 0), hardwarePacket(16, 2, 0, 0, 0), hardwarePacket(2, 0x10)))

	packets := pullAll(d)
	require.Len(t, packets, 3)

	cmp, write, ok := packets[0].DataTrace()
	assert.True(t, ok)
	assert.True(t, write)
	assert.Equal(t, uint8(0), cmp)
	assert.Equal(t, "DWT[0] write 0x00000001", packets[0].String())

	_, write, ok = packets[1].DataTrace()
	assert.True(t, ok)
	assert.False(t, write)

	_, _, ok = packets[2].DataTrace()
	assert.False(t, ok)
}

func TestDecoderSync(t *testing.T) {
	d := NewDecoder()
	d.Feed([]byte{0, 0, 0})
	d.Feed([]byte{0, 0, 0x80})

	packets := pullAll(d)
	require.Len(t, packets, 1)
	assert.Equal(t, PacketSync, packets[0].Kind)

	// four zeros are not enough
	d.Feed([]byte{0, 0, 0, 0, 0x80})
	assert.Empty(t, pullAll(d))
	assert.Equal(t, 1, d.Faults())
}

func TestDecoderProtocolPackets(t *testing.T) {
	tests := []struct {
		name      string
		stream    []byte
		kind      PacketKind
		timestamp uint64
		value     uint32
	}{
		{"overflow", []byte{0x70}, PacketOverflow, 0, 0},
		{"local timestamp format 2", []byte{0x30}, PacketLocalTimestamp, 3, 0},
		{"local timestamp format 1", []byte{0xC0, 0x85, 0x01}, PacketLocalTimestamp, 5 | 1<<7, 0},
		{"global timestamp 1", []byte{0x94, 0x81, 0x02}, PacketGlobalTimestamp1, 1 | 2<<7, 0},
		{"global timestamp 2", []byte{0xB4, 0x80, 0x80, 0x80, 0x80, 0x01}, PacketGlobalTimestamp2, 1 << 28, 0},
		{"short extension", []byte{0x78}, PacketExtension, 0, 7},
		{"long extension", []byte{0x88, 0x01}, PacketExtension, 0, 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDecoder()
			d.Feed(tt.stream)

			packets := pullAll(d)
			require.Len(t, packets, 1)
			assert.Equal(t, tt.kind, packets[0].Kind)
			assert.Equal(t, tt.timestamp, packets[0].Timestamp())
			assert.Equal(t, tt.value, packets[0].Value())
			assert.Equal(t, 0, d.Faults())
		})
	}
}

func TestDecoderKeepsIncompletePacket(t *testing.T) {
	d := NewDecoder()

	d.Feed([]byte{0x0B, 0x01, 0x02})
	_, ok := d.Pull()
	assert.False(t, ok)

	d.Feed([]byte{0x03})
	_, ok = d.Pull()
	assert.False(t, ok)

	d.Feed([]byte{0x04, 0x09})
	p, ok := d.Pull()
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3, 4}, p.Payload)
	assert.Equal(t, uint8(1), p.Source)

	// 0x09 is the header of the next packet
	_, ok = d.Pull()
	assert.False(t, ok)
}

func TestDecoderPacketsDoNotAliasInput(t *testing.T) {
	stream := softwarePacket(1, 0xAA, 0xBB)

	d := NewDecoder()
	d.Feed(stream)
	stream[1] = 0

	p, ok := d.Pull()
	require.True(t, ok)
	assert.Equal(t, []byte{0xAA, 0xBB}, p.Payload)
}

func mixedStream() []byte {
	return concat(
		[]byte{0, 0, 0, 0, 0, 0x80},
		softwarePacket(0, 'h'),
		softwarePacket(0, 'i'),
		[]byte{0x24},
		[]byte{0xC0, 0x83, 0x11},
		hardwarePacket(17, 0x01, 0x00, 0x00, 0x00),
		[]byte{0x70},
		softwarePacket(3, 0x00, 0x00, 0x00, 0x00),
		[]byte{0, 0},
		[]byte{0x94, 0xFF, 0xFF, 0xFF, 0xFF, 0x01},
		softwarePacket(5, 0x34, 0x12),
		[]byte{0xB4, 0x81, 0x82, 0x83, 0x84, 0x85, 0x06},
		[]byte{0x88, 0x81, 0x02},
		softwarePacket(4, 0x99),
	)
}

func TestDecoderChunkingIndependent(t *testing.T) {
	stream := mixedStream()

	whole := NewDecoder()
	whole.Feed(stream)
	expected := pullAll(whole)
	require.NotEmpty(t, expected)

	for _, chunk := range []int{1, 2, 3, 5, 7, 64} {
		d := NewDecoder()

		var got []Packet
		for i := 0; i < len(stream); i += chunk {
			end := i + chunk
			if end > len(stream) {
				end = len(stream)
			}

			d.Feed(stream[i:end])
			got = append(got, pullAll(d)...)
		}

		assert.Equal(t, expected, got, "chunk size %d", chunk)
		assert.Equal(t, whole.Faults(), d.Faults(), "chunk size %d", chunk)
	}
}

func TestDecoderResynchronizesAfterReservedHeader(t *testing.T) {
	first := softwarePacket(1, 0x41)
	second := hardwarePacket(17, 0x78, 0x56, 0x34, 0x12)

	reserved := []byte{
		0x04, 0x14, 0x24, 0x34, 0x44, 0x54, 0x64, 0x74,
		0x84, 0xA4, 0xC4, 0xD4, 0xE4, 0xF4,
		0x80, 0x90, 0xA0, 0xB0,
	}

	for _, b := range reserved {
		d := NewDecoder()
		d.Feed(concat(first, []byte{b}, second))

		packets := pullAll(d)
		require.Len(t, packets, 2, "corruption 0x%02x", b)
		assert.Equal(t, first[1:], packets[0].Payload)
		assert.Equal(t, second[1:], packets[1].Payload)
		assert.Equal(t, 1, d.Faults(), "corruption 0x%02x", b)
	}
}

func TestDecoderResynchronizesAfterOverlongContinuation(t *testing.T) {
	d := NewDecoder()
	d.Feed(concat(softwarePacket(1, 0x41), []byte{0xC0, 0x80, 0x80, 0x80, 0x80}, softwarePacket(2, 0x42)))

	packets := pullAll(d)
	require.Len(t, packets, 2)
	assert.Equal(t, uint8(1), packets[0].Source)
	assert.Equal(t, uint8(2), packets[1].Source)

	// the header and each lone 0x80 behind it
	assert.Equal(t, 5, d.Faults())
}

func TestDecoderPullIsFifo(t *testing.T) {
	d := NewDecoder()

	for i := uint8(0); i < 10; i++ {
		d.Feed(softwarePacket(i, i))
	}

	assert.Equal(t, 10, d.Pending())

	for i := uint8(0); i < 10; i++ {
		p, ok := d.Pull()
		require.True(t, ok)
		assert.Equal(t, i, p.Source)
	}

	assert.Equal(t, 0, d.Pending())
}
