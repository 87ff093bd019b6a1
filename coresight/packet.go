// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package coresight

import (
	"fmt"
)

type PacketKind uint8

const (
	PacketSync PacketKind = iota
	PacketOverflow
	// PacketSoftware carries data written to an ITM stimulus port.
	PacketSoftware
	// PacketHardware is emitted by the DWT, Source is the discriminator id.
	PacketHardware
	PacketLocalTimestamp
	PacketGlobalTimestamp1
	PacketGlobalTimestamp2
	PacketExtension
)

func (k PacketKind) String() string {
	switch k {
	case PacketSync:
		return "sync"
	case PacketOverflow:
		return "overflow"
	case PacketSoftware:
		return "software"
	case PacketHardware:
		return "hardware"
	case PacketLocalTimestamp:
		return "local-timestamp"
	case PacketGlobalTimestamp1:
		return "global-timestamp-1"
	case PacketGlobalTimestamp2:
		return "global-timestamp-2"
	case PacketExtension:
		return "extension"
	default:
		return "invalid"
	}
}

// DWT discriminator ids of data trace packets
const (
	discriminatorDataValueBase = 16
	discriminatorDataValueEnd  = 24
)

// Packet is one decoded trace packet. Payload holds the bytes following the
// header and is never shared with the decoder.
type Packet struct {
	Kind    PacketKind
	Header  byte
	Source  uint8
	Payload []byte
}

// Value returns the payload of a source packet as a little endian number.
// For extension packets it returns the extension information.
func (p Packet) Value() uint32 {
	switch p.Kind {
	case PacketSoftware, PacketHardware:
		var v uint32

		for i, b := range p.Payload {
			v |= uint32(b) << (8 * uint(i))
		}

		return v

	case PacketExtension:
		return uint32(p.Header>>4)&0x7 | uint32(continuationValue(p.Payload))<<3

	default:
		return 0
	}
}

// Timestamp returns the timestamp value of local and global timestamp
// packets, zero for every other kind.
func (p Packet) Timestamp() uint64 {
	switch p.Kind {
	case PacketLocalTimestamp:
		if len(p.Payload) == 0 {
			return uint64(p.Header>>4) & 0x7
		}

		return continuationValue(p.Payload)

	case PacketGlobalTimestamp1, PacketGlobalTimestamp2:
		return continuationValue(p.Payload)

	default:
		return 0
	}
}

// DataTrace reports the comparator and direction of a DWT data value packet.
func (p Packet) DataTrace() (comparator uint8, write bool, ok bool) {
	if p.Kind != PacketHardware || p.Source < discriminatorDataValueBase || p.Source >= discriminatorDataValueEnd {
		return 0, false, false
	}

	return (p.Source >> 1) & 0x3, p.Source&0x1 != 0, true
}

func (p Packet) String() string {
	switch p.Kind {
	case PacketSoftware:
		return fmt.Sprintf("ITM[%d] 0x%0*x", p.Source, 2*len(p.Payload), p.Value())

	case PacketHardware:
		if cmp, write, ok := p.DataTrace(); ok {
			dir := "read"
			if write {
				dir = "write"
			}

			return fmt.Sprintf("DWT[%d] %s 0x%0*x", cmp, dir, 2*len(p.Payload), p.Value())
		}

		return fmt.Sprintf("DWT id %d 0x%0*x", p.Source, 2*len(p.Payload), p.Value())

	case PacketLocalTimestamp, PacketGlobalTimestamp1, PacketGlobalTimestamp2:
		return fmt.Sprintf("%s %d", p.Kind, p.Timestamp())

	case PacketExtension:
		return fmt.Sprintf("%s 0x%x", p.Kind, p.Value())

	default:
		return p.Kind.String()
	}
}

// continuationValue joins the 7 bit groups of a continuation encoded payload.
func continuationValue(payload []byte) uint64 {
	var v uint64

	for i, b := range payload {
		v |= uint64(b&0x7F) << (7 * uint(i))
	}

	return v
}
