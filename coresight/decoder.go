// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package coresight

const (
	headerOverflow byte = 0x70
	headerSync     byte = 0x80
	headerGts1     byte = 0x94
	headerGts2     byte = 0xB4

	syncMinZeros = 5

	maxLtsPayload  = 4
	maxGts1Payload = 4
	maxGts2Payload = 6
	maxExtPayload  = 4

	continuationBit byte = 0x80
)

// Decoder parses an ARMv7-M ITM/DWT trace stream. Bytes may be fed in
// chunks of any size; a packet split across chunks is completed by a later
// Feed. Malformed headers are dropped one byte at a time until the stream
// parses again. A Decoder must not be used from more than one goroutine.
type Decoder struct {
	pending   []byte
	packets   []Packet
	zeroCount int
	faults    int
}

func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed appends data to the stream and decodes every packet it completes.
func (d *Decoder) Feed(data []byte) {
	d.pending = append(d.pending, data...)

	consumed := 0

	for consumed < len(d.pending) {
		n := d.decode(d.pending[consumed:])

		if n == 0 {
			break
		}

		consumed += n
	}

	// move the partial packet to the front, the buffer stays chunk sized
	rest := copy(d.pending, d.pending[consumed:])
	d.pending = d.pending[:rest]
}

// Pull removes and returns the oldest decoded packet.
func (d *Decoder) Pull() (Packet, bool) {
	if len(d.packets) == 0 {
		return Packet{}, false
	}

	p := d.packets[0]
	d.packets[0] = Packet{}
	d.packets = d.packets[1:]

	return p, true
}

// Pending returns the number of decoded packets not pulled yet.
func (d *Decoder) Pending() int {
	return len(d.packets)
}

// Faults counts the bytes dropped while resynchronizing.
func (d *Decoder) Faults() int {
	return d.faults
}

// decode consumes the packet at the start of buf and returns its length, or
// zero when the packet is not complete yet.
func (d *Decoder) decode(buf []byte) int {
	header := buf[0]

	if header == 0 {
		d.zeroCount++
		return 1
	}

	zeros := d.zeroCount
	d.zeroCount = 0

	switch {
	case header == headerSync:
		if zeros >= syncMinZeros {
			d.emit(PacketSync, header, 0, nil)
			return 1
		}

		return d.fault()

	case header == headerOverflow:
		d.emit(PacketOverflow, header, 0, nil)
		return 1

	case header&0x0F == 0 && header&0x80 == 0:
		// local timestamp format 2, the value sits in the header
		d.emit(PacketLocalTimestamp, header, 0, nil)
		return 1

	case header&0xCF == 0xC0:
		return d.continued(buf, PacketLocalTimestamp, 0, maxLtsPayload, true)

	case header&0x0F == 0:
		// 0b10xx0000 without a preceding sync run
		return d.fault()

	case header == headerGts1:
		return d.continued(buf, PacketGlobalTimestamp1, 0, maxGts1Payload, true)

	case header == headerGts2:
		return d.continued(buf, PacketGlobalTimestamp2, 0, maxGts2Payload, true)

	case header&0x0F == 0x04:
		return d.fault()

	case header&0x0B == 0x08:
		source := (header >> 2) & 0x1
		return d.continued(buf, PacketExtension, source, maxExtPayload, header&continuationBit != 0)

	default:
		return d.source(buf)
	}
}

func (d *Decoder) source(buf []byte) int {
	header := buf[0]

	size := int(header & 0x3)
	if size == 3 {
		size = 4
	}

	if len(buf) < 1+size {
		return 0
	}

	kind := PacketSoftware
	if header&0x4 != 0 {
		kind = PacketHardware
	}

	d.emit(kind, header, header>>3, buf[1:1+size])

	return 1 + size
}

// continued handles packets whose payload bytes carry a continuation bit.
// follows tells whether the header announces at least one payload byte.
func (d *Decoder) continued(buf []byte, kind PacketKind, source uint8, maxPayload int, follows bool) int {
	if !follows {
		d.emit(kind, buf[0], source, nil)
		return 1
	}

	for i := 1; i <= maxPayload; i++ {
		if i >= len(buf) {
			return 0
		}

		if buf[i]&continuationBit == 0 {
			d.emit(kind, buf[0], source, buf[1:i+1])
			return i + 1
		}
	}

	// continuation run longer than the packet allows
	return d.fault()
}

func (d *Decoder) fault() int {
	d.faults++
	return 1
}

func (d *Decoder) emit(kind PacketKind, header byte, source uint8, payload []byte) {
	p := Packet{
		Kind:   kind,
		Header: header,
		Source: source,
	}

	if payload != nil {
		p.Payload = append([]byte(nil), payload...)
	}

	d.packets = append(d.packets, p)
}
