// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package coresight

// DefaultRomTableBase is the Cortex-M processor ROM table.
const DefaultRomTableBase uint32 = 0xE00FF000

const (
	romTableMaxEntries = 960
	romTableMaxDepth   = 8

	romEntryPresent    = 1 << 0
	romEntryOffsetMask = 0xFFFFF000
)

// identification registers relative to a component base
const (
	regPIDR4 = 0xFD0
	regPIDR0 = 0xFE0
	regPIDR1 = 0xFE4
	regPIDR2 = 0xFE8
	regPIDR3 = 0xFEC
	regCIDR0 = 0xFF0
	regCIDR1 = 0xFF4
	regCIDR2 = 0xFF8
	regCIDR3 = 0xFFC
)

const (
	demcrAddress uint32 = 0xE000EDFC
	demcrTrcEna  uint32 = 1 << 24

	lockAccessKey uint32 = 0xC5ACCE55
)

// ITM
const (
	itmTER0 = 0xE00
	itmTPR  = 0xE40
	itmTCR  = 0xE80
	itmLAR  = 0xFB0

	itmTcrItmEna          uint32 = 1 << 0
	itmTcrSyncEna         uint32 = 1 << 2
	itmTcrDwtEna          uint32 = 1 << 3
	itmTcrTraceBusIdShift        = 16

	itmTraceBusId uint32 = 1
)

// DWT comparator 0
const (
	dwtComp0     = 0x020
	dwtMask0     = 0x024
	dwtFunction0 = 0x028

	// data value trace on read and write, word sized
	dwtFunctionDataValueRW uint32 = 0x2
	dwtFunctionSizeWord    uint32 = 2 << 10
)

// TPIU
const (
	tpiuCSPSR = 0x004
	tpiuACPR  = 0x010
	tpiuSPPR  = 0x0F0
	tpiuFFCR  = 0x304

	tpiuPortSize1       uint32 = 1
	tpiuProtocolNrz     uint32 = 2
	tpiuFfcrTrigIn      uint32 = 0x100
	tpiuAcprMaxPrescale        = 0x2000
)
