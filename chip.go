// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package gostlink

import (
	"errors"
	"fmt"
)

// DBGMCU_IDCODE locations, Cortex-M3/M4/M7 parts first
var chipIdAddresses = []uint32{0xE0042000, 0x40015800}

const defaultRamStart = 0x20000000

// StmChipInfo describes the main SRAM of an STM32 family.
type StmChipInfo struct {
	Name     string
	RamStart uint32
	RamSize  uint32
}

// ContainsRam reports whether addr lies in the main SRAM of the chip.
func (c StmChipInfo) ContainsRam(addr uint32) bool {
	return addr >= c.RamStart && addr-c.RamStart < c.RamSize
}

// keyed by the DEV_ID field of DBGMCU_IDCODE, sizes are the largest
// variant of each line
var stmChips = map[uint16]StmChipInfo{
	0x440: {"STM32F030x8/F05x", defaultRamStart, 0x2000},
	0x442: {"STM32F030xC/F09x", defaultRamStart, 0x8000},
	0x444: {"STM32F030x4/x6", defaultRamStart, 0x1000},
	0x445: {"STM32F04x/F070x6", defaultRamStart, 0x1800},
	0x448: {"STM32F070xB/F07x", defaultRamStart, 0x4000},
	0x412: {"STM32F10x low density", defaultRamStart, 0x2800},
	0x410: {"STM32F10x medium density", defaultRamStart, 0x5000},
	0x414: {"STM32F10x high density", defaultRamStart, 0x10000},
	0x418: {"STM32F10x connectivity line", defaultRamStart, 0x10000},
	0x430: {"STM32F10x XL density", defaultRamStart, 0x18000},
	0x422: {"STM32F302xB/C/F303xB/C", defaultRamStart, 0xA000},
	0x413: {"STM32F405/407/415/417", defaultRamStart, 0x20000},
	0x419: {"STM32F42x/F43x", defaultRamStart, 0x30000},
	0x423: {"STM32F401xB/C", defaultRamStart, 0x10000},
	0x433: {"STM32F401xD/E", defaultRamStart, 0x18000},
	0x431: {"STM32F411", defaultRamStart, 0x20000},
	0x449: {"STM32F74x/F75x", defaultRamStart, 0x50000},
	0x435: {"STM32L43x/L44x", defaultRamStart, 0xC000},
	0x415: {"STM32L47x/L48x", defaultRamStart, 0x18000},
	0x460: {"STM32G07x/G08x", defaultRamStart, 0x9000},
}

// LookupChip returns the chip family of a DBGMCU_IDCODE value.
func LookupChip(idCode uint32) (StmChipInfo, bool) {
	info, ok := stmChips[uint16(idCode&0xFFF)]
	return info, ok
}

// ReadChipId reads DBGMCU_IDCODE of an STM32 target. Requires debug mode.
func (h *StLink) ReadChipId() (uint32, error) {
	var lastErr error

	for _, addr := range chipIdAddresses {
		idCode, err := h.ReadDebugRegister(addr)

		if err != nil {
			var accessErr *DebugAccessError

			// the other location may still be readable
			if !errors.As(err, &accessErr) {
				return 0, err
			}

			lastErr = err
			continue
		}

		if idCode&0xFFF != 0 {
			h.log.Debugf("chip id 0x%08x read at 0x%08x", idCode, addr)
			return idCode, nil
		}
	}

	if lastErr == nil {
		lastErr = errors.New("no chip id found")
	}

	return 0, fmt.Errorf("could not read chip id: %w", lastErr)
}
