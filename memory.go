// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

// this code is mainly inspired and based on the openocd project source code
// for detailed information see

// https://sourceforge.net/p/openocd/code

package gostlink

import (
	"errors"

	"github.com/bbnote/gostlink-swo/coresight"
)

var _ coresight.MemoryAccess = (*StLink)(nil)

// ReadDebugRegister reads one 32-bit word through the debug port. The probe
// must be in debug mode.
func (h *StLink) ReadDebugRegister(addr uint32) (uint32, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ctx := h.initTransfer()

	ctx.cmdBuf.WriteByte(cmdDebug)
	ctx.cmdBuf.WriteByte(debugApiV2ReadDebugReg)
	ctx.cmdBuf.WriteUint32LE(addr)

	err := h.usbCmdAllowRetry(ctx, 8)

	if err != nil {
		return 0, debugAccessError(addr, false, err)
	}

	return convertToUint32(ctx.DataBytes()[4:], littleEndian), nil
}

// WriteDebugRegister writes one 32-bit word through the debug port. The
// probe must be in debug mode.
func (h *StLink) WriteDebugRegister(addr uint32, value uint32) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	ctx := h.initTransfer()

	ctx.cmdBuf.WriteByte(cmdDebug)
	ctx.cmdBuf.WriteByte(debugApiV2WriteDebugReg)
	ctx.cmdBuf.WriteUint32LE(addr)
	ctx.cmdBuf.WriteUint32LE(value)

	err := h.usbCmdAllowRetry(ctx, 2)

	if err != nil {
		return debugAccessError(addr, true, err)
	}

	return nil
}

func (h *StLink) ReadU32(addr uint32) (uint32, error) {
	return h.ReadDebugRegister(addr)
}

func (h *StLink) WriteU32(addr uint32, value uint32) error {
	return h.WriteDebugRegister(addr, value)
}

// status errors reported by the target become DebugAccessError, link
// failures are passed through unchanged
func debugAccessError(addr uint32, write bool, err error) error {
	var uerr *usbError

	if errors.As(err, &uerr) {
		return &DebugAccessError{Address: addr, Write: write, Err: err}
	}

	return err
}
