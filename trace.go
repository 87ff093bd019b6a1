// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package gostlink

import (
	"fmt"
)

// EnableTrace starts SWO capture on the probe at swoHz (0 selects the probe
// maximum) and returns the TPIU prescaler the target must use to produce
// that baud rate from traceClkInHz.
func (h *StLink) EnableTrace(swoHz uint32, traceClkInHz uint32) (uint16, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.version.hasFlag(flagHasTrace) {
		return 0, ErrTraceNotSupported
	}

	if swoHz > traceMaxHz {
		return 0, fmt.Errorf("this ST-Link version does not support %d Hz SWO (max %d Hz)", swoHz, traceMaxHz)
	}

	if swoHz == 0 {
		swoHz = traceMaxHz
	}

	presc := traceClkInHz / swoHz

	if (traceClkInHz % swoHz) > 0 {
		presc++
	}

	if presc == 0 || presc > tpiuAcprMaxSwoScaler {
		return 0, fmt.Errorf("SWO frequency %d Hz is not suitable for trace clock %d Hz", swoHz, traceClkInHz)
	}

	if h.trace.enabled {
		if err := h.usbTraceDisable(); err != nil {
			return 0, err
		}
	}

	h.trace.sourceHz = swoHz

	if err := h.usbTraceEnable(); err != nil {
		return 0, err
	}

	return uint16(presc), nil
}

// DisableTrace stops SWO capture on the probe.
func (h *StLink) DisableTrace() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.version.hasFlag(flagHasTrace) {
		return ErrTraceNotSupported
	}

	return h.usbTraceDisable()
}

// TraceBufferedByteCount returns the number of trace bytes waiting in the
// probe buffer.
func (h *StLink) TraceBufferedByteCount() (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.version.hasFlag(flagHasTrace) {
		return 0, ErrTraceNotSupported
	}

	ctx := h.initTransfer()

	ctx.cmdBuf.WriteByte(cmdDebug)
	ctx.cmdBuf.WriteByte(debugApiV2GetTraceNB)

	err := h.usbTransferNoErrCheck(ctx, 2)

	if err != nil {
		return 0, err
	}

	return int(ctx.dataBuf.ReadUint16LE()), nil
}

// ReadTraceBytes reads count bytes from the trace endpoint. When fewer bytes
// arrive the ones actually read are returned together with a TransportError
// wrapping ErrShortRead.
func (h *StLink) ReadTraceBytes(count int) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.version.hasFlag(flagHasTrace) {
		return nil, ErrTraceNotSupported
	}

	if count <= 0 {
		return []byte{}, nil
	}

	if h.transport == nil {
		return nil, &TransportError{Op: "read trace", Err: ErrClosed}
	}

	buffer := make([]byte, count)
	bytesRead, err := h.transport.ReceiveTrace(buffer)

	if bytesRead < 0 {
		bytesRead = 0
	}

	if err != nil {
		return buffer[:bytesRead], &TransportError{Op: "read trace", Err: err}
	}

	h.log.Tracef("read [%d from %d] bytes from trace channel", bytesRead, count)

	if bytesRead < count {
		return buffer[:bytesRead], &TransportError{
			Op:  fmt.Sprintf("read trace (%d of %d bytes)", bytesRead, count),
			Err: ErrShortRead,
		}
	}

	return buffer, nil
}

func (h *StLink) usbTraceDisable() error {
	h.log.Debug("disabling trace functionality")

	ctx := h.initTransfer()

	ctx.cmdBuf.WriteByte(cmdDebug)
	ctx.cmdBuf.WriteByte(debugApiV2StopTraceRx)

	err := h.usbTransferErrCheck(ctx, 2)

	if err != nil {
		return fmt.Errorf("could not disable trace: %w", err)
	}

	h.trace.enabled = false
	return nil
}

func (h *StLink) usbTraceEnable() error {
	ctx := h.initTransfer()

	ctx.cmdBuf.WriteByte(cmdDebug)
	ctx.cmdBuf.WriteByte(debugApiV2StartTraceRx)
	ctx.cmdBuf.WriteUint16LE(traceSize)
	ctx.cmdBuf.WriteUint32LE(h.trace.sourceHz)

	err := h.usbTransferErrCheck(ctx, 2)

	if err != nil {
		return fmt.Errorf("could not enable trace: %w", err)
	}

	h.trace.enabled = true
	h.log.Debugf("enabled trace recording at %d Hz", h.trace.sourceHz)

	return nil
}
