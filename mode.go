// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package gostlink

import (
	"fmt"
)

// ModeSwitcher is the part of a probe that drives its operating mode.
type ModeSwitcher interface {
	GetMode() (Mode, error)
	LeaveFirmwareUpdateMode() error
	EnterDebugMode() error
}

// EnterProperMode brings the probe into debug mode: query, leave firmware
// update mode if needed, re-query, enter debug mode if still required and
// query once more. Each transition is attempted exactly once. Running it on
// a probe already in debug mode only queries the mode.
func EnterProperMode(m ModeSwitcher) (Mode, error) {
	mode, err := m.GetMode()

	if err != nil {
		return ModeUnknown, err
	}

	if mode == ModeFirmwareUpdate {
		if err = m.LeaveFirmwareUpdateMode(); err != nil {
			return mode, err
		}

		if mode, err = m.GetMode(); err != nil {
			return ModeUnknown, err
		}
	}

	switch mode {
	case ModeFirmwareUpdate, ModeMassStorage:
		if err = m.EnterDebugMode(); err != nil {
			return mode, err
		}

		if mode, err = m.GetMode(); err != nil {
			return ModeUnknown, err
		}
	}

	if mode != ModeDebug {
		return mode, fmt.Errorf("%w (mode is %s)", ErrModeNotReached, mode)
	}

	return mode, nil
}

// EnterProperMode runs the startup mode sequence on this probe.
func (h *StLink) EnterProperMode() error {
	h.log.Trace("entering debug mode")

	mode, err := EnterProperMode(h)

	if err != nil {
		h.log.Errorf("could not enter debug mode, probe left in %s mode", mode)
		return err
	}

	h.log.Debugf("device usb mode after mode enter: %s", mode)

	return nil
}

// GetMode queries the current operating mode of the probe.
func (h *StLink) GetMode() (Mode, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ctx := h.initTransfer()

	ctx.cmdBuf.WriteByte(cmdGetCurrentMode)

	err := h.usbTransferNoErrCheck(ctx, 2)

	if err != nil {
		return ModeUnknown, err
	}

	raw := ctx.DataBytes()[0]
	h.mode = deviceModeToMode(raw)

	h.log.Tracef("device usb mode: %s (0x%02x)", h.mode, raw)

	return h.mode, nil
}

// LeaveFirmwareUpdateMode exits the DFU firmware. It is only valid when the
// last queried mode was ModeFirmwareUpdate; the resulting mode must be
// queried again.
func (h *StLink) LeaveFirmwareUpdateMode() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.mode != ModeFirmwareUpdate {
		return fmt.Errorf("%w: leave firmware update in %s mode", ErrInvalidModeTransition, h.mode)
	}

	ctx := h.initTransfer()

	ctx.cmdBuf.WriteByte(cmdDfu)
	ctx.cmdBuf.WriteByte(dfuExit)

	err := h.usbTransferNoErrCheck(ctx, 0)

	if err != nil {
		return err
	}

	h.mode = ModeUnknown

	return nil
}

// EnterDebugMode switches the probe from firmware update or mass storage
// mode into debug mode on the configured interface.
func (h *StLink) EnterDebugMode() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.mode != ModeFirmwareUpdate && h.mode != ModeMassStorage {
		return fmt.Errorf("%w: enter debug in %s mode", ErrInvalidModeTransition, h.mode)
	}

	/* we check the target voltage here as an aid to debugging connection problems.
	 * the stlink requires the target Vdd to be connected for reliable debugging.
	 * this cmd is supported in all modes except DFU
	 */
	if h.mode != ModeFirmwareUpdate && h.version.hasFlag(flagHasTargetVolt) {
		voltage, err := h.targetVoltage()

		if err != nil {
			// attempt to continue as it is not a catastrophic failure
			h.log.Warn("could not read target voltage: ", err)
		} else if voltage < minimumTargetVoltage {
			h.log.Warn("target voltage may be too low for reliable debugging")
		}
	}

	if h.initialSpeed > 0 {
		if _, err := h.setSpeed(h.initialSpeed, false); err != nil {
			h.log.Warnf("could not set interface speed to %d kHz: %v", h.initialSpeed, err)
		}
	}

	h.log.Tracef("entering %s debug mode", h.debugInterface)

	if err := h.usbModeEnter(); err != nil {
		return err
	}

	h.mode = ModeDebug

	return h.usbOpenAccessPort(0)
}

func (h *StLink) usbModeEnter() error {
	ctx := h.initTransfer()

	ctx.cmdBuf.WriteByte(cmdDebug)
	ctx.cmdBuf.WriteByte(debugApiV2Enter)

	if h.debugInterface == DebugInterfaceJtag {
		ctx.cmdBuf.WriteByte(debugEnterJTagNoReset)
	} else {
		ctx.cmdBuf.WriteByte(debugEnterSwdNoReset)
	}

	return h.usbCmdAllowRetry(ctx, 2)
}

func deviceModeToMode(raw byte) Mode {
	switch raw {
	case deviceModeDFU:
		return ModeFirmwareUpdate
	case deviceModeMass:
		return ModeMassStorage
	case deviceModeDebug:
		return ModeDebug
	case deviceModeSwim, deviceModeBootloader:
		// not driven by this package
		return ModeUnknown
	default:
		return ModeUnknown
	}
}
