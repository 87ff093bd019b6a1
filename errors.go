// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package gostlink

import (
	"errors"
	"fmt"
)

var (
	// ErrNoProbeFound is returned when no attached USB device matches the
	// requested vendor/product/serial selection.
	ErrNoProbeFound = errors.New("could not find any ST-Link connected to computer")

	ErrClosed                = errors.New("probe handle is closed")
	ErrShortRead             = errors.New("fewer bytes received than requested")
	ErrInvalidModeTransition = errors.New("mode transition not allowed from current mode")
	ErrModeNotReached        = errors.New("probe did not reach debug mode")
	ErrTraceNotSupported     = errors.New("trace is not supported by connected device")
)

// DeviceError reports a failure to enumerate or claim a probe.
type DeviceError struct {
	Op     string
	Device DeviceInfo
	Err    error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("device %s: %s: %v", e.Device, e.Op, e.Err)
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}

// TransportError reports an I/O fault or timeout of a single USB exchange.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("usb %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// DebugAccessError is returned when the target reports a fault for a
// debug register access. The probe connection stays usable.
type DebugAccessError struct {
	Address uint32
	Write   bool
	Err     error
}

func (e *DebugAccessError) Error() string {
	op := "read"
	if e.Write {
		op = "write"
	}

	return fmt.Sprintf("debug register %s at 0x%08x: %v", op, e.Address, e.Err)
}

func (e *DebugAccessError) Unwrap() error {
	return e.Err
}

type usbErrorCode int

const (
	usbErrorWait            usbErrorCode = -1
	usbErrorFail            usbErrorCode = -2
	usbErrorCommandNotFound usbErrorCode = -4
)

type usbError struct {
	errorString  string
	UsbErrorCode usbErrorCode
	Status       byte
}

func (e *usbError) Error() string {
	return e.errorString
}

func newUsbError(msg string, code usbErrorCode, status byte) error {
	return &usbError{msg, code, status}
}

func isWaitError(err error) bool {
	var uerr *usbError

	return errors.As(err, &uerr) && uerr.UsbErrorCode == usbErrorWait
}

// usbErrorCheck converts an STLINK status code held in the first byte of a
// response to a gostlink library error.
func (h *StLink) usbErrorCheck(ctx *transferCtx) error {
	status := ctx.DataBytes()[0]

	switch status {
	case debugErrorOk:
		return nil

	case debugErrorFault:
		return newUsbError(fmt.Sprintf("SWD fault response (0x%x)", debugErrorFault), usbErrorFail, status)

	case swdAccessPortWait:
		return newUsbError(fmt.Sprintf("wait status SWD_AP_WAIT (0x%x)", swdAccessPortWait), usbErrorWait, status)

	case swdDebugPortWait:
		return newUsbError(fmt.Sprintf("wait status SWD_DP_WAIT (0x%x)", swdDebugPortWait), usbErrorWait, status)

	case jTagGetIdCodeError:
		return newUsbError("STLINK_JTAG_GET_IDCODE_ERROR", usbErrorFail, status)

	case jTagWriteError:
		return newUsbError("Write error", usbErrorFail, status)

	case jTagWriteVerifyError:
		h.log.Debug("write verify error, ignoring")
		return nil

	case swdAccessPortFault:
		return newUsbError("STLINK_SWD_AP_FAULT", usbErrorFail, status)

	case swdAccessPortError:
		return newUsbError("STLINK_SWD_AP_ERROR", usbErrorFail, status)

	case swdAccessPortParityError:
		return newUsbError("STLINK_SWD_AP_PARITY_ERROR", usbErrorFail, status)

	case swdDebugPortFault:
		return newUsbError("STLINK_SWD_DP_FAULT", usbErrorFail, status)

	case swdDebugPortError:
		return newUsbError("STLINK_SWD_DP_ERROR", usbErrorFail, status)

	case swdDebugPortParityError:
		return newUsbError("STLINK_SWD_DP_PARITY_ERROR", usbErrorFail, status)

	case swdAccessPortWDataError:
		return newUsbError("STLINK_SWD_AP_WDATA_ERROR", usbErrorFail, status)

	case swdAccessPortStickyError:
		return newUsbError("STLINK_SWD_AP_STICKY_ERROR", usbErrorFail, status)

	case swdAccessPortStickOrRunError:
		return newUsbError("STLINK_SWD_AP_STICKYORUN_ERROR", usbErrorFail, status)

	case badAccessPortError:
		return newUsbError("STLINK_BAD_AP_ERROR", usbErrorFail, status)

	default:
		return newUsbError(fmt.Sprintf("unknown/unexpected STLINK status code 0x%x", status), usbErrorFail, status)
	}
}
