// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

// this code is mainly inspired and based on the openocd project source code
// for detailed information see

// https://sourceforge.net/p/openocd/code

package gostlink

// Mode is the operating mode reported by the probe firmware.
type Mode uint8

const (
	ModeUnknown Mode = iota
	ModeFirmwareUpdate
	ModeMassStorage
	ModeDebug
)

func (m Mode) String() string {
	switch m {
	case ModeFirmwareUpdate:
		return "firmware-update"
	case ModeMassStorage:
		return "mass-storage"
	case ModeDebug:
		return "debug"
	default:
		return "unknown"
	}
}

// DebugInterface selects the wire protocol used when entering debug mode.
type DebugInterface uint8

const (
	DebugInterfaceSwd  DebugInterface = 0
	DebugInterfaceJtag DebugInterface = 1
)

func (i DebugInterface) String() string {
	if i == DebugInterfaceJtag {
		return "JTAG"
	}
	return "SWD"
}

// StLink feature flags, bit positions in the version flag bitmap
const (
	flagHasTrace = iota
	flagHasSwdSetFreq
	flagHasJtagSetFreq
	flagHasMem16Bit
	flagHasGetLastRwStatus2
	flagHasDapReg
	flagQuirkJtagDpRead
	flagHasApInit
	flagHasDpBankSel
	flagHasRw8Bytes512
	flagFixCloseAp

	flagCount

	flagHasTargetVolt = flagHasTrace
)

type stLinkApiVersion uint8 // api versions of stlinks

const (
	jTagApiV1 stLinkApiVersion = 1
	jTagApiV2 stLinkApiVersion = 2
	jTagApiV3 stLinkApiVersion = 3
)

// usb endpoint definitions
const (
	usbRxEndpointNo    = 1 // 0x81
	usbTxEndpointNo    = 2 // 0x02
	usbTraceEndpointNo = 3 // 0x83

	usbTxEndpointApi2v1    = 1 // 0x01
	usbTraceEndpointApi2v1 = 2 // 0x82

	usbTimeoutMs = 1000
)

// stlink internal device mode numbers
const (
	deviceModeDFU        = 0x00
	deviceModeMass       = 0x01
	deviceModeDebug      = 0x02
	deviceModeSwim       = 0x03
	deviceModeBootloader = 0x04
)

// status codes in the first byte of a debug command response
const (
	debugErrorOk                 = 0x80
	debugErrorFault              = 0x81
	jTagGetIdCodeError           = 0x09
	jTagWriteError               = 0x0c
	jTagWriteVerifyError         = 0x0d
	swdAccessPortWait            = 0x10
	swdAccessPortFault           = 0x11
	swdAccessPortError           = 0x12
	swdAccessPortParityError     = 0x13
	swdDebugPortWait             = 0x14
	swdDebugPortFault            = 0x15
	swdDebugPortError            = 0x16
	swdDebugPortParityError      = 0x17
	swdAccessPortWDataError      = 0x18
	swdAccessPortStickyError     = 0x19
	swdAccessPortStickOrRunError = 0x1a
	badAccessPortError           = 0x1d
)

const (
	stLinkVid = 0x0483

	stLinkV1Pid          = 0x3744
	stLinkV2Pid          = 0x3748
	stLinkV21Pid         = 0x374B
	stLinkV21NoMsdPid    = 0x3752
	stLinkV3UsbLoaderPid = 0x374D
	stLinkV3EPid         = 0x374E
	stLinkV3SPid         = 0x374F
	stLinkV32VcpPid      = 0x3753
)

const (
	cmdGetVersion       = 0xF1
	cmdDebug            = 0xF2
	cmdDfu              = 0xF3
	cmdGetCurrentMode   = 0xF5
	cmdGetTargetVoltage = 0xF7
)

const (
	debugEnterSwdNoReset  = 0xa3
	debugEnterJTagNoReset = 0xa4
	debugApiV2Enter       = 0x30
	debugApiV2ReadIdCodes = 0x31
	//STLINK_DEBUG_APIV2_RESETSYS      = 0x32
	//STLINK_DEBUG_APIV2_READREG       = 0x33
	//STLINK_DEBUG_APIV2_WRITEREG      = 0x34
	debugApiV2WriteDebugReg = 0x35
	debugApiV2ReadDebugReg  = 0x36
	//STLINK_DEBUG_APIV2_READALLREGS     = 0x3A
	debugApiV2StartTraceRx   = 0x40
	debugApiV2StopTraceRx    = 0x41
	debugApiV2GetTraceNB     = 0x42
	debugApiV2SwdSetFreq     = 0x43
	debugApiV2JTagSetFreq    = 0x44
	debugApiV2InitAccessPort = 0x4B

	debugApiV3SetComFreq   = 0x61
	debugApiV3GetComFreq   = 0x62
	debugApiV3GetVersionEx = 0xFB
)

const (
	dfuExit = 0x07
)

const (
	maximumWaitRetries              = 8
	debugAccessPortSelectionMaximum = 255

	v3MaxFreqNb = 10

	cmdSizeV2      = 16
	dataBufferSize = 4096

	traceSize  = 4096
	traceMaxHz = 2000000

	tpiuAcprMaxSwoScaler = 0x1fff

	minimumTargetVoltage = 1.5
)
