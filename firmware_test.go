// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package gostlink

import (
	"encoding/binary"
	"errors"
)

// fakeFirmware answers the command set of an ST-Link/V2 the way the probe
// firmware does. It implements Transport.
type fakeFirmware struct {
	version []byte
	v3ex    []byte

	mode        byte
	leaveTo     byte
	stuckInMode bool

	memory map[uint32]uint32
	faults map[uint32]bool

	// WAIT responses sent before a debug command succeeds
	waits int

	traceCount int
	traceData  []byte

	sendErr  error
	closeErr error
	commands [][]byte
	pending  []byte
	closed   bool
}

func newFakeFirmware(mode byte) *fakeFirmware {
	return &fakeFirmware{
		version: versionReply(2, 37, 7, stLinkV2Pid),
		mode:    mode,
		leaveTo: deviceModeMass,
		memory:  make(map[uint32]uint32),
		faults:  make(map[uint32]bool),
	}
}

func versionReply(v, x, y int, pid uint16) []byte {
	reply := make([]byte, 6)

	binary.BigEndian.PutUint16(reply, uint16(v<<12|x<<6|y))
	binary.LittleEndian.PutUint16(reply[2:], stLinkVid)
	binary.LittleEndian.PutUint16(reply[4:], pid)

	return reply
}

func status(code byte, size int) []byte {
	reply := make([]byte, size)
	reply[0] = code

	return reply
}

func (f *fakeFirmware) Send(data []byte) (int, error) {
	if f.sendErr != nil {
		return 0, f.sendErr
	}

	cmd := append([]byte(nil), data...)
	f.commands = append(f.commands, cmd)
	f.pending = f.respond(cmd)

	return len(data), nil
}

func (f *fakeFirmware) respond(cmd []byte) []byte {
	switch cmd[0] {
	case cmdGetVersion:
		return f.version

	case debugApiV3GetVersionEx:
		return f.v3ex

	case cmdGetCurrentMode:
		return []byte{f.mode, 0}

	case cmdDfu:
		if cmd[1] == dfuExit && f.mode == deviceModeDFU && !f.stuckInMode {
			f.mode = f.leaveTo
		}

		return nil

	case cmdGetTargetVoltage:
		reply := make([]byte, 8)
		binary.LittleEndian.PutUint32(reply, 1489)
		binary.LittleEndian.PutUint32(reply[4:], 2048)

		return reply

	case cmdDebug:
		return f.respondDebug(cmd)
	}

	return nil
}

func (f *fakeFirmware) respondDebug(cmd []byte) []byte {
	switch cmd[1] {
	case debugApiV2Enter, debugApiV2ReadDebugReg, debugApiV2WriteDebugReg:
		if f.waits > 0 {
			f.waits--
			return status(swdAccessPortWait, 8)
		}
	}

	switch cmd[1] {
	case debugApiV2Enter:
		if !f.stuckInMode {
			f.mode = deviceModeDebug
		}

		return status(debugErrorOk, 2)

	case debugApiV2ReadDebugReg:
		addr := binary.LittleEndian.Uint32(cmd[2:])

		if f.faults[addr] {
			return status(swdAccessPortFault, 8)
		}

		reply := status(debugErrorOk, 8)
		binary.LittleEndian.PutUint32(reply[4:], f.memory[addr])

		return reply

	case debugApiV2WriteDebugReg:
		addr := binary.LittleEndian.Uint32(cmd[2:])

		if f.faults[addr] {
			return status(swdAccessPortFault, 2)
		}

		f.memory[addr] = binary.LittleEndian.Uint32(cmd[6:])

		return status(debugErrorOk, 2)

	case debugApiV2GetTraceNB:
		reply := make([]byte, 2)
		binary.LittleEndian.PutUint16(reply, uint16(f.traceCount))

		return reply

	case debugApiV2ReadIdCodes:
		reply := status(debugErrorOk, 12)
		binary.LittleEndian.PutUint32(reply[4:], 0x2BA01477)

		return reply

	case debugApiV2InitAccessPort, debugApiV2StartTraceRx, debugApiV2StopTraceRx,
		debugApiV2SwdSetFreq, debugApiV2JTagSetFreq:
		return status(debugErrorOk, 2)
	}

	return status(debugErrorFault, 2)
}

func (f *fakeFirmware) Receive(data []byte) (int, error) {
	if f.pending == nil {
		return 0, errors.New("timeout")
	}

	n := copy(data, f.pending)
	f.pending = nil

	return n, nil
}

func (f *fakeFirmware) ReceiveTrace(data []byte) (int, error) {
	n := copy(data, f.traceData)
	f.traceData = f.traceData[n:]

	return n, nil
}

func (f *fakeFirmware) Close() error {
	f.closed = true
	return f.closeErr
}

// opcodes returns the leading command byte, or the debug sub command for
// 0xF2 commands, of every command sent so far.
func (f *fakeFirmware) opcodes() []byte {
	ops := make([]byte, 0, len(f.commands))

	for _, c := range f.commands {
		if c[0] == cmdDebug {
			ops = append(ops, c[1])
		} else {
			ops = append(ops, c[0])
		}
	}

	return ops
}

func (f *fakeFirmware) reset() {
	f.commands = nil
}
