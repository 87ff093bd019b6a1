// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package gostlink

import (
	"errors"
	"fmt"
	"math"
)

type speedMap struct {
	speed        uint32
	speedDivisor int
}

/* SWD clock speed */
var swdKHzToSpeedMap = [...]speedMap{
	{4000, 0},
	{1800, 1}, /* default */
	{1200, 2},
	{950, 3},
	{480, 7},
	{240, 15},
	{125, 31},
	{100, 40},
	{50, 79},
	{25, 158},
	{15, 265},
	{5, 798},
}

/* JTAG clock speed */
var jTAGkHzToSpeedMap = [...]speedMap{
	{9000, 4},
	{4500, 8},
	{2250, 16},
	{1125, 32}, /* default */
	{562, 64},
	{281, 128},
	{140, 256},
}

// SetSpeed sets the debug interface clock to the closest supported value not
// above khz. With query set nothing is changed on the probe.
func (h *StLink) SetSpeed(khz uint32, query bool) (uint32, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.setSpeed(khz, query)
}

func (h *StLink) setSpeed(khz uint32, query bool) (uint32, error) {
	isJtag := h.debugInterface == DebugInterfaceJtag

	if h.version.jtagApi == jTagApiV3 {
		return h.setSpeedV3(isJtag, khz, query)
	}

	if isJtag {
		return h.setSpeedDivisor(jTAGkHzToSpeedMap[:], flagHasJtagSetFreq, debugApiV2JTagSetFreq, khz, query)
	}

	return h.setSpeedDivisor(swdKHzToSpeedMap[:], flagHasSwdSetFreq, debugApiV2SwdSetFreq, khz, query)
}

func (h *StLink) setSpeedV3(isJtag bool, khz uint32, query bool) (uint32, error) {
	smap, err := h.usbGetComFreq(isJtag)

	if err != nil {
		return khz, err
	}

	speedIndex, err := matchSpeedMap(smap, khz, query)

	if err != nil {
		return khz, err
	}

	if !query {
		err := h.usbSetComFreq(isJtag, smap[speedIndex].speed)

		if err != nil {
			return khz, err
		}
	}

	return smap[speedIndex].speed, nil
}

func (h *StLink) setSpeedDivisor(smap []speedMap, flag int, cmd byte, khz uint32, query bool) (uint32, error) {
	/* old firmware cannot change it */
	if !h.version.hasFlag(flag) {
		return khz, newUsbError("cannot change speed on this firmware", usbErrorCommandNotFound, 0)
	}

	speedIndex, err := matchSpeedMap(smap, khz, query)

	if err != nil {
		return khz, err
	}

	if !query {
		ctx := h.initTransfer()

		ctx.cmdBuf.WriteByte(cmdDebug)
		ctx.cmdBuf.WriteByte(cmd)
		ctx.cmdBuf.WriteUint16LE(uint16(smap[speedIndex].speedDivisor))

		if err := h.usbCmdAllowRetry(ctx, 2); err != nil {
			return khz, fmt.Errorf("unable to set adapter speed: %w", err)
		}
	}

	h.log.Debugf("interface speed set to %d kHz", smap[speedIndex].speed)

	return smap[speedIndex].speed, nil
}

func (h *StLink) usbGetComFreq(isJtag bool) ([]speedMap, error) {
	if h.version.jtagApi != jTagApiV3 {
		return nil, newUsbError("unknown command", usbErrorCommandNotFound, 0)
	}

	ctx := h.initTransfer()

	ctx.cmdBuf.WriteByte(cmdDebug)
	ctx.cmdBuf.WriteByte(debugApiV3GetComFreq)
	ctx.cmdBuf.WriteByte(boolToByte(isJtag))

	err := h.usbTransferErrCheck(ctx, 52)

	if err != nil {
		return nil, err
	}

	size := int(ctx.DataBytes()[8])

	if size > v3MaxFreqNb {
		size = v3MaxFreqNb
	}

	smap := make([]speedMap, v3MaxFreqNb)

	for i := 0; i < size; i++ {
		smap[i].speed = convertToUint32(ctx.DataBytes()[12+4*i:], littleEndian)
		smap[i].speedDivisor = i
	}

	return smap, nil
}

func (h *StLink) usbSetComFreq(isJtag bool, frequency uint32) error {
	if h.version.jtagApi != jTagApiV3 {
		return newUsbError("unknown command", usbErrorCommandNotFound, 0)
	}

	ctx := h.initTransfer()

	ctx.cmdBuf.WriteByte(cmdDebug)
	ctx.cmdBuf.WriteByte(debugApiV3SetComFreq)
	ctx.cmdBuf.WriteByte(boolToByte(isJtag))
	ctx.cmdBuf.WriteByte(0)
	ctx.cmdBuf.WriteUint32LE(frequency)

	return h.usbTransferErrCheck(ctx, 8)
}

func matchSpeedMap(smap []speedMap, khz uint32, query bool) (int, error) {
	var lastValidSpeed = -1
	var speedIndex = -1
	var speedDiff uint32 = math.MaxUint32
	var match = true

	for i, s := range smap {
		if s.speed == 0 {
			continue
		}

		lastValidSpeed = i
		if khz == s.speed {
			speedIndex = i
			break
		} else if khz > s.speed && khz-s.speed < speedDiff {
			speedDiff = khz - s.speed
			speedIndex = i
		}
	}

	if lastValidSpeed == -1 {
		return -1, errors.New("probe reported no usable interface speeds")
	}

	if speedIndex == -1 {
		// this will only be here if we cannot match the slow speed.
		// use the slowest speed we support.
		speedIndex = lastValidSpeed
		match = false
	} else if smap[speedIndex].speed != khz {
		match = false
	}

	if !match && query {
		return -1, fmt.Errorf("unable to match requested speed %d kHz, using %d kHz",
			khz, smap[speedIndex].speed)
	}

	return speedIndex, nil
}
