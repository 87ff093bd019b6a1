// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

// this code is mainly inspired and based on the openocd project source code
// for detailed information see

// https://sourceforge.net/p/openocd/code

package gostlink

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/boljen/go-bitmap"
	"github.com/google/gousb"
	"github.com/sirupsen/logrus"
)

const AllSupportedVIds = 0xFFFF
const AllSupportedPIds = 0xFFFF

var supportedVids = []gousb.ID{stLinkVid} // STLINK Vendor ID
var supportedPids = []gousb.ID{stLinkV1Pid, stLinkV2Pid, stLinkV21Pid, stLinkV3UsbLoaderPid,
	stLinkV3EPid, stLinkV3SPid, stLinkV21NoMsdPid, stLinkV32VcpPid}

type stLinkTrace struct {
	enabled  bool
	sourceHz uint32
}

// StLink is an open handle to one probe. All exported methods are
// serialized; only one command is in flight on the link at a time.
type StLink struct {
	mu sync.Mutex

	transport Transport
	device    DeviceInfo
	version   StLinkVersion

	debugInterface DebugInterface
	initialSpeed   uint32

	mode      Mode
	openedAps bitmap.Bitmap
	trace     stLinkTrace

	log   *logrus.Entry
	sleep func(time.Duration)
}

type StLinkConfig struct {
	vid            gousb.ID
	pid            gousb.ID
	debugInterface DebugInterface
	serial         string
	initialSpeed   uint32
	logger         *logrus.Logger
}

func NewStLinkConfig(vid gousb.ID, pid gousb.ID, debugInterface DebugInterface,
	serial string, initialSpeed uint32) *StLinkConfig {

	config := &StLinkConfig{
		vid:            vid,
		pid:            pid,
		debugInterface: debugInterface,
		serial:         serial,
		initialSpeed:   initialSpeed,
	}

	return config
}

// SetLogger sets the logger used by handles opened with this config.
func (c *StLinkConfig) SetLogger(l *logrus.Logger) *StLinkConfig {
	c.logger = l
	return c
}

// NewStLink searches the attached probes matching config and opens the only
// match. ErrNoProbeFound is returned when nothing matches.
func NewStLink(config *StLinkConfig) (*StLink, error) {
	vids := supportedVids
	pids := supportedPids

	if config.vid != AllSupportedVIds {
		vids = []gousb.ID{config.vid}
	}

	if config.pid != AllSupportedPIds {
		pids = []gousb.ID{config.pid}
	}

	devices, err := usbFindDevices(vids, pids)

	if err != nil {
		return nil, err
	}

	var selected []DeviceInfo

	for _, dev := range devices {
		if config.serial == "" || dev.Serial == config.serial {
			selected = append(selected, dev)
		} else {
			logger.Debugf("skip st-link with serial %s, looking for %s", dev.Serial, config.serial)
		}
	}

	switch len(selected) {
	case 0:
		return nil, ErrNoProbeFound
	case 1:
		logger.Infof("found st-link %s with serial number %s", selected[0], selected[0].Serial)
		return Open(selected[0], config)
	default:
		return nil, errors.New("could not identity exact stlink by given parameters. (Perhaps a serial no is missing?)")
	}
}

// Open claims the given probe. Only one handle per physical device may be
// open at a time.
func Open(info DeviceInfo, config *StLinkConfig) (*StLink, error) {
	if !claimDevice(info) {
		return nil, &DeviceError{Op: "open", Device: info, Err: errors.New("device already opened")}
	}

	transport, err := openUsbTransport(info)

	if err != nil {
		releaseDevice(info)
		return nil, err
	}

	handle, err := newStLink(transport, info, config)

	if err != nil {
		if cerr := transport.Close(); cerr != nil {
			logger.Debug("could not close usb transport: ", cerr)
		}

		releaseDevice(info)
		return nil, err
	}

	return handle, nil
}

func newStLink(transport Transport, info DeviceInfo, config *StLinkConfig) (*StLink, error) {
	if config == nil {
		config = NewStLinkConfig(AllSupportedVIds, AllSupportedPIds, DebugInterfaceSwd, "", 0)
	}

	handle := &StLink{
		transport:      transport,
		device:         info,
		debugInterface: config.debugInterface,
		initialSpeed:   config.initialSpeed,
		mode:           ModeUnknown,
		openedAps:      bitmap.New(debugAccessPortSelectionMaximum + 1),
		sleep:          time.Sleep,
		log: handleLogger(config.logger, logrus.Fields{
			"probe": fmt.Sprintf("%03d:%03d", info.Bus, info.Address),
		}),
	}

	err := handle.usbGetVersion()

	if err != nil {
		return nil, err
	}

	if handle.version.jtagApi == jTagApiV1 {
		return nil, &DeviceError{Op: "check version", Device: info,
			Err: fmt.Errorf("firmware %s uses jtag api v1 which is not supported", handle.version)}
	}

	return handle, nil
}

func (h *StLink) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.transport == nil {
		return
	}

	if h.trace.enabled {
		if err := h.usbTraceDisable(); err != nil {
			h.log.Warn("could not stop trace before close: ", err)
		}
	}

	h.log.Debugf("close ST-Link device %s", h.device)

	if err := h.transport.Close(); err != nil {
		h.log.Debug("could not close usb transport: ", err)
	}

	h.transport = nil

	releaseDevice(h.device)
}

// Device returns the USB identity of the probe.
func (h *StLink) Device() DeviceInfo {
	return h.device
}

// Version returns the firmware version read when the handle was opened.
func (h *StLink) Version() StLinkVersion {
	return h.version
}

func (h *StLink) GetTargetVoltage() (float32, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.targetVoltage()
}

func (h *StLink) targetVoltage() (float32, error) {
	var adcResults [2]uint32

	/* no error message, simply quit with error */
	if !h.version.hasFlag(flagHasTargetVolt) {
		return -1.0, errors.New("device does not support voltage measurement")
	}

	ctx := h.initTransfer()

	ctx.cmdBuf.WriteByte(cmdGetTargetVoltage)

	err := h.usbTransferNoErrCheck(ctx, 8)

	if err != nil {
		return -1.0, err
	}

	/* convert result */
	adcResults[0] = convertToUint32(ctx.DataBytes(), littleEndian)
	adcResults[1] = convertToUint32(ctx.DataBytes()[4:], littleEndian)

	var targetVoltage float32 = 0.0

	if adcResults[0] > 0 {
		targetVoltage = 2 * (float32(adcResults[1]) * (1.2 / float32(adcResults[0])))
	}

	h.log.Debugf("target voltage: %f", targetVoltage)

	return targetVoltage, nil
}

// GetIdCode reads the debug port IDCODE. Requires debug mode.
func (h *StLink) GetIdCode() (uint32, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ctx := h.initTransfer()

	ctx.cmdBuf.WriteByte(cmdDebug)
	ctx.cmdBuf.WriteByte(debugApiV2ReadIdCodes)

	err := h.usbTransferErrCheck(ctx, 12)

	if err != nil {
		return 0, err
	}

	return convertToUint32(ctx.DataBytes()[4:], littleEndian), nil
}
