// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package gostlink

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/gousb"
)

var usbCtx *gousb.Context = nil

// Transport is the raw endpoint access a probe handle talks through.
// Every call is bounded by its own timeout and never retried.
type Transport interface {
	// Send writes to the command/data out endpoint.
	Send(data []byte) (int, error)
	// Receive reads a response from the data in endpoint.
	Receive(data []byte) (int, error)
	// ReceiveTrace reads from the trace (SWO) in endpoint.
	ReceiveTrace(data []byte) (int, error)
	Close() error
}

// DeviceInfo identifies one attached probe.
type DeviceInfo struct {
	Bus       int
	Address   int
	VendorID  gousb.ID
	ProductID gousb.ID
	Serial    string
}

func (d DeviceInfo) String() string {
	return fmt.Sprintf("[%04x:%04x] on bus %03d:%03d", uint16(d.VendorID), uint16(d.ProductID), d.Bus, d.Address)
}

func (d DeviceInfo) key() string {
	return fmt.Sprintf("%d:%d", d.Bus, d.Address)
}

// openDevices tracks which physical devices currently have an open handle.
var openDevices = struct {
	sync.Mutex
	keys map[string]bool
}{keys: make(map[string]bool)}

func claimDevice(info DeviceInfo) bool {
	openDevices.Lock()
	defer openDevices.Unlock()

	if openDevices.keys[info.key()] {
		return false
	}

	openDevices.keys[info.key()] = true
	return true
}

func releaseDevice(info DeviceInfo) {
	openDevices.Lock()
	delete(openDevices.keys, info.key())
	openDevices.Unlock()
}

func InitUsb() error {
	if usbCtx == nil {
		usbCtx = gousb.NewContext()

		if usbCtx != nil {
			logger.Debug("initialized libusb...")
			return nil
		} else {
			return errors.New("could not initialize libusb")
		}
	} else {
		logger.Warn("usb already initialized")
		return nil
	}
}

func CloseUSB() {
	if usbCtx != nil {
		usbCtx.Close()
		usbCtx = nil
	} else {
		logger.Warn("could not close uninitialized usb context")
	}
}

// ListDevices returns every attached probe of the ST-Link family. An empty
// slice means no probe is connected.
func ListDevices() ([]DeviceInfo, error) {
	return usbFindDevices(supportedVids, supportedPids)
}

func usbFindDevices(vids []gousb.ID, pids []gousb.ID) ([]DeviceInfo, error) {
	if usbCtx == nil {
		return nil, &DeviceError{Op: "enumerate", Err: errors.New("usb not initialized")}
	}

	devices, err := usbCtx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		if idExists(vids, desc.Vendor) && idExists(pids, desc.Product) {
			logger.Debugf("found USB device [%04x:%04x] on bus %03d:%03d", uint16(desc.Vendor),
				uint16(desc.Product), desc.Bus, desc.Address)

			return true
		} else {
			return false
		}
	})

	// devices that could not be opened (busy, permissions) are reported in
	// err while the others are still returned
	if err != nil {
		logger.Debug("error during usb device scan: ", err)

		if len(devices) == 0 {
			return nil, &DeviceError{Op: "enumerate", Err: err}
		}
	}

	infos := make([]DeviceInfo, 0, len(devices))

	for _, dev := range devices {
		serial, err := dev.SerialNumber()

		if err != nil {
			logger.Debugf("could not read serial number of device on bus %03d:%03d: %v",
				dev.Desc.Bus, dev.Desc.Address, err)
		}

		infos = append(infos, DeviceInfo{
			Bus:       dev.Desc.Bus,
			Address:   dev.Desc.Address,
			VendorID:  dev.Desc.Vendor,
			ProductID: dev.Desc.Product,
			Serial:    serial,
		})

		dev.Close()
	}

	logger.Debugf("found %d matching devices based on vendor and product id list", len(infos))

	return infos, nil
}

// usbTransport implements Transport on top of gousb bulk endpoints.
type usbTransport struct {
	device    *gousb.Device
	config    *gousb.Config
	intf      *gousb.Interface
	rx        *gousb.InEndpoint
	tx        *gousb.OutEndpoint
	trace     *gousb.InEndpoint
	timeout   time.Duration
	closeOnce sync.Once
}

func openUsbTransport(info DeviceInfo) (*usbTransport, error) {
	if usbCtx == nil {
		return nil, &DeviceError{Op: "open", Device: info, Err: errors.New("usb not initialized")}
	}

	devices, err := usbCtx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return desc.Bus == info.Bus && desc.Address == info.Address
	})

	if len(devices) == 0 {
		if err == nil {
			err = errors.New("device disconnected")
		}
		return nil, &DeviceError{Op: "open", Device: info, Err: err}
	}

	for _, d := range devices[1:] {
		d.Close()
	}

	t := &usbTransport{
		device:  devices[0],
		timeout: usbTimeoutMs * time.Millisecond,
	}

	if err := t.device.SetAutoDetach(true); err != nil {
		logger.Debug("auto detach not supported: ", err)
	}

	// no request required configuration an matching usb interface :D
	t.config, err = t.device.Config(1)
	if err != nil {
		t.device.Close()
		return nil, &DeviceError{Op: "request configuration #1", Device: info, Err: err}
	}

	t.intf, err = t.config.Interface(0, 0)
	if err != nil {
		t.config.Close()
		t.device.Close()
		return nil, &DeviceError{Op: "claim interface 0,0", Device: info, Err: err}
	}

	rxNo, txNo, traceNo := endpointsForPid(t.device.Desc.Product)

	if t.rx, err = t.intf.InEndpoint(rxNo); err == nil {
		if t.tx, err = t.intf.OutEndpoint(txNo); err == nil {
			t.trace, err = t.intf.InEndpoint(traceNo)
		}
	}

	if err != nil {
		t.Close()
		return nil, &DeviceError{Op: "open endpoints", Device: info, Err: err}
	}

	return t, nil
}

func endpointsForPid(pid gousb.ID) (rx, tx, trace int) {
	switch pid {
	case stLinkV21Pid, stLinkV21NoMsdPid, stLinkV3UsbLoaderPid, stLinkV3EPid, stLinkV3SPid, stLinkV32VcpPid:
		return usbRxEndpointNo, usbTxEndpointApi2v1, usbTraceEndpointApi2v1
	default:
		return usbRxEndpointNo, usbTxEndpointNo, usbTraceEndpointNo
	}
}

func (t *usbTransport) Send(data []byte) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()

	written, err := t.tx.WriteContext(ctx, data)

	if err != nil {
		return written, err
	} else {
		logger.Tracef("wrote %d bytes to endpoint", written)
		return written, nil
	}
}

func (t *usbTransport) Receive(data []byte) (int, error) {
	return t.read(t.rx, data)
}

func (t *usbTransport) ReceiveTrace(data []byte) (int, error) {
	return t.read(t.trace, data)
}

func (t *usbTransport) read(endpoint *gousb.InEndpoint, data []byte) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()

	read, err := endpoint.ReadContext(ctx, data)

	if err != nil {
		return read, err
	} else {
		logger.Tracef("read %d byte from in endpoint", read)
		return read, nil
	}
}

func (t *usbTransport) Close() error {
	var err error

	t.closeOnce.Do(func() {
		if t.intf != nil {
			t.intf.Close()
		}
		if t.config != nil {
			err = t.config.Close()
		}
		if t.device != nil {
			if derr := t.device.Close(); err == nil {
				err = derr
			}
		}
	})

	return err
}
