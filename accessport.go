// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

// this code is mainly inspired and based on the openocd project source code
// for detailed information see

// https://sourceforge.net/p/openocd/code
package gostlink

import (
	"fmt"
)

func (h *StLink) usbOpenAccessPort(apsel uint16) error {

	/* nothing to do on old versions */
	if !h.version.hasFlag(flagHasApInit) {
		return nil
	}

	if apsel > debugAccessPortSelectionMaximum {
		return fmt.Errorf("access port %d exceeds maximum %d", apsel, debugAccessPortSelectionMaximum)
	}

	if h.openedAps.Get(int(apsel)) {
		return nil
	}

	err := h.usbInitAccessPort(byte(apsel))

	if err != nil {
		return err
	}

	h.log.Debugf("AP %d enabled", apsel)
	h.openedAps.Set(int(apsel), true)

	return nil
}

func (h *StLink) usbInitAccessPort(apNum byte) error {
	h.log.Tracef("init ap_num = %d", apNum)

	ctx := h.initTransfer()

	ctx.cmdBuf.WriteByte(cmdDebug)
	ctx.cmdBuf.WriteByte(debugApiV2InitAccessPort)
	ctx.cmdBuf.WriteByte(apNum)

	err := h.usbTransferErrCheck(ctx, 2)

	if err != nil {
		return fmt.Errorf("could not init access port %d: %w", apNum, err)
	}

	return nil
}
