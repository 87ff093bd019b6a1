// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package gostlink

import (
	"time"
)

// usbCmdAllowRetry issues an STLINK command via USB transfer, with retries on
// any wait status responses. Works for commands where the STLINK_DEBUG status
// is returned in the first byte of the response packet.
func (h *StLink) usbCmdAllowRetry(ctx *transferCtx, size uint32) error {
	var retries int = 0

	for {
		err := h.usbTransferErrCheck(ctx, size)

		if err != nil && isWaitError(err) && retries < maximumWaitRetries {
			delay := time.Duration(1<<retries) * time.Millisecond

			retries++
			h.log.Debugf("cmdAllowRetry ERROR_WAIT, retry %d, delaying %v", retries, delay)
			h.sleep(delay)

			continue
		}

		return err
	}
}
