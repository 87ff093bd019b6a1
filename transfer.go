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

// transferCtx holds the command block and the data phase of one
// request/response exchange with the probe.
type transferCtx struct {
	cmdBuf  *Buffer
	dataBuf *Buffer
}

func (ctx *transferCtx) DataBytes() []byte {
	return ctx.dataBuf.Bytes()
}

func (ctx *transferCtx) command() byte {
	if ctx.cmdBuf.Len() > 1 && ctx.cmdBuf.Bytes()[0] == cmdDebug {
		return ctx.cmdBuf.Bytes()[1]
	}
	return ctx.cmdBuf.Bytes()[0]
}

func (h *StLink) initTransfer() *transferCtx {
	return &transferCtx{
		cmdBuf:  NewBuffer(cmdSizeV2),
		dataBuf: NewBuffer(dataBufferSize),
	}
}

func (h *StLink) usbTransferNoErrCheck(ctx *transferCtx, size uint32) error {
	ctx.cmdBuf.padTo(cmdSizeV2)

	return h.usbTransferReadWrite(ctx, size)
}

func (h *StLink) usbTransferErrCheck(ctx *transferCtx, size uint32) error {
	err := h.usbTransferNoErrCheck(ctx, size)

	if err != nil {
		return err
	}

	return h.usbErrorCheck(ctx)
}

func (h *StLink) usbTransferReadWrite(ctx *transferCtx, size uint32) error {
	cmd := ctx.command()

	if h.transport == nil {
		return &TransportError{Op: fmt.Sprintf("send command 0x%02x", cmd), Err: ErrClosed}
	}

	_, err := h.transport.Send(ctx.cmdBuf.Bytes())

	if err != nil {
		return &TransportError{Op: fmt.Sprintf("send command 0x%02x", cmd), Err: err}
	}

	if size == 0 {
		return nil
	}

	response := make([]byte, size)
	bytesRead, err := h.transport.Receive(response)

	if err != nil {
		return &TransportError{Op: fmt.Sprintf("receive response to 0x%02x", cmd), Err: err}
	}

	if uint32(bytesRead) < size {
		return &TransportError{
			Op:  fmt.Sprintf("receive response to 0x%02x (%d of %d bytes)", cmd, bytesRead, size),
			Err: ErrShortRead,
		}
	}

	ctx.dataBuf.Reset()
	ctx.dataBuf.Write(response[:bytesRead])

	return nil
}
