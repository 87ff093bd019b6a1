// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

// Package coresight discovers the debug components of a Cortex-M target,
// configures them for instrumentation trace and decodes the resulting
// ITM/DWT byte stream.
package coresight

// MemoryAccess is the word access a debug probe offers on the target's
// debug bus. Every access is a full aligned 32-bit transfer.
type MemoryAccess interface {
	ReadU32(addr uint32) (uint32, error)
	WriteU32(addr uint32, value uint32) error
}
