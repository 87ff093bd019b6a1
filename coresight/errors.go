// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package coresight

import (
	"errors"
	"fmt"
)

var (
	// ErrNoTraceComponent is returned when an operation needs a debug
	// component discovery did not find.
	ErrNoTraceComponent = errors.New("no suitable trace component discovered")

	ErrMalformedTable = errors.New("malformed rom table")
)

// CoreSightError reports a discovery or trace configuration fault.
type CoreSightError struct {
	Op      string
	Address uint32
	Err     error
}

func (e *CoreSightError) Error() string {
	return fmt.Sprintf("coresight %s at 0x%08x: %v", e.Op, e.Address, e.Err)
}

func (e *CoreSightError) Unwrap() error {
	return e.Err
}
