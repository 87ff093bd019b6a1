// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package coresight

import (
	"errors"

	"github.com/sirupsen/logrus"
)

// TargetOption configures a Target.
type TargetOption func(*Target)

// WithRomTableBases replaces the ROM tables walked during discovery.
func WithRomTableBases(bases ...uint32) TargetOption {
	return func(t *Target) {
		t.romTables = append([]uint32(nil), bases...)
	}
}

func WithLogger(l logrus.FieldLogger) TargetOption {
	return func(t *Target) {
		if l != nil {
			t.log = l
		}
	}
}

type traceState struct {
	address     uint32
	addressSet  bool
	outputSet   bool
	prescaler   uint16
	reconfigure int
}

// Target is the debug view of one chip. It borrows the memory access of a
// probe and owns the components found on it.
type Target struct {
	mem        MemoryAccess
	romTables  []uint32
	components []*Component
	trace      *traceState
	log        logrus.FieldLogger
}

func NewTarget(mem MemoryAccess, opts ...TargetOption) *Target {
	t := &Target{
		mem:       mem,
		romTables: []uint32{DefaultRomTableBase},
		log:       logrus.StandardLogger(),
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// ReadDebugComponents walks the ROM tables and replaces the known component
// set. On error the previous set is kept.
func (t *Target) ReadDebugComponents() error {
	walker := newRomTableWalker(t)

	for _, base := range t.romTables {
		if err := walker.walkRoot(base); err != nil {
			return err
		}
	}

	t.components = walker.found
	t.log.Debugf("discovered %d debug components", len(t.components))

	return nil
}

// Components returns the components of the last successful discovery.
func (t *Target) Components() []*Component {
	return append([]*Component(nil), t.components...)
}

// FindComponent returns the first discovered component of the given kind.
func (t *Target) FindComponent(kind ComponentKind) (*Component, bool) {
	for _, c := range t.components {
		if c.Kind == kind {
			return c, true
		}
	}

	return nil, false
}

// StartTraceMemoryAddress sets up the ITM and DWT comparator 0 so that every
// read and write of the word at addr is emitted as a data trace packet.
// Calling it again with another address retargets the comparator.
func (t *Target) StartTraceMemoryAddress(addr uint32) error {
	itm, dwt, err := t.traceComponents(addr)

	if err != nil {
		return err
	}

	if err := t.enableTrace(itm, dwt, addr); err != nil {
		return err
	}

	if t.trace == nil {
		t.trace = &traceState{}
	}

	t.trace.address = addr
	t.trace.addressSet = true
	t.log.Infof("tracing memory address 0x%08x", addr)

	return nil
}

// ConfigureTraceOutput switches the TPIU to asynchronous NRZ (SWO) output
// with the formatter bypassed. prescaler divides the trace clock down to the
// SWO baud rate.
func (t *Target) ConfigureTraceOutput(prescaler uint16) error {
	tpiu, ok := t.FindComponent(KindTPIU)

	if !ok {
		return &CoreSightError{Op: "configure trace output", Err: ErrNoTraceComponent}
	}

	if prescaler == 0 || prescaler > tpiuAcprMaxPrescale {
		return &CoreSightError{Op: "configure trace output", Address: tpiu.Base + tpiuACPR,
			Err: errors.New("prescaler out of range")}
	}

	if err := t.enableTpiu(tpiu, prescaler); err != nil {
		return err
	}

	if t.trace == nil {
		t.trace = &traceState{}
	}

	t.trace.outputSet = true
	t.trace.prescaler = prescaler

	return nil
}

// Poll checks that the trace setup survived, e.g. a target reset clears
// DEMCR.TRCENA and the ITM enable. A lost configuration is applied again.
func (t *Target) Poll() error {
	if t.trace == nil {
		return nil
	}

	demcr, err := t.read("poll", demcrAddress)

	if err != nil {
		return err
	}

	itm, hasItm := t.FindComponent(KindITM)
	enabled := demcr&demcrTrcEna != 0

	if enabled && hasItm && t.trace.addressSet {
		tcr, err := t.read("poll", itm.Base+itmTCR)

		if err != nil {
			return err
		}

		enabled = tcr&itmTcrItmEna != 0
	}

	if enabled {
		return nil
	}

	t.log.Warn("trace configuration lost, probably a target reset, applying it again")
	t.trace.reconfigure++

	if t.trace.outputSet {
		tpiu, ok := t.FindComponent(KindTPIU)

		if !ok {
			return &CoreSightError{Op: "poll", Err: ErrNoTraceComponent}
		}

		if err := t.enableTpiu(tpiu, t.trace.prescaler); err != nil {
			return err
		}
	}

	if !t.trace.addressSet {
		return nil
	}

	itm, dwt, err := t.traceComponents(t.trace.address)

	if err != nil {
		return err
	}

	return t.enableTrace(itm, dwt, t.trace.address)
}

// Reconfigurations counts how often Poll had to restore the trace setup.
func (t *Target) Reconfigurations() int {
	if t.trace == nil {
		return 0
	}

	return t.trace.reconfigure
}

func (t *Target) traceComponents(addr uint32) (*Component, *Component, error) {
	itm, ok := t.FindComponent(KindITM)

	if !ok {
		return nil, nil, &CoreSightError{Op: "start trace", Address: addr, Err: ErrNoTraceComponent}
	}

	dwt, ok := t.FindComponent(KindDWT)

	if !ok {
		return nil, nil, &CoreSightError{Op: "start trace", Address: addr, Err: ErrNoTraceComponent}
	}

	return itm, dwt, nil
}

func (t *Target) enableTrace(itm, dwt *Component, addr uint32) error {
	if err := t.setTraceEnable(); err != nil {
		return err
	}

	tcr := itmTcrItmEna | itmTcrSyncEna | itmTcrDwtEna | itmTraceBusId<<itmTcrTraceBusIdShift

	writes := []struct {
		addr  uint32
		value uint32
	}{
		{itm.Base + itmLAR, lockAccessKey},
		{itm.Base + itmTCR, tcr},
		{itm.Base + itmTPR, 0},
		{itm.Base + itmTER0, 0xFFFFFFFF},
		{dwt.Base + dwtComp0, addr},
		{dwt.Base + dwtMask0, 0},
		{dwt.Base + dwtFunction0, dwtFunctionDataValueRW | dwtFunctionSizeWord},
	}

	for _, w := range writes {
		if err := t.write("start trace", w.addr, w.value); err != nil {
			return err
		}
	}

	return nil
}

func (t *Target) enableTpiu(tpiu *Component, prescaler uint16) error {
	if err := t.setTraceEnable(); err != nil {
		return err
	}

	writes := []struct {
		addr  uint32
		value uint32
	}{
		{tpiu.Base + tpiuCSPSR, tpiuPortSize1},
		{tpiu.Base + tpiuSPPR, tpiuProtocolNrz},
		{tpiu.Base + tpiuACPR, uint32(prescaler) - 1},
		{tpiu.Base + tpiuFFCR, tpiuFfcrTrigIn},
	}

	for _, w := range writes {
		if err := t.write("configure trace output", w.addr, w.value); err != nil {
			return err
		}
	}

	return nil
}

func (t *Target) setTraceEnable() error {
	demcr, err := t.read("enable trace", demcrAddress)

	if err != nil {
		return err
	}

	if demcr&demcrTrcEna != 0 {
		return nil
	}

	return t.write("enable trace", demcrAddress, demcr|demcrTrcEna)
}

func (t *Target) read(op string, addr uint32) (uint32, error) {
	value, err := t.mem.ReadU32(addr)

	if err != nil {
		return 0, &CoreSightError{Op: op, Address: addr, Err: err}
	}

	return value, nil
}

func (t *Target) write(op string, addr uint32, value uint32) error {
	if err := t.mem.WriteU32(addr, value); err != nil {
		return &CoreSightError{Op: op, Address: addr, Err: err}
	}

	return nil
}
