// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package coresight

import (
	"fmt"
)

type ComponentKind uint8

const (
	KindUnknown ComponentKind = iota
	KindSCS
	KindITM
	KindDWT
	KindFPB
	KindTPIU
	KindETM
)

func (k ComponentKind) String() string {
	switch k {
	case KindSCS:
		return "SCS"
	case KindITM:
		return "ITM"
	case KindDWT:
		return "DWT"
	case KindFPB:
		return "FPB"
	case KindTPIU:
		return "TPIU"
	case KindETM:
		return "ETM"
	default:
		return "unknown"
	}
}

// ComponentClass is the class nibble of CIDR1.
type ComponentClass uint8

const (
	ClassGenericVerification ComponentClass = 0x0
	ClassRomTable            ComponentClass = 0x1
	ClassCoreSight           ComponentClass = 0x9
	ClassPeripheralTestBlock ComponentClass = 0xB
	ClassGenericIP           ComponentClass = 0xE
	ClassPrimeCell           ComponentClass = 0xF
)

func (c ComponentClass) String() string {
	switch c {
	case ClassGenericVerification:
		return "generic verification"
	case ClassRomTable:
		return "rom table"
	case ClassCoreSight:
		return "coresight"
	case ClassPeripheralTestBlock:
		return "peripheral test block"
	case ClassGenericIP:
		return "generic ip"
	case ClassPrimeCell:
		return "primecell"
	default:
		return fmt.Sprintf("reserved (0x%x)", uint8(c))
	}
}

// designerArm is the JEP106 code of ARM Ltd. (continuation 4, identity 0x3B)
const designerArm uint16 = 0x23B

var armPartKinds = map[uint16]ComponentKind{
	0x000: KindSCS, // Cortex-M3
	0x008: KindSCS, // Cortex-M0
	0x00C: KindSCS, // Cortex-M4
	0x001: KindITM,
	0x002: KindDWT,
	0x00A: KindDWT, // Cortex-M0
	0x003: KindFPB,
	0x00B: KindFPB, // Cortex-M0 BPU
	0x00E: KindFPB, // Cortex-M7
	0x912: KindTPIU,
	0x923: KindTPIU, // Cortex-M3
	0x9A1: KindTPIU, // Cortex-M4
	0x9A9: KindTPIU, // Cortex-M7
	0x924: KindETM,  // Cortex-M3
	0x925: KindETM,  // Cortex-M4
	0x975: KindETM,  // Cortex-M7
}

// Component is one debug block found during discovery.
type Component struct {
	Kind     ComponentKind
	Base     uint32
	Class    ComponentClass
	Designer uint16
	Part     uint16
	Revision uint8

	target *Target
}

// Target returns the target the component was discovered on. The
// reference does not keep the target alive on its own.
func (c *Component) Target() *Target {
	return c.target
}

func (c *Component) String() string {
	return fmt.Sprintf("%s at 0x%08x (class %s, designer 0x%03x, part 0x%03x, rev %d)",
		c.Kind, c.Base, c.Class, c.Designer, c.Part, c.Revision)
}

type componentIdentity struct {
	cidr [4]uint8
	pidr [5]uint8
}

func (id componentIdentity) valid() bool {
	return id.cidr[0] == 0x0D && id.cidr[1]&0x0F == 0x0 && id.cidr[2] == 0x05 && id.cidr[3] == 0xB1
}

func (id componentIdentity) class() ComponentClass {
	return ComponentClass(id.cidr[1] >> 4)
}

func (id componentIdentity) part() uint16 {
	return uint16(id.pidr[0]) | uint16(id.pidr[1]&0x0F)<<8
}

func (id componentIdentity) designer() uint16 {
	identity := uint16(id.pidr[1]>>4) | uint16(id.pidr[2]&0x07)<<4
	continuation := uint16(id.pidr[4] & 0x0F)

	return continuation<<7 | identity
}

func (id componentIdentity) revision() uint8 {
	return id.pidr[2] >> 4
}

func (id componentIdentity) kind() ComponentKind {
	if id.designer() != designerArm {
		return KindUnknown
	}

	if kind, ok := armPartKinds[id.part()]; ok {
		return kind
	}

	return KindUnknown
}
