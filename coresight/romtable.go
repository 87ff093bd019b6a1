// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package coresight

// romTableWalker collects the components of one discovery pass. ROM tables
// themselves are followed but not recorded.
type romTableWalker struct {
	target  *Target
	visited map[uint32]bool
	found   []*Component
}

func newRomTableWalker(t *Target) *romTableWalker {
	return &romTableWalker{
		target:  t,
		visited: make(map[uint32]bool),
	}
}

func (w *romTableWalker) walkRoot(base uint32) error {
	id, err := w.readIdentity(base)

	if err != nil {
		return err
	}

	if !id.valid() || id.class() != ClassRomTable {
		return &CoreSightError{Op: "read rom table", Address: base, Err: ErrMalformedTable}
	}

	return w.walkTable(base, 0)
}

func (w *romTableWalker) walkTable(base uint32, depth int) error {
	if w.visited[base] {
		return nil
	}

	w.visited[base] = true

	for i := uint32(0); i < romTableMaxEntries; i++ {
		entryAddr := base + 4*i
		entry, err := w.target.read("read rom table entry", entryAddr)

		if err != nil {
			return err
		}

		if entry == 0 {
			break
		}

		if entry&romEntryPresent == 0 {
			continue
		}

		// the offset is signed, two's complement wrap gives base + offset
		componentBase := base + (entry & romEntryOffsetMask)

		id, err := w.readIdentity(componentBase)

		if err != nil {
			return err
		}

		if !id.valid() {
			w.target.log.Debugf("skip entry %d of rom table 0x%08x: no component at 0x%08x", i, base, componentBase)
			continue
		}

		if id.class() == ClassRomTable {
			if depth+1 > romTableMaxDepth {
				w.target.log.Warnf("rom table 0x%08x nested too deep, skipped", componentBase)
				continue
			}

			if err := w.walkTable(componentBase, depth+1); err != nil {
				return err
			}

			continue
		}

		component := &Component{
			Kind:     id.kind(),
			Base:     componentBase,
			Class:    id.class(),
			Designer: id.designer(),
			Part:     id.part(),
			Revision: id.revision(),
			target:   w.target,
		}

		w.target.log.Debugf("found %s", component)
		w.found = append(w.found, component)
	}

	return nil
}

func (w *romTableWalker) readIdentity(base uint32) (componentIdentity, error) {
	var id componentIdentity

	cidrs := [...]uint32{regCIDR0, regCIDR1, regCIDR2, regCIDR3}

	for i, reg := range cidrs {
		value, err := w.target.read("read component id", base+reg)

		if err != nil {
			return id, err
		}

		id.cidr[i] = uint8(value)
	}

	if !id.valid() {
		return id, nil
	}

	pidrs := [...]uint32{regPIDR0, regPIDR1, regPIDR2, regPIDR3, regPIDR4}

	for i, reg := range pidrs {
		value, err := w.target.read("read peripheral id", base+reg)

		if err != nil {
			return id, err
		}

		id.pidr[i] = uint8(value)
	}

	return id, nil
}
