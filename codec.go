package playerstate

import (
	"fmt"
	"math"

	"github.com/comalice/playerstate/wire"
)

// Record flags.
const (
	flagSelf     byte = 1 << 0
	flagChildren byte = 1 << 1
	flagActive   byte = 1 << 2
)

// DecodeEntityRef reads the entity reference that starts every delta and full packet.
func DecodeEntityRef(data []byte) (EntityRef, error) {
	r := wire.NewReader(data)
	ref := r.Uvarint()
	if err := r.Err(); err != nil {
		return 0, fmt.Errorf("decode entity ref: %w", err)
	}
	if ref > math.MaxUint32 {
		return 0, fmt.Errorf("decode entity ref %d: %w", ref, ErrUnknownEntity)
	}
	return EntityRef(ref), nil
}

// Dirty reports whether any root has a pending change.
func (e *Entity) Dirty() bool {
	for _, r := range e.graph.roots {
		if b := e.states[r].base(); b.netUpdate || b.indirectNetUpdate {
			return true
		}
	}
	return false
}

// ClearNetUpdates clears every dirty flag.
func (e *Entity) ClearNetUpdates() {
	for _, r := range e.graph.roots {
		e.states[r].base().ClearNetUpdate()
	}
}

// WriteDelta appends a delta of every dirty subtree to w and returns the number of root
// records. Nothing is written when the entity is clean. Flags are left set; callers
// clear them after the packet is handed to the transport.
func (e *Entity) WriteDelta(w *wire.Writer) (int, error) {
	if e.table == nil {
		return 0, ErrNotReconciled
	}
	n := 0
	for _, r := range e.graph.roots {
		if e.sendable(r) {
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	w.Uvarint(uint64(e.ref))
	w.Uvarint(uint64(n))
	for _, r := range e.graph.roots {
		if e.sendable(r) {
			e.writeRecord(w, r)
		}
	}
	return n, nil
}

func (e *Entity) sendable(id StateID) bool {
	b := e.states[id].base()
	return b.netID >= 0 && (b.netUpdate || b.indirectNetUpdate)
}

func (e *Entity) writeRecord(w *wire.Writer, id StateID) {
	b := e.states[id].base()
	var children int
	if b.indirectNetUpdate {
		for _, c := range e.graph.hier[id].Children {
			if e.sendable(c) {
				children++
			}
		}
	}
	var flags byte
	if b.netUpdate {
		flags |= flagSelf
		if e.graph.kinds[id] == kindMachine {
			flags |= flagActive
		}
	}
	if children > 0 {
		flags |= flagChildren
	}
	w.Varint(int64(b.netID))
	w.Byte(flags)
	if flags&flagSelf != 0 {
		e.writeSelf(w, id)
	}
	if children > 0 {
		w.Uvarint(uint64(children))
		for _, c := range e.graph.hier[id].Children {
			if e.sendable(c) {
				e.writeRecord(w, c)
			}
		}
	}
}

func (e *Entity) writeSelf(w *wire.Writer, id StateID) {
	s := e.states[id]
	if e.graph.kinds[id] == kindMachine {
		var ref uint64
		if a := s.(machiner).machine().active; a != NoState {
			if nid := e.states[a].base().netID; nid >= 0 {
				ref = uint64(nid) + 1
			}
		}
		w.Uvarint(ref)
	}
	if !e.graph.hookHas[hookNet][id] {
		w.BytesField(nil)
		return
	}
	if e.payload == nil {
		e.payload = wire.NewWriter(64)
	}
	e.payload.Reset()
	s.(NetSerializer).NetSend(e.payload)
	w.BytesField(e.payload.Bytes())
}

// WriteFull appends a snapshot of every reconciled instance, depth-first from the roots,
// regardless of dirty flags.
func (e *Entity) WriteFull(w *wire.Writer) (int, error) {
	if e.table == nil {
		return 0, ErrNotReconciled
	}
	n := 0
	for _, id := range e.graph.preorder {
		if e.states[id].base().netID >= 0 {
			n++
		}
	}
	w.Uvarint(uint64(e.ref))
	w.Uvarint(uint64(n))
	for _, id := range e.graph.preorder {
		b := e.states[id].base()
		if b.netID < 0 {
			continue
		}
		flags := flagSelf
		if e.graph.kinds[id] == kindMachine {
			flags |= flagActive
		}
		w.Varint(int64(b.netID))
		w.Byte(flags)
		e.writeSelf(w, id)
	}
	return n, nil
}

// ApplyDelta decodes a packet written by WriteDelta. Values are applied without flagging
// them for sync; machines switch through the silent path, so hooks still run on active
// machines. Records for net ids without a local template are skipped.
func (e *Entity) ApplyDelta(data []byte) error {
	return e.apply("apply delta", data)
}

// ApplyFull decodes a packet written by WriteFull.
func (e *Entity) ApplyFull(data []byte) error {
	return e.apply("apply full", data)
}

func (e *Entity) apply(op string, data []byte) error {
	if e.table == nil {
		return fmt.Errorf("%s: %w", op, ErrNotReconciled)
	}
	e.applied = e.applied[:0]
	r := wire.NewReader(data)
	raw := r.Uvarint()
	n := r.Uvarint()
	if err := r.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if raw > math.MaxUint32 {
		return fmt.Errorf("%s: entity ref %d out of range: %w", op, raw, ErrUnknownEntity)
	}
	if ref := EntityRef(raw); ref != e.ref {
		return fmt.Errorf("%s: packet for entity %d applied to %d: %w", op, ref, e.ref, ErrUnknownEntity)
	}
	for k := uint64(0); k < n; k++ {
		if err := e.readRecord(r, 0); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return nil
}

func (e *Entity) readRecord(r *wire.Reader, depth int) error {
	if depth > len(e.states) {
		return fmt.Errorf("%w: records nested deeper than the graph", ErrNetID)
	}
	nid := r.Varint()
	flags := r.Byte()
	if err := r.Err(); err != nil {
		return err
	}
	if nid < 0 || nid >= int64(len(e.byNet)) {
		return fmt.Errorf("%w: %d", ErrNetID, nid)
	}
	id := e.byNet[nid]

	if flags&flagSelf != 0 {
		var activeRef uint64
		if flags&flagActive != 0 {
			activeRef = r.Uvarint()
		}
		payload := r.BytesField()
		if err := r.Err(); err != nil {
			return err
		}
		if id != NoState {
			if err := e.applySelf(id, flags, activeRef, payload); err != nil {
				return err
			}
		}
	}
	if flags&flagChildren != 0 {
		n := r.Uvarint()
		if err := r.Err(); err != nil {
			return err
		}
		if n > uint64(r.Remaining()) {
			return fmt.Errorf("%w: %d children", wire.ErrShortBuffer, n)
		}
		for k := uint64(0); k < n; k++ {
			if err := e.readRecord(r, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}

// applySelf applies one record. activeRef is the child's net id plus one, zero for none.
func (e *Entity) applySelf(id StateID, flags byte, activeRef uint64, payload []byte) error {
	g := e.graph
	s := e.states[id]
	if flags&flagActive != 0 && g.kinds[id] == kindMachine {
		m := s.(machiner).machine()
		if activeRef == 0 {
			if m.active != NoState {
				prev := m.active
				if m.IsActive() {
					e.exit(prev)
				}
				m.active = NoState
				e.notify(id, prev, NoState)
			}
		} else {
			cnid := activeRef - 1
			if cnid >= uint64(len(e.byNet)) {
				return fmt.Errorf("%w: active child %d", ErrNetID, cnid)
			}
			if child := e.byNet[cnid]; child != NoState {
				if !g.isChild(id, child) {
					return fmt.Errorf("%w: %s is not a child of %s", ErrNetID,
						g.defs[child].FullName(), g.defs[id].FullName())
				}
				if m.active != child {
					m.switchTo(child, true)
				}
			}
		}
	}
	if g.hookHas[hookNet][id] {
		if err := s.(NetSerializer).NetReceive(wire.NewReader(payload)); err != nil {
			return fmt.Errorf("%s payload: %w", g.defs[id].FullName(), err)
		}
	}
	e.applied = append(e.applied, id)
	return nil
}

// MarkAppliedDirty flags every instance touched by the last apply so the next delta
// relays it, regardless of authority.
func (e *Entity) MarkAppliedDirty() {
	for _, id := range e.applied {
		e.states[id].base().forceNetUpdate()
	}
	e.applied = e.applied[:0]
}
