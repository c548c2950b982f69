// Package playerstate runs per-entity hierarchical state machines on a shared tick and
// keeps them in sync between an authoritative server and its clients.
package playerstate

import "github.com/comalice/playerstate/wire"

// StateID is a template index, assigned in registration order.
type StateID int

// NoState marks the absence of a state (no parent, no active child).
const NoState StateID = -1

// MaxTemplates is the largest number of templates one registry accepts.
const MaxTemplates = 1<<16 - 1

// State is implemented by every registered state type. Concrete types embed Base (leaf),
// Machine (exclusive composite), Concurrent (all children active) or Ability.
type State interface {
	Index() StateID
	FullName() string
	Entity() *Entity
	IsActive() bool
	base() *Base
}

// Lifecycle and behavior hooks. A state type opts into a hook by implementing its
// interface; implementors are collected once when the registry is built.
type (
	Initializer interface{ Initialize() }
	Enterer     interface{ OnEnter() }
	Exiter      interface{ OnExit() }

	// PreUpdater runs before Update and is where transitions are decided.
	PreUpdater interface{ PreUpdate() }
	Updater    interface{ Update() }
	// PostUpdater runs on every implementor each tick, active or not.
	PostUpdater interface{ PostUpdate() }

	// Interruptor is asked once per tick, while target is active, whether it should take
	// over from target.
	Interruptor interface {
		OnPreUpdateInterruptible(target State) bool
	}

	EnterGuard interface{ CanEnter() bool }

	// TransitionGuard vetoes entering from a specific predecessor. from is nil when the
	// machine had no active child.
	TransitionGuard interface {
		CanTransitionFrom(from State) bool
	}

	// Lockable interrupters report true to be skipped during interrupt evaluation.
	Lockable interface{ Locked() bool }

	// GroupRoot marks a composite as the grouping unit whose activity gates hook dispatch
	// for everything below it.
	GroupRoot interface{ GroupRoot() bool }

	// NetSerializer owns the opaque per-state network payload.
	NetSerializer interface {
		NetSend(w *wire.Writer)
		NetReceive(r *wire.Reader) error
	}

	ChildrenDeclarer interface {
		DeclareChildren(d *Declarer)
	}

	InterruptDeclarer interface {
		DeclareInterruptibleBy(d *Declarer)
	}
)

// Base holds the runtime bookkeeping shared by all states. It must be embedded, never
// copied after instantiation.
type Base struct {
	id     StateID
	parent StateID
	owner  StateID
	e      *Entity
	self   State

	activeTime        uint32
	netID             int16
	netUpdate         bool
	indirectNetUpdate bool
}

func (b *Base) base() *Base { return b }

func (b *Base) reset(e *Entity, self State, id StateID) {
	b.id = id
	b.e = e
	b.self = self
	b.parent = e.graph.hier[id].Parent
	b.owner = e.graph.owner[id]
	b.activeTime = 0
	b.netID = -1
	b.netUpdate = false
	b.indirectNetUpdate = false
}

// Index returns the template index of this instance.
func (b *Base) Index() StateID { return b.id }

// Name returns the unqualified template name.
func (b *Base) Name() string { return b.e.graph.defs[b.id].Name }

// FullName returns "mod/name".
func (b *Base) FullName() string { return b.e.graph.defs[b.id].FullName() }

// Entity returns the owning entity.
func (b *Base) Entity() *Entity { return b.e }

// Parent returns the parent instance, or nil for a root.
func (b *Base) Parent() State {
	if b.parent == NoState {
		return nil
	}
	return b.e.states[b.parent]
}

// ActiveTime counts ticks since the state was last entered.
func (b *Base) ActiveTime() uint32 { return b.activeTime }

// NetID is the wire identity assigned by reconciliation, -1 before it.
func (b *Base) NetID() int16 { return b.netID }

func (b *Base) NetUpdate() bool         { return b.netUpdate }
func (b *Base) IndirectNetUpdate() bool { return b.indirectNetUpdate }

// isCurrent reports whether the parent considers this state one of its active children.
func (b *Base) isCurrent() bool {
	if b.parent == NoState {
		return true
	}
	switch p := b.e.states[b.parent].(type) {
	case machiner:
		return p.machine().active == b.id
	default:
		return true
	}
}

// IsCurrent reports whether this state is a root or its parent's current child. It says
// nothing about the parent itself; use IsActive for that.
func (b *Base) IsCurrent() bool { return b.isCurrent() }

// IsActive reports whether this state and every ancestor are current.
func (b *Base) IsActive() bool {
	for cur := b; ; {
		if !cur.isCurrent() {
			return false
		}
		if cur.parent == NoState {
			return true
		}
		cur = cur.e.states[cur.parent].base()
	}
}

// MarkNetUpdate flags this state for the next delta and propagates the indirect flag to
// every ancestor. Ignored unless the entity is locally authoritative.
func (b *Base) MarkNetUpdate() {
	if !b.e.authority {
		return
	}
	b.forceNetUpdate()
}

func (b *Base) forceNetUpdate() {
	b.netUpdate = true
	for p := b.parent; p != NoState; {
		pb := b.e.states[p].base()
		if pb.indirectNetUpdate {
			break
		}
		pb.indirectNetUpdate = true
		p = pb.parent
	}
}

// ClearNetUpdate clears both flags on this state and on every descendant.
func (b *Base) ClearNetUpdate() {
	b.netUpdate = false
	b.indirectNetUpdate = false
	for _, c := range b.e.graph.hier[b.id].Children {
		b.e.states[c].base().ClearNetUpdate()
	}
}
