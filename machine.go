package playerstate

import "reflect"

// Machine is an exclusive composite: at most one child is active at a time.
type Machine struct {
	Base
	active StateID
}

// Concurrent is a composite whose children are all active whenever it is.
type Concurrent struct {
	Base
}

type machiner interface {
	State
	machine() *Machine
}

type concurrenter interface {
	State
	concurrent() *Concurrent
}

func (m *Machine) machine() *Machine          { return m }
func (c *Concurrent) concurrent() *Concurrent { return c }

// MachineOf returns the exclusive composite embedded in s, or nil.
func MachineOf(s State) *Machine {
	if m, ok := s.(machiner); ok {
		return m.machine()
	}
	return nil
}

func (m *Machine) reset(e *Entity, self State, id StateID) {
	m.Base.reset(e, self, id)
	m.active = NoState
}

// ActiveChildID returns the active child's index, or NoState.
func (m *Machine) ActiveChildID() StateID { return m.active }

// ActiveChild returns the active child instance, or nil.
func (m *Machine) ActiveChild() State {
	if m.active == NoState {
		return nil
	}
	return m.e.states[m.active]
}

// TrySetActiveChild makes target the active child. It is a no-op returning true when
// target is already active. With checkTransition, target may veto through CanEnter and
// CanTransitionFrom. A successful change is flagged for network sync.
func (m *Machine) TrySetActiveChild(target State, checkTransition bool) bool {
	return m.trySet("TrySetActiveChild", m.targetID(target), checkTransition, false)
}

// TrySetActiveChildSilent behaves like TrySetActiveChild without flagging the change for
// network sync.
func (m *Machine) TrySetActiveChildSilent(target State, checkTransition bool) bool {
	return m.trySet("TrySetActiveChildSilent", m.targetID(target), checkTransition, true)
}

// TrySetActiveChildID is TrySetActiveChild addressed by template index.
func (m *Machine) TrySetActiveChildID(id StateID, checkTransition bool) bool {
	return m.trySet("TrySetActiveChildID", id, checkTransition, false)
}

// ClearActiveChild exits the active child, if any, and leaves the machine without one.
func (m *Machine) ClearActiveChild() {
	if m.active == NoState {
		return
	}
	prev := m.active
	if m.IsActive() {
		m.e.exit(prev)
	}
	m.active = NoState
	m.MarkNetUpdate()
	m.e.notify(m.id, prev, NoState)
}

// SetActiveChild activates the child of m whose Go type is T.
func SetActiveChild[T State](m *Machine, checkTransition bool) bool {
	id, ok := m.e.graph.byType[reflect.TypeOf((*T)(nil)).Elem()]
	if !ok {
		contractPanic("SetActiveChild", "type %v is not registered", reflect.TypeOf((*T)(nil)).Elem())
	}
	return m.trySet("SetActiveChild", id, checkTransition, false)
}

func (m *Machine) targetID(target State) StateID {
	if target == nil {
		contractPanic("TrySetActiveChild", "nil target for %s", m.FullName())
	}
	tb := target.base()
	if tb.e != m.e {
		contractPanic("TrySetActiveChild", "target %s belongs to another entity", tb.FullName())
	}
	return tb.id
}

func (m *Machine) trySet(op string, target StateID, check, silent bool) bool {
	g := m.e.graph
	if !g.isChild(m.id, target) {
		contractPanic(op, "state %d is not a child of %s", target, m.FullName())
	}
	if m.active == target {
		return true
	}
	if check && !m.e.canEnterFrom(target, m.active) {
		return false
	}
	m.switchTo(target, silent)
	return true
}

// switchTo exits the current child, assigns target and enters it. Hooks only run while
// the machine itself is active.
func (m *Machine) switchTo(target StateID, silent bool) {
	live := m.IsActive()
	prev := m.active
	if live && prev != NoState {
		m.e.exit(prev)
	}
	m.active = target
	if live {
		m.e.enter(target)
	}
	if silent {
		m.e.notify(m.id, prev, target)
		return
	}
	m.MarkNetUpdate()
	m.e.notify(m.id, prev, target)
}

// canEnterFrom evaluates target's CanEnter and CanTransitionFrom guards.
func (e *Entity) canEnterFrom(target, from StateID) bool {
	g := e.graph
	ts := e.states[target]
	if g.hookHas[hookCanEnter][target] && !ts.(EnterGuard).CanEnter() {
		return false
	}
	if g.hookHas[hookCanTransition][target] {
		var prev State
		if from != NoState {
			prev = e.states[from]
		}
		if !ts.(TransitionGuard).CanTransitionFrom(prev) {
			return false
		}
	}
	return true
}

// enter resets active time, runs OnEnter and then enters the active children.
func (e *Entity) enter(id StateID) {
	g := e.graph
	s := e.states[id]
	s.base().activeTime = 0
	if g.hookHas[hookEnter][id] {
		s.(Enterer).OnEnter()
	}
	switch g.kinds[id] {
	case kindMachine:
		m := s.(machiner).machine()
		if m.active == NoState && g.initial[id] != NoState {
			m.active = g.initial[id]
			m.MarkNetUpdate()
			e.notify(id, NoState, m.active)
		}
		if m.active != NoState {
			e.enter(m.active)
		}
	case kindConcurrent:
		for _, c := range g.hier[id].Children {
			e.enter(c)
		}
	}
}

// exit leaves the active children first, then runs OnExit.
func (e *Entity) exit(id StateID) {
	g := e.graph
	s := e.states[id]
	switch g.kinds[id] {
	case kindMachine:
		if a := s.(machiner).machine().active; a != NoState {
			e.exit(a)
		}
	case kindConcurrent:
		children := g.hier[id].Children
		for i := len(children) - 1; i >= 0; i-- {
			e.exit(children[i])
		}
	}
	if g.hookHas[hookExit][id] {
		s.(Exiter).OnExit()
	}
}
