package playerstate

import (
	"fmt"
	"log/slog"
	"reflect"

	"github.com/comalice/playerstate/wire"
)

// EntityRef identifies an entity on the wire and inside a World.
type EntityRef uint32

// TransitionEvent describes one active-child change of a machine.
type TransitionEvent struct {
	Entity  EntityRef
	Machine StateID
	From    StateID
	To      StateID
	Tick    uint64
}

// Entity owns one live instance per template of its graph. It must only be used from
// the goroutine that ticks it.
type Entity struct {
	graph     *Graph
	ref       EntityRef
	host      any
	states    []State
	authority bool
	observer  func(TransitionEvent)
	logger    *slog.Logger

	started bool
	tick    uint64

	table   *NetTable
	byNet   []StateID
	applied []StateID
	payload *wire.Writer

	unloaded []SavedState
}

type resetter interface {
	reset(e *Entity, self State, id StateID)
}

// Instantiate creates a fresh entity. Every template's New is called once and the
// instances are wired to their parents and group owners.
func (g *Graph) Instantiate(host any, opts ...Option) (*Entity, error) {
	o := applyOptions(opts)
	e := &Entity{
		graph:     g,
		ref:       o.ref,
		host:      host,
		states:    make([]State, len(g.defs)),
		authority: o.authority,
		observer:  o.observer,
		logger:    o.logger,
	}
	for i, def := range g.defs {
		s := def.New()
		if s == nil || reflect.TypeOf(s) != reflect.TypeOf(g.templates[i]) {
			return nil, fmt.Errorf("instantiate %s: %w: New returned %T, template is %T",
				def.FullName(), ErrInvalidDefinition, s, g.templates[i])
		}
		e.states[i] = s
	}
	for i, s := range e.states {
		rs, ok := s.(resetter)
		if !ok {
			return nil, fmt.Errorf("instantiate %s: %w", g.defs[i].FullName(), ErrInvalidDefinition)
		}
		rs.reset(e, s, StateID(i))
	}
	return e, nil
}

// Ref returns the entity reference.
func (e *Entity) Ref() EntityRef { return e.ref }

// Host returns the value passed to Instantiate, typically the game-side player.
func (e *Entity) Host() any { return e.host }

// Graph returns the graph the entity was instantiated from.
func (e *Entity) Graph() *Graph { return e.graph }

// Authority reports whether local changes are flagged for network sync.
func (e *Entity) Authority() bool { return e.authority }

// SetAuthority changes the local-authority flag.
func (e *Entity) SetAuthority(authoritative bool) { e.authority = authoritative }

// Started reports whether Start has run.
func (e *Entity) Started() bool { return e.started }

// TickCount returns the number of completed ticks.
func (e *Entity) TickCount() uint64 { return e.tick }

// Len returns the number of instances.
func (e *Entity) Len() int { return len(e.states) }

// State returns the instance of template id.
func (e *Entity) State(id StateID) (State, error) {
	if !e.graph.valid(id) {
		return nil, fmt.Errorf("%w: %d", ErrIndexRange, id)
	}
	return e.states[id], nil
}

// StateByName returns the instance of the template with the given full name.
func (e *Entity) StateByName(fullName string) (State, error) {
	id, err := e.graph.Lookup(fullName)
	if err != nil {
		return nil, err
	}
	return e.states[id], nil
}

// Get returns the instance whose Go type is T.
func Get[T State](e *Entity) (T, error) {
	var zero T
	typ := reflect.TypeOf((*T)(nil)).Elem()
	id, ok := e.graph.byType[typ]
	if !ok {
		return zero, fmt.Errorf("%w: %v", ErrUnknownTemplate, typ)
	}
	return e.states[id].(T), nil
}

// MustGet is Get for types known to be registered; it panics with a *ContractError
// otherwise.
func MustGet[T State](e *Entity) T {
	s, err := Get[T](e)
	if err != nil {
		contractPanic("MustGet", "%v", err)
	}
	return s
}

// Start runs Initialize on every implementor, then enters every root.
func (e *Entity) Start() {
	if e.started {
		return
	}
	e.started = true
	g := e.graph
	for _, id := range g.hookImpl[hookInitialize] {
		e.states[id].(Initializer).Initialize()
	}
	for _, r := range g.roots {
		e.enter(r)
	}
}

// Stop exits every root in reverse order. The entity may be started again.
func (e *Entity) Stop() {
	if !e.started {
		return
	}
	roots := e.graph.roots
	for i := len(roots) - 1; i >= 0; i-- {
		e.exit(roots[i])
	}
	e.started = false
}

// Tick advances the entity by one step: interrupts, PreUpdate, Update, PostUpdate,
// active time and cooldowns. It starts the entity first if needed.
func (e *Entity) Tick() {
	if !e.started {
		e.Start()
	}
	g := e.graph
	e.tick++

	e.runInterrupts()
	for _, id := range g.hookImpl[hookPreUpdate] {
		if e.enabled(id) {
			e.states[id].(PreUpdater).PreUpdate()
		}
	}
	for _, id := range g.hookImpl[hookUpdate] {
		if e.enabled(id) {
			e.states[id].(Updater).Update()
		}
	}
	for _, id := range g.hookImpl[hookPostUpdate] {
		e.states[id].(PostUpdater).PostUpdate()
	}
	for _, r := range g.roots {
		e.walkActive(r, func(b *Base) { b.activeTime++ })
	}
	for _, id := range g.hookImpl[hookCooldown] {
		e.states[id].(cooldowner).ability().tickCooldown()
	}
}

// walkActive visits id and its active descendants, parents first.
func (e *Entity) walkActive(id StateID, fn func(*Base)) {
	s := e.states[id]
	fn(s.base())
	g := e.graph
	switch g.kinds[id] {
	case kindMachine:
		if a := s.(machiner).machine().active; a != NoState {
			e.walkActive(a, fn)
		}
	case kindConcurrent:
		for _, c := range g.hier[id].Children {
			e.walkActive(c, fn)
		}
	}
}

// ActiveStates returns the active instances in pre-order.
func (e *Entity) ActiveStates() []State {
	var out []State
	for _, r := range e.graph.roots {
		e.walkActive(r, func(b *Base) { out = append(out, b.self) })
	}
	return out
}

// runInterrupts evaluates every interrupt table of an active machine, outermost first.
func (e *Entity) runInterrupts() {
	g := e.graph
	for _, owner := range g.interruptOwners {
		if !e.states[owner].base().IsActive() {
			continue
		}
	targets:
		for _, target := range g.interruptKeys[owner] {
			ts := e.states[target]
			if !ts.base().IsActive() {
				continue
			}
			for _, x := range g.hier[owner].Interrupts[target] {
				if !g.hookHas[hookInterrupt][x] {
					continue
				}
				xs := e.states[x]
				if g.hookHas[hookLockable][x] && xs.(Lockable).Locked() {
					continue
				}
				if xs.base().IsActive() {
					continue
				}
				if !xs.(Interruptor).OnPreUpdateInterruptible(ts) {
					continue
				}
				if g.hookHas[hookCanEnter][x] && !xs.(EnterGuard).CanEnter() {
					continue
				}
				e.interruptTo(owner, x)
				break targets
			}
		}
	}
}

// interruptTo points every machine between x and owner at x's branch. Machines that are
// not active are assigned without hooks; the first active one switches normally, which
// exits the interrupted branch and enters the new one.
func (e *Entity) interruptTo(owner, x StateID) {
	g := e.graph
	child := x
	for p := g.hier[x].Parent; p != NoState; p = g.hier[p].Parent {
		if g.kinds[p] == kindMachine {
			m := e.states[p].(machiner).machine()
			if m.active != child {
				if m.IsActive() {
					m.switchTo(child, false)
				} else {
					prev := m.active
					m.active = child
					m.MarkNetUpdate()
					e.notify(p, prev, child)
				}
			}
		}
		if p == owner {
			return
		}
		child = p
	}
}

func (e *Entity) notify(machine, from, to StateID) {
	if e.observer == nil {
		return
	}
	e.observer(TransitionEvent{Entity: e.ref, Machine: machine, From: from, To: to, Tick: e.tick})
}
