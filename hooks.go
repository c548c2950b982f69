package playerstate

import (
	"fmt"
	"reflect"
)

type hookID int

const (
	hookInitialize hookID = iota
	hookEnter
	hookExit
	hookPreUpdate
	hookUpdate
	hookPostUpdate
	hookInterrupt
	hookCanEnter
	hookCanTransition
	hookLockable
	hookSave
	hookLoad
	hookNet
	hookAnimation
	hookAnimationOverride
	hookCooldown
)

type hookSpec struct {
	name       string
	implements func(State) bool
}

func implements[I any](s State) bool {
	_, ok := s.(I)
	return ok
}

var builtinHooks = []hookSpec{
	hookInitialize:        {"Initialize", implements[Initializer]},
	hookEnter:             {"OnEnter", implements[Enterer]},
	hookExit:              {"OnExit", implements[Exiter]},
	hookPreUpdate:         {"PreUpdate", implements[PreUpdater]},
	hookUpdate:            {"Update", implements[Updater]},
	hookPostUpdate:        {"PostUpdate", implements[PostUpdater]},
	hookInterrupt:         {"OnPreUpdateInterruptible", implements[Interruptor]},
	hookCanEnter:          {"CanEnter", implements[EnterGuard]},
	hookCanTransition:     {"CanTransitionFrom", implements[TransitionGuard]},
	hookLockable:          {"Locked", implements[Lockable]},
	hookSave:              {"SaveData", implements[Saver]},
	hookLoad:              {"LoadData", implements[Loader]},
	hookNet:               {"NetSend", implements[NetSerializer]},
	hookAnimation:         {"AnimationOptions", implements[AnimationProvider]},
	hookAnimationOverride: {"OverrideChildAnimation", implements[AnimationOverride]},
	hookCooldown:          {"tickCooldown", implements[cooldowner]},
}

// hookFilter is implemented by state types that satisfy every built-in hook interface
// but only act on some of them. A template reporting false for a hook is left out of
// its implementor list.
type hookFilter interface {
	overrides(h hookID) bool
}

func overrides(s State, h hookID) bool {
	if h >= hookID(len(builtinHooks)) {
		return true
	}
	f, ok := s.(hookFilter)
	return !ok || f.overrides(h)
}

// buildHooks asserts every hook interface against every template once. Implementor lists
// follow the graph pre-order so a flat walk visits parents before children.
func buildHooks(r *Registry, g *Graph) {
	g.hookNames = make([]string, len(r.hooks))
	g.hookImpl = make([][]StateID, len(r.hooks))
	g.hookHas = make([][]bool, len(r.hooks))
	for h, spec := range r.hooks {
		g.hookNames[h] = spec.name
		has := make([]bool, len(g.templates))
		for _, id := range g.preorder {
			if t := g.templates[id]; spec.implements(t) && overrides(t, hookID(h)) {
				has[id] = true
				g.hookImpl[h] = append(g.hookImpl[h], id)
			}
		}
		g.hookHas[h] = has
	}
}

// Hook is a game-defined hook: an interface I that some state types implement. It is
// created on a registry before Build and dispatched on any entity of the built graph.
type Hook[I any] struct {
	id   hookID
	name string
}

// NewHook defines a hook for interface type I.
func NewHook[I any](r *Registry, name string) (*Hook[I], error) {
	if r.frozen {
		return nil, &BuildError{Op: "hooks", Template: name, Err: ErrRegistryFrozen}
	}
	if reflect.TypeOf((*I)(nil)).Elem().Kind() != reflect.Interface {
		return nil, &BuildError{Op: "hooks", Template: name,
			Err: fmt.Errorf("%w: %v is not an interface", ErrInvalidDefinition, reflect.TypeOf((*I)(nil)).Elem())}
	}
	h := &Hook[I]{id: hookID(len(r.hooks)), name: name}
	r.hooks = append(r.hooks, hookSpec{name: name, implements: implements[I]})
	return h, nil
}

// Name returns the hook name.
func (h *Hook[I]) Name() string { return h.name }

// Implementors returns the templates implementing the hook, in pre-order.
func (h *Hook[I]) Implementors(g *Graph) []StateID {
	if int(h.id) >= len(g.hookImpl) {
		return nil
	}
	return append([]StateID(nil), g.hookImpl[h.id]...)
}

// Dispatch calls fn on every implementor of the hook that is currently active.
func (h *Hook[I]) Dispatch(e *Entity, fn func(I)) {
	impl := e.hookList(h.id, h.name)
	for _, id := range impl {
		if e.enabled(id) {
			fn(e.states[id].(I))
		}
	}
}

// DispatchAll calls fn on every implementor of the hook, active or not.
func (h *Hook[I]) DispatchAll(e *Entity, fn func(I)) {
	for _, id := range e.hookList(h.id, h.name) {
		fn(e.states[id].(I))
	}
}

func (e *Entity) hookList(h hookID, name string) []StateID {
	if int(h) >= len(e.graph.hookImpl) || e.graph.hookNames[h] != name {
		contractPanic("Dispatch", "hook %q is not defined on this graph", name)
	}
	return e.graph.hookImpl[h]
}

// enabled is the runtime dispatch predicate: the owning group must be active, then the
// instance itself.
func (e *Entity) enabled(id StateID) bool {
	if o := e.graph.owner[id]; o != NoState && !e.states[o].base().IsActive() {
		return false
	}
	return e.states[id].base().IsActive()
}
