package playerstate

import (
	"fmt"
	"reflect"
	"slices"
)

// Graph is the frozen product of Registry.Build. It is shared read-only by every entity
// instantiated from it.
type Graph struct {
	defs      []Definition
	templates []State
	kinds     []kind
	byName    map[string]StateID
	byType    map[reflect.Type]StateID

	hier     []Hierarchy
	initial  []StateID
	owner    []StateID
	roots    []StateID
	preorder []StateID
	prePos   []int

	// interruptKeys[m] lists the targets in m's interrupt table in declaration order.
	interruptKeys   [][]StateID
	interruptOwners []StateID

	hookNames []string
	hookImpl  [][]StateID
	hookHas   [][]bool
}

// Len returns the number of templates.
func (g *Graph) Len() int { return len(g.defs) }

// Definition returns the definition registered at id.
func (g *Graph) Definition(id StateID) (Definition, error) {
	if !g.valid(id) {
		return Definition{}, fmt.Errorf("%w: %d", ErrIndexRange, id)
	}
	return g.defs[id], nil
}

// Lookup resolves a full name to a template index.
func (g *Graph) Lookup(fullName string) (StateID, error) {
	id, ok := g.byName[fullName]
	if !ok {
		return NoState, fmt.Errorf("%w: %q", ErrUnknownTemplate, fullName)
	}
	return id, nil
}

// Hierarchy returns the hierarchy tables of id. The slices are shared and must not be
// modified.
func (g *Graph) Hierarchy(id StateID) (Hierarchy, error) {
	if !g.valid(id) {
		return Hierarchy{}, fmt.Errorf("%w: %d", ErrIndexRange, id)
	}
	return g.hier[id], nil
}

// Roots returns the templates without a parent, in index order.
func (g *Graph) Roots() []StateID { return slices.Clone(g.roots) }

// PreOrder returns every template depth-first: roots by index, children by declaration.
func (g *Graph) PreOrder() []StateID { return slices.Clone(g.preorder) }

// IsMachine reports whether id is an exclusive composite.
func (g *Graph) IsMachine(id StateID) bool { return g.valid(id) && g.kinds[id] == kindMachine }

// IsConcurrent reports whether id is a concurrent composite.
func (g *Graph) IsConcurrent(id StateID) bool { return g.valid(id) && g.kinds[id] == kindConcurrent }

// Initial returns the initial child of a machine, or NoState.
func (g *Graph) Initial(id StateID) StateID {
	if !g.valid(id) {
		return NoState
	}
	return g.initial[id]
}

// Owner returns the nearest GroupRoot ancestor of id, or NoState.
func (g *Graph) Owner(id StateID) StateID {
	if !g.valid(id) {
		return NoState
	}
	return g.owner[id]
}

// HookImplementors returns the implementors of the named hook, in pre-order.
func (g *Graph) HookImplementors(name string) []StateID {
	for h, n := range g.hookNames {
		if n == name {
			return slices.Clone(g.hookImpl[h])
		}
	}
	return nil
}

// Kind returns "leaf", "machine" or "concurrent".
func (g *Graph) Kind(id StateID) string {
	if !g.valid(id) {
		return ""
	}
	return g.kinds[id].String()
}

func (g *Graph) valid(id StateID) bool { return id >= 0 && int(id) < len(g.defs) }

func (g *Graph) isChild(parent, child StateID) bool {
	return g.valid(child) && g.hier[child].Parent == parent
}
