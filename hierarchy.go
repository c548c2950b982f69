package playerstate

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
)

// Hierarchy is the precomputed position of one template in the state graph.
type Hierarchy struct {
	Parent StateID
	// Ancestors are ordered nearest first.
	Ancestors []StateID
	// Children are in declaration order; the first is the default initial child.
	Children []StateID
	// Descendants are transitive and exclude direct children.
	Descendants []StateID
	// Interrupts is only populated on the lowest exclusive ancestor shared by an
	// interrupter and its target. Keyed by target; interrupters in registration order.
	Interrupts      map[StateID][]StateID
	InterruptibleBy []StateID
}

// Declarer collects the templates returned by the DeclareChildren and
// DeclareInterruptibleBy callbacks.
type Declarer struct {
	r       *Registry
	from    StateID
	out     []StateID
	initial StateID
	err     error
}

func newDeclarer(r *Registry, from StateID) *Declarer {
	return &Declarer{r: r, from: from, initial: NoState}
}

// Add declares a template by name. A bare name resolves within the declaring template's
// mod; "mod/Name" addresses another mod.
func (d *Declarer) Add(name string) *Declarer {
	if d.err != nil {
		return d
	}
	full := name
	if !strings.Contains(name, "/") {
		full = d.r.defs[d.from].Mod + "/" + name
	}
	id, ok := d.r.byName[full]
	if !ok {
		d.err = fmt.Errorf("%w: %q", ErrUnknownTemplate, full)
		return d
	}
	d.out = append(d.out, id)
	return d
}

// AddInitial declares a child and marks it as the machine's initial child.
func (d *Declarer) AddInitial(name string) *Declarer {
	d.Add(name)
	if d.err == nil {
		d.initial = d.out[len(d.out)-1]
	}
	return d
}

// AddID declares a template by index.
func (d *Declarer) AddID(id StateID) *Declarer {
	if d.err != nil {
		return d
	}
	if id < 0 || int(id) >= len(d.r.defs) {
		d.err = fmt.Errorf("%w: %d", ErrIndexRange, id)
		return d
	}
	d.out = append(d.out, id)
	return d
}

// DeclareType declares the template registered for Go type T.
func DeclareType[T State](d *Declarer) {
	if d.err != nil {
		return
	}
	typ := reflect.TypeOf((*T)(nil)).Elem()
	if d.r.ambiguous[typ] {
		d.err = fmt.Errorf("%w: %v", ErrAmbiguousType, typ)
		return
	}
	id, ok := d.r.byType[typ]
	if !ok {
		d.err = fmt.Errorf("%w: %v", ErrUnknownTemplate, typ)
		return
	}
	d.out = append(d.out, id)
}

func buildHierarchy(r *Registry, g *Graph) error {
	n := len(g.defs)
	g.hier = make([]Hierarchy, n)
	g.initial = make([]StateID, n)
	for i := range g.hier {
		g.hier[i].Parent = NoState
		g.initial[i] = NoState
	}

	for i, tmpl := range g.templates {
		id := StateID(i)
		cd, ok := tmpl.(ChildrenDeclarer)
		if !ok {
			continue
		}
		d := newDeclarer(r, id)
		cd.DeclareChildren(d)
		if d.err != nil {
			return &BuildError{Op: "children", Template: g.defs[id].FullName(), Err: d.err}
		}
		if len(d.out) > 0 && g.kinds[id] == kindLeaf {
			return &BuildError{Op: "children", Template: g.defs[id].FullName(), Err: ErrNotComposite}
		}
		for _, c := range d.out {
			if c == id {
				return &BuildError{Op: "children", Template: g.defs[id].FullName(), Other: g.defs[c].FullName(), Err: ErrCycle}
			}
			if p := g.hier[c].Parent; p != NoState {
				return &BuildError{Op: "children", Template: g.defs[id].FullName(), Other: g.defs[c].FullName(),
					Err: fmt.Errorf("%w: %s", ErrDuplicateParent, g.defs[p].FullName())}
			}
			g.hier[c].Parent = id
			g.hier[id].Children = append(g.hier[id].Children, c)
		}
		if g.kinds[id] == kindMachine && len(d.out) > 0 {
			g.initial[id] = d.out[0]
			if d.initial != NoState {
				g.initial[id] = d.initial
			}
		}
	}

	for i := range g.hier {
		var anc []StateID
		for p := g.hier[i].Parent; p != NoState; p = g.hier[p].Parent {
			if len(anc) >= n {
				return &BuildError{Op: "children", Template: g.defs[i].FullName(), Err: ErrCycle}
			}
			anc = append(anc, p)
		}
		g.hier[i].Ancestors = anc
	}

	for t := range g.hier {
		tid := StateID(t)
		for u := range g.hier {
			if g.hier[u].Parent != tid && slices.Contains(g.hier[u].Ancestors, tid) {
				g.hier[t].Descendants = append(g.hier[t].Descendants, StateID(u))
			}
		}
	}

	g.owner = make([]StateID, n)
	for i := range g.hier {
		g.owner[i] = NoState
		for _, a := range g.hier[i].Ancestors {
			if gr, ok := g.templates[a].(GroupRoot); ok && gr.GroupRoot() {
				g.owner[i] = a
				break
			}
		}
	}
	return nil
}

// buildOrder computes roots and the depth-first pre-order used by hook dispatch and
// full sync.
func buildOrder(g *Graph) {
	g.roots = g.roots[:0]
	for i := range g.hier {
		if g.hier[i].Parent == NoState {
			g.roots = append(g.roots, StateID(i))
		}
	}
	g.preorder = make([]StateID, 0, len(g.hier))
	var walk func(StateID)
	walk = func(id StateID) {
		g.preorder = append(g.preorder, id)
		for _, c := range g.hier[id].Children {
			walk(c)
		}
	}
	for _, r := range g.roots {
		walk(r)
	}
	g.prePos = make([]int, len(g.hier))
	for pos, id := range g.preorder {
		g.prePos[id] = pos
	}
}

func buildInterrupts(r *Registry, g *Graph) error {
	g.interruptKeys = make([][]StateID, len(g.hier))
	for i, tmpl := range g.templates {
		target := StateID(i)
		idc, ok := tmpl.(InterruptDeclarer)
		if !ok {
			continue
		}
		d := newDeclarer(r, target)
		idc.DeclareInterruptibleBy(d)
		if d.err != nil {
			return &BuildError{Op: "interrupts", Template: g.defs[target].FullName(), Err: d.err}
		}
		for _, x := range d.out {
			if x == target || slices.Contains(g.hier[x].Ancestors, target) || slices.Contains(g.hier[target].Ancestors, x) {
				return &BuildError{Op: "interrupts", Template: g.defs[target].FullName(), Other: g.defs[x].FullName(), Err: ErrInterruptLineage}
			}
			lca := lowestExclusiveAncestor(g, x, target)
			if lca == NoState {
				return &BuildError{Op: "interrupts", Template: g.defs[target].FullName(), Other: g.defs[x].FullName(), Err: ErrNoCommonAncestor}
			}
			h := &g.hier[lca]
			if h.Interrupts == nil {
				h.Interrupts = make(map[StateID][]StateID)
			}
			list, seen := h.Interrupts[target]
			if slices.Contains(list, x) {
				return &BuildError{Op: "interrupts", Template: g.defs[target].FullName(), Other: g.defs[x].FullName(), Err: ErrDuplicateInterrupt}
			}
			if !seen {
				g.interruptKeys[lca] = append(g.interruptKeys[lca], target)
			}
			h.Interrupts[target] = append(list, x)
			g.hier[target].InterruptibleBy = append(g.hier[target].InterruptibleBy, x)
		}
	}

	g.interruptOwners = g.interruptOwners[:0]
	for _, id := range g.preorder {
		if len(g.interruptKeys[id]) > 0 {
			g.interruptOwners = append(g.interruptOwners, id)
		}
	}
	return nil
}

// lowestExclusiveAncestor returns the lowest common ancestor of a and b when it is a
// Machine. A pair meeting first at a Concurrent sits in sibling regions, where switching
// an outer machine can never replace the target, so it has no exclusive ancestor.
func lowestExclusiveAncestor(g *Graph, a, b StateID) StateID {
	for _, anc := range g.hier[a].Ancestors {
		if slices.Contains(g.hier[b].Ancestors, anc) {
			if g.kinds[anc] != kindMachine {
				return NoState
			}
			return anc
		}
	}
	return NoState
}
