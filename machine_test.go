package playerstate_test

import (
	"errors"
	"testing"

	. "github.com/comalice/playerstate"
)

// Scenario: Root -> {A, B}, A -> {A1, A2}; B interruptible by A1.
func TestScenarioEnterSwitchAndInterruptScope(t *testing.T) {
	g := scenarioGraph(t)
	e, r := mustEntity(t, g)

	e.Start()
	if got := r.String(); got != "enter:Root,enter:A,enter:A1" {
		t.Fatalf("unexpected enter order: %s", got)
	}
	root := mustMachine(t, e, "t/Root")
	a := mustMachine(t, e, "t/A")
	b := mustState(t, e, "t/B")
	a1 := mustState(t, e, "t/A1")
	if root.ActiveChild() != mustState(t, e, "t/A") {
		t.Fatal("Root should start in A")
	}
	if a.ActiveChild() != a1 {
		t.Fatal("A should start in A1")
	}

	r.reset()
	if !root.TrySetActiveChild(b, true) {
		t.Fatal("switch to B refused")
	}
	if got := r.String(); got != "exit:A1,exit:A,enter:B" {
		t.Fatalf("unexpected switch order: %s", got)
	}
	if a1.IsActive() || !b.IsActive() {
		t.Fatal("A1 must be inactive and B active after the switch")
	}

	// A1 is no longer active, so nothing may interrupt B.
	r.reset()
	e.Tick()
	if root.ActiveChild() != b {
		t.Fatal("B should still be active after one tick")
	}
	if got := r.String(); got != "pre:Root,pre:B,update:Root,update:B" {
		t.Fatalf("unexpected tick order: %s", got)
	}
}

func TestTrySetActiveChildNoOpWhenActive(t *testing.T) {
	e, r := mustEntity(t, scenarioGraph(t))
	e.Start()
	root := mustMachine(t, e, "t/Root")
	e.ClearNetUpdates()
	r.reset()
	if !root.TrySetActiveChild(mustState(t, e, "t/A"), true) {
		t.Fatal("re-activating the active child should succeed")
	}
	if len(r.events) != 0 {
		t.Fatalf("no hooks should run, got %s", r)
	}
	if root.NetUpdate() {
		t.Fatal("no-op switch must not mark dirty")
	}
}

func TestTrySetActiveChildGuards(t *testing.T) {
	allowB := false
	b := NewGraphBuilder("t")
	b.Machine("Root").Children("A", "B")
	b.Leaf("A")
	b.Leaf("B").Guard(func(State) bool { return allowB })
	g := mustGraph(t, b)
	e, _ := mustEntity(t, g)
	e.Start()
	root := mustMachine(t, e, "t/Root")
	target := mustState(t, e, "t/B")

	if root.TrySetActiveChild(target, true) {
		t.Fatal("guard should veto entering B")
	}
	if !root.TrySetActiveChild(target, false) {
		t.Fatal("unchecked switch should bypass the guard")
	}
	if root.ActiveChild() != target {
		t.Fatal("B should be active")
	}
}

// fromGuard refuses entry from one specific predecessor.
type fromGuard struct {
	Base
	refuse string
}

func (f *fromGuard) CanTransitionFrom(from State) bool {
	return from == nil || from.FullName() != f.refuse
}

type threeWay struct{ Machine }

func (m *threeWay) DeclareChildren(d *Declarer) { d.Add("A").Add("B").Add("C") }

func TestCanTransitionFrom(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(Definition{Mod: "t", Name: "Root", New: func() State { return &threeWay{} }})
	r.MustRegister(Definition{Mod: "t", Name: "A", New: func() State { return &Counter{} }})
	r.MustRegister(Definition{Mod: "t", Name: "B", New: func() State { return &Counter{} }})
	r.MustRegister(Definition{Mod: "t", Name: "C", New: func() State { return &fromGuard{refuse: "t/A"} }})
	g, err := r.Build()
	if err != nil {
		t.Fatal(err)
	}
	e, _ := mustEntity(t, g)
	e.Start()
	root := mustMachine(t, e, "t/Root")
	c := mustState(t, e, "t/C")
	if root.TrySetActiveChild(c, true) {
		t.Fatal("C refuses entry from A")
	}
	if !root.TrySetActiveChild(mustState(t, e, "t/B"), true) {
		t.Fatal("switch to B failed")
	}
	if !root.TrySetActiveChild(c, true) {
		t.Fatal("C accepts entry from B")
	}
}

func TestTrySetActiveChildNonChildPanics(t *testing.T) {
	e, _ := mustEntity(t, scenarioGraph(t))
	e.Start()
	root := mustMachine(t, e, "t/Root")
	defer func() {
		rv := recover()
		var ce *ContractError
		err, ok := rv.(error)
		if !ok || !errors.As(err, &ce) {
			t.Fatalf("expected *ContractError panic, got %v", rv)
		}
	}()
	root.TrySetActiveChild(mustState(t, e, "t/A1"), false)
}

func TestClearActiveChild(t *testing.T) {
	e, r := mustEntity(t, scenarioGraph(t))
	e.Start()
	a := mustMachine(t, e, "t/A")
	r.reset()
	a.ClearActiveChild()
	if got := r.String(); got != "exit:A1" {
		t.Fatalf("expected only A1 to exit, got %s", got)
	}
	if a.ActiveChildID() != NoState || a.ActiveChild() != nil {
		t.Fatal("A should have no active child")
	}
}

// Re-entering a machine resumes the child it had when it was left.
func TestReenterResumesActiveChild(t *testing.T) {
	e, r := mustEntity(t, scenarioGraph(t))
	e.Start()
	root := mustMachine(t, e, "t/Root")
	a := mustMachine(t, e, "t/A")
	a.TrySetActiveChild(mustState(t, e, "t/A2"), true)
	root.TrySetActiveChild(mustState(t, e, "t/B"), true)
	r.reset()
	root.TrySetActiveChild(mustState(t, e, "t/A"), true)
	if got := r.String(); got != "exit:B,enter:A,enter:A2" {
		t.Fatalf("unexpected re-enter order: %s", got)
	}
}

// Switching an inactive machine assigns the child without running hooks.
func TestSwitchInactiveMachineRunsNoHooks(t *testing.T) {
	e, r := mustEntity(t, scenarioGraph(t))
	e.Start()
	root := mustMachine(t, e, "t/Root")
	a := mustMachine(t, e, "t/A")
	root.TrySetActiveChild(mustState(t, e, "t/B"), true)
	r.reset()
	if !a.TrySetActiveChild(mustState(t, e, "t/A2"), true) {
		t.Fatal("switch refused")
	}
	if len(r.events) != 0 {
		t.Fatalf("inactive machine ran hooks: %s", r)
	}
	if a.ActiveChildID() != mustState(t, e, "t/A2").Index() {
		t.Fatal("A2 should be assigned")
	}
}

// Exclusive-child invariant: across many ticks and switches the active child is always
// none or one of the machine's children.
func TestExclusiveChildInvariant(t *testing.T) {
	b := NewGraphBuilder("t")
	b.Machine("Root").Children("A", "B", "C")
	step := 0
	flip := func(s State) {
		step++
		m := MachineOf(mustStateNoT(s.Entity(), "t/Root"))
		names := []string{"t/A", "t/B", "t/C"}
		m.TrySetActiveChild(mustStateNoT(s.Entity(), names[step%3]), true)
	}
	b.Leaf("A").OnPreUpdate(flip)
	b.Leaf("B").OnPreUpdate(flip)
	b.Leaf("C").OnPreUpdate(flip)
	g := mustGraph(t, b)
	e, _ := mustEntity(t, g)
	root := mustMachine(t, e, "t/Root")
	h, _ := g.Hierarchy(root.Index())
	for k := 0; k < 50; k++ {
		e.Tick()
		id := root.ActiveChildID()
		found := id == NoState
		for _, c := range h.Children {
			found = found || c == id
		}
		if !found {
			t.Fatalf("active child %d is not a child of Root", id)
		}
	}
	if step < 50 {
		t.Fatalf("expected a switch per tick, got %d", step)
	}
}

func mustStateNoT(e *Entity, name string) State {
	s, err := e.StateByName(name)
	if err != nil {
		panic(err)
	}
	return s
}

func TestConcurrentEnterExitOrder(t *testing.T) {
	b := NewGraphBuilder("t")
	logged(b.Machine("Root").Children("Both", "Idle"), "Root")
	logged(b.Concurrent("Both").Children("X", "Y"), "Both")
	logged(b.Leaf("X"), "X")
	logged(b.Leaf("Y"), "Y")
	logged(b.Leaf("Idle"), "Idle")
	e, r := mustEntity(t, mustGraph(t, b))
	e.Start()
	if got := r.String(); got != "enter:Root,enter:Both,enter:X,enter:Y" {
		t.Fatalf("unexpected enter order: %s", got)
	}
	r.reset()
	mustMachine(t, e, "t/Root").TrySetActiveChild(mustState(t, e, "t/Idle"), true)
	if got := r.String(); got != "exit:Y,exit:X,exit:Both,enter:Idle" {
		t.Fatalf("unexpected exit order: %s", got)
	}
}

// postCounter counts PostUpdate calls whether active or not.
type postCounter struct {
	Base
	posts int
}

func (p *postCounter) PostUpdate() { p.posts++ }

type postRoot struct{ Machine }

func (m *postRoot) DeclareChildren(d *Declarer) { d.Add("On").Add("Off") }

func TestPostUpdateRunsOnInactiveStates(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(Definition{Mod: "t", Name: "Root", New: func() State { return &postRoot{} }})
	r.MustRegister(Definition{Mod: "t", Name: "On", New: func() State { return &postCounter{} }})
	r.MustRegister(Definition{Mod: "t", Name: "Off", New: func() State { return &postCounter{} }})
	g, err := r.Build()
	if err != nil {
		t.Fatal(err)
	}
	e, _ := mustEntity(t, g)
	for k := 0; k < 3; k++ {
		e.Tick()
	}
	off := mustState(t, e, "t/Off").(*postCounter)
	on := mustState(t, e, "t/On").(*postCounter)
	if off.IsActive() {
		t.Fatal("Off should be inactive")
	}
	if off.posts != 3 || on.posts != 3 {
		t.Fatalf("expected 3 post updates each, got on=%d off=%d", on.posts, off.posts)
	}
	if got := g.HookImplementors("PostUpdate"); len(got) != 2 {
		t.Fatalf("expected 2 PostUpdate implementors, got %v", got)
	}
	if got := g.HookImplementors("PreUpdate"); len(got) != 0 {
		t.Fatalf("expected no PreUpdate implementors, got %v", got)
	}
}

func TestActiveTime(t *testing.T) {
	e, _ := mustEntity(t, scenarioGraph(t))
	for k := 0; k < 4; k++ {
		e.Tick()
	}
	a1 := mustState(t, e, "t/A1").(*DataLeaf)
	if a1.ActiveTime() != 4 {
		t.Fatalf("expected active time 4, got %d", a1.ActiveTime())
	}
	a := mustMachine(t, e, "t/A")
	a.TrySetActiveChild(mustState(t, e, "t/A2"), true)
	a.TrySetActiveChild(a1, true)
	if a1.ActiveTime() != 0 {
		t.Fatalf("re-entering must reset active time, got %d", a1.ActiveTime())
	}
	b := mustState(t, e, "t/B").(*DataLeaf)
	if b.ActiveTime() != 0 {
		t.Fatalf("inactive state accumulated time: %d", b.ActiveTime())
	}
}

func TestObserverSeesTransitions(t *testing.T) {
	var events []TransitionEvent
	e, _ := mustEntity(t, scenarioGraph(t), WithObserver(func(ev TransitionEvent) { events = append(events, ev) }))
	e.Start()
	if len(events) != 2 {
		t.Fatalf("expected initial-child events for Root and A, got %d", len(events))
	}
	root := mustMachine(t, e, "t/Root")
	root.TrySetActiveChild(mustState(t, e, "t/B"), true)
	last := events[len(events)-1]
	if last.Machine != root.Index() || last.To != mustState(t, e, "t/B").Index() {
		t.Fatalf("unexpected event %+v", last)
	}
}

type groupedRoot struct{ Machine }

func (g *groupedRoot) DeclareChildren(d *Declarer) { d.Add("Group").Add("Other") }

type group struct{ Machine }

func (g *group) DeclareChildren(d *Declarer) { d.Add("Member") }
func (g *group) GroupRoot() bool             { return true }

type member struct {
	Base
	updates int
}

func (m *member) Update() { m.updates++ }

func TestGroupOwnerGatesDispatch(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(Definition{Mod: "t", Name: "Root", New: func() State { return &groupedRoot{} }})
	r.MustRegister(Definition{Mod: "t", Name: "Group", New: func() State { return &group{} }})
	r.MustRegister(Definition{Mod: "t", Name: "Other", New: func() State { return &Counter{} }})
	r.MustRegister(Definition{Mod: "t", Name: "Member", New: func() State { return &member{} }})
	g, err := r.Build()
	if err != nil {
		t.Fatal(err)
	}
	groupID, _ := g.Lookup("t/Group")
	memberID, _ := g.Lookup("t/Member")
	if g.Owner(memberID) != groupID {
		t.Fatalf("expected Member owned by Group, got %d", g.Owner(memberID))
	}
	e, _ := mustEntity(t, g)
	e.Tick()
	m := mustState(t, e, "t/Member").(*member)
	if m.updates != 1 {
		t.Fatalf("expected 1 update, got %d", m.updates)
	}
	mustMachine(t, e, "t/Root").TrySetActiveChild(mustState(t, e, "t/Other"), true)
	e.Tick()
	if m.updates != 1 {
		t.Fatalf("member of inactive group updated: %d", m.updates)
	}
}

type tauntHook interface{ Taunt() string }

type taunter struct{ Base }

func (t *taunter) Taunt() string { return t.FullName() }

type tauntRoot struct{ Machine }

func (m *tauntRoot) DeclareChildren(d *Declarer) { d.Add("One").Add("Two") }

func TestCustomHookDispatch(t *testing.T) {
	r := NewRegistry()
	hook, err := NewHook[tauntHook](r, "Taunt")
	if err != nil {
		t.Fatal(err)
	}
	r.MustRegister(Definition{Mod: "t", Name: "Root", New: func() State { return &tauntRoot{} }})
	r.MustRegister(Definition{Mod: "t", Name: "One", New: func() State { return &taunter{} }})
	r.MustRegister(Definition{Mod: "t", Name: "Two", New: func() State { return &taunter{} }})
	g, err := r.Build()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewHook[tauntHook](r, "Late"); !errors.Is(err, ErrRegistryFrozen) {
		t.Fatalf("expected ErrRegistryFrozen, got %v", err)
	}
	if got := hook.Implementors(g); len(got) != 2 {
		t.Fatalf("expected 2 implementors, got %v", got)
	}
	e, _ := mustEntity(t, g)
	e.Start()
	var active, all []string
	hook.Dispatch(e, func(h tauntHook) { active = append(active, h.Taunt()) })
	hook.DispatchAll(e, func(h tauntHook) { all = append(all, h.Taunt()) })
	if len(active) != 1 || active[0] != "t/One" {
		t.Fatalf("expected only t/One active, got %v", active)
	}
	if len(all) != 2 {
		t.Fatalf("expected both implementors, got %v", all)
	}
}

func TestLookups(t *testing.T) {
	e, _ := mustEntity(t, counterGraph(t))
	if _, err := e.State(StateID(99)); !errors.Is(err, ErrIndexRange) {
		t.Fatalf("expected ErrIndexRange, got %v", err)
	}
	if _, err := e.StateByName("core/Nope"); !errors.Is(err, ErrUnknownTemplate) {
		t.Fatalf("expected ErrUnknownTemplate, got %v", err)
	}
	body, err := Get[*Body](e)
	if err != nil || body.FullName() != "core/Body" {
		t.Fatalf("Get[*Body]: %v %v", body, err)
	}
	if _, err := Get[*Counter](e); !errors.Is(err, ErrUnknownTemplate) {
		t.Fatalf("ambiguous type should not resolve, got %v", err)
	}
}
