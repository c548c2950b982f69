package playerstate_test

import (
	"fmt"
	"strings"
	"testing"

	. "github.com/comalice/playerstate"
	"github.com/comalice/playerstate/wire"
)

// recorder is passed as the entity host so callbacks can log what ran.
type recorder struct {
	events []string
}

func (r *recorder) add(format string, args ...any) {
	r.events = append(r.events, fmt.Sprintf(format, args...))
}

func (r *recorder) reset() { r.events = nil }

func (r *recorder) String() string { return strings.Join(r.events, ",") }

func rec(s State) *recorder { return s.Entity().Host().(*recorder) }

// logged builds a data-driven node that records enter, exit, pre-update and update.
func logged(n *NodeBuilder, short string) *NodeBuilder {
	return n.
		OnEnter(func(s State) { rec(s).add("enter:%s", short) }).
		OnExit(func(s State) { rec(s).add("exit:%s", short) }).
		OnPreUpdate(func(s State) { rec(s).add("pre:%s", short) }).
		OnUpdate(func(s State) { rec(s).add("update:%s", short) })
}

func mustGraph(t *testing.T, b *GraphBuilder) *Graph {
	t.Helper()
	r := NewRegistry()
	if err := b.Register(r); err != nil {
		t.Fatalf("register: %v", err)
	}
	g, err := r.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return g
}

func mustEntity(t *testing.T, g *Graph, opts ...Option) (*Entity, *recorder) {
	t.Helper()
	r := &recorder{}
	e, err := g.Instantiate(r, opts...)
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}
	return e, r
}

func mustState(t *testing.T, e *Entity, name string) State {
	t.Helper()
	s, err := e.StateByName(name)
	if err != nil {
		t.Fatalf("state %s: %v", name, err)
	}
	return s
}

func mustMachine(t *testing.T, e *Entity, name string) *Machine {
	t.Helper()
	m := MachineOf(mustState(t, e, name))
	if m == nil {
		t.Fatalf("%s is not a machine", name)
	}
	return m
}

// scenarioGraph is Root -> {A, B}, A -> {A1, A2}, with B interruptible by A1.
func scenarioGraph(t *testing.T) *Graph {
	t.Helper()
	b := NewGraphBuilder("t")
	logged(b.Machine("Root").Children("A", "B"), "Root")
	logged(b.Machine("A").Children("A1", "A2"), "A")
	logged(b.Leaf("B").InterruptibleBy("A1"), "B")
	logged(b.Leaf("A1"), "A1")
	logged(b.Leaf("A2"), "A2")
	return mustGraph(t, b)
}

// Counter is a Go-typed leaf carrying a synced payload.
type Counter struct {
	Base
	Value int64
}

func (c *Counter) Bump() {
	c.Value++
	c.MarkNetUpdate()
}

func (c *Counter) NetSend(w *wire.Writer) { w.Varint(c.Value) }

func (c *Counter) NetReceive(r *wire.Reader) error {
	v := r.Varint()
	if err := r.Err(); err != nil {
		return err
	}
	c.Value = v
	return nil
}

func (c *Counter) SaveData() (Tag, error) {
	if c.Value == 0 {
		return nil, nil
	}
	return Tag{"value": c.Value}, nil
}

func (c *Counter) LoadData(t Tag) error {
	v, err := t.Int("value")
	if err != nil {
		return err
	}
	c.Value = v
	return nil
}

// Body is a Go-typed machine over two counters.
type Body struct {
	Machine
}

func (b *Body) DeclareChildren(d *Declarer) {
	d.Add("Left")
	d.Add("Right")
}

// counterGraph registers Body with Left and Right counters under mod.
func counterGraph(t *testing.T, order ...string) *Graph {
	t.Helper()
	r := NewRegistry()
	defs := map[string]Definition{
		"Body":  {Mod: "core", Name: "Body", New: func() State { return &Body{} }},
		"Left":  {Mod: "core", Name: "Left", New: func() State { return &Counter{} }},
		"Right": {Mod: "core", Name: "Right", New: func() State { return &Counter{} }},
	}
	if len(order) == 0 {
		order = []string{"Body", "Left", "Right"}
	}
	for _, name := range order {
		if _, err := r.Register(defs[name]); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}
	g, err := r.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return g
}
