package playerstate

import (
	"errors"
	"fmt"
	"slices"
)

// NodeKind selects the runtime type of a data-driven state.
type NodeKind string

const (
	LeafNode       NodeKind = "leaf"
	MachineNode    NodeKind = "machine"
	ConcurrentNode NodeKind = "concurrent"
	AbilityNode    NodeKind = "ability"
)

// NodeSpec describes a state without Go code of its own. Content manifests decode into it.
type NodeSpec struct {
	Mod             string            `yaml:"mod,omitempty" toml:"mod"`
	Name            string            `yaml:"name" toml:"name"`
	Kind            NodeKind          `yaml:"kind" toml:"kind"`
	Children        []string          `yaml:"children,omitempty" toml:"children"`
	Initial         string            `yaml:"initial,omitempty" toml:"initial"`
	InterruptibleBy []string          `yaml:"interruptible_by,omitempty" toml:"interruptible_by"`
	Group           bool              `yaml:"group,omitempty" toml:"group"`
	Animation       *AnimationOptions `yaml:"animation,omitempty" toml:"animation"`
	// OverrideAnimation makes a composite answer the animation query itself.
	OverrideAnimation bool           `yaml:"override_animation,omitempty" toml:"override_animation"`
	Level             uint32         `yaml:"level,omitempty" toml:"level"`
	Cooldown          uint32         `yaml:"cooldown,omitempty" toml:"cooldown"`
	Vars              map[string]any `yaml:"vars,omitempty" toml:"vars"`
}

// Callbacks attached to data-driven states. s is the state the callback belongs to.
type (
	NodeFunc      func(s State)
	GuardFunc     func(s State) bool
	InterruptFunc func(s, target State) bool
)

type nodeHooks struct {
	enter, exit, preUpdate, update NodeFunc
	guard                          GuardFunc
	interrupt                      InterruptFunc
}

// nodeData is the behavior shared by every data-driven state type.
type nodeData struct {
	spec  *NodeSpec
	hooks *nodeHooks
	state State
	// Vars holds per-entity variables seeded from NodeSpec.Vars. They are saved, not synced.
	Vars Tag
}

func (n *nodeData) DeclareChildren(d *Declarer) {
	for _, c := range n.spec.Children {
		if c == n.spec.Initial {
			d.AddInitial(c)
		} else {
			d.Add(c)
		}
	}
}

func (n *nodeData) DeclareInterruptibleBy(d *Declarer) {
	for _, x := range n.spec.InterruptibleBy {
		d.Add(x)
	}
}

func (n *nodeData) GroupRoot() bool { return n.spec.Group }

func (n *nodeData) AnimationOptions() (AnimationOptions, bool) {
	if n.spec.Animation == nil {
		return AnimationOptions{}, false
	}
	return *n.spec.Animation, true
}

func (n *nodeData) OverrideChildAnimation() bool { return n.spec.OverrideAnimation }

func (n *nodeData) OnEnter() {
	if n.hooks.enter != nil {
		n.hooks.enter(n.state)
	}
}

func (n *nodeData) OnExit() {
	if n.hooks.exit != nil {
		n.hooks.exit(n.state)
	}
}

func (n *nodeData) PreUpdate() {
	if n.hooks.preUpdate != nil {
		n.hooks.preUpdate(n.state)
	}
}

func (n *nodeData) Update() {
	if n.hooks.update != nil {
		n.hooks.update(n.state)
	}
}

func (n *nodeData) OnPreUpdateInterruptible(target State) bool {
	return n.hooks.interrupt != nil && n.hooks.interrupt(n.state, target)
}

func (n *nodeData) overrides(h hookID) bool {
	switch h {
	case hookEnter:
		return n.hooks.enter != nil
	case hookExit:
		return n.hooks.exit != nil
	case hookPreUpdate:
		return n.hooks.preUpdate != nil
	case hookUpdate:
		return n.hooks.update != nil
	case hookInterrupt:
		return n.hooks.interrupt != nil
	case hookCanEnter:
		// Abilities keep their cooldown and level checks.
		return n.hooks.guard != nil || n.spec.Kind == AbilityNode
	case hookAnimation:
		return n.spec.Animation != nil
	case hookAnimationOverride:
		return n.spec.OverrideAnimation
	}
	return true
}

func (n *nodeData) allowed() bool {
	return n.hooks.guard == nil || n.hooks.guard(n.state)
}

func (n *nodeData) saveVars() (Tag, error) {
	if len(n.Vars) == 0 {
		return nil, nil
	}
	return Tag{"vars": n.Vars.Clone()}, nil
}

func (n *nodeData) loadVars(t Tag) error {
	if !t.Has("vars") {
		return nil
	}
	vars, err := t.Sub("vars")
	if err != nil {
		return err
	}
	n.Vars = vars.Clone()
	return nil
}

// DataLeaf is a data-driven leaf.
type DataLeaf struct {
	Base
	nodeData
}

func (l *DataLeaf) CanEnter() bool         { return l.allowed() }
func (l *DataLeaf) SaveData() (Tag, error) { return l.saveVars() }
func (l *DataLeaf) LoadData(t Tag) error   { return l.loadVars(t) }

// DataMachine is a data-driven exclusive composite.
type DataMachine struct {
	Machine
	nodeData
}

func (m *DataMachine) CanEnter() bool         { return m.allowed() }
func (m *DataMachine) SaveData() (Tag, error) { return m.saveVars() }
func (m *DataMachine) LoadData(t Tag) error   { return m.loadVars(t) }

// DataConcurrent is a data-driven concurrent composite.
type DataConcurrent struct {
	Concurrent
	nodeData
}

func (c *DataConcurrent) CanEnter() bool         { return c.allowed() }
func (c *DataConcurrent) SaveData() (Tag, error) { return c.saveVars() }
func (c *DataConcurrent) LoadData(t Tag) error   { return c.loadVars(t) }

// DataAbility is a data-driven ability.
type DataAbility struct {
	Ability
	nodeData
}

func (a *DataAbility) CanEnter() bool { return a.Ability.CanEnter() && a.allowed() }

func (a *DataAbility) SaveData() (Tag, error) {
	t, err := a.Ability.SaveData()
	if err != nil {
		return nil, err
	}
	if len(a.Vars) > 0 {
		t["vars"] = a.Vars.Clone()
	}
	return t, nil
}

func (a *DataAbility) LoadData(t Tag) error {
	return errors.Join(a.Ability.LoadData(t), a.loadVars(t))
}

// GraphBuilder registers data-driven states. Names are resolved within the builder's
// mod unless written as "mod/name".
type GraphBuilder struct {
	mod   string
	nodes []*NodeBuilder
	names map[string]bool
	errs  []error
}

// NodeBuilder configures one node of a GraphBuilder.
type NodeBuilder struct {
	spec  NodeSpec
	hooks nodeHooks
}

// NewGraphBuilder creates a builder whose nodes default to mod.
func NewGraphBuilder(mod string) *GraphBuilder {
	return &GraphBuilder{mod: mod, names: make(map[string]bool)}
}

// Leaf adds a leaf node.
func (b *GraphBuilder) Leaf(name string) *NodeBuilder { return b.Node(NodeSpec{Name: name, Kind: LeafNode}) }

// Machine adds an exclusive composite node.
func (b *GraphBuilder) Machine(name string) *NodeBuilder {
	return b.Node(NodeSpec{Name: name, Kind: MachineNode})
}

// Concurrent adds a concurrent composite node.
func (b *GraphBuilder) Concurrent(name string) *NodeBuilder {
	return b.Node(NodeSpec{Name: name, Kind: ConcurrentNode})
}

// Ability adds an ability node, unlocked at level 1.
func (b *GraphBuilder) Ability(name string) *NodeBuilder {
	return b.Node(NodeSpec{Name: name, Kind: AbilityNode, Level: 1})
}

// Node adds a node from a complete spec.
func (b *GraphBuilder) Node(spec NodeSpec) *NodeBuilder {
	if spec.Mod == "" {
		spec.Mod = b.mod
	}
	if spec.Kind == "" {
		spec.Kind = LeafNode
	}
	full := spec.Mod + "/" + spec.Name
	if b.names[full] {
		b.errs = append(b.errs, fmt.Errorf("%w: %s", ErrDuplicateTemplate, full))
	}
	b.names[full] = true
	nb := &NodeBuilder{spec: spec}
	b.nodes = append(b.nodes, nb)
	return nb
}

// Specs returns the node specs in insertion order.
func (b *GraphBuilder) Specs() []NodeSpec {
	out := make([]NodeSpec, len(b.nodes))
	for i, n := range b.nodes {
		out[i] = n.spec
	}
	return out
}

// Register adds every node to r in insertion order.
func (b *GraphBuilder) Register(r *Registry) error {
	if len(b.errs) > 0 {
		return errors.Join(b.errs...)
	}
	for _, n := range b.nodes {
		if n.spec.Initial != "" && !slices.Contains(n.spec.Children, n.spec.Initial) {
			return &BuildError{Op: "register", Template: n.spec.Mod + "/" + n.spec.Name, Other: n.spec.Initial,
				Err: fmt.Errorf("%w: initial state is not a declared child", ErrInvalidDefinition)}
		}
		newFn, err := n.factory()
		if err != nil {
			return &BuildError{Op: "register", Template: n.spec.Mod + "/" + n.spec.Name, Err: err}
		}
		if _, err := r.Register(Definition{Mod: n.spec.Mod, Name: n.spec.Name, New: newFn}); err != nil {
			return err
		}
	}
	return nil
}

func (n *NodeBuilder) factory() (func() State, error) {
	spec := n.spec
	hooks := n.hooks
	data := func(self State) nodeData {
		return nodeData{spec: &spec, hooks: &hooks, state: self, Vars: Tag(spec.Vars).Clone()}
	}
	switch spec.Kind {
	case LeafNode:
		return func() State {
			s := &DataLeaf{}
			s.nodeData = data(s)
			return s
		}, nil
	case MachineNode:
		return func() State {
			s := &DataMachine{}
			s.nodeData = data(s)
			return s
		}, nil
	case ConcurrentNode:
		return func() State {
			s := &DataConcurrent{}
			s.nodeData = data(s)
			return s
		}, nil
	case AbilityNode:
		return func() State {
			s := &DataAbility{}
			s.nodeData = data(s)
			s.Level = spec.Level
			s.MaxCooldown = spec.Cooldown
			return s
		}, nil
	default:
		return nil, fmt.Errorf("%w: kind %q", ErrInvalidDefinition, spec.Kind)
	}
}

// Children declares child names in order. The first is the initial child unless Initial
// names another.
func (n *NodeBuilder) Children(names ...string) *NodeBuilder {
	n.spec.Children = append(n.spec.Children, names...)
	return n
}

// Initial selects the initial child of a machine.
func (n *NodeBuilder) Initial(name string) *NodeBuilder {
	n.spec.Initial = name
	return n
}

// InterruptibleBy declares states that may interrupt this one.
func (n *NodeBuilder) InterruptibleBy(names ...string) *NodeBuilder {
	n.spec.InterruptibleBy = append(n.spec.InterruptibleBy, names...)
	return n
}

// Group marks the node as a group root.
func (n *NodeBuilder) Group() *NodeBuilder {
	n.spec.Group = true
	return n
}

// Animation sets the options answered by the animation query.
func (n *NodeBuilder) Animation(opts AnimationOptions) *NodeBuilder {
	n.spec.Animation = &opts
	return n
}

// OverrideAnimation makes a composite answer with its own animation.
func (n *NodeBuilder) OverrideAnimation() *NodeBuilder {
	n.spec.OverrideAnimation = true
	return n
}

// Level sets an ability's starting level.
func (n *NodeBuilder) Level(level uint32) *NodeBuilder {
	n.spec.Level = level
	return n
}

// Cooldown sets an ability's cooldown in ticks.
func (n *NodeBuilder) Cooldown(ticks uint32) *NodeBuilder {
	n.spec.Cooldown = ticks
	return n
}

// Var seeds a per-entity variable.
func (n *NodeBuilder) Var(key string, value any) *NodeBuilder {
	if n.spec.Vars == nil {
		n.spec.Vars = make(map[string]any)
	}
	n.spec.Vars[key] = value
	return n
}

func (n *NodeBuilder) OnEnter(fn NodeFunc) *NodeBuilder {
	n.hooks.enter = fn
	return n
}

func (n *NodeBuilder) OnExit(fn NodeFunc) *NodeBuilder {
	n.hooks.exit = fn
	return n
}

func (n *NodeBuilder) OnPreUpdate(fn NodeFunc) *NodeBuilder {
	n.hooks.preUpdate = fn
	return n
}

func (n *NodeBuilder) OnUpdate(fn NodeFunc) *NodeBuilder {
	n.hooks.update = fn
	return n
}

// Guard vetoes entering the node.
func (n *NodeBuilder) Guard(fn GuardFunc) *NodeBuilder {
	n.hooks.guard = fn
	return n
}

// Interrupt decides whether the node takes over from an active target it may interrupt.
func (n *NodeBuilder) Interrupt(fn InterruptFunc) *NodeBuilder {
	n.hooks.interrupt = fn
	return n
}
