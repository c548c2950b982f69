package playerstate

import (
	"fmt"
	"log/slog"
	"reflect"
	"strings"
)

// Definition describes one state type contributed by a content module.
type Definition struct {
	Mod  string
	Name string
	// New returns a fresh, fully configured instance. It is called once for the template
	// and once per entity.
	New func() State
}

// FullName returns "mod/name", the identity used by saves and the network table.
func (d Definition) FullName() string { return d.Mod + "/" + d.Name }

type kind uint8

const (
	kindLeaf kind = iota
	kindMachine
	kindConcurrent
)

func (k kind) String() string {
	switch k {
	case kindMachine:
		return "machine"
	case kindConcurrent:
		return "concurrent"
	default:
		return "leaf"
	}
}

// Registry collects one template per state type during content loading and builds the
// immutable Graph. It is an explicit object: create one per content set, Build it, and
// Unload it when the content set is discarded.
type Registry struct {
	defs      []Definition
	templates []State
	kinds     []kind
	byName    map[string]StateID
	byType    map[reflect.Type]StateID
	ambiguous map[reflect.Type]bool
	hooks     []hookSpec

	frozen bool
	graph  *Graph
	logger *slog.Logger
}

// NewRegistry creates an empty registry with the built-in hooks defined.
func NewRegistry(opts ...Option) *Registry {
	o := applyOptions(opts)
	r := &Registry{
		byName:    make(map[string]StateID),
		byType:    make(map[reflect.Type]StateID),
		ambiguous: make(map[reflect.Type]bool),
		logger:    o.logger,
	}
	r.hooks = append(r.hooks, builtinHooks...)
	return r
}

// Register adds a template and returns its index.
func (r *Registry) Register(def Definition) (StateID, error) {
	if r.frozen {
		return NoState, &BuildError{Op: "register", Template: def.FullName(), Err: ErrRegistryFrozen}
	}
	if def.Mod == "" || def.Name == "" || def.New == nil || strings.Contains(def.Name, "/") {
		return NoState, &BuildError{Op: "register", Template: def.FullName(), Err: ErrInvalidDefinition}
	}
	full := def.FullName()
	if _, exists := r.byName[full]; exists {
		return NoState, &BuildError{Op: "register", Template: full, Err: ErrDuplicateTemplate}
	}
	if len(r.defs) >= MaxTemplates {
		return NoState, &BuildError{Op: "register", Template: full, Err: ErrTooManyTemplates}
	}

	tmpl := def.New()
	if tmpl == nil || reflect.ValueOf(tmpl).Kind() != reflect.Pointer || reflect.ValueOf(tmpl).IsNil() {
		return NoState, &BuildError{Op: "register", Template: full,
			Err: fmt.Errorf("%w: New must return a non-nil pointer", ErrInvalidDefinition)}
	}

	id := StateID(len(r.defs))
	r.defs = append(r.defs, def)
	r.templates = append(r.templates, tmpl)
	r.kinds = append(r.kinds, kindOf(tmpl))
	r.byName[full] = id

	typ := reflect.TypeOf(tmpl)
	if _, dup := r.byType[typ]; dup || r.ambiguous[typ] {
		delete(r.byType, typ)
		r.ambiguous[typ] = true
	} else {
		r.byType[typ] = id
	}
	return id, nil
}

// MustRegister is Register for static content tables; it panics on error.
func (r *Registry) MustRegister(def Definition) StateID {
	id, err := r.Register(def)
	if err != nil {
		panic(err)
	}
	return id
}

// RegisterType registers a state type under its Go type name.
func RegisterType[T State](r *Registry, mod string, newFn func() T) (StateID, error) {
	name := reflect.TypeOf((*T)(nil)).Elem().String()
	if t := reflect.TypeOf((*T)(nil)).Elem(); t.Kind() == reflect.Pointer {
		name = t.Elem().Name()
	}
	return r.Register(Definition{Mod: mod, Name: name, New: func() State { return newFn() }})
}

// Len returns the number of registered templates.
func (r *Registry) Len() int { return len(r.defs) }

// Lookup resolves a full name to a template index.
func (r *Registry) Lookup(fullName string) (StateID, error) {
	id, ok := r.byName[fullName]
	if !ok {
		return NoState, fmt.Errorf("%w: %q", ErrUnknownTemplate, fullName)
	}
	return id, nil
}

// Graph returns the built graph.
func (r *Registry) Graph() (*Graph, error) {
	if r.graph == nil {
		return nil, ErrNotBuilt
	}
	return r.graph, nil
}

// Build freezes the registry and computes the hierarchy, interrupt and hook tables.
// Any content mistake aborts the build with a *BuildError.
func (r *Registry) Build() (*Graph, error) {
	if r.graph != nil {
		return r.graph, nil
	}
	r.frozen = true

	g := &Graph{
		defs:      r.defs,
		templates: r.templates,
		kinds:     r.kinds,
		byName:    r.byName,
		byType:    r.byType,
	}
	if err := buildHierarchy(r, g); err != nil {
		r.frozen = false
		return nil, err
	}
	buildOrder(g)
	if err := buildInterrupts(r, g); err != nil {
		r.frozen = false
		return nil, err
	}
	buildHooks(r, g)

	r.graph = g
	r.logger.Debug("state graph built",
		slog.Int("templates", len(g.defs)),
		slog.Int("roots", len(g.roots)),
		slog.Int("hooks", len(g.hookNames)))
	return g, nil
}

// Unload discards every template and the built graph. Entities created from the graph
// keep working but the registry can be reused for a new content set.
func (r *Registry) Unload() {
	r.defs = nil
	r.templates = nil
	r.kinds = nil
	r.byName = make(map[string]StateID)
	r.byType = make(map[reflect.Type]StateID)
	r.ambiguous = make(map[reflect.Type]bool)
	r.hooks = append([]hookSpec(nil), builtinHooks...)
	r.frozen = false
	r.graph = nil
}

func kindOf(s State) kind {
	switch s.(type) {
	case machiner:
		return kindMachine
	case concurrenter:
		return kindConcurrent
	default:
		return kindLeaf
	}
}
