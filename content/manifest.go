// Package content loads state graphs from YAML or TOML manifests so content can be
// added without Go code. Go behavior is attached to manifest nodes by name through
// Bindings.
package content

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/comalice/playerstate"
)

var (
	ErrNoMod       = errors.New("content: manifest has no mod")
	ErrBadNode     = errors.New("content: invalid node")
	ErrUnknownFile = errors.New("content: unknown manifest extension")
	ErrUnboundHook = errors.New("content: binding names no node")
)

// Manifest is one mod's state graph.
type Manifest struct {
	Mod   string    `yaml:"mod" toml:"mod"`
	Nodes []nodeDoc `yaml:"nodes" toml:"nodes"`
}

// nodeDoc mirrors playerstate.NodeSpec with an optional level, so abilities that do
// not mention a level start unlocked.
type nodeDoc struct {
	Mod               string                        `yaml:"mod" toml:"mod"`
	Name              string                        `yaml:"name" toml:"name"`
	Kind              playerstate.NodeKind          `yaml:"kind" toml:"kind"`
	Children          []string                      `yaml:"children" toml:"children"`
	Initial           string                        `yaml:"initial" toml:"initial"`
	InterruptibleBy   []string                      `yaml:"interruptible_by" toml:"interruptible_by"`
	Group             bool                          `yaml:"group" toml:"group"`
	Animation         *playerstate.AnimationOptions `yaml:"animation" toml:"animation"`
	OverrideAnimation bool                          `yaml:"override_animation" toml:"override_animation"`
	Level             *uint32                       `yaml:"level" toml:"level"`
	Cooldown          uint32                        `yaml:"cooldown" toml:"cooldown"`
	Vars              map[string]any                `yaml:"vars" toml:"vars"`
	// Guard gates entering the node on its Vars, see ParseGuard.
	Guard string `yaml:"guard" toml:"guard"`
}

func (d nodeDoc) spec() playerstate.NodeSpec {
	s := playerstate.NodeSpec{
		Mod:               d.Mod,
		Name:              d.Name,
		Kind:              d.Kind,
		Children:          d.Children,
		Initial:           d.Initial,
		InterruptibleBy:   d.InterruptibleBy,
		Group:             d.Group,
		Animation:         d.Animation,
		OverrideAnimation: d.OverrideAnimation,
		Cooldown:          d.Cooldown,
		Vars:              d.Vars,
	}
	if s.Kind == "" {
		s.Kind = playerstate.LeafNode
	}
	switch {
	case d.Level != nil:
		s.Level = *d.Level
	case s.Kind == playerstate.AbilityNode:
		s.Level = 1
	}
	return s
}

// ParseYAML decodes a YAML manifest.
func ParseYAML(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode YAML: %w", err)
	}
	return &m, m.Validate()
}

// ParseTOML decodes a TOML manifest.
func ParseTOML(data []byte) (*Manifest, error) {
	var m Manifest
	if _, err := toml.Decode(string(data), &m); err != nil {
		return nil, fmt.Errorf("decode TOML: %w", err)
	}
	return &m, m.Validate()
}

// LoadFile reads a manifest, choosing the decoder by extension.
func LoadFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(data)
	case ".toml":
		return ParseTOML(data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFile, path)
	}
}

// Validate checks what can be checked without a registry.
func (m *Manifest) Validate() error {
	if strings.TrimSpace(m.Mod) == "" {
		return ErrNoMod
	}
	var errs []error
	for i, n := range m.Nodes {
		if strings.TrimSpace(n.Name) == "" || strings.Contains(n.Name, "/") {
			errs = append(errs, fmt.Errorf("%w: node %d has bad name %q", ErrBadNode, i, n.Name))
		}
		switch n.Kind {
		case "", playerstate.LeafNode, playerstate.AbilityNode:
			if len(n.Children) > 0 {
				errs = append(errs, fmt.Errorf("%w: %s is a %s and cannot have children", ErrBadNode, n.Name, n.spec().Kind))
			}
		case playerstate.MachineNode, playerstate.ConcurrentNode:
		default:
			errs = append(errs, fmt.Errorf("%w: %s has unknown kind %q", ErrBadNode, n.Name, n.Kind))
		}
		if n.Guard != "" {
			if _, err := ParseGuard(n.Guard); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", n.Name, err))
			}
		}
	}
	return errors.Join(errs...)
}

// Specs returns the node specs in manifest order.
func (m *Manifest) Specs() []playerstate.NodeSpec {
	out := make([]playerstate.NodeSpec, len(m.Nodes))
	for i, n := range m.Nodes {
		out[i] = n.spec()
	}
	return out
}

// Bindings attach Go callbacks to manifest nodes, keyed by node name ("Dash") or full
// name ("player/Dash").
type Bindings map[string]func(*playerstate.NodeBuilder)

// Builder returns a GraphBuilder holding every node with its guards and bindings
// applied. A binding that sets its own guard replaces the manifest's.
func (m *Manifest) Builder(bind Bindings) (*playerstate.GraphBuilder, error) {
	b := playerstate.NewGraphBuilder(m.Mod)
	used := make(map[string]bool, len(bind))
	for i, spec := range m.Specs() {
		nb := b.Node(spec)
		if expr := m.Nodes[i].Guard; expr != "" {
			g, err := ParseGuard(expr)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", spec.Name, err)
			}
			nb.Guard(func(s playerstate.State) bool { return g.Eval(varsOf(s)) })
		}
		mod := spec.Mod
		if mod == "" {
			mod = m.Mod
		}
		for _, key := range []string{spec.Name, mod + "/" + spec.Name} {
			if fn, ok := bind[key]; ok {
				fn(nb)
				used[key] = true
			}
		}
	}
	for key := range bind {
		if !used[key] {
			return nil, fmt.Errorf("%w: %s", ErrUnboundHook, key)
		}
	}
	return b, nil
}

// Register adds the manifest's nodes to r.
func (m *Manifest) Register(r *playerstate.Registry, bind Bindings) error {
	b, err := m.Builder(bind)
	if err != nil {
		return err
	}
	return b.Register(r)
}
