package playerstate

// AnimationOptions is what a state asks the animation player to show. Playback itself
// lives outside this package.
type AnimationOptions struct {
	Name  string  `yaml:"name" json:"name" toml:"name"`
	Speed float32 `yaml:"speed,omitempty" json:"speed,omitempty" toml:"speed"`
	Loop  bool    `yaml:"loop,omitempty" json:"loop,omitempty" toml:"loop"`
	Layer int     `yaml:"layer,omitempty" json:"layer,omitempty" toml:"layer"`
	Flip  bool    `yaml:"flip,omitempty" json:"flip,omitempty" toml:"flip"`
}

// AnimationProvider answers the animation query for one state. ok=false defers to the
// parent.
type AnimationProvider interface {
	AnimationOptions() (opts AnimationOptions, ok bool)
}

// AnimationOverride lets a composite answer with its own options instead of its active
// child's.
type AnimationOverride interface {
	OverrideChildAnimation() bool
}

// Animation resolves the options for the subtree rooted at root: the innermost active
// state with an answer wins, unless a composite on the way overrides its children.
func (e *Entity) Animation(root StateID) (AnimationOptions, bool) {
	if !e.graph.valid(root) {
		contractPanic("Animation", "state index %d out of range", root)
	}
	if !e.states[root].base().IsActive() {
		return AnimationOptions{}, false
	}
	return e.animation(root)
}

func (e *Entity) animation(id StateID) (AnimationOptions, bool) {
	g := e.graph
	s := e.states[id]
	own := func() (AnimationOptions, bool) {
		if g.hookHas[hookAnimation][id] {
			return s.(AnimationProvider).AnimationOptions()
		}
		return AnimationOptions{}, false
	}
	if g.hookHas[hookAnimationOverride][id] && s.(AnimationOverride).OverrideChildAnimation() {
		if opts, ok := own(); ok {
			return opts, true
		}
	}
	switch g.kinds[id] {
	case kindMachine:
		if a := s.(machiner).machine().active; a != NoState {
			if opts, ok := e.animation(a); ok {
				return opts, true
			}
		}
	case kindConcurrent:
		for _, c := range g.hier[id].Children {
			if opts, ok := e.animation(c); ok {
				return opts, true
			}
		}
	}
	return own()
}
