package playerstate_test

import (
	"errors"
	"testing"

	. "github.com/comalice/playerstate"
)

func animGraph(t *testing.T, override bool) *Graph {
	t.Helper()
	b := NewGraphBuilder("t")
	body := b.Concurrent("Body").Children("Legs", "Arms").Animation(AnimationOptions{Name: "body"})
	if override {
		body.OverrideAnimation()
	}
	b.Machine("Legs").Children("Stand", "Run").Animation(AnimationOptions{Name: "legs"})
	b.Leaf("Stand")
	b.Leaf("Run").Animation(AnimationOptions{Name: "run", Speed: 1.5, Loop: true})
	b.Machine("Arms").Children("Rest")
	b.Leaf("Rest").Animation(AnimationOptions{Name: "rest"})
	return mustGraph(t, b)
}

func TestAnimationInnermostWins(t *testing.T) {
	g := animGraph(t, false)
	e, _ := mustEntity(t, g)
	e.Start()
	body, _ := g.Lookup("t/Body")

	// Stand has no answer, so Legs answers for it.
	opts, ok := e.Animation(body)
	if !ok || opts.Name != "legs" {
		t.Fatalf("expected legs, got %+v %v", opts, ok)
	}

	legs := mustMachine(t, e, "t/Legs")
	legs.TrySetActiveChild(mustState(t, e, "t/Run"), false)
	opts, _ = e.Animation(body)
	if opts.Name != "run" || opts.Speed != 1.5 || !opts.Loop {
		t.Fatalf("expected run, got %+v", opts)
	}
}

func TestAnimationOverride(t *testing.T) {
	g := animGraph(t, true)
	e, _ := mustEntity(t, g)
	e.Start()
	body, _ := g.Lookup("t/Body")
	if opts, _ := e.Animation(body); opts.Name != "body" {
		t.Fatalf("override ignored: %+v", opts)
	}
}

func TestAnimationInactiveAndOutOfRange(t *testing.T) {
	g := animGraph(t, false)
	e, _ := mustEntity(t, g)
	rest, _ := g.Lookup("t/Rest")
	if _, ok := e.Animation(rest); ok {
		t.Fatal("inactive subtree must not answer")
	}

	defer func() {
		err, _ := recover().(error)
		var ce *ContractError
		if !errors.As(err, &ce) {
			t.Fatalf("expected a contract panic, got %v", err)
		}
	}()
	e.Animation(StateID(g.Len()))
}
