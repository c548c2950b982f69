package playerstate_test

import (
	"errors"
	"testing"

	. "github.com/comalice/playerstate"
)

func TestWorldAttachDetach(t *testing.T) {
	w := NewWorld(counterGraph(t))
	a, err := w.Attach("a")
	if err != nil {
		t.Fatal(err)
	}
	b, err := w.Attach("b")
	if err != nil {
		t.Fatal(err)
	}
	if a.Ref() == b.Ref() || a.Ref() == 0 {
		t.Fatalf("refs must be unique and non-zero: %d %d", a.Ref(), b.Ref())
	}
	if !a.Started() {
		t.Fatal("attached entities are started")
	}

	if _, err := w.Attach("dup", WithRef(a.Ref())); !errors.Is(err, ErrEntityExists) {
		t.Fatalf("expected ErrEntityExists, got %v", err)
	}
	if _, err := w.Attach("c", WithRef(50)); err != nil {
		t.Fatal(err)
	}

	if err := w.Detach(a.Ref()); err != nil {
		t.Fatal(err)
	}
	if a.Started() {
		t.Fatal("detached entity should be stopped")
	}
	if err := w.Detach(a.Ref()); !errors.Is(err, ErrUnknownEntity) {
		t.Fatalf("expected ErrUnknownEntity, got %v", err)
	}
	if w.Len() != 2 {
		t.Fatalf("expected 2 entities, got %d", w.Len())
	}
}

func TestWorldTicksInRefOrder(t *testing.T) {
	var order []EntityRef
	w := NewWorld(counterGraph(t), WithObserver(func(ev TransitionEvent) {}))
	for _, ref := range []EntityRef{9, 3, 5} {
		if _, err := w.Attach(nil, WithRef(ref)); err != nil {
			t.Fatal(err)
		}
	}
	for _, e := range w.Entities() {
		order = append(order, e.Ref())
	}
	if order[0] != 3 || order[1] != 5 || order[2] != 9 {
		t.Fatalf("entities out of order: %v", order)
	}

	w.Tick()
	for _, e := range w.Entities() {
		if e.TickCount() != 1 {
			t.Fatalf("entity %d ticked %d times", e.Ref(), e.TickCount())
		}
	}
}
