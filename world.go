package playerstate

import (
	"fmt"
	"log/slog"
	"slices"
)

// World is the set of entities sharing one graph. Like Entity it is driven from a single
// tick goroutine.
type World struct {
	graph    *Graph
	entities map[EntityRef]*Entity
	order    []EntityRef
	next     EntityRef
	opts     []Option
	logger   *slog.Logger
}

// NewWorld creates an empty world. opts are applied to every attached entity before the
// per-entity options.
func NewWorld(g *Graph, opts ...Option) *World {
	o := applyOptions(opts)
	return &World{
		graph:    g,
		entities: make(map[EntityRef]*Entity),
		next:     1,
		opts:     opts,
		logger:   o.logger,
	}
}

// Graph returns the shared graph.
func (w *World) Graph() *Graph { return w.graph }

// Attach instantiates and starts a new entity. The reference is allocated unless WithRef
// is given.
func (w *World) Attach(host any, opts ...Option) (*Entity, error) {
	all := append(slices.Clone(w.opts), opts...)
	o := applyOptions(all)
	if !o.hasRef {
		for w.entities[w.next] != nil || w.next == 0 {
			w.next++
		}
		all = append(all, WithRef(w.next))
		w.next++
	} else if _, exists := w.entities[o.ref]; exists {
		return nil, fmt.Errorf("attach %d: %w", o.ref, ErrEntityExists)
	}
	e, err := w.graph.Instantiate(host, all...)
	if err != nil {
		return nil, err
	}
	w.entities[e.ref] = e
	i, _ := slices.BinarySearch(w.order, e.ref)
	w.order = slices.Insert(w.order, i, e.ref)
	e.Start()
	w.logger.Debug("entity attached", slog.Uint64("ref", uint64(e.ref)))
	return e, nil
}

// Detach stops and removes an entity.
func (w *World) Detach(ref EntityRef) error {
	e, ok := w.entities[ref]
	if !ok {
		return fmt.Errorf("detach %d: %w", ref, ErrUnknownEntity)
	}
	e.Stop()
	delete(w.entities, ref)
	if i, found := slices.BinarySearch(w.order, ref); found {
		w.order = slices.Delete(w.order, i, i+1)
	}
	w.logger.Debug("entity detached", slog.Uint64("ref", uint64(ref)))
	return nil
}

// Entity returns the entity with the given reference.
func (w *World) Entity(ref EntityRef) (*Entity, bool) {
	e, ok := w.entities[ref]
	return e, ok
}

// Entities returns every entity in reference order.
func (w *World) Entities() []*Entity {
	out := make([]*Entity, 0, len(w.order))
	for _, ref := range w.order {
		out = append(out, w.entities[ref])
	}
	return out
}

// Len returns the number of entities.
func (w *World) Len() int { return len(w.entities) }

// Tick ticks every entity in reference order.
func (w *World) Tick() {
	for _, ref := range w.order {
		w.entities[ref].Tick()
	}
}
