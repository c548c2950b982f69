package playerstate

import (
	"errors"
	"fmt"
	"log/slog"
)

// Saver produces a state's save payload. A nil tag means there is nothing to write.
type Saver interface {
	SaveData() (Tag, error)
}

// Loader consumes a payload produced by the same state type's Saver.
type Loader interface {
	LoadData(t Tag) error
}

// SavedState is one state's payload keyed by mod and name, so saves survive content
// being loaded in a different order.
type SavedState struct {
	Mod  string `yaml:"mod" json:"mod"`
	Name string `yaml:"name" json:"name"`
	Tag  Tag    `yaml:"tag,omitempty" json:"tag,omitempty"`
}

// FullName returns "mod/name".
func (s SavedState) FullName() string { return s.Mod + "/" + s.Name }

// SaveData is everything persisted for one entity.
type SaveData struct {
	Entity string       `yaml:"entity" json:"entity"`
	States []SavedState `yaml:"states" json:"states"`
	// Unloaded holds payloads for templates that were not registered at load time. They
	// are written back verbatim so removing and re-adding content loses nothing.
	Unloaded []SavedState `yaml:"unloaded,omitempty" json:"unloaded,omitempty"`
}

// Save collects every Saver's payload in pre-order. A failing state is logged and
// skipped; it never aborts the save.
func (e *Entity) Save(key string) SaveData {
	g := e.graph
	sd := SaveData{Entity: key}
	for _, id := range g.hookImpl[hookSave] {
		tag, err := e.saveOne(id)
		if err != nil {
			e.logger.Warn("state save failed",
				slog.String("entity", key),
				slog.String("state", g.defs[id].FullName()),
				slog.Any("error", err))
			continue
		}
		if tag == nil {
			continue
		}
		def := g.defs[id]
		sd.States = append(sd.States, SavedState{Mod: def.Mod, Name: def.Name, Tag: tag})
	}
	for _, u := range e.unloaded {
		sd.Unloaded = append(sd.Unloaded, SavedState{Mod: u.Mod, Name: u.Name, Tag: u.Tag.Clone()})
	}
	return sd
}

func (e *Entity) saveOne(id StateID) (tag Tag, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return e.states[id].(Saver).SaveData()
}

// Load hands each saved payload to its state's Loader. Payloads naming templates that
// are not registered are parked and re-emitted by the next Save. Failures are logged,
// never abort the batch, and are returned joined.
func (e *Entity) Load(sd SaveData) error {
	g := e.graph
	e.unloaded = nil
	var errs []error
	for _, list := range [][]SavedState{sd.States, sd.Unloaded} {
		for _, st := range list {
			id, ok := g.byName[st.FullName()]
			if !ok {
				e.unloaded = append(e.unloaded, st)
				continue
			}
			if !g.hookHas[hookLoad][id] {
				continue
			}
			if err := e.loadOne(id, st.Tag); err != nil {
				e.logger.Warn("state load failed",
					slog.String("entity", sd.Entity),
					slog.String("state", st.FullName()),
					slog.Any("error", err))
				errs = append(errs, fmt.Errorf("load %s: %w", st.FullName(), err))
			}
		}
	}
	if len(e.unloaded) > 0 {
		e.logger.Info("parked save data for unregistered states",
			slog.String("entity", sd.Entity),
			slog.Int("count", len(e.unloaded)))
	}
	return errors.Join(errs...)
}

func (e *Entity) loadOne(id StateID, t Tag) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return e.states[id].(Loader).LoadData(t)
}

// Unloaded returns the payloads parked by the last Load.
func (e *Entity) Unloaded() []SavedState {
	return append([]SavedState(nil), e.unloaded...)
}
