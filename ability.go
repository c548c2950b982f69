package playerstate

import "github.com/comalice/playerstate/wire"

// Ability is a leveled leaf with a cooldown. Level 0 means locked: the ability can
// neither be entered nor interrupt anything.
type Ability struct {
	Base
	Level        uint32
	MaxCooldown  uint32
	CooldownLeft uint32
	OnCooldown   bool
}

// CooldownRefresher lets an ability veto clearing its cooldown, e.g. while still airborne.
// Without it the cooldown clears as soon as it reaches zero.
type CooldownRefresher interface {
	CanRefresh(cooledDown bool) bool
}

type cooldowner interface {
	State
	ability() *Ability
}

func (a *Ability) ability() *Ability { return a }

// AbilityOf returns the Ability embedded in s, or nil.
func AbilityOf(s State) *Ability {
	if a, ok := s.(cooldowner); ok {
		return a.ability()
	}
	return nil
}

// CanEnter allows entering an unlocked ability that is not cooling down.
func (a *Ability) CanEnter() bool { return a.Level >= 1 && !a.OnCooldown }

// Locked reports whether the ability is level 0.
func (a *Ability) Locked() bool { return a.Level == 0 }

// SetLevel changes the level and flags the change for sync.
func (a *Ability) SetLevel(level uint32) {
	if a.Level == level {
		return
	}
	a.Level = level
	a.MarkNetUpdate()
}

// StartCooldown restarts the cooldown at MaxCooldown.
func (a *Ability) StartCooldown() {
	a.CooldownLeft = a.MaxCooldown
	a.OnCooldown = true
	a.MarkNetUpdate()
}

// ResetCooldown clears the cooldown immediately.
func (a *Ability) ResetCooldown() {
	if !a.OnCooldown && a.CooldownLeft == 0 {
		return
	}
	a.CooldownLeft = 0
	a.OnCooldown = false
	a.MarkNetUpdate()
}

func (a *Ability) tickCooldown() {
	if !a.OnCooldown {
		return
	}
	if a.CooldownLeft > 0 {
		a.CooldownLeft--
	}
	cooled := a.CooldownLeft == 0
	refresh := cooled
	if r, ok := a.self.(CooldownRefresher); ok {
		refresh = r.CanRefresh(cooled)
	}
	if refresh {
		a.CooldownLeft = 0
		a.OnCooldown = false
		a.MarkNetUpdate()
	}
}

// NetSend writes level and cooldown. Types embedding Ability that add their own payload
// should call it first.
func (a *Ability) NetSend(w *wire.Writer) {
	w.Uvarint(uint64(a.Level))
	w.Uvarint(uint64(a.CooldownLeft))
	w.Bool(a.OnCooldown)
}

// NetReceive reads what NetSend wrote.
func (a *Ability) NetReceive(r *wire.Reader) error {
	level := r.Uvarint()
	left := r.Uvarint()
	on := r.Bool()
	if err := r.Err(); err != nil {
		return err
	}
	a.Level = uint32(level)
	a.CooldownLeft = uint32(left)
	a.OnCooldown = on
	return nil
}

// SaveData persists the level. Cooldowns are transient.
func (a *Ability) SaveData() (Tag, error) {
	return Tag{"level": a.Level}, nil
}

// LoadData restores the level.
func (a *Ability) LoadData(t Tag) error {
	level, err := t.Uint32("level")
	if err != nil {
		return err
	}
	a.Level = level
	return nil
}
