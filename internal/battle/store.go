package battle

import (
	"log"

	"github.com/louisbranch/arena/internal/battle/expr"
)

// Store owns the roster and every attached status. Statuses live in a flat
// collection keyed by id; units and auras refer to them by id only.
//
// Store methods never enqueue effects. Operations that fire triggers return
// the reactions for the caller to schedule.
type Store struct {
	logger *log.Logger

	units      map[ID]*Unit
	order      []ID
	statuses   map[StatusID]*AttachedStatus
	nextUnit   ID
	nextStatus StatusID

	onAction func(Action)
}

// NewStore returns an empty store. A nil logger uses log.Default.
func NewStore(logger *log.Logger) *Store {
	if logger == nil {
		logger = log.Default()
	}
	return &Store{
		logger:   logger,
		units:    make(map[ID]*Unit),
		statuses: make(map[StatusID]*AttachedStatus),
	}
}

// AddUnit assigns the next id to u and adds it to the roster.
func (s *Store) AddUnit(u *Unit) ID {
	s.nextUnit++
	u.ID = s.nextUnit
	s.units[u.ID] = u
	s.order = append(s.order, u.ID)
	return u.ID
}

// Unit returns a unit, alive or dead.
func (s *Store) Unit(id ID) (*Unit, bool) {
	u, ok := s.units[id]
	return u, ok
}

// Units returns every unit in creation order, including the dead.
func (s *Store) Units() []*Unit {
	out := make([]*Unit, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.units[id])
	}
	return out
}

// Alive returns living units in creation order.
func (s *Store) Alive() []*Unit {
	out := make([]*Unit, 0, len(s.order))
	for _, id := range s.order {
		if u := s.units[id]; u.Alive() {
			out = append(out, u)
		}
	}
	return out
}

// AliveCount returns the number of living units of faction f.
func (s *Store) AliveCount(f Faction) int {
	n := 0
	for _, id := range s.order {
		if u := s.units[id]; u.Alive() && u.Faction == f {
			n++
		}
	}
	return n
}

// Status returns an attached status by id.
func (s *Store) Status(id StatusID) (*AttachedStatus, bool) {
	st, ok := s.statuses[id]
	return st, ok
}

// StatusesOf returns a unit's statuses in attach order.
func (s *Store) StatusesOf(unit ID) []*AttachedStatus {
	u, ok := s.units[unit]
	if !ok {
		return nil
	}
	out := make([]*AttachedStatus, 0, len(u.statuses))
	for _, sid := range u.statuses {
		out = append(out, s.statuses[sid])
	}
	return out
}

// HasStatus reports whether a unit holds a status with the given name.
func (s *Store) HasStatus(unit ID, name string) bool {
	for _, st := range s.StatusesOf(unit) {
		if st.Def.Name == name {
			return true
		}
	}
	return false
}

// View returns a read-only snapshot of a unit.
func (s *Store) View(id ID) (UnitView, bool) {
	u, ok := s.units[id]
	if !ok {
		return UnitView{}, false
	}
	view := UnitView{
		ID:        u.ID,
		Name:      u.Name,
		Faction:   u.Faction,
		Health:    u.Health,
		MaxHealth: u.MaxHealth,
		Stacks:    u.Stacks,
		Slot:      u.Slot,
		Position:  u.Position,
		Alive:     u.Alive(),
	}
	for _, st := range s.StatusesOf(id) {
		view.Statuses = append(view.Statuses, st.Def.Name)
	}
	return view, true
}

// Attach attaches a status to a unit and returns the status id with the
// reactions it provokes: the status's own attach triggers followed by the
// holder's gained triggers.
//
// Attaching to a missing or dead unit is a logged no-op. Attaching a status
// the unit already holds outside of an aura refreshes the existing instance:
// the longer lifetime wins and stack counters add up. A refresh fires no
// triggers.
func (s *Store) Attach(unit ID, def StatusDef, life Lifetime, caster ID, vars Vars) (StatusID, []Reaction) {
	return s.attach(unit, def, life, caster, 0, vars)
}

func (s *Store) attach(unit ID, def StatusDef, life Lifetime, caster ID, auraID StatusID, vars Vars) (StatusID, []Reaction) {
	u, ok := s.units[unit]
	if !ok {
		s.logger.Printf("battle: attach %q to unknown unit %d ignored", def.Name, unit)
		return 0, nil
	}
	if u.Dead {
		s.logger.Printf("battle: attach %q to dead unit %d ignored", def.Name, unit)
		return 0, nil
	}
	if auraID == 0 {
		if existing := s.refresh(u, def, life, vars); existing != 0 {
			return existing, nil
		}
	}

	s.nextStatus++
	st := &AttachedStatus{
		ID:        s.nextStatus,
		Def:       def,
		Owner:     unit,
		Caster:    caster,
		Remaining: life,
		AuraID:    auraID,
		Vars:      vars.Clone(),
	}
	s.statuses[st.ID] = st
	u.statuses = append(u.statuses, st.ID)
	s.RecomputeFlags(unit)
	s.emit(Action{Kind: ActionStatusAttached, Unit: unit, Source: caster, Status: def.Name, Color: def.Color})

	reactions := matchStatus(st, Event{Kind: TriggerAttach, Unit: unit, Status: def.Name}, u.Faction, u.Faction)
	gained := Event{Kind: TriggerGained, Unit: unit, Status: def.Name, StatusOwner: unit}
	for _, sid := range u.statuses {
		if sid == st.ID {
			continue
		}
		reactions = append(reactions, matchStatus(s.statuses[sid], gained, u.Faction, u.Faction)...)
	}
	return st.ID, reactions
}

func (s *Store) refresh(u *Unit, def StatusDef, life Lifetime, vars Vars) StatusID {
	for _, sid := range u.statuses {
		st := s.statuses[sid]
		if st.AuraID != 0 || st.Def.Name != def.Name {
			continue
		}
		switch {
		case !life.Timed:
			st.Remaining = Permanent
		case st.Remaining.Timed && life.Rounds > st.Remaining.Rounds:
			st.Remaining = life
		}
		for k, v := range vars {
			if k == StackCounterVar {
				if prev, ok := st.Vars[k]; ok {
					a, _ := prev.AsInt()
					b, _ := v.AsInt()
					st.Vars[k] = expr.Int(a + b)
					continue
				}
			}
			if st.Vars == nil {
				st.Vars = make(Vars)
			}
			st.Vars[k] = v
		}
		return sid
	}
	return 0
}

// Detach removes a status and returns the reactions to its removal, gathered
// before the status is removed: its own remove triggers, then the holder's
// self-detect triggers, then the detect triggers of other living units.
// Detaching an unknown id returns nothing, so removal fires at most once.
func (s *Store) Detach(id StatusID) []Reaction {
	st, ok := s.statuses[id]
	if !ok {
		return nil
	}
	owner := s.units[st.Owner]
	name := st.Def.Name

	reactions := matchStatus(st, Event{Kind: TriggerRemove, Unit: owner.ID, Status: name, StatusOwner: owner.ID}, owner.Faction, owner.Faction)
	self := Event{Kind: TriggerSelfDetect, Unit: owner.ID, Status: name, StatusOwner: owner.ID}
	for _, sid := range owner.statuses {
		if sid == id {
			continue
		}
		reactions = append(reactions, matchStatus(s.statuses[sid], self, owner.Faction, owner.Faction)...)
	}
	for _, uid := range s.order {
		other := s.units[uid]
		if uid == owner.ID || !other.Alive() {
			continue
		}
		reactions = append(reactions, s.Match(uid, Event{
			Kind:        TriggerDetect,
			Other:       owner.ID,
			Status:      name,
			StatusOwner: owner.ID,
		})...)
	}

	delete(s.statuses, id)
	for i, sid := range owner.statuses {
		if sid == id {
			owner.statuses = append(owner.statuses[:i], owner.statuses[i+1:]...)
			break
		}
	}
	s.RecomputeFlags(owner.ID)
	s.emit(Action{Kind: ActionStatusRemoved, Unit: owner.ID, Source: st.Caster, Status: name, Color: st.Def.Color})
	return reactions
}

// DetachNamed removes every status with the given name from a unit.
func (s *Store) DetachNamed(unit ID, name string) []Reaction {
	var reactions []Reaction
	for _, st := range s.StatusesOf(unit) {
		if st.Def.Name == name {
			reactions = append(reactions, s.Detach(st.ID)...)
		}
	}
	return reactions
}

// DetachKind removes every status of a kind from a unit.
func (s *Store) DetachKind(unit ID, kind StatusKind) []Reaction {
	var reactions []Reaction
	for _, st := range s.StatusesOf(unit) {
		if st.Def.Kind == kind {
			reactions = append(reactions, s.Detach(st.ID)...)
		}
	}
	return reactions
}

// TickLifetimes advances every timed status on living units by dt rounds.
// Statuses whose lifetime runs out, or whose stack counter is exhausted, are
// collected first and removed once every lifetime has been ticked.
func (s *Store) TickLifetimes(dt int) []Reaction {
	var expired []StatusID
	for _, uid := range s.order {
		u := s.units[uid]
		if !u.Alive() {
			continue
		}
		for _, sid := range u.statuses {
			st := s.statuses[sid]
			if st.Remaining.Timed {
				st.Remaining.Rounds -= dt
				if st.Remaining.Rounds <= 0 {
					expired = append(expired, sid)
					continue
				}
			}
			if st.exhausted() {
				expired = append(expired, sid)
			}
		}
	}
	var reactions []Reaction
	for _, sid := range expired {
		reactions = append(reactions, s.Detach(sid)...)
	}
	return reactions
}

// Scavenge returns the reactions of living units' scavenge triggers to the
// death of victim, in creation order. A status's ScavengeDef restricts which
// deaths it observes.
func (s *Store) Scavenge(victim ID) []Reaction {
	dead, ok := s.units[victim]
	if !ok {
		return nil
	}
	var reactions []Reaction
	for _, uid := range s.order {
		u := s.units[uid]
		if uid == victim || !u.Alive() {
			continue
		}
		ev := Event{Kind: TriggerScavenge, Unit: uid, Other: victim, StatusOwner: victim}
		for _, sid := range u.statuses {
			st := s.statuses[sid]
			if !st.Def.Scavenge.observes(u, dead) {
				continue
			}
			reactions = append(reactions, matchStatus(st, ev, u.Faction, dead.Faction)...)
		}
	}
	return reactions
}

// Revive brings a dead unit back with the given health, capped at its max
// health and at least 1. It reports whether the unit was dead.
func (s *Store) Revive(id ID, health int) bool {
	u, ok := s.units[id]
	if !ok || !u.Dead {
		return false
	}
	u.Dead = false
	u.Health = min(max(health, 1), u.MaxHealth)
	return true
}

// RecomputeFlags rebuilds a unit's flags from its attached statuses.
func (s *Store) RecomputeFlags(unit ID) {
	u, ok := s.units[unit]
	if !ok {
		return
	}
	var flags Flag
	for _, sid := range u.statuses {
		flags |= s.statuses[sid].Def.flags()
	}
	u.Flags = flags
}

// Kill marks a unit dead. Its statuses stay attached so they remain
// observable.
func (s *Store) Kill(id ID) {
	if u, ok := s.units[id]; ok {
		u.Dead = true
		u.Health = 0
	}
}

func (s *Store) emit(a Action) {
	if s.onAction != nil {
		s.onAction(a)
	}
}
