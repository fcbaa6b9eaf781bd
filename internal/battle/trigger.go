package battle

import (
	"strings"

	"github.com/louisbranch/arena/internal/battle/expr"
)

// TriggerKind names the domain event a trigger reacts to.
type TriggerKind int

const (
	TriggerNone TriggerKind = iota
	// TriggerTakeDamage fires on the damaged unit before protection applies.
	TriggerTakeDamage
	// TriggerDealDamage fires on the caster after damage is applied.
	TriggerDealDamage
	TriggerHealTaken
	TriggerHealDealt
	// TriggerKill fires on the caster of a killing blow.
	TriggerKill
	// TriggerDeath fires on the unit that died.
	TriggerDeath
	// TriggerSpawn fires on a freshly spawned unit.
	TriggerSpawn
	// TriggerAction fires on the acting unit ahead of its action.
	TriggerAction
	// TriggerTurnStart fires on the acting unit when its turn begins.
	TriggerTurnStart
	TriggerShieldBroken
	// TriggerRemove fires on the status being removed, before removal.
	TriggerRemove
	// TriggerSelfDetect fires on the owner of a removed status.
	TriggerSelfDetect
	// TriggerDetect fires on other units when a status is removed from a
	// unit that passes the trigger's faction filter.
	TriggerDetect
	// TriggerGained fires on a unit's other statuses when it gains a status.
	TriggerGained
	// TriggerAttach fires on the status itself once it is attached.
	TriggerAttach
	// TriggerScavenge fires on living units when another unit dies within
	// reach of their scavenge status.
	TriggerScavenge
)

var triggerKindNames = map[TriggerKind]string{
	TriggerNone:         "none",
	TriggerTakeDamage:   "take_damage",
	TriggerDealDamage:   "deal_damage",
	TriggerHealTaken:    "heal_taken",
	TriggerHealDealt:    "heal_dealt",
	TriggerKill:         "kill",
	TriggerDeath:        "death",
	TriggerSpawn:        "spawn",
	TriggerAction:       "action",
	TriggerTurnStart:    "turn_start",
	TriggerShieldBroken: "shield_broken",
	TriggerRemove:       "remove",
	TriggerSelfDetect:   "self_detect",
	TriggerDetect:       "detect",
	TriggerGained:       "gained",
	TriggerAttach:       "attach",
	TriggerScavenge:     "scavenge",
}

func (k TriggerKind) String() string {
	if name, ok := triggerKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// ParseTriggerKind parses a trigger kind name.
func ParseTriggerKind(s string) (TriggerKind, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, name := range triggerKindNames {
		if name == s && k != TriggerNone {
			return k, true
		}
	}
	return TriggerNone, false
}

// TriggerTarget selects the target of a trigger's reaction.
type TriggerTarget int

const (
	// TargetEventSource targets the other unit of the event, falling back to
	// the status holder.
	TargetEventSource TriggerTarget = iota
	// TargetOwner targets the status holder.
	TargetOwner
)

// Trigger is a rule on a status that yields an effect when a matching event
// occurs.
type Trigger struct {
	On TriggerKind
	// DamageTypes restricts damage and kill triggers to these types. Empty
	// matches any damage.
	DamageTypes []string
	// Except rejects damage carrying any of these types.
	Except []string
	// Status restricts detect and gained triggers to a status name.
	Status string
	// Filter restricts detect triggers by the removed status owner's faction
	// relative to the detecting unit.
	Filter FactionFilter
	Target TriggerTarget
	Effect Effect
}

// Event is a domain event offered to the trigger matcher.
type Event struct {
	Kind TriggerKind
	// Unit holds the statuses being matched.
	Unit ID
	// Other is the counterpart unit: the attacker, the victim, the healer.
	Other       ID
	DamageTypes []string
	// Status is the name of the status involved in status events.
	Status string
	// StatusOwner is the unit that held the removed status.
	StatusOwner ID
	Vars        Vars
}

// Reaction is a follow-up effect produced by a matched trigger.
type Reaction struct {
	Effect Effect
	Ctx    EffectContext
}

func (r Reaction) queued() QueuedEffect { return QueuedEffect(r) }

func queued(rs []Reaction) []QueuedEffect {
	if len(rs) == 0 {
		return nil
	}
	out := make([]QueuedEffect, len(rs))
	for i, r := range rs {
		out[i] = r.queued()
	}
	return out
}

func (t Trigger) matches(ev Event, holderFaction, ownerFaction Faction) bool {
	if t.On != ev.Kind || t.Effect == nil {
		return false
	}
	switch ev.Kind {
	case TriggerTakeDamage, TriggerDealDamage, TriggerKill:
		if len(t.DamageTypes) > 0 && !overlaps(t.DamageTypes, ev.DamageTypes) {
			return false
		}
		if overlaps(t.Except, ev.DamageTypes) {
			return false
		}
	case TriggerSelfDetect, TriggerGained:
		if t.Status != "" && t.Status != ev.Status {
			return false
		}
	case TriggerDetect:
		if t.Status != "" && t.Status != ev.Status {
			return false
		}
		if !t.Filter.Matches(holderFaction, ownerFaction) {
			return false
		}
	}
	return true
}

// reaction binds a matched trigger to a context. Status variables come first
// and event variables win on collision.
func (t Trigger) reaction(s *AttachedStatus, ev Event) Reaction {
	target := s.Owner
	if t.Target == TargetEventSource && ev.Other != 0 {
		target = ev.Other
	}
	return Reaction{
		Effect: t.Effect,
		Ctx: EffectContext{
			Caster: s.Owner,
			From:   ev.Other,
			Target: target,
			Vars:   s.vars().Merge(ev.Vars),
			Status: s.ID,
			Color:  s.Def.Color,
		},
	}
}

// Match returns the reactions of unit's statuses to ev in attach order.
// Matching reads state only.
func (s *Store) Match(unit ID, ev Event) []Reaction {
	u, ok := s.units[unit]
	if !ok {
		return nil
	}
	ev.Unit = unit
	ownerFaction := FactionNone
	if owner, ok := s.units[ev.StatusOwner]; ok {
		ownerFaction = owner.Faction
	}
	var out []Reaction
	for _, sid := range u.statuses {
		st := s.statuses[sid]
		out = append(out, matchStatus(st, ev, u.Faction, ownerFaction)...)
	}
	return out
}

// matchStatus returns the reactions of a single status to ev.
func matchStatus(st *AttachedStatus, ev Event, holderFaction, ownerFaction Faction) []Reaction {
	var out []Reaction
	for _, t := range st.Def.Triggers {
		if t.matches(ev, holderFaction, ownerFaction) {
			out = append(out, t.reaction(st, ev))
		}
	}
	return out
}

func overlaps(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

// eventVars builds an event variable bag from name/value pairs.
func eventVars(kv ...any) Vars {
	out := make(Vars, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		name, _ := kv[i].(string)
		switch v := kv[i+1].(type) {
		case int:
			out[name] = expr.Int(v)
		case string:
			out[name] = expr.String(v)
		case expr.Value:
			out[name] = v
		}
	}
	return out
}
