package battle

import (
	"strconv"
	"strings"

	"github.com/louisbranch/arena/internal/battle/expr"
)

// StatusID identifies an attached status instance. IDs are never reused
// within a battle.
type StatusID uint64

func (id StatusID) String() string { return strconv.FormatUint(uint64(id), 10) }

// StatusKind tags a status definition.
type StatusKind int

const (
	StatusCustom StatusKind = iota
	StatusFreeze
	StatusStun
	StatusShield
	StatusInvulnerability
	StatusSlow
	StatusModifier
	StatusAura
	StatusProtection
	StatusDetect
	StatusTaunt
	StatusOnDeath
	StatusOnSpawn
	StatusOnKill
	StatusOnHeal
	StatusOnTakeDamage
	StatusOnShieldBroken
	StatusGainedEffect
	StatusScavenge
	StatusAttackSpeed
)

var statusKindNames = map[StatusKind]string{
	StatusCustom:          "custom",
	StatusFreeze:          "freeze",
	StatusStun:            "stun",
	StatusShield:          "shield",
	StatusInvulnerability: "invulnerability",
	StatusSlow:            "slow",
	StatusModifier:        "modifier",
	StatusAura:            "aura",
	StatusProtection:      "protection",
	StatusDetect:          "detect",
	StatusTaunt:           "taunt",
	StatusOnDeath:         "on_death",
	StatusOnSpawn:         "on_spawn",
	StatusOnKill:          "on_kill",
	StatusOnHeal:          "on_heal",
	StatusOnTakeDamage:    "on_take_damage",
	StatusOnShieldBroken:  "on_shield_broken",
	StatusGainedEffect:    "gained_effect",
	StatusScavenge:        "scavenge",
	StatusAttackSpeed:     "attack_speed",
}

func (k StatusKind) String() string {
	if name, ok := statusKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// ParseStatusKind parses a status kind name.
func ParseStatusKind(s string) (StatusKind, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, name := range statusKindNames {
		if name == s {
			return k, true
		}
	}
	return StatusCustom, false
}

// flags returns the stat flags implied by the kind.
func (k StatusKind) flags() Flag {
	switch k {
	case StatusFreeze, StatusStun:
		return FlagActionUnable
	case StatusInvulnerability:
		return FlagInvulnerable
	case StatusShield:
		return FlagShielded
	case StatusTaunt:
		return FlagTaunting
	}
	return 0
}

// AuraDef describes which units an aura status grants statuses to.
type AuraDef struct {
	// Radius is the maximum distance from the aura holder. Zero or less means
	// unlimited.
	Radius      float64
	Filter      FactionFilter
	Clans       []string
	IncludeSelf bool
	// Condition, when set, is evaluated with the holder as caster and the
	// candidate as target.
	Condition *expr.Expr
	Statuses  []string
}

// ModifierTarget selects what a Modifier status changes.
type ModifierTarget int

const (
	// ModifyDamage replaces the holder's outgoing damage amount.
	ModifyDamage ModifierTarget = iota
	// ModifyDamageTypes adds types to the holder's outgoing damage.
	ModifyDamageTypes
	// ModifyMaxHealth replaces the holder's max health.
	ModifyMaxHealth
)

var modifierTargetNames = map[ModifierTarget]string{
	ModifyDamage:      "damage",
	ModifyDamageTypes: "damage_types",
	ModifyMaxHealth:   "max_health",
}

func (t ModifierTarget) String() string {
	if name, ok := modifierTargetNames[t]; ok {
		return name
	}
	return "unknown"
}

// ParseModifierTarget parses a modifier target name.
func ParseModifierTarget(s string) (ModifierTarget, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for t, name := range modifierTargetNames {
		if name == s {
			return t, true
		}
	}
	return ModifyDamage, false
}

// ModifierDef describes how a Modifier status changes its holder. Modifiers
// on one unit apply in priority order, lowest first, then attach order.
type ModifierDef struct {
	Target   ModifierTarget
	Priority int
	// Condition is evaluated with the holder as caster.
	Condition *expr.Expr
	// Source restricts damage modifiers to damage carrying one of these
	// types. Empty matches any damage.
	Source []string
	// Value computes the new amount. Damage modifiers see the amount so far
	// as DamageIncoming; max health modifiers see the unmodified maximum as
	// Base and the maximum so far as Current.
	Value *expr.Expr
	// ExtraTypes are the types ModifyDamageTypes adds.
	ExtraTypes []string
}

// ScavengeDef restricts which deaths a status's scavenge triggers observe.
type ScavengeDef struct {
	// Filter applies to the dead unit relative to the holder.
	Filter FactionFilter
	// Range is the maximum distance to the dead unit. Zero or less means
	// unlimited.
	Range float64
	Clans []string
}

func (d *ScavengeDef) observes(holder, dead *Unit) bool {
	if d == nil {
		return true
	}
	if !d.Filter.Matches(holder.Faction, dead.Faction) {
		return false
	}
	if len(d.Clans) > 0 && !dead.inClan(d.Clans) {
		return false
	}
	return d.Range <= 0 || holder.Position.Distance(dead.Position) <= d.Range
}

// StatusDef is an immutable status template supplied by the content catalog.
type StatusDef struct {
	Name  string
	Kind  StatusKind
	Flags Flag
	Color string

	// Protection is the percentage reduction applied by Protection statuses.
	// A "Protection" status variable overrides it per instance.
	Protection int
	// ShieldHeal is healed back to the holder when a Shield status breaks.
	ShieldHeal Amount

	Aura     *AuraDef
	Modifier *ModifierDef
	Scavenge *ScavengeDef
	Triggers []Trigger
	Vars     Vars

	// Ability marks statuses whose triggers reference the holder's action.
	Ability bool
}

// flags returns the stat flags the status contributes to its holder.
func (d StatusDef) flags() Flag { return d.Kind.flags() | d.Flags }

// Lifetime is how long an attached status lasts, in rounds.
type Lifetime struct {
	Rounds int
	// Timed is false for statuses that stay until explicitly removed.
	Timed bool
}

// Permanent is the lifetime of statuses that never expire on their own.
var Permanent = Lifetime{}

// Rounds returns a lifetime lasting n rounds.
func Rounds(n int) Lifetime { return Lifetime{Rounds: n, Timed: true} }

const (
	// StackCounterVar is the status variable whose exhaustion expires a status.
	StackCounterVar = "StackCounter"
	// ProtectionVar overrides a Protection status percentage per instance.
	ProtectionVar = "Protection"
)

// AttachedStatus is a status instance held by a unit.
type AttachedStatus struct {
	ID        StatusID
	Def       StatusDef
	Owner     ID
	Caster    ID
	Remaining Lifetime
	// AuraID is the granting aura instance for aura-derived copies.
	AuraID StatusID
	Vars   Vars
}

// Name returns the status definition name.
func (s *AttachedStatus) Name() string { return s.Def.Name }

// vars returns the definition variables overlaid with instance variables.
func (s *AttachedStatus) vars() Vars {
	return s.Def.Vars.Merge(s.Vars)
}

func (s *AttachedStatus) protection() int {
	p := s.Def.Protection
	if v, ok := s.Vars[ProtectionVar]; ok {
		if n, err := v.AsInt(); err == nil {
			p = n
		}
	}
	return min(max(p, 0), 100)
}

func (s *AttachedStatus) exhausted() bool {
	v, ok := s.vars()[StackCounterVar]
	if !ok {
		return false
	}
	n, err := v.AsInt()
	return err == nil && n <= 0
}
