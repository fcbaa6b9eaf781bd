package battle

import (
	"strconv"
	"strings"

	"github.com/louisbranch/arena/internal/battle/expr"
)

// ID identifies a unit within one battle. IDs are assigned sequentially
// starting at 1; zero means no unit.
type ID uint64

func (id ID) String() string { return strconv.FormatUint(uint64(id), 10) }

// Faction is the side a unit fights for.
type Faction int

const (
	FactionNone Faction = iota
	FactionPlayer
	FactionEnemy
)

func (f Faction) String() string {
	switch f {
	case FactionPlayer:
		return "player"
	case FactionEnemy:
		return "enemy"
	default:
		return "none"
	}
}

// Opponent returns the opposing faction.
func (f Faction) Opponent() Faction {
	switch f {
	case FactionPlayer:
		return FactionEnemy
	case FactionEnemy:
		return FactionPlayer
	default:
		return FactionNone
	}
}

// MarshalText encodes the faction by name.
func (f Faction) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

// UnmarshalText decodes a faction name. Unknown names decode to FactionNone.
func (f *Faction) UnmarshalText(b []byte) error {
	*f, _ = ParseFaction(string(b))
	return nil
}

// ParseFaction parses a faction name.
func ParseFaction(s string) (Faction, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "player", "players", "ally":
		return FactionPlayer, true
	case "enemy", "enemies":
		return FactionEnemy, true
	}
	return FactionNone, false
}

// FactionFilter selects units relative to a reference unit's faction.
type FactionFilter int

const (
	FilterAll FactionFilter = iota
	FilterAllies
	FilterEnemies
)

func (f FactionFilter) String() string {
	switch f {
	case FilterAllies:
		return "allies"
	case FilterEnemies:
		return "enemies"
	default:
		return "all"
	}
}

// ParseFactionFilter parses a faction filter name. Empty input means all.
func ParseFactionFilter(s string) (FactionFilter, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return FilterAll, true
	case "allies", "ally", "same":
		return FilterAllies, true
	case "enemies", "enemy", "opposite":
		return FilterEnemies, true
	}
	return FilterAll, false
}

// Matches reports whether a unit of faction other passes the filter relative
// to faction ref.
func (f FactionFilter) Matches(ref, other Faction) bool {
	switch f {
	case FilterAllies:
		return ref == other
	case FilterEnemies:
		return ref != other
	default:
		return true
	}
}

// Flag is a frame-scoped stat flag derived from attached statuses.
type Flag uint32

const (
	FlagActionUnable Flag = 1 << iota
	FlagInvulnerable
	FlagShielded
	FlagTaunting
)

// Has reports whether all bits of o are set.
func (f Flag) Has(o Flag) bool { return f&o == o }

var flagNames = []struct {
	flag Flag
	name string
}{
	{FlagActionUnable, "action_unable"},
	{FlagInvulnerable, "invulnerable"},
	{FlagShielded, "shielded"},
	{FlagTaunting, "taunting"},
}

func (f Flag) String() string {
	if f == 0 {
		return "none"
	}
	var parts []string
	for _, n := range flagNames {
		if f.Has(n.flag) {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// ParseFlag parses a single flag name.
func ParseFlag(s string) (Flag, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, n := range flagNames {
		if n.name == s {
			return n.flag, true
		}
	}
	return 0, false
}

// Unit is a combatant. Units are owned by a Store; dead units stay in the
// store so kill and death triggers can still observe them.
type Unit struct {
	ID       ID
	Name     string
	Template string
	Faction  Faction
	Clans    []string

	Health    int
	MaxHealth int
	Stacks    int
	MaxStacks int

	Slot     int
	Position expr.Vec

	// Action is resolved against the unit's target when its turn comes up.
	Action         Effect
	ActionCooldown int
	Cooldown       int

	Flags Flag
	// Auras lists the aura instances currently granting statuses to the unit.
	Auras []StatusID
	Dead  bool

	statuses []StatusID
	// maxHealthMod is the part of MaxHealth contributed by modifiers.
	maxHealthMod int
}

// Alive reports whether the unit can act and be targeted.
func (u *Unit) Alive() bool { return u != nil && !u.Dead }

// Statuses returns the IDs of attached statuses in attach order.
func (u *Unit) Statuses() []StatusID {
	out := make([]StatusID, len(u.statuses))
	copy(out, u.statuses)
	return out
}

func (u *Unit) hasAura(id StatusID) bool {
	for _, a := range u.Auras {
		if a == id {
			return true
		}
	}
	return false
}

func (u *Unit) dropAura(id StatusID) {
	for i, a := range u.Auras {
		if a == id {
			u.Auras = append(u.Auras[:i], u.Auras[i+1:]...)
			return
		}
	}
}

func (u *Unit) inClan(clans []string) bool {
	for _, want := range clans {
		for _, c := range u.Clans {
			if c == want {
				return true
			}
		}
	}
	return false
}

// UnitView is a read-only snapshot of a unit handed to collaborators.
type UnitView struct {
	ID        ID
	Name      string
	Faction   Faction
	Health    int
	MaxHealth int
	Stacks    int
	Slot      int
	Position  expr.Vec
	Alive     bool
	Statuses  []string
}
