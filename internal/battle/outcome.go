package battle

// Reason explains why a battle ended.
type Reason string

const (
	ReasonEliminated Reason = "eliminated"
	ReasonTransition Reason = "transition"
	ReasonAborted    Reason = "aborted"
	ReasonStepLimit  Reason = "step_limit"
	ReasonError      Reason = "error"
)

// Stats are battle-wide counters.
type Stats struct {
	Rounds           int `json:"rounds"`
	Steps            int `json:"steps"`
	EffectsProcessed int `json:"effects_processed"`
	EffectFailures   int `json:"effect_failures"`
	DamageDealt      int `json:"damage_dealt"`
	Healing          int `json:"healing"`
	Kills            int `json:"kills"`
	StatusesAttached int `json:"statuses_attached"`
	StatusesRemoved  int `json:"statuses_removed"`
}

// UnitStats are per-unit counters.
type UnitStats struct {
	DamageDealt int `json:"damage_dealt"`
	DamageTaken int `json:"damage_taken"`
	Healing     int `json:"healing"`
	Kills       int `json:"kills"`
}

// UnitResult is a unit's final state.
type UnitResult struct {
	ID        ID        `json:"id"`
	Name      string    `json:"name"`
	Faction   Faction   `json:"faction"`
	Slot      int       `json:"slot"`
	Alive     bool      `json:"alive"`
	Health    int       `json:"health"`
	MaxHealth int       `json:"max_health"`
	Stats     UnitStats `json:"stats"`
}

// Outcome is what the battle reports to the backend once it ends. Before
// then it is a snapshot with Over unset.
type Outcome struct {
	BattleID string       `json:"battle_id,omitempty"`
	Seed     int64        `json:"seed"`
	Over     bool         `json:"over"`
	Winner   Faction      `json:"winner"`
	Reason   Reason       `json:"reason,omitempty"`
	Detail   string       `json:"detail,omitempty"`
	Stats    Stats        `json:"stats"`
	Units    []UnitResult `json:"units"`
}

// Survivors returns the living units of faction f.
func (o Outcome) Survivors(f Faction) []UnitResult {
	var out []UnitResult
	for _, u := range o.Units {
		if u.Alive && u.Faction == f {
			out = append(out, u)
		}
	}
	return out
}

// Outcome returns the battle outcome. Units are listed in creation order.
func (b *Battle) Outcome() Outcome {
	stats := b.stats
	stats.Rounds = b.round
	stats.Steps = b.steps
	out := Outcome{
		BattleID: b.cfg.ID,
		Seed:     b.cfg.Seed,
		Over:     b.over,
		Winner:   b.winner,
		Reason:   b.reason,
		Detail:   b.detail,
		Stats:    stats,
	}
	for _, u := range b.store.Units() {
		res := UnitResult{
			ID:        u.ID,
			Name:      u.Name,
			Faction:   u.Faction,
			Slot:      u.Slot,
			Alive:     u.Alive(),
			Health:    u.Health,
			MaxHealth: u.MaxHealth,
		}
		if s, ok := b.perUnit[u.ID]; ok {
			res.Stats = *s
		}
		out.Units = append(out.Units, res)
	}
	return out
}
