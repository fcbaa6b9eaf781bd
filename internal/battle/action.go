package battle

import "time"

// ActionKind names a resolved action in the battle log.
type ActionKind string

const (
	ActionRoundStart     ActionKind = "round_start"
	ActionTurnStart      ActionKind = "turn_start"
	ActionTurnSkipped    ActionKind = "turn_skipped"
	ActionCooldown       ActionKind = "cooldown"
	ActionAct            ActionKind = "act"
	ActionDamage         ActionKind = "damage"
	ActionBlocked        ActionKind = "blocked"
	ActionShieldBroken   ActionKind = "shield_broken"
	ActionHeal           ActionKind = "heal"
	ActionStatusAttached ActionKind = "status_attached"
	ActionStatusRemoved  ActionKind = "status_removed"
	ActionStatusCharges  ActionKind = "status_charges"
	ActionStatChanged    ActionKind = "stat_changed"
	ActionRevive         ActionKind = "revive"
	ActionDeath          ActionKind = "death"
	ActionSpawn          ActionKind = "spawn"
	ActionTween          ActionKind = "tween"
	ActionEffectFailed   ActionKind = "effect_failed"
	ActionBattleEnd      ActionKind = "battle_end"
)

// Action is one resolved entry of the battle log handed to the presentation
// layer and kept for replay verification. Field order and tags are part of
// the log hash.
type Action struct {
	Seq      int           `json:"seq"`
	Step     int           `json:"step"`
	Round    int           `json:"round"`
	Kind     ActionKind    `json:"kind"`
	Unit     ID            `json:"unit,omitempty"`
	Source   ID            `json:"source,omitempty"`
	Amount   int           `json:"amount,omitempty"`
	Status   string        `json:"status,omitempty"`
	Detail   string        `json:"detail,omitempty"`
	Color    string        `json:"color,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
}

// actionLog assigns sequence numbers and remembers which actions belong to
// the current step.
type actionLog struct {
	actions   []Action
	stepStart int
}

func (l *actionLog) append(a Action) {
	a.Seq = len(l.actions) + 1
	l.actions = append(l.actions, a)
}

func (l *actionLog) beginStep() { l.stepStart = len(l.actions) }

func (l *actionLog) sinceStep() []Action {
	out := make([]Action, len(l.actions)-l.stepStart)
	copy(out, l.actions[l.stepStart:])
	return out
}

func (l *actionLog) all() []Action {
	out := make([]Action, len(l.actions))
	copy(out, l.actions)
	return out
}
