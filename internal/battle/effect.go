package battle

import (
	"fmt"
	"time"

	"github.com/louisbranch/arena/internal/battle/expr"
)

// EffectKind tags an effect.
type EffectKind int

const (
	EffectNoop EffectKind = iota
	EffectDamage
	EffectHeal
	EffectAttachStatus
	EffectRemoveStatus
	EffectSuicide
	EffectSpawn
	EffectAOE
	EffectTween
	EffectList
	EffectIf
	EffectScript
	EffectRandom
	EffectRepeat
	EffectRevive
	EffectChangeStat
	EffectAddVar
)

func (k EffectKind) String() string {
	switch k {
	case EffectDamage:
		return "damage"
	case EffectHeal:
		return "heal"
	case EffectAttachStatus:
		return "attach_status"
	case EffectRemoveStatus:
		return "remove_status"
	case EffectSuicide:
		return "suicide"
	case EffectSpawn:
		return "spawn"
	case EffectAOE:
		return "aoe"
	case EffectTween:
		return "tween"
	case EffectList:
		return "list"
	case EffectIf:
		return "if"
	case EffectScript:
		return "script"
	case EffectRandom:
		return "random"
	case EffectRepeat:
		return "repeat"
	case EffectRevive:
		return "revive"
	case EffectChangeStat:
		return "change_stat"
	case EffectAddVar:
		return "add_var"
	default:
		return "noop"
	}
}

// Effect is a description of a state mutation. The set of implementations is
// closed; the processor dispatches on the concrete type.
type Effect interface {
	Kind() EffectKind
}

// Amount is a percent-relative quantity: base*Relative/100 + Absolute, where
// the base depends on the effect (max health for damage and heal, applied
// damage for lifesteal).
type Amount struct {
	Relative expr.Expr
	Absolute expr.Expr
}

// Flat returns an amount of n regardless of base.
func Flat(n int) Amount { return Amount{Absolute: expr.Num(n)} }

// Percent returns an amount of p percent of the base.
func Percent(p int) Amount { return Amount{Relative: expr.Num(p)} }

type resolvedAmount struct{ relative, absolute int }

func (a Amount) resolve(env expr.Env) (resolvedAmount, error) {
	rel, err := expr.EvalInt(a.Relative, env)
	if err != nil {
		return resolvedAmount{}, err
	}
	abs, err := expr.EvalInt(a.Absolute, env)
	if err != nil {
		return resolvedAmount{}, err
	}
	return resolvedAmount{relative: rel, absolute: abs}, nil
}

func (r resolvedAmount) of(base int) (int, error) {
	n, err := expr.PercentOf(base, r.relative, r.absolute)
	if err != nil {
		return 0, &expr.EvaluationError{Op: expr.OpPercent, Detail: "amount", Err: err}
	}
	return n, nil
}

// Noop does nothing.
type Noop struct{}

// Damage reduces the target's health through its defensive layers.
type Damage struct {
	Amount Amount
	Types  []string
	// OnInjure resolves against the target whenever damage is applied.
	OnInjure Effect
	// OnKill resolves against the target when this damage kills it.
	OnKill Effect
	// Lifesteal heals the caster by a percentage of the applied damage.
	Lifesteal Amount
}

// Heal restores the target's health, optionally extending max health first.
type Heal struct {
	Amount   Amount
	MaxBonus Amount
}

// AttachStatus attaches a catalog status to the target.
type AttachStatus struct {
	Name string
	// Lifetime in rounds; nil attaches a permanent status.
	Lifetime *expr.Expr
	Vars     map[string]expr.Expr
}

// RemoveStatus removes statuses by name from the target. When Charges is set
// the first matching status loses that many stack counters instead and
// expires at the next lifetime tick once exhausted.
type RemoveStatus struct {
	Name    string
	Charges *expr.Expr
}

// Suicide kills the caster.
type Suicide struct{}

// Spawn creates a unit from a catalog template at the target's position,
// fighting for the caster's faction.
type Spawn struct {
	Template string
}

// AOE resolves Effects once per unit within Radius of the target.
type AOE struct {
	Radius  expr.Expr
	Filter  FactionFilter
	Effects []Effect
}

// Tween records a timed visual transform for the presentation layer. It
// holds the visual timer for Duration and mutates nothing else.
type Tween struct {
	Duration time.Duration
	Offset   expr.Vec
}

// List resolves its effects in order before anything else in the queue.
type List struct {
	Effects []Effect
}

// If resolves Then when Cond holds and Else otherwise.
type If struct {
	Cond expr.Expr
	Then Effect
	Else Effect
}

// Script resolves a named scripted action through the battle's ScriptHost.
type Script struct {
	Name string
	Args map[string]expr.Value
}

// Weighted is one option of a Random effect.
type Weighted struct {
	Weight int
	Effect Effect
}

// Random resolves one of its choices, drawn by weight from the battle's
// random source. Choices with no positive weight are never drawn.
type Random struct {
	Choices []Weighted
}

// Repeat resolves Effect Count times in a row before anything else in the
// queue.
type Repeat struct {
	Count  expr.Expr
	Effect Effect
}

// Revive brings a dead target back with Health of its max health. A revived
// unit keeps the statuses it died with and gets a turn from the next round
// on, or this round when turns remain.
type Revive struct {
	Health Amount
}

// ChangeStat sets one of the target's stats to Value. Only max health,
// stacks and max stacks can change.
type ChangeStat struct {
	Stat  expr.Stat
	Value expr.Expr
}

// AddVar resolves Effect with Name bound to Value in the context variables.
type AddVar struct {
	Name   string
	Value  expr.Expr
	Effect Effect
}

func (Noop) Kind() EffectKind         { return EffectNoop }
func (Damage) Kind() EffectKind       { return EffectDamage }
func (Heal) Kind() EffectKind         { return EffectHeal }
func (AttachStatus) Kind() EffectKind { return EffectAttachStatus }
func (RemoveStatus) Kind() EffectKind { return EffectRemoveStatus }
func (Suicide) Kind() EffectKind      { return EffectSuicide }
func (Spawn) Kind() EffectKind        { return EffectSpawn }
func (AOE) Kind() EffectKind          { return EffectAOE }
func (Tween) Kind() EffectKind        { return EffectTween }
func (List) Kind() EffectKind         { return EffectList }
func (If) Kind() EffectKind           { return EffectIf }
func (Script) Kind() EffectKind       { return EffectScript }
func (Random) Kind() EffectKind       { return EffectRandom }
func (Repeat) Kind() EffectKind       { return EffectRepeat }
func (Revive) Kind() EffectKind       { return EffectRevive }
func (ChangeStat) Kind() EffectKind   { return EffectChangeStat }
func (AddVar) Kind() EffectKind       { return EffectAddVar }

// Vars is the variable bag carried between a trigger and its reaction.
type Vars map[string]expr.Value

// Clone returns a copy of v.
func (v Vars) Clone() Vars {
	out := make(Vars, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// Merge returns a copy of v overlaid with o. Keys in o win.
func (v Vars) Merge(o Vars) Vars {
	out := v.Clone()
	for k, val := range o {
		out[k] = val
	}
	return out
}

// EffectContext binds an effect to the units it acts for and on.
type EffectContext struct {
	// Caster is the unit the effect acts for.
	Caster ID
	// From is the unit whose event produced the effect.
	From   ID
	Target ID
	Vars   Vars
	// Status is the originating status instance, if any.
	Status StatusID
	Color  string
}

// QueuedEffect is one entry of the effect queue.
type QueuedEffect struct {
	Effect Effect
	Ctx    EffectContext
}

func (q QueuedEffect) String() string {
	kind := EffectNoop
	if q.Effect != nil {
		kind = q.Effect.Kind()
	}
	s := fmt.Sprintf("%s caster=%d target=%d", kind, q.Ctx.Caster, q.Ctx.Target)
	if q.Ctx.Status != 0 {
		s += fmt.Sprintf(" status=%d", q.Ctx.Status)
	}
	return s
}

// withTarget returns a copy of c retargeted at id with the same caster.
func (c EffectContext) withTarget(id ID) EffectContext {
	c.Target = id
	c.Vars = c.Vars.Clone()
	return c
}
