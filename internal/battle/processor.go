package battle

import (
	"errors"
	"fmt"
	"sort"

	"github.com/louisbranch/arena/internal/battle/expr"
)

// resolution collects the effects resolving one effect schedules ahead of
// the rest of the queue.
type resolution struct {
	front []QueuedEffect
}

func (r *resolution) prepend(q ...QueuedEffect) { r.front = append(r.front, q...) }

func (r *resolution) react(rs []Reaction) { r.front = append(r.front, queued(rs)...) }

// drain resolves queued effects until the queue is empty. Evaluation
// failures abort only the offending effect; precondition violations and
// exceeding the iteration cap abort the drain.
func (b *Battle) drain() error {
	processed := 0
	var recent []QueuedEffect
	for {
		q, ok := b.queue.PopFront()
		if !ok {
			return nil
		}
		if processed >= b.cfg.CascadeLimit {
			b.queue.Clear()
			return &CascadeError{Limit: b.cfg.CascadeLimit, Recent: recent}
		}
		processed++
		b.stats.EffectsProcessed++
		recent = append(recent, q)
		if len(recent) > b.cfg.TraceDepth {
			recent = recent[1:]
		}

		res, err := b.resolve(q)
		if err != nil {
			var pre *PreconditionError
			if errors.As(err, &pre) {
				b.queue.Clear()
				return err
			}
			b.stats.EffectFailures++
			b.logger.Printf("battle: %s failed: %v", q, err)
			b.record(Action{Kind: ActionEffectFailed, Unit: q.Ctx.Target, Source: q.Ctx.Caster, Detail: err.Error()})
			continue
		}
		b.queue.PushFront(res.front...)
	}
}

func (b *Battle) resolve(q QueuedEffect) (resolution, error) {
	switch e := q.Effect.(type) {
	case nil, Noop:
		return resolution{}, nil
	case Damage:
		return b.damage(q, e)
	case Heal:
		return b.heal(q, e)
	case AttachStatus:
		return b.attachStatus(q, e)
	case RemoveStatus:
		return b.removeStatus(q, e)
	case Suicide:
		return b.suicide(q)
	case Spawn:
		return b.spawn(q, e)
	case AOE:
		return b.aoe(q, e)
	case Tween:
		return b.tween(q, e)
	case List:
		var res resolution
		for _, inner := range e.Effects {
			if inner != nil {
				res.prepend(QueuedEffect{Effect: inner, Ctx: q.Ctx.withTarget(q.Ctx.Target)})
			}
		}
		return res, nil
	case If:
		return b.branch(q, e)
	case Script:
		return b.script(q, e)
	case Random:
		return b.random(q, e)
	case Repeat:
		return b.repeat(q, e)
	case Revive:
		return b.revive(q, e)
	case ChangeStat:
		return b.changeStat(q, e)
	case AddVar:
		return b.addVar(q, e)
	default:
		return resolution{}, fmt.Errorf("%w: effect %T", expr.ErrUnsupported, q.Effect)
	}
}

func (b *Battle) env(ctx EffectContext) env {
	return env{store: b.store, ctx: ctx, rng: b.rng}
}

// require returns a referenced unit, alive or dead. A reference to a unit the
// battle never had is a precondition violation.
func (b *Battle) require(q QueuedEffect, id ID, role string) (*Unit, error) {
	u, ok := b.store.Unit(id)
	if !ok {
		return nil, &PreconditionError{Effect: q, Err: fmt.Errorf("%w: %s %d", ErrUnknownUnit, role, id)}
	}
	return u, nil
}

func (b *Battle) participants(q QueuedEffect) (caster, target *Unit, err error) {
	caster, err = b.require(q, q.Ctx.Caster, "caster")
	if err != nil {
		return nil, nil, err
	}
	target, err = b.require(q, q.Ctx.Target, "target")
	if err != nil {
		return nil, nil, err
	}
	return caster, target, nil
}

func (b *Battle) attachStatus(q QueuedEffect, e AttachStatus) (resolution, error) {
	caster, target, err := b.participants(q)
	if err != nil {
		return resolution{}, err
	}
	def, ok := b.catalog.Status(e.Name)
	if !ok {
		return resolution{}, &PreconditionError{Effect: q, Err: fmt.Errorf("%w: %q", ErrUnknownStatus, e.Name)}
	}
	ev := b.env(q.Ctx)
	life := Permanent
	if e.Lifetime != nil {
		n, err := expr.EvalInt(*e.Lifetime, ev)
		if err != nil {
			return resolution{}, err
		}
		life = Rounds(n)
	}
	vars, err := evalVars(e.Vars, ev)
	if err != nil {
		return resolution{}, err
	}

	var res resolution
	_, reactions := b.store.Attach(target.ID, def, life, caster.ID, vars)
	res.react(reactions)
	return res, nil
}

// evalVars evaluates variable expressions in name order so random draws are
// reproducible.
func evalVars(exprs map[string]expr.Expr, ev expr.Env) (Vars, error) {
	if len(exprs) == 0 {
		return nil, nil
	}
	names := make([]string, 0, len(exprs))
	for name := range exprs {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make(Vars, len(exprs))
	for _, name := range names {
		v, err := expr.Eval(exprs[name], ev)
		if err != nil {
			return nil, err
		}
		out[name] = v
	}
	return out, nil
}

func (b *Battle) removeStatus(q QueuedEffect, e RemoveStatus) (resolution, error) {
	target, err := b.require(q, q.Ctx.Target, "target")
	if err != nil {
		return resolution{}, err
	}
	var res resolution
	if e.Charges == nil {
		res.react(b.store.DetachNamed(target.ID, e.Name))
		return res, nil
	}
	charges, err := expr.EvalInt(*e.Charges, b.env(q.Ctx))
	if err != nil {
		return resolution{}, err
	}
	for _, st := range b.store.StatusesOf(target.ID) {
		if st.Def.Name != e.Name || st.AuraID != 0 {
			continue
		}
		counter, ok := st.vars()[StackCounterVar]
		if !ok {
			b.logger.Printf("battle: %q on unit %d has no charges to remove", e.Name, target.ID)
			return res, nil
		}
		left, err := counter.AsInt()
		if err != nil {
			return resolution{}, &expr.EvaluationError{Op: expr.OpVar, Detail: StackCounterVar, Err: err}
		}
		left -= charges
		if st.Vars == nil {
			st.Vars = make(Vars)
		}
		st.Vars[StackCounterVar] = expr.Int(left)
		b.record(Action{Kind: ActionStatusCharges, Unit: target.ID, Source: q.Ctx.Caster, Amount: left, Status: e.Name, Color: st.Def.Color})
		return res, nil
	}
	return res, nil
}

func (b *Battle) suicide(q QueuedEffect) (resolution, error) {
	caster, err := b.require(q, q.Ctx.Caster, "caster")
	if err != nil {
		return resolution{}, err
	}
	var res resolution
	if !caster.Alive() {
		return res, nil
	}
	b.kill(caster, caster, nil, &res)
	return res, nil
}

func (b *Battle) spawn(q QueuedEffect, e Spawn) (resolution, error) {
	caster, target, err := b.participants(q)
	if err != nil {
		return resolution{}, err
	}
	tpl, ok := b.catalog.Unit(e.Template)
	if !ok {
		return resolution{}, &PreconditionError{Effect: q, Err: fmt.Errorf("%w: %q", ErrUnknownTemplate, e.Template)}
	}
	var res resolution
	u, reactions, err := b.addUnit(tpl, caster.Faction, target.Slot, target.Position)
	if err != nil {
		return resolution{}, &PreconditionError{Effect: q, Err: err}
	}
	b.record(Action{Kind: ActionSpawn, Unit: u.ID, Source: caster.ID, Detail: tpl.Name})
	res.react(reactions)
	res.react(b.store.Match(u.ID, Event{Kind: TriggerSpawn, Other: caster.ID}))
	return res, nil
}

func (b *Battle) aoe(q QueuedEffect, e AOE) (resolution, error) {
	caster, center, err := b.participants(q)
	if err != nil {
		return resolution{}, err
	}
	radius, err := expr.EvalFloat(e.Radius, b.env(q.Ctx))
	if err != nil {
		return resolution{}, err
	}
	var res resolution
	for _, u := range b.store.Alive() {
		if !e.Filter.Matches(caster.Faction, u.Faction) {
			continue
		}
		if center.Position.Distance(u.Position) > radius {
			continue
		}
		for _, inner := range e.Effects {
			if inner != nil {
				res.prepend(QueuedEffect{Effect: inner, Ctx: q.Ctx.withTarget(u.ID)})
			}
		}
	}
	return res, nil
}

func (b *Battle) tween(q QueuedEffect, e Tween) (resolution, error) {
	target, err := b.require(q, q.Ctx.Target, "target")
	if err != nil {
		return resolution{}, err
	}
	b.visual = max(b.visual, e.Duration)
	b.record(Action{
		Kind:     ActionTween,
		Unit:     target.ID,
		Source:   q.Ctx.Caster,
		Duration: e.Duration,
		Detail:   fmt.Sprintf("offset(%g,%g)", e.Offset.X, e.Offset.Y),
		Color:    q.Ctx.Color,
	})
	return resolution{}, nil
}

func (b *Battle) branch(q QueuedEffect, e If) (resolution, error) {
	ok, err := expr.EvalBool(e.Cond, b.env(q.Ctx))
	if err != nil {
		return resolution{}, err
	}
	next := e.Else
	if ok {
		next = e.Then
	}
	var res resolution
	if next != nil {
		res.prepend(QueuedEffect{Effect: next, Ctx: q.Ctx.withTarget(q.Ctx.Target)})
	}
	return res, nil
}

func (b *Battle) script(q QueuedEffect, e Script) (resolution, error) {
	if b.cfg.Scripts == nil {
		return resolution{}, fmt.Errorf("%w: %q (no script host)", ErrUnknownScript, e.Name)
	}
	caster, target, err := b.participants(q)
	if err != nil {
		return resolution{}, err
	}
	casterView, _ := b.store.View(caster.ID)
	targetView, _ := b.store.View(target.ID)
	out, err := b.cfg.Scripts.Resolve(e.Name, ScriptContext{
		Caster: casterView,
		Target: targetView,
		Vars:   q.Ctx.Vars.Clone(),
		Args:   Vars(e.Args).Clone(),
		Round:  b.round,
	})
	if err != nil {
		return resolution{}, fmt.Errorf("script %q: %w", e.Name, err)
	}
	var res resolution
	if out != nil {
		res.prepend(QueuedEffect{Effect: out, Ctx: q.Ctx.withTarget(q.Ctx.Target)})
	}
	return res, nil
}

// random draws one choice by weight. The draw happens only when some choice
// has a positive weight.
func (b *Battle) random(q QueuedEffect, e Random) (resolution, error) {
	total := 0
	for _, c := range e.Choices {
		if c.Weight > 0 {
			total += c.Weight
		}
	}
	var res resolution
	if total == 0 {
		return res, nil
	}
	roll := b.rng.Intn(total)
	for _, c := range e.Choices {
		if c.Weight <= 0 {
			continue
		}
		if roll < c.Weight {
			if c.Effect != nil {
				res.prepend(QueuedEffect{Effect: c.Effect, Ctx: q.Ctx.withTarget(q.Ctx.Target)})
			}
			break
		}
		roll -= c.Weight
	}
	return res, nil
}

func (b *Battle) repeat(q QueuedEffect, e Repeat) (resolution, error) {
	n, err := expr.EvalInt(e.Count, b.env(q.Ctx))
	if err != nil {
		return resolution{}, err
	}
	if n > b.cfg.CascadeLimit {
		return resolution{}, &expr.EvaluationError{
			Op:     e.Count.Op,
			Detail: "repeat count",
			Err:    fmt.Errorf("%w: %d exceeds the cascade limit %d", expr.ErrOutOfRange, n, b.cfg.CascadeLimit),
		}
	}
	var res resolution
	if e.Effect == nil {
		return res, nil
	}
	for range max(n, 0) {
		res.prepend(QueuedEffect{Effect: e.Effect, Ctx: q.Ctx.withTarget(q.Ctx.Target)})
	}
	return res, nil
}

// revive restores a dead target. Reviving a living unit is a logged no-op.
func (b *Battle) revive(q QueuedEffect, e Revive) (resolution, error) {
	caster, target, err := b.participants(q)
	if err != nil {
		return resolution{}, err
	}
	amount, err := e.Health.resolve(b.env(q.Ctx))
	if err != nil {
		return resolution{}, err
	}
	health, err := amount.of(target.MaxHealth)
	if err != nil {
		return resolution{}, err
	}
	var res resolution
	if !b.store.Revive(target.ID, health) {
		b.logger.Printf("battle: revive of living unit %d skipped", target.ID)
		return res, nil
	}
	b.turns.rejoin(target.ID)
	b.record(Action{Kind: ActionRevive, Unit: target.ID, Source: caster.ID, Amount: target.Health, Color: q.Ctx.Color})
	return res, nil
}

func (b *Battle) changeStat(q QueuedEffect, e ChangeStat) (resolution, error) {
	target, err := b.require(q, q.Ctx.Target, "target")
	if err != nil {
		return resolution{}, err
	}
	if !changeableStat(e.Stat) {
		return resolution{}, fmt.Errorf("%w: change stat %s", expr.ErrUnsupported, e.Stat)
	}
	value, err := expr.EvalInt(e.Value, b.env(q.Ctx))
	if err != nil {
		return resolution{}, err
	}
	var res resolution
	if !target.Alive() {
		return res, nil
	}
	switch e.Stat {
	case expr.StatMaxHealth:
		value = max(value, 1)
		target.MaxHealth = value
		target.Health = min(target.Health, value)
	case expr.StatStacks:
		value = max(value, 0)
		if target.MaxStacks > 0 {
			value = min(value, target.MaxStacks)
		}
		target.Stacks = value
	case expr.StatMaxStacks:
		value = max(value, 0)
		target.MaxStacks = value
		if value > 0 {
			target.Stacks = min(target.Stacks, value)
		}
	}
	b.record(Action{Kind: ActionStatChanged, Unit: target.ID, Source: q.Ctx.Caster, Amount: value, Detail: e.Stat.String(), Color: q.Ctx.Color})
	return res, nil
}

func changeableStat(s expr.Stat) bool {
	switch s {
	case expr.StatMaxHealth, expr.StatStacks, expr.StatMaxStacks:
		return true
	}
	return false
}

func (b *Battle) addVar(q QueuedEffect, e AddVar) (resolution, error) {
	v, err := expr.Eval(e.Value, b.env(q.Ctx))
	if err != nil {
		return resolution{}, err
	}
	var res resolution
	if e.Effect == nil {
		return res, nil
	}
	ctx := q.Ctx.withTarget(q.Ctx.Target)
	if ctx.Vars == nil {
		ctx.Vars = make(Vars)
	}
	ctx.Vars[e.Name] = v
	res.prepend(QueuedEffect{Effect: e.Effect, Ctx: ctx})
	return res, nil
}

// firstOfKind returns the earliest attached status of a kind.
func (b *Battle) firstOfKind(unit ID, kind StatusKind) *AttachedStatus {
	for _, st := range b.store.StatusesOf(unit) {
		if st.Def.Kind == kind {
			return st
		}
	}
	return nil
}
