package battle

import (
	"slices"
	"sort"

	"github.com/louisbranch/arena/internal/battle/expr"
)

// modifiers returns a unit's live modifier statuses of the given targets in
// priority order.
func (s *Store) modifiers(unit ID, targets ...ModifierTarget) []*AttachedStatus {
	var out []*AttachedStatus
	for _, st := range s.StatusesOf(unit) {
		m := st.Def.Modifier
		if m == nil || st.exhausted() || !slices.Contains(targets, m.Target) {
			continue
		}
		out = append(out, st)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Def.Modifier.Priority < out[j].Def.Modifier.Priority
	})
	return out
}

// modifyDamage runs the caster's damage modifiers over an outgoing amount and
// returns the new amount and damage types.
func (b *Battle) modifyDamage(q QueuedEffect, amount int, types []string) (int, []string, error) {
	types = slices.Clone(types)
	for _, st := range b.store.modifiers(q.Ctx.Caster, ModifyDamage, ModifyDamageTypes) {
		m := st.Def.Modifier
		if len(m.Source) > 0 && !overlaps(m.Source, types) {
			continue
		}
		ctx := q.Ctx.withTarget(q.Ctx.Target)
		ctx.Vars = st.vars().Merge(ctx.Vars).Merge(eventVars("DamageIncoming", amount))
		ctx.Status = st.ID
		ok, err := b.modifierHolds(m, ctx)
		if err != nil {
			return 0, nil, err
		}
		if !ok {
			continue
		}
		switch m.Target {
		case ModifyDamage:
			if m.Value == nil {
				continue
			}
			amount, err = expr.EvalInt(*m.Value, b.env(ctx))
			if err != nil {
				return 0, nil, err
			}
		case ModifyDamageTypes:
			for _, t := range m.ExtraTypes {
				if !slices.Contains(types, t) {
					types = append(types, t)
				}
			}
		}
	}
	return amount, types, nil
}

func (b *Battle) modifierHolds(m *ModifierDef, ctx EffectContext) (bool, error) {
	if m.Condition == nil {
		return true, nil
	}
	return expr.EvalBool(*m.Condition, b.env(ctx))
}

// applyStatModifiers recomputes max health on every living unit from its
// unmodified maximum, so modifiers never compound across settles. Health is
// capped at the new maximum.
func (b *Battle) applyStatModifiers() {
	for _, u := range b.store.Alive() {
		base := u.MaxHealth - u.maxHealthMod
		value := base
		for _, st := range b.store.modifiers(u.ID, ModifyMaxHealth) {
			m := st.Def.Modifier
			if m.Value == nil {
				continue
			}
			ctx := EffectContext{
				Caster: u.ID,
				From:   st.Caster,
				Target: u.ID,
				Vars:   st.vars().Merge(eventVars("Base", base, "Current", value)),
				Status: st.ID,
			}
			ok, err := b.modifierHolds(m, ctx)
			if err == nil && ok {
				var n int
				n, err = expr.EvalInt(*m.Value, b.env(ctx))
				if err == nil {
					value = n
				}
			}
			if err != nil {
				b.logger.Printf("battle: modifier %q on unit %d: %v", st.Def.Name, u.ID, err)
			}
		}
		value = max(value, 1)
		if value == u.MaxHealth {
			continue
		}
		u.maxHealthMod = value - base
		u.MaxHealth = value
		u.Health = min(u.Health, value)
		b.record(Action{Kind: ActionStatChanged, Unit: u.ID, Amount: value, Detail: expr.StatMaxHealth.String()})
	}
}
