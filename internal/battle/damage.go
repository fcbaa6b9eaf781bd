package battle

import (
	"strings"
)

// damage applies a Damage effect through the defensive layers in order:
// the caster's modifiers, invulnerability, shield, freeze break, take-damage
// triggers, protection, then health. Every expression is evaluated before
// anything mutates.
func (b *Battle) damage(q QueuedEffect, e Damage) (resolution, error) {
	caster, target, err := b.participants(q)
	if err != nil {
		return resolution{}, err
	}
	ev := b.env(q.Ctx)
	amount, err := e.Amount.resolve(ev)
	if err != nil {
		return resolution{}, err
	}
	lifesteal, err := e.Lifesteal.resolve(ev)
	if err != nil {
		return resolution{}, err
	}
	outgoing, err := amount.of(target.MaxHealth)
	if err != nil {
		return resolution{}, err
	}
	outgoing, damageTypes, err := b.modifyDamage(q, outgoing, e.Types)
	if err != nil {
		return resolution{}, err
	}
	raw := min(outgoing, target.Health)
	// Applied damage never exceeds raw, so checking raw covers the heal.
	if _, err := lifesteal.of(max(raw, 0)); err != nil {
		return resolution{}, err
	}

	var res resolution
	if !target.Alive() {
		b.logger.Printf("battle: damage to dead unit %d skipped", target.ID)
		return res, nil
	}
	if raw <= 0 {
		return res, nil
	}
	e.Types = damageTypes
	types := strings.Join(e.Types, ",")

	if target.Flags.Has(FlagInvulnerable) {
		b.record(Action{Kind: ActionBlocked, Unit: target.ID, Source: caster.ID, Amount: raw, Detail: "invulnerable"})
		return res, nil
	}

	if shield := b.firstOfKind(target.ID, StatusShield); shield != nil {
		def, vars, sid := shield.Def, shield.vars(), shield.ID
		res.react(b.store.Detach(sid))
		b.record(Action{Kind: ActionShieldBroken, Unit: target.ID, Source: caster.ID, Amount: raw, Status: def.Name, Color: def.Color})
		res.prepend(QueuedEffect{
			Effect: Heal{Amount: def.ShieldHeal},
			Ctx:    EffectContext{Caster: target.ID, From: caster.ID, Target: target.ID, Vars: vars, Status: sid, Color: def.Color},
		})
		res.react(b.store.Match(target.ID, Event{
			Kind:   TriggerShieldBroken,
			Other:  caster.ID,
			Status: def.Name,
			Vars:   eventVars("DamageIncoming", raw),
		}))
		return res, nil
	}

	res.react(b.store.DetachKind(target.ID, StatusFreeze))
	res.react(b.store.Match(target.ID, Event{
		Kind:        TriggerTakeDamage,
		Other:       caster.ID,
		DamageTypes: e.Types,
		Vars:        eventVars("DamageIncoming", raw),
	}))

	applied := raw
	for _, st := range b.store.StatusesOf(target.ID) {
		if st.Def.Kind == StatusProtection {
			applied = applied * (100 - st.protection()) / 100
		}
	}
	if applied <= 0 {
		b.record(Action{Kind: ActionBlocked, Unit: target.ID, Source: caster.ID, Amount: raw, Detail: "protection"})
		return res, nil
	}

	before := target.Health
	target.Health = max(target.Health-applied, 0)
	b.stats.DamageDealt += applied
	b.unitStats(caster.ID).DamageDealt += applied
	b.unitStats(target.ID).DamageTaken += applied
	b.record(Action{Kind: ActionDamage, Unit: target.ID, Source: caster.ID, Amount: applied, Detail: types, Color: q.Ctx.Color})

	if caster.Alive() {
		res.react(b.store.Match(caster.ID, Event{
			Kind:        TriggerDealDamage,
			Other:       target.ID,
			DamageTypes: e.Types,
			Vars:        eventVars("DamageDealt", applied),
		}))
	}
	hit := q.Ctx.withTarget(target.ID)
	hit.Vars = hit.Vars.Merge(eventVars("DamageTaken", applied))
	if e.OnInjure != nil {
		res.prepend(QueuedEffect{Effect: e.OnInjure, Ctx: hit})
	}
	killed := before > 0 && target.Health <= 0
	if killed && e.OnKill != nil {
		res.prepend(QueuedEffect{Effect: e.OnKill, Ctx: hit})
	}
	if heal, _ := lifesteal.of(applied); heal > 0 {
		res.prepend(QueuedEffect{
			Effect: Heal{Amount: Flat(heal)},
			Ctx:    EffectContext{Caster: caster.ID, From: target.ID, Target: caster.ID, Color: q.Ctx.Color},
		})
	}
	if killed {
		b.kill(target, caster, e.Types, &res)
	}
	return res, nil
}

// kill fires the killer's kill triggers, moves the victim to the dead set and
// then fires the victim's death triggers followed by the scavenge triggers of
// living units in reach. The victim stays queryable.
func (b *Battle) kill(victim, killer *Unit, types []string, res *resolution) {
	if killer.ID != victim.ID && killer.Alive() {
		res.react(b.store.Match(killer.ID, Event{
			Kind:        TriggerKill,
			Other:       victim.ID,
			DamageTypes: types,
		}))
	}
	b.store.Kill(victim.ID)
	b.stats.Kills++
	if killer.ID != victim.ID {
		b.unitStats(killer.ID).Kills++
	}
	b.record(Action{Kind: ActionDeath, Unit: victim.ID, Source: killer.ID})
	res.react(b.store.Match(victim.ID, Event{Kind: TriggerDeath, Other: killer.ID}))
	res.react(b.store.Scavenge(victim.ID))
}
