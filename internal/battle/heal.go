package battle

// heal applies a Heal effect. A max-health bonus is applied first so the
// heal may use the extended maximum; health never exceeds the maximum.
func (b *Battle) heal(q QueuedEffect, e Heal) (resolution, error) {
	caster, target, err := b.participants(q)
	if err != nil {
		return resolution{}, err
	}
	ev := b.env(q.Ctx)
	amount, err := e.Amount.resolve(ev)
	if err != nil {
		return resolution{}, err
	}
	bonus, err := e.MaxBonus.resolve(ev)
	if err != nil {
		return resolution{}, err
	}

	var res resolution
	if !target.Alive() {
		b.logger.Printf("battle: heal on dead unit %d skipped", target.ID)
		return res, nil
	}
	extra, err := bonus.of(target.MaxHealth)
	if err != nil {
		return resolution{}, err
	}
	maxHealth := target.MaxHealth + max(extra, 0)
	incoming, err := amount.of(maxHealth)
	if err != nil {
		return resolution{}, err
	}
	target.MaxHealth = maxHealth
	if incoming <= 0 {
		return res, nil
	}
	restored := max(min(incoming, target.MaxHealth-target.Health), 0)
	target.Health += restored
	b.stats.Healing += restored
	b.unitStats(caster.ID).Healing += restored
	b.record(Action{Kind: ActionHeal, Unit: target.ID, Source: caster.ID, Amount: restored, Color: q.Ctx.Color})

	vars := eventVars("HealthRestored", restored, "IncomingHeal", incoming)
	res.react(b.store.Match(target.ID, Event{Kind: TriggerHealTaken, Other: caster.ID, Vars: vars}))
	if caster.Alive() {
		res.react(b.store.Match(caster.ID, Event{Kind: TriggerHealDealt, Other: target.ID, Vars: vars}))
	}
	return res, nil
}
