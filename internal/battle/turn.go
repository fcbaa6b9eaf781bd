package battle

import "sort"

// Phase is the sub-phase of a unit's turn.
type Phase int

const (
	PhaseNone Phase = iota
	PhasePreTurn
	PhaseTurn
	PhaseCooldown
)

func (p Phase) String() string {
	switch p {
	case PhasePreTurn:
		return "pre_turn"
	case PhaseTurn:
		return "turn"
	case PhaseCooldown:
		return "cooldown"
	default:
		return "none"
	}
}

// TurnEntry is one unit's turn within a round.
type TurnEntry struct {
	Unit  ID
	Phase Phase
}

// TurnQueue holds the remaining turns of the current round in order. It is
// empty at round boundaries.
type TurnQueue struct {
	entries []TurnEntry
}

// Len returns the number of remaining turns.
func (t *TurnQueue) Len() int { return len(t.entries) }

// Entries returns the remaining turns in order.
func (t *TurnQueue) Entries() []TurnEntry {
	out := make([]TurnEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

func (t *TurnQueue) head() *TurnEntry {
	if len(t.entries) == 0 {
		return nil
	}
	return &t.entries[0]
}

func (t *TurnQueue) pop() {
	if len(t.entries) > 0 {
		t.entries = t.entries[1:]
	}
}

// rejoin queues a turn at the end of the current round for a unit that has
// none left in it. Between rounds it does nothing; the next fill includes
// every living unit.
func (t *TurnQueue) rejoin(id ID) {
	if len(t.entries) == 0 {
		return
	}
	for _, e := range t.entries {
		if e.Unit == id {
			return
		}
	}
	t.entries = append(t.entries, TurnEntry{Unit: id})
}

// fill queues one turn per living unit ordered by slot, faction, then id.
func (t *TurnQueue) fill(units []*Unit) {
	sorted := make([]*Unit, 0, len(units))
	for _, u := range units {
		if u.Alive() {
			sorted = append(sorted, u)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Slot != b.Slot {
			return a.Slot < b.Slot
		}
		if a.Faction != b.Faction {
			return a.Faction < b.Faction
		}
		return a.ID < b.ID
	})
	t.entries = t.entries[:0]
	for _, u := range sorted {
		t.entries = append(t.entries, TurnEntry{Unit: u.ID})
	}
}

// advance moves the turn state machine forward by one phase.
func (b *Battle) advance() {
	entry := b.turns.head()
	for entry != nil {
		if u, ok := b.store.Unit(entry.Unit); ok && u.Alive() {
			break
		}
		b.turns.pop()
		b.acting = 0
		entry = b.turns.head()
	}
	if entry == nil {
		b.startRound()
		return
	}
	u, _ := b.store.Unit(entry.Unit)

	switch entry.Phase {
	case PhaseNone:
		entry.Phase = PhasePreTurn
		b.visual += b.cfg.PhaseDelay
	case PhasePreTurn:
		entry.Phase = PhaseTurn
		b.acting = u.ID
		b.record(Action{Kind: ActionTurnStart, Unit: u.ID})
		b.queue.PushBack(queued(b.store.Match(u.ID, Event{Kind: TriggerTurnStart}))...)
	case PhaseTurn:
		b.act(u)
		entry.Phase = PhaseCooldown
		b.visual += b.cfg.PhaseDelay
	case PhaseCooldown:
		b.turns.pop()
		b.acting = 0
	}
}

// act resolves a unit's turn. Units that cannot act skip without touching
// their cooldown.
func (b *Battle) act(u *Unit) {
	if u.Flags.Has(FlagActionUnable) {
		b.record(Action{Kind: ActionTurnSkipped, Unit: u.ID, Detail: "action unable"})
		return
	}
	if u.Cooldown > 0 {
		u.Cooldown--
		b.record(Action{Kind: ActionCooldown, Unit: u.ID, Amount: u.Cooldown})
		return
	}
	if u.Action == nil {
		b.record(Action{Kind: ActionTurnSkipped, Unit: u.ID, Detail: "no action"})
		return
	}
	target := b.chooseTarget(u)
	if target == nil {
		b.record(Action{Kind: ActionTurnSkipped, Unit: u.ID, Detail: "no target"})
		return
	}
	b.record(Action{Kind: ActionAct, Unit: target.ID, Source: u.ID, Detail: u.Action.Kind().String()})
	b.queue.PushFront(queued(b.store.Match(u.ID, Event{Kind: TriggerAction, Other: target.ID}))...)
	b.queue.PushBack(QueuedEffect{
		Effect: u.Action,
		Ctx:    EffectContext{Caster: u.ID, From: u.ID, Target: target.ID},
	})
	u.Cooldown = b.cooldownFor(u)
}

// cooldownFor returns the turns a unit waits after acting. Slow statuses add
// a turn each and attack speed statuses remove one.
func (b *Battle) cooldownFor(u *Unit) int {
	cd := u.ActionCooldown
	for _, st := range b.store.StatusesOf(u.ID) {
		switch st.Def.Kind {
		case StatusSlow:
			cd++
		case StatusAttackSpeed:
			cd--
		}
	}
	return max(cd, 0)
}

// chooseTarget picks the first living enemy by slot, preferring taunting
// units.
func (b *Battle) chooseTarget(u *Unit) *Unit {
	var best *Unit
	for _, other := range b.store.Alive() {
		if other.Faction == u.Faction {
			continue
		}
		if best == nil || targetBefore(other, best) {
			best = other
		}
	}
	return best
}

func targetBefore(a, b *Unit) bool {
	at, bt := a.Flags.Has(FlagTaunting), b.Flags.Has(FlagTaunting)
	if at != bt {
		return at
	}
	if a.Slot != b.Slot {
		return a.Slot < b.Slot
	}
	return a.ID < b.ID
}

// startRound ticks status lifetimes from the second round on and queues a
// turn for every living unit.
func (b *Battle) startRound() {
	b.round++
	b.record(Action{Kind: ActionRoundStart, Amount: b.round})
	if b.round > 1 {
		b.queue.PushBack(queued(b.store.TickLifetimes(1))...)
	}
	b.turns.fill(b.store.Alive())
}
