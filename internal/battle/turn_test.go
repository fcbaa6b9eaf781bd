package battle

import (
	"testing"
	"time"
)

func step(t *testing.T, b *Battle, n int) StepResult {
	t.Helper()
	var res StepResult
	for i := 0; i < n; i++ {
		var err error
		res, err = b.Step(0)
		if err != nil {
			t.Fatalf("step %d: %v", i+1, err)
		}
	}
	return res
}

func TestRoundOrder(t *testing.T) {
	cat := newCatalog(t, nil, dummy("A", 10), dummy("B", 10))
	b := newBattle(t, cat, player("A", 1), enemy("B", 0), player("A", 0), enemy("B", 1))

	res := step(t, b, 1)
	if res.Round != 1 {
		t.Fatalf("round = %d, want 1", res.Round)
	}
	var got []ID
	for _, e := range b.Turns() {
		got = append(got, e.Unit)
	}
	want := []ID{3, 2, 1, 4}
	if !equalIDs(got, want) {
		t.Fatalf("turn order = %v, want %v", got, want)
	}
}

func TestTurnPhases(t *testing.T) {
	cat := newCatalog(t, nil,
		UnitTemplate{Name: "A", Health: 10, Action: Damage{Amount: Flat(1)}},
		dummy("B", 10),
	)
	b := newBattle(t, cat, player("A", 0), enemy("B", 0))

	wantPhases := []Phase{PhaseNone, PhasePreTurn, PhaseTurn, PhaseCooldown}
	for i, want := range wantPhases {
		res := step(t, b, 1)
		if res.Phase != want {
			t.Fatalf("step %d phase = %s, want %s", i+1, res.Phase, want)
		}
	}
	if h := unit(t, b, 2).Health; h != 9 {
		t.Fatalf("health = %d, want 9", h)
	}
	res := step(t, b, 1)
	if res.Acting != 0 || len(b.Turns()) != 1 || b.Turns()[0].Unit != 2 {
		t.Fatalf("after pop: acting %d turns %v", res.Acting, b.Turns())
	}
}

func TestStunnedUnitSkipsWithoutCooldown(t *testing.T) {
	cat := newCatalog(t,
		[]StatusDef{{Name: "Stun", Kind: StatusStun}},
		UnitTemplate{Name: "Dazed", Health: 10, Action: Damage{Amount: Flat(1)}, Statuses: []StatusGrant{{Name: "Stun", Lifetime: Permanent}}},
		UnitTemplate{Name: "Brute", Health: 10, Action: Damage{Amount: Flat(2)}, ActionCooldown: 1},
	)
	b := newBattle(t, cat, player("Dazed", 0), enemy("Brute", 0))
	dazed, brute := unit(t, b, 1), unit(t, b, 2)
	dazed.Cooldown = 1

	step(t, b, 4)
	log := b.Log()
	last := log[len(log)-1]
	if last.Kind != ActionTurnSkipped || last.Unit != 1 || last.Detail != "action unable" {
		t.Fatalf("last action = %+v, want skipped turn", last)
	}
	if dazed.Cooldown != 1 {
		t.Fatalf("cooldown = %d, want 1", dazed.Cooldown)
	}

	step(t, b, 4)
	if dazed.Health != 8 {
		t.Fatalf("health = %d, want 8", dazed.Health)
	}
	if brute.Cooldown != 1 {
		t.Fatalf("brute cooldown = %d, want 1", brute.Cooldown)
	}
	acts := 0
	for _, a := range b.Log() {
		if a.Kind == ActionAct && a.Source == 2 && a.Unit == 1 {
			acts++
		}
	}
	if acts != 1 {
		t.Fatalf("brute acted %d times, want 1", acts)
	}
}

func TestCooldownCountsDown(t *testing.T) {
	cat := newCatalog(t, nil,
		UnitTemplate{Name: "A", Health: 10, Action: Damage{Amount: Flat(1)}, ActionCooldown: 2},
		dummy("B", 10),
	)
	b := newBattle(t, cat, player("A", 0), enemy("B", 0))
	a := unit(t, b, 1)

	// One round is a round start plus four phases for each of the two units.
	for round := 1; round <= 4; round++ {
		step(t, b, 9)
		if b.Round() != round {
			t.Fatalf("round = %d, want %d", b.Round(), round)
		}
	}
	// Acts in round 1 and round 4, waiting out rounds 2 and 3.
	if h := unit(t, b, 2).Health; h != 8 {
		t.Fatalf("health = %d, want 8", h)
	}
	if a.Cooldown != 2 {
		t.Fatalf("cooldown = %d, want 2", a.Cooldown)
	}
}

func TestCooldownModifiers(t *testing.T) {
	cat := newCatalog(t,
		[]StatusDef{
			{Name: "Slow", Kind: StatusSlow},
			{Name: "Chill", Kind: StatusSlow},
			{Name: "Haste", Kind: StatusAttackSpeed},
		},
		UnitTemplate{Name: "A", Health: 10, Action: Damage{Amount: Flat(1)}, ActionCooldown: 1},
		dummy("B", 10),
	)
	tests := []struct {
		name     string
		statuses []string
		want     int
	}{
		{name: "base", want: 1},
		{name: "slowed twice", statuses: []string{"Slow", "Chill"}, want: 3},
		{name: "hasted", statuses: []string{"Haste"}, want: 0},
		{name: "mixed", statuses: []string{"Slow", "Haste"}, want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBattle(t, cat, player("A", 0), enemy("B", 0))
			for _, name := range tt.statuses {
				apply(t, b, AttachStatus{Name: name}, EffectContext{Caster: 1, Target: 1})
			}
			if got := b.cooldownFor(unit(t, b, 1)); got != tt.want {
				t.Fatalf("cooldown = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestTauntingUnitIsTargetedFirst(t *testing.T) {
	cat := newCatalog(t,
		[]StatusDef{{Name: "Taunt", Kind: StatusTaunt}},
		dummy("Front", 10),
		dummy("Back", 10, "Taunt"),
		UnitTemplate{Name: "Archer", Health: 10, Action: Damage{Amount: Flat(1)}},
	)
	b := newBattle(t, cat, player("Front", 0), player("Back", 3), enemy("Archer", 0))
	if got := b.chooseTarget(unit(t, b, 3)); got.ID != 2 {
		t.Fatalf("target = %d, want taunting unit 2", got.ID)
	}

	apply(t, b, RemoveStatus{Name: "Taunt"}, EffectContext{Caster: 3, Target: 2})
	if got := b.chooseTarget(unit(t, b, 3)); got.ID != 1 {
		t.Fatalf("target = %d, want front unit 1", got.ID)
	}
}

func TestLifetimesTickFromSecondRound(t *testing.T) {
	cat := newCatalog(t,
		[]StatusDef{{Name: "Haste", Kind: StatusAttackSpeed}},
		UnitTemplate{Name: "A", Health: 10, Statuses: []StatusGrant{{Name: "Haste", Lifetime: Rounds(1)}}},
		dummy("B", 10),
	)
	b := newBattle(t, cat, player("A", 0), enemy("B", 0))

	step(t, b, 1)
	if !b.Store().HasStatus(1, "Haste") {
		t.Fatal("status expired during the first round")
	}
	step(t, b, 8)
	if !b.Store().HasStatus(1, "Haste") {
		t.Fatal("status expired before the second round")
	}
	res := step(t, b, 1)
	if res.Round != 2 {
		t.Fatalf("round = %d, want 2", res.Round)
	}
	if b.Store().HasStatus(1, "Haste") {
		t.Fatal("expected status to expire at the start of round 2")
	}
	if n := count(res.Actions, ActionStatusRemoved, "Haste"); n != 1 {
		t.Fatalf("removals = %d, want 1", n)
	}
}

func TestPhaseDelayGatesSteps(t *testing.T) {
	cat := newCatalog(t, nil, dummy("A", 10), dummy("B", 10))
	b := newBattleWith(t, Config{Seed: 1, PhaseDelay: 300 * time.Millisecond}, cat, player("A", 0), enemy("B", 0))

	tick := 100 * time.Millisecond
	want := []Phase{PhaseNone, PhasePreTurn, PhasePreTurn, PhasePreTurn, PhaseTurn}
	for i, phase := range want {
		res, err := b.Step(tick)
		if err != nil {
			t.Fatalf("step %d: %v", i+1, err)
		}
		if res.Phase != phase {
			t.Fatalf("step %d phase = %s, want %s", i+1, res.Phase, phase)
		}
		if (i == 2 || i == 3) && len(res.Actions) != 0 {
			t.Fatalf("step %d resolved %d actions while gated", i+1, len(res.Actions))
		}
	}
}

func TestDeadUnitsLoseTheirTurn(t *testing.T) {
	cat := newCatalog(t, nil,
		UnitTemplate{Name: "A", Health: 10, Action: Damage{Amount: Flat(1)}},
		dummy("B", 10),
	)
	b := newBattle(t, cat, player("A", 0), player("A", 1), enemy("B", 0))
	step(t, b, 1)

	apply(t, b, Damage{Amount: Flat(100)}, EffectContext{Caster: 3, Target: 1})
	res := step(t, b, 1)
	if res.Phase != PhasePreTurn || b.Turns()[0].Unit != 3 {
		t.Fatalf("head = %v phase %s, want unit 3 pre_turn", b.Turns(), res.Phase)
	}
}
