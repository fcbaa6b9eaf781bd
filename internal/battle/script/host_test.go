package script

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/louisbranch/arena/internal/battle"
	"github.com/louisbranch/arena/internal/battle/expr"
)

const hostSource = `
local arena = Arena.new("host")
arena:unit{ name = "A", health = 5 }
arena:place{ template = "A", faction = "player" }
arena:place{ template = "A", faction = "enemy" }
arena:script("echo", function(ctx)
	local hurt = ctx.target.max_health - ctx.target.health
	return E.damage{
		amount = hurt + ctx.vars.Bonus + ctx.args.power + ctx.round,
		types = { ctx.caster.faction, ctx.target.statuses[1] },
	}
end)
arena:script("quiet", function(ctx) return nil end)
arena:script("broken", function(ctx) return E.damage{ amount = ctx.nope.x } end)
arena:script("bogus", function(ctx) return { kind = "teleport" } end)
return arena
`

func loadHost(t *testing.T) *Host {
	t.Helper()
	sc, err := LoadScenarioSource("host", hostSource)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return sc.Scripts
}

func TestHostResolve(t *testing.T) {
	host := loadHost(t)
	ctx := battle.ScriptContext{
		Caster: battle.UnitView{ID: 1, Name: "A", Faction: battle.FactionPlayer, Health: 5, MaxHealth: 5, Alive: true},
		Target: battle.UnitView{ID: 2, Name: "A", Faction: battle.FactionEnemy, Health: 2, MaxHealth: 5, Alive: true, Statuses: []string{"Burn"}},
		Vars:   battle.Vars{"Bonus": expr.Int(10)},
		Args:   battle.Vars{"power": expr.Int(100)},
		Round:  4,
	}
	got, err := host.Resolve("echo", ctx)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	want := battle.Damage{Amount: battle.Flat(117), Types: []string{"player", "Burn"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("effect = %#v, want %#v", got, want)
	}

	// The stack is restored between calls.
	for i := 0; i < 3; i++ {
		if _, err := host.Resolve("echo", ctx); err != nil {
			t.Fatalf("resolve %d: %v", i, err)
		}
	}
	if top := host.state.Top(); top != 0 {
		t.Fatalf("stack top = %d, want 0", top)
	}
}

func TestHostResolveNil(t *testing.T) {
	host := loadHost(t)
	got, err := host.Resolve("quiet", battle.ScriptContext{})
	if err != nil || got != nil {
		t.Fatalf("resolve = %v, %v, want nil effect", got, err)
	}
}

func TestHostResolveErrors(t *testing.T) {
	host := loadHost(t)
	if _, err := host.Resolve("missing", battle.ScriptContext{}); !errors.Is(err, battle.ErrUnknownScript) {
		t.Fatalf("err = %v, want ErrUnknownScript", err)
	}
	if _, err := host.Resolve("broken", battle.ScriptContext{}); err == nil || !strings.Contains(err.Error(), "run script broken") {
		t.Fatalf("err = %v, want script runtime error", err)
	}
	if _, err := host.Resolve("bogus", battle.ScriptContext{}); !errors.Is(err, battle.ErrInvalidContent) {
		t.Fatalf("err = %v, want ErrInvalidContent", err)
	}
}

func TestHostHasScript(t *testing.T) {
	host := loadHost(t)
	for name, want := range map[string]bool{"echo": true, "quiet": true, "missing": false, "": false} {
		if got := host.HasScript(name); got != want {
			t.Fatalf("HasScript(%q) = %v, want %v", name, got, want)
		}
	}
}
