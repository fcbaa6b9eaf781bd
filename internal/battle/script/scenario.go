// Package script loads battle scenarios written in Lua and runs scripted
// action bodies.
//
// A scenario file builds an arena and returns it:
//
//	local arena = Arena.new("duel")
//	arena:status{ name = "Guard", kind = "protection", protection = 25 }
//	arena:unit{ name = "Knight", health = 20, action = E.damage{ amount = X.rand(2, 4) }, statuses = { "Guard" } }
//	arena:script("smite", function(ctx) return E.damage{ amount = ctx.caster.stacks + 1 } end)
//	arena:place{ template = "Knight", faction = "player", slot = 0 }
//	return arena
//
// E.* builds effects and X.* builds expressions evaluated by the engine with
// the battle's seeded random source.
package script

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Shopify/go-lua"

	"github.com/louisbranch/arena/internal/battle"
)

// ErrNoArena indicates a scenario script that did not return an arena.
var ErrNoArena = errors.New("scenario script must return Arena")

// Scenario is a loaded scenario: content, starting roster and the script
// host serving its scripted actions.
type Scenario struct {
	Name    string
	Seed    int64
	Catalog *battle.Catalog
	Roster  []battle.Placement
	Scripts *Host
	// Source is the Lua text the scenario was loaded from.
	Source string
}

// arena accumulates definitions while a scenario script runs.
type arena struct {
	name    string
	seed    int64
	catalog *battle.Catalog
	roster  []battle.Placement
}

// LoadScenario reads and loads a scenario file. A scenario without a name
// is named after the file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	fallback := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return LoadScenarioSource(fallback, string(data))
}

// LoadScenarioSource loads a scenario from Lua source and validates its
// content.
func LoadScenarioSource(name, source string) (*Scenario, error) {
	state := newState()
	if err := lua.LoadBuffer(state, source, "@"+name, ""); err != nil {
		return nil, fmt.Errorf("load lua: %w", err)
	}
	if err := state.ProtectedCall(0, 1, 0); err != nil {
		return nil, fmt.Errorf("run lua: %w", err)
	}

	if state.TypeOf(-1) != lua.TypeUserData {
		state.Pop(1)
		return nil, ErrNoArena
	}
	ud := state.ToUserData(-1)
	state.Pop(1)
	a, ok := ud.(*arena)
	if !ok || a == nil {
		return nil, ErrNoArena
	}
	if strings.TrimSpace(a.name) == "" {
		a.name = name
	}

	host := &Host{state: state}
	if err := a.catalog.Validate(host); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", a.name, err)
	}
	if len(a.roster) == 0 {
		return nil, fmt.Errorf("scenario %s: %w: no units placed", a.name, battle.ErrInvalidContent)
	}
	return &Scenario{
		Name:    a.name,
		Seed:    a.seed,
		Catalog: a.catalog,
		Roster:  a.roster,
		Scripts: host,
		Source:  source,
	}, nil
}

func arenaNew(state *lua.State) int {
	name := lua.OptString(state, 1, "")
	state.PushUserData(&arena{name: name, catalog: battle.NewCatalog()})
	lua.SetMetaTableNamed(state, arenaTypeName)
	return 1
}

var arenaMethods = []lua.RegistryFunction{
	{Name: "status", Function: arenaStatus},
	{Name: "unit", Function: arenaUnit},
	{Name: "place", Function: arenaPlace},
	{Name: "script", Function: arenaScript},
	{Name: "seed", Function: arenaSeed},
}

func checkArena(state *lua.State) *arena {
	ud := lua.CheckUserData(state, 1, arenaTypeName)
	if a, ok := ud.(*arena); ok && a != nil {
		return a
	}
	lua.ArgumentError(state, 1, "arena expected")
	return nil
}

func arenaStatus(state *lua.State) int {
	a := checkArena(state)
	lua.CheckType(state, 2, lua.TypeTable)
	def, err := decodeStatus("status", tableToGo(state, 2))
	if err == nil {
		err = a.catalog.AddStatus(def)
	}
	if err != nil {
		lua.Errorf(state, "%s", err.Error())
	}
	return 0
}

func arenaUnit(state *lua.State) int {
	a := checkArena(state)
	lua.CheckType(state, 2, lua.TypeTable)
	tpl, err := decodeUnit("unit", tableToGo(state, 2))
	if err == nil {
		err = a.catalog.AddUnit(tpl)
	}
	if err != nil {
		lua.Errorf(state, "%s", err.Error())
	}
	return 0
}

func arenaPlace(state *lua.State) int {
	a := checkArena(state)
	lua.CheckType(state, 2, lua.TypeTable)
	p, err := decodePlacement("place", tableToGo(state, 2))
	if err != nil {
		lua.Errorf(state, "%s", err.Error())
		return 0
	}
	a.roster = append(a.roster, p)
	return 0
}

func arenaScript(state *lua.State) int {
	checkArena(state)
	name := strings.TrimSpace(lua.CheckString(state, 2))
	lua.CheckType(state, 3, lua.TypeFunction)
	if name == "" {
		lua.ArgumentError(state, 2, "script name is required")
		return 0
	}
	state.Field(lua.RegistryIndex, scriptsKey)
	state.Field(-1, name)
	taken := !state.IsNil(-1)
	state.Pop(1)
	if taken {
		state.Pop(1)
		lua.Errorf(state, "%s", fmt.Sprintf("script %q is already defined", name))
		return 0
	}
	state.PushValue(3)
	state.SetField(-2, name)
	state.Pop(1)
	return 0
}

func arenaSeed(state *lua.State) int {
	a := checkArena(state)
	a.seed = int64(lua.CheckInteger(state, 2))
	return 0
}
