package script

import (
	"fmt"
	"sync"

	"github.com/Shopify/go-lua"

	"github.com/louisbranch/arena/internal/battle"
)

// Host runs the scripted actions a scenario defined with arena:script. A
// script is called with a context table and returns an E.* effect or nil.
type Host struct {
	mu    sync.Mutex
	state *lua.State
}

var (
	_ battle.ScriptHost   = (*Host)(nil)
	_ battle.ScriptLister = (*Host)(nil)
)

// HasScript reports whether the scenario defined a script.
func (h *Host) HasScript(name string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	found := h.pushScript(name)
	h.state.Pop(1)
	return found
}

// Resolve calls a script and decodes the effect it returns.
func (h *Host) Resolve(name string, ctx battle.ScriptContext) (battle.Effect, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	state := h.state
	top := state.Top()
	defer state.SetTop(top)

	if !h.pushScript(name) {
		return nil, fmt.Errorf("%w: %q", battle.ErrUnknownScript, name)
	}
	pushContext(state, ctx)
	if err := state.ProtectedCall(1, 1, 0); err != nil {
		return nil, fmt.Errorf("run script %s: %w", name, err)
	}
	if state.IsNil(-1) {
		return nil, nil
	}
	effect, err := decodeEffect(name, luaToGo(state, -1))
	if err != nil {
		return nil, err
	}
	return effect, nil
}

// pushScript pushes the named script function, or nil, leaving the stack one
// value higher.
func (h *Host) pushScript(name string) bool {
	state := h.state
	state.Field(lua.RegistryIndex, scriptsKey)
	state.Field(-1, name)
	state.Remove(-2)
	return state.IsFunction(-1)
}

func pushContext(state *lua.State, ctx battle.ScriptContext) {
	state.NewTable()
	pushUnit(state, ctx.Caster)
	state.SetField(-2, "caster")
	pushUnit(state, ctx.Target)
	state.SetField(-2, "target")
	pushVars(state, ctx.Vars)
	state.SetField(-2, "vars")
	pushVars(state, ctx.Args)
	state.SetField(-2, "args")
	state.PushInteger(ctx.Round)
	state.SetField(-2, "round")
}
