package script

import (
	"math"
	"sort"

	"github.com/Shopify/go-lua"

	"github.com/louisbranch/arena/internal/battle"
	"github.com/louisbranch/arena/internal/battle/expr"
)

const (
	arenaTypeName = "arena"
	scriptsKey    = "arena.scripts"
)

// newState opens the libraries scenarios may use and registers the arena
// DSL. Non-deterministic sources are removed so scripts cannot break replay.
func newState() *lua.State {
	state := lua.NewState()
	for _, lib := range []lua.RegistryFunction{
		{Name: "_G", Function: lua.BaseOpen},
		{Name: "table", Function: lua.TableOpen},
		{Name: "string", Function: lua.StringOpen},
		{Name: "math", Function: lua.MathOpen},
	} {
		lua.Require(state, lib.Name, lib.Function, true)
		state.Pop(1)
	}
	state.Global("math")
	state.PushNil()
	state.SetField(-2, "random")
	state.PushNil()
	state.SetField(-2, "randomseed")
	state.Pop(1)

	state.NewTable()
	state.SetField(lua.RegistryIndex, scriptsKey)

	registerArenaType(state)
	registerArenaConstructor(state)
	registerEffectHelpers(state)
	registerExprHelpers(state)
	return state
}

func registerArenaType(state *lua.State) {
	lua.NewMetaTable(state, arenaTypeName)
	state.NewTable()
	lua.SetFunctions(state, arenaMethods, 0)
	state.SetField(-2, "__index")
	state.Pop(1)
}

func registerArenaConstructor(state *lua.State) {
	state.NewTable()
	lua.SetFunctions(state, []lua.RegistryFunction{{Name: "new", Function: arenaNew}}, 0)
	state.SetGlobal("Arena")
}

var effectKinds = []string{
	"noop", "damage", "heal", "attach", "remove", "suicide", "spawn", "aoe", "tween", "script",
	"random", "repeat", "revive", "change_stat", "add_var",
}

// registerEffectHelpers installs E.<kind>{...} constructors that tag a table
// with its effect kind, plus E.list(...) and E.when(cond, then, else).
// E.times aliases E["repeat"] since repeat is a Lua keyword.
func registerEffectHelpers(state *lua.State) {
	helpers := []lua.RegistryFunction{
		{Name: "list", Function: effectList},
		{Name: "when", Function: effectWhen},
		{Name: "times", Function: tagTable("kind", "repeat")},
	}
	for _, kind := range effectKinds {
		helpers = append(helpers, lua.RegistryFunction{Name: kind, Function: tagTable("kind", kind)})
	}
	state.NewTable()
	lua.SetFunctions(state, helpers, 0)
	state.SetGlobal("E")
}

func tagTable(field, value string) lua.Function {
	return func(state *lua.State) int {
		if state.IsNoneOrNil(1) {
			state.NewTable()
		} else {
			lua.CheckType(state, 1, lua.TypeTable)
			state.PushValue(1)
		}
		state.PushString(value)
		state.SetField(-2, field)
		return 1
	}
}

func effectList(state *lua.State) int {
	n := state.Top()
	state.NewTable()
	state.PushString("list")
	state.SetField(-2, "kind")
	state.NewTable()
	for i := 1; i <= n; i++ {
		state.PushValue(i)
		state.RawSetInt(-2, i)
	}
	state.SetField(-2, "effects")
	return 1
}

func effectWhen(state *lua.State) int {
	state.SetTop(3)
	state.NewTable()
	state.PushString("if")
	state.SetField(-2, "kind")
	state.PushValue(1)
	state.SetField(-2, "cond")
	state.PushValue(2)
	state.SetField(-2, "then")
	state.PushValue(3)
	state.SetField(-2, "else")
	return 1
}

// Lua keywords cannot be used as field names, so these operators also get
// callable aliases.
var exprAliases = map[expr.Op]string{
	expr.OpIf:  "cond",
	expr.OpAnd: "all",
	expr.OpOr:  "any",
	expr.OpNot: "negate",
}

// registerExprHelpers installs X.<op>(...) constructors. Operators taking
// only operands build {op=..., args={...}}; var, stat and has_status take
// names.
func registerExprHelpers(state *lua.State) {
	helpers := []lua.RegistryFunction{
		{Name: "var", Function: exprVar},
		{Name: "stat", Function: exprStat},
		{Name: "has_status", Function: exprHasStatus},
	}
	for op := expr.OpRand; op <= expr.OpRoll; op++ {
		fn := exprArgs(op.String())
		helpers = append(helpers, lua.RegistryFunction{Name: op.String(), Function: fn})
		if alias, ok := exprAliases[op]; ok {
			helpers = append(helpers, lua.RegistryFunction{Name: alias, Function: fn})
		}
	}
	state.NewTable()
	lua.SetFunctions(state, helpers, 0)
	state.SetGlobal("X")
}

func exprArgs(op string) lua.Function {
	return func(state *lua.State) int {
		n := state.Top()
		state.NewTable()
		state.PushString(op)
		state.SetField(-2, "op")
		state.NewTable()
		for i := 1; i <= n; i++ {
			state.PushValue(i)
			state.RawSetInt(-2, i)
		}
		state.SetField(-2, "args")
		return 1
	}
}

func exprVar(state *lua.State) int {
	name := lua.CheckString(state, 1)
	state.NewTable()
	state.PushString("var")
	state.SetField(-2, "op")
	state.PushString(name)
	state.SetField(-2, "name")
	return 1
}

func exprStat(state *lua.State) int {
	who := lua.CheckString(state, 1)
	stat := lua.CheckString(state, 2)
	state.NewTable()
	state.PushString("stat")
	state.SetField(-2, "op")
	state.PushString(who)
	state.SetField(-2, "who")
	state.PushString(stat)
	state.SetField(-2, "stat")
	return 1
}

func exprHasStatus(state *lua.State) int {
	who := lua.CheckString(state, 1)
	name := lua.CheckString(state, 2)
	state.NewTable()
	state.PushString("has_status")
	state.SetField(-2, "op")
	state.PushString(who)
	state.SetField(-2, "who")
	state.PushString(name)
	state.SetField(-2, "name")
	return 1
}

// luaToGo converts the value at index. Functions, userdata and nil become
// nil.
func luaToGo(state *lua.State, index int) any {
	switch state.TypeOf(index) {
	case lua.TypeString:
		s, _ := state.ToString(index)
		return s
	case lua.TypeNumber:
		n, _ := state.ToNumber(index)
		if n == math.Trunc(n) && math.Abs(n) < 1<<53 {
			return int(n)
		}
		return n
	case lua.TypeBoolean:
		return state.ToBoolean(index)
	case lua.TypeTable:
		return tableToGo(state, index)
	}
	return nil
}

// tableToGo returns a []any when the table's keys are exactly 1..n and a
// map[string]any of its string keys otherwise. An empty table is an empty
// map.
func tableToGo(state *lua.State, index int) any {
	index = state.AbsIndex(index)
	fields := map[string]any{}
	var seq map[int]any
	mixed := false

	state.PushNil()
	for state.Next(index) {
		// Key types are checked first: ToString on a number key would
		// convert it in place and break Next.
		switch state.TypeOf(-2) {
		case lua.TypeString:
			key, _ := state.ToString(-2)
			fields[key] = luaToGo(state, -1)
		case lua.TypeNumber:
			if i, ok := state.ToInteger(-2); ok && i > 0 {
				if seq == nil {
					seq = map[int]any{}
				}
				seq[i] = luaToGo(state, -1)
			} else {
				mixed = true
			}
		default:
			mixed = true
		}
		state.Pop(1)
	}

	if len(seq) == 0 || len(fields) > 0 || mixed {
		return fields
	}
	list := make([]any, len(seq))
	for i, v := range seq {
		if i > len(seq) {
			return fields
		}
		list[i-1] = v
	}
	return list
}

// pushValue pushes an expression value.
func pushValue(state *lua.State, v expr.Value) {
	switch v.Kind() {
	case expr.KindInt:
		n, _ := v.AsInt()
		state.PushInteger(n)
	case expr.KindFloat:
		f, _ := v.AsFloat()
		state.PushNumber(f)
	case expr.KindBool:
		b, _ := v.AsBool()
		state.PushBoolean(b)
	case expr.KindVec:
		vec, _ := v.AsVec()
		pushVec(state, vec)
	case expr.KindString:
		s, _ := v.AsString()
		state.PushString(s)
	default:
		state.PushNil()
	}
}

func pushVec(state *lua.State, v expr.Vec) {
	state.NewTable()
	state.PushNumber(v.X)
	state.SetField(-2, "x")
	state.PushNumber(v.Y)
	state.SetField(-2, "y")
}

// pushVars pushes a variable bag as a table, keys in sorted order.
func pushVars(state *lua.State, vars battle.Vars) {
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	state.NewTable()
	for _, k := range keys {
		pushValue(state, vars[k])
		state.SetField(-2, k)
	}
}

func pushUnit(state *lua.State, u battle.UnitView) {
	state.NewTable()
	state.PushInteger(int(u.ID))
	state.SetField(-2, "id")
	state.PushString(u.Name)
	state.SetField(-2, "name")
	state.PushString(u.Faction.String())
	state.SetField(-2, "faction")
	state.PushInteger(u.Health)
	state.SetField(-2, "health")
	state.PushInteger(u.MaxHealth)
	state.SetField(-2, "max_health")
	state.PushInteger(u.Stacks)
	state.SetField(-2, "stacks")
	state.PushInteger(u.Slot)
	state.SetField(-2, "slot")
	pushVec(state, u.Position)
	state.SetField(-2, "position")
	state.PushBoolean(u.Alive)
	state.SetField(-2, "alive")
	state.NewTable()
	for i, name := range u.Statuses {
		state.PushString(name)
		state.RawSetInt(-2, i+1)
	}
	state.SetField(-2, "statuses")
}
