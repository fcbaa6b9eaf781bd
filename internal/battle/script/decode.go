package script

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/louisbranch/arena/internal/battle"
	"github.com/louisbranch/arena/internal/battle/expr"
)

func decodeErr(path, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", battle.ErrInvalidContent, path, fmt.Sprintf(format, args...))
}

// fields wraps a decoded table with typed accessors that remember the first
// failure.
type fields struct {
	path string
	m    map[string]any
	err  error
}

func newFields(path string, v any) (*fields, error) {
	m, ok := v.(map[string]any)
	if !ok {
		if list, isList := v.([]any); isList && len(list) == 0 {
			m = map[string]any{}
		} else {
			return nil, decodeErr(path, "expected table, got %T", v)
		}
	}
	return &fields{path: path, m: m}, nil
}

func (f *fields) fail(err error) {
	if f.err == nil {
		f.err = err
	}
}

func (f *fields) at(key string) string { return f.path + "." + key }

func (f *fields) has(key string) bool {
	v, ok := f.m[key]
	return ok && v != nil
}

func (f *fields) str(key string) string {
	v, ok := f.m[key]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		f.fail(decodeErr(f.at(key), "expected string, got %T", v))
	}
	return s
}

func (f *fields) integer(key string) int {
	v, ok := f.m[key]
	if !ok || v == nil {
		return 0
	}
	n, ok := v.(int)
	if !ok {
		f.fail(decodeErr(f.at(key), "expected integer, got %T", v))
	}
	return n
}

func (f *fields) number(key string) float64 {
	switch v := f.m[key].(type) {
	case nil:
		return 0
	case int:
		return float64(v)
	case float64:
		return v
	default:
		f.fail(decodeErr(f.at(key), "expected number, got %T", v))
		return 0
	}
}

func (f *fields) boolean(key string) bool {
	v, ok := f.m[key]
	if !ok || v == nil {
		return false
	}
	b, ok := v.(bool)
	if !ok {
		f.fail(decodeErr(f.at(key), "expected boolean, got %T", v))
	}
	return b
}

func (f *fields) strings(key string) []string {
	v, ok := f.m[key]
	if !ok || v == nil {
		return nil
	}
	if s, ok := v.(string); ok {
		return []string{s}
	}
	list, ok := asList(v)
	if !ok {
		f.fail(decodeErr(f.at(key), "expected list of strings, got %T", v))
		return nil
	}
	out := make([]string, 0, len(list))
	for i, item := range list {
		s, ok := item.(string)
		if !ok {
			f.fail(decodeErr(fmt.Sprintf("%s[%d]", f.at(key), i+1), "expected string, got %T", item))
			return nil
		}
		out = append(out, s)
	}
	return out
}

func (f *fields) expr(key string) expr.Expr {
	e, err := decodeExpr(f.at(key), f.m[key])
	if err != nil {
		f.fail(err)
	}
	return e
}

func (f *fields) optExpr(key string) *expr.Expr {
	if !f.has(key) {
		return nil
	}
	e := f.expr(key)
	return &e
}

func (f *fields) amount(key string) battle.Amount {
	if !f.has(key) {
		return battle.Amount{}
	}
	a, err := decodeAmount(f.at(key), f.m[key])
	if err != nil {
		f.fail(err)
	}
	return a
}

func (f *fields) effect(key string) battle.Effect {
	if !f.has(key) {
		return nil
	}
	e, err := decodeEffect(f.at(key), f.m[key])
	if err != nil {
		f.fail(err)
	}
	return e
}

func (f *fields) effects(key string) []battle.Effect {
	if !f.has(key) {
		return nil
	}
	list, ok := asList(f.m[key])
	if !ok {
		f.fail(decodeErr(f.at(key), "expected list of effects"))
		return nil
	}
	out := make([]battle.Effect, 0, len(list))
	for i, item := range list {
		e, err := decodeEffect(fmt.Sprintf("%s[%d]", f.at(key), i+1), item)
		if err != nil {
			f.fail(err)
			return nil
		}
		out = append(out, e)
	}
	return out
}

func (f *fields) vars(key string) battle.Vars {
	if !f.has(key) {
		return nil
	}
	vars, err := decodeVars(f.at(key), f.m[key])
	if err != nil {
		f.fail(err)
	}
	return vars
}

func (f *fields) vec(key string) expr.Vec {
	if !f.has(key) {
		return expr.Vec{}
	}
	v, err := decodeVec(f.at(key), f.m[key])
	if err != nil {
		f.fail(err)
	}
	return v
}

// asList accepts sequences; an empty table decodes as a map and counts as an
// empty list.
func asList(v any) ([]any, bool) {
	switch t := v.(type) {
	case []any:
		return t, true
	case map[string]any:
		return nil, len(t) == 0
	}
	return nil, false
}

// decodeExpr converts numbers, booleans, strings and X.* tables into an
// expression.
func decodeExpr(path string, v any) (expr.Expr, error) {
	switch t := v.(type) {
	case nil:
		return expr.Num(0), nil
	case int:
		return expr.Num(t), nil
	case float64:
		return expr.Lit(expr.Float(t)), nil
	case bool:
		return expr.Lit(expr.Bool(t)), nil
	case string:
		return expr.Lit(expr.String(t)), nil
	case map[string]any:
		return decodeExprTable(path, t)
	}
	return expr.Expr{}, decodeErr(path, "expected expression, got %T", v)
}

func decodeExprTable(path string, m map[string]any) (expr.Expr, error) {
	opName, _ := m["op"].(string)
	if opName == "" {
		if _, ok := m["x"]; ok {
			vec, err := decodeVec(path, m)
			if err != nil {
				return expr.Expr{}, err
			}
			return expr.Lit(expr.VecValue(vec)), nil
		}
		return expr.Expr{}, decodeErr(path, "expression table needs an op")
	}
	op, ok := expr.ParseOp(opName)
	if !ok {
		return expr.Expr{}, decodeErr(path, "unknown op %q", opName)
	}
	f := &fields{path: path, m: m}
	switch op {
	case expr.OpConst:
		val, err := decodeValue(f.at("value"), m["value"])
		if err != nil {
			return expr.Expr{}, err
		}
		return expr.Lit(val), nil
	case expr.OpVar:
		name := f.str("name")
		if f.err == nil && name == "" {
			return expr.Expr{}, decodeErr(path, "var needs a name")
		}
		return expr.Var(name), f.err
	case expr.OpStat:
		statName := f.str("stat")
		stat, ok := expr.ParseStat(statName)
		if f.err == nil && !ok {
			return expr.Expr{}, decodeErr(f.at("stat"), "unknown stat %q", statName)
		}
		return expr.StatOf(expr.ParseWho(f.str("who")), stat), f.err
	case expr.OpHasStatus:
		return expr.HasStatus(expr.ParseWho(f.str("who")), f.str("name")), f.err
	}
	list, ok := asList(m["args"])
	if !ok {
		return expr.Expr{}, decodeErr(path, "%s needs an argument list", opName)
	}
	args := make([]expr.Expr, 0, len(list))
	for i, item := range list {
		a, err := decodeExpr(fmt.Sprintf("%s.args[%d]", path, i+1), item)
		if err != nil {
			return expr.Expr{}, err
		}
		args = append(args, a)
	}
	if want := arity(op); want > 0 && len(args) != want {
		return expr.Expr{}, decodeErr(path, "%s takes %d arguments, got %d", opName, want, len(args))
	}
	return expr.Expr{Op: op, Args: args}, nil
}

func arity(op expr.Op) int {
	switch op {
	case expr.OpNot:
		return 1
	case expr.OpRand, expr.OpRoll, expr.OpSub, expr.OpDiv, expr.OpMod, expr.OpEq, expr.OpNe,
		expr.OpLt, expr.OpLe, expr.OpGt, expr.OpGe, expr.OpVec, expr.OpDistance:
		return 2
	case expr.OpIf, expr.OpPercent:
		return 3
	}
	return 0
}

// decodeValue converts a literal into an expression value. Tables with x and
// y decode as vectors.
func decodeValue(path string, v any) (expr.Value, error) {
	switch t := v.(type) {
	case int:
		return expr.Int(t), nil
	case float64:
		return expr.Float(t), nil
	case bool:
		return expr.Bool(t), nil
	case string:
		return expr.String(t), nil
	case map[string]any:
		vec, err := decodeVec(path, t)
		if err != nil {
			return expr.Value{}, err
		}
		return expr.VecValue(vec), nil
	}
	return expr.Value{}, decodeErr(path, "expected literal value, got %T", v)
}

func decodeVec(path string, v any) (expr.Vec, error) {
	switch t := v.(type) {
	case map[string]any:
		f := &fields{path: path, m: t}
		vec := expr.Vec{X: f.number("x"), Y: f.number("y")}
		return vec, f.err
	case []any:
		if len(t) == 2 {
			f := &fields{path: path, m: map[string]any{"x": t[0], "y": t[1]}}
			vec := expr.Vec{X: f.number("x"), Y: f.number("y")}
			return vec, f.err
		}
	}
	return expr.Vec{}, decodeErr(path, "expected vector {x=, y=}")
}

func decodeVars(path string, v any) (battle.Vars, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, decodeErr(path, "expected variable table, got %T", v)
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	vars := make(battle.Vars, len(m))
	for _, k := range keys {
		val, err := decodeValue(path+"."+k, m[k])
		if err != nil {
			return nil, err
		}
		vars[k] = val
	}
	return vars, nil
}

// decodeAmount accepts an expression (absolute) or {relative=, absolute=}.
func decodeAmount(path string, v any) (battle.Amount, error) {
	if m, ok := v.(map[string]any); ok {
		if _, hasOp := m["op"]; !hasOp {
			f := &fields{path: path, m: m}
			var a battle.Amount
			if f.has("relative") {
				a.Relative = f.expr("relative")
			}
			if f.has("absolute") {
				a.Absolute = f.expr("absolute")
			}
			if f.err == nil && !f.has("relative") && !f.has("absolute") {
				return battle.Amount{}, decodeErr(path, "amount needs relative or absolute")
			}
			return a, f.err
		}
	}
	abs, err := decodeExpr(path, v)
	if err != nil {
		return battle.Amount{}, err
	}
	return battle.Amount{Absolute: abs}, nil
}

// decodeEffect converts an E.* table into an effect.
func decodeEffect(path string, v any) (battle.Effect, error) {
	f, err := newFields(path, v)
	if err != nil {
		return nil, err
	}
	kind := f.str("kind")
	var out battle.Effect
	switch kind {
	case "noop":
		out = battle.Noop{}
	case "damage":
		out = battle.Damage{
			Amount:    f.amount("amount"),
			Types:     f.strings("types"),
			OnInjure:  f.effect("on_injure"),
			OnKill:    f.effect("on_kill"),
			Lifesteal: f.amount("lifesteal"),
		}
	case "heal":
		out = battle.Heal{Amount: f.amount("amount"), MaxBonus: f.amount("max_bonus")}
	case "attach":
		out = battle.AttachStatus{Name: f.str("name"), Lifetime: f.optExpr("rounds"), Vars: f.exprVars("vars")}
	case "remove":
		out = battle.RemoveStatus{Name: f.str("name"), Charges: f.optExpr("charges")}
	case "suicide":
		out = battle.Suicide{}
	case "spawn":
		out = battle.Spawn{Template: f.str("template")}
	case "aoe":
		filter, ok := battle.ParseFactionFilter(f.str("filter"))
		if !ok {
			f.fail(decodeErr(f.at("filter"), "unknown faction filter %q", f.str("filter")))
		}
		out = battle.AOE{Radius: f.expr("radius"), Filter: filter, Effects: f.effects("effects")}
	case "tween":
		out = battle.Tween{
			Duration: time.Duration(f.integer("duration_ms")) * time.Millisecond,
			Offset:   f.vec("offset"),
		}
	case "list":
		out = battle.List{Effects: f.effects("effects")}
	case "if":
		out = battle.If{Cond: f.expr("cond"), Then: f.effect("then"), Else: f.effect("else")}
	case "script":
		out = battle.Script{Name: f.str("name"), Args: f.vars("args")}
	case "random":
		out = battle.Random{Choices: f.choices("choices")}
	case "repeat":
		out = battle.Repeat{Count: f.expr("count"), Effect: f.effect("effect")}
	case "revive":
		out = battle.Revive{Health: f.amount("health")}
	case "change_stat":
		statName := f.str("stat")
		stat, ok := expr.ParseStat(statName)
		if !ok {
			f.fail(decodeErr(f.at("stat"), "unknown stat %q", statName))
		}
		out = battle.ChangeStat{Stat: stat, Value: f.expr("value")}
	case "add_var":
		out = battle.AddVar{Name: f.str("name"), Value: f.expr("value"), Effect: f.effect("effect")}
	case "":
		return nil, decodeErr(path, "effect table needs a kind")
	default:
		return nil, decodeErr(path, "unknown effect kind %q", kind)
	}
	if f.err != nil {
		return nil, f.err
	}
	return out, nil
}

// choices decodes a list of {weight=, effect=} tables. A missing weight
// counts as 1.
func (f *fields) choices(key string) []battle.Weighted {
	list, ok := asList(f.m[key])
	if !ok {
		f.fail(decodeErr(f.at(key), "expected list of choices"))
		return nil
	}
	out := make([]battle.Weighted, 0, len(list))
	for i, item := range list {
		path := fmt.Sprintf("%s[%d]", f.at(key), i+1)
		c, err := newFields(path, item)
		if err != nil {
			f.fail(err)
			return nil
		}
		w := battle.Weighted{Weight: 1, Effect: c.effect("effect")}
		if c.has("weight") {
			w.Weight = c.integer("weight")
		}
		if c.err != nil {
			f.fail(c.err)
			return nil
		}
		out = append(out, w)
	}
	return out
}

// exprVars decodes a table of expressions keyed by variable name.
func (f *fields) exprVars(key string) map[string]expr.Expr {
	if !f.has(key) {
		return nil
	}
	m, ok := f.m[key].(map[string]any)
	if !ok {
		f.fail(decodeErr(f.at(key), "expected table of expressions"))
		return nil
	}
	out := make(map[string]expr.Expr, len(m))
	for k, item := range m {
		e, err := decodeExpr(f.at(key)+"."+k, item)
		if err != nil {
			f.fail(err)
			return nil
		}
		out[k] = e
	}
	return out
}

func decodeStatus(path string, v any) (battle.StatusDef, error) {
	f, err := newFields(path, v)
	if err != nil {
		return battle.StatusDef{}, err
	}
	def := battle.StatusDef{
		Name:       strings.TrimSpace(f.str("name")),
		Color:      f.str("color"),
		Protection: f.integer("protection"),
		ShieldHeal: f.amount("shield_heal"),
		Vars:       f.vars("vars"),
		Ability:    f.boolean("ability"),
	}
	if f.has("kind") {
		kind, ok := battle.ParseStatusKind(f.str("kind"))
		if !ok {
			f.fail(decodeErr(f.at("kind"), "unknown status kind %q", f.str("kind")))
		}
		def.Kind = kind
	}
	for _, name := range f.strings("flags") {
		flag, ok := battle.ParseFlag(name)
		if !ok {
			f.fail(decodeErr(f.at("flags"), "unknown flag %q", name))
			continue
		}
		def.Flags |= flag
	}
	if f.has("aura") {
		aura, err := decodeAura(f.at("aura"), f.m["aura"])
		if err != nil {
			f.fail(err)
		}
		def.Aura = aura
	}
	if f.has("modifier") {
		m, err := decodeModifier(f.at("modifier"), f.m["modifier"])
		if err != nil {
			f.fail(err)
		}
		def.Modifier = m
	}
	if f.has("scavenge") {
		sc, err := decodeScavenge(f.at("scavenge"), f.m["scavenge"])
		if err != nil {
			f.fail(err)
		}
		def.Scavenge = sc
	}
	if f.has("triggers") {
		list, ok := asList(f.m["triggers"])
		if !ok {
			f.fail(decodeErr(f.at("triggers"), "expected list of triggers"))
		}
		for i, item := range list {
			t, err := decodeTrigger(fmt.Sprintf("%s[%d]", f.at("triggers"), i+1), item)
			if err != nil {
				f.fail(err)
				break
			}
			def.Triggers = append(def.Triggers, t)
		}
	}
	if f.err != nil {
		return battle.StatusDef{}, f.err
	}
	return def, nil
}

func decodeAura(path string, v any) (*battle.AuraDef, error) {
	f, err := newFields(path, v)
	if err != nil {
		return nil, err
	}
	filter, ok := battle.ParseFactionFilter(f.str("filter"))
	if !ok {
		f.fail(decodeErr(f.at("filter"), "unknown faction filter %q", f.str("filter")))
	}
	aura := &battle.AuraDef{
		Radius:      f.number("radius"),
		Filter:      filter,
		Clans:       f.strings("clans"),
		IncludeSelf: f.boolean("include_self"),
		Condition:   f.optExpr("condition"),
		Statuses:    f.strings("statuses"),
	}
	if f.err != nil {
		return nil, f.err
	}
	return aura, nil
}

func decodeModifier(path string, v any) (*battle.ModifierDef, error) {
	f, err := newFields(path, v)
	if err != nil {
		return nil, err
	}
	target := battle.ModifyDamage
	if f.has("target") {
		var ok bool
		target, ok = battle.ParseModifierTarget(f.str("target"))
		if !ok {
			f.fail(decodeErr(f.at("target"), "unknown modifier target %q", f.str("target")))
		}
	}
	m := &battle.ModifierDef{
		Target:     target,
		Priority:   f.integer("priority"),
		Condition:  f.optExpr("condition"),
		Source:     f.strings("source"),
		Value:      f.optExpr("value"),
		ExtraTypes: f.strings("extra_types"),
	}
	if f.err != nil {
		return nil, f.err
	}
	return m, nil
}

func decodeScavenge(path string, v any) (*battle.ScavengeDef, error) {
	f, err := newFields(path, v)
	if err != nil {
		return nil, err
	}
	filter, ok := battle.ParseFactionFilter(f.str("filter"))
	if !ok {
		f.fail(decodeErr(f.at("filter"), "unknown faction filter %q", f.str("filter")))
	}
	sc := &battle.ScavengeDef{Filter: filter, Range: f.number("range"), Clans: f.strings("clans")}
	if f.err != nil {
		return nil, f.err
	}
	return sc, nil
}

func decodeTrigger(path string, v any) (battle.Trigger, error) {
	f, err := newFields(path, v)
	if err != nil {
		return battle.Trigger{}, err
	}
	on, ok := battle.ParseTriggerKind(f.str("on"))
	if !ok {
		f.fail(decodeErr(f.at("on"), "unknown trigger %q", f.str("on")))
	}
	filter, ok := battle.ParseFactionFilter(f.str("filter"))
	if !ok {
		f.fail(decodeErr(f.at("filter"), "unknown faction filter %q", f.str("filter")))
	}
	t := battle.Trigger{
		On:          on,
		DamageTypes: f.strings("damage_types"),
		Except:      f.strings("except"),
		Status:      f.str("status"),
		Filter:      filter,
		Effect:      f.effect("effect"),
	}
	switch target := f.str("target"); target {
	case "", "source":
		t.Target = battle.TargetEventSource
	case "owner", "self":
		t.Target = battle.TargetOwner
	default:
		f.fail(decodeErr(f.at("target"), "unknown trigger target %q", target))
	}
	if f.err != nil {
		return battle.Trigger{}, f.err
	}
	return t, nil
}

func decodeUnit(path string, v any) (battle.UnitTemplate, error) {
	f, err := newFields(path, v)
	if err != nil {
		return battle.UnitTemplate{}, err
	}
	tpl := battle.UnitTemplate{
		Name:           strings.TrimSpace(f.str("name")),
		Health:         f.integer("health"),
		Stacks:         f.integer("stacks"),
		MaxStacks:      f.integer("max_stacks"),
		Clans:          f.strings("clans"),
		Action:         f.effect("action"),
		ActionCooldown: f.integer("cooldown"),
	}
	if f.has("statuses") {
		list, ok := asList(f.m["statuses"])
		if !ok {
			f.fail(decodeErr(f.at("statuses"), "expected list of statuses"))
		}
		for i, item := range list {
			g, err := decodeGrant(fmt.Sprintf("%s[%d]", f.at("statuses"), i+1), item)
			if err != nil {
				f.fail(err)
				break
			}
			tpl.Statuses = append(tpl.Statuses, g)
		}
	}
	if f.err != nil {
		return battle.UnitTemplate{}, f.err
	}
	return tpl, nil
}

// decodeGrant accepts a status name or {name=, rounds=, vars=}.
func decodeGrant(path string, v any) (battle.StatusGrant, error) {
	if name, ok := v.(string); ok {
		return battle.StatusGrant{Name: name, Lifetime: battle.Permanent}, nil
	}
	f, err := newFields(path, v)
	if err != nil {
		return battle.StatusGrant{}, err
	}
	g := battle.StatusGrant{Name: f.str("name"), Lifetime: battle.Permanent, Vars: f.vars("vars")}
	if f.has("rounds") {
		g.Lifetime = battle.Rounds(f.integer("rounds"))
	}
	return g, f.err
}

func decodePlacement(path string, v any) (battle.Placement, error) {
	f, err := newFields(path, v)
	if err != nil {
		return battle.Placement{}, err
	}
	faction, ok := battle.ParseFaction(f.str("faction"))
	if !ok {
		f.fail(decodeErr(f.at("faction"), "unknown faction %q", f.str("faction")))
	}
	p := battle.Placement{Template: f.str("template"), Faction: faction, Slot: f.integer("slot")}
	if f.has("position") {
		pos := f.vec("position")
		p.Position = &pos
	}
	if f.err != nil {
		return battle.Placement{}, f.err
	}
	return p, nil
}
