package battle

import (
	"reflect"
	"testing"

	"github.com/louisbranch/arena/internal/battle/expr"
)

func modifier(name string, m ModifierDef) StatusDef {
	return StatusDef{Name: name, Kind: StatusModifier, Modifier: &m}
}

func ptr(e expr.Expr) *expr.Expr { return &e }

func TestDamageModifiers(t *testing.T) {
	incoming := expr.Var("DamageIncoming")
	tests := []struct {
		name       string
		statuses   []StatusDef
		damage     Damage
		wantHealth int
		wantTypes  string
	}{
		{
			name:       "strength adds to outgoing damage",
			statuses:   []StatusDef{modifier("Strength", ModifierDef{Value: ptr(expr.Sum(incoming, expr.Num(2)))})},
			damage:     Damage{Amount: Flat(1)},
			wantHealth: 17,
		},
		{
			name: "priority orders modifiers",
			statuses: []StatusDef{
				modifier("Double", ModifierDef{Priority: 2, Value: ptr(expr.Mul(incoming, expr.Num(2)))}),
				modifier("Plus", ModifierDef{Priority: 1, Value: ptr(expr.Sum(incoming, expr.Num(1)))}),
			},
			damage:     Damage{Amount: Flat(1)},
			wantHealth: 16,
		},
		{
			name:       "source restricts by damage type",
			statuses:   []StatusDef{modifier("Sharpen", ModifierDef{Source: []string{"melee"}, Value: ptr(expr.Num(9))})},
			damage:     Damage{Amount: Flat(1), Types: []string{"magic"}},
			wantHealth: 19,
			wantTypes:  "magic",
		},
		{
			name:       "condition gates the modifier",
			statuses:   []StatusDef{modifier("Execute", ModifierDef{Condition: ptr(expr.Lt(expr.StatOf(expr.WhoTarget, expr.StatHealth), expr.Num(5))), Value: ptr(expr.Num(9))})},
			damage:     Damage{Amount: Flat(1)},
			wantHealth: 19,
		},
		{
			name: "extra types join matching damage",
			statuses: []StatusDef{
				modifier("Ignite", ModifierDef{Target: ModifyDamageTypes, Source: []string{"melee"}, ExtraTypes: []string{"fire"}}),
				modifier("Burning Blade", ModifierDef{Source: []string{"fire"}, Value: ptr(expr.Sum(incoming, expr.Num(3)))}),
			},
			damage:     Damage{Amount: Flat(1), Types: []string{"melee"}},
			wantHealth: 16,
			wantTypes:  "melee,fire",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var names []string
			for _, d := range tt.statuses {
				names = append(names, d.Name)
			}
			cat := newCatalog(t, tt.statuses, dummy("Knight", 10, names...), dummy("Goblin", 20))
			b := newBattle(t, cat, player("Knight", 0), enemy("Goblin", 0))

			actions := apply(t, b, tt.damage, EffectContext{Caster: 1, Target: 2})
			if h := unit(t, b, 2).Health; h != tt.wantHealth {
				t.Fatalf("health = %d, want %d", h, tt.wantHealth)
			}
			if got := kinds(actions); !reflect.DeepEqual(got, []ActionKind{ActionDamage}) {
				t.Fatalf("actions = %v, want one damage", got)
			}
			if actions[0].Detail != tt.wantTypes {
				t.Fatalf("types = %q, want %q", actions[0].Detail, tt.wantTypes)
			}
		})
	}
}

func TestDamageModifierRunsBeforeProtection(t *testing.T) {
	strength := modifier("Strength", ModifierDef{Value: ptr(expr.Num(10))})
	cat := newCatalog(t,
		[]StatusDef{strength, {Name: "Guard", Kind: StatusProtection, Protection: 50}},
		dummy("Knight", 10, "Strength"),
		dummy("Goblin", 20, "Guard"),
	)
	b := newBattle(t, cat, player("Knight", 0), enemy("Goblin", 0))

	apply(t, b, Damage{Amount: Flat(1)}, EffectContext{Caster: 1, Target: 2})
	if h := unit(t, b, 2).Health; h != 15 {
		t.Fatalf("health = %d, want 15", h)
	}
}

func TestMaxHealthModifierIsRecomputed(t *testing.T) {
	vigor := modifier("Vigor", ModifierDef{Target: ModifyMaxHealth, Value: ptr(expr.Sum(expr.Var("Base"), expr.Num(5)))})
	cat := newCatalog(t, []StatusDef{vigor}, dummy("Giant", 10, "Vigor"), dummy("Goblin", 10))
	b := newBattle(t, cat, player("Giant", 0), enemy("Goblin", 0))

	giant := unit(t, b, 1)
	if giant.MaxHealth != 15 || giant.Health != 10 {
		t.Fatalf("health = %d/%d, want 10/15", giant.Health, giant.MaxHealth)
	}
	if n := count(b.Log(), ActionStatChanged, ""); n != 1 {
		t.Fatalf("stat changes = %d, want 1", n)
	}

	// Another settle must not stack the bonus.
	apply(t, b, Heal{Amount: Flat(3)}, EffectContext{Caster: 1, Target: 1})
	if giant.MaxHealth != 15 || giant.Health != 13 {
		t.Fatalf("health = %d/%d, want 13/15", giant.Health, giant.MaxHealth)
	}

	actions := apply(t, b, RemoveStatus{Name: "Vigor"}, EffectContext{Caster: 1, Target: 1})
	if giant.MaxHealth != 10 || giant.Health != 10 {
		t.Fatalf("health = %d/%d, want 10/10", giant.Health, giant.MaxHealth)
	}
	if n := count(actions, ActionStatChanged, ""); n != 1 {
		t.Fatalf("stat changes = %d, want 1", n)
	}
}

func TestMaxHealthModifierKeepsPermanentBonus(t *testing.T) {
	vigor := modifier("Vigor", ModifierDef{Target: ModifyMaxHealth, Value: ptr(expr.Mul(expr.Var("Base"), expr.Num(2)))})
	cat := newCatalog(t, []StatusDef{vigor}, dummy("Giant", 10, "Vigor"), dummy("Goblin", 10))
	b := newBattle(t, cat, player("Giant", 0), enemy("Goblin", 0))

	apply(t, b, Heal{MaxBonus: Flat(2)}, EffectContext{Caster: 1, Target: 1})
	giant := unit(t, b, 1)
	// The bonus lands on the unmodified maximum before doubling.
	if giant.MaxHealth != 24 {
		t.Fatalf("max health = %d, want 24", giant.MaxHealth)
	}
}

func TestScavengeFiresOnceForDeathInRange(t *testing.T) {
	vulture := StatusDef{
		Name:     "Vulture",
		Kind:     StatusScavenge,
		Scavenge: &ScavengeDef{Filter: FilterEnemies, Range: 3},
		Triggers: []Trigger{{On: TriggerScavenge, Target: TargetOwner, Effect: Heal{Amount: Flat(4)}}},
	}
	cat := newCatalog(t, []StatusDef{vulture},
		dummy("Crow", 10, "Vulture"),
		dummy("Knight", 10),
		dummy("Goblin", 3),
	)
	b := newBattle(t, cat, player("Crow", 0), player("Knight", 1), enemy("Goblin", 0), enemy("Goblin", 5))
	crow := unit(t, b, 1)
	crow.Health = 2

	actions := apply(t, b, Damage{Amount: Flat(5)}, EffectContext{Caster: 2, Target: 3})
	want := []ActionKind{ActionDamage, ActionDeath, ActionHeal}
	if got := kinds(actions); !reflect.DeepEqual(got, want) {
		t.Fatalf("actions = %v, want %v", got, want)
	}
	if crow.Health != 6 {
		t.Fatalf("crow health = %d, want 6", crow.Health)
	}

	// The second goblin dies out of reach.
	actions = apply(t, b, Damage{Amount: Flat(5)}, EffectContext{Caster: 2, Target: 4})
	if n := count(actions, ActionHeal, ""); n != 0 {
		t.Fatalf("heals = %d, want 0", n)
	}
}

func TestValidateModifierAndScavenge(t *testing.T) {
	tests := []struct {
		name   string
		status StatusDef
	}{
		{name: "modifier without definition", status: StatusDef{Name: "M", Kind: StatusModifier}},
		{name: "damage modifier without value", status: modifier("M", ModifierDef{})},
		{name: "type modifier without types", status: modifier("M", ModifierDef{Target: ModifyDamageTypes})},
		{name: "scavenge without trigger", status: StatusDef{Name: "S", Kind: StatusScavenge}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cat := newCatalog(t, []StatusDef{tt.status})
			if err := cat.Validate(nil); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
