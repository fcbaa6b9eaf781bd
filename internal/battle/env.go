package battle

import (
	"fmt"

	"github.com/louisbranch/arena/internal/battle/expr"
)

// env exposes battle state to expressions for one effect context.
type env struct {
	store *Store
	ctx   EffectContext
	rng   expr.RandSource
}

func (e env) Var(name string) (expr.Value, bool) {
	v, ok := e.ctx.Vars[name]
	return v, ok
}

func (e env) unit(who expr.Who) (*Unit, error) {
	var id ID
	switch who {
	case expr.WhoCaster:
		id = e.ctx.Caster
	case expr.WhoFrom:
		id = e.ctx.From
	default:
		id = e.ctx.Target
	}
	u, ok := e.store.Unit(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s %d", ErrUnknownUnit, who, id)
	}
	return u, nil
}

func (e env) Stat(who expr.Who, stat expr.Stat) (expr.Value, error) {
	u, err := e.unit(who)
	if err != nil {
		return expr.Value{}, err
	}
	switch stat {
	case expr.StatHealth:
		return expr.Int(u.Health), nil
	case expr.StatMaxHealth:
		return expr.Int(u.MaxHealth), nil
	case expr.StatStacks:
		return expr.Int(u.Stacks), nil
	case expr.StatMaxStacks:
		return expr.Int(u.MaxStacks), nil
	case expr.StatSlot:
		return expr.Int(u.Slot), nil
	case expr.StatPosition:
		return expr.VecValue(u.Position), nil
	case expr.StatFaction:
		return expr.String(u.Faction.String()), nil
	case expr.StatAlive:
		return expr.Bool(u.Alive()), nil
	}
	return expr.Value{}, fmt.Errorf("%w: stat %s", expr.ErrUnsupported, stat)
}

func (e env) HasStatus(who expr.Who, name string) (bool, error) {
	u, err := e.unit(who)
	if err != nil {
		return false, err
	}
	return e.store.HasStatus(u.ID, name), nil
}

func (e env) Rand() expr.RandSource { return e.rng }
