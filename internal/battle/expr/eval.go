package expr

import (
	"fmt"
	"math"

	"github.com/louisbranch/arena/internal/battle/random"
)

// RandSource is the deterministic random source available to expressions.
type RandSource interface {
	Intn(n int) int
	Roll(sides, count int) (random.DieRoll, error)
}

// Env exposes the read-only state an expression may observe.
type Env interface {
	Var(name string) (Value, bool)
	Stat(who Who, stat Stat) (Value, error)
	HasStatus(who Who, name string) (bool, error)
	Rand() RandSource
}

// Eval evaluates e against env.
//
// And and Or evaluate every operand so that a failing operand is never
// hidden behind a short circuit. If evaluates its condition and then only the
// selected branch.
func Eval(e Expr, env Env) (Value, error) {
	if env == nil {
		return Value{}, fail(e.Op, "", ErrMissingEnv)
	}
	switch e.Op {
	case OpConst:
		return e.Value, nil
	case OpVar:
		v, ok := env.Var(e.Name)
		if !ok {
			return Value{}, fail(e.Op, e.Name, ErrMissingVariable)
		}
		return v, nil
	case OpStat:
		v, err := env.Stat(e.Who, e.Stat)
		if err != nil {
			return Value{}, fail(e.Op, e.Who.String()+"."+e.Stat.String(), err)
		}
		return v, nil
	case OpHasStatus:
		ok, err := env.HasStatus(e.Who, e.Name)
		if err != nil {
			return Value{}, fail(e.Op, e.Name, err)
		}
		return Bool(ok), nil
	case OpRand:
		return evalRand(e, env)
	case OpRoll:
		return evalRoll(e, env)
	case OpSum, OpSub, OpMul, OpDiv, OpMod, OpMin, OpMax:
		return evalArithmetic(e, env)
	case OpPercent:
		return evalPercent(e, env)
	case OpAnd, OpOr:
		return evalLogic(e, env)
	case OpNot:
		args, err := evalArgs(e, env, 1)
		if err != nil {
			return Value{}, err
		}
		b, err := args[0].AsBool()
		if err != nil {
			return Value{}, fail(e.Op, "", err)
		}
		return Bool(!b), nil
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
		return evalCompare(e, env)
	case OpIf:
		if len(e.Args) != 3 {
			return Value{}, arity(e, 3)
		}
		cond, err := EvalBool(e.Args[0], env)
		if err != nil {
			return Value{}, err
		}
		if cond {
			return Eval(e.Args[1], env)
		}
		return Eval(e.Args[2], env)
	case OpVec:
		args, err := evalArgs(e, env, 2)
		if err != nil {
			return Value{}, err
		}
		x, err := args[0].AsFloat()
		if err != nil {
			return Value{}, fail(e.Op, "x", err)
		}
		y, err := args[1].AsFloat()
		if err != nil {
			return Value{}, fail(e.Op, "y", err)
		}
		return V(x, y), nil
	case OpDistance:
		args, err := evalArgs(e, env, 2)
		if err != nil {
			return Value{}, err
		}
		a, err := args[0].AsVec()
		if err != nil {
			return Value{}, fail(e.Op, "", err)
		}
		b, err := args[1].AsVec()
		if err != nil {
			return Value{}, fail(e.Op, "", err)
		}
		return Float(a.Distance(b)), nil
	default:
		return Value{}, fail(e.Op, "", ErrUnsupported)
	}
}

// EvalInt evaluates e and converts the result to an integer.
func EvalInt(e Expr, env Env) (int, error) {
	v, err := Eval(e, env)
	if err != nil {
		return 0, err
	}
	n, err := v.AsInt()
	if err != nil {
		return 0, fail(e.Op, "as int", err)
	}
	return n, nil
}

// EvalFloat evaluates e and converts the result to a float.
func EvalFloat(e Expr, env Env) (float64, error) {
	v, err := Eval(e, env)
	if err != nil {
		return 0, err
	}
	f, err := v.AsFloat()
	if err != nil {
		return 0, fail(e.Op, "as float", err)
	}
	return f, nil
}

// EvalBool evaluates e and converts the result to a boolean.
func EvalBool(e Expr, env Env) (bool, error) {
	v, err := Eval(e, env)
	if err != nil {
		return false, err
	}
	b, err := v.AsBool()
	if err != nil {
		return false, fail(e.Op, "as bool", err)
	}
	return b, nil
}

// EvalVec evaluates e and converts the result to a vector.
func EvalVec(e Expr, env Env) (Vec, error) {
	v, err := Eval(e, env)
	if err != nil {
		return Vec{}, err
	}
	out, err := v.AsVec()
	if err != nil {
		return Vec{}, fail(e.Op, "as vec", err)
	}
	return out, nil
}

func evalArgs(e Expr, env Env, want int) ([]Value, error) {
	if want >= 0 && len(e.Args) != want {
		return nil, arity(e, want)
	}
	out := make([]Value, len(e.Args))
	for i, arg := range e.Args {
		v, err := Eval(arg, env)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func arity(e Expr, want int) error {
	return fail(e.Op, "", fmt.Errorf("%w: want %d operands, got %d", ErrUnsupported, want, len(e.Args)))
}

func evalRand(e Expr, env Env) (Value, error) {
	args, err := evalArgs(e, env, 2)
	if err != nil {
		return Value{}, err
	}
	lo, err := args[0].AsInt()
	if err != nil {
		return Value{}, fail(e.Op, "min", err)
	}
	hi, err := args[1].AsInt()
	if err != nil {
		return Value{}, fail(e.Op, "max", err)
	}
	if hi < lo {
		return Value{}, fail(e.Op, "", fmt.Errorf("%w: max %d below min %d", ErrUnsupported, hi, lo))
	}
	rng := env.Rand()
	if rng == nil {
		return Value{}, fail(e.Op, "", fmt.Errorf("%w: no random source", ErrUnsupported))
	}
	return Int(lo + rng.Intn(hi-lo+1)), nil
}

func evalRoll(e Expr, env Env) (Value, error) {
	args, err := evalArgs(e, env, 2)
	if err != nil {
		return Value{}, err
	}
	sides, err := args[0].AsInt()
	if err != nil {
		return Value{}, fail(e.Op, "sides", err)
	}
	count, err := args[1].AsInt()
	if err != nil {
		return Value{}, fail(e.Op, "count", err)
	}
	rng := env.Rand()
	if rng == nil {
		return Value{}, fail(e.Op, "", fmt.Errorf("%w: no random source", ErrUnsupported))
	}
	roll, err := rng.Roll(sides, count)
	if err != nil {
		return Value{}, fail(e.Op, fmt.Sprintf("%dd%d", count, sides), err)
	}
	return Int(roll.Total), nil
}

func evalArithmetic(e Expr, env Env) (Value, error) {
	want := -1
	switch e.Op {
	case OpSub, OpDiv, OpMod:
		want = 2
	}
	args, err := evalArgs(e, env, want)
	if err != nil {
		return Value{}, err
	}
	if len(args) == 0 {
		return Value{}, arity(e, 1)
	}
	acc := args[0]
	for _, next := range args[1:] {
		acc, err = binary(e.Op, acc, next)
		if err != nil {
			return Value{}, fail(e.Op, "", err)
		}
	}
	if len(args) == 1 && !acc.IsNumber() && acc.Kind() != KindVec {
		return Value{}, fail(e.Op, "", mismatch(KindFloat, acc.Kind()))
	}
	return acc, nil
}

func binary(op Op, a, b Value) (Value, error) {
	if a.Kind() == KindVec || b.Kind() == KindVec {
		return vectorBinary(op, a, b)
	}
	if !a.IsNumber() {
		return Value{}, mismatch(KindFloat, a.Kind())
	}
	if !b.IsNumber() {
		return Value{}, mismatch(KindFloat, b.Kind())
	}
	if a.Kind() == KindInt && b.Kind() == KindInt {
		x, y := a.i, b.i
		switch op {
		case OpSum:
			return checked(addInt(x, y))
		case OpSub:
			return checked(subInt(x, y))
		case OpMul:
			return checked(mulInt(x, y))
		case OpDiv:
			if y == 0 {
				return Value{}, fmt.Errorf("%w: division by zero", ErrUnsupported)
			}
			if x == math.MinInt && y == -1 {
				return Value{}, fmt.Errorf("%w: %d / %d", ErrOutOfRange, x, y)
			}
			return Int(x / y), nil
		case OpMod:
			if y == 0 {
				return Value{}, fmt.Errorf("%w: modulo by zero", ErrUnsupported)
			}
			return Int(x % y), nil
		case OpMin:
			return Int(min(x, y)), nil
		case OpMax:
			return Int(max(x, y)), nil
		}
		return Value{}, ErrUnsupported
	}
	x, _ := a.AsFloat()
	y, _ := b.AsFloat()
	switch op {
	case OpSum:
		return Float(x + y), nil
	case OpSub:
		return Float(x - y), nil
	case OpMul:
		return Float(x * y), nil
	case OpDiv:
		if y == 0 {
			return Value{}, fmt.Errorf("%w: division by zero", ErrUnsupported)
		}
		return Float(x / y), nil
	case OpMod:
		if y == 0 {
			return Value{}, fmt.Errorf("%w: modulo by zero", ErrUnsupported)
		}
		return Float(math.Mod(x, y)), nil
	case OpMin:
		return Float(math.Min(x, y)), nil
	case OpMax:
		return Float(math.Max(x, y)), nil
	}
	return Value{}, ErrUnsupported
}

func checked(n int, ok bool) (Value, error) {
	if !ok {
		return Value{}, fmt.Errorf("%w: integer overflow", ErrOutOfRange)
	}
	return Int(n), nil
}

func vectorBinary(op Op, a, b Value) (Value, error) {
	switch {
	case a.Kind() == KindVec && b.Kind() == KindVec:
		switch op {
		case OpSum:
			return VecValue(a.v.Add(b.v)), nil
		case OpSub:
			return VecValue(a.v.Sub(b.v)), nil
		}
	case a.Kind() == KindVec && b.IsNumber() && (op == OpMul || op == OpDiv):
		f, _ := b.AsFloat()
		if op == OpDiv {
			if f == 0 {
				return Value{}, fmt.Errorf("%w: division by zero", ErrUnsupported)
			}
			f = 1 / f
		}
		return VecValue(a.v.Scale(f)), nil
	case a.IsNumber() && b.Kind() == KindVec && op == OpMul:
		f, _ := a.AsFloat()
		return VecValue(b.v.Scale(f)), nil
	}
	return Value{}, fmt.Errorf("%w: %s on %s and %s", ErrUnsupported, op, a.Kind(), b.Kind())
}

func evalPercent(e Expr, env Env) (Value, error) {
	args, err := evalArgs(e, env, 3)
	if err != nil {
		return Value{}, err
	}
	for _, arg := range args {
		if !arg.IsNumber() {
			return Value{}, fail(e.Op, "", mismatch(KindFloat, arg.Kind()))
		}
	}
	if args[0].Kind() == KindInt && args[1].Kind() == KindInt && args[2].Kind() == KindInt {
		n, err := PercentOf(args[0].i, args[1].i, args[2].i)
		if err != nil {
			return Value{}, fail(e.Op, "", err)
		}
		return Int(n), nil
	}
	base, _ := args[0].AsFloat()
	rel, _ := args[1].AsFloat()
	abs, _ := args[2].AsFloat()
	return Float(base*rel/100 + abs), nil
}

func evalLogic(e Expr, env Env) (Value, error) {
	args, err := evalArgs(e, env, -1)
	if err != nil {
		return Value{}, err
	}
	if len(args) == 0 {
		return Value{}, arity(e, 2)
	}
	result := e.Op == OpAnd
	for _, arg := range args {
		b, err := arg.AsBool()
		if err != nil {
			return Value{}, fail(e.Op, "", err)
		}
		if e.Op == OpAnd {
			result = result && b
		} else {
			result = result || b
		}
	}
	return Bool(result), nil
}

func evalCompare(e Expr, env Env) (Value, error) {
	args, err := evalArgs(e, env, 2)
	if err != nil {
		return Value{}, err
	}
	a, b := args[0], args[1]
	switch e.Op {
	case OpEq:
		return Bool(a.Equal(b)), nil
	case OpNe:
		return Bool(!a.Equal(b)), nil
	}
	cmp, err := order(a, b)
	if err != nil {
		return Value{}, fail(e.Op, "", err)
	}
	switch e.Op {
	case OpLt:
		return Bool(cmp < 0), nil
	case OpLe:
		return Bool(cmp <= 0), nil
	case OpGt:
		return Bool(cmp > 0), nil
	default:
		return Bool(cmp >= 0), nil
	}
}

func order(a, b Value) (int, error) {
	if a.Kind() == KindString && b.Kind() == KindString {
		switch {
		case a.s < b.s:
			return -1, nil
		case a.s > b.s:
			return 1, nil
		}
		return 0, nil
	}
	if !a.IsNumber() || !b.IsNumber() {
		return 0, fmt.Errorf("%w: cannot order %s and %s", ErrUnsupported, a.Kind(), b.Kind())
	}
	if a.Kind() == KindInt && b.Kind() == KindInt {
		switch {
		case a.i < b.i:
			return -1, nil
		case a.i > b.i:
			return 1, nil
		}
		return 0, nil
	}
	x, _ := a.AsFloat()
	y, _ := b.AsFloat()
	switch {
	case x < y:
		return -1, nil
	case x > y:
		return 1, nil
	}
	return 0, nil
}
