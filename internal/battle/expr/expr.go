// Package expr evaluates numeric, boolean and vector expressions used by
// effect and status definitions.
//
// Expressions are plain data: a tagged Op plus operands. Evaluation reads unit
// state through an Env and never mutates it. The only ambient input is the
// Env's random source, which callers seed for reproducibility.
package expr

import (
	"fmt"
	"math"
)

// Op identifies the operation an Expr performs.
type Op int

const (
	// OpConst yields Expr.Value.
	OpConst Op = iota
	// OpVar reads Expr.Name from the context variable bag.
	OpVar
	// OpStat reads Expr.Stat of the unit named by Expr.Who.
	OpStat
	// OpHasStatus reports whether Expr.Who carries a status named Expr.Name.
	OpHasStatus
	// OpRand yields an integer in [Args[0], Args[1]].
	OpRand
	OpSum
	OpSub
	OpMul
	OpDiv
	OpMod
	OpMin
	OpMax
	// OpPercent yields Args[0]*Args[1]/100 + Args[2].
	OpPercent
	OpAnd
	OpOr
	OpNot
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	// OpIf yields Args[1] when Args[0] holds, otherwise Args[2].
	OpIf
	// OpVec builds a vector from Args[0] and Args[1].
	OpVec
	// OpDistance yields the distance between two vectors.
	OpDistance
	// OpRoll yields the total of Args[1] dice with Args[0] sides each.
	OpRoll
)

var opNames = map[Op]string{
	OpConst:     "const",
	OpVar:       "var",
	OpStat:      "stat",
	OpHasStatus: "has_status",
	OpRand:      "rand",
	OpSum:       "sum",
	OpSub:       "sub",
	OpMul:       "mul",
	OpDiv:       "div",
	OpMod:       "mod",
	OpMin:       "min",
	OpMax:       "max",
	OpPercent:   "percent",
	OpAnd:       "and",
	OpOr:        "or",
	OpNot:       "not",
	OpEq:        "eq",
	OpNe:        "ne",
	OpLt:        "lt",
	OpLe:        "le",
	OpGt:        "gt",
	OpGe:        "ge",
	OpIf:        "if",
	OpVec:       "vec",
	OpDistance:  "distance",
	OpRoll:      "roll",
}

func (o Op) String() string {
	if name, ok := opNames[o]; ok {
		return name
	}
	return "unknown"
}

// ParseOp resolves an operation by its String name.
func ParseOp(name string) (Op, bool) {
	for op, n := range opNames {
		if n == name {
			return op, true
		}
	}
	return 0, false
}

// Who selects a unit relative to the evaluation context.
type Who int

const (
	WhoTarget Who = iota
	WhoCaster
	WhoFrom
)

func (w Who) String() string {
	switch w {
	case WhoCaster:
		return "caster"
	case WhoFrom:
		return "from"
	default:
		return "target"
	}
}

// ParseWho resolves a context reference name. Unknown names fall back to the
// target.
func ParseWho(name string) Who {
	switch name {
	case "caster":
		return WhoCaster
	case "from":
		return WhoFrom
	default:
		return WhoTarget
	}
}

// Stat names a readable unit attribute.
type Stat int

const (
	StatHealth Stat = iota
	StatMaxHealth
	StatStacks
	StatMaxStacks
	StatSlot
	StatPosition
	StatFaction
	StatAlive
)

var statNames = map[Stat]string{
	StatHealth:    "health",
	StatMaxHealth: "max_health",
	StatStacks:    "stacks",
	StatMaxStacks: "max_stacks",
	StatSlot:      "slot",
	StatPosition:  "position",
	StatFaction:   "faction",
	StatAlive:     "alive",
}

func (s Stat) String() string {
	if name, ok := statNames[s]; ok {
		return name
	}
	return "unknown"
}

// ParseStat resolves a stat by its String name.
func ParseStat(name string) (Stat, bool) {
	for stat, n := range statNames {
		if n == name {
			return stat, true
		}
	}
	return 0, false
}

// Expr is one expression node. Which fields are meaningful depends on Op.
// The zero Expr is the constant 0.
type Expr struct {
	Op    Op
	Value Value
	Name  string
	Who   Who
	Stat  Stat
	Args  []Expr
}

// Lit returns a constant expression.
func Lit(v Value) Expr { return Expr{Op: OpConst, Value: v} }

// Num returns an integer constant expression.
func Num(n int) Expr { return Lit(Int(n)) }

// Var reads a context variable.
func Var(name string) Expr { return Expr{Op: OpVar, Name: name} }

// StatOf reads a stat from the referenced unit.
func StatOf(who Who, stat Stat) Expr { return Expr{Op: OpStat, Who: who, Stat: stat} }

// HasStatus tests whether the referenced unit carries a named status.
func HasStatus(who Who, name string) Expr { return Expr{Op: OpHasStatus, Who: who, Name: name} }

// Rand yields a uniformly drawn integer between lo and hi inclusive.
func Rand(lo, hi Expr) Expr { return Expr{Op: OpRand, Args: []Expr{lo, hi}} }

// Roll yields the total of count dice with the given number of sides.
func Roll(sides, count Expr) Expr { return Expr{Op: OpRoll, Args: []Expr{sides, count}} }

func Sum(args ...Expr) Expr { return Expr{Op: OpSum, Args: args} }
func Sub(a, b Expr) Expr    { return Expr{Op: OpSub, Args: []Expr{a, b}} }
func Mul(args ...Expr) Expr { return Expr{Op: OpMul, Args: args} }
func Div(a, b Expr) Expr    { return Expr{Op: OpDiv, Args: []Expr{a, b}} }
func Mod(a, b Expr) Expr    { return Expr{Op: OpMod, Args: []Expr{a, b}} }
func Min(args ...Expr) Expr { return Expr{Op: OpMin, Args: args} }
func Max(args ...Expr) Expr { return Expr{Op: OpMax, Args: args} }
func And(args ...Expr) Expr { return Expr{Op: OpAnd, Args: args} }
func Or(args ...Expr) Expr  { return Expr{Op: OpOr, Args: args} }
func Not(a Expr) Expr       { return Expr{Op: OpNot, Args: []Expr{a}} }
func Eq(a, b Expr) Expr     { return Expr{Op: OpEq, Args: []Expr{a, b}} }
func Ne(a, b Expr) Expr     { return Expr{Op: OpNe, Args: []Expr{a, b}} }
func Lt(a, b Expr) Expr     { return Expr{Op: OpLt, Args: []Expr{a, b}} }
func Le(a, b Expr) Expr     { return Expr{Op: OpLe, Args: []Expr{a, b}} }
func Gt(a, b Expr) Expr     { return Expr{Op: OpGt, Args: []Expr{a, b}} }
func Ge(a, b Expr) Expr     { return Expr{Op: OpGe, Args: []Expr{a, b}} }

// If selects between two branches.
func If(cond, then, otherwise Expr) Expr {
	return Expr{Op: OpIf, Args: []Expr{cond, then, otherwise}}
}

// Percent computes base*relative/100 + absolute.
func Percent(base, relative, absolute Expr) Expr {
	return Expr{Op: OpPercent, Args: []Expr{base, relative, absolute}}
}

// MakeVec builds a vector expression.
func MakeVec(x, y Expr) Expr { return Expr{Op: OpVec, Args: []Expr{x, y}} }

// Distance measures between two vector expressions.
func Distance(a, b Expr) Expr { return Expr{Op: OpDistance, Args: []Expr{a, b}} }

// PercentOf applies the relative-then-absolute formula on integers. The
// multiplication happens before the division so small percentages of small
// bases do not round away. Results that overflow int fail with ErrOutOfRange.
func PercentOf(base, relative, absolute int) (int, error) {
	scaled, ok := mulInt(base, relative)
	if !ok {
		return 0, fmt.Errorf("%w: %d%% of %d", ErrOutOfRange, relative, base)
	}
	sum, ok := addInt(scaled/100, absolute)
	if !ok {
		return 0, fmt.Errorf("%w: %d + %d", ErrOutOfRange, scaled/100, absolute)
	}
	return sum, nil
}

func addInt(a, b int) (int, bool) {
	s := a + b
	if (b > 0 && s < a) || (b < 0 && s > a) {
		return 0, false
	}
	return s, true
}

func subInt(a, b int) (int, bool) {
	s := a - b
	if (b < 0 && s < a) || (b > 0 && s > a) {
		return 0, false
	}
	return s, true
}

func mulInt(a, b int) (int, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	p := a * b
	if p/b != a || (a == -1 && b == math.MinInt) || (b == -1 && a == math.MinInt) {
		return 0, false
	}
	return p, true
}
