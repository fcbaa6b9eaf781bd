package expr

import (
	"fmt"
	"math"
	"strconv"
)

// Kind identifies the dynamic type carried by a Value.
type Kind int

const (
	KindInt Kind = iota
	KindFloat
	KindBool
	KindVec
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindVec:
		return "vec"
	case KindString:
		return "string"
	default:
		return "unknown"
	}
}

// Vec is a two-dimensional battlefield position or offset.
type Vec struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns v+o.
func (v Vec) Add(o Vec) Vec { return Vec{X: v.X + o.X, Y: v.Y + o.Y} }

// Sub returns v-o.
func (v Vec) Sub(o Vec) Vec { return Vec{X: v.X - o.X, Y: v.Y - o.Y} }

// Scale multiplies both components by f.
func (v Vec) Scale(f float64) Vec { return Vec{X: v.X * f, Y: v.Y * f} }

// Len returns the euclidean length of v.
func (v Vec) Len() float64 { return math.Hypot(v.X, v.Y) }

// Distance returns the euclidean distance between v and o.
func (v Vec) Distance(o Vec) float64 { return v.Sub(o).Len() }

// minIntFloat is math.MinInt as a float. Its negation is the first float
// above math.MaxInt.
const minIntFloat = float64(math.MinInt)

// Value is a dynamically typed evaluation result. The zero Value is Int(0).
type Value struct {
	kind Kind
	i    int
	f    float64
	b    bool
	v    Vec
	s    string
}

// Int wraps an integer.
func Int(n int) Value { return Value{kind: KindInt, i: n} }

// Float wraps a float.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// V wraps a vector.
func V(x, y float64) Value { return Value{kind: KindVec, v: Vec{X: x, Y: y}} }

// VecValue wraps an existing vector.
func VecValue(v Vec) Value { return Value{kind: KindVec, v: v} }

// String wraps a string.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Kind reports the dynamic type of v.
func (v Value) Kind() Kind { return v.kind }

// IsNumber reports whether v is an int or a float.
func (v Value) IsNumber() bool { return v.kind == KindInt || v.kind == KindFloat }

// AsInt converts v to an integer. Floats truncate toward zero and booleans
// map to 1 or 0. Non-finite floats and floats outside the int range fail
// with ErrOutOfRange.
func (v Value) AsInt() (int, error) {
	switch v.kind {
	case KindInt:
		return v.i, nil
	case KindFloat:
		if !(v.f >= minIntFloat && v.f < -minIntFloat) {
			return 0, fmt.Errorf("%w: %v as int", ErrOutOfRange, v.f)
		}
		return int(v.f), nil
	case KindBool:
		if v.b {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, mismatch(KindInt, v.kind)
	}
}

// AsFloat converts v to a float.
func (v Value) AsFloat() (float64, error) {
	switch v.kind {
	case KindInt:
		return float64(v.i), nil
	case KindFloat:
		return v.f, nil
	case KindBool:
		if v.b {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, mismatch(KindFloat, v.kind)
	}
}

// AsBool converts v to a boolean. Numbers are true when greater than zero.
func (v Value) AsBool() (bool, error) {
	switch v.kind {
	case KindBool:
		return v.b, nil
	case KindInt:
		return v.i > 0, nil
	case KindFloat:
		return v.f > 0, nil
	default:
		return false, mismatch(KindBool, v.kind)
	}
}

// AsVec converts v to a vector.
func (v Value) AsVec() (Vec, error) {
	if v.kind != KindVec {
		return Vec{}, mismatch(KindVec, v.kind)
	}
	return v.v, nil
}

// AsString converts v to a string. Only string values convert.
func (v Value) AsString() (string, error) {
	if v.kind != KindString {
		return "", mismatch(KindString, v.kind)
	}
	return v.s, nil
}

// String renders v for logs.
func (v Value) String() string {
	switch v.kind {
	case KindInt:
		return strconv.Itoa(v.i)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindVec:
		return fmt.Sprintf("(%g, %g)", v.v.X, v.v.Y)
	case KindString:
		return strconv.Quote(v.s)
	default:
		return "<invalid>"
	}
}

// Equal reports whether two values are equal. Numbers compare across int and
// float.
func (v Value) Equal(o Value) bool {
	if v.IsNumber() && o.IsNumber() {
		if v.kind == KindInt && o.kind == KindInt {
			return v.i == o.i
		}
		a, _ := v.AsFloat()
		b, _ := o.AsFloat()
		return a == b
	}
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindBool:
		return v.b == o.b
	case KindVec:
		return v.v == o.v
	case KindString:
		return v.s == o.s
	}
	return false
}

func mismatch(want, got Kind) error {
	return fmt.Errorf("%w: want %s, got %s", ErrTypeMismatch, want, got)
}
