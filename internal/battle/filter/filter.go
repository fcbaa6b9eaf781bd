// Package filter translates AIP-160 filter expressions over stored battles
// into SQL conditions.
package filter

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.einride.tech/aip/filtering"
	expr "google.golang.org/genproto/googleapis/api/expr/v1alpha1"

	"github.com/louisbranch/arena/internal/battle"
)

// ErrInvalidFilter indicates a filter that does not parse or compares a
// field against a value it can never hold.
var ErrInvalidFilter = errors.New("invalid battle filter")

// SQLCondition is a WHERE clause fragment with positional parameters.
type SQLCondition struct {
	Clause string
	Params []any
}

// field is a filterable battle column. normalize, when set, maps a literal
// onto the stored representation.
type field struct {
	typ       *expr.Type
	normalize func(any) (any, error)
}

var fields = map[string]field{
	"scenario":     {typ: filtering.TypeString},
	"winner":       {typ: filtering.TypeString, normalize: normalizeWinner},
	"reason":       {typ: filtering.TypeString, normalize: normalizeReason},
	"seed":         {typ: filtering.TypeInt},
	"rounds":       {typ: filtering.TypeInt},
	"steps":        {typ: filtering.TypeInt},
	"kills":        {typ: filtering.TypeInt},
	"damage_dealt": {typ: filtering.TypeInt},
	"created_at":   {typ: filtering.TypeTimestamp},
}

var comparisons = map[string]string{
	"=":  "=",
	"!=": "!=",
	"<":  "<",
	"<=": "<=",
	">":  ">",
	">=": ">=",
}

// BattleDeclarations returns the fields a battle filter may reference.
func BattleDeclarations() (*filtering.Declarations, error) {
	opts := []filtering.DeclarationOption{filtering.DeclareStandardFunctions()}
	for name, f := range fields {
		opts = append(opts, filtering.DeclareIdent(name, f.typ))
	}
	return filtering.NewDeclarations(opts...)
}

// ParseBattleFilter parses a filter such as `winner = "player" AND rounds > 3`.
// An empty filter yields an empty condition. Winner accepts the same names
// as scenario files ("players", "enemies", "none").
func ParseBattleFilter(filterStr string) (SQLCondition, error) {
	if strings.TrimSpace(filterStr) == "" {
		return SQLCondition{}, nil
	}

	decls, err := BattleDeclarations()
	if err != nil {
		return SQLCondition{}, fmt.Errorf("create declarations: %w", err)
	}
	parsed, err := filtering.ParseFilterString(filterStr, decls)
	if err != nil {
		return SQLCondition{}, fmt.Errorf("%w: parse filter: %v", ErrInvalidFilter, err)
	}
	cond, err := translate(parsed.CheckedExpr.GetExpr())
	if err != nil {
		return SQLCondition{}, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
	}
	return cond, nil
}

func translate(e *expr.Expr) (SQLCondition, error) {
	call := e.GetCallExpr()
	if call == nil {
		return SQLCondition{}, fmt.Errorf("unsupported expression %T", e.GetExprKind())
	}
	switch call.GetFunction() {
	case "AND", "FUZZY":
		return join(call.GetArgs(), "AND")
	case "OR":
		return join(call.GetArgs(), "OR")
	case "NOT":
		if len(call.GetArgs()) != 1 {
			return SQLCondition{}, fmt.Errorf("NOT takes one argument")
		}
		inner, err := translate(call.GetArgs()[0])
		if err != nil {
			return SQLCondition{}, err
		}
		return SQLCondition{Clause: "(NOT " + inner.Clause + ")", Params: inner.Params}, nil
	}
	if op, ok := comparisons[call.GetFunction()]; ok {
		return compare(call.GetArgs(), op)
	}
	return SQLCondition{}, fmt.Errorf("unsupported function %s", call.GetFunction())
}

func join(args []*expr.Expr, op string) (SQLCondition, error) {
	if len(args) < 2 {
		return SQLCondition{}, fmt.Errorf("%s takes at least two arguments", op)
	}
	clauses := make([]string, 0, len(args))
	var params []any
	for _, arg := range args {
		cond, err := translate(arg)
		if err != nil {
			return SQLCondition{}, err
		}
		clauses = append(clauses, cond.Clause)
		params = append(params, cond.Params...)
	}
	return SQLCondition{Clause: "(" + strings.Join(clauses, " "+op+" ") + ")", Params: params}, nil
}

func compare(args []*expr.Expr, op string) (SQLCondition, error) {
	if len(args) != 2 {
		return SQLCondition{}, fmt.Errorf("comparison takes two arguments")
	}
	ident := args[0].GetIdentExpr()
	if ident == nil {
		return SQLCondition{}, fmt.Errorf("left side of a comparison must be a field")
	}
	f, ok := fields[ident.GetName()]
	if !ok {
		return SQLCondition{}, fmt.Errorf("unknown field %s", ident.GetName())
	}
	value, err := literal(args[1])
	if err != nil {
		return SQLCondition{}, err
	}
	if f.normalize != nil {
		if value, err = f.normalize(value); err != nil {
			return SQLCondition{}, fmt.Errorf("%s: %w", ident.GetName(), err)
		}
	}
	return SQLCondition{Clause: ident.GetName() + " " + op + " ?", Params: []any{value}}, nil
}

// literal returns the Go value of a constant or timestamp("...") argument.
// Timestamps become Unix milliseconds, the storage format of created_at.
func literal(e *expr.Expr) (any, error) {
	if call := e.GetCallExpr(); call != nil {
		if call.GetFunction() != "timestamp" || len(call.GetArgs()) != 1 {
			return nil, fmt.Errorf("unsupported function %s in value position", call.GetFunction())
		}
		s, ok := call.GetArgs()[0].GetConstExpr().GetConstantKind().(*expr.Constant_StringValue)
		if !ok {
			return nil, fmt.Errorf("timestamp takes a string")
		}
		t, err := time.Parse(time.RFC3339Nano, s.StringValue)
		if err != nil {
			return nil, fmt.Errorf("invalid timestamp %q", s.StringValue)
		}
		return t.UTC().UnixMilli(), nil
	}
	switch c := e.GetConstExpr().GetConstantKind().(type) {
	case *expr.Constant_StringValue:
		return c.StringValue, nil
	case *expr.Constant_Int64Value:
		return c.Int64Value, nil
	case *expr.Constant_Uint64Value:
		return c.Uint64Value, nil
	case *expr.Constant_DoubleValue:
		return c.DoubleValue, nil
	case *expr.Constant_BoolValue:
		return c.BoolValue, nil
	}
	return nil, fmt.Errorf("expected a constant, got %T", e.GetExprKind())
}

func normalizeWinner(v any) (any, error) {
	s, _ := v.(string)
	if strings.EqualFold(strings.TrimSpace(s), battle.FactionNone.String()) {
		return battle.FactionNone.String(), nil
	}
	f, ok := battle.ParseFaction(s)
	if !ok {
		return nil, fmt.Errorf("unknown faction %q", s)
	}
	return f.String(), nil
}

func normalizeReason(v any) (any, error) {
	s, _ := v.(string)
	switch r := battle.Reason(strings.ToLower(strings.TrimSpace(s))); r {
	case battle.ReasonEliminated, battle.ReasonTransition, battle.ReasonAborted, battle.ReasonStepLimit, battle.ReasonError:
		return string(r), nil
	}
	return nil, fmt.Errorf("unknown reason %q", s)
}
