package filter

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestParseBattleFilter(t *testing.T) {
	tests := []struct {
		name   string
		filter string
		clause string
		params []any
	}{
		{name: "empty", filter: "  "},
		{name: "string equals", filter: `winner = "player"`, clause: "winner = ?", params: []any{"player"}},
		{name: "winner alias", filter: `winner = "Players"`, clause: "winner = ?", params: []any{"player"}},
		{name: "draw", filter: `winner != "none"`, clause: "winner != ?", params: []any{"none"}},
		{name: "reason case", filter: `reason = "STEP_LIMIT"`, clause: "reason = ?", params: []any{"step_limit"}},
		{name: "int compare", filter: `rounds > 3`, clause: "rounds > ?", params: []any{int64(3)}},
		{
			name:   "and",
			filter: `winner = "enemy" AND kills >= 2`,
			clause: "(winner = ? AND kills >= ?)",
			params: []any{"enemy", int64(2)},
		},
		{
			name:   "or",
			filter: `reason = "aborted" OR reason = "step_limit"`,
			clause: "(reason = ? OR reason = ?)",
			params: []any{"aborted", "step_limit"},
		},
		{
			name:   "not",
			filter: `NOT scenario = "duel"`,
			clause: "(NOT scenario = ?)",
			params: []any{"duel"},
		},
		{
			name:   "timestamp",
			filter: `created_at > timestamp("2026-03-01T00:00:00Z")`,
			clause: "created_at > ?",
			params: []any{time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC).UnixMilli()},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cond, err := ParseBattleFilter(tt.filter)
			if err != nil {
				t.Fatalf("parse filter: %v", err)
			}
			if cond.Clause != tt.clause {
				t.Fatalf("clause = %q, want %q", cond.Clause, tt.clause)
			}
			if !reflect.DeepEqual(cond.Params, tt.params) {
				t.Fatalf("params = %#v, want %#v", cond.Params, tt.params)
			}
		})
	}
}

func TestParseBattleFilterErrors(t *testing.T) {
	tests := []struct {
		name   string
		filter string
		want   string
	}{
		{name: "unknown field", filter: `mana = 3`, want: "parse filter"},
		{name: "syntax", filter: `winner = `, want: "parse filter"},
		{name: "unknown faction", filter: `winner = "neutral"`, want: `winner: unknown faction "neutral"`},
		{name: "unknown reason", filter: `reason = "fled"`, want: `reason: unknown reason "fled"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseBattleFilter(tt.filter)
			if !errors.Is(err, ErrInvalidFilter) || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want ErrInvalidFilter mentioning %q", err, tt.want)
			}
		})
	}
}
