package encoding

import (
	"testing"

	"github.com/louisbranch/arena/internal/battle"
)

func TestCanonicalJSON(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  string
	}{
		{
			name:  "sorted keys",
			input: map[string]any{"z": 1, "a": 2, "m": 3},
			want:  `{"a":2,"m":3,"z":1}`,
		},
		{
			name:  "nested keys",
			input: map[string]any{"b": map[string]any{"d": 1, "c": 2}, "a": 3},
			want:  `{"a":3,"b":{"c":2,"d":1}}`,
		},
		{
			name:  "array order kept",
			input: []any{3, 1, 2},
			want:  `[3,1,2]`,
		},
		{
			name:  "no html escaping",
			input: map[string]any{"detail": "<b>&</b>"},
			want:  `{"detail":"<b>&</b>"}`,
		},
		{
			name:  "large integers survive",
			input: map[string]any{"seed": int64(9007199254740993)},
			want:  `{"seed":9007199254740993}`,
		},
		{
			name:  "objects inside arrays",
			input: []any{map[string]any{"y": nil, "x": true}, "é"},
			want:  `[{"x":true,"y":null},"é"]`,
		},
		{
			name:  "action omits empty fields",
			input: battle.Action{Seq: 1, Step: 1, Round: 1, Kind: battle.ActionRoundStart, Amount: 1},
			want:  `{"amount":1,"kind":"round_start","round":1,"seq":1,"step":1}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CanonicalJSON(tt.input)
			if err != nil {
				t.Fatalf("canonical json: %v", err)
			}
			if string(got) != tt.want {
				t.Fatalf("json = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestCanonicalJSONRejectsUnsupported(t *testing.T) {
	if _, err := CanonicalJSON(map[string]any{"ch": make(chan int)}); err == nil {
		t.Fatal("expected error for channel value")
	}
}

func TestContentHashIgnoresKeyOrder(t *testing.T) {
	a, err := ContentHash(map[string]any{"a": 1, "b": 2})
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	b, err := ContentHash(map[string]any{"b": 2, "a": 1})
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if a != b {
		t.Fatalf("hashes differ: %s != %s", a, b)
	}
	if len(a) != 32 {
		t.Fatalf("hash length = %d, want 32", len(a))
	}
}

func TestLogHash(t *testing.T) {
	log := []battle.Action{
		{Seq: 1, Kind: battle.ActionRoundStart, Amount: 1},
		{Seq: 2, Kind: battle.ActionDamage, Unit: 2, Source: 1, Amount: 3},
	}
	first, err := LogHash(log)
	if err != nil {
		t.Fatalf("log hash: %v", err)
	}
	again, _ := LogHash(append([]battle.Action(nil), log...))
	if first != again {
		t.Fatalf("hash = %s, want %s", again, first)
	}

	log[1].Amount = 4
	changed, _ := LogHash(log)
	if changed == first {
		t.Fatal("expected a different hash after changing an action")
	}

	empty, err := LogHash(nil)
	if err != nil {
		t.Fatalf("empty log hash: %v", err)
	}
	if empty == first {
		t.Fatal("empty log must not hash like a real one")
	}
}
