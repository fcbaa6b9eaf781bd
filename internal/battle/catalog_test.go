package battle

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/louisbranch/arena/internal/battle/expr"
)

func TestCatalogRejectsDuplicates(t *testing.T) {
	cat := NewCatalog()
	if err := cat.AddUnit(UnitTemplate{Name: " Orc ", Health: 5}); err != nil {
		t.Fatalf("add unit: %v", err)
	}
	if err := cat.AddUnit(UnitTemplate{Name: "Orc", Health: 5}); !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("err = %v, want ErrDuplicateName", err)
	}
	if err := cat.AddStatus(StatusDef{Name: ""}); !errors.Is(err, ErrInvalidContent) {
		t.Fatalf("err = %v, want ErrInvalidContent", err)
	}
	if err := cat.AddStatus(StatusDef{Name: "Stun"}); err != nil {
		t.Fatalf("add status: %v", err)
	}
	if err := cat.AddStatus(StatusDef{Name: "Stun"}); !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("err = %v, want ErrDuplicateName", err)
	}
	if _, ok := cat.Unit("Orc"); !ok {
		t.Fatal("expected trimmed unit name")
	}
}

func TestCatalogNamesAreSorted(t *testing.T) {
	cat := newCatalog(t,
		[]StatusDef{{Name: "Zeal"}, {Name: "Anger"}},
		dummy("Wolf", 1), dummy("Bear", 1),
	)
	if got := cat.UnitNames(); !reflect.DeepEqual(got, []string{"Bear", "Wolf"}) {
		t.Fatalf("units = %v", got)
	}
	if got := cat.StatusNames(); !reflect.DeepEqual(got, []string{"Anger", "Zeal"}) {
		t.Fatalf("statuses = %v", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		statuses []StatusDef
		units    []UnitTemplate
		scripts  ScriptHost
		wantErr  error
		subject  string
	}{
		{
			name:     "trigger kind status without trigger",
			statuses: []StatusDef{{Name: "Vengeance", Kind: StatusOnDeath}},
			wantErr:  ErrInvalidContent,
			subject:  "status Vengeance",
		},
		{
			name:     "trigger without effect",
			statuses: []StatusDef{{Name: "Echo", Triggers: []Trigger{{On: TriggerTakeDamage}}}},
			wantErr:  ErrTriggerWithoutEffect,
			subject:  "status Echo trigger 0",
		},
		{
			name:     "trigger without kind",
			statuses: []StatusDef{{Name: "Echo", Triggers: []Trigger{{Effect: Noop{}}}}},
			wantErr:  ErrInvalidContent,
		},
		{
			name:     "aura without definition",
			statuses: []StatusDef{{Name: "Rally", Kind: StatusAura}},
			wantErr:  ErrInvalidContent,
		},
		{
			name:     "aura granting itself",
			statuses: []StatusDef{{Name: "Rally", Kind: StatusAura, Aura: &AuraDef{Statuses: []string{"Rally"}}}},
			wantErr:  ErrInvalidContent,
		},
		{
			name:     "aura granting unknown status",
			statuses: []StatusDef{{Name: "Rally", Kind: StatusAura, Aura: &AuraDef{Statuses: []string{"Ghost"}}}},
			wantErr:  ErrUnknownStatus,
		},
		{
			name:     "trigger attaching unknown status",
			statuses: []StatusDef{{Name: "Curse", Triggers: []Trigger{{On: TriggerDeath, Effect: List{Effects: []Effect{AttachStatus{Name: "Ghost"}}}}}}},
			wantErr:  ErrUnknownStatus,
		},
		{
			name:    "unit granting unknown status",
			units:   []UnitTemplate{{Name: "Orc", Health: 5, Statuses: []StatusGrant{{Name: "Ghost"}}}},
			wantErr: ErrUnknownStatus,
		},
		{
			name:    "non positive health",
			units:   []UnitTemplate{{Name: "Orc"}},
			wantErr: ErrInvalidContent,
			subject: "unit Orc",
		},
		{
			name:    "spawn of unknown template",
			units:   []UnitTemplate{{Name: "Orc", Health: 5, Action: Spawn{Template: "Ghost"}}},
			wantErr: ErrUnknownTemplate,
		},
		{
			name:     "ability without action",
			statuses: []StatusDef{{Name: "Fireball", Ability: true}},
			units:    []UnitTemplate{{Name: "Orc", Health: 5, Statuses: []StatusGrant{{Name: "Fireball"}}}},
			wantErr:  ErrMissingAction,
		},
		{
			name:    "script without host",
			units:   []UnitTemplate{{Name: "Orc", Health: 5, Action: Script{Name: "smite"}}},
			wantErr: ErrUnknownScript,
		},
		{
			name:    "script unknown to host",
			units:   []UnitTemplate{{Name: "Orc", Health: 5, Action: Script{Name: "smite"}}},
			scripts: fakeScripts{},
			wantErr: ErrUnknownScript,
		},
		{
			name:    "damage on kill attaching unknown status",
			units:   []UnitTemplate{{Name: "Orc", Health: 5, Action: Damage{Amount: Flat(1), OnKill: AttachStatus{Name: "Ghost"}}}},
			wantErr: ErrUnknownStatus,
		},
		{
			name:    "random without choices",
			units:   []UnitTemplate{{Name: "Orc", Health: 5, Action: Random{}}},
			wantErr: ErrInvalidContent,
		},
		{
			name:    "random with negative weight",
			units:   []UnitTemplate{{Name: "Orc", Health: 5, Action: Random{Choices: []Weighted{{Weight: -1, Effect: Noop{}}}}}},
			wantErr: ErrInvalidContent,
		},
		{
			name:    "random choice attaching unknown status",
			units:   []UnitTemplate{{Name: "Orc", Health: 5, Action: Random{Choices: []Weighted{{Weight: 1, Effect: AttachStatus{Name: "Ghost"}}}}}},
			wantErr: ErrUnknownStatus,
		},
		{
			name:    "repeat without effect",
			units:   []UnitTemplate{{Name: "Orc", Health: 5, Action: Repeat{Count: expr.Num(2)}}},
			wantErr: ErrInvalidContent,
		},
		{
			name:    "change of health",
			units:   []UnitTemplate{{Name: "Orc", Health: 5, Action: ChangeStat{Stat: expr.StatHealth, Value: expr.Num(1)}}},
			wantErr: ErrInvalidContent,
		},
		{
			name:    "add var without name",
			units:   []UnitTemplate{{Name: "Orc", Health: 5, Action: AddVar{Value: expr.Num(1), Effect: Noop{}}}},
			wantErr: ErrInvalidContent,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cat := newCatalog(t, tt.statuses, tt.units...)
			err := cat.Validate(tt.scripts)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("err = %v, want ValidationError", err)
			}
			if tt.subject != "" && !strings.HasPrefix(verr.Subject, tt.subject) {
				t.Fatalf("subject = %q, want prefix %q", verr.Subject, tt.subject)
			}
		})
	}
}

func TestValidateJoinsEveryProblem(t *testing.T) {
	cat := newCatalog(t,
		[]StatusDef{{Name: "Vengeance", Kind: StatusOnDeath}},
		UnitTemplate{Name: "Orc", Health: 0, ActionCooldown: -1},
	)
	err := cat.Validate(nil)
	for _, want := range []string{"Vengeance", "health must be positive", "cooldown is negative"} {
		if err == nil || !strings.Contains(err.Error(), want) {
			t.Fatalf("err = %v, want mention of %q", err, want)
		}
	}
}

func TestValidateAcceptsGoodContent(t *testing.T) {
	host := fakeScripts{scripts: map[string]Effect{"smite": Noop{}}}
	cat := newCatalog(t,
		[]StatusDef{
			{Name: "Guard", Kind: StatusProtection, Protection: 20},
			{Name: "Rally", Kind: StatusAura, Aura: &AuraDef{Radius: 3, Filter: FilterAllies, Statuses: []string{"Guard"}}},
			{Name: "Vengeance", Kind: StatusOnDeath, Triggers: []Trigger{{On: TriggerDeath, Effect: Damage{Amount: Flat(2)}}}},
		},
		UnitTemplate{Name: "Captain", Health: 20, Action: Script{Name: "smite"}, Statuses: []StatusGrant{{Name: "Rally"}, {Name: "Vengeance"}}},
	)
	if err := cat.Validate(host); err != nil {
		t.Fatalf("validate: %v", err)
	}
}
