package battle

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// UnitTemplate is an immutable unit definition supplied by the content
// catalog.
type UnitTemplate struct {
	Name           string
	Health         int
	Stacks         int
	MaxStacks      int
	Clans          []string
	Action         Effect
	ActionCooldown int
	Statuses       []StatusGrant
}

// StatusGrant is a status a unit starts with.
type StatusGrant struct {
	Name     string
	Lifetime Lifetime
	Vars     Vars
}

// Catalog holds unit and status templates keyed by name.
type Catalog struct {
	units    map[string]UnitTemplate
	statuses map[string]StatusDef
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		units:    make(map[string]UnitTemplate),
		statuses: make(map[string]StatusDef),
	}
}

// AddUnit registers a unit template.
func (c *Catalog) AddUnit(t UnitTemplate) error {
	name := strings.TrimSpace(t.Name)
	if name == "" {
		return fmt.Errorf("%w: unit template name is required", ErrInvalidContent)
	}
	if _, exists := c.units[name]; exists {
		return fmt.Errorf("%w: unit %q", ErrDuplicateName, name)
	}
	t.Name = name
	c.units[name] = t
	return nil
}

// AddStatus registers a status definition.
func (c *Catalog) AddStatus(d StatusDef) error {
	name := strings.TrimSpace(d.Name)
	if name == "" {
		return fmt.Errorf("%w: status name is required", ErrInvalidContent)
	}
	if _, exists := c.statuses[name]; exists {
		return fmt.Errorf("%w: status %q", ErrDuplicateName, name)
	}
	d.Name = name
	c.statuses[name] = d
	return nil
}

// Unit returns a unit template by name.
func (c *Catalog) Unit(name string) (UnitTemplate, bool) {
	if c == nil {
		return UnitTemplate{}, false
	}
	t, ok := c.units[name]
	return t, ok
}

// Status returns a status definition by name.
func (c *Catalog) Status(name string) (StatusDef, bool) {
	if c == nil {
		return StatusDef{}, false
	}
	d, ok := c.statuses[name]
	return d, ok
}

// UnitNames returns unit template names in sorted order.
func (c *Catalog) UnitNames() []string { return sortedKeys(c.units) }

// StatusNames returns status names in sorted order.
func (c *Catalog) StatusNames() []string { return sortedKeys(c.statuses) }

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ValidationError reports one content problem.
type ValidationError struct {
	Subject string
	Err     error
}

func (e *ValidationError) Error() string { return e.Subject + ": " + e.Err.Error() }

func (e *ValidationError) Unwrap() error { return e.Err }

// kindTriggers lists the trigger kinds a status kind must declare.
var kindTriggers = map[StatusKind][]TriggerKind{
	StatusOnDeath:        {TriggerDeath},
	StatusOnSpawn:        {TriggerSpawn},
	StatusOnKill:         {TriggerKill},
	StatusOnHeal:         {TriggerHealTaken, TriggerHealDealt},
	StatusOnTakeDamage:   {TriggerTakeDamage},
	StatusOnShieldBroken: {TriggerShieldBroken},
	StatusGainedEffect:   {TriggerGained},
	StatusDetect:         {TriggerDetect, TriggerSelfDetect},
	StatusScavenge:       {TriggerScavenge},
}

// Validate checks every template before a battle starts: referenced statuses,
// templates and scripts exist, triggers carry effects, trigger-kind statuses
// declare a matching trigger, auras describe what they grant, and units
// holding ability statuses have an action. All problems are joined.
func (c *Catalog) Validate(scripts ScriptHost) error {
	v := validator{catalog: c, scripts: scripts}
	for _, name := range c.StatusNames() {
		v.status(c.statuses[name])
	}
	for _, name := range c.UnitNames() {
		v.unit(c.units[name])
	}
	return errors.Join(v.errs...)
}

type validator struct {
	catalog *Catalog
	scripts ScriptHost
	errs    []error
}

func (v *validator) fail(subject string, err error) {
	v.errs = append(v.errs, &ValidationError{Subject: subject, Err: err})
}

func (v *validator) status(d StatusDef) {
	subject := "status " + d.Name
	if want, ok := kindTriggers[d.Kind]; ok && !declaresAny(d.Triggers, want) {
		v.fail(subject, fmt.Errorf("%w: %s status declares no %s trigger", ErrInvalidContent, d.Kind, want[0]))
	}
	if d.Kind == StatusAura && d.Aura == nil {
		v.fail(subject, fmt.Errorf("%w: aura status without aura definition", ErrInvalidContent))
	}
	if d.Kind == StatusModifier && d.Modifier == nil {
		v.fail(subject, fmt.Errorf("%w: modifier status without modifier definition", ErrInvalidContent))
	}
	if m := d.Modifier; m != nil {
		switch {
		case m.Target == ModifyDamageTypes && len(m.ExtraTypes) == 0:
			v.fail(subject, fmt.Errorf("%w: damage type modifier adds no types", ErrInvalidContent))
		case m.Target != ModifyDamageTypes && m.Value == nil:
			v.fail(subject, fmt.Errorf("%w: %s modifier has no value", ErrInvalidContent, m.Target))
		}
	}
	if d.Aura != nil {
		if len(d.Aura.Statuses) == 0 {
			v.fail(subject, fmt.Errorf("%w: aura grants no statuses", ErrInvalidContent))
		}
		for _, name := range d.Aura.Statuses {
			if name == d.Name {
				v.fail(subject, fmt.Errorf("%w: aura grants itself", ErrInvalidContent))
				continue
			}
			if _, ok := v.catalog.Status(name); !ok {
				v.fail(subject, fmt.Errorf("%w: aura entry %q", ErrUnknownStatus, name))
			}
		}
	}
	for i, t := range d.Triggers {
		trigger := fmt.Sprintf("%s trigger %d (%s)", subject, i, t.On)
		if t.On == TriggerNone {
			v.fail(trigger, fmt.Errorf("%w: trigger kind is required", ErrInvalidContent))
		}
		if t.Effect == nil {
			v.fail(trigger, ErrTriggerWithoutEffect)
			continue
		}
		v.effect(trigger, t.Effect)
	}
}

func (v *validator) unit(t UnitTemplate) {
	subject := "unit " + t.Name
	if t.Health <= 0 {
		v.fail(subject, fmt.Errorf("%w: health must be positive", ErrInvalidContent))
	}
	if t.MaxStacks > 0 && t.Stacks > t.MaxStacks {
		v.fail(subject, fmt.Errorf("%w: stacks exceed max stacks", ErrInvalidContent))
	}
	if t.ActionCooldown < 0 {
		v.fail(subject, fmt.Errorf("%w: action cooldown is negative", ErrInvalidContent))
	}
	for _, g := range t.Statuses {
		def, ok := v.catalog.Status(g.Name)
		if !ok {
			v.fail(subject, fmt.Errorf("%w: %q", ErrUnknownStatus, g.Name))
			continue
		}
		if def.Ability && t.Action == nil {
			v.fail(subject, fmt.Errorf("%w: ability status %q", ErrMissingAction, g.Name))
		}
	}
	if t.Action != nil {
		v.effect(subject+" action", t.Action)
	}
}

func (v *validator) effect(subject string, e Effect) {
	switch e := e.(type) {
	case nil, Noop, Suicide, Tween, Heal:
	case Damage:
		v.effect(subject+" on injure", e.OnInjure)
		v.effect(subject+" on kill", e.OnKill)
	case AttachStatus:
		if _, ok := v.catalog.Status(e.Name); !ok {
			v.fail(subject, fmt.Errorf("%w: %q", ErrUnknownStatus, e.Name))
		}
	case RemoveStatus:
		if _, ok := v.catalog.Status(e.Name); !ok {
			v.fail(subject, fmt.Errorf("%w: %q", ErrUnknownStatus, e.Name))
		}
	case Spawn:
		if _, ok := v.catalog.Unit(e.Template); !ok {
			v.fail(subject, fmt.Errorf("%w: %q", ErrUnknownTemplate, e.Template))
		}
	case AOE:
		for _, inner := range e.Effects {
			v.effect(subject+" aoe", inner)
		}
	case List:
		for _, inner := range e.Effects {
			v.effect(subject+" list", inner)
		}
	case If:
		v.effect(subject+" then", e.Then)
		v.effect(subject+" else", e.Else)
	case Random:
		if len(e.Choices) == 0 {
			v.fail(subject, fmt.Errorf("%w: random effect has no choices", ErrInvalidContent))
		}
		for i, c := range e.Choices {
			if c.Weight < 0 {
				v.fail(subject, fmt.Errorf("%w: random choice %d has negative weight", ErrInvalidContent, i+1))
			}
			v.effect(fmt.Sprintf("%s choice %d", subject, i+1), c.Effect)
		}
	case Repeat:
		if e.Effect == nil {
			v.fail(subject, fmt.Errorf("%w: repeat without effect", ErrInvalidContent))
		}
		v.effect(subject+" repeat", e.Effect)
	case Revive:
	case ChangeStat:
		if !changeableStat(e.Stat) {
			v.fail(subject, fmt.Errorf("%w: stat %s cannot change", ErrInvalidContent, e.Stat))
		}
	case AddVar:
		if strings.TrimSpace(e.Name) == "" {
			v.fail(subject, fmt.Errorf("%w: variable name is required", ErrInvalidContent))
		}
		v.effect(subject+" "+e.Name, e.Effect)
	case Script:
		lister, ok := v.scripts.(ScriptLister)
		switch {
		case v.scripts == nil:
			v.fail(subject, fmt.Errorf("%w: %q (no script host)", ErrUnknownScript, e.Name))
		case ok && !lister.HasScript(e.Name):
			v.fail(subject, fmt.Errorf("%w: %q", ErrUnknownScript, e.Name))
		}
	default:
		v.fail(subject, fmt.Errorf("%w: effect %T", ErrInvalidContent, e))
	}
}

func declaresAny(triggers []Trigger, kinds []TriggerKind) bool {
	for _, t := range triggers {
		for _, k := range kinds {
			if t.On == k {
				return true
			}
		}
	}
	return false
}
