// Package narrate renders resolved battle actions as localized text lines.
package narrate

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/louisbranch/arena/internal/battle"
)

// Narrator turns actions into sentences in one locale.
type Narrator struct {
	printer *message.Printer
	tag     language.Tag
	names   map[battle.ID]string
}

// New returns a narrator for locale. Unit names come from units; actions
// referencing other ids fall back to the id alone.
func New(c *Catalog, locale string, units []battle.UnitResult) *Narrator {
	p, tag := c.Printer(locale)
	names := make(map[battle.ID]string, len(units))
	for _, u := range units {
		names[u.ID] = u.Name
	}
	return &Narrator{printer: p, tag: tag, names: names}
}

// Locale returns the locale the narrator resolved to.
func (n *Narrator) Locale() string { return n.tag.String() }

func (n *Narrator) unit(id battle.ID) string {
	if id == 0 {
		return n.printer.Sprintf("battle.unit.none")
	}
	return n.printer.Sprintf("battle.unit", n.names[id], int(id))
}

func (n *Narrator) faction(f battle.Faction) string {
	return n.printer.Sprintf("battle.faction." + f.String())
}

// Line renders one action.
func (n *Narrator) Line(a battle.Action) string {
	p := n.printer
	switch a.Kind {
	case battle.ActionRoundStart:
		return p.Sprintf("battle.round_start", a.Amount)
	case battle.ActionTurnStart:
		return p.Sprintf("battle.turn_start", n.unit(a.Unit))
	case battle.ActionTurnSkipped:
		return p.Sprintf("battle.turn_skipped", n.unit(a.Unit), a.Detail)
	case battle.ActionCooldown:
		return p.Sprintf("battle.cooldown", n.unit(a.Unit), a.Amount)
	case battle.ActionAct:
		return p.Sprintf("battle.act", n.unit(a.Source), a.Detail, n.unit(a.Unit))
	case battle.ActionDamage:
		if a.Detail != "" {
			return p.Sprintf("battle.damage.typed", n.unit(a.Source), a.Amount, n.unit(a.Unit), a.Detail)
		}
		return p.Sprintf("battle.damage", n.unit(a.Source), a.Amount, n.unit(a.Unit))
	case battle.ActionBlocked:
		return p.Sprintf("battle.blocked", n.unit(a.Source), a.Amount, n.unit(a.Unit), a.Detail)
	case battle.ActionShieldBroken:
		return p.Sprintf("battle.shield_broken", n.unit(a.Unit), a.Status)
	case battle.ActionHeal:
		return p.Sprintf("battle.heal", n.unit(a.Source), a.Amount, n.unit(a.Unit))
	case battle.ActionStatusAttached:
		return p.Sprintf("battle.status_attached", n.unit(a.Unit), a.Status)
	case battle.ActionStatusRemoved:
		return p.Sprintf("battle.status_removed", n.unit(a.Unit), a.Status)
	case battle.ActionStatusCharges:
		return p.Sprintf("battle.status_charges", n.unit(a.Unit), a.Status, a.Amount)
	case battle.ActionStatChanged:
		return p.Sprintf("battle.stat_changed", n.unit(a.Unit), a.Detail, a.Amount)
	case battle.ActionRevive:
		return p.Sprintf("battle.revive", n.unit(a.Source), n.unit(a.Unit), a.Amount)
	case battle.ActionDeath:
		return p.Sprintf("battle.death", n.unit(a.Unit), n.unit(a.Source))
	case battle.ActionSpawn:
		return p.Sprintf("battle.spawn", n.unit(a.Source), n.unit(a.Unit))
	case battle.ActionTween:
		return p.Sprintf("battle.tween", n.unit(a.Unit))
	case battle.ActionEffectFailed:
		return p.Sprintf("battle.effect_failed", n.unit(a.Unit), a.Detail)
	case battle.ActionBattleEnd:
		return p.Sprintf("battle.battle_end", a.Detail)
	}
	return string(a.Kind)
}

// Lines renders actions in order.
func (n *Narrator) Lines(actions []battle.Action) []string {
	out := make([]string, 0, len(actions))
	for _, a := range actions {
		out = append(out, n.Line(a))
	}
	return out
}

// Summary renders the outcome in one sentence.
func (n *Narrator) Summary(o battle.Outcome) string {
	if o.Winner == battle.FactionNone {
		reason := string(o.Reason)
		if o.Detail != "" {
			reason = strings.Join([]string{reason, o.Detail}, ": ")
		}
		return n.printer.Sprintf("battle.summary.none", o.Stats.Rounds, reason)
	}
	return n.printer.Sprintf("battle.summary.winner", n.faction(o.Winner), o.Stats.Rounds)
}
