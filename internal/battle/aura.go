package battle

import (
	"github.com/louisbranch/arena/internal/battle/expr"
)

// ConditionFunc evaluates an aura condition with holder as caster and
// candidate as target.
type ConditionFunc func(cond expr.Expr, holder, candidate ID) (bool, error)

// AuraResult summarizes one reconciliation pass.
type AuraResult struct {
	Granted   int
	Revoked   int
	Reactions []Reaction
}

// Changed reports whether the pass attached or detached anything.
func (r AuraResult) Changed() bool { return r.Granted > 0 || r.Revoked > 0 }

// ReconcileAuras re-evaluates every aura held by a living unit against every
// other living unit. Units that newly satisfy an aura receive fresh copies of
// its statuses tagged with the aura id; units that no longer do lose those
// copies. Copies whose aura is gone, or whose holder died, are revoked too.
// A second pass with no change in positions, factions or statuses grants and
// revokes nothing.
func (s *Store) ReconcileAuras(catalog *Catalog, cond ConditionFunc) AuraResult {
	var res AuraResult
	for _, hid := range s.order {
		holder := s.units[hid]
		if !holder.Alive() {
			continue
		}
		for _, sid := range holder.Statuses() {
			aura, ok := s.statuses[sid]
			if !ok || aura.Def.Aura == nil {
				continue
			}
			for _, cid := range s.order {
				candidate := s.units[cid]
				if !candidate.Alive() {
					continue
				}
				applies := s.auraApplies(aura, holder, candidate, cond)
				has := candidate.hasAura(aura.ID)
				switch {
				case applies && !has:
					s.grant(catalog, aura, candidate, &res)
				case !applies && has:
					s.revoke(aura.ID, candidate, &res)
				}
			}
		}
	}

	for _, cid := range s.order {
		candidate := s.units[cid]
		if !candidate.Alive() {
			continue
		}
		for _, auraID := range append([]StatusID(nil), candidate.Auras...) {
			if s.auraLive(auraID) {
				continue
			}
			s.revoke(auraID, candidate, &res)
		}
	}
	return res
}

func (s *Store) auraApplies(aura *AttachedStatus, holder, candidate *Unit, cond ConditionFunc) bool {
	def := aura.Def.Aura
	if candidate.ID == holder.ID && !def.IncludeSelf {
		return false
	}
	if !def.Filter.Matches(holder.Faction, candidate.Faction) {
		return false
	}
	if len(def.Clans) > 0 && !candidate.inClan(def.Clans) {
		return false
	}
	if def.Radius > 0 && holder.Position.Distance(candidate.Position) > def.Radius {
		return false
	}
	if def.Condition != nil {
		if cond == nil {
			return false
		}
		ok, err := cond(*def.Condition, holder.ID, candidate.ID)
		if err != nil {
			s.logger.Printf("battle: aura %q condition on unit %d: %v", aura.Def.Name, candidate.ID, err)
			return false
		}
		return ok
	}
	return true
}

func (s *Store) auraLive(id StatusID) bool {
	aura, ok := s.statuses[id]
	if !ok || aura.Def.Aura == nil {
		return false
	}
	return s.units[aura.Owner].Alive()
}

func (s *Store) grant(catalog *Catalog, aura *AttachedStatus, candidate *Unit, res *AuraResult) {
	candidate.Auras = append(candidate.Auras, aura.ID)
	res.Granted++
	for _, name := range aura.Def.Aura.Statuses {
		def, ok := catalog.Status(name)
		if !ok {
			s.logger.Printf("battle: aura %q grants unknown status %q", aura.Def.Name, name)
			continue
		}
		_, reactions := s.attach(candidate.ID, def, Permanent, aura.Owner, aura.ID, aura.Vars)
		res.Reactions = append(res.Reactions, reactions...)
	}
}

func (s *Store) revoke(auraID StatusID, candidate *Unit, res *AuraResult) {
	candidate.dropAura(auraID)
	res.Revoked++
	for _, sid := range candidate.Statuses() {
		if st, ok := s.statuses[sid]; ok && st.AuraID == auraID {
			res.Reactions = append(res.Reactions, s.Detach(sid)...)
		}
	}
}
