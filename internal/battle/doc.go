// Package battle implements the deterministic effect-resolution engine.
//
// A Battle owns a Store of units and their attached statuses, a double-ended
// effect queue and a turn queue. Each Step advances the turn queue by at most
// one phase and then drains the effect queue to a fixed point, reconciling
// auras after every drain, so callers only ever observe settled state.
//
// Effects, statuses and triggers are plain data. Quantities are expressions
// from package expr evaluated against the effect's context when the effect
// resolves. The only source of randomness is the battle's seeded source.
package battle
