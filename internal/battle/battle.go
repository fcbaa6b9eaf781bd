package battle

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/louisbranch/arena/internal/battle/expr"
	"github.com/louisbranch/arena/internal/battle/random"
)

const (
	// DefaultCascadeLimit caps the effects resolved by one drain.
	DefaultCascadeLimit = 10000
	// DefaultTraceDepth is how many effects a CascadeError reports.
	DefaultTraceDepth = 16
	// DefaultTick is the step duration used by Run.
	DefaultTick = 100 * time.Millisecond
)

// Config configures a battle.
type Config struct {
	ID   string
	Seed int64
	// CascadeLimit caps the effects one drain may resolve.
	CascadeLimit int
	TraceDepth   int
	// PhaseDelay is the presentation delay reserved when a turn begins and
	// when it ends. Zero disables it.
	PhaseDelay time.Duration
	Tick       time.Duration
	Scripts    ScriptHost
	Logger     *log.Logger
	// OnStep, when set, is called by Run after every step, including the
	// one that fails.
	OnStep func(StepResult)
}

func (c Config) withDefaults() Config {
	if c.CascadeLimit <= 0 {
		c.CascadeLimit = DefaultCascadeLimit
	}
	if c.TraceDepth <= 0 {
		c.TraceDepth = DefaultTraceDepth
	}
	if c.Tick <= 0 {
		c.Tick = DefaultTick
	}
	if c.Logger == nil {
		c.Logger = log.Default()
	}
	return c
}

// Placement puts a unit template on the battlefield.
type Placement struct {
	Template string
	Faction  Faction
	Slot     int
	// Position defaults to a point derived from the slot: players stand on
	// the negative x axis and enemies on the positive one.
	Position *expr.Vec
}

func (p Placement) position() expr.Vec {
	if p.Position != nil {
		return *p.Position
	}
	x := float64(p.Slot + 1)
	if p.Faction == FactionPlayer {
		x = -x
	}
	return expr.Vec{X: x}
}

// StepResult describes what one step did.
type StepResult struct {
	Step   int
	Round  int
	Acting ID
	Phase  Phase
	// Actions resolved during the step, in order.
	Actions []Action
	Over    bool
}

// Battle is one deterministic battle instance. It is not safe for concurrent
// use; callers drive it one Step at a time.
type Battle struct {
	cfg     Config
	catalog *Catalog
	store   *Store
	rng     *random.Source
	logger  *log.Logger

	queue Queue
	turns TurnQueue
	log   actionLog

	steps      int
	round      int
	acting     ID
	visual     time.Duration
	transition bool
	over       bool
	winner     Faction
	reason     Reason
	detail     string

	stats   Stats
	perUnit map[ID]*UnitStats
}

// New validates the catalog, places the roster and settles any reactions the
// starting statuses provoke.
func New(cfg Config, catalog *Catalog, roster []Placement) (*Battle, error) {
	if catalog == nil {
		return nil, fmt.Errorf("%w: catalog is required", ErrInvalidContent)
	}
	if err := catalog.Validate(cfg.Scripts); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()
	b := &Battle{
		cfg:     cfg,
		catalog: catalog,
		store:   NewStore(cfg.Logger),
		rng:     random.New(cfg.Seed),
		logger:  cfg.Logger,
		perUnit: make(map[ID]*UnitStats),
	}
	b.store.onAction = b.recordStatus

	sides := map[Faction]int{}
	for _, p := range roster {
		if p.Faction != FactionPlayer && p.Faction != FactionEnemy {
			return nil, fmt.Errorf("%w: placement %q has no faction", ErrEmptyRoster, p.Template)
		}
		tpl, ok := catalog.Unit(p.Template)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownTemplate, p.Template)
		}
		_, reactions, err := b.addUnit(tpl, p.Faction, p.Slot, p.position())
		if err != nil {
			return nil, err
		}
		b.queue.PushBack(queued(reactions)...)
		sides[p.Faction]++
	}
	if sides[FactionPlayer] == 0 || sides[FactionEnemy] == 0 {
		return nil, ErrEmptyRoster
	}
	if err := b.settle(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Battle) addUnit(tpl UnitTemplate, faction Faction, slot int, pos expr.Vec) (*Unit, []Reaction, error) {
	u := &Unit{
		Name:           tpl.Name,
		Template:       tpl.Name,
		Faction:        faction,
		Clans:          append([]string(nil), tpl.Clans...),
		Health:         tpl.Health,
		MaxHealth:      tpl.Health,
		Stacks:         tpl.Stacks,
		MaxStacks:      tpl.MaxStacks,
		Slot:           slot,
		Position:       pos,
		Action:         tpl.Action,
		ActionCooldown: tpl.ActionCooldown,
	}
	b.store.AddUnit(u)
	var reactions []Reaction
	for _, g := range tpl.Statuses {
		def, ok := b.catalog.Status(g.Name)
		if !ok {
			return nil, nil, fmt.Errorf("%w: %q on %q", ErrUnknownStatus, g.Name, tpl.Name)
		}
		_, r := b.store.Attach(u.ID, def, g.Lifetime, u.ID, g.Vars)
		reactions = append(reactions, r...)
	}
	return u, reactions, nil
}

// ID returns the battle id from the config.
func (b *Battle) ID() string { return b.cfg.ID }

// Seed returns the seed of the battle's random source.
func (b *Battle) Seed() int64 { return b.cfg.Seed }

// Round returns the current round, zero before the first one starts.
func (b *Battle) Round() int { return b.round }

// Over reports whether the battle has ended.
func (b *Battle) Over() bool { return b.over }

// Store exposes the roster and statuses for reading.
func (b *Battle) Store() *Store { return b.store }

// Turns returns the remaining turns of the current round.
func (b *Battle) Turns() []TurnEntry { return b.turns.Entries() }

// Log returns every resolved action so far.
func (b *Battle) Log() []Action { return b.log.all() }

// Step advances the battle by dt. Presentation delays hold the turn machine
// until they run out; otherwise it advances one phase. The effect queue is
// then drained to a fixed point, reconciling auras after every drain.
func (b *Battle) Step(dt time.Duration) (StepResult, error) {
	if b.over {
		return b.stepResult(), ErrBattleOver
	}
	b.steps++
	b.log.beginStep()

	if b.visual > 0 {
		b.visual = max(b.visual-dt, 0)
		if b.visual > 0 {
			return b.stepResult(), nil
		}
	}
	b.advance()
	if err := b.settle(); err != nil {
		return b.fail(err)
	}
	b.checkOver()
	return b.stepResult(), nil
}

// Run steps the battle with the configured tick until it ends, ctx is
// cancelled or maxSteps steps have run. A non-positive maxSteps means no
// limit. Cancellation aborts the battle at a step boundary.
func (b *Battle) Run(ctx context.Context, maxSteps int) (Outcome, error) {
	for steps := 0; !b.over; steps++ {
		if maxSteps > 0 && steps >= maxSteps {
			b.end(FactionNone, ReasonStepLimit, fmt.Sprintf("no winner after %d steps", maxSteps))
			break
		}
		if err := ctx.Err(); err != nil {
			b.Abort(err.Error())
			return b.Outcome(), err
		}
		res, err := b.Step(b.cfg.Tick)
		if b.cfg.OnStep != nil {
			b.cfg.OnStep(res)
		}
		if err != nil {
			return b.Outcome(), err
		}
	}
	return b.Outcome(), nil
}

// Apply enqueues an effect from the match controller and settles it.
func (b *Battle) Apply(effect Effect, ctx EffectContext) error {
	if b.over {
		return ErrBattleOver
	}
	b.log.beginStep()
	b.queue.PushBack(QueuedEffect{Effect: effect, Ctx: ctx})
	if err := b.settle(); err != nil {
		_, err = b.fail(err)
		return err
	}
	b.checkOver()
	return nil
}

// MoveUnit places a unit at pos. Auras follow on the next settle.
func (b *Battle) MoveUnit(id ID, pos expr.Vec) error {
	u, ok := b.store.Unit(id)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownUnit, id)
	}
	u.Position = pos
	return nil
}

// SetTransition halts the turn queue at the next step boundary.
func (b *Battle) SetTransition() { b.transition = true }

// Abort ends the battle without a winner. It takes effect between steps.
func (b *Battle) Abort(reason string) {
	if b.over {
		return
	}
	b.queue.Clear()
	b.end(FactionNone, ReasonAborted, reason)
}

// settle drains the queue and reconciles auras until neither produces work.
// Stat modifiers are recomputed after every reconciliation.
func (b *Battle) settle() error {
	for pass := 0; ; pass++ {
		if pass >= b.cfg.CascadeLimit {
			return &CascadeError{Limit: b.cfg.CascadeLimit}
		}
		if err := b.drain(); err != nil {
			return err
		}
		res := b.store.ReconcileAuras(b.catalog, b.condition)
		b.queue.PushBack(queued(res.Reactions)...)
		b.applyStatModifiers()
		if b.queue.Len() == 0 {
			return nil
		}
	}
}

func (b *Battle) condition(cond expr.Expr, holder, candidate ID) (bool, error) {
	return expr.EvalBool(cond, b.env(EffectContext{Caster: holder, From: holder, Target: candidate}))
}

func (b *Battle) checkOver() {
	if b.over {
		return
	}
	players, enemies := b.store.AliveCount(FactionPlayer), b.store.AliveCount(FactionEnemy)
	switch {
	case players == 0 && enemies == 0:
		b.end(FactionNone, ReasonEliminated, "both sides eliminated")
	case players == 0:
		b.end(FactionEnemy, ReasonEliminated, "")
	case enemies == 0:
		b.end(FactionPlayer, ReasonEliminated, "")
	case b.transition:
		b.end(FactionNone, ReasonTransition, "")
	}
}

func (b *Battle) fail(err error) (StepResult, error) {
	b.end(FactionNone, ReasonError, err.Error())
	return b.stepResult(), err
}

func (b *Battle) end(winner Faction, reason Reason, detail string) {
	b.over = true
	b.winner = winner
	b.reason = reason
	b.detail = detail
	b.turns.entries = nil
	b.acting = 0
	b.record(Action{Kind: ActionBattleEnd, Detail: string(reason)})
}

func (b *Battle) stepResult() StepResult {
	res := StepResult{
		Step:    b.steps,
		Round:   b.round,
		Acting:  b.acting,
		Actions: b.log.sinceStep(),
		Over:    b.over,
	}
	if entry := b.turns.head(); entry != nil {
		res.Phase = entry.Phase
	}
	return res
}

func (b *Battle) record(a Action) {
	a.Step = b.steps
	a.Round = b.round
	b.log.append(a)
}

func (b *Battle) recordStatus(a Action) {
	switch a.Kind {
	case ActionStatusAttached:
		b.stats.StatusesAttached++
	case ActionStatusRemoved:
		b.stats.StatusesRemoved++
	}
	b.record(a)
}

func (b *Battle) unitStats(id ID) *UnitStats {
	s, ok := b.perUnit[id]
	if !ok {
		s = &UnitStats{}
		b.perUnit[id] = s
	}
	return s
}
