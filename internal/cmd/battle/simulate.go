package battle

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/louisbranch/arena/internal/battle"
	"github.com/louisbranch/arena/internal/battle/script"
	"github.com/louisbranch/arena/internal/platform/otel"
)

// settings are the engine settings a battle runs under. They are stored
// with the battle so a replay runs under the same ones.
type settings struct {
	maxSteps     int
	tick         time.Duration
	cascadeLimit int
}

// simulate runs a scenario to completion inside a battle span, with one
// child span per round.
func simulate(ctx context.Context, sc *script.Scenario, battleID string, seed int64, st settings, logger *log.Logger) (battle.Outcome, []battle.Action, error) {
	tracer := otel.Tracer()
	ctx, span := tracer.Start(ctx, "battle.run", trace.WithAttributes(
		attribute.String("battle.id", battleID),
		attribute.String("battle.scenario", sc.Name),
		attribute.Int64("battle.seed", seed),
	))
	defer span.End()

	rounds := &roundSpans{ctx: ctx, tracer: tracer}
	b, err := battle.New(battle.Config{
		ID:           battleID,
		Seed:         seed,
		CascadeLimit: st.cascadeLimit,
		Tick:         st.tick,
		Scripts:      sc.Scripts,
		Logger:       logger,
		OnStep:       rounds.observe,
	}, sc.Catalog, sc.Roster)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return battle.Outcome{}, nil, err
	}

	out, err := b.Run(ctx, st.maxSteps)
	rounds.end()
	actions := b.Log()
	span.SetAttributes(
		attribute.String("battle.winner", out.Winner.String()),
		attribute.String("battle.reason", string(out.Reason)),
		attribute.Int("battle.rounds", out.Stats.Rounds),
		attribute.Int("battle.steps", out.Stats.Steps),
		attribute.Int("battle.actions", len(actions)),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return out, actions, err
	}
	return out, actions, nil
}

// roundSpans opens a span when a step reports a new round and closes it
// when the round changes again.
type roundSpans struct {
	ctx     context.Context
	tracer  trace.Tracer
	span    trace.Span
	round   int
	actions int
}

func (r *roundSpans) observe(res battle.StepResult) {
	if r.span == nil || res.Round != r.round {
		r.end()
		r.round = res.Round
		_, r.span = r.tracer.Start(r.ctx, "battle.round", trace.WithAttributes(
			attribute.Int("battle.round", res.Round),
		))
	}
	r.actions += len(res.Actions)
}

func (r *roundSpans) end() {
	if r.span == nil {
		return
	}
	r.span.SetAttributes(attribute.Int("battle.actions", r.actions))
	r.span.End()
	r.span = nil
	r.actions = 0
}
