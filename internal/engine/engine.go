// Package engine resolves one round of the alliance game.
//
// Play is a pure step over a snapshot of session state: it obtains both
// decisions concurrently, clamps them, resolves payoffs through the table and
// returns a candidate record. It never touches the session; committing the
// record is the caller's job, so a failed round leaves nothing behind.
package engine

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nvandessel/alliance/internal/decision"
	"github.com/nvandessel/alliance/internal/logging"
	"github.com/nvandessel/alliance/internal/models"
	"github.com/nvandessel/alliance/internal/payoff"
)

// Snapshot is a consistent copy of session state taken before a round.
type Snapshot struct {
	SimulationID string
	Config       models.SimulationConfig
	History      []models.RoundRecord
	AMCumulative float64
	MCCumulative float64
}

// NextRound returns the 1-indexed number of the round to be played.
func (s Snapshot) NextRound() int {
	return len(s.History) + 1
}

// Complete reports whether every configured round has been played.
func (s Snapshot) Complete() bool {
	return len(s.History) >= s.Config.NumRounds
}

// Result is the outcome of a successful Play.
type Result struct {
	Record models.RoundRecord
	AM     decision.Decision
	MC     decision.Decision
}

// Engine plays rounds against a fixed payoff table and decision provider.
type Engine struct {
	table    *payoff.Table
	provider decision.Provider
	logger   *slog.Logger
	rounds   *logging.RoundLogger
	now      func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the operational logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithRoundLogger sets the JSONL round trace. A nil trace is allowed.
func WithRoundLogger(rl *logging.RoundLogger) Option {
	return func(e *Engine) { e.rounds = rl }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an Engine.
func New(table *payoff.Table, provider decision.Provider, opts ...Option) *Engine {
	e := &Engine{
		table:    table,
		provider: provider,
		logger:   logging.Discard(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Table returns the payoff table used for resolution.
func (e *Engine) Table() *payoff.Table {
	return e.table
}

// Provider returns the decision provider.
func (e *Engine) Provider() decision.Provider {
	return e.provider
}

// Play resolves the next round of snap. Both decisions are requested at once;
// the first failure cancels the other request and is returned as a provider
// error naming the failing party.
func (e *Engine) Play(ctx context.Context, snap Snapshot) (Result, error) {
	if snap.Complete() {
		return Result{}, models.NewConflictError(models.ErrComplete)
	}
	round := snap.NextRound()

	var am, mc decision.Decision
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d, err := e.provider.Decide(gctx, request(snap, models.PartyAM))
		if err != nil {
			return models.NewProviderError(models.PartyAM, err)
		}
		am = d
		return nil
	})
	g.Go(func() error {
		d, err := e.provider.Decide(gctx, request(snap, models.PartyMC))
		if err != nil {
			return models.NewProviderError(models.PartyMC, err)
		}
		mc = d
		return nil
	})
	if err := g.Wait(); err != nil {
		e.logger.Warn("round aborted", "simulation_id", snap.SimulationID, "round", round, "error", err)
		e.rounds.Log(map[string]any{
			"event":         "round_failed",
			"simulation_id": snap.SimulationID,
			"round":         round,
			"error":         err.Error(),
		})
		return Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	amInv, mcInv := e.clamp(models.PartyAM, am.Investment, round), e.clamp(models.PartyMC, mc.Investment, round)
	am.Investment, mc.Investment = amInv, mcInv

	out, err := e.table.Resolve(amInv, mcInv)
	if err != nil {
		return Result{}, err
	}

	rec := models.RoundRecord{
		Round:        round,
		AMInvestment: amInv,
		MCInvestment: mcInv,
		AMPayoff:     out.AMPayoff,
		MCPayoff:     out.MCPayoff,
		TotalWelfare: out.TotalWelfare,
		AMReasoning:  am.Justification,
		MCReasoning:  mc.Justification,
		Timestamp:    e.now().UTC(),
	}

	e.logger.Info("round resolved",
		"simulation_id", snap.SimulationID, "round", round,
		"am", amInv, "mc", mcInv, "welfare", out.TotalWelfare)
	e.logger.Log(ctx, logging.LevelTrace, "round reasoning",
		"simulation_id", snap.SimulationID, "round", round,
		"am_reasoning", am.Justification, "mc_reasoning", mc.Justification)

	event := map[string]any{
		"event":         "round_resolved",
		"simulation_id": snap.SimulationID,
		"round":         round,
		"am_investment": amInv,
		"mc_investment": mcInv,
		"am_payoff":     out.AMPayoff,
		"mc_payoff":     out.MCPayoff,
		"total_welfare": out.TotalWelfare,
		"am_method":     am.Method,
		"mc_method":     mc.Method,
	}
	if e.rounds.Verbose() {
		event["am_reasoning"] = am.Justification
		event["mc_reasoning"] = mc.Justification
	}
	e.rounds.Log(event)

	return Result{Record: rec, AM: am, MC: mc}, nil
}

func (e *Engine) clamp(p models.Party, n, round int) int {
	c := models.ClampInvestment(n)
	if c != n {
		e.logger.Warn("investment out of range, clamped", "party", p.Label(), "round", round, "got", n, "used", c)
	}
	return c
}

// request builds the decision context for one party from its own perspective.
func request(snap Snapshot, p models.Party) decision.Request {
	mine, theirs := snap.AMCumulative, snap.MCCumulative
	if p == models.PartyMC {
		mine, theirs = theirs, mine
	}
	return decision.Request{
		Party:             p,
		Strategy:          snap.Config.StrategyFor(p),
		Mode:              snap.Config.InformationMode,
		History:           snap.History,
		Round:             snap.NextRound(),
		TotalRounds:       snap.Config.NumRounds,
		MyCumulative:      mine,
		PartnerCumulative: theirs,
	}
}
