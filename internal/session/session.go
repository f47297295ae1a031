// Package session holds per-simulation state and the registry of live simulations.
//
// A Session owns its round history and cumulative totals. Rounds advance
// through Advance only, one at a time: a second caller arriving while a round
// is in flight is rejected rather than queued. Reads never wait on an in-flight
// round.
package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/nvandessel/alliance/internal/decision"
	"github.com/nvandessel/alliance/internal/engine"
	"github.com/nvandessel/alliance/internal/models"
	"github.com/nvandessel/alliance/internal/payoff"
)

// Player resolves one round from a snapshot. *engine.Engine implements it.
type Player interface {
	Play(ctx context.Context, snap engine.Snapshot) (engine.Result, error)
}

// Session is one running simulation.
type Session struct {
	id        string
	config    models.SimulationConfig
	createdAt time.Time

	// guard admits one Advance at a time.
	guard chan struct{}

	mu           sync.RWMutex
	history      []models.RoundRecord
	amCumulative float64
	mcCumulative float64
	status       models.Status
	updatedAt    time.Time
}

func newSession(id string, cfg models.SimulationConfig, now time.Time) *Session {
	return &Session{
		id:        id,
		config:    cfg,
		createdAt: now,
		updatedAt: now,
		guard:     make(chan struct{}, 1),
		history:   make([]models.RoundRecord, 0, cfg.NumRounds),
		status:    models.StatusInitialized,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Config returns the immutable configuration.
func (s *Session) Config() models.SimulationConfig { return s.config }

// CreatedAt returns the creation time.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// Outcome is the per-round result plus running totals after commit.
type Outcome struct {
	AMPayoff     float64 `json:"am_payoff"`
	MCPayoff     float64 `json:"mc_payoff"`
	TotalWelfare float64 `json:"total_welfare"`
	AMCumulative float64 `json:"am_cumulative"`
	MCCumulative float64 `json:"mc_cumulative"`
}

// RoundResult is returned by a successful Advance.
type RoundResult struct {
	Round      int                  `json:"round"`
	AMDecision decision.Decision    `json:"am_decision"`
	MCDecision decision.Decision    `json:"mc_decision"`
	Outcomes   Outcome              `json:"outcomes"`
	History    []models.RoundRecord `json:"history"`
	Status     models.Status        `json:"status"`
}

// Advance plays and commits the next round. It fails with a conflict error
// wrapping models.ErrBusy if another Advance is in flight, or models.ErrComplete
// if every round has been played. Any failure leaves the session unchanged.
func (s *Session) Advance(ctx context.Context, p Player) (RoundResult, error) {
	select {
	case s.guard <- struct{}{}:
	default:
		return RoundResult{}, models.NewConflictError(models.ErrBusy)
	}
	defer func() { <-s.guard }()

	snap := s.snapshot()
	if snap.Complete() {
		return RoundResult{}, models.NewConflictError(models.ErrComplete)
	}

	res, err := p.Play(ctx, snap)
	if err != nil {
		return RoundResult{}, err
	}
	if res.Record.Round != snap.NextRound() {
		return RoundResult{}, models.NewIntegrityError("round number out of sequence")
	}

	return s.commit(res), nil
}

func (s *Session) snapshot() engine.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return engine.Snapshot{
		SimulationID: s.id,
		Config:       s.config,
		History:      s.historyLocked(),
		AMCumulative: s.amCumulative,
		MCCumulative: s.mcCumulative,
	}
}

func (s *Session) commit(res engine.Result) RoundResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := res.Record
	s.history = append(s.history, rec)
	// Rounding each step keeps the totals equal to the 2dp sum of the history payoffs.
	s.amCumulative = payoff.Round2(s.amCumulative + rec.AMPayoff)
	s.mcCumulative = payoff.Round2(s.mcCumulative + rec.MCPayoff)
	s.updatedAt = rec.Timestamp
	if len(s.history) >= s.config.NumRounds {
		s.status = models.StatusComplete
	} else {
		s.status = models.StatusInProgress
	}

	return RoundResult{
		Round:      rec.Round,
		AMDecision: res.AM,
		MCDecision: res.MC,
		Outcomes: Outcome{
			AMPayoff:     rec.AMPayoff,
			MCPayoff:     rec.MCPayoff,
			TotalWelfare: rec.TotalWelfare,
			AMCumulative: s.amCumulative,
			MCCumulative: s.mcCumulative,
		},
		History: s.historyLocked(),
		Status:  s.status,
	}
}

// historyLocked copies the history. Callers hold s.mu.
func (s *Session) historyLocked() []models.RoundRecord {
	out := make([]models.RoundRecord, len(s.history))
	copy(out, s.history)
	return out
}

// History returns a copy of the committed rounds.
func (s *Session) History() []models.RoundRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.historyLocked()
}

// StatusView is the read-only summary of a session.
type StatusView struct {
	SimulationID string                  `json:"simulation_id"`
	Status       models.Status           `json:"status"`
	CurrentRound int                     `json:"current_round"`
	MaxRounds    int                     `json:"max_rounds"`
	AMCumulative float64                 `json:"am_cumulative"`
	MCCumulative float64                 `json:"mc_cumulative"`
	Config       models.SimulationConfig `json:"config"`
}

// Status returns the current summary. It has no side effects.
func (s *Session) Status() StatusView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return StatusView{
		SimulationID: s.id,
		Status:       s.status,
		CurrentRound: len(s.history),
		MaxRounds:    s.config.NumRounds,
		AMCumulative: s.amCumulative,
		MCCumulative: s.mcCumulative,
		Config:       s.config,
	}
}

// Summary holds the aggregate statistics of an export.
type Summary struct {
	TotalRounds        int           `json:"total_rounds"`
	AMTotalPayoff      float64       `json:"am_total_payoff"`
	MCTotalPayoff      float64       `json:"mc_total_payoff"`
	TotalWelfare       float64       `json:"total_welfare"`
	AvgWelfarePerRound float64       `json:"avg_welfare_per_round"`
	AvgAMInvestment    float64       `json:"avg_am_investment"`
	AvgMCInvestment    float64       `json:"avg_mc_investment"`
	CooperationIndex   float64       `json:"cooperation_index"`
	Status             models.Status `json:"status"`
}

// Export is the full record of a session.
type Export struct {
	SimulationID string                  `json:"simulation_id"`
	ExportedAt   time.Time               `json:"exported_at"`
	Config       models.SimulationConfig `json:"config"`
	Summary      Summary                 `json:"summary"`
	Rounds       []models.RoundRecord    `json:"rounds"`
}

// cooperationBand is the largest investment gap still counted as cooperative.
const cooperationBand = 5

// Export returns the history and summary statistics. Averages are rounded to
// two places and the cooperation index to three; all are zero without history.
func (s *Session) Export() Export {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum := Summary{
		TotalRounds:   len(s.history),
		AMTotalPayoff: s.amCumulative,
		MCTotalPayoff: s.mcCumulative,
		TotalWelfare:  payoff.Round2(s.amCumulative + s.mcCumulative),
		Status:        s.status,
	}
	if n := len(s.history); n > 0 {
		var welfare float64
		var amInv, mcInv, cooperative int
		for _, r := range s.history {
			welfare += r.TotalWelfare
			amInv += r.AMInvestment
			mcInv += r.MCInvestment
			if d := r.AMInvestment - r.MCInvestment; d >= -cooperationBand && d <= cooperationBand {
				cooperative++
			}
		}
		sum.AvgWelfarePerRound = payoff.Round2(welfare / float64(n))
		sum.AvgAMInvestment = payoff.Round2(float64(amInv) / float64(n))
		sum.AvgMCInvestment = payoff.Round2(float64(mcInv) / float64(n))
		sum.CooperationIndex = payoff.RoundTo(float64(cooperative)/float64(n), 3)
	}

	return Export{
		SimulationID: s.id,
		ExportedAt:   time.Now().UTC(),
		Config:       s.config,
		Summary:      sum,
		Rounds:       s.historyLocked(),
	}
}

// ChatReply is an in-character answer from one party.
type ChatReply struct {
	Agent     string    `json:"agent"`
	Response  string    `json:"response"`
	Timestamp time.Time `json:"timestamp"`
	Fallback  bool      `json:"fallback,omitempty"`
}

// Chat asks the party to answer message in character, using its view of the
// current state. If c is nil or fails, the reply is a fixed apology. Chat never
// changes session state.
func (s *Session) Chat(ctx context.Context, c decision.Chatter, party models.Party, message string) (ChatReply, error) {
	if !party.Valid() {
		return ChatReply{}, models.NewValidationError("agent", "must be am or mc")
	}
	if strings.TrimSpace(message) == "" {
		return ChatReply{}, models.NewValidationError("message", "must not be empty")
	}

	s.mu.RLock()
	mine, theirs := s.amCumulative, s.mcCumulative
	if party == models.PartyMC {
		mine, theirs = theirs, mine
	}
	req := decision.ChatRequest{
		Party:             party,
		Strategy:          s.config.StrategyFor(party),
		Message:           message,
		History:           s.historyLocked(),
		CurrentRound:      len(s.history),
		MyCumulative:      mine,
		PartnerCumulative: theirs,
	}
	s.mu.RUnlock()

	reply := ChatReply{Agent: party.Label(), Timestamp: time.Now().UTC()}
	if c != nil {
		text, err := c.Chat(ctx, req)
		if err == nil {
			reply.Response = text
			return reply, nil
		}
	}
	reply.Response = decision.ChatFallback(party)
	reply.Fallback = true
	return reply, nil
}

// idleSince reports the last time the session changed.
func (s *Session) idleSince() (time.Time, models.Status) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updatedAt, s.status
}
