package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/nvandessel/alliance/internal/decision"
	"github.com/nvandessel/alliance/internal/logging"
	"github.com/nvandessel/alliance/internal/models"
)

// Archiver stores exports of finished simulations.
type Archiver interface {
	SaveExport(ctx context.Context, exp Export) error
}

// Service exposes the simulation operations shared by the HTTP and MCP surfaces.
type Service struct {
	registry *Registry
	player   Player
	chatter  decision.Chatter
	archive  Archiver
	logger   *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithChatter sets the backend for Chat. Without one, chat replies fall back
// to a fixed message.
func WithChatter(c decision.Chatter) ServiceOption {
	return func(s *Service) { s.chatter = c }
}

// WithArchiver stores an export each time a simulation completes.
func WithArchiver(a Archiver) ServiceOption {
	return func(s *Service) { s.archive = a }
}

// WithServiceLogger sets the operational logger.
func WithServiceLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// NewService creates a Service over reg, playing rounds with p.
func NewService(reg *Registry, p Player, opts ...ServiceOption) *Service {
	s := &Service{registry: reg, player: p, logger: logging.Discard()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Registry returns the underlying registry.
func (s *Service) Registry() *Registry { return s.registry }

// StartResult is returned when a simulation is created.
type StartResult struct {
	SimulationID string                  `json:"simulation_id"`
	Status       models.Status           `json:"status"`
	Config       models.SimulationConfig `json:"config"`
}

// Start creates a simulation.
func (s *Service) Start(cfg models.SimulationConfig) (StartResult, error) {
	sess, err := s.registry.Create(cfg)
	if err != nil {
		return StartResult{}, err
	}
	s.logger.Info("simulation created", "simulation_id", sess.ID(),
		"rounds", cfg.NumRounds, "mode", cfg.InformationMode, "am", cfg.AMStrategy, "mc", cfg.MCStrategy)
	return StartResult{SimulationID: sess.ID(), Status: models.StatusInitialized, Config: cfg}, nil
}

// Round advances a simulation by one round and archives it when it completes.
func (s *Service) Round(ctx context.Context, id string) (RoundResult, error) {
	sess, err := s.registry.Get(id)
	if err != nil {
		return RoundResult{}, err
	}

	start := time.Now()
	res, err := sess.Advance(ctx, s.player)
	if err != nil {
		s.logger.Warn("round rejected", "simulation_id", id, "kind", models.KindOf(err), "error", err)
		return RoundResult{}, err
	}
	s.logger.Info("round committed", "simulation_id", id, "round", res.Round,
		"status", res.Status, "duration", time.Since(start))

	if res.Status == models.StatusComplete && s.archive != nil {
		// The round is committed; archive it even if the caller has gone away.
		if err := s.archive.SaveExport(context.WithoutCancel(ctx), sess.Export()); err != nil {
			s.logger.Error("archiving export", "simulation_id", id, "error", err)
		}
	}
	return res, nil
}

// Status returns the summary of a simulation.
func (s *Service) Status(id string) (StatusView, error) {
	sess, err := s.registry.Get(id)
	if err != nil {
		return StatusView{}, err
	}
	return sess.Status(), nil
}

// Export returns the full record of a simulation.
func (s *Service) Export(id string) (Export, error) {
	sess, err := s.registry.Get(id)
	if err != nil {
		return Export{}, err
	}
	return sess.Export(), nil
}

// DeleteResult confirms a deletion.
type DeleteResult struct {
	Status       string `json:"status"`
	SimulationID string `json:"simulation_id"`
}

// Delete removes a simulation.
func (s *Service) Delete(id string) (DeleteResult, error) {
	if err := s.registry.Delete(id); err != nil {
		return DeleteResult{}, err
	}
	s.logger.Info("simulation deleted", "simulation_id", id)
	return DeleteResult{Status: "deleted", SimulationID: id}, nil
}

// ListResult is the list of live simulations.
type ListResult struct {
	Count       int         `json:"count"`
	Simulations []ListEntry `json:"simulations"`
}

// List returns every live simulation.
func (s *Service) List() ListResult {
	entries := s.registry.List()
	return ListResult{Count: len(entries), Simulations: entries}
}

// Chat relays a message to one party of a simulation.
func (s *Service) Chat(ctx context.Context, id string, party models.Party, message string) (ChatReply, error) {
	sess, err := s.registry.Get(id)
	if err != nil {
		return ChatReply{}, err
	}
	reply, err := sess.Chat(ctx, s.chatter, party, message)
	if err != nil {
		return ChatReply{}, err
	}
	if reply.Fallback {
		s.logger.Warn("chat fell back to canned reply", "simulation_id", id, "agent", reply.Agent)
	}
	return reply, nil
}

// Prune drops finished simulations idle for at least ttl.
func (s *Service) Prune(ttl time.Duration) int {
	removed := s.registry.Prune(ttl)
	for _, id := range removed {
		s.logger.Debug("pruned simulation", "simulation_id", id)
	}
	return len(removed)
}
