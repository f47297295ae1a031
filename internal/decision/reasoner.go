package decision

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nvandessel/alliance/internal/llm"
	"github.com/nvandessel/alliance/internal/payoff"
)

const (
	decisionTemperature = 0.7
	decisionMaxTokens   = 1500
	chatTemperature     = 0.8
	chatMaxTokens       = 300
)

// Chatter produces an in-character reply for one party.
type Chatter interface {
	Chat(ctx context.Context, req ChatRequest) (string, error)
}

// ReasonerProvider obtains decisions from a reasoning backend and parses the
// free-text reply.
type ReasonerProvider struct {
	reasoner llm.Reasoner
	table    *payoff.Table
	logger   *slog.Logger
}

// NewReasonerProvider wraps a Reasoner. A nil logger discards output.
func NewReasonerProvider(r llm.Reasoner, table *payoff.Table, logger *slog.Logger) *ReasonerProvider {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ReasonerProvider{reasoner: r, table: table, logger: logger}
}

// Name reports the backing reasoner.
func (p *ReasonerProvider) Name() string {
	return p.reasoner.Name()
}

// Decide implements Provider.
func (p *ReasonerProvider) Decide(ctx context.Context, req Request) (Decision, error) {
	system, err := StrategyPrompt(req.Strategy, req.Party)
	if err != nil {
		return Decision{}, err
	}

	p.logger.Debug("requesting decision",
		"party", req.Party.Label(), "strategy", req.Strategy, "round", req.Round, "reasoner", p.reasoner.Name())

	reply, err := p.reasoner.Complete(ctx, llm.Prompt{
		System:      system,
		User:        DecisionPrompt(req, p.table),
		Temperature: decisionTemperature,
		MaxTokens:   decisionMaxTokens,
	})
	if err != nil {
		return Decision{}, fmt.Errorf("%s reasoner: %w", req.Party.Label(), err)
	}

	n, method, err := ParseInvestment(reply)
	if err != nil {
		return Decision{}, fmt.Errorf("%s reasoner: %w", req.Party.Label(), err)
	}
	if method != MethodMarker {
		p.logger.Warn("decision parsed without explicit marker",
			"party", req.Party.Label(), "round", req.Round, "method", method, "investment", n)
	}

	return Decision{
		Investment:    n,
		Justification: reply,
		Steps:         ParseSteps(reply),
		Method:        method,
	}, nil
}

// Chat implements Chatter.
func (p *ReasonerProvider) Chat(ctx context.Context, req ChatRequest) (string, error) {
	system, user := ChatPrompt(req)
	reply, err := p.reasoner.Complete(ctx, llm.Prompt{
		System:      system,
		User:        user,
		Temperature: chatTemperature,
		MaxTokens:   chatMaxTokens,
	})
	if err != nil {
		return "", err
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", ErrEmptyReply
	}
	return reply, nil
}

var (
	_ Provider = (*ReasonerProvider)(nil)
	_ Chatter  = (*ReasonerProvider)(nil)
	_ Provider = Fixed(nil)
	_ Provider = Func(nil)
)
