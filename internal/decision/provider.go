// Package decision defines how a party's per-round investment is obtained.
//
// The round engine only sees Provider. Reasoning backends, prompt text and the
// free-text parsing chain stay behind that interface.
package decision

import (
	"context"
	"fmt"

	"github.com/nvandessel/alliance/internal/models"
)

// Request is the round context handed to a provider for one party.
type Request struct {
	Party             models.Party
	Strategy          models.Strategy
	Mode              models.InformationMode
	History           []models.RoundRecord
	Round             int // 1-indexed round being decided
	TotalRounds       int
	MyCumulative      float64
	PartnerCumulative float64
}

// LastRound returns the most recent completed round, if any.
func (r Request) LastRound() (models.RoundRecord, bool) {
	if len(r.History) == 0 {
		return models.RoundRecord{}, false
	}
	return r.History[len(r.History)-1], true
}

// Decision is a provider's answer. Investment may be out of range; the engine
// clamps it into [0,25].
type Decision struct {
	Investment    int                    `json:"investment"`
	Justification string                 `json:"justification"`
	Steps         []models.ReasoningStep `json:"reasoning_steps,omitempty"`
	Method        ParseMethod            `json:"parse_method,omitempty"`
}

// Provider returns one party's decision for a round. Implementations must be safe
// for concurrent use: the engine asks for both parties at once.
type Provider interface {
	Decide(ctx context.Context, req Request) (Decision, error)
}

// Func adapts a plain function to Provider.
type Func func(ctx context.Context, req Request) (Decision, error)

// Decide implements Provider.
func (f Func) Decide(ctx context.Context, req Request) (Decision, error) {
	return f(ctx, req)
}

// Fixed always answers with the configured investment per party. Parties without
// an entry get an error.
type Fixed map[models.Party]int

// Decide implements Provider.
func (f Fixed) Decide(ctx context.Context, req Request) (Decision, error) {
	n, ok := f[req.Party]
	if !ok {
		return Decision{}, fmt.Errorf("no fixed investment for %s", req.Party.Label())
	}
	return Decision{
		Investment:    n,
		Justification: fmt.Sprintf("FINAL DECISION: %d engineers", n),
		Method:        MethodMarker,
	}, nil
}
