package models

import (
	"fmt"
	"strings"
	"time"
)

// Investment bounds. A party allocates between MinInvestment and
// MaxInvestment engineers (inclusive) each round.
const (
	MinInvestment = 0
	MaxInvestment = 25

	// MinRounds and MaxRounds bound SimulationConfig.NumRounds.
	MinRounds = 1
	MaxRounds = 50
)

// Party identifies one side of the alliance.
type Party string

const (
	PartyAM Party = "am" // Autonomous Motors
	PartyMC Party = "mc" // Motherboard Chips
)

// ParseParty accepts "am"/"mc" in any case.
func ParseParty(s string) (Party, error) {
	switch Party(strings.ToLower(strings.TrimSpace(s))) {
	case PartyAM:
		return PartyAM, nil
	case PartyMC:
		return PartyMC, nil
	}
	return "", fmt.Errorf("unknown party %q (valid: am, mc)", s)
}

// Valid returns true if the party is a recognized value.
func (p Party) Valid() bool {
	return p == PartyAM || p == PartyMC
}

// Partner returns the other party.
func (p Party) Partner() Party {
	if p == PartyAM {
		return PartyMC
	}
	return PartyAM
}

// Label returns the upper-case short label ("AM" or "MC").
func (p Party) Label() string {
	return strings.ToUpper(string(p))
}

// CompanyName returns the full company name used in prompts.
func (p Party) CompanyName() string {
	if p == PartyAM {
		return "Autonomous Motors (AM)"
	}
	return "Motherboard Chips (MC)"
}

// Strategy names a scripted behavioral strategy.
type Strategy string

const (
	StrategyCooperative Strategy = "cooperative"
	StrategyCompetitive Strategy = "competitive"
	StrategyTitForTat   Strategy = "tit-for-tat"
	StrategyAdaptive    Strategy = "adaptive"
	StrategyNeutral     Strategy = "neutral"
)

// Strategies lists every supported strategy in display order.
func Strategies() []Strategy {
	return []Strategy{StrategyCooperative, StrategyCompetitive, StrategyTitForTat, StrategyAdaptive, StrategyNeutral}
}

// Valid returns true if the strategy is a recognized value.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyCooperative, StrategyCompetitive, StrategyTitForTat, StrategyAdaptive, StrategyNeutral:
		return true
	}
	return false
}

// InformationMode controls whether a party sees its partner's payoffs.
type InformationMode string

const (
	ModeAsymmetric InformationMode = "asymmetric"
	ModeSymmetric  InformationMode = "symmetric"
)

// Valid returns true if the mode is a recognized value.
func (m InformationMode) Valid() bool {
	return m == ModeAsymmetric || m == ModeSymmetric
}

// Status is the lifecycle state of a simulation.
type Status string

const (
	StatusInitialized Status = "initialized"
	StatusInProgress  Status = "in_progress"
	StatusComplete    Status = "complete"
)

// SimulationConfig holds the parameters of one simulation.
type SimulationConfig struct {
	NumRounds       int             `json:"num_rounds" yaml:"num_rounds"`
	InformationMode InformationMode `json:"information_mode" yaml:"information_mode"`
	AMStrategy      Strategy        `json:"am_strategy" yaml:"am_strategy"`
	MCStrategy      Strategy        `json:"mc_strategy" yaml:"mc_strategy"`
}

// StrategyFor returns the configured strategy of the given party.
func (c SimulationConfig) StrategyFor(p Party) Strategy {
	if p == PartyAM {
		return c.AMStrategy
	}
	return c.MCStrategy
}

// Validate reports the first invalid field as a ConfigurationError.
func (c SimulationConfig) Validate() error {
	if c.NumRounds < MinRounds || c.NumRounds > MaxRounds {
		return NewConfigError("num_rounds", fmt.Sprintf("must be between %d and %d, got %d", MinRounds, MaxRounds, c.NumRounds))
	}
	if !c.InformationMode.Valid() {
		return NewConfigError("information_mode", fmt.Sprintf("must be asymmetric or symmetric, got %q", c.InformationMode))
	}
	if !c.AMStrategy.Valid() {
		return NewConfigError("am_strategy", fmt.Sprintf("unknown strategy %q", c.AMStrategy))
	}
	if !c.MCStrategy.Valid() {
		return NewConfigError("mc_strategy", fmt.Sprintf("unknown strategy %q", c.MCStrategy))
	}
	return nil
}

// RoundRecord is the immutable result of one completed round.
type RoundRecord struct {
	Round        int       `json:"round"`
	AMInvestment int       `json:"am_investment"`
	MCInvestment int       `json:"mc_investment"`
	AMPayoff     float64   `json:"am_payoff"`
	MCPayoff     float64   `json:"mc_payoff"`
	TotalWelfare float64   `json:"total_welfare"`
	AMReasoning  string    `json:"am_reasoning"`
	MCReasoning  string    `json:"mc_reasoning"`
	Timestamp    time.Time `json:"timestamp"`
}

// Investment returns the given party's investment for the round.
func (r RoundRecord) Investment(p Party) int {
	if p == PartyAM {
		return r.AMInvestment
	}
	return r.MCInvestment
}

// Payoff returns the given party's payoff for the round.
func (r RoundRecord) Payoff(p Party) float64 {
	if p == PartyAM {
		return r.AMPayoff
	}
	return r.MCPayoff
}

// ReasoningStep is one titled section of a party's justification.
type ReasoningStep struct {
	Step    string `json:"step"`
	Content string `json:"content"`
}

// ClampInvestment forces n into [MinInvestment, MaxInvestment].
func ClampInvestment(n int) int {
	if n < MinInvestment {
		return MinInvestment
	}
	if n > MaxInvestment {
		return MaxInvestment
	}
	return n
}
