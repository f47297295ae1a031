package decision

import (
	"context"
	"fmt"
	"math"

	"github.com/nvandessel/alliance/internal/models"
	"github.com/nvandessel/alliance/internal/payoff"
)

// Scripted plays each strategy by fixed rules, without a reasoning backend.
// Identical requests always produce identical decisions.
type Scripted struct {
	table *payoff.Table
}

// NewScripted returns a rule-based provider. The table drives the
// payoff-maximizing strategies.
func NewScripted(table *payoff.Table) *Scripted {
	return &Scripted{table: table}
}

// Name identifies the provider in logs.
func (s *Scripted) Name() string {
	return "scripted"
}

// Decide implements Provider.
func (s *Scripted) Decide(ctx context.Context, req Request) (Decision, error) {
	if err := ctx.Err(); err != nil {
		return Decision{}, err
	}

	var n int
	var why string
	switch req.Strategy {
	case models.StrategyTitForTat:
		n, why = titForTat(req)
	case models.StrategyCooperative:
		n, why = cooperative(req)
	case models.StrategyCompetitive:
		n, why = competitive(req)
	case models.StrategyAdaptive:
		n, why = adaptive(req)
	case models.StrategyNeutral:
		n, why = s.neutral(req)
	default:
		return Decision{}, models.NewConfigError("strategy", fmt.Sprintf("unknown strategy %q", req.Strategy))
	}

	return Decision{
		Investment:    n,
		Justification: fmt.Sprintf("%s\n\nFINAL DECISION: %d engineers", why, n),
		Steps:         []models.ReasoningStep{{Step: "Decision", Content: why}},
		Method:        MethodMarker,
	}, nil
}

// Chat implements Chatter with a plain summary of the party's position.
func (s *Scripted) Chat(ctx context.Context, req ChatRequest) (string, error) {
	msg := fmt.Sprintf("As the executive at %s, I follow a %s approach.", req.Party.CompanyName(), req.Strategy)
	if n := len(req.History); n > 0 {
		last := req.History[n-1]
		msg += fmt.Sprintf(" In round %d we invested %d engineers against our partner's %d.",
			last.Round, last.Investment(req.Party), last.Investment(req.Party.Partner()))
	}
	msg += fmt.Sprintf(" Our cumulative payoff is $%.2f against our partner's $%.2f.", req.MyCumulative, req.PartnerCumulative)
	return msg, nil
}

// investments splits history into the party's and the partner's investments.
func investments(req Request) (mine, theirs []int) {
	partner := req.Party.Partner()
	for _, r := range req.History {
		mine = append(mine, r.Investment(req.Party))
		theirs = append(theirs, r.Investment(partner))
	}
	return mine, theirs
}

func titForTat(req Request) (int, string) {
	last, ok := req.LastRound()
	if !ok {
		return 15, "Opening with 15 engineers to signal cooperation."
	}
	p := last.Investment(req.Party.Partner())
	switch {
	case p <= 5:
		return 8, fmt.Sprintf("Partner invested %d last round; holding the floor of 8.", p)
	case p >= 23:
		return 20, fmt.Sprintf("Partner invested %d last round; capping at 20.", p)
	default:
		return p, fmt.Sprintf("Mirroring partner's %d engineers from last round.", p)
	}
}

func cooperative(req Request) (int, string) {
	mine, theirs := investments(req)
	if len(mine) == 0 {
		return 16, "Opening with 16 engineers to build trust."
	}
	own := mine[len(mine)-1]

	defected, matched := 0, 0
	for i := len(mine) - 1; i >= 0 && theirs[i] < mine[i]-3; i-- {
		defected++
	}
	for i := len(mine) - 1; i >= 0 && abs(theirs[i]-mine[i]) <= 3; i-- {
		matched++
	}

	switch {
	case defected >= 3:
		n := max(theirs[len(theirs)-1], 10)
		return n, fmt.Sprintf("Partner under-invested %d rounds running; reducing to %d.", defected, n)
	case matched >= 2:
		n := min(own+1, 20)
		return n, fmt.Sprintf("Partner has reciprocated for %d rounds; increasing to %d.", matched, n)
	default:
		return own, fmt.Sprintf("Maintaining %d engineers for mutual benefit.", own)
	}
}

func competitive(req Request) (int, string) {
	mine, theirs := investments(req)
	if len(mine) == 0 {
		return 12, "Opening with a moderate 12 engineers."
	}
	own, p := mine[len(mine)-1], theirs[len(theirs)-1]

	if len(theirs) >= 2 && theirs[len(theirs)-2]-p >= 3 {
		n := max(p, 8)
		return n, fmt.Sprintf("Partner cut back to %d; matching at %d to avoid collapse.", p, n)
	}
	if p >= own {
		n := max(own-2, 8)
		return n, fmt.Sprintf("Partner carries %d engineers; lowering our cost to %d.", p, n)
	}
	return own, fmt.Sprintf("Holding at %d engineers.", own)
}

// adaptiveOpenings are the exploration moves played before classifying the partner.
var adaptiveOpenings = []int{12, 16, 14}

func adaptive(req Request) (int, string) {
	mine, theirs := investments(req)
	if len(mine) < len(adaptiveOpenings) {
		n := adaptiveOpenings[len(mine)]
		return n, fmt.Sprintf("Exploring with %d engineers to observe the partner's response.", n)
	}

	mirrored := 0
	for i := 1; i < len(theirs); i++ {
		if abs(theirs[i]-mine[i-1]) <= 2 {
			mirrored++
		}
	}
	avg := mean(theirs)

	switch {
	case float64(mirrored)/float64(len(theirs)-1) >= 0.6:
		return 16, fmt.Sprintf("Partner mirrors our moves (%d of %d rounds); setting a high level of 16.", mirrored, len(theirs)-1)
	case avg >= 16:
		return 18, fmt.Sprintf("Partner averages %.1f, highly cooperative; investing 18.", avg)
	case avg >= 12:
		return 15, fmt.Sprintf("Partner averages %.1f, moderately cooperative; investing 15.", avg)
	case avg >= 8:
		return 12, fmt.Sprintf("Partner averages %.1f, competitive; protecting with 12.", avg)
	default:
		return 9, fmt.Sprintf("Partner averages %.1f, exploitative; cutting to 9.", avg)
	}
}

func (s *Scripted) neutral(req Request) (int, string) {
	_, theirs := investments(req)
	predicted := NeutralInvestment
	if len(theirs) > 0 {
		predicted = int(math.Round(mean(theirs[max(len(theirs)-3, 0):])))
	}
	n, pay := s.bestResponse(req.Party, predicted)
	return n, fmt.Sprintf("Expecting partner near %d engineers; best response is %d for $%.2f.", predicted, n, pay)
}

// bestResponse returns the investment maximizing the party's payoff against a
// fixed partner investment. Ties go to the smaller investment.
func (s *Scripted) bestResponse(p models.Party, partner int) (int, float64) {
	best, bestPay := 0, math.Inf(-1)
	for x := models.MinInvestment; x <= models.MaxInvestment; x++ {
		am, mc := x, partner
		if p == models.PartyMC {
			am, mc = partner, x
		}
		pay, err := s.table.Payoff(p, am, mc)
		if err != nil {
			continue
		}
		if pay > bestPay {
			best, bestPay = x, pay
		}
	}
	return best, bestPay
}

func mean(xs []int) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0
	for _, x := range xs {
		sum += x
	}
	return float64(sum) / float64(len(xs))
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

var (
	_ Provider = (*Scripted)(nil)
	_ Chatter  = (*Scripted)(nil)
)
