package decision

import (
	"fmt"
	"strings"

	"github.com/nvandessel/alliance/internal/models"
	"github.com/nvandessel/alliance/internal/payoff"
)

// DecisionPrompt builds the per-round user prompt for one party. The party always
// sees its own payoff sample; in symmetric mode it also sees the partner's.
// History is written from the party's perspective.
func DecisionPrompt(req Request, table *payoff.Table) string {
	var b strings.Builder
	partner := req.Party.Partner()

	fmt.Fprintf(&b, "You are making an investment decision for Round %d of %d.\n\n", req.Round, req.TotalRounds)
	b.WriteString("PAYOFF MATRIX (Your Net Benefit):\n")
	b.WriteString("Rows = Your engineers (0-25), Columns = Partner's engineers (0-25)\n\n")
	b.WriteString(table.Sample(req.Party))

	if req.Mode == models.ModeSymmetric {
		b.WriteString("\n\nPARTNER'S PAYOFF MATRIX (Symmetric Information Mode):\n")
		b.WriteString("You can see your partner's payoffs.\n\n")
		b.WriteString(table.Sample(partner))
	} else {
		b.WriteString("\n\nINFORMATION MODE: Asymmetric\n")
		b.WriteString("You do NOT know your partner's exact payoff matrix.\n")
		b.WriteString("Infer their incentives from their behavior.\n")
	}

	if len(req.History) > 0 {
		fmt.Fprintf(&b, "\n\nGAME HISTORY (%d rounds completed):\n", len(req.History))
		for _, r := range req.History {
			fmt.Fprintf(&b, "Round %d: You invested %d, Partner invested %d -> You earned $%.2f, Partner earned $%.2f\n",
				r.Round, r.Investment(req.Party), r.Investment(partner), r.Payoff(req.Party), r.Payoff(partner))
		}
	} else {
		b.WriteString("\n\nGAME HISTORY: This is Round 1 - no history yet.\n")
		b.WriteString("This is your opening move. What signal do you want to send?\n")
	}

	b.WriteString("\n\nCUMULATIVE SCORES:")
	fmt.Fprintf(&b, "\n- Your total payoff: $%.2f", req.MyCumulative)
	fmt.Fprintf(&b, "\n- Partner's total payoff: $%.2f", req.PartnerCumulative)
	if len(req.History) > 0 {
		switch diff := req.MyCumulative - req.PartnerCumulative; {
		case diff > 0:
			fmt.Fprintf(&b, "\n- You are ahead by $%.2f", diff)
		case diff < 0:
			fmt.Fprintf(&b, "\n- Partner is ahead by $%.2f", -diff)
		default:
			b.WriteString("\n- Scores are tied")
		}
	}

	fmt.Fprintf(&b, `

TASK: Decide how many engineers (0-25) to allocate for Round %d.

Structure your analysis:

1. PATTERN ANALYSIS: Partner's investment trend, response to your moves, cooperation level.

2. PAYOFF CALCULATIONS: Expected payoffs for 3-4 scenarios, with the math
   ("If I invest X and partner invests Y -> my payoff = Z").

3. STRATEGIC REASONING: The equilibrium you are targeting and the signal you are sending.

4. DECISION: Your investment.

5. CONFIDENCE & CONTINGENCY: How confident you are and what would change your mind.

End your response with exactly:
"FINAL DECISION: [number] engineers"
`, req.Round)

	return b.String()
}

// ChatRequest is the context for an in-character conversation with one party.
type ChatRequest struct {
	Party             models.Party
	Strategy          models.Strategy
	Message           string
	History           []models.RoundRecord
	CurrentRound      int
	MyCumulative      float64
	PartnerCumulative float64
}

// ChatPrompt returns the system and user prompts for an in-character reply.
func ChatPrompt(req ChatRequest) (system, user string) {
	partner := req.Party.Partner()

	var hist strings.Builder
	if len(req.History) == 0 {
		hist.WriteString("No rounds completed yet.\n")
	} else {
		hist.WriteString("Complete game history:\n")
		for _, r := range req.History {
			fmt.Fprintf(&hist, "Round %d: You invested %d, Partner invested %d | Your payoff: $%.2f, Partner payoff: $%.2f\n",
				r.Round, r.Investment(req.Party), r.Investment(partner), r.Payoff(req.Party), r.Payoff(partner))
		}
	}

	myLast, partnerLast := "Not started", "Not started"
	if n := len(req.History); n > 0 {
		last := req.History[n-1]
		myLast = fmt.Sprint(last.Investment(req.Party))
		partnerLast = fmt.Sprint(last.Investment(partner))
	}

	system = fmt.Sprintf(`You are a senior executive at %s in a strategic alliance for autonomous vehicle development.

Stay in character. You are a business executive, not an assistant.

%s
Current situation:
- Current round: %d
- Your last investment: %s engineers
- Partner's last investment: %s engineers
- Your cumulative payoff: $%.2f
- Partner's cumulative payoff: $%.2f

When responding:
- Reference specific rounds and investments when asked
- Use business strategy and game theory terms
- Be direct and professional
- Keep responses under 150 words
`, req.Party.CompanyName(), hist.String(), req.CurrentRound, myLast, partnerLast, req.MyCumulative, req.PartnerCumulative)

	user = fmt.Sprintf("The user asks: %q\n\nRespond as the executive of your company, using the current game data where relevant.", req.Message)
	return system, user
}

// ChatFallback is the in-character reply used when no backend can answer.
func ChatFallback(p models.Party) string {
	return fmt.Sprintf("I apologize, but I'm having difficulty responding right now. As the executive at %s, I'm focused on our strategic position in this alliance.", p.CompanyName())
}
