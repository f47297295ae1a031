package decision

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/nvandessel/alliance/internal/llm"
	"github.com/nvandessel/alliance/internal/models"
	"github.com/nvandessel/alliance/internal/payoff"
)

// testTable returns a table where AM always gains from investing more and MC
// always gains from investing less.
func testTable(t *testing.T) *payoff.Table {
	t.Helper()
	am := make([][]float64, payoff.Size)
	mc := make([][]float64, payoff.Size)
	for a := range am {
		am[a] = make([]float64, payoff.Size)
		mc[a] = make([]float64, payoff.Size)
		for m := range am[a] {
			am[a][m] = float64(a*100 + m)
			mc[a][m] = float64(1000 + a*10 - m)
		}
	}
	table, err := payoff.New(am, mc)
	if err != nil {
		t.Fatal(err)
	}
	return table
}

func history(pairs ...[2]int) []models.RoundRecord {
	out := make([]models.RoundRecord, len(pairs))
	for i, p := range pairs {
		out[i] = models.RoundRecord{Round: i + 1, AMInvestment: p[0], MCInvestment: p[1]}
	}
	return out
}

func TestStrategyPrompt(t *testing.T) {
	for _, s := range models.Strategies() {
		for _, p := range []models.Party{models.PartyAM, models.PartyMC} {
			got, err := StrategyPrompt(s, p)
			if err != nil {
				t.Fatalf("StrategyPrompt(%s, %s) error = %v", s, p, err)
			}
			if !strings.Contains(got, p.CompanyName()) {
				t.Errorf("StrategyPrompt(%s, %s) missing company name", s, p)
			}
			if strings.Contains(got, "%!") {
				t.Errorf("StrategyPrompt(%s, %s) has a formatting error", s, p)
			}
		}
	}

	if _, err := StrategyPrompt("bogus", models.PartyAM); !errors.Is(err, &models.Error{Kind: models.KindConfiguration}) {
		t.Errorf("unknown strategy error = %v", err)
	}
}

func TestDecisionPrompt_InformationMode(t *testing.T) {
	table := testTable(t)
	req := Request{Party: models.PartyAM, Round: 1, TotalRounds: 10, Mode: models.ModeAsymmetric}

	got := DecisionPrompt(req, table)
	if !strings.Contains(got, "AM payoffs (sample)") || strings.Contains(got, "MC payoffs (sample)") {
		t.Error("asymmetric prompt must show only the party's own payoffs")
	}
	if !strings.Contains(got, "no history yet") {
		t.Error("round 1 prompt should say there is no history")
	}

	req.Mode = models.ModeSymmetric
	got = DecisionPrompt(req, table)
	if !strings.Contains(got, "AM payoffs (sample)") || !strings.Contains(got, "MC payoffs (sample)") {
		t.Error("symmetric prompt must show both payoff samples")
	}
}

func TestDecisionPrompt_PartyPerspective(t *testing.T) {
	req := Request{
		Party:             models.PartyMC,
		Round:             2,
		TotalRounds:       3,
		History:           []models.RoundRecord{{Round: 1, AMInvestment: 20, MCInvestment: 4, AMPayoff: 10, MCPayoff: 50}},
		MyCumulative:      50,
		PartnerCumulative: 10,
	}
	got := DecisionPrompt(req, testTable(t))

	if !strings.Contains(got, "Round 1: You invested 4, Partner invested 20 -> You earned $50.00, Partner earned $10.00") {
		t.Errorf("history not written from MC's perspective:\n%s", got)
	}
	if !strings.Contains(got, "You are ahead by $40.00") {
		t.Error("missing lead line")
	}
	if !strings.Contains(got, "FINAL DECISION: [number] engineers") {
		t.Error("missing decision marker instruction")
	}
}

func TestReasonerProvider_Decide(t *testing.T) {
	mock := llm.NewMockClient().WithReply("4. DECISION: go high\nFINAL DECISION: 19 engineers")
	p := NewReasonerProvider(mock, testTable(t), nil)

	d, err := p.Decide(context.Background(), Request{
		Party: models.PartyAM, Strategy: models.StrategyCooperative, Round: 1, TotalRounds: 5,
	})
	if err != nil {
		t.Fatalf("Decide() error = %v", err)
	}
	if d.Investment != 19 || d.Method != MethodMarker {
		t.Errorf("Decide() = %+v", d)
	}
	if len(d.Steps) != 1 || d.Steps[0].Step != "Decision" {
		t.Errorf("Steps = %+v", d.Steps)
	}

	call := mock.Calls[0]
	if call.Temperature != decisionTemperature || call.MaxTokens != decisionMaxTokens {
		t.Errorf("prompt settings = %v/%d", call.Temperature, call.MaxTokens)
	}
	if !strings.Contains(call.System, models.PartyAM.CompanyName()) {
		t.Error("system prompt should carry the strategy persona")
	}
}

func TestReasonerProvider_Errors(t *testing.T) {
	ctx := context.Background()
	req := Request{Party: models.PartyMC, Strategy: models.StrategyNeutral, Round: 1, TotalRounds: 1}

	boom := errors.New("backend down")
	p := NewReasonerProvider(llm.NewMockClient().WithError(boom), testTable(t), nil)
	if _, err := p.Decide(ctx, req); !errors.Is(err, boom) {
		t.Errorf("Decide() error = %v, want wrapped backend error", err)
	}

	p = NewReasonerProvider(llm.NewMockClient().WithReply("  "), testTable(t), nil)
	if _, err := p.Decide(ctx, req); !errors.Is(err, ErrEmptyReply) {
		t.Errorf("Decide() error = %v, want ErrEmptyReply", err)
	}
}

func TestReasonerProvider_Chat(t *testing.T) {
	mock := llm.NewMockClient().WithReply(" We remain committed. ")
	p := NewReasonerProvider(mock, testTable(t), nil)

	got, err := p.Chat(context.Background(), ChatRequest{Party: models.PartyMC, Message: "why 4?"})
	if err != nil {
		t.Fatal(err)
	}
	if got != "We remain committed." {
		t.Errorf("Chat() = %q", got)
	}
	if mock.Calls[0].MaxTokens != chatMaxTokens || !strings.Contains(mock.Calls[0].User, "why 4?") {
		t.Errorf("unexpected chat prompt: %+v", mock.Calls[0])
	}
}

func TestScripted_TitForTat(t *testing.T) {
	s := NewScripted(testTable(t))
	tests := []struct {
		name    string
		partner int
		want    int
	}{
		{"mirror", 17, 17},
		{"floor", 3, 8},
		{"floor edge", 5, 8},
		{"above floor", 6, 6},
		{"cap", 24, 20},
		{"cap edge", 23, 20},
		{"below cap", 22, 22},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := s.Decide(context.Background(), Request{
				Party:    models.PartyAM,
				Strategy: models.StrategyTitForTat,
				History:  history([2]int{15, tt.partner}),
			})
			if err != nil {
				t.Fatal(err)
			}
			if d.Investment != tt.want {
				t.Errorf("Investment = %d, want %d", d.Investment, tt.want)
			}
		})
	}

	d, _ := s.Decide(context.Background(), Request{Party: models.PartyMC, Strategy: models.StrategyTitForTat})
	if d.Investment != 15 {
		t.Errorf("opening = %d, want 15", d.Investment)
	}
}

func TestScripted_Neutral(t *testing.T) {
	s := NewScripted(testTable(t))
	ctx := context.Background()

	am, err := s.Decide(ctx, Request{Party: models.PartyAM, Strategy: models.StrategyNeutral, History: history([2]int{10, 10})})
	if err != nil {
		t.Fatal(err)
	}
	if am.Investment != 25 {
		t.Errorf("AM best response = %d, want 25", am.Investment)
	}

	mc, err := s.Decide(ctx, Request{Party: models.PartyMC, Strategy: models.StrategyNeutral, History: history([2]int{10, 10})})
	if err != nil {
		t.Fatal(err)
	}
	if mc.Investment != 0 {
		t.Errorf("MC best response = %d, want 0", mc.Investment)
	}
}

func TestScripted_Cooperative(t *testing.T) {
	s := NewScripted(testTable(t))
	ctx := context.Background()
	req := Request{Party: models.PartyAM, Strategy: models.StrategyCooperative}

	d, _ := s.Decide(ctx, req)
	if d.Investment != 16 {
		t.Errorf("opening = %d, want 16", d.Investment)
	}

	req.History = history([2]int{16, 15}, [2]int{16, 17})
	d, _ = s.Decide(ctx, req)
	if d.Investment != 17 {
		t.Errorf("after reciprocation = %d, want 17", d.Investment)
	}

	req.History = history([2]int{16, 5}, [2]int{16, 4}, [2]int{16, 6})
	d, _ = s.Decide(ctx, req)
	if d.Investment != 10 {
		t.Errorf("after repeated defection = %d, want 10", d.Investment)
	}
}

func TestScripted_Competitive(t *testing.T) {
	s := NewScripted(testTable(t))
	ctx := context.Background()
	req := Request{Party: models.PartyMC, Strategy: models.StrategyCompetitive}

	d, _ := s.Decide(ctx, req)
	if d.Investment != 12 {
		t.Errorf("opening = %d, want 12", d.Investment)
	}

	req.History = history([2]int{18, 12})
	d, _ = s.Decide(ctx, req)
	if d.Investment != 10 {
		t.Errorf("free-ride = %d, want 10", d.Investment)
	}

	req.History = history([2]int{18, 10}, [2]int{9, 10})
	d, _ = s.Decide(ctx, req)
	if d.Investment != 9 {
		t.Errorf("match after cut = %d, want 9", d.Investment)
	}
}

func TestScripted_Adaptive(t *testing.T) {
	s := NewScripted(testTable(t))
	ctx := context.Background()
	req := Request{Party: models.PartyAM, Strategy: models.StrategyAdaptive}

	for i, want := range adaptiveOpenings {
		d, _ := s.Decide(ctx, req)
		if d.Investment != want {
			t.Errorf("exploration move %d = %d, want %d", i+1, d.Investment, want)
		}
		req.History = append(req.History, models.RoundRecord{Round: i + 1, AMInvestment: d.Investment, MCInvestment: 4})
	}

	d, _ := s.Decide(ctx, req)
	if d.Investment != 9 {
		t.Errorf("against an exploiter = %d, want 9", d.Investment)
	}
}

func TestScripted_Deterministic(t *testing.T) {
	s := NewScripted(testTable(t))
	req := Request{Party: models.PartyMC, Strategy: models.StrategyAdaptive, History: history([2]int{12, 14}, [2]int{16, 12}, [2]int{14, 16})}

	first, _ := s.Decide(context.Background(), req)
	for i := 0; i < 5; i++ {
		again, _ := s.Decide(context.Background(), req)
		if again.Investment != first.Investment || again.Justification != first.Justification {
			t.Fatalf("decision changed between identical requests: %+v vs %+v", first, again)
		}
	}
}

func TestScripted_Chat(t *testing.T) {
	s := NewScripted(testTable(t))
	got, err := s.Chat(context.Background(), ChatRequest{
		Party: models.PartyMC, Strategy: models.StrategyCompetitive,
		History: history([2]int{18, 9}), MyCumulative: 12.5, PartnerCumulative: 3,
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Motherboard Chips (MC)", "competitive", "invested 9 engineers against our partner's 18", "$12.50"} {
		if !strings.Contains(got, want) {
			t.Errorf("Chat() = %q, missing %q", got, want)
		}
	}
}

func TestFixed(t *testing.T) {
	f := Fixed{models.PartyAM: 10}
	d, err := f.Decide(context.Background(), Request{Party: models.PartyAM})
	if err != nil || d.Investment != 10 {
		t.Errorf("Decide(AM) = (%+v, %v)", d, err)
	}
	if _, err := f.Decide(context.Background(), Request{Party: models.PartyMC}); err == nil {
		t.Error("expected error for missing party")
	}
}
