package decision

import (
	"errors"
	"strings"
	"testing"

	"github.com/nvandessel/alliance/internal/models"
)

func TestParseInvestment(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		want       int
		wantMethod ParseMethod
	}{
		{"marker", "Analysis...\nFINAL DECISION: 14 engineers", 14, MethodMarker},
		{"marker case and spacing", "final decision:30", 30, MethodMarker},
		{"marker beats earlier keyword", "I could invest 5 engineers.\nFINAL DECISION: 20 engineers", 20, MethodMarker},
		{"invest phrase", "This round I will invest 9 engineers.", 9, MethodKeyword},
		{"invest phrase before decision phrase", "Decision: 3, though I may invest 9 engineers", 9, MethodKeyword},
		{"decision phrase", "My decision: 7", 7, MethodKeyword},
		{"allocating phrase", "We are allocating 11 to the project", 11, MethodKeyword},
		{"allocate phrase", "Allocate 6 now", 6, MethodKeyword},
		{"tail scan picks first in-range number on last line", "Round 3 review\nI think 40 is too many\nsomething like 18 or 30", 18, MethodTail},
		{"tail scan skips out-of-range lines", "we settle on 22\nbudget 1000", 22, MethodTail},
		{"no number", "I am undecided.", NeutralInvestment, MethodDefault},
		{"number outside tail window", "7\n" + strings.Repeat("words\n", 11), NeutralInvestment, MethodDefault},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, method, err := ParseInvestment(tt.text)
			if err != nil {
				t.Fatalf("ParseInvestment() error = %v", err)
			}
			if got != tt.want || method != tt.wantMethod {
				t.Errorf("ParseInvestment() = (%d, %s), want (%d, %s)", got, method, tt.want, tt.wantMethod)
			}
		})
	}
}

func TestParseInvestment_Empty(t *testing.T) {
	for _, text := range []string{"", "   \n\t"} {
		if _, _, err := ParseInvestment(text); !errors.Is(err, ErrEmptyReply) {
			t.Errorf("ParseInvestment(%q) error = %v, want ErrEmptyReply", text, err)
		}
	}
}

func TestParseInvestment_OverflowClampsHigh(t *testing.T) {
	n, _, err := ParseInvestment("FINAL DECISION: 999999999999999999999999 engineers")
	if err != nil {
		t.Fatal(err)
	}
	if got := models.ClampInvestment(n); got != models.MaxInvestment {
		t.Errorf("clamped = %d, want %d", got, models.MaxInvestment)
	}
}

func TestParseSteps_Sections(t *testing.T) {
	text := "1. PATTERN ANALYSIS: partner steady\n" +
		"2. PAYOFF CALCULATIONS: If I invest 15 -> 300\n" +
		"3. STRATEGIC REASONING: cooperate\n" +
		"4. DECISION: 15 engineers\n" +
		"5. CONFIDENCE & CONTINGENCY: high\n" +
		"FINAL DECISION: 15 engineers"

	got := ParseSteps(text)
	want := []models.ReasoningStep{
		{Step: "Pattern Analysis", Content: "partner steady"},
		{Step: "Payoff Calculations", Content: "If I invest 15 -> 300"},
		{Step: "Strategic Reasoning", Content: "cooperate"},
		{Step: "Decision", Content: "15 engineers"},
		{Step: "Confidence", Content: "high"},
	}
	if len(got) != len(want) {
		t.Fatalf("ParseSteps() returned %d steps, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("step %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestParseSteps_Paragraphs(t *testing.T) {
	text := "The partner has kept investing at a steady level.\n\nShort\n\nMatching them keeps joint welfare high."
	got := ParseSteps(text)
	if len(got) != 2 {
		t.Fatalf("ParseSteps() = %+v, want 2 paragraphs", got)
	}
	if got[0].Step != "Reasoning 1" || got[1].Step != "Reasoning 2" {
		t.Errorf("unexpected titles: %q, %q", got[0].Step, got[1].Step)
	}
}

func TestParseSteps_SingleAnalysis(t *testing.T) {
	got := ParseSteps("Invest 10.")
	if len(got) != 1 || got[0].Step != "Analysis" || got[0].Content != "Invest 10." {
		t.Errorf("ParseSteps() = %+v", got)
	}
}

func TestParseSteps_Truncates(t *testing.T) {
	got := ParseSteps(strings.Repeat("x", 1000))
	if len(got) != 1 {
		t.Fatalf("got %d steps", len(got))
	}
	if len(got[0].Content) != maxStepLen+3 || !strings.HasSuffix(got[0].Content, "...") {
		t.Errorf("content length = %d", len(got[0].Content))
	}
}
