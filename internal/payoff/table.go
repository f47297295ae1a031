// Package payoff holds the immutable AM/MC payoff table and resolves rounds against it.
//
// Both grids are indexed by the same ordered pair: row = AM investment, column = MC
// investment. MC's grid is NOT indexed by MC's own investment first. Loaders must
// produce grids in that orientation.
package payoff

import (
	"fmt"
	"math"
	"strings"

	"github.com/nvandessel/alliance/internal/models"
	"github.com/shopspring/decimal"
)

// Size is the number of investment levels per axis (0..25).
const Size = models.MaxInvestment - models.MinInvestment + 1

// SampleLevels are the investments shown by Sample.
var SampleLevels = []int{0, 5, 10, 15, 20, 25}

// Outcome is the resolved result of one round, rounded to 2 decimals.
type Outcome struct {
	AMPayoff     float64 `json:"am_payoff"`
	MCPayoff     float64 `json:"mc_payoff"`
	TotalWelfare float64 `json:"total_welfare"`
}

// Table is a fully populated 26x26 grid per party. It is safe for concurrent use
// because it is never mutated after New returns.
type Table struct {
	am [Size][Size]float64
	mc [Size][Size]float64
}

// New validates and copies both grids. Any wrong dimension or non-finite cell is an
// integrity error; the table is never partially usable.
func New(am, mc [][]float64) (*Table, error) {
	t := &Table{}
	if err := fill(&t.am, am, models.PartyAM); err != nil {
		return nil, err
	}
	if err := fill(&t.mc, mc, models.PartyMC); err != nil {
		return nil, err
	}
	return t, nil
}

func fill(dst *[Size][Size]float64, src [][]float64, p models.Party) error {
	if len(src) != Size {
		return models.NewIntegrityError(fmt.Sprintf("%s matrix should have %d rows, got %d", p.Label(), Size, len(src)))
	}
	for i, row := range src {
		if len(row) != Size {
			return models.NewIntegrityError(fmt.Sprintf("%s matrix row %d should have %d columns, got %d", p.Label(), i, Size, len(row)))
		}
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return models.NewIntegrityError(fmt.Sprintf("%s matrix cell [%d][%d] is not a finite number", p.Label(), i, j))
			}
			dst[i][j] = v
		}
	}
	return nil
}

func checkRange(am, mc int) error {
	if am < models.MinInvestment || am > models.MaxInvestment || mc < models.MinInvestment || mc > models.MaxInvestment {
		return models.NewValidationError("investment", fmt.Sprintf("investments must be %d-%d, got AM=%d, MC=%d",
			models.MinInvestment, models.MaxInvestment, am, mc))
	}
	return nil
}

// Payoff returns the exact tabulated payoff of party p for the pair (am, mc).
func (t *Table) Payoff(p models.Party, am, mc int) (float64, error) {
	if err := checkRange(am, mc); err != nil {
		return 0, err
	}
	switch p {
	case models.PartyAM:
		return t.am[am][mc], nil
	case models.PartyMC:
		return t.mc[am][mc], nil
	}
	return 0, models.NewValidationError("party", fmt.Sprintf("unknown party %q", p))
}

// Resolve computes both payoffs for a round. Welfare is the sum of the two rounded
// payoffs, so the displayed figures always add up.
func (t *Table) Resolve(am, mc int) (Outcome, error) {
	if err := checkRange(am, mc); err != nil {
		return Outcome{}, err
	}
	amPay := Round2(t.am[am][mc])
	mcPay := Round2(t.mc[am][mc])
	return Outcome{
		AMPayoff:     amPay,
		MCPayoff:     mcPay,
		TotalWelfare: amPay + mcPay,
	}, nil
}

// Round2 rounds v half away from zero to 2 decimal places.
func Round2(v float64) float64 {
	return RoundTo(v, 2)
}

// RoundTo rounds v half away from zero to places decimal places.
func RoundTo(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

// Grid returns a copy of party p's full grid.
func (t *Table) Grid(p models.Party) [][]float64 {
	src := &t.am
	if p == models.PartyMC {
		src = &t.mc
	}
	out := make([][]float64, Size)
	for i := range src {
		out[i] = append([]float64(nil), src[i][:]...)
	}
	return out
}

// Sample renders party p's payoffs at SampleLevels x SampleLevels. It bounds prompt
// size; it is not the full table.
func (t *Table) Sample(p models.Party) string {
	src := &t.am
	if p == models.PartyMC {
		src = &t.mc
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s payoffs (sample):\n", p.Label())
	b.WriteString("        Partner:")
	for _, lvl := range SampleLevels {
		fmt.Fprintf(&b, " %6d", lvl)
	}
	b.WriteString("\n")
	for _, mine := range SampleLevels {
		fmt.Fprintf(&b, "You %2d:         ", mine)
		for _, partner := range SampleLevels {
			fmt.Fprintf(&b, " %6.1f", src[mine][partner])
		}
		b.WriteString("\n")
	}
	b.WriteString("\n(Showing sample values - full 26x26 matrix available)\n")
	return b.String()
}
