package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nvandessel/alliance/internal/models"
	"github.com/nvandessel/alliance/internal/payoff"
)

func newPayoffsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "payoffs",
		Short: "Show the payoff table in use",
		Long: `Show where the payoff table was loaded from and a sample of each
party's payoffs. Use --full for the complete 26x26 grid.

The table is read from payoff.path, PAYOFF_MATRIX_PATH, or the research
workbook in ., .. or ./data; the builtin table is used when none exists.
Rows are AM investment and columns MC investment for both parties.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			table, source, err := payoff.Open(cfg.Payoff.Path)
			if err != nil {
				return fmt.Errorf("failed to load payoff table: %w", err)
			}

			parties := []models.Party{models.PartyAM, models.PartyMC}
			if p, _ := cmd.Flags().GetString("party"); p != "" {
				party, err := models.ParseParty(p)
				if err != nil {
					return err
				}
				parties = []models.Party{party}
			}

			out := cmd.OutOrStdout()
			full, _ := cmd.Flags().GetBool("full")
			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				result := map[string]any{"source": source}
				for _, p := range parties {
					result[string(p)] = table.Grid(p)
				}
				return json.NewEncoder(out).Encode(result)
			}

			fmt.Fprintf(out, "Payoff table: %s\n", source)
			for _, p := range parties {
				fmt.Fprintln(out)
				if full {
					printGrid(cmd, p, table.Grid(p))
				} else {
					fmt.Fprint(out, table.Sample(p))
				}
			}
			return nil
		},
	}

	cmd.Flags().String("party", "", "Only show this party (am or mc)")
	cmd.Flags().Bool("full", false, "Print every investment level instead of a sample")

	return cmd
}

// printGrid prints rows as AM investment and columns as MC investment.
func printGrid(cmd *cobra.Command, p models.Party, grid [][]float64) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s payoffs:\n", p.Label())
	var b strings.Builder
	b.WriteString("     ")
	for j := range grid {
		fmt.Fprintf(&b, " %7d", j)
	}
	fmt.Fprintln(out, b.String())
	for i, row := range grid {
		b.Reset()
		fmt.Fprintf(&b, "%4d:", i)
		for _, v := range row {
			fmt.Fprintf(&b, " %7.2f", v)
		}
		fmt.Fprintln(out, b.String())
	}
}
