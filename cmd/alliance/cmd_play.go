package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nvandessel/alliance/internal/models"
	"github.com/nvandessel/alliance/internal/session"
)

func newPlayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play a full simulation in the terminal",
		Long: `Play every round of one simulation locally and print the results.

Flags override the simulation section of the config file.

Examples:
  alliance play
  alliance play --rounds 20 --am tit-for-tat --mc adaptive
  alliance play --mode symmetric --out run.json
  alliance play --json | jq .summary`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			sim := cfg.Simulation
			if cmd.Flags().Changed("rounds") {
				sim.NumRounds, _ = cmd.Flags().GetInt("rounds")
			}
			if cmd.Flags().Changed("mode") {
				mode, _ := cmd.Flags().GetString("mode")
				sim.InformationMode = models.InformationMode(strings.ToLower(mode))
			}
			if cmd.Flags().Changed("am") {
				s, _ := cmd.Flags().GetString("am")
				sim.AMStrategy = models.Strategy(strings.ToLower(s))
			}
			if cmd.Flags().Changed("mc") {
				s, _ := cmd.Flags().GetString("mc")
				sim.MCStrategy = models.Strategy(strings.ToLower(s))
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			a, err := newApp(ctx, cfg, true)
			if err != nil {
				return err
			}
			defer a.Close()

			started, err := a.svc.Start(sim)
			if err != nil {
				return err
			}

			jsonOut, _ := cmd.Flags().GetBool("json")
			out := cmd.OutOrStdout()
			if !jsonOut {
				fmt.Fprintf(out, "Simulation %s: %d rounds, %s, AM %s vs MC %s (%s)\n\n",
					started.SimulationID, sim.NumRounds, sim.InformationMode,
					sim.AMStrategy, sim.MCStrategy, a.providerName)
			}

			for {
				res, err := a.svc.Round(ctx, started.SimulationID)
				if err != nil {
					return fmt.Errorf("round failed: %w", err)
				}
				if !jsonOut {
					printRound(cmd, res)
				}
				if res.Status == models.StatusComplete {
					break
				}
			}

			exp, err := a.svc.Export(started.SimulationID)
			if err != nil {
				return err
			}

			if path, _ := cmd.Flags().GetString("out"); path != "" {
				if err := session.WriteExport(path, exp); err != nil {
					return fmt.Errorf("failed to write export: %w", err)
				}
			}

			if jsonOut {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(exp)
			}
			printSummary(cmd, exp.Summary)
			return nil
		},
	}

	cmd.Flags().Int("rounds", 0, "Number of rounds (1-50, default from config)")
	cmd.Flags().String("mode", "", "Information mode: asymmetric or symmetric")
	cmd.Flags().String("am", "", "AM strategy: cooperative, competitive, tit-for-tat, adaptive, neutral")
	cmd.Flags().String("mc", "", "MC strategy: cooperative, competitive, tit-for-tat, adaptive, neutral")
	cmd.Flags().String("out", "", "Also write the export to this JSON file")

	return cmd
}

func printRound(cmd *cobra.Command, res session.RoundResult) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Round %2d  AM %2d  MC %2d  payoffs %7.2f / %7.2f  welfare %7.2f  totals %8.2f / %8.2f\n",
		res.Round,
		res.AMDecision.Investment, res.MCDecision.Investment,
		res.Outcomes.AMPayoff, res.Outcomes.MCPayoff, res.Outcomes.TotalWelfare,
		res.Outcomes.AMCumulative, res.Outcomes.MCCumulative,
	)
}

func printSummary(cmd *cobra.Command, s session.Summary) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Summary:")
	fmt.Fprintf(out, "  rounds played:        %d\n", s.TotalRounds)
	fmt.Fprintf(out, "  AM total payoff:      %.2f\n", s.AMTotalPayoff)
	fmt.Fprintf(out, "  MC total payoff:      %.2f\n", s.MCTotalPayoff)
	fmt.Fprintf(out, "  total welfare:        %.2f\n", s.TotalWelfare)
	fmt.Fprintf(out, "  avg welfare / round:  %.2f\n", s.AvgWelfarePerRound)
	fmt.Fprintf(out, "  avg investment:       AM %.2f  MC %.2f\n", s.AvgAMInvestment, s.AvgMCInvestment)
	fmt.Fprintf(out, "  cooperation index:    %.3f\n", s.CooperationIndex)
}
