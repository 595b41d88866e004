package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pthm-cable/physarum/baseline"
	"github.com/pthm-cable/physarum/config"
	"github.com/pthm-cable/physarum/game"
	"github.com/pthm-cable/physarum/telemetry"
)

func newBaselineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "baseline",
		Short: "Compare the trail network against the shortest closed tour",
		Long: fmt.Sprintf(`Place attractors as the run command would, compute the exact shortest
closed tour over them by brute force (at most %d attractors), then
optionally run the simulation and report how much trail it grew.`, baseline.MaxPoints),
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			seed, _ := cmd.Flags().GetUint64("seed")
			ticks, _ := cmd.Flags().GetInt("ticks")

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			sim, err := game.Build(cfg, game.Options{Seed: seed})
			if err != nil {
				return err
			}
			defer sim.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			points := sim.Attractors().Positions()
			tour, err := baseline.ShortestTour(ctx, points)
			if err != nil {
				return fmt.Errorf("computing tour over %d attractors: %w", len(points), err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Attractors: %d (%d permutations)\n", len(points), tour.Permutations)
			fmt.Fprintf(out, "Shortest tour: %.2f cells\n", tour.Length)
			fmt.Fprint(out, "Order:")
			for _, i := range tour.Order {
				fmt.Fprintf(out, " (%d,%d)", points[i].X, points[i].Y)
			}
			fmt.Fprintln(out)

			if ticks <= 0 {
				return nil
			}
			if err := sim.Run(ctx, ticks); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			printComparison(cmd, tour, sim.LastStats())
			return nil
		},
	}
	cmd.Flags().Uint64("seed", 1, "RNG seed for attractor and agent placement")
	cmd.Flags().Int("ticks", 0, "Ticks to simulate before comparing (0 = tour only)")
	return cmd
}

// printComparison reports trail coverage relative to the tour length. The
// ratio is trail cells per unit of tour; values near the trail width mean
// the network is about as economical as the tour.
func printComparison(cmd *cobra.Command, tour baseline.Tour, stats telemetry.WindowStats) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "After %d ticks:\n", stats.WindowEndTick)
	fmt.Fprintf(out, "  trail cells:        %d\n", stats.TrailCells)
	fmt.Fprintf(out, "  components:         %d\n", stats.Components)
	fmt.Fprintf(out, "  pairs connected:    %.3f\n", stats.PairsConnected)
	if tour.Length > 0 {
		fmt.Fprintf(out, "  trail / tour ratio: %.3f\n", float64(stats.TrailCells)/tour.Length)
	}
}
