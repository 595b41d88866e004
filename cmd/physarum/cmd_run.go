package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pthm-cable/physarum/config"
	"github.com/pthm-cable/physarum/game"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the simulation headless",
		Long: `Run the simulation for a fixed number of ticks, or until interrupted
when --ticks is 0. Telemetry is written as CSV to --output-dir and heat-map
frames to --frames-dir when render.every is set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			seed, _ := cmd.Flags().GetUint64("seed")
			ticks, _ := cmd.Flags().GetInt("ticks")
			outputDir, _ := cmd.Flags().GetString("output-dir")
			framesDir, _ := cmd.Flags().GetString("frames-dir")
			logStats, _ := cmd.Flags().GetBool("log-stats")

			if err := config.Init(configPath); err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			cfg := config.Cfg()

			if seed == 0 {
				seed = uint64(time.Now().UnixNano())
			}

			sim, err := game.Build(cfg, game.Options{
				Seed:      seed,
				LogStats:  logStats,
				OutputDir: outputDir,
				FramesDir: framesDir,
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			start := time.Now()
			runErr := sim.Run(ctx, ticks)
			closeErr := sim.Close()

			elapsed := time.Since(start)
			final := sim.LastStats()
			slog.Info("run finished",
				"ticks", sim.Tick(),
				"elapsed", elapsed.Round(time.Millisecond).String(),
				"ticks_per_sec", float64(sim.Tick())/elapsed.Seconds(),
				"trail_cells", final.TrailCells,
				"pairs_connected", final.PairsConnected,
			)

			if errors.Is(runErr, context.Canceled) {
				runErr = nil
			}
			return errors.Join(runErr, closeErr)
		},
	}

	cmd.Flags().Uint64("seed", 0, "RNG seed (0 = time based)")
	cmd.Flags().Int("ticks", 1000, "Ticks to run (0 = until interrupted)")
	cmd.Flags().String("output-dir", "", "Directory for CSV telemetry and config snapshot")
	cmd.Flags().String("frames-dir", "", "Directory for PNG frames")
	cmd.Flags().Bool("log-stats", false, "Log window stats, perf and events")
	return cmd
}
