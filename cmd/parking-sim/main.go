package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"parking-sim/internal/config"
	"parking-sim/internal/logging"
	"parking-sim/internal/scenario"
	"parking-sim/internal/server"
	"parking-sim/internal/shell"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	rootCmd := &cobra.Command{
		Use:           "parking-sim",
		Short:         "Parking lot simulation with an HTTP API and command shell",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return cfg.Validate()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfg.Scenario, "scenario", cfg.Scenario, "Scenario to load at startup")
	flags.StringVar(&cfg.ScenarioFile, "scenario-file", cfg.ScenarioFile, "YAML file with extra scenarios")
	flags.Uint64Var(&cfg.Seed, "seed", cfg.Seed, "Random seed (0 seeds from the clock)")
	flags.Float64Var(&cfg.TickRate, "tick-rate", cfg.TickRate, "Simulation ticks per second")
	flags.Float64Var(&cfg.DepartureChance, "departure-chance", cfg.DepartureChance, "Per-tick departure chance of a parked vehicle")
	flags.IntVar(&cfg.MaxVehicles, "max-vehicles", cfg.MaxVehicles, "Upper bound on live vehicles")

	rootCmd.AddCommand(shellCmd(cfg))
	rootCmd.AddCommand(serveCmd(cfg))
	rootCmd.AddCommand(bothCmd(cfg))
	rootCmd.AddCommand(runCmd(cfg))
	rootCmd.AddCommand(scenariosCmd(cfg))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func shellCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Run the simulation with an interactive command shell on stdin",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.close()

			ctx, cancel := context.WithCancel(ctx)
			defer cancel()

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return a.runner.Run(gctx) })

			sh := shell.NewInstrumentedShell(a.runner, cmd.InOrStdin(), cmd.OutOrStdout(), a.telemetry.Tracer())
			go runShell(gctx, cancel, sh)

			return g.Wait()
		},
	}
}

func serveCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the simulation loop and the HTTP API",
		RunE: func(*cobra.Command, []string) error {
			ctx, stop := signalContext()
			defer stop()

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.close()

			return serve(ctx, a, nil)
		},
	}
	cmd.Flags().StringVarP(&cfg.Port, "port", "p", cfg.Port, "Port for HTTP server")
	return cmd
}

func bothCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "both",
		Short: "Run the HTTP API and the command shell together",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.close()

			sh := shell.NewInstrumentedShell(a.runner, cmd.InOrStdin(), cmd.OutOrStdout(), a.telemetry.Tracer())
			return serve(ctx, a, sh)
		},
	}
	cmd.Flags().StringVarP(&cfg.Port, "port", "p", cfg.Port, "Port for HTTP server")
	return cmd
}

// serve runs the tick loop and the HTTP server until ctx is done, the server
// fails, or sh (when given) exits.
func serve(ctx context.Context, a *app, sh *shell.InstrumentedShell) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	srv := server.NewServer(a.cfg.Port, a.cfg.OTelServiceName, a.runner)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.runner.Run(gctx) })
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		logging.Info(context.Background(), "received shutdown signal")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	logging.Info(ctx, "server mode started", "address", srv.GetAddress())

	if sh != nil {
		// The shell blocks on stdin, so it stays outside the group.
		go runShell(gctx, cancel, sh)
	}

	return g.Wait()
}

func runShell(ctx context.Context, cancel context.CancelFunc, sh *shell.InstrumentedShell) {
	if err := sh.Run(ctx); err != nil {
		logging.Error(ctx, "shell stopped", "error", err)
	}
	logging.Info(ctx, "shell exited")
	cancel()
}

func runCmd(cfg *config.Config) *cobra.Command {
	var (
		duration time.Duration
		step     float64
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the simulation headless for a simulated duration and print the final stats",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if duration <= 0 || step <= 0 {
				return errors.New("duration and step must be positive")
			}

			ctx, stop := signalContext()
			defer stop()

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.close()

			ticks := int(duration.Seconds() / step)
			stats, err := a.runner.Step(ctx, ticks, step)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "Scenario\t%s\n", stats.Scenario)
			fmt.Fprintf(w, "Ticks\t%d\n", stats.Tick)
			fmt.Fprintf(w, "Elapsed\t%.1fs\n", stats.Elapsed)
			fmt.Fprintf(w, "Occupancy\t%d/%d (%.1f%%)\n", stats.OccupiedSpaces, stats.TotalSpaces, stats.OccupancyRate)
			fmt.Fprintf(w, "Parked\t%d\n", stats.Parked)
			fmt.Fprintf(w, "Moving\t%d\n", stats.Moving)
			fmt.Fprintf(w, "Waiting\t%d\n", stats.Waiting)
			fmt.Fprintf(w, "Average wait\t%.1fs\n", stats.AverageWaitTime)
			fmt.Fprintf(w, "Spawned\t%d\n", stats.Spawned)
			fmt.Fprintf(w, "Departed\t%d\n", stats.Departed)
			return w.Flush()
		},
	}

	cmd.Flags().DurationVarP(&duration, "duration", "d", time.Minute, "Simulated time to run")
	cmd.Flags().Float64Var(&step, "step", 1.0/60, "Seconds simulated per tick")
	return cmd
}

func scenariosCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "scenarios",
		Short: "List the available scenarios",
		RunE: func(cmd *cobra.Command, _ []string) error {
			catalog, err := scenario.LoadCatalog(cfg.ScenarioFile)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tName\tSpaces\tVehicles\tSpawn/s\tDescription")
			for _, sc := range catalog.All() {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%.2f\t%s\n",
					sc.ID, sc.Name, sc.TotalSpaces(), len(sc.Vehicles), sc.SpawnRate, sc.Description)
			}
			return w.Flush()
		},
	}
}
