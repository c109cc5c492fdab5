package main

import (
	"context"
	"fmt"
	"time"

	"parking-sim/internal/config"
	"parking-sim/internal/logging"
	"parking-sim/internal/parking"
	"parking-sim/internal/scenario"
	"parking-sim/internal/sim"
	"parking-sim/internal/telemetry"
)

type app struct {
	cfg       *config.Config
	telemetry *telemetry.Provider
	runner    *sim.Runner
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: cfg.OTelServiceName,
		Environment: cfg.Environment,
		Endpoint:    cfg.OTelEndpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing telemetry: %w", err)
	}

	if err := logging.Setup(logging.Options{
		Service:     cfg.OTelServiceName,
		Environment: cfg.Environment,
		Level:       cfg.LogLevel,
	}); err != nil {
		shutdownTelemetry(tp)
		return nil, fmt.Errorf("initializing logging: %w", err)
	}

	catalog, err := scenario.LoadCatalog(cfg.ScenarioFile)
	if err != nil {
		shutdownTelemetry(tp)
		return nil, fmt.Errorf("loading scenarios: %w", err)
	}

	meter := tp.Meter()
	opts := []sim.Option{
		sim.WithDepartureChance(cfg.DepartureChance),
		sim.WithMaxVehicles(cfg.MaxVehicles),
		sim.WithLotFactory(func(layout parking.Layout) (parking.Lot, error) {
			lot, err := parking.NewInstrumentedParkingLot(layout, meter)
			if err != nil {
				return nil, err
			}
			return lot, nil
		}),
	}
	if cfg.Seed != 0 {
		opts = append(opts, sim.WithSeed(cfg.Seed))
	}

	runner, err := sim.NewRunner(sim.New(opts...), catalog, sim.RunnerConfig{
		TickInterval: cfg.TickInterval(),
		MaxDelta:     cfg.MaxDelta.Seconds(),
		Tracer:       tp.Tracer(),
		Meter:        meter,
	})
	if err != nil {
		shutdownTelemetry(tp)
		return nil, fmt.Errorf("creating runner: %w", err)
	}

	if !runner.SelectScenario(ctx, cfg.Scenario) {
		shutdownTelemetry(tp)
		return nil, fmt.Errorf("%w: %q", scenario.ErrUnknownScenario, cfg.Scenario)
	}

	logging.Info(logging.With(ctx, "session_id", runner.SessionID()), "simulation ready",
		"scenario", cfg.Scenario,
		"scenarios", catalog.Len(),
	)

	return &app{cfg: cfg, telemetry: tp, runner: runner}, nil
}

func (a *app) close() {
	shutdownTelemetry(a.telemetry)
}

func shutdownTelemetry(tp *telemetry.Provider) {
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := tp.Shutdown(shutdownCtx); err != nil {
		logging.Warn(shutdownCtx, "error shutting down telemetry", "error", err)
	}
}
