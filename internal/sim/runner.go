package sim

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"parking-sim/internal/geo"
	"parking-sim/internal/logging"
	"parking-sim/internal/parking"
	"parking-sim/internal/render"
	"parking-sim/internal/scenario"
)

const (
	DefaultTickInterval = time.Second / 60
	DefaultMaxDelta     = 0.1

	// stepBatch bounds how many ticks Step runs per hold of the lock.
	stepBatch = 600
)

// Update is what subscribers receive after every tick or state change.
type Update struct {
	Stats Stats        `json:"stats"`
	Frame render.Frame `json:"frame"`
}

type RunnerConfig struct {
	TickInterval time.Duration
	// MaxDelta caps the seconds simulated by one tick, so a stalled host
	// does not teleport vehicles.
	MaxDelta float64
	Tracer   trace.Tracer
	Meter    metric.Meter
}

// Runner is the host loop. It owns the only goroutine that ticks and
// serializes every other access to the simulation.
type Runner struct {
	mu      sync.Mutex
	sim     *Simulation
	catalog *scenario.Catalog
	scene   *render.Scene

	sessionID string
	interval  time.Duration
	maxDelta  float64
	batch     int
	now       func() time.Time

	tracer       trace.Tracer
	tickDuration metric.Float64Histogram
	ticks        metric.Int64Counter

	subMu       sync.RWMutex
	subscribers map[int]func(Update)
	nextSub     int
}

func NewRunner(s *Simulation, catalog *scenario.Catalog, cfg RunnerConfig) (*Runner, error) {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.MaxDelta <= 0 {
		cfg.MaxDelta = DefaultMaxDelta
	}
	if cfg.Tracer == nil {
		cfg.Tracer = tracenoop.NewTracerProvider().Tracer("parking-sim")
	}
	if cfg.Meter == nil {
		cfg.Meter = noop.NewMeterProvider().Meter("parking-sim")
	}

	r := &Runner{
		sim:         s,
		catalog:     catalog,
		scene:       render.NewScene(),
		sessionID:   uuid.New().String(),
		interval:    cfg.TickInterval,
		maxDelta:    cfg.MaxDelta,
		batch:       stepBatch,
		now:         time.Now,
		tracer:      cfg.Tracer,
		subscribers: make(map[int]func(Update)),
	}

	var err error
	r.tickDuration, err = cfg.Meter.Float64Histogram("simulation_tick_duration_seconds",
		metric.WithDescription("Wall time spent advancing one simulation tick"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	r.ticks, err = cfg.Meter.Int64Counter("simulation_ticks_total",
		metric.WithDescription("Total number of simulation ticks"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, err
	}

	_, err = cfg.Meter.Int64ObservableGauge("simulation_vehicles",
		metric.WithDescription("Current number of vehicles by state"),
		metric.WithUnit("1"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			snap := r.Snapshot()
			o.Observe(int64(snap.Parked), metric.WithAttributes(attribute.String("state", string(parking.StateParked))))
			o.Observe(int64(snap.Moving), metric.WithAttributes(attribute.String("state", string(parking.StateMoving))))
			o.Observe(int64(snap.Waiting), metric.WithAttributes(attribute.String("state", string(parking.StateWaiting))))
			return nil
		}))
	if err != nil {
		return nil, err
	}

	if s.Lot() != nil {
		r.scene.Sync(s.Snapshot().Tick, s.Lot(), s.Vehicles())
	}
	return r, nil
}

func (r *Runner) SessionID() string {
	return r.sessionID
}

// logContext tags records logged under ctx with this runner's session.
func (r *Runner) logContext(ctx context.Context) context.Context {
	return logging.With(ctx, "session_id", r.sessionID)
}

// Run ticks until ctx is cancelled. Wall-clock deltas are clamped to
// MaxDelta; nothing changes while the simulation is paused.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	ctx = r.logContext(ctx)
	logging.Info(ctx, "simulation loop started", "tick_interval", r.interval.String())

	last := r.now()
	for {
		select {
		case <-ctx.Done():
			logging.Info(ctx, "simulation loop stopped")
			return nil
		case <-ticker.C:
			now := r.now()
			dt := min(now.Sub(last).Seconds(), r.maxDelta)
			last = now
			r.advance(ctx, dt)
		}
	}
}

// advance runs one host-loop tick, skipping it when paused.
func (r *Runner) advance(ctx context.Context, dt float64) {
	r.mu.Lock()
	if !r.sim.Playing() {
		r.mu.Unlock()
		return
	}
	update, err := r.tickLocked(ctx, dt)
	r.mu.Unlock()

	if err != nil {
		logging.Error(ctx, "tick failed", "error", err)
		return
	}
	r.publish(update)
}

func (r *Runner) tickLocked(ctx context.Context, dt float64) (Update, error) {
	start := time.Now()
	snap, err := r.sim.Tick(ctx, dt)
	if err != nil {
		return Update{}, err
	}
	r.tickDuration.Record(ctx, time.Since(start).Seconds())
	r.ticks.Add(ctx, 1)
	return r.updateLocked(snap), nil
}

func (r *Runner) updateLocked(snap Snapshot) Update {
	if r.sim.Lot() != nil {
		r.scene.Sync(snap.Tick, r.sim.Lot(), r.sim.Vehicles())
	}
	return Update{
		Stats: snap.Stats(r.sim.Scenario().ID, r.sim.Playing()),
		Frame: r.scene.Frame(),
	}
}

// Step advances n ticks of dt seconds regardless of the play flag. The lock is
// released and an update published after every batch; a cancelled ctx stops
// the run at the next batch boundary.
func (r *Runner) Step(ctx context.Context, n int, dt float64) (Stats, error) {
	ctx, span := r.tracer.Start(r.logContext(ctx), "simulation.step",
		trace.WithAttributes(attribute.Int("step.count", n), attribute.Float64("step.dt", dt)))
	defer span.End()

	fail := func(err error) error {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if n <= 0 {
		r.mu.Lock()
		update := r.updateLocked(r.sim.Snapshot())
		r.mu.Unlock()
		r.publish(update)
		return update.Stats, nil
	}

	var update Update
	for done := 0; done < n; {
		if done > 0 {
			if err := ctx.Err(); err != nil {
				return update.Stats, fail(err)
			}
		}
		batch := min(r.batch, n-done)

		var err error
		r.mu.Lock()
		for i := 0; i < batch; i++ {
			if update, err = r.tickLocked(ctx, dt); err != nil {
				break
			}
		}
		r.mu.Unlock()
		if err != nil {
			return Stats{}, fail(err)
		}

		done += batch
		r.publish(update)
	}
	return update.Stats, nil
}

// SelectScenario loads the catalog scenario id. It reports false, keeping
// the prior scenario, when the id is unknown or the scenario is invalid.
func (r *Runner) SelectScenario(ctx context.Context, id string) bool {
	ctx, span := r.tracer.Start(r.logContext(ctx), "simulation.select_scenario",
		trace.WithAttributes(attribute.String("scenario.id", id)))
	defer span.End()

	sc, err := r.catalog.Get(id)
	if err == nil {
		r.mu.Lock()
		err = r.sim.Load(sc)
		var update Update
		if err == nil {
			update = r.updateLocked(r.sim.Snapshot())
		}
		r.mu.Unlock()
		if err == nil {
			r.publish(update)
		}
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logging.Warn(ctx, "scenario selection failed", "scenario_id", id, "error", err)
		return false
	}

	logging.Info(ctx, "scenario selected",
		"scenario_id", id,
		"total_spaces", sc.TotalSpaces(),
		"vehicles", len(sc.Vehicles),
	)
	return true
}

func (r *Runner) Scenarios() []scenario.Scenario {
	return r.catalog.All()
}

func (r *Runner) Play() Stats {
	return r.setPlaying(func(s *Simulation) { s.SetPlaying(true) })
}

func (r *Runner) Pause() Stats {
	return r.setPlaying(func(s *Simulation) { s.SetPlaying(false) })
}

func (r *Runner) Toggle() Stats {
	return r.setPlaying(func(s *Simulation) { s.TogglePlaying() })
}

func (r *Runner) setPlaying(apply func(*Simulation)) Stats {
	r.mu.Lock()
	apply(r.sim)
	update := r.updateLocked(r.sim.Snapshot())
	r.mu.Unlock()

	r.publish(update)
	return update.Stats
}

type SpawnRequest struct {
	Kind    parking.Kind `json:"kind"`
	X       float64      `json:"x"`
	Z       float64      `json:"z"`
	Heading float64      `json:"heading"`
	Color   string       `json:"color"`
}

// Spawn adds a vehicle and returns its id.
func (r *Runner) Spawn(ctx context.Context, req SpawnRequest) (int, error) {
	ctx, span := r.tracer.Start(r.logContext(ctx), "simulation.spawn",
		trace.WithAttributes(attribute.String("vehicle.kind", string(req.Kind))))
	defer span.End()

	r.mu.Lock()
	v, err := r.sim.Spawn(req.Kind, geo.V(req.X, req.Z), req.Heading, req.Color)
	var update Update
	if err == nil {
		update = r.updateLocked(r.sim.Snapshot())
	}
	r.mu.Unlock()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}
	span.SetAttributes(attribute.Int("vehicle.id", v.ID))
	logging.Info(ctx, "vehicle spawned", "vehicle_id", v.ID, "kind", string(v.Kind))
	r.publish(update)
	return v.ID, nil
}

func (r *Runner) Depart(ctx context.Context, id int) error {
	ctx, span := r.tracer.Start(r.logContext(ctx), "simulation.depart",
		trace.WithAttributes(attribute.Int("vehicle.id", id)))
	defer span.End()

	r.mu.Lock()
	err := r.sim.Depart(id)
	var update Update
	if err == nil {
		update = r.updateLocked(r.sim.Snapshot())
	}
	r.mu.Unlock()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	logging.Info(ctx, "vehicle departing", "vehicle_id", id)
	r.publish(update)
	return nil
}

func (r *Runner) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sim.Stats()
}

func (r *Runner) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sim.Snapshot()
}

func (r *Runner) Frame() render.Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.scene.Frame()
}

// Current is the latest stats and frame together.
func (r *Runner) Current() Update {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Update{Stats: r.sim.Stats(), Frame: r.scene.Frame()}
}

// Subscribe registers fn for every update. fn runs on the publishing
// goroutine and must not block. The returned func unsubscribes.
func (r *Runner) Subscribe(fn func(Update)) func() {
	r.subMu.Lock()
	id := r.nextSub
	r.nextSub++
	r.subscribers[id] = fn
	r.subMu.Unlock()

	return func() {
		r.subMu.Lock()
		delete(r.subscribers, id)
		r.subMu.Unlock()
	}
}

func (r *Runner) publish(update Update) {
	r.subMu.RLock()
	defer r.subMu.RUnlock()
	for _, fn := range r.subscribers {
		fn(update)
	}
}
