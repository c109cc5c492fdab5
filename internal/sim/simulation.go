// Package sim owns the simulation clock: the lot, its vehicles, spawning and
// the statistics snapshot recomputed after every tick.
package sim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/samber/lo"

	"parking-sim/internal/geo"
	"parking-sim/internal/logging"
	"parking-sim/internal/parking"
	"parking-sim/internal/scenario"
)

var (
	ErrNoScenario       = errors.New("no scenario loaded")
	ErrVehicleNotFound  = errors.New("vehicle not found")
	ErrNotParked        = errors.New("vehicle is not parked")
	ErrTooManyVehicles  = errors.New("vehicle limit reached")
	ErrInvalidTimeDelta = errors.New("invalid time delta")
)

const (
	DefaultMaxVehicles = 200

	// truckShare is the fraction of spawned vehicles that are trucks.
	truckShare = 0.25
)

var palette = []string{"red", "blue", "white", "black", "silver", "green", "yellow", "orange"}

// LotFactory builds the lot for a scenario layout.
type LotFactory func(layout parking.Layout) (parking.Lot, error)

type Option func(*Simulation)

// WithRand sets the source for departures and spawns.
func WithRand(rng parking.Rand) Option {
	return func(s *Simulation) {
		s.rng = rng
	}
}

func WithSeed(seed uint64) Option {
	return func(s *Simulation) {
		s.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

func WithLotFactory(factory LotFactory) Option {
	return func(s *Simulation) {
		s.newLot = factory
	}
}

// WithDepartureChance sets the per-tick departure chance used when a
// scenario does not set its own leave rate.
func WithDepartureChance(p float64) Option {
	return func(s *Simulation) {
		s.defaultDeparture = p
	}
}

func WithMaxVehicles(n int) Option {
	return func(s *Simulation) {
		s.maxVehicles = n
	}
}

type Simulation struct {
	rng              parking.Rand
	newLot           LotFactory
	defaultDeparture float64
	maxVehicles      int

	scenario  scenario.Scenario
	lot       parking.Lot
	vehicles  []*parking.Vehicle
	departure float64
	nextID    int
	playing   bool

	tick     uint64
	elapsed  float64
	spawned  int
	departed int
	snapshot Snapshot
}

func New(opts ...Option) *Simulation {
	s := &Simulation{
		newLot: func(layout parking.Layout) (parking.Lot, error) {
			return parking.NewParkingLot(layout), nil
		},
		defaultDeparture: parking.DepartureChance,
		maxVehicles:      DefaultMaxVehicles,
		playing:          true,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		seed := uint64(time.Now().UnixNano())
		s.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
	return s
}

// Load rebuilds the lot and the vehicles from sc. On error the current
// scenario stays active.
func (s *Simulation) Load(sc scenario.Scenario) error {
	if err := sc.Validate(); err != nil {
		return fmt.Errorf("load scenario: %w", err)
	}
	lot, err := s.newLot(sc.Layout)
	if err != nil {
		return fmt.Errorf("load scenario %q: build lot: %w", sc.ID, err)
	}

	if closer, ok := s.lot.(interface{ Close() }); ok {
		closer.Close()
	}

	s.scenario = sc
	s.lot = lot
	s.departure = lo.Ternary(sc.LeaveRate > 0, sc.LeaveRate, s.defaultDeparture)
	s.vehicles = make([]*parking.Vehicle, 0, len(sc.Vehicles))
	s.nextID = 0
	s.tick, s.elapsed = 0, 0
	s.spawned, s.departed = 0, 0

	for _, spec := range sc.Vehicles {
		s.add(spec.Kind, geo.V(spec.X, spec.Z), spec.Heading, spec.Color)
	}
	s.snapshot = s.computeSnapshot()
	return nil
}

func (s *Simulation) add(kind parking.Kind, position geo.Vec2, heading float64, color string) *parking.Vehicle {
	s.nextID++
	v := parking.NewVehicle(s.nextID, kind, color, position, heading)
	v.DepartureChance = s.departure
	s.vehicles = append(s.vehicles, v)
	return v
}

// Tick advances the simulation by dt seconds. It does not consult the play
// flag; the host loop decides whether to call it.
func (s *Simulation) Tick(ctx context.Context, dt float64) (Snapshot, error) {
	if s.lot == nil {
		return Snapshot{}, ErrNoScenario
	}
	if dt < 0 || math.IsNaN(dt) || math.IsInf(dt, 0) {
		return s.snapshot, fmt.Errorf("%w: %v", ErrInvalidTimeDelta, dt)
	}

	s.tick++
	s.elapsed += dt

	for _, v := range s.vehicles {
		v.Update(dt, s.lot, s.rng)
	}

	remaining := s.vehicles[:0]
	for _, v := range s.vehicles {
		if v.Exited {
			s.departed++
			logging.Debug(ctx, "vehicle exited", "vehicle_id", v.ID, "tick", s.tick)
			continue
		}
		remaining = append(remaining, v)
	}
	clear(s.vehicles[len(remaining):])
	s.vehicles = remaining

	s.spawn(ctx, dt)

	s.snapshot = s.computeSnapshot()
	return s.snapshot, nil
}

// spawn adds a vehicle at the entrance with probability SpawnRate*dt.
func (s *Simulation) spawn(ctx context.Context, dt float64) {
	if s.scenario.SpawnRate <= 0 || len(s.vehicles) >= s.maxVehicles {
		return
	}
	if s.rng.Float64() >= s.scenario.SpawnRate*dt {
		return
	}
	kind := lo.Ternary(s.rng.Float64() < truckShare, parking.KindTruck, parking.KindCar)
	color := palette[int(s.rng.Float64()*float64(len(palette)))%len(palette)]

	// The entrance sits on the -Z side, so heading 0 faces the lot.
	v := s.add(kind, s.lot.Entrance(), 0, color)
	s.spawned++
	logging.Debug(ctx, "vehicle spawned", "vehicle_id", v.ID, "kind", string(kind))
}

// Spawn adds a vehicle at position. The vehicle looks for a space on its
// next update.
func (s *Simulation) Spawn(kind parking.Kind, position geo.Vec2, heading float64, color string) (*parking.Vehicle, error) {
	if s.lot == nil {
		return nil, ErrNoScenario
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: kind %q", scenario.ErrInvalidVehicle, kind)
	}
	if !position.IsFinite() || !geo.Finite(heading) {
		return nil, fmt.Errorf("%w: pose (%v, %v, %v)", scenario.ErrInvalidVehicle, position.X, position.Z, heading)
	}
	if len(s.vehicles) >= s.maxVehicles {
		return nil, fmt.Errorf("%w: %d", ErrTooManyVehicles, s.maxVehicles)
	}
	if color == "" {
		color = palette[s.nextID%len(palette)]
	}
	v := s.add(kind, position, heading, color)
	s.spawned++
	s.snapshot = s.computeSnapshot()
	return v, nil
}

// Depart forces a parked vehicle to leave.
func (s *Simulation) Depart(id int) error {
	v, ok := lo.Find(s.vehicles, func(v *parking.Vehicle) bool { return v.ID == id })
	if !ok {
		return fmt.Errorf("%w: %d", ErrVehicleNotFound, id)
	}
	if !v.Depart(s.lot) {
		return fmt.Errorf("%w: %d is %s", ErrNotParked, id, v.State)
	}
	s.snapshot = s.computeSnapshot()
	return nil
}

func (s *Simulation) Playing() bool {
	return s.playing
}

func (s *Simulation) SetPlaying(playing bool) {
	s.playing = playing
}

func (s *Simulation) TogglePlaying() bool {
	s.playing = !s.playing
	return s.playing
}

func (s *Simulation) Lot() parking.Lot {
	return s.lot
}

// Vehicles returns the live vehicles in update order. The slice must not be
// modified.
func (s *Simulation) Vehicles() []*parking.Vehicle {
	return s.vehicles
}

func (s *Simulation) Scenario() scenario.Scenario {
	return s.scenario
}

func (s *Simulation) Snapshot() Snapshot {
	return s.snapshot
}

func (s *Simulation) Stats() Stats {
	return s.snapshot.Stats(s.scenario.ID, s.playing)
}
