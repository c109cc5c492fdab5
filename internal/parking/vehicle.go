package parking

import (
	"math"

	"parking-sim/internal/geo"
)

// Kind selects a vehicle's top speed and silhouette.
type Kind string

const (
	KindCar   Kind = "car"
	KindTruck Kind = "truck"
)

func (k Kind) Valid() bool {
	return k == KindCar || k == KindTruck
}

// MaxSpeed is the cruising speed in units per second.
func (k Kind) MaxSpeed() float64 {
	if k == KindTruck {
		return 5
	}
	return 8
}

// State is a vehicle's behavioral state.
type State string

const (
	StateMoving  State = "moving"
	StateWaiting State = "waiting"
	StateParked  State = "parked"
)

const (
	TurnRate        = math.Pi / 4 // radians per second
	Acceleration    = 2.0         // units per second squared
	MinSpeed        = 0.5         // speed floor near the target
	SlowRadius      = 5.0         // distance at which vehicles start to slow
	SnapDistance    = 1.0         // distance at which a vehicle arrives
	SteerCone       = math.Pi / 4 // off-heading angle beyond which vehicles slow
	RetryInterval   = 2.0         // seconds between space queries while waiting
	DepartureChance = 0.001       // per-tick chance a parked vehicle leaves
)

// Rand is the random source departures draw from.
type Rand interface {
	Float64() float64
}

// Vehicle is a single agent driving to, occupying and leaving spaces.
//
// Target is a soft claim: it only records which space the vehicle is heading
// to or parked in. The occupancy bit lives in the lot.
type Vehicle struct {
	ID       int
	Kind     Kind
	Color    string
	Position geo.Vec2
	Heading  float64
	Speed    float64
	State    State
	Target   *Space
	WaitTime float64

	// Departing vehicles drive to Destination (the lot exit) and are marked
	// Exited once they reach it.
	Departing   bool
	Destination geo.Vec2
	Exited      bool

	// DepartureChance overrides the package default when positive.
	DepartureChance float64
}

func NewVehicle(id int, kind Kind, color string, position geo.Vec2, heading float64) *Vehicle {
	if !kind.Valid() {
		kind = KindCar
	}
	return &Vehicle{
		ID:       id,
		Kind:     kind,
		Color:    color,
		Position: position,
		Heading:  geo.NormalizeAngle(heading),
		State:    StateMoving,
	}
}

// HasTarget reports whether the vehicle is heading somewhere.
func (v *Vehicle) HasTarget() bool {
	return v.Target != nil || v.Departing
}

// Update advances the vehicle by dt seconds.
func (v *Vehicle) Update(dt float64, lot Lot, rng Rand) {
	if v.Exited {
		return
	}

	switch v.State {
	case StateMoving:
		if !v.HasTarget() {
			v.acquire(lot)
			return
		}
		v.drive(dt, lot)
	case StateWaiting:
		v.WaitTime += dt
		if v.WaitTime > RetryInterval {
			v.WaitTime = 0
			v.acquire(lot)
		}
	case StateParked:
		if rng != nil && rng.Float64() < v.departureChance() {
			v.Depart(lot)
		}
	}
}

// Depart releases the held space and sends the vehicle to the lot exit. It
// is a no-op returning false when the vehicle holds no space, so a space is
// never released twice.
func (v *Vehicle) Depart(lot Lot) bool {
	if v.State != StateParked || v.Target == nil {
		return false
	}
	lot.SetOccupied(v.Target, false)
	v.Target = nil
	v.Departing = true
	v.Destination = lot.Exit()
	v.State = StateMoving
	v.Speed = 0
	return true
}

func (v *Vehicle) departureChance() float64 {
	if v.DepartureChance > 0 {
		return v.DepartureChance
	}
	return DepartureChance
}

// acquire asks the lot for the nearest free space, waiting when there is none.
func (v *Vehicle) acquire(lot Allocator) {
	if space := lot.FindAvailableSpace(v.Position); space != nil {
		v.Target = space
		v.State = StateMoving
		return
	}
	v.Target = nil
	v.State = StateWaiting
	v.Speed = 0
	v.WaitTime = 0
}

func (v *Vehicle) destination() geo.Vec2 {
	if v.Departing {
		return v.Destination
	}
	return v.Target.Position
}

func (v *Vehicle) drive(dt float64, lot Lot) {
	if !v.Departing && v.Target.IsOccupied() {
		// Someone else got there first.
		v.acquire(lot)
		return
	}

	dest := v.destination()
	if v.Position.Distance(dest) < SnapDistance {
		v.arrive(lot)
		return
	}

	v.steer(dest, dt)
	v.Speed = geo.Approach(v.Speed, v.cruiseSpeed(dest), Acceleration*dt)
	v.Position = v.Position.Add(geo.Forward(v.Heading).Scale(v.Speed * dt))

	if v.Position.Distance(dest) < SnapDistance {
		v.arrive(lot)
	}
}

// cruiseSpeed is the speed to approach this tick. Vehicles crawl near dest
// and whenever dest is off the steering cone or inside their turning circle.
func (v *Vehicle) cruiseSpeed(dest geo.Vec2) float64 {
	toDest := dest.Sub(v.Position)
	dist := toDest.Length()
	if dist < SlowRadius {
		return MinSpeed
	}
	off := math.Abs(geo.Forward(v.Heading).SignedAngle(toDest))
	if off > SteerCone {
		return MinSpeed
	}
	// The chord to a point off by angle off on a circle of radius r is 2r*sin(off).
	radius := v.Speed / TurnRate
	if dist < 2*radius*math.Sin(off)+SnapDistance {
		return MinSpeed
	}
	return v.Kind.MaxSpeed()
}

// steer turns the heading toward dest by at most TurnRate*dt, taking the
// shorter way round.
func (v *Vehicle) steer(dest geo.Vec2, dt float64) {
	toDest := dest.Sub(v.Position)
	if toDest.IsZero() {
		return
	}
	// Heading grows from +Z toward +X, the opposite sense of SignedAngle.
	diff := -geo.Forward(v.Heading).SignedAngle(toDest.Normalize())
	maxTurn := TurnRate * dt
	if math.Abs(diff) <= maxTurn {
		v.Heading = geo.NormalizeAngle(v.Heading + diff)
		return
	}
	v.Heading = geo.NormalizeAngle(v.Heading + math.Copysign(maxTurn, diff))
}

func (v *Vehicle) arrive(lot Lot) {
	v.Speed = 0
	if v.Departing {
		v.Position = v.Destination
		v.Exited = true
		return
	}

	space := v.Target
	v.Position = space.Position
	v.Heading = space.Rotation
	lot.SetOccupied(space, true)
	v.State = StateParked
	v.WaitTime = 0
}
