package parking

import (
	"math"
	"testing"

	"parking-sim/internal/geo"
)

const frame = 1.0 / 60

type fixedRand float64

func (r fixedRand) Float64() float64 {
	return float64(r)
}

// never and always pin the departure roll.
var (
	never  = fixedRand(0.999999)
	always = fixedRand(0)
)

func twoSpaceLot() *ParkingLot {
	return NewParkingLot(Layout{Rows: 1, Columns: 1, SpaceWidth: 2.5, SpaceLength: 5, AisleWidth: 6})
}

func driveUntil(t *testing.T, v *Vehicle, lot Lot, state State, maxTicks int) int {
	t.Helper()
	for i := 1; i <= maxTicks; i++ {
		v.Update(frame, lot, never)
		if math.IsNaN(v.Heading) || math.IsNaN(v.Position.X) || math.IsNaN(v.Position.Z) {
			t.Fatalf("Vehicle %d produced NaN state at tick %d", v.ID, i)
		}
		if v.State == state {
			return i
		}
	}
	t.Fatalf("Vehicle %d did not reach %s within %d ticks (state %s at %v)",
		v.ID, state, maxTicks, v.State, v.Position)
	return 0
}

func TestNewVehicle(t *testing.T) {
	vehicle := NewVehicle(7, KindTruck, "red", geo.V(1, 2), 3*math.Pi)

	if vehicle.ID != 7 || vehicle.Kind != KindTruck || vehicle.Color != "red" {
		t.Errorf("Unexpected identity %+v", vehicle)
	}
	if vehicle.State != StateMoving {
		t.Errorf("Expected initial state moving, got %s", vehicle.State)
	}
	if vehicle.HasTarget() {
		t.Error("Expected no initial target")
	}
	if !approxEqual(vehicle.Heading, math.Pi) {
		t.Errorf("Expected heading normalized to pi, got %f", vehicle.Heading)
	}

	if NewVehicle(1, Kind("bus"), "", geo.V(0, 0), 0).Kind != KindCar {
		t.Error("Expected unknown kinds to fall back to car")
	}
}

func TestKindMaxSpeed(t *testing.T) {
	if KindTruck.MaxSpeed() >= KindCar.MaxSpeed() {
		t.Errorf("Expected trucks to be slower than cars: %f vs %f", KindTruck.MaxSpeed(), KindCar.MaxSpeed())
	}
}

func TestVehicleAcquiresTarget(t *testing.T) {
	lot := twoSpaceLot()
	vehicle := NewVehicle(1, KindCar, "", geo.V(0, -40), 0)

	vehicle.Update(frame, lot, never)

	if vehicle.State != StateMoving {
		t.Errorf("Expected moving, got %s", vehicle.State)
	}
	if vehicle.Target != lot.Spaces()[0] {
		t.Errorf("Expected nearest space 1 as target, got %v", vehicle.Target)
	}
	if vehicle.Target.IsOccupied() {
		t.Error("A target is only a soft claim and must not mark the space")
	}
}

func TestVehicleSteersShorterWay(t *testing.T) {
	lot := NewParkingLot(Layout{Rows: 1, Columns: 8, SpaceWidth: 2.5, SpaceLength: 5, AisleWidth: 6})
	target := lot.Spaces()[8] // far side, column 1

	right := NewVehicle(1, KindCar, "", target.Position.Add(geo.V(-20, 0)), 0)
	right.Target = target
	right.Update(0.1, lot, never)
	if !approxEqual(right.Heading, TurnRate*0.1) {
		t.Errorf("Expected a bounded right turn of %f, got %f", TurnRate*0.1, right.Heading)
	}

	left := NewVehicle(2, KindCar, "", target.Position.Add(geo.V(20, 0)), 0)
	left.Target = target
	left.Update(0.1, lot, never)
	if !approxEqual(left.Heading, -TurnRate*0.1) {
		t.Errorf("Expected a bounded left turn of %f, got %f", -TurnRate*0.1, left.Heading)
	}
}

func TestVehicleSpeedIsBounded(t *testing.T) {
	lot := twoSpaceLot()
	vehicle := NewVehicle(1, KindTruck, "", geo.V(0, -200), 0)
	vehicle.Update(frame, lot, never)

	prev := vehicle.Speed
	for i := 0; i < 600; i++ {
		vehicle.Update(frame, lot, never)
		if vehicle.Speed-prev > Acceleration*frame+tolerance {
			t.Fatalf("Speed jumped from %f to %f in one tick", prev, vehicle.Speed)
		}
		if vehicle.Speed > KindTruck.MaxSpeed()+tolerance {
			t.Fatalf("Speed %f exceeds truck max %f", vehicle.Speed, KindTruck.MaxSpeed())
		}
		prev = vehicle.Speed
	}
	if !approxEqual(vehicle.Speed, KindTruck.MaxSpeed()) {
		t.Errorf("Expected truck to reach cruising speed, got %f", vehicle.Speed)
	}
}

func TestVehicleParksExactlyOnArrival(t *testing.T) {
	lot := twoSpaceLot()
	vehicle := NewVehicle(1, KindCar, "", geo.V(0, -40), 0)

	driveUntil(t, vehicle, lot, StateParked, 3000)

	space := lot.Spaces()[0]
	if vehicle.Position != space.Position {
		t.Errorf("Expected position %v, got %v", space.Position, vehicle.Position)
	}
	if vehicle.Heading != space.Rotation {
		t.Errorf("Expected heading %f, got %f", space.Rotation, vehicle.Heading)
	}
	if vehicle.Speed != 0 {
		t.Errorf("Expected speed 0, got %f", vehicle.Speed)
	}
	if !space.IsOccupied() {
		t.Error("Expected target space to be occupied")
	}
}

func TestVehicleOnTopOfTargetParks(t *testing.T) {
	lot := twoSpaceLot()
	space := lot.Spaces()[1]
	vehicle := NewVehicle(1, KindCar, "", space.Position, 0)
	vehicle.Target = space

	vehicle.Update(frame, lot, never)

	if vehicle.State != StateParked {
		t.Fatalf("Expected parked, got %s", vehicle.State)
	}
	if math.IsNaN(vehicle.Heading) || vehicle.Heading != space.Rotation {
		t.Errorf("Expected heading %f, got %f", space.Rotation, vehicle.Heading)
	}
}

func TestVehicleWaitsWhenLotIsFull(t *testing.T) {
	lot := twoSpaceLot()
	for _, space := range lot.Spaces() {
		lot.SetOccupied(space, true)
	}

	start := geo.V(3, -30)
	vehicle := NewVehicle(1, KindCar, "", start, 0)
	vehicle.Update(frame, lot, never)

	if vehicle.State != StateWaiting {
		t.Fatalf("Expected waiting, got %s", vehicle.State)
	}
	if vehicle.WaitTime != 0 {
		t.Errorf("Expected wait timer reset, got %f", vehicle.WaitTime)
	}

	for i := 0; i < 100; i++ {
		vehicle.Update(0.1, lot, never)
		if vehicle.Position != start {
			t.Fatalf("Waiting vehicle moved to %v", vehicle.Position)
		}
		if vehicle.State != StateWaiting {
			t.Fatalf("Expected to keep waiting, got %s", vehicle.State)
		}
		if vehicle.WaitTime > RetryInterval+0.1+tolerance {
			t.Fatalf("Wait timer %f never reset", vehicle.WaitTime)
		}
	}

	lot.SetOccupied(lot.Spaces()[1], false)
	for i := 0; i < 30 && vehicle.State == StateWaiting; i++ {
		vehicle.Update(0.1, lot, never)
	}
	if vehicle.State != StateMoving || vehicle.Target != lot.Spaces()[1] {
		t.Errorf("Expected to retry into the freed space, got %s targeting %v", vehicle.State, vehicle.Target)
	}
	if vehicle.WaitTime != 0 {
		t.Errorf("Expected timer reset after retry, got %f", vehicle.WaitTime)
	}
}

func TestVehicleDepartsOnce(t *testing.T) {
	lot := twoSpaceLot()
	vehicle := NewVehicle(1, KindCar, "", geo.V(0, -40), 0)
	driveUntil(t, vehicle, lot, StateParked, 3000)
	space := vehicle.Target

	vehicle.Update(frame, lot, always)

	if vehicle.State != StateMoving || !vehicle.Departing {
		t.Fatalf("Expected departing vehicle, got %s", vehicle.State)
	}
	if space.IsOccupied() {
		t.Error("Expected space to be released")
	}
	if vehicle.Destination != lot.Exit() {
		t.Errorf("Expected destination %v, got %v", lot.Exit(), vehicle.Destination)
	}

	// Another vehicle takes the space; the departed one must never free it.
	lot.SetOccupied(space, true)
	if vehicle.Depart(lot) {
		t.Error("Expected a second departure to be a no-op")
	}
	for i := 0; i < 120; i++ {
		vehicle.Update(frame, lot, always)
	}
	if !space.IsOccupied() {
		t.Error("Departed vehicle released a space it no longer holds")
	}
}

func TestDepartWithoutTargetIsNoop(t *testing.T) {
	lot := twoSpaceLot()
	vehicle := NewVehicle(1, KindCar, "", geo.V(0, -40), 0)

	if vehicle.Depart(lot) {
		t.Error("Expected Depart to be a no-op for a vehicle without a space")
	}
	if vehicle.Departing || vehicle.State != StateMoving {
		t.Error("Vehicle state changed on a no-op departure")
	}
}

func TestDepartingVehicleReachesExit(t *testing.T) {
	lot := twoSpaceLot()
	vehicle := NewVehicle(1, KindCar, "", geo.V(0, -40), 0)
	driveUntil(t, vehicle, lot, StateParked, 3000)

	if !vehicle.Depart(lot) {
		t.Fatal("Expected departure")
	}
	for i := 0; i < 5000 && !vehicle.Exited; i++ {
		vehicle.Update(frame, lot, never)
	}
	if !vehicle.Exited {
		t.Fatalf("Expected vehicle to exit, stuck at %v", vehicle.Position)
	}
	if lot.OccupiedCount() != 0 {
		t.Errorf("Expected empty lot, got %d occupied", lot.OccupiedCount())
	}
}

func TestVehicleLosingRaceRetargets(t *testing.T) {
	lot := twoSpaceLot()
	space := lot.Spaces()[0]

	first := NewVehicle(1, KindCar, "", space.Position, 0)
	first.Target = space
	second := NewVehicle(2, KindCar, "", space.Position.Add(geo.V(0, -0.5)), 0)
	second.Target = space

	first.Update(frame, lot, never)
	second.Update(frame, lot, never)

	if first.State != StateParked {
		t.Fatalf("Expected first vehicle parked, got %s", first.State)
	}
	if second.State != StateMoving || second.Target != lot.Spaces()[1] {
		t.Fatalf("Expected second vehicle to retarget space 2 in the same tick, got %s/%v",
			second.State, second.Target)
	}
	if lot.Spaces()[1].IsOccupied() {
		t.Errorf("Expected space 2 to stay free until the second vehicle arrives")
	}
}

func TestVehicleDropsTakenTargetMidDrive(t *testing.T) {
	lot := twoSpaceLot()
	near, far := lot.Spaces()[0], lot.Spaces()[1]

	vehicle := NewVehicle(1, KindCar, "", geo.V(0, -40), 0)
	vehicle.Speed = KindCar.MaxSpeed()
	vehicle.Target = near

	lot.SetOccupied(near, true)
	vehicle.Update(frame, lot, never)
	if vehicle.State != StateMoving || vehicle.Target != far {
		t.Fatalf("Expected retarget to the free space, got %s/%v", vehicle.State, vehicle.Target)
	}

	lot.SetOccupied(far, true)
	vehicle.Update(frame, lot, never)
	if vehicle.State != StateWaiting || vehicle.Target != nil {
		t.Fatalf("Expected waiting once the lot is full, got %s/%v", vehicle.State, vehicle.Target)
	}
	if vehicle.Speed != 0 {
		t.Errorf("Expected a waiting vehicle to stop, got speed %v", vehicle.Speed)
	}
}

func TestVehicleParksFromAnyApproach(t *testing.T) {
	tests := []struct {
		name    string
		offset  geo.Vec2
		heading float64
		speed   float64
	}{
		{"behind facing away at rest", geo.V(0, 7), 0, 0},
		{"behind facing away at speed", geo.V(0, 7), 0, 8},
		{"alongside at speed", geo.V(3, 0), 0, 8},
		{"close on the flank", geo.V(-2, -2), math.Pi / 2, 8},
		{"diagonal heading away", geo.V(6, 6), math.Pi, 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lot := twoSpaceLot()
			space := lot.Spaces()[0]
			vehicle := NewVehicle(1, KindCar, "", space.Position.Add(tt.offset), tt.heading)
			vehicle.Speed = tt.speed
			vehicle.Target = space

			// 20 simulated seconds; a vehicle circling its target never gets there.
			driveUntil(t, vehicle, lot, StateParked, 1200)
			if vehicle.Target != space {
				t.Errorf("Expected vehicle to park in its own target, got %v", vehicle.Target)
			}
		})
	}
}

func TestVehicleCrawlsWhenTargetIsBehind(t *testing.T) {
	lot := twoSpaceLot()
	space := lot.Spaces()[0]
	vehicle := NewVehicle(1, KindCar, "", space.Position.Add(geo.V(0, -20)), math.Pi)
	vehicle.Speed = KindCar.MaxSpeed()
	vehicle.Target = space

	vehicle.Update(frame, lot, never)
	if want := KindCar.MaxSpeed() - Acceleration*frame; !approxEqual(vehicle.Speed, want) {
		t.Errorf("Expected braking to %v with the target behind, got %v", want, vehicle.Speed)
	}
}

func TestParkedVehicleStaysWithoutDepartureRoll(t *testing.T) {
	lot := twoSpaceLot()
	vehicle := NewVehicle(1, KindCar, "", geo.V(0, -40), 0)
	driveUntil(t, vehicle, lot, StateParked, 3000)

	for i := 0; i < 1000; i++ {
		vehicle.Update(frame, lot, never)
	}
	if vehicle.State != StateParked {
		t.Errorf("Expected vehicle to stay parked, got %s", vehicle.State)
	}
	vehicle.Update(frame, lot, nil)
	if vehicle.State != StateParked {
		t.Errorf("Expected a nil random source to suppress departures, got %s", vehicle.State)
	}
}
