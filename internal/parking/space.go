package parking

import (
	"fmt"

	"parking-sim/internal/geo"
)

// Side is the side of the aisle a space sits on.
type Side int

const (
	SideNear Side = iota
	SideFar
)

func (s Side) String() string {
	if s == SideFar {
		return "far"
	}
	return "near"
}

// Space is a fixed parking slot. Position and Rotation are assigned when the
// lot is built and never change; only the occupancy flag does, and only
// through the owning ParkingLot.
type Space struct {
	Number   int
	Row      int
	Column   int
	Side     Side
	Position geo.Vec2
	Rotation float64

	index    int
	occupied bool
}

func NewSpace(number, row, column int, side Side, position geo.Vec2, rotation float64) *Space {
	return &Space{
		Number:   number,
		Row:      row,
		Column:   column,
		Side:     side,
		Position: position,
		Rotation: rotation,
		index:    number - 1,
	}
}

func (s *Space) IsOccupied() bool {
	return s.occupied
}

// Label is the human-readable identity, e.g. "R1-near-C3".
func (s *Space) Label() string {
	return fmt.Sprintf("R%d-%s-C%d", s.Row+1, s.Side, s.Column+1)
}
