package parking

import (
	"math"
	"testing"

	"parking-sim/internal/geo"
)

func TestNewSpace(t *testing.T) {
	space := NewSpace(3, 0, 2, SideFar, geo.V(1, 2), math.Pi)

	if space.Number != 3 {
		t.Errorf("Expected space number 3, got %d", space.Number)
	}

	if space.IsOccupied() {
		t.Error("Expected new space to be unoccupied")
	}

	if space.Label() != "R1-far-C3" {
		t.Errorf("Expected label R1-far-C3, got %s", space.Label())
	}
}

func TestSideString(t *testing.T) {
	if SideNear.String() != "near" || SideFar.String() != "far" {
		t.Errorf("Unexpected side names %q %q", SideNear, SideFar)
	}
}
