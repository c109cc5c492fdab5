package parking

import (
	"math"

	"parking-sim/internal/geo"
)

const (
	DefaultRows        = 3
	DefaultColumns     = 8
	DefaultSpaceWidth  = 2.5
	DefaultSpaceLength = 5.0
	DefaultAisleWidth  = 6.0

	// gateMargin is how far beyond the lot edge the entrance and exit sit.
	gateMargin = 15.0
)

// Layout is the geometry a lot is built from.
type Layout struct {
	Rows        int     `json:"rows" yaml:"rows"`
	Columns     int     `json:"columns" yaml:"columns"`
	SpaceWidth  float64 `json:"space_width" yaml:"space_width"`
	SpaceLength float64 `json:"space_length" yaml:"space_length"`
	AisleWidth  float64 `json:"aisle_width" yaml:"aisle_width"`
}

// withDefaults replaces omitted (non-positive) values with the defaults.
func (l Layout) withDefaults() Layout {
	if l.Rows <= 0 {
		l.Rows = DefaultRows
	}
	if l.Columns <= 0 {
		l.Columns = DefaultColumns
	}
	if l.SpaceWidth <= 0 {
		l.SpaceWidth = DefaultSpaceWidth
	}
	if l.SpaceLength <= 0 {
		l.SpaceLength = DefaultSpaceLength
	}
	if l.AisleWidth <= 0 {
		l.AisleWidth = DefaultAisleWidth
	}
	return l
}

// Allocator is what a vehicle needs from the lot each tick.
type Allocator interface {
	FindAvailableSpace(position geo.Vec2) *Space
	SetOccupied(space *Space, occupied bool) bool
}

// Lot is an Allocator that also exposes its spaces and gates.
type Lot interface {
	Allocator
	Layout() Layout
	Spaces() []*Space
	TotalSpaces() int
	OccupiedCount() int
	Dimensions() (width, length float64)
	Entrance() geo.Vec2
	Exit() geo.Vec2
}

// ParkingLot is a fixed set of spaces laid out in rows. Every row is an aisle
// flanked by two mirrored blocks of spaces, all facing the aisle.
type ParkingLot struct {
	layout Layout
	width  float64
	length float64
	spaces []*Space
}

func NewParkingLot(layout Layout) *ParkingLot {
	layout = layout.withDefaults()

	rowDepth := 2*layout.SpaceLength + layout.AisleWidth
	width := float64(layout.Columns) * layout.SpaceWidth
	length := float64(layout.Rows) * rowDepth

	spaces := make([]*Space, 0, 2*layout.Rows*layout.Columns)
	for r := 0; r < layout.Rows; r++ {
		aisleZ := -length/2 + rowDepth*(float64(r)+0.5)
		offset := layout.AisleWidth/2 + layout.SpaceLength/2

		for _, side := range []Side{SideNear, SideFar} {
			z, rotation := aisleZ-offset, 0.0
			if side == SideFar {
				z, rotation = aisleZ+offset, math.Pi
			}
			for c := 0; c < layout.Columns; c++ {
				x := -width/2 + layout.SpaceWidth*(float64(c)+0.5)
				spaces = append(spaces, NewSpace(len(spaces)+1, r, c, side, geo.V(x, z), rotation))
			}
		}
	}

	return &ParkingLot{
		layout: layout,
		width:  width,
		length: length,
		spaces: spaces,
	}
}

// FindAvailableSpace returns the unoccupied space nearest to position, or nil
// when the lot is full. Equal distances resolve to the space that comes first
// in layout order (row, then near before far, then column).
func (pl *ParkingLot) FindAvailableSpace(position geo.Vec2) *Space {
	var nearest *Space
	best := math.Inf(1)
	for _, space := range pl.spaces {
		if space.occupied {
			continue
		}
		if d := position.Distance(space.Position); d < best {
			best = d
			nearest = space
		}
	}
	return nearest
}

// SetOccupied sets the occupancy flag of a space this lot owns. Spaces from
// another lot (or nil) are ignored and false is returned.
func (pl *ParkingLot) SetOccupied(space *Space, occupied bool) bool {
	if !pl.owns(space) {
		return false
	}
	space.occupied = occupied
	return true
}

func (pl *ParkingLot) owns(space *Space) bool {
	if space == nil || space.index < 0 || space.index >= len(pl.spaces) {
		return false
	}
	return pl.spaces[space.index] == space
}

func (pl *ParkingLot) Layout() Layout {
	return pl.layout
}

func (pl *ParkingLot) Spaces() []*Space {
	return pl.spaces
}

func (pl *ParkingLot) TotalSpaces() int {
	return len(pl.spaces)
}

func (pl *ParkingLot) OccupiedCount() int {
	count := 0
	for _, space := range pl.spaces {
		if space.occupied {
			count++
		}
	}
	return count
}

func (pl *ParkingLot) Dimensions() (float64, float64) {
	return pl.width, pl.length
}

// Entrance is where spawned vehicles appear, off the near edge of the lot.
func (pl *ParkingLot) Entrance() geo.Vec2 {
	return geo.V(0, -(pl.length/2 + gateMargin))
}

// Exit is the off-lot point departing vehicles drive to.
func (pl *ParkingLot) Exit() geo.Vec2 {
	return geo.V(0, pl.length/2+gateMargin)
}
