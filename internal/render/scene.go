// Package render keeps the presentation state a 3D renderer draws from. It
// never feeds back into the simulation: views are rebuilt from core state on
// every Sync.
package render

import (
	"cmp"
	"slices"

	"github.com/samber/lo"

	"parking-sim/internal/parking"
)

// Model is the silhouette a renderer uses for a vehicle.
type Model string

const (
	ModelSedan    Model = "sedan"
	ModelBoxTruck Model = "box-truck"
)

func ModelFor(kind parking.Kind) Model {
	if kind == parking.KindTruck {
		return ModelBoxTruck
	}
	return ModelSedan
}

const (
	TintFree     = "#3fa34d"
	TintOccupied = "#c0392b"
)

type VehicleView struct {
	ID        int           `json:"id"`
	Kind      parking.Kind  `json:"kind"`
	Model     Model         `json:"model"`
	Color     string        `json:"color"`
	X         float64       `json:"x"`
	Z         float64       `json:"z"`
	Heading   float64       `json:"heading"`
	Speed     float64       `json:"speed"`
	State     parking.State `json:"state"`
	Space     int           `json:"space,omitempty"`
	WaitTime  float64       `json:"wait_time"`
	Departing bool          `json:"departing,omitempty"`
}

type SpaceView struct {
	Number   int     `json:"number"`
	Label    string  `json:"label"`
	X        float64 `json:"x"`
	Z        float64 `json:"z"`
	Rotation float64 `json:"rotation"`
	Occupied bool    `json:"occupied"`
	Tint     string  `json:"tint"`
}

// Frame is one renderable picture of the lot, ordered by id and number.
type Frame struct {
	Tick     uint64        `json:"tick"`
	Width    float64       `json:"width"`
	Length   float64       `json:"length"`
	Vehicles []VehicleView `json:"vehicles"`
	Spaces   []SpaceView   `json:"spaces"`
}

// Scene holds views keyed by entity identity. It is not safe for concurrent
// use; the caller serializes Sync and Frame.
type Scene struct {
	tick     uint64
	width    float64
	length   float64
	vehicles map[int]*VehicleView
	spaces   map[int]*SpaceView
}

func NewScene() *Scene {
	return &Scene{
		vehicles: make(map[int]*VehicleView),
		spaces:   make(map[int]*SpaceView),
	}
}

// Sync refreshes every view from core state. Views whose vehicle or space no
// longer exists are dropped.
func (s *Scene) Sync(tick uint64, lot parking.Lot, vehicles []*parking.Vehicle) {
	s.tick = tick
	s.width, s.length = lot.Dimensions()

	seenSpaces := make(map[int]struct{}, lot.TotalSpaces())
	for _, space := range lot.Spaces() {
		seenSpaces[space.Number] = struct{}{}
		view, ok := s.spaces[space.Number]
		if !ok {
			view = &SpaceView{Number: space.Number}
			s.spaces[space.Number] = view
		}
		view.Label = space.Label()
		view.X, view.Z = space.Position.X, space.Position.Z
		view.Rotation = space.Rotation
		view.Occupied = space.IsOccupied()
		view.Tint = lo.Ternary(view.Occupied, TintOccupied, TintFree)
	}
	for number := range s.spaces {
		if _, ok := seenSpaces[number]; !ok {
			delete(s.spaces, number)
		}
	}

	seenVehicles := make(map[int]struct{}, len(vehicles))
	for _, v := range vehicles {
		seenVehicles[v.ID] = struct{}{}
		view, ok := s.vehicles[v.ID]
		if !ok {
			view = &VehicleView{ID: v.ID}
			s.vehicles[v.ID] = view
		}
		view.Kind = v.Kind
		view.Model = ModelFor(v.Kind)
		view.Color = v.Color
		view.X, view.Z = v.Position.X, v.Position.Z
		view.Heading = v.Heading
		view.Speed = v.Speed
		view.State = v.State
		view.WaitTime = v.WaitTime
		view.Departing = v.Departing
		view.Space = 0
		if v.Target != nil {
			view.Space = v.Target.Number
		}
	}
	for id := range s.vehicles {
		if _, ok := seenVehicles[id]; !ok {
			delete(s.vehicles, id)
		}
	}
}

func (s *Scene) Frame() Frame {
	vehicles := lo.Map(lo.Values(s.vehicles), func(v *VehicleView, _ int) VehicleView { return *v })
	slices.SortFunc(vehicles, func(a, b VehicleView) int { return cmp.Compare(a.ID, b.ID) })

	spaces := lo.Map(lo.Values(s.spaces), func(v *SpaceView, _ int) SpaceView { return *v })
	slices.SortFunc(spaces, func(a, b SpaceView) int { return cmp.Compare(a.Number, b.Number) })

	return Frame{
		Tick:     s.tick,
		Width:    s.width,
		Length:   s.length,
		Vehicles: vehicles,
		Spaces:   spaces,
	}
}

// VehicleCount is the number of vehicle views currently held.
func (s *Scene) VehicleCount() int {
	return len(s.vehicles)
}
