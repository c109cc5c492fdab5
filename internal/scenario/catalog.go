package scenario

import (
	"fmt"
	"math"

	"parking-sim/internal/parking"
)

// Catalog is an ordered table of scenarios addressed by id.
type Catalog struct {
	order []string
	byID  map[string]Scenario
}

func NewCatalog(scenarios ...Scenario) (*Catalog, error) {
	c := &Catalog{byID: make(map[string]Scenario)}
	if err := c.Merge(scenarios...); err != nil {
		return nil, err
	}
	return c, nil
}

// Merge validates and adds scenarios, replacing any with the same id while
// keeping its original position.
func (c *Catalog) Merge(scenarios ...Scenario) error {
	for _, s := range scenarios {
		if err := s.Validate(); err != nil {
			return err
		}
	}
	for _, s := range scenarios {
		if _, ok := c.byID[s.ID]; !ok {
			c.order = append(c.order, s.ID)
		}
		c.byID[s.ID] = s
	}
	return nil
}

func (c *Catalog) Get(id string) (Scenario, error) {
	s, ok := c.byID[id]
	if !ok {
		return Scenario{}, fmt.Errorf("%w: %q", ErrUnknownScenario, id)
	}
	return s, nil
}

func (c *Catalog) IDs() []string {
	return append([]string(nil), c.order...)
}

func (c *Catalog) All() []Scenario {
	out := make([]Scenario, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}

func (c *Catalog) Len() int {
	return len(c.order)
}

var standardLayout = parking.Layout{
	Rows:        parking.DefaultRows,
	Columns:     parking.DefaultColumns,
	SpaceWidth:  parking.DefaultSpaceWidth,
	SpaceLength: parking.DefaultSpaceLength,
	AisleWidth:  parking.DefaultAisleWidth,
}

// Builtin returns the scenarios that ship with the simulator.
func Builtin() *Catalog {
	c, err := NewCatalog(
		Scenario{
			ID:          "default",
			Name:        "Default",
			Description: "A few cars arriving at a mid-size lot",
			Layout:      standardLayout,
			Vehicles: []VehicleSpec{
				{Kind: parking.KindCar, X: -10, Z: -30, Heading: 0, Color: "red"},
				{Kind: parking.KindCar, X: 0, Z: -35, Heading: 0, Color: "blue"},
				{Kind: parking.KindTruck, X: 10, Z: -32, Heading: 0, Color: "white"},
				{Kind: parking.KindCar, X: -5, Z: 35, Heading: math.Pi, Color: "green"},
			},
			SpawnRate: 0.2,
			LeaveRate: 0.001,
		},
		Scenario{
			ID:          "quiet",
			Name:        "Quiet Evening",
			Description: "A small lot with the occasional visitor",
			Layout:      parking.Layout{Rows: 1, Columns: 6, SpaceWidth: 2.5, SpaceLength: 5, AisleWidth: 6},
			Vehicles: []VehicleSpec{
				{Kind: parking.KindCar, X: 0, Z: -25, Heading: 0, Color: "silver"},
			},
			SpawnRate: 0.05,
			LeaveRate: 0.002,
		},
		Scenario{
			ID:          "rush-hour",
			Name:        "Rush Hour",
			Description: "A large lot filling up quickly",
			Layout:      parking.Layout{Rows: 4, Columns: 10, SpaceWidth: 2.5, SpaceLength: 5, AisleWidth: 6},
			Vehicles:    rushHourVehicles(),
			SpawnRate:   1.0,
			LeaveRate:   0.0005,
		},
		Scenario{
			ID:          "full",
			Name:        "Full Lot",
			Description: "More vehicles than spaces; the overflow waits",
			Layout:      parking.Layout{Rows: 1, Columns: 3, SpaceWidth: 2.5, SpaceLength: 5, AisleWidth: 6},
			Vehicles:    fullLotVehicles(),
			LeaveRate:   0.002,
		},
	)
	if err != nil {
		panic(fmt.Sprintf("builtin scenarios: %v", err))
	}
	return c
}

func rushHourVehicles() []VehicleSpec {
	colors := []string{"red", "blue", "white", "black", "silver", "yellow"}
	var vehicles []VehicleSpec
	for i := 0; i < 12; i++ {
		kind := parking.KindCar
		if i%4 == 3 {
			kind = parking.KindTruck
		}
		vehicles = append(vehicles, VehicleSpec{
			Kind:    kind,
			X:       float64(i%6-3) * 4,
			Z:       -45 - float64(i/6)*8,
			Heading: 0,
			Color:   colors[i%len(colors)],
		})
	}
	return vehicles
}

func fullLotVehicles() []VehicleSpec {
	var vehicles []VehicleSpec
	for i := 0; i < 8; i++ {
		vehicles = append(vehicles, VehicleSpec{
			Kind:  parking.KindCar,
			X:     float64(i-4) * 3,
			Z:     -25,
			Color: "grey",
		})
	}
	return vehicles
}
