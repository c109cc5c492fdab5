// Package scenario holds the named scenario table: lot geometry, the vehicles
// a scenario starts with, and its spawn and leave rates.
package scenario

import (
	"errors"
	"fmt"

	"parking-sim/internal/geo"
	"parking-sim/internal/parking"
)

var (
	ErrUnknownScenario = errors.New("unknown scenario")
	ErrInvalidLayout   = errors.New("invalid lot layout")
	ErrInvalidVehicle  = errors.New("invalid vehicle")
	ErrInvalidRate     = errors.New("invalid rate")
)

type VehicleSpec struct {
	Kind    parking.Kind `json:"kind" yaml:"kind"`
	X       float64      `json:"x" yaml:"x"`
	Z       float64      `json:"z" yaml:"z"`
	Heading float64      `json:"heading" yaml:"heading"`
	Color   string       `json:"color" yaml:"color"`
}

type Scenario struct {
	ID          string         `json:"id" yaml:"id"`
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description,omitempty" yaml:"description"`
	Layout      parking.Layout `json:"layout" yaml:"layout"`
	Vehicles    []VehicleSpec  `json:"vehicles" yaml:"vehicles"`

	// SpawnRate is the mean number of vehicles arriving per second.
	SpawnRate float64 `json:"spawn_rate" yaml:"spawn_rate"`
	// LeaveRate is the per-tick chance a parked vehicle departs. Zero keeps
	// the simulation default.
	LeaveRate float64 `json:"leave_rate" yaml:"leave_rate"`
}

func (s Scenario) Validate() error {
	if s.ID == "" {
		return errors.New("scenario id is required")
	}
	l := s.Layout
	if l.Rows <= 0 || l.Columns <= 0 || l.SpaceWidth <= 0 || l.SpaceLength <= 0 || l.AisleWidth <= 0 ||
		!geo.Finite(l.SpaceWidth, l.SpaceLength, l.AisleWidth) {
		return fmt.Errorf("scenario %q: %w: %+v", s.ID, ErrInvalidLayout, l)
	}
	for i, v := range s.Vehicles {
		if !v.Kind.Valid() {
			return fmt.Errorf("scenario %q vehicle %d: %w: kind %q", s.ID, i, ErrInvalidVehicle, v.Kind)
		}
		if !geo.Finite(v.X, v.Z, v.Heading) {
			return fmt.Errorf("scenario %q vehicle %d: %w: pose (%v, %v, %v)", s.ID, i, ErrInvalidVehicle, v.X, v.Z, v.Heading)
		}
	}
	if s.SpawnRate < 0 || !geo.Finite(s.SpawnRate) {
		return fmt.Errorf("scenario %q: %w: spawn rate %f", s.ID, ErrInvalidRate, s.SpawnRate)
	}
	if !(s.LeaveRate >= 0 && s.LeaveRate <= 1) {
		return fmt.Errorf("scenario %q: %w: leave rate %f", s.ID, ErrInvalidRate, s.LeaveRate)
	}
	return nil
}

// TotalSpaces is the capacity the scenario's lot will have.
func (s Scenario) TotalSpaces() int {
	return 2 * s.Layout.Rows * s.Layout.Columns
}
