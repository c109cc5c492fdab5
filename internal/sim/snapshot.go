package sim

import (
	"math"

	"github.com/samber/lo"

	"parking-sim/internal/parking"
)

// Snapshot is the aggregate state after a tick.
type Snapshot struct {
	Tick            uint64  `json:"tick"`
	Elapsed         float64 `json:"elapsed"`
	Vehicles        int     `json:"vehicles"`
	Parked          int     `json:"parked"`
	Moving          int     `json:"moving"`
	Waiting         int     `json:"waiting"`
	OccupiedSpaces  int     `json:"occupied_spaces"`
	TotalSpaces     int     `json:"total_spaces"`
	AverageWaitTime float64 `json:"average_wait_time"`
	Spawned         int     `json:"spawned"`
	Departed        int     `json:"departed"`
}

func (s *Simulation) computeSnapshot() Snapshot {
	byState := func(state parking.State) int {
		return lo.CountBy(s.vehicles, func(v *parking.Vehicle) bool { return v.State == state })
	}
	parked := byState(parking.StateParked)

	snap := Snapshot{
		Tick:           s.tick,
		Elapsed:        s.elapsed,
		Vehicles:       len(s.vehicles),
		Parked:         parked,
		Moving:         byState(parking.StateMoving),
		Waiting:        byState(parking.StateWaiting),
		OccupiedSpaces: parked,
		Spawned:        s.spawned,
		Departed:       s.departed,
	}
	if s.lot != nil {
		snap.TotalSpaces = s.lot.TotalSpaces()
	}
	if len(s.vehicles) > 0 {
		total := lo.SumBy(s.vehicles, func(v *parking.Vehicle) float64 { return v.WaitTime })
		snap.AverageWaitTime = total / float64(len(s.vehicles))
	}
	return snap
}

// Stats is the UI view of a snapshot.
type Stats struct {
	Scenario        string  `json:"scenario"`
	Playing         bool    `json:"playing"`
	Tick            uint64  `json:"tick"`
	Elapsed         float64 `json:"elapsed"`
	OccupancyRate   float64 `json:"occupancy_rate"`
	OccupiedSpaces  int     `json:"occupied_spaces"`
	TotalSpaces     int     `json:"total_spaces"`
	Vehicles        int     `json:"vehicles"`
	Parked          int     `json:"parked"`
	Moving          int     `json:"moving"`
	Waiting         int     `json:"waiting"`
	AverageWaitTime float64 `json:"average_wait_time"`
	Spawned         int     `json:"spawned"`
	Departed        int     `json:"departed"`
}

// Stats rounds the occupancy rate (percent) and the average wait to one
// decimal place.
func (s Snapshot) Stats(scenarioID string, playing bool) Stats {
	rate := 0.0
	if s.TotalSpaces > 0 {
		rate = float64(s.OccupiedSpaces) / float64(s.TotalSpaces) * 100
	}
	return Stats{
		Scenario:        scenarioID,
		Playing:         playing,
		Tick:            s.Tick,
		Elapsed:         round1(s.Elapsed),
		OccupancyRate:   round1(rate),
		OccupiedSpaces:  s.OccupiedSpaces,
		TotalSpaces:     s.TotalSpaces,
		Vehicles:        s.Vehicles,
		Parked:          s.Parked,
		Moving:          s.Moving,
		Waiting:         s.Waiting,
		AverageWaitTime: round1(s.AverageWaitTime),
		Spawned:         s.Spawned,
		Departed:        s.Departed,
	}
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}
