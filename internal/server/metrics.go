package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"parking-sim/internal/sim"
)

// NewRegistry builds the Prometheus registry served on /metrics: runtime
// collectors plus gauges read from the runner's latest snapshot.
func NewRegistry(runner *sim.Runner) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	gauge := func(name, help string, value func(sim.Stats) float64) prometheus.GaugeFunc {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "parking_sim",
			Name:      name,
			Help:      help,
		}, func() float64 { return value(runner.Stats()) })
	}

	reg.MustRegister(
		gauge("occupancy_rate_percent", "Occupied share of all spaces, in percent.",
			func(s sim.Stats) float64 { return s.OccupancyRate }),
		gauge("occupied_spaces", "Number of occupied spaces.",
			func(s sim.Stats) float64 { return float64(s.OccupiedSpaces) }),
		gauge("total_spaces", "Number of spaces in the lot.",
			func(s sim.Stats) float64 { return float64(s.TotalSpaces) }),
		gauge("average_wait_seconds", "Mean wait time across all vehicles.",
			func(s sim.Stats) float64 { return s.AverageWaitTime }),
		gauge("elapsed_seconds", "Simulated seconds since the scenario was loaded.",
			func(s sim.Stats) float64 { return s.Elapsed }),
		gauge("spawned_vehicles", "Vehicles added since the scenario was loaded.",
			func(s sim.Stats) float64 { return float64(s.Spawned) }),
		gauge("departed_vehicles", "Vehicles that reached the exit since the scenario was loaded.",
			func(s sim.Stats) float64 { return float64(s.Departed) }),
	)

	reg.MustRegister(&vehicleCollector{
		runner: runner,
		desc:   prometheus.NewDesc("parking_sim_vehicles", "Vehicles by behavioral state.",
			[]string{"state"}, nil),
	})

	return reg
}

// vehicleCollector reports all states from one snapshot per scrape.
type vehicleCollector struct {
	runner *sim.Runner
	desc   *prometheus.Desc
}

func (c *vehicleCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc
}

func (c *vehicleCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.runner.Stats()
	ch <- prometheus.MustNewConstMetric(c.desc, prometheus.GaugeValue, float64(s.Parked), "parked")
	ch <- prometheus.MustNewConstMetric(c.desc, prometheus.GaugeValue, float64(s.Moving), "moving")
	ch <- prometheus.MustNewConstMetric(c.desc, prometheus.GaugeValue, float64(s.Waiting), "waiting")
}
