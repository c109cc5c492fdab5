package parking

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"parking-sim/internal/geo"
)

// InstrumentedParkingLot records allocator activity as OpenTelemetry metrics.
// Allocator calls happen inside a tick and carry no context, so measurements
// are recorded against the background context.
type InstrumentedParkingLot struct {
	*ParkingLot

	// Metrics
	spaceQueries      metric.Int64Counter
	occupancyChanges  metric.Int64Counter
	occupancyGauge    metric.Int64UpDownCounter
	operationDuration metric.Float64Histogram
	totalSpacesGauge  metric.Int64UpDownCounter
}

func NewInstrumentedParkingLot(layout Layout, meter metric.Meter) (*InstrumentedParkingLot, error) {
	baseParkingLot := NewParkingLot(layout)

	spaceQueries, err := meter.Int64Counter("parking_space_queries_total",
		metric.WithDescription("Total number of nearest-available-space queries"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, err
	}

	occupancyChanges, err := meter.Int64Counter("parking_occupancy_changes_total",
		metric.WithDescription("Total number of space occupancy transitions"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, err
	}

	occupancyGauge, err := meter.Int64UpDownCounter("parking_lot_occupancy",
		metric.WithDescription("Current number of occupied parking spaces"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, err
	}

	operationDuration, err := meter.Float64Histogram("parking_space_query_duration_seconds",
		metric.WithDescription("Duration of nearest-available-space queries"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	totalSpacesGauge, err := meter.Int64UpDownCounter("parking_lot_total_spaces",
		metric.WithDescription("Total number of parking spaces"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, err
	}

	ipl := &InstrumentedParkingLot{
		ParkingLot:        baseParkingLot,
		spaceQueries:      spaceQueries,
		occupancyChanges:  occupancyChanges,
		occupancyGauge:    occupancyGauge,
		operationDuration: operationDuration,
		totalSpacesGauge:  totalSpacesGauge,
	}

	totalSpacesGauge.Add(context.Background(), int64(baseParkingLot.TotalSpaces()))

	return ipl, nil
}

func (ipl *InstrumentedParkingLot) FindAvailableSpace(position geo.Vec2) *Space {
	ctx := context.Background()
	start := time.Now()

	space := ipl.ParkingLot.FindAvailableSpace(position)

	result := "found"
	if space == nil {
		result = "none"
	}
	labels := metric.WithAttributes(attribute.String("result", result))

	ipl.spaceQueries.Add(ctx, 1, labels)
	ipl.operationDuration.Record(ctx, time.Since(start).Seconds(), labels)

	return space
}

func (ipl *InstrumentedParkingLot) SetOccupied(space *Space, occupied bool) bool {
	ctx := context.Background()

	wasOccupied := space != nil && space.IsOccupied()
	if !ipl.ParkingLot.SetOccupied(space, occupied) {
		ipl.occupancyChanges.Add(ctx, 1, metric.WithAttributes(
			attribute.String("transition", "rejected"),
		))
		return false
	}

	if wasOccupied == occupied {
		return true
	}

	transition, delta := "released", int64(-1)
	if occupied {
		transition, delta = "occupied", 1
	}
	ipl.occupancyChanges.Add(ctx, 1, metric.WithAttributes(
		attribute.String("transition", transition),
		attribute.Int("space_number", space.Number),
	))
	ipl.occupancyGauge.Add(ctx, delta)

	return true
}

// Close withdraws this lot's spaces and occupancy from the shared gauges, so
// a replaced lot does not leave stale totals behind.
func (ipl *InstrumentedParkingLot) Close() {
	ctx := context.Background()
	ipl.totalSpacesGauge.Add(ctx, -int64(ipl.TotalSpaces()))
	ipl.occupancyGauge.Add(ctx, -int64(ipl.OccupiedCount()))
}
