package server

import (
	"context"
	"encoding/json"
	"net/http"

	"go.opentelemetry.io/otel/trace"

	"parking-sim/internal/parking"
	"parking-sim/internal/scenario"
)

type Meta struct {
	TraceID   string `json:"trace_id,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Meta    *Meta  `json:"meta,omitempty"`
}

type HealthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	SessionID string `json:"session_id"`
	Meta      *Meta  `json:"meta,omitempty"`
}

type SelectScenarioRequest struct {
	ID string `json:"id"`
}

type ScenarioSummary struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Layout      parking.Layout `json:"layout"`
	TotalSpaces int            `json:"total_spaces"`
	Vehicles    int            `json:"vehicles"`
	SpawnRate   float64        `json:"spawn_rate"`
	LeaveRate   float64        `json:"leave_rate"`
}

func summarize(sc scenario.Scenario) ScenarioSummary {
	return ScenarioSummary{
		ID:          sc.ID,
		Name:        sc.Name,
		Description: sc.Description,
		Layout:      sc.Layout,
		TotalSpaces: sc.TotalSpaces(),
		Vehicles:    len(sc.Vehicles),
		SpawnRate:   sc.SpawnRate,
		LeaveRate:   sc.LeaveRate,
	}
}

type SpawnResponse struct {
	VehicleID int `json:"vehicle_id"`
}

func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func extractMeta(ctx context.Context) *Meta {
	meta := &Meta{}

	span := trace.SpanFromContext(ctx)
	if span.SpanContext().HasTraceID() {
		meta.TraceID = span.SpanContext().TraceID().String()
	}

	if reqID, ok := ctx.Value(RequestIDKey).(string); ok {
		meta.RequestID = reqID
	}

	return meta
}

func WriteSuccess(ctx context.Context, w http.ResponseWriter, message string, data any) {
	WriteJSON(w, http.StatusOK, Response{
		Success: true,
		Message: message,
		Data:    data,
		Meta:    extractMeta(ctx),
	})
}

func WriteError(ctx context.Context, w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, Response{
		Success: false,
		Error:   message,
		Meta:    extractMeta(ctx),
	})
}
