package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"

	"parking-sim/internal/scenario"
	"parking-sim/internal/sim"
)

type Handler struct {
	runner      *sim.Runner
	serviceName string
}

func NewHandler(runner *sim.Runner, serviceName string) *Handler {
	return &Handler{
		runner:      runner,
		serviceName: serviceName,
	}
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Service:   h.serviceName,
		SessionID: h.runner.SessionID(),
		Meta:      extractMeta(r.Context()),
	})
}

func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(r.Context(), w, "Scenarios retrieved successfully", lo.Map(h.runner.Scenarios(),
		func(sc scenario.Scenario, _ int) ScenarioSummary { return summarize(sc) }))
}

func (h *Handler) SelectScenario(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req SelectScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.ID == "" {
		WriteError(ctx, w, http.StatusBadRequest, "Scenario id is required")
		return
	}

	if !h.runner.SelectScenario(ctx, req.ID) {
		WriteError(ctx, w, http.StatusBadRequest, "Unknown or invalid scenario: "+req.ID)
		return
	}

	WriteSuccess(ctx, w, "Scenario selected", h.runner.Stats())
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(r.Context(), w, "Stats retrieved successfully", h.runner.Stats())
}

func (h *Handler) GetFrame(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(r.Context(), w, "Frame retrieved successfully", h.runner.Frame())
}

func (h *Handler) Play(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(r.Context(), w, "Simulation playing", h.runner.Play())
}

func (h *Handler) Pause(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(r.Context(), w, "Simulation paused", h.runner.Pause())
}

func (h *Handler) Toggle(w http.ResponseWriter, r *http.Request) {
	stats := h.runner.Toggle()
	WriteSuccess(r.Context(), w, lo.Ternary(stats.Playing, "Simulation playing", "Simulation paused"), stats)
}

func (h *Handler) SpawnVehicle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req sim.SpawnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}

	id, err := h.runner.Spawn(ctx, req)
	if err != nil {
		WriteError(ctx, w, statusFor(err), err.Error())
		return
	}

	WriteSuccess(ctx, w, "Vehicle spawned", SpawnResponse{VehicleID: id})
}

func (h *Handler) DepartVehicle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		WriteError(ctx, w, http.StatusBadRequest, "Vehicle id must be a positive integer")
		return
	}

	if err := h.runner.Depart(ctx, id); err != nil {
		WriteError(ctx, w, statusFor(err), err.Error())
		return
	}

	WriteSuccess(ctx, w, "Vehicle departing", map[string]any{
		"vehicle_id": id,
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, sim.ErrVehicleNotFound):
		return http.StatusNotFound
	case errors.Is(err, sim.ErrNotParked), errors.Is(err, sim.ErrTooManyVehicles), errors.Is(err, sim.ErrNoScenario):
		return http.StatusConflict
	case errors.Is(err, scenario.ErrInvalidVehicle):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
