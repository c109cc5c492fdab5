package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"parking-sim/internal/logging"
	"parking-sim/internal/sim"
)

type Server struct {
	httpServer *http.Server
	handler    *Handler
	runner     *sim.Runner
	hub        *Hub
	stopHub    context.CancelFunc
	hubCtx     context.Context
	unsub      func()
}

func NewServer(port, serviceName string, runner *sim.Runner) *Server {
	handler := NewHandler(runner, serviceName)
	hub := NewHub()
	hubCtx, stopHub := context.WithCancel(context.Background())

	s := &Server{
		handler: handler,
		runner:  runner,
		hub:     hub,
		hubCtx:  hubCtx,
		stopHub: stopHub,
	}

	r := chi.NewRouter()

	r.Use(RecoveryMiddleware)
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)
	r.Use(TracingMiddleware)
	r.Use(CORSMiddleware)

	r.Get("/health", handler.HealthCheck)
	r.Handle("/metrics", promhttp.HandlerFor(NewRegistry(runner), promhttp.HandlerOpts{}))
	r.Get("/ws", s.serveWS)

	r.Get("/api/scenarios", handler.ListScenarios)
	r.Route("/api/simulation", func(r chi.Router) {
		r.Post("/scenario", handler.SelectScenario)
		r.Get("/stats", handler.GetStats)
		r.Get("/frame", handler.GetFrame)
		r.Post("/play", handler.Play)
		r.Post("/pause", handler.Pause)
		r.Post("/toggle", handler.Toggle)
		r.Post("/vehicles", handler.SpawnVehicle)
		r.Post("/vehicles/{id}/depart", handler.DepartVehicle)
	})

	s.httpServer = &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go hub.Run(hubCtx)
	s.unsub = runner.Subscribe(hub.Publish)

	return s
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	s.hub.ServeWS(s.hubCtx, w, r, s.runner.Current())
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start serves until Shutdown. A clean shutdown returns nil.
func (s *Server) Start() error {
	logging.Info(context.Background(), "starting HTTP server", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info(ctx, "shutting down HTTP server")
	s.unsub()
	s.stopHub()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) GetAddress() string {
	return fmt.Sprintf("http://localhost%s", s.httpServer.Addr)
}
