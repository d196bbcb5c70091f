package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/jbbskl/finalsoftware/internal/api/handler"
	mw "github.com/jbbskl/finalsoftware/internal/api/middleware"
	"github.com/jbbskl/finalsoftware/internal/api/response"
	"github.com/jbbskl/finalsoftware/internal/core"
	"github.com/jbbskl/finalsoftware/internal/executor"
	"github.com/jbbskl/finalsoftware/internal/timerule"
)

type Server struct {
	router   chi.Router
	logger   zerolog.Logger
	services *core.Services
	pool     *pgxpool.Pool
	exec     executor.Executor
}

func NewServer(logger zerolog.Logger, pool *pgxpool.Pool, exec executor.Executor, rules *timerule.Rules) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		logger:   logger,
		services: core.NewServices(pool, rules),
		pool:     pool,
		exec:     exec,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(mw.RequestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(mw.Metrics)
}

func (s *Server) setupRoutes() {
	// Prometheus metrics endpoint
	s.router.Handle("/metrics", promhttp.Handler())

	// Health check endpoints
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/readyz", s.handleReadyz)

	s.router.Route("/api", func(r chi.Router) {
		// Schedules
		schedule := handler.NewSchedule(s.services.Schedule)
		r.Get("/schedules", schedule.List)
		r.Post("/schedules", schedule.Create)
		r.Post("/schedules/copy-day", schedule.CopyDay)
		r.Get("/schedules/{id}", schedule.Get)
		r.Patch("/schedules/{id}", schedule.Update)
		r.Delete("/schedules/{id}", schedule.Delete)

		// Bot instances (read-only, provisioned elsewhere)
		botInstance := handler.NewBotInstance(s.services)
		r.Get("/bot-instances", botInstance.List)
		r.Get("/bot-instances/{id}", botInstance.Get)
		r.Get("/bot-instances/{id}/phases", botInstance.ListPhases)
		r.Get("/bot-instances/{id}/runs", botInstance.ListRuns)

		// Runs
		run := handler.NewRun(s.services, s.exec)
		r.Post("/runs", run.Create)
		r.Get("/runs/{id}", run.Get)
		r.Post("/runs/{id}/stop", run.Stop)
		r.Post("/runs/{id}/status", run.ReportStatus)
		r.Get("/runs/{id}/events", run.ListEvents)
		r.Post("/runs/{id}/events", run.AppendEvent)
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	response.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.pool.Ping(ctx); err != nil {
		response.WriteError(w, http.StatusServiceUnavailable, "database unreachable")
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// Router exposes the chi router, mainly for tests.
func (s *Server) Router() chi.Router {
	return s.router
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
