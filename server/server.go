// Package server exposes the simulation engine over HTTP: a JSON simulate
// endpoint, a websocket progress feed per job, a health probe, and a
// prometheus metrics endpoint.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/blochsim/blochsim/sim"
)

const (
	// DefaultAddr is the listen address when the config leaves it empty.
	DefaultAddr = ":8090"

	defaultCacheSize = 64
	defaultJobSlots  = 128
	shutdownTimeout  = 5 * time.Second
)

// Config carries the server settings.
type Config struct {
	// Addr is the listen address; empty means DefaultAddr.
	Addr string

	// Workers is the default worker count for requests that do not set
	// their own; 0 means GOMAXPROCS.
	Workers int

	// CacheSize bounds the compiled-program cache; 0 means the default.
	CacheSize int
}

// Server is the HTTP front end over the simulation engine.
type Server struct {
	addr    string
	workers int
	stats   *Stats
	jobs    *Jobs
	cache   *sim.ProgramCache
}

// New builds a server with its own stats registry, job registry, and
// program cache.
func New(cfg Config) (*Server, error) {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = defaultCacheSize
	}
	cache, err := sim.NewProgramCache(cfg.CacheSize)
	if err != nil {
		return nil, err
	}
	jobs, err := NewJobs(defaultJobSlots)
	if err != nil {
		return nil, err
	}
	return &Server{
		addr:    cfg.Addr,
		workers: cfg.Workers,
		stats:   NewStats(),
		jobs:    jobs,
		cache:   cache,
	}, nil
}

// Router wires all endpoints. The progress websocket is registered before
// the /api subrouter so the upgrade sees the raw ResponseWriter instead of
// the stats-counting wrapper.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.Handle("/metrics", s.stats.Handler())
	r.HandleFunc("/healthz", s.HealthHandler).Methods(http.MethodGet)
	r.HandleFunc("/api/jobs/{id}/progress", s.ProgressHandler).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.StatsMiddleware)
	api.HandleFunc("/simulate", s.SimulateHandler).Methods(http.MethodPost)

	return r
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	// No blanket write timeout: progress websockets stay open across a run.
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logrus.Infof("[Server] listening on %s", s.addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serving: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	logrus.Info("[Server] shut down cleanly")
	return nil
}

// HealthHandler reports liveness.
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// RespWriter captures the status code for StatsMiddleware.
type RespWriter struct {
	http.ResponseWriter
	Status int
}

// WriteHeader records the status before delegating.
func (w *RespWriter) WriteHeader(status int) {
	w.Status = status
	w.ResponseWriter.WriteHeader(status)
}

// StatsMiddleware counts API requests by status code and method.
func (s *Server) StatsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wrapped := &RespWriter{
			ResponseWriter: w,
			Status:         200,
		}
		next.ServeHTTP(wrapped, r)

		s.stats.RecWWW(strconv.Itoa(wrapped.Status), r.Method)
	})
}
