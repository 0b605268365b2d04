package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Stats is the server's attached prometheus registry. Every collector lives
// on this registry rather than the global one, so tests can stand up as many
// servers as they like without duplicate-registration panics.
type Stats struct {
	registry    *prometheus.Registry
	simulations *prometheus.CounterVec
	locations   prometheus.Counter
	duration    prometheus.Histogram
	www         *prometheus.CounterVec
}

// NewStats creates the registry and registers all collectors.
func NewStats() *Stats {
	s := &Stats{
		registry: prometheus.NewRegistry(),
		simulations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blochsim_simulations_total",
			Help: "Simulation requests by outcome (completed, rejected, failed).",
		}, []string{"outcome"}),
		locations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blochsim_locations_simulated_total",
			Help: "Phantom locations simulated across all completed requests.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "blochsim_simulation_duration_seconds",
			Help:    "Wall-clock duration of completed simulation requests.",
			Buckets: prometheus.DefBuckets,
		}),
		www: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blochsim_http_requests_total",
			Help: "API requests by status code and method.",
		}, []string{"code", "method"}),
	}
	s.registry.MustRegister(s.simulations, s.locations, s.duration, s.www)
	return s
}

// Handler serves the attached registry in the prometheus exposition format.
func (s *Stats) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}

// RecSimulation counts one simulation request with the given outcome.
func (s *Stats) RecSimulation(outcome string) {
	s.simulations.WithLabelValues(outcome).Inc()
}

// RecLocations counts simulated phantom locations.
func (s *Stats) RecLocations(n int) {
	s.locations.Add(float64(n))
}

// RecDuration records the wall-clock seconds of one completed request.
func (s *Stats) RecDuration(seconds float64) {
	s.duration.Observe(seconds)
}

// RecWWW counts one API request by status code and method.
func (s *Stats) RecWWW(code, method string) {
	s.www.WithLabelValues(code, method).Inc()
}
