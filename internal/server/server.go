// Package server exposes a combination module over HTTP. Forecast vectors
// are posted to /api/v1/combine, true values to /api/v1/reward; learning
// state streams on /ws and Prometheus metrics on /metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"forecast-combiner/internal/combine"
	"forecast-combiner/internal/metrics"
	"forecast-combiner/internal/storage"
	"forecast-combiner/internal/stream"
)

// Server serializes every call into the module; the learner itself is not
// safe for concurrent use.
type Server struct {
	mu     sync.Mutex
	module *combine.Module
	series string

	store   *storage.Store
	stats   *metrics.Metrics
	metrics *metrics.MetricsWrapper
	hub     *stream.Hub

	started  time.Time
	lastStep int
	server   *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithStore records every forecast vector and true value under series.
func WithStore(store *storage.Store, series string) Option {
	return func(s *Server) {
		s.store = store
		s.series = series
	}
}

// WithMetrics records latency and errors and serves m on /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		s.stats = m
		s.metrics = metrics.NewWrapper(m)
	}
}

// WithHub serves snapshot subscribers on /ws.
func WithHub(hub *stream.Hub) Option {
	return func(s *Server) { s.hub = hub }
}

// CombineRequest carries one forecast per method. Methods without a
// forecast send null.
type CombineRequest struct {
	Step      int        `json:"step"`
	Forecasts []*float64 `json:"forecasts"`
}

// CombineResponse carries the combined forecast, or null while the strategy
// cannot produce one.
type CombineResponse struct {
	Step       int       `json:"step"`
	Prediction *float64  `json:"prediction"`
	Strategy   string    `json:"strategy"`
	Latency    float64   `json:"latency_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

// RewardRequest carries the true value of a step.
type RewardRequest struct {
	Step  int      `json:"step"`
	Value *float64 `json:"value"`
}

// RewardResponse reports whether the strategy learned from the value.
type RewardResponse struct {
	Step    int  `json:"step"`
	Learned bool `json:"learned"`
}

// HealthResponse summarizes the service state.
type HealthResponse struct {
	Status     string  `json:"status"`
	Strategy   string  `json:"strategy"`
	Series     string  `json:"series,omitempty"`
	LastStep   int     `json:"last_step"`
	Uptime     string  `json:"uptime"`
	Population *int    `json:"population,omitempty"`
	Numerosity *int    `json:"numerosity,omitempty"`
	Clients    int     `json:"stream_clients"`
	ErrorRate  float64 `json:"error_rate"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// New creates a server for module listening on port.
func New(module *combine.Module, port int, opts ...Option) *Server {
	s := &Server{
		module:   module,
		started:  time.Now(),
		lastStep: -1,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Handler returns the routes of the server.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/api/v1/combine", s.handleCombine).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/reward", s.handleReward).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/population", s.handlePopulation).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	if s.stats != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.stats.Gatherer(), promhttp.HandlerOpts{}))
	}
	if s.hub != nil {
		r.Handle("/ws", s.hub)
	}
	return r
}

// Start begins serving HTTP requests. It returns nil after Shutdown.
func (s *Server) Start() error {
	log.Info().Str("addr", s.server.Addr).Msg("Starting combiner server")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server and disconnects subscribers.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.hub != nil {
		s.hub.Close()
	}
	return s.server.Shutdown(ctx)
}

// Combine runs the module for step and records the forecasts.
func (s *Server) Combine(step int, forecasts []float64) float64 {
	start := time.Now()

	s.mu.Lock()
	prediction := s.module.Combine(step, forecasts)
	s.lastStep = step
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.CombineLatency().Observe(time.Since(start).Seconds())
	}
	if s.store != nil {
		if err := s.store.StoreForecasts(s.series, step, forecasts, time.Now()); err != nil {
			s.fail(err, "failed to store forecasts")
		}
	}
	return prediction
}

// Reward passes the true value of step to the module and records it. The
// learner rewards its last combined input, so rewards are expected in step
// order right after the matching Combine.
func (s *Server) Reward(step int, value float64) bool {
	s.mu.Lock()
	learned := s.module.Reward(step, value)
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.StoreActual(s.series, step, value, time.Now()); err != nil {
			s.fail(err, "failed to store actual value")
		}
	}
	return learned
}

func (s *Server) fail(err error, msg string) {
	log.Error().Err(err).Str("series", s.series).Msg(msg)
	if s.metrics != nil {
		s.metrics.Errors().Inc()
	}
}

func (s *Server) handleCombine(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req CombineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}
	if len(req.Forecasts) == 0 {
		writeError(w, http.StatusBadRequest, "forecasts cannot be empty")
		return
	}
	if req.Step < 0 {
		writeError(w, http.StatusBadRequest, "step must not be negative")
		return
	}

	forecasts := make([]float64, len(req.Forecasts))
	for i, f := range req.Forecasts {
		if f == nil {
			forecasts[i] = math.NaN()
			continue
		}
		forecasts[i] = *f
	}

	resp := CombineResponse{
		Step:      req.Step,
		Strategy:  s.module.Strategy().Name(),
		Timestamp: time.Now(),
	}
	if p := s.Combine(req.Step, forecasts); !math.IsNaN(p) {
		resp.Prediction = &p
	}
	resp.Latency = float64(time.Since(start).Microseconds()) / 1000

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReward(w http.ResponseWriter, r *http.Request) {
	var req RewardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}
	if req.Value == nil {
		writeError(w, http.StatusBadRequest, "value is required")
		return
	}
	if req.Step < 0 {
		writeError(w, http.StatusBadRequest, "step must not be negative")
		return
	}

	writeJSON(w, http.StatusOK, RewardResponse{
		Step:    req.Step,
		Learned: s.Reward(req.Step, *req.Value),
	})
}

func (s *Server) handlePopulation(w http.ResponseWriter, r *http.Request) {
	x, ok := s.module.Strategy().(*combine.XCSF)
	if !ok {
		writeError(w, http.StatusNotFound, "strategy has no population")
		return
	}

	s.mu.Lock()
	snapshot := x.Driver().PopulationSnapshot()
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, snapshot)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := HealthResponse{
		Status:   "ok",
		Strategy: s.module.Strategy().Name(),
		Series:   s.series,
		Uptime:   time.Since(s.started).Round(time.Second).String(),
	}

	s.mu.Lock()
	health.LastStep = s.lastStep
	if x, ok := s.module.Strategy().(*combine.XCSF); ok {
		pop := x.Driver().Population()
		size, num := pop.Len(), pop.NumerositySum()
		health.Population = &size
		health.Numerosity = &num
	}
	s.mu.Unlock()

	if s.hub != nil {
		health.Clients = s.hub.Clients()
	}
	if s.stats != nil {
		health.ErrorRate = s.stats.ErrorRate()
	}

	writeJSON(w, http.StatusOK, health)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
