// Package api implements the HTTP surface of the routing optimisation service.
package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vroomgo/internal/metrics"
	"vroomgo/internal/obs"
	"vroomgo/internal/problem"
	"vroomgo/internal/store"
)

// Pinger is a dependency checked by /readyz.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	Store store.Store
	// Problem is the base configuration of every request's problem.
	Problem problem.Options
	// Solve holds the solve options used when a request sets none.
	Solve problem.SolveOptions
	// Ready lists extra dependencies checked by /readyz. A Store that is a
	// Pinger is always checked.
	Ready []Pinger
	// MaxBody caps request bodies in bytes.
	MaxBody int64
}

// NewServer returns a Server backed by st with default options.
func NewServer(st store.Store) *Server {
	return &Server{
		Store:   st,
		Solve:   problem.SolveOptions{ExplorationLevel: 5, Threads: 4},
		MaxBody: 32 << 20,
	}
}

// Router registers every endpoint on a gorilla/mux router wrapped in the
// request-id and metrics middleware.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/v1/solve", s.SolveHandler).Methods(http.MethodPost)
	r.HandleFunc("/v1/check", s.CheckHandler).Methods(http.MethodPost)
	r.HandleFunc("/v1/solutions", s.SolutionsIndexHandler).Methods(http.MethodGet)
	r.HandleFunc("/v1/solutions/{id}", s.SolutionByIDHandler).Methods(http.MethodGet)
	r.HandleFunc("/v1/version", s.VersionHandler).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.HealthHandler).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.ReadyHandler).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.Use(requestID, instrument)
	return r
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r.WithContext(obs.WithRequestID(r.Context(), id)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// instrument records request counts and latencies labelled by route
// template.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		path := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				path = tpl
			}
		}
		status := strconv.Itoa(rec.status)
		metrics.HTTPRequests.WithLabelValues(r.Method, path, status).Inc()
		metrics.HTTPDuration.WithLabelValues(r.Method, path, status).Observe(time.Since(start).Seconds())
	})
}
