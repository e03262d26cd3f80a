package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"vroomgo/internal/buildinfo"
	"vroomgo/internal/solution"
	"vroomgo/internal/store"
	"vroomgo/internal/vrperr"
)

func (s *Server) decode(w http.ResponseWriter, r *http.Request) (*solveRequest, error) {
	if s.MaxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.MaxBody)
	}
	var req solveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, vrperr.Wrap(vrperr.KindInput, err, "invalid JSON")
	}
	return &req, nil
}

// SolveHandler handles POST /v1/solve. Successful solutions are stored and
// their id returned in X-Solution-Id. Route geometry is computed and
// returned when options.g, or the server default it overrides, asks for it.
func (s *Server) SolveHandler(w http.ResponseWriter, r *http.Request) {
	req, err := s.decode(w, r)
	if err != nil {
		writeSolveError(w, r, err)
		return
	}
	in, err := req.build(s.Problem)
	if err != nil {
		writeSolveError(w, r, err)
		return
	}
	o, err := req.solveOptions(s.Solve)
	if err != nil {
		writeSolveError(w, r, err)
		return
	}
	sol, err := in.Solve(r.Context(), o)
	if err != nil {
		writeSolveError(w, r, err)
		return
	}
	if s.Store != nil {
		id, err := s.Store.SaveSolution(r.Context(), sol)
		if err != nil {
			log.Printf("op=api.solve store_err=%v", err)
		} else {
			w.Header().Set("X-Solution-Id", id)
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = sol.WriteJSON(w, solution.JSONOptions{Geometry: req.geometry(s.Problem.Geometry)})
}

// CheckHandler handles POST /v1/check: the problem is built and validated
// without solving.
func (s *Server) CheckHandler(w http.ResponseWriter, r *http.Request) {
	req, err := s.decode(w, r)
	if err != nil {
		writeSolveError(w, r, err)
		return
	}
	in, err := req.build(s.Problem)
	if err == nil {
		err = in.Check()
	}
	if err != nil {
		writeSolveError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"code":      0,
		"jobs":      len(in.Jobs()),
		"vehicles":  len(in.Vehicles()),
		"profiles":  in.Profiles(),
		"shipments": in.HasShipments(),
		"skills":    in.HasSkills(),
	})
}

// SolutionsIndexHandler handles GET /v1/solutions?cursor=&limit=.
func (s *Server) SolutionsIndexHandler(w http.ResponseWriter, r *http.Request) {
	cursor := r.URL.Query().Get("cursor")
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeProblem(w, http.StatusBadRequest, "Invalid limit", v, r.URL.Path)
			return
		}
		limit = n
	}
	items, next, err := s.Store.ListSolutions(r.Context(), cursor, limit)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List solutions failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
}

// SolutionByIDHandler handles GET /v1/solutions/{id}. ?format=records
// streams the fixed-size binary step records instead of JSON;
// ?geometry=false drops route geometries from JSON.
func (s *Server) SolutionByIDHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	sol, err := s.Store.GetSolution(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeProblem(w, http.StatusNotFound, "Not Found", "solution "+id, r.URL.Path)
			return
		}
		writeProblem(w, http.StatusInternalServerError, "Get solution failed", err.Error(), r.URL.Path)
		return
	}
	q := r.URL.Query()
	switch q.Get("format") {
	case "", "json":
		geometry := q.Get("geometry") != "false"
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = sol.WriteJSON(w, solution.JSONOptions{Geometry: geometry, Indent: q.Has("pretty")})
	case "records":
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("X-Record-Size", strconv.Itoa(solution.RecordSize))
		w.WriteHeader(http.StatusOK)
		_ = sol.WriteRecords(w)
	default:
		writeProblem(w, http.StatusBadRequest, "Unknown format", q.Get("format"), r.URL.Path)
	}
}

func (s *Server) VersionHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, buildinfo.Info())
}

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	checks := s.Ready
	if p, ok := s.Store.(Pinger); ok {
		checks = append([]Pinger{p}, checks...)
	}
	ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
	defer cancel()
	for _, c := range checks {
		if err := c.Ping(ctx); err != nil {
			writeProblem(w, http.StatusServiceUnavailable, "Not Ready", err.Error(), r.URL.Path)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
