package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"vroomgo/internal/buffer"
	"vroomgo/internal/metrics"
	"vroomgo/internal/model"
	"vroomgo/internal/routing"
	"vroomgo/internal/solution"
	"vroomgo/internal/store"
)

const libvroomProblem = `{
  "vehicles": [{"id": 0, "start_index": 0, "end_index": 3}],
  "jobs": [
    {"id": 1414, "location_index": 1},
    {"id": 1515, "location_index": 2}
  ],
  "matrices": {"car": {"durations": [
    [0, 2104, 197, 1299],
    [2103, 0, 2255, 3152],
    [197, 2256, 0, 1102],
    [1299, 3153, 1102, 0]
  ]}},
  "options": {"exploration_level": 2, "threads": 2}
}`

type downProvider struct{}

func (downProvider) Matrices(context.Context, string, []model.Coordinates) (routing.Matrices, error) {
	return routing.Matrices{}, errors.New("osrm unreachable")
}

type fixedProvider struct{}

func (fixedProvider) Matrices(_ context.Context, _ string, locs []model.Coordinates) (routing.Matrices, error) {
	m := buffer.NewMatrix(len(locs))
	for i := range locs {
		for j := range locs {
			if i != j {
				m.Set(i, j, 60)
			}
		}
	}
	return routing.Matrices{Durations: m}, nil
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("redis down") }

func newTestServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()
	s := NewServer(store.NewMemory())
	s.Solve.Threads = 2
	return s, s.Router()
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHealthReady(t *testing.T) {
	s, h := newTestServer(t)
	rr := do(h, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.NotEmpty(t, rr.Header().Get("X-Request-Id"))

	rr = do(h, http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusOK, rr.Code)

	s.Ready = []Pinger{failingPinger{}}
	rr = do(h, http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	require.Contains(t, rr.Body.String(), "redis down")
}

func TestSolveStoresAndServesSolution(t *testing.T) {
	_, h := newTestServer(t)
	rr := do(h, http.MethodPost, "/v1/solve", libvroomProblem)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	id := rr.Header().Get("X-Solution-Id")
	require.NotEmpty(t, id)

	var sol solution.Solution
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &sol))
	require.Equal(t, 0, sol.Code)
	require.Equal(t, int64(5461), sol.Summary.Cost)
	require.Len(t, sol.Routes, 1)
	require.Len(t, sol.Routes[0].Steps, 4)
	require.Empty(t, sol.Unassigned)

	rr = do(h, http.MethodGet, "/v1/solutions/"+id, "")
	require.Equal(t, http.StatusOK, rr.Code)
	var stored solution.Solution
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &stored))
	require.Equal(t, int64(5461), stored.Summary.Cost)

	rr = do(h, http.MethodGet, "/v1/solutions/"+id+"?format=records", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "application/octet-stream", rr.Header().Get("Content-Type"))
	require.Equal(t, 4*solution.RecordSize, rr.Body.Len())
	recs, err := solution.ReadRecords(bytes.NewReader(rr.Body.Bytes()))
	require.NoError(t, err)
	require.Equal(t, "start", recs[0].TypeString())
	require.Equal(t, int64(1414), recs[1].ID)
	require.Equal(t, int64(5461), recs[3].Arrival)

	rr = do(h, http.MethodGet, "/v1/solutions/"+id+"?format=xml", "")
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(h, http.MethodGet, "/v1/solutions?limit=10", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var page struct {
		Items []store.Entry `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &page))
	require.Len(t, page.Items, 1)
	require.Equal(t, id, page.Items[0].ID)
}

func TestSolveErrorMapping(t *testing.T) {
	s, h := newTestServer(t)
	s.Problem.Providers = map[string]routing.Provider{"car": downProvider{}}

	cases := []struct {
		name   string
		body   string
		status int
		code   int
	}{
		{"malformed", `{"jobs": [`, http.StatusBadRequest, 2},
		{"no vehicles", `{"jobs": [{"id": 1, "location_index": 0}], "matrices": {"car": {"durations": [[0]]}}}`, http.StatusBadRequest, 2},
		{"bad step type", `{"vehicles": [{"id": 1, "start_index": 0, "steps": [{"type": "lunch"}]}]}`, http.StatusBadRequest, 2},
		{"bad heuristic", `{"vehicles": [{"id": 1, "start_index": 0}], "matrices": {"car": {"durations": [[0]]}}, "options": {"heuristics": [{"heuristic": "magic"}]}}`, http.StatusBadRequest, 2},
		{"router down", `{"vehicles": [{"id": 1, "start": [2.35, 48.85]}], "jobs": [{"id": 1, "location": [2.36, 48.86]}]}`, http.StatusBadGateway, 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := do(h, http.MethodPost, "/v1/solve", tc.body)
			require.Equal(t, tc.status, rr.Code, rr.Body.String())
			var p Problem
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &p))
			require.Equal(t, tc.code, p.Code)
			require.Equal(t, tc.status, p.Status)
			require.NotEmpty(t, p.Error)
			require.Empty(t, rr.Header().Get("X-Solution-Id"))
		})
	}
}

func TestSolveGeometryOption(t *testing.T) {
	s, h := newTestServer(t)
	s.Problem.Providers = map[string]routing.Provider{"car": fixedProvider{}}
	const body = `{"vehicles": [{"id": 1, "start": [2.35, 48.85], "end": [2.35, 48.85]}],
	  "jobs": [{"id": 1, "location": [2.36, 48.86]}]%s}`

	geometryOf := func(opts string) string {
		rr := do(h, http.MethodPost, "/v1/solve", fmt.Sprintf(body, opts))
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		var sol solution.Solution
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &sol))
		require.Len(t, sol.Routes, 1)
		return sol.Routes[0].Geometry
	}
	require.Empty(t, geometryOf(""))
	require.NotEmpty(t, geometryOf(`, "options": {"g": true}`))

	s.Problem.Geometry = true
	require.NotEmpty(t, geometryOf(""))
	require.Empty(t, geometryOf(`, "options": {"g": false}`))
}

func TestCheck(t *testing.T) {
	_, h := newTestServer(t)
	rr := do(h, http.MethodPost, "/v1/check", libvroomProblem)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var out struct {
		Code     int      `json:"code"`
		Jobs     int      `json:"jobs"`
		Profiles []string `json:"profiles"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	require.Equal(t, 2, out.Jobs)
	require.Equal(t, []string{"car"}, out.Profiles)

	rr = do(h, http.MethodPost, "/v1/check", `{"vehicles": [{"id": 1, "start_index": 5}], "matrices": {"car": {"durations": [[0]]}}}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestUnknownSolution(t *testing.T) {
	_, h := newTestServer(t)
	rr := do(h, http.MethodGet, "/v1/solutions/nope", "")
	require.Equal(t, http.StatusNotFound, rr.Code)
	rr = do(h, http.MethodGet, "/v1/solutions?limit=x", "")
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestMetricsAndVersion(t *testing.T) {
	metrics.RegisterDefault()
	_, h := newTestServer(t)
	require.Equal(t, http.StatusOK, do(h, http.MethodGet, "/healthz", "").Code)

	rr := do(h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `http_requests_total{method="GET",path="/healthz",status="200"}`)

	rr = do(h, http.MethodGet, "/v1/version", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"version"`)
}
