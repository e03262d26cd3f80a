package api

import (
	"encoding/json"
	"net/http"

	"vroomgo/internal/solution"
	"vroomgo/internal/vrperr"
)

// Problem represents an RFC7807 problem details response body. Code and
// Error repeat the legacy solution failure fields when the problem comes
// from a solve.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
	Code     int    `json:"code,omitempty"`
	Error    string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, status int, title, detail, instance string) {
	writeJSON(w, status, Problem{
		Type:     "about:blank",
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: instance,
	})
}

// statusOf maps an error kind onto its HTTP status.
func statusOf(k vrperr.Kind) int {
	switch k {
	case vrperr.KindInput:
		return http.StatusBadRequest
	case vrperr.KindRouting:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

var titles = map[vrperr.Kind]string{
	vrperr.KindInternal: "Internal error",
	vrperr.KindInput:    "Invalid problem",
	vrperr.KindRouting:  "Routing failed",
}

// writeSolveError reports a classified failure with its legacy code.
func writeSolveError(w http.ResponseWriter, r *http.Request, err error) {
	fail := solution.FromError(err)
	k := vrperr.KindOf(err)
	status := statusOf(k)
	writeJSON(w, status, Problem{
		Type:     "about:blank",
		Title:    titles[k],
		Status:   status,
		Detail:   fail.Error,
		Instance: r.URL.Path,
		Code:     fail.Code,
		Error:    fail.Error,
	})
}
