// Package routing fetches travel matrices and route geometries from external
// routing engines.
package routing

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"

	"vroomgo/internal/buffer"
	"vroomgo/internal/model"
)

// Kind selects the routing engine protocol.
type Kind uint8

const (
	OSRM Kind = iota + 1
	ORS
)

func (k Kind) String() string {
	switch k {
	case OSRM:
		return "osrm"
	case ORS:
		return "ors"
	}
	return "unknown"
}

func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "osrm":
		return OSRM, nil
	case "ors", "openrouteservice":
		return ORS, nil
	}
	return 0, fmt.Errorf("routing: unsupported router %q", s)
}

// Server locates one routing engine instance.
type Server struct {
	Scheme string
	Host   string
	Port   string
	Path   string
}

// ParseServer accepts "host:port", "host:port/path" or a full http(s) URL.
func ParseServer(s string) (Server, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Server{}, fmt.Errorf("routing: empty server address")
	}
	if !strings.Contains(s, "://") {
		s = "http://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return Server{}, fmt.Errorf("routing: parse server %q: %w", s, err)
	}
	host, port, err := net.SplitHostPort(u.Host)
	if err != nil {
		host, port = u.Host, ""
	}
	if host == "" {
		return Server{}, fmt.Errorf("routing: server %q has no host", s)
	}
	return Server{Scheme: u.Scheme, Host: host, Port: port, Path: strings.TrimSuffix(u.Path, "/")}, nil
}

// BaseURL renders the server as a URL prefix without trailing slash.
func (s Server) BaseURL() string {
	scheme := s.Scheme
	if scheme == "" {
		scheme = "http"
	}
	host := s.Host
	if s.Port != "" {
		host = net.JoinHostPort(s.Host, s.Port)
	}
	return scheme + "://" + host + s.Path
}

// Matrices are the square travel matrices for an ordered list of locations.
// Distances is nil when the engine does not report them.
type Matrices struct {
	Durations *buffer.Matrix `json:"durations"`
	Distances *buffer.Matrix `json:"distances,omitempty"`
}

// Provider computes travel matrices between coordinates.
type Provider interface {
	Matrices(ctx context.Context, profile string, locs []model.Coordinates) (Matrices, error)
}

// Geometry is the road path of a route.
type Geometry struct {
	Polyline string
	Distance int64
	Duration int64
}

// Router computes road geometry along an ordered list of coordinates.
type Router interface {
	Route(ctx context.Context, profile string, locs []model.Coordinates) (Geometry, error)
}

// New builds a provider for kind talking to srv.
func New(kind Kind, srv Server, opts ...Option) (Provider, error) {
	c := newClient(kind.String(), opts...)
	switch kind {
	case OSRM:
		return &OSRMProvider{base: srv.BaseURL(), client: c}, nil
	case ORS:
		return &ORSProvider{base: srv.BaseURL(), client: c}, nil
	}
	return nil, fmt.Errorf("routing: unsupported router %v", kind)
}

// AsRouter returns p as a Router, looking through caching wrappers.
func AsRouter(p Provider) (Router, bool) {
	if c, ok := p.(*Cached); ok {
		p = c.Provider
	}
	r, ok := p.(Router)
	return r, ok
}

func checkSquare(name string, rows [][]*float64, n int) error {
	if len(rows) != n {
		return fmt.Errorf("%s: got %d rows, want %d", name, len(rows), n)
	}
	for i, r := range rows {
		if len(r) != n {
			return fmt.Errorf("%s: row %d has %d values, want %d", name, i, len(r), n)
		}
	}
	return nil
}

// toMatrix rounds engine floats into a matrix. Null cells mean the engine
// found no route between the two locations.
func toMatrix(name string, rows [][]*float64, locs []model.Coordinates) (*buffer.Matrix, error) {
	if err := checkSquare(name, rows, len(locs)); err != nil {
		return nil, err
	}
	m := buffer.NewMatrix(len(locs))
	for i, r := range rows {
		for j, v := range r {
			if v == nil {
				return nil, fmt.Errorf("%s: unfound route from %s to %s", name, locs[i], locs[j])
			}
			if *v < 0 {
				return nil, fmt.Errorf("%s: negative value %g", name, *v)
			}
			m.Set(i, j, uint32(*v+0.5))
		}
	}
	return m, nil
}
