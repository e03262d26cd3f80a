package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"vroomgo/internal/model"
	"vroomgo/internal/obs"
)

// OSRMProvider talks to an OSRM HTTP server.
type OSRMProvider struct {
	base   string
	client *client
}

type osrmTable struct {
	Code      string       `json:"code"`
	Message   string       `json:"message"`
	Durations [][]*float64 `json:"durations"`
	Distances [][]*float64 `json:"distances"`
}

type osrmRoute struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Routes  []struct {
		Geometry string  `json:"geometry"`
		Distance float64 `json:"distance"`
		Duration float64 `json:"duration"`
	} `json:"routes"`
}

func osrmCoords(locs []model.Coordinates) string {
	parts := make([]string, len(locs))
	for i, c := range locs {
		parts[i] = fmt.Sprintf("%.6f,%.6f", c.Lon, c.Lat)
	}
	return strings.Join(parts, ";")
}

func (o *OSRMProvider) get(ctx context.Context, url string, out any) error {
	resp, err := o.client.doWithRetry(ctx, func() (*http.Request, error) {
		return o.client.newRequest(ctx, http.MethodGet, url, nil)
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode osrm response: %w", err)
	}
	return nil
}

// Matrices queries the table service for durations and distances.
func (o *OSRMProvider) Matrices(ctx context.Context, profile string, locs []model.Coordinates) (_ Matrices, err error) {
	defer obs.Time(ctx, "routing.osrm.table")(&err)
	if len(locs) == 0 {
		return Matrices{}, fmt.Errorf("osrm table: no locations")
	}

	url := fmt.Sprintf("%s/table/v1/%s/%s?annotations=duration,distance", o.base, profile, osrmCoords(locs))
	var tr osrmTable
	if err := o.get(ctx, url, &tr); err != nil {
		return Matrices{}, fmt.Errorf("osrm table: %w", err)
	}
	if tr.Code != "Ok" {
		return Matrices{}, fmt.Errorf("osrm table: %s: %s", tr.Code, tr.Message)
	}

	var m Matrices
	if m.Durations, err = toMatrix("osrm durations", tr.Durations, locs); err != nil {
		return Matrices{}, err
	}
	if tr.Distances != nil {
		if m.Distances, err = toMatrix("osrm distances", tr.Distances, locs); err != nil {
			return Matrices{}, err
		}
	}
	return m, nil
}

// Route queries the route service for the full encoded geometry.
func (o *OSRMProvider) Route(ctx context.Context, profile string, locs []model.Coordinates) (_ Geometry, err error) {
	defer obs.Time(ctx, "routing.osrm.route")(&err)

	url := fmt.Sprintf("%s/route/v1/%s/%s?overview=full&geometries=polyline", o.base, profile, osrmCoords(locs))
	var rr osrmRoute
	if err := o.get(ctx, url, &rr); err != nil {
		return Geometry{}, fmt.Errorf("osrm route: %w", err)
	}
	if rr.Code != "Ok" || len(rr.Routes) == 0 {
		return Geometry{}, fmt.Errorf("osrm route: %s: %s", rr.Code, rr.Message)
	}
	r := rr.Routes[0]
	return Geometry{Polyline: r.Geometry, Distance: int64(r.Distance + 0.5), Duration: int64(r.Duration + 0.5)}, nil
}
