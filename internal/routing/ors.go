package routing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"vroomgo/internal/model"
	"vroomgo/internal/obs"
)

// ORSProvider talks to an openrouteservice instance.
type ORSProvider struct {
	base   string
	client *client
}

type orsMatrixRequest struct {
	Locations [][]float64 `json:"locations"`
	Metrics   []string    `json:"metrics"`
}

type orsMatrixResponse struct {
	Durations [][]*float64 `json:"durations"`
	Distances [][]*float64 `json:"distances"`
}

type orsDirectionsRequest struct {
	Coordinates [][]float64 `json:"coordinates"`
}

type orsDirectionsResponse struct {
	Routes []struct {
		Geometry string `json:"geometry"`
		Summary  struct {
			Distance float64 `json:"distance"`
			Duration float64 `json:"duration"`
		} `json:"summary"`
	} `json:"routes"`
}

func orsCoords(locs []model.Coordinates) [][]float64 {
	out := make([][]float64, len(locs))
	for i, c := range locs {
		out[i] = []float64{c.Lon, c.Lat}
	}
	return out
}

func (o *ORSProvider) post(ctx context.Context, url string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	resp, err := o.client.doWithRetry(ctx, func() (*http.Request, error) {
		return o.client.newRequest(ctx, http.MethodPost, url, bytes.NewReader(payload))
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode ors response: %w", err)
	}
	return nil
}

// Matrices calls the matrix endpoint for all pairs of locs.
func (o *ORSProvider) Matrices(ctx context.Context, profile string, locs []model.Coordinates) (_ Matrices, err error) {
	defer obs.Time(ctx, "routing.ors.matrix")(&err)
	if len(locs) == 0 {
		return Matrices{}, fmt.Errorf("ors matrix: no locations")
	}

	var mr orsMatrixResponse
	req := orsMatrixRequest{Locations: orsCoords(locs), Metrics: []string{"duration", "distance"}}
	if err := o.post(ctx, fmt.Sprintf("%s/v2/matrix/%s", o.base, profile), req, &mr); err != nil {
		return Matrices{}, fmt.Errorf("ors matrix: %w", err)
	}

	var m Matrices
	if m.Durations, err = toMatrix("ors durations", mr.Durations, locs); err != nil {
		return Matrices{}, err
	}
	if mr.Distances != nil {
		if m.Distances, err = toMatrix("ors distances", mr.Distances, locs); err != nil {
			return Matrices{}, err
		}
	}
	return m, nil
}

// Route calls the directions endpoint and returns the encoded geometry.
func (o *ORSProvider) Route(ctx context.Context, profile string, locs []model.Coordinates) (_ Geometry, err error) {
	defer obs.Time(ctx, "routing.ors.directions")(&err)

	var dr orsDirectionsResponse
	req := orsDirectionsRequest{Coordinates: orsCoords(locs)}
	if err := o.post(ctx, fmt.Sprintf("%s/v2/directions/%s", o.base, profile), req, &dr); err != nil {
		return Geometry{}, fmt.Errorf("ors directions: %w", err)
	}
	if len(dr.Routes) == 0 {
		return Geometry{}, fmt.Errorf("ors directions: no route")
	}
	r := dr.Routes[0]
	return Geometry{
		Polyline: r.Geometry,
		Distance: int64(r.Summary.Distance + 0.5),
		Duration: int64(r.Summary.Duration + 0.5),
	}, nil
}
