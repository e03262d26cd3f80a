package solution

import (
	"encoding/json"
	"fmt"
	"io"

	"vroomgo/internal/buffer"
	"vroomgo/internal/model"
	"vroomgo/internal/violation"
)

type stepJSON struct {
	Type          string               `json:"type"`
	ID            *uint64              `json:"id,omitempty"`
	Location      *[2]float64          `json:"location,omitempty"`
	LocationIndex *int                 `json:"location_index,omitempty"`
	Setup         int64                `json:"setup"`
	Service       int64                `json:"service"`
	WaitingTime   int64                `json:"waiting_time"`
	Load          buffer.Amount        `json:"load"`
	Arrival       int64                `json:"arrival"`
	Duration      int64                `json:"duration"`
	Distance      int64                `json:"distance"`
	Description   string               `json:"description,omitempty"`
	Violations    violation.Violations `json:"violations"`
}

func locationJSON(l *model.Location) (*[2]float64, *int) {
	if l == nil {
		return nil, nil
	}
	var coords *[2]float64
	if l.Coords != nil {
		coords = &[2]float64{l.Coords.Lon, l.Coords.Lat}
	}
	idx := l.Index
	return coords, &idx
}

func locationFromJSON(coords *[2]float64, idx *int) *model.Location {
	if coords == nil && idx == nil {
		return nil
	}
	l := &model.Location{}
	if idx != nil {
		l.Index, l.HasIndex = *idx, true
	}
	if coords != nil {
		l.Coords = &model.Coordinates{Lon: coords[0], Lat: coords[1]}
	}
	return l
}

func (s Step) MarshalJSON() ([]byte, error) {
	out := stepJSON{
		Type:        s.Label(),
		Setup:       s.Setup,
		Service:     s.Service,
		WaitingTime: s.WaitingTime,
		Load:        s.Load,
		Arrival:     s.Arrival,
		Duration:    s.Duration,
		Distance:    s.Distance,
		Description: s.Description,
		Violations:  s.Violations,
	}
	if s.HasID() {
		id := s.ID
		out.ID = &id
	}
	out.Location, out.LocationIndex = locationJSON(s.Location)
	if out.Load == nil {
		out.Load = buffer.Amount{}
	}
	return json.Marshal(out)
}

func (s *Step) UnmarshalJSON(b []byte) error {
	var in stepJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	typ, kind, err := parseLabel(in.Type)
	if err != nil {
		return err
	}
	*s = Step{
		Type:        typ,
		JobKind:     kind,
		Location:    locationFromJSON(in.Location, in.LocationIndex),
		Setup:       in.Setup,
		Service:     in.Service,
		WaitingTime: in.WaitingTime,
		Arrival:     in.Arrival,
		Duration:    in.Duration,
		Distance:    in.Distance,
		Load:        in.Load,
		Description: in.Description,
		Violations:  in.Violations,
	}
	if in.ID != nil {
		s.ID = *in.ID
	}
	return nil
}

type unassignedJSON struct {
	ID            uint64      `json:"id"`
	Type          string      `json:"type"`
	Location      *[2]float64 `json:"location,omitempty"`
	LocationIndex *int        `json:"location_index,omitempty"`
	Description   string      `json:"description,omitempty"`
}

func (u Unassigned) MarshalJSON() ([]byte, error) {
	out := unassignedJSON{ID: u.ID, Type: u.Kind.String(), Description: u.Description}
	out.Location, out.LocationIndex = locationJSON(&u.Location)
	return json.Marshal(out)
}

func (u *Unassigned) UnmarshalJSON(b []byte) error {
	var in unassignedJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	_, kind, err := parseLabel(in.Type)
	if err != nil {
		return err
	}
	*u = Unassigned{ID: in.ID, Kind: kind, Description: in.Description}
	if l := locationFromJSON(in.Location, in.LocationIndex); l != nil {
		u.Location = *l
	}
	return nil
}

type solutionJSON struct {
	Code       int           `json:"code"`
	Error      string        `json:"error,omitempty"`
	Summary    *Summary      `json:"summary,omitempty"`
	Unassigned *[]Unassigned `json:"unassigned,omitempty"`
	Routes     *[]Route      `json:"routes,omitempty"`
}

// MarshalJSON emits only code and error for a failure.
func (s Solution) MarshalJSON() ([]byte, error) {
	out := solutionJSON{Code: s.Code, Error: s.Error}
	if s.Code == 0 {
		routes, unassigned := s.Routes, s.Unassigned
		if routes == nil {
			routes = []Route{}
		}
		if unassigned == nil {
			unassigned = []Unassigned{}
		}
		out.Summary, out.Routes, out.Unassigned = &s.Summary, &routes, &unassigned
	}
	return json.Marshal(out)
}

func (s *Solution) UnmarshalJSON(b []byte) error {
	var in solutionJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return fmt.Errorf("solution: %w", err)
	}
	*s = Solution{Code: in.Code, Error: in.Error}
	if in.Summary != nil {
		s.Summary = *in.Summary
	}
	if in.Routes != nil {
		s.Routes = *in.Routes
	}
	if in.Unassigned != nil {
		s.Unassigned = *in.Unassigned
	}
	return nil
}

// JSONOptions tune WriteJSON.
type JSONOptions struct {
	// Geometry keeps route geometries in the output.
	Geometry bool
	Indent   bool
}

// WriteJSON streams s to w.
func (s *Solution) WriteJSON(w io.Writer, opts JSONOptions) error {
	out := *s
	if !opts.Geometry && len(s.Routes) > 0 {
		out.Routes = make([]Route, len(s.Routes))
		for i, r := range s.Routes {
			r.Geometry = ""
			out.Routes[i] = r
		}
	}
	enc := json.NewEncoder(w)
	if opts.Indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(out)
}
