package api

import (
	"fmt"
	"time"

	"vroomgo/internal/buffer"
	"vroomgo/internal/model"
	"vroomgo/internal/opt"
	"vroomgo/internal/problem"
	"vroomgo/internal/vrperr"
)

// locationIn is the shared location encoding: [lon, lat] and/or a matrix
// index.
type locationIn struct {
	Coords *[2]float64
	Index  *int
}

func (l locationIn) model() (model.Location, bool) {
	var out model.Location
	if l.Index != nil {
		out.Index, out.HasIndex = *l.Index, true
	}
	if l.Coords != nil {
		out.Coords = &model.Coordinates{Lon: l.Coords[0], Lat: l.Coords[1]}
	}
	return out, out.Valid()
}

type windowIn [2]int64

func windows(in []windowIn) []model.TimeWindow {
	if len(in) == 0 {
		return nil
	}
	out := make([]model.TimeWindow, len(in))
	for i, w := range in {
		out[i] = model.TimeWindow{Start: w[0], End: w[1]}
	}
	return out
}

type jobIn struct {
	ID          uint64        `json:"id"`
	Location    *[2]float64   `json:"location"`
	Index       *int          `json:"location_index"`
	Setup       int64         `json:"setup"`
	Service     int64         `json:"service"`
	Delivery    buffer.Amount `json:"delivery"`
	Pickup      buffer.Amount `json:"pickup"`
	Skills      []uint32      `json:"skills"`
	Priority    int           `json:"priority"`
	TimeWindows []windowIn    `json:"time_windows"`
	Description string        `json:"description"`
}

func (j jobIn) model() model.Job {
	loc, _ := locationIn{Coords: j.Location, Index: j.Index}.model()
	return model.Job{
		ID:          j.ID,
		Location:    loc,
		Setup:       j.Setup,
		Service:     j.Service,
		Delivery:    j.Delivery,
		Pickup:      j.Pickup,
		Skills:      model.NewSkills(j.Skills...),
		Priority:    j.Priority,
		TimeWindows: windows(j.TimeWindows),
		Description: j.Description,
	}
}

type shipmentStepIn struct {
	ID          uint64      `json:"id"`
	Location    *[2]float64 `json:"location"`
	Index       *int        `json:"location_index"`
	Setup       int64       `json:"setup"`
	Service     int64       `json:"service"`
	TimeWindows []windowIn  `json:"time_windows"`
	Description string      `json:"description"`
}

func (s shipmentStepIn) model() model.ShipmentStep {
	loc, _ := locationIn{Coords: s.Location, Index: s.Index}.model()
	return model.ShipmentStep{
		ID:          s.ID,
		Location:    loc,
		Setup:       s.Setup,
		Service:     s.Service,
		TimeWindows: windows(s.TimeWindows),
		Description: s.Description,
	}
}

type shipmentIn struct {
	Pickup   shipmentStepIn `json:"pickup"`
	Delivery shipmentStepIn `json:"delivery"`
	Amount   buffer.Amount  `json:"amount"`
	Skills   []uint32       `json:"skills"`
	Priority int            `json:"priority"`
}

type breakIn struct {
	ID          uint64        `json:"id"`
	TimeWindows []windowIn    `json:"time_windows"`
	Service     int64         `json:"service"`
	Description string        `json:"description"`
	MaxLoad     buffer.Amount `json:"max_load"`
}

type stepIn struct {
	Type          string `json:"type"`
	ID            uint64 `json:"id"`
	ServiceAt     *int64 `json:"service_at"`
	ServiceAfter  *int64 `json:"service_after"`
	ServiceBefore *int64 `json:"service_before"`
}

type costsIn struct {
	Fixed   int64 `json:"fixed"`
	PerHour int64 `json:"per_hour"`
	PerKm   int64 `json:"per_km"`
}

type vehicleIn struct {
	ID            uint64        `json:"id"`
	Profile       string        `json:"profile"`
	Start         *[2]float64   `json:"start"`
	StartIndex    *int          `json:"start_index"`
	End           *[2]float64   `json:"end"`
	EndIndex      *int          `json:"end_index"`
	Capacity      buffer.Amount `json:"capacity"`
	Skills        []uint32      `json:"skills"`
	TimeWindow    *windowIn     `json:"time_window"`
	Breaks        []breakIn     `json:"breaks"`
	Description   string        `json:"description"`
	Costs         costsIn       `json:"costs"`
	SpeedFactor   float64       `json:"speed_factor"`
	MaxTasks      int           `json:"max_tasks"`
	MaxTravelTime int64         `json:"max_travel_time"`
	MaxDistance   int64         `json:"max_distance"`
	Steps         []stepIn      `json:"steps"`
}

func (v vehicleIn) model() (model.Vehicle, error) {
	out := model.Vehicle{
		ID:            v.ID,
		Profile:       v.Profile,
		Capacity:      v.Capacity,
		Skills:        model.NewSkills(v.Skills...),
		Description:   v.Description,
		Costs:         model.VehicleCosts{Fixed: v.Costs.Fixed, PerHour: v.Costs.PerHour, PerKm: v.Costs.PerKm},
		SpeedFactor:   v.SpeedFactor,
		MaxTasks:      v.MaxTasks,
		MaxTravelTime: v.MaxTravelTime,
		MaxDistance:   v.MaxDistance,
	}
	if l, ok := (locationIn{Coords: v.Start, Index: v.StartIndex}).model(); ok {
		out.Start = &l
	}
	if l, ok := (locationIn{Coords: v.End, Index: v.EndIndex}).model(); ok {
		out.End = &l
	}
	if v.TimeWindow != nil {
		out.TimeWindow = &model.TimeWindow{Start: v.TimeWindow[0], End: v.TimeWindow[1]}
	}
	for _, b := range v.Breaks {
		out.Breaks = append(out.Breaks, model.Break{
			ID:          b.ID,
			TimeWindows: windows(b.TimeWindows),
			Service:     b.Service,
			Description: b.Description,
			MaxLoad:     b.MaxLoad,
		})
	}
	for _, st := range v.Steps {
		kind, err := model.ParseStepKind(st.Type)
		if err != nil {
			return out, vrperr.Wrap(vrperr.KindInput, err, fmt.Sprintf("vehicle %d", v.ID))
		}
		out.Steps = append(out.Steps, model.VehicleStep{
			Kind:   kind,
			ID:     st.ID,
			Forced: model.ForcedService{At: st.ServiceAt, After: st.ServiceAfter, Before: st.ServiceBefore},
		})
	}
	return out, nil
}

type matricesIn struct {
	Durations *buffer.Matrix `json:"durations"`
	Costs     *buffer.Matrix `json:"costs"`
	Distances *buffer.Matrix `json:"distances"`
}

type heuristicIn struct {
	Heuristic string  `json:"heuristic"`
	Init      string  `json:"init"`
	Regret    float64 `json:"regret"`
}

type optionsIn struct {
	ExplorationLevel *int          `json:"exploration_level"`
	Threads          *int          `json:"threads"`
	TimeoutMs        *int64        `json:"timeout"`
	Geometry         *bool         `json:"g"`
	Seed             int64         `json:"seed"`
	Heuristics       []heuristicIn `json:"heuristics"`
}

// solveRequest is the problem body accepted by /v1/solve and /v1/check.
type solveRequest struct {
	Jobs      []jobIn               `json:"jobs"`
	Shipments []shipmentIn          `json:"shipments"`
	Vehicles  []vehicleIn           `json:"vehicles"`
	Matrices  map[string]matricesIn `json:"matrices"`
	Options   optionsIn             `json:"options"`
}

// geometry resolves options.g against the server default.
func (req *solveRequest) geometry(base bool) bool {
	if req.Options.Geometry != nil {
		return *req.Options.Geometry
	}
	return base
}

// build registers the request content on a fresh Input.
func (req *solveRequest) build(opts problem.Options) (*problem.Input, error) {
	opts.Geometry = req.geometry(opts.Geometry)
	in, err := problem.New(opts)
	if err != nil {
		return nil, err
	}
	for _, j := range req.Jobs {
		if err := in.AddJob(j.model()); err != nil {
			return nil, err
		}
	}
	for _, s := range req.Shipments {
		sh := model.Shipment{
			Pickup:   s.Pickup.model(),
			Delivery: s.Delivery.model(),
			Amount:   s.Amount,
			Skills:   model.NewSkills(s.Skills...),
			Priority: s.Priority,
		}
		if err := in.AddShipment(sh.Jobs()); err != nil {
			return nil, err
		}
	}
	for _, v := range req.Vehicles {
		mv, err := v.model()
		if err != nil {
			return nil, err
		}
		if err := in.AddVehicle(mv); err != nil {
			return nil, err
		}
	}
	for profile, m := range req.Matrices {
		if m.Durations != nil {
			if err := in.SetDurationsMatrix(profile, m.Durations); err != nil {
				return nil, err
			}
		}
		if m.Costs != nil {
			if err := in.SetCostsMatrix(profile, m.Costs); err != nil {
				return nil, err
			}
		}
		if m.Distances != nil {
			if err := in.SetDistancesMatrix(profile, m.Distances); err != nil {
				return nil, err
			}
		}
	}
	return in, nil
}

// solveOptions overlays the request options on base.
func (req *solveRequest) solveOptions(base problem.SolveOptions) (problem.SolveOptions, error) {
	o := base
	if v := req.Options.ExplorationLevel; v != nil {
		o.ExplorationLevel = *v
	}
	if v := req.Options.Threads; v != nil {
		o.Threads = *v
	}
	if v := req.Options.TimeoutMs; v != nil {
		if *v < 0 {
			return o, vrperr.Inputf("negative timeout %d", *v)
		}
		o.Timeout = time.Duration(*v) * time.Millisecond
	}
	if req.Options.Seed != 0 {
		o.Seed = req.Options.Seed
	}
	for _, h := range req.Options.Heuristics {
		hp := opt.HeuristicParams{Regret: h.Regret}
		var err error
		if hp.Heuristic, err = opt.ParseHeuristic(h.Heuristic); err != nil {
			return o, vrperr.Wrap(vrperr.KindInput, err, "options")
		}
		if h.Init != "" {
			if hp.Init, err = opt.ParseInit(h.Init); err != nil {
				return o, vrperr.Wrap(vrperr.KindInput, err, "options")
			}
		}
		o.Heuristics = append(o.Heuristics, hp)
	}
	return o, nil
}
