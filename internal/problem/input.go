// Package problem builds a vehicle routing problem incrementally, validates
// it and dispatches it to the optimisation engine.
package problem

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"vroomgo/internal/buffer"
	"vroomgo/internal/model"
	"vroomgo/internal/opt"
	"vroomgo/internal/routing"
	"vroomgo/internal/vrperr"
)

// Engine is the optimisation backend behind Solve.
type Engine interface {
	Solve(ctx context.Context, p *opt.Problem, params opt.Params) (opt.Result, error)
}

// Options configure a new Input. Zero values are usable: no fixed amount
// size, OSRM routing, built-in defaults and the ALNS engine.
type Options struct {
	// AmountSize fixes the amount dimensionality. 0 infers it from the
	// first job amount or vehicle capacity.
	AmountSize int
	// Servers maps profile names to routing servers.
	Servers map[string]routing.Server
	Router  routing.Kind
	// Providers take precedence over Servers for their profiles.
	Providers map[string]routing.Provider
	// Cache, when set, wraps providers built from Servers.
	Cache         routing.Cache
	RouterOptions []routing.Option
	Defaults      model.Defaults
	Geometry      bool
	Engine        Engine
}

// Input is a problem under construction. It is not safe for concurrent use
// and must not be mutated while Solve runs.
type Input struct {
	defaults    model.Defaults
	engine      Engine
	providers   map[string]routing.Provider
	geometry    bool
	created     time.Time
	amountSize  int
	amountFixed bool

	jobs     []model.Job
	pairs    []int
	jobIDs   map[model.JobKind]map[uint64]int
	vehicles []model.Vehicle
	vehIDs   map[uint64]bool

	durations map[string]*buffer.Matrix
	costs     map[string]*buffer.Matrix
	distances map[string]*buffer.Matrix

	// coords holds known coordinates by matrix index; coordIndex assigns
	// indices to coordinate-only locations.
	coords     map[int]model.Coordinates
	coordIndex map[model.Coordinates]int
	maxIndex   int
	indexed    bool
	coordOnly  bool
}

// New returns an empty Input.
func New(opts Options) (*Input, error) {
	in := &Input{
		defaults:   opts.Defaults.Fill(),
		engine:     opts.Engine,
		providers:  map[string]routing.Provider{},
		geometry:   opts.Geometry,
		created:    time.Now(),
		jobIDs:     map[model.JobKind]map[uint64]int{},
		vehIDs:     map[uint64]bool{},
		durations:  map[string]*buffer.Matrix{},
		costs:      map[string]*buffer.Matrix{},
		distances:  map[string]*buffer.Matrix{},
		coords:     map[int]model.Coordinates{},
		coordIndex: map[model.Coordinates]int{},
		maxIndex:   -1,
	}
	if in.engine == nil {
		in.engine = opt.Engine{}
	}
	if opts.AmountSize > 0 {
		in.amountSize, in.amountFixed = opts.AmountSize, true
	}
	kind := opts.Router
	if kind == 0 {
		kind = routing.OSRM
	}
	for profile, srv := range opts.Servers {
		p, err := routing.New(kind, srv, opts.RouterOptions...)
		if err != nil {
			return nil, vrperr.Wrap(vrperr.KindInput, err, "problem: router")
		}
		if opts.Cache != nil {
			p = &routing.Cached{Provider: p, Cache: opts.Cache, Name: kind.String()}
		}
		in.providers[profile] = p
	}
	for profile, p := range opts.Providers {
		in.providers[profile] = p
	}
	return in, nil
}

// SetAmountSize fixes the amount dimensionality. It fails once a different
// size is in use.
func (in *Input) SetAmountSize(n int) error {
	if n < 0 {
		return vrperr.Inputf("negative amount size %d", n)
	}
	if in.amountFixed && in.amountSize != n {
		return vrperr.Inputf("amount size already fixed to %d", in.amountSize)
	}
	in.amountSize, in.amountFixed = n, true
	return nil
}

func (in *Input) SetGeometry(on bool) { in.geometry = on }

// pendingAmount is the amount size a registration in progress would fix.
// It only reaches the Input once the registration succeeds.
type pendingAmount struct {
	size int
	set  bool
}

func (in *Input) amountSizeWith(pa pendingAmount) (int, bool) {
	if in.amountFixed {
		return in.amountSize, true
	}
	return pa.size, pa.set
}

// checkAmount validates a against the amount size, fixed or pending. Empty
// job amounts are accepted as zero; capacities (fixes == true) always take
// part.
func (in *Input) checkAmount(pa *pendingAmount, what string, a buffer.Amount, fixes bool) error {
	size, ok := in.amountSizeWith(*pa)
	if !ok {
		if len(a) == 0 && !fixes {
			return nil
		}
		pa.size, pa.set = len(a), true
		return nil
	}
	if len(a) != 0 && len(a) != size || len(a) == 0 && fixes && size != 0 {
		return vrperr.Inputf("inconsistent %s length: %d instead of %d", what, len(a), size)
	}
	return nil
}

func (in *Input) commitAmount(pa pendingAmount) {
	if pa.set && !in.amountFixed {
		in.amountSize, in.amountFixed = pa.size, true
	}
}

// checkID rejects ids that do not fit the signed columns of step records.
func checkID(what string, id uint64) error {
	if id > math.MaxInt64 {
		return vrperr.Inputf("%s id %d exceeds %d", what, id, int64(math.MaxInt64))
	}
	return nil
}

// place assigns a matrix index to l and records its coordinates.
func (in *Input) place(l *model.Location) {
	if l.HasIndex {
		in.indexed = true
	} else {
		in.coordOnly = true
		idx, ok := in.coordIndex[*l.Coords]
		if !ok {
			idx = len(in.coordIndex)
			in.coordIndex[*l.Coords] = idx
		}
		l.Index, l.HasIndex = idx, true
	}
	if l.Coords != nil {
		in.coords[l.Index] = *l.Coords
	}
	in.maxIndex = max(in.maxIndex, l.Index)
}

func (in *Input) registerJob(j model.Job) (int, error) {
	if err := checkID(j.Kind.String(), j.ID); err != nil {
		return 0, err
	}
	if err := j.Validate(); err != nil {
		return 0, vrperr.Wrap(vrperr.KindInput, err, "invalid job")
	}
	if j.Location.HasIndex && j.Location.Index < 0 {
		return 0, vrperr.Inputf("%s %d: negative location index", j.Kind, j.ID)
	}
	if _, dup := in.jobIDs[j.Kind][j.ID]; dup {
		return 0, vrperr.Inputf("duplicate %s id: %d", j.Kind, j.ID)
	}
	tws, err := model.NormalizeWindows(j.TimeWindows)
	if err != nil {
		return 0, vrperr.Wrap(vrperr.KindInput, err, fmt.Sprintf("%s %d", j.Kind, j.ID))
	}
	j.TimeWindows = tws
	if j.Location.Coords != nil {
		c := *j.Location.Coords
		j.Location.Coords = &c
	}
	in.place(&j.Location)

	idx := len(in.jobs)
	if in.jobIDs[j.Kind] == nil {
		in.jobIDs[j.Kind] = map[uint64]int{}
	}
	in.jobIDs[j.Kind][j.ID] = idx
	in.jobs = append(in.jobs, j)
	in.pairs = append(in.pairs, -1)
	return idx, nil
}

// AddJob registers a single job.
func (in *Input) AddJob(j model.Job) error {
	j.Kind = model.Single
	var pa pendingAmount
	if err := in.checkAmount(&pa, "delivery", j.Delivery, false); err != nil {
		return err
	}
	if err := in.checkAmount(&pa, "pickup", j.Pickup, false); err != nil {
		return err
	}
	if _, err := in.registerJob(j); err != nil {
		return err
	}
	in.commitAmount(pa)
	return nil
}

// AddShipment registers a pickup and its delivery. The pickup carries the
// shipment amount in Pickup, the delivery in Delivery; both must match, as
// must skills and priority.
func (in *Input) AddShipment(pickup, delivery model.Job) error {
	pickup.Kind, delivery.Kind = model.Pickup, model.Delivery
	if len(pickup.Pickup) != len(delivery.Delivery) || !pickup.Pickup.Equal(delivery.Delivery) {
		return vrperr.Inputf("shipment %d/%d: pickup and delivery amounts differ", pickup.ID, delivery.ID)
	}
	if !pickup.Skills.Equal(delivery.Skills) || pickup.Priority != delivery.Priority {
		return vrperr.Inputf("shipment %d/%d: pickup and delivery skills or priority differ", pickup.ID, delivery.ID)
	}
	if len(pickup.Delivery) != 0 || len(delivery.Pickup) != 0 {
		return vrperr.Inputf("shipment %d/%d: amount set on the wrong side", pickup.ID, delivery.ID)
	}
	var pa pendingAmount
	if err := in.checkAmount(&pa, "amount", pickup.Pickup, false); err != nil {
		return err
	}
	if err := checkID("delivery", delivery.ID); err != nil {
		return err
	}
	if _, dup := in.jobIDs[model.Delivery][delivery.ID]; dup {
		return vrperr.Inputf("duplicate delivery id: %d", delivery.ID)
	}
	if err := delivery.Validate(); err != nil {
		return vrperr.Wrap(vrperr.KindInput, err, "invalid job")
	}
	if delivery.Location.HasIndex && delivery.Location.Index < 0 {
		return vrperr.Inputf("delivery %d: negative location index", delivery.ID)
	}
	if _, err := model.NormalizeWindows(delivery.TimeWindows); err != nil {
		return vrperr.Wrap(vrperr.KindInput, err, fmt.Sprintf("delivery %d", delivery.ID))
	}
	pi, err := in.registerJob(pickup)
	if err != nil {
		return err
	}
	di, err := in.registerJob(delivery)
	if err != nil {
		return err
	}
	in.pairs[pi], in.pairs[di] = di, pi
	in.commitAmount(pa)
	return nil
}

// AddVehicle registers v after resolving its zero fields against the
// defaults table.
func (in *Input) AddVehicle(v model.Vehicle) error {
	v = in.defaults.ApplyVehicle(v)
	if err := checkID("vehicle", v.ID); err != nil {
		return err
	}
	for _, b := range v.Breaks {
		if err := checkID(fmt.Sprintf("vehicle %d break", v.ID), b.ID); err != nil {
			return err
		}
	}
	if err := v.Validate(); err != nil {
		return vrperr.Wrap(vrperr.KindInput, err, "invalid vehicle")
	}
	if v.Start == nil && v.End == nil {
		return vrperr.Inputf("vehicle %d: no start or end", v.ID)
	}
	if in.vehIDs[v.ID] {
		return vrperr.Inputf("duplicate vehicle id: %d", v.ID)
	}
	var pa pendingAmount
	if err := in.checkAmount(&pa, "capacity", v.Capacity, true); err != nil {
		return err
	}
	size, _ := in.amountSizeWith(pa)
	for _, b := range v.Breaks {
		if len(b.MaxLoad) != 0 && len(b.MaxLoad) != size {
			return vrperr.Inputf("vehicle %d break %d: inconsistent max_load length", v.ID, b.ID)
		}
	}
	for _, l := range []**model.Location{&v.Start, &v.End} {
		if *l == nil {
			continue
		}
		loc := **l
		if loc.Coords != nil {
			c := *loc.Coords
			loc.Coords = &c
		}
		if loc.HasIndex && loc.Index < 0 {
			return vrperr.Inputf("vehicle %d: negative location index", v.ID)
		}
		in.place(&loc)
		*l = &loc
	}
	v.Breaks = append([]model.Break(nil), v.Breaks...)
	for i := range v.Breaks {
		tws, err := model.NormalizeWindows(v.Breaks[i].TimeWindows)
		if err != nil {
			return vrperr.Wrap(vrperr.KindInput, err, fmt.Sprintf("vehicle %d break %d", v.ID, v.Breaks[i].ID))
		}
		v.Breaks[i].TimeWindows = tws
	}
	in.commitAmount(pa)
	in.vehIDs[v.ID] = true
	in.vehicles = append(in.vehicles, v)
	return nil
}

func (in *Input) setMatrix(dst map[string]*buffer.Matrix, what, profile string, m *buffer.Matrix) error {
	if m == nil {
		return vrperr.Inputf("nil %s matrix for profile %q", what, profile)
	}
	dst[profile] = m
	return nil
}

func (in *Input) SetDurationsMatrix(profile string, m *buffer.Matrix) error {
	return in.setMatrix(in.durations, "durations", profile, m)
}

func (in *Input) SetCostsMatrix(profile string, m *buffer.Matrix) error {
	return in.setMatrix(in.costs, "costs", profile, m)
}

func (in *Input) SetDistancesMatrix(profile string, m *buffer.Matrix) error {
	return in.setMatrix(in.distances, "distances", profile, m)
}

// ZeroAmount is the all-zero amount of the current dimensionality.
func (in *Input) ZeroAmount() buffer.Amount { return buffer.NewAmount(in.amountSize) }

func (in *Input) AmountSize() int { return in.amountSize }

func (in *Input) HasJobs() bool {
	for _, j := range in.jobs {
		if j.Kind == model.Single {
			return true
		}
	}
	return false
}

func (in *Input) HasShipments() bool {
	for _, j := range in.jobs {
		if j.Kind != model.Single {
			return true
		}
	}
	return false
}

func (in *Input) HasSkills() bool {
	for _, j := range in.jobs {
		if len(j.Skills) > 0 {
			return true
		}
	}
	for _, v := range in.vehicles {
		if len(v.Skills) > 0 {
			return true
		}
	}
	return false
}

// HasHomogeneousLocations reports whether all vehicles share start and end.
func (in *Input) HasHomogeneousLocations() bool {
	for _, v := range in.vehicles {
		if !v.SameLocations(in.vehicles[0]) {
			return false
		}
	}
	return true
}

func (in *Input) HasHomogeneousProfiles() bool {
	for _, v := range in.vehicles {
		if !v.SameProfile(in.vehicles[0]) {
			return false
		}
	}
	return true
}

func (in *Input) HasHomogeneousCosts() bool {
	for _, v := range in.vehicles {
		if v.Costs != in.vehicles[0].Costs {
			return false
		}
	}
	return true
}

// Jobs returns the registered jobs, shipments as consecutive pickup and
// delivery.
func (in *Input) Jobs() []model.Job { return append([]model.Job(nil), in.jobs...) }

func (in *Input) Vehicles() []model.Vehicle { return append([]model.Vehicle(nil), in.vehicles...) }

// Profiles lists the vehicle profiles in use, sorted.
func (in *Input) Profiles() []string {
	seen := map[string]bool{}
	var out []string
	for _, v := range in.vehicles {
		if !seen[v.Profile] {
			seen[v.Profile] = true
			out = append(out, v.Profile)
		}
	}
	sort.Strings(out)
	return out
}
