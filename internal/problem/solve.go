package problem

import (
	"context"
	"fmt"
	"maps"
	"time"

	"vroomgo/internal/buffer"
	"vroomgo/internal/metrics"
	"vroomgo/internal/model"
	"vroomgo/internal/obs"
	"vroomgo/internal/opt"
	"vroomgo/internal/routing"
	"vroomgo/internal/solution"
	"vroomgo/internal/vrperr"
)

// SolveOptions control one Solve call.
type SolveOptions struct {
	ExplorationLevel int
	// Threads bounds parallel searches; it must be at least 1.
	Threads int
	// Timeout is a soft limit on search time. Zero means unbounded.
	Timeout time.Duration
	// Heuristics replace the default search policy when non-empty.
	Heuristics []opt.HeuristicParams
	Seed       int64
}

func (o SolveOptions) validate() error {
	if o.ExplorationLevel < 0 {
		return vrperr.Inputf("exploration level %d must be >= 0", o.ExplorationLevel)
	}
	if o.Threads < 1 {
		return vrperr.Inputf("thread count %d must be >= 1", o.Threads)
	}
	if o.Timeout < 0 {
		return vrperr.Inputf("negative timeout %s", o.Timeout)
	}
	for _, h := range o.Heuristics {
		if err := h.Validate(); err != nil {
			return vrperr.Wrap(vrperr.KindInput, err, "heuristic parameters")
		}
	}
	return nil
}

// Solve checks the problem, fetches missing matrices, runs the engine and
// assembles the solution. Failures are classified: Input for invalid
// problems or options, Routing when a provider fails, Internal for engine
// faults.
func (in *Input) Solve(ctx context.Context, o SolveOptions) (sol *solution.Solution, err error) {
	start := time.Now()
	defer obs.Time(ctx, "problem.solve")(&err)
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = vrperr.KindOf(err).String()
		}
		metrics.Solves.WithLabelValues(outcome).Inc()
		metrics.SolveDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	}()

	if err := o.validate(); err != nil {
		return nil, err
	}
	if err := in.Check(); err != nil {
		return nil, err
	}

	m, err := in.resolveMatrices(ctx)
	if err != nil {
		return nil, err
	}
	routingTime := time.Since(start)

	p, err := in.buildProblem(m)
	if err != nil {
		return nil, err
	}
	params := opt.Params{
		ExplorationLevel: min(o.ExplorationLevel, opt.MaxExploration),
		Threads:          o.Threads,
		Heuristics:       o.Heuristics,
		Seed:             o.Seed,
	}
	if o.Timeout > 0 {
		params.Deadline = start.Add(o.Timeout)
	}

	solveStart := time.Now()
	res, err := in.runEngine(ctx, p, params)
	if err != nil {
		return nil, err
	}
	solving := time.Since(solveStart)
	if err := in.checkAssignment(res); err != nil {
		return nil, err
	}

	sol = in.buildSolution(res)
	geoStart := time.Now()
	if in.geometry {
		if err := in.addGeometry(ctx, sol); err != nil {
			return nil, err
		}
	}
	routingTime += time.Since(geoStart)

	sol.Summary.ComputingTimes = solution.ComputingTimes{
		Loading: start.Sub(in.created).Milliseconds(),
		Solving: solving.Milliseconds(),
		Routing: routingTime.Milliseconds(),
	}
	sol.Summarize(in.amountSize)
	return sol, nil
}

type matrices struct {
	durations map[string]*buffer.Matrix
	costs     map[string]*buffer.Matrix
	distances map[string]*buffer.Matrix
}

// resolveMatrices completes the explicit matrices with provider results for
// profiles that have none. Input itself is left untouched.
func (in *Input) resolveMatrices(ctx context.Context) (_ matrices, err error) {
	m := matrices{
		durations: maps.Clone(in.durations),
		costs:     maps.Clone(in.costs),
		distances: maps.Clone(in.distances),
	}
	var coords []model.Coordinates
	for _, profile := range in.Profiles() {
		if m.durations[profile] != nil {
			continue
		}
		if coords == nil {
			coords, _ = in.coordinateList()
			defer obs.Time(ctx, "problem.matrices")(&err)
		}
		got, err := in.providers[profile].Matrices(ctx, profile, coords)
		if err != nil {
			return matrices{}, vrperr.Wrap(vrperr.KindRouting, err, fmt.Sprintf("profile %q", profile))
		}
		if got.Durations == nil || got.Durations.Size() != len(coords) {
			return matrices{}, vrperr.Routingf("profile %q: router returned %d rows for %d locations", profile, got.Durations.Size(), len(coords))
		}
		m.durations[profile] = got.Durations
		if got.Distances != nil {
			m.distances[profile] = got.Distances
		}
	}
	return m, nil
}

func (in *Input) sized(a buffer.Amount) buffer.Amount {
	if len(a) == 0 {
		return in.ZeroAmount()
	}
	return a.Clone()
}

func (in *Input) buildProblem(m matrices) (*opt.Problem, error) {
	penalty, err := in.costUpperBound(m.durations, m.costs, m.distances)
	if err != nil {
		return nil, err
	}
	fs, err := in.forcedSteps()
	if err != nil {
		return nil, err
	}
	p := &opt.Problem{
		Tasks:      make([]opt.Task, len(in.jobs)),
		Vehicles:   make([]opt.Vehicle, len(in.vehicles)),
		Durations:  m.durations,
		Costs:      m.costs,
		Distances:  m.distances,
		AmountSize: in.amountSize,
		Penalty:    penalty,
	}
	for i, j := range in.jobs {
		p.Tasks[i] = opt.Task{
			Index:    j.Location.Index,
			Kind:     j.Kind,
			Setup:    j.Setup,
			Service:  j.Service,
			Delivery: in.sized(j.Delivery),
			Pickup:   in.sized(j.Pickup),
			Skills:   j.Skills,
			Priority: int64(j.Priority),
			Windows:  j.TimeWindows,
			Pair:     in.pairs[i],
		}
	}
	for vi, v := range in.vehicles {
		ov := opt.Vehicle{
			Start:         -1,
			End:           -1,
			Profile:       v.Profile,
			Capacity:      in.sized(v.Capacity),
			Skills:        v.Skills,
			Window:        v.TimeWindow,
			Fixed:         v.Costs.Fixed,
			PerHour:       v.Costs.PerHour,
			PerKm:         v.Costs.PerKm,
			SpeedFactor:   v.SpeedFactor,
			MaxTasks:      v.MaxTasks,
			MaxTravelTime: v.MaxTravelTime,
			MaxDistance:   v.MaxDistance,
		}
		if v.Start != nil {
			ov.Start = v.Start.Index
		}
		if v.End != nil {
			ov.End = v.End.Index
		}
		for _, b := range v.Breaks {
			ob := opt.Break{Windows: b.TimeWindows, Service: b.Service}
			if len(b.MaxLoad) > 0 {
				ob.MaxLoad = b.MaxLoad.Clone()
			}
			ov.Breaks = append(ov.Breaks, ob)
		}
		for _, f := range fs[vi] {
			ov.Forced = append(ov.Forced, opt.Forced{Task: f.job, Window: f.window})
		}
		p.Vehicles[vi] = ov
	}
	return p, nil
}

// runEngine turns engine errors and panics into Internal errors.
func (in *Input) runEngine(ctx context.Context, p *opt.Problem, params opt.Params) (res opt.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = vrperr.Internalf("engine: %v", r)
		}
	}()
	res, err = in.engine.Solve(ctx, p, params)
	if err != nil {
		return opt.Result{}, vrperr.Wrap(vrperr.KindInternal, err, "engine")
	}
	return res, nil
}

// checkAssignment enforces that every job is either in exactly one route or
// unassigned.
func (in *Input) checkAssignment(res opt.Result) error {
	seen := make([]int, len(in.jobs))
	count := func(ti int) error {
		if ti < 0 || ti >= len(seen) {
			return vrperr.Internalf("engine returned unknown task %d", ti)
		}
		seen[ti]++
		return nil
	}
	for _, r := range res.Routes {
		if r.Vehicle < 0 || r.Vehicle >= len(in.vehicles) {
			return vrperr.Internalf("engine returned unknown vehicle %d", r.Vehicle)
		}
		for _, ti := range r.Tasks {
			if err := count(ti); err != nil {
				return err
			}
		}
	}
	for _, ti := range res.Unassigned {
		if err := count(ti); err != nil {
			return err
		}
	}
	for ti, n := range seen {
		if n != 1 {
			j := in.jobs[ti]
			return vrperr.Internalf("%s %d appears %d times in the solution", j.Kind, j.ID, n)
		}
	}
	return nil
}

func (in *Input) locationAt(idx int) *model.Location {
	if idx < 0 {
		return nil
	}
	l := model.AtIndex(idx)
	if c, ok := in.coords[idx]; ok {
		l.Coords = &c
	}
	return &l
}

func (in *Input) buildSolution(res opt.Result) *solution.Solution {
	sol := &solution.Solution{}
	for _, r := range res.Routes {
		v := in.vehicles[r.Vehicle]
		route := solution.Route{
			Vehicle:     v.ID,
			Cost:        r.Cost,
			Setup:       r.Setup,
			Service:     r.Service,
			Duration:    r.Duration,
			WaitingTime: r.Waiting,
			Priority:    r.Priority,
			Distance:    r.Distance,
			Delivery:    r.Delivery,
			Pickup:      r.Pickup,
			Profile:     v.Profile,
			Description: v.Description,
			Violations:  r.Violations,
		}
		for _, st := range r.Stops {
			step := solution.Step{
				Arrival:     st.Arrival,
				Duration:    st.Duration,
				Distance:    st.Distance,
				Setup:       st.Setup,
				Service:     st.Service,
				WaitingTime: st.Waiting,
				Load:        st.Load,
				Violations:  st.Violations,
			}
			switch st.Kind {
			case opt.StopStart:
				step.Type = solution.Start
				step.Location = in.locationAt(st.Location)
			case opt.StopEnd:
				step.Type = solution.End
				step.Location = in.locationAt(st.Location)
			case opt.StopBreak:
				b := v.Breaks[st.Ref]
				step.Type, step.ID, step.Description = solution.Break, b.ID, b.Description
			case opt.StopTask:
				j := in.jobs[st.Ref]
				step.Type, step.JobKind, step.ID, step.Description = solution.Job, j.Kind, j.ID, j.Description
				step.Location = in.locationAt(j.Location.Index)
			}
			route.Steps = append(route.Steps, step)
		}
		sol.Routes = append(sol.Routes, route)
	}
	for _, ti := range res.Unassigned {
		j := in.jobs[ti]
		sol.Unassigned = append(sol.Unassigned, solution.Unassigned{
			ID: j.ID, Kind: j.Kind, Location: *in.locationAt(j.Location.Index), Description: j.Description,
		})
	}
	return sol
}

// addGeometry sets route geometries from the profile's router, or a
// straight-line polyline through the stops when there is none.
func (in *Input) addGeometry(ctx context.Context, sol *solution.Solution) (err error) {
	defer obs.Time(ctx, "problem.geometry")(&err)
	for i := range sol.Routes {
		r := &sol.Routes[i]
		var locs []model.Coordinates
		for _, st := range r.Steps {
			if st.Location != nil && st.Location.Coords != nil {
				locs = append(locs, *st.Location.Coords)
			}
		}
		router, ok := routing.AsRouter(in.providers[r.Profile])
		if !ok || len(locs) < 2 {
			r.Geometry = routing.EncodePolyline(locs)
			continue
		}
		g, err := router.Route(ctx, r.Profile, locs)
		if err != nil {
			return vrperr.Wrap(vrperr.KindRouting, err, "route geometry")
		}
		r.Geometry = g.Polyline
		if r.Distance == 0 {
			r.Distance = g.Distance
		}
	}
	return nil
}
