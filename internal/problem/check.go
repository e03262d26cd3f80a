package problem

import (
	"math"

	"vroomgo/internal/buffer"
	"vroomgo/internal/model"
	"vroomgo/internal/vrperr"
)

// matrixSize is the dimension travel matrices need to cover every location.
func (in *Input) matrixSize() int { return in.maxIndex + 1 }

// coordinateList returns the coordinates of indices 0..matrixSize()-1, or
// false when some index has none.
func (in *Input) coordinateList() ([]model.Coordinates, bool) {
	n := in.matrixSize()
	out := make([]model.Coordinates, n)
	for i := range out {
		c, ok := in.coords[i]
		if !ok {
			return nil, false
		}
		out[i] = c
	}
	return out, true
}

// Check validates the whole problem. Every failure is an Input error.
func (in *Input) Check() error {
	if len(in.vehicles) == 0 {
		return vrperr.Inputf("no vehicles")
	}
	if in.indexed && in.coordOnly {
		return vrperr.Inputf("mixing locations with and without index")
	}
	_, haveCoords := in.coordinateList()
	if in.geometry && !haveCoords {
		return vrperr.Inputf("route geometry request with missing coordinates")
	}
	for _, profile := range in.Profiles() {
		if err := in.checkProfile(profile, haveCoords); err != nil {
			return err
		}
	}
	_, err := in.forcedSteps()
	return err
}

func (in *Input) checkProfile(profile string, haveCoords bool) error {
	d := in.durations[profile]
	if d == nil {
		if _, ok := in.providers[profile]; !ok {
			return vrperr.Inputf("no durations matrix or routing server for profile %q", profile)
		}
		if !haveCoords {
			return vrperr.Inputf("profile %q needs coordinates for every location to query the router", profile)
		}
		if in.costs[profile] != nil || in.distances[profile] != nil {
			return vrperr.Inputf("profile %q: costs or distances matrix without durations", profile)
		}
		return nil
	}
	need := in.matrixSize()
	for what, m := range map[string]*buffer.Matrix{"durations": d, "costs": in.costs[profile], "distances": in.distances[profile]} {
		if m == nil {
			continue
		}
		if m.Size() != d.Size() {
			return vrperr.Inputf("profile %q: %s matrix size %d differs from durations size %d", profile, what, m.Size(), d.Size())
		}
		if need > m.Size() {
			return vrperr.Inputf("location index %d exceeds %s matrix size %d for profile %q", need-1, what, m.Size(), profile)
		}
	}
	return nil
}

// forced is a resolved imposed step: a job index plus its service window.
type forced struct {
	job    int
	window model.TimeWindow
}

// forcedSteps resolves every vehicle's imposed job steps. Start, end and
// break steps only take part in validation.
func (in *Input) forcedSteps() ([][]forced, error) {
	out := make([][]forced, len(in.vehicles))
	owner := map[int]uint64{}
	for vi, v := range in.vehicles {
		breaks := map[uint64]bool{}
		for _, b := range v.Breaks {
			breaks[b.ID] = true
		}
		for _, st := range v.Steps {
			if st.Kind == model.StepBreak {
				if !breaks[st.ID] {
					return nil, vrperr.Inputf("vehicle %d: step references unknown break %d", v.ID, st.ID)
				}
				continue
			}
			kind, ok := st.Kind.JobKind()
			if !ok {
				continue
			}
			ji, ok := in.jobIDs[kind][st.ID]
			if !ok {
				return nil, vrperr.Inputf("vehicle %d: step references unknown %s %d", v.ID, kind, st.ID)
			}
			if prev, dup := owner[ji]; dup {
				return nil, vrperr.Inputf("%s %d imposed on vehicles %d and %d", kind, st.ID, prev, v.ID)
			}
			w := st.Forced.Window()
			if err := w.Validate(); err != nil {
				return nil, vrperr.Wrap(vrperr.KindInput, err, "forced service")
			}
			owner[ji] = v.ID
			out[vi] = append(out[vi], forced{job: ji, window: w})
		}
	}
	return out, nil
}

// CostUpperBound exceeds the cost of any plan assigning every job, using the
// explicit matrices. It fails when a profile has none yet.
func (in *Input) CostUpperBound() (int64, error) {
	return in.costUpperBound(in.durations, in.costs, in.distances)
}

func (in *Input) costUpperBound(durations, costs, distances map[string]*buffer.Matrix) (int64, error) {
	var fixed, edge int64
	for _, v := range in.vehicles {
		d := durations[v.Profile]
		if d == nil {
			return 0, vrperr.Inputf("no durations matrix for profile %q", v.Profile)
		}
		var e int64
		if c := costs[v.Profile]; c != nil {
			e = int64(c.Max())
		} else {
			travel := int64(math.Ceil(float64(d.Max()) / v.SpeedFactor))
			p, ok := mul(travel, v.Costs.PerHour)
			if !ok {
				return 0, vrperr.Inputf("cost upper bound overflow")
			}
			e = p/3600 + 1
		}
		if dist := distances[v.Profile]; dist != nil {
			p, ok := mul(int64(dist.Max()), v.Costs.PerKm)
			if !ok {
				return 0, vrperr.Inputf("cost upper bound overflow")
			}
			e += p/1000 + 1
		}
		edge = max(edge, e)
		if fixed > math.MaxInt64-v.Costs.Fixed {
			return 0, vrperr.Inputf("cost upper bound overflow")
		}
		fixed += v.Costs.Fixed
	}
	edges := int64(len(in.jobs) + len(in.vehicles))
	total, ok := mul(edges, edge)
	if !ok || fixed > math.MaxInt64-total-1 {
		return 0, vrperr.Inputf("cost upper bound overflow")
	}
	bound := fixed + total + 1
	// The objective adds the bound once per unassigned job.
	if _, ok := mul(bound, int64(len(in.jobs))+1); !ok {
		return 0, vrperr.Inputf("cost upper bound overflow")
	}
	return bound, nil
}

func mul(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	if a < 0 || b < 0 || a > math.MaxInt64/b {
		return 0, false
	}
	return a * b, true
}
