package opt

import (
	"math"

	"vroomgo/internal/buffer"
	"vroomgo/internal/model"
	"vroomgo/internal/violation"
)

type StopKind uint8

const (
	StopStart StopKind = iota
	StopEnd
	StopBreak
	StopTask
)

// Stop is one timed step of a scheduled route. Ref is the task index for
// StopTask, the break index within the vehicle for StopBreak and -1
// otherwise. Duration and Distance accumulate travel up to the arrival.
type Stop struct {
	Kind       StopKind
	Ref        int
	Location   int
	Arrival    int64
	Duration   int64
	Distance   int64
	Setup      int64
	Service    int64
	Waiting    int64
	Load       buffer.Amount
	Violations violation.Violations
}

// Route is the schedule of one vehicle serving Tasks in order.
type Route struct {
	Vehicle    int
	Tasks      []int
	Stops      []Stop
	Cost       int64
	Duration   int64
	Distance   int64
	Setup      int64
	Service    int64
	Waiting    int64
	Priority   int64
	Delivery   buffer.Amount
	Pickup     buffer.Amount
	Violations violation.Violations
}

// Feasible reports whether the schedule violates no constraint.
func (r *Route) Feasible() bool { return r.Violations.IsZero() }

// prepare derives per-task lookup tables. Safe to call more than once.
func (p *Problem) prepare() {
	if p.windows != nil {
		return
	}
	p.windows = make([][]model.TimeWindow, len(p.Tasks))
	p.forced = map[int]model.TimeWindow{}
	for ti := range p.Tasks {
		t := &p.Tasks[ti]
		if len(t.Windows) == 0 {
			t.Windows = []model.TimeWindow{model.DefaultTimeWindow()}
		}
		if t.Delivery == nil {
			t.Delivery = buffer.NewAmount(p.AmountSize)
		}
		if t.Pickup == nil {
			t.Pickup = buffer.NewAmount(p.AmountSize)
		}
		p.windows[ti] = t.Windows
	}
	for vi := range p.Vehicles {
		v := &p.Vehicles[vi]
		if v.Window == nil {
			tw := model.DefaultTimeWindow()
			v.Window = &tw
		}
		if v.Capacity == nil {
			v.Capacity = buffer.NewAmount(p.AmountSize)
		}
		if v.SpeedFactor <= 0 {
			v.SpeedFactor = 1
		}
		if v.MaxTasks <= 0 {
			v.MaxTasks = math.MaxInt
		}
		if v.MaxTravelTime <= 0 {
			v.MaxTravelTime = math.MaxInt64
		}
		if v.MaxDistance <= 0 {
			v.MaxDistance = math.MaxInt64
		}
		for bi := range v.Breaks {
			if len(v.Breaks[bi].Windows) == 0 {
				v.Breaks[bi].Windows = []model.TimeWindow{model.DefaultTimeWindow()}
			}
		}
	}
	for _, v := range p.Vehicles {
		for _, f := range v.Forced {
			p.forced[f.Task] = f.Window
			p.windows[f.Task] = intersect(p.Tasks[f.Task].Windows, f.Window)
		}
	}
}

// intersect clips every window of tws to w. If nothing is left, the forced
// window alone applies.
func intersect(tws []model.TimeWindow, w model.TimeWindow) []model.TimeWindow {
	var out []model.TimeWindow
	for _, tw := range tws {
		s, e := max(tw.Start, w.Start), min(tw.End, w.End)
		if s <= e {
			out = append(out, model.TimeWindow{Start: s, End: e})
		}
	}
	if len(out) == 0 {
		out = []model.TimeWindow{w}
	}
	return out
}

// earliest returns the first instant >= t lying in one of tws.
func earliest(tws []model.TimeWindow, t int64) (int64, bool) {
	for _, tw := range tws {
		if tw.End >= t {
			return max(t, tw.Start), true
		}
	}
	return 0, false
}

func (p *Problem) serviceStart(ti int, arrival int64) int64 {
	if s, ok := earliest(p.windows[ti], arrival); ok {
		return s
	}
	return arrival
}

// windowViolations measures how far begin falls outside tws.
func windowViolations(tws []model.TimeWindow, begin int64) violation.Violations {
	var out violation.Violations
	if len(tws) == 0 {
		return out
	}
	for _, tw := range tws {
		if tw.Contains(begin) {
			return out
		}
	}
	if begin < tws[0].Start {
		out.Add(violation.LeadTime, tws[0].Start-begin)
		return out
	}
	last := tws[0]
	for _, tw := range tws {
		if tw.End < begin {
			last = tw
		}
	}
	out.Add(violation.Delay, begin-last.End)
	return out
}

func (p *Problem) taskViolations(ti int, begin int64) violation.Violations {
	out := windowViolations(p.Tasks[ti].Windows, begin)
	if fw, ok := p.forced[ti]; ok {
		fv := windowViolations([]model.TimeWindow{fw}, begin)
		out.LeadTime = max(out.LeadTime, fv.LeadTime)
		out.Delay = max(out.Delay, fv.Delay)
		out.Kinds = out.Kinds.Union(fv.Kinds)
	}
	return out
}

// Schedule times vehicle vi serving tasks in the given order. Breaks are
// inserted greedily: a pending break is taken before travelling to the next
// task when it fits in the waiting time there, or when postponing it past
// that task would leave none of its windows reachable.
func (p *Problem) Schedule(vi int, tasks []int) Route {
	p.prepare()
	v := &p.Vehicles[vi]
	r := Route{
		Vehicle:  vi,
		Tasks:    tasks,
		Delivery: buffer.NewAmount(p.AmountSize),
		Pickup:   buffer.NewAmount(p.AmountSize),
	}

	load := buffer.NewAmount(p.AmountSize)
	for _, ti := range tasks {
		if t := &p.Tasks[ti]; t.Kind == model.Single {
			load.AddInPlace(t.Delivery)
		}
	}

	prev := v.Start
	here := prev
	if here < 0 && len(tasks) > 0 {
		here = p.Tasks[tasks[0]].Index
	}
	now := v.Window.Start
	var travel, dist, custom int64
	var hasCustom bool

	start := Stop{Kind: StopStart, Ref: -1, Location: here, Arrival: now, Load: load.Clone()}
	if !load.IsAtMost(v.Capacity) {
		start.Violations.Add(violation.Load, 0)
	}
	r.Stops = append(r.Stops, start)

	pending, missing := 0, 0
	takeBreaks := func(next int) {
		for pending < len(v.Breaks) {
			b := &v.Breaks[pending]
			bs, ok := earliest(b.Windows, now)
			if !ok {
				missing++
				pending++
				continue
			}
			if next >= 0 {
				nt := &p.Tasks[next]
				leg := p.travel(v, prev, nt.Index)
				ns := p.serviceStart(next, now+leg)
				finish := ns + nt.Service
				if prev != nt.Index {
					finish += nt.Setup
				}
				_, later := earliest(b.Windows, finish)
				fits := bs+b.Service+leg <= ns
				if later && !fits {
					return
				}
			}
			s := Stop{
				Kind: StopBreak, Ref: pending, Location: here,
				Arrival: now, Duration: travel, Distance: dist,
				Waiting: bs - now, Service: b.Service, Load: load.Clone(),
			}
			if b.MaxLoad != nil && !load.IsAtMost(b.MaxLoad) {
				s.Violations.Add(violation.MaxLoad, 0)
			}
			now = bs + b.Service
			r.Stops = append(r.Stops, s)
			pending++
		}
	}

	pickupStop := map[int]int{}
	delivered := map[int]bool{}
	for k, ti := range tasks {
		t := &p.Tasks[ti]
		takeBreaks(ti)

		leg := p.travel(v, prev, t.Index)
		now += leg
		travel += leg
		dist += p.distance(v, prev, t.Index)
		if c, ok := p.edgeCost(v, prev, t.Index); ok {
			custom += c
			hasCustom = true
		}

		s := Stop{Kind: StopTask, Ref: ti, Location: t.Index, Arrival: now, Duration: travel, Distance: dist, Service: t.Service}
		if prev != t.Index {
			s.Setup = t.Setup
		}
		begin := p.serviceStart(ti, now)
		s.Waiting = begin - now
		s.Violations = p.taskViolations(ti, begin)
		now = begin + s.Setup + s.Service

		switch t.Kind {
		case model.Single:
			load.SubInPlace(t.Delivery)
			load.AddInPlace(t.Pickup)
		case model.Pickup:
			load.AddInPlace(t.Pickup)
			pickupStop[ti] = len(r.Stops)
		case model.Delivery:
			load.SubInPlace(t.Delivery)
			if _, ok := pickupStop[t.Pair]; ok {
				delivered[t.Pair] = true
			} else {
				s.Violations.Add(violation.Precedence, 0)
			}
		}
		s.Load = load.Clone()
		if !load.IsAtMost(v.Capacity) {
			s.Violations.Add(violation.Load, 0)
		}
		if !t.Skills.SubsetOf(v.Skills) {
			s.Violations.Add(violation.Skills, 0)
		}
		if k+1 > v.MaxTasks {
			s.Violations.Add(violation.MaxTasks, 0)
		}

		r.Stops = append(r.Stops, s)
		r.Setup += s.Setup
		r.Service += s.Service
		r.Waiting += s.Waiting
		r.Priority += t.Priority
		r.Delivery.AddInPlace(t.Delivery)
		r.Pickup.AddInPlace(t.Pickup)
		prev, here = t.Index, t.Index
	}
	for ti, si := range pickupStop {
		if !delivered[ti] {
			r.Stops[si].Violations.Add(violation.Precedence, 0)
		}
	}

	takeBreaks(-1)
	leg := p.travel(v, prev, v.End)
	now += leg
	travel += leg
	dist += p.distance(v, prev, v.End)
	if c, ok := p.edgeCost(v, prev, v.End); ok {
		custom += c
		hasCustom = true
	}
	if v.End >= 0 {
		here = v.End
	}
	end := Stop{Kind: StopEnd, Ref: -1, Location: here, Arrival: now, Duration: travel, Distance: dist, Load: load.Clone()}
	if now > v.Window.End {
		end.Violations.Add(violation.Delay, now-v.Window.End)
	}
	if travel > v.MaxTravelTime {
		end.Violations.Add(violation.MaxTravelTime, 0)
	}
	if dist > v.MaxDistance {
		end.Violations.Add(violation.MaxDistance, 0)
	}
	for n := missing + len(v.Breaks) - pending; n > 0; n-- {
		end.Violations.Add(violation.MissingBreak, 0)
	}
	r.Stops = append(r.Stops, end)

	for i := range r.Stops {
		r.Stops[i].Violations.MergeInto(&r.Violations)
	}
	r.Duration = travel
	r.Distance = dist
	if len(tasks) > 0 {
		r.Cost = v.Fixed + (dist*v.PerKm+500)/1000
		if hasCustom {
			r.Cost += custom
		} else {
			r.Cost += (travel*v.PerHour + 1800) / 3600
		}
	}
	return r
}
