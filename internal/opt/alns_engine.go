package opt

import (
	"context"
	"math"
	"math/rand"
	"sort"
	"time"

	"vroomgo/internal/model"
)

// state is one candidate solution: a scheduled route per vehicle plus the
// assignment flags of every task.
type state struct {
	p        *Problem
	routes   []Route
	assigned []bool
	locked   map[int]int
	// expired reports that the search must stop improving. Nil never
	// expires.
	expired func() bool
}

func (s *state) timeUp() bool { return s.expired != nil && s.expired() }

func newState(p *Problem) *state {
	s := &state{
		p:        p,
		routes:   make([]Route, len(p.Vehicles)),
		assigned: make([]bool, len(p.Tasks)),
		locked:   p.locked(),
	}
	for vi, v := range p.Vehicles {
		tasks := make([]int, 0, len(v.Forced))
		for _, f := range v.Forced {
			tasks = append(tasks, f.Task)
			s.assigned[f.Task] = true
		}
		s.routes[vi] = p.Schedule(vi, tasks)
	}
	return s
}

func (s *state) clone() *state {
	return &state{
		p:        s.p,
		routes:   append([]Route(nil), s.routes...),
		assigned: append([]bool(nil), s.assigned...),
		locked:   s.locked,
		expired:  s.expired,
	}
}

func (s *state) apply(ins insertion) {
	for _, ti := range s.routes[ins.vehicle].Tasks {
		s.assigned[ti] = false
	}
	s.routes[ins.vehicle] = ins.route
	for _, ti := range ins.route.Tasks {
		s.assigned[ti] = true
	}
}

// unassignedRequests lists requests whose tasks are in no route, in task order.
func (s *state) unassignedRequests() []request {
	var out []request
	for ti, t := range s.p.Tasks {
		if s.assigned[ti] || t.Kind == model.Delivery {
			continue
		}
		out = append(out, s.p.requestOf(ti))
	}
	return out
}

type objective struct {
	lost       int64
	unassigned int
	cost       int64
}

func (s *state) objective() objective {
	var o objective
	for i := range s.routes {
		o.cost += s.routes[i].Cost
	}
	for ti, ok := range s.assigned {
		if !ok {
			o.lost += s.p.Tasks[ti].Priority
			o.unassigned++
		}
	}
	return o
}

func (o objective) value(penalty int64) int64 { return o.cost + penalty*int64(o.unassigned) }

// better orders objectives: less lost priority first, then lower cost with
// every unassigned task charged the penalty.
func (p *Problem) better(a, b objective) bool {
	if a.lost != b.lost {
		return a.lost < b.lost
	}
	return a.value(p.Penalty) < b.value(p.Penalty)
}

// Metrics describes one search.
type Metrics struct {
	Params                HeuristicParams
	RemovalSelects        [2]int // random, shaw
	InsertSelects         [2]int // greedy, regret
	Iterations            int
	Improvements          int
	AcceptedWorse         int
	InitialCost           int64
	BestCost              int64
	FinalRemovalWeights   [2]float64
	FinalInsertionWeights [2]float64
	TimedOut              bool
}

func expiry(ctx context.Context, deadline time.Time) func() bool {
	return func() bool {
		return ctx.Err() != nil || !deadline.IsZero() && time.Now().After(deadline)
	}
}

// search runs construction followed by adaptive large neighbourhood search
// until maxIter iterations, the deadline or ctx cancellation. Every phase
// polls the deadline between moves and stops with the state reached so far.
// A complete construction (full == true) is not interrupted, so the first
// search always offers every request once.
func search(ctx context.Context, p *Problem, h HeuristicParams, seed int64, maxIter int, deadline time.Time, full bool) (*state, Metrics) {
	rng := rand.New(rand.NewSource(seed))
	expired := expiry(ctx, deadline)
	curr := newState(p)
	if !full {
		curr.expired = expired
	}
	curr.construct(h)
	curr.expired = expired
	curr.localSearch(allRoutes(len(p.Vehicles)))
	best := curr.clone()
	bestObj := best.objective()

	m := Metrics{Params: h, InitialCost: bestObj.value(p.Penalty), BestCost: bestObj.value(p.Penalty)}
	remW := []float64{1, 1}
	insW := []float64{1, 1}
	temp := math.Max(1, 0.01*float64(bestObj.cost))
	const cool = 0.995
	regret := math.Max(h.Regret, 1)

	for m.Iterations < maxIter {
		if expired() {
			break
		}
		m.Iterations++
		movable := curr.movableRequests()
		if len(movable) == 0 {
			break
		}
		k := 1 + rng.Intn(min(3, len(movable)))
		op := selectOp(remW, rng)
		m.RemovalSelects[op]++
		ip := selectOp(insW, rng)
		m.InsertSelects[ip]++

		cand := curr.clone()
		var removed []request
		switch op {
		case 0:
			removed = pickRandom(movable, k, rng)
		case 1:
			removed = cand.shawRemoval(movable, k, rng)
		}
		touched := cand.remove(removed)
		before := routeTasks(cand.routes)
		reqs := cand.unassignedRequests()
		switch ip {
		case 0:
			cand.insertRegret(reqs, 0)
		case 1:
			cand.insertRegret(reqs, regret)
		}
		touched = mergeTouched(touched, changedRoutes(before, cand.routes))
		cand.localSearch(touched)

		candObj := cand.objective()
		currObj := curr.objective()
		accept := p.better(candObj, currObj)
		if !accept && candObj.lost == currObj.lost {
			delta := float64(candObj.value(p.Penalty) - currObj.value(p.Penalty))
			accept = rng.Float64() < math.Exp(-delta/(temp+1e-9))
		}
		if accept {
			curr = cand
			if p.better(candObj, bestObj) {
				best, bestObj = cand.clone(), candObj
				remW[op] += 0.1
				insW[ip] += 0.1
				m.Improvements++
				m.BestCost = bestObj.value(p.Penalty)
			} else {
				remW[op] += 0.01
				insW[ip] += 0.01
				m.AcceptedWorse++
			}
		} else {
			remW[op] = math.Max(0.01, remW[op]*0.999)
			insW[ip] = math.Max(0.01, insW[ip]*0.999)
		}
		temp *= cool
	}
	m.TimedOut = expired()
	m.FinalRemovalWeights = [2]float64{remW[0], remW[1]}
	m.FinalInsertionWeights = [2]float64{insW[0], insW[1]}
	return best, m
}

// movableRequests lists assigned requests that are not imposed on a vehicle.
func (s *state) movableRequests() []request {
	var out []request
	for _, r := range s.routes {
		for _, ti := range r.Tasks {
			if s.p.Tasks[ti].Kind == model.Delivery {
				continue
			}
			req := s.p.requestOf(ti)
			if !s.movable(req.a) || req.b >= 0 && !s.movable(req.b) {
				continue
			}
			out = append(out, req)
		}
	}
	return out
}

func pickRandom(reqs []request, k int, rng *rand.Rand) []request {
	all := append([]request(nil), reqs...)
	out := make([]request, 0, k)
	for i := 0; i < k && len(all) > 0; i++ {
		j := rng.Intn(len(all))
		out = append(out, all[j])
		all = append(all[:j], all[j+1:]...)
	}
	return out
}

// shawRemoval picks a random request and the k-1 requests most related to
// it by travel time and time window start.
func (s *state) shawRemoval(reqs []request, k int, rng *rand.Rand) []request {
	seed := reqs[rng.Intn(len(reqs))]
	p := s.p
	v := &p.Vehicles[0]
	st := &p.Tasks[seed.a]
	type scored struct {
		r     request
		score float64
	}
	var rel []scored
	for _, r := range reqs {
		if r == seed {
			continue
		}
		t := &p.Tasks[r.a]
		geo := float64(p.travel(v, st.Index, t.Index) + p.travel(v, t.Index, st.Index))
		tw := math.Abs(float64(st.Windows[0].Start) - float64(t.Windows[0].Start))
		rel = append(rel, scored{r, geo + 0.1*math.Min(tw, 1e9)})
	}
	sort.SliceStable(rel, func(i, j int) bool { return rel[i].score < rel[j].score })
	out := []request{seed}
	for i := 0; i < len(rel) && len(out) < k; i++ {
		out = append(out, rel[i].r)
	}
	return out
}

// remove takes reqs out of their routes. A route that would become
// infeasible keeps its tasks.
func (s *state) remove(reqs []request) []int {
	drop := map[int]bool{}
	for _, r := range reqs {
		drop[r.a] = true
		if r.b >= 0 {
			drop[r.b] = true
		}
	}
	var touched []int
	for vi := range s.routes {
		old := &s.routes[vi]
		kept := make([]int, 0, len(old.Tasks))
		for _, ti := range old.Tasks {
			if !drop[ti] {
				kept = append(kept, ti)
			}
		}
		if len(kept) == len(old.Tasks) {
			continue
		}
		nr := s.p.Schedule(vi, kept)
		if !nr.Feasible() && old.Feasible() {
			continue
		}
		for _, ti := range old.Tasks {
			if drop[ti] {
				s.assigned[ti] = false
			}
		}
		s.routes[vi] = nr
		touched = append(touched, vi)
	}
	return touched
}

func routeTasks(rs []Route) [][]int {
	out := make([][]int, len(rs))
	for i := range rs {
		out[i] = rs[i].Tasks
	}
	return out
}

func changedRoutes(before [][]int, after []Route) []int {
	var out []int
	for i := range after {
		if !sameOrder(before[i], after[i].Tasks) {
			out = append(out, i)
		}
	}
	return out
}

func sameOrder(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func mergeTouched(a, b []int) []int {
	seen := map[int]bool{}
	var out []int
	for _, v := range append(a, b...) {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Ints(out)
	return out
}

func allRoutes(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

// localSearch applies first-improvement moves to the touched routes until
// none applies: intra-route relocate and 2-opt, then single-task exchange
// and relocation with every other route.
func (s *state) localSearch(touched []int) {
	for _, vi := range touched {
		if s.timeUp() {
			return
		}
		s.orOptImprove(vi)
		s.twoOptImprove(vi)
	}
	for _, a := range touched {
		for b := range s.routes {
			if s.timeUp() {
				return
			}
			if a != b {
				s.crossExchangeImprove(a, b)
				s.relocateImprove(a, b)
				s.relocateImprove(b, a)
			}
		}
	}
}

// tryRoutes replaces routes a and b by the schedules of ta and tb when both
// are feasible and the total cost drops.
func (s *state) tryRoutes(a int, ta []int, b int, tb []int) bool {
	ra := s.p.Schedule(a, ta)
	if !ra.Feasible() {
		return false
	}
	before := s.routes[a].Cost
	after := ra.Cost
	var rb Route
	if b >= 0 {
		rb = s.p.Schedule(b, tb)
		if !rb.Feasible() {
			return false
		}
		before += s.routes[b].Cost
		after += rb.Cost
	}
	if after >= before {
		return false
	}
	s.routes[a] = ra
	if b >= 0 {
		s.routes[b] = rb
	}
	return true
}

func (s *state) movable(ti int) bool {
	_, ok := s.locked[ti]
	return !ok
}

// orOptImprove relocates single tasks inside route vi.
func (s *state) orOptImprove(vi int) {
	if !s.routes[vi].Feasible() {
		return
	}
	for improved := true; improved; {
		improved = false
		tasks := s.routes[vi].Tasks
	scan:
		for i := range tasks {
			if s.timeUp() {
				return
			}
			if !s.movable(tasks[i]) {
				continue
			}
			rest := append(append([]int(nil), tasks[:i]...), tasks[i+1:]...)
			for j := 0; j <= len(rest); j++ {
				if j == i {
					continue
				}
				if s.tryRoutes(vi, insertAt(rest, j, tasks[i]), -1, nil) {
					improved = true
					break scan
				}
			}
		}
	}
}

// twoOptSwap reverses ord[i..k].
func twoOptSwap(ord []int, i, k int) []int {
	out := make([]int, len(ord))
	copy(out, ord[:i])
	pos := i
	for j := k; j >= i; j-- {
		out[pos] = ord[j]
		pos++
	}
	copy(out[pos:], ord[k+1:])
	return out
}

// twoOptImprove reverses segments of route vi that hold no imposed task.
func (s *state) twoOptImprove(vi int) {
	if !s.routes[vi].Feasible() {
		return
	}
	for improved := true; improved; {
		improved = false
		tasks := s.routes[vi].Tasks
	scan:
		for i := 0; i < len(tasks)-1; i++ {
			if s.timeUp() {
				return
			}
			for k := i + 1; k < len(tasks); k++ {
				if !s.movable(tasks[k]) || !s.movable(tasks[i]) {
					break
				}
				if s.tryRoutes(vi, twoOptSwap(tasks, i, k), -1, nil) {
					improved = true
					break scan
				}
			}
		}
	}
}

// crossExchangeImprove swaps one single task of route a with one of route b.
func (s *state) crossExchangeImprove(a, b int) {
	if !s.routes[a].Feasible() || !s.routes[b].Feasible() {
		return
	}
	for improved := true; improved; {
		improved = false
		ta, tb := s.routes[a].Tasks, s.routes[b].Tasks
	scan:
		for i := range ta {
			if s.timeUp() {
				return
			}
			if !s.movable(ta[i]) || s.p.Tasks[ta[i]].Kind != model.Single || !s.p.compatible(b, ta[i]) {
				continue
			}
			for j := range tb {
				if !s.movable(tb[j]) || s.p.Tasks[tb[j]].Kind != model.Single || !s.p.compatible(a, tb[j]) {
					continue
				}
				na := append([]int(nil), ta...)
				nb := append([]int(nil), tb...)
				na[i], nb[j] = tb[j], ta[i]
				if s.tryRoutes(a, na, b, nb) {
					improved = true
					break scan
				}
			}
		}
	}
}

// relocateImprove moves one request from route a to its best position in b.
func (s *state) relocateImprove(a, b int) {
	if !s.routes[a].Feasible() || !s.routes[b].Feasible() {
		return
	}
	for improved := true; improved; {
		improved = false
		for _, ti := range s.routes[a].Tasks {
			if s.timeUp() {
				return
			}
			if s.p.Tasks[ti].Kind == model.Delivery {
				continue
			}
			req := s.p.requestOf(ti)
			if !s.movable(req.a) || req.b >= 0 && !s.movable(req.b) {
				continue
			}
			ins, ok := s.bestInsertion(req, b)
			if !ok {
				continue
			}
			kept := make([]int, 0, len(s.routes[a].Tasks))
			for _, tj := range s.routes[a].Tasks {
				if tj != req.a && tj != req.b {
					kept = append(kept, tj)
				}
			}
			ra := s.p.Schedule(a, kept)
			if !ra.Feasible() || ra.Cost+ins.route.Cost >= s.routes[a].Cost+s.routes[b].Cost {
				continue
			}
			s.routes[a] = ra
			s.routes[b] = ins.route
			improved = true
			break
		}
	}
}

func selectOp(weights []float64, rng *rand.Rand) int {
	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	if sum <= 0 {
		return 0
	}
	r := rng.Float64() * sum
	acc := 0.0
	for i, w := range weights {
		acc += w
		if r <= acc {
			return i
		}
	}
	return len(weights) - 1
}
