package opt

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"vroomgo/internal/model"
)

// Heuristic selects how the first solution of a search is built.
type Heuristic uint8

const (
	// Basic fills one vehicle at a time.
	Basic Heuristic = iota
	// Dynamic inserts across all vehicles by regret.
	Dynamic
	// InitRoutes starts from the imposed vehicle steps only.
	InitRoutes
)

// Init selects which task seeds an empty route.
type Init uint8

const (
	InitNone Init = iota
	InitHigherAmount
	InitNearest
	InitFurthest
	InitEarliestDeadline
)

var (
	heuristicNames = []string{"basic", "dynamic", "init_routes"}
	initNames      = []string{"none", "higher_amount", "nearest", "furthest", "earliest_deadline"}
)

func (h Heuristic) String() string {
	if int(h) < len(heuristicNames) {
		return heuristicNames[h]
	}
	return fmt.Sprintf("heuristic(%d)", uint8(h))
}

func (i Init) String() string {
	if int(i) < len(initNames) {
		return initNames[i]
	}
	return fmt.Sprintf("init(%d)", uint8(i))
}

func ParseHeuristic(s string) (Heuristic, error) {
	for i, n := range heuristicNames {
		if strings.EqualFold(n, s) {
			return Heuristic(i), nil
		}
	}
	return 0, fmt.Errorf("unknown heuristic %q", s)
}

func ParseInit(s string) (Init, error) {
	for i, n := range initNames {
		if strings.EqualFold(n, s) {
			return Init(i), nil
		}
	}
	return 0, fmt.Errorf("unknown init strategy %q", s)
}

// HeuristicParams configures the construction phase of one search.
type HeuristicParams struct {
	Heuristic Heuristic
	Init      Init
	Regret    float64
}

func (h HeuristicParams) String() string {
	return fmt.Sprintf("%s/%s/%.1f", h.Heuristic, h.Init, h.Regret)
}

func (h HeuristicParams) Validate() error {
	if h.Heuristic > InitRoutes {
		return fmt.Errorf("unknown heuristic %d", h.Heuristic)
	}
	if h.Init > InitEarliestDeadline {
		return fmt.Errorf("unknown init strategy %d", h.Init)
	}
	if h.Regret < 0 || math.IsNaN(h.Regret) {
		return fmt.Errorf("regret coefficient %g must be >= 0", h.Regret)
	}
	return nil
}

var defaultSearches = []HeuristicParams{
	{Basic, InitNone, 0.3},
	{Dynamic, InitNone, 0.6},
	{Basic, InitHigherAmount, 0.3},
	{Dynamic, InitNearest, 0.9},
	{Basic, InitFurthest, 0.6},
	{Dynamic, InitEarliestDeadline, 0.3},
	{Basic, InitNearest, 0.9},
	{Dynamic, InitHigherAmount, 1.2},
	{Basic, InitEarliestDeadline, 1.2},
	{Dynamic, InitFurthest, 0.1},
	{Basic, InitHigherAmount, 1.8},
	{Dynamic, InitNone, 2.4},
}

// DefaultHeuristics returns the searches run for an exploration level when
// the caller supplies none.
func DefaultHeuristics(level int, hasForced bool) []HeuristicParams {
	level = min(max(level, 0), MaxExploration)
	n := min(2*(level+1), len(defaultSearches))
	out := make([]HeuristicParams, 0, n+1)
	if hasForced {
		out = append(out, HeuristicParams{Heuristic: InitRoutes, Regret: 0.3})
	}
	return append(out, defaultSearches[:n]...)
}

// request is a unit of insertion: a single task, or a pickup a and its
// delivery b.
type request struct{ a, b int }

func (p *Problem) requestOf(ti int) request {
	t := &p.Tasks[ti]
	switch t.Kind {
	case model.Pickup:
		return request{ti, t.Pair}
	case model.Delivery:
		return request{t.Pair, ti}
	}
	return request{ti, -1}
}

func (r request) size() int {
	if r.b >= 0 {
		return 2
	}
	return 1
}

type insertion struct {
	vehicle int
	route   Route
	delta   int64
}

// bestInsertion finds the cheapest feasible way to add req to vehicle vi.
func (s *state) bestInsertion(req request, vi int) (insertion, bool) {
	p := s.p
	cur := &s.routes[vi]
	v := &p.Vehicles[vi]
	if !cur.Feasible() || !p.compatible(vi, req.a) || len(cur.Tasks)+req.size() > v.MaxTasks {
		return insertion{}, false
	}
	best, found := insertion{}, false
	try := func(tasks []int) {
		r := p.Schedule(vi, tasks)
		if !r.Feasible() {
			return
		}
		d := r.Cost - cur.Cost
		if !found || d < best.delta {
			best, found = insertion{vehicle: vi, route: r, delta: d}, true
		}
	}
	n := len(cur.Tasks)
	for i := 0; i <= n; i++ {
		if req.b < 0 {
			try(insertAt(cur.Tasks, i, req.a))
			continue
		}
		withPickup := insertAt(cur.Tasks, i, req.a)
		for j := i + 1; j <= n+1; j++ {
			try(insertAt(withPickup, j, req.b))
		}
	}
	return best, found
}

func insertAt(tasks []int, pos, ti int) []int {
	out := make([]int, 0, len(tasks)+1)
	out = append(out, tasks[:pos]...)
	out = append(out, ti)
	return append(out, tasks[pos:]...)
}

// seedRoute places one task chosen by init into the empty route of vi.
func (s *state) seedRoute(vi int, init Init) {
	p := s.p
	if init == InitNone || len(s.routes[vi].Tasks) > 0 {
		return
	}
	v := &p.Vehicles[vi]
	cands := s.unassignedRequests()
	score := func(r request) float64 {
		switch init {
		case InitHigherAmount:
			return 0
		case InitNearest:
			t := p.Tasks[r.a].Index
			return float64(p.travel(v, v.Start, t) + p.travel(v, t, v.End))
		case InitFurthest:
			t := p.Tasks[r.a].Index
			return -float64(p.travel(v, v.Start, t) + p.travel(v, t, v.End))
		case InitEarliestDeadline:
			last := r.a
			if r.b >= 0 {
				last = r.b
			}
			tws := p.Tasks[last].Windows
			return float64(tws[len(tws)-1].End)
		}
		return 0
	}
	sort.SliceStable(cands, func(i, j int) bool {
		if init == InitHigherAmount {
			ai, aj := p.Tasks[cands[i].a], p.Tasks[cands[j].a]
			return aj.Delivery.Add(aj.Pickup).LexLess(ai.Delivery.Add(ai.Pickup))
		}
		return score(cands[i]) < score(cands[j])
	})
	for _, r := range cands {
		if ins, ok := s.bestInsertion(r, vi); ok {
			s.apply(ins)
			return
		}
	}
}

// construct builds the first solution of a search. It stops early, leaving
// the remaining requests unassigned, once the state expires.
func (s *state) construct(h HeuristicParams) {
	switch h.Heuristic {
	case Basic:
		s.constructBasic(h)
	case Dynamic:
		for vi := range s.routes {
			s.seedRoute(vi, h.Init)
		}
		s.insertRegret(s.unassignedRequests(), h.Regret)
	case InitRoutes:
		s.insertRegret(s.unassignedRequests(), h.Regret)
	}
}

// constructBasic fills vehicles one after another, largest capacity first.
// A request is favoured for the current vehicle when the cheapest insertion
// into the remaining vehicles is expensive.
func (s *state) constructBasic(h HeuristicParams) {
	p := s.p
	order := make([]int, len(p.Vehicles))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return p.Vehicles[order[j]].Capacity.LexLess(p.Vehicles[order[i]].Capacity)
	})

	for k, vi := range order {
		if s.timeUp() {
			return
		}
		s.seedRoute(vi, h.Init)
		reqs := s.unassignedRequests()
		others := make(map[request]float64, len(reqs))
		for _, r := range reqs {
			if s.timeUp() {
				return
			}
			cheapest := float64(p.Penalty)
			for _, vj := range order[k+1:] {
				if ins, ok := s.bestInsertion(r, vj); ok {
					cheapest = math.Min(cheapest, float64(ins.delta))
				}
			}
			others[r] = cheapest
		}
		for !s.timeUp() {
			var pick insertion
			found := false
			var bestScore float64
			var bestPrio int64
			for _, r := range s.unassignedRequests() {
				ins, ok := s.bestInsertion(r, vi)
				if !ok {
					continue
				}
				sc := float64(ins.delta) - h.Regret*others[r]
				prio := p.Tasks[r.a].Priority
				if !found || prio > bestPrio || prio == bestPrio && sc < bestScore {
					pick, bestScore, bestPrio, found = ins, sc, prio, true
				}
			}
			if !found {
				break
			}
			s.apply(pick)
		}
	}
}

// insertRegret inserts reqs across all vehicles. At each step the request
// with the highest priority, then the largest regret-weighted gap between
// its best and second-best vehicle, goes first; regret 0 degenerates to
// cheapest insertion.
func (s *state) insertRegret(reqs []request, regret float64) {
	left := append([]request(nil), reqs...)
	for len(left) > 0 && !s.timeUp() {
		pickIdx := -1
		var pick insertion
		var pickScore float64
		var pickPrio int64
		for i, r := range left {
			if s.timeUp() {
				return
			}
			if s.assigned[r.a] {
				continue
			}
			var best1, best2 insertion
			n := 0
			for vi := range s.routes {
				ins, ok := s.bestInsertion(r, vi)
				if !ok {
					continue
				}
				switch {
				case n == 0 || ins.delta < best1.delta:
					best2, best1 = best1, ins
				case n == 1 || ins.delta < best2.delta:
					best2 = ins
				}
				n++
			}
			if n == 0 {
				continue
			}
			second := float64(s.p.Penalty)
			if n > 1 {
				second = float64(best2.delta)
			}
			sc := regret*(second-float64(best1.delta)) - float64(best1.delta)
			prio := s.p.Tasks[r.a].Priority
			if pickIdx < 0 || prio > pickPrio || prio == pickPrio && sc > pickScore {
				pickIdx, pick, pickScore, pickPrio = i, best1, sc, prio
			}
		}
		if pickIdx < 0 {
			return
		}
		s.apply(pick)
		left = append(left[:pickIdx], left[pickIdx+1:]...)
	}
}
