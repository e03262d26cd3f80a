package opt

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"vroomgo/internal/model"
)

// MaxExploration is the highest meaningful exploration level.
const MaxExploration = 5

// Params controls one Engine.Solve call.
type Params struct {
	// ExplorationLevel scales the number of searches and their depth.
	ExplorationLevel int
	// Threads bounds how many searches run at once.
	Threads int
	// Deadline stops improvement phases once passed. Zero means none.
	Deadline time.Time
	// Heuristics overrides the default searches.
	Heuristics []HeuristicParams
	// Seed makes runs reproducible; search i uses Seed+i.
	Seed int64
}

// Result is the best solution found. Routes only holds vehicles serving at
// least one task, in vehicle order.
type Result struct {
	Routes     []Route
	Unassigned []int
	Cost       int64
	Metrics    []Metrics
}

// Engine runs parallel construction + ALNS searches and keeps the best.
type Engine struct{}

func (Engine) Solve(ctx context.Context, p *Problem, params Params) (Result, error) {
	if err := p.validate(); err != nil {
		return Result{}, err
	}
	p.prepare()

	searches := params.Heuristics
	if len(searches) == 0 {
		hasForced := false
		for _, v := range p.Vehicles {
			hasForced = hasForced || len(v.Forced) > 0
		}
		searches = DefaultHeuristics(params.ExplorationLevel, hasForced)
	}
	level := min(max(params.ExplorationLevel, 0), MaxExploration)
	maxIter := (level + 1) * max(20, len(p.Tasks))
	if level == 0 {
		maxIter = 0
	}

	states := make([]*state, len(searches))
	metrics := make([]Metrics, len(searches))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(params.Threads, 1))
	expired := expiry(gctx, params.Deadline)
	for i, h := range searches {
		i, h := i, h
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("search %d (%s): %v", i, h, r)
				}
			}()
			// Searches still queued when time runs out are skipped; the
			// first one always runs.
			if i > 0 && expired() {
				metrics[i] = Metrics{Params: h, TimedOut: true}
				return nil
			}
			states[i], metrics[i] = search(gctx, p, h, params.Seed+int64(i)+1, maxIter, params.Deadline, i == 0)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	best := 0
	bestObj := states[0].objective()
	for i := 1; i < len(states); i++ {
		if states[i] == nil {
			continue
		}
		if o := states[i].objective(); p.better(o, bestObj) {
			best, bestObj = i, o
		}
	}
	return states[best].result(metrics, bestObj.cost), nil
}

func (s *state) result(m []Metrics, cost int64) Result {
	res := Result{Cost: cost, Metrics: m}
	for _, r := range s.routes {
		if len(r.Tasks) > 0 {
			res.Routes = append(res.Routes, r)
		}
	}
	for ti, ok := range s.assigned {
		if !ok {
			res.Unassigned = append(res.Unassigned, ti)
		}
	}
	sort.Ints(res.Unassigned)
	return res
}

// validate checks the structural assumptions of the engine: matrices for
// every profile, indices in range, consistent amounts and pairs.
func (p *Problem) validate() error {
	if len(p.Vehicles) == 0 {
		return fmt.Errorf("no vehicles")
	}
	inRange := func(profile string, idx int) error {
		m := p.Durations[profile]
		if m == nil {
			return fmt.Errorf("no durations for profile %q", profile)
		}
		if idx >= m.Size() {
			return fmt.Errorf("index %d outside %q matrix of size %d", idx, profile, m.Size())
		}
		return nil
	}
	for vi, v := range p.Vehicles {
		for _, idx := range []int{v.Start, v.End} {
			if err := inRange(v.Profile, idx); err != nil {
				return fmt.Errorf("vehicle %d: %w", vi, err)
			}
		}
		for _, t := range p.Tasks {
			if err := inRange(v.Profile, t.Index); err != nil {
				return fmt.Errorf("vehicle %d: %w", vi, err)
			}
		}
		if v.Capacity != nil && len(v.Capacity) != p.AmountSize {
			return fmt.Errorf("vehicle %d: capacity has %d components, want %d", vi, len(v.Capacity), p.AmountSize)
		}
		for _, f := range v.Forced {
			if f.Task < 0 || f.Task >= len(p.Tasks) {
				return fmt.Errorf("vehicle %d: forced task %d out of range", vi, f.Task)
			}
		}
	}
	for ti, t := range p.Tasks {
		for _, a := range []int{len(t.Delivery), len(t.Pickup)} {
			if a != 0 && a != p.AmountSize {
				return fmt.Errorf("task %d: amount has %d components, want %d", ti, a, p.AmountSize)
			}
		}
		if t.Kind != model.Single && (t.Pair < 0 || t.Pair >= len(p.Tasks) || p.Tasks[t.Pair].Pair != ti) {
			return fmt.Errorf("task %d: broken shipment pairing", ti)
		}
	}
	return nil
}
