package opt

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"vroomgo/internal/buffer"
	"vroomgo/internal/model"
	"vroomgo/internal/violation"
)

func matrix(t *testing.T, rows [][]uint32) *buffer.Matrix {
	t.Helper()
	m, err := buffer.MatrixFromRows(rows)
	require.NoError(t, err)
	return m
}

func single(idx int) Task { return Task{Index: idx, Kind: model.Single, Pair: -1} }

func car(start, end int) Vehicle {
	return Vehicle{Start: start, End: end, Profile: "car", PerHour: 3600, SpeedFactor: 1}
}

func twoPoints(t *testing.T) *Problem {
	return &Problem{
		Durations: map[string]*buffer.Matrix{"car": matrix(t, [][]uint32{{0, 10}, {10, 0}})},
		Vehicles:  []Vehicle{car(0, 0)},
		Penalty:   1_000_000,
	}
}

func TestSolveLibvroomExample(t *testing.T) {
	p := &Problem{
		Durations: map[string]*buffer.Matrix{"car": matrix(t, [][]uint32{
			{0, 2104, 197, 1299},
			{2103, 0, 2255, 3152},
			{197, 2256, 0, 1102},
			{1299, 3153, 1102, 0},
		})},
		Tasks:    []Task{single(1), single(2)},
		Vehicles: []Vehicle{car(0, 3)},
		Penalty:  1_000_000,
	}
	res, err := Engine{}.Solve(context.Background(), p, Params{ExplorationLevel: 5, Threads: 4})
	require.NoError(t, err)
	require.Empty(t, res.Unassigned)
	require.Equal(t, int64(5461), res.Cost)
	require.Len(t, res.Routes, 1)

	r := res.Routes[0]
	require.Equal(t, []int{0, 1}, r.Tasks)
	var arrivals []int64
	var kinds []StopKind
	for _, s := range r.Stops {
		arrivals = append(arrivals, s.Arrival)
		kinds = append(kinds, s.Kind)
		require.Equal(t, s.Arrival, s.Duration)
	}
	require.Equal(t, []int64{0, 2104, 4359, 5461}, arrivals)
	require.Equal(t, []StopKind{StopStart, StopTask, StopTask, StopEnd}, kinds)
	require.Len(t, res.Metrics, 12)
}

func TestScheduleWaitingAndCost(t *testing.T) {
	p := twoPoints(t)
	task := single(1)
	task.Service = 5
	task.Windows = []model.TimeWindow{{Start: 30, End: 40}}
	p.Tasks = []Task{task}

	r := p.Schedule(0, []int{0})
	require.True(t, r.Feasible())
	require.Len(t, r.Stops, 3)
	require.Equal(t, int64(10), r.Stops[1].Arrival)
	require.Equal(t, int64(20), r.Stops[1].Waiting)
	require.Equal(t, int64(45), r.Stops[2].Arrival)
	require.Equal(t, int64(20), r.Duration)
	require.Equal(t, int64(20), r.Waiting)
	require.Equal(t, int64(20), r.Cost)

	empty := p.Schedule(0, nil)
	require.Zero(t, empty.Cost)
}

func TestScheduleDelayViolation(t *testing.T) {
	p := twoPoints(t)
	task := single(1)
	task.Windows = []model.TimeWindow{{Start: 0, End: 5}}
	p.Tasks = []Task{task}

	r := p.Schedule(0, []int{0})
	require.False(t, r.Feasible())
	require.True(t, r.Violations.Kinds.Has(violation.Delay))
	require.Equal(t, int64(5), r.Stops[1].Violations.Delay)
}

func TestScheduleSetupOnlyOnLocationChange(t *testing.T) {
	p := twoPoints(t)
	a, b := single(1), single(1)
	a.Setup, b.Setup = 7, 7
	p.Tasks = []Task{a, b}

	r := p.Schedule(0, []int{0, 1})
	require.Equal(t, int64(7), r.Setup)
	require.Equal(t, int64(7), r.Stops[1].Setup)
	require.Zero(t, r.Stops[2].Setup)
}

func TestScheduleSpeedFactorAndCustomCosts(t *testing.T) {
	p := twoPoints(t)
	p.Tasks = []Task{single(1)}
	p.Vehicles[0].SpeedFactor = 2

	r := p.Schedule(0, []int{0})
	require.Equal(t, int64(10), r.Duration)
	require.Equal(t, int64(10), r.Cost)

	q := twoPoints(t)
	q.Tasks = []Task{single(1)}
	q.Costs = map[string]*buffer.Matrix{"car": matrix(t, [][]uint32{{0, 3}, {4, 0}})}
	q.Vehicles[0].Fixed = 100
	require.Equal(t, int64(107), q.Schedule(0, []int{0}).Cost)
}

func TestSchedulePrecedence(t *testing.T) {
	p := &Problem{
		Durations: map[string]*buffer.Matrix{"car": matrix(t, [][]uint32{{0, 1, 1}, {1, 0, 1}, {1, 1, 0}})},
		Tasks: []Task{
			{Index: 1, Kind: model.Pickup, Pickup: buffer.Amount{5}, Pair: 1},
			{Index: 2, Kind: model.Delivery, Delivery: buffer.Amount{5}, Pair: 0},
		},
		Vehicles:   []Vehicle{car(0, 0)},
		AmountSize: 1,
		Penalty:    1000,
	}
	p.Vehicles[0].Capacity = buffer.Amount{5}

	ok := p.Schedule(0, []int{0, 1})
	require.True(t, ok.Feasible())
	require.Equal(t, buffer.Amount{5}, ok.Stops[1].Load)
	require.Equal(t, buffer.Amount{0}, ok.Stops[2].Load)

	bad := p.Schedule(0, []int{1, 0})
	require.True(t, bad.Violations.Kinds.Has(violation.Precedence))

	res, err := Engine{}.Solve(context.Background(), p, Params{ExplorationLevel: 2, Threads: 2})
	require.NoError(t, err)
	require.Empty(t, res.Unassigned)
	require.Equal(t, []int{0, 1}, res.Routes[0].Tasks)
}

func TestScheduleBreaks(t *testing.T) {
	p := twoPoints(t)
	task := single(1)
	task.Service = 100
	p.Tasks = []Task{task}
	p.Vehicles[0].Breaks = []Break{{Windows: []model.TimeWindow{{Start: 50, End: 60}}, Service: 10}}

	r := p.Schedule(0, []int{0})
	require.True(t, r.Feasible())
	require.Len(t, r.Stops, 4)
	require.Equal(t, StopBreak, r.Stops[1].Kind)
	require.Equal(t, int64(50), r.Stops[1].Waiting)
	require.Equal(t, int64(70), r.Stops[2].Arrival)
	require.Equal(t, int64(180), r.Stops[3].Arrival)

	q := twoPoints(t)
	q.Tasks = []Task{single(1)}
	q.Vehicles[0].Window = &model.TimeWindow{Start: 10, End: 1000}
	q.Vehicles[0].Breaks = []Break{{Windows: []model.TimeWindow{{Start: 0, End: 5}}}}
	missing := q.Schedule(0, []int{0})
	require.True(t, missing.Violations.Kinds.Has(violation.MissingBreak))
	require.True(t, missing.Stops[len(missing.Stops)-1].Violations.Kinds.Has(violation.MissingBreak))
}

func TestSolveCapacityLeavesUnassigned(t *testing.T) {
	p := twoPoints(t)
	p.AmountSize = 1
	a, b := single(1), single(1)
	a.Delivery, b.Delivery = buffer.Amount{6}, buffer.Amount{6}
	p.Tasks = []Task{a, b}
	p.Vehicles[0].Capacity = buffer.Amount{10}

	res, err := Engine{}.Solve(context.Background(), p, Params{ExplorationLevel: 1, Threads: 1})
	require.NoError(t, err)
	require.Len(t, res.Unassigned, 1)
	require.Len(t, res.Routes, 1)
	require.Len(t, res.Routes[0].Tasks, 1)
}

func TestSolvePrefersPriority(t *testing.T) {
	p := &Problem{
		Durations: map[string]*buffer.Matrix{"car": matrix(t, [][]uint32{{0, 1, 50}, {1, 0, 50}, {50, 50, 0}})},
		Vehicles:  []Vehicle{car(0, 0)},
		Penalty:   1_000_000,
	}
	low, high := single(1), single(2)
	low.Priority, high.Priority = 10, 50
	p.Tasks = []Task{low, high}
	p.Vehicles[0].MaxTasks = 1

	res, err := Engine{}.Solve(context.Background(), p, Params{ExplorationLevel: 3, Threads: 2})
	require.NoError(t, err)
	require.Equal(t, []int{0}, res.Unassigned)
	require.Equal(t, []int{1}, res.Routes[0].Tasks)
}

func TestSolveHonoursSkills(t *testing.T) {
	p := twoPoints(t)
	task := single(1)
	task.Skills = model.NewSkills(7)
	p.Tasks = []Task{task}
	skilled := car(0, 0)
	skilled.Skills = model.NewSkills(7)
	p.Vehicles = append(p.Vehicles, skilled)

	res, err := Engine{}.Solve(context.Background(), p, Params{Threads: 1})
	require.NoError(t, err)
	require.Len(t, res.Routes, 1)
	require.Equal(t, 1, res.Routes[0].Vehicle)
}

func TestSolveKeepsForcedSkeleton(t *testing.T) {
	p := twoPoints(t)
	p.Tasks = []Task{single(1)}
	p.Vehicles[0].Forced = []Forced{{Task: 0, Window: model.TimeWindow{Start: 0, End: 5}}}

	res, err := Engine{}.Solve(context.Background(), p, Params{ExplorationLevel: 1, Threads: 1})
	require.NoError(t, err)
	require.Empty(t, res.Unassigned)
	require.Len(t, res.Routes, 1)
	require.True(t, res.Routes[0].Violations.Kinds.Has(violation.Delay))
	require.Equal(t, InitRoutes, res.Metrics[0].Params.Heuristic)
}

func TestSolveCancelledStillReturnsSolution(t *testing.T) {
	p := twoPoints(t)
	p.Tasks = []Task{single(1)}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := Engine{}.Solve(ctx, p, Params{ExplorationLevel: 5, Threads: 2, Deadline: time.Now().Add(-time.Second)})
	require.NoError(t, err)
	require.Empty(t, res.Unassigned)
	for _, m := range res.Metrics {
		require.True(t, m.TimedOut)
		require.Zero(t, m.Iterations)
	}
}

func gridProblem(t *testing.T, jobs, vehicles int) *Problem {
	t.Helper()
	n := jobs + 1
	rows := make([][]uint32, n)
	for i := range rows {
		rows[i] = make([]uint32, n)
		for j := range rows[i] {
			dx, dy := i%11-j%11, i/11-j/11
			rows[i][j] = uint32(60 * (max(dx, -dx) + max(dy, -dy)))
		}
	}
	p := &Problem{Durations: map[string]*buffer.Matrix{"car": matrix(t, rows)}, Penalty: 1_000_000}
	for i := 1; i < n; i++ {
		p.Tasks = append(p.Tasks, single(i))
	}
	for i := 0; i < vehicles; i++ {
		p.Vehicles = append(p.Vehicles, car(0, 0))
	}
	return p
}

func TestSolveStopsAtDeadline(t *testing.T) {
	p := gridProblem(t, 120, 5)
	start := time.Now()
	res, err := Engine{}.Solve(context.Background(), p, Params{ExplorationLevel: 5, Threads: 4, Deadline: start.Add(300 * time.Millisecond)})
	require.NoError(t, err)
	require.Less(t, time.Since(start), 5*time.Second)
	require.Empty(t, res.Unassigned)
	require.Len(t, res.Metrics, 12)
	timedOut := 0
	for _, m := range res.Metrics {
		if m.TimedOut {
			timedOut++
		}
	}
	require.NotZero(t, timedOut)
}

func TestExpiredConstructionLeavesRequestsUnassigned(t *testing.T) {
	p := gridProblem(t, 10, 1)
	p.prepare()
	s := newState(p)
	s.expired = func() bool { return true }
	s.construct(HeuristicParams{Heuristic: Dynamic})
	require.Len(t, s.unassignedRequests(), 10)

	s.expired = nil
	s.construct(HeuristicParams{Heuristic: Dynamic})
	require.Empty(t, s.unassignedRequests())
}

func TestSolveRejectsBrokenProblems(t *testing.T) {
	_, err := Engine{}.Solve(context.Background(), &Problem{}, Params{})
	require.Error(t, err)

	p := twoPoints(t)
	p.Vehicles[0].Profile = "bike"
	_, err = Engine{}.Solve(context.Background(), p, Params{})
	require.ErrorContains(t, err, "no durations")

	p = twoPoints(t)
	p.Tasks = []Task{single(4)}
	_, err = Engine{}.Solve(context.Background(), p, Params{})
	require.ErrorContains(t, err, "outside")

	p = twoPoints(t)
	p.Tasks = []Task{{Index: 1, Kind: model.Pickup, Pair: -1}}
	_, err = Engine{}.Solve(context.Background(), p, Params{})
	require.ErrorContains(t, err, "pairing")
}

func TestDefaultHeuristics(t *testing.T) {
	require.Len(t, DefaultHeuristics(0, false), 2)
	require.Len(t, DefaultHeuristics(2, false), 6)
	hs := DefaultHeuristics(9, true)
	require.Len(t, hs, 13)
	require.Equal(t, InitRoutes, hs[0].Heuristic)
	for _, h := range hs {
		require.NoError(t, h.Validate())
	}
	require.Error(t, HeuristicParams{Regret: -1}.Validate())
}

func TestParseHeuristicAndInit(t *testing.T) {
	h, err := ParseHeuristic("Dynamic")
	require.NoError(t, err)
	require.Equal(t, Dynamic, h)
	i, err := ParseInit("earliest_deadline")
	require.NoError(t, err)
	require.Equal(t, InitEarliestDeadline, i)
	_, err = ParseInit("closest")
	require.Error(t, err)
	require.Equal(t, "basic/nearest/0.9", HeuristicParams{Basic, InitNearest, 0.9}.String())
}
