package opt

import (
	"math"

	"vroomgo/internal/buffer"
	"vroomgo/internal/model"
)

// Task is one job as seen by the engine. Pair links the two halves of a
// shipment and is -1 for single jobs.
type Task struct {
	Index    int
	Kind     model.JobKind
	Setup    int64
	Service  int64
	Delivery buffer.Amount
	Pickup   buffer.Amount
	Skills   model.Skills
	Priority int64
	Windows  []model.TimeWindow
	Pair     int
}

type Break struct {
	Windows []model.TimeWindow
	Service int64
	MaxLoad buffer.Amount
}

// Forced is a task imposed on a vehicle, in route order, with an optional
// window on its service start.
type Forced struct {
	Task   int
	Window model.TimeWindow
}

// Vehicle is one vehicle as seen by the engine. Start and End are matrix
// indices or -1.
type Vehicle struct {
	Start         int
	End           int
	Profile       string
	Capacity      buffer.Amount
	Skills        model.Skills
	Window        *model.TimeWindow
	Breaks        []Break
	Fixed         int64
	PerHour       int64
	PerKm         int64
	SpeedFactor   float64
	MaxTasks      int
	MaxTravelTime int64
	MaxDistance   int64
	Forced        []Forced
}

// Problem is the fully resolved input of a solve: every location is a matrix
// index and every amount has AmountSize components.
type Problem struct {
	Tasks      []Task
	Vehicles   []Vehicle
	Durations  map[string]*buffer.Matrix
	Costs      map[string]*buffer.Matrix
	Distances  map[string]*buffer.Matrix
	AmountSize int
	// Penalty is charged for every unassigned task.
	Penalty int64

	windows [][]model.TimeWindow
	forced  map[int]model.TimeWindow
}

func (p *Problem) travel(v *Vehicle, from, to int) int64 {
	if from < 0 || to < 0 {
		return 0
	}
	d := p.Durations[v.Profile].At(from, to)
	if v.SpeedFactor == 1 {
		return int64(d)
	}
	return int64(math.Round(float64(d) / v.SpeedFactor))
}

func (p *Problem) distance(v *Vehicle, from, to int) int64 {
	m := p.Distances[v.Profile]
	if m == nil || from < 0 || to < 0 {
		return 0
	}
	return int64(m.At(from, to))
}

// edgeCost is the user-supplied cost between two indices, when a costs
// matrix exists for the vehicle profile.
func (p *Problem) edgeCost(v *Vehicle, from, to int) (int64, bool) {
	m := p.Costs[v.Profile]
	if m == nil {
		return 0, false
	}
	if from < 0 || to < 0 {
		return 0, true
	}
	return int64(m.At(from, to)), true
}

// compatible reports whether vehicle v may ever serve task t.
func (p *Problem) compatible(v, t int) bool {
	return p.Tasks[t].Skills.SubsetOf(p.Vehicles[v].Skills)
}

// locked maps each forced task to its vehicle.
func (p *Problem) locked() map[int]int {
	out := map[int]int{}
	for vi, v := range p.Vehicles {
		for _, f := range v.Forced {
			out[f.Task] = vi
		}
	}
	return out
}
