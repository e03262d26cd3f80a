package model

import (
	"fmt"

	"vroomgo/internal/buffer"
)

// VehicleCosts are the cost coefficients of a vehicle. PerHour applies to
// travel time and PerKm to travelled distance; Fixed is charged once for
// every used vehicle.
type VehicleCosts struct {
	Fixed   int64
	PerHour int64
	PerKm   int64
}

// Break is a rest period without a location of its own.
type Break struct {
	ID          uint64
	TimeWindows []TimeWindow
	Service     int64
	Description string
	// MaxLoad, when set, bounds the load carried while the break is taken.
	MaxLoad buffer.Amount
}

// StepKind tags a VehicleStep.
type StepKind uint8

const (
	StepStart StepKind = iota
	StepEnd
	StepBreak
	StepSingle
	StepPickup
	StepDelivery
)

var stepKindNames = []string{"start", "end", "break", "single", "pickup", "delivery"}

func (k StepKind) String() string {
	if int(k) < len(stepKindNames) {
		return stepKindNames[k]
	}
	return fmt.Sprintf("step(%d)", uint8(k))
}

func ParseStepKind(s string) (StepKind, error) {
	if s == "job" {
		return StepSingle, nil
	}
	for i, n := range stepKindNames {
		if n == s {
			return StepKind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown step type %q", s)
}

// JobKind maps a task step kind to the kind of job it references.
func (k StepKind) JobKind() (JobKind, bool) {
	switch k {
	case StepSingle:
		return Single, true
	case StepPickup:
		return Pickup, true
	case StepDelivery:
		return Delivery, true
	}
	return 0, false
}

// ForcedService pins the service start of a step. Nil bounds are unset.
type ForcedService struct {
	At     *int64
	After  *int64
	Before *int64
}

func (f ForcedService) IsZero() bool { return f.At == nil && f.After == nil && f.Before == nil }

// Window folds the forced bounds into one interval.
func (f ForcedService) Window() TimeWindow {
	tw := DefaultTimeWindow()
	if f.After != nil {
		tw.Start = *f.After
	}
	if f.Before != nil {
		tw.End = *f.Before
	}
	if f.At != nil {
		tw.Start = max(tw.Start, *f.At)
		tw.End = min(tw.End, *f.At)
	}
	return tw
}

// VehicleStep is one entry of a vehicle's imposed route.
type VehicleStep struct {
	Kind   StepKind
	ID     uint64
	Forced ForcedService
}

// Vehicle describes one vehicle. Zero-valued Profile, PerHour, SpeedFactor,
// MaxTasks, MaxTravelTime and MaxDistance are resolved against Defaults when
// the vehicle is registered.
type Vehicle struct {
	ID            uint64
	Start         *Location
	End           *Location
	Profile       string
	Capacity      buffer.Amount
	Skills        Skills
	TimeWindow    *TimeWindow
	Breaks        []Break
	Description   string
	Costs         VehicleCosts
	SpeedFactor   float64
	MaxTasks      int
	MaxTravelTime int64
	MaxDistance   int64
	Steps         []VehicleStep
}

// SameLocations reports whether v and o start and end at the same places.
func (v Vehicle) SameLocations(o Vehicle) bool {
	return sameLocation(v.Start, o.Start) && sameLocation(v.End, o.End)
}

func (v Vehicle) SameProfile(o Vehicle) bool { return v.Profile == o.Profile }

func sameLocation(a, b *Location) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.HasIndex && b.HasIndex {
		return a.Index == b.Index
	}
	if a.Coords != nil && b.Coords != nil {
		return *a.Coords == *b.Coords
	}
	return false
}

func (v Vehicle) Validate() error {
	if v.Start != nil && !v.Start.Valid() || v.End != nil && !v.End.Valid() {
		return fmt.Errorf("vehicle %d: start or end without index or coordinates", v.ID)
	}
	if v.SpeedFactor <= 0 || v.SpeedFactor > 5 {
		return fmt.Errorf("vehicle %d: speed factor %g outside (0, 5]", v.ID, v.SpeedFactor)
	}
	if v.Costs.Fixed < 0 || v.Costs.PerHour < 0 || v.Costs.PerKm < 0 {
		return fmt.Errorf("vehicle %d: negative cost", v.ID)
	}
	if v.TimeWindow != nil {
		if err := v.TimeWindow.Validate(); err != nil {
			return fmt.Errorf("vehicle %d: %w", v.ID, err)
		}
	}
	for _, b := range v.Breaks {
		for _, tw := range b.TimeWindows {
			if err := tw.Validate(); err != nil {
				return fmt.Errorf("vehicle %d break %d: %w", v.ID, b.ID, err)
			}
		}
		if b.Service < 0 {
			return fmt.Errorf("vehicle %d break %d: negative service", v.ID, b.ID)
		}
	}
	return nil
}
