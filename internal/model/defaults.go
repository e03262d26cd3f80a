package model

import "math"

// Defaults gathers every literal default applied to problem input.
type Defaults struct {
	Profile       string  `yaml:"profile"`
	PerHour       int64   `yaml:"per_hour"`
	SpeedFactor   float64 `yaml:"speed_factor"`
	MaxTasks      int     `yaml:"max_tasks"`
	MaxTravelTime int64   `yaml:"max_travel_time"`
	MaxDistance   int64   `yaml:"max_distance"`
}

// DefaultValues is the built-in defaults table.
func DefaultValues() Defaults {
	return Defaults{
		Profile:       "car",
		PerHour:       3600,
		SpeedFactor:   1.0,
		MaxTasks:      math.MaxInt,
		MaxTravelTime: math.MaxInt64,
		MaxDistance:   math.MaxInt64,
	}
}

// Fill returns d with its zero fields taken from DefaultValues.
func (d Defaults) Fill() Defaults {
	base := DefaultValues()
	if d.Profile == "" {
		d.Profile = base.Profile
	}
	if d.PerHour == 0 {
		d.PerHour = base.PerHour
	}
	if d.SpeedFactor == 0 {
		d.SpeedFactor = base.SpeedFactor
	}
	if d.MaxTasks == 0 {
		d.MaxTasks = base.MaxTasks
	}
	if d.MaxTravelTime == 0 {
		d.MaxTravelTime = base.MaxTravelTime
	}
	if d.MaxDistance == 0 {
		d.MaxDistance = base.MaxDistance
	}
	return d
}

// ApplyVehicle resolves the zero-valued fields of v.
func (d Defaults) ApplyVehicle(v Vehicle) Vehicle {
	if v.Profile == "" {
		v.Profile = d.Profile
	}
	if v.Costs.PerHour == 0 {
		v.Costs.PerHour = d.PerHour
	}
	if v.SpeedFactor == 0 {
		v.SpeedFactor = d.SpeedFactor
	}
	if v.MaxTasks == 0 {
		v.MaxTasks = d.MaxTasks
	}
	if v.MaxTravelTime == 0 {
		v.MaxTravelTime = d.MaxTravelTime
	}
	if v.MaxDistance == 0 {
		v.MaxDistance = d.MaxDistance
	}
	if v.TimeWindow == nil {
		tw := DefaultTimeWindow()
		v.TimeWindow = &tw
	} else {
		tw := *v.TimeWindow
		v.TimeWindow = &tw
	}
	return v
}
