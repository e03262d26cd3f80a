// Package solution holds the result of a solve and its projections: the
// VROOM-compatible JSON document and a fixed-layout record per step.
package solution

import (
	"fmt"

	"vroomgo/internal/buffer"
	"vroomgo/internal/model"
	"vroomgo/internal/violation"
	"vroomgo/internal/vrperr"
)

// StepType is the closed set of step variants. JobKind on Step refines Job.
type StepType uint8

const (
	Start StepType = iota
	End
	Break
	Job
)

// Step is one stop of a route.
type Step struct {
	Type    StepType
	JobKind model.JobKind
	// ID is the job or break id; unused for Start and End.
	ID          uint64
	Location    *model.Location
	Setup       int64
	Service     int64
	WaitingTime int64
	Arrival     int64
	Duration    int64
	Distance    int64
	Load        buffer.Amount
	Description string
	Violations  violation.Violations
}

// Label is the row label of the step: start, end, break, job, pickup or
// delivery.
func (s Step) Label() string {
	switch s.Type {
	case Start:
		return "start"
	case End:
		return "end"
	case Break:
		return "break"
	}
	return s.JobKind.String()
}

// HasID reports whether ID is meaningful for the step.
func (s Step) HasID() bool { return s.Type == Break || s.Type == Job }

func parseLabel(label string) (StepType, model.JobKind, error) {
	switch label {
	case "start":
		return Start, 0, nil
	case "end":
		return End, 0, nil
	case "break":
		return Break, 0, nil
	case "job":
		return Job, model.Single, nil
	case "pickup":
		return Job, model.Pickup, nil
	case "delivery":
		return Job, model.Delivery, nil
	}
	return 0, 0, fmt.Errorf("solution: unknown step type %q", label)
}

type Route struct {
	Vehicle     uint64               `json:"vehicle"`
	Steps       []Step               `json:"steps"`
	Cost        int64                `json:"cost"`
	Setup       int64                `json:"setup"`
	Service     int64                `json:"service"`
	Duration    int64                `json:"duration"`
	WaitingTime int64                `json:"waiting_time"`
	Priority    int64                `json:"priority"`
	Distance    int64                `json:"distance"`
	Delivery    buffer.Amount        `json:"delivery"`
	Pickup      buffer.Amount        `json:"pickup"`
	Profile     string               `json:"profile"`
	Description string               `json:"description,omitempty"`
	Violations  violation.Violations `json:"violations"`
	Geometry    string               `json:"geometry,omitempty"`
}

// ComputingTimes are wall-clock durations in milliseconds.
type ComputingTimes struct {
	Loading int64 `json:"loading"`
	Solving int64 `json:"solving"`
	Routing int64 `json:"routing"`
}

type Summary struct {
	Cost           int64                `json:"cost"`
	Routes         int                  `json:"routes"`
	Unassigned     int                  `json:"unassigned"`
	Delivery       buffer.Amount        `json:"delivery"`
	Pickup         buffer.Amount        `json:"pickup"`
	Setup          int64                `json:"setup"`
	Service        int64                `json:"service"`
	Priority       int64                `json:"priority"`
	Duration       int64                `json:"duration"`
	WaitingTime    int64                `json:"waiting_time"`
	Distance       int64                `json:"distance"`
	ComputingTimes ComputingTimes       `json:"computing_times"`
	Violations     violation.Violations `json:"violations"`
}

// Unassigned is a job no route serves.
type Unassigned struct {
	ID          uint64
	Kind        model.JobKind
	Location    model.Location
	Description string
}

// Solution is either a success (Code 0) carrying routes, or a failure with a
// non-zero legacy code and a message.
type Solution struct {
	Code       int
	Error      string
	Summary    Summary
	Routes     []Route
	Unassigned []Unassigned
}

// FromError builds the failure payload for err.
func FromError(err error) *Solution {
	return &Solution{Code: vrperr.KindOf(err).Code(), Error: err.Error()}
}

// Err maps a failure payload back to a classified error. Successes yield nil.
func (s *Solution) Err() error { return vrperr.FromCode(s.Code, s.Error) }

// Summarize recomputes Summary totals from Routes and Unassigned, keeping
// ComputingTimes.
func (s *Solution) Summarize(amountSize int) {
	sum := Summary{
		ComputingTimes: s.Summary.ComputingTimes,
		Routes:         len(s.Routes),
		Unassigned:     len(s.Unassigned),
		Delivery:       buffer.NewAmount(amountSize),
		Pickup:         buffer.NewAmount(amountSize),
	}
	for _, r := range s.Routes {
		sum.Cost += r.Cost
		sum.Setup += r.Setup
		sum.Service += r.Service
		sum.Priority += r.Priority
		sum.Duration += r.Duration
		sum.WaitingTime += r.WaitingTime
		sum.Distance += r.Distance
		sum.Delivery.AddInPlace(r.Delivery)
		sum.Pickup.AddInPlace(r.Pickup)
		r.Violations.MergeInto(&sum.Violations)
	}
	s.Summary = sum
}
