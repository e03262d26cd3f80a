// Package violation aggregates constraint violations reported on steps,
// routes and whole solutions.
package violation

import (
	"encoding/json"
	"fmt"
	"math/bits"
)

// Kind is one category of constraint violation.
type Kind uint8

const (
	LeadTime Kind = iota
	Delay
	Load
	MaxTasks
	Skills
	Precedence
	MissingBreak
	MaxTravelTime
	MaxLoad
	MaxDistance
	numKinds
)

var kindNames = [numKinds]string{
	LeadTime:      "lead_time",
	Delay:         "delay",
	Load:          "load",
	MaxTasks:      "max_tasks",
	Skills:        "skills",
	Precedence:    "precedence",
	MissingBreak:  "missing_break",
	MaxTravelTime: "max_travel_time",
	MaxLoad:       "max_load",
	MaxDistance:   "max_distance",
}

func (k Kind) String() string {
	if k < numKinds {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind maps a wire name back to its Kind.
func ParseKind(s string) (Kind, error) {
	for k, n := range kindNames {
		if n == s {
			return Kind(k), nil
		}
	}
	return 0, fmt.Errorf("violation: unknown kind %q", s)
}

// Set is a set of kinds.
type Set uint16

func SetOf(kinds ...Kind) Set {
	var s Set
	for _, k := range kinds {
		s = s.With(k)
	}
	return s
}

func (s Set) With(k Kind) Set { return s | 1<<k }
func (s Set) Has(k Kind) bool { return s&(1<<k) != 0 }
func (s Set) Union(o Set) Set { return s | o }
func (s Set) Len() int { return bits.OnesCount16(uint16(s)) }
func (s Set) IsEmpty() bool { return s == 0 }

// Kinds lists the members in declaration order.
func (s Set) Kinds() []Kind {
	out := make([]Kind, 0, s.Len())
	for k := Kind(0); k < numKinds; k++ {
		if s.Has(k) {
			out = append(out, k)
		}
	}
	return out
}

// Violations records how much earlier (LeadTime) or later (Delay) than
// allowed service happened, in seconds, along with the violated kinds.
// The zero value is the identity for Merge.
type Violations struct {
	LeadTime int64
	Delay    int64
	Kinds    Set
}

// Add records one violation of kind k. For LeadTime and Delay, d is added to
// the matching duration.
func (v *Violations) Add(k Kind, d int64) {
	v.Kinds = v.Kinds.With(k)
	switch k {
	case LeadTime:
		v.LeadTime += d
	case Delay:
		v.Delay += d
	}
}

// MergeInto folds v into dst: durations are summed and kinds united.
func (v Violations) MergeInto(dst *Violations) {
	dst.LeadTime += v.LeadTime
	dst.Delay += v.Delay
	dst.Kinds = dst.Kinds.Union(v.Kinds)
}

// Merge returns the combination of a and b. It is associative and commutative.
func Merge(a, b Violations) Violations {
	b.MergeInto(&a)
	return a
}

func (v Violations) IsZero() bool { return v == Violations{} }

type cause struct {
	Cause    string `json:"cause"`
	Duration *int64 `json:"duration,omitempty"`
}

// MarshalJSON renders the set as a list of {"cause", "duration"} objects.
func (v Violations) MarshalJSON() ([]byte, error) {
	out := make([]cause, 0, v.Kinds.Len())
	for _, k := range v.Kinds.Kinds() {
		c := cause{Cause: k.String()}
		switch k {
		case LeadTime:
			d := v.LeadTime
			c.Duration = &d
		case Delay:
			d := v.Delay
			c.Duration = &d
		}
		out = append(out, c)
	}
	return json.Marshal(out)
}

func (v *Violations) UnmarshalJSON(b []byte) error {
	var in []cause
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	*v = Violations{}
	for _, c := range in {
		k, err := ParseKind(c.Cause)
		if err != nil {
			return err
		}
		var d int64
		if c.Duration != nil {
			d = *c.Duration
		}
		v.Add(k, d)
	}
	return nil
}
