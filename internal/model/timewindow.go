package model

import (
	"fmt"
	"math"
	"sort"
)

// TimeWindow is an inclusive [Start, End] interval in seconds relative to the
// problem's own time origin. Absence of a window is expressed by an empty
// list or a nil pointer, never by a particular value.
type TimeWindow struct {
	Start int64
	End   int64
}

// DefaultTimeWindow is the unconstrained window.
func DefaultTimeWindow() TimeWindow { return TimeWindow{Start: 0, End: math.MaxInt64} }

func (tw TimeWindow) IsDefault() bool { return tw == DefaultTimeWindow() }

func (tw TimeWindow) Contains(t int64) bool { return tw.Start <= t && t <= tw.End }

func (tw TimeWindow) Length() int64 { return tw.End - tw.Start }

func (tw TimeWindow) Validate() error {
	if tw.Start > tw.End {
		return fmt.Errorf("time window start %d after end %d", tw.Start, tw.End)
	}
	return nil
}

// NormalizeWindows validates tws, replaces an empty list by the default window
// and sorts the result by start.
func NormalizeWindows(tws []TimeWindow) ([]TimeWindow, error) {
	if len(tws) == 0 {
		return []TimeWindow{DefaultTimeWindow()}, nil
	}
	out := make([]TimeWindow, len(tws))
	for i, tw := range tws {
		if err := tw.Validate(); err != nil {
			return nil, err
		}
		out[i] = tw
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Start < out[b].Start })
	return out, nil
}
