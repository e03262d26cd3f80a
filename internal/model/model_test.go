package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"vroomgo/internal/buffer"
)

func TestNormalizeWindows(t *testing.T) {
	tws, err := NormalizeWindows(nil)
	require.NoError(t, err)
	require.Equal(t, []TimeWindow{DefaultTimeWindow()}, tws)

	tws, err = NormalizeWindows([]TimeWindow{{Start: 50, End: 60}, {Start: 10, End: 20}})
	require.NoError(t, err)
	require.Equal(t, int64(10), tws[0].Start)

	_, err = NormalizeWindows([]TimeWindow{{Start: 5, End: 1}})
	require.Error(t, err)
}

func TestZeroTimeWindowIsKept(t *testing.T) {
	require.False(t, TimeWindow{}.IsDefault())
	require.True(t, DefaultTimeWindow().IsDefault())

	tws, err := NormalizeWindows([]TimeWindow{{}})
	require.NoError(t, err)
	require.Equal(t, []TimeWindow{{Start: 0, End: 0}}, tws)

	v := DefaultValues().ApplyVehicle(Vehicle{ID: 1, TimeWindow: &TimeWindow{}})
	require.Equal(t, TimeWindow{}, *v.TimeWindow)
	require.Equal(t, int64(math.MaxInt64), DefaultValues().ApplyVehicle(Vehicle{ID: 2}).TimeWindow.End)
}

func TestForcedServiceWindow(t *testing.T) {
	after, before, at := int64(10), int64(100), int64(40)
	require.Equal(t, TimeWindow{Start: 10, End: 100}, ForcedService{After: &after, Before: &before}.Window())
	require.Equal(t, TimeWindow{Start: 40, End: 40}, ForcedService{At: &at, After: &after}.Window())
	require.Equal(t, DefaultTimeWindow(), ForcedService{}.Window())
}

func TestShipmentJobs(t *testing.T) {
	s := Shipment{
		Pickup:   ShipmentStep{ID: 1, Location: AtIndex(0)},
		Delivery: ShipmentStep{ID: 1, Location: AtIndex(2)},
		Amount:   buffer.Amount{4},
		Priority: 7,
	}
	p, d := s.Jobs()
	require.Equal(t, Pickup, p.Kind)
	require.Equal(t, Delivery, d.Kind)
	require.Equal(t, buffer.Amount{4}, p.Pickup)
	require.Equal(t, buffer.Amount{4}, d.Delivery)
	require.Empty(t, p.Delivery)
	require.Equal(t, 7, d.Priority)
}

func TestJobValidate(t *testing.T) {
	require.NoError(t, Job{ID: 1, Location: AtIndex(0)}.Validate())
	require.Error(t, Job{ID: 1}.Validate())
	require.Error(t, Job{ID: 1, Location: AtIndex(0), Priority: 101}.Validate())
}

func TestDefaultsApplyVehicle(t *testing.T) {
	v := DefaultValues().ApplyVehicle(Vehicle{ID: 3})
	require.Equal(t, "car", v.Profile)
	require.Equal(t, int64(3600), v.Costs.PerHour)
	require.Equal(t, 1.0, v.SpeedFactor)
	require.Equal(t, math.MaxInt, v.MaxTasks)
	require.True(t, v.TimeWindow.IsDefault())
	require.NoError(t, v.Validate())

	custom := Defaults{Profile: "bike"}.Fill()
	require.Equal(t, "bike", custom.Profile)
	require.Equal(t, int64(3600), custom.PerHour)
}

func TestVehicleSameLocations(t *testing.T) {
	a, b := AtIndex(1), AtIndex(1)
	require.True(t, Vehicle{Start: &a}.SameLocations(Vehicle{Start: &b}))
	require.False(t, Vehicle{Start: &a}.SameLocations(Vehicle{}))
}

func TestSkills(t *testing.T) {
	need := NewSkills(1, 3)
	require.True(t, need.SubsetOf(NewSkills(1, 2, 3)))
	require.False(t, need.SubsetOf(NewSkills(1)))
	require.True(t, Skills(nil).SubsetOf(nil))
	require.Equal(t, []uint32{1, 3}, need.Sorted())
}
