package violation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMergeIdentityAndLaws(t *testing.T) {
	a := Violations{LeadTime: 5, Kinds: SetOf(LeadTime)}
	b := Violations{Delay: 7, Kinds: SetOf(Delay, Load)}
	c := Violations{Delay: 1, Kinds: SetOf(Delay, Skills)}

	require.Equal(t, a, Merge(a, Violations{}))
	require.Equal(t, a, Merge(Violations{}, a))
	require.Equal(t, Merge(a, b), Merge(b, a))
	require.Equal(t, Merge(Merge(a, b), c), Merge(a, Merge(b, c)))

	got := Merge(Merge(a, b), c)
	require.Equal(t, int64(5), got.LeadTime)
	require.Equal(t, int64(8), got.Delay)
	require.Equal(t, []Kind{LeadTime, Delay, Load, Skills}, got.Kinds.Kinds())
}

func TestMergeInto(t *testing.T) {
	var total Violations
	for _, v := range []Violations{
		{Delay: 3, Kinds: SetOf(Delay)},
		{},
		{Kinds: SetOf(MissingBreak)},
	} {
		v.MergeInto(&total)
	}
	require.Equal(t, int64(3), total.Delay)
	require.True(t, total.Kinds.Has(MissingBreak))
	require.False(t, total.IsZero())
	require.True(t, Violations{}.IsZero())
}

func TestViolationsJSON(t *testing.T) {
	var v Violations
	v.Add(Delay, 12)
	v.Add(Precedence, 0)

	b, err := json.Marshal(v)
	require.NoError(t, err)
	require.JSONEq(t, `[{"cause":"delay","duration":12},{"cause":"precedence"}]`, string(b))

	var back Violations
	require.NoError(t, json.Unmarshal(b, &back))
	require.Equal(t, v, back)

	empty, err := json.Marshal(Violations{})
	require.NoError(t, err)
	require.Equal(t, `[]`, string(empty))

	require.Error(t, json.Unmarshal([]byte(`[{"cause":"nope"}]`), &back))
}
