package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRegisterDefaultIsIdempotent(t *testing.T) {
	RegisterDefault()
	RegisterDefault()

	Solves.WithLabelValues("ok").Inc()
	require.GreaterOrEqual(t, testutil.ToFloat64(Solves.WithLabelValues("ok")), 1.0)

	mfs, err := Registry.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	require.True(t, names["solve_total"])
}
