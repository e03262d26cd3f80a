package vrperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindSurvivesWrapping(t *testing.T) {
	base := Inputf("job %d: bad location", 4)
	wrapped := fmt.Errorf("add job: %w", base)

	require.Equal(t, KindInput, KindOf(wrapped))
	require.ErrorIs(t, wrapped, ErrInput)
	require.NotErrorIs(t, wrapped, ErrRouting)
	require.Equal(t, "add job: job 4: bad location", wrapped.Error())
}

func TestKindOfUnclassified(t *testing.T) {
	require.Equal(t, KindInternal, KindOf(errors.New("boom")))
}

func TestWrapKeepsExistingKind(t *testing.T) {
	err := Wrap(KindInternal, Routingf("osrm unreachable"), "solve")
	require.Equal(t, KindRouting, KindOf(err))
	require.Equal(t, "solve: osrm unreachable", err.Error())
	require.NoError(t, Wrap(KindInput, nil, "x"))
}

func TestLegacyCodes(t *testing.T) {
	for _, k := range []Kind{KindInternal, KindInput, KindRouting} {
		err := FromCode(k.Code(), "m")
		require.Equal(t, k, KindOf(err))
	}
	require.Equal(t, 1, KindInternal.Code())
	require.Equal(t, 2, KindInput.Code())
	require.Equal(t, 3, KindRouting.Code())
	require.NoError(t, FromCode(0, ""))
}
