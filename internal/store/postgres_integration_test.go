//go:build postgres_integration

package store

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"vroomgo/internal/solution"
)

func TestPostgresRoundTrip(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping integration test")
	}
	p, err := NewPostgres(dsn)
	require.NoError(t, err)
	defer p.Close()
	require.NoError(t, p.Ping(t.Context()))
	require.NoError(t, p.Migrate(t.Context()))

	id, err := p.SaveSolution(t.Context(), &solution.Solution{Code: 2, Error: "no vehicles"})
	require.NoError(t, err)
	got, err := p.GetSolution(t.Context(), id)
	require.NoError(t, err)
	require.Equal(t, 2, got.Code)
	require.Equal(t, "no vehicles", got.Error)

	_, err = p.GetSolution(t.Context(), "00000000-0000-0000-0000-000000000000")
	require.ErrorIs(t, err, ErrNotFound)

	_, _, err = p.ListSolutions(t.Context(), "", 1)
	require.NoError(t, err)
}
