package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"vroomgo/internal/routing"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{"PORT", "VROOM_ROUTER", "VROOM_SERVERS", "VROOM_EXPLORATION", "VROOM_THREADS", "VROOM_TIMEOUT"} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	c, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "8080", c.Port)
	require.Equal(t, routing.OSRM, c.RouterKind())
	require.Equal(t, 5, c.Solve.ExplorationLevel)
	require.Equal(t, "car", c.Defaults.Profile)
	require.Equal(t, int64(3600), c.Defaults.PerHour)
}

func TestLoadYAMLThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vroom.yaml")
	body := `
port: "9000"
routing:
  router: ors
  servers:
    car: ors.local:8082
  cache_ttl: 2h
solve:
  exploration_level: 2
  threads: 8
  timeout: 1500ms
defaults:
  profile: truck
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	clearEnv(t)
	t.Setenv("VROOM_THREADS", "3")
	t.Setenv("VROOM_SERVERS", "bike:localhost:5001,localhost:5000")

	c, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "9000", c.Port)
	require.Equal(t, routing.ORS, c.RouterKind())
	require.Equal(t, 2*time.Hour, c.Routing.CacheTTL)
	require.Equal(t, 2, c.Solve.ExplorationLevel)
	require.Equal(t, 3, c.Solve.Threads)
	require.Equal(t, 1500*time.Millisecond, c.Solve.Timeout)
	require.Equal(t, "truck", c.Defaults.Profile)
	// Unset fields still take the built-in defaults.
	require.Equal(t, 1.0, c.Defaults.SpeedFactor)

	servers, err := c.RoutingServers()
	require.NoError(t, err)
	require.Len(t, servers, 2)
	require.Equal(t, "http://localhost:5001", servers["bike"].BaseURL())
	require.Equal(t, "http://localhost:5000", servers["car"].BaseURL())
}

func TestApplyEnvErrors(t *testing.T) {
	for key, val := range map[string]string{
		"VROOM_THREADS":  "many",
		"VROOM_TIMEOUT":  "soon",
		"VROOM_SERVERS":  ":5000",
		"VROOM_GEOMETRY": "maybe",
	} {
		t.Run(key, func(t *testing.T) {
			c := Default()
			env := map[string]string{key: val}
			require.Error(t, c.applyEnv(func(k string) string { return env[k] }))
		})
	}
}

func TestValidate(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())

	bad := c
	bad.Solve.Threads = 0
	require.Error(t, bad.Validate())

	bad = c
	bad.Routing.Router = "valhalla"
	require.Error(t, bad.Validate())

	bad = c
	bad.Solve.Timeout = -time.Second
	require.Error(t, bad.Validate())
}

func TestParseServers(t *testing.T) {
	got, err := parseServers("truck:osrm:5000, http://car.example:5001")
	require.NoError(t, err)
	require.Equal(t, map[string]string{"truck": "osrm:5000", "car": "http://car.example:5001"}, got)

	got, err = parseServers("foot:http://walk.example:5002")
	require.NoError(t, err)
	require.Equal(t, "http://walk.example:5002", got["foot"])
}
