// Package config loads service settings from an optional YAML file, a .env
// file and the process environment, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	yaml "gopkg.in/yaml.v3"

	"vroomgo/internal/model"
	"vroomgo/internal/routing"
)

type Routing struct {
	Router string `yaml:"router"`
	// Servers maps a profile to "host:port" or a URL.
	Servers   map[string]string `yaml:"servers"`
	APIKey    string            `yaml:"api_key"`
	RateLimit float64           `yaml:"rate_limit"`
	Burst     int               `yaml:"burst"`
	Attempts  int               `yaml:"attempts"`
	CacheTTL  time.Duration     `yaml:"cache_ttl"`
}

type Solve struct {
	ExplorationLevel int           `yaml:"exploration_level"`
	Threads          int           `yaml:"threads"`
	Timeout          time.Duration `yaml:"timeout"`
	Geometry         bool          `yaml:"geometry"`
}

type Config struct {
	Port        string         `yaml:"port"`
	DatabaseURL string         `yaml:"database_url"`
	RedisURL    string         `yaml:"redis_url"`
	Routing     Routing        `yaml:"routing"`
	Solve       Solve          `yaml:"solve"`
	Defaults    model.Defaults `yaml:"defaults"`
}

// Default is the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Port: "8080",
		Routing: Routing{
			Router:   "osrm",
			Servers:  map[string]string{},
			Attempts: 4,
			CacheTTL: 24 * time.Hour,
		},
		Solve:    Solve{ExplorationLevel: 5, Threads: 4},
		Defaults: model.DefaultValues(),
	}
}

// Load reads path when non-empty, then .env, then the environment.
func Load(path string) (Config, error) {
	c := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return c, fmt.Errorf("config: %w", err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return c, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return c, fmt.Errorf("config: .env: %w", err)
	}
	if err := c.applyEnv(os.Getenv); err != nil {
		return c, err
	}
	c.Defaults = c.Defaults.Fill()
	return c, c.Validate()
}

func (c *Config) applyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	str("PORT", &c.Port)
	str("DATABASE_URL", &c.DatabaseURL)
	str("REDIS_URL", &c.RedisURL)
	str("VROOM_ROUTER", &c.Routing.Router)
	str("ORS_API_KEY", &c.Routing.APIKey)

	if v := getenv("VROOM_SERVERS"); v != "" {
		servers, err := parseServers(v)
		if err != nil {
			return err
		}
		c.Routing.Servers = servers
	}
	for key, dst := range map[string]*int{
		"VROOM_EXPLORATION": &c.Solve.ExplorationLevel,
		"VROOM_THREADS":     &c.Solve.Threads,
	} {
		if v := getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("config: %s: %w", key, err)
			}
			*dst = n
		}
	}
	if v := getenv("VROOM_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: VROOM_TIMEOUT: %w", err)
		}
		c.Solve.Timeout = d
	}
	if v := getenv("VROOM_GEOMETRY"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: VROOM_GEOMETRY: %w", err)
		}
		c.Solve.Geometry = b
	}
	return nil
}

// parseServers reads "profile:host:port" entries separated by commas. An
// entry without profile applies to the default profile "car".
func parseServers(s string) (map[string]string, error) {
	out := map[string]string{}
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		profile, addr := "car", entry
		if p, rest, ok := strings.Cut(entry, ":"); ok && strings.Contains(rest, ":") && !strings.HasPrefix(rest, "//") {
			profile, addr = p, rest
		}
		if _, err := routing.ParseServer(addr); err != nil {
			return nil, fmt.Errorf("config: VROOM_SERVERS: %w", err)
		}
		out[profile] = addr
	}
	return out, nil
}

func (c Config) Validate() error {
	if _, err := routing.ParseKind(c.Routing.Router); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Solve.Threads < 1 {
		return fmt.Errorf("config: threads %d must be >= 1", c.Solve.Threads)
	}
	if c.Solve.ExplorationLevel < 0 {
		return fmt.Errorf("config: exploration level %d must be >= 0", c.Solve.ExplorationLevel)
	}
	if c.Solve.Timeout < 0 {
		return fmt.Errorf("config: negative timeout %s", c.Solve.Timeout)
	}
	return nil
}

// RouterKind is the parsed routing engine kind.
func (c Config) RouterKind() routing.Kind {
	k, _ := routing.ParseKind(c.Routing.Router)
	return k
}

// RoutingServers parses the configured per-profile servers.
func (c Config) RoutingServers() (map[string]routing.Server, error) {
	out := make(map[string]routing.Server, len(c.Routing.Servers))
	for profile, addr := range c.Routing.Servers {
		srv, err := routing.ParseServer(addr)
		if err != nil {
			return nil, fmt.Errorf("config: profile %q: %w", profile, err)
		}
		out[profile] = srv
	}
	return out, nil
}

// RouterOptions turns routing settings into client options.
func (c Config) RouterOptions() []routing.Option {
	opts := []routing.Option{routing.WithRetry(c.Routing.Attempts, 200*time.Millisecond)}
	if c.Routing.RateLimit > 0 {
		opts = append(opts, routing.WithRateLimit(c.Routing.RateLimit, c.Routing.Burst))
	}
	if c.Routing.APIKey != "" {
		opts = append(opts, routing.WithAPIKey(c.Routing.APIKey))
	}
	return opts
}
