package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"vroomgo/internal/api"
	"vroomgo/internal/buildinfo"
	"vroomgo/internal/config"
	"vroomgo/internal/metrics"
	"vroomgo/internal/problem"
	"vroomgo/internal/routing"
	"vroomgo/internal/store"
)

func main() {
	cfgPath := flag.String("config", "", "optional YAML config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	metrics.RegisterDefault()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srvDeps, closeAll, err := build(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}
	defer closeAll()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           logMiddleware(srvDeps.Router()),
		ReadHeaderTimeout: 5 * time.Second,
		// Solves may run for the configured timeout plus matrix fetches.
		WriteTimeout: 120*time.Second + cfg.Solve.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdown)
	}()

	log.Printf("API listening addr=%s version=%s router=%s", srv.Addr, buildinfo.Version, cfg.RouterKind())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
}

// build wires storage, matrix caching and routing providers behind the API
// server. The returned func releases every opened connection.
func build(ctx context.Context, cfg config.Config) (*api.Server, func(), error) {
	var closers []func() error
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}
	}
	fail := func(err error) (*api.Server, func(), error) {
		closeAll()
		return nil, nil, err
	}

	var st store.Store
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		st = store.NewMemory()
	} else {
		pg, err := store.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, pg.Close)
		if err := pg.Migrate(ctx); err != nil {
			return fail(err)
		}
		st = pg
	}
	srvDeps := api.NewServer(st)

	var (
		cache     routing.Cache
		cacheName string
	)
	switch {
	case cfg.RedisURL != "":
		rc, err := routing.NewRedisCache(cfg.RedisURL, cfg.Routing.CacheTTL)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, rc.Close)
		srvDeps.Ready = append(srvDeps.Ready, rc)
		cache, cacheName = rc, "redis"
	case cfg.DatabaseURL != "":
		sc, err := routing.OpenSQLCache(ctx, cfg.DatabaseURL)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, sc.Close)
		cache, cacheName = sc, "sql"
	default:
		cache, cacheName = routing.NewMemoryCache(), "memory"
	}

	servers, err := cfg.RoutingServers()
	if err != nil {
		return fail(err)
	}
	providers := make(map[string]routing.Provider, len(servers))
	for profile, s := range servers {
		p, err := routing.New(cfg.RouterKind(), s, cfg.RouterOptions()...)
		if err != nil {
			return fail(err)
		}
		providers[profile] = &routing.Cached{Provider: p, Cache: cache, Name: cacheName}
		log.Printf("routing profile=%s server=%s cache=%s", profile, s.BaseURL(), cacheName)
	}

	srvDeps.Problem = problem.Options{
		Providers: providers,
		Defaults:  cfg.Defaults,
		Geometry:  cfg.Solve.Geometry,
	}
	srvDeps.Solve = problem.SolveOptions{
		ExplorationLevel: cfg.Solve.ExplorationLevel,
		Threads:          cfg.Solve.Threads,
		Timeout:          cfg.Solve.Timeout,
	}
	return srvDeps, closeAll, nil
}

func logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		dur := time.Since(start)
		log.Printf("%s %s %s %v", r.RemoteAddr, r.Method, r.URL.Path, dur)
	})
}
