package routing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"strconv"
	"sync"

	"vroomgo/internal/metrics"
	"vroomgo/internal/model"
)

// Cache stores matrices under an opaque key.
type Cache interface {
	Get(ctx context.Context, key string) (Matrices, bool, error)
	Put(ctx context.Context, key string, m Matrices) error
}

// CacheKey identifies a matrix request by profile and ordered coordinates.
// Coordinates enter the key at full precision.
func CacheKey(profile string, locs []model.Coordinates) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|", profile)
	var buf []byte
	for _, c := range locs {
		buf = strconv.AppendFloat(buf[:0], c.Lon, 'g', -1, 64)
		buf = append(buf, ',')
		buf = strconv.AppendFloat(buf, c.Lat, 'g', -1, 64)
		buf = append(buf, ';')
		h.Write(buf)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Cached serves matrices from Cache and falls back to Provider on a miss.
// Cache errors are logged and treated as misses.
type Cached struct {
	Provider Provider
	Cache    Cache
	// Name labels cache metrics.
	Name string
}

func (c *Cached) Matrices(ctx context.Context, profile string, locs []model.Coordinates) (Matrices, error) {
	key := CacheKey(profile, locs)
	m, ok, err := c.Cache.Get(ctx, key)
	switch {
	case err != nil:
		metrics.MatrixCache.WithLabelValues(c.Name, "error").Inc()
		log.Printf("op=matrix_cache.get cache=%s err=%v", c.Name, err)
	case ok:
		metrics.MatrixCache.WithLabelValues(c.Name, "hit").Inc()
		return m, nil
	default:
		metrics.MatrixCache.WithLabelValues(c.Name, "miss").Inc()
	}

	m, err = c.Provider.Matrices(ctx, profile, locs)
	if err != nil {
		return Matrices{}, err
	}
	if err := c.Cache.Put(ctx, key, m); err != nil {
		log.Printf("op=matrix_cache.put cache=%s err=%v", c.Name, err)
	}
	return m, nil
}

// MemoryCache keeps matrices in process memory.
type MemoryCache struct {
	mu sync.RWMutex
	m  map[string]Matrices
}

func NewMemoryCache() *MemoryCache { return &MemoryCache{m: map[string]Matrices{}} }

func (c *MemoryCache) Get(_ context.Context, key string) (Matrices, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.m[key]
	return m, ok, nil
}

func (c *MemoryCache) Put(_ context.Context, key string, m Matrices) error {
	c.mu.Lock()
	c.m[key] = m
	c.mu.Unlock()
	return nil
}
