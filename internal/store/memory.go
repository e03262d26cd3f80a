package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"vroomgo/internal/solution"
)

type memEntry struct {
	Entry
	body []byte
}

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
	mu      sync.Mutex
	byID    map[string]*memEntry
	ordered []string
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{byID: map[string]*memEntry{}, now: time.Now}
}

// SaveSolution keeps the JSON encoding, so later changes to sol are not seen.
func (m *Memory) SaveSolution(ctx context.Context, sol *solution.Solution) (string, error) {
	body, err := json.Marshal(sol)
	if err != nil {
		return "", fmt.Errorf("store: encode solution: %w", err)
	}
	id := uuid.New().String()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[id] = &memEntry{Entry: entryOf(id, sol, m.now().UTC()), body: body}
	m.ordered = append(m.ordered, id)
	return id, nil
}

func (m *Memory) GetSolution(ctx context.Context, id string) (*solution.Solution, error) {
	m.mu.Lock()
	e, ok := m.byID[id]
	m.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	var sol solution.Solution
	if err := json.Unmarshal(e.body, &sol); err != nil {
		return nil, fmt.Errorf("store: decode solution %s: %w", id, err)
	}
	return &sol, nil
}

func (m *Memory) ListSolutions(ctx context.Context, cursor string, limit int) ([]Entry, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	start := 0
	if cursor != "" {
		for i, id := range m.ordered {
			if id == cursor {
				start = i + 1
				break
			}
		}
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	out := []Entry{}
	for i := start; i < len(m.ordered) && len(out) < limit; i++ {
		out = append(out, m.byID[m.ordered[i]].Entry)
	}
	next := ""
	if n := start + len(out); n < len(m.ordered) && len(out) > 0 {
		next = out[len(out)-1].ID
	}
	return out, next, nil
}
