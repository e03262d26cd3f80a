package store

import (
	"context"
	"errors"
	"time"

	"vroomgo/internal/solution"
)

var ErrNotFound = errors.New("not found")

// Entry is the listing view of a stored solution.
type Entry struct {
	ID         string    `json:"id"`
	Code       int       `json:"code"`
	Cost       int64     `json:"cost"`
	Routes     int       `json:"routes"`
	Unassigned int       `json:"unassigned"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store keeps solved problems so they can be fetched again later.
type Store interface {
	SaveSolution(ctx context.Context, sol *solution.Solution) (string, error)
	GetSolution(ctx context.Context, id string) (*solution.Solution, error)
	// ListSolutions pages newest-last by id order; cursor is the last id seen.
	ListSolutions(ctx context.Context, cursor string, limit int) ([]Entry, string, error)
}

const defaultLimit = 100

func entryOf(id string, sol *solution.Solution, at time.Time) Entry {
	return Entry{
		ID:         id,
		Code:       sol.Code,
		Cost:       sol.Summary.Cost,
		Routes:     len(sol.Routes),
		Unassigned: len(sol.Unassigned),
		CreatedAt:  at,
	}
}
