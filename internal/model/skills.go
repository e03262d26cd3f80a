package model

import "sort"

// Skills is a set of skill identifiers.
type Skills map[uint32]struct{}

func NewSkills(ids ...uint32) Skills {
	s := make(Skills, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s Skills) Has(id uint32) bool {
	_, ok := s[id]
	return ok
}

// SubsetOf reports whether every skill in s is also in o.
func (s Skills) SubsetOf(o Skills) bool {
	for id := range s {
		if !o.Has(id) {
			return false
		}
	}
	return true
}

func (s Skills) Equal(o Skills) bool { return len(s) == len(o) && s.SubsetOf(o) }

// Sorted lists the skills in ascending order.
func (s Skills) Sorted() []uint32 {
	out := make([]uint32, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Slice(out, func(a, b int) bool { return out[a] < out[b] })
	return out
}
