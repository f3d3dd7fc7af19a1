// Package schedule produces reproducible sequences of distinct slot indices
// for spreading payload bits across a pixel buffer.
package schedule

import (
	"fmt"
	"math/rand/v2"
)

// stream selects the PCG sequence. Changing it changes every schedule.
const stream = 0x9e3779b97f4a7c15

// CapacityError is returned when more slots are requested than exist.
type CapacityError struct {
	Need int
	Have int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("capacity exceeded: need %d slots, only %d available", e.Need, e.Have)
}

// A Scheduler draws slot indices in [0, total) without replacement using a
// lazily materialised Fisher-Yates shuffle, so memory grows with the number
// of draws rather than with total. A Scheduler is not safe for concurrent
// use; build one per operation.
type Scheduler struct {
	rng   *rand.Rand
	total int
	drawn int
	swap  map[int]int
}

// New returns a Scheduler over total slots seeded with seed.
func New(seed uint64, total int) *Scheduler {
	return &Scheduler{
		rng:   rand.New(rand.NewPCG(seed, stream)),
		total: total,
		swap:  make(map[int]int),
	}
}

// Remaining reports how many slots have not been drawn yet.
func (s *Scheduler) Remaining() int { return s.total - s.drawn }

// Next returns the next slot index.
func (s *Scheduler) Next() (int, error) {
	if s.drawn >= s.total {
		return 0, &CapacityError{Need: s.drawn + 1, Have: s.total}
	}
	j := s.drawn + s.rng.IntN(s.total-s.drawn)
	picked := s.at(j)
	s.swap[j] = s.at(s.drawn)
	delete(s.swap, s.drawn)
	s.drawn++
	return picked, nil
}

func (s *Scheduler) at(i int) int {
	if v, ok := s.swap[i]; ok {
		return v
	}
	return i
}

// Take draws the next n slot indices.
func (s *Scheduler) Take(n int) ([]int, error) {
	if n < 0 {
		return nil, fmt.Errorf("schedule: negative count %d", n)
	}
	if n > s.Remaining() {
		return nil, &CapacityError{Need: s.drawn + n, Have: s.total}
	}
	out := make([]int, n)
	for i := range out {
		out[i], _ = s.Next()
	}
	return out, nil
}

// Schedule returns count distinct indices in [0, totalSlots) derived from
// seed. Identical arguments always give the identical sequence, and the
// sequence for a smaller count is a prefix of the one for a larger count.
func Schedule(seed uint64, totalSlots, count int) ([]int, error) {
	if count > totalSlots {
		return nil, &CapacityError{Need: count, Have: totalSlots}
	}
	return New(seed, totalSlots).Take(count)
}
