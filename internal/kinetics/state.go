// Package kinetics implements an exact continuous-time stochastic simulation
// (Gillespie direct method) over a fixed, hand-enumerated set of events that
// each move one individual between two categories.
//
// A trial is driven by a Model, which seeds the population, fills a
// propensity Table for the current State, and decides when to stop. The
// Driver owns the loop: compute rates, pick one event proportional to its
// rate, apply it, advance time by an exponential waiting time.
package kinetics

import (
	"fmt"
)

// Category indexes one population compartment within a model.
type Category int

// EventKind tags what an event represents.
type EventKind uint8

const (
	// Recruit moves an ant from an origin pool to a candidate nest.
	Recruit EventKind = iota
	// Convert turns a committed ant into a recruiter.
	Convert
	// Switch moves a visitor from one candidate nest to another.
	Switch
	// Leak returns an ant from a candidate nest to its origin pool.
	Leak
)

// String returns the event kind name.
func (k EventKind) String() string {
	switch k {
	case Recruit:
		return "recruit"
	case Convert:
		return "convert"
	case Switch:
		return "switch"
	case Leak:
		return "leak"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Event moves exactly one unit from From to To.
type Event struct {
	Kind EventKind
	From Category
	To   Category
}

// InvariantError reports a broken simulation invariant: a count driven
// negative, an empty propensity table while a trial still runs, or a
// selection that matched no event.
type InvariantError struct {
	Op     string
	Detail string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant violation in %s: %s", e.Op, e.Detail)
}

// State holds per-category integer counts for one trial. The sum of all
// counts equals the population size at every instant once seeded.
type State struct {
	counts []int
	total  int
}

// NewState returns a zeroed state with n categories and population total.
func NewState(n, total int) *State {
	return &State{counts: make([]int, n), total: total}
}

// Len returns the number of categories.
func (s *State) Len() int { return len(s.counts) }

// Population returns the fixed population size.
func (s *State) Population() int { return s.total }

// Count returns the number of individuals in c.
func (s *State) Count(c Category) int { return s.counts[c] }

// Set overwrites the count of c. Only models use it, while seeding.
func (s *State) Set(c Category, n int) { s.counts[c] = n }

// Reset zeroes every count.
func (s *State) Reset() {
	for i := range s.counts {
		s.counts[i] = 0
	}
}

// Sum returns the total of all category counts.
func (s *State) Sum() int {
	sum := 0
	for _, n := range s.counts {
		sum += n
	}
	return sum
}

// Counts returns a copy of all category counts.
func (s *State) Counts() []int {
	out := make([]int, len(s.counts))
	copy(out, s.counts)
	return out
}

// Clone returns an independent copy of the state.
func (s *State) Clone() *State {
	return &State{counts: s.Counts(), total: s.total}
}

// Apply moves one unit from ev.From to ev.To. The source count must be
// positive; otherwise the state is left untouched and an
// *InvariantError is returned.
func (s *State) Apply(ev Event) error {
	if ev.From < 0 || int(ev.From) >= len(s.counts) || ev.To < 0 || int(ev.To) >= len(s.counts) {
		return &InvariantError{
			Op:     "apply",
			Detail: fmt.Sprintf("%s event %d->%d outside %d categories", ev.Kind, ev.From, ev.To, len(s.counts)),
		}
	}
	if s.counts[ev.From] <= 0 {
		return &InvariantError{
			Op:     "apply",
			Detail: fmt.Sprintf("%s event would drive category %d negative", ev.Kind, ev.From),
		}
	}
	s.counts[ev.From]--
	s.counts[ev.To]++
	return nil
}
