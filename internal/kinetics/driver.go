package kinetics

import (
	"fmt"

	"github.com/nvandessel/nestsim/internal/rng"
)

// Model is one fixed reaction topology with its parameters bound.
type Model interface {
	// Categories returns the number of population compartments.
	Categories() int

	// Population returns the fixed number of individuals Na.
	Population() int

	// Events returns the events in canonical order. Rates fills slot i
	// of the table with the propensity of Events()[i].
	Events() []Event

	// Seed writes the initial counts into a zeroed state and returns the
	// rounding correction that was applied to the origin pool to make the
	// counts sum to Population (0 when none was needed).
	Seed(s *State) int

	// Rates computes the propensity of every event for s.
	Rates(s *State, t *Table)

	// Running reports whether the trial continues from s.
	Running(s *State) bool

	// Classify labels a finished trial. A degenerate trial is not
	// accepted. Correct is only meaningful for accepted trials of models
	// that judge decision quality.
	Classify(s *State) (accepted, correct bool)
}

// Outcome summarises one finished trial.
type Outcome struct {
	Accepted  bool
	Correct   bool
	Time      float64
	Events    int
	Shortfall int

	// State is the final state. It is owned by the Driver and is only
	// valid until the next call to Run.
	State *State
}

// Observer receives callbacks from the trial loop.
type Observer interface {
	EventApplied(step int, ev Event, s *State, t float64)
	TrialFinished(o Outcome)
}

// NopObserver ignores every callback.
type NopObserver struct{}

func (NopObserver) EventApplied(int, Event, *State, float64) {}
func (NopObserver) TrialFinished(Outcome)                    {}

// Driver runs trials of one model against one random source. State and
// propensity storage are reused between trials.
type Driver struct {
	model  Model
	src    rng.Source
	obs    Observer
	events []Event
	state  *State
	table  *Table
}

// NewDriver binds a model to a random source. A nil observer is replaced
// by NopObserver.
func NewDriver(m Model, src rng.Source, obs Observer) *Driver {
	if obs == nil {
		obs = NopObserver{}
	}
	events := m.Events()
	return &Driver{
		model:  m,
		src:    src,
		obs:    obs,
		events: events,
		state:  NewState(m.Categories(), m.Population()),
		table:  NewTable(len(events)),
	}
}

// Run executes one trial from seeding to termination. Each iteration
// consumes one propensity evaluation, one selection draw, one state change
// and one waiting-time draw, in that order.
func (d *Driver) Run() (Outcome, error) {
	d.state.Reset()
	shortfall := d.model.Seed(d.state)
	if sum := d.state.Sum(); sum != d.state.Population() {
		return Outcome{}, &InvariantError{
			Op:     "seed",
			Detail: fmt.Sprintf("seeded %d individuals, want %d", sum, d.state.Population()),
		}
	}

	var t float64
	steps := 0
	for d.model.Running(d.state) {
		d.model.Rates(d.state, d.table)
		total := d.table.Total()

		i, err := Select(d.table, rng.Uniform(d.src))
		if err != nil {
			return Outcome{}, err
		}
		ev := d.events[i]
		if err := d.state.Apply(ev); err != nil {
			return Outcome{}, err
		}

		t += WaitingTime(total, rng.Uniform(d.src))
		steps++
		d.obs.EventApplied(steps, ev, d.state, t)
	}

	accepted, correct := d.model.Classify(d.state)
	out := Outcome{
		Accepted:  accepted,
		Correct:   accepted && correct,
		Time:      t,
		Events:    steps,
		Shortfall: shortfall,
		State:     d.state,
	}
	d.obs.TrialFinished(out)
	return out, nil
}
