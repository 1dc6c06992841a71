// Package colony defines the two nest-emigration models run by the
// simulator: a symmetric N-nest model used to measure colony cohesion, and a
// two-nest good/poor model with low- and high-threshold ants used to measure
// the speed and accuracy of quorum decisions.
package colony

import (
	"fmt"

	"github.com/nvandessel/nestsim/internal/kinetics"
)

// seedEpsilon guards the floor of fractional initial counts against values
// such as 69.99999999 that should round to 70.
const seedEpsilon = 1e-8

// CohesionOrigin is the natal nest in the cohesion model.
const CohesionOrigin kinetics.Category = 0

// CohesionParams configures the N-nest cohesion model.
type CohesionParams struct {
	// Alpha is the rate at which committed ants turn into recruiters.
	Alpha float64 `json:"alpha" yaml:"alpha"`

	// Leak is the per-capita rate at which ants return to the origin.
	Leak float64 `json:"leak" yaml:"leak"`

	// Z is the initial fraction of committed ants, spread evenly over the nests.
	Z float64 `json:"z" yaml:"z"`

	// Population is the number of ants Na.
	Population int `json:"population" yaml:"population"`

	// Nests is the number of candidate nests, all of equal quality.
	Nests int `json:"nests" yaml:"nests"`
}

// Validate checks the parameter ranges.
func (p CohesionParams) Validate() error {
	if p.Population < 1 {
		return fmt.Errorf("population must be positive, got %d", p.Population)
	}
	if p.Nests < 2 {
		return fmt.Errorf("need at least 2 candidate nests, got %d", p.Nests)
	}
	if p.Z < 0 || p.Z > 1 {
		return fmt.Errorf("z must be between 0 and 1, got %g", p.Z)
	}
	if p.Alpha < 0 || p.Leak < 0 {
		return fmt.Errorf("rates must be non-negative (alpha=%g, leak=%g)", p.Alpha, p.Leak)
	}
	return nil
}

// Cohesion is the symmetric N-nest model. Categories are the origin
// followed by a committed/recruiter pair per nest.
type Cohesion struct {
	p      CohesionParams
	events []kinetics.Event
}

// NewCohesion validates p and builds the model.
func NewCohesion(p CohesionParams) (*Cohesion, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	events := make([]kinetics.Event, 0, 4*p.Nests)
	for i := 0; i < p.Nests; i++ {
		com, rec := CommittedAt(i), RecruiterAt(i)
		events = append(events,
			kinetics.Event{Kind: kinetics.Recruit, From: CohesionOrigin, To: com},
			kinetics.Event{Kind: kinetics.Convert, From: com, To: rec},
			kinetics.Event{Kind: kinetics.Leak, From: com, To: CohesionOrigin},
			kinetics.Event{Kind: kinetics.Leak, From: rec, To: CohesionOrigin},
		)
	}
	return &Cohesion{p: p, events: events}, nil
}

// CommittedAt returns the committed category of nest i.
func CommittedAt(i int) kinetics.Category { return kinetics.Category(1 + 2*i) }

// RecruiterAt returns the recruiter category of nest i.
func RecruiterAt(i int) kinetics.Category { return kinetics.Category(2 + 2*i) }

// Params returns the model parameters.
func (c *Cohesion) Params() CohesionParams { return c.p }

func (c *Cohesion) Categories() int { return 1 + 2*c.p.Nests }

func (c *Cohesion) Population() int { return c.p.Population }

func (c *Cohesion) Events() []kinetics.Event {
	out := make([]kinetics.Event, len(c.events))
	copy(out, c.events)
	return out
}

// Seed places floor(Na(1-z)) ants at the origin and floor(Na z / Nnest)
// committed ants at every nest; any rounding remainder goes to the origin.
func (c *Cohesion) Seed(s *kinetics.State) int {
	na := float64(c.p.Population)
	origin := int(na*(1-c.p.Z) + seedEpsilon)
	perNest := int((na*c.p.Z + seedEpsilon) / float64(c.p.Nests))

	sum := origin
	for i := 0; i < c.p.Nests; i++ {
		s.Set(CommittedAt(i), perNest)
		sum += perNest
	}
	shortfall := c.p.Population - sum
	s.Set(CohesionOrigin, origin+shortfall)
	return shortfall
}

func (c *Cohesion) Rates(s *kinetics.State, t *kinetics.Table) {
	na := float64(c.p.Population)
	origin := float64(s.Count(CohesionOrigin))
	for i := 0; i < c.p.Nests; i++ {
		com := float64(s.Count(CommittedAt(i)))
		rec := float64(s.Count(RecruiterAt(i)))
		t.Set(4*i, rec*origin/na)
		t.Set(4*i+1, c.p.Alpha*com)
		t.Set(4*i+2, c.p.Leak*com)
		t.Set(4*i+3, c.p.Leak*rec)
	}
}

// Running continues while some but not all ants are away and more than 10%
// of the colony is still at the origin.
func (c *Cohesion) Running(s *kinetics.State) bool {
	origin := s.Count(CohesionOrigin)
	return origin < c.p.Population && float64(origin) > 0.1*float64(c.p.Population)
}

// Classify accepts every trial that did not end with the whole colony back
// at the origin.
func (c *Cohesion) Classify(s *kinetics.State) (bool, bool) {
	return s.Count(CohesionOrigin) != c.p.Population, false
}

// NestTotals returns committed plus recruiter counts per candidate nest.
func (c *Cohesion) NestTotals(s *kinetics.State) []int {
	out := make([]int, c.p.Nests)
	for i := range out {
		out[i] = s.Count(CommittedAt(i)) + s.Count(RecruiterAt(i))
	}
	return out
}

// CategoryName returns a readable name for a cohesion category.
func (c *Cohesion) CategoryName(cat kinetics.Category) string {
	if cat == CohesionOrigin {
		return "origin"
	}
	nest := (int(cat) - 1) / 2
	if int(cat)%2 == 1 {
		return fmt.Sprintf("committed[%d]", nest)
	}
	return fmt.Sprintf("recruiter[%d]", nest)
}
