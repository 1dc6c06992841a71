package colony

import (
	"fmt"

	"github.com/nvandessel/nestsim/internal/kinetics"
)

// Quorum model categories. Low-threshold ants may commit to either nest and
// recruit from it; high-threshold ants only visit the poor nest, from which
// they switch to the good one, and only recruit for the good nest.
const (
	OriginLow kinetics.Category = iota
	OriginHigh
	LowPoorCommitted
	LowPoorRecruiter
	HighPoorVisitor
	LowGoodCommitted
	HighGoodCommitted
	LowGoodRecruiter
	HighGoodRecruiter

	quorumCategories = int(HighGoodRecruiter) + 1
)

var quorumNames = [quorumCategories]string{
	"origin_low", "origin_high",
	"low_poor_committed", "low_poor_recruiter", "high_poor_visitor",
	"low_good_committed", "high_good_committed",
	"low_good_recruiter", "high_good_recruiter",
}

// quorumEvents is the canonical event order. Selection walks cumulative
// rates in this order, so it is fixed.
var quorumEvents = []kinetics.Event{
	{Kind: kinetics.Recruit, From: OriginLow, To: LowPoorCommitted},
	{Kind: kinetics.Recruit, From: OriginHigh, To: HighPoorVisitor},
	{Kind: kinetics.Recruit, From: OriginLow, To: LowGoodCommitted},
	{Kind: kinetics.Recruit, From: OriginHigh, To: HighGoodCommitted},
	{Kind: kinetics.Convert, From: LowPoorCommitted, To: LowPoorRecruiter},
	{Kind: kinetics.Convert, From: LowGoodCommitted, To: LowGoodRecruiter},
	{Kind: kinetics.Convert, From: HighGoodCommitted, To: HighGoodRecruiter},
	{Kind: kinetics.Switch, From: HighPoorVisitor, To: HighGoodCommitted},
	{Kind: kinetics.Leak, From: LowPoorCommitted, To: OriginLow},
	{Kind: kinetics.Leak, From: HighPoorVisitor, To: OriginHigh},
	{Kind: kinetics.Leak, From: LowPoorRecruiter, To: OriginLow},
	{Kind: kinetics.Leak, From: LowGoodCommitted, To: OriginLow},
	{Kind: kinetics.Leak, From: HighGoodCommitted, To: OriginHigh},
	{Kind: kinetics.Leak, From: LowGoodRecruiter, To: OriginLow},
	{Kind: kinetics.Leak, From: HighGoodRecruiter, To: OriginHigh},
}

// QuorumParams configures the two-nest quality/quorum model.
type QuorumParams struct {
	// Alpha is the committed-to-recruiter conversion rate. It is used for
	// both nests unless AlphaGood or AlphaPoor is set.
	Alpha float64 `json:"alpha" yaml:"alpha"`

	// AlphaGood overrides Alpha at the good nest when positive.
	AlphaGood float64 `json:"alpha_good,omitempty" yaml:"alpha_good,omitempty"`

	// AlphaPoor overrides Alpha at the poor nest when positive.
	AlphaPoor float64 `json:"alpha_poor,omitempty" yaml:"alpha_poor,omitempty"`

	// AlphaSwitch is the rate at which high-threshold ants visiting the
	// poor nest move to the good nest.
	AlphaSwitch float64 `json:"alpha_s" yaml:"alpha_s"`

	// Leak is the per-capita rate of returning to the origin.
	Leak float64 `json:"leak" yaml:"leak"`

	// High is the fraction of high-threshold ants.
	High float64 `json:"h" yaml:"h"`

	// Z is the initial fraction of committed/visiting ants, split evenly
	// between the two nests.
	Z float64 `json:"z" yaml:"z"`

	// Threshold is the quorum as a fraction of Population.
	Threshold float64 `json:"threshold" yaml:"threshold"`

	// Population is the number of ants Na.
	Population int `json:"population" yaml:"population"`
}

// Validate checks the parameter ranges.
func (p QuorumParams) Validate() error {
	if p.Population < 1 {
		return fmt.Errorf("population must be positive, got %d", p.Population)
	}
	if p.High < 0 || p.High > 1 {
		return fmt.Errorf("H must be between 0 and 1, got %g", p.High)
	}
	if p.Z < 0 || p.Z > 1 {
		return fmt.Errorf("z must be between 0 and 1, got %g", p.Z)
	}
	if p.Threshold < 0 || p.Threshold > 1 {
		return fmt.Errorf("threshold must be between 0 and 1, got %g", p.Threshold)
	}
	if p.Alpha < 0 || p.AlphaGood < 0 || p.AlphaPoor < 0 || p.AlphaSwitch < 0 || p.Leak < 0 {
		return fmt.Errorf("rates must be non-negative")
	}
	return nil
}

// QuorumCount returns the quorum threshold as an ant count, floor(threshold × Na).
func (p QuorumParams) QuorumCount() int {
	return int(p.Threshold * float64(p.Population))
}

func (p QuorumParams) alphaGood() float64 {
	if p.AlphaGood > 0 {
		return p.AlphaGood
	}
	return p.Alpha
}

func (p QuorumParams) alphaPoor() float64 {
	if p.AlphaPoor > 0 {
		return p.AlphaPoor
	}
	return p.Alpha
}

// Quorum is the two-nest model with a good and a poor candidate nest.
type Quorum struct {
	p      QuorumParams
	quorum int
	alphaG float64
	alphaP float64
}

// NewQuorum validates p and builds the model.
func NewQuorum(p QuorumParams) (*Quorum, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Quorum{
		p:      p,
		quorum: p.QuorumCount(),
		alphaG: p.alphaGood(),
		alphaP: p.alphaPoor(),
	}, nil
}

// Params returns the model parameters.
func (q *Quorum) Params() QuorumParams { return q.p }

// Threshold returns the quorum count.
func (q *Quorum) Threshold() int { return q.quorum }

func (q *Quorum) Categories() int { return quorumCategories }

func (q *Quorum) Population() int { return q.p.Population }

func (q *Quorum) Events() []kinetics.Event {
	out := make([]kinetics.Event, len(quorumEvents))
	copy(out, quorumEvents)
	return out
}

// Seed splits the colony into origin pools and an initial committed
// fraction z shared evenly by both nests. High-threshold ants at the poor
// nest start as visitors. The rounding remainder goes to the
// high-threshold origin pool.
func (q *Quorum) Seed(s *kinetics.State) int {
	na := float64(q.p.Population)
	h, z := q.p.High, q.p.Z

	originHigh := int(na*h*(1-z) + seedEpsilon)
	originLow := int(na*(1-z)+seedEpsilon) - originHigh
	highEach := int((na*h*z + seedEpsilon) / 2)
	halfZ := int((na*z + seedEpsilon) / 2)
	lowPoor := halfZ - highEach
	lowGood := halfZ - highEach

	s.Set(OriginLow, originLow)
	s.Set(HighPoorVisitor, highEach)
	s.Set(HighGoodCommitted, highEach)
	s.Set(LowPoorCommitted, lowPoor)
	s.Set(LowGoodCommitted, lowGood)

	sum := originHigh + originLow + 2*highEach + lowPoor + lowGood
	shortfall := q.p.Population - sum
	s.Set(OriginHigh, originHigh+shortfall)
	return shortfall
}

func (q *Quorum) Rates(s *kinetics.State, t *kinetics.Table) {
	na := float64(q.p.Population)
	lo := s.Count(OriginLow)
	ho := s.Count(OriginHigh)
	lpc := s.Count(LowPoorCommitted)
	lpr := s.Count(LowPoorRecruiter)
	hpv := s.Count(HighPoorVisitor)
	lgc := s.Count(LowGoodCommitted)
	hgc := s.Count(HighGoodCommitted)
	lgr := s.Count(LowGoodRecruiter)
	hgr := s.Count(HighGoodRecruiter)
	goodRec := lgr + hgr
	leak := q.p.Leak

	t.Set(0, float64(lpr)*float64(lo)/na)
	t.Set(1, float64(lpr)*float64(ho)/na)
	t.Set(2, float64(goodRec)*float64(lo)/na)
	t.Set(3, float64(goodRec)*float64(ho)/na)
	t.Set(4, q.alphaP*float64(lpc))
	t.Set(5, q.alphaG*float64(lgc))
	t.Set(6, q.alphaG*float64(hgc))
	t.Set(7, q.p.AlphaSwitch*float64(hpv))
	t.Set(8, leak*float64(lpc))
	t.Set(9, leak*float64(hpv))
	t.Set(10, leak*float64(lpr))
	t.Set(11, leak*float64(lgc))
	t.Set(12, leak*float64(hgc))
	t.Set(13, leak*float64(lgr))
	t.Set(14, leak*float64(hgr))
}

// Running continues while at least one ant is away from the origin and
// neither nest has reached the quorum.
func (q *Quorum) Running(s *kinetics.State) bool {
	return OriginTotal(s) < q.p.Population && GoodTotal(s) < q.quorum && PoorTotal(s) < q.quorum
}

// Classify accepts trials that stopped on a quorum with ants still away
// from the origin. Accepted trials are correct when the good nest holds
// the quorum.
func (q *Quorum) Classify(s *kinetics.State) (bool, bool) {
	accepted := OriginTotal(s) < q.p.Population
	return accepted, accepted && GoodTotal(s) == q.quorum
}

// OriginTotal returns the ants at the origin, both classes.
func OriginTotal(s *kinetics.State) int {
	return s.Count(OriginLow) + s.Count(OriginHigh)
}

// GoodTotal returns committed plus recruiter ants at the good nest.
func GoodTotal(s *kinetics.State) int {
	return s.Count(LowGoodCommitted) + s.Count(HighGoodCommitted) +
		s.Count(LowGoodRecruiter) + s.Count(HighGoodRecruiter)
}

// PoorTotal returns committed, recruiter and visiting ants at the poor nest.
func PoorTotal(s *kinetics.State) int {
	return s.Count(LowPoorCommitted) + s.Count(LowPoorRecruiter) + s.Count(HighPoorVisitor)
}

// CategoryName returns a readable name for a quorum category.
func (q *Quorum) CategoryName(cat kinetics.Category) string {
	if cat < 0 || int(cat) >= quorumCategories {
		return fmt.Sprintf("category(%d)", int(cat))
	}
	return quorumNames[cat]
}
