// Package meanfield integrates the deterministic mean-field equations of
// the two-nest quorum model. Populations are fractions of the colony and
// the recruitment terms drop the 1/Na normalisation of the stochastic
// model.
package meanfield

import (
	"context"
	"errors"
	"fmt"

	"github.com/nvandessel/nestsim/internal/colony"
)

// Defaults for Options.
const (
	DefaultStep       = 0.001
	DefaultEps        = 0.1
	DefaultSampleRate = 100
	DefaultQuorum     = 0.5
	DefaultMaxTime    = 10000
)

// ErrNoConvergence is returned when the origin never drains below Eps
// within MaxTime.
var ErrNoConvergence = errors.New("meanfield: origin did not drain before the time limit")

// Options control the integrator.
type Options struct {
	// Step is the forward-Euler time step.
	Step float64

	// Eps stops the integration once the origin fraction is at or below it.
	Eps float64

	// SampleRate is the number of samples emitted per unit time.
	SampleRate int

	// Quorum is the good-nest fraction whose first upward crossing is
	// reported as the quorum time.
	Quorum float64

	// MaxTime bounds the simulated time.
	MaxTime float64
}

func (o Options) withDefaults() Options {
	if o.Step <= 0 {
		o.Step = DefaultStep
	}
	if o.Eps <= 0 {
		o.Eps = DefaultEps
	}
	if o.SampleRate <= 0 {
		o.SampleRate = DefaultSampleRate
	}
	if o.Quorum <= 0 {
		o.Quorum = DefaultQuorum
	}
	if o.MaxTime <= 0 {
		o.MaxTime = DefaultMaxTime
	}
	return o
}

// Sample is one emitted point of the trajectory.
type Sample struct {
	T              float64 `json:"t"`
	GoodRecruiters float64 `json:"good_recruiters"`
	GoodTotal      float64 `json:"good_total"`
	PoorRecruiters float64 `json:"poor_recruiters"`
	PoorTotal      float64 `json:"poor_total"`
}

// Values returns t good_rec good_total poor_rec poor_total.
func (s Sample) Values() []float64 {
	return []float64{s.T, s.GoodRecruiters, s.GoodTotal, s.PoorRecruiters, s.PoorTotal}
}

// Columns names the values returned by Sample.Values.
var Columns = []string{"t", "good_recruiters", "good_total", "poor_recruiters", "poor_total"}

// Result summarises an integration.
type Result struct {
	// Final is the last state, indexed by colony quorum category.
	Final [9]float64 `json:"final"`

	// Time is the simulated time at which the origin drained.
	Time float64 `json:"time"`

	// QuorumTime is the last time the good-nest fraction crossed
	// Options.Quorum upwards; QuorumReached is false when it never did.
	QuorumTime    float64 `json:"quorum_time"`
	QuorumReached bool    `json:"quorum_reached"`

	Steps int `json:"steps"`
}

// Integrate runs forward Euler from the seeded fractions until the origin
// drains. Fractions are renormalised to sum to 1 after every step. emit,
// when non-nil, receives SampleRate samples per unit time.
func Integrate(ctx context.Context, p colony.QuorumParams, opt Options, emit func(Sample) error) (Result, error) {
	if err := validate(p); err != nil {
		return Result{}, err
	}
	opt = opt.withDefaults()

	x := initial(p)
	prev := x
	dt := opt.Step
	rate := float64(opt.SampleRate)

	var res Result
	t := 0.0
	for origin(x) > opt.Eps {
		if res.Steps%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return res, err
			}
		}
		if t > opt.MaxTime {
			res.Final, res.Time = x, t
			return res, fmt.Errorf("%w (t=%g, origin=%g)", ErrNoConvergence, t, origin(x))
		}

		if emit != nil && int(t*rate) > int((t-dt)*rate) {
			if err := emit(sample(t, x)); err != nil {
				return res, err
			}
		}
		if good(x) > opt.Quorum && good(prev) < opt.Quorum {
			res.QuorumTime = t
			res.QuorumReached = true
		}

		prev = x
		x = step(p, prev, dt)
		t += dt
		res.Steps++
	}

	res.Final = x
	res.Time = t
	return res, nil
}

func validate(p colony.QuorumParams) error {
	if p.High < 0 || p.High > 1 {
		return fmt.Errorf("H must be between 0 and 1, got %g", p.High)
	}
	if p.Z < 0 || p.Z > 1 {
		return fmt.Errorf("z must be between 0 and 1, got %g", p.Z)
	}
	if p.Alpha < 0 || p.AlphaSwitch < 0 || p.Leak < 0 {
		return fmt.Errorf("rates must be non-negative")
	}
	return nil
}

func initial(p colony.QuorumParams) [9]float64 {
	var x [9]float64
	h, z := p.High, p.Z
	l := 1 - h
	x[colony.OriginLow] = l * (1 - z)
	x[colony.OriginHigh] = h * (1 - z)
	x[colony.HighPoorVisitor] = h * z / 2
	x[colony.HighGoodCommitted] = h * z / 2
	x[colony.LowPoorCommitted] = l * z / 2
	x[colony.LowGoodCommitted] = l * z / 2
	return x
}

// step advances every fraction by one Euler step using only the values of
// the previous step, then renormalises.
func step(p colony.QuorumParams, v [9]float64, dt float64) [9]float64 {
	alphaG, alphaP := p.Alpha, p.Alpha
	if p.AlphaGood > 0 {
		alphaG = p.AlphaGood
	}
	if p.AlphaPoor > 0 {
		alphaP = p.AlphaPoor
	}
	as, leak := p.AlphaSwitch, p.Leak

	lo := v[colony.OriginLow]
	ho := v[colony.OriginHigh]
	lpc := v[colony.LowPoorCommitted]
	lpr := v[colony.LowPoorRecruiter]
	hpv := v[colony.HighPoorVisitor]
	lgc := v[colony.LowGoodCommitted]
	hgc := v[colony.HighGoodCommitted]
	lgr := v[colony.LowGoodRecruiter]
	hgr := v[colony.HighGoodRecruiter]
	recruiters := lpr + lgr + hgr
	goodRec := lgr + hgr

	x := v
	x[colony.OriginLow] += dt * (leak*(lpc+lpr+lgc+lgr) - recruiters*lo)
	x[colony.OriginHigh] += dt * (leak*(hpv+hgc+hgr) - recruiters*ho)
	x[colony.LowPoorCommitted] += dt * (lpr*lo - alphaP*lpc - leak*lpc)
	x[colony.HighPoorVisitor] += dt * (lpr*ho - as*hpv - leak*hpv)
	x[colony.LowGoodCommitted] += dt * (goodRec*lo - alphaG*lgc - leak*lgc)
	x[colony.HighGoodCommitted] += dt * (goodRec*ho + as*hpv - alphaG*hgc - leak*hgc)
	x[colony.LowPoorRecruiter] += dt * (alphaP*lpc - leak*lpr)
	x[colony.LowGoodRecruiter] += dt * (alphaG*lgc - leak*lgr)
	x[colony.HighGoodRecruiter] += dt * (alphaG*hgc - leak*hgr)

	var sum float64
	for _, f := range x {
		sum += f
	}
	for i := range x {
		x[i] /= sum
	}
	return x
}

func origin(x [9]float64) float64 {
	return x[colony.OriginLow] + x[colony.OriginHigh]
}

func good(x [9]float64) float64 {
	return x[colony.LowGoodCommitted] + x[colony.HighGoodCommitted] +
		x[colony.LowGoodRecruiter] + x[colony.HighGoodRecruiter]
}

func poor(x [9]float64) float64 {
	return x[colony.LowPoorCommitted] + x[colony.LowPoorRecruiter] + x[colony.HighPoorVisitor]
}

func sample(t float64, x [9]float64) Sample {
	return Sample{
		T:              t,
		GoodRecruiters: x[colony.LowGoodRecruiter] + x[colony.HighGoodRecruiter],
		GoodTotal:      good(x),
		PoorRecruiters: x[colony.LowPoorRecruiter],
		PoorTotal:      poor(x),
	}
}
