// Package stats provides the reductions applied to trial outcomes: running
// moments, the entropy-based cohesion index, decision precision and the
// Pearson correlation between two sample vectors.
package stats

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrZeroVariance is returned by Pearson when either vector is constant.
var ErrZeroVariance = errors.New("stats: zero variance")

// Moments accumulates the running sum and sum of squares of a series.
// The zero value is ready to use and does not retain samples.
type Moments struct {
	n      int
	sum    float64
	sumSq  float64
	keep   bool
	values []float64
}

// NewMoments returns an accumulator. When keep is true every value is
// retained so that Quantiles can be computed.
func NewMoments(keep bool) *Moments {
	return &Moments{keep: keep}
}

// Add folds x into the accumulator.
func (m *Moments) Add(x float64) {
	m.n++
	m.sum += x
	m.sumSq += x * x
	if m.keep {
		m.values = append(m.values, x)
	}
}

// N returns the number of values added.
func (m *Moments) N() int { return m.n }

// Mean returns the arithmetic mean, or 0 with no values.
func (m *Moments) Mean() float64 {
	if m.n == 0 {
		return 0
	}
	return m.sum / float64(m.n)
}

// Std returns the population standard deviation sqrt(E[x²] − E[x]²). A
// negative radicand from cancellation is clamped to zero.
func (m *Moments) Std() float64 {
	if m.n == 0 {
		return 0
	}
	mean := m.Mean()
	v := m.sumSq/float64(m.n) - mean*mean
	if v < 0 {
		return 0
	}
	return math.Sqrt(v)
}

// Quantiles returns the order statistic at index floor(n·p) of the sorted
// samples for every p. It returns nil when samples are not retained.
func (m *Moments) Quantiles(ps ...float64) []float64 {
	if !m.keep || len(m.values) == 0 {
		return nil
	}
	sorted := make([]float64, len(m.values))
	copy(sorted, m.values)
	sort.Float64s(sorted)

	out := make([]float64, len(ps))
	for i, p := range ps {
		idx := int(float64(len(sorted)) * p)
		if idx < 0 {
			idx = 0
		}
		if idx >= len(sorted) {
			idx = len(sorted) - 1
		}
		out[i] = sorted[idx]
	}
	return out
}

// DefaultQuantiles are the order statistics reported alongside mean times.
var DefaultQuantiles = []float64{0.05, 0.25, 0.5, 0.75, 0.95}

// Entropy returns the Shannon entropy -Σ pᵢ ln pᵢ of the distribution given
// by counts. Empty bins contribute nothing; an all-zero input has entropy 0.
func Entropy(counts []int) float64 {
	total := 0
	for _, c := range counts {
		total += c
	}
	if total == 0 {
		return 0
	}
	var ent float64
	for _, c := range counts {
		if c > 0 {
			p := float64(c) / float64(total)
			ent -= p * math.Log(p)
		}
	}
	return ent
}

// CohesionIndex returns 1 − Entropy(counts)/ln(len(counts)): 1 when every
// ant chose the same nest and 0 for an even split. Fewer than two bins, or
// no ants at all, count as fully cohesive.
func CohesionIndex(counts []int) float64 {
	if len(counts) < 2 {
		return 1
	}
	c := 1 - Entropy(counts)/math.Log(float64(len(counts)))
	switch {
	case c < 0:
		return 0
	case c > 1:
		return 1
	}
	return c
}

// Precision tallies the fraction of decisions that picked the good nest.
type Precision struct {
	total   int
	correct int
}

// Add records one accepted decision.
func (p *Precision) Add(correct bool) {
	p.total++
	if correct {
		p.correct++
	}
}

// N returns the number of recorded decisions.
func (p *Precision) N() int { return p.total }

// Rate returns correct/total, or 0 with no decisions.
func (p *Precision) Rate() float64 {
	if p.total == 0 {
		return 0
	}
	return float64(p.correct) / float64(p.total)
}

// Pearson returns the linear correlation coefficient of x and y, clamped to
// [-1, 1].
func Pearson(x, y []float64) (float64, error) {
	if len(x) != len(y) {
		return 0, fmt.Errorf("stats: pearson vectors differ in length (%d vs %d)", len(x), len(y))
	}
	if len(x) < 2 {
		return 0, fmt.Errorf("stats: pearson needs at least 2 samples, got %d", len(x))
	}

	n := float64(len(x))
	var mx, my float64
	for i := range x {
		mx += x[i]
		my += y[i]
	}
	mx /= n
	my /= n

	var sxx, syy, sxy float64
	for i := range x {
		dx, dy := x[i]-mx, y[i]-my
		sxx += dx * dx
		syy += dy * dy
		sxy += dx * dy
	}
	if sxx == 0 || syy == 0 {
		return 0, ErrZeroVariance
	}

	r := sxy / math.Sqrt(sxx*syy)
	return math.Max(-1, math.Min(1, r)), nil
}
