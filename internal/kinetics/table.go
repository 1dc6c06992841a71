package kinetics

import (
	"fmt"
	"math"
)

// Table holds the propensity of every event of a model, indexed in the
// model's canonical event order. The order matters: selection walks the
// cumulative sums, so reordering changes which event a given draw picks.
type Table struct {
	rates []float64
}

// NewTable returns a table with n zeroed slots.
func NewTable(n int) *Table {
	return &Table{rates: make([]float64, n)}
}

// Len returns the number of event slots.
func (t *Table) Len() int { return len(t.rates) }

// Set stores the rate of event i.
func (t *Table) Set(i int, rate float64) { t.rates[i] = rate }

// Rate returns the rate of event i.
func (t *Table) Rate(i int) float64 { return t.rates[i] }

// Rates returns a copy of all rates.
func (t *Table) Rates() []float64 {
	out := make([]float64, len(t.rates))
	copy(out, t.rates)
	return out
}

// Total returns the sum of all rates, accumulated in canonical order.
func (t *Table) Total() float64 {
	var sum float64
	for _, r := range t.rates {
		sum += r
	}
	return sum
}

// Select picks one event index with probability proportional to its rate,
// using a single uniform draw u in (0,1). It scales u by the total rate and
// returns the first index whose cumulative rate is not less than the scaled
// draw. Zero-rate slots are never selected.
func Select(t *Table, u float64) (int, error) {
	total := t.Total()
	if !(total > 0) || math.IsInf(total, 0) {
		return -1, &InvariantError{
			Op:     "select",
			Detail: fmt.Sprintf("total propensity %g is not a positive finite rate", total),
		}
	}

	r := u * total
	var cum float64
	for i, rate := range t.rates {
		cum += rate
		if rate > 0 && cum >= r {
			return i, nil
		}
	}

	return -1, &InvariantError{
		Op:     "select",
		Detail: fmt.Sprintf("draw %g exceeds cumulative propensity %g", r, cum),
	}
}

// WaitingTime returns the exponential inter-event time -ln(u)/total for a
// uniform draw u in (0,1).
func WaitingTime(total, u float64) float64 {
	return -1.0 / total * math.Log(u)
}
