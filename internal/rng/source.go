// Package rng provides the uniform random bit sources that drive the
// stochastic simulation. A Source is seeded once and then consumed strictly
// in program order; the simulation never reseeds between trials.
package rng

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// Kind names for New.
const (
	KindMT19937 = "mt19937"
	KindPCG     = "pcg"
)

// Source is a seedable generator of uniformly distributed 32-bit words.
type Source interface {
	Seed(seed uint64)
	Uint32() uint32
}

// New returns a freshly seeded source of the given kind.
func New(kind string, seed uint64) (Source, error) {
	switch kind {
	case KindMT19937, "":
		return NewMT19937(seed), nil
	case KindPCG:
		return NewPCG(seed), nil
	default:
		return nil, fmt.Errorf("unknown random source %q (valid: %s, %s)", kind, KindMT19937, KindPCG)
	}
}

// Uniform draws a value strictly inside (0,1) as (x+0.5)/2^32.
// It never returns exactly 0 or exactly 1, so ln(u) is always finite.
func Uniform(src Source) float64 {
	return (float64(src.Uint32()) + 0.5) / 4294967296.0
}

// WallClockSeed returns a seed taken from the current Unix time in seconds.
func WallClockSeed() uint64 {
	return uint64(time.Now().Unix())
}

// Derive mixes a base seed with a stream index (splitmix64) so that parallel
// workers get well separated seeds from a single configured value.
func Derive(seed, index uint64) uint64 {
	z := seed + (index+1)*0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// PCG adapts math/rand/v2's PCG generator to Source.
type PCG struct {
	pcg *rand.PCG
}

// NewPCG returns a PCG source seeded with seed.
func NewPCG(seed uint64) *PCG {
	return &PCG{pcg: rand.NewPCG(seed, Derive(seed, 0))}
}

// Seed resets the generator.
func (p *PCG) Seed(seed uint64) {
	p.pcg.Seed(seed, Derive(seed, 0))
}

// Uint32 returns the high 32 bits of the next 64-bit output.
func (p *PCG) Uint32() uint32 {
	return uint32(p.pcg.Uint64() >> 32)
}
