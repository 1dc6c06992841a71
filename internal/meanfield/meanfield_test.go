package meanfield

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/nvandessel/nestsim/internal/colony"
)

func params() colony.QuorumParams {
	return colony.QuorumParams{Alpha: 0.1, AlphaSwitch: 1, Leak: 0.05, High: 0.2, Z: 0.3}
}

func TestInitial(t *testing.T) {
	x := initial(params())
	var sum float64
	for _, f := range x {
		sum += f
	}
	if math.Abs(sum-1) > 1e-12 {
		t.Errorf("initial fractions sum to %g, want 1", sum)
	}
	if got := origin(x); math.Abs(got-0.7) > 1e-12 {
		t.Errorf("origin = %g, want 0.7", got)
	}
	if got, want := good(x), poor(x); math.Abs(got-want) > 1e-12 {
		t.Errorf("good %g != poor %g at start", got, want)
	}
}

func TestStep_Renormalises(t *testing.T) {
	x := initial(params())
	for i := 0; i < 5000; i++ {
		x = step(params(), x, DefaultStep)
		var sum float64
		for _, f := range x {
			if f < 0 {
				t.Fatalf("negative fraction at step %d: %v", i, x)
			}
			sum += f
		}
		if math.Abs(sum-1) > 1e-9 {
			t.Fatalf("sum = %g at step %d", sum, i)
		}
	}
}

func TestIntegrate(t *testing.T) {
	var samples []Sample
	res, err := Integrate(context.Background(), params(), Options{}, func(s Sample) error {
		samples = append(samples, s)
		return nil
	})
	if err != nil {
		t.Fatalf("Integrate: %v", err)
	}
	if origin(res.Final) > DefaultEps {
		t.Errorf("final origin = %g, want <= %g", origin(res.Final), DefaultEps)
	}
	if good(res.Final) <= poor(res.Final) {
		t.Errorf("good %g <= poor %g, switching should favour the good nest", good(res.Final), poor(res.Final))
	}
	if good(res.Final) > 0.55 && !res.QuorumReached {
		t.Error("good nest above quorum but no quorum time recorded")
	}
	if res.QuorumReached && (res.QuorumTime <= 0 || res.QuorumTime > res.Time) {
		t.Errorf("quorum time %g outside (0, %g]", res.QuorumTime, res.Time)
	}

	want := int(res.Time * DefaultSampleRate)
	if d := len(samples) - want; d < -2 || d > 2 {
		t.Errorf("samples = %d, want about %d", len(samples), want)
	}
	for i := 1; i < len(samples); i++ {
		if samples[i].T <= samples[i-1].T {
			t.Fatalf("sample times not increasing at %d", i)
		}
	}
	for _, s := range samples {
		if s.GoodRecruiters > s.GoodTotal || s.PoorRecruiters > s.PoorTotal {
			t.Fatalf("recruiters exceed nest totals: %+v", s)
		}
	}
}

func TestIntegrate_NoRecruitersNeverDrains(t *testing.T) {
	p := params()
	p.Z = 0
	_, err := Integrate(context.Background(), p, Options{MaxTime: 1}, nil)
	if !errors.Is(err, ErrNoConvergence) {
		t.Fatalf("expected ErrNoConvergence, got %v", err)
	}
}

func TestIntegrate_EmitErrorStops(t *testing.T) {
	stop := errors.New("stop")
	_, err := Integrate(context.Background(), params(), Options{}, func(Sample) error { return stop })
	if !errors.Is(err, stop) {
		t.Fatalf("expected emit error, got %v", err)
	}
}

func TestIntegrate_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Integrate(ctx, params(), Options{}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestIntegrate_RejectsBadParams(t *testing.T) {
	p := params()
	p.High = 2
	if _, err := Integrate(context.Background(), p, Options{}, nil); err == nil {
		t.Error("expected error for H > 1")
	}
}
