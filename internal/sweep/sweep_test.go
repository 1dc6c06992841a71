package sweep

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/nvandessel/nestsim/internal/colony"
	"github.com/nvandessel/nestsim/internal/kinetics"
	"github.com/nvandessel/nestsim/internal/rng"
)

func scenarioTrials() int {
	if testing.Short() {
		return 1000
	}
	return DefaultTrials
}

func TestRunCohesion_Scenario(t *testing.T) {
	r := &Runner{Source: rng.NewMT19937(20240601), Trials: scenarioTrials()}
	res, err := r.RunCohesion(context.Background(), colony.CohesionParams{
		Alpha: 0.1, Leak: 0.05, Z: 0.1, Population: 100, Nests: 2,
	})
	if err != nil {
		t.Fatalf("RunCohesion: %v", err)
	}
	if res.Accepted != r.Trials {
		t.Errorf("accepted = %d, want %d", res.Accepted, r.Trials)
	}
	if !(res.TimeMean > 0) || math.IsInf(res.TimeMean, 0) {
		t.Errorf("time mean = %g, want finite positive", res.TimeMean)
	}
	if !(res.CohesionMean > 0 && res.CohesionMean < 1) {
		t.Errorf("cohesion mean = %g, want strictly inside (0,1)", res.CohesionMean)
	}
	if res.TimeStd < 0 || math.IsNaN(res.TimeStd) {
		t.Errorf("time std = %g", res.TimeStd)
	}
}

func TestRunQuorum_Scenario(t *testing.T) {
	r := &Runner{Source: rng.NewMT19937(99), Trials: scenarioTrials()}
	res, err := r.RunQuorum(context.Background(), colony.QuorumParams{
		Alpha: 0.1, AlphaSwitch: 0.1, Leak: 0.05, High: 0.2, Z: 0.3, Threshold: 0.5, Population: 100,
	})
	if err != nil {
		t.Fatalf("RunQuorum: %v", err)
	}
	if res.Precision <= 0.5 {
		t.Errorf("precision = %g, want > 0.5", res.Precision)
	}
	if !(res.TimeMean > 0) {
		t.Errorf("time mean = %g, want positive", res.TimeMean)
	}
}

type outcomeRecorder struct {
	kinetics.NopObserver
	outcomes []kinetics.Outcome
}

func (o *outcomeRecorder) TrialFinished(out kinetics.Outcome) {
	out.State = nil
	o.outcomes = append(o.outcomes, out)
}

func TestRunCohesion_DiscardsDegenerateTrials(t *testing.T) {
	obs := &outcomeRecorder{}
	r := &Runner{Source: rng.NewMT19937(8), Trials: 200, Observer: obs}

	// One committed ant per nest: about one trial in nine loses both to the
	// leak before either starts recruiting.
	res, err := r.RunCohesion(context.Background(), colony.CohesionParams{
		Alpha: 0.1, Leak: 0.05, Z: 0.02, Population: 100, Nests: 2,
	})
	if err != nil {
		t.Fatalf("RunCohesion: %v", err)
	}
	if res.Accepted != 200 {
		t.Errorf("accepted = %d, want 200", res.Accepted)
	}
	if res.Degenerate == 0 {
		t.Error("expected some degenerate trials")
	}
	if got := len(obs.outcomes); got != res.Accepted+res.Degenerate {
		t.Errorf("observer saw %d trials, want %d", got, res.Accepted+res.Degenerate)
	}

	var sum float64
	n := 0
	for _, o := range obs.outcomes {
		if o.Accepted {
			sum += o.Time
			n++
		}
	}
	if n != 200 {
		t.Fatalf("accepted outcomes = %d, want 200", n)
	}
	if want := sum / float64(n); math.Abs(res.TimeMean-want) > 1e-12 {
		t.Errorf("time mean = %g, want mean over accepted only %g", res.TimeMean, want)
	}
}

func TestRunCohesion_AttemptLimit(t *testing.T) {
	// z = 0.01 with two nests seeds no committed ants, so every trial is
	// degenerate.
	r := &Runner{Source: rng.NewMT19937(1), Trials: 10, MaxAttempts: 50}
	_, err := r.RunCohesion(context.Background(), colony.CohesionParams{
		Alpha: 0.1, Leak: 0.05, Z: 0.01, Population: 100, Nests: 2,
	})
	if !errors.Is(err, ErrAttemptsExhausted) {
		t.Fatalf("expected ErrAttemptsExhausted, got %v", err)
	}
}

func TestRunQuorum_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := &Runner{Source: rng.NewMT19937(1), Trials: 10}
	_, err := r.RunQuorum(ctx, colony.QuorumParams{
		Alpha: 0.1, AlphaSwitch: 1, Leak: 0.05, High: 0.2, Z: 0.3, Threshold: 0.3, Population: 100,
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRunner_ReproducibleFromSeed(t *testing.T) {
	p := colony.QuorumParams{Alpha: 0.3, AlphaSwitch: 1, Leak: 0.05, High: 0.2, Z: 0.3, Threshold: 0.35, Population: 100}
	run := func() QuorumResult {
		r := &Runner{Source: rng.NewMT19937(1234), Trials: 300}
		res, err := r.RunQuorum(context.Background(), p)
		if err != nil {
			t.Fatal(err)
		}
		return res
	}
	a, b := run(), run()
	if a.TimeMean != b.TimeMean || a.Precision != b.Precision {
		t.Errorf("same seed gave different results: %+v vs %+v", a, b)
	}
}

func TestRunQuorum_Quantiles(t *testing.T) {
	r := &Runner{Source: rng.NewMT19937(5), Trials: 200, Quantiles: true}
	res, err := r.RunQuorum(context.Background(), colony.QuorumParams{
		Alpha: 0.3, AlphaSwitch: 1, Leak: 0.05, High: 0.2, Z: 0.3, Threshold: 0.3, Population: 100,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.TimeQuantiles) != 5 {
		t.Fatalf("quantiles = %v, want 5 values", res.TimeQuantiles)
	}
	for i := 1; i < len(res.TimeQuantiles); i++ {
		if res.TimeQuantiles[i] < res.TimeQuantiles[i-1] {
			t.Errorf("quantiles not ordered: %v", res.TimeQuantiles)
		}
	}
	if len(res.Columns()) != len(res.Values()) {
		t.Errorf("columns %v do not match values %v", res.Columns(), res.Values())
	}
	if res.Columns()[7] != "time_q05" {
		t.Errorf("first quantile column = %q, want time_q05", res.Columns()[7])
	}
}

func TestParseVary(t *testing.T) {
	tests := []struct {
		in      string
		want    Vary
		wantErr bool
	}{
		{"0", VaryHigh, false},
		{"3", VaryThreshold, false},
		{"4", 0, true},
		{"-1", 0, true},
		{"z", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseVary(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseVary(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseVary(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestDefaultPreset(t *testing.T) {
	tests := []struct {
		vary     Vary
		samples  int
		ySamples int
	}{
		{VaryHigh, 6, 6},
		{VaryZ, 4, 6},
		{VaryAlphaSwitch, 6, 6},
		{VaryThreshold, 6, 4},
	}
	for _, tt := range tests {
		p, err := DefaultPreset(tt.vary)
		if err != nil {
			t.Fatal(err)
		}
		if p.Samples != tt.samples || p.YSamples != tt.ySamples {
			t.Errorf("%v: samples=%d y=%d, want %d %d", tt.vary, p.Samples, p.YSamples, tt.samples, tt.ySamples)
		}
		if p.AlphaSamples != 15 || p.Population != 100 {
			t.Errorf("%v: alpha samples=%d Na=%d", tt.vary, p.AlphaSamples, p.Population)
		}
		if err := p.Validate(); err != nil {
			t.Errorf("%v: Validate: %v", tt.vary, err)
		}
	}
	if _, err := DefaultPreset(Vary(7)); err == nil {
		t.Error("expected error for unknown selector")
	}
}

func TestPreset_Params(t *testing.T) {
	high, _ := DefaultPreset(VaryHigh)
	q := high.Params(0.2, 0.3, 2)
	if math.Abs(q.High-(3.0/15+1e-8)) > 1e-15 || q.Z != 0.3 || q.Threshold != 0.3 || q.AlphaSwitch != 1 {
		t.Errorf("vary H params = %+v", q)
	}

	as, _ := DefaultPreset(VaryAlphaSwitch)
	if q := as.Params(0.2, 0.3, 0); q.AlphaSwitch != 0 {
		t.Errorf("first alpha_s sample = %g, want 0", q.AlphaSwitch)
	}

	th, _ := DefaultPreset(VaryThreshold)
	q = th.Params(0.5, th.Y(1), 3)
	if math.Abs(q.Z-0.2) > 1e-12 || math.Abs(q.Threshold-0.4) > 1e-12 {
		t.Errorf("vary threshold params = %+v", q)
	}
	if got := th.YEdge(0.2); math.Abs(got-0.25) > 1e-12 {
		t.Errorf("YEdge = %g, want 0.25", got)
	}
	if got := high.Y(-1); math.Abs(got-0.2) > 1e-12 {
		t.Errorf("sentinel y = %g, want 0.2", got)
	}
}

type recordingSink struct {
	cells  []Cell
	blocks []bool
}

func (s *recordingSink) Cell(c Cell) error {
	s.cells = append(s.cells, c)
	return nil
}

func (s *recordingSink) EndBlock(dummy bool) error {
	s.blocks = append(s.blocks, dummy)
	return nil
}

func smallPreset() Preset {
	p, _ := DefaultPreset(VaryZ)
	p.AlphaSamples = 1
	p.YSamples = 1
	p.Samples = 3
	p.AlphaStep = 0.5
	return p
}

func TestSpeedAccuracy_GridShape(t *testing.T) {
	r := &Runner{Source: rng.NewMT19937(3), Trials: 100}
	sink := &recordingSink{}
	if err := r.SpeedAccuracy(context.Background(), smallPreset(), sink); err != nil {
		t.Fatalf("SpeedAccuracy: %v", err)
	}

	if len(sink.cells) != 4 {
		t.Fatalf("cells = %d, want 4", len(sink.cells))
	}
	if len(sink.blocks) != 2 || !sink.blocks[0] || sink.blocks[1] {
		t.Errorf("blocks = %v, want [true false]", sink.blocks)
	}
	for i := 0; i < 3; i++ {
		c := sink.cells[i]
		if !c.Dummy || c.Corr != DummyCorrelation || len(c.Times) != 0 {
			t.Errorf("cell %d = %+v, want dummy", i, c)
		}
	}

	cell := sink.cells[3]
	if cell.Dummy {
		t.Fatal("last cell is dummy")
	}
	if cell.Alpha != 0.5 || math.Abs(cell.Y-0.25) > 1e-12 {
		t.Errorf("cell at (%g, %g), want (0.5, 0.25)", cell.Alpha, cell.Y)
	}
	if math.Abs(cell.AlphaEdge-0.55) > 1e-12 || math.Abs(cell.YEdge-0.275) > 1e-12 {
		t.Errorf("edges = (%g, %g)", cell.AlphaEdge, cell.YEdge)
	}
	if len(cell.Times) != 3 || len(cell.Precisions) != 3 {
		t.Errorf("inner samples = %d/%d, want 3", len(cell.Times), len(cell.Precisions))
	}
	if !math.IsNaN(cell.Corr) && (cell.Corr < -1 || cell.Corr > 1) {
		t.Errorf("corr = %g out of [-1,1]", cell.Corr)
	}
}

func TestSpeedAccuracy_ParallelIsDeterministicPerSeed(t *testing.T) {
	run := func() Cell {
		r := &Runner{Trials: 100, Workers: 3, Seed: 42, RNG: rng.KindPCG}
		c, err := r.Correlate(context.Background(), smallPreset(), 0.5, 0.3)
		if err != nil {
			t.Fatalf("Correlate: %v", err)
		}
		return c
	}
	a, b := run(), run()
	for i := range a.Times {
		if a.Times[i] != b.Times[i] || a.Precisions[i] != b.Precisions[i] {
			t.Fatalf("sample %d differs between runs: %g/%g vs %g/%g",
				i, a.Times[i], a.Precisions[i], b.Times[i], b.Precisions[i])
		}
	}
}

type failingSink struct{ recordingSink }

var errSinkFull = errors.New("sink full")

func (f *failingSink) Cell(Cell) error { return errSinkFull }

func TestSpeedAccuracy_SinkErrorStops(t *testing.T) {
	r := &Runner{Source: rng.NewMT19937(3), Trials: 10}
	err := r.SpeedAccuracy(context.Background(), smallPreset(), &failingSink{})
	if !errors.Is(err, errSinkFull) {
		t.Fatalf("expected sink error, got %v", err)
	}
}
