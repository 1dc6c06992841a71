package colony

import (
	"math"
	"testing"

	"github.com/nvandessel/nestsim/internal/kinetics"
	"github.com/nvandessel/nestsim/internal/rng"
)

func TestCohesionParams_Validate(t *testing.T) {
	tests := []struct {
		name    string
		p       CohesionParams
		wantErr bool
	}{
		{"valid", CohesionParams{Alpha: 0.1, Leak: 0.1, Z: 0.1, Population: 100, Nests: 2}, false},
		{"one nest", CohesionParams{Alpha: 0.1, Z: 0.1, Population: 100, Nests: 1}, true},
		{"no ants", CohesionParams{Alpha: 0.1, Z: 0.1, Nests: 2}, true},
		{"z above one", CohesionParams{Alpha: 0.1, Z: 1.5, Population: 10, Nests: 2}, true},
		{"negative leak", CohesionParams{Alpha: 0.1, Leak: -1, Z: 0.1, Population: 10, Nests: 2}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.p.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCohesion_Seed(t *testing.T) {
	tests := []struct {
		name          string
		p             CohesionParams
		wantOrigin    int
		wantPerNest   int
		wantShortfall int
	}{
		{"even split", CohesionParams{Alpha: 0.1, Z: 0.1, Population: 100, Nests: 2}, 90, 5, 0},
		{"remainder to origin", CohesionParams{Alpha: 0.1, Z: 0.1, Population: 100, Nests: 3}, 91, 3, 1},
		{"no committed ants", CohesionParams{Alpha: 0.1, Z: 0, Population: 50, Nests: 4}, 50, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewCohesion(tt.p)
			if err != nil {
				t.Fatal(err)
			}
			s := kinetics.NewState(m.Categories(), m.Population())
			shortfall := m.Seed(s)
			if shortfall != tt.wantShortfall {
				t.Errorf("shortfall = %d, want %d", shortfall, tt.wantShortfall)
			}
			if got := s.Count(CohesionOrigin); got != tt.wantOrigin {
				t.Errorf("origin = %d, want %d", got, tt.wantOrigin)
			}
			for i := 0; i < tt.p.Nests; i++ {
				if got := s.Count(CommittedAt(i)); got != tt.wantPerNest {
					t.Errorf("committed[%d] = %d, want %d", i, got, tt.wantPerNest)
				}
				if got := s.Count(RecruiterAt(i)); got != 0 {
					t.Errorf("recruiter[%d] = %d, want 0", i, got)
				}
			}
			if s.Sum() != tt.p.Population {
				t.Errorf("sum = %d, want %d", s.Sum(), tt.p.Population)
			}
		})
	}
}

func TestCohesion_Rates(t *testing.T) {
	m, err := NewCohesion(CohesionParams{Alpha: 0.5, Leak: 0.2, Z: 0.1, Population: 100, Nests: 2})
	if err != nil {
		t.Fatal(err)
	}
	s := kinetics.NewState(m.Categories(), m.Population())
	s.Set(CohesionOrigin, 80)
	s.Set(CommittedAt(0), 6)
	s.Set(RecruiterAt(0), 4)
	s.Set(CommittedAt(1), 10)

	tbl := kinetics.NewTable(len(m.Events()))
	m.Rates(s, tbl)

	want := []float64{
		4 * 80.0 / 100, 0.5 * 6, 0.2 * 6, 0.2 * 4,
		0, 0.5 * 10, 0.2 * 10, 0,
	}
	for i, w := range want {
		if got := tbl.Rate(i); math.Abs(got-w) > 1e-12 {
			t.Errorf("rate[%d] = %g, want %g", i, got, w)
		}
	}
}

func TestCohesion_RunTerminates(t *testing.T) {
	m, err := NewCohesion(CohesionParams{Alpha: 0.1, Leak: 0.01, Z: 0.1, Population: 100, Nests: 2})
	if err != nil {
		t.Fatal(err)
	}
	d := kinetics.NewDriver(m, rng.NewMT19937(42), nil)
	for i := 0; i < 20; i++ {
		out, err := d.Run()
		if err != nil {
			t.Fatalf("trial %d: %v", i, err)
		}
		origin := out.State.Count(CohesionOrigin)
		if origin != 100 && origin > 10 {
			t.Errorf("trial %d stopped with origin = %d", i, origin)
		}
		if out.Accepted != (origin != 100) {
			t.Errorf("trial %d accepted = %v with origin %d", i, out.Accepted, origin)
		}
		sum := 0
		for _, n := range m.NestTotals(out.State) {
			sum += n
		}
		if sum+origin != 100 {
			t.Errorf("trial %d: nests %d + origin %d != 100", i, sum, origin)
		}
	}
}

func TestCohesion_CategoryName(t *testing.T) {
	m, _ := NewCohesion(CohesionParams{Alpha: 0.1, Z: 0.1, Population: 10, Nests: 2})
	tests := map[kinetics.Category]string{
		0: "origin",
		1: "committed[0]",
		2: "recruiter[0]",
		4: "recruiter[1]",
	}
	for cat, want := range tests {
		if got := m.CategoryName(cat); got != want {
			t.Errorf("CategoryName(%d) = %q, want %q", cat, got, want)
		}
	}
}

func defaultQuorum() QuorumParams {
	return QuorumParams{
		Alpha:       0.1,
		AlphaSwitch: 1,
		Leak:        0.01,
		High:        0.2,
		Z:           0.3,
		Threshold:   0.3,
		Population:  100,
	}
}

func TestQuorumParams_QuorumCount(t *testing.T) {
	tests := []struct {
		threshold float64
		na        int
		want      int
	}{
		{0.3, 100, 30},
		{0.25, 100, 25},
		{0.55, 10, 5},
	}
	for _, tt := range tests {
		p := QuorumParams{Threshold: tt.threshold, Population: tt.na}
		if got := p.QuorumCount(); got != tt.want {
			t.Errorf("QuorumCount(%g, %d) = %d, want %d", tt.threshold, tt.na, got, tt.want)
		}
	}
}

func TestQuorum_Seed(t *testing.T) {
	m, err := NewQuorum(defaultQuorum())
	if err != nil {
		t.Fatal(err)
	}
	s := kinetics.NewState(m.Categories(), m.Population())
	if shortfall := m.Seed(s); shortfall != 0 {
		t.Errorf("shortfall = %d, want 0", shortfall)
	}

	want := map[kinetics.Category]int{
		OriginHigh:        14,
		OriginLow:         56,
		HighPoorVisitor:   3,
		HighGoodCommitted: 3,
		LowPoorCommitted:  12,
		LowGoodCommitted:  12,
		LowPoorRecruiter:  0,
	}
	for cat, n := range want {
		if got := s.Count(cat); got != n {
			t.Errorf("%s = %d, want %d", m.CategoryName(cat), got, n)
		}
	}
	if s.Sum() != 100 {
		t.Errorf("sum = %d, want 100", s.Sum())
	}
}

func TestQuorum_SeedShortfallGoesToHighOrigin(t *testing.T) {
	p := defaultQuorum()
	p.Population = 7
	p.High = 0.5
	p.Z = 0.5
	m, err := NewQuorum(p)
	if err != nil {
		t.Fatal(err)
	}
	s := kinetics.NewState(m.Categories(), m.Population())
	shortfall := m.Seed(s)
	if s.Sum() != 7 {
		t.Fatalf("sum = %d, want 7", s.Sum())
	}
	// 7*0.5*0.5 = 1.75 -> 1 high origin, 3 origin total, 0 high per nest,
	// 1 low per nest: 1+2+0+1+1 = 5, leaving 2.
	if shortfall != 2 {
		t.Errorf("shortfall = %d, want 2", shortfall)
	}
	if got := s.Count(OriginHigh); got != 3 {
		t.Errorf("origin_high = %d, want 3", got)
	}
}

func TestQuorum_Rates(t *testing.T) {
	p := defaultQuorum()
	p.AlphaGood = 0.4
	m, err := NewQuorum(p)
	if err != nil {
		t.Fatal(err)
	}
	s := kinetics.NewState(m.Categories(), m.Population())
	counts := []int{40, 10, 8, 6, 4, 12, 5, 9, 6}
	for i, n := range counts {
		s.Set(kinetics.Category(i), n)
	}

	tbl := kinetics.NewTable(len(m.Events()))
	m.Rates(s, tbl)

	want := []float64{
		6 * 40 / 100.0,
		6 * 10 / 100.0,
		15 * 40 / 100.0,
		15 * 10 / 100.0,
		0.1 * 8,
		0.4 * 12,
		0.4 * 5,
		1 * 4,
		0.01 * 8, 0.01 * 4, 0.01 * 6, 0.01 * 12, 0.01 * 5, 0.01 * 9, 0.01 * 6,
	}
	if tbl.Len() != len(want) {
		t.Fatalf("table len = %d, want %d", tbl.Len(), len(want))
	}
	for i, w := range want {
		if got := tbl.Rate(i); math.Abs(got-w) > 1e-12 {
			t.Errorf("rate[%d] (%s) = %g, want %g", i, m.Events()[i].Kind, got, w)
		}
	}
}

func TestQuorum_EventsConserveAndPointToRightPools(t *testing.T) {
	m, _ := NewQuorum(defaultQuorum())
	for i, ev := range m.Events() {
		if ev.Kind == kinetics.Leak && ev.To != OriginLow && ev.To != OriginHigh {
			t.Errorf("leak event %d goes to %s", i, m.CategoryName(ev.To))
		}
		if ev.Kind == kinetics.Recruit && ev.From != OriginLow && ev.From != OriginHigh {
			t.Errorf("recruit event %d draws from %s", i, m.CategoryName(ev.From))
		}
	}
}

func TestQuorum_RunTerminatesOnQuorum(t *testing.T) {
	m, err := NewQuorum(defaultQuorum())
	if err != nil {
		t.Fatal(err)
	}
	q := m.Threshold()
	d := kinetics.NewDriver(m, rng.NewMT19937(3), nil)
	for i := 0; i < 20; i++ {
		out, err := d.Run()
		if err != nil {
			t.Fatalf("trial %d: %v", i, err)
		}
		good, poor := GoodTotal(out.State), PoorTotal(out.State)
		origin := OriginTotal(out.State)
		if origin+good+poor != 100 {
			t.Fatalf("trial %d: totals %d+%d+%d != 100", i, origin, good, poor)
		}
		if out.Accepted && good != q && poor != q {
			t.Errorf("trial %d accepted without a quorum (good=%d poor=%d)", i, good, poor)
		}
		if out.Correct != (out.Accepted && good == q) {
			t.Errorf("trial %d correct = %v with good=%d", i, out.Correct, good)
		}
	}
}

func TestQuorum_ZeroThresholdStopsImmediately(t *testing.T) {
	p := defaultQuorum()
	p.Threshold = 0
	m, _ := NewQuorum(p)
	out, err := kinetics.NewDriver(m, rng.NewMT19937(1), nil).Run()
	if err != nil {
		t.Fatal(err)
	}
	if out.Events != 0 {
		t.Errorf("events = %d, want 0", out.Events)
	}
	if !out.Accepted {
		t.Error("expected accepted outcome with ants away from origin")
	}
}
