package mcp

// CohesionInput defines the input for the nestsim_cohesion tool.
type CohesionInput struct {
	Alpha      float64 `json:"alpha" jsonschema:"Committed-to-recruiter conversion rate"`
	Z          float64 `json:"z" jsonschema:"Initial committed fraction, spread evenly over the nests"`
	Population int     `json:"population" jsonschema:"Colony size Na"`
	Nests      int     `json:"nests" jsonschema:"Number of candidate nests (at least 2)"`

	Trials int      `json:"trials,omitempty" jsonschema:"Accepted trials per sweep point (default from config, capped by the server)"`
	Seed   *uint64  `json:"seed,omitempty" jsonschema:"Random seed; omit to use the server seed or the wall clock"`
	RNG    string   `json:"rng,omitempty" jsonschema:"Generator: mt19937 (default) or pcg"`
	Leak   *float64 `json:"leak,omitempty" jsonschema:"Per-capita return rate to the origin (default from config)"`
}

// CohesionOutput defines the output for the nestsim_cohesion tool.
type CohesionOutput struct {
	Columns    []string  `json:"columns" jsonschema:"Names of the values in Values"`
	Values     []float64 `json:"values" jsonschema:"alpha z time_mean time_std cohesion_mean cohesion_std"`
	Accepted   int       `json:"accepted" jsonschema:"Accepted trials"`
	Degenerate int       `json:"degenerate" jsonschema:"Discarded degenerate trials"`
	Seed       uint64    `json:"seed" jsonschema:"Seed the run used"`
	RunID      string    `json:"run_id,omitempty" jsonschema:"Store ID when the run was recorded"`
}

// QuorumInput defines the input for the nestsim_quorum tool.
type QuorumInput struct {
	Alpha       float64 `json:"alpha" jsonschema:"Committed-to-recruiter conversion rate"`
	AlphaSwitch float64 `json:"alpha_s" jsonschema:"Rate at which high-threshold ants switch from the poor to the good nest"`
	High        float64 `json:"h" jsonschema:"Fraction of high-threshold ants"`
	Z           float64 `json:"z" jsonschema:"Initial committed fraction, split between the nests"`
	Threshold   float64 `json:"threshold" jsonschema:"Quorum as a fraction of the colony"`
	Population  int     `json:"population" jsonschema:"Colony size Na"`

	Trials int      `json:"trials,omitempty" jsonschema:"Accepted trials per sweep point (default from config, capped by the server)"`
	Seed   *uint64  `json:"seed,omitempty" jsonschema:"Random seed; omit to use the server seed or the wall clock"`
	RNG    string   `json:"rng,omitempty" jsonschema:"Generator: mt19937 (default) or pcg"`
	Leak   *float64 `json:"leak,omitempty" jsonschema:"Per-capita return rate to the origin (default from config)"`
}

// QuorumOutput defines the output for the nestsim_quorum tool.
type QuorumOutput struct {
	Columns    []string  `json:"columns" jsonschema:"Names of the values in Values"`
	Values     []float64 `json:"values" jsonschema:"h alpha_s z threshold time_mean time_std precision"`
	Quorum     int       `json:"quorum" jsonschema:"Quorum threshold in ants"`
	Accepted   int       `json:"accepted" jsonschema:"Accepted trials"`
	Degenerate int       `json:"degenerate" jsonschema:"Discarded degenerate trials"`
	Seed       uint64    `json:"seed" jsonschema:"Seed the run used"`
	RunID      string    `json:"run_id,omitempty" jsonschema:"Store ID when the run was recorded"`
}

// SpeedAccuracyCellInput defines the input for nestsim_speed_accuracy_cell.
type SpeedAccuracyCellInput struct {
	Vary    int     `json:"vary" jsonschema:"Inner variable: 0 is H, 1 is z, 2 is alpha_s, 3 is threshold"`
	Alpha   float64 `json:"alpha" jsonschema:"Outer conversion rate"`
	Y       float64 `json:"y" jsonschema:"Outer secondary value: the quorum threshold, or z when vary is 3"`
	Samples int     `json:"samples,omitempty" jsonschema:"Inner samples correlated (default from the preset)"`

	Trials int      `json:"trials,omitempty" jsonschema:"Accepted trials per inner sample (default from config, capped by the server)"`
	Seed   *uint64  `json:"seed,omitempty" jsonschema:"Random seed; omit to use the server seed or the wall clock"`
	RNG    string   `json:"rng,omitempty" jsonschema:"Generator: mt19937 (default) or pcg"`
	Leak   *float64 `json:"leak,omitempty" jsonschema:"Per-capita return rate to the origin (default from config)"`
}

// SpeedAccuracyCellOutput defines the output for nestsim_speed_accuracy_cell.
type SpeedAccuracyCellOutput struct {
	Vary       string    `json:"vary" jsonschema:"Name of the inner variable"`
	Corr       *float64  `json:"corr" jsonschema:"Pearson correlation of mean time and precision; null when undefined"`
	Times      []float64 `json:"times" jsonschema:"Mean decision time per inner sample"`
	Precisions []float64 `json:"precisions" jsonschema:"Precision per inner sample"`
	Seed       uint64    `json:"seed" jsonschema:"Seed the run used"`
}

// RunsInput defines the input for the nestsim_runs tool.
type RunsInput struct {
	Limit int    `json:"limit,omitempty" jsonschema:"Maximum runs to list (default 20)"`
	ID    string `json:"id,omitempty" jsonschema:"Show one run with its rows, by ID or unique prefix"`
}

// RunsOutput defines the output for the nestsim_runs tool.
type RunsOutput struct {
	Runs  []RunSummary `json:"runs" jsonschema:"Recorded runs, newest first"`
	Rows  []string     `json:"rows,omitempty" jsonschema:"Output rows of the selected run, space separated"`
	Count int          `json:"count" jsonschema:"Number of runs listed"`
}

// RunSummary is a list view of a recorded run.
type RunSummary struct {
	ID        string `json:"id"`
	Program   string `json:"program"`
	Params    string `json:"params"`
	Columns   string `json:"columns"`
	Status    string `json:"status"`
	StartedAt string `json:"started_at"`
	Rows      int    `json:"rows"`
}
