package constants

// Program identifies which simulation produced a stored run.
type Program string

const (
	// ProgramCohesion is the N-nest cohesion sweep point.
	ProgramCohesion Program = "cohesion"

	// ProgramQuorum is the two-nest quality/quorum sweep point.
	ProgramQuorum Program = "quorum"

	// ProgramSpeedAccuracy is the correlation grid.
	ProgramSpeedAccuracy Program = "speed-accuracy"

	// ProgramMeanField is the deterministic mean-field trajectory.
	ProgramMeanField Program = "meanfield"
)

// Valid returns true if the program is a recognized value.
func (p Program) Valid() bool {
	switch p {
	case ProgramCohesion, ProgramQuorum, ProgramSpeedAccuracy, ProgramMeanField:
		return true
	}
	return false
}

// String returns the string representation of the program.
func (p Program) String() string {
	return string(p)
}
