// Package constants provides named constants used throughout the nestsim codebase.
// This centralizes the numeric defaults of the simulation programs.
package constants

// Trial and sweep defaults
const (
	// DefaultTrials is the number of accepted trials reduced into one sweep point.
	DefaultTrials = 10000

	// DefaultLeakRate is the per-capita rate at which ants away from the
	// origin return to it. Set to 0 to reproduce the leak-free figures.
	DefaultLeakRate = 0.05

	// DefaultPopulation is the colony size used by the speed-accuracy grids.
	DefaultPopulation = 100
)

// Speed-accuracy grid defaults
const (
	// DefaultAlphaSamples is the number of outer conversion-rate values.
	DefaultAlphaSamples = 15

	// DefaultAlphaStep is the spacing of the outer conversion-rate values.
	DefaultAlphaStep = 0.1
)

// Storage defaults
const (
	// DefaultRunsListLimit is the number of runs shown by "nestsim runs".
	DefaultRunsListLimit = 20

	// DefaultStoreFile is the SQLite file name under the nestsim home directory.
	DefaultStoreFile = "runs.db"

	// DefaultBackupMaxCount is the number of run store archives kept when
	// no other retention rule is configured.
	DefaultBackupMaxCount = 10

	// HomeDirName is the per-user directory holding config and the run store.
	HomeDirName = ".nestsim"
)
