package pubgrub

import "github.com/Masterminds/semver/v3"

// Result is a successful resolution: one version per required package,
// consistent with every dependency constraint in the universe.
type Result struct {
	// Projects maps each selected package (the root included) to its
	// chosen version.
	Projects map[ProjectName]*semver.Version

	// Attempts counts the distinct solution prefixes the solver explored;
	// 1 means no backtracking was needed.
	Attempts int
}
