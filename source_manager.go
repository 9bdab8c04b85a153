package pubgrub

import "github.com/Masterminds/semver/v3"

// SourceManager supplies package metadata to the solver. Implementations
// may hit the network or disk; the solver never retries them and issues at
// most one call at a time per run.
type SourceManager interface {
	// ListVersions returns the known versions of the package in ascending
	// order. An unknown package is reported as *PackageNotFoundError.
	ListVersions(ProjectRef) ([]*semver.Version, error)

	// GetDependencies returns the dependency ranges declared by one version
	// of the package.
	GetDependencies(ProjectRef, *semver.Version) ([]PackageRange, error)
}

// SDKVersioner is an optional SourceManager extension reporting the SDK
// constraint a package version declares, if any.
type SDKVersioner interface {
	SDK(ProjectRef, *semver.Version) (Constraint, bool)
}

// PackageCandidates pairs an unsatisfied package range with the known
// versions that still satisfy it, in ascending registry order.
type PackageCandidates struct {
	Range    PackageRange
	Versions []*semver.Version
}

// DecisionPolicy picks which package and version the solver should try
// next. It is purely advisory: any policy leaves the engine sound, only
// performance varies. Returning a nil version for the chosen package
// signals that none of its candidates is acceptable.
type DecisionPolicy interface {
	Choose([]PackageCandidates) (PackageRange, *semver.Version, bool)
}

// preferFewestVersions is the default policy: pick the package with the
// fewest remaining candidates (most constrained first, and zero-candidate
// packages fail fastest), then its highest candidate.
type preferFewestVersions struct{}

func (preferFewestVersions) Choose(cands []PackageCandidates) (PackageRange, *semver.Version, bool) {
	if len(cands) == 0 {
		return PackageRange{}, nil, false
	}

	best := cands[0]
	for _, c := range cands[1:] {
		if len(c.Versions) < len(best.Versions) {
			best = c
		}
	}
	if len(best.Versions) == 0 {
		return best.Range, nil, true
	}
	return best.Range, best.Versions[len(best.Versions)-1], true
}
