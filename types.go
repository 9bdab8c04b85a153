package pubgrub

import "fmt"

// ProjectName is the name of a package within one resolution run. Names are
// the unit of identity for the solver: at most one version of a given name
// may appear in a solution.
type ProjectName string

// ProjectRef identifies a package: its name, plus the source it is drawn
// from (a registry URL, or empty for the default source). Two refs with the
// same name but different sources are distinct packages that can never both
// be selected.
type ProjectRef struct {
	Name   ProjectName
	Source string

	// Root marks the synthetic root package of a resolution run. It is an
	// annotation, not part of ref identity.
	Root bool
}

func (r ProjectRef) eq(other ProjectRef) bool {
	return r.Name == other.Name && r.Source == other.Source
}

func (r ProjectRef) String() string {
	if r.Source == "" {
		return string(r.Name)
	}
	return fmt.Sprintf("%s from %s", r.Name, r.Source)
}

// refKey is the comparable form of a ProjectRef, for use as a map key.
type refKey struct {
	name   ProjectName
	source string
}

func (r ProjectRef) key() refKey {
	return refKey{name: r.Name, source: r.Source}
}

// PackageRange pairs a package ref with a constraint on its version. It is
// an immutable value; all combining operations return new ranges.
type PackageRange struct {
	Ref        ProjectRef
	Constraint Constraint
}

func (pr PackageRange) String() string {
	return fmt.Sprintf("%s %s", pr.Ref, pr.Constraint)
}
