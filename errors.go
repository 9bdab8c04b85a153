package pubgrub

import "fmt"

// SolveFailure is the terminal error of an unsatisfiable resolution run. It
// is a proof of impossibility, never a transient fault: retrying the same
// inputs cannot succeed. Its message is the rendered explanation of the
// simplified derivation proof.
type SolveFailure struct {
	incompatibility *Incompatibility
}

// Incompatibility returns the failure root: an incompatibility with no
// terms (or only the root selection left) whose conflict ancestry proves
// the problem unsatisfiable.
func (e *SolveFailure) Incompatibility() *Incompatibility {
	return e.incompatibility
}

func (e *SolveFailure) Error() string {
	return Explain(Simplify(e.incompatibility))
}

// PackageNotFoundError is returned by source managers when a package cannot
// be located at all. The solver folds it into the proof as a
// PackageNotFoundCause instead of aborting the run.
type PackageNotFoundError struct {
	Ref ProjectRef
}

func (e *PackageNotFoundError) Error() string {
	return fmt.Sprintf("could not find package %s", e.Ref)
}

// VersionNotFoundError is returned by source managers asked for metadata of
// a version they never listed.
type VersionNotFoundError struct {
	Ref     ProjectRef
	Version string
}

func (e *VersionNotFoundError) Error() string {
	return fmt.Sprintf("no version %s of package %s", e.Version, e.Ref)
}
