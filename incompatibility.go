package pubgrub

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// An Incompatibility is a clause: a package-unique set of terms that must
// never all be true at once. A zero-term incompatibility is an
// unconditional contradiction. Incompatibilities are never mutated after
// construction; derived ones reference their parents through a
// ConflictCause, forming a DAG that doubles as the derivation proof.
type Incompatibility struct {
	terms []Term
	cause IncompatibilityCause
}

// IncompatibilityCause records why an incompatibility holds. The set of
// variants is closed; consumers dispatch with exhaustive type switches so a
// new variant forces an audit of every switch.
type IncompatibilityCause interface {
	isCause()
}

// RootCause marks the synthetic fact that the root package is selected.
type RootCause struct{}

/// DependencyCause marks a fact from package metadata: the first term's
// package, at the versions it names, depends on the second term's range.
type DependencyCause struct{}

// NoVersionsCause marks that no known version of the package satisfies the
// term's range.
type NoVersionsCause struct{}

// PackageNotFoundCause marks that the package could not be located at all.
type PackageNotFoundCause struct {
	Err error
}

// SDKCause marks that the package version requires an SDK version the
// current environment does not provide.
type SDKCause struct {
	Constraint Constraint
}

// NoReason marks an externally asserted fact with no further derivation.
type NoReason struct{}

// ConflictCause records that an incompatibility was derived by resolving
// two others. Parents may be shared by multiple children; derivation never
// cycles.
type ConflictCause struct {
	Conflict *Incompatibility
	Other    *Incompatibility
}

func (RootCause) isCause()            {}
func (DependencyCause) isCause()      {}
func (NoVersionsCause) isCause()      {}
func (PackageNotFoundCause) isCause() {}
func (SDKCause) isCause()             {}
func (NoReason) isCause()             {}
func (ConflictCause) isCause()        {}

// NewIncompatibility builds an incompatibility from terms, merging any that
// share a package. Merging that collapses to an always-true clause is an
// invalid construction and panics rather than silently dropping the clause.
func NewIncompatibility(terms []Term, cause IncompatibilityCause) *Incompatibility {
	if len(terms) != 1 {
		if _, ok := cause.(ConflictCause); ok {
			// The root package is always selected, so positive root terms
			// in a derived clause carry no information.
			filtered := terms[:0:0]
			dropped := false
			for _, t := range terms {
				if t.positive && t.pkg.Ref.Root {
					dropped = true
					continue
				}
				filtered = append(filtered, t)
			}
			if dropped {
				terms = filtered
			}
		}
	}

	if len(terms) < 2 {
		return &Incompatibility{terms: terms, cause: cause}
	}

	var order []refKey
	byRef := make(map[refKey]Term, len(terms))
	for _, t := range terms {
		key := t.pkg.Ref.key()
		old, ok := byRef[key]
		if !ok {
			order = append(order, key)
			byRef[key] = t
			continue
		}
		merged, ok := old.Intersect(t)
		if !ok {
			panic(fmt.Sprintf("canary - merging terms %s and %s yields an always-true incompatibility", old, t))
		}
		byRef[key] = merged
	}

	merged := make([]Term, 0, len(order))
	for _, key := range order {
		merged = append(merged, byRef[key])
	}
	return &Incompatibility{terms: merged, cause: cause}
}

// Terms returns the clause's package-unique term sequence.
func (in *Incompatibility) Terms() []Term { return in.terms }

// Cause returns the derivation record for this clause.
func (in *Incompatibility) Cause() IncompatibilityCause { return in.cause }

// isFailure reports whether this incompatibility proves the whole problem
// unsatisfiable: no terms at all, or only the root selection left.
func (in *Incompatibility) isFailure() bool {
	if len(in.terms) == 0 {
		return true
	}
	return len(in.terms) == 1 && in.terms[0].pkg.Ref.Root
}

func (in *Incompatibility) termForPackage(name ProjectName) (Term, bool) {
	for _, t := range in.terms {
		if t.pkg.Ref.Name == name {
			return t, true
		}
	}
	return Term{}, false
}

// resolve combines two incompatibilities that disagree on exactly one
// package: the shared package's terms are dropped from both sides, all
// other terms are kept, and the non-trivial residual of the shared terms
// (their union) is re-added. The caller guarantees a shared
// opposite-polarity package exists; resolving without one is an
// invalid-argument fault.
func resolve(a, b *Incompatibility) (*Incompatibility, error) {
	var shared ProjectName
	var ta, tb Term
	found := false
	for _, at := range a.terms {
		for _, bt := range b.terms {
			if at.pkg.Ref.Name == bt.pkg.Ref.Name && at.positive != bt.positive {
				shared, ta, tb = at.pkg.Ref.Name, at, bt
				found = true
				break
			}
		}
		if found {
			break
		}
	}
	if !found {
		return nil, errors.New("cannot resolve incompatibilities sharing no opposite-polarity package")
	}

	newTerms := make([]Term, 0, len(a.terms)+len(b.terms)-1)
	for _, t := range a.terms {
		if t.pkg.Ref.Name != shared {
			newTerms = append(newTerms, t)
		}
	}
	for _, t := range b.terms {
		if t.pkg.Ref.Name != shared {
			newTerms = append(newTerms, t)
		}
	}
	if residual, ok := ta.Union(tb); ok {
		newTerms = append(newTerms, residual)
	}

	return NewIncompatibility(newTerms, ConflictCause{Conflict: a, Other: b}), nil
}

// subjectTerm renders a positive term as the subject of a sentence.
func subjectTerm(t Term) string {
	if t.pkg.Ref.Root {
		return string(t.pkg.Ref.Name)
	}
	if t.pkg.Constraint.IsAny() {
		return fmt.Sprintf("every version of %s", t.pkg.Ref)
	}
	return t.pkg.String()
}

// objectTerm renders a term as the object of a sentence.
func objectTerm(t Term) string {
	if t.pkg.Ref.Root {
		return string(t.pkg.Ref.Name)
	}
	return t.pkg.String()
}

func (in *Incompatibility) String() string {
	switch c := in.cause.(type) {
	case DependencyCause:
		depender, _ := in.positiveTerm()
		target, _ := in.negativeTerm()
		return fmt.Sprintf("%s depends on %s", subjectTerm(depender), objectTerm(target.Inverse()))
	case NoVersionsCause:
		t := in.terms[0]
		return fmt.Sprintf("no versions of %s match %s", t.pkg.Ref, t.pkg.Constraint)
	case PackageNotFoundCause:
		t := in.terms[0]
		if c.Err != nil {
			return fmt.Sprintf("%s doesn't exist (%s)", t.pkg.Ref, c.Err)
		}
		return fmt.Sprintf("%s doesn't exist", t.pkg.Ref)
	case SDKCause:
		t := in.terms[0]
		return fmt.Sprintf("%s requires SDK version %s", subjectTerm(t), c.Constraint)
	case RootCause:
		t := in.terms[0]
		return fmt.Sprintf("%s is %s", t.pkg.Ref.Name, t.pkg.Constraint)
	}

	if in.isFailure() {
		return "version solving failed"
	}

	switch len(in.terms) {
	case 1:
		t := in.terms[0]
		if t.positive {
			if t.pkg.Constraint.IsAny() {
				return fmt.Sprintf("%s is forbidden", t.pkg.Ref)
			}
			return fmt.Sprintf("%s is forbidden", t.pkg)
		}
		if t.pkg.Constraint.IsAny() {
			return fmt.Sprintf("%s is required", t.pkg.Ref)
		}
		return fmt.Sprintf("%s is required", t.pkg)
	case 2:
		t0, t1 := in.terms[0], in.terms[1]
		switch {
		case t0.positive && t1.positive:
			return fmt.Sprintf("%s is incompatible with %s", subjectTerm(t0), objectTerm(t1))
		case !t0.positive && !t1.positive:
			return fmt.Sprintf("either %s or %s", objectTerm(t0.Inverse()), objectTerm(t1.Inverse()))
		default:
			pos, _ := in.positiveTerm()
			neg, _ := in.negativeTerm()
			return fmt.Sprintf("%s requires %s", subjectTerm(pos), objectTerm(neg.Inverse()))
		}
	}

	var positives, negatives []string
	for _, t := range in.terms {
		if t.positive {
			positives = append(positives, objectTerm(t))
		} else {
			negatives = append(negatives, objectTerm(t.Inverse()))
		}
	}
	switch {
	case len(positives) > 0 && len(negatives) > 0:
		return fmt.Sprintf("if %s then %s", strings.Join(positives, " and "), strings.Join(negatives, " or "))
	case len(positives) > 0:
		return fmt.Sprintf("one of %s must be false", strings.Join(positives, " or "))
	default:
		return fmt.Sprintf("one of %s must be true", strings.Join(negatives, " or "))
	}
}

func (in *Incompatibility) positiveTerm() (Term, bool) {
	for _, t := range in.terms {
		if t.positive {
			return t, true
		}
	}
	return Term{}, false
}

func (in *Incompatibility) negativeTerm() (Term, bool) {
	for _, t := range in.terms {
		if !t.positive {
			return t, true
		}
	}
	return Term{}, false
}

// singlePositive returns the clause's positive term if it has exactly one.
func (in *Incompatibility) singlePositive() (Term, bool) {
	var out Term
	n := 0
	for _, t := range in.terms {
		if t.positive {
			out = t
			n++
		}
	}
	return out, n == 1
}

// andToString renders "this and other" as one clause, merging the pair into
// pub-style chained prose where a special form applies. Non-zero line
// numbers are appended as back-references instead.
func (in *Incompatibility) andToString(other *Incompatibility, thisLine, otherLine int) string {
	if thisLine == 0 && otherLine == 0 {
		if s, ok := in.tryRequiresBoth(other); ok {
			return s
		}
		if s, ok := in.tryRequiresThrough(other); ok {
			return s
		}
		if s, ok := in.tryRequiresForbidden(other); ok {
			return s
		}
	}

	var buf strings.Builder
	buf.WriteString(in.String())
	if thisLine != 0 {
		fmt.Fprintf(&buf, " (%d)", thisLine)
	}
	buf.WriteString(" and ")
	buf.WriteString(other.String())
	if otherLine != 0 {
		fmt.Fprintf(&buf, " (%d)", otherLine)
	}
	return buf.String()
}

// tryRequiresBoth merges two dependency clauses with the same depender:
// "X depends on both Y and Z".
func (in *Incompatibility) tryRequiresBoth(other *Incompatibility) (string, bool) {
	if _, ok := in.cause.(DependencyCause); !ok {
		return "", false
	}
	if _, ok := other.cause.(DependencyCause); !ok {
		return "", false
	}

	thisPos, ok1 := in.singlePositive()
	otherPos, ok2 := other.singlePositive()
	if !ok1 || !ok2 || !thisPos.pkg.Ref.eq(otherPos.pkg.Ref) || !thisPos.pkg.Constraint.Equal(otherPos.pkg.Constraint) {
		return "", false
	}

	thisNeg, _ := in.negativeTerm()
	otherNeg, _ := other.negativeTerm()
	return fmt.Sprintf("%s depends on both %s and %s",
		subjectTerm(thisPos), objectTerm(thisNeg.Inverse()), objectTerm(otherNeg.Inverse())), true
}

// tryRequiresThrough merges a dependency chain: "X depends on Y which
// depends on Z".
func (in *Incompatibility) tryRequiresThrough(other *Incompatibility) (string, bool) {
	if _, ok := in.cause.(DependencyCause); !ok {
		return "", false
	}
	if _, ok := other.cause.(DependencyCause); !ok {
		return "", false
	}

	chain := func(prior, latter *Incompatibility) (string, bool) {
		priorNeg, ok := prior.negativeTerm()
		if !ok {
			return "", false
		}
		latterPos, ok := latter.singlePositive()
		if !ok || priorNeg.pkg.Ref.Name != latterPos.pkg.Ref.Name {
			return "", false
		}
		priorPos, _ := prior.positiveTerm()
		latterNeg, _ := latter.negativeTerm()
		return fmt.Sprintf("%s depends on %s which depends on %s",
			subjectTerm(priorPos), objectTerm(priorNeg.Inverse()), objectTerm(latterNeg.Inverse())), true
	}

	if s, ok := chain(in, other); ok {
		return s, true
	}
	return chain(other, in)
}

// tryRequiresForbidden merges a dependency clause with a single-term fact
// about its target: "X depends on Y which is forbidden".
func (in *Incompatibility) tryRequiresForbidden(other *Incompatibility) (string, bool) {
	dep, fact := in, other
	if len(in.terms) == 1 {
		dep, fact = other, in
	}
	if len(fact.terms) != 1 {
		return "", false
	}
	if _, ok := dep.cause.(DependencyCause); !ok {
		return "", false
	}

	factTerm := fact.terms[0]
	depNeg, ok := dep.negativeTerm()
	if !ok || depNeg.pkg.Ref.Name != factTerm.pkg.Ref.Name {
		return "", false
	}

	var tail string
	switch fact.cause.(type) {
	case NoVersionsCause:
		tail = "which doesn't match any versions"
	case PackageNotFoundCause:
		tail = "which doesn't exist"
	default:
		tail = "which is forbidden"
	}

	depPos, _ := dep.positiveTerm()
	return fmt.Sprintf("%s depends on %s %s", subjectTerm(depPos), objectTerm(depNeg.Inverse()), tail), true
}
