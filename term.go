package pubgrub

import "fmt"

// setRelation describes how one term's satisfied set relates to another's.
type setRelation uint8

const (
	// relationSubset: every selection satisfying the first term satisfies
	// the second.
	relationSubset setRelation = iota
	// relationDisjoint: no selection can satisfy both terms.
	relationDisjoint
	// relationOverlapping: neither subset nor disjoint.
	relationOverlapping
)

func (r setRelation) String() string {
	switch r {
	case relationSubset:
		return "subset"
	case relationDisjoint:
		return "disjoint"
	default:
		return "overlapping"
	}
}

// A Term is a signed assertion about one package: positive means the
// selected version of the package lies in the range; negative means it does
// not (including the package not being selected at all). Terms are
// immutable values.
type Term struct {
	pkg      PackageRange
	positive bool
}

func NewTerm(pkg PackageRange, positive bool) Term {
	return Term{pkg: pkg, positive: positive}
}

func (t Term) Package() PackageRange { return t.pkg }
func (t Term) Positive() bool        { return t.positive }

// Inverse returns the term with flipped polarity and the same range.
func (t Term) Inverse() Term {
	return Term{pkg: t.pkg, positive: !t.positive}
}

func (t Term) String() string {
	if !t.positive {
		return fmt.Sprintf("not %s", t.pkg)
	}
	return t.pkg.String()
}

func (t Term) eq(other Term) bool {
	return t.positive == other.positive &&
		t.pkg.Ref.eq(other.pkg.Ref) &&
		t.pkg.Constraint.Equal(other.pkg.Constraint)
}

// compatiblePackage reports whether the other range names the same package
// (same name and source) as this term's.
func (t Term) compatiblePackage(other PackageRange) bool {
	return t.pkg.Ref.eq(other.Ref)
}

// Relation computes the set relation of t's satisfied set against other's.
// Both terms must be about the same package name.
func (t Term) Relation(other Term) setRelation {
	if t.pkg.Ref.Name != other.pkg.Ref.Name {
		panic(fmt.Sprintf("canary - relating terms about %s and %s", t.pkg.Ref.Name, other.pkg.Ref.Name))
	}

	oc := other.pkg.Constraint
	if other.positive {
		if t.positive {
			// foo from one source can never satisfy foo from another.
			if !t.compatiblePackage(other.pkg) {
				return relationDisjoint
			}
			if oc.AllowsAll(t.pkg.Constraint) {
				return relationSubset
			}
			if !oc.AllowsAny(t.pkg.Constraint) {
				return relationDisjoint
			}
			return relationOverlapping
		}

		if !t.compatiblePackage(other.pkg) {
			return relationOverlapping
		}
		if t.pkg.Constraint.AllowsAll(oc) {
			return relationDisjoint
		}
		return relationOverlapping
	}

	if t.positive {
		if !t.compatiblePackage(other.pkg) {
			return relationSubset
		}
		if !oc.AllowsAny(t.pkg.Constraint) {
			return relationSubset
		}
		if oc.AllowsAll(t.pkg.Constraint) {
			return relationDisjoint
		}
		return relationOverlapping
	}

	if !t.compatiblePackage(other.pkg) {
		return relationOverlapping
	}
	if t.pkg.Constraint.AllowsAll(oc) {
		return relationSubset
	}
	return relationOverlapping
}

// Satisfies reports whether t being true guarantees other is true.
func (t Term) Satisfies(other Term) bool {
	return t.pkg.Ref.Name == other.pkg.Ref.Name && t.Relation(other) == relationSubset
}

// Intersect returns the strongest term implied by both t and other holding
// at once, or false when no selection can satisfy both. Both terms must be
// about the same package name.
func (t Term) Intersect(other Term) (Term, bool) {
	if t.pkg.Ref.Name != other.pkg.Ref.Name {
		panic(fmt.Sprintf("canary - intersecting terms about %s and %s", t.pkg.Ref.Name, other.pkg.Ref.Name))
	}

	if t.compatiblePackage(other.pkg) {
		switch {
		case t.positive != other.positive:
			// A positive and a negative term combine to "in the positive
			// range but outside the negative one".
			pos, neg := t, other
			if !t.positive {
				pos, neg = other, t
			}
			return t.nonEmpty(pos.pkg.Ref, pos.pkg.Constraint.Difference(neg.pkg.Constraint), true)
		case t.positive:
			return t.nonEmpty(t.pkg.Ref, t.pkg.Constraint.Intersect(other.pkg.Constraint), true)
		default:
			return t.nonEmpty(t.pkg.Ref, t.pkg.Constraint.Union(other.pkg.Constraint), false)
		}
	}

	if t.positive != other.positive {
		// Same name, different sources: the positive term subsumes the
		// negative one about the other source.
		if t.positive {
			return t, true
		}
		return other, true
	}
	return Term{}, false
}

// Union returns the weakest term implied by either t or other holding, or
// false when no single term expresses it (the union is a tautology).
func (t Term) Union(other Term) (Term, bool) {
	inv, ok := t.Inverse().Intersect(other.Inverse())
	if !ok {
		return Term{}, false
	}
	return inv.Inverse(), true
}

// Difference returns the term satisfied by t but not other, or false when
// empty.
func (t Term) Difference(other Term) (Term, bool) {
	return t.Intersect(other.Inverse())
}

// nonEmpty wraps a combined constraint back into a term, reporting false
// for an empty constraint: an empty positive term is unsatisfiable, and an
// empty negative term is a tautology; neither carries information.
func (t Term) nonEmpty(ref ProjectRef, c Constraint, positive bool) (Term, bool) {
	if c.IsEmpty() {
		return Term{}, false
	}
	return Term{pkg: PackageRange{Ref: ref, Constraint: c}, positive: positive}, true
}
