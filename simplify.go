package pubgrub

// Simplify rewrites an incompatibility's derivation DAG for readability. The
// result carries exactly the same terms; only the conflict ancestry is
// rearranged, pushing small "reducer" clauses earlier so that wide
// intermediate clauses disappear from the rendered proof.
//
// Simplify is pure and idempotent: the input DAG is never mutated, and
// simplifying an already-simplified incompatibility returns it unchanged.
func Simplify(in *Incompatibility) *Incompatibility {
	out, _ := simplify1(in)
	return out
}

// simplify1 returns the rewritten incompatibility and whether any rewrite
// happened. An unchanged subtree is returned as the original pointer so
// parents can cheaply detect no-progress.
func simplify1(in *Incompatibility) (*Incompatibility, bool) {
	cause, ok := in.cause.(ConflictCause)
	if !ok {
		return in, false
	}

	// The reducer must be strictly smaller than the node itself; the other
	// parent is the reduction candidate.
	var reducer, reducee *Incompatibility
	switch {
	case len(cause.Conflict.terms) < len(in.terms):
		reducer, reducee = cause.Conflict, cause.Other
	case len(cause.Other.terms) < len(in.terms):
		reducer, reducee = cause.Other, cause.Conflict
	default:
		return simplifyParents(in, cause)
	}

	if len(reducee.terms) < 3 {
		return simplifyParents(in, cause)
	}
	reduceeCause, ok := reducee.cause.(ConflictCause)
	if !ok {
		return simplifyParents(in, cause)
	}

	// The package the reduction eliminated: present in the reducee, absent
	// from the node.
	var removed Term
	found := false
	for _, t := range reducee.terms {
		if _, ok := in.termForPackage(t.pkg.Ref.Name); !ok {
			removed = t
			found = true
			break
		}
	}
	if !found {
		return simplifyParents(in, cause)
	}

	source, other := reduceeCause.Conflict, reduceeCause.Other
	if !parentSatisfies(source, removed) {
		source, other = other, source
		if !parentSatisfies(source, removed) {
			return simplifyParents(in, cause)
		}
	}

	merged, err := resolve(source, reducer)
	if err != nil || len(merged.terms) >= len(reducee.terms) {
		return simplifyParents(in, cause)
	}
	result, err := resolve(merged, other)
	if err != nil {
		return simplifyParents(in, cause)
	}

	out, _ := simplify1(result)
	return out, true
}

func parentSatisfies(parent *Incompatibility, removed Term) bool {
	t, ok := parent.termForPackage(removed.pkg.Ref.Name)
	return ok && t.Satisfies(removed)
}

// simplifyParents recurses into both parents independently, rebuilding the
// node only when a parent actually changed.
func simplifyParents(in *Incompatibility, cause ConflictCause) (*Incompatibility, bool) {
	conflict, changedConflict := simplify1(cause.Conflict)
	other, changedOther := simplify1(cause.Other)
	if !changedConflict && !changedOther {
		return in, false
	}
	return &Incompatibility{
		terms: in.terms,
		cause: ConflictCause{Conflict: conflict, Other: other},
	}, true
}
