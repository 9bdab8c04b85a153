package pubgrub

import (
	"fmt"
	"sort"

	"github.com/Masterminds/semver/v3"
)

// An assignment is one entry in the partial solution's log: either a
// decision (a chosen version, cause nil, opening a new decision level) or a
// derivation (a term forced by unit propagation, tagged with the
// incompatibility that forced it).
type assignment struct {
	term          Term
	decisionLevel int
	index         int
	cause         *Incompatibility
}

func (a assignment) isDecision() bool { return a.cause == nil }

// partialSolution is the only mutable structure of a resolution run: an
// ordered assignment log plus cumulative per-package term indexes that make
// relation checks cheap. Assignments reference incompatibilities by
// pointer, never by copy, so backtracking is just log truncation.
type partialSolution struct {
	assignments []assignment
	decisions   map[ProjectName]*semver.Version

	// positive holds, per package name, the intersection of all positive
	// assignments about it. negative holds, per name and then per ref, the
	// intersection of negative assignments until a positive one appears.
	positive map[ProjectName]Term
	negative map[ProjectName]map[refKey]Term

	// attempted counts distinct solution attempts: it grows each time a
	// decision follows a backtrack.
	attempted    int
	backtracking bool
}

func newPartialSolution() *partialSolution {
	return &partialSolution{
		decisions: make(map[ProjectName]*semver.Version),
		positive:  make(map[ProjectName]Term),
		negative:  make(map[ProjectName]map[refKey]Term),
		attempted: 1,
	}
}

func (ps *partialSolution) decisionLevel() int { return len(ps.decisions) }

func (ps *partialSolution) decide(ref ProjectRef, v *semver.Version) {
	if ps.backtracking {
		ps.attempted++
	}
	ps.backtracking = false
	ps.decisions[ref.Name] = v
	ps.assign(assignment{
		term:          NewTerm(PackageRange{Ref: ref, Constraint: Exactly(v)}, true),
		decisionLevel: ps.decisionLevel(),
		index:         len(ps.assignments),
	})
}

func (ps *partialSolution) derive(pkg PackageRange, positive bool, cause *Incompatibility) {
	ps.assign(assignment{
		term:          NewTerm(pkg, positive),
		decisionLevel: ps.decisionLevel(),
		index:         len(ps.assignments),
		cause:         cause,
	})
}

func (ps *partialSolution) assign(a assignment) {
	ps.assignments = append(ps.assignments, a)
	ps.register(a)
}

// register folds an assignment into the cumulative indexes.
func (ps *partialSolution) register(a assignment) {
	name := a.term.pkg.Ref.Name
	if old, ok := ps.positive[name]; ok {
		merged, ok := old.Intersect(a.term)
		if !ok {
			panic(fmt.Sprintf("canary - assignment %s contradicts the partial solution", a.term))
		}
		ps.positive[name] = merged
		return
	}

	key := a.term.pkg.Ref.key()
	term := a.term
	if byRef, ok := ps.negative[name]; ok {
		if old, ok := byRef[key]; ok {
			merged, ok := a.term.Intersect(old)
			if !ok {
				panic(fmt.Sprintf("canary - assignment %s contradicts the partial solution", a.term))
			}
			term = merged
		}
	}

	if term.positive {
		delete(ps.negative, name)
		ps.positive[name] = term
	} else {
		if ps.negative[name] == nil {
			ps.negative[name] = make(map[refKey]Term)
		}
		ps.negative[name][key] = term
	}
}

// backtrack discards all assignments above the target decision level, then
// rebuilds the indexes for the packages it touched.
func (ps *partialSolution) backtrack(level int) {
	ps.backtracking = true

	touched := make(map[ProjectName]struct{})
	for len(ps.assignments) > 0 && ps.assignments[len(ps.assignments)-1].decisionLevel > level {
		removed := ps.assignments[len(ps.assignments)-1]
		ps.assignments = ps.assignments[:len(ps.assignments)-1]
		touched[removed.term.pkg.Ref.Name] = struct{}{}
		if removed.isDecision() {
			delete(ps.decisions, removed.term.pkg.Ref.Name)
		}
	}

	for name := range touched {
		delete(ps.positive, name)
		delete(ps.negative, name)
	}
	for _, a := range ps.assignments {
		if _, ok := touched[a.term.pkg.Ref.Name]; ok {
			ps.register(a)
		}
	}
}

// relation reports how the accumulated assignments relate to the term.
func (ps *partialSolution) relation(t Term) setRelation {
	name := t.pkg.Ref.Name
	if pos, ok := ps.positive[name]; ok {
		return pos.Relation(t)
	}
	byRef, ok := ps.negative[name]
	if !ok {
		return relationOverlapping
	}
	neg, ok := byRef[t.pkg.Ref.key()]
	if !ok {
		return relationOverlapping
	}
	return neg.Relation(t)
}

// satisfies reports whether the accumulated assignments guarantee the term.
func (ps *partialSolution) satisfies(t Term) bool {
	return ps.relation(t) == relationSubset
}

// satisfier returns the earliest assignment at which the accumulated
// intersection of assignments about the term's package satisfies the term.
// The caller guarantees the term is satisfied.
func (ps *partialSolution) satisfier(t Term) *assignment {
	var assigned *Term
	for i := range ps.assignments {
		a := &ps.assignments[i]
		if a.term.pkg.Ref.Name != t.pkg.Ref.Name {
			continue
		}
		if !a.term.pkg.Ref.Root && !a.term.pkg.Ref.eq(t.pkg.Ref) {
			// A positive assignment about the same name from another
			// source satisfies a negative term about this one.
			if a.term.positive {
				return a
			}
			continue
		}

		if assigned == nil {
			term := a.term
			assigned = &term
		} else {
			merged, ok := assigned.Intersect(a.term)
			if !ok {
				panic(fmt.Sprintf("canary - contradictory assignments about %s", t.pkg.Ref.Name))
			}
			assigned = &merged
		}
		if assigned.Satisfies(t) {
			return a
		}
	}
	panic(fmt.Sprintf("canary - %s is not satisfied by the partial solution", t))
}

// unsatisfied returns the packages required by positive derivations that
// have no decision yet, in name order.
func (ps *partialSolution) unsatisfied() []PackageRange {
	var out []PackageRange
	for name, t := range ps.positive {
		if _, decided := ps.decisions[name]; !decided {
			out = append(out, t.pkg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ref.Name < out[j].Ref.Name })
	return out
}
