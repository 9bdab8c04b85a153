package pubgrub

import (
	"github.com/Masterminds/semver/v3"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Solver is a conflict-driven version solver: it propagates unit
// consequences of the known incompatibilities, learns new ones from
// conflicts, and backjumps, until every required package has a version or
// the root itself is proven unsatisfiable.
//
// A Solver runs one resolution at a time and owns all of its mutable state;
// the incompatibilities and terms it builds are immutable and may be shared
// freely once Solve returns.
type Solver struct {
	l      *logrus.Logger
	sm     SourceManager
	policy DecisionPolicy
	sdk    *semver.Version

	root PackageRange
	sol  *partialSolution

	// incompats indexes every known incompatibility under each package
	// name it mentions. seen dedupes re-registration of cached
	// dependency clauses after backtracking.
	incompats map[ProjectName][]*Incompatibility
	seen      map[*Incompatibility]struct{}
	depCache  map[atomKey][]*Incompatibility
}

// NewSolver returns a solver reading metadata through sm. A nil logger gets
// a default one.
func NewSolver(sm SourceManager, l *logrus.Logger) *Solver {
	if l == nil {
		l = logrus.New()
		l.Level = logrus.WarnLevel
	}

	return &Solver{
		l:      l,
		sm:     newSMCache(sm),
		policy: preferFewestVersions{},
	}
}

// SetDecisionPolicy overrides the default package/version selection
// heuristic. The engine is sound for any policy.
func (s *Solver) SetDecisionPolicy(p DecisionPolicy) { s.policy = p }

// SetSDKVersion enables SDK constraint checking against the given version.
func (s *Solver) SetSDKVersion(v *semver.Version) { s.sdk = v }

// Solve resolves the dependency graph rooted at the given package. On
// success it returns the chosen assignment; an unsatisfiable universe
// yields a *SolveFailure whose message explains the proof.
func (s *Solver) Solve(root ProjectRef) (Result, error) {
	root.Root = true

	versions, err := s.sm.ListVersions(root)
	if err != nil {
		return Result{}, errors.Wrapf(err, "listing versions of root package %s", root)
	}
	if len(versions) == 0 {
		return Result{}, errors.Errorf("no versions known for root package %s", root)
	}
	rootVersion := versions[len(versions)-1]

	s.root = PackageRange{Ref: root, Constraint: Exactly(rootVersion)}
	s.sol = newPartialSolution()
	s.incompats = make(map[ProjectName][]*Incompatibility)
	s.seen = make(map[*Incompatibility]struct{})
	s.depCache = make(map[atomKey][]*Incompatibility)

	// The synthetic fact that starts the search: the root cannot be
	// absent.
	s.addIncompatibility(NewIncompatibility([]Term{NewTerm(s.root, false)}, RootCause{}))

	next := root.Name
	for {
		if err := s.propagate(next); err != nil {
			return Result{}, err
		}

		var ok bool
		next, ok, err = s.choosePackageVersion()
		if err != nil {
			return Result{}, err
		}
		if !ok {
			break
		}
	}

	projects := make(map[ProjectName]*semver.Version, len(s.sol.decisions))
	for name, v := range s.sol.decisions {
		projects[name] = v
	}

	if s.l.Level >= logrus.InfoLevel {
		s.l.WithFields(logrus.Fields{
			"projects": len(projects),
			"attempts": s.sol.attempted,
		}).Info("Version solving succeeded")
	}
	return Result{Projects: projects, Attempts: s.sol.attempted}, nil
}

type propagationResult uint8

const (
	propNone propagationResult = iota
	propDerived
	propConflict
)

// propagate drives unit propagation to a fixpoint, starting from the
// incompatibilities that mention the given package.
func (s *Solver) propagate(name ProjectName) error {
	changed := []ProjectName{name}
	queued := map[ProjectName]struct{}{name: {}}

	for len(changed) > 0 {
		pkg := changed[0]
		changed = changed[1:]
		delete(queued, pkg)

		// Most recently added first, so conflicts are found before older,
		// weaker clauses re-derive stale terms.
		incs := s.incompats[pkg]
		for i := len(incs) - 1; i >= 0; i-- {
			res, derived := s.propagateIncompatibility(incs[i])
			if res == propConflict {
				rootCause, err := s.resolveConflict(incs[i])
				if err != nil {
					return err
				}

				// The learned incompatibility is guaranteed to force a new
				// term at the backjumped level; everything queued before the
				// conflict is stale.
				res, derived = s.propagateIncompatibility(rootCause)
				if res != propDerived {
					panic("canary - learned incompatibility must be unit")
				}
				changed = changed[:0]
				for q := range queued {
					delete(queued, q)
				}
				changed = append(changed, derived)
				queued[derived] = struct{}{}
				break
			}
			if res == propDerived {
				if _, ok := queued[derived]; !ok {
					changed = append(changed, derived)
					queued[derived] = struct{}{}
				}
			}
		}
	}
	return nil
}

// propagateIncompatibility checks one clause against the partial solution:
// if every term is satisfied it is a conflict; if exactly one term is
// undetermined, that term's inverse is forced.
func (s *Solver) propagateIncompatibility(inc *Incompatibility) (propagationResult, ProjectName) {
	var unsatisfied *Term
	for i := range inc.terms {
		t := inc.terms[i]
		switch s.sol.relation(t) {
		case relationDisjoint:
			return propNone, ""
		case relationOverlapping:
			if unsatisfied != nil {
				return propNone, ""
			}
			term := t
			unsatisfied = &term
		}
	}

	if unsatisfied == nil {
		return propConflict, ""
	}

	if s.l.Level >= logrus.DebugLevel {
		s.l.WithFields(logrus.Fields{
			"term":  unsatisfied.Inverse().String(),
			"cause": inc.String(),
		}).Debug("Derived term by unit propagation")
	}
	s.sol.derive(unsatisfied.pkg, !unsatisfied.positive, inc)
	return propDerived, unsatisfied.pkg.Ref.Name
}

// resolveConflict learns a new incompatibility from a violated one by
// repeatedly resolving it against the cause of its most recently satisfied
// term, then backjumps to the earliest level where the learned clause still
// forces something. A learned clause that reduces to the root failure ends
// the run with a *SolveFailure.
func (s *Solver) resolveConflict(inc *Incompatibility) (*Incompatibility, error) {
	if s.l.Level >= logrus.InfoLevel {
		s.l.WithField("incompatibility", inc.String()).Info("Conflict detected")
	}

	learned := false
	for !inc.isFailure() {
		var mostRecentTerm *Term
		var mostRecentSatisfier *assignment
		var difference *Term
		previousSatisfierLevel := 1

		for i := range inc.terms {
			satisfier := s.sol.satisfier(inc.terms[i])
			switch {
			case mostRecentSatisfier == nil:
				mostRecentTerm = &inc.terms[i]
				mostRecentSatisfier = satisfier
			case mostRecentSatisfier.index < satisfier.index:
				previousSatisfierLevel = max(previousSatisfierLevel, mostRecentSatisfier.decisionLevel)
				mostRecentTerm = &inc.terms[i]
				mostRecentSatisfier = satisfier
				difference = nil
			default:
				previousSatisfierLevel = max(previousSatisfierLevel, satisfier.decisionLevel)
			}

			if mostRecentTerm == &inc.terms[i] {
				// If the satisfier only partially covers the term, the
				// remainder was satisfied even earlier.
				if d, ok := mostRecentSatisfier.term.Difference(*mostRecentTerm); ok {
					difference = &d
					previousSatisfierLevel = max(previousSatisfierLevel, s.sol.satisfier(d.Inverse()).decisionLevel)
				} else {
					difference = nil
				}
			}
		}

		if previousSatisfierLevel < mostRecentSatisfier.decisionLevel || mostRecentSatisfier.cause == nil {
			if s.l.Level >= logrus.InfoLevel {
				s.l.WithFields(logrus.Fields{
					"level":   previousSatisfierLevel,
					"learned": inc.String(),
				}).Info("Backjumping")
			}
			s.sol.backtrack(previousSatisfierLevel)
			if learned {
				s.addIncompatibility(inc)
			}
			return inc, nil
		}

		newTerms := make([]Term, 0, len(inc.terms)+len(mostRecentSatisfier.cause.terms))
		for i := range inc.terms {
			if &inc.terms[i] != mostRecentTerm {
				newTerms = append(newTerms, inc.terms[i])
			}
		}
		for _, t := range mostRecentSatisfier.cause.terms {
			if !t.pkg.Ref.eq(mostRecentSatisfier.term.pkg.Ref) {
				newTerms = append(newTerms, t)
			}
		}
		if difference != nil {
			newTerms = append(newTerms, difference.Inverse())
		}

		prev := inc
		inc = NewIncompatibility(newTerms, ConflictCause{Conflict: prev, Other: mostRecentSatisfier.cause})
		learned = true

		if s.l.Level >= logrus.DebugLevel {
			s.l.WithField("incompatibility", inc.String()).Debug("Resolved against satisfier cause")
		}
	}

	return nil, &SolveFailure{incompatibility: inc}
}

// choosePackageVersion asks the decision policy for the next package and
// version to try, registers that version's dependency clauses, and decides
// it unless one of them is immediately violated. It reports false when no
// unsatisfied package remains.
func (s *Solver) choosePackageVersion() (ProjectName, bool, error) {
	unsatisfied := s.sol.unsatisfied()
	if len(unsatisfied) == 0 {
		return "", false, nil
	}

	cands := make([]PackageCandidates, 0, len(unsatisfied))
	for _, pr := range unsatisfied {
		versions, err := s.sm.ListVersions(pr.Ref)
		if err != nil {
			var notFound *PackageNotFoundError
			if errors.As(err, &notFound) {
				s.addIncompatibility(NewIncompatibility(
					[]Term{NewTerm(PackageRange{Ref: pr.Ref, Constraint: Any()}, true)},
					PackageNotFoundCause{Err: err}))
				return pr.Ref.Name, true, nil
			}
			return "", false, errors.Wrapf(err, "listing versions of %s", pr.Ref)
		}

		var matching []*semver.Version
		for _, v := range versions {
			if pr.Constraint.Matches(v) {
				matching = append(matching, v)
			}
		}
		cands = append(cands, PackageCandidates{Range: pr, Versions: matching})
	}

	pr, version, ok := s.policy.Choose(cands)
	if !ok {
		panic("canary - decision policy chose nothing with unsatisfied packages remaining")
	}

	if version == nil {
		if s.l.Level >= logrus.InfoLevel {
			s.l.WithField("package", pr.String()).Info("No versions match the required range")
		}
		s.addIncompatibility(NewIncompatibility([]Term{NewTerm(pr, true)}, NoVersionsCause{}))
		return pr.Ref.Name, true, nil
	}

	if sv, ok := s.sm.(SDKVersioner); ok && s.sdk != nil {
		if c, has := sv.SDK(pr.Ref, version); has && !c.Matches(s.sdk) {
			if s.l.Level >= logrus.InfoLevel {
				s.l.WithFields(logrus.Fields{
					"package":  pr.Ref.String(),
					"version":  version.String(),
					"requires": c.String(),
				}).Info("Version rejected by SDK constraint")
			}
			s.addIncompatibility(NewIncompatibility(
				[]Term{NewTerm(PackageRange{Ref: pr.Ref, Constraint: Exactly(version)}, true)},
				SDKCause{Constraint: c}))
			return pr.Ref.Name, true, nil
		}
	}

	incs, err := s.dependencyIncompatibilities(pr.Ref, version)
	if err != nil {
		return "", false, err
	}

	conflict := false
	for _, inc := range incs {
		s.addIncompatibility(inc)

		satisfied := true
		for _, t := range inc.terms {
			if t.pkg.Ref.Name == pr.Ref.Name {
				continue
			}
			if !s.sol.satisfies(t) {
				satisfied = false
				break
			}
		}
		if satisfied {
			conflict = true
		}
	}

	if !conflict {
		s.sol.decide(pr.Ref, version)
		if s.l.Level >= logrus.InfoLevel {
			s.l.WithFields(logrus.Fields{
				"package": pr.Ref.String(),
				"version": version.String(),
				"level":   s.sol.decisionLevel(),
			}).Info("Selected version")
		}
	}
	return pr.Ref.Name, true, nil
}

// dependencyIncompatibilities converts one version's metadata into
// dependency clauses, memoized so re-deciding a version after backtracking
// reuses the same clause objects.
func (s *Solver) dependencyIncompatibilities(ref ProjectRef, v *semver.Version) ([]*Incompatibility, error) {
	key := atomKey{ref: ref.key(), version: v.String()}
	if incs, ok := s.depCache[key]; ok {
		return incs, nil
	}

	deps, err := s.sm.GetDependencies(ref, v)
	if err != nil {
		return nil, errors.Wrapf(err, "fetching dependencies of %s %s", ref, v)
	}

	depender := NewTerm(PackageRange{Ref: ref, Constraint: Exactly(v)}, true)
	incs := make([]*Incompatibility, 0, len(deps))
	for _, dep := range deps {
		incs = append(incs, NewIncompatibility(
			[]Term{depender, NewTerm(dep, false)},
			DependencyCause{}))
	}
	s.depCache[key] = incs
	return incs, nil
}

func (s *Solver) addIncompatibility(inc *Incompatibility) {
	if _, ok := s.seen[inc]; ok {
		return
	}
	s.seen[inc] = struct{}{}

	for _, t := range inc.terms {
		s.incompats[t.pkg.Ref.Name] = append(s.incompats[t.pkg.Ref.Name], inc)
	}
}
