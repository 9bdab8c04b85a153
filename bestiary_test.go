package pubgrub

import (
	"strings"
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/sirupsen/logrus"
)

// This file contains helpers for constructing solver fixtures: small
// in-memory package universes described with terse strings.

// mkv parses a version or panics; for static fixture data only.
func mkv(s string) *semver.Version {
	v, err := semver.NewVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

// mkc parses a constraint body or panics; for static fixture data only.
func mkc(s string) Constraint {
	return mustConstraint(s)
}

func mkref(name string) ProjectRef {
	return ProjectRef{Name: ProjectName(name)}
}

// mkrange parses "name constraint" into a PackageRange; a bare name means
// any version.
func mkrange(s string) PackageRange {
	name, body, found := strings.Cut(s, " ")
	if !found {
		body = "any"
	}
	return PackageRange{Ref: mkref(name), Constraint: mkc(body)}
}

func pos(s string) Term { return NewTerm(mkrange(s), true) }
func neg(s string) Term { return NewTerm(mkrange(s), false) }

// depends builds a dependency incompatibility: every version of the
// depender range requires the target range.
func depends(depender, target string) *Incompatibility {
	return NewIncompatibility([]Term{pos(depender), neg(target)}, DependencyCause{})
}

// forbidden builds a bare fact excluding the range outright.
func forbidden(s string) *Incompatibility {
	return NewIncompatibility([]Term{pos(s)}, NoReason{})
}

// mustResolve resolves two incompatibilities or fails the test.
func mustResolve(t *testing.T, a, b *Incompatibility) *Incompatibility {
	t.Helper()
	out, err := resolve(a, b)
	if err != nil {
		t.Fatalf("resolve(%s, %s): %s", a, b, err)
	}
	return out
}

// A depspec describes one package version: "name version" plus its
// dependencies as "name constraint" strings. An "sdk:" prefixed entry sets
// the version's SDK constraint instead.
type depspec struct {
	ref  ProjectRef
	v    *semver.Version
	deps []PackageRange
	sdk  string
}

// dsv parses a depspec: dsv("foo 1.0.0", "bar ^1.0.0", "sdk:>=2.0.0").
func dsv(pair string, deps ...string) depspec {
	name, version, found := strings.Cut(pair, " ")
	if !found {
		panic("depspec needs \"name version\": " + pair)
	}

	ds := depspec{ref: mkref(name), v: mkv(version)}
	for _, d := range deps {
		if body, ok := strings.CutPrefix(d, "sdk:"); ok {
			ds.sdk = body
			continue
		}
		ds.deps = append(ds.deps, mkrange(d))
	}
	return ds
}

// fixSM builds an in-memory source manager from depspecs.
func fixSM(specs []depspec) *MapSourceManager {
	sm := NewMapSourceManager()
	for _, ds := range specs {
		sm.AddVersion(ds.ref, ds.v, ds.deps)
		if ds.sdk != "" {
			sm.SetSDK(ds.ref, ds.v, mkc(ds.sdk))
		}
	}
	return sm
}

// A solveFixture is one end-to-end solver case. The first depspec is the
// root package. want maps package name to expected version; a nil want
// means solving must fail with exactly the wantErr explanation.
type solveFixture struct {
	n        string
	ds       []depspec
	sdk      string
	want     map[string]string
	wantErr  string
	attempts int
}

func (f solveFixture) run(t *testing.T) {
	t.Helper()

	l := logrus.New()
	l.Out = testWriter{t}
	l.Level = logrus.DebugLevel

	s := NewSolver(fixSM(f.ds), l)
	if f.sdk != "" {
		s.SetSDKVersion(mkv(f.sdk))
	}

	result, err := s.Solve(f.ds[0].ref)
	if f.want == nil {
		failure, ok := err.(*SolveFailure)
		if !ok {
			t.Fatalf("expected *SolveFailure, got %v (result %v)", err, result.Projects)
		}
		if got := squash(failure.Error()); got != squash(f.wantErr) {
			t.Errorf("explanation mismatch:\n  got:  %s\n  want: %s", got, squash(f.wantErr))
		}
		return
	}

	if err != nil {
		t.Fatalf("unexpected solve failure: %s", err)
	}
	if len(result.Projects) != len(f.want) {
		t.Errorf("selected %d packages, want %d: %v", len(result.Projects), len(f.want), result.Projects)
	}
	for name, version := range f.want {
		got, ok := result.Projects[ProjectName(name)]
		if !ok {
			t.Errorf("no version selected for %s", name)
			continue
		}
		if !got.Equal(mkv(version)) {
			t.Errorf("selected %s %s, want %s", name, got, version)
		}
	}
	if f.attempts != 0 && result.Attempts != f.attempts {
		t.Errorf("took %d attempts, want %d", result.Attempts, f.attempts)
	}
}

// squash collapses all whitespace so prose comparisons ignore line wrapping.
func squash(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// testWriter routes solver logs through the test harness.
type testWriter struct {
	t testing.TB
}

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}
