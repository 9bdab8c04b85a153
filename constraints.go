package pubgrub

import (
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/pkg/errors"
)

// A Constraint is a set of admissible versions: a normalized sequence of
// disjoint, non-adjacent spans, each a contiguous (possibly unbounded)
// interval. Unlike a bare semver range, Constraint is closed under
// intersection, union, complement and difference, which the resolution
// algebra depends on.
//
// Constraints are immutable values; all operations return new ones.
type Constraint struct {
	// raw preserves the source text of a parsed constraint for rendering.
	// Derived constraints have no raw form and render normalized.
	raw   string
	spans []span
}

// span is one contiguous interval. A nil bound is unbounded on that side,
// and its inclusive flag is always false.
type span struct {
	min, max       *semver.Version
	incMin, incMax bool
}

// Any returns the constraint matching every version.
func Any() Constraint {
	return Constraint{spans: []span{{}}}
}

// None returns the empty constraint.
func None() Constraint {
	return Constraint{}
}

// Exactly returns the constraint matching only the given version.
func Exactly(v *semver.Version) Constraint {
	return Constraint{spans: []span{{min: v, max: v, incMin: true, incMax: true}}}
}

// NewConstraint parses a constraint body. Accepted forms: "any", "none",
// exact versions ("1.2.3"), caret ranges ("^1.2.3"), comparator sequences
// (">=1.0.0 <2.0.0"), and "||"-separated unions of the above.
func NewConstraint(body string) (Constraint, error) {
	trimmed := strings.TrimSpace(body)
	switch trimmed {
	case "any", "*", "":
		c := Any()
		c.raw = trimmed
		return c, nil
	case "none":
		return None(), nil
	}

	out := None()
	for _, group := range strings.Split(trimmed, "||") {
		gc, err := parseComparatorGroup(group)
		if err != nil {
			return Constraint{}, err
		}
		out = out.Union(gc)
	}
	out.raw = trimmed
	return out, nil
}

// mustConstraint is NewConstraint for statically known-good bodies.
func mustConstraint(body string) Constraint {
	c, err := NewConstraint(body)
	if err != nil {
		panic(err)
	}
	return c
}

func parseComparatorGroup(group string) (Constraint, error) {
	fields := strings.Fields(group)
	if len(fields) == 0 {
		return Constraint{}, errors.Errorf("empty constraint group in %q", group)
	}

	c := Any()
	for _, f := range fields {
		part, err := parseComparator(f)
		if err != nil {
			return Constraint{}, err
		}
		c = c.Intersect(part)
	}
	return c, nil
}

func parseComparator(tok string) (Constraint, error) {
	var op string
	body := tok
	for _, candidate := range []string{">=", "<=", ">", "<", "^", "="} {
		if strings.HasPrefix(tok, candidate) {
			op = candidate
			body = strings.TrimPrefix(tok, candidate)
			break
		}
	}

	v, err := semver.NewVersion(body)
	if err != nil {
		return Constraint{}, errors.Wrapf(err, "malformed version %q in constraint", body)
	}

	switch op {
	case "", "=":
		return Exactly(v), nil
	case "^":
		return Constraint{spans: []span{{min: v, incMin: true, max: nextBreaking(v)}}}, nil
	case ">=":
		return Constraint{spans: []span{{min: v, incMin: true}}}, nil
	case ">":
		return Constraint{spans: []span{{min: v}}}, nil
	case "<=":
		return Constraint{spans: []span{{max: v, incMax: true}}}, nil
	case "<":
		return Constraint{spans: []span{{max: v}}}, nil
	}
	panic("unreachable")
}

// nextBreaking computes the exclusive upper bound of a caret range: the
// next version allowed to break compatibility. Pre-1.0.0 versions treat
// minor (or patch, below 0.1.0) bumps as breaking, following pub.
func nextBreaking(v *semver.Version) *semver.Version {
	switch {
	case v.Major() > 0:
		return semver.New(v.Major()+1, 0, 0, "", "")
	case v.Minor() > 0:
		return semver.New(0, v.Minor()+1, 0, "", "")
	default:
		return semver.New(0, 0, v.Patch()+1, "", "")
	}
}

// IsEmpty reports whether the constraint admits no versions.
func (c Constraint) IsEmpty() bool {
	return len(c.spans) == 0
}

// IsAny reports whether the constraint admits every version.
func (c Constraint) IsAny() bool {
	return len(c.spans) == 1 && c.spans[0].min == nil && c.spans[0].max == nil
}

// Matches reports whether the version lies within the constraint.
func (c Constraint) Matches(v *semver.Version) bool {
	for _, s := range c.spans {
		if s.contains(v) {
			return true
		}
	}
	return false
}

// AllowsAll reports whether every version admitted by other is also
// admitted by c (set containment).
func (c Constraint) AllowsAll(other Constraint) bool {
	// Spans are disjoint and non-adjacent after normalization, so each span
	// of other must fit inside a single span of c.
	for _, so := range other.spans {
		ok := false
		for _, sc := range c.spans {
			if cmpLower(sc, so) <= 0 && cmpUpper(sc, so) >= 0 {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

// AllowsAny reports whether c and other admit at least one version in
// common.
func (c Constraint) AllowsAny(other Constraint) bool {
	for _, sc := range c.spans {
		for _, so := range other.spans {
			if _, ok := spanIntersect(sc, so); ok {
				return true
			}
		}
	}
	return false
}

// Intersect returns the constraint admitting exactly the versions admitted
// by both c and other.
func (c Constraint) Intersect(other Constraint) Constraint {
	var out []span
	for _, sc := range c.spans {
		for _, so := range other.spans {
			if s, ok := spanIntersect(sc, so); ok {
				out = append(out, s)
			}
		}
	}
	return Constraint{spans: normalize(out)}
}

// Union returns the constraint admitting the versions admitted by either
// c or other.
func (c Constraint) Union(other Constraint) Constraint {
	merged := make([]span, 0, len(c.spans)+len(other.spans))
	merged = append(merged, c.spans...)
	merged = append(merged, other.spans...)
	return Constraint{spans: normalize(merged)}
}

// Invert returns the complement of c.
func (c Constraint) Invert() Constraint {
	if c.IsEmpty() {
		return Any()
	}

	var out []span
	cur := span{} // open lower bound
	for i, s := range c.spans {
		if s.min != nil {
			gap := cur
			gap.max = s.min
			gap.incMax = !s.incMin
			if gap.valid() {
				out = append(out, gap)
			}
		} else if i > 0 {
			panic("canary - unbounded lower span after the first")
		}

		if s.max == nil {
			return Constraint{spans: out}
		}
		cur = span{min: s.max, incMin: !s.incMax}
	}
	out = append(out, cur)
	return Constraint{spans: out}
}

// Difference returns the versions admitted by c but not by other.
func (c Constraint) Difference(other Constraint) Constraint {
	return c.Intersect(other.Invert())
}

// Equal reports set equality of the two constraints.
func (c Constraint) Equal(other Constraint) bool {
	if len(c.spans) != len(other.spans) {
		return false
	}
	for i := range c.spans {
		if cmpLower(c.spans[i], other.spans[i]) != 0 || cmpUpper(c.spans[i], other.spans[i]) != 0 {
			return false
		}
	}
	return true
}

func (c Constraint) String() string {
	if c.raw != "" {
		return c.raw
	}
	if c.IsEmpty() {
		return "none"
	}
	if c.IsAny() {
		return "any"
	}

	parts := make([]string, 0, len(c.spans))
	for _, s := range c.spans {
		parts = append(parts, s.String())
	}
	return strings.Join(parts, " or ")
}

func (s span) String() string {
	if s.min != nil && s.max != nil && s.incMin && s.incMax && s.min.Equal(s.max) {
		return s.min.String()
	}

	var parts []string
	if s.min != nil {
		if s.incMin {
			parts = append(parts, ">="+s.min.String())
		} else {
			parts = append(parts, ">"+s.min.String())
		}
	}
	if s.max != nil {
		if s.incMax {
			parts = append(parts, "<="+s.max.String())
		} else {
			parts = append(parts, "<"+s.max.String())
		}
	}
	if len(parts) == 0 {
		return "any"
	}
	return strings.Join(parts, " ")
}

func (s span) contains(v *semver.Version) bool {
	if s.min != nil {
		c := v.Compare(s.min)
		if c < 0 || (c == 0 && !s.incMin) {
			return false
		}
	}
	if s.max != nil {
		c := v.Compare(s.max)
		if c > 0 || (c == 0 && !s.incMax) {
			return false
		}
	}
	return true
}

// valid reports whether the span admits at least one version.
func (s span) valid() bool {
	if s.min == nil || s.max == nil {
		return true
	}
	c := s.min.Compare(s.max)
	if c < 0 {
		return true
	}
	return c == 0 && s.incMin && s.incMax
}

// cmpLower orders two spans by lower bound; nil sorts first, and at equal
// versions an inclusive bound is lower than an exclusive one.
func cmpLower(a, b span) int {
	switch {
	case a.min == nil && b.min == nil:
		return 0
	case a.min == nil:
		return -1
	case b.min == nil:
		return 1
	}
	if c := a.min.Compare(b.min); c != 0 {
		return c
	}
	switch {
	case a.incMin == b.incMin:
		return 0
	case a.incMin:
		return -1
	default:
		return 1
	}
}

// cmpUpper orders two spans by upper bound; nil sorts last, and at equal
// versions an inclusive bound is higher than an exclusive one.
func cmpUpper(a, b span) int {
	switch {
	case a.max == nil && b.max == nil:
		return 0
	case a.max == nil:
		return 1
	case b.max == nil:
		return -1
	}
	if c := a.max.Compare(b.max); c != 0 {
		return c
	}
	switch {
	case a.incMax == b.incMax:
		return 0
	case a.incMax:
		return 1
	default:
		return -1
	}
}

func spanIntersect(a, b span) (span, bool) {
	lo := a
	if cmpLower(b, a) > 0 {
		lo = b
	}
	hi := a
	if cmpUpper(b, a) < 0 {
		hi = b
	}
	s := span{min: lo.min, incMin: lo.incMin, max: hi.max, incMax: hi.incMax}
	if !s.valid() {
		return span{}, false
	}
	return s, true
}

// adjacent reports whether a and b touch with no gap, assuming a's lower
// bound is not after b's.
func adjacent(a, b span) bool {
	if a.max == nil || b.min == nil {
		return false
	}
	return a.max.Compare(b.min) == 0 && (a.incMax || b.incMin)
}

// normalize sorts spans and merges any that overlap or touch, yielding the
// canonical disjoint non-adjacent form every Constraint carries.
func normalize(spans []span) []span {
	if len(spans) == 0 {
		return nil
	}

	sorted := make([]span, len(spans))
	copy(sorted, spans)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && cmpLower(sorted[j], sorted[j-1]) < 0; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}

	out := sorted[:1]
	for _, s := range sorted[1:] {
		last := &out[len(out)-1]
		_, overlaps := spanIntersect(*last, s)
		if overlaps || adjacent(*last, s) {
			if cmpUpper(s, *last) > 0 {
				last.max = s.max
				last.incMax = s.incMax
			}
			continue
		}
		out = append(out, s)
	}
	return out
}
