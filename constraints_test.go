package pubgrub

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstraintParsing(t *testing.T) {
	cases := []struct {
		body    string
		matches []string
		rejects []string
	}{
		{"any", []string{"0.0.1", "1.0.0", "99.0.0"}, nil},
		{"*", []string{"1.0.0"}, nil},
		{"none", nil, []string{"0.0.1", "1.0.0"}},
		{"1.2.3", []string{"1.2.3"}, []string{"1.2.2", "1.2.4"}},
		{"=1.2.3", []string{"1.2.3"}, []string{"1.2.4"}},
		{"^1.2.3", []string{"1.2.3", "1.9.9"}, []string{"1.2.2", "2.0.0"}},
		{"^0.1.2", []string{"0.1.2", "0.1.9"}, []string{"0.2.0", "1.0.0"}},
		{"^0.0.3", []string{"0.0.3"}, []string{"0.0.4"}},
		{">=1.0.0 <2.0.0", []string{"1.0.0", "1.9.9"}, []string{"0.9.9", "2.0.0"}},
		{">1.0.0", []string{"1.0.1"}, []string{"1.0.0"}},
		{"<=2.0.0", []string{"2.0.0", "0.1.0"}, []string{"2.0.1"}},
		{"^1.0.0 || ^3.0.0", []string{"1.5.0", "3.1.0"}, []string{"2.0.0", "4.0.0"}},
	}

	for _, tc := range cases {
		t.Run(tc.body, func(t *testing.T) {
			c, err := NewConstraint(tc.body)
			require.NoError(t, err)

			for _, v := range tc.matches {
				assert.True(t, c.Matches(mkv(v)), "%s should match %s", tc.body, v)
			}
			for _, v := range tc.rejects {
				assert.False(t, c.Matches(mkv(v)), "%s should not match %s", tc.body, v)
			}
		})
	}
}

func TestConstraintParseErrors(t *testing.T) {
	for _, body := range []string{"bogus", ">=x.y.z", "^"} {
		_, err := NewConstraint(body)
		assert.Error(t, err, "parsing %q", body)
	}
}

func TestConstraintAlgebra(t *testing.T) {
	caret1 := mkc("^1.0.0")
	caret2 := mkc("^2.0.0")
	wide := mkc(">=1.0.0 <3.0.0")

	assert.True(t, caret1.Intersect(caret2).IsEmpty())
	assert.True(t, wide.AllowsAll(caret1))
	assert.True(t, wide.AllowsAll(caret2))
	assert.False(t, caret1.AllowsAll(wide))
	assert.True(t, caret1.AllowsAny(wide))
	assert.False(t, caret1.AllowsAny(caret2))

	// Union of the two adjacent caret ranges covers wide exactly.
	both := caret1.Union(caret2)
	assert.True(t, both.Equal(wide))

	// Difference carves the other caret back out.
	assert.True(t, wide.Difference(caret2).Equal(caret1))
}

func TestConstraintInvert(t *testing.T) {
	c := mkc("^1.0.0")
	inv := c.Invert()

	for _, v := range []string{"0.9.9", "2.0.0"} {
		assert.True(t, inv.Matches(mkv(v)), "inverse should match %s", v)
	}
	for _, v := range []string{"1.0.0", "1.9.9"} {
		assert.False(t, inv.Matches(mkv(v)), "inverse should not match %s", v)
	}

	// Double inversion is identity; inverting the extremes flips them.
	assert.True(t, inv.Invert().Equal(c))
	assert.True(t, Any().Invert().IsEmpty())
	assert.True(t, None().Invert().IsAny())
}

func TestConstraintNormalization(t *testing.T) {
	// Overlapping and touching spans collapse to one.
	union := mkc(">=1.0.0 <1.5.0").Union(mkc(">=1.5.0 <2.0.0"))
	assert.True(t, union.Equal(mkc(">=1.0.0 <2.0.0")))

	// Disjoint spans stay separate regardless of input order.
	split := mkc("^3.0.0").Union(mkc("^1.0.0"))
	assert.True(t, split.Equal(mkc("^1.0.0 || ^3.0.0")))
	assert.False(t, split.Matches(mkv("2.5.0")))
}

func TestConstraintString(t *testing.T) {
	// Parsed constraints render their source text; derived ones render
	// normalized.
	assert.Equal(t, "^1.0.0", mkc("^1.0.0").String())
	assert.Equal(t, "any", Any().String())
	assert.Equal(t, "none", None().String())
	assert.Equal(t, "1.2.3", Exactly(mkv("1.2.3")).String())
	assert.Equal(t, "<1.0.0", Any().Difference(mkc(">=1.0.0")).String())
	assert.Equal(t, ">1.0.0 <2.0.0", mkc("^1.0.0").Difference(Exactly(mkv("1.0.0"))).String())
}

func TestExactly(t *testing.T) {
	c := Exactly(mkv("1.2.3"))
	assert.True(t, c.Matches(mkv("1.2.3")))
	assert.False(t, c.Matches(mkv("1.2.4")))
	assert.False(t, c.IsAny())
	assert.False(t, c.IsEmpty())
}
