package pubgrub

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTermRelation(t *testing.T) {
	cases := []struct {
		n     string
		t     Term
		other Term
		want  setRelation
	}{
		{"positive within positive", pos("foo ^1.2.0"), pos("foo ^1.0.0"), relationSubset},
		{"positive outside positive", pos("foo ^2.0.0"), pos("foo ^1.0.0"), relationDisjoint},
		{"positive straddling positive", pos("foo >=1.5.0 <2.5.0"), pos("foo ^1.0.0"), relationOverlapping},
		{"positive within negative", pos("foo ^1.0.0"), neg("foo ^2.0.0"), relationSubset},
		{"positive inside negated range", pos("foo ^1.2.0"), neg("foo ^1.0.0"), relationDisjoint},
		{"negative against positive", neg("foo ^1.0.0"), pos("foo ^1.0.0"), relationDisjoint},
		{"negative superset", neg("foo any"), neg("foo ^1.0.0"), relationSubset},
		{"negative subset", neg("foo ^1.0.0"), neg("foo any"), relationOverlapping},
		{"negative against disjoint positive", neg("foo ^1.0.0"), pos("foo ^2.0.0"), relationOverlapping},
	}

	for _, tc := range cases {
		t.Run(tc.n, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.t.Relation(tc.other))
		})
	}
}

func TestTermRelationPanicsAcrossPackages(t *testing.T) {
	assert.Panics(t, func() {
		pos("foo any").Relation(pos("bar any"))
	})
}

func TestTermSatisfies(t *testing.T) {
	assert.True(t, pos("foo ^1.2.0").Satisfies(pos("foo ^1.0.0")))
	assert.False(t, pos("foo ^1.0.0").Satisfies(pos("foo ^1.2.0")))
	assert.True(t, pos("foo ^2.0.0").Satisfies(neg("foo ^1.0.0")))
	assert.True(t, neg("foo any").Satisfies(neg("foo ^1.0.0")))
	assert.False(t, neg("foo ^1.0.0").Satisfies(pos("foo ^2.0.0")))
}

func TestTermIntersect(t *testing.T) {
	t.Run("positive and positive", func(t *testing.T) {
		got, ok := pos("foo ^1.0.0").Intersect(pos("foo >=1.5.0"))
		require.True(t, ok)
		assert.True(t, got.Positive())
		assert.True(t, got.Package().Constraint.Equal(mkc(">=1.5.0 <2.0.0")))
	})

	t.Run("positive and negative", func(t *testing.T) {
		got, ok := pos("foo ^1.0.0").Intersect(neg("foo >=1.5.0"))
		require.True(t, ok)
		assert.True(t, got.Positive())
		assert.True(t, got.Package().Constraint.Equal(mkc(">=1.0.0 <1.5.0")))
	})

	t.Run("negative and negative", func(t *testing.T) {
		got, ok := neg("foo ^1.0.0").Intersect(neg("foo ^2.0.0"))
		require.True(t, ok)
		assert.False(t, got.Positive())
		assert.True(t, got.Package().Constraint.Equal(mkc(">=1.0.0 <3.0.0")))
	})

	t.Run("contradiction is empty", func(t *testing.T) {
		_, ok := pos("foo ^1.0.0").Intersect(pos("foo ^2.0.0"))
		assert.False(t, ok)
	})

	t.Run("positive and its negation is empty", func(t *testing.T) {
		_, ok := pos("foo ^1.0.0").Intersect(neg("foo ^1.0.0"))
		assert.False(t, ok)
	})
}

func TestTermUnion(t *testing.T) {
	t.Run("negative residual", func(t *testing.T) {
		// "not foo any" or "foo >=1.0.0" leaves only "not foo <1.0.0".
		got, ok := neg("foo any").Union(pos("foo >=1.0.0"))
		require.True(t, ok)
		assert.False(t, got.Positive())
		assert.True(t, got.Package().Constraint.Equal(mkc("<1.0.0")))
	})

	t.Run("tautology has no term", func(t *testing.T) {
		_, ok := neg("foo any").Union(pos("foo any"))
		assert.False(t, ok)
	})

	t.Run("commutative", func(t *testing.T) {
		a, b := pos("foo ^1.0.0"), pos("foo ^2.0.0")
		ab, ok1 := a.Union(b)
		ba, ok2 := b.Union(a)
		require.True(t, ok1)
		require.True(t, ok2)
		assert.Equal(t, ab.Positive(), ba.Positive())
		assert.True(t, ab.Package().Constraint.Equal(ba.Package().Constraint))
	})
}

func TestTermDifference(t *testing.T) {
	got, ok := pos("foo ^1.0.0").Difference(pos("foo >=1.5.0"))
	require.True(t, ok)
	assert.True(t, got.Positive())
	assert.True(t, got.Package().Constraint.Equal(mkc(">=1.0.0 <1.5.0")))

	_, ok = pos("foo ^1.0.0").Difference(pos("foo any"))
	assert.False(t, ok)
}

func TestTermInverse(t *testing.T) {
	term := pos("foo ^1.0.0")
	assert.False(t, term.Inverse().Positive())
	assert.True(t, term.Inverse().Inverse().eq(term))
}

func TestTermString(t *testing.T) {
	assert.Equal(t, "foo ^1.0.0", pos("foo ^1.0.0").String())
	assert.Equal(t, "not foo ^1.0.0", neg("foo ^1.0.0").String())
}

func TestTermDifferentSources(t *testing.T) {
	mirror := NewTerm(PackageRange{
		Ref:        ProjectRef{Name: "foo", Source: "https://mirror.example"},
		Constraint: Any(),
	}, true)

	// The same name from different sources can never both be selected.
	assert.Equal(t, relationDisjoint, mirror.Relation(pos("foo any")))

	// A positive selection from one source satisfies exclusion of another.
	assert.Equal(t, relationSubset, mirror.Relation(neg("foo any")))
}
