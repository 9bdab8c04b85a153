package pubgrub

import "github.com/Masterminds/semver/v3"

// smCache decorates a SourceManager with memoization. The decision loop
// re-counts candidate versions for every unsatisfied package on every step,
// so version lists and dependency metadata are fetched at most once per
// run.
type smCache struct {
	sm     SourceManager
	vlists map[refKey][]*semver.Version
	deps   map[atomKey][]PackageRange
}

// atomKey identifies one package at one exact version.
type atomKey struct {
	ref     refKey
	version string
}

var _ SourceManager = &smCache{}
var _ SDKVersioner = &smCache{}

func newSMCache(sm SourceManager) *smCache {
	return &smCache{
		sm:     sm,
		vlists: make(map[refKey][]*semver.Version),
		deps:   make(map[atomKey][]PackageRange),
	}
}

func (c *smCache) ListVersions(ref ProjectRef) ([]*semver.Version, error) {
	if vl, ok := c.vlists[ref.key()]; ok {
		return vl, nil
	}

	vl, err := c.sm.ListVersions(ref)
	if err != nil {
		return nil, err
	}
	c.vlists[ref.key()] = vl
	return vl, nil
}

func (c *smCache) GetDependencies(ref ProjectRef, v *semver.Version) ([]PackageRange, error) {
	key := atomKey{ref: ref.key(), version: v.String()}
	if deps, ok := c.deps[key]; ok {
		return deps, nil
	}

	deps, err := c.sm.GetDependencies(ref, v)
	if err != nil {
		return nil, err
	}
	c.deps[key] = deps
	return deps, nil
}

func (c *smCache) SDK(ref ProjectRef, v *semver.Version) (Constraint, bool) {
	if sv, ok := c.sm.(SDKVersioner); ok {
		return sv.SDK(ref, v)
	}
	return Constraint{}, false
}
