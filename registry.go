package pubgrub

import (
	"io"
	"sort"

	"github.com/Masterminds/semver/v3"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// MapSourceManager is an in-memory SourceManager, fed either directly via
// AddVersion or from a YAML registry file. It is the fixture backend for
// tests and the backing store for the CLI.
type MapSourceManager struct {
	versions map[refKey][]*semver.Version
	deps     map[atomKey][]PackageRange
	sdks     map[atomKey]Constraint
}

var _ SourceManager = &MapSourceManager{}
var _ SDKVersioner = &MapSourceManager{}

func NewMapSourceManager() *MapSourceManager {
	return &MapSourceManager{
		versions: make(map[refKey][]*semver.Version),
		deps:     make(map[atomKey][]PackageRange),
		sdks:     make(map[atomKey]Constraint),
	}
}

// AddVersion registers one version of a package and its dependency ranges,
// replacing any previous registration of the same version.
func (m *MapSourceManager) AddVersion(ref ProjectRef, v *semver.Version, deps []PackageRange) {
	key := ref.key()
	ak := atomKey{ref: key, version: v.String()}
	if _, ok := m.deps[ak]; !ok {
		m.versions[key] = append(m.versions[key], v)
		sort.Sort(semver.Collection(m.versions[key]))
	}
	m.deps[ak] = deps
}

// SetSDK attaches an SDK constraint to an already-registered version.
func (m *MapSourceManager) SetSDK(ref ProjectRef, v *semver.Version, c Constraint) {
	m.sdks[atomKey{ref: ref.key(), version: v.String()}] = c
}

func (m *MapSourceManager) ListVersions(ref ProjectRef) ([]*semver.Version, error) {
	vl, ok := m.versions[ref.key()]
	if !ok {
		return nil, &PackageNotFoundError{Ref: ref}
	}
	return vl, nil
}

func (m *MapSourceManager) GetDependencies(ref ProjectRef, v *semver.Version) ([]PackageRange, error) {
	deps, ok := m.deps[atomKey{ref: ref.key(), version: v.String()}]
	if !ok {
		return nil, &VersionNotFoundError{Ref: ref, Version: v.String()}
	}
	return deps, nil
}

func (m *MapSourceManager) SDK(ref ProjectRef, v *semver.Version) (Constraint, bool) {
	c, ok := m.sdks[atomKey{ref: ref.key(), version: v.String()}]
	return c, ok
}

// registryFile is the YAML schema of a package universe: a root package and
// a registry of dependency metadata per package version.
type registryFile struct {
	Root struct {
		Name    string            `yaml:"name"`
		Version string            `yaml:"version"`
		Deps    map[string]string `yaml:"deps"`
	} `yaml:"root"`
	Packages map[string]map[string]registryEntry `yaml:"packages"`
}

type registryEntry struct {
	Deps map[string]string `yaml:"deps"`
	SDK  string            `yaml:"sdk"`
}

// LoadRegistry reads a YAML package universe and returns a source manager
// holding it, plus the ref of the universe's root package.
func LoadRegistry(r io.Reader) (*MapSourceManager, ProjectRef, error) {
	var file registryFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		return nil, ProjectRef{}, errors.Wrap(err, "decoding registry")
	}
	if file.Root.Name == "" {
		return nil, ProjectRef{}, errors.New("registry has no root package")
	}

	sm := NewMapSourceManager()
	root := ProjectRef{Name: ProjectName(file.Root.Name)}

	rootVersion := file.Root.Version
	if rootVersion == "" {
		rootVersion = "1.0.0"
	}
	rv, err := semver.NewVersion(rootVersion)
	if err != nil {
		return nil, ProjectRef{}, errors.Wrapf(err, "malformed root version %q", rootVersion)
	}
	rootDeps, err := parseDeps(file.Root.Deps)
	if err != nil {
		return nil, ProjectRef{}, errors.Wrapf(err, "root package %s", file.Root.Name)
	}
	sm.AddVersion(root, rv, rootDeps)

	for name, byVersion := range file.Packages {
		ref := ProjectRef{Name: ProjectName(name)}
		for vs, entry := range byVersion {
			v, err := semver.NewVersion(vs)
			if err != nil {
				return nil, ProjectRef{}, errors.Wrapf(err, "malformed version %q of package %s", vs, name)
			}
			deps, err := parseDeps(entry.Deps)
			if err != nil {
				return nil, ProjectRef{}, errors.Wrapf(err, "package %s %s", name, vs)
			}
			sm.AddVersion(ref, v, deps)

			if entry.SDK != "" {
				c, err := NewConstraint(entry.SDK)
				if err != nil {
					return nil, ProjectRef{}, errors.Wrapf(err, "malformed sdk constraint of package %s %s", name, vs)
				}
				sm.SetSDK(ref, v, c)
			}
		}
	}
	return sm, root, nil
}

func parseDeps(raw map[string]string) ([]PackageRange, error) {
	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	deps := make([]PackageRange, 0, len(names))
	for _, name := range names {
		c, err := NewConstraint(raw[name])
		if err != nil {
			return nil, errors.Wrapf(err, "malformed constraint on dependency %s", name)
		}
		deps = append(deps, PackageRange{
			Ref:        ProjectRef{Name: ProjectName(name)},
			Constraint: c,
		})
	}
	return deps, nil
}
