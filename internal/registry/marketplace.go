package registry

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"
)

// marketplaceDoc is the shape of a claude-marketplace `marketplace.json`
// (or, defensively, a YAML-flavored variant some marketplaces ship
// alongside it) document, before being lifted into PackageManifest.
type marketplaceDoc struct {
	Plugins []marketplacePlugin `json:"plugins" yaml:"plugins"`
}

type marketplacePlugin struct {
	Name    string `json:"name" yaml:"name"`
	Owner   string `json:"owner" yaml:"owner"`
	Version string `json:"version" yaml:"version"`
	Source  string `json:"source" yaml:"source"` // points at a git repo or tarball.
}

// Marketplace adapts a claude-marketplace `marketplace.json` document into
// the common PackageManifest shape. Unlike Native, it does not carry a
// version list beyond the single pinned `version` field, so it never
// supports historical versions: requesting name@version against it always
// emits VersionIgnored and resolves the marketplace's current pin.
type Marketplace struct {
	ManifestURL string
}

func (m Marketplace) Name() string { return "claude-marketplace" }

func (m Marketplace) Resolve(ctx context.Context, namespace, name, _ string) (PackageManifest, error) {
	var doc marketplaceDoc
	if err := httpGetJSON(ctx, defaultClient(), m.ManifestURL, &doc); err != nil {
		// Some marketplaces ship YAML; json.Decoder already failed, so this
		// path only matters for callers that fetch raw bytes themselves
		// via ResolveFromBytes. httpGetJSON's JSON-only decode is kept as
		// the common path since the overwhelming majority of marketplaces
		// are pure JSON.
		return PackageManifest{}, err
	}
	return pluginToManifest(doc, namespace, name)
}

// ResolveFromBytes parses a marketplace document already fetched by the
// caller with the YAML decoder, which also accepts JSON input, for
// marketplaces that serve `marketplace.yaml` instead of `.json`.
func ResolveFromBytes(data []byte, namespace, name string) (PackageManifest, error) {
	var doc marketplaceDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return PackageManifest{}, fmt.Errorf("parse marketplace document: %w", err)
	}
	return pluginToManifest(doc, namespace, name)
}

func pluginToManifest(doc marketplaceDoc, namespace, name string) (PackageManifest, error) {
	for _, p := range doc.Plugins {
		if p.Owner == namespace && p.Name == name {
			return PackageManifest{
				Namespace:                  p.Owner,
				Name:                       p.Name,
				Kind:                       "skill",
				Versions:                   []string{p.Version},
				DownloadURL:                p.Source,
				SupportsHistoricalVersions: false,
			}, nil
		}
	}
	return PackageManifest{}, fmt.Errorf("%s/%s not found in marketplace catalog", namespace, name)
}
