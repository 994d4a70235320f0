package registry

import (
	"context"
	"fmt"
)

// nativeManifestDoc mirrors pluginmarket.go's Manifest shape, generalized
// from "plugin" to "mcp server or skill package": declared runtimes,
// version list, tree hash for skills, image coordinates for MCP/Docker.
type nativeManifestDoc struct {
	Namespace string   `json:"namespace"`
	Name      string   `json:"name"`
	Kind      string   `json:"kind"`
	Versions  []string `json:"versions"`
	TreeHash  string   `json:"tree_hash"`
	Download  string   `json:"download_url"`
	Image     string   `json:"image"`
}

// Native is the "sift" registry: a rich schema served as JSON from
// <baseURL>/<namespace>/<name>.json.
type Native struct {
	BaseURL string
}

func (n Native) Name() string { return "sift" }

func (n Native) Resolve(ctx context.Context, namespace, name, version string) (PackageManifest, error) {
	url := fmt.Sprintf("%s/%s/%s.json", n.BaseURL, namespace, name)
	var doc nativeManifestDoc
	if err := httpGetJSON(ctx, defaultClient(), url, &doc); err != nil {
		return PackageManifest{}, err
	}
	return PackageManifest{
		Namespace:                  doc.Namespace,
		Name:                       doc.Name,
		Kind:                       doc.Kind,
		Versions:                   doc.Versions,
		TreeHash:                   doc.TreeHash,
		DownloadURL:                doc.Download,
		ImageRef:                   doc.Image,
		SupportsHistoricalVersions: len(doc.Versions) > 0,
	}, nil
}
