// Package registry implements the Registry Adapter Set: given a package
// name and optional version, produce a normalized PackageManifest,
// regardless of which concrete registry schema it came from.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Lutra-Fs/sift/internal/httpx"
	"github.com/Lutra-Fs/sift/internal/netpolicy"
	"github.com/Lutra-Fs/sift/internal/siferr"
)

// PackageManifest is the common shape every registry adapter normalizes
// into, generalized from pluginmarket.go's Manifest/CatalogEntry from
// "plugin" to "MCP server or skill package."
type PackageManifest struct {
	Namespace string // e.g. "anthropics" in "anthropics/pdf"
	Name      string
	Kind      string // "mcp" | "skill"

	// Versions lists known versions, newest first, when the registry
	// supports history. Empty when it only ever serves "latest".
	Versions []string

	// TreeHash is populated for skill packages the registry already
	// knows the tree hash of (native sift registries); empty otherwise,
	// in which case C4 computes it after fetch.
	TreeHash string

	// DownloadURL is where to fetch the artifact (tarball/zip) from, for
	// sources that resolve through a registry rather than git/docker.
	DownloadURL string

	// ImageRef is populated for Docker MCP packages.
	ImageRef string

	SupportsHistoricalVersions bool
}

// Registry implements a single capability: given a package name and
// optional version, produce a PackageManifest.
type Registry interface {
	Name() string
	Resolve(ctx context.Context, namespace, name, version string) (PackageManifest, error)
}

// httpGetJSON fetches url and decodes it as JSON, retrying transient
// failures per spec.md §5's resolver retry policy.
func httpGetJSON(ctx context.Context, client *http.Client, url string, out any) error {
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("build request for %s: %w", url, err)
		}
		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
			if sleepErr := netpolicy.SleepForRetry(ctx, attempt, nil); sleepErr != nil {
				return sleepErr
			}
			continue
		}
		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("%s: server error %d", url, resp.StatusCode)
			if sleepErr := netpolicy.SleepForRetry(ctx, attempt, resp.Header); sleepErr != nil {
				return sleepErr
			}
			continue
		}
		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return siferr.New(siferr.ResolveError, url, fmt.Errorf("%s: status %d: %s", url, resp.StatusCode, body))
		}
		defer resp.Body.Close()
		dec := json.NewDecoder(resp.Body)
		if err := dec.Decode(out); err != nil {
			return fmt.Errorf("decode %s: %w", url, err)
		}
		return nil
	}
	return siferr.New(siferr.NetworkError, url, lastErr)
}

func defaultClient() *http.Client {
	return httpx.SharedClient(30 * time.Second)
}
