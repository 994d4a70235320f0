package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/Lutra-Fs/sift/internal/httpx"
	"github.com/Lutra-Fs/sift/internal/netpolicy"
	"github.com/Lutra-Fs/sift/internal/siferr"
)

// npmPackument is the subset of the npm registry package document the
// resolver needs: the full version->metadata map plus the dist-tags
// pointer to "latest".
type npmPackument struct {
	DistTags map[string]string        `json:"dist-tags"`
	Versions map[string]json.RawMessage `json:"versions"`
}

// resolveNpmVersion resolves an npm/bun MCP source's package name and an
// optional semver constraint to a concrete version string, per spec.md
// §4.3's "resolve semver → version string" rule. An empty constraint
// resolves to the registry's "latest" dist-tag.
func resolveNpmVersion(ctx context.Context, registryBase, pkg, constraint string) (string, error) {
	url := fmt.Sprintf("%s/%s", registryBase, pkg)
	var doc npmPackument
	if err := fetchJSON(ctx, url, &doc); err != nil {
		return "", err
	}
	if constraint == "" {
		if v, ok := doc.DistTags["latest"]; ok && v != "" {
			return v, nil
		}
		return "", siferr.New(siferr.ResolveError, pkg, fmt.Errorf("npm package %s has no latest dist-tag", pkg))
	}
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return "", siferr.New(siferr.ResolveError, pkg, fmt.Errorf("invalid version constraint %q: %w", constraint, err))
	}
	var candidates []*semver.Version
	for raw := range doc.Versions {
		v, err := semver.NewVersion(raw)
		if err != nil {
			continue
		}
		if c.Check(v) {
			candidates = append(candidates, v)
		}
	}
	if len(candidates) == 0 {
		return "", siferr.New(siferr.ResolveError, pkg, fmt.Errorf("no version of %s satisfies %q", pkg, constraint))
	}
	sort.Sort(semver.Collection(candidates))
	return candidates[len(candidates)-1].Original(), nil
}

func fetchJSON(ctx context.Context, url string, out any) error {
	client := httpx.SharedClient(30 * time.Second)
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
			return siferr.New(siferr.NetworkError, url, fmt.Errorf("%s: status %d: %s", url, resp.StatusCode, body))
		}
		defer resp.Body.Close()
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s: %w", url, err)
		}
		return nil
	}
	return siferr.New(siferr.NetworkError, url, lastErr)
}
