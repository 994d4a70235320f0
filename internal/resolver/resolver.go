package resolver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Lutra-Fs/sift/internal/cache"
	"github.com/Lutra-Fs/sift/internal/config"
	"github.com/Lutra-Fs/sift/internal/gitops"
	"github.com/Lutra-Fs/sift/internal/registry"
	"github.com/Lutra-Fs/sift/internal/siferr"
)

const defaultNpmRegistry = "https://registry.npmjs.org"

// Resolver turns a Resource's declared source into a Resolved reference,
// consulting the registry set for registry: sources and the git/docker
// wrappers for the rest.
type Resolver struct {
	Registries   *registry.Set
	Cache        *cache.Store
	NpmRegistry  string
	DockerDigest func(ctx context.Context, imageRef string) (string, error)
}

func New(registries *registry.Set, store *cache.Store) *Resolver {
	return &Resolver{Registries: registries, Cache: store, NpmRegistry: defaultNpmRegistry}
}

// Resolve dispatches on the resource's declared source scheme, per the
// source-kind table in spec.md §4.3. It takes no install/upgrade flag:
// the resolver has no cached state of its own, and the planner calls
// Resolve for every declared resource on every run without consulting
// the lockfile, so an install run does not keep an earlier resolution
// frozen. An MCP source without a scheme (an npm package name) is
// resolved through its runtime.
func (r *Resolver) Resolve(ctx context.Context, res config.Resource) (Resolved, error) {
	parsed, err := ParseSource(res.Source)
	if err != nil {
		if res.Kind == config.KindMCP && strings.TrimSpace(res.Source) != "" {
			return r.resolveRuntimeSource(ctx, res)
		}
		return Resolved{}, siferr.New(siferr.ResolveError, res.Name, err)
	}

	switch parsed.Scheme {
	case "registry":
		return r.resolveRegistry(ctx, res, parsed)
	case "git":
		return r.resolveGit(ctx, res, parsed)
	case "local":
		return r.resolveLocal(parsed)
	case "http", "https":
		return r.resolveHTTP(res, parsed)
	default:
		if res.Kind == config.KindMCP {
			return r.resolveRuntimeSource(ctx, res)
		}
		return Resolved{}, siferr.New(siferr.ResolveError, res.Name, fmt.Errorf("unrecognized source scheme %q", parsed.Scheme))
	}
}

func (r *Resolver) resolveRuntimeSource(ctx context.Context, res config.Resource) (Resolved, error) {
	switch res.Runtime {
	case config.RuntimeNode, config.RuntimeBun:
		return r.resolveNpm(ctx, res)
	case config.RuntimeDocker:
		return r.resolveDocker(ctx, res)
	default:
		return Resolved{}, siferr.New(siferr.ResolveError, res.Name, fmt.Errorf("cannot resolve runtime %q without a recognized source scheme", res.Runtime))
	}
}

// resolveRegistry handles "registry:<name>" sources for both Skill (git-
// or http-tarball-backed) and MCP (npm/docker-backed) packages.
func (r *Resolver) resolveRegistry(ctx context.Context, res config.Resource, parsed ParsedSource) (Resolved, error) {
	namespace, name, qualified := splitQualifiedPackage(parsed.Rest)
	version := versionConstraint(res.DeclaredVersion)

	manifest, err := r.Registries.Resolve(ctx, res.Kind, namespace, name, version, qualified)
	if err != nil {
		return Resolved{}, err
	}

	switch {
	case manifest.TreeHash != "" && manifest.DownloadURL != "":
		// Native registries that already know the tree hash skip the
		// fetch-to-verify round trip here; the CachePath is the expected
		// final location and DownloadURL lets the orchestrator fetch it
		// lazily on a cache miss, using TreeHash as the expected value.
		version := manifestVersion(manifest)
		return Resolved{
			SourceKind: SourceRegistryHTTP, TreeHash: manifest.TreeHash, URL: manifest.DownloadURL,
			CachePath: r.Cache.Path("sift", namespace, name, version), DownloadURL: manifest.DownloadURL, Lockable: true,
		}, nil
	case manifest.ImageRef != "":
		digest, err := r.dockerDigest(ctx, manifest.ImageRef)
		if err != nil {
			return Resolved{}, err
		}
		return Resolved{SourceKind: SourceDocker, ImageDigest: digest, Lockable: true}, nil
	case manifest.DownloadURL != "" && strings.HasSuffix(manifest.DownloadURL, ".git"):
		sha, err := gitops.ResolveRef(ctx, manifest.DownloadURL, "")
		if err != nil {
			return Resolved{}, siferr.New(siferr.ResolveError, res.Name, err)
		}
		cachePath, hash, err := r.fetchAndCommitGit(ctx, manifest.DownloadURL, sha, "registry-git", namespace, name)
		if err != nil {
			return Resolved{}, err
		}
		return Resolved{SourceKind: SourceRegistryGit, CommitSHA: sha, TreeHash: hash, CachePath: cachePath, Lockable: true}, nil
	case manifest.DownloadURL != "":
		hash, cachePath, err := r.fetchAndCommit(parsed.Rest, namespace, name, manifest)
		if err != nil {
			return Resolved{}, err
		}
		return Resolved{SourceKind: SourceRegistryHTTP, TreeHash: hash, URL: manifest.DownloadURL, CachePath: cachePath, Lockable: true}, nil
	default:
		return Resolved{}, siferr.New(siferr.ResolveError, res.Name, fmt.Errorf("registry manifest for %s/%s has no resolvable artifact location", namespace, name))
	}
}

func manifestVersion(manifest registry.PackageManifest) string {
	if len(manifest.Versions) > 0 {
		return manifest.Versions[0]
	}
	return "latest"
}

func (r *Resolver) resolveGit(ctx context.Context, res config.Resource, parsed ParsedSource) (Resolved, error) {
	sha, err := gitops.ResolveRef(ctx, parsed.Rest, parsed.Ref)
	if err != nil {
		return Resolved{}, siferr.New(siferr.ResolveError, parsed.Rest, err)
	}
	if res.Kind != config.KindSkill {
		return Resolved{SourceKind: SourceGit, CommitSHA: sha, Lockable: true}, nil
	}
	cachePath, hash, err := r.fetchAndCommitGit(ctx, parsed.Rest, sha, "git", sanitizeForPath(parsed.Rest), res.Name)
	if err != nil {
		return Resolved{}, err
	}
	return Resolved{SourceKind: SourceGit, CommitSHA: sha, TreeHash: hash, CachePath: cachePath, Lockable: true}, nil
}

func (r *Resolver) resolveLocal(parsed ParsedSource) (Resolved, error) {
	abs, err := filepath.Abs(parsed.Rest)
	if err != nil {
		return Resolved{}, siferr.New(siferr.ResolveError, parsed.Rest, err)
	}
	hash, err := cache.TreeHash(abs)
	if err != nil {
		return Resolved{}, siferr.New(siferr.IoError, abs, err)
	}
	return Resolved{SourceKind: SourceLocal, LocalPath: abs, CachePath: abs, TreeHash: hash, Lockable: true}, nil
}

func (r *Resolver) resolveHTTP(res config.Resource, parsed ParsedSource) (Resolved, error) {
	url := parsed.Scheme + ":" + parsed.Rest
	if res.Kind == config.KindMCP {
		return Resolved{SourceKind: SourceHTTPEndpoint, URL: url, Lockable: false}, nil
	}
	hash, cachePath, err := r.fetchAndCommit(url, "raw", res.Name, registry.PackageManifest{DownloadURL: url})
	if err != nil {
		return Resolved{}, err
	}
	return Resolved{SourceKind: SourceRegistryHTTP, TreeHash: hash, URL: url, CachePath: cachePath, Lockable: true}, nil
}

func (r *Resolver) resolveNpm(ctx context.Context, res config.Resource) (Resolved, error) {
	pkg := strings.TrimSpace(res.Source)
	if pkg == "" || pkg == string(res.Runtime) {
		return Resolved{}, siferr.New(siferr.ResolveError, res.Name, fmt.Errorf("mcp %q: npm/bun runtime requires a package name source", res.Name))
	}
	base := r.NpmRegistry
	if base == "" {
		base = defaultNpmRegistry
	}
	version, err := resolveNpmVersion(ctx, base, pkg, versionConstraint(res.DeclaredVersion))
	if err != nil {
		return Resolved{}, err
	}
	// npm/bun is only "partial (snapshot)" lockable per spec.md §4.3: the
	// resolved version string is recorded, but re-installs of the same
	// constraint are not guaranteed byte-identical the way a commit SHA is.
	return Resolved{SourceKind: SourceNpmBun, Version: version, Lockable: true}, nil
}

func (r *Resolver) resolveDocker(ctx context.Context, res config.Resource) (Resolved, error) {
	digest, err := r.dockerDigest(ctx, res.Source)
	if err != nil {
		return Resolved{}, err
	}
	return Resolved{SourceKind: SourceDocker, ImageDigest: digest, Lockable: true}, nil
}

func (r *Resolver) dockerDigest(ctx context.Context, imageRef string) (string, error) {
	if r.DockerDigest == nil {
		return "", siferr.New(siferr.ResolveError, imageRef, fmt.Errorf("docker digest resolution not configured"))
	}
	digest, err := r.DockerDigest(ctx, imageRef)
	if err != nil {
		return "", siferr.New(siferr.ResolveError, imageRef, err)
	}
	return digest, nil
}

// fetchAndCommit downloads an http(s) artifact into a staging directory,
// computes its tree hash, and commits it straight into the partitioned
// cache so a resolve alone is enough to make the artifact available for
// Phase C delivery without a second fetch. Returns the tree hash and the
// artifact's final on-disk cache path.
func (r *Resolver) fetchAndCommit(url, namespace, name string, manifest registry.PackageManifest) (treeHash, cachePath string, err error) {
	downloadURL := manifest.DownloadURL
	if downloadURL == "" {
		downloadURL = url
	}
	staged, hash, err := r.Cache.FetchAndStage(downloadURL)
	if err != nil {
		return "", "", siferr.New(siferr.IoError, downloadURL, err)
	}
	version := manifestVersion(manifest)
	dest, err := r.Cache.CommitStaged(staged, "http", namespace, name, version)
	if err != nil {
		return "", "", siferr.New(siferr.IoError, downloadURL, err)
	}
	return hash, dest, nil
}

// fetchAndCommitGit shallow-clones remoteURL at commitSHA into a staging
// directory and commits it into the cache's <partition>/<author>/<name>/
// <commit> slot, so git-backed skill sources get the same cache-backed
// delivery path as registry/http sources.
func (r *Resolver) fetchAndCommitGit(ctx context.Context, remoteURL, commitSHA, partition, author, name string) (cachePath, treeHash string, err error) {
	staging, err := os.MkdirTemp("", "sift-git-clone-*")
	if err != nil {
		return "", "", siferr.New(siferr.IoError, remoteURL, fmt.Errorf("create clone temp dir: %w", err))
	}
	defer os.RemoveAll(staging)
	cloneDir := filepath.Join(staging, "repo")
	if err := gitops.ShallowClone(ctx, remoteURL, commitSHA, cloneDir); err != nil {
		return "", "", siferr.New(siferr.NetworkError, remoteURL, err)
	}
	staged, hash, err := r.Cache.FetchAndStage(cloneDir)
	if err != nil {
		return "", "", siferr.New(siferr.IoError, remoteURL, err)
	}
	dest, err := r.Cache.CommitStaged(staged, partition, author, name, commitSHA)
	if err != nil {
		return "", "", siferr.New(siferr.IoError, remoteURL, err)
	}
	return dest, hash, nil
}

// sanitizeForPath collapses a URL (or other free-form string) into a safe
// single path segment for cache partitioning.
func sanitizeForPath(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return b.String()
}

// splitQualifiedPackage parses "registry:<rest>" sources. The unqualified
// form is "<namespace>/<name>"; the disambiguating form from spec.md
// §4.2 is "<registry-name>/<namespace>/<name>" (three segments).
func splitQualifiedPackage(rest string) (namespace, name, qualifiedRegistry string) {
	parts := strings.Split(rest, "/")
	switch len(parts) {
	case 3:
		return parts[1], parts[2], parts[0]
	case 2:
		return parts[0], parts[1], ""
	default:
		return "", rest, ""
	}
}

func versionConstraint(declared string) string {
	if declared == "" {
		return ""
	}
	if _, v, ok := strings.Cut(declared, "@"); ok {
		return v
	}
	return declared
}
