// Package resolver turns a declared source (registry/git/local/npm/bun/
// docker/http) plus an optional version constraint into a concrete,
// lockable Resolved reference, per the source-kind table in SPEC_FULL.md
// §4.3.
package resolver

// SourceKind identifies which resolution rule applies to a Resolved.
type SourceKind int

const (
	SourceUnknown SourceKind = iota
	SourceRegistryGit
	SourceRegistryHTTP
	SourceGit
	SourceLocal
	SourceNpmBun
	SourceDocker
	SourceHTTPEndpoint
)

// Resolved is the resolver's output for one resource, shaped exactly per
// spec.md §3's "Resolved" record: a different subset of fields is
// meaningful depending on SourceKind.
type Resolved struct {
	SourceKind SourceKind

	// Git/local skill sources.
	CommitSHA string
	TreeHash  string
	LocalPath string // canonicalized absolute path, Local sources only

	// Docker MCP.
	ImageDigest string

	// npm/bun MCP.
	Version string

	// HTTP MCP: no resolution, the URL is used as-is.
	URL string

	// CachePath is where a skill's content lives on disk once cached —
	// the symlink/hardlink/copy source for Phase C skill delivery.
	// Populated for every Lockable Skill resolution; empty for MCP
	// resources, which have no filesystem delivery step of their own.
	CachePath string

	// DownloadURL, when set alongside a CachePath that may not yet exist
	// on disk, lets the orchestrator fetch the artifact lazily on a cache
	// miss instead of the resolver always paying the fetch cost up front.
	DownloadURL string

	// Lockable reports whether this Resolved can be frozen into the
	// lockfile (false for floating HTTP endpoints).
	Lockable bool
}

// Ref renders a short human-readable identifier for status/list output.
func (r Resolved) Ref() string {
	switch r.SourceKind {
	case SourceGit, SourceRegistryGit:
		return r.CommitSHA
	case SourceDocker:
		return r.ImageDigest
	case SourceNpmBun:
		return r.Version
	case SourceLocal:
		return r.TreeHash
	case SourceRegistryHTTP:
		return r.TreeHash
	default:
		return r.URL
	}
}
