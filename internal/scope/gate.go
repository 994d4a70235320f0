// Package scope implements the Scope & Capability Gate: for a given
// (Resource, Scope, Client) triple, decide fail-fast vs. warn-skip and
// downgrade the skill delivery link mode to what the client allows.
// Target-selector matching is grounded on pluginmarket.go's
// ResolveEnableState/matchPolicySelectors wildcard allow/deny logic,
// generalized from "plugin enable policy" to "explicit targets vs.
// implicit all-clients."
package scope

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Lutra-Fs/sift/internal/clients"
	"github.com/Lutra-Fs/sift/internal/config"
	"github.com/Lutra-Fs/sift/internal/gitops"
	"github.com/Lutra-Fs/sift/internal/siferr"
)

// Decision is the gate's verdict for one (resource, scope, client) triple.
type Decision struct {
	Proceed  bool
	LinkMode clients.LinkMode // only meaningful for skill delivery
	Warning  string           // non-empty when Proceed is true but downgraded
}

// Gate evaluates scope and capability rules ahead of Phase A plan
// construction.
type Gate struct {
	// LinkModePolicy is the global maximum link mode from configuration;
	// defaults to Symlink (the top of the ladder) when unset.
	LinkModePolicy clients.LinkMode
}

// MatchesTarget reports whether clientID is named by the resource's
// explicit targets/ignore_targets, per the wildcard selector rule
// ("<namespace>/*" matches any client id with that prefix).
func MatchesTarget(selectors []string, clientID string) bool {
	clientID = strings.TrimSpace(clientID)
	for _, selector := range selectors {
		selector = strings.TrimSpace(selector)
		if selector == "" {
			continue
		}
		if selector == clientID {
			return true
		}
		if strings.HasSuffix(selector, "/*") {
			namespace := strings.TrimSuffix(selector, "/*")
			if namespace != "" && strings.HasPrefix(clientID, namespace+"/") {
				return true
			}
		}
	}
	return false
}

// Eligible reports whether clientID is in scope for r's target filter.
func Eligible(r config.Resource, clientID string) bool {
	if len(r.Targets) > 0 {
		return MatchesTarget(r.Targets, clientID)
	}
	if len(r.IgnoreTargets) > 0 {
		return !MatchesTarget(r.IgnoreTargets, clientID)
	}
	return true
}

// CheckScope implements §4.6's fail-fast/warn-skip rule: explicit targets
// naming a client that doesn't support the scope is fatal; implicit
// (all-clients) resources skip that client with a warning instead.
func (g *Gate) CheckScope(r config.Resource, s config.Scope, adapter clients.Adapter) (Decision, error) {
	caps := adapter.Capabilities()
	if caps.SupportsScope(s) {
		return Decision{Proceed: true}, nil
	}
	if r.HasExplicitTargets() {
		return Decision{}, siferr.New(siferr.ScopeUnsupported, adapter.ID(),
			fmt.Errorf("%s does not support %s scope", adapter.ID(), s))
	}
	return Decision{Proceed: false, Warning: fmt.Sprintf("%s: %s scope unsupported, skipping", adapter.ID(), s)}, nil
}

// CheckTransport enforces the MCP transport compatibility rule.
func (g *Gate) CheckTransport(r config.Resource, adapter clients.Adapter) error {
	caps := adapter.Capabilities()
	if !caps.SupportsTransport(r.Transport) {
		return siferr.New(siferr.CapabilityError, adapter.ID(),
			fmt.Errorf("%s does not support transport %q", adapter.ID(), r.Transport))
	}
	if r.Transport == config.TransportHTTP && len(r.Headers) > 0 && !caps.AllowsCustomHeaders {
		return siferr.New(siferr.CapabilityError, adapter.ID(),
			fmt.Errorf("%s does not support custom headers", adapter.ID()))
	}
	return nil
}

// CheckGitWorkingTree enforces "Skill ProjectLocal scope is accepted only
// inside a Git working tree" and appends the delivered path to
// .git/info/exclude idempotently (Open Question 3: see DESIGN.md).
func (g *Gate) CheckGitWorkingTree(projectDir, deliveredRelPath string) error {
	root, err := gitops.GitRoot(projectDir)
	if err != nil {
		return siferr.New(siferr.ScopeUnsupported, projectDir,
			fmt.Errorf("project-local skill scope requires a git working tree: %w", err))
	}
	return appendExcludeIdempotent(filepath.Join(root, ".git", "info", "exclude"), deliveredRelPath)
}

func appendExcludeIdempotent(excludePath, line string) error {
	line = strings.TrimRight(line, "\n")
	if line == "" {
		return fmt.Errorf("exclude line required")
	}
	existing, err := os.ReadFile(excludePath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("read %s: %w", excludePath, err)
	}
	for _, l := range strings.Split(string(existing), "\n") {
		if strings.TrimSpace(l) == line {
			return nil
		}
	}
	content := string(existing)
	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	content += line + "\n"

	if err := os.MkdirAll(filepath.Dir(excludePath), 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(excludePath), err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(excludePath), ".sift-exclude-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", excludePath, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), excludePath)
}

// DowngradeLinkMode implements the Symlink > Hardlink > Copy ladder: the
// effective mode is the stricter (lower) of the global policy and what the
// client/platform allows. attemptFailed signals a prior attempt at
// requested failed at runtime (e.g. symlink creation denied), forcing a
// further downgrade.
func DowngradeLinkMode(policy clients.LinkMode, clientAllowsSymlink bool, attemptFailed bool) (clients.LinkMode, bool) {
	effective := policy
	downgraded := false
	if effective == clients.Symlink && !clientAllowsSymlink {
		effective = clients.Hardlink
		downgraded = true
	}
	if attemptFailed && effective < clients.Copy {
		effective++
		downgraded = true
	}
	return effective, downgraded
}
