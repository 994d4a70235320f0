package main

import (
	"flag"
	"fmt"
	"os/exec"

	"github.com/Lutra-Fs/sift/internal/clients"
	"github.com/Lutra-Fs/sift/internal/config"
	"github.com/Lutra-Fs/sift/internal/lockfile"
)

// cmdStatus reports declared resources alongside lockfile orphans, per
// spec.md §4.8: orphan detection is a set difference between lockfile
// rows and the current DesiredState.
func cmdStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	fs.Parse(args)

	rt := newRuntime()
	lf, err := lockfile.Open(rt.lockDir())
	if err != nil {
		fatal(err)
	}
	defer func() { _ = lf.Release() }()

	if len(rt.desired.Entries) == 0 {
		infof("no resources declared")
	}
	for key, entry := range rt.desired.Entries {
		fmt.Printf("%s\t%s\t%s\t%s\n", padRightANSI(key.Kind.String(), 6), padRightANSI(key.Name, 24), entry.Scope, entry.Resource.Source)
	}

	orphanConfigs := lf.OrphanedConfigs(rt.desired)
	orphanSkills := lf.OrphanedSkills(rt.desired)
	if len(orphanConfigs) == 0 && len(orphanSkills) == 0 {
		return
	}
	for _, o := range orphanConfigs {
		warnf("orphaned: %s %s@%s (%s) — run `sift apply --prune` to remove", o.Kind, o.Name, o.ClientID, o.Scope)
	}
	for _, o := range orphanSkills {
		warnf("orphaned: skill %s@%s (%s) — run `sift apply --prune` to remove", o.Name, o.ClientID, o.Scope)
	}
}

// cmdList implements the top-level `sift list|ls`, combining mcp and
// skill resources the way `sift mcp list`/`sift skill list` do
// individually.
func cmdList(args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	fs.Parse(args)
	listResources(config.KindMCP)
	listResources(config.KindSkill)
}

// cmdDoctor runs cheap, local diagnostics: git/docker/runtime binary
// presence and which clients are actually installed on this machine.
// Deep diagnostics (registry reachability, lockfile integrity repair) are
// the CLI/TUI front-end's job per spec.md §1; this is the minimal
// orchestrator-adjacent check that belongs in the core binary.
func cmdDoctor(args []string) {
	fs := flag.NewFlagSet("doctor", flag.ExitOnError)
	fs.Parse(args)

	for _, bin := range []string{"git", "docker", "node", "bun", "npx", "bunx", "uv"} {
		if path, err := exec.LookPath(bin); err == nil {
			successf("%s: %s", bin, path)
		} else {
			warnf("%s: not found on PATH", bin)
		}
	}

	for id, adapter := range clients.Registry {
		caps := adapter.Capabilities()
		scopes := make([]string, 0, 3)
		for _, s := range []config.Scope{config.Global, config.ProjectShared, config.ProjectLocal} {
			if caps.SupportsScope(s) {
				scopes = append(scopes, s.String())
			}
		}
		infof("%s: scopes=%v delivery=%v symlink=%v", id, scopes, caps.SkillDelivery, caps.SymlinkAllowed)
	}
}

// cmdRegistry implements `sift registry <verb>`: listing the two registry
// adapter types Sift ships (native "sift" and "claude-marketplace").
// newRuntime adds no registry to the resolver's registry set, so neither
// adapter is consulted when a registry: source is resolved. `mcp add`/
// `skill add` take no --registry flag; a registry can only be named
// inside the source, as registry:<registry-name>/<namespace>/<name>.
func cmdRegistry(args []string) {
	if len(args) == 0 {
		usageError("usage: sift registry <list>")
	}
	switch args[0] {
	case "list", "ls":
		infof("sift: native registry adapter (rich manifest schema)")
		infof("claude-marketplace: marketplace.json adapter (no historical versions)")
	default:
		usageError("unknown registry verb %q", args[0])
	}
}
