package main

import (
	"flag"

	"github.com/Lutra-Fs/sift/internal/config"
)

// cmdInstall implements the top-level `sift install|add <mcp|skill> <name>@<source>`
// shorthand, dispatching to the same add* paths as `sift mcp add`/`sift skill add`.
func cmdInstall(args []string) {
	kind, rest := popKindArg(args)
	switch kind {
	case config.KindMCP:
		addMCP(rest)
	case config.KindSkill:
		addSkill(rest)
	}
}

// cmdUninstall implements `sift uninstall|rm <mcp|skill> <name>`.
func cmdUninstall(args []string) {
	kind, rest := popKindArg(args)
	removeResource(rest, kind)
}

// cmdUpgrade re-resolves every declared resource and re-applies: for
// unconstrained sources this naturally picks up a newer registry
// manifest or git HEAD, since the resolver never caches resolution
// decisions across invocations (only the fetched content is cached).
// Version-constrained resources stay pinned, matching semver constraint
// resolution in C3.
func cmdUpgrade(args []string) {
	fs := flag.NewFlagSet("upgrade", flag.ExitOnError)
	fs.Parse(args)
	rt := newRuntime()
	rt.orch.Force = true
	runApply(rt, false)
}

// popKindArg reads the required leading "mcp"|"skill" positional arg
// shared by the install/uninstall shorthands.
func popKindArg(args []string) (config.Kind, []string) {
	if len(args) == 0 {
		usageError("usage: sift install|uninstall <mcp|skill> <name> [flags]")
	}
	switch args[0] {
	case "mcp":
		return config.KindMCP, args[1:]
	case "skill":
		return config.KindSkill, args[1:]
	default:
		usageError("unknown resource kind %q (want mcp or skill)", args[0])
	}
	panic("unreachable")
}
