package main

import (
	"flag"
	"fmt"
	"strings"

	"github.com/Lutra-Fs/sift/internal/config"
	"github.com/Lutra-Fs/sift/internal/lockfile"
	"github.com/Lutra-Fs/sift/internal/orchestrator"
)

// parseNameAtSource splits a "<name>@<source>" CLI argument at its first
// "@", so a source that itself contains "@" (git:<url>@<ref>) stays
// intact; sift.toml's "<name>@<version>" keys are split at the last "@"
// instead. This is the "what to declare" shorthand used by
// `sift install`/`sift add`.
func parseNameAtSource(spec string) (name, source string) {
	if i := strings.IndexByte(spec, '@'); i > 0 {
		rest := spec[i+1:]
		if strings.ContainsAny(rest, ":/") {
			return spec[:i], rest
		}
	}
	return spec, ""
}

func targetFlags(fs *flag.FlagSet) *stringSliceFlag {
	var targets stringSliceFlag
	fs.Var(&targets, "target", "client id to restrict delivery to (repeatable)")
	return &targets
}

type stringSliceFlag []string

func (s *stringSliceFlag) String() string { return strings.Join(*s, ",") }
func (s *stringSliceFlag) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// cmdMCP dispatches `sift mcp <verb>`.
func cmdMCP(args []string) {
	if len(args) == 0 {
		usageError("usage: sift mcp <add|remove|list> ...")
	}
	verb, rest := args[0], args[1:]
	switch verb {
	case "add", "install":
		addMCP(rest)
	case "remove", "uninstall", "rm":
		removeResource(rest, config.KindMCP)
	case "list", "ls":
		listResources(config.KindMCP)
	default:
		usageError("unknown mcp verb %q", verb)
	}
}

// cmdSkill dispatches `sift skill <verb>`, including the ejection
// lifecycle that has no mcp.<name> equivalent.
func cmdSkill(args []string) {
	if len(args) == 0 {
		usageError("usage: sift skill <add|remove|list|eject|un-eject> ...")
	}
	verb, rest := args[0], args[1:]
	switch verb {
	case "add", "install":
		addSkill(rest)
	case "remove", "uninstall", "rm":
		removeResource(rest, config.KindSkill)
	case "list", "ls":
		listResources(config.KindSkill)
	case "eject":
		ejectSkill(rest)
	case "un-eject", "uneject":
		unEjectSkill(rest)
	default:
		usageError("unknown skill verb %q", verb)
	}
}

func addMCP(args []string) {
	fs := flag.NewFlagSet("mcp add", flag.ExitOnError)
	source := fs.String("source", "", "resource source (registry:/git:/local:/http(s):)")
	runtime := fs.String("runtime", "", "node|bun|uv|docker")
	transport := fs.String("transport", "", "stdio|http")
	url := fs.String("url", "", "server URL (http transport)")
	global := fs.Bool("global", false, "declare in the global layer")
	targets := targetFlags(fs)
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		args = append(append([]string{}, args[1:]...), args[0])
	}
	fs.Parse(args)

	if fs.NArg() != 1 {
		usageError("usage: sift mcp add <name> --source <source> [flags]")
	}
	name, fromSpec := parseNameAtSource(fs.Arg(0))
	if *source == "" {
		*source = fromSpec
	}
	if !isValidSlug(name) {
		usageError("invalid mcp name %q", name)
	}
	if *source == "" {
		usageError("mcp %q: --source is required (or use name@source)", name)
	}

	r := config.Resource{
		Kind: config.KindMCP, Name: name, Source: *source,
		Runtime: config.Runtime(*runtime), Transport: config.Transport(*transport),
		URL: *url, Targets: *targets,
	}
	rt := newRuntime()
	if err := config.UpsertResource(rt.layerPath(*global), r); err != nil {
		fatal(err)
	}
	rt = newRuntime()
	runApply(rt, false)
}

func addSkill(args []string) {
	fs := flag.NewFlagSet("skill add", flag.ExitOnError)
	source := fs.String("source", "", "resource source (registry:/git:/local:/http(s):)")
	global := fs.Bool("global", false, "declare in the global layer")
	targets := targetFlags(fs)
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		args = append(append([]string{}, args[1:]...), args[0])
	}
	fs.Parse(args)

	if fs.NArg() != 1 {
		usageError("usage: sift skill add <name> --source <source> [flags]")
	}
	name, fromSpec := parseNameAtSource(fs.Arg(0))
	if *source == "" {
		*source = fromSpec
	}
	if !isValidSlug(name) {
		usageError("invalid skill name %q", name)
	}
	if *source == "" {
		usageError("skill %q: --source is required (or use name@source)", name)
	}

	r := config.Resource{Kind: config.KindSkill, Name: name, Source: *source, Targets: *targets}
	rt := newRuntime()
	if err := config.UpsertResource(rt.layerPath(*global), r); err != nil {
		fatal(err)
	}
	rt = newRuntime()
	runApply(rt, false)
}

func removeResource(args []string, kind config.Kind) {
	fs := flag.NewFlagSet(kind.String()+" remove", flag.ExitOnError)
	global := fs.Bool("global", false, "remove from the global layer")
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		args = append(append([]string{}, args[1:]...), args[0])
	}
	fs.Parse(args)
	if fs.NArg() != 1 {
		usageError("usage: sift %s remove <name> [--global]", kind)
	}
	name := fs.Arg(0)

	rt := newRuntime()
	path := rt.layerPath(*global)
	if err := config.RemoveResource(path, kind, name); err != nil {
		fatal(err)
	}

	// Reload with the resource gone from its layer, then drop whatever
	// the lockfile still has recorded for it via the same PruneOrphans
	// path `apply --prune` uses.
	rt = newRuntime()
	lf, err := lockfile.Open(rt.lockDir())
	if err != nil {
		fatal(err)
	}
	ops := orchestrator.PruneOrphans(lf, rt.desired, rt.orch.Planner.Env)
	report := &orchestrator.Report{}
	rt.orch.ApplyOps(ops, lf, report)
	if err := lf.Commit(); err != nil {
		fatal(err)
	}
	printReport(report)
	successf("removed %s %q", kind, name)
}

func listResources(kind config.Kind) {
	rt := newRuntime()
	names := make([]string, 0, len(rt.desired.Entries))
	for key := range rt.desired.Entries {
		if key.Kind == kind {
			names = append(names, key.Name)
		}
	}
	if len(names) == 0 {
		infof("no %s resources declared", kind)
		return
	}
	for _, n := range names {
		entry, _ := rt.desired.Get(kind, n)
		fmt.Printf("%s\t%s\t%s\n", padRightANSI(n, 24), entry.Scope, entry.Resource.Source)
	}
}
