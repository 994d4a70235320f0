package main

import (
	"flag"
	"strings"
	"time"

	"github.com/Lutra-Fs/sift/internal/lockfile"
	"github.com/Lutra-Fs/sift/internal/orchestrator"
)

func ejectSkill(args []string) {
	fs := flag.NewFlagSet("skill eject", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() != 1 {
		usageError("usage: sift skill eject <name>")
	}
	name := fs.Arg(0)

	rt := newRuntime()
	lf, err := lockfile.Open(rt.lockDir())
	if err != nil {
		fatal(err)
	}
	if err := orchestrator.Eject(lf, rt.paths.ProjectFile(), rt.paths.ProjectDir, name, rt.desired); err != nil {
		_ = lf.Release()
		fatal(err)
	}
	if err := lf.Commit(); err != nil {
		fatal(err)
	}
	successf("ejected skill %q into ./skills/%s", name, name)
}

func unEjectSkill(args []string) {
	fs := flag.NewFlagSet("skill un-eject", flag.ExitOnError)
	source := fs.String("source", "", "original source to restore (registry:/git:/http(s):)")
	version := fs.String("version", "", "original declared version")
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		args = append(append([]string{}, args[1:]...), args[0])
	}
	fs.Parse(args)
	if fs.NArg() != 1 {
		usageError("usage: sift skill un-eject <name> --source <source> [--version <v>]")
	}
	name := fs.Arg(0)
	if *source == "" {
		usageError("skill %q: --source is required to restore cache-managed delivery", name)
	}

	rt := newRuntime()
	timestamp := time.Now().UTC().Format("20060102T150405Z")
	if err := orchestrator.UnEject(rt.paths.ProjectFile(), rt.paths.ProjectDir, name, *source, *version, timestamp); err != nil {
		fatal(err)
	}

	rt = newRuntime()
	runApply(rt, false)
}
