package main

import (
	"context"
	"flag"
	"os"

	"github.com/Lutra-Fs/sift/internal/lockfile"
	"github.com/Lutra-Fs/sift/internal/orchestrator"
)

// cmdApply reconciles the merged declared state into every eligible
// client config: Plan -> Ownership -> Execute -> Commit (internal/orchestrator),
// the same pipeline every mutating command ends with.
func cmdApply(args []string) {
	fs := flag.NewFlagSet("apply", flag.ExitOnError)
	force := fs.Bool("force", false, "overwrite user-modified managed entries")
	prune := fs.Bool("prune", false, "remove managed entries with no corresponding declaration")
	fs.Parse(args)

	rt := newRuntime()
	rt.orch.Force = *force
	runApply(rt, *prune)
}

// runApply computes prune ops (if requested) from the lockfile's
// pre-reconciliation state, runs the main Plan/Execute/Commit pass, then
// applies pruning in its own commit pass. Separate lock sessions (three
// with --prune) rather than one: Orchestrator.Run always commits and releases at the end, so
// folding extra ops into that same pass would need a second, unlocked
// write against an already-committed document.
func runApply(rt *runtime, prune bool) {
	var pruneOps []orchestrator.Op
	if prune {
		lf, err := lockfile.Open(rt.lockDir())
		if err != nil {
			fatal(err)
		}
		pruneOps = orchestrator.PruneOrphans(lf, rt.desired, rt.orch.Planner.Env)
		if err := lf.Release(); err != nil {
			fatal(err)
		}
	}

	lf, err := lockfile.Open(rt.lockDir())
	if err != nil {
		fatal(err)
	}
	report := rt.orch.Run(context.Background(), rt.desired, lf)

	if len(pruneOps) > 0 && report.Fatal == nil {
		lf2, err := lockfile.Open(rt.lockDir())
		if err != nil {
			fatal(err)
		}
		rt.orch.ApplyOps(pruneOps, lf2, report)
		if err := lf2.Commit(); err != nil {
			report.Fatal = err
		}
	}

	printReport(report)
	os.Exit(report.ExitCode())
}
