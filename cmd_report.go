package main

import "github.com/Lutra-Fs/sift/internal/orchestrator"

// printReport renders an orchestrator Report the way the styling helpers
// in util.go render any other command output: one line per outcome,
// colorized by severity.
func printReport(report *orchestrator.Report) {
	if report.Fatal != nil {
		fatal(report.Fatal)
		return
	}
	for _, w := range report.Warnings {
		warnf("%s: %s", w.Resource, w.Message)
	}
	failed := 0
	for _, o := range report.Outcomes {
		if o.Err != nil {
			warnf("%s: %v", o.Name, o.Err)
			failed++
		}
	}
	if failed == 0 {
		successf("applied desired state (%d warning(s))", len(report.Warnings))
		return
	}
	warnf("%d resource(s) failed", failed)
}
