package orchestrator

import "github.com/Lutra-Fs/sift/internal/siferr"

// ResourceOutcome records what happened to one resource during a command,
// for A1's exit-code selection (spec.md §6: 0 success, 1 generic error,
// 2 bad usage, 3 lock held, 4 partial failure).
type ResourceOutcome struct {
	Name    string
	Err     error
	Skipped bool
	Warning string
}

// Report aggregates per-resource outcomes from one orchestrator run,
// implementing "any single resource's failure is captured and reported;
// the orchestrator continues with remaining resources (best-effort)
// unless the failure is a lockfile write error (fatal)."
type Report struct {
	Outcomes []ResourceOutcome
	Warnings []PlanWarning
	Fatal    error // set only for command-level aborts (ConfigError, LockHeld)
}

func (r *Report) AddFailure(name string, err error) {
	r.Outcomes = append(r.Outcomes, ResourceOutcome{Name: name, Err: err})
}

func (r *Report) AddWarning(w PlanWarning) {
	r.Warnings = append(r.Warnings, w)
}

// HasFailures reports whether any resource failed.
func (r *Report) HasFailures() bool {
	for _, o := range r.Outcomes {
		if o.Err != nil {
			return true
		}
	}
	return false
}

// ExitCode maps the report to spec.md §6's exit code scheme.
func (r *Report) ExitCode() int {
	if r.Fatal != nil {
		if sifErr, ok := r.Fatal.(*siferr.Error); ok && sifErr.Kind == siferr.LockHeld {
			return 3
		}
		return 1
	}
	if r.HasFailures() {
		return 4
	}
	return 0
}
