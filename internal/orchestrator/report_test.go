package orchestrator

import (
	"errors"
	"testing"

	"github.com/Lutra-Fs/sift/internal/siferr"
)

func TestReportExitCodeSuccess(t *testing.T) {
	r := &Report{}
	if got := r.ExitCode(); got != 0 {
		t.Fatalf("ExitCode = %d, want 0", got)
	}
}

func TestReportExitCodePartialFailure(t *testing.T) {
	r := &Report{}
	r.AddFailure("echo", errors.New("boom"))
	if got := r.ExitCode(); got != 4 {
		t.Fatalf("ExitCode = %d, want 4", got)
	}
	if !r.HasFailures() {
		t.Fatalf("HasFailures should be true")
	}
}

func TestReportExitCodeLockHeld(t *testing.T) {
	r := &Report{Fatal: siferr.New(siferr.LockHeld, "", errors.New("locked"))}
	if got := r.ExitCode(); got != 3 {
		t.Fatalf("ExitCode = %d, want 3", got)
	}
}

func TestReportExitCodeGenericFatal(t *testing.T) {
	r := &Report{Fatal: siferr.New(siferr.ConfigError, "", errors.New("bad config"))}
	if got := r.ExitCode(); got != 1 {
		t.Fatalf("ExitCode = %d, want 1", got)
	}
}
