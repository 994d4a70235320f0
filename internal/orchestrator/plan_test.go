package orchestrator

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Lutra-Fs/sift/internal/cache"
	"github.com/Lutra-Fs/sift/internal/clients"
	"github.com/Lutra-Fs/sift/internal/config"
	"github.com/Lutra-Fs/sift/internal/registry"
	"github.com/Lutra-Fs/sift/internal/resolver"
	"github.com/Lutra-Fs/sift/internal/scope"
)

func newTestPlanner(t *testing.T) *Planner {
	t.Helper()
	store := cache.New(t.TempDir())
	res := resolver.New(registry.NewSet(), store)
	gate := &scope.Gate{LinkModePolicy: clients.Symlink}
	return NewPlanner(res, store, gate)
}

func TestPlanSkillFansOutToFilesystemDeliveryClients(t *testing.T) {
	skillDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(skillDir, "SKILL.md"), []byte("# demo"), 0o644); err != nil {
		t.Fatal(err)
	}

	p := newTestPlanner(t)
	entry := config.Entry{Scope: config.Global, Resource: config.Resource{
		Kind: config.KindSkill, Name: "demo", Source: "local:" + skillDir,
	}}
	plan, err := p.Plan(context.Background(), config.ResourceKey{Kind: config.KindSkill, Name: "demo"}, entry)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	gotClients := map[string]bool{}
	for _, op := range plan.Ops {
		if op.Kind != OpEnsureSkillDelivery {
			t.Fatalf("expected only skill delivery ops, got kind %d", op.Kind)
		}
		gotClients[op.ClientID] = true
		if op.CachePath != skillDir {
			t.Fatalf("CachePath = %q, want %q", op.CachePath, skillDir)
		}
	}
	// vscode and codex have DeliveryNone and must not appear.
	for _, unsupported := range []string{"vscode", "codex"} {
		if gotClients[unsupported] {
			t.Fatalf("%s should not receive skill delivery ops", unsupported)
		}
	}
	for _, supported := range []string{"claude-desktop", "claude-code", "gemini-cli"} {
		if !gotClients[supported] {
			t.Fatalf("expected %s to receive a skill delivery op", supported)
		}
	}
}

func TestPlanRespectsExplicitTargets(t *testing.T) {
	p := newTestPlanner(t)
	p.ClientIDs = []string{"claude-desktop", "claude-code"}
	entry := config.Entry{Scope: config.Global, Resource: config.Resource{
		Kind: config.KindSkill, Name: "echo", Source: "local:" + t.TempDir(),
		Targets: []string{"claude-code"},
	}}

	plan, err := p.Plan(context.Background(), config.ResourceKey{Kind: config.KindSkill, Name: "echo"}, entry)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	for _, op := range plan.Ops {
		if op.ClientID != "claude-code" {
			t.Fatalf("expected only claude-code, got op for %s", op.ClientID)
		}
	}
	if len(plan.Ops) != 1 {
		t.Fatalf("expected exactly 1 op, got %d", len(plan.Ops))
	}
}

func TestPlanWarnsAndSkipsUnsupportedScopeWithoutExplicitTargets(t *testing.T) {
	p := newTestPlanner(t)
	p.ClientIDs = []string{"codex"} // Global-only
	entry := config.Entry{Scope: config.ProjectShared, Resource: config.Resource{
		Kind: config.KindSkill, Name: "demo", Source: "local:" + t.TempDir(),
	}}
	plan, err := p.Plan(context.Background(), config.ResourceKey{Kind: config.KindSkill, Name: "demo"}, entry)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(plan.Ops) != 0 {
		t.Fatalf("expected no ops for unsupported scope, got %d", len(plan.Ops))
	}
	if len(plan.Warnings) != 1 {
		t.Fatalf("expected exactly one warning, got %d", len(plan.Warnings))
	}
}

// TestPlanProjectLocalSkillRequiresGitWorkingTree exercises the §4.6 gate
// wiring: planning a ProjectLocal skill outside a git working tree must
// fail instead of silently emitting a delivery op, and succeed (appending
// .git/info/exclude) inside one.
func TestPlanProjectLocalSkillRequiresGitWorkingTree(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	skillDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(skillDir, "SKILL.md"), []byte("# demo"), 0o644); err != nil {
		t.Fatal(err)
	}
	entry := config.Entry{Scope: config.ProjectLocal, Resource: config.Resource{
		Kind: config.KindSkill, Name: "demo", Source: "local:" + skillDir,
	}}

	projectDir := t.TempDir()
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(projectDir); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(cwd)

	p := newTestPlanner(t)
	p.ClientIDs = []string{"claude-code"}
	if _, err := p.Plan(context.Background(), config.ResourceKey{Kind: config.KindSkill, Name: "demo"}, entry); err == nil {
		t.Fatalf("expected error planning a ProjectLocal skill outside a git working tree")
	}

	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = projectDir
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v: %s", args, err, out)
		}
	}
	run("init")

	if _, err := p.Plan(context.Background(), config.ResourceKey{Kind: config.KindSkill, Name: "demo"}, entry); err != nil {
		t.Fatalf("expected plan to succeed inside a git working tree: %v", err)
	}
	exclude, err := os.ReadFile(filepath.Join(projectDir, ".git", "info", "exclude"))
	if err != nil {
		t.Fatalf("expected .git/info/exclude to be written: %v", err)
	}
	wantLine := filepath.Join(".claude", "skills", "demo")
	found := false
	for _, l := range strings.Split(string(exclude), "\n") {
		if l == wantLine {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf(".git/info/exclude = %q, want an entry for %q", exclude, wantLine)
	}
}
