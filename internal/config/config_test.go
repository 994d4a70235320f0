package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestParseScopeRoundTripsWithString(t *testing.T) {
	for _, s := range []Scope{Global, ProjectShared, ProjectLocal} {
		parsed, err := ParseScope(s.String())
		if err != nil {
			t.Fatalf("ParseScope(%q): %v", s.String(), err)
		}
		if parsed != s {
			t.Fatalf("ParseScope(%q) = %v, want %v", s.String(), parsed, s)
		}
	}
	if _, err := ParseScope("bogus"); err == nil {
		t.Fatalf("expected error for unknown scope string")
	}
}

func TestLoadMergesLayersDeterministically(t *testing.T) {
	globalDir := t.TempDir()
	projectDir := t.TempDir()

	writeFile(t, filepath.Join(globalDir, "sift.toml"), `
[mcp.echo]
source = "registry:echo"
runtime = "node"
targets = ["claude-desktop"]

[mcp.echo.env]
LOG_LEVEL = "info"
`)
	writeFile(t, filepath.Join(projectDir, "sift.toml"), `
[mcp.echo.env]
LOG_LEVEL = "debug"
EXTRA = "1"
`)

	paths := Paths{GlobalDir: globalDir, ProjectDir: projectDir}

	state1, _, err := Load(paths)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	state2, _, err := Load(paths)
	if err != nil {
		t.Fatalf("Load (second): %v", err)
	}

	entry1, ok := state1.Get(KindMCP, "echo")
	if !ok {
		t.Fatalf("expected echo resource")
	}
	if entry1.Resource.Env["LOG_LEVEL"] != "debug" {
		t.Fatalf("expected project layer to override LOG_LEVEL, got %q", entry1.Resource.Env["LOG_LEVEL"])
	}
	if entry1.Resource.Env["EXTRA"] != "1" {
		t.Fatalf("expected deep-merged EXTRA key to survive")
	}
	if entry1.Resource.Runtime != RuntimeNode {
		t.Fatalf("expected whole-value field (runtime) preserved from global layer")
	}

	entry2, _ := state2.Get(KindMCP, "echo")
	if entry1.Resource.Env["LOG_LEVEL"] != entry2.Resource.Env["LOG_LEVEL"] {
		t.Fatalf("merge is not deterministic across identical loads")
	}
}

func TestValidateRejectsConflictingTargets(t *testing.T) {
	r := Resource{
		Kind:      KindMCP,
		Name:      "x",
		Source:    "registry:x",
		Transport: TransportStdio,
		Targets:   []string{"a"},
		IgnoreTargets: []string{"b"},
	}
	if err := r.Validate(); err == nil {
		t.Fatalf("expected error for mutually exclusive targets/ignore_targets")
	}
}

func TestValidateRejectsBadTransport(t *testing.T) {
	r := Resource{Kind: KindMCP, Name: "x", Source: "registry:x", Transport: "sse"}
	if err := r.Validate(); err == nil {
		t.Fatalf("expected error for invalid transport")
	}
}

func TestMergeListFieldsReplaceNotUnion(t *testing.T) {
	base := NewDesiredState()
	base.Set(ResourceKey{Kind: KindMCP, Name: "x"}, Entry{
		Scope: Global,
		Resource: Resource{Kind: KindMCP, Name: "x", Source: "registry:x", Args: []string{"--a"}},
	})
	override := NewDesiredState()
	override.Set(ResourceKey{Kind: KindMCP, Name: "x"}, Entry{
		Scope: ProjectShared,
		Resource: Resource{Kind: KindMCP, Name: "x", Source: "registry:x", Args: []string{"--b"}},
	})

	merged, _, err := Merge(base, override)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	entry, _ := merged.Get(KindMCP, "x")
	if len(entry.Resource.Args) != 1 || entry.Resource.Args[0] != "--b" {
		t.Fatalf("expected args replaced wholesale, got %v", entry.Resource.Args)
	}
}

func TestRewriteResourceSourceForEjection(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sift.toml")
	writeFile(t, path, `
[skill.pdf]
source = "registry:ns/pdf"
`)
	if err := RewriteResourceSource(path, KindSkill, "pdf", "local:./skills/pdf", ""); err != nil {
		t.Fatalf("RewriteResourceSource: %v", err)
	}
	doc, _, err := loadDocument(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	entry, ok := doc.Skill["pdf"]
	if !ok {
		t.Fatalf("expected pdf entry to remain under its bare name")
	}
	if entry.Source != "local:./skills/pdf" {
		t.Fatalf("expected rewritten source, got %q", entry.Source)
	}
}
