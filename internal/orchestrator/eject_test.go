package orchestrator

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Lutra-Fs/sift/internal/config"
	"github.com/Lutra-Fs/sift/internal/lockfile"
)

func writeSiftToml(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "sift.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestEjectCopiesCacheAndRewritesSource(t *testing.T) {
	projectDir := t.TempDir()
	cacheDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(cacheDir, "SKILL.md"), []byte("# demo"), 0o644); err != nil {
		t.Fatal(err)
	}

	siftToml := writeSiftToml(t, projectDir, "[skill.demo]\nsource = \"registry:sift/demo\"\n")

	lf, _ := newTestLockfile(t)
	lf.UpsertManagedSkill(lockfile.SkillEntryID{ClientID: "claude-code", Scope: "global", Name: "demo"}, lockfile.ManagedSkillRecord{CachePath: cacheDir})

	desired := config.NewDesiredState()
	desired.Set(config.ResourceKey{Kind: config.KindSkill, Name: "demo"}, config.Entry{
		Resource: config.Resource{Kind: config.KindSkill, Name: "demo", Source: "registry:sift/demo"},
	})

	if err := Eject(lf, siftToml, projectDir, "demo", desired); err != nil {
		t.Fatalf("Eject: %v", err)
	}

	destFile := filepath.Join(projectDir, "skills", "demo", "SKILL.md")
	if _, err := os.Stat(destFile); err != nil {
		t.Fatalf("expected copied skill tree: %v", err)
	}
	if _, ok := lf.ManagedSkill(lockfile.SkillEntryID{ClientID: "claude-code", Scope: "global", Name: "demo"}); ok {
		t.Fatalf("expected managed skill row to be removed after eject")
	}

	rewritten, err := os.ReadFile(siftToml)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(rewritten), "local:./skills/demo") {
		t.Fatalf("expected sift.toml source rewritten to local copy, got:\n%s", rewritten)
	}
}

func TestEjectFailsWhenDestinationAlreadyExists(t *testing.T) {
	projectDir := t.TempDir()
	cacheDir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(projectDir, "skills", "demo"), 0o755); err != nil {
		t.Fatal(err)
	}
	siftToml := writeSiftToml(t, projectDir, "[skill.demo]\nsource = \"registry:sift/demo\"\n")

	lf, _ := newTestLockfile(t)
	lf.UpsertManagedSkill(lockfile.SkillEntryID{ClientID: "claude-code", Scope: "global", Name: "demo"}, lockfile.ManagedSkillRecord{CachePath: cacheDir})

	desired := config.NewDesiredState()
	desired.Set(config.ResourceKey{Kind: config.KindSkill, Name: "demo"}, config.Entry{
		Resource: config.Resource{Kind: config.KindSkill, Name: "demo", Source: "registry:sift/demo"},
	})

	if err := Eject(lf, siftToml, projectDir, "demo", desired); err == nil {
		t.Fatalf("expected error when destination already exists")
	}
}

func TestEjectFailsWhenSkillNotDeclared(t *testing.T) {
	projectDir := t.TempDir()
	siftToml := writeSiftToml(t, projectDir, "")
	lf, _ := newTestLockfile(t)
	desired := config.NewDesiredState()

	if err := Eject(lf, siftToml, projectDir, "demo", desired); err == nil {
		t.Fatalf("expected error for undeclared skill")
	}
}

func TestUnEjectRestoresRegistrySourceAndBacksUpLocalDir(t *testing.T) {
	projectDir := t.TempDir()
	localDir := filepath.Join(projectDir, "skills", "demo")
	if err := os.MkdirAll(localDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(localDir, "SKILL.md"), []byte("# demo"), 0o644); err != nil {
		t.Fatal(err)
	}
	siftToml := writeSiftToml(t, projectDir, "[skill.demo]\nsource = \"local:./skills/demo\"\n")

	if err := UnEject(siftToml, projectDir, "demo", "registry:sift/demo", "1.2.0", "20260731T120000Z"); err != nil {
		t.Fatalf("UnEject: %v", err)
	}

	if _, err := os.Stat(localDir); !os.IsNotExist(err) {
		t.Fatalf("expected local skill dir to be moved away, stat err = %v", err)
	}
	backup := filepath.Join(projectDir, ".sift", "ejected-backups", "demo", "20260731T120000Z", "SKILL.md")
	if _, err := os.Stat(backup); err != nil {
		t.Fatalf("expected backup at %s: %v", backup, err)
	}

	rewritten, err := os.ReadFile(siftToml)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(rewritten), "registry:sift/demo") {
		t.Fatalf("expected sift.toml source reverted to registry source, got:\n%s", rewritten)
	}
}

func TestUnEjectFailsWhenLocalDirMissing(t *testing.T) {
	projectDir := t.TempDir()
	siftToml := writeSiftToml(t, projectDir, "[skill.demo]\nsource = \"local:./skills/demo\"\n")

	if err := UnEject(siftToml, projectDir, "demo", "registry:sift/demo", "1.2.0", "20260731T120000Z"); err == nil {
		t.Fatalf("expected error when local skill dir does not exist")
	}
}
