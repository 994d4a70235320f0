package orchestrator

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/Lutra-Fs/sift/internal/clients"
)

func TestExecuteJSONWritesManagedKeyAndPreservesSiblings(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, map[string]any{
		"mcpServers": map[string]any{"other": map[string]any{"command": "keep"}},
	})

	op := Op{
		JSONPlan: &clients.ManagedJsonPlan{
			ConfigFilePath: path,
			KeyPath:        []string{"mcpServers", "echo"},
			RenderedValue:  map[string]any{"command": "npx", "args": []string{"echo-server"}},
		},
	}
	if err := ExecuteJSON(op); err != nil {
		t.Fatalf("ExecuteJSON: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	servers := doc["mcpServers"].(map[string]any)
	if _, ok := servers["other"]; !ok {
		t.Fatalf("sibling entry 'other' was lost")
	}
	echo, ok := servers["echo"].(map[string]any)
	if !ok {
		t.Fatalf("echo entry missing")
	}
	if echo["command"] != "npx" {
		t.Fatalf("command = %v, want npx", echo["command"])
	}
}

func TestExecuteRemoveJSONDeletesOnlyManagedKey(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, map[string]any{
		"mcpServers": map[string]any{
			"other": map[string]any{"command": "keep"},
			"echo":  map[string]any{"command": "npx"},
		},
	})
	op := Op{JSONPlan: &clients.ManagedJsonPlan{ConfigFilePath: path, KeyPath: []string{"mcpServers", "echo"}}}
	if err := ExecuteRemoveJSON(op); err != nil {
		t.Fatalf("ExecuteRemoveJSON: %v", err)
	}
	data, _ := os.ReadFile(path)
	var doc map[string]any
	_ = json.Unmarshal(data, &doc)
	servers := doc["mcpServers"].(map[string]any)
	if _, ok := servers["echo"]; ok {
		t.Fatalf("echo entry should have been removed")
	}
	if _, ok := servers["other"]; !ok {
		t.Fatalf("sibling entry 'other' was lost")
	}
}

func TestExecuteSkillDeliverySymlink(t *testing.T) {
	srcDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(srcDir, "SKILL.md"), []byte("# skill"), 0o644); err != nil {
		t.Fatalf("seed cache dir: %v", err)
	}
	dest := filepath.Join(t.TempDir(), "nested", "echo")

	op := Op{LinkMode: clients.Symlink, CachePath: srcDir, DestDir: dest}
	actual, err := ExecuteSkillDelivery(op)
	if err != nil {
		t.Fatalf("ExecuteSkillDelivery: %v", err)
	}
	if actual != clients.Symlink {
		t.Fatalf("actual = %v, want Symlink", actual)
	}
	target, err := os.Readlink(dest)
	if err != nil {
		t.Fatalf("expected a symlink at %s: %v", dest, err)
	}
	if target != srcDir {
		t.Fatalf("symlink target = %q, want %q", target, srcDir)
	}
}

func TestExecuteSkillDeliveryCopyMaterializesTree(t *testing.T) {
	srcDir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(srcDir, "refs"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(srcDir, "SKILL.md"), []byte("# skill"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(srcDir, "refs", "doc.md"), []byte("ref"), 0o644); err != nil {
		t.Fatal(err)
	}
	dest := filepath.Join(t.TempDir(), "echo")

	op := Op{LinkMode: clients.Copy, CachePath: srcDir, DestDir: dest}
	actual, err := ExecuteSkillDelivery(op)
	if err != nil {
		t.Fatalf("ExecuteSkillDelivery: %v", err)
	}
	if actual != clients.Copy {
		t.Fatalf("actual = %v, want Copy", actual)
	}
	data, err := os.ReadFile(filepath.Join(dest, "refs", "doc.md"))
	if err != nil {
		t.Fatalf("copied file missing: %v", err)
	}
	if string(data) != "ref" {
		t.Fatalf("copied content = %q, want %q", data, "ref")
	}
	info, err := os.Lstat(filepath.Join(dest, "SKILL.md"))
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		t.Fatalf("copy mode must not leave symlinks")
	}
}

func TestExecuteSkillDeliveryReplacesExistingDestination(t *testing.T) {
	srcDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(srcDir, "SKILL.md"), []byte("v2"), 0o644); err != nil {
		t.Fatal(err)
	}
	dest := t.TempDir()
	stale := filepath.Join(dest, "stale.txt")
	if err := os.WriteFile(stale, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}

	op := Op{LinkMode: clients.Copy, CachePath: srcDir, DestDir: dest}
	if _, err := ExecuteSkillDelivery(op); err != nil {
		t.Fatalf("ExecuteSkillDelivery: %v", err)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatalf("stale destination content should have been removed")
	}
}
