package clients

import (
	"strings"
	"testing"

	"github.com/Lutra-Fs/sift/internal/config"
	"github.com/Lutra-Fs/sift/internal/resolver"
)

func TestClaudeDesktopRejectsProjectScope(t *testing.T) {
	c := ClaudeDesktop{}
	r := config.Resource{Kind: config.KindMCP, Name: "echo", Transport: config.TransportStdio, Runtime: config.RuntimeNode}
	if _, err := c.PlanJSON(config.ProjectShared, r, resolver.Resolved{}, testEnv()); err == nil {
		t.Fatalf("expected ScopeUnsupported-equivalent error for project scope")
	}
}

func TestClaudeCodePlanJSONRendersNpmCacheEnv(t *testing.T) {
	c := ClaudeCode{}
	r := config.Resource{
		Kind: config.KindMCP, Name: "echo", Transport: config.TransportStdio,
		Runtime: config.RuntimeNode, Args: []string{"echo-server"},
	}
	plan, err := c.PlanJSON(config.Global, r, resolver.Resolved{}, testEnv())
	if err != nil {
		t.Fatalf("PlanJSON: %v", err)
	}
	v, ok := plan.RenderedValue.(mcpEntryValue)
	if !ok {
		t.Fatalf("expected mcpEntryValue, got %T", plan.RenderedValue)
	}
	if v.Command != "npx" {
		t.Fatalf("expected npx command, got %q", v.Command)
	}
	if v.Env["npm_config_cache"] == "" {
		t.Fatalf("expected npm_config_cache to be set")
	}
}

func TestVSCodeRejectsSkillDelivery(t *testing.T) {
	c := VSCode{}
	if _, err := c.PlanSkillDelivery(config.ProjectShared, "demo", Symlink, testEnv()); err == nil {
		t.Fatalf("expected error: vscode has no skill delivery")
	}
}

func TestGeminiCLIRejectsHTTPTransport(t *testing.T) {
	c := GeminiCLI{}
	r := config.Resource{Kind: config.KindMCP, Name: "remote", Transport: config.TransportHTTP, URL: "https://example.com"}
	if _, err := c.PlanJSON(config.Global, r, resolver.Resolved{}, testEnv()); err == nil {
		t.Fatalf("expected CapabilityError-equivalent for unsupported transport")
	}
}

func TestRegistryContainsAllFiveClients(t *testing.T) {
	want := []string{"claude-desktop", "claude-code", "vscode", "gemini-cli", "codex"}
	for _, id := range want {
		if _, ok := Lookup(id); !ok {
			t.Fatalf("expected registry to contain %q", id)
		}
	}
	if len(Registry) != len(want) {
		t.Fatalf("expected exactly %d adapters, got %d", len(want), len(Registry))
	}
}

func TestBunRuntimeRendersCacheDirFlag(t *testing.T) {
	c := ClaudeDesktop{}
	r := config.Resource{
		Kind: config.KindMCP, Name: "tool", Transport: config.TransportStdio,
		Runtime: config.RuntimeBun, Args: []string{"run", "server.ts"},
	}
	plan, err := c.PlanJSON(config.Global, r, resolver.Resolved{}, testEnv())
	if err != nil {
		t.Fatalf("PlanJSON: %v", err)
	}
	v := plan.RenderedValue.(mcpEntryValue)
	if v.Command != "bunx" {
		t.Fatalf("expected bunx, got %q", v.Command)
	}
	if len(v.Args) < 2 || v.Args[0] != "--cache-dir" {
		t.Fatalf("expected --cache-dir flag prepended, got %v", v.Args)
	}
}

func TestClaudeDesktopPlanJSONExpandsHomeDir(t *testing.T) {
	c := ClaudeDesktop{}
	r := config.Resource{Kind: config.KindMCP, Name: "echo", Transport: config.TransportStdio, Runtime: config.RuntimeNode}
	plan, err := c.PlanJSON(config.Global, r, resolver.Resolved{}, testEnv())
	if err != nil {
		t.Fatalf("PlanJSON: %v", err)
	}
	if strings.Contains(plan.ConfigFilePath, "${HOME}") {
		t.Fatalf("expected ${HOME} to be expanded, got %q", plan.ConfigFilePath)
	}
	if !strings.HasPrefix(plan.ConfigFilePath, "/home/tester") {
		t.Fatalf("expected path rooted at HomeDir, got %q", plan.ConfigFilePath)
	}
}

func testEnv() Environment {
	return Environment{HomeDir: "/home/tester", SiftHome: "/home/tester/.local/share/sift"}
}

func TestPlanRemovalMatchesPlanJSONPath(t *testing.T) {
	c := ClaudeCode{}
	r := config.Resource{
		Kind: config.KindMCP, Name: "echo", Transport: config.TransportStdio,
		Runtime: config.RuntimeNode, Args: []string{"echo-server"},
	}
	jsonPlan, err := c.PlanJSON(config.Global, r, resolver.Resolved{}, testEnv())
	if err != nil {
		t.Fatalf("PlanJSON: %v", err)
	}
	removalPlan, err := c.PlanRemoval(config.Global, "echo", testEnv())
	if err != nil {
		t.Fatalf("PlanRemoval: %v", err)
	}
	if removalPlan.ConfigFilePath != jsonPlan.ConfigFilePath {
		t.Fatalf("ConfigFilePath = %q, want %q", removalPlan.ConfigFilePath, jsonPlan.ConfigFilePath)
	}
	if len(removalPlan.KeyPath) != len(jsonPlan.KeyPath) {
		t.Fatalf("KeyPath = %v, want %v", removalPlan.KeyPath, jsonPlan.KeyPath)
	}
	for i := range jsonPlan.KeyPath {
		if removalPlan.KeyPath[i] != jsonPlan.KeyPath[i] {
			t.Fatalf("KeyPath = %v, want %v", removalPlan.KeyPath, jsonPlan.KeyPath)
		}
	}
}

func TestRenderMCPCommandExpandsEnvVars(t *testing.T) {
	t.Setenv("SIFT_TEST_TOKEN", "sekret")
	c := ClaudeDesktop{}
	r := config.Resource{
		Kind: config.KindMCP, Name: "echo", Transport: config.TransportStdio,
		Runtime: config.RuntimeUV, Env: map[string]string{"API_TOKEN": "${SIFT_TEST_TOKEN}"},
	}
	plan, err := c.PlanJSON(config.Global, r, resolver.Resolved{}, testEnv())
	if err != nil {
		t.Fatalf("PlanJSON: %v", err)
	}
	v := plan.RenderedValue.(mcpEntryValue)
	if v.Env["API_TOKEN"] != "sekret" {
		t.Fatalf("API_TOKEN = %q, want expanded %q", v.Env["API_TOKEN"], "sekret")
	}
}

func TestRenderManagedValueExpandsHeaderEnvVars(t *testing.T) {
	t.Setenv("SIFT_TEST_TOKEN", "sekret")
	c := ClaudeDesktop{}
	r := config.Resource{
		Kind: config.KindMCP, Name: "remote", Transport: config.TransportHTTP,
		URL: "https://example.com", Headers: map[string]string{"Authorization": "Bearer ${SIFT_TEST_TOKEN}"},
	}
	plan, err := c.PlanJSON(config.Global, r, resolver.Resolved{}, testEnv())
	if err != nil {
		t.Fatalf("PlanJSON: %v", err)
	}
	v := plan.RenderedValue.(mcpEntryValue)
	if v.Headers["Authorization"] != "Bearer sekret" {
		t.Fatalf("Authorization = %q, want expanded %q", v.Headers["Authorization"], "Bearer sekret")
	}
}
