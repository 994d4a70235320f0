package resolver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/Lutra-Fs/sift/internal/cache"
	"github.com/Lutra-Fs/sift/internal/config"
	"github.com/Lutra-Fs/sift/internal/registry"
)

func TestParseSourceGitWithRef(t *testing.T) {
	p, err := ParseSource("git:https://github.com/anthropics/demo@v1.2.0")
	if err != nil {
		t.Fatalf("ParseSource: %v", err)
	}
	if p.Scheme != "git" || p.Ref != "v1.2.0" {
		t.Fatalf("expected scheme git ref v1.2.0, got %+v", p)
	}
}

func TestParseSourceLocal(t *testing.T) {
	p, err := ParseSource("local:/abs/path")
	if err != nil {
		t.Fatalf("ParseSource: %v", err)
	}
	if p.Scheme != "local" || p.Rest != "/abs/path" {
		t.Fatalf("unexpected parse: %+v", p)
	}
}

func TestNormalizeSourceRewritesBarePath(t *testing.T) {
	norm, changed := NormalizeSource("/abs/path/to/skill")
	if !changed || norm != "local:/abs/path/to/skill" {
		t.Fatalf("expected rewrite to local:, got %q changed=%v", norm, changed)
	}
}

func TestNormalizeSourceLeavesSchemedAlone(t *testing.T) {
	norm, changed := NormalizeSource("registry:anthropics/pdf")
	if changed || norm != "registry:anthropics/pdf" {
		t.Fatalf("expected no rewrite, got %q changed=%v", norm, changed)
	}
}

func TestResolveLocalComputesTreeHash(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "SKILL.md"), []byte("hi"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	r := New(registry.NewSet(), cache.New(t.TempDir()))
	resolved, err := r.Resolve(context.Background(), config.Resource{
		Kind: config.KindSkill, Name: "demo", Source: "local:" + dir,
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolved.TreeHash == "" || resolved.LocalPath != dir {
		t.Fatalf("unexpected resolved: %+v", resolved)
	}
}

func TestResolveHTTPEndpointMCPIsFloating(t *testing.T) {
	r := New(registry.NewSet(), cache.New(t.TempDir()))
	resolved, err := r.Resolve(context.Background(), config.Resource{
		Kind: config.KindMCP, Name: "remote", Transport: config.TransportHTTP,
		Source: "http:https://example.com/mcp",
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolved.Lockable {
		t.Fatalf("expected http MCP endpoint to be unlockable/floating")
	}
}

func TestResolveNpmLatest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"dist-tags":{"latest":"2.1.0"},"versions":{"2.1.0":{},"2.0.0":{}}}`))
	}))
	defer srv.Close()

	r := New(registry.NewSet(), cache.New(t.TempDir()))
	r.NpmRegistry = srv.URL
	resolved, err := r.Resolve(context.Background(), config.Resource{
		Kind: config.KindMCP, Name: "echo", Runtime: config.RuntimeNode, Source: "echo-mcp-server",
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolved.Version != "2.1.0" {
		t.Fatalf("expected latest version 2.1.0, got %q", resolved.Version)
	}
}

func TestResolveNpmWithConstraint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"dist-tags":{"latest":"2.1.0"},"versions":{"2.1.0":{},"2.0.0":{},"1.9.0":{}}}`))
	}))
	defer srv.Close()

	r := New(registry.NewSet(), cache.New(t.TempDir()))
	r.NpmRegistry = srv.URL
	resolved, err := r.Resolve(context.Background(), config.Resource{
		Kind: config.KindMCP, Name: "echo", Runtime: config.RuntimeBun, Source: "echo-mcp-server",
		DeclaredVersion: "echo-mcp-server@^2.0.0",
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolved.Version != "2.1.0" {
		t.Fatalf("expected 2.1.0 to satisfy ^2.0.0, got %q", resolved.Version)
	}
}

func TestSplitQualifiedPackage(t *testing.T) {
	ns, name, reg := splitQualifiedPackage("anthropics/pdf")
	if ns != "anthropics" || name != "pdf" || reg != "" {
		t.Fatalf("unexpected unqualified split: %q %q %q", ns, name, reg)
	}
	ns, name, reg = splitQualifiedPackage("sift/anthropics/pdf")
	if ns != "anthropics" || name != "pdf" || reg != "sift" {
		t.Fatalf("unexpected qualified split: %q %q %q", ns, name, reg)
	}
}
