package registry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Lutra-Fs/sift/internal/config"
)

func TestNativeResolve(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"namespace":"anthropics","name":"pdf","kind":"skill","versions":["1.2.0","1.1.0"],"tree_hash":"abc123"}`))
	}))
	defer srv.Close()

	n := Native{BaseURL: srv.URL}
	m, err := n.Resolve(context.Background(), "anthropics", "pdf", "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if m.TreeHash != "abc123" {
		t.Fatalf("expected tree hash abc123, got %q", m.TreeHash)
	}
	if !m.SupportsHistoricalVersions {
		t.Fatalf("expected historical version support with non-empty version list")
	}
}

func TestNativeResolveNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	n := Native{BaseURL: srv.URL}
	if _, err := n.Resolve(context.Background(), "anthropics", "missing", ""); err == nil {
		t.Fatalf("expected error for 404")
	}
}

func TestSetAmbiguousRegistry(t *testing.T) {
	srvA := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"namespace":"ns","name":"pkg","kind":"skill","versions":["1.0.0"]}`))
	}))
	defer srvA.Close()
	srvB := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"namespace":"ns","name":"pkg","kind":"skill","versions":["2.0.0"]}`))
	}))
	defer srvB.Close()

	set := NewSet()
	set.Add(nativeNamed{Native{BaseURL: srvA.URL}, "a"})
	set.Add(nativeNamed{Native{BaseURL: srvB.URL}, "b"})

	if _, err := set.Resolve(context.Background(), config.KindSkill, "ns", "pkg", "", ""); err == nil {
		t.Fatalf("expected AmbiguousRegistry error")
	}

	m, err := set.Resolve(context.Background(), config.KindSkill, "ns", "pkg", "", "a")
	if err != nil {
		t.Fatalf("qualified resolve: %v", err)
	}
	if m.Versions[0] != "1.0.0" {
		t.Fatalf("expected registry a's manifest, got %v", m.Versions)
	}
}

func TestVersionIgnored(t *testing.T) {
	m := PackageManifest{SupportsHistoricalVersions: false}
	if !VersionIgnored("1.2.3", m) {
		t.Fatalf("expected VersionIgnored true when registry has no history")
	}
	if VersionIgnored("", m) {
		t.Fatalf("expected VersionIgnored false when no version requested")
	}
}

// nativeNamed lets the test register two distinct registry names backed
// by Native's JSON-fetch logic, without adding test-only hooks to Native
// itself.
type nativeNamed struct {
	Native
	name string
}

func (n nativeNamed) Name() string { return n.name }
