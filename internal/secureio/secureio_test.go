package secureio

import (
	"os"
	"path/filepath"
	"testing"
)

func TestReadFileScoped(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sift.lock")
	want := []byte(`schema_version = 1` + "\n")
	if err := os.WriteFile(path, want, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := ReadFileScoped(path)
	if err != nil {
		t.Fatalf("ReadFileScoped: %v", err)
	}
	if string(got) != string(want) {
		t.Fatalf("got %q want %q", string(got), string(want))
	}
}

func TestReadFileScopedEmptyPath(t *testing.T) {
	if _, err := ReadFileScoped("   "); err == nil {
		t.Fatalf("expected path required error")
	}
}

func TestWriteFileAtomicRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "sift.lock")
	if err := WriteFileAtomic(path, []byte("a=1\n"), 0o600); err != nil {
		t.Fatalf("WriteFileAtomic: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(got) != "a=1\n" {
		t.Fatalf("got %q", string(got))
	}
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	for _, e := range entries {
		if e.Name() != "sift.lock" {
			t.Fatalf("leftover temp file: %s", e.Name())
		}
	}
}

func TestWriteFileAtomicOverwrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sift.lock")
	if err := WriteFileAtomic(path, []byte("first"), 0o600); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := WriteFileAtomic(path, []byte("second"), 0o600); err != nil {
		t.Fatalf("second write: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != "second" {
		t.Fatalf("got %q want second", string(got))
	}
}
