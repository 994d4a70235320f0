package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// entry is one (relative_path, mode, content_hash) triple per §4.4's tree
// hash definition.
type entry struct {
	Path string `json:"path"`
	Mode uint32 `json:"mode"`
	Hash string `json:"hash"`
}

var vcsDirs = map[string]bool{
	".git": true, ".svn": true, ".hg": true,
}

// TreeHash walks root and returns a stable hash over a canonical listing
// of (relative_path, mode, content_hash) triples, sorted lexicographically
// by path and excluding VCS metadata directories. Deterministic across
// machines: file mode is masked to the permission bits only (no
// owner/device-specific bits survive a fetch+extract round-trip), and the
// final digest is computed the same way gatewayShardChecksum hashes a
// sorted listing of catalog entries — SHA-256 over a canonical
// marshaling of the sorted entries, here a newline-joined listing instead
// of JSON since we want the listing itself to be diffable.
func TreeHash(root string) (string, error) {
	var entries []entry

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if vcsDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		info, err := d.Info()
		if err != nil {
			return err
		}
		hash, err := hashFile(path)
		if err != nil {
			return err
		}
		entries = append(entries, entry{
			Path: rel,
			Mode: uint32(info.Mode().Perm()),
			Hash: hash,
		})
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("walk %s: %w", root, err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })

	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "%o\t%s\t%s\n", e.Mode, e.Hash, e.Path)
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:]), nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
