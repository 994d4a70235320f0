// Package cache implements the content-addressed Artifact Cache: local
// storage of fetched skills and runtime metadata, tree-hash verified.
package cache

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Lutra-Fs/sift/internal/httpx"
	"github.com/Lutra-Fs/sift/internal/siferr"
)

// Store is rooted at <data>/sift/skills, partitioned
// <registry>/<author>/<name>/<version>/ per §4.4.
type Store struct {
	Root string
}

func New(dataDir string) *Store {
	return &Store{Root: filepath.Join(dataDir, "sift", "skills")}
}

func (s *Store) stagingDir() string {
	return filepath.Join(filepath.Dir(s.Root), ".staging")
}

// Home returns the <data>/sift directory the cache is rooted under, used
// to expand the ${SIFT_HOME} placeholder client adapters render into
// runtime isolation paths (bunx --cache-dir, npm_config_cache).
func (s *Store) Home() string {
	return filepath.Dir(s.Root)
}

// Path returns the final on-disk location for a package, independent of
// whether it has been fetched yet.
func (s *Store) Path(registry, author, name, version string) string {
	return filepath.Join(s.Root, registry, author, name, version)
}

// Verify recomputes the tree hash at path and compares it to want. A
// mismatch is an IntegrityError, fatal for the resource per §7.
func (s *Store) Verify(path, want string) error {
	got, err := TreeHash(path)
	if err != nil {
		return fmt.Errorf("tree hash %s: %w", path, err)
	}
	if got != want {
		return siferr.New(siferr.IntegrityError, path, fmt.Errorf("tree hash mismatch: want %s, got %s", want, got))
	}
	return nil
}

// FetchAndStage makes sourcePath's content available in a fresh
// per-attempt staging directory and returns the staged path and its
// computed tree hash, without yet moving it to its final partitioned
// location. sourcePath may be a local directory (local: sources), a local
// archive file, or an http(s) URL (downloaded to a temp file first).
// Concurrent callers racing on the same artifact each get their own
// staging directory; CommitStaged's rename is what actually de-duplicates.
func (s *Store) FetchAndStage(sourcePath string) (stagedPath, treeHash string, err error) {
	if err := os.MkdirAll(s.stagingDir(), 0o755); err != nil {
		return "", "", fmt.Errorf("mkdir staging dir: %w", err)
	}
	staging, err := os.MkdirTemp(s.stagingDir(), "fetch-*")
	if err != nil {
		return "", "", fmt.Errorf("create staging dir: %w", err)
	}
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.RemoveAll(staging)
		}
	}()

	archivePath := sourcePath
	if strings.HasPrefix(sourcePath, "http://") || strings.HasPrefix(sourcePath, "https://") {
		downloaded, err := s.download(sourcePath)
		if err != nil {
			return "", "", err
		}
		defer os.Remove(downloaded)
		archivePath = downloaded
	}

	info, statErr := os.Stat(archivePath)
	switch {
	case statErr == nil && info.IsDir():
		if err := copyDirectoryTree(archivePath, staging); err != nil {
			return "", "", fmt.Errorf("copy local source: %w", err)
		}
	case statErr == nil:
		if err := extract(archivePath, staging); err != nil {
			return "", "", fmt.Errorf("extract %s: %w", archivePath, err)
		}
	default:
		return "", "", fmt.Errorf("stat %s: %w", archivePath, statErr)
	}

	hash, err := TreeHash(staging)
	if err != nil {
		return "", "", fmt.Errorf("tree hash staged artifact: %w", err)
	}
	cleanup = false
	return staging, hash, nil
}

// download fetches url into a temp file under the staging dir, named so
// archiveKind can still classify it by the URL's suffix.
func (s *Store) download(url string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request for %s: %w", url, err)
	}
	resp, err := httpx.SharedClient(30 * time.Second).Do(req)
	if err != nil {
		return "", siferr.New(siferr.NetworkError, url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", siferr.New(siferr.NetworkError, url, fmt.Errorf("%s: status %d", url, resp.StatusCode))
	}

	ext := filepath.Ext(url)
	if strings.HasSuffix(strings.ToLower(url), ".tar.gz") {
		ext = ".tar.gz"
	}
	out, err := os.CreateTemp(s.stagingDir(), "download-*"+ext)
	if err != nil {
		return "", fmt.Errorf("create download temp file: %w", err)
	}
	defer out.Close()
	if _, err := io.Copy(out, resp.Body); err != nil {
		os.Remove(out.Name())
		return "", fmt.Errorf("download %s: %w", url, err)
	}
	return out.Name(), nil
}

// CommitStaged renames a staged directory (from FetchAndStage) into its
// final partitioned location. If the destination already exists (another
// writer won the race, or this is a re-install of an identical artifact),
// the staging directory is discarded and the existing path is returned.
func (s *Store) CommitStaged(stagedPath, registry, author, name, version string) (string, error) {
	dest := s.Path(registry, author, name, version)
	if _, err := os.Stat(dest); err == nil {
		_ = os.RemoveAll(stagedPath)
		return dest, nil
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		_ = os.RemoveAll(stagedPath)
		return "", fmt.Errorf("mkdir %s: %w", filepath.Dir(dest), err)
	}
	if err := os.Rename(stagedPath, dest); err != nil {
		_ = os.RemoveAll(stagedPath)
		return "", fmt.Errorf("rename staged artifact into place: %w", err)
	}
	return dest, nil
}

// EnsureCached makes sure finalPath exists on disk, fetching from
// downloadURL on a cache miss. When expectedHash is non-empty the fetched
// content's tree hash must match it (IntegrityError on mismatch); an
// existing finalPath is trusted without re-hashing, since CommitStaged's
// atomic rename already guarantees it was verified (or is native) when
// first written.
func (s *Store) EnsureCached(downloadURL, finalPath, expectedHash string) error {
	if _, err := os.Stat(finalPath); err == nil {
		return nil
	}
	staged, hash, err := s.FetchAndStage(downloadURL)
	if err != nil {
		return err
	}
	if expectedHash != "" && hash != expectedHash {
		_ = os.RemoveAll(staged)
		return siferr.New(siferr.IntegrityError, finalPath, fmt.Errorf("tree hash mismatch: want %s, got %s", expectedHash, hash))
	}
	if err := os.MkdirAll(filepath.Dir(finalPath), 0o755); err != nil {
		_ = os.RemoveAll(staged)
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(finalPath), err)
	}
	if _, err := os.Stat(finalPath); err == nil {
		// Another writer committed it while we were fetching.
		_ = os.RemoveAll(staged)
		return nil
	}
	if err := os.Rename(staged, finalPath); err != nil {
		_ = os.RemoveAll(staged)
		return fmt.Errorf("rename staged artifact into place: %w", err)
	}
	return nil
}

// Has reports whether a package version is already cached.
func (s *Store) Has(registry, author, name, version string) bool {
	_, err := os.Stat(s.Path(registry, author, name, version))
	return err == nil
}
