package orchestrator

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Lutra-Fs/sift/internal/clients"
	"github.com/Lutra-Fs/sift/internal/secureio"
	"github.com/Lutra-Fs/sift/internal/siferr"
)

// ExecuteJSON implements Phase C for one OpUpsertManagedJSON: parse the
// existing document (if any), patch only the managed key path, and
// re-serialize atomically, so non-managed sibling keys survive untouched.
func ExecuteJSON(op Op) error {
	doc, err := loadJSONDocument(op.JSONPlan.ConfigFilePath)
	if err != nil {
		return siferr.New(siferr.IoError, op.JSONPlan.ConfigFilePath, err)
	}
	setAtPath(doc, op.JSONPlan.KeyPath, op.JSONPlan.RenderedValue)

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return siferr.New(siferr.IoError, op.JSONPlan.ConfigFilePath, fmt.Errorf("marshal config: %w", err))
	}
	if err := secureio.WriteFileAtomic(op.JSONPlan.ConfigFilePath, data, 0o600); err != nil {
		return siferr.New(siferr.IoError, op.JSONPlan.ConfigFilePath, err)
	}
	return nil
}

// ExecuteRemoveJSON deletes a managed key from its config file, used for
// uninstall/prune.
func ExecuteRemoveJSON(op Op) error {
	doc, err := loadJSONDocument(op.JSONPlan.ConfigFilePath)
	if err != nil {
		return siferr.New(siferr.IoError, op.JSONPlan.ConfigFilePath, err)
	}
	deleteAtPath(doc, op.JSONPlan.KeyPath)
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return siferr.New(siferr.IoError, op.JSONPlan.ConfigFilePath, err)
	}
	return secureio.WriteFileAtomic(op.JSONPlan.ConfigFilePath, data, 0o600)
}

// ExecuteSkillDelivery materializes a skill at op.DestDir from op.CachePath
// according to op.LinkMode, downgrading on failure per the ladder:
// Symlink -> Hardlink (privilege/platform failure) -> Copy (cross-device).
func ExecuteSkillDelivery(op Op) (actual clients.LinkMode, err error) {
	if err := os.MkdirAll(filepath.Dir(op.DestDir), 0o755); err != nil {
		return op.LinkMode, siferr.New(siferr.IoError, op.DestDir, err)
	}
	_ = os.RemoveAll(op.DestDir)

	mode := op.LinkMode
	if mode == clients.Symlink {
		if err := os.Symlink(op.CachePath, op.DestDir); err == nil {
			return clients.Symlink, nil
		}
		mode = clients.Hardlink
	}
	if mode == clients.Hardlink {
		if err := hardlinkTree(op.CachePath, op.DestDir); err == nil {
			return clients.Hardlink, nil
		}
		mode = clients.Copy
	}
	if err := copyTree(op.CachePath, op.DestDir); err != nil {
		return clients.Copy, siferr.New(siferr.IoError, op.DestDir, err)
	}
	return clients.Copy, nil
}

// hardlinkTree recreates src's file layout under dst using per-file hard
// links; directories are created fresh since hardlinks can't span them.
func hardlinkTree(src, dst string) error {
	return walkAndMirror(src, dst, func(s, d string) error {
		return os.Link(s, d)
	})
}

// copyTree recursively copies src into dst, refusing symlinks inside the
// tree (same discipline internal/cache's extraction uses).
func copyTree(src, dst string) error {
	return walkAndMirror(src, dst, copyRegularFile)
}

func walkAndMirror(src, dst string, copyOne func(s, d string) error) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		if info.Mode()&os.ModeSymlink != 0 {
			return fmt.Errorf("refusing to link/copy symlink entry: %s", path)
		}
		return copyOne(path, target)
	})
}

func copyRegularFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, info.Mode().Perm())
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}
