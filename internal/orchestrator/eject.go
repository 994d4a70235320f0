package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Lutra-Fs/sift/internal/config"
	"github.com/Lutra-Fs/sift/internal/gitops"
	"github.com/Lutra-Fs/sift/internal/lockfile"
	"github.com/Lutra-Fs/sift/internal/siferr"
)

// Eject converts a cache-managed skill into a locally-owned one: the
// cached tree is copied (never linked) into projectDir/skills/<name>,
// sift.toml's source is rewritten to point at the copy, and every managed
// skill row recorded for it is dropped so future install runs leave the
// directory alone.
func Eject(lf *lockfile.Lockfile, siftTomlPath, projectDir, name string, desired *config.DesiredState) error {
	if _, ok := desired.Get(config.KindSkill, name); !ok {
		return siferr.New(siferr.ConfigError, name, fmt.Errorf("skill %q is not declared in sift.toml", name))
	}

	rows := lf.ManagedSkillsByName(name)
	if len(rows) == 0 {
		return siferr.New(siferr.ConfigError, name, fmt.Errorf("no cached delivery found for skill %q; run install first", name))
	}
	cachePath := rows[0].Record.CachePath
	if cachePath == "" {
		return siferr.New(siferr.ConfigError, name, fmt.Errorf("skill %q has no recorded cache path", name))
	}

	destDir := filepath.Join(projectDir, "skills", name)
	if _, err := os.Stat(destDir); err == nil {
		return siferr.New(siferr.ConfigError, name, fmt.Errorf("%s already exists", destDir))
	}
	if err := os.MkdirAll(filepath.Dir(destDir), 0o755); err != nil {
		return siferr.New(siferr.IoError, destDir, err)
	}
	if err := copyTree(cachePath, destDir); err != nil {
		return siferr.New(siferr.IoError, destDir, err)
	}

	newSource := "local:./skills/" + name
	if err := config.RewriteResourceSource(siftTomlPath, config.KindSkill, name, newSource, ""); err != nil {
		_ = os.RemoveAll(destDir)
		return siferr.New(siferr.ConfigError, name, err)
	}

	for _, row := range rows {
		lf.RemoveManagedSkill(row.ID)
	}
	return nil
}

// UnEject reverts an ejected skill back to cache-managed delivery: the
// local directory must be git-clean (so no uncommitted edits are silently
// discarded), gets moved into a timestamped backup, sift.toml's source is
// reverted to originalSource/originalVersion, and the next install run
// re-delivers the skill from cache.
func UnEject(siftTomlPath, projectDir, name, originalSource, originalVersion, timestamp string) error {
	localDir := filepath.Join(projectDir, "skills", name)
	if _, err := os.Stat(localDir); err != nil {
		return siferr.New(siferr.ConfigError, name, fmt.Errorf("%s does not exist", localDir))
	}

	if root, err := gitops.GitRoot(projectDir); err == nil {
		dirty, err := gitops.GitDirty(root)
		if err != nil {
			return siferr.New(siferr.IoError, root, err)
		}
		if dirty {
			return siferr.New(siferr.ConfigError, name, fmt.Errorf("working tree is dirty; commit or discard changes under %s before un-ejecting", localDir))
		}
	}

	backupDir := filepath.Join(projectDir, ".sift", "ejected-backups", name, timestamp)
	if err := os.MkdirAll(filepath.Dir(backupDir), 0o755); err != nil {
		return siferr.New(siferr.IoError, backupDir, err)
	}
	if err := os.Rename(localDir, backupDir); err != nil {
		return siferr.New(siferr.IoError, backupDir, err)
	}

	if err := config.RewriteResourceSource(siftTomlPath, config.KindSkill, name, originalSource, originalVersion); err != nil {
		return siferr.New(siferr.ConfigError, name, err)
	}
	return nil
}
