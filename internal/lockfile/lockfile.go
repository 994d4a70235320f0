// Package lockfile implements the Lockfile Manager: atomic read-modify-
// write of sift.lock, advisory locking across concurrent invocations, and
// orphan detection against the current DesiredState.
package lockfile

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/pelletier/go-toml/v2"

	"github.com/Lutra-Fs/sift/internal/config"
	"github.com/Lutra-Fs/sift/internal/secureio"
	"github.com/Lutra-Fs/sift/internal/siferr"
)

const fileName = "sift.lock"

// ClientEntryID identifies one managed JSON entry, per spec.md §3.
type ClientEntryID struct {
	ClientID string `toml:"client_id"`
	Scope    string `toml:"scope"`
	Kind     string `toml:"kind"`
	Name     string `toml:"name"`
}

// ManagedRecord is the lockfile's record of one managed config entry.
type ManagedRecord struct {
	ContentHash             string `toml:"content_hash"`
	ResolvedRef             string `toml:"resolved_ref"`
	LastRenderedFingerprint string `toml:"last_rendered_fingerprint"`
}

// ManagedConfigEntry pairs an ID with its record for TOML array-of-tables
// serialization (go-toml has no native map-key-is-struct support).
type ManagedConfigEntry struct {
	ID     ClientEntryID `toml:"id"`
	Record ManagedRecord `toml:"record"`
}

// SkillEntryID identifies one managed skill delivery.
type SkillEntryID struct {
	ClientID string `toml:"client_id"`
	Scope    string `toml:"scope"`
	Name     string `toml:"name"`
}

// ManagedSkillRecord is the lockfile's record of one delivered skill.
type ManagedSkillRecord struct {
	LinkModeActual string `toml:"link_mode_actual"`
	CachePath      string `toml:"cache_path"`
	TreeHash       string `toml:"tree_hash"`
}

type ManagedSkillEntry struct {
	ID     SkillEntryID       `toml:"id"`
	Record ManagedSkillRecord `toml:"record"`
}

// CacheIndexEntry maps a tree hash to its on-disk cache path.
type CacheIndexEntry struct {
	TreeHash  string `toml:"tree_hash"`
	CachePath string `toml:"cache_path"`
}

// document is the on-disk sift.lock shape.
type document struct {
	Version        int                  `toml:"version"`
	ManagedConfigs []ManagedConfigEntry `toml:"managed_configs"`
	ManagedSkills  []ManagedSkillEntry  `toml:"managed_skills"`
	CacheIndex     []CacheIndexEntry    `toml:"cache_index"`
}

// Lockfile is an in-memory, mutable view of sift.lock, guarded by an
// advisory OS-level file lock for the duration between Open and
// Commit/Release.
type Lockfile struct {
	path string
	flk  *flock.Flock
	doc  document
}

// Open acquires the advisory lock at path+".flock" and loads the existing
// document (or an empty one if sift.lock does not yet exist). Contending
// invocations fail fast with LockHeld rather than blocking, matching
// spec.md §5's "contending invocations fail with LockHeld."
func Open(dir string) (*Lockfile, error) {
	path := filepath.Join(dir, fileName)
	flk := flock.New(path + ".flock")
	locked, err := flk.TryLock()
	if err != nil {
		return nil, siferr.New(siferr.LockHeld, path, err)
	}
	if !locked {
		return nil, siferr.New(siferr.LockHeld, path, fmt.Errorf("sift.lock is held by another invocation"))
	}

	lf := &Lockfile{path: path, flk: flk}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, &lf.doc); err != nil {
			_ = flk.Unlock()
			return nil, siferr.New(siferr.ConfigError, path, fmt.Errorf("parse %s: %w", path, err))
		}
	case os.IsNotExist(err):
		lf.doc = document{Version: 1}
	default:
		_ = flk.Unlock()
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return lf, nil
}

// Release drops the advisory lock without writing, for read-only commands
// (status, list) and error paths that must not commit partial state.
func (l *Lockfile) Release() error {
	return l.flk.Unlock()
}

// Commit atomically writes the current document to disk (fsync + rename)
// and releases the advisory lock. Per spec.md §4.7 Phase D.
func (l *Lockfile) Commit() error {
	data, err := toml.Marshal(l.doc)
	if err != nil {
		_ = l.flk.Unlock()
		return fmt.Errorf("marshal sift.lock: %w", err)
	}
	if err := secureio.WriteFileAtomic(l.path, data, 0o600); err != nil {
		_ = l.flk.Unlock()
		return fmt.Errorf("write %s: %w", l.path, err)
	}
	return l.flk.Unlock()
}

// UpsertManagedConfig records or replaces a managed config entry.
func (l *Lockfile) UpsertManagedConfig(id ClientEntryID, record ManagedRecord) {
	for i, e := range l.doc.ManagedConfigs {
		if e.ID == id {
			l.doc.ManagedConfigs[i].Record = record
			return
		}
	}
	l.doc.ManagedConfigs = append(l.doc.ManagedConfigs, ManagedConfigEntry{ID: id, Record: record})
}

// ManagedConfig looks up a managed config entry by ID.
func (l *Lockfile) ManagedConfig(id ClientEntryID) (ManagedRecord, bool) {
	for _, e := range l.doc.ManagedConfigs {
		if e.ID == id {
			return e.Record, true
		}
	}
	return ManagedRecord{}, false
}

// RemoveManagedConfig deletes a managed config entry, for uninstall/prune.
func (l *Lockfile) RemoveManagedConfig(id ClientEntryID) {
	out := l.doc.ManagedConfigs[:0]
	for _, e := range l.doc.ManagedConfigs {
		if e.ID != id {
			out = append(out, e)
		}
	}
	l.doc.ManagedConfigs = out
}

// UpsertManagedSkill records or replaces a managed skill delivery.
func (l *Lockfile) UpsertManagedSkill(id SkillEntryID, record ManagedSkillRecord) {
	for i, e := range l.doc.ManagedSkills {
		if e.ID == id {
			l.doc.ManagedSkills[i].Record = record
			return
		}
	}
	l.doc.ManagedSkills = append(l.doc.ManagedSkills, ManagedSkillEntry{ID: id, Record: record})
}

// ManagedSkill looks up a managed skill entry by ID.
func (l *Lockfile) ManagedSkill(id SkillEntryID) (ManagedSkillRecord, bool) {
	for _, e := range l.doc.ManagedSkills {
		if e.ID == id {
			return e.Record, true
		}
	}
	return ManagedSkillRecord{}, false
}

// ManagedSkillsByName returns every managed skill entry recorded under
// name, across all clients and scopes. Used by ejection to locate a
// skill's cache path and enumerate the rows it must drop.
func (l *Lockfile) ManagedSkillsByName(name string) []ManagedSkillEntry {
	var out []ManagedSkillEntry
	for _, e := range l.doc.ManagedSkills {
		if e.ID.Name == name {
			out = append(out, e)
		}
	}
	return out
}

// RemoveManagedSkill deletes a managed skill entry.
func (l *Lockfile) RemoveManagedSkill(id SkillEntryID) {
	out := l.doc.ManagedSkills[:0]
	for _, e := range l.doc.ManagedSkills {
		if e.ID != id {
			out = append(out, e)
		}
	}
	l.doc.ManagedSkills = out
}

// IndexCachePath records a tree_hash -> cache_path mapping.
func (l *Lockfile) IndexCachePath(treeHash, cachePath string) {
	for i, e := range l.doc.CacheIndex {
		if e.TreeHash == treeHash {
			l.doc.CacheIndex[i].CachePath = cachePath
			return
		}
	}
	l.doc.CacheIndex = append(l.doc.CacheIndex, CacheIndexEntry{TreeHash: treeHash, CachePath: cachePath})
}

// OrphanedConfigs returns managed config IDs with no corresponding entry
// in the given DesiredState, per invariant 1 in spec.md §3.
func (l *Lockfile) OrphanedConfigs(desired *config.DesiredState) []ClientEntryID {
	var orphans []ClientEntryID
	for _, e := range l.doc.ManagedConfigs {
		kind := config.KindMCP
		if e.ID.Kind == config.KindSkill.String() {
			kind = config.KindSkill
		}
		if _, ok := desired.Entries[config.ResourceKey{Kind: kind, Name: e.ID.Name}]; !ok {
			orphans = append(orphans, e.ID)
		}
	}
	return orphans
}

// OrphanedSkills returns managed skill IDs with no corresponding skill
// entry in the given DesiredState.
func (l *Lockfile) OrphanedSkills(desired *config.DesiredState) []SkillEntryID {
	var orphans []SkillEntryID
	for _, e := range l.doc.ManagedSkills {
		if _, ok := desired.Entries[config.ResourceKey{Kind: config.KindSkill, Name: e.ID.Name}]; !ok {
			orphans = append(orphans, e.ID)
		}
	}
	return orphans
}
