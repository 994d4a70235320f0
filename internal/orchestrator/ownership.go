package orchestrator

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/Lutra-Fs/sift/internal/lockfile"
	"github.com/Lutra-Fs/sift/internal/siferr"
)

// ContentHash hashes a JSON-serializable value the same way for both the
// live config file and the lockfile's recorded content_hash, so the two
// are directly comparable. The write path hashes a typed Go struct
// (mcpEntryValue), whose fields marshal in declaration order; the
// read-back path hashes a value decoded off disk into map[string]any,
// whose fields marshal in sorted key order. Those two byte streams never
// match on their own, so both are normalized through an
// unmarshal-into-any round trip before hashing, collapsing both onto the
// same sorted-key encoding.
func ContentHash(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal value for content hash: %w", err)
	}
	var normalized any
	if err := json.Unmarshal(data, &normalized); err != nil {
		return "", fmt.Errorf("normalize value for content hash: %w", err)
	}
	canonical, err := json.Marshal(normalized)
	if err != nil {
		return "", fmt.Errorf("marshal normalized value for content hash: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// OwnershipStatus is Phase B's verdict for one UpsertManagedJson op.
type OwnershipStatus int

const (
	SafeToWrite OwnershipStatus = iota
	UserModified
)

// CheckOwnership implements Phase B: load the current config document (if
// present), and at op's key path decide whether Sift may safely write,
// per spec.md §4.7's ownership rules (invariant 2 in §3).
func CheckOwnership(op Op, lf *lockfile.Lockfile, force bool) (OwnershipStatus, error) {
	doc, err := loadJSONDocument(op.JSONPlan.ConfigFilePath)
	if err != nil {
		return SafeToWrite, siferr.New(siferr.IoError, op.JSONPlan.ConfigFilePath, err)
	}

	current, present := getAtPath(doc, op.JSONPlan.KeyPath)
	if !present {
		return SafeToWrite, nil
	}

	id := lockfile.ClientEntryID{ClientID: op.ClientID, Scope: op.Scope.String(), Kind: op.ResKind.String(), Name: op.Name}
	record, known := lf.ManagedConfig(id)
	if !known {
		if force {
			return SafeToWrite, nil
		}
		return UserModified, nil
	}

	currentHash, err := ContentHash(current)
	if err != nil {
		return SafeToWrite, err
	}
	if currentHash == record.ContentHash {
		return SafeToWrite, nil
	}
	if force {
		return SafeToWrite, nil
	}
	return UserModified, nil
}

func loadJSONDocument(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, err
	}
	if len(data) == 0 {
		return map[string]any{}, nil
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return doc, nil
}

// getAtPath walks keyPath through nested maps, returning the leaf value.
func getAtPath(doc map[string]any, keyPath []string) (any, bool) {
	cur := any(doc)
	for i, k := range keyPath {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		v, ok := m[k]
		if !ok {
			return nil, false
		}
		if i == len(keyPath)-1 {
			return v, true
		}
		cur = v
	}
	return nil, false
}

// setAtPath writes value at keyPath within doc, creating intermediate
// maps as needed, and preserving every other key untouched.
func setAtPath(doc map[string]any, keyPath []string, value any) {
	cur := doc
	for i, k := range keyPath {
		if i == len(keyPath)-1 {
			cur[k] = value
			return
		}
		next, ok := cur[k].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[k] = next
		}
		cur = next
	}
}

// deleteAtPath removes the value at keyPath, leaving sibling keys intact.
func deleteAtPath(doc map[string]any, keyPath []string) {
	cur := doc
	for i, k := range keyPath {
		if i == len(keyPath)-1 {
			delete(cur, k)
			return
		}
		next, ok := cur[k].(map[string]any)
		if !ok {
			return
		}
		cur = next
	}
}
