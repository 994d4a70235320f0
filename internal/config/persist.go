package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/Lutra-Fs/sift/internal/secureio"
)

// UpsertResource loads the sift.toml layer at path (creating its parent
// directory if needed), adds or replaces the named resource's table, and
// atomically rewrites the file. Used by `sift mcp add`/`sift skill add`.
func UpsertResource(path string, r Resource) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	doc, _, err := loadDocument(path)
	if err != nil {
		return err
	}

	label := r.Name
	if r.DeclaredVersion != "" {
		label = r.Name + "@" + r.DeclaredVersion
	}
	switch r.Kind {
	case KindMCP:
		if doc.Mcp == nil {
			doc.Mcp = map[string]mcpDoc{}
		}
		findAndDelete(doc.Mcp, r.Name)
		doc.Mcp[label] = mcpDoc{
			Source: r.Source, Runtime: string(r.Runtime), Args: r.Args,
			Transport: string(r.Transport), URL: r.URL,
			Targets: r.Targets, IgnoreTargets: r.IgnoreTargets,
			Env: r.Env, Headers: r.Headers,
		}
	case KindSkill:
		if doc.Skill == nil {
			doc.Skill = map[string]skillDoc{}
		}
		findAndDeleteSkill(doc.Skill, r.Name)
		doc.Skill[label] = skillDoc{
			Source: r.Source, Targets: r.Targets, IgnoreTargets: r.IgnoreTargets,
		}
	}

	data, err := toml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	return secureio.WriteFileAtomic(path, data, 0o600)
}

// RemoveResource loads the sift.toml layer at path and deletes the named
// resource's table, atomically rewriting the file. Used by
// `sift mcp remove`/`sift skill remove`.
func RemoveResource(path string, kind Kind, name string) error {
	doc, _, err := loadDocument(path)
	if err != nil {
		return err
	}
	switch kind {
	case KindMCP:
		if _, ok := findAndDelete(doc.Mcp, name); !ok {
			return fmt.Errorf("mcp %q not found in %s", name, path)
		}
	case KindSkill:
		if _, ok := findAndDeleteSkill(doc.Skill, name); !ok {
			return fmt.Errorf("skill %q not found in %s", name, path)
		}
	}
	data, err := toml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	return secureio.WriteFileAtomic(path, data, 0o600)
}

// RewriteResourceSource loads the project-layer sift.toml at path,
// replaces the named resource's source (and clears DeclaredVersion when
// newVersion is empty), and atomically rewrites the file. Used by ejection
// ("source becomes local:./skills/<name>") and un-ejection.
func RewriteResourceSource(path string, kind Kind, name, newSource, newVersion string) error {
	doc, _, err := loadDocument(path)
	if err != nil {
		return err
	}
	label := name
	if newVersion != "" {
		label = name + "@" + newVersion
	}
	switch kind {
	case KindMCP:
		if doc.Mcp == nil {
			doc.Mcp = map[string]mcpDoc{}
		}
		entry, ok := findAndDelete(doc.Mcp, name)
		if !ok {
			return fmt.Errorf("mcp %q not found in %s", name, path)
		}
		entry.Source = newSource
		doc.Mcp[label] = entry
	case KindSkill:
		if doc.Skill == nil {
			doc.Skill = map[string]skillDoc{}
		}
		entry, ok := findAndDeleteSkill(doc.Skill, name)
		if !ok {
			return fmt.Errorf("skill %q not found in %s", name, path)
		}
		entry.Source = newSource
		doc.Skill[label] = entry
	}

	data, err := toml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	return secureio.WriteFileAtomic(path, data, 0o600)
}

func findAndDelete(m map[string]mcpDoc, name string) (mcpDoc, bool) {
	for key, v := range m {
		n, _ := splitNameVersion(key)
		if n == name {
			delete(m, key)
			return v, true
		}
	}
	return mcpDoc{}, false
}

func findAndDeleteSkill(m map[string]skillDoc, name string) (skillDoc, bool) {
	for key, v := range m {
		n, _ := splitNameVersion(key)
		if n == name {
			delete(m, key)
			return v, true
		}
	}
	return skillDoc{}, false
}
