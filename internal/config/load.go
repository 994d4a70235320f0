package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/Lutra-Fs/sift/internal/siferr"
)

// Paths locates the three config layers, grounded on settings.go's
// settingsHomeDir/settingsPath layout (env override, XDG-ish fallback).
type Paths struct {
	GlobalDir  string // <user-config-dir>/sift
	ProjectDir string // cwd, or the directory containing ./sift.toml
}

func DefaultPaths() (Paths, error) {
	dir := strings.TrimSpace(os.Getenv("SIFT_CONFIG_HOME"))
	if dir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return Paths{}, fmt.Errorf("resolve user config dir: %w", err)
		}
		dir = filepath.Join(base, "sift")
	}
	cwd, err := os.Getwd()
	if err != nil {
		return Paths{}, fmt.Errorf("getwd: %w", err)
	}
	return Paths{GlobalDir: dir, ProjectDir: cwd}, nil
}

func (p Paths) GlobalFile() string  { return filepath.Join(p.GlobalDir, "sift.toml") }
func (p Paths) ProjectFile() string { return filepath.Join(p.ProjectDir, "sift.toml") }

// loadDocument parses one TOML layer. A strict decode surfaces unknown
// fields as warnings and is then retried leniently instead of failing the
// whole layer, mirroring settings.go's tolerance for forward-compatible
// field additions; a second pass into map[string]any rejects unknown
// top-level tables (ConfigError per spec.md).
func loadDocument(path string) (document, []Diagnostic, error) {
	var doc document
	var diags []Diagnostic

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return doc, nil, nil
	}
	if err != nil {
		return doc, nil, siferr.New(siferr.ConfigError, path, fmt.Errorf("read %s: %w", path, err))
	}

	strict := toml.NewDecoder(strings.NewReader(string(data)))
	strict.DisallowUnknownFields()
	if err := strict.Decode(&doc); err != nil {
		// Unknown-field errors from go-toml/v2 are reported per field; we
		// downgrade those to warnings and retry with a lenient decode so
		// a single stray key doesn't fail the whole layer, while unknown
		// top-level tables (caught below) remain fatal.
		if isUnknownFieldErr(err) {
			diags = append(diags, Diagnostic{Level: Warning, Message: err.Error()})
			doc = document{}
			if lenientErr := toml.Unmarshal(data, &doc); lenientErr != nil {
				return doc, diags, siferr.New(siferr.ConfigError, path, fmt.Errorf("parse %s: %w", path, lenientErr))
			}
		} else {
			return doc, diags, siferr.New(siferr.ConfigError, path, fmt.Errorf("parse %s: %w", path, err))
		}
	}

	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err == nil {
		for key := range raw {
			switch key {
			case "mcp", "skill", "projects":
			default:
				return doc, diags, siferr.New(siferr.ConfigError, path,
					fmt.Errorf("unknown top-level table %q in %s", key, path))
			}
		}
	}

	return doc, diags, nil
}

func isUnknownFieldErr(err error) bool {
	var strictErr *toml.StrictMissingError
	if errors.As(err, &strictErr) {
		return true
	}
	return strings.Contains(err.Error(), "field not found") ||
		strings.Contains(err.Error(), "has invalid keys") ||
		strings.Contains(err.Error(), "key is not defined")
}

// documentToLayer validates every resource in a parsed document and
// returns it as a DesiredState at the given scope, plus diagnostics.
func documentToLayer(doc document, scope Scope) (*DesiredState, []Diagnostic, error) {
	state := NewDesiredState()
	var diags []Diagnostic

	for name, m := range doc.Mcp {
		r := m.toResource(name)
		if err := r.Validate(); err != nil {
			return nil, diags, siferr.New(siferr.ConfigError, name, err)
		}
		state.Set(ResourceKey{Kind: KindMCP, Name: r.Name}, Entry{Scope: scope, Resource: r})
	}
	for name, s := range doc.Skill {
		r := s.toResource(name)
		if err := r.Validate(); err != nil {
			return nil, diags, siferr.New(siferr.ConfigError, name, err)
		}
		state.Set(ResourceKey{Kind: KindSkill, Name: r.Name}, Entry{Scope: scope, Resource: r})
	}
	return state, diags, nil
}

// Load reads Global, Project, and (if the Global layer declares one for
// the current project path) ProjectLocal, and merges them per §4.1.
func Load(paths Paths) (*DesiredState, []Diagnostic, error) {
	var allDiags []Diagnostic

	globalDoc, diags, err := loadDocument(paths.GlobalFile())
	if err != nil {
		return nil, allDiags, err
	}
	allDiags = append(allDiags, diags...)
	globalLayer, diags, err := documentToLayer(globalDoc, Global)
	if err != nil {
		return nil, allDiags, err
	}
	allDiags = append(allDiags, diags...)

	projectDoc, diags, err := loadDocument(paths.ProjectFile())
	if err != nil {
		return nil, allDiags, err
	}
	allDiags = append(allDiags, diags...)
	projectLayer, diags, err := documentToLayer(projectDoc, ProjectShared)
	if err != nil {
		return nil, allDiags, err
	}
	allDiags = append(allDiags, diags...)

	var localLayer *DesiredState
	if proj, ok := globalDoc.Projects[paths.ProjectDir]; ok {
		localDoc := document{Mcp: proj.Mcp, Skill: proj.Skill}
		localLayer, diags, err = documentToLayer(localDoc, ProjectLocal)
		if err != nil {
			return nil, allDiags, err
		}
		allDiags = append(allDiags, diags...)
	}

	merged, mergeDiags, err := Merge(globalLayer, projectLayer, localLayer)
	allDiags = append(allDiags, mergeDiags...)
	if err != nil {
		return nil, allDiags, err
	}
	return merged, allDiags, nil
}
