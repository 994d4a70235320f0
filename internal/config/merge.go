package config

import (
	"fmt"

	"github.com/Lutra-Fs/sift/internal/siferr"
)

// Merge combines layers in order Global -> Project -> ProjectLocal. For
// env/headers maps, later layers deep-merge (later wins per key); every
// other field, including the list-valued Args/Targets/IgnoreTargets,
// replaces wholesale (see DESIGN.md Open Question 2: list fields use
// replace, not union).
func Merge(layers ...*DesiredState) (*DesiredState, []Diagnostic, error) {
	out := NewDesiredState()
	var diags []Diagnostic

	for _, layer := range layers {
		if layer == nil {
			continue
		}
		for key, incoming := range layer.Entries {
			existing, ok := out.Get(key.Kind, key.Name)
			if !ok {
				out.Set(key, incoming)
				continue
			}
			if sourceKindOf(existing.Resource.Source) != sourceKindOf(incoming.Resource.Source) &&
				existing.Resource.Source != "" && incoming.Resource.Source != "" {
				return nil, diags, siferr.New(siferr.ConfigError, key.Name,
					fmt.Errorf("ScopeConflict: %s %q declared with incompatible source kinds across layers", key.Kind, key.Name))
			}
			merged := incoming.Resource
			merged.Env = deepMergeStringMap(existing.Resource.Env, incoming.Resource.Env)
			merged.Headers = deepMergeStringMap(existing.Resource.Headers, incoming.Resource.Headers)
			out.Set(key, Entry{Scope: incoming.Scope, Resource: merged})
		}
	}
	return out, diags, nil
}

func deepMergeStringMap(base, override map[string]string) map[string]string {
	if len(base) == 0 && len(override) == 0 {
		return nil
	}
	out := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}

// sourceKindOf extracts the scheme portion of a source string
// ("registry"/"git"/"local"/"http") for the ScopeConflict check.
func sourceKindOf(source string) string {
	for i, r := range source {
		if r == ':' {
			return source[:i]
		}
	}
	return source
}

// CLIOverride describes a `sift install` invocation's explicit flags,
// which synthesize a virtual layer above ProjectLocal per §4.1 step 4.
// Co-arguments such as --source/--registry/name@version/--runtime are
// warnings-and-discard when combined with an explicit --transport
// stdio/http invocation, recorded by the caller before building this.
type CLIOverride struct {
	Resource Resource
	Scope    Scope
}

// ApplyCLIOverride layers a single CLI-originated resource on top of an
// already-merged DesiredState at the highest precedence.
func ApplyCLIOverride(state *DesiredState, override CLIOverride) *DesiredState {
	key := ResourceKey{Kind: override.Resource.Kind, Name: override.Resource.Name}
	state.Set(key, Entry{Scope: override.Scope, Resource: override.Resource})
	return state
}
