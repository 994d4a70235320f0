package clients

import (
	"fmt"
	"path/filepath"

	"github.com/Lutra-Fs/sift/internal/config"
	"github.com/Lutra-Fs/sift/internal/resolver"
)

// ClaudeDesktop manages mcpServers inside claude_desktop_config.json and
// discovers skills by filesystem scan of its Documents/skills directory.
// It has no notion of a project, so it only accepts Global scope.
type ClaudeDesktop struct{}

func (ClaudeDesktop) ID() string { return "claude-desktop" }

func (ClaudeDesktop) Capabilities() Capabilities {
	return Capabilities{
		ScopeSupport: map[config.Scope]bool{
			config.Global: true,
		},
		SkillDelivery: DeliveryFilesystem,
		MCPTransports: map[config.Transport]bool{
			config.TransportStdio: true,
			config.TransportHTTP:  true,
		},
		AllowsCustomHeaders: true,
		SymlinkAllowed:      true,
	}
}

func (c ClaudeDesktop) PlanJSON(scope config.Scope, r config.Resource, resolved resolver.Resolved, env Environment) (*ManagedJsonPlan, error) {
	caps := c.Capabilities()
	if !caps.SupportsScope(scope) {
		return nil, fmt.Errorf("%s: scope %s unsupported", c.ID(), scope)
	}
	if !caps.SupportsTransport(r.Transport) {
		return nil, unsupportedTransport(c.ID(), r)
	}
	return &ManagedJsonPlan{
		ConfigFilePath: filepath.Join(env.HomeDir, "Library", "Application Support", "Claude", "claude_desktop_config.json"),
		KeyPath:        []string{"mcpServers", r.Name},
		RenderedValue:  renderManagedValue(r, resolved, defaultCachePath(c.ID(), env)),
	}, nil
}

func (c ClaudeDesktop) PlanRemoval(scope config.Scope, name string, env Environment) (*ManagedJsonPlan, error) {
	if !c.Capabilities().SupportsScope(scope) {
		return nil, fmt.Errorf("%s: scope %s unsupported", c.ID(), scope)
	}
	return &ManagedJsonPlan{
		ConfigFilePath: filepath.Join(env.HomeDir, "Library", "Application Support", "Claude", "claude_desktop_config.json"),
		KeyPath:        []string{"mcpServers", name},
	}, nil
}

func (c ClaudeDesktop) PlanSkillDelivery(scope config.Scope, name string, linkMode LinkMode, env Environment) (*SkillDeliveryPlan, error) {
	if !c.Capabilities().SupportsScope(scope) {
		return nil, fmt.Errorf("%s: scope %s unsupported for skills", c.ID(), scope)
	}
	return &SkillDeliveryPlan{
		DestinationDir: filepath.Join(env.HomeDir, "Documents", "Claude", "skills", name),
		RequestedMode:  linkMode,
	}, nil
}

// ClaudeCode manages .mcp.json at ProjectShared/ProjectLocal scope and
// ~/.claude.json at Global scope, and discovers skills via a filesystem
// scan of .claude/skills (~/.claude/skills at Global scope).
type ClaudeCode struct{}

func (ClaudeCode) ID() string { return "claude-code" }

func (ClaudeCode) Capabilities() Capabilities {
	return Capabilities{
		ScopeSupport: map[config.Scope]bool{
			config.Global:        true,
			config.ProjectShared: true,
			config.ProjectLocal:  true,
		},
		SkillDelivery: DeliveryFilesystem,
		MCPTransports: map[config.Transport]bool{
			config.TransportStdio: true,
			config.TransportHTTP:  true,
		},
		AllowsCustomHeaders: true,
		SymlinkAllowed:      true,
	}
}

func (c ClaudeCode) PlanJSON(scope config.Scope, r config.Resource, resolved resolver.Resolved, env Environment) (*ManagedJsonPlan, error) {
	caps := c.Capabilities()
	if !caps.SupportsScope(scope) {
		return nil, fmt.Errorf("%s: scope %s unsupported", c.ID(), scope)
	}
	if !caps.SupportsTransport(r.Transport) {
		return nil, unsupportedTransport(c.ID(), r)
	}
	path := configPathForScope(scope, ".mcp.json", filepath.Join(env.HomeDir, ".claude.json"))
	return &ManagedJsonPlan{
		ConfigFilePath: path,
		KeyPath:        []string{"mcpServers", r.Name},
		RenderedValue:  renderManagedValue(r, resolved, defaultCachePath(c.ID(), env)),
	}, nil
}

func (c ClaudeCode) PlanRemoval(scope config.Scope, name string, env Environment) (*ManagedJsonPlan, error) {
	if !c.Capabilities().SupportsScope(scope) {
		return nil, fmt.Errorf("%s: scope %s unsupported", c.ID(), scope)
	}
	path := configPathForScope(scope, ".mcp.json", filepath.Join(env.HomeDir, ".claude.json"))
	return &ManagedJsonPlan{ConfigFilePath: path, KeyPath: []string{"mcpServers", name}}, nil
}

func (c ClaudeCode) PlanSkillDelivery(scope config.Scope, name string, linkMode LinkMode, env Environment) (*SkillDeliveryPlan, error) {
	if !c.Capabilities().SupportsScope(scope) {
		return nil, fmt.Errorf("%s: scope %s unsupported for skills", c.ID(), scope)
	}
	dest := filepath.Join(".claude", "skills", name)
	if scope == config.Global {
		dest = filepath.Join(env.HomeDir, ".claude", "skills", name)
	}
	return &SkillDeliveryPlan{DestinationDir: dest, RequestedMode: linkMode}, nil
}

// VSCode manages the servers section of .vscode/mcp.json (project) or of
// mcp.json in the VS Code user directory (global); it has no skill concept
// of its own, so SkillDelivery is None.
type VSCode struct{}

func (VSCode) ID() string { return "vscode" }

func (VSCode) Capabilities() Capabilities {
	return Capabilities{
		ScopeSupport: map[config.Scope]bool{
			config.Global:        true,
			config.ProjectShared: true,
		},
		SkillDelivery: DeliveryNone,
		MCPTransports: map[config.Transport]bool{
			config.TransportStdio: true,
			config.TransportHTTP:  true,
		},
		AllowsCustomHeaders: true,
		SymlinkAllowed:      true,
	}
}

func (c VSCode) PlanJSON(scope config.Scope, r config.Resource, resolved resolver.Resolved, env Environment) (*ManagedJsonPlan, error) {
	caps := c.Capabilities()
	if !caps.SupportsScope(scope) {
		return nil, fmt.Errorf("%s: scope %s unsupported", c.ID(), scope)
	}
	if !caps.SupportsTransport(r.Transport) {
		return nil, unsupportedTransport(c.ID(), r)
	}
	path := configPathForScope(scope, filepath.Join(".vscode", "mcp.json"), filepath.Join(vscodeUserDir(env), "mcp.json"))
	return &ManagedJsonPlan{
		ConfigFilePath: path,
		KeyPath:        []string{"servers", r.Name},
		RenderedValue:  renderManagedValue(r, resolved, defaultCachePath(c.ID(), env)),
	}, nil
}

func (c VSCode) PlanRemoval(scope config.Scope, name string, env Environment) (*ManagedJsonPlan, error) {
	if !c.Capabilities().SupportsScope(scope) {
		return nil, fmt.Errorf("%s: scope %s unsupported", c.ID(), scope)
	}
	path := configPathForScope(scope, filepath.Join(".vscode", "mcp.json"), filepath.Join(vscodeUserDir(env), "mcp.json"))
	return &ManagedJsonPlan{ConfigFilePath: path, KeyPath: []string{"servers", name}}, nil
}

func (c VSCode) PlanSkillDelivery(scope config.Scope, name string, linkMode LinkMode, env Environment) (*SkillDeliveryPlan, error) {
	return nil, fmt.Errorf("%s: does not support skill delivery", c.ID())
}

// GeminiCLI manages mcpServers in ~/.gemini/settings.json (global) or
// .gemini/settings.json (project), and discovers skills via
// ConfigReference rather than a directory scan.
type GeminiCLI struct{}

func (GeminiCLI) ID() string { return "gemini-cli" }

func (GeminiCLI) Capabilities() Capabilities {
	return Capabilities{
		ScopeSupport: map[config.Scope]bool{
			config.Global:        true,
			config.ProjectShared: true,
		},
		SkillDelivery: DeliveryConfigReference,
		MCPTransports: map[config.Transport]bool{
			config.TransportStdio: true,
		},
		AllowsCustomHeaders: false,
		SymlinkAllowed:      true,
	}
}

func (c GeminiCLI) PlanJSON(scope config.Scope, r config.Resource, resolved resolver.Resolved, env Environment) (*ManagedJsonPlan, error) {
	caps := c.Capabilities()
	if !caps.SupportsScope(scope) {
		return nil, fmt.Errorf("%s: scope %s unsupported", c.ID(), scope)
	}
	if !caps.SupportsTransport(r.Transport) {
		return nil, unsupportedTransport(c.ID(), r)
	}
	path := configPathForScope(scope, filepath.Join(".gemini", "settings.json"), filepath.Join(env.HomeDir, ".gemini", "settings.json"))
	return &ManagedJsonPlan{
		ConfigFilePath: path,
		KeyPath:        []string{"mcpServers", r.Name},
		RenderedValue:  renderManagedValue(r, resolved, defaultCachePath(c.ID(), env)),
	}, nil
}

func (c GeminiCLI) PlanRemoval(scope config.Scope, name string, env Environment) (*ManagedJsonPlan, error) {
	if !c.Capabilities().SupportsScope(scope) {
		return nil, fmt.Errorf("%s: scope %s unsupported", c.ID(), scope)
	}
	path := configPathForScope(scope, filepath.Join(".gemini", "settings.json"), filepath.Join(env.HomeDir, ".gemini", "settings.json"))
	return &ManagedJsonPlan{ConfigFilePath: path, KeyPath: []string{"mcpServers", name}}, nil
}

func (c GeminiCLI) PlanSkillDelivery(scope config.Scope, name string, linkMode LinkMode, env Environment) (*SkillDeliveryPlan, error) {
	if !c.Capabilities().SupportsScope(scope) {
		return nil, fmt.Errorf("%s: scope %s unsupported for skills", c.ID(), scope)
	}
	// ConfigReference delivery: the skill lands on disk at the
	// project-relative .sift/skills/<name>, at either scope. This plan does
	// not write that path into settings.json.
	dest := filepath.Join(".sift", "skills", name)
	return &SkillDeliveryPlan{DestinationDir: dest, RequestedMode: linkMode}, nil
}

// Codex manages mcp_servers in ~/.codex/config.toml; modeled here with the
// same JSON plan shape as the others. C7 serializes every ManagedJsonPlan
// as JSON, this one included: the file is read and written as JSON and is
// not rendered as TOML.
type Codex struct{}

func (Codex) ID() string { return "codex" }

func (Codex) Capabilities() Capabilities {
	return Capabilities{
		ScopeSupport: map[config.Scope]bool{
			config.Global: true,
		},
		SkillDelivery: DeliveryNone,
		MCPTransports: map[config.Transport]bool{
			config.TransportStdio: true,
		},
		AllowsCustomHeaders: false,
		SymlinkAllowed:      false,
	}
}

func (c Codex) PlanJSON(scope config.Scope, r config.Resource, resolved resolver.Resolved, env Environment) (*ManagedJsonPlan, error) {
	caps := c.Capabilities()
	if !caps.SupportsScope(scope) {
		return nil, fmt.Errorf("%s: scope %s unsupported", c.ID(), scope)
	}
	if !caps.SupportsTransport(r.Transport) {
		return nil, unsupportedTransport(c.ID(), r)
	}
	return &ManagedJsonPlan{
		ConfigFilePath: filepath.Join(env.HomeDir, ".codex", "config.toml"),
		KeyPath:        []string{"mcp_servers", r.Name},
		RenderedValue:  renderManagedValue(r, resolved, defaultCachePath(c.ID(), env)),
	}, nil
}

func (c Codex) PlanRemoval(scope config.Scope, name string, env Environment) (*ManagedJsonPlan, error) {
	if !c.Capabilities().SupportsScope(scope) {
		return nil, fmt.Errorf("%s: scope %s unsupported", c.ID(), scope)
	}
	return &ManagedJsonPlan{
		ConfigFilePath: filepath.Join(env.HomeDir, ".codex", "config.toml"),
		KeyPath:        []string{"mcp_servers", name},
	}, nil
}

func (c Codex) PlanSkillDelivery(scope config.Scope, name string, linkMode LinkMode, env Environment) (*SkillDeliveryPlan, error) {
	return nil, fmt.Errorf("%s: does not support skill delivery", c.ID())
}

func vscodeUserDir(env Environment) string {
	// VS Code's user settings live under a platform-specific app-data
	// directory; HomeDir is the stable anchor available at plan time.
	return filepath.Join(env.HomeDir, ".config", "Code", "User")
}

// configPathForScope picks the project-relative path for ProjectShared
// and ProjectLocal scope and the home-relative path for Global; no
// adapter gives ProjectLocal a file of its own.
func configPathForScope(scope config.Scope, projectRelative, globalPath string) string {
	if scope == config.ProjectShared || scope == config.ProjectLocal {
		return projectRelative
	}
	return globalPath
}
