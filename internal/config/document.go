package config

// document is the TOML-shaped intermediate form for one config layer,
// tagged the way settings.go tags its per-module structs. Decoding into
// this typed struct (rather than consuming raw *toml.Tree nodes
// throughout the package) keeps validation and merge logic working
// against plain Go values.
type document struct {
	Mcp      map[string]mcpDoc     `toml:"mcp"`
	Skill    map[string]skillDoc   `toml:"skill"`
	Projects map[string]projectDoc `toml:"projects"` // Global-only.
}

type mcpDoc struct {
	Source        string            `toml:"source"`
	Runtime       string            `toml:"runtime"`
	Args          []string          `toml:"args"`
	Transport     string            `toml:"transport"`
	URL           string            `toml:"url"`
	Targets       []string          `toml:"targets"`
	IgnoreTargets []string          `toml:"ignore_targets"`
	Env           map[string]string `toml:"env"`
	Headers       map[string]string `toml:"headers"`
}

type skillDoc struct {
	Source        string   `toml:"source"`
	Targets       []string `toml:"targets"`
	IgnoreTargets []string `toml:"ignore_targets"`
}

// projectDoc is the Global-only `[projects."<abs-path>"]` table providing
// ProjectLocal overrides keyed by absolute project path.
type projectDoc struct {
	Mcp   map[string]mcpDoc   `toml:"mcp"`
	Skill map[string]skillDoc `toml:"skill"`
}

func splitNameVersion(nameAtVersion string) (name, version string) {
	for i := len(nameAtVersion) - 1; i >= 0; i-- {
		if nameAtVersion[i] == '@' {
			return nameAtVersion[:i], nameAtVersion[i+1:]
		}
	}
	return nameAtVersion, ""
}

func (d mcpDoc) toResource(name string) Resource {
	n, version := splitNameVersion(name)
	transport := Transport(d.Transport)
	if transport == "" {
		transport = TransportStdio
	}
	return Resource{
		Kind:            KindMCP,
		Name:            n,
		Source:          d.Source,
		Runtime:         Runtime(d.Runtime),
		Args:            d.Args,
		Env:             d.Env,
		Headers:         d.Headers,
		Transport:       transport,
		URL:             d.URL,
		Targets:         d.Targets,
		IgnoreTargets:   d.IgnoreTargets,
		DeclaredVersion: version,
	}
}

func (d skillDoc) toResource(name string) Resource {
	n, version := splitNameVersion(name)
	return Resource{
		Kind:            KindSkill,
		Name:            n,
		Source:          d.Source,
		Targets:         d.Targets,
		IgnoreTargets:   d.IgnoreTargets,
		DeclaredVersion: version,
	}
}
