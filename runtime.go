package main

import (
	"os"
	"path/filepath"

	"github.com/Lutra-Fs/sift/internal/cache"
	"github.com/Lutra-Fs/sift/internal/clients"
	"github.com/Lutra-Fs/sift/internal/config"
	docker "github.com/Lutra-Fs/sift/internal/dockerclient"
	"github.com/Lutra-Fs/sift/internal/orchestrator"
	"github.com/Lutra-Fs/sift/internal/registry"
	"github.com/Lutra-Fs/sift/internal/resolver"
	"github.com/Lutra-Fs/sift/internal/scope"
)

// runtime bundles the wiring every state-changing command needs: the
// merged declared state plus the C3-C7 stack pointed at the same paths.
type runtime struct {
	paths   config.Paths
	desired *config.DesiredState
	orch    *orchestrator.Orchestrator
}

func newRuntime() *runtime {
	paths, err := config.DefaultPaths()
	if err != nil {
		fatal(err)
	}
	desired, diags, err := config.Load(paths)
	if err != nil {
		fatal(err)
	}
	for _, d := range diags {
		if d.Level == config.Warning {
			warnf("%s", d.Message)
		}
	}

	store := cache.New(envOr("SIFT_HOME", filepath.Join(paths.GlobalDir, "cache")))
	res := resolver.New(registry.NewSet(), store)
	res.DockerDigest = docker.ImageDigest
	gate := &scope.Gate{LinkModePolicy: clients.Symlink}
	orch := orchestrator.New(res, store, gate)

	return &runtime{paths: paths, desired: desired, orch: orch}
}

// lockDir is where sift.lock lives: next to the project's sift.toml when
// one exists, the global config dir otherwise (global-only installs).
// With neither sift.toml present it falls back to the project dir.
func (rt *runtime) lockDir() string {
	if _, err := os.Stat(rt.paths.ProjectFile()); err != nil {
		if _, err := os.Stat(rt.paths.GlobalFile()); err == nil {
			return rt.paths.GlobalDir
		}
	}
	return rt.paths.ProjectDir
}

// layerPath returns the sift.toml layer a declaration should be written
// to: the global file for --global, the project file otherwise.
func (rt *runtime) layerPath(global bool) string {
	if global {
		return rt.paths.GlobalFile()
	}
	return rt.paths.ProjectFile()
}
