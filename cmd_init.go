package main

import (
	"flag"
	"os"
	"path/filepath"

	"github.com/Lutra-Fs/sift/internal/config"
)

// cmdInit writes an empty sift.toml layer if one doesn't already exist,
// at the project or global path depending on --global.
func cmdInit(args []string) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	global := fs.Bool("global", false, "initialize the global layer instead of the project layer")
	fs.Parse(args)

	paths, err := config.DefaultPaths()
	if err != nil {
		fatal(err)
	}
	path := paths.ProjectFile()
	if *global {
		path = paths.GlobalFile()
	}

	if _, err := os.Stat(path); err == nil {
		infof("%s already exists", path)
		return
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		fatal(err)
	}
	if err := os.WriteFile(path, []byte("# sift.toml — see `sift help` for mcp.<name> / skill.<name> syntax\n"), 0o644); err != nil {
		fatal(err)
	}
	successf("wrote %s", path)
}
