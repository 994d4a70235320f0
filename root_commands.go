package main

import (
	"sync"
	"sync/atomic"
)

// rootCommandHandler dispatches one top-level CLI verb. The map built by
// buildRootCommandHandlers is cached behind an atomic.Pointer so repeated
// invocations within the same process (tests exercising main in a loop)
// don't rebuild it, the same lazy-singleton-table shape the teacher's own
// dispatch table used for its much larger bridge-command surface.
type rootCommandHandler func(args []string)

var (
	rootCommandsMu  sync.Mutex
	rootCommandsPtr atomic.Pointer[map[string]rootCommandHandler]
)

func dispatchRootCommand(cmd string, args []string) bool {
	handlers := getRootCommandHandlers()
	handler, ok := handlers[cmd]
	if !ok {
		return false
	}
	handler(args)
	return true
}

func buildRootCommandHandlers() map[string]rootCommandHandler {
	handlers := make(map[string]rootCommandHandler, 16)
	register := func(handler rootCommandHandler, names ...string) {
		for _, name := range names {
			handlers[name] = handler
		}
	}

	register(func(_ []string) { printVersion() }, "version", "--version", "-v")
	register(func(_ []string) { usage() }, "help", "-h", "--help")
	register(cmdInit, "init")
	register(cmdInstall, "install", "add")
	register(cmdUninstall, "uninstall", "rm")
	register(cmdUpgrade, "upgrade")
	register(cmdApply, "apply")
	register(cmdStatus, "status")
	register(cmdList, "list", "ls")
	register(cmdDoctor, "doctor")
	register(cmdMCP, "mcp")
	register(cmdSkill, "skill")
	register(cmdRegistry, "registry")

	return handlers
}

func getRootCommandHandlers() map[string]rootCommandHandler {
	if ptr := rootCommandsPtr.Load(); ptr != nil {
		return *ptr
	}
	rootCommandsMu.Lock()
	defer rootCommandsMu.Unlock()
	if ptr := rootCommandsPtr.Load(); ptr != nil {
		return *ptr
	}
	handlers := buildRootCommandHandlers()
	rootCommandsPtr.Store(&handlers)
	return handlers
}

func resetRootCommandHandlersForTest() {
	rootCommandsMu.Lock()
	rootCommandsPtr.Store(nil)
	rootCommandsMu.Unlock()
}
