package main

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/mattn/go-runewidth"
	"golang.org/x/term"
)

func usage() {
	fmt.Print(colorizeHelp(`sift [command] [args]

Static configuration and dependency manager for MCP servers and Agent
Skills consumed by AI coding clients (Claude Desktop, Claude Code, VS
Code, Gemini CLI, Codex).

Usage:
  sift <command> [args...]
  sift help | -h | --help
  sift version | --version | -v

Project lifecycle:
  sift init [--global]                       write an empty sift.toml layer
  sift install | add <mcp|skill> <name>@<source> [--target <client>...] [--global]
  sift uninstall | rm <mcp|skill> <name> [--global]
  sift upgrade                               re-resolve and re-deliver every declared resource
  sift apply [--force] [--prune]             reconcile declared state into every client config
  sift status                                compare declared state against sift.lock
  sift list | ls                             list resources from the merged declared state

mcp:
  sift mcp add <name> --source <source> [--runtime node|bun|uv|docker] [--transport stdio|http] [--url <url>] [--target <client>...] [--global]
  sift mcp remove <name> [--global]
  sift mcp list

skill:
  sift skill add <name> --source <source> [--target <client>...] [--global]
  sift skill remove <name> [--global]
  sift skill list
  sift skill eject <name>                    copy cached content into ./skills/<name> and stop managing it
  sift skill un-eject <name> --source <source> [--version <v>]   revert an ejected skill to cache-managed delivery

registry:
  sift registry list                         show the registry adapters sift resolves against

doctor:
  sift doctor                                check which supported clients are installed

Source schemes:
  registry:<namespace>/<name>   git:<url>[@ref]   local:<path>   http(s):<url>
`))
}

const siftVersion = "v0.1.0"

func printVersion() {
	fmt.Println(siftVersion)
}

func envOr(key, def string) string {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return def
	}
	return val
}

func fatal(err error) {
	_, _ = fmt.Fprintln(os.Stderr, styleError(err.Error()))
	os.Exit(1)
}

func usageError(format string, args ...interface{}) {
	_, _ = fmt.Fprintln(os.Stderr, styleError("usage error:")+" "+fmt.Sprintf(format, args...))
	os.Exit(2)
}

func isValidSlug(name string) bool {
	if strings.TrimSpace(name) == "" {
		return false
	}
	for _, ch := range name {
		if (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9') || ch == '-' || ch == '_' {
			continue
		}
		return false
	}
	return true
}

var ansiEnabled = initAnsiEnabled()

func initAnsiEnabled() bool {
	if strings.TrimSpace(os.Getenv("NO_COLOR")) != "" || strings.TrimSpace(os.Getenv("SIFT_NO_COLOR")) != "" {
		return false
	}
	if strings.EqualFold(strings.TrimSpace(os.Getenv("TERM")), "dumb") {
		return false
	}
	if force := strings.TrimSpace(os.Getenv("SIFT_COLOR")); force != "" {
		return force == "1" || strings.EqualFold(force, "true")
	}
	if force := strings.TrimSpace(os.Getenv("CLICOLOR_FORCE")); force != "" && force != "0" {
		return true
	}
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func ansi(codes ...string) string {
	return "\x1b[" + strings.Join(codes, ";") + "m"
}

func colorize(s string, codes ...string) string {
	if !ansiEnabled || s == "" {
		return s
	}
	return ansi(codes...) + s + ansi("0")
}

func styleHeading(s string) string { return colorize(s, "1", "36") }
func styleCmd(s string) string     { return colorize(s, "1", "32") }
func styleFlag(s string) string    { return colorize(s, "33") }
func styleArg(s string) string     { return colorize(s, "35") }
func styleDim(s string) string     { return colorize(s, "90") }
func styleInfo(s string) string    { return colorize(s, "36") }
func styleSuccess(s string) string { return colorize(s, "32") }
func styleWarn(s string) string    { return colorize(s, "33") }
func styleError(s string) string   { return colorize(s, "31") }
func styleUsage(s string) string   { return colorize(s, "1", "33") }

func styleStatus(s string) string {
	val := strings.ToLower(strings.TrimSpace(s))
	switch val {
	case "ok", "installed", "managed", "ready", "done", "success", "yes", "true":
		return styleSuccess(s)
	case "warning", "warn", "pending", "ejected":
		return styleWarn(s)
	case "failed", "error", "missing", "not found", "no", "false", "orphaned":
		return styleError(s)
	default:
		return styleInfo(s)
	}
}

func printUnknown(kind, cmd string) {
	kind = strings.TrimSpace(kind)
	if kind != "" {
		kind = kind + " "
	}
	fmt.Fprintf(os.Stderr, "%s %s%s\n", styleError("unknown"), kind+"command:", styleCmd(cmd))
}

func warnf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, styleWarn("warning:")+" "+msg)
}

func infof(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if containsANSI(msg) {
		fmt.Println(msg)
		return
	}
	fmt.Println(styleInfo(msg))
}

func successf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if containsANSI(msg) {
		fmt.Println(msg)
		return
	}
	fmt.Println(styleSuccess(msg))
}

func colorizeHelp(text string) string {
	if !ansiEnabled {
		return text
	}
	sectionRe := regexp.MustCompile(`^[A-Za-z][A-Za-z0-9 /-]*:$`)
	cmdRe := regexp.MustCompile(`\b(sift|mcp|skill|registry|doctor)\b`)
	flagRe := regexp.MustCompile(`--[a-zA-Z0-9-]+`)
	argRe := regexp.MustCompile(`<[^>]+>`)

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if sectionRe.MatchString(trimmed) {
			lines[i] = indentLine(line, styleHeading(trimmed))
			continue
		}
		if strings.HasPrefix(trimmed, "Usage:") {
			lines[i] = indentLine(line, styleHeading(trimmed))
			continue
		}
		line = flagRe.ReplaceAllStringFunc(line, styleFlag)
		line = argRe.ReplaceAllStringFunc(line, styleArg)
		line = cmdRe.ReplaceAllStringFunc(line, styleCmd)
		lines[i] = line
	}
	return strings.Join(lines, "\n")
}

func indentLine(line, replacement string) string {
	prefix := line[:len(line)-len(strings.TrimLeft(line, " "))]
	return prefix + replacement
}

var ansiStripRe = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func stripANSIForPad(s string) string {
	return ansiStripRe.ReplaceAllString(s, "")
}

func displayWidth(s string) int {
	return runewidth.StringWidth(stripANSIForPad(s))
}

func padRightANSI(s string, width int) string {
	visible := displayWidth(s)
	if visible >= width {
		return s
	}
	return s + strings.Repeat(" ", width-visible)
}

func containsANSI(s string) bool {
	return ansiStripRe.MatchString(s)
}
