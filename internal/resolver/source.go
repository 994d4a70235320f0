package resolver

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ParsedSource is a declared source string split into its scheme and the
// remainder, with the git "@ref" suffix (if any) separated out.
type ParsedSource struct {
	Scheme string // "registry" | "git" | "local" | "http" | "https"
	Rest   string
	Ref    string // git only
}

// ParseSource splits a declared source of the form "scheme:rest[@ref]".
// A source without a scheme is an error here; NormalizeSource is not
// applied to declared sources on this path.
func ParseSource(source string) (ParsedSource, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return ParsedSource{}, fmt.Errorf("empty source")
	}
	idx := strings.Index(source, ":")
	if idx < 0 {
		return ParsedSource{}, fmt.Errorf("source %q has no scheme", source)
	}
	scheme := source[:idx]
	rest := source[idx+1:]
	if scheme == "git" {
		if at := strings.LastIndex(rest, "@"); at >= 0 && !strings.Contains(rest[at:], "/") {
			return ParsedSource{Scheme: scheme, Rest: rest[:at], Ref: rest[at+1:]}, nil
		}
	}
	return ParsedSource{Scheme: scheme, Rest: rest}, nil
}

// NormalizeSource rewrites a bare path or URL (as typed via --source) into
// its canonical "local:", "git:" or "http:" form per spec.md §4.3's normalization
// rule, reporting whether a rewrite happened so the caller can emit the
// normalization warning.
func NormalizeSource(raw string) (normalized string, changed bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return raw, false
	}
	for _, scheme := range []string{"registry:", "git:", "local:", "http:", "https:"} {
		if strings.HasPrefix(raw, scheme) {
			return raw, false
		}
	}
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		if strings.HasSuffix(raw, ".git") || strings.Contains(raw, "github.com") || strings.Contains(raw, "gitlab.com") {
			return "git:" + raw, true
		}
		return "http:" + raw, true
	}
	if strings.HasPrefix(raw, "git@") {
		return "git:" + raw, true
	}
	if filepath.IsAbs(raw) || strings.HasPrefix(raw, ".") || strings.HasPrefix(raw, "~") {
		return "local:" + raw, true
	}
	return "local:" + raw, true
}
