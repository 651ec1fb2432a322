package pathalias

import (
	"os"
	"path/filepath"
	"strings"
)

// ExternalResolver decides whether a bare specifier resolves to an installed
// dependency. Externally resolvable names take precedence over aliases.
type ExternalResolver interface {
	IsExternal(specifier string) bool
}

// NodeModules resolves specifiers the way node's require.resolve does for
// packages: node_modules/<specifier> as a file, with a script extension, or
// as a package directory, walking up from Dir.
type NodeModules struct {
	Dir string
}

var requireExtensions = []string{".js", ".json", ".node"}

// IsExternal implements ExternalResolver.
func (n NodeModules) IsExternal(specifier string) bool {
	if specifier == "" || specifier[0] == '.' || filepath.IsAbs(specifier) || strings.HasPrefix(specifier, "node:") {
		return false
	}
	for current := n.Dir; ; current = filepath.Dir(current) {
		candidate := filepath.Join(current, "node_modules", filepath.FromSlash(specifier))
		if resolvesAsModule(candidate) {
			return true
		}
		if filepath.Dir(current) == current {
			return false
		}
	}
}

func resolvesAsModule(candidate string) bool {
	if isFile(candidate) {
		return true
	}
	for _, ext := range requireExtensions {
		if isFile(candidate + ext) {
			return true
		}
	}
	info, err := os.Stat(candidate)
	if err != nil || !info.IsDir() {
		return false
	}
	if main, ok := packageMain(candidate); ok {
		if resolvesAsFile(main) {
			return true
		}
	}
	for _, ext := range requireExtensions {
		if isFile(filepath.Join(candidate, "index"+ext)) {
			return true
		}
	}
	return false
}

func resolvesAsFile(path string) bool {
	if isFile(path) {
		return true
	}
	for _, ext := range requireExtensions {
		if isFile(path + ext) {
			return true
		}
	}
	return isFile(filepath.Join(path, "index.js"))
}
