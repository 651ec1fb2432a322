package toolchain

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	verrors "github.com/conneroisu/venok/internal/errors"
)

// Install hints for the external tools the drivers shell out to.
const (
	InstallTypeScript = "npm i -D typescript"
	InstallSwc        = "npm i -D @swc/cli @swc/core"
)

// LookPath finds a workspace-local node binary under node_modules/.bin,
// walking up from dir, and falls back to $PATH.
func LookPath(dir, name string) (string, error) {
	names := []string{name}
	if runtime.GOOS == "windows" {
		names = []string{name + ".cmd", name + ".exe", name}
	}
	for current := dir; ; current = filepath.Dir(current) {
		for _, n := range names {
			candidate := filepath.Join(current, "node_modules", ".bin", n)
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate, nil
			}
		}
		if filepath.Dir(current) == current {
			break
		}
	}
	return exec.LookPath(name)
}

// LookTsc locates the TypeScript compiler.
func LookTsc(dir string) (string, error) {
	path, err := LookPath(dir, "tsc")
	if err != nil {
		return "", verrors.ToolchainMissing("typescript", InstallTypeScript)
	}
	return path, nil
}

// LookSwc locates the swc command line.
func LookSwc(dir string) (string, error) {
	path, err := LookPath(dir, "swc")
	if err != nil {
		return "", verrors.ToolchainMissing("@swc/cli", InstallSwc)
	}
	return path, nil
}
