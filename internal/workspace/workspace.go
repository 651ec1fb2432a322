// Package workspace holds helpers acting on the workspace directory itself.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/conneroisu/venok/internal/config"
	verrors "github.com/conneroisu/venok/internal/errors"
)

// DeleteOutDirIfEnabled removes dir when compilerOptions.deleteOutDir is set
// for appName. A relative dir is resolved against cwd. Deleting the
// workspace itself, or one of its parents, is refused.
func DeleteOutDirIfEnabled(cfg *config.Config, appName, cwd, dir string) error {
	resolved, err := cfg.ForApp(appName)
	if err != nil {
		return err
	}
	if !resolved.CompilerOptions.DeleteOutDir {
		return nil
	}

	target := dir
	if !filepath.IsAbs(target) {
		target = filepath.Join(cwd, target)
	}
	target = filepath.Clean(target)
	if rel, err := filepath.Rel(target, filepath.Clean(cwd)); err == nil && !strings.HasPrefix(rel, "..") {
		return verrors.Configuration(nil, "Refusing to delete %q: it contains the workspace.", dir)
	}

	if err := os.RemoveAll(target); err != nil {
		return fmt.Errorf("failed to delete output directory: %w", err)
	}
	return nil
}
