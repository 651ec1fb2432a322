// Package assets copies non-compiled files such as templates, JSON fixtures
// or GraphQL schemas into the build output, and keeps them in sync while
// watching.
package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/conneroisu/venok/internal/config"
	"github.com/conneroisu/venok/internal/logging"
	"github.com/conneroisu/venok/internal/watcher"
)

// Manager copies the configured assets of an application and owns the
// watchers started for them.
type Manager struct {
	cwd    string
	logger logging.Logger

	mu       sync.Mutex
	watchers []*watcher.FileWatcher
}

// NewManager creates a manager resolving asset globs against cwd.
func NewManager(cwd string, logger logging.Logger) *Manager {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Manager{cwd: cwd, logger: logger.WithComponent("assets")}
}

// rule is an asset entry resolved to absolute paths.
type rule struct {
	sourceRoot string
	base       string
	include    string
	exclude    string
	outDir     string
	flat       bool
	watch      bool
}

// Copy copies every asset of appName into outDir. Entries with watching
// enabled, by the entry, by compilerOptions.watchAssets or by watchAssets,
// are copied through a watcher that also mirrors later additions, changes
// and removals until CloseWatchers or ctx cancellation.
func (m *Manager) Copy(ctx context.Context, cfg *config.Config, appName, outDir string, watchAssets bool) error {
	resolved, err := cfg.ForApp(appName)
	if err != nil {
		return err
	}
	entries := resolved.CompilerOptions.Assets
	if len(entries) == 0 {
		return nil
	}
	watchAll := watchAssets || resolved.CompilerOptions.WatchAssets

	for _, entry := range entries {
		r := m.resolve(entry, resolved.SourceRoot, outDir)
		r.watch = r.watch || watchAll
		if r.watch {
			if err := m.watch(ctx, r); err != nil {
				return err
			}
			continue
		}
		if err := m.copyAll(r); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) resolve(entry config.AssetEntry, sourceRoot, outDir string) rule {
	root := m.abs(sourceRoot)
	pattern := filepath.ToSlash(filepath.Join(root, entry.Include))
	base, include := doublestar.SplitPattern(pattern)

	r := rule{
		sourceRoot: root,
		base:       filepath.FromSlash(base),
		include:    include,
		outDir:     m.abs(outDir),
		flat:       entry.Flat,
		watch:      entry.WatchAssets,
	}
	if entry.OutDir != "" {
		r.outDir = m.abs(entry.OutDir)
	}
	if entry.Exclude != "" {
		r.exclude = filepath.ToSlash(filepath.Join(root, entry.Exclude))
	}
	return r
}

func (m *Manager) abs(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(m.cwd, path)
}

// matches reports whether path is selected by the rule. Version control
// metadata is never an asset.
func (r rule) matches(path string) bool {
	if !watcher.NoGitFilter(path) {
		return false
	}
	rel, err := filepath.Rel(r.base, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return false
	}
	if ok, _ := doublestar.Match(r.include, filepath.ToSlash(rel)); !ok {
		return false
	}
	if r.exclude != "" {
		if excluded, _ := doublestar.Match(r.exclude, filepath.ToSlash(path)); excluded {
			return false
		}
	}
	return true
}

// destination maps a source file to its place under outDir. Files are
// placed relative to the source root, or relative to the glob base when
// they live outside it.
func (r rule) destination(path string) string {
	if r.flat {
		return filepath.Join(r.outDir, filepath.Base(path))
	}
	rel, err := filepath.Rel(r.sourceRoot, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		rel, _ = filepath.Rel(r.base, path)
	}
	return filepath.Join(r.outDir, rel)
}

func (m *Manager) copyAll(r rule) error {
	if _, err := os.Stat(r.base); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	matches, err := doublestar.Glob(os.DirFS(r.base), r.include, doublestar.WithFilesOnly())
	if err != nil {
		return fmt.Errorf("expanding asset glob %q: %w", r.include, err)
	}
	for _, match := range matches {
		path := filepath.Join(r.base, filepath.FromSlash(match))
		if !r.matches(path) {
			continue
		}
		if err := copyFile(path, r.destination(path)); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) watch(ctx context.Context, r rule) error {
	if err := os.MkdirAll(r.base, 0o755); err != nil {
		return err
	}
	fw, err := watcher.NewFileWatcher(m.logger)
	if err != nil {
		return err
	}
	fw.AddFilter(r.matches)
	fw.AddHandler(func(event watcher.ChangeEvent) {
		dest := r.destination(event.Path)
		switch event.Type {
		case watcher.EventTypeCreated, watcher.EventTypeModified:
			if err := copyFile(event.Path, dest); err != nil {
				m.logger.Warn(ctx, err, "copying asset", "path", event.Path)
			}
		case watcher.EventTypeDeleted, watcher.EventTypeRenamed:
			if _, err := os.Stat(event.Path); err == nil {
				return
			}
			if err := os.Remove(dest); err != nil && !errors.Is(err, fs.ErrNotExist) {
				m.logger.Warn(ctx, err, "removing asset", "path", dest)
			}
		}
	})
	if err := fw.AddRecursive(r.base); err != nil {
		_ = fw.Close()
		return err
	}

	m.mu.Lock()
	m.watchers = append(m.watchers, fw)
	m.mu.Unlock()

	fw.Start(ctx)
	// Files present before the watch began are copied once up front.
	return m.copyAll(r)
}

// CloseWatchers stops every asset watcher. It is safe to call more than
// once.
func (m *Manager) CloseWatchers() {
	m.mu.Lock()
	watchers := m.watchers
	m.watchers = nil
	m.mu.Unlock()

	for _, fw := range watchers {
		if err := fw.Close(); err != nil {
			m.logger.Warn(context.Background(), err, "closing asset watcher")
		}
	}
}

func copyFile(src, dest string) error {
	source, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open asset: %w", err)
	}
	defer source.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	target, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create asset: %w", err)
	}
	if _, err := io.Copy(target, source); err != nil {
		target.Close()
		return fmt.Errorf("failed to copy asset: %w", err)
	}
	return target.Close()
}
