// Package compiler implements the compiler drivers behind the build command.
//
// TscDriver type-checks and emits in process, TscWatchDriver re-runs it on
// source changes, and SwcDriver delegates transpilation to the swc command
// line while an optional ForkedTypeChecker type-checks (and generates plugin
// metadata) alongside. Watch-mode resources are owned by a WatchSession whose
// Shutdown must run on every exit path.
package compiler

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/jonboulle/clockwork"

	"github.com/conneroisu/venok/internal/config"
	"github.com/conneroisu/venok/internal/logging"
	"github.com/conneroisu/venok/internal/metrics"
	"github.com/conneroisu/venok/internal/plugins"
	"github.com/conneroisu/venok/internal/toolchain"
	"github.com/conneroisu/venok/internal/ui"
)

// Driver compiles one application.
type Driver interface {
	// Run compiles the application. onSuccess, when non-nil, is called after
	// each successful compile; watch-mode drivers block until ctx is done or
	// the session receives a termination signal.
	Run(ctx context.Context, cfg *config.Config, tsconfigPath, appName string, extras Extras, onSuccess func()) error
}

// WatcherCloser releases asset watchers when no further rebuild will happen.
type WatcherCloser interface {
	CloseWatchers()
}

// Extras carry the per-invocation options that only some drivers use.
type Extras struct {
	Watch               bool
	TypeCheck           bool
	PreserveWatchOutput bool
	// TsOptions are the parsed compiler options of tsconfigPath.
	TsOptions *toolchain.CompilerOptions
	Assets    WatcherCloser
	// Session owns watch-mode processes and watchers. Required in watch mode.
	Session *WatchSession
}

func (e Extras) closeWatchers() {
	if e.Assets != nil {
		e.Assets.CloseWatchers()
	}
}

// Base holds the collaborators shared by every driver.
type Base struct {
	Cwd      string
	Loader   *plugins.Loader
	Provider *toolchain.ConfigProvider
	TS       *toolchain.TypeScript
	Console  *ui.Console
	Logger   logging.Logger
	Metrics  metrics.Recorder
	Clock    clockwork.Clock
}

// NewBase wires the default collaborators for the workspace at cwd.
func NewBase(cwd string, loader *plugins.Loader, console *ui.Console, logger logging.Logger) *Base {
	if logger == nil {
		logger = logging.Nop()
	}
	if console == nil {
		console = ui.Default()
	}
	return &Base{
		Cwd:      cwd,
		Loader:   loader,
		Provider: toolchain.NewConfigProvider(cwd),
		TS:       toolchain.NewTypeScript(cwd, logger),
		Console:  console,
		Logger:   logger.WithComponent("compiler"),
		Metrics:  metrics.NoopRecorder{},
		Clock:    clockwork.NewRealClock(),
	}
}

// LoadPlugins loads the plugins configured for appName, passing the
// application's source directory to readonly visitors.
func (b *Base) LoadPlugins(cfg *config.Config, tsconfigPath, appName string) (*plugins.MultiCompilerPlugins, error) {
	resolved, err := cfg.ForApp(appName)
	if err != nil {
		return nil, err
	}
	return b.Loader.Load(resolved.CompilerOptions.Plugins, plugins.Extras{
		PathToSource: b.PathToSource(cfg, tsconfigPath, appName),
	})
}

// PathToSource resolves the application's source root to an absolute path.
// A source root that already contains the tsconfig directory is taken
// relative to the workspace; otherwise it is relative to the tsconfig
// directory.
func (b *Base) PathToSource(cfg *config.Config, tsconfigPath, appName string) string {
	sourceRoot := cfg.SourceRootFor(appName)
	if filepath.IsAbs(sourceRoot) {
		return filepath.Clean(sourceRoot)
	}

	abs := tsconfigPath
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(b.Cwd, abs)
	}
	relativeRoot := "."
	if rel, err := filepath.Rel(b.Cwd, abs); err == nil {
		relativeRoot = filepath.Dir(rel)
	}
	if strings.Contains(filepath.Clean(sourceRoot), filepath.Clean(relativeRoot)) {
		return filepath.Join(b.Cwd, sourceRoot)
	}
	return filepath.Join(b.Cwd, relativeRoot, sourceRoot)
}
