package compiler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/conneroisu/venok/internal/config"
	verrors "github.com/conneroisu/venok/internal/errors"
	"github.com/conneroisu/venok/internal/watcher"
)

// SourceQuietPeriod is how long sources must stay unchanged before the tsc
// watch driver recompiles.
const SourceQuietPeriod = 250 * time.Millisecond

const clearScreen = "\x1bc"

// TscWatchDriver recompiles with TscDriver whenever TypeScript sources under
// the application's source directory change.
type TscWatchDriver struct {
	*Base
	tsc *TscDriver
}

// NewTscWatchDriver creates the watching variant of the in-process driver.
func NewTscWatchDriver(base *Base) *TscWatchDriver {
	return &TscWatchDriver{Base: base, tsc: NewTscDriver(base)}
}

// Run compiles once, then again after every debounced source change, until
// ctx is done or the session is signalled. Diagnostics are reported and
// watching continues; onSuccess runs after every clean compile.
func (d *TscWatchDriver) Run(ctx context.Context, cfg *config.Config, tsconfigPath, appName string, extras Extras, onSuccess func()) error {
	session := extras.Session
	if session == nil {
		return fmt.Errorf("tsc watch: no watch session")
	}

	source := d.PathToSource(cfg, tsconfigPath, appName)
	if _, err := os.Stat(source); err != nil {
		return verrors.Configuration(err, "Source directory %q does not exist.", source)
	}

	rebuild := make(chan struct{}, 1)
	fw, err := watcher.NewFileWatcher(d.Logger)
	if err != nil {
		return err
	}
	fw.AddFilter(watcher.ExtFilter(".ts", ".tsx", ".mts", ".cts"))
	fw.AddFilter(watcher.NoDeclarationFilter)
	fw.AddFilter(watcher.NoNodeModulesFilter)
	fw.AddFilter(watcher.NoGitFilter)
	debouncer := fw.Debounce(d.Clock, SourceQuietPeriod, func() {
		select {
		case rebuild <- struct{}{}:
		default:
		}
	})
	session.AttachWatcher(fw, debouncer)
	if err := fw.AddRecursive(source); err != nil {
		return err
	}
	fw.Start(ctx)

	compile := func() error {
		if !extras.PreserveWatchOutput {
			d.Console.Println(clearScreen)
		}
		d.Console.Tsc("Starting compilation in watch mode...")
		count, err := d.tsc.compile(ctx, cfg, tsconfigPath, appName)
		if err != nil {
			if aborts(err) {
				return err
			}
			d.Console.Error("%s", err.Error())
			return nil
		}
		if count > 0 {
			d.Console.TscError("Found %d error(s). Watching for file changes.", count)
			return nil
		}
		d.Console.Tsc("Found 0 errors. Watching for file changes.")
		if onSuccess != nil {
			onSuccess()
		}
		return nil
	}

	if err := compile(); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-session.Done():
			return nil
		case <-rebuild:
			d.Logger.Debug(ctx, "sources changed, recompiling", "source", filepath.ToSlash(source))
			if err := compile(); err != nil {
				d.Console.Error("%s", err.Error())
			}
		}
	}
}

// aborts reports whether err invalidates every later compile as well.
func aborts(err error) bool {
	for _, kind := range []verrors.Kind{
		verrors.KindConfiguration,
		verrors.KindToolchainMissing,
		verrors.KindPluginNotInstalled,
		verrors.KindInvalidPlugin,
	} {
		if verrors.IsKind(err, kind) {
			return true
		}
	}
	return false
}
