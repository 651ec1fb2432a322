// Package actions implements the command behaviours behind the CLI.
package actions

import (
	"context"

	"github.com/jonboulle/clockwork"

	"github.com/conneroisu/venok/internal/assets"
	"github.com/conneroisu/venok/internal/compiler"
	"github.com/conneroisu/venok/internal/config"
	verrors "github.com/conneroisu/venok/internal/errors"
	"github.com/conneroisu/venok/internal/logging"
	"github.com/conneroisu/venok/internal/metrics"
	"github.com/conneroisu/venok/internal/plugins"
	"github.com/conneroisu/venok/internal/ui"
	"github.com/conneroisu/venok/internal/workspace"
)

// BuildOptions are the inputs of one build invocation.
type BuildOptions struct {
	// App selects a monorepo project; empty means the workspace root.
	App string
	// ConfigPath is an explicit workspace configuration file.
	ConfigPath string
	// TsconfigPath overrides the tsconfig resolved from configuration.
	TsconfigPath string
	// Builder overrides the configured builder.
	Builder             string
	Watch               bool
	WatchAssets         bool
	TypeCheck           bool
	PreserveWatchOutput bool
	// MetricsFile receives the build metrics in the prometheus text format.
	MetricsFile string
}

// BuildAction loads the workspace configuration and dispatches the build to
// the selected compiler driver.
type BuildAction struct {
	Cwd      string
	Resolver plugins.Resolver
	Console  *ui.Console
	Logger   logging.Logger
	Clock    clockwork.Clock
	// HandleSignals shuts watch sessions down on SIGINT and SIGTERM.
	HandleSignals bool
}

// NewBuildAction creates a build action for the workspace at cwd.
func NewBuildAction(cwd string, resolver plugins.Resolver, console *ui.Console, logger logging.Logger) *BuildAction {
	if logger == nil {
		logger = logging.Nop()
	}
	if console == nil {
		console = ui.Default()
	}
	return &BuildAction{
		Cwd:           cwd,
		Resolver:      resolver,
		Console:       console,
		Logger:        logger,
		Clock:         clockwork.NewRealClock(),
		HandleSignals: true,
	}
}

// Handle validates the command options, runs the build and reports a
// failure on the console. The returned error only signals the exit status.
func (a *BuildAction) Handle(ctx context.Context, opts BuildOptions) error {
	if opts.Builder != "" && !config.BuilderType(opts.Builder).Valid() {
		err := verrors.Configuration(nil, "Invalid builder option: %s. Available builders: %v", opts.Builder, config.AvailableBuilders)
		a.Console.Error("%s", err.Error())
		return err
	}
	if opts.TypeCheck && opts.Builder != string(config.BuilderSwc) {
		a.Console.Info("%s", ui.TypeCheckWithoutSwc)
	}
	opts.PreserveWatchOutput = opts.PreserveWatchOutput && opts.Watch

	err := a.RunBuild(ctx, opts, nil)
	if err != nil && !verrors.IsKind(err, verrors.KindDiagnostics) {
		a.Console.Error("%s", err.Error())
	}
	return err
}

// RunBuild performs the build. onSuccess is passed to the driver; when nil,
// asset watchers are released once the build is done.
func (a *BuildAction) RunBuild(ctx context.Context, opts BuildOptions, onSuccess func()) (err error) {
	var recorder metrics.Recorder = metrics.NoopRecorder{}
	var prom *metrics.PrometheusRecorder
	if opts.MetricsFile != "" {
		prom = metrics.NewPrometheusRecorder(nil)
		recorder = prom
	}

	op := logging.StartOperation(a.Logger, "build")
	start := a.Clock.Now()
	builderName := opts.Builder
	defer func() {
		outcome := metrics.OutcomeSuccess
		if err != nil {
			outcome = metrics.OutcomeFailed
			op.EndWithError(ctx, err)
		} else {
			op.End(ctx)
		}
		recorder.ObserveBuild(builderName, outcome, a.Clock.Since(start))
		if prom != nil {
			if werr := prom.WriteTextfile(opts.MetricsFile); werr != nil {
				a.Logger.Warn(ctx, werr, "writing metrics file", "path", opts.MetricsFile)
			}
		}
	}()

	cfg, err := config.NewLoader(a.Cwd).Load(opts.ConfigPath)
	if err != nil {
		return err
	}
	tsconfigPath, err := config.GetTscConfigPath(cfg, a.Cwd, opts.App, opts.TsconfigPath)
	if err != nil {
		return err
	}

	base := compiler.NewBase(a.Cwd, plugins.NewLoader(a.Resolver, a.Logger), a.Console, a.Logger)
	base.Metrics = recorder
	if a.Clock != nil {
		base.Clock = a.Clock
	}

	parsed, err := base.Provider.GetByConfigFilename(tsconfigPath)
	if err != nil {
		return err
	}
	outDir := parsed.Options.OutDir
	if outDir == "" {
		outDir = compiler.DefaultOutDir
	}

	builder, err := config.GetBuilder(cfg, opts.App, opts.Builder)
	if err != nil {
		return err
	}
	builderName = string(builder.Type)

	if err := workspace.DeleteOutDirIfEnabled(cfg, opts.App, a.Cwd, outDir); err != nil {
		return err
	}
	assetManager := assets.NewManager(a.Cwd, a.Logger)
	defer assetManager.CloseWatchers()
	if err := assetManager.Copy(ctx, cfg, opts.App, outDir, opts.WatchAssets); err != nil {
		return err
	}

	session := compiler.NewWatchSession(a.Logger)
	defer session.Shutdown()
	if opts.Watch && a.HandleSignals {
		session.HandleSignals()
	}

	extras := compiler.Extras{
		Watch:               opts.Watch,
		PreserveWatchOutput: opts.PreserveWatchOutput,
		TsOptions:           &parsed.Options,
		Assets:              assetManager,
		Session:             session,
	}
	a.Logger.Debug(ctx, "dispatching build",
		"builder", builderName, "tsconfig", tsconfigPath, "app", opts.App, "watch", opts.Watch)

	switch builder.Type {
	case config.BuilderTsc:
		if opts.Watch {
			return compiler.NewTscWatchDriver(base).Run(ctx, cfg, tsconfigPath, opts.App, extras, onSuccess)
		}
		err := compiler.NewTscDriver(base).Run(ctx, cfg, tsconfigPath, opts.App, extras, onSuccess)
		assetManager.CloseWatchers()
		return err
	case config.BuilderSwc:
		resolved, err := cfg.ForApp(opts.App)
		if err != nil {
			return err
		}
		extras.TypeCheck = opts.TypeCheck || resolved.CompilerOptions.TypeCheck
		return compiler.NewSwcDriver(base).Run(ctx, cfg, tsconfigPath, opts.App, extras, onSuccess)
	}
	return verrors.Configuration(nil, "Unsupported builder %q.", builderName)
}

var _ compiler.WatcherCloser = (*assets.Manager)(nil)
