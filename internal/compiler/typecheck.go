package compiler

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/conneroisu/venok/internal/config"
	verrors "github.com/conneroisu/venok/internal/errors"
	"github.com/conneroisu/venok/internal/plugins"
	"github.com/conneroisu/venok/internal/toolchain"
	"github.com/conneroisu/venok/internal/ui"
)

// TypeCheckCommand is the hidden subcommand that runs a forked type checker.
const TypeCheckCommand = "__typecheck"

// noApp is how a missing application name travels on the command line.
const noApp = "undefined"

// TypeCheckArgs is the positional argument vector of the forked type checker.
type TypeCheckArgs struct {
	TsconfigPath string
	AppName      string
	SourceRoot   string
	Plugins      []config.PluginEntry
}

// Args encodes a as [tsconfigPath, appName, sourceRoot, pluginsJSON].
func (a TypeCheckArgs) Args() ([]string, error) {
	pluginList := a.Plugins
	if pluginList == nil {
		pluginList = []config.PluginEntry{}
	}
	encoded, err := json.Marshal(pluginList)
	if err != nil {
		return nil, fmt.Errorf("encode plugins: %w", err)
	}
	app := a.AppName
	if app == "" {
		app = noApp
	}
	return []string{a.TsconfigPath, app, a.SourceRoot, string(encoded)}, nil
}

// ParseTypeCheckArgs decodes the argument vector produced by Args.
func ParseTypeCheckArgs(args []string) (TypeCheckArgs, error) {
	if len(args) != 4 {
		return TypeCheckArgs{}, fmt.Errorf("expected 4 arguments (tsconfigPath, appName, sourceRoot, plugins), got %d", len(args))
	}
	var pluginList []config.PluginEntry
	if err := json.Unmarshal([]byte(args[3]), &pluginList); err != nil {
		return TypeCheckArgs{}, verrors.Configuration(err, "Invalid plugin list %q.", args[3])
	}
	app := args[1]
	if app == noApp {
		app = ""
	}
	return TypeCheckArgs{
		TsconfigPath: args[0],
		AppName:      app,
		SourceRoot:   args[2],
		Plugins:      pluginList,
	}, nil
}

// Config rebuilds the minimal configuration the type checker needs.
func (a TypeCheckArgs) Config() *config.Config {
	return config.WithPlugins(a.SourceRoot, a.AppName, a.Plugins)
}

// TypeCheckerHost runs type-check-only passes, once or continuously.
type TypeCheckerHost struct {
	*Base
}

// TypeCheckFunc receives the program snapshot of a completed check.
type TypeCheckFunc func(program toolchain.Program, errorCount int)

// Run checks tsconfigPath and calls onTypeCheck after every completed check.
// Diagnostics are printed but never stop a watching host.
func (h *TypeCheckerHost) Run(ctx context.Context, tsconfigPath string, watch bool, onTypeCheck TypeCheckFunc) error {
	if watch {
		return h.TS.WatchTypeCheck(ctx, h.Provider, tsconfigPath, func(c toolchain.Cycle) {
			h.report(c.Diagnostics, c.ErrorCount, true)
			onTypeCheck(c.Program, c.ErrorCount)
		})
	}

	parsed, err := h.Provider.GetByConfigFilename(tsconfigPath)
	if err != nil {
		return err
	}
	program, err := h.TS.CreateProgram(parsed)
	if err != nil {
		return err
	}
	diags, err := program.PreEmitDiagnostics(ctx)
	if err != nil {
		return err
	}
	h.report(diags, len(diags), false)
	onTypeCheck(program, len(diags))
	return nil
}

func (h *TypeCheckerHost) report(diags []verrors.Diagnostic, count int, watching bool) {
	h.Metrics.IncTypeCheckCycle(count)
	if count == 0 {
		return
	}
	h.Console.Diagnostics(verrors.FormatDiagnostics(diags))
	if watching {
		h.Console.TscError("Found %d error(s). Watching for file changes.", count)
		return
	}
	h.Console.TscError("%s", verrors.CountSummary(count))
}

// ForkedTypeChecker type-checks alongside swc and generates plugin metadata
// after every check.
type ForkedTypeChecker struct {
	*Base
	Host     *TypeCheckerHost
	Metadata *plugins.MetadataGenerator
}

// NewForkedTypeChecker creates a type checker sharing base's collaborators.
func NewForkedTypeChecker(base *Base) *ForkedTypeChecker {
	return &ForkedTypeChecker{
		Base:     base,
		Host:     &TypeCheckerHost{Base: base},
		Metadata: plugins.NewMetadataGenerator(),
	}
}

// Run type-checks once, or continuously when watch is set. The single-shot
// form returns after the first check; pipeline failures are returned to
// the caller. The watching form logs pipeline failures and returns nil.
func (f *ForkedTypeChecker) Run(ctx context.Context, cfg *config.Config, tsconfigPath, appName string, watch bool) error {
	err := f.run(ctx, cfg, tsconfigPath, appName, watch)
	if err != nil && watch {
		f.Console.Error("%s", err.Error())
		f.Logger.Error(ctx, err, "type checker stopped")
		return nil
	}
	return err
}

func (f *ForkedTypeChecker) run(ctx context.Context, cfg *config.Config, tsconfigPath, appName string, watch bool) error {
	loaded, err := f.LoadPlugins(cfg, tsconfigPath, appName)
	if err != nil {
		return err
	}
	outputDir := f.PathToSource(cfg, tsconfigPath, appName)
	visitors := loaded.ReadonlyVisitors

	var mu sync.Mutex
	return f.Host.Run(ctx, tsconfigPath, watch, func(program toolchain.Program, errorCount int) {
		mu.Lock()
		defer mu.Unlock()

		if len(visitors) == 0 {
			if errorCount == 0 {
				f.Console.Println(ui.FoundNoIssuesMetadataSkipped)
			} else {
				f.Console.Println(ui.MetadataGenerationSkipped)
			}
			return
		}
		if errorCount == 0 {
			f.Console.Println(ui.FoundNoIssuesGeneratingMetadata)
		} else {
			f.Console.Println(ui.GeneratingMetadata)
		}
		if err := f.Metadata.Generate(outputDir, visitors, program); err != nil {
			f.Console.Error("%s", err.Error())
			f.Logger.Error(ctx, err, "metadata generation failed", "outputDir", outputDir)
		}
	})
}
